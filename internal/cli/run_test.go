package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quellstream/quell/internal/config"
	"github.com/quellstream/quell/internal/statestore"
	"github.com/quellstream/quell/internal/testutil"
	"github.com/quellstream/quell/internal/value"
)

func lineConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Connector.Preprocessors = []string{"lines"}
	cfg.ApplyDefaults()
	return cfg
}

func runInput(t *testing.T, cfg *config.Config, input string) (string, string) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var stdout, stderr bytes.Buffer
	err := runPipeline(ctx, cfg, testutil.NewTestLogger(t), strings.NewReader(input), &stdout, &stderr)
	require.NoError(t, err)
	return stdout.String(), stderr.String()
}

func TestRunPipeline_PassthroughGolden(t *testing.T) {
	stdout, stderr := runInput(t, lineConfig(), `{"b":2,"a":1}`+"\n"+`{"x":[1,2,3]}`+"\n")
	assert.Empty(t, stderr)

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "run_passthrough", []byte(stdout))
}

func TestRunPipeline_EmptyInput(t *testing.T) {
	stdout, stderr := runInput(t, lineConfig(), "")
	assert.Empty(t, stdout)
	assert.Empty(t, stderr)
}

func TestRunPipeline_DecodeErrorRoutedToStderr(t *testing.T) {
	stdout, stderr := runInput(t, lineConfig(), `{"ok":true}`+"\nnot json\n")

	assert.Equal(t, `{"ok":true}`+"\n", stdout)
	assert.Contains(t, stderr, `"error"`)
	assert.Contains(t, stderr, `"source":"quell"`)
	assert.Contains(t, stderr, `"stream_id":0`)
}

func TestRunPipeline_PersistsState(t *testing.T) {
	cfg := lineConfig()
	cfg.State.Path = filepath.Join(t.TempDir(), "state.db")

	runInput(t, cfg, `{"a":1}`+"\n")

	st, err := statestore.Open(cfg.State.Path)
	require.NoError(t, err)
	defer st.Close()

	v, ok, err := st.Load(context.Background(), cfg.Connector.Alias)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, value.Eq(value.Object{}, v))
}

func TestRunCommand_ReadsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"b":2,"a":1}`), 0o644))

	root := NewRootCommand()
	var stdout, stderr bytes.Buffer
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs([]string{"run", path})

	require.NoError(t, root.Execute())
	assert.Equal(t, `{"a":1,"b":2}`+"\n", stdout.String())
}

func TestRunCommand_MissingFileIsCommandError(t *testing.T) {
	root := NewRootCommand()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"run", filepath.Join(t.TempDir(), "missing.json")})

	err := root.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestConfigCommand_PrintsEffectiveConfig(t *testing.T) {
	root := NewRootCommand()
	var stdout bytes.Buffer
	root.SetOut(&stdout)
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"config"})

	require.NoError(t, root.Execute())
	assert.Contains(t, stdout.String(), "codec: json")
	assert.Contains(t, stdout.String(), "queue_size: 64")
}
