package preprocessor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLines_SplitsCompleteLines(t *testing.T) {
	l := &Lines{}

	out, err := l.Process([]byte("one\ntwo\nthree\n"))
	require.NoError(t, err)

	require.Len(t, out, 3)
	assert.Equal(t, []byte("one"), out[0])
	assert.Equal(t, []byte("two"), out[1])
	assert.Equal(t, []byte("three"), out[2])
}

func TestLines_BuffersPartialLine(t *testing.T) {
	l := &Lines{}

	out, err := l.Process([]byte("hel"))
	require.NoError(t, err)
	assert.Empty(t, out)

	out, err = l.Process([]byte("lo\nwor"))
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, []byte("hello"), out[0])

	flushed, err := l.Finish()
	require.NoError(t, err)
	require.Len(t, flushed, 1)
	assert.Equal(t, []byte("wor"), flushed[0])
}

func TestLines_FinishEmptyBuffer(t *testing.T) {
	l := &Lines{}

	flushed, err := l.Finish()
	require.NoError(t, err)
	assert.Empty(t, flushed)
}

func TestLines_OutputDoesNotAliasBuffer(t *testing.T) {
	l := &Lines{}

	out, err := l.Process([]byte("ab\ncd"))
	require.NoError(t, err)
	require.Len(t, out, 1)

	// Feeding more data must not disturb lines already returned.
	_, err = l.Process([]byte("ef\n"))
	require.NoError(t, err)
	assert.Equal(t, []byte("ab"), out[0])
}

func TestChain_UnknownNameFails(t *testing.T) {
	_, err := Chain([]string{"lines", "gunzip"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "gunzip")
}

func TestRun_EmptyChainPassesThrough(t *testing.T) {
	chain, err := Chain(nil)
	require.NoError(t, err)

	out, err := Run(chain, []byte("raw"))
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, []byte("raw"), out[0])
}

func TestFinish_FlushesTrailingData(t *testing.T) {
	chain, err := Chain([]string{"lines"})
	require.NoError(t, err)

	out, err := Run(chain, []byte("a\nb"))
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, []byte("a"), out[0])

	flushed, err := Finish(chain, []byte("c"))
	require.NoError(t, err)
	require.Len(t, flushed, 1)
	assert.Equal(t, []byte("bc"), flushed[0])
}
