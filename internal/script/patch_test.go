package script

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quellstream/quell/internal/value"
)

func runPatch(t *testing.T, ctx *Ctx, target value.Value, ops []PatchOp) (value.Value, error) {
	t.Helper()
	evaluated, err := evalPatchOps(ctx, ExecOpts{}, ops)
	if err != nil {
		return nil, err
	}
	return patchValue(ctx, ExecOpts{}, Location{}, target, evaluated)
}

func TestPatch_InsertUpdateUpsertErase(t *testing.T) {
	ctx := newTestCtx(value.Object{}, 0)
	target := value.Object{"a": value.Int(1)}

	got, err := runPatch(t, ctx, target, []PatchOp{
		{Kind: PatchInsert, Key: lit(value.String("b")), Value: lit(value.Int(2))},
		{Kind: PatchUpdate, Key: lit(value.String("a")), Value: lit(value.Int(10))},
		{Kind: PatchUpsert, Key: lit(value.String("c")), Value: lit(value.Int(3))},
		{Kind: PatchErase, Key: lit(value.String("b"))},
	})
	require.NoError(t, err)
	assert.Equal(t, value.Object{"a": value.Int(10), "c": value.Int(3)}, got)

	_, err = runPatch(t, ctx, value.Object{"a": value.Int(1)}, []PatchOp{
		{Kind: PatchInsert, Key: lit(value.String("a")), Value: lit(value.Int(2))},
	})
	assert.Equal(t, ErrPatchKeyExists, CodeOf(err))

	_, err = runPatch(t, ctx, value.Object{}, []PatchOp{
		{Kind: PatchUpdate, Key: lit(value.String("a")), Value: lit(value.Int(2))},
	})
	assert.Equal(t, ErrPatchKeyMissing, CodeOf(err))
}

func TestPatch_CopyMove(t *testing.T) {
	ctx := newTestCtx(value.Object{}, 0)

	got, err := runPatch(t, ctx, value.Object{"src": value.Int(1)}, []PatchOp{
		{Kind: PatchCopy, From: lit(value.String("src")), To: lit(value.String("dst"))},
	})
	require.NoError(t, err)
	assert.Equal(t, value.Object{"src": value.Int(1), "dst": value.Int(1)}, got)

	got, err = runPatch(t, ctx, value.Object{"src": value.Int(1)}, []PatchOp{
		{Kind: PatchMove, From: lit(value.String("src")), To: lit(value.String("dst"))},
	})
	require.NoError(t, err)
	assert.Equal(t, value.Object{"dst": value.Int(1)}, got)

	// Moving a missing source is a no-op.
	got, err = runPatch(t, ctx, value.Object{}, []PatchOp{
		{Kind: PatchMove, From: lit(value.String("nope")), To: lit(value.String("dst"))},
	})
	require.NoError(t, err)
	assert.Equal(t, value.Object{}, got)

	// An occupied destination fails for both.
	_, err = runPatch(t, ctx, value.Object{"src": value.Int(1), "dst": value.Int(2)}, []PatchOp{
		{Kind: PatchCopy, From: lit(value.String("src")), To: lit(value.String("dst"))},
	})
	assert.Equal(t, ErrPatchKeyExists, CodeOf(err))
}

func TestPatch_TwoPhaseSeesPrePatchState(t *testing.T) {
	// Each operation's expressions see the pre-patch event, not the
	// half-patched target.
	event := value.Object{"v": value.Int(1)}
	ctx := newTestCtx(event, 0)

	// Patch the event itself while the operations read from it.
	eventPath := &Path{Root: RootEvent}
	got, err := runPatch(t, ctx, event, []PatchOp{
		{Kind: PatchUpsert, Key: lit(value.String("a")), Value: eventPath},
		{Kind: PatchUpsert, Key: lit(value.String("b")), Value: eventPath},
	})
	require.NoError(t, err)

	obj := got.(value.Object)
	assert.Equal(t, value.Object{"v": value.Int(1)}, obj["a"])
	assert.Equal(t, value.Object{"v": value.Int(1)}, obj["b"], "second op must not see the first op's insertion")
}

func TestPatch_Merge(t *testing.T) {
	ctx := newTestCtx(value.Object{}, 0)

	got, err := runPatch(t, ctx, value.Object{
		"cfg": value.Object{"keep": value.Int(1), "drop": value.Int(2)},
	}, []PatchOp{
		{Kind: PatchMerge, Key: lit(value.String("cfg")), Value: lit(value.Object{
			"drop": value.NullV,
			"add":  value.Int(3),
		})},
	})
	require.NoError(t, err)
	assert.Equal(t, value.Object{
		"cfg": value.Object{"keep": value.Int(1), "add": value.Int(3)},
	}, got)

	// Merging into an absent key creates a fresh object first.
	got, err = runPatch(t, ctx, value.Object{}, []PatchOp{
		{Kind: PatchMerge, Key: lit(value.String("cfg")), Value: lit(value.Object{"a": value.Int(1)})},
	})
	require.NoError(t, err)
	assert.Equal(t, value.Object{"cfg": value.Object{"a": value.Int(1)}}, got)

	// Merging into a non-object value is a conflict.
	_, err = runPatch(t, ctx, value.Object{"cfg": value.Int(5)}, []PatchOp{
		{Kind: PatchMerge, Key: lit(value.String("cfg")), Value: lit(value.Object{})},
	})
	assert.Equal(t, ErrPatchMergeTypeConflict, CodeOf(err))
}

func TestPatch_MergeRecord(t *testing.T) {
	ctx := newTestCtx(value.Object{}, 0)

	got, err := runPatch(t, ctx, value.Object{"a": value.Int(1), "b": value.Int(2)}, []PatchOp{
		{Kind: PatchMergeRecord, Value: lit(value.Object{"b": value.NullV, "c": value.Int(3)})},
	})
	require.NoError(t, err)
	assert.Equal(t, value.Object{"a": value.Int(1), "c": value.Int(3)}, got)
}

func TestPatch_DefaultIsLazyAndFillsGapsOnly(t *testing.T) {
	ctx := newTestCtx(value.Object{}, 0)

	// A present key leaves the default expression unevaluated; a guard
	// expression that would error proves it.
	badDefault := &Binary{Op: OpAdd, Lhs: lit(value.True), Rhs: lit(value.Int(1))}
	got, err := runPatch(t, ctx, value.Object{"a": value.Int(1)}, []PatchOp{
		{Kind: PatchDefault, Key: lit(value.String("a")), Value: badDefault},
		{Kind: PatchDefault, Key: lit(value.String("b")), Value: lit(value.Int(2))},
	})
	require.NoError(t, err)
	assert.Equal(t, value.Object{"a": value.Int(1), "b": value.Int(2)}, got)
}

func TestPatch_DefaultRecordPreservesNestedKeys(t *testing.T) {
	ctx := newTestCtx(value.Object{}, 0)

	target := value.Object{
		"nested": value.Object{"kept": value.Int(1)},
	}
	got, err := runPatch(t, ctx, target, []PatchOp{
		{Kind: PatchDefaultRecord, Value: lit(value.Object{
			"nested": value.Object{"kept": value.Int(99), "added": value.Int(2)},
			"top":    value.Int(3),
		})},
	})
	require.NoError(t, err)
	assert.Equal(t, value.Object{
		"nested": value.Object{"kept": value.Int(1), "added": value.Int(2)},
		"top":    value.Int(3),
	}, got)

	// A non-object default record is a type error.
	_, err = runPatch(t, ctx, value.Object{}, []PatchOp{
		{Kind: PatchDefaultRecord, Value: lit(value.Int(1))},
	})
	assert.Equal(t, ErrNeedsObject, CodeOf(err))
}

func TestPatch_NonObjectTarget(t *testing.T) {
	ctx := newTestCtx(value.Object{}, 0)

	_, err := runPatch(t, ctx, value.Int(1), []PatchOp{
		{Kind: PatchUpsert, Key: lit(value.String("a")), Value: lit(value.Int(1))},
	})
	assert.Equal(t, ErrNeedsObject, CodeOf(err))
}

func TestMergeValues_ReplacesWhenNotObjects(t *testing.T) {
	got := mergeValues(value.Int(1), value.Object{"a": value.Int(2)})
	assert.Equal(t, value.Object{"a": value.Int(2)}, got)

	got = mergeValues(value.Object{"a": value.Int(1)}, value.String("x"))
	assert.Equal(t, value.String("x"), got)
}
