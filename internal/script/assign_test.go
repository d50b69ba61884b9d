package script

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quellstream/quell/internal/value"
)

func TestAssign_DirectReplacesRoot(t *testing.T) {
	ctx := newTestCtx(value.Object{"old": value.Int(1)}, 1)

	_, err := assign(ctx, ExecOpts{}, &Path{Root: RootEvent}, value.String("fresh"))
	require.NoError(t, err)
	assert.Equal(t, value.String("fresh"), ctx.Event)

	_, err = assign(ctx, ExecOpts{}, &Path{Root: RootLocal, Idx: 0, Name: "x"}, value.Int(7))
	require.NoError(t, err)
	assert.Equal(t, value.Int(7), ctx.Locals.Values[0])
}

func TestAssign_NestedVivifiesObjects(t *testing.T) {
	ctx := newTestCtx(value.Object{}, 0)

	p := &Path{Root: RootEvent, Segments: []Segment{
		{Kind: SegID, Key: "a"},
		{Kind: SegID, Key: "b"},
		{Kind: SegID, Key: "c"},
	}}
	got, err := assign(ctx, ExecOpts{ResultNeeded: true}, p, value.Int(1))
	require.NoError(t, err)
	assert.Equal(t, value.Int(1), got)
	assert.Equal(t, value.Object{
		"a": value.Object{"b": value.Object{"c": value.Int(1)}},
	}, ctx.Event)
}

func TestAssign_NestedElementKey(t *testing.T) {
	ctx := newTestCtx(value.Object{}, 0)

	p := &Path{Root: RootEvent, Segments: []Segment{
		{Kind: SegElement, Expr: lit(value.String("dyn"))},
	}}
	_, err := assign(ctx, ExecOpts{}, p, value.Int(2))
	require.NoError(t, err)
	assert.Equal(t, value.Object{"dyn": value.Int(2)}, ctx.Event)

	// A non-string computed key cannot address an object.
	p = &Path{Root: RootEvent, Segments: []Segment{
		{Kind: SegElement, Expr: lit(value.Int(0))},
	}}
	_, err = assign(ctx, ExecOpts{}, p, value.Int(2))
	assert.Equal(t, ErrNeedsString, CodeOf(err))
}

func TestAssign_ThroughArrayIsFatal(t *testing.T) {
	ctx := newTestCtx(value.Object{"arr": value.Array{value.Int(1)}}, 0)

	p := &Path{Root: RootEvent, Segments: []Segment{
		{Kind: SegID, Key: "arr"},
		{Kind: SegIdx, Idx: 0},
	}}
	_, err := assign(ctx, ExecOpts{}, p, value.Int(2))
	assert.Equal(t, ErrCannotAssignArray, CodeOf(err))

	p = &Path{Root: RootEvent, Segments: []Segment{
		{Kind: SegID, Key: "arr"},
		{Kind: SegRange, Start: lit(value.Int(0)), End: lit(value.Int(1))},
	}}
	_, err = assign(ctx, ExecOpts{}, p, value.Int(2))
	assert.Equal(t, ErrCannotAssignArray, CodeOf(err))
}

func TestAssign_NestedThroughScalarNeedsObject(t *testing.T) {
	ctx := newTestCtx(value.Object{"a": value.Int(5)}, 0)

	p := &Path{Root: RootEvent, Segments: []Segment{
		{Kind: SegID, Key: "a"},
		{Kind: SegID, Key: "b"},
	}}
	_, err := assign(ctx, ExecOpts{}, p, value.Int(1))
	assert.Equal(t, ErrNeedsObject, CodeOf(err))
}

func TestAssign_StateSeversAliasing(t *testing.T) {
	ctx := newTestCtx(value.Object{"payload": value.Object{"n": value.Int(1)}}, 0)

	// Assigning event data into state must deep-copy it.
	payload := ctx.Event.(value.Object)["payload"]
	_, err := assign(ctx, ExecOpts{}, &Path{Root: RootState}, payload)
	require.NoError(t, err)

	payload.(value.Object)["n"] = value.Int(99)
	assert.Equal(t, value.Int(1), ctx.State.(value.Object)["n"])
}

func TestAssign_NestedStateSeversAliasing(t *testing.T) {
	ctx := newTestCtx(value.Object{"payload": value.Object{"n": value.Int(1)}}, 0)

	payload := ctx.Event.(value.Object)["payload"]
	p := &Path{Root: RootState, Segments: []Segment{{Kind: SegID, Key: "saved"}}}
	_, err := assign(ctx, ExecOpts{}, p, payload)
	require.NoError(t, err)

	payload.(value.Object)["n"] = value.Int(99)
	saved := ctx.State.(value.Object)["saved"].(value.Object)
	assert.Equal(t, value.Int(1), saved["n"])
}

func TestAssign_ForbiddenTargets(t *testing.T) {
	ctx := newTestCtx(value.Object{}, 1)
	ctx.Env.Consts = []value.Value{value.Int(1)}

	_, err := assign(ctx, ExecOpts{}, &Path{Root: RootConst, Idx: 0, Name: "c"}, value.Int(2))
	assert.Equal(t, ErrAssignToConst, CodeOf(err))

	_, err = assign(ctx, ExecOpts{}, &Path{Root: RootReservedArgs, Name: "args"}, value.Int(2))
	assert.Equal(t, ErrAssignToConst, CodeOf(err))

	_, err = assign(ctx, ExecOpts{}, &Path{Root: RootExpr, Expr: lit(value.Object{}), Shadow: 0}, value.Int(2))
	assert.Equal(t, ErrAssignToConst, CodeOf(err))

	// Direct meta assignment is rejected; nested is allowed.
	_, err = assign(ctx, ExecOpts{}, &Path{Root: RootMeta}, value.Int(2))
	assert.Equal(t, ErrInvalidAssignTarget, CodeOf(err))

	p := &Path{Root: RootMeta, Segments: []Segment{{Kind: SegID, Key: "k"}}}
	_, err = assign(ctx, ExecOpts{}, p, value.Int(2))
	require.NoError(t, err)
	assert.Equal(t, value.Object{"k": value.Int(2)}, ctx.Meta)
}

func TestAssign_NestedUnsetLocal(t *testing.T) {
	ctx := newTestCtx(value.Object{}, 1)

	p := &Path{Root: RootLocal, Idx: 0, Name: "x", Segments: []Segment{{Kind: SegID, Key: "k"}}}
	_, err := assign(ctx, ExecOpts{}, p, value.Int(1))
	assert.Equal(t, ErrBadKey, CodeOf(err))
}
