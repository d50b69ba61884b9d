package script

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quellstream/quell/internal/value"
)

func eventField(name string) Expr {
	return &Path{
		Root:     RootEvent,
		Segments: []Segment{{Kind: SegID, Key: name}},
	}
}

func TestGroupBy_ExprSingleGroup(t *testing.T) {
	env := &Env{Context: context.Background()}
	event := value.Object{"measurement": value.String("cpu")}

	groups, err := GenerateGroups(GroupExpr{Expr: eventField("measurement")}, env, event, value.Object{})
	require.NoError(t, err)

	require.Len(t, groups, 1)
	assert.Equal(t, []value.Value{value.String("cpu")}, groups[0])
}

func TestGroupBy_SetWidensEveryGroup(t *testing.T) {
	env := &Env{Context: context.Background()}
	event := value.Object{
		"measurement": value.String("cpu"),
		"host":        value.String("box-1"),
	}

	g := GroupSet{Items: []GroupBy{
		GroupExpr{Expr: eventField("measurement")},
		GroupExpr{Expr: eventField("host")},
	}}
	groups, err := GenerateGroups(g, env, event, value.Object{})
	require.NoError(t, err)

	require.Len(t, groups, 1)
	assert.Equal(t, []value.Value{value.String("cpu"), value.String("box-1")}, groups[0])
}

func TestGroupBy_EachFansOut(t *testing.T) {
	env := &Env{Context: context.Background()}
	event := value.Object{
		"tags": value.Array{value.String("a"), value.String("b")},
	}

	groups, err := GenerateGroups(GroupEach{Expr: eventField("tags")}, env, event, value.Object{})
	require.NoError(t, err)

	require.Len(t, groups, 2)
	assert.Equal(t, []value.Value{value.String("a")}, groups[0])
	assert.Equal(t, []value.Value{value.String("b")}, groups[1])
}

func TestGroupBy_SetWithEachIsCartesian(t *testing.T) {
	env := &Env{Context: context.Background()}
	event := value.Object{
		"measurement": value.Int(7),
		"fields":      value.Array{value.String("a"), value.String("b")},
	}

	g := GroupSet{Items: []GroupBy{
		GroupExpr{Expr: eventField("measurement")},
		GroupEach{Expr: eventField("fields")},
	}}
	groups, err := GenerateGroups(g, env, event, value.Object{})
	require.NoError(t, err)

	require.Len(t, groups, 2)
	assert.Equal(t, []value.Value{value.Int(7), value.String("a")}, groups[0])
	assert.Equal(t, []value.Value{value.Int(7), value.String("b")}, groups[1])
}

func TestGroupBy_EachTimesEach(t *testing.T) {
	env := &Env{Context: context.Background()}
	event := value.Object{
		"letters": value.Array{value.String("a"), value.String("b")},
		"numbers": value.Array{value.Int(7), value.Int(8)},
	}

	g := GroupSet{Items: []GroupBy{
		GroupEach{Expr: eventField("letters")},
		GroupEach{Expr: eventField("numbers")},
	}}
	groups, err := GenerateGroups(g, env, event, value.Object{})
	require.NoError(t, err)

	require.Len(t, groups, 4)
	assert.Equal(t, []value.Value{value.String("a"), value.Int(7)}, groups[0])
	assert.Equal(t, []value.Value{value.String("a"), value.Int(8)}, groups[1])
	assert.Equal(t, []value.Value{value.String("b"), value.Int(7)}, groups[2])
	assert.Equal(t, []value.Value{value.String("b"), value.Int(8)}, groups[3])
}

func TestGroupBy_EachNeedsArray(t *testing.T) {
	env := &Env{Context: context.Background()}
	event := value.Object{"tags": value.String("not-an-array")}

	_, err := GenerateGroups(GroupEach{Expr: eventField("tags")}, env, event, value.Object{})
	require.Error(t, err)
	assert.Equal(t, ErrNeedsArray, CodeOf(err))
}

func TestGroupBy_KeysAreOwnedCopies(t *testing.T) {
	env := &Env{Context: context.Background()}
	inner := value.Object{"k": value.String("v")}
	event := value.Object{"tag": inner}

	groups, err := GenerateGroups(GroupExpr{Expr: eventField("tag")}, env, event, value.Object{})
	require.NoError(t, err)
	require.Len(t, groups, 1)

	inner["k"] = value.String("mutated")
	assert.Equal(t, value.Object{"k": value.String("v")}, groups[0][0])
}
