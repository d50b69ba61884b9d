package script

import (
	"github.com/quellstream/quell/internal/value"
)

// GroupBy is a compiled grouping expression. Evaluated once per event it
// yields one or more grouping-key vectors.
type GroupBy interface {
	generateGroups(ctx *Ctx, groups [][]value.Value) ([][]value.Value, error)
}

// GroupExpr contributes one key, appended to every group produced so far.
type GroupExpr struct {
	Loc  Location
	Expr Expr
}

// GroupSet combines its items left to right. An Expr item widens every
// group by one key, an Each item multiplies the group count.
type GroupSet struct {
	Items []GroupBy
}

// GroupEach fans out over an array result, one group per element.
type GroupEach struct {
	Loc  Location
	Expr Expr
}

// GenerateGroups builds the grouping-key vectors for one event. The
// grouping expressions run in a scratch context of their own: no locals,
// no constants, a null state. Every key is deep-cloned so the vectors
// outlive the event.
func GenerateGroups(g GroupBy, env *Env, event, meta value.Value) ([][]value.Value, error) {
	scratch := &Env{
		Context:        env.Context,
		Log:            env.Log,
		RecursionLimit: env.RecursionLimit,
	}
	ctx := &Ctx{
		Env:    scratch,
		Event:  orNull(event),
		Meta:   orNull(meta),
		State:  value.NullV,
		Locals: NewLocalStack(0),
	}
	groups := make([][]value.Value, 0, 16)
	return g.generateGroups(ctx, groups)
}

func (g GroupExpr) generateGroups(ctx *Ctx, groups [][]value.Value) ([][]value.Value, error) {
	opts := ExecOpts{ResultNeeded: true, Aggr: AggrEmit}
	v, err := evalExpr(ctx, opts, g.Expr)
	if err != nil {
		return nil, err
	}
	if len(groups) == 0 {
		return append(groups, []value.Value{value.Clone(v)}), nil
	}
	for i := range groups {
		groups[i] = append(groups[i], value.Clone(v))
	}
	return groups, nil
}

func (g GroupSet) generateGroups(ctx *Ctx, groups [][]value.Value) ([][]value.Value, error) {
	var err error
	for _, item := range g.Items {
		groups, err = item.generateGroups(ctx, groups)
		if err != nil {
			return nil, err
		}
	}
	return groups, nil
}

func (g GroupEach) generateGroups(ctx *Ctx, groups [][]value.Value) ([][]value.Value, error) {
	opts := ExecOpts{ResultNeeded: true, Aggr: AggrEmit}
	v, err := evalExpr(ctx, opts, g.Expr)
	if err != nil {
		return nil, err
	}
	arr, ok := v.(value.Array)
	if !ok {
		return nil, errNeedArr(g.Loc, v.Kind())
	}
	if len(groups) == 0 {
		for _, e := range arr {
			groups = append(groups, []value.Value{value.Clone(e)})
		}
		return groups, nil
	}
	next := make([][]value.Value, 0, len(arr)*len(groups))
	for _, base := range groups {
		for _, e := range arr {
			widened := make([]value.Value, len(base), len(base)+1)
			copy(widened, base)
			next = append(next, append(widened, value.Clone(e)))
		}
	}
	return next, nil
}
