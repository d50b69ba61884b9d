package script

import (
	"errors"
	"sort"

	"github.com/quellstream/quell/internal/value"
)

// evalExpr evaluates a side-effect-free expression to a value.
func evalExpr(ctx *Ctx, opts ExecOpts, e Expr) (value.Value, error) {
	switch x := e.(type) {
	case *Literal:
		return x.Val, nil

	case *Record:
		obj := make(value.Object, len(x.Fields))
		for i := range x.Fields {
			f := &x.Fields[i]
			kv, err := evalExpr(ctx, opts, f.Key)
			if err != nil {
				return nil, err
			}
			ks, ok := kv.(value.String)
			if !ok {
				return nil, errNeedStr(x.Loc, kv.Kind())
			}
			v, err := evalExpr(ctx, opts, f.Value)
			if err != nil {
				return nil, err
			}
			obj[string(ks)] = v
		}
		return obj, nil

	case *List:
		arr := make(value.Array, len(x.Items))
		for i, item := range x.Items {
			v, err := evalExpr(ctx, opts, item)
			if err != nil {
				return nil, err
			}
			arr[i] = v
		}
		return arr, nil

	case *Binary:
		lhs, err := evalExpr(ctx, opts, x.Lhs)
		if err != nil {
			return nil, err
		}
		rhs, err := evalExpr(ctx, opts, x.Rhs)
		if err != nil {
			return nil, err
		}
		return execBinary(x.Loc, x.Op, lhs, rhs)

	case *Unary:
		v, err := evalExpr(ctx, opts, x.Operand)
		if err != nil {
			return nil, err
		}
		return execUnary(x.Loc, x.Op, v)

	case *Path:
		return resolvePath(ctx, opts, x)

	case *Merge:
		tv, err := evalExpr(ctx, opts, x.Target)
		if err != nil {
			return nil, err
		}
		spec, err := evalExpr(ctx, opts, x.Spec)
		if err != nil {
			return nil, err
		}
		return mergeValues(value.Clone(tv), spec), nil

	case *Patch:
		tv, err := evalExpr(ctx, opts, x.Target)
		if err != nil {
			return nil, err
		}
		evaluated, err := evalPatchOps(ctx, opts, x.Ops)
		if err != nil {
			return nil, err
		}
		return patchValue(ctx, opts, x.Loc, value.Clone(tv), evaluated)

	case *Present:
		if _, err := resolvePath(ctx, opts, x.Path); err != nil {
			var se *Error
			if errors.As(err, &se) && se.Code != ErrOops {
				return value.False, nil
			}
			return nil, err
		}
		return value.True, nil

	case *Invoke:
		if err := ctx.EnterFn(x.Loc); err != nil {
			return nil, err
		}
		defer ctx.LeaveFn()
		args := make([]value.Value, len(x.Args))
		for i, a := range x.Args {
			v, err := evalExpr(ctx, opts, a)
			if err != nil {
				return nil, err
			}
			args[i] = v
		}
		return x.Fn.Call(ctx, args)
	}
	return nil, errOops(Location{}, oopsBadSegment, "unknown expression form")
}

// execStmt runs one statement, yielding a control-flow signal.
func execStmt(ctx *Ctx, opts ExecOpts, s Stmt) (Cont, error) {
	switch x := s.(type) {
	case *ExprStmt:
		v, err := evalExpr(ctx, opts, x.Expr)
		if err != nil {
			return Cont{}, err
		}
		return cont(v), nil

	case *Assign:
		c, err := execStmt(ctx, opts.WithResult(), x.Expr)
		if err != nil || c.IsTerminal() {
			return c, err
		}
		v, err := assign(ctx, opts, x.Path, c.Val)
		if err != nil {
			return Cont{}, err
		}
		return cont(v), nil

	case *Emit:
		port := ""
		if x.Port != nil {
			pv, err := evalExpr(ctx, opts, x.Port)
			if err != nil {
				return Cont{}, err
			}
			ps, ok := pv.(value.String)
			if !ok {
				return Cont{}, errNeedStr(x.Loc, pv.Kind())
			}
			port = string(ps)
		}
		// `emit event` re-emits the current event itself; anything else is
		// a derived value.
		if p, ok := x.Expr.(*Path); ok && p.Root == RootEvent && len(p.Segments) == 0 {
			return Cont{Kind: ContEmitEvent, Port: port}, nil
		}
		v, err := evalExpr(ctx, opts, x.Expr)
		if err != nil {
			return Cont{}, err
		}
		return Cont{Kind: ContEmit, Val: v, Port: port}, nil

	case *Drop:
		return Cont{Kind: ContDrop}, nil

	case *Match:
		return execMatch(ctx, opts, x)

	case *IfElse:
		return execIfElse(ctx, opts, x)

	case *Comprehension:
		return execComprehension(ctx, opts, x)
	}
	return Cont{}, errOops(Location{}, oopsBadSegment, "unknown statement form")
}

// executeEffectors runs a statement block: all but the last statement for
// side effects only, the last with the caller's result mode. A terminal
// signal from any statement short-circuits the rest.
func executeEffectors(ctx *Ctx, opts ExecOpts, block Effectors) (Cont, error) {
	last := len(block.Stmts) - 1
	for i, s := range block.Stmts {
		o := opts
		if i != last {
			o = opts.WithoutResult()
		}
		c, err := execStmt(ctx, o, s)
		if err != nil || c.IsTerminal() || i == last {
			return c, err
		}
	}
	return cont(value.NullV), nil
}

// preconditionHolds checks a clause group's precondition path against the
// match target. A failed lookup skips the group; it is never an error.
func preconditionHolds(ctx *Ctx, opts ExecOpts, target value.Value, segments []Segment) (bool, error) {
	if len(segments) == 0 {
		return true, nil
	}
	probe := &Path{Segments: segments}
	if _, err := resolveValue(ctx, opts.WithoutResult(), probe, target); err != nil {
		var se *Error
		if errors.As(err, &se) && se.Code != ErrOops {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func execMatch(ctx *Ctx, opts ExecOpts, m *Match) (Cont, error) {
	target, err := evalExpr(ctx, opts, m.Target)
	if err != nil {
		return Cont{}, err
	}

	for gi := range m.Groups {
		g := &m.Groups[gi]
		ok, err := preconditionHolds(ctx, opts, target, g.Precondition)
		if err != nil {
			return Cont{}, err
		}
		if !ok {
			continue
		}
		for ci := range g.Clauses {
			clause := &g.Clauses[ci]
			matched, err := testPredicate(ctx, opts, clause.Loc, target, clause.Pattern, clause.Guard)
			if err != nil {
				return Cont{}, err
			}
			if matched {
				return executeEffectors(ctx, opts, clause.Body)
			}
		}
	}

	switch m.Default {
	case DefaultNull:
		return cont(value.NullV), nil
	case DefaultBody:
		return executeEffectors(ctx, opts, m.Body)
	}
	return Cont{}, errNoClauseHit(m.Loc)
}

func execIfElse(ctx *Ctx, opts ExecOpts, ie *IfElse) (Cont, error) {
	target, err := evalExpr(ctx, opts, ie.Target)
	if err != nil {
		return Cont{}, err
	}
	matched, err := testPredicate(ctx, opts, ie.If.Loc, target, ie.If.Pattern, ie.If.Guard)
	if err != nil {
		return Cont{}, err
	}
	if matched {
		return executeEffectors(ctx, opts, ie.If.Body)
	}
	switch ie.Default {
	case DefaultNull:
		return cont(value.NullV), nil
	case DefaultBody:
		return executeEffectors(ctx, opts, ie.Body)
	}
	return Cont{}, errNoClauseHit(ie.Loc)
}

// execComprehension iterates an object (key, value) or array (index, value)
// target. Each item binds the key and value slots, then the first case
// whose guard passes runs; its result lands in a fresh output array. A
// non-collection target yields an empty array.
func execComprehension(ctx *Ctx, opts ExecOpts, comp *Comprehension) (Cont, error) {
	target, err := evalExpr(ctx, opts, comp.Target)
	if err != nil {
		return Cont{}, err
	}

	type item struct {
		k value.Value
		v value.Value
	}
	var items []item
	switch t := target.(type) {
	case value.Object:
		keys := t.Keys()
		sort.Strings(keys)
		items = make([]item, 0, len(t))
		for _, k := range keys {
			items = append(items, item{value.String(k), t[k]})
		}
	case value.Array:
		items = make([]item, 0, len(t))
		for i, v := range t {
			items = append(items, item{value.Int(i), v})
		}
	}

	out := value.Array{}
	if opts.ResultNeeded {
		out = make(value.Array, 0, len(items))
	}

	for _, it := range items {
		if err := setLocalShadow(ctx, comp.KeyID, comp.Loc, it.k); err != nil {
			return Cont{}, err
		}
		if err := setLocalShadow(ctx, comp.ValID, comp.Loc, it.v); err != nil {
			return Cont{}, err
		}
		for ci := range comp.Cases {
			c := &comp.Cases[ci]
			pass, err := testGuard(ctx, opts, comp.Loc, c.Guard)
			if err != nil {
				return Cont{}, err
			}
			if !pass {
				continue
			}
			res, err := executeEffectors(ctx, opts, c.Body)
			if err != nil || res.IsTerminal() {
				return res, err
			}
			if opts.ResultNeeded {
				out = append(out, res.Val)
			}
			break
		}
	}
	return cont(out), nil
}
