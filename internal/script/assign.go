package script

import (
	"github.com/quellstream/quell/internal/value"
)

// assign writes v through a path. An empty path replaces the root outright;
// a segmented path mutates inside it.
func assign(ctx *Ctx, opts ExecOpts, p *Path, v value.Value) (value.Value, error) {
	if len(p.Segments) == 0 {
		return assignDirect(ctx, p, v)
	}
	return assignNested(ctx, opts, p, v)
}

func assignDirect(ctx *Ctx, p *Path, v value.Value) (value.Value, error) {
	switch p.Root {
	case RootConst:
		return nil, errAssignToConst(p.Loc, p.Name)
	case RootReservedArgs, RootReservedGroup, RootReservedWindow:
		return nil, errAssignToConst(p.Loc, p.Name)
	case RootExpr:
		return nil, errAssignToConst(p.Loc, "<expr>")
	case RootMeta:
		return nil, errInvalidAssignTarget(p.Loc)
	case RootLocal:
		if err := ctx.Locals.Set(p.Idx, v, p.Loc); err != nil {
			return nil, err
		}
		return v, nil
	case RootEvent:
		ctx.Event = v
		return v, nil
	case RootState:
		// State outlives the event, so it must not alias into it.
		owned := value.Clone(v)
		ctx.State = owned
		return owned, nil
	}
	return nil, errInvalidAssignTarget(p.Loc)
}

func assignNested(ctx *Ctx, opts ExecOpts, p *Path, v value.Value) (value.Value, error) {
	var cur value.Value
	switch p.Root {
	case RootConst:
		return nil, errAssignToConst(p.Loc, p.Name)
	case RootReservedArgs, RootReservedGroup, RootReservedWindow:
		return nil, errAssignToConst(p.Loc, p.Name)
	case RootExpr:
		return nil, errAssignToConst(p.Loc, "<expr>")
	case RootLocal:
		if p.Idx < 0 || p.Idx >= len(ctx.Locals.Values) {
			return nil, errOops(p.Loc, oopsLocalOOB, "local index out of bounds: "+p.Name)
		}
		cur = ctx.Locals.Values[p.Idx]
		if cur == nil {
			return nil, errBadKey(p.Loc, p.Name, nil)
		}
	case RootMeta:
		cur = orNull(ctx.Meta)
	case RootEvent:
		cur = orNull(ctx.Event)
	case RootState:
		// State outlives the event, so it must not alias into it.
		v = value.Clone(v)
		cur = orNull(ctx.State)
	default:
		return nil, errInvalidAssignTarget(p.Loc)
	}

	for i := range p.Segments {
		seg := &p.Segments[i]

		var key string
		switch seg.Kind {
		case SegID:
			key = seg.Key
		case SegElement:
			kv, err := evalExpr(ctx, opts, seg.Expr)
			if err != nil {
				return nil, err
			}
			ks, ok := kv.(value.String)
			if !ok {
				return nil, errNeedStr(seg.Loc, kv.Kind())
			}
			key = string(ks)
		case SegIdx, SegRange:
			// Arrays are never auto-extended by assignment.
			return nil, errAssignArray(seg.Loc)
		}

		obj, ok := cur.(value.Object)
		if !ok {
			return nil, errNeedObj(seg.Loc, cur.Kind())
		}
		if i == len(p.Segments)-1 {
			obj[key] = v
			break
		}
		next, ok := obj[key]
		if !ok {
			// Missing intermediates vivify as empty objects.
			next = value.Object{}
			obj[key] = next
		}
		cur = next
	}

	if opts.ResultNeeded {
		return resolvePath(ctx, opts, p)
	}
	return value.NullV, nil
}
