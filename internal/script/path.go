package script

import (
	"github.com/quellstream/quell/internal/value"
)

// resolvePath fetches the root of a path and narrows it segment by segment.
// The result shares structure with the root except after a range segment,
// which always yields a fresh array copy.
func resolvePath(ctx *Ctx, opts ExecOpts, p *Path) (value.Value, error) {
	base, err := pathBase(ctx, opts, p)
	if err != nil {
		return nil, err
	}
	return resolveValue(ctx, opts, p, base)
}

// pathBase fetches the base value a path starts from. For expression roots
// the owned result is parked in the compiler-assigned shadow slot so that
// later assignment through the same path sees a stable value.
func pathBase(ctx *Ctx, opts ExecOpts, p *Path) (value.Value, error) {
	switch p.Root {
	case RootLocal:
		if p.Idx < 0 || p.Idx >= len(ctx.Locals.Values) {
			return nil, errOops(p.Loc, oopsLocalOOB, "local index out of bounds: "+p.Name)
		}
		v := ctx.Locals.Values[p.Idx]
		if v == nil {
			// An unset local reads like a missing key, not a crash.
			return nil, errBadKey(p.Loc, p.Name, nil)
		}
		return v, nil
	case RootConst:
		if p.Idx < 0 || p.Idx >= len(ctx.Env.Consts) {
			return nil, errOops(p.Loc, oopsConstOOB, "constant index out of bounds: "+p.Name)
		}
		return ctx.Env.Consts[p.Idx], nil
	case RootEvent:
		return orNull(ctx.Event), nil
	case RootMeta:
		return orNull(ctx.Meta), nil
	case RootState:
		return orNull(ctx.State), nil
	case RootExpr:
		v, err := evalExpr(ctx, opts, p.Expr)
		if err != nil {
			return nil, err
		}
		if err := setLocalShadow(ctx, p.Shadow, p.Loc, v); err != nil {
			return nil, err
		}
		return v, nil
	case RootReservedArgs:
		return orNull(ctx.Args), nil
	case RootReservedGroup:
		return orNull(ctx.Group), nil
	case RootReservedWindow:
		return orNull(ctx.Window), nil
	}
	return nil, errOops(p.Loc, oopsLocalOOB, "unknown path root")
}

func orNull(v value.Value) value.Value {
	if v == nil {
		return value.NullV
	}
	return v
}

// setLocalShadow writes an owned intermediate into its shadow slot.
// Shadow slots live in the same frame as ordinary locals.
func setLocalShadow(ctx *Ctx, idx int, loc Location, v value.Value) error {
	if idx < 0 || idx >= len(ctx.Locals.Values) {
		return errOops(loc, oopsShadowOOB, "shadow index out of bounds")
	}
	ctx.Locals.Values[idx] = v
	return nil
}

// resolveValue narrows base through the path's segments.
func resolveValue(ctx *Ctx, opts ExecOpts, p *Path, base value.Value) (value.Value, error) {
	cur := base
	// A taken range segment switches later index segments onto the sliced
	// region instead of the full array.
	var sub value.Array

	for i := range p.Segments {
		seg := &p.Segments[i]
		switch seg.Kind {
		case SegID:
			obj, ok := cur.(value.Object)
			if !ok {
				return nil, errNeedObj(seg.Loc, cur.Kind())
			}
			v, ok := obj[seg.Key]
			if !ok {
				return nil, errBadKey(seg.Loc, seg.Key, obj.Keys())
			}
			cur = v
			sub = nil

		case SegIdx:
			arr, ok := cur.(value.Array)
			if !ok {
				return nil, errNeedArr(seg.Loc, cur.Kind())
			}
			if sub != nil {
				arr = sub
			}
			if seg.Idx < 0 || seg.Idx >= len(arr) {
				return nil, errOutOfBound(seg.Loc, seg.Idx, seg.Idx, len(arr))
			}
			cur = arr[seg.Idx]
			sub = nil

		case SegRange:
			arr, ok := cur.(value.Array)
			if !ok {
				return nil, errNeedArr(seg.Loc, cur.Kind())
			}
			if sub != nil {
				arr = sub
			}
			start, err := evalToIndex(ctx, opts, seg.Start, seg.Loc, len(arr))
			if err != nil {
				return nil, err
			}
			end, err := evalToIndex(ctx, opts, seg.End, seg.Loc, len(arr))
			if err != nil {
				return nil, err
			}
			if end < start {
				return nil, errDecreasingRange(seg.Loc, start, end)
			}
			if end > len(arr) {
				return nil, errOutOfBound(seg.Loc, start, end, len(arr))
			}
			sub = arr[start:end]

		case SegElement:
			key, err := evalExpr(ctx, opts, seg.Expr)
			if err != nil {
				return nil, err
			}
			switch t := cur.(type) {
			case value.Object:
				id, ok := key.(value.String)
				if !ok {
					return nil, errNeedStr(seg.Loc, key.Kind())
				}
				v, ok := t[string(id)]
				if !ok {
					return nil, errBadKey(seg.Loc, string(id), t.Keys())
				}
				cur = v
				sub = nil
			case value.Array:
				arr := t
				if sub != nil {
					arr = sub
				}
				idx, err := valueToIndex(seg.Loc, key, len(arr))
				if err != nil {
					return nil, err
				}
				if idx >= len(arr) {
					return nil, errOutOfBound(seg.Loc, idx, idx, len(arr))
				}
				cur = arr[idx]
				sub = nil
			default:
				if _, ok := key.(value.String); ok {
					return nil, errNeedObj(seg.Loc, cur.Kind())
				}
				if _, _, isInt := value.AsIndex(key); isInt {
					return nil, errNeedArr(seg.Loc, cur.Kind())
				}
				return nil, errOops(seg.Loc, oopsBadSegment, "bad path segments")
			}
		}
	}

	if sub != nil {
		out := make(value.Array, len(sub))
		copy(out, sub)
		return out, nil
	}
	return cur, nil
}

// evalToIndex evaluates a range endpoint to a non-negative array index.
func evalToIndex(ctx *Ctx, opts ExecOpts, e Expr, loc Location, length int) (int, error) {
	v, err := evalExpr(ctx, opts, e)
	if err != nil {
		return 0, err
	}
	return valueToIndex(loc, v, length)
}

// valueToIndex converts a value to a usable array index. A negative integer
// is out of bounds; a non-integer is a type error.
func valueToIndex(loc Location, v value.Value, length int) (int, error) {
	idx, ok, isInt := value.AsIndex(v)
	if ok {
		return idx, nil
	}
	if isInt {
		return 0, errOutOfBound(loc, idx, idx, length)
	}
	return 0, errNeedInt(loc, v.Kind())
}
