package script

import (
	"github.com/quellstream/quell/internal/value"
)

// mergeValues deep-merges replacement into v and returns the merged value.
// A null in the replacement deletes the key (tombstone). When either side
// is not an object the replacement wins outright.
func mergeValues(v, replacement value.Value) value.Value {
	rep, rok := replacement.(value.Object)
	obj, vok := v.(value.Object)
	if !rok || !vok {
		return value.Clone(replacement)
	}
	for k, rv := range rep {
		if _, isNull := rv.(value.Null); isNull {
			delete(obj, k)
		} else if cur, ok := obj[k]; ok {
			obj[k] = mergeValues(cur, rv)
		} else {
			obj[k] = value.Clone(rv)
		}
	}
	return obj
}

// applyDefault fills keys missing from target with clones of the defaults,
// recursing where both sides hold objects. Keys already present are never
// overwritten, at any depth.
func applyDefault(target, dflt value.Object) {
	for k, v := range dflt {
		cur, ok := target[k]
		if !ok {
			target[k] = value.Clone(v)
			continue
		}
		if curObj, ok := cur.(value.Object); ok {
			if dfltObj, ok := v.(value.Object); ok {
				applyDefault(curObj, dfltObj)
			}
		}
	}
}

// evaluatedPatchOp carries the evaluated parts of one patch operation.
// Patch operations are evaluated in one pass before any mutation so that
// every operation's expressions see the pre-patch target, never the
// temporary state left by earlier operations in the same block.
type evaluatedPatchOp struct {
	loc  Location
	kind PatchOpKind
	key  string
	from string
	to   string
	val  value.Value
	expr Expr // deferred for Default / DefaultRecord
}

// evalPatchIdent evaluates a patch identifier expression to a string key.
func evalPatchIdent(ctx *Ctx, opts ExecOpts, loc Location, e Expr) (string, error) {
	v, err := evalExpr(ctx, opts, e)
	if err != nil {
		return "", err
	}
	s, ok := v.(value.String)
	if !ok {
		return "", errNeedStr(loc, v.Kind())
	}
	return string(s), nil
}

// evalPatchOps is the first patch phase: evaluate every operation against
// the pre-patch state. Values are cloned so later mutation of the target
// cannot reach through aliases into the inputs.
func evalPatchOps(ctx *Ctx, opts ExecOpts, ops []PatchOp) ([]evaluatedPatchOp, error) {
	evaluated := make([]evaluatedPatchOp, 0, len(ops))
	for i := range ops {
		op := &ops[i]
		ev := evaluatedPatchOp{loc: op.Loc, kind: op.Kind}
		switch op.Kind {
		case PatchInsert, PatchUpdate, PatchUpsert:
			key, err := evalPatchIdent(ctx, opts, op.Loc, op.Key)
			if err != nil {
				return nil, err
			}
			v, err := evalExpr(ctx, opts, op.Value)
			if err != nil {
				return nil, err
			}
			ev.key = key
			ev.val = value.Clone(v)
		case PatchErase:
			key, err := evalPatchIdent(ctx, opts, op.Loc, op.Key)
			if err != nil {
				return nil, err
			}
			ev.key = key
		case PatchCopy, PatchMove:
			from, err := evalPatchIdent(ctx, opts, op.Loc, op.From)
			if err != nil {
				return nil, err
			}
			to, err := evalPatchIdent(ctx, opts, op.Loc, op.To)
			if err != nil {
				return nil, err
			}
			ev.from = from
			ev.to = to
		case PatchMerge:
			key, err := evalPatchIdent(ctx, opts, op.Loc, op.Key)
			if err != nil {
				return nil, err
			}
			v, err := evalExpr(ctx, opts, op.Value)
			if err != nil {
				return nil, err
			}
			ev.key = key
			ev.val = value.Clone(v)
		case PatchMergeRecord:
			v, err := evalExpr(ctx, opts, op.Value)
			if err != nil {
				return nil, err
			}
			ev.val = value.Clone(v)
		case PatchDefault:
			key, err := evalPatchIdent(ctx, opts, op.Loc, op.Key)
			if err != nil {
				return nil, err
			}
			ev.key = key
			// The default value stays unevaluated until the key is known
			// to be missing.
			ev.expr = op.Value
		case PatchDefaultRecord:
			ev.expr = op.Value
		}
		evaluated = append(evaluated, ev)
	}
	return evaluated, nil
}

// patchValue is the second patch phase: apply the pre-evaluated operations
// sequentially to target, which the caller already owns. The returned value
// replaces target (merge-record can swap the whole root).
func patchValue(ctx *Ctx, opts ExecOpts, loc Location, target value.Value, evaluated []evaluatedPatchOp) (value.Value, error) {
	for i := range evaluated {
		op := &evaluated[i]
		obj, ok := target.(value.Object)
		if !ok {
			return nil, errNeedObj(loc, target.Kind())
		}
		switch op.kind {
		case PatchInsert:
			if _, ok := obj[op.key]; ok {
				return nil, errPatchKeyExists(op.loc, op.key)
			}
			obj[op.key] = op.val
		case PatchUpdate:
			if _, ok := obj[op.key]; !ok {
				return nil, errPatchKeyMissing(op.loc, op.key)
			}
			obj[op.key] = op.val
		case PatchUpsert:
			obj[op.key] = op.val
		case PatchErase:
			delete(obj, op.key)
		case PatchCopy:
			if _, ok := obj[op.to]; ok {
				return nil, errPatchKeyExists(op.loc, op.to)
			}
			if old, ok := obj[op.from]; ok {
				obj[op.to] = value.Clone(old)
			}
		case PatchMove:
			if _, ok := obj[op.to]; ok {
				return nil, errPatchKeyExists(op.loc, op.to)
			}
			if old, ok := obj[op.from]; ok {
				delete(obj, op.from)
				obj[op.to] = old
			}
		case PatchMerge:
			switch cur := obj[op.key].(type) {
			case value.Object:
				obj[op.key] = mergeValues(cur, op.val)
			case nil:
				obj[op.key] = mergeValues(value.Object{}, op.val)
			default:
				return nil, errPatchMergeTypeConflict(op.loc, op.key, cur.Kind())
			}
		case PatchMergeRecord:
			target = mergeValues(target, op.val)
		case PatchDefault:
			if _, ok := obj[op.key]; !ok {
				v, err := evalExpr(ctx, opts, op.expr)
				if err != nil {
					return nil, err
				}
				obj[op.key] = value.Clone(v)
			}
		case PatchDefaultRecord:
			v, err := evalExpr(ctx, opts, op.expr)
			if err != nil {
				return nil, err
			}
			dflt, ok := v.(value.Object)
			if !ok {
				return nil, errNeedObj(op.loc, v.Kind())
			}
			applyDefault(obj, dflt)
		}
	}
	return target, nil
}
