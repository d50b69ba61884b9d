package script

import (
	"github.com/quellstream/quell/internal/value"
)

// Pattern is a compiled match pattern.
type Pattern interface {
	patternForm()
}

// PatDoNotCare always matches.
type PatDoNotCare struct{}

// PatDefault always matches; used as the final catch-all clause.
type PatDefault struct{}

// PatExpr matches by structural equality against an expression result.
type PatExpr struct {
	Expr Expr
}

// PatExtract matches when an extractor accepts the target.
type PatExtract struct {
	Extractor Extractor
}

// PatRecord matches objects field-predicate by field-predicate.
type PatRecord struct {
	RP *RecordPattern
}

// PatArray matches arrays with per-element exists quantification.
type PatArray struct {
	AP *ArrayPattern
}

// PatTuple matches arrays positionally.
type PatTuple struct {
	TP *TuplePattern
}

// PatAssign wraps a sub-pattern and binds the matched or captured value to
// a local slot before the guard runs.
type PatAssign struct {
	Loc     Location
	Idx     int
	Pattern Pattern
}

func (*PatDoNotCare) patternForm() {}
func (*PatDefault) patternForm()   {}
func (*PatExpr) patternForm()      {}
func (*PatExtract) patternForm()   {}
func (*PatRecord) patternForm()    {}
func (*PatArray) patternForm()     {}
func (*PatTuple) patternForm()     {}
func (*PatAssign) patternForm()    {}

// Extractor is the external extraction capability used by `~` tests.
// When includeCapture is false the caller only cares about the boolean and
// the extractor may skip building the captured value.
type Extractor interface {
	Name() string
	Extract(target value.Value, includeCapture bool) (captured value.Value, matched bool)
}

// PredicateKind identifies a record-pattern field predicate.
type PredicateKind int

const (
	PredFieldPresent PredicateKind = iota
	PredFieldAbsent
	PredTildeEq
	PredBin
	PredRecordEq
	PredArrayEq
	PredTupleEq
)

// PredicatePattern is one field predicate of a record pattern.
type PredicatePattern struct {
	Loc  Location
	Kind PredicateKind
	Key  string

	Test   Extractor      // PredTildeEq
	Op     BinOp          // PredBin
	Rhs    Expr           // PredBin
	Record *RecordPattern // PredRecordEq
	Array  *ArrayPattern  // PredArrayEq
	Tuple  *TuplePattern  // PredTupleEq
}

// RecordPattern matches iff the target is an object containing at least all
// declared keys and every field predicate holds.
type RecordPattern struct {
	Fields []PredicatePattern
}

// ArrayPredicateKind identifies an array/tuple element predicate.
type ArrayPredicateKind int

const (
	APIgnore ArrayPredicateKind = iota
	APExpr
	APTilde
	APRecord
)

// ArrayPredicate is one element predicate of an array or tuple pattern.
type ArrayPredicate struct {
	Loc    Location
	Kind   ArrayPredicateKind
	Expr   Expr
	Test   Extractor
	Record *RecordPattern
}

// ArrayPattern matches iff the target is an array and each predicate is
// satisfied by at least one element, positions independent.
type ArrayPattern struct {
	Exprs []ArrayPredicate
}

// TuplePattern matches positionally. Open tuples allow extra trailing
// elements; closed tuples require exact length.
type TuplePattern struct {
	Open  bool
	Exprs []ArrayPredicate
}

// testGuard evaluates an optional guard expression to a boolean.
func testGuard(ctx *Ctx, opts ExecOpts, loc Location, guard Expr) (bool, error) {
	if guard == nil {
		return true, nil
	}
	v, err := evalExpr(ctx, opts, guard)
	if err != nil {
		return false, err
	}
	b, ok := value.AsBool(v)
	if !ok {
		return false, errGuardNotBool(loc, v)
	}
	return b, nil
}

// testPredicate checks a pattern against a target, running the guard only
// after a structural match. For assign patterns the matched value is bound
// before the guard so guards can reference it.
func testPredicate(ctx *Ctx, opts ExecOpts, loc Location, target value.Value, pattern Pattern, guard Expr) (bool, error) {
	switch p := pattern.(type) {
	case *PatDoNotCare:
		return testGuard(ctx, opts, loc, guard)
	case *PatDefault:
		return true, nil
	case *PatExpr:
		v, err := evalExpr(ctx, opts, p.Expr)
		if err != nil {
			return false, err
		}
		if !value.Eq(target, v) {
			return false, nil
		}
		return testGuard(ctx, opts, loc, guard)
	case *PatExtract:
		if _, ok := p.Extractor.Extract(target, false); !ok {
			return false, nil
		}
		return testGuard(ctx, opts, loc, guard)
	case *PatRecord:
		_, ok, err := matchRecord(ctx, opts.WithoutResult(), target, p.RP)
		if err != nil || !ok {
			return false, err
		}
		return testGuard(ctx, opts, loc, guard)
	case *PatArray:
		_, ok, err := matchArray(ctx, opts.WithoutResult(), target, p.AP)
		if err != nil || !ok {
			return false, err
		}
		return testGuard(ctx, opts, loc, guard)
	case *PatTuple:
		_, ok, err := matchTuple(ctx, opts.WithoutResult(), target, p.TP)
		if err != nil || !ok {
			return false, err
		}
		return testGuard(ctx, opts, loc, guard)
	case *PatAssign:
		return testAssign(ctx, opts, loc, target, p, guard)
	}
	return false, errOops(loc, oopsBadSegment, "unknown pattern")
}

func testAssign(ctx *Ctx, opts ExecOpts, loc Location, target value.Value, a *PatAssign, guard Expr) (bool, error) {
	var bound value.Value

	switch p := a.Pattern.(type) {
	case *PatDoNotCare:
		bound = value.Clone(target)
	case *PatExtract:
		v, ok := p.Extractor.Extract(target, true)
		if !ok {
			return false, nil
		}
		bound = v
	case *PatExpr:
		v, err := evalExpr(ctx, opts, p.Expr)
		if err != nil {
			return false, err
		}
		if !value.Eq(target, v) {
			return false, nil
		}
		bound = v
	case *PatRecord:
		v, ok, err := matchRecord(ctx, opts.WithResult(), target, p.RP)
		if err != nil || !ok {
			return false, err
		}
		bound = v
	case *PatArray:
		v, ok, err := matchArray(ctx, opts.WithResult(), target, p.AP)
		if err != nil || !ok {
			return false, err
		}
		bound = v
	case *PatTuple:
		v, ok, err := matchTuple(ctx, opts.WithResult(), target, p.TP)
		if err != nil || !ok {
			return false, err
		}
		bound = v
	case *PatAssign:
		return false, errOops(a.Loc, oopsNestedAssign, "nested assign pattern")
	case *PatDefault:
		return false, errOops(a.Loc, oopsDefaultAssign, "default in assign")
	default:
		return false, errOops(a.Loc, oopsBadSegment, "unknown pattern")
	}

	if err := setLocalShadow(ctx, a.Idx, a.Loc, bound); err != nil {
		return false, err
	}
	return testGuard(ctx, opts, loc, guard)
}

// matchRecord matches a record pattern. On a match with results requested it
// returns an object of the values captured per predicate key.
func matchRecord(ctx *Ctx, opts ExecOpts, target value.Value, rp *RecordPattern) (value.Value, bool, error) {
	record, ok := target.(value.Object)
	if !ok {
		return nil, false, nil
	}

	var acc value.Object
	if opts.ResultNeeded {
		acc = make(value.Object, len(rp.Fields))
	}

	for i := range rp.Fields {
		pp := &rp.Fields[i]
		switch pp.Kind {
		case PredFieldPresent:
			v, ok := record[pp.Key]
			if !ok {
				return nil, false, nil
			}
			if opts.ResultNeeded {
				acc[pp.Key] = value.Clone(v)
			}
		case PredFieldAbsent:
			if _, ok := record[pp.Key]; ok {
				return nil, false, nil
			}
		case PredTildeEq:
			testee, ok := record[pp.Key]
			if !ok {
				return nil, false, nil
			}
			x, matched := pp.Test.Extract(testee, opts.ResultNeeded)
			if !matched {
				return nil, false, nil
			}
			if opts.ResultNeeded {
				acc[pp.Key] = x
			}
		case PredBin:
			testee, ok := record[pp.Key]
			if !ok {
				return nil, false, nil
			}
			rhs, err := evalExpr(ctx, opts, pp.Rhs)
			if err != nil {
				return nil, false, err
			}
			r, err := execBinary(pp.Loc, pp.Op, testee, rhs)
			if err != nil {
				return nil, false, err
			}
			if b, ok := value.AsBool(r); !ok || !b {
				return nil, false, nil
			}
		case PredRecordEq:
			testee, ok := record[pp.Key]
			if !ok {
				return nil, false, nil
			}
			m, matched, err := matchRecord(ctx, opts, testee, pp.Record)
			if err != nil || !matched {
				return nil, false, err
			}
			if opts.ResultNeeded {
				acc[pp.Key] = m
			}
		case PredArrayEq:
			testee, ok := record[pp.Key]
			if !ok {
				return nil, false, nil
			}
			m, matched, err := matchArray(ctx, opts, testee, pp.Array)
			if err != nil || !matched {
				return nil, false, err
			}
			if opts.ResultNeeded {
				acc[pp.Key] = m
			}
		case PredTupleEq:
			testee, ok := record[pp.Key]
			if !ok {
				return nil, false, nil
			}
			m, matched, err := matchTuple(ctx, opts, testee, pp.Tuple)
			if err != nil || !matched {
				return nil, false, err
			}
			if opts.ResultNeeded {
				acc[pp.Key] = m
			}
		}
	}

	if acc == nil {
		acc = value.Object{}
	}
	return acc, true, nil
}

// matchArray matches an array pattern: each predicate must hold for at
// least one element, independent of position. With results requested the
// captured value is an array of [index, captured] pairs.
func matchArray(ctx *Ctx, opts ExecOpts, target value.Value, ap *ArrayPattern) (value.Value, bool, error) {
	arr, ok := target.(value.Array)
	if !ok {
		return nil, false, nil
	}
	// %[] matches any array.
	if len(ap.Exprs) == 0 {
		return value.Array{}, true, nil
	}

	var acc value.Array
	for i := range ap.Exprs {
		pred := &ap.Exprs[i]
		matched := false
		switch pred.Kind {
		case APIgnore:
			matched = len(arr) > 0
		case APExpr:
			for idx, candidate := range arr {
				r, err := evalExpr(ctx, opts, pred.Expr)
				if err != nil {
					return nil, false, err
				}
				if !value.Eq(candidate, r) {
					continue
				}
				matched = true
				if !opts.ResultNeeded {
					break
				}
				acc = append(acc, value.Array{value.Int(idx), r})
			}
		case APTilde:
			for idx, candidate := range arr {
				r, ok := pred.Test.Extract(candidate, opts.ResultNeeded)
				if !ok {
					continue
				}
				matched = true
				if !opts.ResultNeeded {
					break
				}
				acc = append(acc, value.Array{value.Int(idx), r})
			}
		case APRecord:
			for idx, candidate := range arr {
				r, ok, err := matchRecord(ctx, opts, candidate, pred.Record)
				if err != nil {
					return nil, false, err
				}
				if !ok {
					continue
				}
				matched = true
				if !opts.ResultNeeded {
					break
				}
				acc = append(acc, value.Array{value.Int(idx), r})
			}
		}
		if !matched {
			return nil, false, nil
		}
	}

	if acc == nil {
		acc = value.Array{}
	}
	return acc, true, nil
}

// matchTuple matches a tuple pattern positionally.
func matchTuple(ctx *Ctx, opts ExecOpts, target value.Value, tp *TuplePattern) (value.Value, bool, error) {
	arr, ok := target.(value.Array)
	if !ok {
		return nil, false, nil
	}
	if tp.Open && len(arr) < len(tp.Exprs) {
		return nil, false, nil
	}
	if !tp.Open && len(arr) != len(tp.Exprs) {
		return nil, false, nil
	}

	var acc value.Array
	if opts.ResultNeeded {
		acc = make(value.Array, 0, len(tp.Exprs))
	}
	for i := range tp.Exprs {
		pred := &tp.Exprs[i]
		candidate := arr[i]
		switch pred.Kind {
		case APIgnore:
			if opts.ResultNeeded {
				acc = append(acc, value.Clone(candidate))
			}
		case APExpr:
			r, err := evalExpr(ctx, opts, pred.Expr)
			if err != nil {
				return nil, false, err
			}
			if !value.Eq(candidate, r) {
				return nil, false, nil
			}
			if opts.ResultNeeded {
				acc = append(acc, r)
			}
		case APTilde:
			r, ok := pred.Test.Extract(candidate, opts.ResultNeeded)
			if !ok {
				return nil, false, nil
			}
			if opts.ResultNeeded {
				acc = append(acc, r)
			}
		case APRecord:
			r, ok, err := matchRecord(ctx, opts, candidate, pred.Record)
			if err != nil {
				return nil, false, err
			}
			if !ok {
				return nil, false, nil
			}
			if opts.ResultNeeded {
				acc = append(acc, r)
			}
		}
	}

	if acc == nil {
		acc = value.Array{}
	}
	return acc, true, nil
}
