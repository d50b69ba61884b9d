package script

import (
	"math"

	"github.com/quellstream/quell/internal/value"
)

// execBinary dispatches a binary operator over two values. Dispatch order
// matters: equality first, then boolean logic, then string/bytes forms,
// then the numeric ladder (unsigned, signed, float).
func execBinary(loc Location, op BinOp, lhs, rhs value.Value) (value.Value, error) {
	switch op {
	case OpEq:
		return value.FromBool(value.Eq(lhs, rhs)), nil
	case OpNotEq:
		return value.FromBool(!value.Eq(lhs, rhs)), nil
	}

	if lb, ok := value.AsBool(lhs); ok {
		if rb, ok := value.AsBool(rhs); ok {
			return execBoolBinary(loc, op, lb, rb, lhs, rhs)
		}
	}

	if ls, lok := rawBytes(lhs); lok {
		if rs, rok := rawBytes(rhs); rok {
			return execBytesBinary(loc, op, ls, rs, lhs, rhs)
		}
	}

	return execNumericBinary(loc, op, lhs, rhs)
}

func execBoolBinary(loc Location, op BinOp, l, r bool, lhs, rhs value.Value) (value.Value, error) {
	switch op {
	case OpAnd, OpBitAnd:
		return value.FromBool(l && r), nil
	case OpOr, OpBitOr:
		return value.FromBool(l || r), nil
	case OpXor, OpBitXor:
		return value.FromBool(l != r), nil
	}
	return nil, errInvalidBinary(loc, op, lhs, rhs)
}

// rawBytes exposes string and bytes values through one byte view so the
// cross-type comparisons below need a single code path.
func rawBytes(v value.Value) ([]byte, bool) {
	switch t := v.(type) {
	case value.String:
		return []byte(t), true
	case value.Bytes:
		return []byte(t), true
	}
	return nil, false
}

func execBytesBinary(loc Location, op BinOp, l, r []byte, lhs, rhs value.Value) (value.Value, error) {
	switch op {
	case OpGt:
		return value.FromBool(bytesCompare(l, r) > 0), nil
	case OpGte:
		return value.FromBool(bytesCompare(l, r) >= 0), nil
	case OpLt:
		return value.FromBool(bytesCompare(l, r) < 0), nil
	case OpLte:
		return value.FromBool(bytesCompare(l, r) <= 0), nil
	case OpAdd:
		ls, lok := lhs.(value.String)
		rs, rok := rhs.(value.String)
		if lok && rok {
			return ls + rs, nil
		}
	}
	return nil, errInvalidBinary(loc, op, lhs, rhs)
}

func bytesCompare(a, b []byte) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	switch {
	case len(a) < len(b):
		return -1
	case len(a) > len(b):
		return 1
	}
	return 0
}

func execNumericBinary(loc Location, op BinOp, lhs, rhs value.Value) (value.Value, error) {
	// Two unsigned operands stay unsigned.
	if lu, ok := value.AsUint(lhs); ok {
		if ru, ok := value.AsUint(rhs); ok {
			return execUintBinary(loc, op, uint64(lu), uint64(ru), lhs, rhs)
		}
	}
	// Any signed operand demotes to signed.
	if li, ok := value.AsInt(lhs); ok {
		if ri, ok := value.AsInt(rhs); ok {
			return execIntBinary(loc, op, int64(li), int64(ri), lhs, rhs)
		}
	}
	// Any float operand promotes to float.
	if lf, ok := value.CastFloat(lhs); ok {
		if rf, ok := value.CastFloat(rhs); ok {
			return execFloatBinary(loc, op, float64(lf), float64(rf), lhs, rhs)
		}
	}
	return nil, errInvalidBinary(loc, op, lhs, rhs)
}

func execUintBinary(loc Location, op BinOp, l, r uint64, lhs, rhs value.Value) (value.Value, error) {
	switch op {
	case OpBitAnd:
		return value.Uint(l & r), nil
	case OpBitOr:
		return value.Uint(l | r), nil
	case OpBitXor:
		return value.Uint(l ^ r), nil
	case OpGt:
		return value.FromBool(l > r), nil
	case OpGte:
		return value.FromBool(l >= r), nil
	case OpLt:
		return value.FromBool(l < r), nil
	case OpLte:
		return value.FromBool(l <= r), nil
	case OpAdd:
		return value.Uint(l + r), nil
	case OpSub:
		if r <= l {
			return value.Uint(l - r), nil
		}
		// Underflow yields a negative result when it fits in a signed
		// integer; anything wider is an error.
		d := r - l
		if d > uint64(math.MaxInt64) {
			return nil, errInvalidBinary(loc, op, lhs, rhs)
		}
		return value.Int(-int64(d)), nil
	case OpMul:
		return value.Uint(l * r), nil
	case OpDiv:
		return value.Float(float64(l) / float64(r)), nil
	case OpMod:
		if r == 0 {
			return nil, errInvalidBinary(loc, op, lhs, rhs)
		}
		return value.Uint(l % r), nil
	case OpLBitShift:
		if r >= 64 {
			return nil, errInvalidBitshift(loc)
		}
		return value.Uint(l << r), nil
	case OpRBitShiftSigned:
		if r >= 64 {
			return nil, errInvalidBitshift(loc)
		}
		return value.Uint(l >> r), nil
	case OpRBitShiftUnsigned:
		if r >= 64 {
			return nil, errInvalidBitshift(loc)
		}
		return value.Int(int64(l >> r)), nil
	}
	return nil, errInvalidBinary(loc, op, lhs, rhs)
}

func execIntBinary(loc Location, op BinOp, l, r int64, lhs, rhs value.Value) (value.Value, error) {
	switch op {
	case OpBitAnd:
		return value.Int(l & r), nil
	case OpBitOr:
		return value.Int(l | r), nil
	case OpBitXor:
		return value.Int(l ^ r), nil
	case OpGt:
		return value.FromBool(l > r), nil
	case OpGte:
		return value.FromBool(l >= r), nil
	case OpLt:
		return value.FromBool(l < r), nil
	case OpLte:
		return value.FromBool(l <= r), nil
	case OpAdd:
		return value.Int(l + r), nil
	case OpSub:
		return value.Int(l - r), nil
	case OpMul:
		return value.Int(l * r), nil
	case OpDiv:
		return value.Float(float64(l) / float64(r)), nil
	case OpMod:
		if r == 0 {
			return nil, errInvalidBinary(loc, op, lhs, rhs)
		}
		return value.Int(l % r), nil
	case OpLBitShift:
		if r < 0 || r >= 64 {
			return nil, errInvalidBitshift(loc)
		}
		return value.Int(l << uint64(r)), nil
	case OpRBitShiftSigned:
		if r < 0 || r >= 64 {
			return nil, errInvalidBitshift(loc)
		}
		return value.Int(l >> uint64(r)), nil
	case OpRBitShiftUnsigned:
		if r < 0 || r >= 64 {
			return nil, errInvalidBitshift(loc)
		}
		return value.Int(int64(uint64(l) >> uint64(r))), nil
	}
	return nil, errInvalidBinary(loc, op, lhs, rhs)
}

func execFloatBinary(loc Location, op BinOp, l, r float64, lhs, rhs value.Value) (value.Value, error) {
	switch op {
	case OpGt:
		return value.FromBool(l > r), nil
	case OpGte:
		return value.FromBool(l >= r), nil
	case OpLt:
		return value.FromBool(l < r), nil
	case OpLte:
		return value.FromBool(l <= r), nil
	case OpAdd:
		return value.Float(l + r), nil
	case OpSub:
		return value.Float(l - r), nil
	case OpMul:
		return value.Float(l * r), nil
	case OpDiv:
		return value.Float(l / r), nil
	}
	return nil, errInvalidBinary(loc, op, lhs, rhs)
}

// execUnary dispatches a unary operator. Floats are checked first so that
// a float operand never falls through to the integer forms.
func execUnary(loc Location, op UnaryOp, v value.Value) (value.Value, error) {
	if f, ok := value.AsFloat(v); ok {
		switch op {
		case OpMinus:
			return value.Float(-f), nil
		case OpPlus:
			return value.Float(f), nil
		}
		return nil, errInvalidUnary(loc, op, v)
	}
	if u, ok := value.AsUint(v); ok {
		switch op {
		case OpMinus:
			if u <= uint64(math.MaxInt64) {
				return value.Int(-int64(u)), nil
			}
		case OpPlus:
			return value.Uint(u), nil
		case OpBitNot:
			return value.Uint(^u), nil
		}
		return nil, errInvalidUnary(loc, op, v)
	}
	if i, ok := value.AsInt(v); ok {
		switch op {
		case OpMinus:
			if i != math.MinInt64 {
				return value.Int(-i), nil
			}
		case OpPlus:
			return value.Int(i), nil
		case OpBitNot:
			return value.Int(^i), nil
		}
		return nil, errInvalidUnary(loc, op, v)
	}
	if b, ok := value.AsBool(v); ok {
		switch op {
		case OpNot, OpBitNot:
			return value.FromBool(!b), nil
		}
	}
	return nil, errInvalidUnary(loc, op, v)
}
