// Package value implements the dynamic value model shared by the script
// interpreter and the connector runtime.
//
// Value is a sealed interface: only Null, Bool, Int, Uint, Float, String,
// Bytes, Array, and Object implement it. Values decoded from an event are
// borrowed for the duration of one evaluation; anything written into the
// persistent state root must be promoted to an owned form via Clone.
package value

import (
	"math"
)

// Value is the sealed interface over all dynamic value variants.
type Value interface {
	value() // sealed
	Kind() Kind
}

// Kind identifies the variant of a Value.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindInt
	KindUint
	KindFloat
	KindString
	KindBytes
	KindArray
	KindObject
)

// String returns the kind name as used in error messages.
func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindInt:
		return "integer"
	case KindUint:
		return "integer"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	case KindBytes:
		return "bytes"
	case KindArray:
		return "array"
	case KindObject:
		return "object"
	default:
		return "unknown"
	}
}

// Null represents the null value.
type Null struct{}

// Bool represents a boolean value.
type Bool bool

// Int represents a signed 64-bit integer value.
type Int int64

// Uint represents an unsigned 64-bit integer value.
// Decoded numbers use Int where they fit; Uint covers the range above
// math.MaxInt64 and results of unsigned arithmetic.
type Uint uint64

// Float represents a 64-bit floating point value.
type Float float64

// String represents a string value.
type String string

// Bytes represents a raw byte-string value.
type Bytes []byte

// Array represents an array of values.
type Array []Value

// Object represents a map of string keys to values.
// Keys are unique by construction.
type Object map[string]Value

func (Null) value()   {}
func (Bool) value()   {}
func (Int) value()    {}
func (Uint) value()   {}
func (Float) value()  {}
func (String) value() {}
func (Bytes) value()  {}
func (Array) value()  {}
func (Object) value() {}

func (Null) Kind() Kind   { return KindNull }
func (Bool) Kind() Kind   { return KindBool }
func (Int) Kind() Kind    { return KindInt }
func (Uint) Kind() Kind   { return KindUint }
func (Float) Kind() Kind  { return KindFloat }
func (String) Kind() Kind { return KindString }
func (Bytes) Kind() Kind  { return KindBytes }
func (Array) Kind() Kind  { return KindArray }
func (Object) Kind() Kind { return KindObject }

// True, False and NullV are the shared constant values the interpreter
// hands out for boolean and null results.
var (
	True  = Bool(true)
	False = Bool(false)
	NullV = Null{}
)

// FromBool returns the shared boolean constant for b.
func FromBool(b bool) Value {
	if b {
		return True
	}
	return False
}

// AsUint reports v as a uint64 if it is an integer representable as one.
// Floats never qualify, matching the numeric dispatch ladder.
func AsUint(v Value) (uint64, bool) {
	switch n := v.(type) {
	case Uint:
		return uint64(n), true
	case Int:
		if n >= 0 {
			return uint64(n), true
		}
	}
	return 0, false
}

// AsInt reports v as an int64 if it is an integer representable as one.
func AsInt(v Value) (int64, bool) {
	switch n := v.(type) {
	case Int:
		return int64(n), true
	case Uint:
		if uint64(n) <= math.MaxInt64 {
			return int64(n), true
		}
	}
	return 0, false
}

// CastFloat reports v as a float64 if it is any numeric value,
// promoting integers.
func CastFloat(v Value) (float64, bool) {
	switch n := v.(type) {
	case Float:
		return float64(n), true
	case Int:
		return float64(n), true
	case Uint:
		return float64(n), true
	}
	return 0, false
}

// AsFloat reports v as a float64 only if it is a Float.
func AsFloat(v Value) (float64, bool) {
	if f, ok := v.(Float); ok {
		return float64(f), true
	}
	return 0, false
}

// AsBool reports v as a bool only if it is a Bool.
func AsBool(v Value) (bool, bool) {
	if b, ok := v.(Bool); ok {
		return bool(b), true
	}
	return false, false
}

// AsIndex reports v as a non-negative array index.
// The second result distinguishes "integer but negative" (false, true)
// from "not an integer at all" (false, false).
func AsIndex(v Value) (idx int, ok bool, isInt bool) {
	switch n := v.(type) {
	case Int:
		if n >= 0 && uint64(n) <= math.MaxInt {
			return int(n), true, true
		}
		return 0, false, true
	case Uint:
		if uint64(n) <= math.MaxInt {
			return int(n), true, true
		}
		return 0, false, true
	}
	return 0, false, false
}

// epsilon is the absolute tolerance used for float equality.
// This is an absolute rather than relative tolerance; scripts depend on
// the exact behavior, so it stays as-is.
const epsilon = 2.220446049250313e-16

// Eq implements structural value equality.
//
// Objects are equal iff they share the same key set and all values are
// recursively equal; arrays iff same length and pairwise equal. Strings and
// byte-strings are cross-comparable. Numeric equality tries unsigned, then
// signed, then float comparison within epsilon.
func Eq(lhs, rhs Value) bool {
	switch l := lhs.(type) {
	case Object:
		r, ok := rhs.(Object)
		if !ok || len(l) != len(r) {
			return false
		}
		for k, lv := range l {
			rv, ok := r[k]
			if !ok || !Eq(lv, rv) {
				return false
			}
		}
		return true
	case Array:
		r, ok := rhs.(Array)
		if !ok || len(l) != len(r) {
			return false
		}
		for i, lv := range l {
			if !Eq(lv, r[i]) {
				return false
			}
		}
		return true
	case Bool:
		r, ok := rhs.(Bool)
		return ok && l == r
	case Null:
		_, ok := rhs.(Null)
		return ok
	case String:
		switch r := rhs.(type) {
		case String:
			return l == r
		case Bytes:
			return string(l) == string(r)
		}
		return numEq(lhs, rhs)
	case Bytes:
		switch r := rhs.(type) {
		case Bytes:
			return string(l) == string(r)
		case String:
			return string(l) == string(r)
		}
		return numEq(lhs, rhs)
	default:
		return numEq(lhs, rhs)
	}
}

func numEq(lhs, rhs Value) bool {
	if l, ok := AsUint(lhs); ok {
		if r, ok := AsUint(rhs); ok {
			return l == r
		}
	}
	if l, ok := AsInt(lhs); ok {
		if r, ok := AsInt(rhs); ok {
			return l == r
		}
	}
	if l, ok := CastFloat(lhs); ok {
		if r, ok := CastFloat(rhs); ok {
			return math.Abs(l-r) < epsilon
		}
	}
	return false
}

// Clone returns a deep copy of v with no aliasing into the original.
// Assigning into the state root clones so state never retains references
// into the outgoing event.
func Clone(v Value) Value {
	switch t := v.(type) {
	case Array:
		out := make(Array, len(t))
		for i, e := range t {
			out[i] = Clone(e)
		}
		return out
	case Object:
		out := make(Object, len(t))
		for k, e := range t {
			out[k] = Clone(e)
		}
		return out
	case Bytes:
		out := make(Bytes, len(t))
		copy(out, t)
		return out
	case nil:
		return NullV
	default:
		// scalars are immutable
		return v
	}
}

// Keys returns the object's keys in unspecified order.
// Used for BadKey error reporting.
func (o Object) Keys() []string {
	keys := make([]string, 0, len(o))
	for k := range o {
		keys = append(keys, k)
	}
	return keys
}
