package script

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/quellstream/quell/internal/value"
)

// ErrorCode categorizes interpreter runtime errors.
type ErrorCode string

const (
	// ErrNeedsObject indicates a path segment or operation required an object.
	ErrNeedsObject ErrorCode = "NEEDS_OBJECT"
	// ErrNeedsArray indicates a path segment required an array.
	ErrNeedsArray ErrorCode = "NEEDS_ARRAY"
	// ErrNeedsString indicates a computed key was not a string.
	ErrNeedsString ErrorCode = "NEEDS_STRING"
	// ErrNeedsInt indicates a computed index was not an integer.
	ErrNeedsInt ErrorCode = "NEEDS_INT"
	// ErrBadKey indicates a key lookup failed; Options lists available keys.
	ErrBadKey ErrorCode = "BAD_KEY"
	// ErrArrayOutOfBound indicates an index or range outside the array.
	ErrArrayOutOfBound ErrorCode = "ARRAY_OUT_OF_BOUND"
	// ErrDecreasingRange indicates a range with end < start.
	ErrDecreasingRange ErrorCode = "DECREASING_RANGE"
	// ErrInvalidBinary indicates a binary operator applied to unsupported operands.
	ErrInvalidBinary ErrorCode = "INVALID_BINARY"
	// ErrInvalidBitshift indicates a shift by an out-of-range amount.
	ErrInvalidBitshift ErrorCode = "INVALID_BITSHIFT"
	// ErrInvalidUnary indicates a unary operator applied to an unsupported operand.
	ErrInvalidUnary ErrorCode = "INVALID_UNARY"
	// ErrGuardNotBool indicates a guard expression evaluated to a non-boolean.
	ErrGuardNotBool ErrorCode = "GUARD_NOT_BOOL"
	// ErrNoClauseHit indicates no match clause matched and no default exists.
	ErrNoClauseHit ErrorCode = "NO_CLAUSE_HIT"
	// ErrAssignToConst indicates assignment to a constant or reserved root.
	ErrAssignToConst ErrorCode = "ASSIGN_TO_CONST"
	// ErrInvalidAssignTarget indicates assignment to a non-assignable root.
	ErrInvalidAssignTarget ErrorCode = "INVALID_ASSIGN_TARGET"
	// ErrCannotAssignArray indicates assignment through an index/range segment.
	ErrCannotAssignArray ErrorCode = "CANNOT_ASSIGN_ARRAY"
	// ErrPatchKeyExists indicates insert/copy/move onto an existing key.
	ErrPatchKeyExists ErrorCode = "PATCH_KEY_EXISTS"
	// ErrPatchKeyMissing indicates update of an absent key.
	ErrPatchKeyMissing ErrorCode = "PATCH_KEY_MISSING"
	// ErrPatchMergeTypeConflict indicates merge into a non-object value.
	ErrPatchMergeTypeConflict ErrorCode = "PATCH_MERGE_TYPE_CONFLICT"
	// ErrRecursionLimit indicates the function recursion depth was exceeded.
	ErrRecursionLimit ErrorCode = "RECURSION_LIMIT"
	// ErrOops indicates an internal invariant violation (compiler/runtime bug).
	// Always fatal, never user-recoverable. Oops carries the stable code.
	ErrOops ErrorCode = "OOPS"
)

// Error is the typed interpreter runtime error. It is always surfaced to
// the script's caller; the interpreter never recovers silently.
type Error struct {
	Code    ErrorCode
	Message string

	// Loc is the source location of the failing expression, when known.
	Loc Location

	// Key and Options carry BAD_KEY context (requested key, available keys).
	Key     string
	Options []string

	// Start, End and Len carry ARRAY_OUT_OF_BOUND / DECREASING_RANGE context.
	Start int
	End   int
	Len   int

	// Oops is the stable numeric code for internal invariant violations.
	Oops uint32
}

// Location is a line/column pair assigned by the compile stage.
// The zero value means "unknown".
type Location struct {
	Line   int
	Column int
}

func (l Location) known() bool { return l.Line != 0 }

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Code))
	b.WriteString(": ")
	b.WriteString(e.Message)
	if e.Loc.known() {
		fmt.Fprintf(&b, " (line %d, column %d)", e.Loc.Line, e.Loc.Column)
	}
	return b.String()
}

// CodeOf returns the error code of err if it is (or wraps) an interpreter
// Error, or "" otherwise.
func CodeOf(err error) ErrorCode {
	var se *Error
	if errors.As(err, &se) {
		return se.Code
	}
	return ""
}

// IsFatal reports whether err signals a runtime bug rather than a script
// error. Oops-class errors must never be treated as recoverable.
func IsFatal(err error) bool {
	return CodeOf(err) == ErrOops
}

func errNeedObj(loc Location, got value.Kind) *Error {
	return &Error{
		Code:    ErrNeedsObject,
		Message: fmt.Sprintf("expected type object but found %s", got),
		Loc:     loc,
	}
}

func errNeedArr(loc Location, got value.Kind) *Error {
	return &Error{
		Code:    ErrNeedsArray,
		Message: fmt.Sprintf("expected type array but found %s", got),
		Loc:     loc,
	}
}

func errNeedStr(loc Location, got value.Kind) *Error {
	return &Error{
		Code:    ErrNeedsString,
		Message: fmt.Sprintf("expected type string but found %s", got),
		Loc:     loc,
	}
}

func errNeedInt(loc Location, got value.Kind) *Error {
	return &Error{
		Code:    ErrNeedsInt,
		Message: fmt.Sprintf("expected type integer but found %s", got),
		Loc:     loc,
	}
}

func errBadKey(loc Location, key string, options []string) *Error {
	sorted := make([]string, len(options))
	copy(sorted, options)
	sort.Strings(sorted)
	return &Error{
		Code:    ErrBadKey,
		Message: fmt.Sprintf("key %q not found, available: %s", key, strings.Join(sorted, ", ")),
		Loc:     loc,
		Key:     key,
		Options: sorted,
	}
}

func errOutOfBound(loc Location, start, end, length int) *Error {
	return &Error{
		Code:    ErrArrayOutOfBound,
		Message: fmt.Sprintf("index range %d..%d out of bounds for array of length %d", start, end, length),
		Loc:     loc,
		Start:   start,
		End:     end,
		Len:     length,
	}
}

func errDecreasingRange(loc Location, start, end int) *Error {
	return &Error{
		Code:    ErrDecreasingRange,
		Message: fmt.Sprintf("range end %d is smaller than range start %d", end, start),
		Loc:     loc,
		Start:   start,
		End:     end,
	}
}

func errInvalidBinary(loc Location, op BinOp, lhs, rhs value.Value) *Error {
	return &Error{
		Code:    ErrInvalidBinary,
		Message: fmt.Sprintf("operator %s is not defined for %s and %s", op, lhs.Kind(), rhs.Kind()),
		Loc:     loc,
	}
}

func errInvalidBitshift(loc Location) *Error {
	return &Error{
		Code:    ErrInvalidBitshift,
		Message: "invalid bit shift amount",
		Loc:     loc,
	}
}

func errInvalidUnary(loc Location, op UnaryOp, v value.Value) *Error {
	return &Error{
		Code:    ErrInvalidUnary,
		Message: fmt.Sprintf("operator %s is not defined for %s", op, v.Kind()),
		Loc:     loc,
	}
}

func errGuardNotBool(loc Location, got value.Value) *Error {
	return &Error{
		Code:    ErrGuardNotBool,
		Message: fmt.Sprintf("guard expression must evaluate to a boolean, got %s", got.Kind()),
		Loc:     loc,
	}
}

func errNoClauseHit(loc Location) *Error {
	return &Error{
		Code:    ErrNoClauseHit,
		Message: "no match clause matched and no default clause given",
		Loc:     loc,
	}
}

func errAssignToConst(loc Location, name string) *Error {
	return &Error{
		Code:    ErrAssignToConst,
		Message: fmt.Sprintf("cannot assign to constant %q", name),
		Loc:     loc,
		Key:     name,
	}
}

func errInvalidAssignTarget(loc Location) *Error {
	return &Error{
		Code:    ErrInvalidAssignTarget,
		Message: "invalid assignment target",
		Loc:     loc,
	}
}

func errAssignArray(loc Location) *Error {
	return &Error{
		Code:    ErrCannotAssignArray,
		Message: "cannot assign through an array index or range",
		Loc:     loc,
	}
}

func errPatchKeyExists(loc Location, key string) *Error {
	return &Error{
		Code:    ErrPatchKeyExists,
		Message: fmt.Sprintf("key %q already exists", key),
		Loc:     loc,
		Key:     key,
	}
}

func errPatchKeyMissing(loc Location, key string) *Error {
	return &Error{
		Code:    ErrPatchKeyMissing,
		Message: fmt.Sprintf("key %q does not exist", key),
		Loc:     loc,
		Key:     key,
	}
}

func errPatchMergeTypeConflict(loc Location, key string, got value.Kind) *Error {
	return &Error{
		Code:    ErrPatchMergeTypeConflict,
		Message: fmt.Sprintf("cannot merge into %q: expected object, found %s", key, got),
		Loc:     loc,
		Key:     key,
	}
}

func errRecursionLimit(loc Location, limit uint32) *Error {
	return &Error{
		Code:    ErrRecursionLimit,
		Message: fmt.Sprintf("recursion limit of %d reached", limit),
		Loc:     loc,
	}
}

// errOops signals a broken runtime invariant. The numeric code is stable
// across releases so bug reports can be correlated.
func errOops(loc Location, code uint32, msg string) *Error {
	return &Error{
		Code:    ErrOops,
		Message: fmt.Sprintf("internal error %#08x: %s", code, msg),
		Loc:     loc,
		Oops:    code,
	}
}
