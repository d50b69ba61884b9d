package script

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quellstream/quell/internal/value"
)

func TestExecBinary_Equality(t *testing.T) {
	got, err := execBinary(Location{}, OpEq, value.String("x"), value.Bytes("x"))
	require.NoError(t, err)
	assert.Equal(t, value.True, got)

	got, err = execBinary(Location{}, OpNotEq, value.Int(1), value.Float(2))
	require.NoError(t, err)
	assert.Equal(t, value.True, got)

	// Equality never type-errors, even across unrelated types.
	got, err = execBinary(Location{}, OpEq, value.True, value.Array{})
	require.NoError(t, err)
	assert.Equal(t, value.False, got)
}

func TestExecBinary_Bool(t *testing.T) {
	got, err := execBinary(Location{}, OpAnd, value.True, value.False)
	require.NoError(t, err)
	assert.Equal(t, value.False, got)

	got, err = execBinary(Location{}, OpXor, value.True, value.False)
	require.NoError(t, err)
	assert.Equal(t, value.True, got)

	// Bit aliases work on booleans.
	got, err = execBinary(Location{}, OpBitOr, value.False, value.True)
	require.NoError(t, err)
	assert.Equal(t, value.True, got)

	_, err = execBinary(Location{}, OpLt, value.True, value.False)
	assert.Equal(t, ErrInvalidBinary, CodeOf(err))
}

func TestExecBinary_Strings(t *testing.T) {
	got, err := execBinary(Location{}, OpAdd, value.String("foo"), value.String("bar"))
	require.NoError(t, err)
	assert.Equal(t, value.String("foobar"), got)

	got, err = execBinary(Location{}, OpLt, value.String("abc"), value.String("abd"))
	require.NoError(t, err)
	assert.Equal(t, value.True, got)

	// Bytes and strings share one ordering.
	got, err = execBinary(Location{}, OpGte, value.Bytes("b"), value.String("a"))
	require.NoError(t, err)
	assert.Equal(t, value.True, got)

	// Concatenation is strings-only.
	_, err = execBinary(Location{}, OpAdd, value.Bytes("a"), value.Bytes("b"))
	assert.Equal(t, ErrInvalidBinary, CodeOf(err))
}

func TestExecBinary_UnsignedSub(t *testing.T) {
	// 3u - 5u crosses zero and lands in signed territory.
	got, err := execBinary(Location{}, OpSub, value.Uint(3), value.Uint(5))
	require.NoError(t, err)
	assert.Equal(t, value.Int(-2), got)

	// The negated difference must fit a signed integer.
	_, err = execBinary(Location{}, OpSub, value.Uint(0), value.Uint(math.MaxUint64))
	assert.Equal(t, ErrInvalidBinary, CodeOf(err))

	got, err = execBinary(Location{}, OpSub, value.Uint(5), value.Uint(3))
	require.NoError(t, err)
	assert.Equal(t, value.Uint(2), got)
}

func TestExecBinary_DivPromotesToFloat(t *testing.T) {
	got, err := execBinary(Location{}, OpDiv, value.Uint(7), value.Uint(2))
	require.NoError(t, err)
	assert.Equal(t, value.Float(3.5), got)

	got, err = execBinary(Location{}, OpDiv, value.Int(-7), value.Int(2))
	require.NoError(t, err)
	assert.Equal(t, value.Float(-3.5), got)
}

func TestExecBinary_NumericLadder(t *testing.T) {
	// Unsigned stays unsigned.
	got, err := execBinary(Location{}, OpAdd, value.Uint(1), value.Uint(2))
	require.NoError(t, err)
	assert.Equal(t, value.Uint(3), got)

	// A signed operand demotes the pair.
	got, err = execBinary(Location{}, OpAdd, value.Int(-1), value.Uint(2))
	require.NoError(t, err)
	assert.Equal(t, value.Int(1), got)

	// A float operand promotes the pair.
	got, err = execBinary(Location{}, OpAdd, value.Int(1), value.Float(0.5))
	require.NoError(t, err)
	assert.Equal(t, value.Float(1.5), got)

	// No bit operations on floats.
	_, err = execBinary(Location{}, OpBitAnd, value.Float(1), value.Float(2))
	assert.Equal(t, ErrInvalidBinary, CodeOf(err))

	// No modulo on floats.
	_, err = execBinary(Location{}, OpMod, value.Float(1), value.Float(2))
	assert.Equal(t, ErrInvalidBinary, CodeOf(err))
}

func TestExecBinary_Shifts(t *testing.T) {
	got, err := execBinary(Location{}, OpLBitShift, value.Int(1), value.Int(4))
	require.NoError(t, err)
	assert.Equal(t, value.Int(16), got)

	got, err = execBinary(Location{}, OpRBitShiftSigned, value.Int(-8), value.Int(1))
	require.NoError(t, err)
	assert.Equal(t, value.Int(-4), got)

	// Unsigned shift works on the bit pattern.
	got, err = execBinary(Location{}, OpRBitShiftUnsigned, value.Int(-1), value.Int(1))
	require.NoError(t, err)
	assert.Equal(t, value.Int(math.MaxInt64), got)

	_, err = execBinary(Location{}, OpLBitShift, value.Int(1), value.Int(64))
	assert.Equal(t, ErrInvalidBitshift, CodeOf(err))

	_, err = execBinary(Location{}, OpRBitShiftSigned, value.Uint(1), value.Uint(300))
	assert.Equal(t, ErrInvalidBitshift, CodeOf(err))
}

func TestExecUnary(t *testing.T) {
	got, err := execUnary(Location{}, OpMinus, value.Float(1.5))
	require.NoError(t, err)
	assert.Equal(t, value.Float(-1.5), got)

	// Unsigned negation lands in signed territory.
	got, err = execUnary(Location{}, OpMinus, value.Uint(3))
	require.NoError(t, err)
	assert.Equal(t, value.Int(-3), got)

	// ...unless there is no fitting signed representation.
	_, err = execUnary(Location{}, OpMinus, value.Uint(math.MaxUint64))
	assert.Equal(t, ErrInvalidUnary, CodeOf(err))

	// Negative ints are the only ones the signed branch sees.
	got, err = execUnary(Location{}, OpBitNot, value.Int(-1))
	require.NoError(t, err)
	assert.Equal(t, value.Int(0), got)

	got, err = execUnary(Location{}, OpNot, value.True)
	require.NoError(t, err)
	assert.Equal(t, value.False, got)

	_, err = execUnary(Location{}, OpNot, value.String("x"))
	assert.Equal(t, ErrInvalidUnary, CodeOf(err))
}

func TestExecUnary_NonNegativeIntIsUnsigned(t *testing.T) {
	// The representation ladder coerces: a non-negative Int takes the
	// unsigned forms, so complement widens to the full u64 word.
	got, err := execUnary(Location{}, OpBitNot, value.Int(5))
	require.NoError(t, err)
	assert.Equal(t, value.Uint(0xfffffffffffffffa), got)

	got, err = execUnary(Location{}, OpMinus, value.Int(5))
	require.NoError(t, err)
	assert.Equal(t, value.Int(-5), got)

	got, err = execUnary(Location{}, OpPlus, value.Int(5))
	require.NoError(t, err)
	assert.Equal(t, value.Uint(5), got)

	got, err = execUnary(Location{}, OpBitNot, value.Uint(5))
	require.NoError(t, err)
	assert.Equal(t, value.Uint(0xfffffffffffffffa), got)

	_, err = execUnary(Location{}, OpMinus, value.Int(math.MinInt64))
	assert.Equal(t, ErrInvalidUnary, CodeOf(err))
}
