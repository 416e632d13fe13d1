package fixed

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromFloat(t *testing.T) {
	assert.Equal(t, One, FromFloat(1.0))
	assert.Equal(t, Q(32768), FromFloat(0.5))
	assert.Equal(t, Q(-16384), FromFloat(-0.25))
	assert.Equal(t, Q(0), FromFloat(0))

	// Rounds to nearest, not toward zero.
	assert.Equal(t, Q(1), FromFloat(1.0/65536))
	assert.Equal(t, Q(1), FromFloat(1.4/65536))
	assert.Equal(t, Q(-1), FromFloat(-1.4/65536))

	// Out-of-range values clamp.
	assert.Equal(t, Max, FromFloat(40000.0))
	assert.Equal(t, Min, FromFloat(-40000.0))
}

func TestFromInt(t *testing.T) {
	assert.Equal(t, One, FromInt(1))
	assert.Equal(t, Q(-3<<Shift), FromInt(-3))
	assert.Equal(t, Max, FromInt(40000))
	assert.Equal(t, Min, FromInt(-40000))
}

func TestIntTruncatesDown(t *testing.T) {
	assert.Equal(t, int32(1), FromFloat(1.5).Int())
	assert.Equal(t, int32(-2), FromFloat(-1.5).Int())
	assert.Equal(t, int32(0), FromFloat(0.99).Int())
}

func TestSaturatingArithmetic(t *testing.T) {
	assert.Equal(t, Max, Add(Max, One))
	assert.Equal(t, Min, Sub(Min, One))
	assert.Equal(t, Max, Add(FromInt(30000), FromInt(30000)))
	assert.Equal(t, Min, Sub(FromInt(-30000), FromInt(30000)))
	assert.Equal(t, Max, Mul(FromInt(1000), FromInt(1000)))
	assert.Equal(t, Min, Mul(FromInt(1000), FromInt(-1000)))
	assert.Equal(t, Max, Neg(Min))
	assert.Equal(t, Min+1, Neg(Max))
}

func TestMulDiv(t *testing.T) {
	half := FromFloat(0.5)
	assert.Equal(t, FromFloat(0.25), Mul(half, half))
	assert.Equal(t, FromInt(6), Mul(FromInt(2), FromInt(3)))
	assert.Equal(t, half, Div(One, FromInt(2)))
	assert.Equal(t, FromInt(-3), Div(FromInt(6), FromInt(-2)))

	// Division by zero saturates toward the dividend's sign; the
	// compiled form tests the divisor and traps before getting here.
	assert.Equal(t, Max, Div(One, 0))
	assert.Equal(t, Min, Div(-One, 0))
}

func TestFloorCeilFract(t *testing.T) {
	assert.Equal(t, One, Floor(FromFloat(1.5)))
	assert.Equal(t, FromInt(-2), Floor(FromFloat(-1.5)))
	assert.Equal(t, FromInt(2), Ceil(FromFloat(1.25)))
	assert.Equal(t, -One, Ceil(FromFloat(-1.5)))
	assert.Equal(t, FromInt(3), Ceil(FromInt(3)))

	// Fract is always in [0, 1), including for negatives.
	assert.Equal(t, FromFloat(0.5), Fract(FromFloat(2.5)))
	assert.Equal(t, FromFloat(0.25), Fract(FromFloat(-1.75)))
	assert.Equal(t, Q(0), Fract(FromInt(-4)))
}

func TestAbs(t *testing.T) {
	assert.Equal(t, FromFloat(1.5), Abs(FromFloat(-1.5)))
	assert.Equal(t, FromFloat(1.5), Abs(FromFloat(1.5)))
	assert.Equal(t, Max, Abs(Min))
}
