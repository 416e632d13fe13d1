// Package fixed implements Q16.16 fixed-point arithmetic.
//
// A Q value is a 32-bit signed integer holding a real number scaled by
// 2^16: 16 integer bits and 16 fractional bits, covering roughly
// -32768.0 to 32767.99998 with a resolution of 1/65536. All arithmetic
// saturates: results beyond the representable range clamp to the boundary
// instead of wrapping. The same semantics are implemented by the code the
// rv32 backend emits, so host-side folding and target execution agree.
package fixed

import "math"

// Q is a Q16.16 fixed-point number.
type Q int32

// One is the fixed-point representation of 1.0.
const One Q = 1 << 16

// Shift is the number of fractional bits.
const Shift = 16

// Max and Min are the saturation boundaries (about ±32768.0).
const (
	Max Q = math.MaxInt32
	Min Q = math.MinInt32
)

// FromFloat converts a float to Q16.16, rounding to the nearest
// representable value and saturating at the boundaries.
func FromFloat(f float64) Q {
	scaled := math.Round(f * 65536)
	if scaled >= float64(Max) {
		return Max
	}
	if scaled <= float64(Min) {
		return Min
	}
	return Q(int32(scaled))
}

// FromInt converts an integer to Q16.16, saturating.
func FromInt(i int32) Q {
	return sat(int64(i) << Shift)
}

// Float converts q to a float64.
func (q Q) Float() float64 {
	return float64(q) / 65536
}

// Int truncates q toward negative infinity to an integer.
func (q Q) Int() int32 {
	return int32(q >> Shift)
}

// Add returns a+b with saturation.
func Add(a, b Q) Q {
	return sat(int64(a) + int64(b))
}

// Sub returns a-b with saturation.
func Sub(a, b Q) Q {
	return sat(int64(a) - int64(b))
}

// Neg returns -a with saturation (Min negates to Max).
func Neg(a Q) Q {
	if a == Min {
		return Max
	}
	return -a
}

// Mul returns a*b rescaled around the fixed point, with saturation. The
// product is computed at 64 bits so no intermediate overflow occurs.
func Mul(a, b Q) Q {
	return sat((int64(a) * int64(b)) >> Shift)
}

// Div returns a/b rescaled around the fixed point, with saturation.
// Division by zero saturates toward the sign of the dividend; callers that
// need a trap must test the divisor first (the compiled form does).
func Div(a, b Q) Q {
	if b == 0 {
		if a < 0 {
			return Min
		}
		return Max
	}
	return sat((int64(a) << Shift) / int64(b))
}

// Abs returns |a| with saturation.
func Abs(a Q) Q {
	if a < 0 {
		return Neg(a)
	}
	return a
}

// Floor rounds toward negative infinity to a whole number.
func Floor(a Q) Q {
	return a &^ (One - 1)
}

// Ceil rounds toward positive infinity to a whole number, saturating when
// the result is not representable.
func Ceil(a Q) Q {
	if Fract(a) == 0 {
		return a
	}
	return Add(Floor(a), One)
}

// Fract returns the fractional part, always in [0, 1).
func Fract(a Q) Q {
	return a & (One - 1)
}

func sat(v int64) Q {
	if v > int64(Max) {
		return Max
	}
	if v < int64(Min) {
		return Min
	}
	return Q(v)
}
