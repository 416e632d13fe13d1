package builtin

import (
	"math"

	"github.com/gogpu/fxc/fixed"
)

// routine is one entry of the implementation surface scanned by Build.
// The symbol encodes the callable name and, for overload families, the
// arity; singleton routines declare the arity explicitly.
type routine struct {
	symbol string
	arity  int
	impl   Func
}

// surface is the fixed implementation surface. Order here is irrelevant:
// Build sorts by symbol before assigning ids, which is what keeps id
// assignment stable when routines are added or removed around existing
// ones only at the naming level.
var surface = []routine{
	{"fx_abs", 1, fxAbs},
	{"fx_acos", 1, unaryDomain(math.Acos, func(f float64) bool { return f >= -1 && f <= 1 })},
	{"fx_asin", 1, unaryDomain(math.Asin, func(f float64) bool { return f >= -1 && f <= 1 })},
	{"fx_atan1", 0, unary(math.Atan)},
	{"fx_atan2", 0, binary(math.Atan2)},
	{"fx_ceil", 1, fxCeil},
	{"fx_clamp", 3, fxClamp},
	{"fx_cos", 1, unary(math.Cos)},
	{"fx_cosh", 1, unary(math.Cosh)},
	{"fx_div", 2, fxDiv},
	{"fx_exp", 1, unary(math.Exp)},
	{"fx_floor", 1, fxFloor},
	{"fx_fract", 1, fxFract},
	{"fx_hash1", 0, fxHash1},
	{"fx_hash2", 0, fxHash2},
	{"fx_hash3", 0, fxHash3},
	{"fx_invsqrt", 1, fxInvSqrt},
	{"fx_log", 1, fxLog},
	{"fx_max", 2, fxMax},
	{"fx_min", 2, fxMin},
	{"fx_mix", 3, fxMix},
	{"fx_mod", 2, fxMod},
	{"fx_noise1", 0, fxNoise1},
	{"fx_noise2", 0, fxNoise2},
	{"fx_noise3", 0, fxNoise3},
	{"fx_pow", 2, fxPow},
	{"fx_sign", 1, fxSign},
	{"fx_sin", 1, unary(math.Sin)},
	{"fx_sinh", 1, unary(math.Sinh)},
	{"fx_smoothstep", 3, fxSmoothstep},
	{"fx_sqrt", 1, fxSqrt},
	{"fx_step", 2, fxStep},
	{"fx_tan", 1, unary(math.Tan)},
	{"fx_tanh", 1, unary(math.Tanh)},
	{"fx_worley2", 0, fxWorley2},
	{"fx_worley3", 0, fxWorley3},
}

func q(a int32) fixed.Q    { return fixed.Q(a) }
func ret(v fixed.Q) int32  { return int32(v) }
func f64(a int32) float64  { return fixed.Q(a).Float() }
func retF(f float64) int32 { return int32(fixed.FromFloat(f)) }

// unary wraps a float kernel as a Q16.16 routine with saturation on the
// way back.
func unary(fn func(float64) float64) Func {
	return func(args []int32) (int32, error) {
		return retF(fn(f64(args[0]))), nil
	}
}

// unaryDomain is unary with a domain predicate; inputs outside the domain
// trap rather than producing NaN-derived garbage.
func unaryDomain(fn func(float64) float64, ok func(float64) bool) Func {
	return func(args []int32) (int32, error) {
		x := f64(args[0])
		if !ok(x) {
			return 0, ErrDomain
		}
		return retF(fn(x)), nil
	}
}

func binary(fn func(a, b float64) float64) Func {
	return func(args []int32) (int32, error) {
		return retF(fn(f64(args[0]), f64(args[1]))), nil
	}
}

func fxAbs(args []int32) (int32, error)   { return ret(fixed.Abs(q(args[0]))), nil }
func fxFloor(args []int32) (int32, error) { return ret(fixed.Floor(q(args[0]))), nil }
func fxCeil(args []int32) (int32, error)  { return ret(fixed.Ceil(q(args[0]))), nil }
func fxFract(args []int32) (int32, error) { return ret(fixed.Fract(q(args[0]))), nil }

func fxDiv(args []int32) (int32, error) {
	if args[1] == 0 {
		return 0, ErrDivZero
	}
	return ret(fixed.Div(q(args[0]), q(args[1]))), nil
}

func fxSqrt(args []int32) (int32, error) {
	if args[0] < 0 {
		return 0, ErrDomain
	}
	return retF(math.Sqrt(f64(args[0]))), nil
}

func fxInvSqrt(args []int32) (int32, error) {
	if args[0] <= 0 {
		return 0, ErrDomain
	}
	return retF(1 / math.Sqrt(f64(args[0]))), nil
}

func fxLog(args []int32) (int32, error) {
	if args[0] <= 0 {
		return 0, ErrDomain
	}
	return retF(math.Log(f64(args[0]))), nil
}

func fxPow(args []int32) (int32, error) {
	base, exp := f64(args[0]), f64(args[1])
	if base < 0 {
		return 0, ErrDomain
	}
	if base == 0 {
		if exp <= 0 {
			return 0, ErrDomain
		}
		return 0, nil
	}
	return retF(math.Pow(base, exp)), nil
}

func fxMin(args []int32) (int32, error) {
	if args[0] < args[1] {
		return args[0], nil
	}
	return args[1], nil
}

func fxMax(args []int32) (int32, error) {
	if args[0] > args[1] {
		return args[0], nil
	}
	return args[1], nil
}

func fxClamp(args []int32) (int32, error) {
	v, lo, hi := args[0], args[1], args[2]
	if v < lo {
		v = lo
	}
	if v > hi {
		v = hi
	}
	return v, nil
}

func fxMix(args []int32) (int32, error) {
	a, b, t := q(args[0]), q(args[1]), q(args[2])
	return ret(fixed.Add(a, fixed.Mul(fixed.Sub(b, a), t))), nil
}

func fxStep(args []int32) (int32, error) {
	if args[1] < args[0] {
		return 0, nil
	}
	return int32(fixed.One), nil
}

func fxSmoothstep(args []int32) (int32, error) {
	edge0, edge1, x := q(args[0]), q(args[1]), q(args[2])
	if edge0 == edge1 {
		return 0, ErrDomain
	}
	t := fixed.Div(fixed.Sub(x, edge0), fixed.Sub(edge1, edge0))
	if t < 0 {
		t = 0
	}
	if t > fixed.One {
		t = fixed.One
	}
	// t*t*(3 - 2*t)
	three := fixed.FromInt(3)
	two := fixed.FromInt(2)
	return ret(fixed.Mul(fixed.Mul(t, t), fixed.Sub(three, fixed.Mul(two, t)))), nil
}

func fxSign(args []int32) (int32, error) {
	switch {
	case args[0] > 0:
		return int32(fixed.One), nil
	case args[0] < 0:
		return -int32(fixed.One), nil
	}
	return 0, nil
}

// fxMod implements GLSL mod: x - y*floor(x/y), result has the sign of y.
func fxMod(args []int32) (int32, error) {
	x, y := q(args[0]), q(args[1])
	if y == 0 {
		return 0, ErrDivZero
	}
	return ret(fixed.Sub(x, fixed.Mul(y, fixed.Floor(fixed.Div(x, y))))), nil
}
