package emu

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gogpu/fxc/builtin"
	"github.com/gogpu/fxc/fixed"
	"github.com/gogpu/fxc/fixedpt"
	"github.com/gogpu/fxc/fxsl"
	"github.com/gogpu/fxc/ir"
	"github.com/gogpu/fxc/lower"
	"github.com/gogpu/fxc/rv32"
	"github.com/gogpu/fxc/sem"
)

// run compiles source through the whole pipeline and executes fn.
func run(t *testing.T, source, fn string, args ...int32) (int32, error) {
	t.Helper()
	reg := builtin.Build()

	ast, err := fxsl.Parse(source)
	require.NoError(t, err)
	prog, err := sem.AnalyzeSource(ast, source, reg)
	require.NoError(t, err)
	ssa := lower.Lower(prog)
	require.NoError(t, fixedpt.Rewrite(ssa, reg))
	mod, err := rv32.Emit(ssa, reg)
	require.NoError(t, err)

	return New(mod, reg).Call(fn, args...)
}

func mustRun(t *testing.T, source, fn string, args ...int32) int32 {
	t.Helper()
	v, err := run(t, source, fn, args...)
	require.NoError(t, err)
	return v
}

func TestArithmetic(t *testing.T) {
	tests := []struct {
		name   string
		source string
		args   []int32
		want   int32
	}{
		{
			name:   "int add",
			source: `int f(int a, int b) { return a + b; }`,
			args:   []int32{3, 4},
			want:   7,
		},
		{
			name:   "int precedence",
			source: `int f(int a) { return 2 + a * 3; }`,
			args:   []int32{5},
			want:   17,
		},
		{
			name:   "signed division",
			source: `int f(int a, int b) { return a / b; }`,
			args:   []int32{-7, 2},
			want:   -3,
		},
		{
			name:   "modulo",
			source: `int f(int a) { return a % 3; }`,
			args:   []int32{10},
			want:   1,
		},
		{
			name:   "unsigned shift",
			source: `uint f(uint a) { return a >> 1u; }`,
			args:   []int32{-2}, // 0xFFFFFFFE
			want:   0x7FFFFFFF,
		},
		{
			name:   "bitwise",
			source: `int f(int a, int b) { return (a & b) | (a ^ b); }`,
			args:   []int32{0b1100, 0b1010},
			want:   0b1110,
		},
		{
			name:   "float add",
			source: `float f(float a, float b) { return a + b; }`,
			args:   []int32{int32(fixed.FromFloat(1.5)), int32(fixed.FromFloat(2.25))},
			want:   int32(fixed.FromFloat(3.75)),
		},
		{
			name:   "float mul",
			source: `float f(float a, float b) { return a * b; }`,
			args:   []int32{int32(fixed.FromFloat(0.5)), int32(fixed.FromFloat(3.0))},
			want:   int32(fixed.FromFloat(1.5)),
		},
		{
			name:   "float div",
			source: `float f(float a, float b) { return a / b; }`,
			args:   []int32{int32(fixed.FromFloat(3.0)), int32(fixed.FromFloat(2.0))},
			want:   int32(fixed.FromFloat(1.5)),
		},
		{
			name:   "negation",
			source: `float f(float a) { return -a; }`,
			args:   []int32{int32(fixed.FromFloat(2.5))},
			want:   int32(fixed.FromFloat(-2.5)),
		},
		{
			name:   "int to float conversion",
			source: `float f(int a) { return float(a) * 0.5; }`,
			args:   []int32{5},
			want:   int32(fixed.FromFloat(2.5)),
		},
		{
			name:   "float to int truncates",
			source: `int f(float a) { return int(a); }`,
			args:   []int32{int32(fixed.FromFloat(3.75))},
			want:   3,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, mustRun(t, tt.source, "f", tt.args...))
		})
	}
}

func TestSaturation(t *testing.T) {
	// 30000 + 30000 overflows 15.17 headroom and must clamp, not wrap.
	got := mustRun(t,
		`float f(float a, float b) { return a + b; }`, "f",
		int32(fixed.FromFloat(30000)), int32(fixed.FromFloat(30000)))
	assert.Equal(t, int32(fixed.Max), got)

	got = mustRun(t,
		`float f(float a, float b) { return a - b; }`, "f",
		int32(fixed.FromFloat(-30000)), int32(fixed.FromFloat(30000)))
	assert.Equal(t, int32(fixed.Min), got)

	got = mustRun(t,
		`float f(float a, float b) { return a * b; }`, "f",
		int32(fixed.FromFloat(1000)), int32(fixed.FromFloat(1000)))
	assert.Equal(t, int32(fixed.Max), got)

	got = mustRun(t, `float f(float a) { return -a; }`, "f", int32(fixed.Min))
	assert.Equal(t, int32(fixed.Max), got)
}

func TestControlFlow(t *testing.T) {
	t.Run("for loop sums", func(t *testing.T) {
		src := `
			int f() {
				int s = 0;
				for (int i = 0; i < 5; i++) {
					s += i;
				}
				return s;
			}`
		assert.Equal(t, int32(10), mustRun(t, src, "f"))
	})

	t.Run("do-while runs body first", func(t *testing.T) {
		src := `
			int f() {
				int s = 0;
				int i = 1;
				do {
					s += i;
					i++;
				} while (i <= 3);
				return s;
			}`
		assert.Equal(t, int32(6), mustRun(t, src, "f"))
	})

	t.Run("while with break and continue", func(t *testing.T) {
		src := `
			int f() {
				int s = 0;
				int i = 0;
				while (true) {
					i++;
					if (i > 10) { break; }
					if (i % 2 == 0) { continue; }
					s += i;
				}
				return s;
			}`
		assert.Equal(t, int32(25), mustRun(t, src, "f"))
	})

	t.Run("if else chains", func(t *testing.T) {
		src := `
			int f(int x) {
				if (x < 0) { return -1; }
				else if (x == 0) { return 0; }
				return 1;
			}`
		assert.Equal(t, int32(-1), mustRun(t, src, "f", -5))
		assert.Equal(t, int32(0), mustRun(t, src, "f", 0))
		assert.Equal(t, int32(1), mustRun(t, src, "f", 7))
	})

	t.Run("ternary", func(t *testing.T) {
		src := `int f(int a, int b) { return a > b ? a : b; }`
		assert.Equal(t, int32(9), mustRun(t, src, "f", 9, 2))
		assert.Equal(t, int32(9), mustRun(t, src, "f", 2, 9))
	})

	t.Run("short circuit skips divide", func(t *testing.T) {
		src := `int f(int d) { return (d != 0 && 10 / d > 1) ? 1 : 0; }`
		assert.Equal(t, int32(0), mustRun(t, src, "f", 0))
		assert.Equal(t, int32(1), mustRun(t, src, "f", 4))
	})

	t.Run("nested loops", func(t *testing.T) {
		src := `
			int f() {
				int s = 0;
				for (int i = 0; i < 3; i++) {
					for (int j = 0; j < 3; j++) {
						s += i * j;
					}
				}
				return s;
			}`
		assert.Equal(t, int32(9), mustRun(t, src, "f"))
	})
}

func TestVectorsAndMatrices(t *testing.T) {
	t.Run("dot product via components", func(t *testing.T) {
		src := `
			float f(float ax, float ay, float bx, float by) {
				vec2 a = vec2(ax, ay);
				vec2 b = vec2(bx, by);
				return a.x * b.x + a.y * b.y;
			}`
		got := mustRun(t, src, "f",
			int32(fixed.FromFloat(1)), int32(fixed.FromFloat(2)),
			int32(fixed.FromFloat(3)), int32(fixed.FromFloat(4)))
		assert.Equal(t, int32(fixed.FromFloat(11)), got)
	})

	t.Run("component-wise vector add", func(t *testing.T) {
		src := `
			float f(float a, float b) {
				vec3 v = vec3(a) + vec3(b, 0.0, 1.0);
				return v.x + v.y + v.z;
			}`
		got := mustRun(t, src, "f",
			int32(fixed.FromFloat(1)), int32(fixed.FromFloat(2)))
		assert.Equal(t, int32(fixed.FromFloat(6)), got)
	})

	t.Run("matrix vector product", func(t *testing.T) {
		// Column-major: mat2(a, b, c, d) has columns (a,b) and (c,d),
		// so it maps (1, 0) to (a, b).
		src := `
			float f(float x, float y) {
				mat2 m = mat2(2.0, 0.0, 0.0, 3.0);
				vec2 v = m * vec2(x, y);
				return v.x + v.y;
			}`
		got := mustRun(t, src, "f",
			int32(fixed.FromFloat(1)), int32(fixed.FromFloat(1)))
		assert.Equal(t, int32(fixed.FromFloat(5)), got)
	})

	t.Run("identity constructor", func(t *testing.T) {
		src := `
			float f(float x, float y, float z) {
				mat3 m = mat3(1.0);
				vec3 v = m * vec3(x, y, z);
				return v.x + v.y + v.z;
			}`
		got := mustRun(t, src, "f",
			int32(fixed.FromFloat(1)), int32(fixed.FromFloat(2)), int32(fixed.FromFloat(3)))
		assert.Equal(t, int32(fixed.FromFloat(6)), got)
	})
}

func TestArrays(t *testing.T) {
	t.Run("store and load", func(t *testing.T) {
		src := `
			int f(int i) {
				int a[4];
				for (int k = 0; k < 4; k++) { a[k] = k * k; }
				return a[i];
			}`
		assert.Equal(t, int32(9), mustRun(t, src, "f", 3))
		assert.Equal(t, int32(0), mustRun(t, src, "f", 0))
	})

	t.Run("dynamic vector index", func(t *testing.T) {
		src := `
			float f(int i) {
				vec3 v = vec3(1.0, 2.0, 3.0);
				return v[i];
			}`
		assert.Equal(t, int32(fixed.FromFloat(2)), mustRun(t, src, "f", 1))
	})

	t.Run("dynamic vector write", func(t *testing.T) {
		src := `
			float f(int i, float x) {
				vec3 v = vec3(0.0);
				v[i] = x;
				return v.x + v.y + v.z;
			}`
		got := mustRun(t, src, "f", 2, int32(fixed.FromFloat(7)))
		assert.Equal(t, int32(fixed.FromFloat(7)), got)
	})
}

func TestStructsAndCalls(t *testing.T) {
	t.Run("struct member access", func(t *testing.T) {
		src := `
			struct Ray { vec2 origin; vec2 dir; };
			float f(float ox, float dy) {
				Ray r;
				r.origin = vec2(ox, 0.0);
				r.dir = vec2(0.0, dy);
				return r.origin.x + r.dir.y;
			}`
		got := mustRun(t, src, "f",
			int32(fixed.FromFloat(3)), int32(fixed.FromFloat(4)))
		assert.Equal(t, int32(fixed.FromFloat(7)), got)
	})

	t.Run("user function call", func(t *testing.T) {
		src := `
			float dot2(vec2 a, vec2 b) { return a.x * b.x + a.y * b.y; }
			float f(float x) {
				vec2 v = vec2(x, 2.0);
				return dot2(v, v);
			}`
		got := mustRun(t, src, "f", int32(fixed.FromFloat(1)))
		assert.Equal(t, int32(fixed.FromFloat(5)), got)
	})

	t.Run("recursion-free call chain", func(t *testing.T) {
		src := `
			int double_(int x) { return x * 2; }
			int quad(int x) { return double_(double_(x)); }
			int f(int x) { return quad(x) + 1; }`
		assert.Equal(t, int32(13), mustRun(t, src, "f", 3))
	})

	t.Run("global constant inlined", func(t *testing.T) {
		src := `
			const float scale_ = 2.0 * 1.5;
			float f(float x) { return x * scale_; }`
		got := mustRun(t, src, "f", int32(fixed.FromFloat(4)))
		assert.Equal(t, int32(fixed.FromFloat(12)), got)
	})
}

func TestBuiltins(t *testing.T) {
	t.Run("sqrt of four", func(t *testing.T) {
		src := `float f(float x) { return sqrt(x); }`
		got := mustRun(t, src, "f", int32(fixed.FromFloat(4)))
		assert.InDelta(t, int32(fixed.FromFloat(2)), got, 1)
	})

	t.Run("abs and min and max", func(t *testing.T) {
		src := `float f(float x) { return max(abs(x), min(x, 1.0)); }`
		got := mustRun(t, src, "f", int32(fixed.FromFloat(-3)))
		assert.Equal(t, int32(fixed.FromFloat(3)), got)
	})

	t.Run("vector builtin scalarized", func(t *testing.T) {
		src := `
			float f(float x) {
				vec2 v = abs(vec2(x, -x));
				return v.x + v.y;
			}`
		got := mustRun(t, src, "f", int32(fixed.FromFloat(-2)))
		assert.Equal(t, int32(fixed.FromFloat(4)), got)
	})

	t.Run("overloads resolve by argument count", func(t *testing.T) {
		// atan(y, x) and atan(y/x) are distinct routines of the same
		// family; at (1, 1) both come out as pi/4.
		src := `float f(float x, float y) { return atan(y, x) - atan(y / x); }`
		got := mustRun(t, src, "f", int32(fixed.One), int32(fixed.One))
		assert.InDelta(t, 0, got, 2)
	})

	t.Run("hash family", func(t *testing.T) {
		src := `
			float f(float x, float y) {
				return hash(x) + hash(x, y) + hash(x, y, x);
			}`
		got := mustRun(t, src, "f", int32(fixed.FromFloat(0.5)), int32(fixed.FromFloat(0.25)))
		// Three values in [0, 1) each.
		assert.GreaterOrEqual(t, got, int32(0))
		assert.Less(t, got, int32(3*fixed.One))
	})
}

func TestTraps(t *testing.T) {
	trapCode := func(t *testing.T, src string, args ...int32) int {
		t.Helper()
		_, err := run(t, src, "f", args...)
		var te *TrapError
		require.ErrorAs(t, err, &te)
		return te.Code
	}

	t.Run("constant index out of bounds", func(t *testing.T) {
		src := `
			float f() {
				vec3 v = vec3(1.0);
				return v[5];
			}`
		assert.Equal(t, ir.TrapBounds, trapCode(t, src))
	})

	t.Run("dynamic index out of bounds", func(t *testing.T) {
		src := `
			int f(int i) {
				int a[4];
				a[0] = 1;
				return a[i];
			}`
		assert.Equal(t, ir.TrapBounds, trapCode(t, src, 4))
		_, err := run(t, src, "f", 3)
		assert.NoError(t, err)
	})

	t.Run("negative index out of bounds", func(t *testing.T) {
		src := `
			int f(int i) {
				int a[4];
				a[0] = 1;
				return a[i];
			}`
		assert.Equal(t, ir.TrapBounds, trapCode(t, src, -1))
	})

	t.Run("integer division by zero", func(t *testing.T) {
		src := `int f(int a, int b) { return a / b; }`
		assert.Equal(t, ir.TrapDivZero, trapCode(t, src, 1, 0))
	})

	t.Run("integer modulo by zero", func(t *testing.T) {
		src := `int f(int a, int b) { return a % b; }`
		assert.Equal(t, ir.TrapDivZero, trapCode(t, src, 1, 0))
	})

	t.Run("float division by zero", func(t *testing.T) {
		src := `float f(float a, float b) { return a / b; }`
		assert.Equal(t, ir.TrapDivZero, trapCode(t, src, int32(fixed.One), 0))
	})

	t.Run("sqrt of negative", func(t *testing.T) {
		src := `float f(float x) { return sqrt(x); }`
		assert.Equal(t, ir.TrapDomain, trapCode(t, src, int32(fixed.FromFloat(-1))))
	})

	t.Run("missing return", func(t *testing.T) {
		src := `
			int f(int x) {
				if (x > 0) { return 1; }
			}`
		assert.Equal(t, ir.TrapUnreachable, trapCode(t, src, -1))
		v, err := run(t, src, "f", 1)
		require.NoError(t, err)
		assert.Equal(t, int32(1), v)
	})
}

func TestRoutineTrapReportsCallSite(t *testing.T) {
	// A trap inside a numeric routine points at the jalr that called
	// it, not at the routine's dispatch window address.
	src := `float f(float x) { return sqrt(x); }`
	reg := builtin.Build()

	ast, err := fxsl.Parse(src)
	require.NoError(t, err)
	prog, err := sem.AnalyzeSource(ast, src, reg)
	require.NoError(t, err)
	ssa := lower.Lower(prog)
	require.NoError(t, fixedpt.Rewrite(ssa, reg))
	mod, err := rv32.Emit(ssa, reg)
	require.NoError(t, err)

	_, err = New(mod, reg).Call("f", int32(fixed.FromFloat(-1)))
	var te *TrapError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, ir.TrapDomain, te.Code)
	assert.GreaterOrEqual(t, te.PC, uint32(CodeBase))
	assert.Less(t, te.PC, uint32(CodeBase+len(mod.Code)))
}

func TestStepLimit(t *testing.T) {
	src := `
		int f() {
			int s = 0;
			while (true) { s++; }
			return s;
		}`
	reg := builtin.Build()
	ast, err := fxsl.Parse(src)
	require.NoError(t, err)
	prog, err := sem.AnalyzeSource(ast, src, reg)
	require.NoError(t, err)
	ssa := lower.Lower(prog)
	require.NoError(t, fixedpt.Rewrite(ssa, reg))
	mod, err := rv32.Emit(ssa, reg)
	require.NoError(t, err)

	m := New(mod, reg)
	m.StepLimit = 10_000
	_, err = m.Call("f")
	assert.ErrorIs(t, err, ErrStepLimit)
}

func TestCallErrors(t *testing.T) {
	src := `int f(int a, int b) { return a + b; }`
	reg := builtin.Build()
	ast, err := fxsl.Parse(src)
	require.NoError(t, err)
	prog, err := sem.AnalyzeSource(ast, src, reg)
	require.NoError(t, err)
	ssa := lower.Lower(prog)
	require.NoError(t, fixedpt.Rewrite(ssa, reg))
	mod, err := rv32.Emit(ssa, reg)
	require.NoError(t, err)
	m := New(mod, reg)

	_, err = m.Call("g")
	assert.ErrorContains(t, err, `no function "g"`)
	_, err = m.Call("f", 1)
	assert.ErrorContains(t, err, "takes 2 arguments")
}
