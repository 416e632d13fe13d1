package sem

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gogpu/fxc/builtin"
	"github.com/gogpu/fxc/fxsl"
)

func analyze(t *testing.T, source string) (*Program, error) {
	t.Helper()
	ast, err := fxsl.Parse(source)
	require.NoError(t, err, "parse")
	return AnalyzeSource(ast, source, builtin.Build())
}

func mustAnalyze(t *testing.T, source string) *Program {
	t.Helper()
	prog, err := analyze(t, source)
	require.NoError(t, err)
	return prog
}

func TestAnalyzeErrors(t *testing.T) {
	tests := []struct {
		name   string
		source string
		want   string
	}{
		{
			name:   "unknown identifier",
			source: `float f() { return missing; }`,
			want:   `unknown identifier "missing"`,
		},
		{
			name:   "type mismatch return",
			source: `int f() { return 1.5; }`,
			want:   "type mismatch: expected int, found float",
		},
		{
			name:   "array size not constant",
			source: `float f(int n) { float a[n]; return a[0]; }`,
			want:   "array size must be a constant integral expression",
		},
		{
			name:   "write to const",
			source: `float f() { const float x = 1.0; x = 2.0; return x; }`,
			want:   `cannot assign to constant "x"`,
		},
		{
			name:   "write to global const",
			source: "const float K = 2.0;\nfloat f() { K = 3.0; return K; }",
			want:   `cannot assign to global constant "K"`,
		},
		{
			name:   "const without initializer",
			source: `float f() { const float x; return x; }`,
			want:   `constant "x" declared without initializer`,
		},
		{
			name:   "const struct member",
			source: "struct S { const float x; };\nfloat f() { return 0.0; }",
			want:   `struct member "x" cannot be declared const`,
		},
		{
			name:   "mutable global",
			source: "float counter;\nfloat f() { return counter; }",
			want:   `global "counter" must be declared const`,
		},
		{
			name:   "global forward reference",
			source: "const float A = B + 1.0;\nconst float B = 2.0;\nfloat f() { return A; }",
			want:   `constant "A" references "B" before its declaration`,
		},
		{
			name:   "non-bool condition",
			source: `float f() { if (1) { return 1.0; } return 0.0; }`,
			want:   "type mismatch: expected bool, found int",
		},
		{
			name:   "break outside loop",
			source: `float f() { break; return 0.0; }`,
			want:   "break outside loop",
		},
		{
			name:   "unknown builtin arity",
			source: `float f() { return sqrt(1.0, 2.0); }`,
			want:   `builtin "sqrt" has no 2-argument form`,
		},
		{
			name:   "unknown function",
			source: `float f() { return nothing(1.0); }`,
			want:   `unknown identifier "nothing"`,
		},
		{
			name:   "bad swizzle",
			source: `float f() { vec2 v = vec2(1.0); return v.z; }`,
			want:   `unknown component "z" of vec2`,
		},
		{
			name:   "vector return type",
			source: `vec3 f() { return vec3(0.0); }`,
			want:   `function "f" must return a scalar or void`,
		},
		{
			name:   "array parameter",
			source: `float f(float a[4]) { return a[0]; }`,
			want:   `parameter "a" cannot be an array`,
		},
		{
			name:   "whole array assignment",
			source: `float f() { float a[2]; float b[2]; a = b; return a[0]; }`,
			want:   "arrays cannot be assigned as a whole",
		},
		{
			name:   "redeclared local",
			source: `float f() { float x = 1.0; float x = 2.0; return x; }`,
			want:   `variable "x" redeclared in this scope`,
		},
		{
			name:   "arity mismatch user function",
			source: "float g(float a, float b) { return a; }\nfloat f() { return g(1.0); }",
			want:   `function "g" expects 2 arguments, found 1`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := analyze(t, tt.source)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestAnalyzeGlobalConstFolding(t *testing.T) {
	prog := mustAnalyze(t, `
const int N = 4;
const float SCALE = 2.0 * 3.0;
const float DERIVED = SCALE + float(N);

float f() { return DERIVED; }
`)

	require.Len(t, prog.Consts, 3)
	assert.Equal(t, int64(4), prog.Consts[0].Value.Int())
	assert.Equal(t, 6.0, prog.Consts[1].Value.Float())
	assert.Equal(t, 10.0, prog.Consts[2].Value.Float())

	// The use site inlines the folded value; no reference survives.
	fn := prog.Lookup("f")
	require.NotNil(t, fn)
	ret := fn.Body[0].(*ReturnStmt)
	c, ok := ret.Value.(*Const)
	require.True(t, ok, "global const use should fold to a literal")
	assert.Equal(t, 10.0, c.Val.Float())
}

func TestAnalyzeImplicitPromotion(t *testing.T) {
	prog := mustAnalyze(t, `float f() { return 1 + 2.5; }`)
	fn := prog.Lookup("f")
	ret := fn.Body[0].(*ReturnStmt)
	bin := ret.Value.(*Binary)
	assert.Equal(t, KindFloat, bin.T.Kind)
	_, isConv := bin.L.(*Convert)
	assert.True(t, isConv, "int operand should convert to float")
}

func TestAnalyzeCompoundDesugar(t *testing.T) {
	prog := mustAnalyze(t, `float f() { float x = 1.0; x += 2.0; x++; return x; }`)
	fn := prog.Lookup("f")

	plusEq := fn.Body[1].(*AssignStmt)
	bin, ok := plusEq.Value.(*Binary)
	require.True(t, ok)
	assert.Equal(t, BinAdd, bin.Op)

	inc := fn.Body[2].(*AssignStmt)
	bin, ok = inc.Value.(*Binary)
	require.True(t, ok)
	assert.Equal(t, BinAdd, bin.Op)
	one, ok := bin.R.(*Convert)
	require.True(t, ok, "literal 1 converts to float for x++")
	assert.Equal(t, int64(1), one.X.(*Const).Val.Int())
}

func TestAnalyzeCallResolutionOrder(t *testing.T) {
	// A user function may not shadow a builtin; the registry wins.
	prog := mustAnalyze(t, `
float helper(float x) { return x; }
float f() { return fx_sqrt(4.0) + helper(1.0); }
`)
	fn := prog.Lookup("f")
	bin := fn.Body[0].(*ReturnStmt).Value.(*Binary)

	_, isBuiltin := bin.L.(*CallBuiltin)
	assert.True(t, isBuiltin)
	call, isCall := bin.R.(*Call)
	require.True(t, isCall)
	assert.Equal(t, "helper", call.Fn.Name)
}

func TestAnalyzeConstructorShapes(t *testing.T) {
	prog := mustAnalyze(t, `
float f() {
	vec3 a = vec3(1.0);
	vec3 b = vec3(1.0, 2.0, 3.0);
	vec4 c = vec4(a, 0.0);
	mat2 m = mat2(1.0);
	return b.y + c.w + m[0].x;
}
`)
	require.NotNil(t, prog.Lookup("f"))
}

func TestAnalyzeConstructorShapesVecOfVec(t *testing.T) {
	// vec4 from vec2 + two scalars flattens left to right.
	prog := mustAnalyze(t, `float f() { vec4 v = vec4(vec2(1.0, 2.0), 3.0, 4.0); return v.z; }`)
	require.NotNil(t, prog.Lookup("f"))

	_, err := analyze(t, `float f() { vec3 v = vec3(1.0, 2.0); return v.x; }`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "vec3 constructor requires 3 components, found 2")
}

func TestAnalyzeConstIndexRecorded(t *testing.T) {
	prog := mustAnalyze(t, `float f() { float a[4]; return a[2]; }`)
	fn := prog.Lookup("f")
	idx := fn.Body[1].(*ReturnStmt).Value.(*Index)
	require.NotNil(t, idx.Const)
	assert.Equal(t, 2, *idx.Const)

	// Out-of-range constant indices are not compile errors; the bounds
	// check fires at run time.
	prog = mustAnalyze(t, `float f() { vec3 v = vec3(0.0); return v[5]; }`)
	require.NotNil(t, prog.Lookup("f"))
}

func TestAnalyzeMatrixAlgebra(t *testing.T) {
	prog := mustAnalyze(t, `
float f() {
	mat3 m = mat3(2.0);
	vec3 v = vec3(1.0, 2.0, 3.0);
	vec3 mv = m * v;
	vec3 vm = v * m;
	mat3 mm = m * m;
	mat3 ms = m * 2.0;
	return mv.x + vm.y + mm[0][0] + ms[1].y;
}
`)
	fn := prog.Lookup("f")
	require.NotNil(t, fn)

	mv := fn.Body[2].(*DeclStmt).Init
	_, ok := mv.(*MatMul)
	assert.True(t, ok, "mat*vec is a linear-algebra product")

	ms := fn.Body[5].(*DeclStmt).Init
	_, ok = ms.(*Binary)
	assert.True(t, ok, "mat*scalar is component-wise")
}

func TestAnalyzeStructMembers(t *testing.T) {
	prog := mustAnalyze(t, `
struct Light {
	vec3 pos;
	float intensity;
};

float f() {
	Light l;
	l.pos = vec3(1.0, 2.0, 3.0);
	l.intensity = 0.5;
	return l.pos.y * l.intensity;
}
`)
	st, ok := prog.Structs["Light"]
	require.True(t, ok)
	require.Len(t, st.Fields, 2)

	typ := st.Of()
	off, ft := typ.FieldOffset("intensity")
	assert.Equal(t, 3, off)
	assert.Equal(t, KindFloat, ft.Kind)
}

func TestAnalyzeCollectsMultipleErrors(t *testing.T) {
	_, err := analyze(t, `
float f() {
	return a;
}
float g() {
	return b;
}
`)
	require.Error(t, err)
	errs, ok := err.(fxsl.SourceErrors)
	require.True(t, ok)
	assert.Len(t, errs, 2)
}
