package fixedpt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gogpu/fxc/builtin"
	"github.com/gogpu/fxc/fixed"
	"github.com/gogpu/fxc/fxsl"
	"github.com/gogpu/fxc/ir"
	"github.com/gogpu/fxc/lower"
	"github.com/gogpu/fxc/sem"
)

func rewriteSource(t *testing.T, source string) (*ir.Program, *builtin.Registry) {
	t.Helper()
	reg := builtin.Build()
	ast, err := fxsl.Parse(source)
	require.NoError(t, err)
	prog, err := sem.AnalyzeSource(ast, source, reg)
	require.NoError(t, err)
	p := lower.Lower(prog)
	require.NoError(t, Rewrite(p, reg))
	return p, reg
}

func opsOf(f *ir.Func) map[ir.Op]int {
	out := make(map[ir.Op]int)
	for _, b := range f.Blocks {
		for _, v := range b.Instrs {
			out[v.Op]++
		}
	}
	return out
}

func TestRewriteEliminatesFloatOps(t *testing.T) {
	p, _ := rewriteSource(t, `
float f(float x, int n) {
	float y = x * 2.5 - 1.0;
	return y / float(n) + 0.25;
}
`)
	f := p.Lookup("f")
	ops := opsOf(f)

	for op, n := range ops {
		assert.False(t, op.IsFloat(), "%s survived (%d)", op, n)
	}
	assert.Equal(t, 1, ops[ir.OpMulQ])
	assert.Equal(t, 1, ops[ir.OpSubSat])
	assert.Equal(t, 1, ops[ir.OpAddSat])
	assert.Equal(t, 1, ops[ir.OpIntToFix])
	// The division became a call to the division routine.
	assert.Equal(t, 1, ops[ir.OpCallBuiltin])
}

func TestRewriteFloatConstants(t *testing.T) {
	p, _ := rewriteSource(t, `float f() { return 1.5; }`)
	f := p.Lookup("f")

	var consts []int64
	for _, b := range f.Blocks {
		for _, v := range b.Instrs {
			if v.Op == ir.OpConstInt {
				consts = append(consts, v.Aux)
			}
		}
	}
	require.Len(t, consts, 1)
	assert.Equal(t, int64(3<<15), consts[0], "1.5 in Q16.16")
}

func TestRewriteDivTargetsDivRoutine(t *testing.T) {
	p, reg := rewriteSource(t, `float f(float a, float b) { return a / b; }`)
	f := p.Lookup("f")

	divID, ok := reg.Lookup("div", 2)
	require.True(t, ok)

	found := false
	for _, b := range f.Blocks {
		for _, v := range b.Instrs {
			if v.Op == ir.OpCallBuiltin {
				assert.Equal(t, int64(divID), v.Aux)
				assert.Len(t, v.Args, 2)
				found = true
			}
		}
	}
	assert.True(t, found)
}

func TestRewriteComparisonsUntouched(t *testing.T) {
	p, _ := rewriteSource(t, `bool f(float a, float b) { return a < b; }`)
	f := p.Lookup("f")
	ops := opsOf(f)
	assert.Equal(t, 1, ops[ir.OpLtS], "float compare is a signed int compare")
}

func TestRewriteSaturatingConstant(t *testing.T) {
	p, _ := rewriteSource(t, `float f() { return 100000.0; }`)
	f := p.Lookup("f")
	for _, b := range f.Blocks {
		for _, v := range b.Instrs {
			if v.Op == ir.OpConstInt {
				assert.Equal(t, int64(int32(fixed.Max)), v.Aux, "out-of-range literal saturates")
			}
		}
	}
}

func TestRewriteRejectsBadArity(t *testing.T) {
	reg := builtin.Build()
	f := ir.NewFunc("f", 1, true)
	f.Entry.Seal()
	id, ok := reg.Lookup("sqrt", 1)
	require.True(t, ok)
	// Hand-built call with the wrong arity.
	bad := f.Entry.CallBuiltin(int(id), f.Entry.Arg(0), f.Entry.ConstInt(0))
	f.Entry.Return(bad)

	err := Rewrite(&ir.Program{Funcs: []*ir.Func{f}}, reg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "want 1")
}
