package fxc

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gogpu/fxc/builtin"
	"github.com/gogpu/fxc/fixed"
)

const brightenSrc = `
float brighten(float x) {
    return clamp(x * 1.2, 0.0, 1.0);
}
`

func TestCompile(t *testing.T) {
	mod, err := Compile(brightenSrc)
	require.NoError(t, err)
	require.Contains(t, mod.Funcs, "brighten")
	info := mod.Funcs["brighten"]
	assert.Equal(t, 1, info.NumArgs)
	assert.True(t, info.HasRet)
	assert.NotEmpty(t, mod.Code)
}

func TestCompileErrors(t *testing.T) {
	t.Run("parse error", func(t *testing.T) {
		_, err := Compile(`float f( { }`)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "parse error")
	})

	t.Run("semantic error", func(t *testing.T) {
		_, err := Compile(`float f(float x) { return y; }`)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unknown identifier")
	})

	t.Run("unsupported arch", func(t *testing.T) {
		opts := DefaultOptions()
		opts.Target.Arch = "armv7"
		_, err := CompileWithOptions(brightenSrc, opts)
		require.Error(t, err)
		assert.Contains(t, err.Error(), `unsupported target architecture "armv7"`)
	})

	t.Run("float32 numerics rejected", func(t *testing.T) {
		opts := DefaultOptions()
		opts.Target.Numeric = NumericFloat32
		_, err := CompileWithOptions(brightenSrc, opts)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no float32 support")
	})
}

func TestStageDumps(t *testing.T) {
	var irDump, fixDump, asmDump bytes.Buffer
	opts := DefaultOptions()
	opts.DumpIR = &irDump
	opts.DumpTransformed = &fixDump
	opts.DumpAsm = &asmDump

	_, err := CompileWithOptions(brightenSrc, opts)
	require.NoError(t, err)

	assert.Contains(t, irDump.String(), "func brighten(1) i32 {")
	assert.Contains(t, irDump.String(), "fconst")
	assert.NotContains(t, fixDump.String(), "fconst")
	assert.Contains(t, fixDump.String(), "callb")
	assert.Contains(t, asmDump.String(), "jalr")
}

func TestCompileObject(t *testing.T) {
	obj, err := CompileObject(brightenSrc, DefaultOptions())
	require.NoError(t, err)
	require.Len(t, obj.Symbols, 1)
	assert.Equal(t, "brighten", obj.Symbols[0].Name)
	// clamp stays as a window relocation for the linker.
	require.NotEmpty(t, obj.Relocs)
	assert.Equal(t, "fx_clamp", obj.Relocs[0].Symbol)
	assert.Nil(t, obj.Listings)

	opts := DefaultOptions()
	opts.Disassemble = true
	obj, err = CompileObject(brightenSrc, opts)
	require.NoError(t, err)
	require.Contains(t, obj.Listings, "brighten")
	assert.Contains(t, obj.Listings["brighten"].Blocks, "func brighten")
	assert.Contains(t, obj.Listings["brighten"].Asm, "jalr")
}

func TestRun(t *testing.T) {
	out, err := Run(brightenSrc, "brighten", int32(fixed.FromFloat(0.5)))
	require.NoError(t, err)
	assert.InDelta(t, int32(fixed.FromFloat(0.6)), out, 2)

	out, err = Run(brightenSrc, "brighten", int32(fixed.FromFloat(2.0)))
	require.NoError(t, err)
	assert.Equal(t, int32(fixed.One), out)
}

func TestRegistryStable(t *testing.T) {
	// Ids are embedded in compiled call sites; two compilations must
	// agree on the assignment.
	a, err := Compile(brightenSrc)
	require.NoError(t, err)
	b, err := Compile(brightenSrc)
	require.NoError(t, err)
	assert.True(t, bytes.Equal(a.Code, b.Code))

	// The package registry is one Build() among equals: a freshly
	// regenerated table assigns the same ids, so code compiled against
	// either dispatches identically.
	fresh := builtin.Build()
	require.Equal(t, Registry().Len(), fresh.Len())
	for i, e := range Registry().All() {
		assert.Equal(t, e.ID, fresh.All()[i].ID)
		assert.Equal(t, e.Symbol, fresh.All()[i].Symbol)
	}
}

func TestParseKeepsStructure(t *testing.T) {
	ast, err := Parse(`
		struct P { float x; };
		float f(float a) { return a; }
	`)
	require.NoError(t, err)
	assert.Len(t, ast.Structs, 1)
	assert.Len(t, ast.Functions, 1)
}

func TestAnalyzeReportsAllErrors(t *testing.T) {
	ast, err := Parse(`
		int f() { return a; }
		int g() { return b; }
	`)
	require.NoError(t, err)
	_, err = Analyze(ast, "")
	require.Error(t, err)
	msg := err.Error()
	assert.Equal(t, 2, strings.Count(msg, "unknown identifier"))
}
