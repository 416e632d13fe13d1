package rv32

import (
	"encoding/binary"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gogpu/fxc/builtin"
	"github.com/gogpu/fxc/fixedpt"
	"github.com/gogpu/fxc/fxsl"
	"github.com/gogpu/fxc/ir"
	"github.com/gogpu/fxc/lower"
	"github.com/gogpu/fxc/sem"
)

func compile(t *testing.T, source string) (*ir.Program, *builtin.Registry) {
	t.Helper()
	reg := builtin.Build()
	ast, err := fxsl.Parse(source)
	require.NoError(t, err)
	prog, err := sem.AnalyzeSource(ast, source, reg)
	require.NoError(t, err)
	p := lower.Lower(prog)
	require.NoError(t, fixedpt.Rewrite(p, reg))
	return p, reg
}

// Round-trip a handful of encodings through the disassembler; the
// emulator tests cover execution.
func TestEncodings(t *testing.T) {
	tests := []struct {
		word uint32
		want string
	}{
		{insnAdd(RegT2, RegT0, RegT1), "add t2, t0, t1"},
		{insnSub(RegA0, RegA0, RegT0), "sub a0, a0, t0"},
		{insnMul(RegT2, RegT0, RegT1), "mul t2, t0, t1"},
		{insnMulh(RegT3, RegT0, RegT1), "mulh t3, t0, t1"},
		{insnDiv(RegT2, RegT0, RegT1), "div t2, t0, t1"},
		{insnAddi(RegSP, RegSP, -32), "addi sp, sp, -32"},
		{insnLw(RegT0, RegSP, 8), "lw t0, 8(sp)"},
		{insnSw(RegRA, RegSP, 28), "sw ra, 28(sp)"},
		{insnSlli(RegT1, RegT1, 2), "slli t1, t1, 2"},
		{insnSrai(RegT2, RegT0, 16), "srai t2, t0, 16"},
		{insnSltu(RegT2, RegZero, RegT2), "sltu t2, zero, t2"},
		{insnLui(RegT0, 0x80000000), "lui t0, 0x80000"},
		{insnJalr(RegRA, RegT0, 0), "jalr ra, 0(t0)"},
		{insnEcall(), "ecall"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, decode(tt.word, 0), "0x%08x", tt.word)
	}
}

func TestBranchOffsets(t *testing.T) {
	// Branch immediates round-trip through the B encoding.
	for _, off := range []int32{-4096, -8, 8, 12, 16, 20, 4094} {
		w := insnBeq(RegT0, RegT1, off)
		assert.Equal(t, off, decodeB(w), "offset %d", off)
	}
	for _, off := range []int32{-1 << 20, -4, 8, 1<<20 - 2} {
		w := insnJal(RegZero, off)
		assert.Equal(t, off, decodeJ(w), "offset %d", off)
	}
}

func TestEmitProducesAlignedCode(t *testing.T) {
	p, reg := compile(t, `float f(float x) { return x * 2.0; }`)
	m, err := Emit(p, reg)
	require.NoError(t, err)
	assert.Zero(t, len(m.Code)%4)

	info, ok := m.Funcs["f"]
	require.True(t, ok)
	assert.Equal(t, 1, info.NumArgs)
	assert.True(t, info.HasRet)
	assert.Positive(t, info.Size)
}

func TestEmitRejectsTooManyArgs(t *testing.T) {
	p, reg := compile(t, `
float f(vec4 a, vec4 b, float c) { return c; }
`)
	_, err := Emit(p, reg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at most 8")
}

func TestEmitRejectsSurvivingFloatOps(t *testing.T) {
	reg := builtin.Build()
	f := ir.NewFunc("f", 0, true)
	f.Entry.Seal()
	c := f.Entry.ConstFloat(1.0)
	f.Entry.Return(c)

	_, err := Emit(&ir.Program{Funcs: []*ir.Func{f}}, reg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fixed-point pass")
}

func TestObjectRoundTrip(t *testing.T) {
	p, reg := compile(t, `
float half(float x) { return x / 2.0; }
float f(float x) { return half(x) + 1.0; }
`)
	obj, err := EmitObject(p, reg)
	require.NoError(t, err)
	require.Len(t, obj.Symbols, 2)
	assert.Equal(t, "half", obj.Symbols[0].Name, "symbols sorted by offset")

	// One abs reloc for the division routine, one jal for the call.
	kinds := map[RelocKind]int{}
	for _, r := range obj.Relocs {
		kinds[r.Kind]++
	}
	assert.Equal(t, 1, kinds[RelocAbs])
	assert.Equal(t, 1, kinds[RelocJAL])
	for _, r := range obj.Relocs {
		if r.Kind == RelocAbs {
			assert.Equal(t, "fx_div", r.Symbol)
		}
	}

	blob := obj.Marshal()
	back, err := UnmarshalObject(blob)
	require.NoError(t, err)
	assert.Equal(t, obj.Code, back.Code)
	assert.Equal(t, obj.Symbols, back.Symbols)
	assert.Equal(t, obj.Relocs, back.Relocs)
}

func TestEmitObjectCapturesListings(t *testing.T) {
	p, reg := compile(t, `
float half(float x) { return x / 2.0; }
float f(float x) { return half(x) + 1.0; }
`)

	obj, err := EmitObject(p, reg)
	require.NoError(t, err)
	assert.Nil(t, obj.Listings, "off by default")

	obj, err = EmitObjectWith(p, reg, ObjectOptions{Disassemble: true})
	require.NoError(t, err)
	require.Len(t, obj.Listings, 2)
	for _, s := range obj.Symbols {
		l, ok := obj.Listings[s.Name]
		require.True(t, ok, s.Name)
		assert.Contains(t, l.Blocks, "func "+s.Name)
		assert.Contains(t, l.Blocks, "b0:")
		assert.Contains(t, l.Asm, "jalr")
	}

	// Listings are diagnostic only and do not survive serialization.
	back, err := UnmarshalObject(obj.Marshal())
	require.NoError(t, err)
	assert.Nil(t, back.Listings)
}

func TestUnmarshalRejectsGarbage(t *testing.T) {
	_, err := UnmarshalObject([]byte("not an object"))
	assert.Error(t, err)

	// Valid magic, truncated body.
	var hdr [8]byte
	binary.LittleEndian.PutUint32(hdr[:4], objMagic)
	binary.LittleEndian.PutUint32(hdr[4:], 4096)
	_, err = UnmarshalObject(hdr[:])
	assert.Error(t, err)
}

func TestDisassembleFunc(t *testing.T) {
	p, reg := compile(t, `int f(int a, int b) { return a + b; }`)
	m, err := Emit(p, reg)
	require.NoError(t, err)

	out, err := m.DisassembleFunc("f")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "f:\n"))
	assert.Contains(t, out, "add t2, t0, t1")
	assert.Contains(t, out, "jalr zero, 0(ra)")
}
