package rv32

import (
	"fmt"
	"sort"

	"github.com/gogpu/fxc/builtin"
	"github.com/gogpu/fxc/ir"
)

// Machine code layout: every SSA value gets a 4-byte stack slot, arrays
// get slabs behind the value slots, and instructions work t0..t6 between
// loads and stores. Simple, predictable, and trivially correct; the
// emulator does not reward cleverness.

// maxArgRegs is the ILP32 calling convention limit: a0..a7.
const maxArgRegs = 8

// Module is jittable machine code for a whole program. Code is a
// little-endian RV32IM instruction stream; functions are addressed by
// byte offset from the start of the stream.
type Module struct {
	Code  []byte
	Funcs map[string]FuncInfo
}

// FuncInfo locates one function inside Module.Code.
type FuncInfo struct {
	Offset  int
	Size    int
	NumArgs int
	HasRet  bool
}

// Emit generates machine code for every function. Cross-function calls
// are pc-relative, so the module can be loaded at any base address.
func Emit(prog *ir.Program, reg *builtin.Registry) (*Module, error) {
	a, infos, err := emitAll(prog, reg)
	if err != nil {
		return nil, err
	}
	return &Module{Code: a.bytes(), Funcs: infos}, nil
}

func emitAll(prog *ir.Program, reg *builtin.Registry) (*asm, map[string]FuncInfo, error) {
	a := newAsm()
	infos := make(map[string]FuncInfo, len(prog.Funcs))

	for _, f := range prog.Funcs {
		if f.NumArgs > maxArgRegs {
			return nil, nil, fmt.Errorf("rv32: function %q takes %d scalar arguments; the ABI passes at most %d",
				f.Name, f.NumArgs, maxArgRegs)
		}
		start := a.pc()
		if err := emitFunc(a, f, reg); err != nil {
			return nil, nil, err
		}
		infos[f.Name] = FuncInfo{
			Offset:  start,
			Size:    a.pc() - start,
			NumArgs: f.NumArgs,
			HasRet:  f.HasRet,
		}
	}

	if err := a.link(); err != nil {
		return nil, nil, err
	}
	return a, infos, nil
}

// ---------------------------------------------------------------------------
// Assembler
// ---------------------------------------------------------------------------

type labelKey struct {
	fn    string
	block int // -1 for the function entry
}

type fixup struct {
	at     int // byte offset of the jal to patch
	target labelKey
}

type asm struct {
	words  []uint32
	labels map[labelKey]int // byte offsets
	fixups []fixup
	relocs []Reloc
}

func newAsm() *asm {
	return &asm{labels: make(map[labelKey]int)}
}

func (a *asm) pc() int            { return len(a.words) * 4 }
func (a *asm) word(w uint32)      { a.words = append(a.words, w) }
func (a *asm) label(key labelKey) { a.labels[key] = a.pc() }

// jumpTo emits a jal needing a label patch.
func (a *asm) jumpTo(rd int, target labelKey) {
	a.fixups = append(a.fixups, fixup{at: a.pc(), target: target})
	a.word(insnJal(rd, 0))
}

func (a *asm) link() error {
	for _, fx := range a.fixups {
		dest, ok := a.labels[fx.target]
		if !ok {
			return fmt.Errorf("rv32: unresolved reference to %q", fx.target.fn)
		}
		rd := int(a.words[fx.at/4] >> 7 & 0x1F)
		a.words[fx.at/4] = insnJal(rd, int32(dest-fx.at))
	}
	return nil
}

func (a *asm) bytes() []byte {
	out := make([]byte, len(a.words)*4)
	for i, w := range a.words {
		out[i*4+0] = byte(w)
		out[i*4+1] = byte(w >> 8)
		out[i*4+2] = byte(w >> 16)
		out[i*4+3] = byte(w >> 24)
	}
	return out
}

// li loads a 32-bit constant, one or two instructions.
func (a *asm) li(rd int, v int32) {
	if fitsImm12(v) {
		a.word(insnAddi(rd, RegZero, v))
		return
	}
	hi := uint32(v) + 0x800
	a.word(insnLui(rd, hi&0xFFFFF000))
	if lo := int32(uint32(v) - hi&0xFFFFF000); lo != 0 {
		a.word(insnAddi(rd, rd, lo))
	}
}

// ---------------------------------------------------------------------------
// Function emission
// ---------------------------------------------------------------------------

type funcEmit struct {
	a   *asm
	f   *ir.Func
	reg *builtin.Registry

	slot    []int       // value ID -> slot index, -1 if none
	staging []int       // value ID -> staging slot for phis, -1 if none
	slabs   map[int]int // array alloc value ID -> slab word offset

	frame int // frame size in bytes
}

func emitFunc(a *asm, f *ir.Func, reg *builtin.Registry) error {
	fe := &funcEmit{
		a:       a,
		f:       f,
		reg:     reg,
		slot:    make([]int, f.NumValues()),
		staging: make([]int, f.NumValues()),
		slabs:   make(map[int]int),
	}
	fe.layout()

	a.label(labelKey{fn: f.Name, block: -1})
	fe.prologue()

	for _, b := range f.Blocks {
		a.label(labelKey{fn: f.Name, block: b.ID})
		// Land staged phi values.
		for _, phi := range b.Params {
			fe.loadSlot(RegT0, fe.staging[phi.ID])
			fe.storeSlot(RegT0, fe.slot[phi.ID])
		}
		for _, v := range b.Instrs {
			if v.Op == ir.OpInvalid {
				continue
			}
			if err := fe.instr(v); err != nil {
				return err
			}
		}
		if b.Term == nil {
			return fmt.Errorf("rv32: %s: block b%d has no terminator", f.Name, b.ID)
		}
		fe.terminator(b)
	}
	return nil
}

// layout assigns stack slots: one per value, a staging slot per phi, and
// slabs for array allocations.
func (fe *funcEmit) layout() {
	n := 0
	take := func() int { n++; return n - 1 }

	for i := range fe.slot {
		fe.slot[i] = -1
		fe.staging[i] = -1
	}
	for _, b := range fe.f.Blocks {
		for _, phi := range b.Params {
			fe.slot[phi.ID] = take()
			fe.staging[phi.ID] = take()
		}
		for _, v := range b.Instrs {
			if v.Op == ir.OpInvalid {
				continue
			}
			fe.slot[v.ID] = take()
		}
	}
	for _, b := range fe.f.Blocks {
		for _, v := range b.Instrs {
			if v.Op == ir.OpArrayAlloc {
				fe.slabs[v.ID] = n
				n += int(v.Aux)
			}
		}
	}

	// Values, slabs, saved ra; keep sp 16-byte aligned.
	fe.frame = (n*4 + 4 + 15) &^ 15
}

func (fe *funcEmit) prologue() {
	a := fe.a
	if fitsImm12(int32(-fe.frame)) {
		a.word(insnAddi(RegSP, RegSP, int32(-fe.frame)))
	} else {
		a.li(RegT6, int32(fe.frame))
		a.word(insnSub(RegSP, RegSP, RegT6))
	}
	fe.storeOff(RegRA, fe.frame-4)
}

func (fe *funcEmit) epilogue() {
	a := fe.a
	fe.loadOff(RegRA, fe.frame-4)
	if fitsImm12(int32(fe.frame)) {
		a.word(insnAddi(RegSP, RegSP, int32(fe.frame)))
	} else {
		a.li(RegT6, int32(fe.frame))
		a.word(insnAdd(RegSP, RegSP, RegT6))
	}
	a.word(insnJalr(RegZero, RegRA, 0))
}

// loadOff / storeOff access sp+off with t6 as the wide-offset scratch.
func (fe *funcEmit) loadOff(reg, off int) {
	if fitsImm12(int32(off)) {
		fe.a.word(insnLw(reg, RegSP, int32(off)))
		return
	}
	fe.a.li(RegT6, int32(off))
	fe.a.word(insnAdd(RegT6, RegT6, RegSP))
	fe.a.word(insnLw(reg, RegT6, 0))
}

func (fe *funcEmit) storeOff(reg, off int) {
	if fitsImm12(int32(off)) {
		fe.a.word(insnSw(reg, RegSP, int32(off)))
		return
	}
	fe.a.li(RegT6, int32(off))
	fe.a.word(insnAdd(RegT6, RegT6, RegSP))
	fe.a.word(insnSw(reg, RegT6, 0))
}

func (fe *funcEmit) loadSlot(reg, slot int)  { fe.loadOff(reg, slot*4) }
func (fe *funcEmit) storeSlot(reg, slot int) { fe.storeOff(reg, slot*4) }

func (fe *funcEmit) loadArg(reg int, v *ir.Value) { fe.loadSlot(reg, fe.slot[v.ID]) }
func (fe *funcEmit) storeResult(v *ir.Value)      { fe.storeSlot(RegT2, fe.slot[v.ID]) }

// trapIf emits a conditional trap: branch over 2 instructions when the
// encoded condition holds.
func (fe *funcEmit) trap(code int) {
	fe.a.word(insnAddi(RegA7, RegZero, int32(code)))
	fe.a.word(insnEcall())
}

func (fe *funcEmit) instr(v *ir.Value) error {
	a := fe.a
	switch v.Op {
	case ir.OpConstInt:
		a.li(RegT2, int32(v.Aux))
		fe.storeResult(v)

	case ir.OpArg:
		fe.storeSlot(RegA0+int(v.Aux), fe.slot[v.ID])

	case ir.OpAdd, ir.OpSub, ir.OpMul, ir.OpAnd, ir.OpOr, ir.OpXor,
		ir.OpShl, ir.OpShrS, ir.OpShrU:
		fe.loadArg(RegT0, v.Args[0])
		fe.loadArg(RegT1, v.Args[1])
		switch v.Op {
		case ir.OpAdd:
			a.word(insnAdd(RegT2, RegT0, RegT1))
		case ir.OpSub:
			a.word(insnSub(RegT2, RegT0, RegT1))
		case ir.OpMul:
			a.word(insnMul(RegT2, RegT0, RegT1))
		case ir.OpAnd:
			a.word(insnAnd(RegT2, RegT0, RegT1))
		case ir.OpOr:
			a.word(insnOr(RegT2, RegT0, RegT1))
		case ir.OpXor:
			a.word(insnXor(RegT2, RegT0, RegT1))
		case ir.OpShl:
			a.word(insnSll(RegT2, RegT0, RegT1))
		case ir.OpShrS:
			a.word(insnSra(RegT2, RegT0, RegT1))
		case ir.OpShrU:
			a.word(insnSrl(RegT2, RegT0, RegT1))
		}
		fe.storeResult(v)

	case ir.OpDiv, ir.OpDivU, ir.OpMod, ir.OpModU:
		fe.loadArg(RegT0, v.Args[0])
		fe.loadArg(RegT1, v.Args[1])
		a.word(insnBne(RegT1, RegZero, 12))
		fe.trap(ir.TrapDivZero)
		switch v.Op {
		case ir.OpDiv:
			a.word(insnDiv(RegT2, RegT0, RegT1))
		case ir.OpDivU:
			a.word(insnDivu(RegT2, RegT0, RegT1))
		case ir.OpMod:
			a.word(insnRem(RegT2, RegT0, RegT1))
		case ir.OpModU:
			a.word(insnRemu(RegT2, RegT0, RegT1))
		}
		fe.storeResult(v)

	case ir.OpNeg:
		fe.loadArg(RegT0, v.Args[0])
		a.word(insnSub(RegT2, RegZero, RegT0))
		fe.storeResult(v)

	case ir.OpNot:
		fe.loadArg(RegT0, v.Args[0])
		a.word(insnXori(RegT2, RegT0, 1))
		fe.storeResult(v)

	case ir.OpBitNot:
		fe.loadArg(RegT0, v.Args[0])
		a.word(insnXori(RegT2, RegT0, -1))
		fe.storeResult(v)

	case ir.OpAddSat, ir.OpSubSat:
		fe.loadArg(RegT0, v.Args[0])
		fe.loadArg(RegT1, v.Args[1])
		fe.emitAddSubSat(v.Op == ir.OpSubSat)
		fe.storeResult(v)

	case ir.OpNegSat:
		fe.loadArg(RegT0, v.Args[0])
		// Negating Q16.16 min overflows; pin it to max.
		a.word(insnLui(RegT1, 0x80000000))
		a.word(insnBne(RegT0, RegT1, 16)) // 3 words: plain negate
		a.li(RegT2, 0x7FFFFFFF)           // 2 words
		a.word(insnJal(RegZero, 8))
		a.word(insnSub(RegT2, RegZero, RegT0))
		fe.storeResult(v)

	case ir.OpMulQ:
		fe.loadArg(RegT0, v.Args[0])
		fe.loadArg(RegT1, v.Args[1])
		fe.emitMulQ()
		fe.storeResult(v)

	case ir.OpIntToFix:
		fe.loadArg(RegT0, v.Args[0])
		a.word(insnSlli(RegT2, RegT0, 16))
		a.word(insnSrai(RegT3, RegT2, 16))
		a.word(insnBeq(RegT3, RegT0, 20)) // over 4 words: no saturation
		a.word(insnSrai(RegT3, RegT0, 31))
		a.li(RegT4, 0x7FFFFFFF) // 2 words
		a.word(insnXor(RegT2, RegT3, RegT4))
		fe.storeResult(v)

	case ir.OpUintToFix:
		fe.loadArg(RegT0, v.Args[0])
		a.li(RegT1, 0x8000)
		a.word(insnBltu(RegT0, RegT1, 16)) // 3 words: in range
		a.li(RegT2, 0x7FFFFFFF)            // 2 words
		a.word(insnJal(RegZero, 8))
		a.word(insnSlli(RegT2, RegT0, 16))
		fe.storeResult(v)

	case ir.OpFixToInt:
		fe.loadArg(RegT0, v.Args[0])
		a.word(insnSrai(RegT2, RegT0, 16))
		fe.storeResult(v)

	case ir.OpEq:
		fe.loadArg(RegT0, v.Args[0])
		fe.loadArg(RegT1, v.Args[1])
		a.word(insnXor(RegT2, RegT0, RegT1))
		a.word(insnSltiu(RegT2, RegT2, 1))
		fe.storeResult(v)

	case ir.OpNe:
		fe.loadArg(RegT0, v.Args[0])
		fe.loadArg(RegT1, v.Args[1])
		a.word(insnXor(RegT2, RegT0, RegT1))
		a.word(insnSltu(RegT2, RegZero, RegT2))
		fe.storeResult(v)

	case ir.OpLtS:
		fe.loadArg(RegT0, v.Args[0])
		fe.loadArg(RegT1, v.Args[1])
		a.word(insnSlt(RegT2, RegT0, RegT1))
		fe.storeResult(v)

	case ir.OpLtU:
		fe.loadArg(RegT0, v.Args[0])
		fe.loadArg(RegT1, v.Args[1])
		a.word(insnSltu(RegT2, RegT0, RegT1))
		fe.storeResult(v)

	case ir.OpLeS:
		fe.loadArg(RegT0, v.Args[0])
		fe.loadArg(RegT1, v.Args[1])
		a.word(insnSlt(RegT2, RegT1, RegT0))
		a.word(insnXori(RegT2, RegT2, 1))
		fe.storeResult(v)

	case ir.OpLeU:
		fe.loadArg(RegT0, v.Args[0])
		fe.loadArg(RegT1, v.Args[1])
		a.word(insnSltu(RegT2, RegT1, RegT0))
		a.word(insnXori(RegT2, RegT2, 1))
		fe.storeResult(v)

	case ir.OpSelect:
		fe.loadArg(RegT0, v.Args[0])
		fe.loadArg(RegT1, v.Args[1])
		fe.loadArg(RegT2, v.Args[2])
		a.word(insnBne(RegT0, RegZero, 8))
		a.word(insnAddi(RegT1, RegT2, 0))
		a.word(insnAddi(RegT2, RegT1, 0))
		fe.storeResult(v)

	case ir.OpCallBuiltin:
		if len(v.Args) > maxArgRegs {
			return fmt.Errorf("rv32: builtin call with %d arguments", len(v.Args))
		}
		for i, arg := range v.Args {
			fe.loadArg(RegA0+i, arg)
		}
		entry, ok := fe.reg.Entry(builtin.ID(v.Aux))
		if !ok {
			return fmt.Errorf("rv32: unknown builtin id %d", v.Aux)
		}
		addr, _ := fe.reg.Resolve(entry.ID)
		a.relocs = append(a.relocs, Reloc{Offset: a.pc(), Kind: RelocAbs, Symbol: entry.Symbol})
		a.li(RegT0, int32(addr))
		a.word(insnJalr(RegRA, RegT0, 0))
		a.word(insnAddi(RegT2, RegA0, 0))
		fe.storeResult(v)

	case ir.OpCall:
		if len(v.Args) > maxArgRegs {
			return fmt.Errorf("rv32: call to %q passes %d scalar arguments; the ABI passes at most %d",
				v.AuxFunc, len(v.Args), maxArgRegs)
		}
		for i, arg := range v.Args {
			fe.loadArg(RegA0+i, arg)
		}
		a.relocs = append(a.relocs, Reloc{Offset: a.pc(), Kind: RelocJAL, Symbol: v.AuxFunc})
		a.jumpTo(RegRA, labelKey{fn: v.AuxFunc, block: -1})
		a.word(insnAddi(RegT2, RegA0, 0))
		fe.storeResult(v)

	case ir.OpArrayAlloc:
		off := fe.slabs[v.ID] * 4
		if fitsImm12(int32(off)) {
			a.word(insnAddi(RegT2, RegSP, int32(off)))
		} else {
			a.li(RegT2, int32(off))
			a.word(insnAdd(RegT2, RegT2, RegSP))
		}
		fe.storeResult(v)

	case ir.OpArrayLoad:
		fe.loadArg(RegT0, v.Args[0])
		fe.loadArg(RegT1, v.Args[1])
		a.word(insnSlli(RegT1, RegT1, 2))
		a.word(insnAdd(RegT0, RegT0, RegT1))
		a.word(insnLw(RegT2, RegT0, 0))
		fe.storeResult(v)

	case ir.OpArrayStore:
		fe.loadArg(RegT0, v.Args[0])
		fe.loadArg(RegT1, v.Args[1])
		fe.loadArg(RegT2, v.Args[2])
		a.word(insnSlli(RegT1, RegT1, 2))
		a.word(insnAdd(RegT0, RegT0, RegT1))
		a.word(insnSw(RegT2, RegT0, 0))

	case ir.OpBoundsCheck:
		fe.loadArg(RegT0, v.Args[0])
		a.li(RegT1, int32(v.Aux))
		a.word(insnBltu(RegT0, RegT1, 12))
		fe.trap(ir.TrapBounds)

	case ir.OpPhi:
		return fmt.Errorf("rv32: phi outside block params (v%d)", v.ID)

	default:
		if v.Op.IsFloat() {
			return fmt.Errorf("rv32: float op %s reached the backend; run the fixed-point pass first", v.Op)
		}
		return fmt.Errorf("rv32: unhandled op %s", v.Op)
	}
	return nil
}

// emitAddSubSat computes t2 = t0 +/- t1 with signed saturation.
// Overflow test: (t2^t0) & (t2^opnd) < 0, where opnd is t1 for add and
// ~t1-ish logic folds to the same test against t0 for sub.
func (fe *funcEmit) emitAddSubSat(sub bool) {
	a := fe.a
	if sub {
		a.word(insnSub(RegT2, RegT0, RegT1))
		// Overflow iff operands differ in sign and result differs from t0.
		a.word(insnXor(RegT3, RegT0, RegT1))
		a.word(insnXor(RegT4, RegT2, RegT0))
	} else {
		a.word(insnAdd(RegT2, RegT0, RegT1))
		a.word(insnXor(RegT3, RegT2, RegT0))
		a.word(insnXor(RegT4, RegT2, RegT1))
	}
	a.word(insnAnd(RegT3, RegT3, RegT4))
	a.word(insnBge(RegT3, RegZero, 20)) // over 4 words: no overflow
	// Saturate toward the sign of t0.
	a.word(insnSrai(RegT3, RegT0, 31))
	a.li(RegT4, 0x7FFFFFFF) // 2 words
	a.word(insnXor(RegT2, RegT3, RegT4))
}

// emitMulQ computes t2 = (t0 * t1) >> 16 in 64-bit, saturated.
func (fe *funcEmit) emitMulQ() {
	a := fe.a
	a.word(insnMul(RegT2, RegT0, RegT1))  // low 32
	a.word(insnMulh(RegT3, RegT0, RegT1)) // high 32
	a.word(insnSrli(RegT2, RegT2, 16))
	a.word(insnSlli(RegT4, RegT3, 16))
	a.word(insnOr(RegT2, RegT2, RegT4)) // candidate
	// Fits iff the true high word equals the candidate's sign extension.
	a.word(insnSrai(RegT4, RegT3, 16))
	a.word(insnSrai(RegT5, RegT2, 31))
	a.word(insnBeq(RegT4, RegT5, 20)) // over 4 words: no saturation
	a.word(insnSrai(RegT4, RegT3, 31))
	a.li(RegT5, 0x7FFFFFFF) // 2 words
	a.word(insnXor(RegT2, RegT4, RegT5))
}

func (fe *funcEmit) terminator(b *ir.Block) {
	a := fe.a
	t := b.Term
	switch t.Op {
	case ir.OpReturn:
		if len(t.Args) == 1 {
			fe.loadArg(RegA0, t.Args[0])
		}
		fe.epilogue()

	case ir.OpTrap:
		fe.trap(int(t.Aux))

	case ir.OpJump:
		fe.edgeCopies(b, 0)
		a.jumpTo(RegZero, labelKey{fn: fe.f.Name, block: b.Succs[0].ID})

	case ir.OpBranch:
		fe.loadArg(RegT0, t.Args[0])
		a.word(insnBne(RegT0, RegZero, 8))
		// Fall to the else stub, placed right after the then stub.
		elseStub := fe.stubLabel(b, 1)
		a.jumpTo(RegZero, elseStub)
		fe.edgeCopies(b, 0)
		a.jumpTo(RegZero, labelKey{fn: fe.f.Name, block: b.Succs[0].ID})
		a.label(elseStub)
		fe.edgeCopies(b, 1)
		a.jumpTo(RegZero, labelKey{fn: fe.f.Name, block: b.Succs[1].ID})
	}
}

// stubLabel names a per-edge landing pad inside the branch expansion.
func (fe *funcEmit) stubLabel(b *ir.Block, edge int) labelKey {
	return labelKey{fn: fe.f.Name, block: -(2 + b.ID*2 + edge)}
}

// edgeCopies moves values into the staging slots of the successor's
// phis. Staging keeps parallel copies safe: destination phi slots are
// only written at the head of the successor.
func (fe *funcEmit) edgeCopies(b *ir.Block, edge int) {
	succ := b.Succs[edge]
	predIdx := fe.predIndex(b, succ, edge)
	for _, phi := range succ.Params {
		src := phi.Args[predIdx]
		fe.loadSlot(RegT0, fe.slot[src.ID])
		fe.storeSlot(RegT0, fe.staging[phi.ID])
	}
}

// predIndex finds which predecessor position of succ this edge fills.
func (fe *funcEmit) predIndex(b *ir.Block, succ *ir.Block, edge int) int {
	// Count earlier edges from b into the same successor so parallel
	// edges (branch with both arms equal) resolve in order.
	nth := 0
	for i := 0; i < edge; i++ {
		if b.Succs[i] == succ {
			nth++
		}
	}
	for i, p := range succ.Preds {
		if p == b {
			if nth == 0 {
				return i
			}
			nth--
		}
	}
	panic("rv32: successor does not list this predecessor")
}

// FuncNames returns the function names in emission order, for listings.
func (m *Module) FuncNames() []string {
	names := make([]string, 0, len(m.Funcs))
	for n := range m.Funcs {
		names = append(names, n)
	}
	sort.Slice(names, func(i, j int) bool {
		return m.Funcs[names[i]].Offset < m.Funcs[names[j]].Offset
	})
	return names
}
