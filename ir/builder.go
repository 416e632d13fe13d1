package ir

import (
	"fmt"
	"sort"
)

// The construction protocol follows the on-the-fly SSA algorithm of
// Braun et al.: variables are numbered slots, reads recurse through
// predecessors, and merges materialize as phis. A block whose
// predecessor set is final must be sealed before reads through it can be
// trusted; reading an unsealed block parks a placeholder phi that seal
// resolves. Misusing the protocol is a bug in the lowering pass, so the
// builder panics rather than returning errors.

// Seal marks the predecessor set final and resolves placeholder phis.
// Sealing twice panics; wiring a new edge into a sealed block panics.
func (b *Block) Seal() {
	if b.sealed {
		panic(fmt.Sprintf("ir: block b%d sealed twice", b.ID))
	}
	b.sealed = true
	// Resolve pending slots in slot order so value numbering does not
	// depend on map iteration.
	slots := make([]int, 0, len(b.incomplete))
	for slot := range b.incomplete {
		slots = append(slots, slot)
	}
	sort.Ints(slots)
	for _, slot := range slots {
		b.addPhiArgs(slot, b.incomplete[slot])
	}
	b.incomplete = nil
}

// WriteVar sets the current definition of a variable slot in this block.
func (b *Block) WriteVar(slot int, v *Value) {
	b.defs[slot] = v
}

// ReadVar returns the reaching definition of a variable slot, creating
// phis at merges as needed.
func (b *Block) ReadVar(slot int) *Value {
	if v, ok := b.defs[slot]; ok {
		return v.resolve()
	}
	return b.readRecursive(slot)
}

func (b *Block) readRecursive(slot int) *Value {
	var v *Value
	switch {
	case !b.sealed:
		// Predecessors still unknown; park a placeholder.
		v = b.newPhi()
		b.incomplete[slot] = v
	case len(b.Preds) == 1:
		v = b.Preds[0].ReadVar(slot)
	default:
		// Break cycles by writing the phi before visiting preds.
		v = b.newPhi()
		b.defs[slot] = v
		v = b.addPhiArgs(slot, v)
	}
	b.defs[slot] = v
	return v
}

func (b *Block) newPhi() *Value {
	phi := b.Fn.newValue(OpPhi)
	phi.Block = b
	b.Params = append(b.Params, phi)
	return phi
}

// addPhiArgs fills a phi's incoming values from the predecessors and
// removes it again if it turned out trivial.
func (b *Block) addPhiArgs(slot int, phi *Value) *Value {
	for _, pred := range b.Preds {
		arg := pred.ReadVar(slot)
		phi.Args = append(phi.Args, arg)
		arg.addUse(phi)
	}
	return b.removeTrivialPhi(slot, phi)
}

// removeTrivialPhi eliminates phis that merge a single distinct value
// (possibly through self-references), then rechecks any phi users that
// may have become trivial in turn.
func (b *Block) removeTrivialPhi(slot int, phi *Value) *Value {
	var same *Value
	for _, arg := range phi.Args {
		if arg == same || arg == phi {
			continue
		}
		if same != nil {
			return phi // merges at least two values
		}
		same = arg
	}
	if same == nil {
		// Unreachable or undefined read; keep the phi as a poison value.
		return phi
	}

	users := make([]*Value, 0, len(phi.uses))
	for _, u := range phi.uses {
		if u != phi {
			users = append(users, u)
		}
	}
	same = same.resolve()
	phi.ReplaceWith(same)
	phi.forward = same
	b.dropParam(phi)
	if b.defs[slot] == phi {
		b.defs[slot] = same
	}

	for _, u := range users {
		if u.Op == OpPhi {
			u.Block.removeTrivialPhi(-1, u)
		}
	}
	return same
}

func (b *Block) dropParam(phi *Value) {
	for i, p := range b.Params {
		if p == phi {
			b.Params = append(b.Params[:i], b.Params[i+1:]...)
			return
		}
	}
}

// ---------------------------------------------------------------------------
// Instructions
// ---------------------------------------------------------------------------

func (b *Block) append(v *Value) *Value {
	if b.Term != nil {
		panic(fmt.Sprintf("ir: instruction after terminator in b%d", b.ID))
	}
	v.Block = b
	b.Instrs = append(b.Instrs, v)
	return v
}

// ConstInt appends an integer constant.
func (b *Block) ConstInt(v int64) *Value {
	c := b.Fn.newValue(OpConstInt)
	c.Aux = v
	return b.append(c)
}

// ConstFloat appends a float constant. The fixed-point pass turns it
// into the Q16.16 bit pattern.
func (b *Block) ConstFloat(v float64) *Value {
	c := b.Fn.newValue(OpConstFloat)
	c.AuxF = v
	return b.append(c)
}

// Arg appends a reference to flattened function argument i.
func (b *Block) Arg(i int) *Value {
	if i < 0 || i >= b.Fn.NumArgs {
		panic(fmt.Sprintf("ir: argument %d out of range for %s", i, b.Fn.Name))
	}
	a := b.Fn.newValue(OpArg)
	a.Aux = int64(i)
	return b.append(a)
}

// NewInstr appends a generic instruction.
func (b *Block) NewInstr(op Op, args ...*Value) *Value {
	if op.IsTerminator() || op == OpPhi {
		panic(fmt.Sprintf("ir: %s is not a plain instruction", op))
	}
	return b.append(b.Fn.newValue(op, args...))
}

// CallBuiltin appends a builtin call by registry id.
func (b *Block) CallBuiltin(id int, args ...*Value) *Value {
	v := b.Fn.newValue(OpCallBuiltin, args...)
	v.Aux = int64(id)
	return b.append(v)
}

// Call appends a call to a user function by name.
func (b *Block) Call(callee string, args ...*Value) *Value {
	v := b.Fn.newValue(OpCall, args...)
	v.AuxFunc = callee
	return b.append(v)
}

// ArrayAlloc appends an array slot of n elements.
func (b *Block) ArrayAlloc(n int) *Value {
	v := b.Fn.newValue(OpArrayAlloc)
	v.Aux = int64(n)
	return b.append(v)
}

// BoundsCheck appends a check that 0 <= idx < length.
func (b *Block) BoundsCheck(idx *Value, length int) *Value {
	v := b.Fn.newValue(OpBoundsCheck, idx)
	v.Aux = int64(length)
	return b.append(v)
}

// ---------------------------------------------------------------------------
// Terminators
// ---------------------------------------------------------------------------

func (b *Block) terminate(v *Value) {
	if b.Term != nil {
		panic(fmt.Sprintf("ir: block b%d terminated twice", b.ID))
	}
	v.Block = b
	b.Term = v
}

func (b *Block) addEdge(to *Block) {
	if to.sealed {
		panic(fmt.Sprintf("ir: edge into sealed block b%d", to.ID))
	}
	b.Succs = append(b.Succs, to)
	to.Preds = append(to.Preds, b)
}

// Jump terminates the block with an unconditional jump.
func (b *Block) Jump(to *Block) {
	b.terminate(b.Fn.newValue(OpJump))
	b.addEdge(to)
}

// Branch terminates the block with a conditional branch.
func (b *Block) Branch(cond *Value, then, els *Block) {
	b.terminate(b.Fn.newValue(OpBranch, cond))
	b.addEdge(then)
	b.addEdge(els)
}

// Return terminates the block, with a value for non-void functions.
func (b *Block) Return(v *Value) {
	if v == nil {
		b.terminate(b.Fn.newValue(OpReturn))
		return
	}
	b.terminate(b.Fn.newValue(OpReturn, v))
}

// Trap terminates the block with an unconditional trap.
func (b *Block) Trap(code int) {
	v := b.Fn.newValue(OpTrap)
	v.Aux = int64(code)
	b.terminate(v)
}
