package ir

import "fmt"

// Trap codes reported by generated code and the emulator. The numbering
// is part of the target ABI and must not change.
const (
	TrapBounds      = 1 // array or component index out of range
	TrapDivZero     = 2 // integer or fixed-point division by zero
	TrapDomain      = 3 // builtin argument outside its domain
	TrapUnreachable = 4 // control reached a point the front end proved dead
	TrapIllegal     = 5 // emulator: undecodable instruction
)

// TrapName returns a short human-readable name for a trap code.
func TrapName(code int) string {
	switch code {
	case TrapBounds:
		return "out of bounds"
	case TrapDivZero:
		return "division by zero"
	case TrapDomain:
		return "domain error"
	case TrapUnreachable:
		return "unreachable"
	case TrapIllegal:
		return "illegal instruction"
	}
	return fmt.Sprintf("trap %d", code)
}

// Value is one SSA instruction and the value it produces. Phis live in
// Block.Params with Args aligned to Block.Preds; everything else lives in
// Block.Instrs in execution order.
type Value struct {
	ID    int
	Op    Op
	Args  []*Value
	Aux   int64   // op-specific payload: constant, arg index, builtin id, trap code, array length
	AuxF  float64 // OpConstFloat payload
	Block *Block

	// AuxFunc is the callee for OpCall. Calls resolve by name; the
	// emitter binds them to addresses.
	AuxFunc string

	uses    []*Value
	forward *Value // set when the value was removed in favor of another
}

// resolve follows forwarding links left behind by removed trivial phis.
func (v *Value) resolve() *Value {
	for v.forward != nil {
		v = v.forward
	}
	return v
}

func (v *Value) String() string { return fmt.Sprintf("v%d", v.ID) }

// Uses returns the instructions consuming v. The slice is shared; do not
// mutate it.
func (v *Value) Uses() []*Value { return v.uses }

func (v *Value) addUse(by *Value) { v.uses = append(v.uses, by) }

func (v *Value) removeUse(by *Value) {
	for i, u := range v.uses {
		if u == by {
			v.uses[i] = v.uses[len(v.uses)-1]
			v.uses = v.uses[:len(v.uses)-1]
			return
		}
	}
}

// SetArg rewrites argument i, keeping use lists consistent.
func (v *Value) SetArg(i int, arg *Value) {
	if old := v.Args[i]; old != nil {
		old.removeUse(v)
	}
	v.Args[i] = arg
	arg.addUse(v)
}

// ReplaceWith redirects every use of v to other and detaches v's own
// arguments. v itself stays in the block until a cleanup pass drops it.
func (v *Value) ReplaceWith(other *Value) {
	for len(v.uses) > 0 {
		u := v.uses[0]
		for i, a := range u.Args {
			if a == v {
				u.SetArg(i, other)
			}
		}
	}
	for i, a := range v.Args {
		if a != nil {
			a.removeUse(v)
			v.Args[i] = nil
		}
	}
	v.Op = OpInvalid
}

// Block is a basic block. Preds fill in as terminators are wired; a block
// must be sealed (no more predecessors) before variable reads through it
// are final.
type Block struct {
	ID     int
	Fn     *Func
	Params []*Value // phis, Args aligned with Preds
	Preds  []*Block
	Instrs []*Value
	Term   *Value // nil until terminated
	Succs  []*Block

	sealed     bool
	defs       map[int]*Value // variable slot -> current definition
	incomplete map[int]*Value // variable slot -> placeholder phi awaiting seal
}

// Sealed reports whether the block's predecessor set is final.
func (b *Block) Sealed() bool { return b.sealed }

// Terminated reports whether the block already has a terminator.
func (b *Block) Terminated() bool { return b.Term != nil }

// Func is one function in SSA form. NumArgs counts flattened scalar
// parameters; results are always a single scalar (or none).
type Func struct {
	Name    string
	NumArgs int
	HasRet  bool
	Entry   *Block
	Blocks  []*Block

	nextValue int
}

// NewFunc returns an empty function with a created (unsealed) entry
// block. The entry has no predecessors; callers seal it immediately.
func NewFunc(name string, numArgs int, hasRet bool) *Func {
	f := &Func{Name: name, NumArgs: numArgs, HasRet: hasRet}
	f.Entry = f.NewBlock()
	return f
}

// NewBlock creates an unsealed, unterminated block.
func (f *Func) NewBlock() *Block {
	b := &Block{
		ID:         len(f.Blocks),
		Fn:         f,
		defs:       make(map[int]*Value),
		incomplete: make(map[int]*Value),
	}
	f.Blocks = append(f.Blocks, b)
	return b
}

func (f *Func) newValue(op Op, args ...*Value) *Value {
	v := &Value{ID: f.nextValue, Op: op, Args: args}
	f.nextValue++
	for _, a := range args {
		a.addUse(v)
	}
	return v
}

// NumValues returns the number of values ever created, for dense
// auxiliary tables in later passes.
func (f *Func) NumValues() int { return f.nextValue }

// Program is a set of functions after lowering. Funcs[0] is the entry
// point handed to Compile.
type Program struct {
	Funcs []*Func
}

// Lookup finds a function by name.
func (p *Program) Lookup(name string) *Func {
	for _, f := range p.Funcs {
		if f.Name == name {
			return f
		}
	}
	return nil
}
