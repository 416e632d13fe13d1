package lower

import (
	"fmt"

	"github.com/gogpu/fxc/ir"
	"github.com/gogpu/fxc/sem"
)

// Lower converts a typed program to scalar SSA. Vectors, matrices and
// structs are flattened into one IR value per component; arrays (and any
// aggregate containing one) are backed by per-function storage slots.
// Inconsistencies at this stage are compiler bugs, so lowering panics
// rather than reporting errors.
func Lower(prog *sem.Program) *ir.Program {
	out := &ir.Program{}
	for _, fn := range prog.Functions {
		out.Funcs = append(out.Funcs, lowerFunc(fn))
	}
	return out
}

func lowerFunc(fn *sem.Function) *ir.Func {
	numArgs := 0
	for _, p := range fn.Params {
		numArgs += p.Type.Components()
	}
	f := ir.NewFunc(fn.Name, numArgs, fn.Return.Kind != sem.KindVoid)

	lf := &fnLower{
		f:      f,
		b:      f.Entry,
		slots:  make(map[*sem.Symbol]int),
		arrays: make(map[*sem.Symbol]*ir.Value),
	}
	lf.b.Seal()

	// Bind flattened arguments. Aggregates containing arrays are copied
	// into storage so they can be indexed dynamically.
	base := 0
	for _, p := range fn.Params {
		n := p.Type.Components()
		if containsArray(p.Type) {
			arr := lf.b.ArrayAlloc(n)
			lf.arrays[p] = arr
			for j := 0; j < n; j++ {
				idx := lf.b.ConstInt(int64(j))
				lf.b.NewInstr(ir.OpArrayStore, arr, idx, lf.b.Arg(base+j))
			}
		} else {
			slot := lf.slotOf(p)
			for j := 0; j < n; j++ {
				lf.b.WriteVar(slot+j, lf.b.Arg(base+j))
			}
		}
		base += n
	}

	lf.stmts(fn.Body)

	// Falling off the end: void functions return, anything else is a
	// dynamic error.
	if !lf.b.Terminated() {
		if f.HasRet {
			lf.b.Trap(ir.TrapUnreachable)
		} else {
			lf.b.Return(nil)
		}
	}
	return f
}

type fnLower struct {
	f *ir.Func
	b *ir.Block // current insertion block

	slots  map[*sem.Symbol]int
	arrays map[*sem.Symbol]*ir.Value
	nslots int

	breakTo    []*ir.Block
	continueTo []*ir.Block
}

func (lf *fnLower) slotOf(sym *sem.Symbol) int {
	if s, ok := lf.slots[sym]; ok {
		return s
	}
	s := lf.nslots
	lf.slots[sym] = s
	lf.nslots += sym.Type.Components()
	return s
}

// tempSlots reserves n fresh variable slots for join-point temporaries.
func (lf *fnLower) tempSlots(n int) int {
	s := lf.nslots
	lf.nslots += n
	return s
}

func containsArray(t *sem.Type) bool {
	switch t.Kind {
	case sem.KindArray:
		return true
	case sem.KindStruct:
		for _, f := range t.Struct.Fields {
			if containsArray(f.Type) {
				return true
			}
		}
	}
	return false
}

// ---------------------------------------------------------------------------
// Statements
// ---------------------------------------------------------------------------

func (lf *fnLower) stmts(list []sem.Stmt) {
	for _, s := range list {
		if lf.b.Terminated() {
			return // unreachable tail
		}
		lf.stmt(s)
	}
}

func (lf *fnLower) stmt(s sem.Stmt) {
	switch st := s.(type) {
	case *sem.DeclStmt:
		lf.decl(st)
	case *sem.AssignStmt:
		loc := lf.addr(st.Target)
		lf.store(loc, lf.expr(st.Value))
	case *sem.ExprStmt:
		lf.expr(st.X)
	case *sem.BlockStmt:
		lf.stmts(st.Stmts)
	case *sem.IfStmt:
		lf.ifStmt(st)
	case *sem.ForStmt:
		lf.forStmt(st)
	case *sem.WhileStmt:
		lf.whileStmt(st)
	case *sem.DoWhileStmt:
		lf.doWhileStmt(st)
	case *sem.BreakStmt:
		lf.b.Jump(lf.breakTo[len(lf.breakTo)-1])
	case *sem.ContinueStmt:
		lf.b.Jump(lf.continueTo[len(lf.continueTo)-1])
	case *sem.ReturnStmt:
		if st.Value == nil {
			lf.b.Return(nil)
		} else {
			lf.b.Return(lf.expr(st.Value)[0])
		}
	default:
		panic(fmt.Sprintf("lower: unhandled statement %T", s))
	}
}

func (lf *fnLower) decl(st *sem.DeclStmt) {
	sym := st.Sym
	n := sym.Type.Components()

	if containsArray(sym.Type) {
		lf.arrays[sym] = lf.b.ArrayAlloc(n)
		return
	}

	slot := lf.slotOf(sym)
	if st.Init != nil {
		vals := lf.expr(st.Init)
		for j := 0; j < n; j++ {
			lf.b.WriteVar(slot+j, vals[j])
		}
		return
	}
	// Deterministic default: zero every component.
	zero := lf.b.ConstInt(0)
	for j := 0; j < n; j++ {
		lf.b.WriteVar(slot+j, zero)
	}
}

func (lf *fnLower) ifStmt(st *sem.IfStmt) {
	cond := lf.expr(st.Cond)[0]
	thenB := lf.f.NewBlock()
	join := lf.f.NewBlock()

	if st.Else == nil {
		lf.b.Branch(cond, thenB, join)
		thenB.Seal()
		lf.b = thenB
		lf.stmts(st.Then)
		if !lf.b.Terminated() {
			lf.b.Jump(join)
		}
	} else {
		elseB := lf.f.NewBlock()
		lf.b.Branch(cond, thenB, elseB)
		thenB.Seal()
		elseB.Seal()

		lf.b = thenB
		lf.stmts(st.Then)
		if !lf.b.Terminated() {
			lf.b.Jump(join)
		}

		lf.b = elseB
		lf.stmts(st.Else)
		if !lf.b.Terminated() {
			lf.b.Jump(join)
		}
	}
	join.Seal()
	lf.b = join
}

// whileStmt checks the condition in a header block that is sealed only
// after the back edge from the body exists.
func (lf *fnLower) whileStmt(st *sem.WhileStmt) {
	header := lf.f.NewBlock()
	body := lf.f.NewBlock()
	exit := lf.f.NewBlock()

	lf.b.Jump(header)
	lf.b = header
	cond := lf.expr(st.Cond)[0]
	lf.b.Branch(cond, body, exit)
	body.Seal()

	lf.pushLoop(exit, header)
	lf.b = body
	lf.stmts(st.Body)
	if !lf.b.Terminated() {
		lf.b.Jump(header)
	}
	lf.popLoop()

	header.Seal()
	exit.Seal()
	lf.b = exit
}

// doWhileStmt runs the body first; continue targets the condition block.
func (lf *fnLower) doWhileStmt(st *sem.DoWhileStmt) {
	body := lf.f.NewBlock()
	condB := lf.f.NewBlock()
	exit := lf.f.NewBlock()

	lf.b.Jump(body)

	lf.pushLoop(exit, condB)
	lf.b = body
	lf.stmts(st.Body)
	if !lf.b.Terminated() {
		lf.b.Jump(condB)
	}
	lf.popLoop()

	condB.Seal()
	lf.b = condB
	cond := lf.expr(st.Cond)[0]
	lf.b.Branch(cond, body, exit)
	body.Seal()
	exit.Seal()
	lf.b = exit
}

// forStmt gives continue its own post block between body and header.
func (lf *fnLower) forStmt(st *sem.ForStmt) {
	if st.Init != nil {
		lf.stmt(st.Init)
	}

	header := lf.f.NewBlock()
	body := lf.f.NewBlock()
	post := lf.f.NewBlock()
	exit := lf.f.NewBlock()

	lf.b.Jump(header)
	lf.b = header
	if st.Cond != nil {
		cond := lf.expr(st.Cond)[0]
		lf.b.Branch(cond, body, exit)
	} else {
		one := lf.b.ConstInt(1)
		lf.b.Branch(one, body, exit)
	}
	body.Seal()

	lf.pushLoop(exit, post)
	lf.b = body
	lf.stmts(st.Body)
	if !lf.b.Terminated() {
		lf.b.Jump(post)
	}
	lf.popLoop()

	post.Seal()
	lf.b = post
	if st.Post != nil {
		lf.stmt(st.Post)
	}
	lf.b.Jump(header)

	header.Seal()
	exit.Seal()
	lf.b = exit
}

func (lf *fnLower) pushLoop(brk, cont *ir.Block) {
	lf.breakTo = append(lf.breakTo, brk)
	lf.continueTo = append(lf.continueTo, cont)
}

func (lf *fnLower) popLoop() {
	lf.breakTo = lf.breakTo[:len(lf.breakTo)-1]
	lf.continueTo = lf.continueTo[:len(lf.continueTo)-1]
}
