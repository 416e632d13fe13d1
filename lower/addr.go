package lower

import (
	"fmt"

	"github.com/gogpu/fxc/ir"
	"github.com/gogpu/fxc/sem"
)

// location is a resolved lvalue: a contiguous run of comps components at
// offset static (plus any dynamic index terms) inside a symbol's
// flattened layout. Storage-backed symbols address their array slot;
// SSA-backed ones address variable slots.
type location struct {
	sym    *sem.Symbol
	arr    *ir.Value // storage slot handle, nil for SSA-backed
	static int
	dyn    []dynTerm
	comps  int
}

type dynTerm struct {
	idx   *ir.Value
	scale int
}

// rootSym finds the symbol an access chain bottoms out in, or nil for
// chains rooted in temporaries.
func rootSym(e sem.Expr) *sem.Symbol {
	for {
		switch x := e.(type) {
		case *sem.VarRef:
			return x.Sym
		case *sem.Index:
			e = x.X
		case *sem.Member:
			e = x.X
		default:
			return nil
		}
	}
}

// addr resolves an access chain, emitting bounds checks for every index
// step as it goes.
func (lf *fnLower) addr(e sem.Expr) location {
	switch x := e.(type) {
	case *sem.VarRef:
		return location{
			sym:   x.Sym,
			arr:   lf.arrays[x.Sym],
			comps: x.Sym.Type.Components(),
		}

	case *sem.Member:
		loc := lf.addr(x.X)
		loc.static += x.Offset
		loc.comps = x.T.Components()
		return loc

	case *sem.Index:
		loc := lf.addr(x.X)
		elems := indexLen(x.X.Type())
		k := x.T.Components()
		loc.comps = k

		if x.Const != nil {
			c := *x.Const
			if c < 0 || c >= elems {
				bad := lf.b.ConstInt(int64(c))
				lf.b.BoundsCheck(bad, elems)
				return loc
			}
			loc.static += c * k
			return loc
		}

		idx := lf.expr(x.Idx)[0]
		lf.b.BoundsCheck(idx, elems)
		loc.dyn = append(loc.dyn, dynTerm{idx: idx, scale: k})
		return loc
	}
	panic(fmt.Sprintf("lower: expression %T is not addressable", e))
}

// linearize combines the location's offset terms into one index value,
// or returns nil when the offset is fully static.
func (lf *fnLower) linearize(loc location) *ir.Value {
	if len(loc.dyn) == 0 {
		return nil
	}
	var acc *ir.Value
	for _, d := range loc.dyn {
		term := lf.scaleIndex(d.idx, d.scale)
		if acc == nil {
			acc = term
		} else {
			acc = lf.b.NewInstr(ir.OpAdd, acc, term)
		}
	}
	if loc.static != 0 {
		acc = lf.b.NewInstr(ir.OpAdd, acc, lf.b.ConstInt(int64(loc.static)))
	}
	return acc
}

// load reads the addressed components.
func (lf *fnLower) load(loc location) []*ir.Value {
	out := make([]*ir.Value, loc.comps)

	if loc.arr != nil {
		lin := lf.linearize(loc)
		for j := 0; j < loc.comps; j++ {
			var idx *ir.Value
			if lin == nil {
				idx = lf.b.ConstInt(int64(loc.static + j))
			} else {
				idx = lf.offsetIndex(lin, j)
			}
			out[j] = lf.b.NewInstr(ir.OpArrayLoad, loc.arr, idx)
		}
		return out
	}

	if len(loc.dyn) != 0 {
		panic("lower: dynamic load through SSA location")
	}
	base := lf.slotOf(loc.sym)
	for j := 0; j < loc.comps; j++ {
		out[j] = lf.b.ReadVar(base + loc.static + j)
	}
	return out
}

// store writes the addressed components. A dynamic index into an
// SSA-backed composite merges via selects: every component of the symbol
// keeps its old value unless the computed position hits it.
func (lf *fnLower) store(loc location, vals []*ir.Value) {
	if len(vals) != loc.comps {
		panic("lower: store shape mismatch")
	}

	if loc.arr != nil {
		lin := lf.linearize(loc)
		for j, v := range vals {
			var idx *ir.Value
			if lin == nil {
				idx = lf.b.ConstInt(int64(loc.static + j))
			} else {
				idx = lf.offsetIndex(lin, j)
			}
			lf.b.NewInstr(ir.OpArrayStore, loc.arr, idx, v)
		}
		return
	}

	base := lf.slotOf(loc.sym)
	if len(loc.dyn) == 0 {
		for j, v := range vals {
			lf.b.WriteVar(base+loc.static+j, v)
		}
		return
	}

	lin := lf.linearize(loc)
	total := loc.sym.Type.Components()
	for p := 0; p < total; p++ {
		old := lf.b.ReadVar(base + p)
		merged := old
		for j, v := range vals {
			pos := lf.offsetIndex(lin, j)
			hit := lf.b.NewInstr(ir.OpEq, pos, lf.b.ConstInt(int64(p)))
			merged = lf.b.NewInstr(ir.OpSelect, hit, v, merged)
		}
		lf.b.WriteVar(base+p, merged)
	}
}
