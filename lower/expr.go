package lower

import (
	"fmt"

	"github.com/gogpu/fxc/ir"
	"github.com/gogpu/fxc/sem"
)

// expr lowers an expression to its flattened components, one IR value
// per scalar.
func (lf *fnLower) expr(e sem.Expr) []*ir.Value {
	switch x := e.(type) {
	case *sem.Const:
		return lf.constant(x)
	case *sem.VarRef:
		return lf.varRef(x.Sym)
	case *sem.Unary:
		return lf.unary(x)
	case *sem.Binary:
		return lf.binary(x)
	case *sem.MatMul:
		return lf.matMul(x)
	case *sem.Select:
		return lf.selectExpr(x)
	case *sem.Convert:
		return lf.convert(x)
	case *sem.Construct:
		return lf.construct(x)
	case *sem.CallBuiltin:
		// Vector arguments apply the scalar routine per component;
		// scalar arguments broadcast across the calls.
		width := x.T.Components()
		flat := make([][]*ir.Value, len(x.Args))
		for i, a := range x.Args {
			flat[i] = lf.expr(a)
		}
		out := make([]*ir.Value, width)
		for c := 0; c < width; c++ {
			args := make([]*ir.Value, len(flat))
			for i, vs := range flat {
				if len(vs) == 1 {
					args[i] = vs[0]
				} else {
					args[i] = vs[c]
				}
			}
			out[c] = lf.b.CallBuiltin(int(x.ID), args...)
		}
		return out
	case *sem.Call:
		var args []*ir.Value
		for _, a := range x.Args {
			args = append(args, lf.expr(a)...)
		}
		call := lf.b.Call(x.Fn.Name, args...)
		if x.T.Kind == sem.KindVoid {
			return nil
		}
		return []*ir.Value{call}
	case *sem.Index:
		return lf.index(x)
	case *sem.Member:
		base := lf.expr(x.X)
		n := x.T.Components()
		return base[x.Offset : x.Offset+n]
	}
	panic(fmt.Sprintf("lower: unhandled expression %T", e))
}

func (lf *fnLower) constant(c *sem.Const) []*ir.Value {
	t := c.Val.Type
	out := make([]*ir.Value, t.Components())
	for i := range out {
		comp := c.Val.Comps[i]
		switch t.ComponentType(i).Kind {
		case sem.KindFloat:
			out[i] = lf.b.ConstFloat(comp.F)
		case sem.KindBool:
			if comp.B {
				out[i] = lf.b.ConstInt(1)
			} else {
				out[i] = lf.b.ConstInt(0)
			}
		default:
			out[i] = lf.b.ConstInt(comp.I)
		}
	}
	return out
}

func (lf *fnLower) varRef(sym *sem.Symbol) []*ir.Value {
	n := sym.Type.Components()
	out := make([]*ir.Value, n)
	if arr, ok := lf.arrays[sym]; ok {
		for j := 0; j < n; j++ {
			idx := lf.b.ConstInt(int64(j))
			out[j] = lf.b.NewInstr(ir.OpArrayLoad, arr, idx)
		}
		return out
	}
	slot := lf.slotOf(sym)
	for j := 0; j < n; j++ {
		out[j] = lf.b.ReadVar(slot + j)
	}
	return out
}

func (lf *fnLower) unary(x *sem.Unary) []*ir.Value {
	operand := lf.expr(x.X)
	out := make([]*ir.Value, len(operand))
	for i, v := range operand {
		switch x.Op {
		case sem.UnNeg:
			if componentIsFloat(x.T, i) {
				out[i] = lf.b.NewInstr(ir.OpFNeg, v)
			} else {
				out[i] = lf.b.NewInstr(ir.OpNeg, v)
			}
		case sem.UnNot:
			out[i] = lf.b.NewInstr(ir.OpNot, v)
		case sem.UnBitNot:
			out[i] = lf.b.NewInstr(ir.OpBitNot, v)
		default:
			panic("lower: invalid unary op")
		}
	}
	return out
}

func componentIsFloat(t *sem.Type, i int) bool {
	return t.ComponentType(i).Kind == sem.KindFloat
}

func (lf *fnLower) binary(x *sem.Binary) []*ir.Value {
	switch x.Op {
	case sem.BinLogAnd, sem.BinLogOr:
		return lf.shortCircuit(x)
	case sem.BinEq, sem.BinNe:
		return lf.equality(x)
	}

	l := lf.expr(x.L)
	r := lf.expr(x.R)

	// a > b is b < a; the target only has less-than forms.
	op := x.Op
	switch op {
	case sem.BinGt:
		op, l, r = sem.BinLt, r, l
	case sem.BinGe:
		op, l, r = sem.BinLe, r, l
	}

	n := x.T.Components()
	l = broadcast(l, n)
	r = broadcast(r, n)

	lt := x.L.Type()
	out := make([]*ir.Value, n)
	for i := 0; i < n; i++ {
		out[i] = lf.b.NewInstr(scalarBinOp(op, operandKind(lt)), l[i], r[i])
	}
	return out
}

// broadcast repeats a scalar operand across n components.
func broadcast(vals []*ir.Value, n int) []*ir.Value {
	if len(vals) == n {
		return vals
	}
	if len(vals) != 1 {
		panic("lower: operand shape mismatch")
	}
	out := make([]*ir.Value, n)
	for i := range out {
		out[i] = vals[0]
	}
	return out
}

// operandKind gives the scalar kind that selects the instruction
// variant: the component kind for composites.
func operandKind(t *sem.Type) sem.Kind {
	switch t.Kind {
	case sem.KindVector, sem.KindMatrix, sem.KindArray:
		return operandKind(t.Base)
	}
	return t.Kind
}

func scalarBinOp(op sem.BinOp, kind sem.Kind) ir.Op {
	fl := kind == sem.KindFloat
	un := kind == sem.KindUInt
	switch op {
	case sem.BinAdd:
		if fl {
			return ir.OpFAdd
		}
		return ir.OpAdd
	case sem.BinSub:
		if fl {
			return ir.OpFSub
		}
		return ir.OpSub
	case sem.BinMul:
		if fl {
			return ir.OpFMul
		}
		return ir.OpMul
	case sem.BinDiv:
		switch {
		case fl:
			return ir.OpFDiv
		case un:
			return ir.OpDivU
		default:
			return ir.OpDiv
		}
	case sem.BinMod:
		if un {
			return ir.OpModU
		}
		return ir.OpMod
	case sem.BinAnd:
		return ir.OpAnd
	case sem.BinOr:
		return ir.OpOr
	case sem.BinXor:
		return ir.OpXor
	case sem.BinShl:
		return ir.OpShl
	case sem.BinShr:
		if un {
			return ir.OpShrU
		}
		return ir.OpShrS
	// Q16.16 shares int32 ordering, so float comparisons use the
	// signed integer forms.
	case sem.BinLt:
		if un {
			return ir.OpLtU
		}
		return ir.OpLtS
	case sem.BinLe:
		if un {
			return ir.OpLeU
		}
		return ir.OpLeS
	case sem.BinGt, sem.BinGe:
		panic("lower: gt/ge must be swapped before instruction selection")
	}
	panic(fmt.Sprintf("lower: unhandled binary op %d", op))
}

// equality compares component-wise and folds the results with and/or.
func (lf *fnLower) equality(x *sem.Binary) []*ir.Value {
	l := lf.expr(x.L)
	r := lf.expr(x.R)
	op := ir.OpEq
	fold := ir.OpAnd
	if x.Op == sem.BinNe {
		op = ir.OpNe
		fold = ir.OpOr
	}
	var acc *ir.Value
	for i := range l {
		c := lf.b.NewInstr(op, l[i], r[i])
		if acc == nil {
			acc = c
		} else {
			acc = lf.b.NewInstr(fold, acc, c)
		}
	}
	return []*ir.Value{acc}
}

// shortCircuit lowers && and || with control flow so the right side is
// evaluated only when it matters.
func (lf *fnLower) shortCircuit(x *sem.Binary) []*ir.Value {
	slot := lf.tempSlots(1)
	l := lf.expr(x.L)[0]
	lf.b.WriteVar(slot, l)

	rhs := lf.f.NewBlock()
	join := lf.f.NewBlock()
	if x.Op == sem.BinLogAnd {
		lf.b.Branch(l, rhs, join)
	} else {
		lf.b.Branch(l, join, rhs)
	}
	rhs.Seal()

	lf.b = rhs
	r := lf.expr(x.R)[0]
	lf.b.WriteVar(slot, r)
	lf.b.Jump(join)

	join.Seal()
	lf.b = join
	return []*ir.Value{lf.b.ReadVar(slot)}
}

// selectExpr lowers the ternary with control flow: only the taken arm
// runs, so a trap in the untaken arm cannot fire.
func (lf *fnLower) selectExpr(x *sem.Select) []*ir.Value {
	n := x.T.Components()
	slot := lf.tempSlots(n)

	cond := lf.expr(x.Cond)[0]
	thenB := lf.f.NewBlock()
	elseB := lf.f.NewBlock()
	join := lf.f.NewBlock()
	lf.b.Branch(cond, thenB, elseB)
	thenB.Seal()
	elseB.Seal()

	lf.b = thenB
	for i, v := range lf.expr(x.Then) {
		lf.b.WriteVar(slot+i, v)
	}
	lf.b.Jump(join)

	lf.b = elseB
	for i, v := range lf.expr(x.Else) {
		lf.b.WriteVar(slot+i, v)
	}
	lf.b.Jump(join)

	join.Seal()
	lf.b = join
	out := make([]*ir.Value, n)
	for i := range out {
		out[i] = lf.b.ReadVar(slot + i)
	}
	return out
}

func (lf *fnLower) convert(x *sem.Convert) []*ir.Value {
	from := x.X.Type()
	src := lf.expr(x.X)
	out := make([]*ir.Value, len(src))
	for i, v := range src {
		out[i] = lf.convertScalar(v, operandKind(from), operandKind(x.T))
	}
	return out
}

func (lf *fnLower) convertScalar(v *ir.Value, from, to sem.Kind) *ir.Value {
	if from == to {
		return v
	}
	switch {
	case to == sem.KindFloat && from == sem.KindInt:
		return lf.b.NewInstr(ir.OpIntToFloat, v)
	case to == sem.KindFloat && from == sem.KindUInt:
		return lf.b.NewInstr(ir.OpUintToFloat, v)
	case to == sem.KindFloat && from == sem.KindBool:
		return lf.b.NewInstr(ir.OpIntToFloat, v)
	case to == sem.KindInt && from == sem.KindFloat:
		return lf.b.NewInstr(ir.OpFloatToInt, v)
	case to == sem.KindUInt && from == sem.KindFloat:
		return lf.b.NewInstr(ir.OpFloatToUint, v)
	case to == sem.KindBool:
		zero := lf.b.ConstInt(0)
		if from == sem.KindFloat {
			// Q16.16 zero is bit-pattern zero.
			return lf.b.NewInstr(ir.OpNe, v, zero)
		}
		return lf.b.NewInstr(ir.OpNe, v, zero)
	case from == sem.KindBool, from == sem.KindInt, from == sem.KindUInt:
		// int/uint/bool reinterpret in place.
		return v
	}
	panic(fmt.Sprintf("lower: invalid conversion %v -> %v", from, to))
}

func (lf *fnLower) construct(x *sem.Construct) []*ir.Value {
	t := x.T
	n := t.Components()

	// Single scalar: splat for vectors, diagonal for matrices.
	if len(x.Args) == 1 && x.Args[0].Type().IsScalar() && n > 1 {
		s := lf.expr(x.Args[0])[0]
		out := make([]*ir.Value, n)
		if t.Kind == sem.KindMatrix {
			var zero *ir.Value
			for c := 0; c < t.Cols; c++ {
				for r := 0; r < t.Rows; r++ {
					if c == r {
						out[c*t.Rows+r] = s
					} else {
						if zero == nil {
							zero = lf.b.ConstFloat(0)
						}
						out[c*t.Rows+r] = zero
					}
				}
			}
		} else {
			for i := range out {
				out[i] = s
			}
		}
		return out
	}

	out := make([]*ir.Value, 0, n)
	for _, a := range x.Args {
		out = append(out, lf.expr(a)...)
	}
	return out
}

// matMul lowers linear-algebra products. Matrices are column-major:
// element (col, row) lives at col*Rows + row.
func (lf *fnLower) matMul(x *sem.MatMul) []*ir.Value {
	lt, rt := x.L.Type(), x.R.Type()
	l := lf.expr(x.L)
	r := lf.expr(x.R)

	mulAdd := func(acc, a, b *ir.Value) *ir.Value {
		prod := lf.b.NewInstr(ir.OpFMul, a, b)
		if acc == nil {
			return prod
		}
		return lf.b.NewInstr(ir.OpFAdd, acc, prod)
	}

	switch {
	case lt.Kind == sem.KindMatrix && rt.Kind == sem.KindMatrix:
		n := lt.Cols
		out := make([]*ir.Value, n*n)
		for c := 0; c < n; c++ {
			for row := 0; row < n; row++ {
				var acc *ir.Value
				for k := 0; k < n; k++ {
					acc = mulAdd(acc, l[k*n+row], r[c*n+k])
				}
				out[c*n+row] = acc
			}
		}
		return out

	case lt.Kind == sem.KindMatrix && rt.Kind == sem.KindVector:
		n := lt.Cols
		out := make([]*ir.Value, lt.Rows)
		for row := 0; row < lt.Rows; row++ {
			var acc *ir.Value
			for c := 0; c < n; c++ {
				acc = mulAdd(acc, l[c*lt.Rows+row], r[c])
			}
			out[row] = acc
		}
		return out

	case lt.Kind == sem.KindVector && rt.Kind == sem.KindMatrix:
		out := make([]*ir.Value, rt.Cols)
		for c := 0; c < rt.Cols; c++ {
			var acc *ir.Value
			for row := 0; row < rt.Rows; row++ {
				acc = mulAdd(acc, l[row], r[c*rt.Rows+row])
			}
			out[c] = acc
		}
		return out
	}
	panic("lower: invalid matrix product")
}

// index lowers an element read. Array-backed chains load from storage;
// SSA composites pick the component directly for constant indices and
// spill to a temporary slot for dynamic ones.
func (lf *fnLower) index(x *sem.Index) []*ir.Value {
	if sym := rootSym(x); sym != nil {
		if _, backed := lf.arrays[sym]; backed {
			return lf.load(lf.addr(x))
		}
	}

	base := lf.expr(x.X)
	elems := indexLen(x.X.Type())
	k := x.T.Components()

	if x.Const != nil {
		c := *x.Const
		if c < 0 || c >= elems {
			// Always out of range: trap at run time, poison value after.
			bad := lf.b.ConstInt(int64(c))
			lf.b.BoundsCheck(bad, elems)
			return base[:k]
		}
		return base[c*k : c*k+k]
	}

	// Dynamic index on an SSA composite: spill to a temporary slot.
	idx := lf.expr(x.Idx)[0]
	lf.b.BoundsCheck(idx, elems)
	arr := lf.b.ArrayAlloc(len(base))
	for j, v := range base {
		jv := lf.b.ConstInt(int64(j))
		lf.b.NewInstr(ir.OpArrayStore, arr, jv, v)
	}
	out := make([]*ir.Value, k)
	scaled := lf.scaleIndex(idx, k)
	for j := 0; j < k; j++ {
		addr := lf.offsetIndex(scaled, j)
		out[j] = lf.b.NewInstr(ir.OpArrayLoad, arr, addr)
	}
	return out
}

func indexLen(t *sem.Type) int {
	switch t.Kind {
	case sem.KindVector:
		return t.Size
	case sem.KindMatrix:
		return t.Cols
	case sem.KindArray:
		return t.Size
	}
	panic("lower: type is not indexable")
}

func (lf *fnLower) scaleIndex(idx *ir.Value, k int) *ir.Value {
	if k == 1 {
		return idx
	}
	return lf.b.NewInstr(ir.OpMul, idx, lf.b.ConstInt(int64(k)))
}

func (lf *fnLower) offsetIndex(idx *ir.Value, j int) *ir.Value {
	if j == 0 {
		return idx
	}
	return lf.b.NewInstr(ir.OpAdd, idx, lf.b.ConstInt(int64(j)))
}
