package ir

import (
	"fmt"
	"io"
	"strings"
)

// Fprint writes a textual listing of the function, one block per
// paragraph. The format is stable and used by snapshot tests.
func Fprint(w io.Writer, f *Func) {
	ret := "void"
	if f.HasRet {
		ret = "i32"
	}
	fmt.Fprintf(w, "func %s(%d) %s {\n", f.Name, f.NumArgs, ret)
	for _, b := range f.Blocks {
		fprintBlock(w, b)
	}
	fmt.Fprintln(w, "}")
}

// FprintProgram writes every function in order.
func FprintProgram(w io.Writer, p *Program) {
	for i, f := range p.Funcs {
		if i > 0 {
			fmt.Fprintln(w)
		}
		Fprint(w, f)
	}
}

// String returns the Fprint listing, mainly for debugging.
func (f *Func) String() string {
	var sb strings.Builder
	Fprint(&sb, f)
	return sb.String()
}

func fprintBlock(w io.Writer, b *Block) {
	fmt.Fprintf(w, "b%d:", b.ID)
	if len(b.Preds) > 0 {
		preds := make([]string, len(b.Preds))
		for i, p := range b.Preds {
			preds[i] = fmt.Sprintf("b%d", p.ID)
		}
		fmt.Fprintf(w, " <- %s", strings.Join(preds, ", "))
	}
	fmt.Fprintln(w)

	for _, phi := range b.Params {
		args := make([]string, len(phi.Args))
		for i, a := range phi.Args {
			args[i] = fmt.Sprintf("%s@b%d", a, b.Preds[i].ID)
		}
		fmt.Fprintf(w, "\t%s = phi %s\n", phi, strings.Join(args, ", "))
	}
	for _, v := range b.Instrs {
		if v.Op == OpInvalid {
			continue
		}
		fmt.Fprintf(w, "\t%s\n", instrString(v))
	}
	if b.Term != nil {
		fmt.Fprintf(w, "\t%s\n", termString(b))
	}
}

func instrString(v *Value) string {
	args := make([]string, len(v.Args))
	for i, a := range v.Args {
		args[i] = a.String()
	}
	operands := strings.Join(args, ", ")

	switch v.Op {
	case OpConstInt:
		return fmt.Sprintf("%s = const %d", v, v.Aux)
	case OpConstFloat:
		return fmt.Sprintf("%s = fconst %g", v, v.AuxF)
	case OpArg:
		return fmt.Sprintf("%s = arg %d", v, v.Aux)
	case OpCallBuiltin:
		return fmt.Sprintf("%s = callb #%d %s", v, v.Aux, operands)
	case OpCall:
		return fmt.Sprintf("%s = call %s(%s)", v, v.AuxFunc, operands)
	case OpArrayAlloc:
		return fmt.Sprintf("%s = alloc [%d]", v, v.Aux)
	case OpArrayStore:
		return fmt.Sprintf("store %s", operands)
	case OpBoundsCheck:
		return fmt.Sprintf("bounds %s, %d", operands, v.Aux)
	}
	return fmt.Sprintf("%s = %s %s", v, v.Op, operands)
}

func termString(b *Block) string {
	t := b.Term
	switch t.Op {
	case OpJump:
		return fmt.Sprintf("jump b%d", b.Succs[0].ID)
	case OpBranch:
		return fmt.Sprintf("branch %s, b%d, b%d", t.Args[0], b.Succs[0].ID, b.Succs[1].ID)
	case OpReturn:
		if len(t.Args) == 0 {
			return "ret"
		}
		return fmt.Sprintf("ret %s", t.Args[0])
	case OpTrap:
		return fmt.Sprintf("trap %d (%s)", t.Aux, TrapName(int(t.Aux)))
	}
	return t.Op.String()
}
