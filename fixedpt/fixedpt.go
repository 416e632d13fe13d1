// Package fixedpt rewrites float SSA into saturating Q16.16 integer
// form. After the pass no float opcode survives: constants become bit
// patterns, add/sub/mul become their saturating forms, and division
// becomes a call to the fx_div routine so the divisor-zero trap has a
// single home. Comparisons need no rewrite at all; Q16.16 shares int32
// ordering.
package fixedpt

import (
	"fmt"

	"github.com/gogpu/fxc/builtin"
	"github.com/gogpu/fxc/fixed"
	"github.com/gogpu/fxc/ir"
)

// Rewrite transforms every function in place. It returns an error for
// malformed input: a float opcode it has no rule for, or a builtin call
// whose arity disagrees with the registry. Both indicate a lowering bug,
// not a user error.
func Rewrite(prog *ir.Program, reg *builtin.Registry) error {
	divID, ok := reg.Lookup("div", 2)
	if !ok {
		return fmt.Errorf("fixedpt: registry has no fx_div routine")
	}

	for _, f := range prog.Funcs {
		if err := rewriteFunc(f, reg, divID); err != nil {
			return fmt.Errorf("fixedpt: %s: %w", f.Name, err)
		}
	}
	return nil
}

func rewriteFunc(f *ir.Func, reg *builtin.Registry, divID builtin.ID) error {
	for _, b := range f.Blocks {
		for _, v := range b.Instrs {
			if err := rewriteValue(v, reg, divID); err != nil {
				return err
			}
		}
	}

	// Nothing float-typed may survive the pass.
	for _, b := range f.Blocks {
		for _, v := range b.Instrs {
			if v.Op.IsFloat() {
				return fmt.Errorf("float op %s survived rewrite (v%d)", v.Op, v.ID)
			}
		}
	}
	return nil
}

func rewriteValue(v *ir.Value, reg *builtin.Registry, divID builtin.ID) error {
	switch v.Op {
	case ir.OpConstFloat:
		v.Op = ir.OpConstInt
		v.Aux = int64(int32(fixed.FromFloat(v.AuxF)))
		v.AuxF = 0

	case ir.OpFAdd:
		v.Op = ir.OpAddSat
	case ir.OpFSub:
		v.Op = ir.OpSubSat
	case ir.OpFNeg:
		v.Op = ir.OpNegSat
	case ir.OpFMul:
		v.Op = ir.OpMulQ

	case ir.OpFDiv:
		// Route through the division routine; it owns saturation and
		// the divisor-zero trap.
		v.Op = ir.OpCallBuiltin
		v.Aux = int64(divID)

	case ir.OpIntToFloat:
		v.Op = ir.OpIntToFix
	case ir.OpUintToFloat:
		v.Op = ir.OpUintToFix
	case ir.OpFloatToInt, ir.OpFloatToUint:
		v.Op = ir.OpFixToInt

	case ir.OpCallBuiltin:
		sig, ok := reg.Signature(builtin.ID(v.Aux))
		if !ok {
			return fmt.Errorf("call to unknown builtin id %d (v%d)", v.Aux, v.ID)
		}
		if len(v.Args) != sig.Params {
			return fmt.Errorf("builtin id %d called with %d args, want %d (v%d)",
				v.Aux, len(v.Args), sig.Params, v.ID)
		}
	}
	return nil
}
