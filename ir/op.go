package ir

// Op identifies an instruction. Values are 32-bit scalars throughout;
// vectors, matrices and structs are scalarized before IR construction.
type Op uint8

const (
	OpInvalid Op = iota

	// Constants and arguments.
	OpConstInt   // Aux: value as int64 (int, uint, bool as 0/1)
	OpConstFloat // AuxF: value; rewritten to OpConstInt by the fixed-point pass
	OpArg        // Aux: function argument index

	// Phi. Lives in Block.Params; Args are incoming values aligned
	// with Block.Preds.
	OpPhi

	// Integer arithmetic. Two's-complement wrapping, like the target.
	OpAdd
	OpSub
	OpMul
	OpDiv  // signed; divisor zero traps TrapDivZero
	OpDivU // unsigned
	OpMod  // signed remainder; divisor zero traps TrapDivZero
	OpModU
	OpNeg
	OpAnd
	OpOr
	OpXor
	OpBitNot
	OpShl
	OpShrS // arithmetic
	OpShrU // logical

	// Float arithmetic. Only present before the fixed-point pass.
	OpFAdd
	OpFSub
	OpFMul
	OpFDiv
	OpFNeg

	// Saturating Q16.16 arithmetic. Only present after the pass.
	OpAddSat
	OpSubSat
	OpNegSat
	OpMulQ // 64-bit product, >>16, saturated

	// Conversions.
	OpIntToFloat   // before the pass; becomes OpIntToFix
	OpUintToFloat  // before the pass; becomes OpIntToFix
	OpFloatToInt   // before the pass; becomes OpFixToInt
	OpFloatToUint  // before the pass; becomes OpFixToInt
	OpIntToFix  // x << 16, saturating
	OpUintToFix // x << 16, saturating, operand read as unsigned
	OpFixToInt  // x >> 16, arithmetic (truncates toward negative infinity)

	// Comparisons. Q16.16 shares int32 ordering, so float operands
	// compare with the signed forms; there are no float comparisons.
	OpEq
	OpNe
	OpLtS
	OpLeS
	OpLtU
	OpLeU

	// Select picks Args[1] or Args[2] by the bool Args[0].
	OpSelect

	// Bool ops.
	OpNot

	// Calls.
	OpCallBuiltin // Aux: builtin id; scalar args, scalar result
	OpCall        // AuxFunc: callee

	// Array storage. Arrays live in per-function slots, not SSA.
	OpArrayAlloc // Aux: element count; the value is the slot handle
	OpArrayLoad  // Args: slot, index
	OpArrayStore // Args: slot, index, value

	// BoundsCheck traps TrapBounds unless 0 <= Args[0] < Aux.
	OpBoundsCheck

	// Terminators.
	OpJump   // Succs: target
	OpBranch // Args: cond; Succs: then, else
	OpReturn // Args: zero or one value
	OpTrap   // Aux: trap code
)

var opNames = [...]string{
	OpInvalid:     "invalid",
	OpConstInt:    "const",
	OpConstFloat:  "fconst",
	OpArg:         "arg",
	OpPhi:         "phi",
	OpAdd:         "add",
	OpSub:         "sub",
	OpMul:         "mul",
	OpDiv:         "div",
	OpDivU:        "divu",
	OpMod:         "mod",
	OpModU:        "modu",
	OpNeg:         "neg",
	OpAnd:         "and",
	OpOr:          "or",
	OpXor:         "xor",
	OpBitNot:      "bitnot",
	OpShl:         "shl",
	OpShrS:        "shrs",
	OpShrU:        "shru",
	OpFAdd:        "fadd",
	OpFSub:        "fsub",
	OpFMul:        "fmul",
	OpFDiv:        "fdiv",
	OpFNeg:        "fneg",
	OpAddSat:      "addsat",
	OpSubSat:      "subsat",
	OpNegSat:      "negsat",
	OpMulQ:        "mulq",
	OpIntToFloat:  "itof",
	OpUintToFloat: "utof",
	OpFloatToInt:  "ftoi",
	OpFloatToUint: "ftou",
	OpIntToFix:    "itoq",
	OpUintToFix:   "utoq",
	OpFixToInt:    "qtoi",
	OpEq:          "eq",
	OpNe:          "ne",
	OpLtS:         "lts",
	OpLeS:         "les",
	OpLtU:         "ltu",
	OpLeU:         "leu",
	OpSelect:      "select",
	OpNot:         "not",
	OpCallBuiltin: "callb",
	OpCall:        "call",
	OpArrayAlloc:  "alloc",
	OpArrayLoad:   "load",
	OpArrayStore:  "store",
	OpBoundsCheck: "bounds",
	OpJump:        "jump",
	OpBranch:      "branch",
	OpReturn:      "ret",
	OpTrap:        "trap",
}

func (op Op) String() string {
	if int(op) < len(opNames) && opNames[op] != "" {
		return opNames[op]
	}
	return "op?"
}

// IsTerminator reports whether the op ends a block.
func (op Op) IsTerminator() bool {
	switch op {
	case OpJump, OpBranch, OpReturn, OpTrap:
		return true
	}
	return false
}

// IsFloat reports whether the op must be eliminated by the fixed-point
// pass before code generation.
func (op Op) IsFloat() bool {
	switch op {
	case OpConstFloat, OpFAdd, OpFSub, OpFMul, OpFDiv, OpFNeg,
		OpIntToFloat, OpUintToFloat, OpFloatToInt, OpFloatToUint:
		return true
	}
	return false
}

// HasSideEffects reports whether the instruction must stay in place even
// when its result is unused.
func (op Op) HasSideEffects() bool {
	switch op {
	case OpDiv, OpDivU, OpMod, OpModU, OpCallBuiltin, OpCall,
		OpArrayAlloc, OpArrayStore, OpBoundsCheck:
		return true
	}
	return op.IsTerminator()
}
