package sem

import (
	"github.com/gogpu/fxc/builtin"
	"github.com/gogpu/fxc/fxsl"
)

// Program is the typed output of analysis, consumed by the lowering pass.
type Program struct {
	Structs   map[string]*StructType
	Consts    []*Symbol // global constants, declaration order
	Functions []*Function
}

// Function is a typed function definition.
type Function struct {
	Name   string
	Return *Type
	Params []*Symbol
	Body   []Stmt
	Span   fxsl.Span
}

// Lookup returns the function with the given name.
func (p *Program) Lookup(name string) *Function {
	for _, f := range p.Functions {
		if f.Name == name {
			return f
		}
	}
	return nil
}

// ---------------------------------------------------------------------------
// Typed statements
// ---------------------------------------------------------------------------

// Stmt is a typed statement.
type Stmt interface {
	semStmt()
}

// DeclStmt declares a local and optionally initializes it.
type DeclStmt struct {
	Sym  *Symbol
	Init Expr // nil for default-zero initialization
}

// AssignStmt stores Value into an lvalue expression tree. Compound
// assignments and ++/-- are desugared during analysis.
type AssignStmt struct {
	Target Expr // *VarRef, *Index or *Member chain rooted at a *VarRef
	Value  Expr
}

// ExprStmt evaluates an expression for its side effects.
type ExprStmt struct {
	X Expr
}

// BlockStmt is a nested scope.
type BlockStmt struct {
	Stmts []Stmt
}

// IfStmt is a typed if/else.
type IfStmt struct {
	Cond Expr
	Then []Stmt
	Else []Stmt // nil when absent
}

// ForStmt is a typed for loop. Cond may be nil (infinite until break).
type ForStmt struct {
	Init Stmt
	Cond Expr
	Post Stmt
	Body []Stmt
}

// WhileStmt is a typed while loop.
type WhileStmt struct {
	Cond Expr
	Body []Stmt
}

// DoWhileStmt is a typed do-while loop: body first, condition after.
type DoWhileStmt struct {
	Body []Stmt
	Cond Expr
}

// BreakStmt exits the innermost loop.
type BreakStmt struct{}

// ContinueStmt advances the innermost loop.
type ContinueStmt struct{}

// ReturnStmt returns from the function.
type ReturnStmt struct {
	Value Expr // nil for void return
}

func (*DeclStmt) semStmt()     {}
func (*AssignStmt) semStmt()   {}
func (*ExprStmt) semStmt()     {}
func (*BlockStmt) semStmt()    {}
func (*IfStmt) semStmt()       {}
func (*ForStmt) semStmt()      {}
func (*WhileStmt) semStmt()    {}
func (*DoWhileStmt) semStmt()  {}
func (*BreakStmt) semStmt()    {}
func (*ContinueStmt) semStmt() {}
func (*ReturnStmt) semStmt()   {}

// ---------------------------------------------------------------------------
// Typed expressions
// ---------------------------------------------------------------------------

// Expr is a typed expression node.
type Expr interface {
	Type() *Type
	Pos() fxsl.Span
}

// UnOp is a typed unary operator.
type UnOp uint8

const (
	UnNeg UnOp = iota // numeric negation
	UnNot             // boolean not
	UnBitNot
)

// BinOp is a typed binary operator. Signedness and fixed-point behavior
// come from the operand type, not the operator.
type BinOp uint8

const (
	BinAdd BinOp = iota
	BinSub
	BinMul
	BinDiv
	BinMod
	BinAnd
	BinOr
	BinXor
	BinShl
	BinShr
	BinEq
	BinNe
	BinLt
	BinLe
	BinGt
	BinGe
	BinLogAnd // short-circuit
	BinLogOr  // short-circuit
)

// Const is a folded compile-time constant, including inlined global
// constants.
type Const struct {
	Val  *ConstValue
	Span fxsl.Span
}

// VarRef references a local or parameter symbol.
type VarRef struct {
	Sym  *Symbol
	Span fxsl.Span
}

// Unary applies a unary operator.
type Unary struct {
	Op   UnOp
	X    Expr
	T    *Type
	Span fxsl.Span
}

// Binary applies a binary operator. For vector/matrix operands the
// operation is component-wise except BinMul on matrices, which is linear
// algebraic (see MatMul).
type Binary struct {
	Op   BinOp
	L, R Expr
	T    *Type
	Span fxsl.Span
}

// MatMul is a linear-algebra product: mat*mat, mat*vec or vec*mat.
type MatMul struct {
	L, R Expr
	T    *Type
	Span fxsl.Span
}

// Select is the ternary conditional.
type Select struct {
	Cond       Expr
	Then, Else Expr
	T          *Type
	Span       fxsl.Span
}

// Convert changes the scalar kind of a value component-wise.
type Convert struct {
	X    Expr
	T    *Type
	Span fxsl.Span
}

// Construct builds a composite (vector/matrix) or converts a scalar via a
// constructor call. Args flatten left-to-right into the components; a
// single scalar argument splats (vectors) or fills the diagonal (matrices).
type Construct struct {
	T    *Type
	Args []Expr
	Span fxsl.Span
}

// CallBuiltin calls a registered builtin. The id was resolved against the
// registry during analysis; name and arity play no further role.
type CallBuiltin struct {
	ID   builtin.ID
	Args []Expr
	T    *Type
	Span fxsl.Span
}

// Call calls a user-defined function.
type Call struct {
	Fn   *Function
	Args []Expr
	T    *Type
	Span fxsl.Span
}

// Index accesses an element of a vector, matrix or array.
type Index struct {
	X     Expr
	Idx   Expr
	T     *Type
	Const *int // set when the index folded to a constant
	Span  fxsl.Span
}

// Member accesses a vector component or struct field. Offset is the
// flattened component offset inside X's type.
type Member struct {
	X      Expr
	Name   string
	Offset int
	T      *Type
	Span   fxsl.Span
}

func (e *Const) Type() *Type       { return e.Val.Type }
func (e *VarRef) Type() *Type      { return e.Sym.Type }
func (e *Unary) Type() *Type       { return e.T }
func (e *Binary) Type() *Type      { return e.T }
func (e *MatMul) Type() *Type      { return e.T }
func (e *Select) Type() *Type      { return e.T }
func (e *Convert) Type() *Type     { return e.T }
func (e *Construct) Type() *Type   { return e.T }
func (e *CallBuiltin) Type() *Type { return e.T }
func (e *Call) Type() *Type        { return e.T }
func (e *Index) Type() *Type       { return e.T }
func (e *Member) Type() *Type      { return e.T }

func (e *Const) Pos() fxsl.Span       { return e.Span }
func (e *VarRef) Pos() fxsl.Span      { return e.Span }
func (e *Unary) Pos() fxsl.Span       { return e.Span }
func (e *Binary) Pos() fxsl.Span      { return e.Span }
func (e *MatMul) Pos() fxsl.Span      { return e.Span }
func (e *Select) Pos() fxsl.Span      { return e.Span }
func (e *Convert) Pos() fxsl.Span     { return e.Span }
func (e *Construct) Pos() fxsl.Span   { return e.Span }
func (e *CallBuiltin) Pos() fxsl.Span { return e.Span }
func (e *Call) Pos() fxsl.Span        { return e.Span }
func (e *Index) Pos() fxsl.Span       { return e.Span }
func (e *Member) Pos() fxsl.Span      { return e.Span }
