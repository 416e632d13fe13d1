package fxsl

// Program represents an FXSL translation unit.
type Program struct {
	Structs   []*StructDecl
	Globals   []*GlobalDecl
	Functions []*FunctionDecl
}

// Node is the base interface for all AST nodes.
type Node interface {
	Pos() Span
}

// Stmt is the interface for statements.
type Stmt interface {
	Node
	stmtNode()
}

// Expr is the interface for expressions.
type Expr interface {
	Node
	exprNode()
}

// TypeSpec names a type as written in source. Array declarators attach
// their size expression to the declaration, not the TypeSpec, since FXSL
// uses C-style `float a[4]` syntax.
type TypeSpec struct {
	Kind TokenKind // TokenVoid..TokenMat4, or TokenIdent for struct types
	Name string    // struct type name when Kind == TokenIdent
	Span Span
}

func (t *TypeSpec) Pos() Span { return t.Span }

// StructDecl represents a struct declaration.
type StructDecl struct {
	Name    string
	Members []*StructMember
	Span    Span
}

func (s *StructDecl) Pos() Span { return s.Span }

// StructMember represents one field of a struct declaration.
type StructMember struct {
	Type      *TypeSpec
	Name      string
	ArraySize Expr // nil unless the member is an array
	Const     bool // invalid, kept for the analyzer to reject with a span
	Span      Span
}

// GlobalDecl represents a module-scope declaration.
type GlobalDecl struct {
	Const     bool
	Type      *TypeSpec
	Name      string
	ArraySize Expr
	Init      Expr
	Span      Span
}

func (g *GlobalDecl) Pos() Span { return g.Span }

// FunctionDecl represents a function definition.
type FunctionDecl struct {
	ReturnType *TypeSpec
	Name       string
	Params     []*ParamDecl
	Body       *BlockStmt
	Span       Span
}

func (f *FunctionDecl) Pos() Span { return f.Span }

// ParamDecl represents a function parameter.
type ParamDecl struct {
	Type *TypeSpec
	Name string
	Span Span
}

func (p *ParamDecl) Pos() Span { return p.Span }

// ---------------------------------------------------------------------------
// Statements
// ---------------------------------------------------------------------------

// VarDeclStmt represents a local variable declaration.
type VarDeclStmt struct {
	Const     bool
	Type      *TypeSpec
	Name      string
	ArraySize Expr
	Init      Expr
	Span      Span
}

func (s *VarDeclStmt) Pos() Span { return s.Span }
func (s *VarDeclStmt) stmtNode() {}

// AssignStmt represents an assignment, including compound assignments
// (Op is TokenEqual, TokenPlusEqual, ...) and ++/-- (Op is TokenPlusPlus
// or TokenMinusMinus with a nil Value).
type AssignStmt struct {
	Target Expr
	Op     TokenKind
	Value  Expr
	Span   Span
}

func (s *AssignStmt) Pos() Span { return s.Span }
func (s *AssignStmt) stmtNode() {}

// ExprStmt represents an expression evaluated for its side effects.
type ExprStmt struct {
	X    Expr
	Span Span
}

func (s *ExprStmt) Pos() Span { return s.Span }
func (s *ExprStmt) stmtNode() {}

// BlockStmt represents a braced statement block.
type BlockStmt struct {
	Statements []Stmt
	Span       Span
}

func (s *BlockStmt) Pos() Span { return s.Span }
func (s *BlockStmt) stmtNode() {}

// IfStmt represents an if/else statement.
type IfStmt struct {
	Cond Expr
	Then *BlockStmt
	Else Stmt // *BlockStmt, *IfStmt (else-if), or nil
	Span Span
}

func (s *IfStmt) Pos() Span { return s.Span }
func (s *IfStmt) stmtNode() {}

// ForStmt represents a for loop. Init and Post may be nil.
type ForStmt struct {
	Init Stmt
	Cond Expr // nil means "true"
	Post Stmt
	Body *BlockStmt
	Span Span
}

func (s *ForStmt) Pos() Span { return s.Span }
func (s *ForStmt) stmtNode() {}

// WhileStmt represents a while loop.
type WhileStmt struct {
	Cond Expr
	Body *BlockStmt
	Span Span
}

func (s *WhileStmt) Pos() Span { return s.Span }
func (s *WhileStmt) stmtNode() {}

// DoWhileStmt represents a do-while loop.
type DoWhileStmt struct {
	Body *BlockStmt
	Cond Expr
	Span Span
}

func (s *DoWhileStmt) Pos() Span { return s.Span }
func (s *DoWhileStmt) stmtNode() {}

// BreakStmt represents a break statement.
type BreakStmt struct {
	Span Span
}

func (s *BreakStmt) Pos() Span { return s.Span }
func (s *BreakStmt) stmtNode() {}

// ContinueStmt represents a continue statement.
type ContinueStmt struct {
	Span Span
}

func (s *ContinueStmt) Pos() Span { return s.Span }
func (s *ContinueStmt) stmtNode() {}

// ReturnStmt represents a return statement.
type ReturnStmt struct {
	Value Expr // nil for bare return
	Span  Span
}

func (s *ReturnStmt) Pos() Span { return s.Span }
func (s *ReturnStmt) stmtNode() {}

// ---------------------------------------------------------------------------
// Expressions
// ---------------------------------------------------------------------------

// Literal represents a literal value.
type Literal struct {
	Kind  TokenKind // TokenIntLiteral, TokenUintLiteral, TokenFloatLiteral, TokenBoolLiteral
	Value string
	Span  Span
}

func (e *Literal) Pos() Span { return e.Span }
func (e *Literal) exprNode() {}

// Ident represents an identifier reference.
type Ident struct {
	Name string
	Span Span
}

func (e *Ident) Pos() Span { return e.Span }
func (e *Ident) exprNode() {}

// UnaryExpr represents a unary operation (-, !, ~).
type UnaryExpr struct {
	Op   TokenKind
	X    Expr
	Span Span
}

func (e *UnaryExpr) Pos() Span { return e.Span }
func (e *UnaryExpr) exprNode() {}

// BinaryExpr represents a binary operation.
type BinaryExpr struct {
	Op   TokenKind
	L    Expr
	R    Expr
	Span Span
}

func (e *BinaryExpr) Pos() Span { return e.Span }
func (e *BinaryExpr) exprNode() {}

// TernaryExpr represents cond ? a : b.
type TernaryExpr struct {
	Cond Expr
	Then Expr
	Else Expr
	Span Span
}

func (e *TernaryExpr) Pos() Span { return e.Span }
func (e *TernaryExpr) exprNode() {}

// CallExpr represents a call: builtin, user function, or type constructor.
// Callee is a bare name; FXSL has no function values.
type CallExpr struct {
	Callee string
	Args   []Expr
	Span   Span
}

func (e *CallExpr) Pos() Span { return e.Span }
func (e *CallExpr) exprNode() {}

// IndexExpr represents a[i].
type IndexExpr struct {
	X     Expr
	Index Expr
	Span  Span
}

func (e *IndexExpr) Pos() Span { return e.Span }
func (e *IndexExpr) exprNode() {}

// MemberExpr represents v.x or s.field.
type MemberExpr struct {
	X    Expr
	Name string
	Span Span
}

func (e *MemberExpr) Pos() Span { return e.Span }
func (e *MemberExpr) exprNode() {}
