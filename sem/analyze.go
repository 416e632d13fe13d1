package sem

import (
	"github.com/gogpu/fxc/builtin"
	"github.com/gogpu/fxc/fxsl"
)

// Analyze validates an AST against the type model and produces a typed
// program. Errors are collected with source locations; analysis does not
// stop at the first error inside a function. The registry is consulted for
// builtin call resolution only; no ids are invented here.
func Analyze(ast *fxsl.Program, reg *builtin.Registry) (*Program, error) {
	return AnalyzeSource(ast, "", reg)
}

// AnalyzeSource is Analyze with the original source text retained for
// caret diagnostics.
func AnalyzeSource(ast *fxsl.Program, source string, reg *builtin.Registry) (*Program, error) {
	a := &analyzer{
		source: source,
		reg:    reg,
		prog: &Program{
			Structs: make(map[string]*StructType),
		},
		syms:    NewSymbolTable(),
		consts:  make(map[string]*ConstValue),
		globals: make(map[string]bool),
		funcs:   make(map[string]*Function),
	}

	a.collectStructs(ast)
	a.collectGlobals(ast)
	a.declareFunctions(ast)
	for i, fn := range ast.Functions {
		a.checkFunction(fn, a.prog.Functions[i])
	}

	if a.errors.HasErrors() {
		return a.prog, a.errors
	}
	return a.prog, nil
}

type analyzer struct {
	source string
	reg    *builtin.Registry
	prog   *Program
	syms   *SymbolTable
	errors fxsl.SourceErrors

	consts  map[string]*ConstValue // evaluated global constants
	globals map[string]bool        // all global names, for forward-reference diagnosis
	funcs   map[string]*Function

	curFn     *Function
	loopDepth int
}

func (a *analyzer) errf(span fxsl.Span, format string, args ...any) {
	a.errors.Add(fxsl.NewSourceErrorf(span, a.source, format, args...))
}

// bad returns a poison expression so checking can continue after an error.
func (a *analyzer) bad(span fxsl.Span) Expr {
	return &Const{Val: &ConstValue{Type: Invalid, Comps: []ConstScalar{{}}}, Span: span}
}

// ---------------------------------------------------------------------------
// Declarations
// ---------------------------------------------------------------------------

func (a *analyzer) collectStructs(ast *fxsl.Program) {
	for _, s := range ast.Structs {
		if _, dup := a.prog.Structs[s.Name]; dup {
			a.errf(s.Span, "struct %q redeclared", s.Name)
			continue
		}
		st := &StructType{Name: s.Name}
		for _, m := range s.Members {
			if m.Const {
				a.errf(m.Span, "struct member %q cannot be declared const", m.Name)
			}
			mt := a.resolveType(m.Type)
			if m.ArraySize != nil {
				if n, ok := a.arraySize(m.ArraySize); ok {
					mt = ArrayOf(mt, n)
				} else {
					mt = Invalid
				}
			}
			st.Fields = append(st.Fields, StructField{Name: m.Name, Type: mt})
		}
		a.prog.Structs[s.Name] = st
	}
}

func (a *analyzer) collectGlobals(ast *fxsl.Program) {
	for _, g := range ast.Globals {
		a.globals[g.Name] = true
	}

	for _, g := range ast.Globals {
		if !g.Const {
			a.errf(g.Span, "global %q must be declared const; mutable module state is not supported", g.Name)
			continue
		}
		if g.ArraySize != nil {
			a.errf(g.Span, "global constant %q cannot be an array", g.Name)
			continue
		}
		if g.Init == nil {
			a.errf(g.Span, "constant %q declared without initializer", g.Name)
			continue
		}

		declared := a.resolveType(g.Type)
		val, err := EvalConst(g.Init, a.globalLookup(g))
		if err != nil {
			if se, ok := err.(*fxsl.SourceError); ok {
				se.Source = a.source
				a.errors.Add(se)
			} else {
				a.errf(g.Span, "%v", err)
			}
			continue
		}

		val, ok := a.convertConst(val, declared)
		if !ok {
			a.errf(g.Span, "type mismatch: expected %s, found %s", declared, val.Type)
			continue
		}

		sym := &Symbol{
			Name:    g.Name,
			Type:    declared,
			Storage: StorageGlobalConst,
			Const:   true,
			Span:    g.Span,
			Value:   val,
		}
		if !a.syms.Define(sym) {
			a.errf(g.Span, "constant %q redeclared", g.Name)
			continue
		}
		a.consts[g.Name] = val
		a.prog.Consts = append(a.prog.Consts, sym)
	}
}

// globalLookup resolves names inside a global initializer. Only constants
// declared textually earlier are visible; referencing a later one is a
// forward-reference error with its own message.
func (a *analyzer) globalLookup(g *fxsl.GlobalDecl) ConstLookup {
	return func(name string) (*ConstValue, bool) {
		if v, ok := a.consts[name]; ok {
			return v, true
		}
		if a.globals[name] {
			a.errf(g.Span, "constant %q references %q before its declaration", g.Name, name)
		}
		return nil, false
	}
}

// convertConst applies the implicit int->float conversion to a folded
// constant so that `const float x = 2;` works.
func (a *analyzer) convertConst(v *ConstValue, target *Type) (*ConstValue, bool) {
	if Same(v.Type, target) {
		return v, true
	}
	if target.Kind == KindFloat && v.Type.IsInteger() {
		out := convertScalar(v, Float)
		return out, true
	}
	return v, false
}

func (a *analyzer) declareFunctions(ast *fxsl.Program) {
	for _, fn := range ast.Functions {
		f := &Function{
			Name: fn.Name,
			Span: fn.Span,
		}
		f.Return = a.resolveType(fn.ReturnType)
		if f.Return.Kind != KindVoid && !f.Return.IsScalar() && f.Return.Kind != KindInvalid {
			a.errf(fn.Span, "function %q must return a scalar or void, not %s", fn.Name, f.Return)
			f.Return = Invalid
		}
		for _, p := range fn.Params {
			pt := a.resolveType(p.Type)
			if pt.Kind == KindArray {
				a.errf(p.Span, "parameter %q cannot be an array", p.Name)
				pt = Invalid
			}
			f.Params = append(f.Params, &Symbol{
				Name:    p.Name,
				Type:    pt,
				Storage: StorageParameter,
				Span:    p.Span,
			})
		}
		if _, dup := a.funcs[fn.Name]; dup {
			a.errf(fn.Span, "function %q redeclared", fn.Name)
		} else {
			a.funcs[fn.Name] = f
		}
		a.prog.Functions = append(a.prog.Functions, f)
	}
}

func (a *analyzer) resolveType(spec *fxsl.TypeSpec) *Type {
	switch spec.Kind {
	case fxsl.TokenVoid:
		return Void
	case fxsl.TokenBool:
		return Bool
	case fxsl.TokenInt:
		return Int
	case fxsl.TokenUint:
		return UInt
	case fxsl.TokenFloat:
		return Float
	case fxsl.TokenVec2:
		return Vec(Float, 2)
	case fxsl.TokenVec3:
		return Vec(Float, 3)
	case fxsl.TokenVec4:
		return Vec(Float, 4)
	case fxsl.TokenMat2:
		return Mat(2)
	case fxsl.TokenMat3:
		return Mat(3)
	case fxsl.TokenMat4:
		return Mat(4)
	case fxsl.TokenIdent:
		if st, ok := a.prog.Structs[spec.Name]; ok {
			return st.Of()
		}
		a.errf(spec.Span, "unknown type %q", spec.Name)
		return Invalid
	}
	a.errf(spec.Span, "invalid type")
	return Invalid
}

// arraySize folds an array size expression. Sizes must be constant
// positive integers known at compile time; FXSL has no runtime-sized
// arrays.
func (a *analyzer) arraySize(expr fxsl.Expr) (int, bool) {
	v, err := EvalConst(expr, func(name string) (*ConstValue, bool) {
		c, ok := a.consts[name]
		return c, ok
	})
	if err != nil || !v.Type.IsInteger() {
		a.errf(expr.Pos(), "array size must be a constant integral expression")
		return 0, false
	}
	n := v.Int()
	if n <= 0 {
		a.errf(expr.Pos(), "array size must be positive, found %d", n)
		return 0, false
	}
	return int(n), true
}

// ---------------------------------------------------------------------------
// Function bodies
// ---------------------------------------------------------------------------

func (a *analyzer) checkFunction(decl *fxsl.FunctionDecl, fn *Function) {
	a.curFn = fn
	a.syms.Push()
	defer func() {
		a.syms.Pop()
		a.curFn = nil
	}()

	for _, p := range fn.Params {
		if !a.syms.Define(p) {
			a.errf(p.Span, "parameter %q redeclared", p.Name)
		}
	}
	fn.Body = a.checkBlock(decl.Body)
}

func (a *analyzer) checkBlock(blk *fxsl.BlockStmt) []Stmt {
	a.syms.Push()
	defer a.syms.Pop()

	out := make([]Stmt, 0, len(blk.Statements))
	for _, s := range blk.Statements {
		if ts := a.checkStmt(s); ts != nil {
			out = append(out, ts)
		}
	}
	return out
}

func (a *analyzer) checkStmt(s fxsl.Stmt) Stmt {
	switch st := s.(type) {
	case *fxsl.VarDeclStmt:
		return a.checkVarDecl(st)
	case *fxsl.AssignStmt:
		return a.checkAssign(st)
	case *fxsl.ExprStmt:
		return &ExprStmt{X: a.checkExpr(st.X)}
	case *fxsl.BlockStmt:
		return &BlockStmt{Stmts: a.checkBlock(st)}
	case *fxsl.IfStmt:
		return a.checkIf(st)
	case *fxsl.ForStmt:
		return a.checkFor(st)
	case *fxsl.WhileStmt:
		cond := a.checkCond(st.Cond)
		a.loopDepth++
		body := a.checkBlock(st.Body)
		a.loopDepth--
		return &WhileStmt{Cond: cond, Body: body}
	case *fxsl.DoWhileStmt:
		a.loopDepth++
		body := a.checkBlock(st.Body)
		a.loopDepth--
		return &DoWhileStmt{Body: body, Cond: a.checkCond(st.Cond)}
	case *fxsl.BreakStmt:
		if a.loopDepth == 0 {
			a.errf(st.Span, "break outside loop")
			return nil
		}
		return &BreakStmt{}
	case *fxsl.ContinueStmt:
		if a.loopDepth == 0 {
			a.errf(st.Span, "continue outside loop")
			return nil
		}
		return &ContinueStmt{}
	case *fxsl.ReturnStmt:
		return a.checkReturn(st)
	}
	return nil
}

func (a *analyzer) checkVarDecl(st *fxsl.VarDeclStmt) Stmt {
	typ := a.resolveType(st.Type)
	if st.ArraySize != nil {
		if n, ok := a.arraySize(st.ArraySize); ok {
			typ = ArrayOf(typ, n)
		} else {
			typ = Invalid
		}
	}

	if st.Const && st.Init == nil {
		a.errf(st.Span, "constant %q declared without initializer", st.Name)
	}

	var init Expr
	if st.Init != nil {
		if typ.Kind == KindArray {
			a.errf(st.Span, "array %q cannot have an initializer", st.Name)
		} else {
			init = a.coerce(a.checkExpr(st.Init), typ, st.Init.Pos())
		}
	}

	sym := &Symbol{
		Name:    st.Name,
		Type:    typ,
		Storage: StorageLocal,
		Const:   st.Const,
		Span:    st.Span,
	}
	if !a.syms.Define(sym) {
		a.errf(st.Span, "variable %q redeclared in this scope", st.Name)
		return nil
	}
	return &DeclStmt{Sym: sym, Init: init}
}

func (a *analyzer) checkAssign(st *fxsl.AssignStmt) Stmt {
	target, root := a.checkLValue(st.Target)
	if target == nil {
		// Still check the value for errors.
		if st.Value != nil {
			a.checkExpr(st.Value)
		}
		return nil
	}
	if root != nil && root.Const {
		if root.Storage == StorageGlobalConst {
			a.errf(st.Span, "cannot assign to global constant %q", root.Name)
		} else {
			a.errf(st.Span, "cannot assign to constant %q", root.Name)
		}
		return nil
	}
	if target.Type().Kind == KindArray {
		a.errf(st.Span, "arrays cannot be assigned as a whole")
		return nil
	}

	// Desugar compound assignment and ++/-- into a plain store.
	var value Expr
	switch st.Op {
	case fxsl.TokenEqual:
		value = a.checkExpr(st.Value)
	case fxsl.TokenPlusPlus, fxsl.TokenMinusMinus:
		one := &Const{Val: IntConst(1), Span: st.Span}
		op := BinAdd
		if st.Op == fxsl.TokenMinusMinus {
			op = BinSub
		}
		value = a.binary(op, target, one, st.Span)
	default:
		op, ok := compoundOp(st.Op)
		if !ok {
			a.errf(st.Span, "invalid assignment operator")
			return nil
		}
		value = a.binary(op, target, a.checkExpr(st.Value), st.Span)
	}

	value = a.coerce(value, target.Type(), st.Span)
	return &AssignStmt{Target: target, Value: value}
}

func compoundOp(tok fxsl.TokenKind) (BinOp, bool) {
	switch tok {
	case fxsl.TokenPlusEqual:
		return BinAdd, true
	case fxsl.TokenMinusEqual:
		return BinSub, true
	case fxsl.TokenStarEqual:
		return BinMul, true
	case fxsl.TokenSlashEqual:
		return BinDiv, true
	case fxsl.TokenPercentEqual:
		return BinMod, true
	case fxsl.TokenAmpEqual:
		return BinAnd, true
	case fxsl.TokenPipeEqual:
		return BinOr, true
	case fxsl.TokenCaretEqual:
		return BinXor, true
	case fxsl.TokenLessLessEqual:
		return BinShl, true
	case fxsl.TokenGreaterGreaterEqual:
		return BinShr, true
	}
	return 0, false
}

// checkLValue validates an assignment target and returns the typed lvalue
// tree plus the root symbol (for const-write checks).
func (a *analyzer) checkLValue(e fxsl.Expr) (Expr, *Symbol) {
	switch x := e.(type) {
	case *fxsl.Ident:
		sym, ok := a.syms.Lookup(x.Name)
		if !ok {
			a.errf(x.Span, "unknown identifier %q", x.Name)
			return nil, nil
		}
		if sym.Storage == StorageGlobalConst {
			// Report through the caller's const check with the root symbol.
			return &Const{Val: sym.Value, Span: x.Span}, sym
		}
		return &VarRef{Sym: sym, Span: x.Span}, sym

	case *fxsl.IndexExpr:
		base, root := a.checkLValue(x.X)
		if base == nil {
			return nil, nil
		}
		return a.index(base, x), root

	case *fxsl.MemberExpr:
		base, root := a.checkLValue(x.X)
		if base == nil {
			return nil, nil
		}
		return a.member(base, x), root
	}
	a.errf(e.Pos(), "expression is not assignable")
	return nil, nil
}

func (a *analyzer) checkIf(st *fxsl.IfStmt) Stmt {
	out := &IfStmt{Cond: a.checkCond(st.Cond)}
	out.Then = a.checkBlock(st.Then)
	switch els := st.Else.(type) {
	case *fxsl.BlockStmt:
		out.Else = a.checkBlock(els)
	case *fxsl.IfStmt:
		if inner := a.checkIf(els); inner != nil {
			out.Else = []Stmt{inner}
		}
	}
	return out
}

func (a *analyzer) checkFor(st *fxsl.ForStmt) Stmt {
	a.syms.Push()
	defer a.syms.Pop()

	out := &ForStmt{}
	if st.Init != nil {
		out.Init = a.checkStmt(st.Init)
	}
	if st.Cond != nil {
		out.Cond = a.checkCond(st.Cond)
	}
	a.loopDepth++
	out.Body = a.checkBlock(st.Body)
	a.loopDepth--
	if st.Post != nil {
		out.Post = a.checkStmt(st.Post)
	}
	return out
}

func (a *analyzer) checkCond(e fxsl.Expr) Expr {
	cond := a.checkExpr(e)
	if cond.Type().Kind != KindBool && cond.Type().Kind != KindInvalid {
		a.errf(e.Pos(), "type mismatch: expected bool, found %s", cond.Type())
		return a.bad(e.Pos())
	}
	return cond
}

func (a *analyzer) checkReturn(st *fxsl.ReturnStmt) Stmt {
	want := a.curFn.Return
	if st.Value == nil {
		if want.Kind != KindVoid && want.Kind != KindInvalid {
			a.errf(st.Span, "type mismatch: expected %s, found void return", want)
		}
		return &ReturnStmt{}
	}
	if want.Kind == KindVoid {
		a.errf(st.Span, "void function %q cannot return a value", a.curFn.Name)
		return &ReturnStmt{}
	}
	return &ReturnStmt{Value: a.coerce(a.checkExpr(st.Value), want, st.Span)}
}

// ---------------------------------------------------------------------------
// Expressions
// ---------------------------------------------------------------------------

func (a *analyzer) checkExpr(e fxsl.Expr) Expr {
	switch x := e.(type) {
	case *fxsl.Literal:
		v, err := EvalConst(x, func(string) (*ConstValue, bool) { return nil, false })
		if err != nil {
			a.errf(x.Span, "%v", err)
			return a.bad(x.Span)
		}
		return &Const{Val: v, Span: x.Span}

	case *fxsl.Ident:
		sym, ok := a.syms.Lookup(x.Name)
		if !ok {
			a.errf(x.Span, "unknown identifier %q", x.Name)
			return a.bad(x.Span)
		}
		if sym.Storage == StorageGlobalConst {
			// Inline the folded value; global constants have no storage.
			return &Const{Val: sym.Value, Span: x.Span}
		}
		return &VarRef{Sym: sym, Span: x.Span}

	case *fxsl.UnaryExpr:
		return a.unary(x)

	case *fxsl.BinaryExpr:
		l := a.checkExpr(x.L)
		r := a.checkExpr(x.R)
		op, ok := binOpOf(x.Op)
		if !ok {
			a.errf(x.Span, "invalid binary operator")
			return a.bad(x.Span)
		}
		return a.binaryChecked(op, l, r, x.Span)

	case *fxsl.TernaryExpr:
		return a.ternary(x)

	case *fxsl.CallExpr:
		return a.call(x)

	case *fxsl.IndexExpr:
		base := a.checkExpr(x.X)
		return a.index(base, x)

	case *fxsl.MemberExpr:
		base := a.checkExpr(x.X)
		return a.member(base, x)
	}
	a.errf(e.Pos(), "invalid expression")
	return a.bad(e.Pos())
}

func (a *analyzer) unary(x *fxsl.UnaryExpr) Expr {
	operand := a.checkExpr(x.X)
	t := operand.Type()
	if t.Kind == KindInvalid {
		return operand
	}
	switch x.Op {
	case fxsl.TokenMinus:
		if !t.IsNumeric() && t.Kind != KindVector && t.Kind != KindMatrix {
			a.errf(x.Span, "operator - not defined for %s", t)
			return a.bad(x.Span)
		}
		return &Unary{Op: UnNeg, X: operand, T: t, Span: x.Span}
	case fxsl.TokenBang:
		if t.Kind != KindBool {
			a.errf(x.Span, "operator ! not defined for %s", t)
			return a.bad(x.Span)
		}
		return &Unary{Op: UnNot, X: operand, T: Bool, Span: x.Span}
	case fxsl.TokenTilde:
		if !t.IsInteger() {
			a.errf(x.Span, "operator ~ not defined for %s", t)
			return a.bad(x.Span)
		}
		return &Unary{Op: UnBitNot, X: operand, T: t, Span: x.Span}
	}
	a.errf(x.Span, "invalid unary operator")
	return a.bad(x.Span)
}

func binOpOf(tok fxsl.TokenKind) (BinOp, bool) {
	switch tok {
	case fxsl.TokenPlus:
		return BinAdd, true
	case fxsl.TokenMinus:
		return BinSub, true
	case fxsl.TokenStar:
		return BinMul, true
	case fxsl.TokenSlash:
		return BinDiv, true
	case fxsl.TokenPercent:
		return BinMod, true
	case fxsl.TokenAmpersand:
		return BinAnd, true
	case fxsl.TokenPipe:
		return BinOr, true
	case fxsl.TokenCaret:
		return BinXor, true
	case fxsl.TokenLessLess:
		return BinShl, true
	case fxsl.TokenGreaterGreater:
		return BinShr, true
	case fxsl.TokenEqualEqual:
		return BinEq, true
	case fxsl.TokenBangEqual:
		return BinNe, true
	case fxsl.TokenLess:
		return BinLt, true
	case fxsl.TokenLessEqual:
		return BinLe, true
	case fxsl.TokenGreater:
		return BinGt, true
	case fxsl.TokenGreaterEqual:
		return BinGe, true
	case fxsl.TokenAmpAmp:
		return BinLogAnd, true
	case fxsl.TokenPipePipe:
		return BinLogOr, true
	}
	return 0, false
}

// binary builds an already-typed binary expression during desugaring.
func (a *analyzer) binary(op BinOp, l, r Expr, span fxsl.Span) Expr {
	return a.binaryChecked(op, l, r, span)
}

func (a *analyzer) binaryChecked(op BinOp, l, r Expr, span fxsl.Span) Expr {
	lt, rt := l.Type(), r.Type()
	if lt.Kind == KindInvalid || rt.Kind == KindInvalid {
		return a.bad(span)
	}

	switch op {
	case BinLogAnd, BinLogOr:
		if lt.Kind != KindBool || rt.Kind != KindBool {
			a.errf(span, "type mismatch: logical operator requires bool, found %s and %s", lt, rt)
			return a.bad(span)
		}
		return &Binary{Op: op, L: l, R: r, T: Bool, Span: span}

	case BinEq, BinNe:
		l, r = a.unifyNumeric(l, r)
		if !Same(l.Type(), r.Type()) {
			a.errf(span, "type mismatch: expected %s, found %s", l.Type(), r.Type())
			return a.bad(span)
		}
		return &Binary{Op: op, L: l, R: r, T: Bool, Span: span}

	case BinLt, BinLe, BinGt, BinGe:
		l, r = a.unifyNumeric(l, r)
		if !l.Type().IsNumeric() || !Same(l.Type(), r.Type()) {
			a.errf(span, "type mismatch: comparison requires matching scalar operands, found %s and %s", lt, rt)
			return a.bad(span)
		}
		return &Binary{Op: op, L: l, R: r, T: Bool, Span: span}

	case BinMod, BinAnd, BinOr, BinXor, BinShl, BinShr:
		if !lt.IsInteger() || !rt.IsInteger() {
			a.errf(span, "operator requires integer operands, found %s and %s", lt, rt)
			return a.bad(span)
		}
		if lt.Kind != rt.Kind && op != BinShl && op != BinShr {
			a.errf(span, "type mismatch: expected %s, found %s", lt, rt)
			return a.bad(span)
		}
		return &Binary{Op: op, L: l, R: r, T: lt, Span: span}
	}

	// Arithmetic: +, -, *, /
	if op == BinMul && (lt.Kind == KindMatrix || rt.Kind == KindMatrix) &&
		!(lt.IsScalar() || rt.IsScalar()) {
		return a.matMul(l, r, span)
	}

	l, r = a.unifyNumeric(l, r)
	lt, rt = l.Type(), r.Type()

	switch {
	case Same(lt, rt) && (lt.IsNumeric() || lt.Kind == KindVector || lt.Kind == KindMatrix):
		return &Binary{Op: op, L: l, R: r, T: lt, Span: span}
	case (lt.Kind == KindVector || lt.Kind == KindMatrix) && rt.IsNumeric():
		return &Binary{Op: op, L: l, R: r, T: lt, Span: span}
	case lt.IsNumeric() && (rt.Kind == KindVector || rt.Kind == KindMatrix):
		return &Binary{Op: op, L: l, R: r, T: rt, Span: span}
	}
	a.errf(span, "type mismatch: expected %s, found %s", lt, rt)
	return a.bad(span)
}

func (a *analyzer) matMul(l, r Expr, span fxsl.Span) Expr {
	lt, rt := l.Type(), r.Type()
	switch {
	case lt.Kind == KindMatrix && rt.Kind == KindMatrix && lt.Cols == rt.Cols:
		return &MatMul{L: l, R: r, T: lt, Span: span}
	case lt.Kind == KindMatrix && rt.Kind == KindVector && rt.Size == lt.Cols:
		return &MatMul{L: l, R: r, T: Vec(Float, lt.Rows), Span: span}
	case lt.Kind == KindVector && rt.Kind == KindMatrix && lt.Size == rt.Rows:
		return &MatMul{L: l, R: r, T: Vec(Float, rt.Cols), Span: span}
	}
	a.errf(span, "type mismatch: cannot multiply %s by %s", lt, rt)
	return a.bad(span)
}

// unifyNumeric applies the implicit int/uint -> float promotion when the
// other operand is float-based.
func (a *analyzer) unifyNumeric(l, r Expr) (Expr, Expr) {
	lf := componentKind(l.Type()) == KindFloat
	rf := componentKind(r.Type()) == KindFloat
	if lf && !rf && r.Type().IsInteger() {
		r = &Convert{X: r, T: Float, Span: r.Pos()}
	}
	if rf && !lf && l.Type().IsInteger() {
		l = &Convert{X: l, T: Float, Span: l.Pos()}
	}
	return l, r
}

func (a *analyzer) ternary(x *fxsl.TernaryExpr) Expr {
	cond := a.checkCond(x.Cond)
	then := a.checkExpr(x.Then)
	els := a.checkExpr(x.Else)
	then, els = a.unifyNumeric(then, els)
	if !Same(then.Type(), els.Type()) {
		a.errf(x.Span, "type mismatch: expected %s, found %s", then.Type(), els.Type())
		return a.bad(x.Span)
	}
	return &Select{Cond: cond, Then: then, Else: els, T: then.Type(), Span: x.Span}
}

// call resolves a call in priority order: type constructors first, then
// registered builtins, then user functions. The first exact match wins;
// implicit int->float conversion is attempted only after that.
func (a *analyzer) call(x *fxsl.CallExpr) Expr {
	if target, ok := constructorType(x.Callee); ok {
		return a.construct(x, target)
	}

	if a.reg != nil && a.reg.HasName(x.Callee) {
		return a.callBuiltin(x)
	}

	if fn, ok := a.funcs[x.Callee]; ok {
		return a.callUser(x, fn)
	}

	a.errf(x.Span, "unknown identifier %q", x.Callee)
	return a.bad(x.Span)
}

func (a *analyzer) construct(x *fxsl.CallExpr, target *Type) Expr {
	args := make([]Expr, len(x.Args))
	for i, arg := range x.Args {
		args[i] = a.checkExpr(arg)
	}

	switch {
	case target.IsScalar():
		if len(args) != 1 || !args[0].Type().IsScalar() {
			a.errf(x.Span, "%s() requires exactly one scalar argument", target)
			return a.bad(x.Span)
		}
		return &Convert{X: args[0], T: target, Span: x.Span}

	case target.Kind == KindVector || target.Kind == KindMatrix:
		// Single scalar: splat (vector) or diagonal (matrix).
		if len(args) == 1 && args[0].Type().IsScalar() {
			return &Construct{T: target, Args: []Expr{a.coerceComponent(args[0], target)}, Span: x.Span}
		}
		total := 0
		for i, arg := range args {
			at := arg.Type()
			switch {
			case at.IsScalar():
				args[i] = a.coerceComponent(arg, target)
				total++
			case at.Kind == KindVector:
				total += at.Size
			default:
				a.errf(x.Span, "invalid constructor argument of type %s", at)
				return a.bad(x.Span)
			}
		}
		if total != target.Components() {
			a.errf(x.Span, "%s constructor requires %d components, found %d", target, target.Components(), total)
			return a.bad(x.Span)
		}
		return &Construct{T: target, Args: args, Span: x.Span}
	}
	a.errf(x.Span, "cannot construct %s", target)
	return a.bad(x.Span)
}

// coerceComponent converts a scalar argument to the component type of the
// composite being constructed.
func (a *analyzer) coerceComponent(arg Expr, target *Type) Expr {
	want := scalarType(componentKind(target))
	if Same(arg.Type(), want) {
		return arg
	}
	return &Convert{X: arg, T: want, Span: arg.Pos()}
}

func (a *analyzer) callBuiltin(x *fxsl.CallExpr) Expr {
	id, ok := a.reg.Lookup(x.Callee, len(x.Args))
	if !ok {
		a.errf(x.Span, "builtin %q has no %d-argument form", x.Callee, len(x.Args))
		return a.bad(x.Span)
	}

	// Builtins are scalar routines. A float-vector argument applies the
	// routine component-wise; scalar arguments broadcast. Mixed vector
	// sizes do not.
	args := make([]Expr, len(x.Args))
	width := 0
	for i, arg := range x.Args {
		e := a.checkExpr(arg)
		if t := e.Type(); t.Kind == KindVector && t.Base.Kind == KindFloat {
			if width != 0 && t.Size != width {
				a.errf(arg.Pos(), "builtin %q: mismatched vector sizes", x.Callee)
				return a.bad(x.Span)
			}
			width = t.Size
			args[i] = e
			continue
		}
		args[i] = a.coerce(e, Float, arg.Pos())
	}
	if width == 0 {
		return &CallBuiltin{ID: id, Args: args, T: Float, Span: x.Span}
	}
	return &CallBuiltin{ID: id, Args: args, T: Vec(Float, width), Span: x.Span}
}

func (a *analyzer) callUser(x *fxsl.CallExpr, fn *Function) Expr {
	if len(x.Args) != len(fn.Params) {
		a.errf(x.Span, "function %q expects %d arguments, found %d", fn.Name, len(fn.Params), len(x.Args))
		return a.bad(x.Span)
	}
	args := make([]Expr, len(x.Args))
	for i, arg := range x.Args {
		args[i] = a.coerce(a.checkExpr(arg), fn.Params[i].Type, arg.Pos())
	}
	return &Call{Fn: fn, Args: args, T: fn.Return, Span: x.Span}
}

func (a *analyzer) index(base Expr, x *fxsl.IndexExpr) Expr {
	bt := base.Type()
	if bt.Kind == KindInvalid {
		return base
	}

	idx := a.checkExpr(x.Index)
	if !idx.Type().IsInteger() && idx.Type().Kind != KindInvalid {
		a.errf(x.Index.Pos(), "type mismatch: index must be an integer, found %s", idx.Type())
		return a.bad(x.Span)
	}

	var elem *Type
	switch bt.Kind {
	case KindVector:
		elem = bt.Base
	case KindMatrix:
		elem = Vec(Float, bt.Rows)
	case KindArray:
		elem = bt.Base
	default:
		a.errf(x.Span, "cannot index a value of type %s", bt)
		return a.bad(x.Span)
	}

	out := &Index{X: base, Idx: idx, T: elem, Span: x.Span}
	if c, ok := idx.(*Const); ok && c.Val.Type.IsInteger() {
		n := int(c.Val.Int())
		out.Const = &n
	}
	return out
}

func (a *analyzer) member(base Expr, x *fxsl.MemberExpr) Expr {
	bt := base.Type()
	if bt.Kind == KindInvalid {
		return base
	}

	switch bt.Kind {
	case KindVector:
		idx, ok := componentIndex(x.Name)
		if !ok || idx >= bt.Size {
			a.errf(x.Span, "unknown component %q of %s", x.Name, bt)
			return a.bad(x.Span)
		}
		return &Member{X: base, Name: x.Name, Offset: idx, T: bt.Base, Span: x.Span}

	case KindStruct:
		off, ft := bt.FieldOffset(x.Name)
		if off < 0 {
			a.errf(x.Span, "struct %s has no member %q", bt, x.Name)
			return a.bad(x.Span)
		}
		return &Member{X: base, Name: x.Name, Offset: off, T: ft, Span: x.Span}
	}
	a.errf(x.Span, "type %s has no members", bt)
	return a.bad(x.Span)
}

// coerce inserts the implicit int->float conversion toward the target
// type, or reports a mismatch.
func (a *analyzer) coerce(e Expr, target *Type, span fxsl.Span) Expr {
	t := e.Type()
	if t.Kind == KindInvalid || target.Kind == KindInvalid {
		return e
	}
	if Same(t, target) {
		return e
	}
	if target.Kind == KindFloat && t.IsInteger() {
		return &Convert{X: e, T: Float, Span: span}
	}
	a.errf(span, "type mismatch: expected %s, found %s", target, t)
	return a.bad(span)
}
