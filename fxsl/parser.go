package fxsl

// Parser parses FXSL tokens into an AST.
type Parser struct {
	tokens  []Token
	current int
	source  string
	errors  SourceErrors
}

// Parse tokenizes and parses FXSL source text.
func Parse(source string) (*Program, error) {
	tokens, err := NewLexer(source).Tokenize()
	if err != nil {
		return nil, err
	}
	return NewParser(tokens, source).Parse()
}

// NewParser creates a new parser for the given tokens. The source text is
// kept only for error context display and may be empty.
func NewParser(tokens []Token, source string) *Parser {
	return &Parser{
		tokens: tokens,
		source: source,
	}
}

// Parse parses the tokens and returns a Program AST.
func (p *Parser) Parse() (*Program, error) {
	prog := &Program{}

	for !p.isAtEnd() {
		if p.check(TokenStruct) {
			s, err := p.structDecl()
			if err != nil {
				p.errors.Add(err)
				p.synchronize()
				continue
			}
			prog.Structs = append(prog.Structs, s)
			continue
		}

		if err := p.topLevelDecl(prog); err != nil {
			p.errors.Add(err)
			p.synchronize()
		}
	}

	if p.errors.HasErrors() {
		return prog, p.errors
	}
	return prog, nil
}

// topLevelDecl parses either a function definition or a global declaration.
// Both begin "const? typeSpec Ident"; a following "(" selects a function.
func (p *Parser) topLevelDecl(prog *Program) *SourceError {
	isConst := p.match(TokenConst)

	typ, err := p.typeSpec()
	if err != nil {
		return err
	}

	name := p.peek()
	if name.Kind != TokenIdent {
		return p.errorf(name, "expected identifier, found %q", name.Lexeme)
	}
	p.advance()

	if p.check(TokenLeftParen) {
		if isConst {
			return p.errorf(name, "function %q cannot be declared const", name.Lexeme)
		}
		fn, err := p.functionDecl(typ, name)
		if err != nil {
			return err
		}
		prog.Functions = append(prog.Functions, fn)
		return nil
	}

	g := &GlobalDecl{
		Const: isConst,
		Type:  typ,
		Name:  name.Lexeme,
		Span:  SpanOf(name),
	}
	if p.match(TokenLeftBracket) {
		size, err := p.expression()
		if err != nil {
			return err
		}
		g.ArraySize = size
		if err := p.expectErr(TokenRightBracket); err != nil {
			return err
		}
	}
	if p.match(TokenEqual) {
		init, err := p.expression()
		if err != nil {
			return err
		}
		g.Init = init
	}
	if err := p.expectErr(TokenSemicolon); err != nil {
		return err
	}
	prog.Globals = append(prog.Globals, g)
	return nil
}

func (p *Parser) functionDecl(ret *TypeSpec, name Token) (*FunctionDecl, *SourceError) {
	fn := &FunctionDecl{
		ReturnType: ret,
		Name:       name.Lexeme,
		Span:       SpanOf(name),
	}

	if err := p.expectErr(TokenLeftParen); err != nil {
		return nil, err
	}
	if !p.check(TokenRightParen) {
		for {
			param, err := p.parameter()
			if err != nil {
				return nil, err
			}
			fn.Params = append(fn.Params, param)
			if !p.match(TokenComma) {
				break
			}
		}
	}
	if err := p.expectErr(TokenRightParen); err != nil {
		return nil, err
	}

	body, err := p.block()
	if err != nil {
		return nil, err
	}
	fn.Body = body
	return fn, nil
}

func (p *Parser) parameter() (*ParamDecl, *SourceError) {
	typ, err := p.typeSpec()
	if err != nil {
		return nil, err
	}
	name := p.peek()
	if name.Kind != TokenIdent {
		return nil, p.errorf(name, "expected parameter name, found %q", name.Lexeme)
	}
	p.advance()
	return &ParamDecl{Type: typ, Name: name.Lexeme, Span: SpanOf(name)}, nil
}

func (p *Parser) structDecl() (*StructDecl, *SourceError) {
	p.advance() // consume 'struct'

	name := p.peek()
	if name.Kind != TokenIdent {
		return nil, p.errorf(name, "expected struct name, found %q", name.Lexeme)
	}
	p.advance()

	s := &StructDecl{Name: name.Lexeme, Span: SpanOf(name)}

	if err := p.expectErr(TokenLeftBrace); err != nil {
		return nil, err
	}
	for !p.check(TokenRightBrace) && !p.isAtEnd() {
		m, err := p.structMember()
		if err != nil {
			return nil, err
		}
		s.Members = append(s.Members, m)
	}
	if err := p.expectErr(TokenRightBrace); err != nil {
		return nil, err
	}
	if err := p.expectErr(TokenSemicolon); err != nil {
		return nil, err
	}
	return s, nil
}

func (p *Parser) structMember() (*StructMember, *SourceError) {
	// A const qualifier here is a semantic error, not a parse error; keep it
	// so the analyzer can report it with a span.
	isConst := p.match(TokenConst)

	typ, err := p.typeSpec()
	if err != nil {
		return nil, err
	}
	name := p.peek()
	if name.Kind != TokenIdent {
		return nil, p.errorf(name, "expected member name, found %q", name.Lexeme)
	}
	p.advance()

	m := &StructMember{Type: typ, Name: name.Lexeme, Const: isConst, Span: SpanOf(name)}
	if p.match(TokenLeftBracket) {
		size, err := p.expression()
		if err != nil {
			return nil, err
		}
		m.ArraySize = size
		if err := p.expectErr(TokenRightBracket); err != nil {
			return nil, err
		}
	}
	if err := p.expectErr(TokenSemicolon); err != nil {
		return nil, err
	}
	return m, nil
}

// typeSpec parses a type name: a type keyword or a struct type identifier.
func (p *Parser) typeSpec() (*TypeSpec, *SourceError) {
	tok := p.peek()
	if isTypeKeyword(tok.Kind) {
		p.advance()
		return &TypeSpec{Kind: tok.Kind, Span: SpanOf(tok)}, nil
	}
	if tok.Kind == TokenIdent {
		p.advance()
		return &TypeSpec{Kind: TokenIdent, Name: tok.Lexeme, Span: SpanOf(tok)}, nil
	}
	return nil, p.errorf(tok, "expected type, found %q", tok.Lexeme)
}

// ---------------------------------------------------------------------------
// Statements
// ---------------------------------------------------------------------------

func (p *Parser) block() (*BlockStmt, *SourceError) {
	open := p.peek()
	if err := p.expectErr(TokenLeftBrace); err != nil {
		return nil, err
	}

	blk := &BlockStmt{Span: SpanOf(open)}
	for !p.check(TokenRightBrace) && !p.isAtEnd() {
		stmt, err := p.statement()
		if err != nil {
			return nil, err
		}
		blk.Statements = append(blk.Statements, stmt)
	}
	if err := p.expectErr(TokenRightBrace); err != nil {
		return nil, err
	}
	return blk, nil
}

func (p *Parser) statement() (Stmt, *SourceError) {
	switch {
	case p.check(TokenLeftBrace):
		return p.block()
	case p.check(TokenIf):
		return p.ifStmt()
	case p.check(TokenFor):
		return p.forStmt()
	case p.check(TokenWhile):
		return p.whileStmt()
	case p.check(TokenDo):
		return p.doWhileStmt()
	case p.check(TokenBreak):
		tok := p.advance()
		if err := p.expectErr(TokenSemicolon); err != nil {
			return nil, err
		}
		return &BreakStmt{Span: SpanOf(tok)}, nil
	case p.check(TokenContinue):
		tok := p.advance()
		if err := p.expectErr(TokenSemicolon); err != nil {
			return nil, err
		}
		return &ContinueStmt{Span: SpanOf(tok)}, nil
	case p.check(TokenReturn):
		return p.returnStmt()
	case p.startsDecl():
		return p.varDeclStmt(true)
	default:
		return p.exprOrAssignStmt(true)
	}
}

// startsDecl reports whether the upcoming tokens begin a local declaration.
// `const ...` and `typeKeyword ...` always do; `Ident Ident` is a struct-
// typed declaration while any other use of an identifier is an expression.
func (p *Parser) startsDecl() bool {
	tok := p.peek()
	if tok.Kind == TokenConst || isTypeKeyword(tok.Kind) {
		// Constructor expressions like vec3(...) also begin with a type
		// keyword; those are expressions, not declarations.
		if isTypeKeyword(tok.Kind) && p.peekAt(1).Kind == TokenLeftParen {
			return false
		}
		return true
	}
	return tok.Kind == TokenIdent && p.peekAt(1).Kind == TokenIdent
}

// varDeclStmt parses a local declaration. When consumeSemi is false the
// trailing semicolon is left for the caller (for-loop clauses).
func (p *Parser) varDeclStmt(consumeSemi bool) (*VarDeclStmt, *SourceError) {
	isConst := p.match(TokenConst)

	typ, err := p.typeSpec()
	if err != nil {
		return nil, err
	}
	name := p.peek()
	if name.Kind != TokenIdent {
		return nil, p.errorf(name, "expected variable name, found %q", name.Lexeme)
	}
	p.advance()

	s := &VarDeclStmt{Const: isConst, Type: typ, Name: name.Lexeme, Span: SpanOf(name)}
	if p.match(TokenLeftBracket) {
		size, err := p.expression()
		if err != nil {
			return nil, err
		}
		s.ArraySize = size
		if err := p.expectErr(TokenRightBracket); err != nil {
			return nil, err
		}
	}
	if p.match(TokenEqual) {
		init, err := p.expression()
		if err != nil {
			return nil, err
		}
		s.Init = init
	}
	if consumeSemi {
		if err := p.expectErr(TokenSemicolon); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (p *Parser) returnStmt() (*ReturnStmt, *SourceError) {
	tok := p.advance() // consume 'return'
	s := &ReturnStmt{Span: SpanOf(tok)}
	if !p.check(TokenSemicolon) {
		value, err := p.expression()
		if err != nil {
			return nil, err
		}
		s.Value = value
	}
	if err := p.expectErr(TokenSemicolon); err != nil {
		return nil, err
	}
	return s, nil
}

func (p *Parser) ifStmt() (*IfStmt, *SourceError) {
	tok := p.advance() // consume 'if'

	if err := p.expectErr(TokenLeftParen); err != nil {
		return nil, err
	}
	cond, err := p.expression()
	if err != nil {
		return nil, err
	}
	if err := p.expectErr(TokenRightParen); err != nil {
		return nil, err
	}

	then, err := p.block()
	if err != nil {
		return nil, err
	}

	s := &IfStmt{Cond: cond, Then: then, Span: SpanOf(tok)}
	if p.match(TokenElse) {
		if p.check(TokenIf) {
			elseIf, err := p.ifStmt()
			if err != nil {
				return nil, err
			}
			s.Else = elseIf
		} else {
			elseBlk, err := p.block()
			if err != nil {
				return nil, err
			}
			s.Else = elseBlk
		}
	}
	return s, nil
}

func (p *Parser) forStmt() (*ForStmt, *SourceError) {
	tok := p.advance() // consume 'for'

	if err := p.expectErr(TokenLeftParen); err != nil {
		return nil, err
	}

	s := &ForStmt{Span: SpanOf(tok)}

	// Init clause
	if !p.match(TokenSemicolon) {
		var init Stmt
		var err *SourceError
		if p.startsDecl() {
			init, err = p.varDeclStmt(true)
		} else {
			init, err = p.exprOrAssignStmt(true)
		}
		if err != nil {
			return nil, err
		}
		s.Init = init
	}

	// Condition clause
	if !p.check(TokenSemicolon) {
		cond, err := p.expression()
		if err != nil {
			return nil, err
		}
		s.Cond = cond
	}
	if err := p.expectErr(TokenSemicolon); err != nil {
		return nil, err
	}

	// Post clause
	if !p.check(TokenRightParen) {
		post, err := p.exprOrAssignStmt(false)
		if err != nil {
			return nil, err
		}
		s.Post = post
	}
	if err := p.expectErr(TokenRightParen); err != nil {
		return nil, err
	}

	body, err := p.block()
	if err != nil {
		return nil, err
	}
	s.Body = body
	return s, nil
}

func (p *Parser) whileStmt() (*WhileStmt, *SourceError) {
	tok := p.advance() // consume 'while'

	if err := p.expectErr(TokenLeftParen); err != nil {
		return nil, err
	}
	cond, err := p.expression()
	if err != nil {
		return nil, err
	}
	if err := p.expectErr(TokenRightParen); err != nil {
		return nil, err
	}
	body, err := p.block()
	if err != nil {
		return nil, err
	}
	return &WhileStmt{Cond: cond, Body: body, Span: SpanOf(tok)}, nil
}

func (p *Parser) doWhileStmt() (*DoWhileStmt, *SourceError) {
	tok := p.advance() // consume 'do'

	body, err := p.block()
	if err != nil {
		return nil, err
	}
	if err := p.expectErr(TokenWhile); err != nil {
		return nil, err
	}
	if err := p.expectErr(TokenLeftParen); err != nil {
		return nil, err
	}
	cond, err := p.expression()
	if err != nil {
		return nil, err
	}
	if err := p.expectErr(TokenRightParen); err != nil {
		return nil, err
	}
	if err := p.expectErr(TokenSemicolon); err != nil {
		return nil, err
	}
	return &DoWhileStmt{Body: body, Cond: cond, Span: SpanOf(tok)}, nil
}

// exprOrAssignStmt parses an expression statement or an assignment.
func (p *Parser) exprOrAssignStmt(consumeSemi bool) (Stmt, *SourceError) {
	start := p.peek()
	target, err := p.expression()
	if err != nil {
		return nil, err
	}

	var stmt Stmt
	switch {
	case isAssignOp(p.peek().Kind):
		op := p.advance().Kind
		value, err := p.expression()
		if err != nil {
			return nil, err
		}
		stmt = &AssignStmt{Target: target, Op: op, Value: value, Span: SpanOf(start)}
	case p.check(TokenPlusPlus) || p.check(TokenMinusMinus):
		op := p.advance().Kind
		stmt = &AssignStmt{Target: target, Op: op, Span: SpanOf(start)}
	default:
		stmt = &ExprStmt{X: target, Span: SpanOf(start)}
	}

	if consumeSemi {
		if err := p.expectErr(TokenSemicolon); err != nil {
			return nil, err
		}
	}
	return stmt, nil
}

// ---------------------------------------------------------------------------
// Expressions (precedence climbing, lowest first)
// ---------------------------------------------------------------------------

func (p *Parser) expression() (Expr, *SourceError) {
	return p.ternary()
}

func (p *Parser) ternary() (Expr, *SourceError) {
	cond, err := p.logicalOr()
	if err != nil {
		return nil, err
	}
	if !p.match(TokenQuestion) {
		return cond, nil
	}
	then, err := p.expression()
	if err != nil {
		return nil, err
	}
	if err := p.expectErr(TokenColon); err != nil {
		return nil, err
	}
	els, err := p.expression()
	if err != nil {
		return nil, err
	}
	return &TernaryExpr{Cond: cond, Then: then, Else: els, Span: cond.Pos()}, nil
}

func (p *Parser) logicalOr() (Expr, *SourceError) {
	return p.binaryChain(p.logicalAnd, TokenPipePipe)
}

func (p *Parser) logicalAnd() (Expr, *SourceError) {
	return p.binaryChain(p.bitwiseOr, TokenAmpAmp)
}

func (p *Parser) bitwiseOr() (Expr, *SourceError) {
	return p.binaryChain(p.bitwiseXor, TokenPipe)
}

func (p *Parser) bitwiseXor() (Expr, *SourceError) {
	return p.binaryChain(p.bitwiseAnd, TokenCaret)
}

func (p *Parser) bitwiseAnd() (Expr, *SourceError) {
	return p.binaryChain(p.equality, TokenAmpersand)
}

func (p *Parser) equality() (Expr, *SourceError) {
	return p.binaryChain(p.comparison, TokenEqualEqual, TokenBangEqual)
}

func (p *Parser) comparison() (Expr, *SourceError) {
	return p.binaryChain(p.shift, TokenLess, TokenLessEqual, TokenGreater, TokenGreaterEqual)
}

func (p *Parser) shift() (Expr, *SourceError) {
	return p.binaryChain(p.additive, TokenLessLess, TokenGreaterGreater)
}

func (p *Parser) additive() (Expr, *SourceError) {
	return p.binaryChain(p.multiplicative, TokenPlus, TokenMinus)
}

func (p *Parser) multiplicative() (Expr, *SourceError) {
	return p.binaryChain(p.unary, TokenStar, TokenSlash, TokenPercent)
}

func (p *Parser) binaryChain(next func() (Expr, *SourceError), ops ...TokenKind) (Expr, *SourceError) {
	left, err := next()
	if err != nil {
		return nil, err
	}
	for {
		matched := false
		for _, op := range ops {
			if p.check(op) {
				opTok := p.advance()
				right, err := next()
				if err != nil {
					return nil, err
				}
				left = &BinaryExpr{Op: opTok.Kind, L: left, R: right, Span: left.Pos()}
				matched = true
				break
			}
		}
		if !matched {
			return left, nil
		}
	}
}

func (p *Parser) unary() (Expr, *SourceError) {
	tok := p.peek()
	if tok.Kind == TokenMinus || tok.Kind == TokenBang || tok.Kind == TokenTilde {
		p.advance()
		operand, err := p.unary()
		if err != nil {
			return nil, err
		}
		return &UnaryExpr{Op: tok.Kind, X: operand, Span: SpanOf(tok)}, nil
	}
	return p.postfix()
}

func (p *Parser) postfix() (Expr, *SourceError) {
	expr, err := p.primary()
	if err != nil {
		return nil, err
	}

	for {
		switch {
		case p.match(TokenLeftBracket):
			index, err := p.expression()
			if err != nil {
				return nil, err
			}
			if err := p.expectErr(TokenRightBracket); err != nil {
				return nil, err
			}
			expr = &IndexExpr{X: expr, Index: index, Span: expr.Pos()}
		case p.match(TokenDot):
			name := p.peek()
			if name.Kind != TokenIdent {
				return nil, p.errorf(name, "expected member name after '.', found %q", name.Lexeme)
			}
			p.advance()
			expr = &MemberExpr{X: expr, Name: name.Lexeme, Span: expr.Pos()}
		default:
			return expr, nil
		}
	}
}

func (p *Parser) primary() (Expr, *SourceError) {
	tok := p.peek()

	switch {
	case tok.Kind == TokenIntLiteral || tok.Kind == TokenUintLiteral ||
		tok.Kind == TokenFloatLiteral || tok.Kind == TokenBoolLiteral:
		p.advance()
		return &Literal{Kind: tok.Kind, Value: tok.Lexeme, Span: SpanOf(tok)}, nil

	case tok.Kind == TokenIdent:
		p.advance()
		if p.check(TokenLeftParen) {
			return p.callArgs(tok.Lexeme, tok)
		}
		return &Ident{Name: tok.Lexeme, Span: SpanOf(tok)}, nil

	case isTypeKeyword(tok.Kind):
		// Constructor: vec3(...), float(...), mat2(...)
		p.advance()
		if !p.check(TokenLeftParen) {
			return nil, p.errorf(tok, "expected '(' after type %q", tok.Lexeme)
		}
		return p.callArgs(tok.Lexeme, tok)

	case tok.Kind == TokenLeftParen:
		p.advance()
		expr, err := p.expression()
		if err != nil {
			return nil, err
		}
		if err := p.expectErr(TokenRightParen); err != nil {
			return nil, err
		}
		return expr, nil
	}

	return nil, p.errorf(tok, "expected expression, found %q", tok.Lexeme)
}

func (p *Parser) callArgs(callee string, start Token) (Expr, *SourceError) {
	p.advance() // consume '('

	call := &CallExpr{Callee: callee, Span: SpanOf(start)}
	if !p.check(TokenRightParen) {
		for {
			arg, err := p.expression()
			if err != nil {
				return nil, err
			}
			call.Args = append(call.Args, arg)
			if !p.match(TokenComma) {
				break
			}
		}
	}
	if err := p.expectErr(TokenRightParen); err != nil {
		return nil, err
	}
	return call, nil
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func (p *Parser) advance() Token {
	tok := p.tokens[p.current]
	if !p.isAtEnd() {
		p.current++
	}
	return tok
}

func (p *Parser) peek() Token {
	return p.tokens[p.current]
}

func (p *Parser) peekAt(offset int) Token {
	idx := p.current + offset
	if idx >= len(p.tokens) {
		return p.tokens[len(p.tokens)-1] // EOF
	}
	return p.tokens[idx]
}

func (p *Parser) isAtEnd() bool {
	return p.tokens[p.current].Kind == TokenEOF
}

func (p *Parser) check(kind TokenKind) bool {
	return p.peek().Kind == kind
}

func (p *Parser) match(kind TokenKind) bool {
	if p.check(kind) {
		p.advance()
		return true
	}
	return false
}

func (p *Parser) expectErr(kind TokenKind) *SourceError {
	if p.match(kind) {
		return nil
	}
	tok := p.peek()
	return p.errorf(tok, "expected %q, found %q", kind.String(), tok.Lexeme)
}

func (p *Parser) errorf(tok Token, format string, args ...any) *SourceError {
	return NewSourceErrorf(SpanOf(tok), p.source, format, args...)
}

// synchronize skips tokens until a likely statement/declaration boundary so
// that a single syntax error does not cascade.
func (p *Parser) synchronize() {
	for !p.isAtEnd() {
		if p.advance().Kind == TokenSemicolon {
			return
		}
		switch p.peek().Kind {
		case TokenStruct, TokenConst, TokenIf, TokenFor, TokenWhile, TokenDo,
			TokenReturn, TokenRightBrace:
			return
		}
	}
}

func isTypeKeyword(kind TokenKind) bool {
	switch kind {
	case TokenVoid, TokenBool, TokenInt, TokenUint, TokenFloat,
		TokenVec2, TokenVec3, TokenVec4, TokenMat2, TokenMat3, TokenMat4:
		return true
	}
	return false
}

func isAssignOp(kind TokenKind) bool {
	switch kind {
	case TokenEqual, TokenPlusEqual, TokenMinusEqual, TokenStarEqual,
		TokenSlashEqual, TokenPercentEqual, TokenAmpEqual, TokenPipeEqual,
		TokenCaretEqual, TokenLessLessEqual, TokenGreaterGreaterEqual:
		return true
	}
	return false
}
