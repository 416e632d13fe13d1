package fxsl

import (
	"unicode"
	"unicode/utf8"
)

// Lexer tokenizes FXSL source code.
type Lexer struct {
	source string
	pos    int
	line   int
	column int
	start  int
	tokens []Token
}

// NewLexer creates a new lexer for the given source.
func NewLexer(source string) *Lexer {
	// Estimate ~1 token per 6 characters of source.
	estTokens := len(source) / 6
	if estTokens < 16 {
		estTokens = 16
	}
	return &Lexer{
		source: source,
		pos:    0,
		line:   1,
		column: 1,
		tokens: make([]Token, 0, estTokens),
	}
}

// Tokenize returns all tokens from the source.
func (l *Lexer) Tokenize() ([]Token, error) {
	for !l.isAtEnd() {
		l.start = l.pos
		l.scanToken()
	}

	l.tokens = append(l.tokens, Token{
		Kind:   TokenEOF,
		Line:   l.line,
		Column: l.column,
	})

	return l.tokens, nil
}

func (l *Lexer) scanToken() {
	r := l.advance()

	switch r {
	// Single-character tokens
	case '(':
		l.addToken(TokenLeftParen)
	case ')':
		l.addToken(TokenRightParen)
	case '{':
		l.addToken(TokenLeftBrace)
	case '}':
		l.addToken(TokenRightBrace)
	case '[':
		l.addToken(TokenLeftBracket)
	case ']':
		l.addToken(TokenRightBracket)
	case ',':
		l.addToken(TokenComma)
	case '.':
		l.addToken(TokenDot)
	case '?':
		l.addToken(TokenQuestion)
	case ':':
		l.addToken(TokenColon)
	case ';':
		l.addToken(TokenSemicolon)
	case '~':
		l.addToken(TokenTilde)
	case '%':
		if l.match('=') {
			l.addToken(TokenPercentEqual)
		} else {
			l.addToken(TokenPercent)
		}
	case '^':
		if l.match('=') {
			l.addToken(TokenCaretEqual)
		} else {
			l.addToken(TokenCaret)
		}

	// Operators that could be one or two characters
	case '+':
		if l.match('+') {
			l.addToken(TokenPlusPlus)
		} else if l.match('=') {
			l.addToken(TokenPlusEqual)
		} else {
			l.addToken(TokenPlus)
		}
	case '-':
		if l.match('-') {
			l.addToken(TokenMinusMinus)
		} else if l.match('=') {
			l.addToken(TokenMinusEqual)
		} else {
			l.addToken(TokenMinus)
		}
	case '*':
		if l.match('=') {
			l.addToken(TokenStarEqual)
		} else {
			l.addToken(TokenStar)
		}
	case '/':
		if l.match('/') {
			// Line comment
			for l.peek() != '\n' && !l.isAtEnd() {
				l.advance()
			}
		} else if l.match('*') {
			// Block comment
			l.blockComment()
		} else if l.match('=') {
			l.addToken(TokenSlashEqual)
		} else {
			l.addToken(TokenSlash)
		}
	case '=':
		if l.match('=') {
			l.addToken(TokenEqualEqual)
		} else {
			l.addToken(TokenEqual)
		}
	case '!':
		if l.match('=') {
			l.addToken(TokenBangEqual)
		} else {
			l.addToken(TokenBang)
		}
	case '<':
		if l.match('<') {
			if l.match('=') {
				l.addToken(TokenLessLessEqual)
			} else {
				l.addToken(TokenLessLess)
			}
		} else if l.match('=') {
			l.addToken(TokenLessEqual)
		} else {
			l.addToken(TokenLess)
		}
	case '>':
		if l.match('>') {
			if l.match('=') {
				l.addToken(TokenGreaterGreaterEqual)
			} else {
				l.addToken(TokenGreaterGreater)
			}
		} else if l.match('=') {
			l.addToken(TokenGreaterEqual)
		} else {
			l.addToken(TokenGreater)
		}
	case '&':
		if l.match('&') {
			l.addToken(TokenAmpAmp)
		} else if l.match('=') {
			l.addToken(TokenAmpEqual)
		} else {
			l.addToken(TokenAmpersand)
		}
	case '|':
		if l.match('|') {
			l.addToken(TokenPipePipe)
		} else if l.match('=') {
			l.addToken(TokenPipeEqual)
		} else {
			l.addToken(TokenPipe)
		}

	// Whitespace
	case ' ', '\r', '\t':
		// Ignore whitespace
	case '\n':
		l.line++
		l.column = 1

	default:
		if isDigit(r) {
			l.number()
		} else if isAlpha(r) || r == '_' {
			l.identifier()
		} else {
			l.addToken(TokenError)
		}
	}
}

func (l *Lexer) blockComment() {
	depth := 1
	for depth > 0 && !l.isAtEnd() {
		if l.peek() == '/' && l.peekNext() == '*' {
			l.advance()
			l.advance()
			depth++
		} else if l.peek() == '*' && l.peekNext() == '/' {
			l.advance()
			l.advance()
			depth--
		} else {
			if l.peek() == '\n' {
				l.line++
				l.column = 0
			}
			l.advance()
		}
	}
}

func (l *Lexer) number() {
	// Hex prefix
	if l.source[l.start] == '0' && l.pos < len(l.source) {
		next := l.peek()
		if next == 'x' || next == 'X' {
			l.advance()
			for isHexDigit(l.peek()) {
				l.advance()
			}
			if l.peek() == 'u' || l.peek() == 'U' {
				l.advance()
				l.addToken(TokenUintLiteral)
			} else {
				l.addToken(TokenIntLiteral)
			}
			return
		}
	}

	for isDigit(l.peek()) {
		l.advance()
	}

	// Fractional part. "1.x" is member access on int 1, so "." only starts a
	// float when the following character cannot begin an identifier.
	nextAfterDot := l.peekNext()
	if l.peek() == '.' && !isAlpha(nextAfterDot) && nextAfterDot != '_' {
		l.advance() // consume '.'
		for isDigit(l.peek()) {
			l.advance()
		}
		l.exponent()
		if l.peek() == 'f' || l.peek() == 'F' {
			l.advance()
		}
		l.addToken(TokenFloatLiteral)
		return
	}

	// Exponent without decimal point: 1e3
	if l.peek() == 'e' || l.peek() == 'E' {
		l.exponent()
		l.addToken(TokenFloatLiteral)
		return
	}

	// Unsigned suffix
	if l.peek() == 'u' || l.peek() == 'U' {
		l.advance()
		l.addToken(TokenUintLiteral)
		return
	}

	l.addToken(TokenIntLiteral)
}

func (l *Lexer) exponent() {
	if l.peek() == 'e' || l.peek() == 'E' {
		l.advance()
		if l.peek() == '+' || l.peek() == '-' {
			l.advance()
		}
		for isDigit(l.peek()) {
			l.advance()
		}
	}
}

func (l *Lexer) identifier() {
	for isAlphaNumeric(l.peek()) || l.peek() == '_' {
		l.advance()
	}

	text := l.source[l.start:l.pos]
	kind := lookupKeyword(text)
	l.addToken(kind)
}

var keywords = map[string]TokenKind{
	"break":    TokenBreak,
	"const":    TokenConst,
	"continue": TokenContinue,
	"do":       TokenDo,
	"else":     TokenElse,
	"false":    TokenFalse,
	"for":      TokenFor,
	"if":       TokenIf,
	"return":   TokenReturn,
	"struct":   TokenStruct,
	"true":     TokenTrue,
	"while":    TokenWhile,

	// Types
	"void":  TokenVoid,
	"bool":  TokenBool,
	"int":   TokenInt,
	"uint":  TokenUint,
	"float": TokenFloat,
	"vec2":  TokenVec2,
	"vec3":  TokenVec3,
	"vec4":  TokenVec4,
	"mat2":  TokenMat2,
	"mat3":  TokenMat3,
	"mat4":  TokenMat4,
}

func lookupKeyword(text string) TokenKind {
	if kind, ok := keywords[text]; ok {
		if kind == TokenTrue || kind == TokenFalse {
			return TokenBoolLiteral
		}
		return kind
	}
	return TokenIdent
}

func (l *Lexer) addToken(kind TokenKind) {
	l.tokens = append(l.tokens, Token{
		Kind:   kind,
		Lexeme: l.source[l.start:l.pos],
		Line:   l.line,
		Column: l.column - (l.pos - l.start),
	})
}

func (l *Lexer) advance() rune {
	r, size := utf8.DecodeRuneInString(l.source[l.pos:])
	l.pos += size
	l.column++
	return r
}

func (l *Lexer) peek() rune {
	if l.isAtEnd() {
		return 0
	}
	r, _ := utf8.DecodeRuneInString(l.source[l.pos:])
	return r
}

func (l *Lexer) peekNext() rune {
	if l.pos+1 >= len(l.source) {
		return 0
	}
	_, size := utf8.DecodeRuneInString(l.source[l.pos:])
	r, _ := utf8.DecodeRuneInString(l.source[l.pos+size:])
	return r
}

func (l *Lexer) match(expected rune) bool {
	if l.isAtEnd() {
		return false
	}
	r, size := utf8.DecodeRuneInString(l.source[l.pos:])
	if r != expected {
		return false
	}
	l.pos += size
	l.column++
	return true
}

func (l *Lexer) isAtEnd() bool {
	return l.pos >= len(l.source)
}

func isDigit(r rune) bool {
	return r >= '0' && r <= '9'
}

func isHexDigit(r rune) bool {
	return isDigit(r) || (r >= 'a' && r <= 'f') || (r >= 'A' && r <= 'F')
}

func isAlpha(r rune) bool {
	return unicode.IsLetter(r)
}

func isAlphaNumeric(r rune) bool {
	return isAlpha(r) || isDigit(r)
}
