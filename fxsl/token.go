package fxsl

// TokenKind represents the type of token.
type TokenKind uint8

const (
	TokenEOF TokenKind = iota
	TokenError

	// Literals
	TokenIdent
	TokenIntLiteral
	TokenUintLiteral
	TokenFloatLiteral
	TokenBoolLiteral

	// Operators
	TokenPlus                // +
	TokenMinus               // -
	TokenStar                // *
	TokenSlash               // /
	TokenPercent             // %
	TokenAmpersand           // &
	TokenPipe                // |
	TokenCaret               // ^
	TokenTilde               // ~
	TokenBang                // !
	TokenEqual               // =
	TokenLess                // <
	TokenGreater             // >
	TokenDot                 // .
	TokenComma               // ,
	TokenQuestion            // ?
	TokenColon               // :
	TokenSemicolon           // ;
	TokenPlusPlus            // ++
	TokenMinusMinus          // --
	TokenEqualEqual          // ==
	TokenBangEqual           // !=
	TokenLessEqual           // <=
	TokenGreaterEqual        // >=
	TokenAmpAmp              // &&
	TokenPipePipe            // ||
	TokenLessLess            // <<
	TokenGreaterGreater      // >>
	TokenPlusEqual           // +=
	TokenMinusEqual          // -=
	TokenStarEqual           // *=
	TokenSlashEqual          // /=
	TokenPercentEqual        // %=
	TokenAmpEqual            // &=
	TokenPipeEqual           // |=
	TokenCaretEqual          // ^=
	TokenLessLessEqual       // <<=
	TokenGreaterGreaterEqual // >>=

	// Delimiters
	TokenLeftParen    // (
	TokenRightParen   // )
	TokenLeftBrace    // {
	TokenRightBrace   // }
	TokenLeftBracket  // [
	TokenRightBracket // ]

	// Keywords
	TokenBreak
	TokenConst
	TokenContinue
	TokenDo
	TokenElse
	TokenFalse
	TokenFor
	TokenIf
	TokenReturn
	TokenStruct
	TokenTrue
	TokenWhile

	// Type keywords
	TokenVoid
	TokenBool
	TokenInt
	TokenUint
	TokenFloat
	TokenVec2
	TokenVec3
	TokenVec4
	TokenMat2
	TokenMat3
	TokenMat4
)

// String returns the string representation of the token kind.
func (k TokenKind) String() string {
	switch k {
	case TokenEOF:
		return "EOF"
	case TokenError:
		return "Error"
	case TokenIdent:
		return "Ident"
	case TokenIntLiteral:
		return "IntLiteral"
	case TokenUintLiteral:
		return "UintLiteral"
	case TokenFloatLiteral:
		return "FloatLiteral"
	case TokenBoolLiteral:
		return "BoolLiteral"
	case TokenPlus:
		return "+"
	case TokenMinus:
		return "-"
	case TokenStar:
		return "*"
	case TokenSlash:
		return "/"
	case TokenPercent:
		return "%"
	case TokenEqual:
		return "="
	case TokenQuestion:
		return "?"
	case TokenColon:
		return ":"
	case TokenSemicolon:
		return ";"
	case TokenComma:
		return ","
	case TokenLeftParen:
		return "("
	case TokenRightParen:
		return ")"
	case TokenLeftBrace:
		return "{"
	case TokenRightBrace:
		return "}"
	case TokenLeftBracket:
		return "["
	case TokenRightBracket:
		return "]"
	case TokenBreak:
		return "break"
	case TokenConst:
		return "const"
	case TokenContinue:
		return "continue"
	case TokenDo:
		return "do"
	case TokenElse:
		return "else"
	case TokenFor:
		return "for"
	case TokenIf:
		return "if"
	case TokenReturn:
		return "return"
	case TokenStruct:
		return "struct"
	case TokenWhile:
		return "while"
	case TokenVoid:
		return "void"
	case TokenBool:
		return "bool"
	case TokenInt:
		return "int"
	case TokenUint:
		return "uint"
	case TokenFloat:
		return "float"
	case TokenVec2:
		return "vec2"
	case TokenVec3:
		return "vec3"
	case TokenVec4:
		return "vec4"
	case TokenMat2:
		return "mat2"
	case TokenMat3:
		return "mat3"
	case TokenMat4:
		return "mat4"
	default:
		return "Unknown"
	}
}

// Token represents a lexical token.
type Token struct {
	Kind   TokenKind
	Lexeme string
	Line   int
	Column int
}

// Span represents a source code location span.
type Span struct {
	Start Position
	End   Position
}

// Position represents a position in source code.
type Position struct {
	Line   int
	Column int
	Offset int
}

// SpanOf builds a single-token span.
func SpanOf(tok Token) Span {
	return Span{
		Start: Position{Line: tok.Line, Column: tok.Column},
		End:   Position{Line: tok.Line, Column: tok.Column + len(tok.Lexeme)},
	}
}
