package token

import "fmt"

type TokenType string

const (
	ILLEGAL = "ILLEGAL"
	EOF     = "EOF"

	// Identifiers + literals
	IDENT  = "IDENT"  // add, foobar, x, y, ...
	NUMBER = "NUMBER" // 1343456, 3.14
	STRING = "STRING" // "foobar"

	// Operators
	ASSIGN   = "="
	PLUS     = "+"
	MINUS    = "-"
	BANG     = "!"
	ASTERISK = "*"
	SLASH    = "/"
	QUESTION = "?"

	LT    = "<"
	LT_EQ = "<="
	GT    = ">"
	GT_EQ = ">="

	EQ     = "=="
	NOT_EQ = "!="

	// Delimiters
	PERIOD    = "."
	COMMA     = ","
	SEMICOLON = ";"
	COLON     = ":"

	LPAREN = "("
	RPAREN = ")"
	LBRACE = "{"
	RBRACE = "}"

	// Keywords
	AND    = "AND"
	BREAK  = "BREAK"
	CLASS  = "CLASS"
	ELSE   = "ELSE"
	FALSE  = "FALSE"
	FOR    = "FOR"
	FUN    = "FUN"
	IF     = "IF"
	NIL    = "NIL"
	OR     = "OR"
	PRINT  = "PRINT"
	RETURN = "RETURN"
	SUPER  = "SUPER"
	THIS   = "THIS"
	TRUE   = "TRUE"
	VAR    = "VAR"
	WHILE  = "WHILE"
)

// Token is the unit handed from the lexer to the parser. Literal carries the
// decoded value for NUMBER (float64) and STRING (string) tokens.
type Token struct {
	Type     TokenType
	Lexeme   string
	Literal  any
	Line     int
	Position int // the src index of the token
}

func (t Token) String() string {
	return fmt.Sprintf("%s %q %v", t.Type, t.Lexeme, t.Literal)
}

// Synthetic builds a token that does not come from source text, such as the
// implicit `this` of a bound method.
func Synthetic(t TokenType, lexeme string, line int) Token {
	return Token{Type: t, Lexeme: lexeme, Line: line, Position: -1}
}

var keywords = map[string]TokenType{
	// constants
	"nil":   NIL,
	"true":  TRUE,
	"false": FALSE,

	// declarations
	"var":   VAR,
	"fun":   FUN,
	"class": CLASS,
	"this":  THIS,
	"super": SUPER,

	// flow control
	"if":     IF,
	"else":   ELSE,
	"while":  WHILE,
	"for":    FOR,
	"break":  BREAK,
	"return": RETURN,

	"and":   AND,
	"or":    OR,
	"print": PRINT,
}

func LookupIdent(ident string) TokenType {
	if tok, ok := keywords[ident]; ok {
		return tok
	}
	return IDENT
}
