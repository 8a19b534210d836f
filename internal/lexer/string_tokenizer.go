package lexer

import (
	"lox/internal/token"
)

// StringTokenizer reads a double-quoted literal. Strings may span lines and
// carry no escape sequences.
type StringTokenizer struct {
	lexer *Lexer
	start int
}

func NewStringTokenizer(lexer *Lexer, start int) *StringTokenizer {
	return &StringTokenizer{lexer: lexer, start: start}
}

func (s *StringTokenizer) NextToken() token.Token {
	// the opening `"` has already been read
	line := s.lexer.line
	contentStart := s.lexer.position

	for s.lexer.ch != '"' {
		if s.lexer.ch == 0 {
			s.lexer.switchMode(NewGeneralTokenizer(s.lexer))
			return s.lexer.illegal("Unterminated string.", s.start)
		}
		s.lexer.readChar()
	}

	value := s.lexer.input[contentStart:s.lexer.position]
	s.lexer.readChar() // Consume the closing `"`

	// Fall back to the general tokenizer mode after the string ends
	s.lexer.switchMode(NewGeneralTokenizer(s.lexer))

	return token.Token{
		Type:     token.STRING,
		Lexeme:   s.lexer.input[s.start:s.lexer.position],
		Literal:  value,
		Line:     line,
		Position: s.start,
	}
}
