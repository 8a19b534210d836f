package lexer

import (
	"strconv"
	"unicode"
	"unicode/utf8"

	"lox/internal/token"
)

type Lexer struct {
	input        string
	position     int       // current byte position in input (points to start of current rune)
	readPosition int       // next byte position in input (start of next rune)
	ch           rune      // current rune under examination; 0 means EOF
	line         int       // line of the current rune
	currentMode  Tokenizer // Current tokenizer strategy
}

type Tokenizer interface {
	NextToken() token.Token
}

func New(input string) *Lexer {
	l := &Lexer{input: input, line: 1}
	l.switchMode(NewGeneralTokenizer(l))
	l.readChar()
	return l
}

func (l *Lexer) switchMode(mode Tokenizer) {
	l.currentMode = mode
}

func (l *Lexer) NextToken() token.Token {
	return l.currentMode.NextToken()
}

// Tokens drains the lexer, the final element is always the EOF token.
func (l *Lexer) Tokens() []token.Token {
	tokens := make([]token.Token, 0, len(l.input)/4+1)
	for {
		tok := l.NextToken()
		tokens = append(tokens, tok)
		if tok.Type == token.EOF {
			return tokens
		}
	}
}

func (l *Lexer) handleCompoundToken(
	t token.TokenType,
	ch1 rune,
	t1 token.TokenType,
) token.Token {
	startPosition := l.position
	if l.peekChar() == ch1 {
		first := l.ch
		l.readChar()
		lexeme := string(first) + string(l.ch)
		return token.Token{Type: t1, Lexeme: lexeme, Line: l.line, Position: startPosition}
	}
	return l.newToken(t, startPosition)
}

func (l *Lexer) skipWhitespace() {
	for {
		switch l.ch {
		case ' ', '\t', '\r', '\n':
			l.readChar()
		case '/':
			if l.peekChar() == '/' {
				l.skipToLineEnd()
			} else {
				return
			}
		default:
			return
		}
	}
}

func (l *Lexer) skipToLineEnd() {
	for l.ch != '\n' && l.ch != 0 {
		l.readChar()
	}
}

// readChar advances by one UTF-8 rune, updating byte positions and the line counter
func (l *Lexer) readChar() {
	if l.ch == '\n' {
		l.line++
	}
	if l.readPosition >= len(l.input) {
		l.ch = 0
		l.position = l.readPosition
		return
	}
	r, size := utf8.DecodeRuneInString(l.input[l.readPosition:])
	l.ch = r
	l.position = l.readPosition
	l.readPosition += size
}

// peekChar returns the next rune without advancing; returns 0 at EOF
func (l *Lexer) peekChar() rune {
	if l.readPosition >= len(l.input) {
		return 0
	}
	r, _ := utf8.DecodeRuneInString(l.input[l.readPosition:])
	return r
}

// readIdentifier returns the substring (bytes) covering the identifier runes
func (l *Lexer) readIdentifier() string {
	start := l.position
	for isLetter(l.ch) || isDigit(l.ch) {
		l.readChar()
	}
	return l.input[start:l.position]
}

// readNumber consumes digits with an optional fractional part. A trailing
// '.' not followed by a digit is left for the PERIOD token.
func (l *Lexer) readNumber() (string, float64, error) {
	start := l.position
	for isDigit(l.ch) {
		l.readChar()
	}
	if l.ch == '.' && isDigit(l.peekChar()) {
		l.readChar()
		for isDigit(l.ch) {
			l.readChar()
		}
	}
	lexeme := l.input[start:l.position]
	value, err := strconv.ParseFloat(lexeme, 64)
	return lexeme, value, err
}

func isLetter(ch rune) bool {
	return ch == '_' || unicode.IsLetter(ch)
}

func isDigit(ch rune) bool {
	return ch >= '0' && ch <= '9'
}

func (l *Lexer) newToken(tokenType token.TokenType, position int) token.Token {
	return token.Token{Type: tokenType, Lexeme: string(l.ch), Line: l.line, Position: position}
}

func (l *Lexer) illegal(message string, position int) token.Token {
	return token.Token{Type: token.ILLEGAL, Lexeme: message, Line: l.line, Position: position}
}
