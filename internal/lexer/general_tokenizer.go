package lexer

import (
	"lox/internal/token"
)

type GeneralTokenizer struct {
	lexer *Lexer
}

func NewGeneralTokenizer(lexer *Lexer) *GeneralTokenizer {
	return &GeneralTokenizer{lexer: lexer}
}

func (g *GeneralTokenizer) NextToken() token.Token {
	var tok token.Token

	g.lexer.skipWhitespace()

	startPosition := g.lexer.position // Record the current position as the start of the token

	switch g.lexer.ch {
	case '=':
		tok = g.lexer.handleCompoundToken(token.ASSIGN, '=', token.EQ)
	case '!':
		tok = g.lexer.handleCompoundToken(token.BANG, '=', token.NOT_EQ)
	case '<':
		tok = g.lexer.handleCompoundToken(token.LT, '=', token.LT_EQ)
	case '>':
		tok = g.lexer.handleCompoundToken(token.GT, '=', token.GT_EQ)
	case '+':
		tok = g.lexer.newToken(token.PLUS, startPosition)
	case '-':
		tok = g.lexer.newToken(token.MINUS, startPosition)
	case '/':
		tok = g.lexer.newToken(token.SLASH, startPosition)
	case '*':
		tok = g.lexer.newToken(token.ASTERISK, startPosition)
	case '?':
		tok = g.lexer.newToken(token.QUESTION, startPosition)
	case ':':
		tok = g.lexer.newToken(token.COLON, startPosition)
	case ';':
		tok = g.lexer.newToken(token.SEMICOLON, startPosition)
	case ',':
		tok = g.lexer.newToken(token.COMMA, startPosition)
	case '.':
		tok = g.lexer.newToken(token.PERIOD, startPosition)
	case '(':
		tok = g.lexer.newToken(token.LPAREN, startPosition)
	case ')':
		tok = g.lexer.newToken(token.RPAREN, startPosition)
	case '{':
		tok = g.lexer.newToken(token.LBRACE, startPosition)
	case '}':
		tok = g.lexer.newToken(token.RBRACE, startPosition)
	case '"':
		g.lexer.readChar() // consume the opening "
		g.lexer.switchMode(NewStringTokenizer(g.lexer, startPosition))
		return g.lexer.currentMode.NextToken()
	case 0:
		tok = token.Token{Type: token.EOF, Lexeme: "", Line: g.lexer.line, Position: startPosition}
		return tok
	default:
		if isLetter(g.lexer.ch) {
			line := g.lexer.line
			tok.Lexeme = g.lexer.readIdentifier()
			tok.Type = token.LookupIdent(tok.Lexeme)
			tok.Line = line
			tok.Position = startPosition
			return tok
		} else if isDigit(g.lexer.ch) {
			line := g.lexer.line
			lexeme, value, err := g.lexer.readNumber()
			if err != nil {
				return g.lexer.illegal("Invalid number literal.", startPosition)
			}
			return token.Token{Type: token.NUMBER, Lexeme: lexeme, Literal: value, Line: line, Position: startPosition}
		} else {
			tok = g.lexer.illegal("Unexpected character.", startPosition)
		}
	}

	g.lexer.readChar()
	return tok
}
