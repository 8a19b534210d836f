package parser

import (
	"lox/internal/ast"
	"lox/internal/diag"
	"lox/internal/lexer"
	"lox/internal/token"
)

const (
	_          int = iota
	LOWEST         // full expression
	COMMA          // a, b
	ASSIGN         // a = b
	TERNARY        // a ? b : c
	LOGICAL_OR     // or
	LOGICAL_AND    // and
	EQUALS         // == or !=
	COMPARISON     // > or <
	SUM            // +
	PRODUCT        // *
	PREFIX         // -X or !X
	CALL           // fn(X) or obj.x
)

const maxArgs = 255

var precedences = map[token.TokenType]int{
	token.COMMA:    COMMA,
	token.ASSIGN:   ASSIGN,
	token.QUESTION: TERNARY,
	token.OR:       LOGICAL_OR,
	token.AND:      LOGICAL_AND,
	token.EQ:       EQUALS,
	token.NOT_EQ:   EQUALS,
	token.LT:       COMPARISON,
	token.LT_EQ:    COMPARISON,
	token.GT:       COMPARISON,
	token.GT_EQ:    COMPARISON,
	token.PLUS:     SUM,
	token.MINUS:    SUM,
	token.SLASH:    PRODUCT,
	token.ASTERISK: PRODUCT,
	token.PERIOD:   CALL,
	token.LPAREN:   CALL,
}

type (
	prefixParseFn func() ast.Expression
	infixParseFn  func(ast.Expression) ast.Expression
)

// bailout unwinds the parser to the enclosing declaration, which then
// synchronizes on a statement boundary.
type bailout struct{}

type Parser struct {
	l      *lexer.Lexer
	sink   diag.Sink
	errors []diag.Diagnostic

	// AllowBareExpression accepts a final expression statement without its
	// semicolon. The REPL sets it.
	AllowBareExpression bool

	curToken  token.Token
	peekToken token.Token

	prefixParseFns map[token.TokenType]prefixParseFn
	infixParseFns  map[token.TokenType]infixParseFn
}

func New(l *lexer.Lexer, sink diag.Sink) *Parser {
	p := &Parser{
		l:    l,
		sink: sink,
	}

	p.prefixParseFns = make(map[token.TokenType]prefixParseFn)
	p.registerPrefix(token.NIL, p.parseLiteral)
	p.registerPrefix(token.TRUE, p.parseLiteral)
	p.registerPrefix(token.FALSE, p.parseLiteral)
	p.registerPrefix(token.NUMBER, p.parseLiteral)
	p.registerPrefix(token.STRING, p.parseLiteral)
	p.registerPrefix(token.IDENT, p.parseIdentifier)
	p.registerPrefix(token.THIS, p.parseThis)
	p.registerPrefix(token.SUPER, p.parseSuper)
	p.registerPrefix(token.BANG, p.parsePrefixExpression)
	p.registerPrefix(token.MINUS, p.parsePrefixExpression)
	p.registerPrefix(token.LPAREN, p.parseGroupedExpression)

	p.infixParseFns = make(map[token.TokenType]infixParseFn)
	p.registerInfix(token.PLUS, p.parseInfixExpression)
	p.registerInfix(token.MINUS, p.parseInfixExpression)
	p.registerInfix(token.SLASH, p.parseInfixExpression)
	p.registerInfix(token.ASTERISK, p.parseInfixExpression)
	p.registerInfix(token.EQ, p.parseInfixExpression)
	p.registerInfix(token.NOT_EQ, p.parseInfixExpression)
	p.registerInfix(token.LT, p.parseInfixExpression)
	p.registerInfix(token.LT_EQ, p.parseInfixExpression)
	p.registerInfix(token.GT, p.parseInfixExpression)
	p.registerInfix(token.GT_EQ, p.parseInfixExpression)
	p.registerInfix(token.AND, p.parseLogicalExpression)
	p.registerInfix(token.OR, p.parseLogicalExpression)
	p.registerInfix(token.COMMA, p.parseCommaExpression)
	p.registerInfix(token.QUESTION, p.parseTernaryExpression)
	p.registerInfix(token.ASSIGN, p.parseAssignExpression)
	p.registerInfix(token.LPAREN, p.parseCallExpression)
	p.registerInfix(token.PERIOD, p.parseGetExpression)

	// Read two tokens, so curToken and peekToken are both set
	p.nextToken()
	p.nextToken()

	return p
}

func (p *Parser) registerPrefix(tokenType token.TokenType, fn prefixParseFn) {
	p.prefixParseFns[tokenType] = fn
}

func (p *Parser) registerInfix(tokenType token.TokenType, fn infixParseFn) {
	p.infixParseFns[tokenType] = fn
}

// nextToken advances, reporting and skipping any ILLEGAL tokens so the
// grammar never sees them.
func (p *Parser) nextToken() {
	p.curToken = p.peekToken
	for {
		p.peekToken = p.l.NextToken()
		if p.peekToken.Type != token.ILLEGAL {
			return
		}
		p.report(p.peekToken, p.peekToken.Lexeme, diag.PhaseScan)
	}
}

func (p *Parser) curTokenIs(t token.TokenType) bool {
	return p.curToken.Type == t
}

func (p *Parser) peekTokenIs(t token.TokenType) bool {
	return p.peekToken.Type == t
}

func (p *Parser) peekPrecedence() int {
	if prec, ok := precedences[p.peekToken.Type]; ok {
		return prec
	}
	return LOWEST
}

func (p *Parser) report(tok token.Token, message string, phase diag.Phase) {
	d := diag.Diagnostic{Token: tok, Message: message, Severity: diag.Error, Phase: phase}
	p.errors = append(p.errors, d)
	if p.sink != nil {
		p.sink.Report(d)
	}
}

// errorAt records a syntax error and lets parsing carry on.
func (p *Parser) errorAt(tok token.Token, message string) {
	p.report(tok, message, diag.PhaseParse)
}

// fail records a syntax error and abandons the current declaration.
func (p *Parser) fail(tok token.Token, message string) {
	p.errorAt(tok, message)
	panic(bailout{})
}

func (p *Parser) expectPeek(t token.TokenType, message string) {
	if !p.peekTokenIs(t) {
		p.fail(p.peekToken, message)
	}
	p.nextToken()
}

func (p *Parser) Errors() []diag.Diagnostic {
	return p.errors
}

func (p *Parser) ParseProgram() *ast.Program {
	program := &ast.Program{Base: ast.NewBase()}
	program.Statements = []ast.Statement{}

	for !p.curTokenIs(token.EOF) {
		stmt := p.parseDeclaration()
		if stmt != nil {
			program.Statements = append(program.Statements, stmt)
		}
		p.nextToken()
	}

	return program
}

// parseDeclaration leaves curToken on the last token of the declaration.
// On a syntax error it returns nil with curToken on the token just before
// the next likely statement start.
func (p *Parser) parseDeclaration() (stmt ast.Statement) {
	defer func() {
		if r := recover(); r != nil {
			if _, ok := r.(bailout); !ok {
				panic(r)
			}
			p.synchronize()
			stmt = nil
		}
	}()

	switch p.curToken.Type {
	case token.VAR:
		return p.parseVarStatement()
	case token.FUN:
		p.nextToken()
		return p.parseFunction("function")
	case token.CLASS:
		return p.parseClassStatement()
	default:
		return p.parseStatement()
	}
}

func (p *Parser) synchronize() {
	for !p.curTokenIs(token.SEMICOLON) && !p.curTokenIs(token.EOF) {
		switch p.peekToken.Type {
		case token.CLASS, token.FUN, token.VAR, token.FOR, token.IF,
			token.WHILE, token.PRINT, token.RETURN, token.EOF:
			return
		}
		p.nextToken()
	}
}

func (p *Parser) parseStatement() ast.Statement {
	switch p.curToken.Type {
	case token.PRINT:
		return p.parsePrintStatement()
	case token.RETURN:
		return p.parseReturnStatement()
	case token.BREAK:
		return p.parseBreakStatement()
	case token.IF:
		return p.parseIfStatement()
	case token.WHILE:
		return p.parseWhileStatement()
	case token.FOR:
		return p.parseForStatement()
	case token.LBRACE:
		return p.parseBlockStatement()
	default:
		return p.parseExpressionStatement()
	}
}

func (p *Parser) parseVarStatement() *ast.VarStatement {
	stmt := &ast.VarStatement{Base: ast.NewBase()}

	p.expectPeek(token.IDENT, "Expect variable name.")
	stmt.Name = p.curToken

	if p.peekTokenIs(token.ASSIGN) {
		p.nextToken()
		p.nextToken()
		stmt.Initializer = p.parseExpression(LOWEST)
	}

	p.expectPeek(token.SEMICOLON, "Expect ';' after variable declaration.")
	return stmt
}

// parseFunction expects curToken on the name. kind is "function" or
// "method"; only methods may omit the parameter list to form a getter.
func (p *Parser) parseFunction(kind string) *ast.FunctionStatement {
	if !p.curTokenIs(token.IDENT) {
		p.fail(p.curToken, "Expect "+kind+" name.")
	}
	fn := &ast.FunctionStatement{Base: ast.NewBase(), Name: p.curToken}

	if kind == "method" && p.peekTokenIs(token.LBRACE) {
		fn.IsGetter = true
	} else {
		p.expectPeek(token.LPAREN, "Expect '(' after "+kind+" name.")
		fn.Params = p.parseFunctionParameters()
	}

	p.expectPeek(token.LBRACE, "Expect '{' before "+kind+" body.")
	fn.Body = p.parseBlock()
	return fn
}

func (p *Parser) parseFunctionParameters() []token.Token {
	params := []token.Token{}

	if p.peekTokenIs(token.RPAREN) {
		p.nextToken()
		return params
	}

	for {
		if len(params) == maxArgs {
			p.errorAt(p.peekToken, "Can't have more than 255 parameters.")
		}
		p.expectPeek(token.IDENT, "Expect parameter name.")
		params = append(params, p.curToken)
		if !p.peekTokenIs(token.COMMA) {
			break
		}
		p.nextToken()
	}

	p.expectPeek(token.RPAREN, "Expect ')' after parameters.")
	return params
}

func (p *Parser) parseClassStatement() *ast.ClassStatement {
	stmt := &ast.ClassStatement{Base: ast.NewBase()}

	p.expectPeek(token.IDENT, "Expect class name.")
	stmt.Name = p.curToken

	if p.peekTokenIs(token.LT) {
		p.nextToken()
		p.expectPeek(token.IDENT, "Expect superclass name.")
		stmt.Superclass = &ast.Identifier{Base: ast.NewBase(), Name: p.curToken}
	}

	p.expectPeek(token.LBRACE, "Expect '{' before class body.")

	for !p.peekTokenIs(token.RBRACE) && !p.peekTokenIs(token.EOF) {
		p.nextToken()
		if p.curTokenIs(token.CLASS) {
			p.nextToken()
			stmt.ClassMethods = append(stmt.ClassMethods, p.parseFunction("method"))
			continue
		}
		stmt.Methods = append(stmt.Methods, p.parseFunction("method"))
	}

	p.expectPeek(token.RBRACE, "Expect '}' after class body.")
	return stmt
}

func (p *Parser) parsePrintStatement() *ast.PrintStatement {
	stmt := &ast.PrintStatement{Base: ast.NewBase(), Token: p.curToken}

	p.nextToken()
	stmt.Expression = p.parseExpression(LOWEST)

	p.expectPeek(token.SEMICOLON, "Expect ';' after value.")
	return stmt
}

func (p *Parser) parseReturnStatement() *ast.ReturnStatement {
	stmt := &ast.ReturnStatement{Base: ast.NewBase(), Keyword: p.curToken}

	if !p.peekTokenIs(token.SEMICOLON) {
		p.nextToken()
		stmt.Value = p.parseExpression(LOWEST)
	}

	p.expectPeek(token.SEMICOLON, "Expect ';' after return value.")
	return stmt
}

func (p *Parser) parseBreakStatement() *ast.BreakStatement {
	stmt := &ast.BreakStatement{Base: ast.NewBase(), Token: p.curToken}
	p.expectPeek(token.SEMICOLON, "Expect ';' after 'break'.")
	return stmt
}

func (p *Parser) parseIfStatement() *ast.IfStatement {
	stmt := &ast.IfStatement{Base: ast.NewBase(), Token: p.curToken}

	p.expectPeek(token.LPAREN, "Expect '(' after 'if'.")
	p.nextToken()
	stmt.Condition = p.parseExpression(LOWEST)
	p.expectPeek(token.RPAREN, "Expect ')' after if condition.")

	p.nextToken()
	stmt.ThenBranch = p.parseStatement()

	if p.peekTokenIs(token.ELSE) {
		p.nextToken()
		p.nextToken()
		stmt.ElseBranch = p.parseStatement()
	}

	return stmt
}

func (p *Parser) parseWhileStatement() *ast.WhileStatement {
	stmt := &ast.WhileStatement{Base: ast.NewBase(), Token: p.curToken}

	p.expectPeek(token.LPAREN, "Expect '(' after 'while'.")
	p.nextToken()
	stmt.Condition = p.parseExpression(LOWEST)
	p.expectPeek(token.RPAREN, "Expect ')' after condition.")

	p.nextToken()
	stmt.Body = p.parseStatement()
	return stmt
}

// parseForStatement desugars a for loop into an optional initializer and a
// while loop whose body runs the increment after the original body.
func (p *Parser) parseForStatement() ast.Statement {
	forToken := p.curToken

	p.expectPeek(token.LPAREN, "Expect '(' after 'for'.")
	p.nextToken()

	var initializer ast.Statement
	switch p.curToken.Type {
	case token.SEMICOLON:
	case token.VAR:
		initializer = p.parseVarStatement()
	default:
		initializer = p.parseExpressionStatement()
	}

	p.nextToken()
	var condition ast.Expression
	if !p.curTokenIs(token.SEMICOLON) {
		condition = p.parseExpression(LOWEST)
		p.expectPeek(token.SEMICOLON, "Expect ';' after loop condition.")
	}

	p.nextToken()
	var increment ast.Expression
	if !p.curTokenIs(token.RPAREN) {
		increment = p.parseExpression(LOWEST)
		p.expectPeek(token.RPAREN, "Expect ')' after for clauses.")
	}

	p.nextToken()
	body := p.parseStatement()

	if increment != nil {
		body = &ast.BlockStatement{
			Base:  ast.NewBase(),
			Token: forToken,
			Statements: []ast.Statement{
				body,
				&ast.ExpressionStatement{Base: ast.NewBase(), Token: forToken, Expression: increment},
			},
		}
	}

	if condition == nil {
		condition = &ast.Literal{Base: ast.NewBase(), Token: token.Synthetic(token.TRUE, "true", forToken.Line), Value: true}
	}
	var loop ast.Statement = &ast.WhileStatement{Base: ast.NewBase(), Token: forToken, Condition: condition, Body: body}

	if initializer != nil {
		loop = &ast.BlockStatement{
			Base:       ast.NewBase(),
			Token:      forToken,
			Statements: []ast.Statement{initializer, loop},
		}
	}

	return loop
}

func (p *Parser) parseBlockStatement() *ast.BlockStatement {
	block := &ast.BlockStatement{Base: ast.NewBase(), Token: p.curToken}
	block.Statements = p.parseBlock()
	return block
}

// parseBlock expects curToken on '{' and leaves it on the matching '}'.
func (p *Parser) parseBlock() []ast.Statement {
	statements := []ast.Statement{}

	for !p.peekTokenIs(token.RBRACE) && !p.peekTokenIs(token.EOF) {
		p.nextToken()
		if stmt := p.parseDeclaration(); stmt != nil {
			statements = append(statements, stmt)
		}
	}

	p.expectPeek(token.RBRACE, "Expect '}' after block.")
	return statements
}

func (p *Parser) parseExpressionStatement() *ast.ExpressionStatement {
	stmt := &ast.ExpressionStatement{Base: ast.NewBase(), Token: p.curToken}
	stmt.Expression = p.parseExpression(LOWEST)

	if p.AllowBareExpression && p.peekTokenIs(token.EOF) {
		return stmt
	}

	p.expectPeek(token.SEMICOLON, "Expect ';' after expression.")
	return stmt
}

func (p *Parser) parseExpression(precedence int) ast.Expression {
	prefix := p.prefixParseFns[p.curToken.Type]
	if prefix == nil {
		p.fail(p.curToken, "Expect expression.")
	}
	leftExp := prefix()

	for !p.peekTokenIs(token.SEMICOLON) && precedence < p.peekPrecedence() {
		infix := p.infixParseFns[p.peekToken.Type]
		if infix == nil {
			return leftExp
		}
		p.nextToken()
		leftExp = infix(leftExp)
	}

	return leftExp
}

func (p *Parser) parseLiteral() ast.Expression {
	lit := &ast.Literal{Base: ast.NewBase(), Token: p.curToken}
	switch p.curToken.Type {
	case token.TRUE:
		lit.Value = true
	case token.FALSE:
		lit.Value = false
	case token.NIL:
		lit.Value = nil
	default:
		lit.Value = p.curToken.Literal
	}
	return lit
}

func (p *Parser) parseIdentifier() ast.Expression {
	return &ast.Identifier{Base: ast.NewBase(), Name: p.curToken}
}

func (p *Parser) parseThis() ast.Expression {
	return &ast.ThisExpression{Base: ast.NewBase(), Keyword: p.curToken}
}

func (p *Parser) parseSuper() ast.Expression {
	expr := &ast.SuperExpression{Base: ast.NewBase(), Keyword: p.curToken}
	p.expectPeek(token.PERIOD, "Expect '.' after 'super'.")
	p.expectPeek(token.IDENT, "Expect superclass method name.")
	expr.Method = p.curToken
	return expr
}

func (p *Parser) parsePrefixExpression() ast.Expression {
	expression := &ast.UnaryExpression{Base: ast.NewBase(), Operator: p.curToken}

	p.nextToken()
	expression.Right = p.parseExpression(PREFIX)

	return expression
}

func (p *Parser) parseGroupedExpression() ast.Expression {
	group := &ast.GroupingExpression{Base: ast.NewBase(), Token: p.curToken}

	p.nextToken()
	group.Expression = p.parseExpression(LOWEST)
	p.expectPeek(token.RPAREN, "Expect ')' after expression.")

	return group
}

func (p *Parser) parseInfixExpression(left ast.Expression) ast.Expression {
	expression := &ast.BinaryExpression{Base: ast.NewBase(), Left: left, Operator: p.curToken}

	precedence := precedences[p.curToken.Type]
	p.nextToken()
	expression.Right = p.parseExpression(precedence)

	return expression
}

func (p *Parser) parseLogicalExpression(left ast.Expression) ast.Expression {
	expression := &ast.LogicalExpression{Base: ast.NewBase(), Left: left, Operator: p.curToken}

	precedence := precedences[p.curToken.Type]
	p.nextToken()
	expression.Right = p.parseExpression(precedence)

	return expression
}

func (p *Parser) parseCommaExpression(left ast.Expression) ast.Expression {
	expression := &ast.CommaExpression{Base: ast.NewBase(), Token: p.curToken, Left: left}

	p.nextToken()
	expression.Right = p.parseExpression(COMMA)

	return expression
}

// parseTernaryExpression is right-associative; the middle operand may be
// any expression short of a comma.
func (p *Parser) parseTernaryExpression(condition ast.Expression) ast.Expression {
	expression := &ast.TernaryExpression{Base: ast.NewBase(), Token: p.curToken, Condition: condition}

	p.nextToken()
	expression.Then = p.parseExpression(COMMA)
	p.expectPeek(token.COLON, "Expect ':' after then branch of conditional expression.")

	p.nextToken()
	expression.Else = p.parseExpression(TERNARY - 1)

	return expression
}

// parseAssignExpression is right-associative. Only a variable or a property
// access is a valid target.
func (p *Parser) parseAssignExpression(target ast.Expression) ast.Expression {
	equals := p.curToken

	p.nextToken()
	value := p.parseExpression(ASSIGN - 1)

	switch target := target.(type) {
	case *ast.Identifier:
		return &ast.AssignExpression{Base: ast.NewBase(), Name: target.Name, Value: value}
	case *ast.GetExpression:
		return &ast.SetExpression{Base: ast.NewBase(), Object: target.Object, Name: target.Name, Value: value}
	}

	p.errorAt(equals, "Invalid assignment target.")
	return target
}

func (p *Parser) parseCallExpression(callee ast.Expression) ast.Expression {
	exp := &ast.CallExpression{Base: ast.NewBase(), Callee: callee}
	exp.Arguments = p.parseCallArguments()
	exp.Paren = p.curToken
	return exp
}

// parseCallArguments parses each argument above comma precedence, so
// commas separate arguments rather than forming comma expressions.
func (p *Parser) parseCallArguments() []ast.Expression {
	args := []ast.Expression{}

	if p.peekTokenIs(token.RPAREN) {
		p.nextToken()
		return args
	}

	p.nextToken()
	args = append(args, p.parseExpression(COMMA))

	for p.peekTokenIs(token.COMMA) {
		p.nextToken()
		p.nextToken()
		if len(args) == maxArgs {
			p.errorAt(p.curToken, "Can't have more than 255 arguments.")
		}
		args = append(args, p.parseExpression(COMMA))
	}

	p.expectPeek(token.RPAREN, "Expect ')' after arguments.")
	return args
}

func (p *Parser) parseGetExpression(object ast.Expression) ast.Expression {
	p.expectPeek(token.IDENT, "Expect property name after '.'.")
	return &ast.GetExpression{Base: ast.NewBase(), Object: object, Name: p.curToken}
}
