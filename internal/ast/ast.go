package ast

import (
	"bytes"
	"strconv"
	"strings"
	"sync/atomic"

	"lox/internal/token"
)

// NodeID identifies a node for the lifetime of the process. Resolution
// results are keyed by it, so two structurally equal expressions at
// different source positions never share an entry.
type NodeID uint64

var nextID atomic.Uint64

func NextID() NodeID {
	return NodeID(nextID.Add(1))
}

// The base Node interface
type Node interface {
	ID() NodeID
	TokenLiteral() string
	String() string
}

type Statement interface {
	Node
	statementNode()
}

type Expression interface {
	Node
	expressionNode()
}

// Base carries the node identity; embed it and initialise with NewBase.
type Base struct {
	NodeID NodeID
}

func NewBase() Base { return Base{NodeID: NextID()} }

func (b Base) ID() NodeID { return b.NodeID }

type Program struct {
	Base
	Statements []Statement
}

func (p *Program) TokenLiteral() string {
	if len(p.Statements) > 0 {
		return p.Statements[0].TokenLiteral()
	}
	return ""
}

func (p *Program) String() string {
	var out bytes.Buffer

	for _, s := range p.Statements {
		out.WriteString(s.String())
	}

	return out.String()
}

// Statements

type BlockStatement struct {
	Base
	Token      token.Token // the { token
	Statements []Statement
}

func (bs *BlockStatement) statementNode()       {}
func (bs *BlockStatement) TokenLiteral() string { return bs.Token.Lexeme }
func (bs *BlockStatement) String() string {
	var out bytes.Buffer

	out.WriteString("{")
	for _, s := range bs.Statements {
		out.WriteString(s.String())
	}
	out.WriteString("}")

	return out.String()
}

type ClassStatement struct {
	Base
	Name         token.Token
	Superclass   *Identifier // nil when the class has no superclass
	Methods      []*FunctionStatement
	ClassMethods []*FunctionStatement
}

func (cs *ClassStatement) statementNode()       {}
func (cs *ClassStatement) TokenLiteral() string { return cs.Name.Lexeme }
func (cs *ClassStatement) String() string {
	var out bytes.Buffer

	out.WriteString("class ")
	out.WriteString(cs.Name.Lexeme)
	if cs.Superclass != nil {
		out.WriteString(" < ")
		out.WriteString(cs.Superclass.String())
	}
	out.WriteString(" {")
	for _, m := range cs.ClassMethods {
		out.WriteString("class ")
		out.WriteString(m.signature())
		out.WriteString(m.body())
	}
	for _, m := range cs.Methods {
		out.WriteString(m.signature())
		out.WriteString(m.body())
	}
	out.WriteString("}")

	return out.String()
}

type ExpressionStatement struct {
	Base
	Token      token.Token // the first token of the expression
	Expression Expression
}

func (es *ExpressionStatement) statementNode()       {}
func (es *ExpressionStatement) TokenLiteral() string { return es.Token.Lexeme }
func (es *ExpressionStatement) String() string {
	if es.Expression != nil {
		return es.Expression.String() + ";"
	}
	return ""
}

// FunctionStatement declares a named function or a method. A getter has no
// parameter list and IsGetter set.
type FunctionStatement struct {
	Base
	Name     token.Token
	Params   []token.Token
	Body     []Statement
	IsGetter bool
}

func (fs *FunctionStatement) statementNode()       {}
func (fs *FunctionStatement) TokenLiteral() string { return fs.Name.Lexeme }
func (fs *FunctionStatement) String() string {
	return "fun " + fs.signature() + fs.body()
}

func (fs *FunctionStatement) signature() string {
	if fs.IsGetter {
		return fs.Name.Lexeme + " "
	}
	params := make([]string, 0, len(fs.Params))
	for _, p := range fs.Params {
		params = append(params, p.Lexeme)
	}
	return fs.Name.Lexeme + "(" + strings.Join(params, ", ") + ") "
}

func (fs *FunctionStatement) body() string {
	var out bytes.Buffer
	out.WriteString("{")
	for _, s := range fs.Body {
		out.WriteString(s.String())
	}
	out.WriteString("}")
	return out.String()
}

type IfStatement struct {
	Base
	Token      token.Token // The 'if' token
	Condition  Expression
	ThenBranch Statement
	ElseBranch Statement
}

func (is *IfStatement) statementNode()       {}
func (is *IfStatement) TokenLiteral() string { return is.Token.Lexeme }
func (is *IfStatement) String() string {
	var out bytes.Buffer

	out.WriteString("if (")
	out.WriteString(is.Condition.String())
	out.WriteString(") ")
	out.WriteString(is.ThenBranch.String())

	if is.ElseBranch != nil {
		out.WriteString(" else ")
		out.WriteString(is.ElseBranch.String())
	}

	return out.String()
}

type PrintStatement struct {
	Base
	Token      token.Token // the 'print' token
	Expression Expression
}

func (ps *PrintStatement) statementNode()       {}
func (ps *PrintStatement) TokenLiteral() string { return ps.Token.Lexeme }
func (ps *PrintStatement) String() string {
	return "print " + ps.Expression.String() + ";"
}

type ReturnStatement struct {
	Base
	Keyword token.Token // the 'return' token
	Value   Expression  // nil for a bare return
}

func (rs *ReturnStatement) statementNode()       {}
func (rs *ReturnStatement) TokenLiteral() string { return rs.Keyword.Lexeme }
func (rs *ReturnStatement) String() string {
	var out bytes.Buffer

	out.WriteString(rs.TokenLiteral())

	if rs.Value != nil {
		out.WriteString(" ")
		out.WriteString(rs.Value.String())
	}

	out.WriteString(";")

	return out.String()
}

type VarStatement struct {
	Base
	Name        token.Token
	Initializer Expression // nil when omitted
}

func (vs *VarStatement) statementNode()       {}
func (vs *VarStatement) TokenLiteral() string { return vs.Name.Lexeme }
func (vs *VarStatement) String() string {
	var out bytes.Buffer

	out.WriteString("var ")
	out.WriteString(vs.Name.Lexeme)

	if vs.Initializer != nil {
		out.WriteString(" = ")
		out.WriteString(vs.Initializer.String())
	}

	out.WriteString(";")

	return out.String()
}

type WhileStatement struct {
	Base
	Token     token.Token // the 'while' or 'for' token
	Condition Expression
	Body      Statement
}

func (ws *WhileStatement) statementNode()       {}
func (ws *WhileStatement) TokenLiteral() string { return ws.Token.Lexeme }
func (ws *WhileStatement) String() string {
	return "while (" + ws.Condition.String() + ") " + ws.Body.String()
}

type BreakStatement struct {
	Base
	Token token.Token
}

func (bs *BreakStatement) statementNode()       {}
func (bs *BreakStatement) TokenLiteral() string { return bs.Token.Lexeme }
func (bs *BreakStatement) String() string       { return "break;" }

// Expressions

type AssignExpression struct {
	Base
	Name  token.Token
	Value Expression
}

func (ae *AssignExpression) expressionNode()      {}
func (ae *AssignExpression) TokenLiteral() string { return ae.Name.Lexeme }
func (ae *AssignExpression) String() string {
	return "(= " + ae.Name.Lexeme + " " + ae.Value.String() + ")"
}

type BinaryExpression struct {
	Base
	Left     Expression
	Operator token.Token
	Right    Expression
}

func (be *BinaryExpression) expressionNode()      {}
func (be *BinaryExpression) TokenLiteral() string { return be.Operator.Lexeme }
func (be *BinaryExpression) String() string {
	return parenthesize(be.Operator.Lexeme, be.Left, be.Right)
}

type CommaExpression struct {
	Base
	Token token.Token // the ',' token
	Left  Expression
	Right Expression
}

func (ce *CommaExpression) expressionNode()      {}
func (ce *CommaExpression) TokenLiteral() string { return ce.Token.Lexeme }
func (ce *CommaExpression) String() string {
	return parenthesize(",", ce.Left, ce.Right)
}

type TernaryExpression struct {
	Base
	Token     token.Token // the '?' token
	Condition Expression
	Then      Expression
	Else      Expression
}

func (te *TernaryExpression) expressionNode()      {}
func (te *TernaryExpression) TokenLiteral() string { return te.Token.Lexeme }
func (te *TernaryExpression) String() string {
	return parenthesize("?:", te.Condition, te.Then, te.Else)
}

type GroupingExpression struct {
	Base
	Token      token.Token // the '(' token
	Expression Expression
}

func (ge *GroupingExpression) expressionNode()      {}
func (ge *GroupingExpression) TokenLiteral() string { return ge.Token.Lexeme }
func (ge *GroupingExpression) String() string {
	return parenthesize("group", ge.Expression)
}

// Literal holds nil, a bool, a float64 or a string.
type Literal struct {
	Base
	Token token.Token
	Value any
}

func (l *Literal) expressionNode()      {}
func (l *Literal) TokenLiteral() string { return l.Token.Lexeme }
func (l *Literal) String() string {
	switch v := l.Value.(type) {
	case nil:
		return "nil"
	case string:
		return strconv.Quote(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	}
	return l.Token.Lexeme
}

type LogicalExpression struct {
	Base
	Left     Expression
	Operator token.Token // 'and' or 'or'
	Right    Expression
}

func (le *LogicalExpression) expressionNode()      {}
func (le *LogicalExpression) TokenLiteral() string { return le.Operator.Lexeme }
func (le *LogicalExpression) String() string {
	return parenthesize(le.Operator.Lexeme, le.Left, le.Right)
}

type UnaryExpression struct {
	Base
	Operator token.Token // The prefix token, e.g. !
	Right    Expression
}

func (ue *UnaryExpression) expressionNode()      {}
func (ue *UnaryExpression) TokenLiteral() string { return ue.Operator.Lexeme }
func (ue *UnaryExpression) String() string {
	return parenthesize(ue.Operator.Lexeme, ue.Right)
}

type CallExpression struct {
	Base
	Callee    Expression
	Paren     token.Token // The closing ')' token, used for error reporting
	Arguments []Expression
}

func (ce *CallExpression) expressionNode()      {}
func (ce *CallExpression) TokenLiteral() string { return ce.Paren.Lexeme }
func (ce *CallExpression) String() string {
	var out bytes.Buffer

	args := []string{}
	for _, a := range ce.Arguments {
		args = append(args, a.String())
	}

	out.WriteString(ce.Callee.String())
	out.WriteString("(")
	out.WriteString(strings.Join(args, ", "))
	out.WriteString(")")

	return out.String()
}

// Identifier is a variable read.
type Identifier struct {
	Base
	Name token.Token // the token.IDENT token
}

func (i *Identifier) expressionNode()      {}
func (i *Identifier) TokenLiteral() string { return i.Name.Lexeme }
func (i *Identifier) String() string       { return i.Name.Lexeme }

type GetExpression struct {
	Base
	Object Expression
	Name   token.Token
}

func (ge *GetExpression) expressionNode()      {}
func (ge *GetExpression) TokenLiteral() string { return ge.Name.Lexeme }
func (ge *GetExpression) String() string {
	return ge.Object.String() + "." + ge.Name.Lexeme
}

type SetExpression struct {
	Base
	Object Expression
	Name   token.Token
	Value  Expression
}

func (se *SetExpression) expressionNode()      {}
func (se *SetExpression) TokenLiteral() string { return se.Name.Lexeme }
func (se *SetExpression) String() string {
	return "(= " + se.Object.String() + "." + se.Name.Lexeme + " " + se.Value.String() + ")"
}

type ThisExpression struct {
	Base
	Keyword token.Token
}

func (te *ThisExpression) expressionNode()      {}
func (te *ThisExpression) TokenLiteral() string { return te.Keyword.Lexeme }
func (te *ThisExpression) String() string       { return "this" }

type SuperExpression struct {
	Base
	Keyword token.Token
	Method  token.Token
}

func (se *SuperExpression) expressionNode()      {}
func (se *SuperExpression) TokenLiteral() string { return se.Keyword.Lexeme }
func (se *SuperExpression) String() string       { return "super." + se.Method.Lexeme }

func parenthesize(name string, exprs ...Expression) string {
	var out bytes.Buffer

	out.WriteString("(")
	out.WriteString(name)
	for _, e := range exprs {
		out.WriteString(" ")
		out.WriteString(e.String())
	}
	out.WriteString(")")

	return out.String()
}
