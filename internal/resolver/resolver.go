package resolver

import (
	"log/slog"
	"sort"

	"lox/internal/ast"
	"lox/internal/diag"
	"lox/internal/token"
)

type FunctionType int

const (
	FunctionNone FunctionType = iota
	FunctionFunction
	FunctionMethod
	FunctionInitializer
)

type ClassType int

const (
	ClassNone ClassType = iota
	ClassClass
	ClassSubclass
)

type stage int

const (
	declared stage = iota
	defined
	used
)

type variable struct {
	name  token.Token
	slot  int
	stage stage
}

type scope map[string]*variable

// Locals receives the lexical address of every resolved reference. The
// evaluator implements it.
type Locals interface {
	Resolve(id ast.NodeID, depth, slot int)
}

// Resolver walks a program once before it runs, assigning each local
// reference a (depth, slot) address and reporting static errors. Names not
// found in any local scope are left unresolved and treated as globals.
type Resolver struct {
	locals Locals
	sink   diag.Sink
	logger *slog.Logger

	scopes          []scope
	globals         map[string]bool
	currentFunction FunctionType
	currentClass    ClassType
	loopDepth       int

	// WarnUnused reports locals that are declared but never read.
	WarnUnused bool
}

func New(locals Locals, sink diag.Sink) *Resolver {
	return &Resolver{
		locals:  locals,
		sink:    sink,
		logger:  slog.Default().With(slog.String("component", "resolver")),
		globals: map[string]bool{},
	}
}

// DeclareGlobals makes names already bound in the global environment known,
// such as natives and declarations from earlier REPL lines.
func (r *Resolver) DeclareGlobals(names ...string) {
	for _, name := range names {
		r.globals[name] = true
	}
}

// Resolve annotates statements in order. Errors go to the sink; resolution
// continues past them so every static error in the program is reported.
func (r *Resolver) Resolve(statements []ast.Statement) {
	for _, stmt := range statements {
		r.resolveStatement(stmt)
	}
}

func (r *Resolver) resolveStatement(stmt ast.Statement) {
	switch s := stmt.(type) {
	case *ast.BlockStatement:
		r.beginScope()
		r.Resolve(s.Statements)
		r.endScope()

	case *ast.ClassStatement:
		r.resolveClass(s)

	case *ast.ExpressionStatement:
		r.resolveExpression(s.Expression)

	case *ast.FunctionStatement:
		r.declare(s.Name)
		r.define(s.Name)
		r.resolveFunction(s, FunctionFunction)

	case *ast.IfStatement:
		r.resolveExpression(s.Condition)
		r.resolveStatement(s.ThenBranch)
		if s.ElseBranch != nil {
			r.resolveStatement(s.ElseBranch)
		}

	case *ast.PrintStatement:
		r.resolveExpression(s.Expression)

	case *ast.ReturnStatement:
		if r.currentFunction == FunctionNone {
			r.error(s.Keyword, "Can't return from top-level code.")
		}
		if s.Value != nil {
			if r.currentFunction == FunctionInitializer {
				r.error(s.Keyword, "Can't return a value from an initializer.")
			}
			r.resolveExpression(s.Value)
		}

	case *ast.VarStatement:
		r.declare(s.Name)
		if s.Initializer != nil {
			r.resolveExpression(s.Initializer)
		}
		r.define(s.Name)

	case *ast.WhileStatement:
		r.resolveExpression(s.Condition)
		r.loopDepth++
		r.resolveStatement(s.Body)
		r.loopDepth--

	case *ast.BreakStatement:
		if r.loopDepth == 0 {
			r.error(s.Token, "Can't use 'break' outside of a loop.")
		}
	}
}

// resolveClass opens an optional scope holding `super` and then a scope
// holding `this`, matching the environments the evaluator builds around
// bound methods.
func (r *Resolver) resolveClass(s *ast.ClassStatement) {
	enclosingClass := r.currentClass
	r.currentClass = ClassClass

	r.declare(s.Name)
	r.define(s.Name)

	if s.Superclass != nil {
		if s.Superclass.Name.Lexeme == s.Name.Lexeme {
			r.error(s.Superclass.Name, "A class can't inherit from itself.")
		}
		r.currentClass = ClassSubclass
		r.resolveExpression(s.Superclass)

		r.beginScope()
		r.defineSynthetic("super", s.Name)
	}

	r.beginScope()
	r.defineSynthetic("this", s.Name)

	for _, method := range s.Methods {
		kind := FunctionMethod
		if method.Name.Lexeme == "init" {
			kind = FunctionInitializer
		}
		r.resolveFunction(method, kind)
	}
	for _, method := range s.ClassMethods {
		r.resolveFunction(method, FunctionMethod)
	}

	r.endScope()
	if s.Superclass != nil {
		r.endScope()
	}

	r.currentClass = enclosingClass
}

// resolveFunction gives the parameters and body a single scope. Loop depth
// restarts at zero so a break cannot escape the function.
func (r *Resolver) resolveFunction(fn *ast.FunctionStatement, kind FunctionType) {
	enclosingFunction := r.currentFunction
	enclosingLoopDepth := r.loopDepth
	r.currentFunction = kind
	r.loopDepth = 0

	r.beginScope()
	for _, param := range fn.Params {
		r.declare(param)
		r.define(param)
	}
	r.Resolve(fn.Body)
	r.endScope()

	r.currentFunction = enclosingFunction
	r.loopDepth = enclosingLoopDepth
}

func (r *Resolver) resolveExpression(expr ast.Expression) {
	switch e := expr.(type) {
	case *ast.AssignExpression:
		r.resolveExpression(e.Value)
		r.resolveLocal(e, e.Name, false)

	case *ast.BinaryExpression:
		r.resolveExpression(e.Left)
		r.resolveExpression(e.Right)

	case *ast.CommaExpression:
		r.resolveExpression(e.Left)
		r.resolveExpression(e.Right)

	case *ast.TernaryExpression:
		r.resolveExpression(e.Condition)
		r.resolveExpression(e.Then)
		r.resolveExpression(e.Else)

	case *ast.GroupingExpression:
		r.resolveExpression(e.Expression)

	case *ast.Literal:

	case *ast.LogicalExpression:
		r.resolveExpression(e.Left)
		r.resolveExpression(e.Right)

	case *ast.UnaryExpression:
		r.resolveExpression(e.Right)

	case *ast.CallExpression:
		r.resolveExpression(e.Callee)
		for _, arg := range e.Arguments {
			r.resolveExpression(arg)
		}

	case *ast.GetExpression:
		r.resolveExpression(e.Object)

	case *ast.SetExpression:
		r.resolveExpression(e.Value)
		r.resolveExpression(e.Object)

	case *ast.Identifier:
		if len(r.scopes) > 0 {
			if v, ok := r.scopes[len(r.scopes)-1][e.Name.Lexeme]; ok && v.stage == declared {
				// the initializer may read a same-named variable from an
				// enclosing scope; with none visible the read is an error
				if !r.resolveEnclosing(e, e.Name) {
					r.error(e.Name, "Can't read local variable in its own initializer.")
				}
				return
			}
		}
		r.resolveLocal(e, e.Name, true)

	case *ast.ThisExpression:
		if r.currentClass == ClassNone {
			r.error(e.Keyword, "Can't use 'this' outside of a class.")
			return
		}
		r.resolveLocal(e, e.Keyword, true)

	case *ast.SuperExpression:
		switch r.currentClass {
		case ClassNone:
			r.error(e.Keyword, "Can't use 'super' outside of a class.")
			return
		case ClassClass:
			r.error(e.Keyword, "Can't use 'super' in a class with no superclass.")
			return
		}
		r.resolveLocal(e, e.Keyword, true)
	}
}

// resolveLocal records the address of the innermost scope declaring name.
// A name found in no scope is a global and gets no entry.
func (r *Resolver) resolveLocal(expr ast.Expression, name token.Token, read bool) {
	for i := len(r.scopes) - 1; i >= 0; i-- {
		v, ok := r.scopes[i][name.Lexeme]
		if !ok {
			continue
		}
		if read {
			v.stage = used
		}
		depth := len(r.scopes) - 1 - i
		r.locals.Resolve(expr.ID(), depth, v.slot)
		r.logger.Debug("resolved local",
			slog.String("name", name.Lexeme),
			slog.Int("line", name.Line),
			slog.Int("depth", depth),
			slog.Int("slot", v.slot))
		return
	}
}

// resolveEnclosing resolves name while skipping the innermost scope. It
// reports whether a binding is visible, either as an enclosing local or as
// a known global.
func (r *Resolver) resolveEnclosing(expr ast.Expression, name token.Token) bool {
	for i := len(r.scopes) - 2; i >= 0; i-- {
		v, ok := r.scopes[i][name.Lexeme]
		if !ok {
			continue
		}
		v.stage = used
		r.locals.Resolve(expr.ID(), len(r.scopes)-1-i, v.slot)
		return true
	}
	return r.globals[name.Lexeme]
}

func (r *Resolver) beginScope() {
	r.scopes = append(r.scopes, scope{})
	r.logger.Debug("begin scope", slog.Int("depth", len(r.scopes)))
}

func (r *Resolver) endScope() {
	top := r.scopes[len(r.scopes)-1]
	r.scopes = r.scopes[:len(r.scopes)-1]
	r.logger.Debug("end scope", slog.Int("depth", len(r.scopes)+1), slog.Int("slots", len(top)))

	if !r.WarnUnused {
		return
	}
	unused := make([]*variable, 0)
	for _, v := range top {
		if v.stage != used {
			unused = append(unused, v)
		}
	}
	sort.Slice(unused, func(i, j int) bool { return unused[i].slot < unused[j].slot })
	for _, v := range unused {
		r.report(v.name, "Local variable '"+v.name.Lexeme+"' is never used.", diag.Warning)
	}
}

// declare reserves the next slot in the innermost scope. At global scope it
// does nothing.
func (r *Resolver) declare(name token.Token) {
	if len(r.scopes) == 0 {
		r.globals[name.Lexeme] = true
		return
	}
	s := r.scopes[len(r.scopes)-1]
	if _, ok := s[name.Lexeme]; ok {
		r.error(name, "Already a variable with this name in this scope.")
	}
	s[name.Lexeme] = &variable{name: name, slot: len(s), stage: declared}
}

func (r *Resolver) define(name token.Token) {
	if len(r.scopes) == 0 {
		return
	}
	if v, ok := r.scopes[len(r.scopes)-1][name.Lexeme]; ok && v.stage == declared {
		v.stage = defined
	}
}

// defineSynthetic binds `this` or `super` at slot 0 of the innermost scope.
// These are never reported as unused.
func (r *Resolver) defineSynthetic(name string, at token.Token) {
	s := r.scopes[len(r.scopes)-1]
	s[name] = &variable{
		name:  token.Synthetic(token.IDENT, name, at.Line),
		slot:  0,
		stage: used,
	}
}

func (r *Resolver) error(tok token.Token, message string) {
	r.report(tok, message, diag.Error)
}

func (r *Resolver) report(tok token.Token, message string, severity diag.Severity) {
	if r.sink == nil {
		return
	}
	r.sink.Report(diag.Diagnostic{
		Token:    tok,
		Message:  message,
		Severity: severity,
		Phase:    diag.PhaseResolve,
	})
}
