package evaluator

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"lox/internal/ast"
	"lox/internal/diag"
	"lox/internal/object"
	"lox/internal/token"
)

// Address is the lexical position the resolver computed for a reference:
// how many environments to walk out, then which slot to read.
type Address struct {
	Depth int
	Slot  int
}

type signal int

const (
	signalNormal signal = iota
	signalReturn
	signalBreak
)

// completion is how a statement finished. A return carries its value; a
// break carries nothing. Both are consumed by the nearest call or loop.
type completion struct {
	signal signal
	value  object.Object
}

var normal = completion{}

// errBreakEscaped is an interpreter fault: the resolver rejects a break
// outside a loop, so a function body never completes with one. It is not a
// RuntimeError and is logged rather than reported to the sink.
var errBreakEscaped = errors.New("break escaped its loop")

type Evaluator struct {
	globals *object.Environment
	locals  map[ast.NodeID]Address
	out     io.Writer
	sink    diag.Sink
	logger  *slog.Logger
}

// New creates an evaluator writing program output to out and reporting
// runtime errors to sink. Either may be nil.
func New(out io.Writer, sink diag.Sink) *Evaluator {
	if out == nil {
		out = io.Discard
	}
	e := &Evaluator{
		globals: object.NewEnvironment(),
		locals:  map[ast.NodeID]Address{},
		out:     out,
		sink:    sink,
		logger:  slog.Default().With(slog.String("component", "evaluator")),
	}
	registerBuiltins(e)
	return e
}

// Resolve records the lexical address of the node with the given id. The
// resolver calls it; entries persist across Interpret calls.
func (e *Evaluator) Resolve(id ast.NodeID, depth, slot int) {
	e.locals[id] = Address{Depth: depth, Slot: slot}
}

// SetSink replaces the sink runtime errors are reported to.
func (e *Evaluator) SetSink(sink diag.Sink) {
	e.sink = sink
}

func (e *Evaluator) Globals() *object.Environment {
	return e.globals
}

// DefineNative binds a host function in the global scope.
func (e *Evaluator) DefineNative(name string, arity int, fn func(ex object.Executor, args []object.Object) (object.Object, error)) {
	e.globals.Define(name, &object.NativeFunction{Name: name, NArgs: arity, Fn: fn})
}

// Interpret runs statements in the global environment. The first runtime
// error stops execution, is reported to the sink and is returned.
func (e *Evaluator) Interpret(statements []ast.Statement) error {
	for _, stmt := range statements {
		if _, err := e.execute(stmt, e.globals); err != nil {
			e.reportError(err)
			return err
		}
	}
	return nil
}

// EvaluateExpression evaluates a single expression in the global
// environment. The REPL uses it to echo expression statements.
func (e *Evaluator) EvaluateExpression(expr ast.Expression) (object.Object, error) {
	val, err := e.eval(expr, e.globals)
	if err != nil {
		e.reportError(err)
		return nil, err
	}
	return val, nil
}

func (e *Evaluator) reportError(err error) {
	var rtErr *object.RuntimeError
	if !errors.As(err, &rtErr) {
		e.logger.Error("interpreter fault", slog.Any("error", err))
		return
	}
	e.logger.Debug("runtime error",
		slog.String("message", rtErr.Message),
		slog.Int("line", rtErr.Token.Line),
		slog.Int("frames", len(rtErr.StackTrace)))
	if e.sink != nil {
		e.sink.Report(diag.Diagnostic{
			Token:    rtErr.Token,
			Message:  rtErr.Message,
			Severity: diag.Error,
			Phase:    diag.PhaseRuntime,
		})
	}
}

// ExecuteBody runs a function body in env, the activation created by the
// callee. It returns the returned value, or nil when the body falls off the
// end.
func (e *Evaluator) ExecuteBody(body []ast.Statement, env *object.Environment) (object.Object, error) {
	c, err := e.executeBlock(body, env)
	if err != nil {
		return nil, err
	}
	switch c.signal {
	case signalReturn:
		return c.value, nil
	case signalBreak:
		return nil, errBreakEscaped
	}
	return nil, nil
}

func (e *Evaluator) executeBlock(statements []ast.Statement, env *object.Environment) (completion, error) {
	for _, stmt := range statements {
		c, err := e.execute(stmt, env)
		if err != nil || c.signal != signalNormal {
			return c, err
		}
	}
	return normal, nil
}

func (e *Evaluator) execute(stmt ast.Statement, env *object.Environment) (completion, error) {
	switch s := stmt.(type) {
	case *ast.BlockStatement:
		return e.executeBlock(s.Statements, object.NewEnclosedEnvironment(env))

	case *ast.ClassStatement:
		return normal, e.executeClass(s, env)

	case *ast.ExpressionStatement:
		_, err := e.eval(s.Expression, env)
		return normal, err

	case *ast.FunctionStatement:
		env.Define(s.Name.Lexeme, object.NewFunction(s, env, false))
		return normal, nil

	case *ast.IfStatement:
		cond, err := e.eval(s.Condition, env)
		if err != nil {
			return normal, err
		}
		if object.IsTruthy(cond) {
			return e.execute(s.ThenBranch, env)
		}
		if s.ElseBranch != nil {
			return e.execute(s.ElseBranch, env)
		}
		return normal, nil

	case *ast.PrintStatement:
		val, err := e.eval(s.Expression, env)
		if err != nil {
			return normal, err
		}
		fmt.Fprintln(e.out, object.Stringify(val))
		return normal, nil

	case *ast.ReturnStatement:
		var val object.Object = object.NIL
		if s.Value != nil {
			v, err := e.eval(s.Value, env)
			if err != nil {
				return normal, err
			}
			val = v
		}
		return completion{signal: signalReturn, value: val}, nil

	case *ast.VarStatement:
		var val object.Object = object.NIL
		if s.Initializer != nil {
			v, err := e.eval(s.Initializer, env)
			if err != nil {
				return normal, err
			}
			val = v
		}
		env.Define(s.Name.Lexeme, val)
		return normal, nil

	case *ast.WhileStatement:
		return e.executeWhile(s, env)

	case *ast.BreakStatement:
		return completion{signal: signalBreak}, nil
	}

	return normal, fmt.Errorf("unknown statement %T", stmt)
}

func (e *Evaluator) executeWhile(s *ast.WhileStatement, env *object.Environment) (completion, error) {
	for {
		cond, err := e.eval(s.Condition, env)
		if err != nil {
			return normal, err
		}
		if !object.IsTruthy(cond) {
			return normal, nil
		}

		c, err := e.execute(s.Body, env)
		if err != nil {
			return normal, err
		}
		switch c.signal {
		case signalBreak:
			return normal, nil
		case signalReturn:
			return c, nil
		}
	}
}

// executeClass binds the class name before evaluating the superclass, then
// builds methods over an environment holding `super` when there is one.
func (e *Evaluator) executeClass(s *ast.ClassStatement, env *object.Environment) error {
	slot := env.Len()
	env.Define(s.Name.Lexeme, object.NIL)

	var superclass *object.Class
	if s.Superclass != nil {
		val, err := e.eval(s.Superclass, env)
		if err != nil {
			return err
		}
		sc, ok := val.(*object.Class)
		if !ok {
			return object.NewRuntimeError(s.Superclass.Name, "Superclass must be a class.")
		}
		superclass = sc
	}

	methodEnv := env
	if superclass != nil {
		methodEnv = object.NewEnclosedEnvironment(env)
		methodEnv.Define("super", superclass)
	}

	methods := make(map[string]*object.Function, len(s.Methods))
	for _, m := range s.Methods {
		methods[m.Name.Lexeme] = object.NewFunction(m, methodEnv, m.Name.Lexeme == object.InitializerName)
	}
	classMethods := make(map[string]*object.Function, len(s.ClassMethods))
	for _, m := range s.ClassMethods {
		classMethods[m.Name.Lexeme] = object.NewFunction(m, methodEnv, false)
	}

	class := object.NewClass(s.Name.Lexeme, superclass, methods, classMethods)
	env.AssignAt(0, slot, class)
	return nil
}

func (e *Evaluator) eval(expr ast.Expression, env *object.Environment) (object.Object, error) {
	switch n := expr.(type) {
	case *ast.Literal:
		return literalValue(n.Value), nil

	case *ast.GroupingExpression:
		return e.eval(n.Expression, env)

	case *ast.Identifier:
		return e.lookupVariable(n.Name, n, env)

	case *ast.AssignExpression:
		val, err := e.eval(n.Value, env)
		if err != nil {
			return nil, err
		}
		if addr, ok := e.locals[n.ID()]; ok {
			env.AssignAt(addr.Depth, addr.Slot, val)
			return val, nil
		}
		if err := e.globals.Assign(n.Name, val); err != nil {
			return nil, err
		}
		return val, nil

	case *ast.UnaryExpression:
		right, err := e.eval(n.Right, env)
		if err != nil {
			return nil, err
		}
		return e.evalUnaryExpression(n.Operator, right)

	case *ast.BinaryExpression:
		left, err := e.eval(n.Left, env)
		if err != nil {
			return nil, err
		}
		right, err := e.eval(n.Right, env)
		if err != nil {
			return nil, err
		}
		return e.evalBinaryExpression(n.Operator, left, right)

	case *ast.LogicalExpression:
		left, err := e.eval(n.Left, env)
		if err != nil {
			return nil, err
		}
		if n.Operator.Type == token.OR {
			if object.IsTruthy(left) {
				return left, nil
			}
		} else if !object.IsTruthy(left) {
			return left, nil
		}
		return e.eval(n.Right, env)

	case *ast.CommaExpression:
		if _, err := e.eval(n.Left, env); err != nil {
			return nil, err
		}
		return e.eval(n.Right, env)

	case *ast.TernaryExpression:
		cond, err := e.eval(n.Condition, env)
		if err != nil {
			return nil, err
		}
		if object.IsTruthy(cond) {
			return e.eval(n.Then, env)
		}
		return e.eval(n.Else, env)

	case *ast.CallExpression:
		return e.evalCallExpression(n, env)

	case *ast.GetExpression:
		obj, err := e.eval(n.Object, env)
		if err != nil {
			return nil, err
		}
		holder, ok := obj.(object.PropertyHolder)
		if !ok {
			return nil, object.NewRuntimeError(n.Name, "Only instances have properties.")
		}
		val, err := holder.Get(n.Name)
		if err != nil {
			return nil, err
		}
		return e.invokeGetter(val)

	case *ast.SetExpression:
		obj, err := e.eval(n.Object, env)
		if err != nil {
			return nil, err
		}
		holder, ok := obj.(object.PropertyHolder)
		if !ok {
			return nil, object.NewRuntimeError(n.Name, "Only instances have fields.")
		}
		val, err := e.eval(n.Value, env)
		if err != nil {
			return nil, err
		}
		holder.Set(n.Name, val)
		return val, nil

	case *ast.ThisExpression:
		return e.lookupVariable(n.Keyword, n, env)

	case *ast.SuperExpression:
		return e.evalSuperExpression(n, env)
	}

	return nil, fmt.Errorf("unknown expression %T", expr)
}

func literalValue(v any) object.Object {
	switch v := v.(type) {
	case bool:
		return object.NativeBoolToBooleanObject(v)
	case float64:
		return &object.Number{Value: v}
	case string:
		return &object.String{Value: v}
	}
	return object.NIL
}

// lookupVariable reads a resolved local by address and anything else from
// the globals by name.
func (e *Evaluator) lookupVariable(name token.Token, expr ast.Expression, env *object.Environment) (object.Object, error) {
	if addr, ok := e.locals[expr.ID()]; ok {
		return env.GetAt(addr.Depth, addr.Slot), nil
	}
	return e.globals.Get(name)
}

func (e *Evaluator) evalUnaryExpression(operator token.Token, right object.Object) (object.Object, error) {
	switch operator.Type {
	case token.BANG:
		return object.NativeBoolToBooleanObject(!object.IsTruthy(right)), nil
	case token.MINUS:
		num, ok := right.(*object.Number)
		if !ok {
			return nil, object.NewRuntimeError(operator, "Operand must be a number.")
		}
		return &object.Number{Value: -num.Value}, nil
	}
	return nil, object.NewRuntimeError(operator, "Unknown operator '%s'.", operator.Lexeme)
}

func (e *Evaluator) evalBinaryExpression(operator token.Token, left, right object.Object) (object.Object, error) {
	switch operator.Type {
	case token.EQ:
		return object.NativeBoolToBooleanObject(object.IsEqual(left, right)), nil
	case token.NOT_EQ:
		return object.NativeBoolToBooleanObject(!object.IsEqual(left, right)), nil
	case token.PLUS:
		return e.evalPlus(operator, left, right)
	}

	l, lok := left.(*object.Number)
	r, rok := right.(*object.Number)
	if !lok || !rok {
		return nil, object.NewRuntimeError(operator, "Operands must be numbers.")
	}

	switch operator.Type {
	case token.MINUS:
		return &object.Number{Value: l.Value - r.Value}, nil
	case token.ASTERISK:
		return &object.Number{Value: l.Value * r.Value}, nil
	case token.SLASH:
		if r.Value == 0 {
			return nil, object.NewRuntimeError(operator, "Divide by zero.")
		}
		return &object.Number{Value: l.Value / r.Value}, nil
	case token.GT:
		return object.NativeBoolToBooleanObject(l.Value > r.Value), nil
	case token.GT_EQ:
		return object.NativeBoolToBooleanObject(l.Value >= r.Value), nil
	case token.LT:
		return object.NativeBoolToBooleanObject(l.Value < r.Value), nil
	case token.LT_EQ:
		return object.NativeBoolToBooleanObject(l.Value <= r.Value), nil
	}
	return nil, object.NewRuntimeError(operator, "Unknown operator '%s'.", operator.Lexeme)
}

// evalPlus adds numbers and concatenates when the left operand is a
// string; the right operand is then stringified whatever its type.
func (e *Evaluator) evalPlus(operator token.Token, left, right object.Object) (object.Object, error) {
	switch l := left.(type) {
	case *object.Number:
		if r, ok := right.(*object.Number); ok {
			return &object.Number{Value: l.Value + r.Value}, nil
		}
	case *object.String:
		return &object.String{Value: l.Value + object.Stringify(right)}, nil
	}
	return nil, object.NewRuntimeError(operator, "Operands must be two numbers or two strings.")
}

func (e *Evaluator) evalCallExpression(n *ast.CallExpression, env *object.Environment) (object.Object, error) {
	callee, err := e.eval(n.Callee, env)
	if err != nil {
		return nil, err
	}

	args := make([]object.Object, 0, len(n.Arguments))
	for _, a := range n.Arguments {
		val, err := e.eval(a, env)
		if err != nil {
			return nil, err
		}
		args = append(args, val)
	}

	fn, ok := callee.(object.Callable)
	if !ok {
		return nil, object.NewRuntimeError(n.Paren, "Can only call functions and classes.")
	}
	if len(args) != fn.Arity() {
		return nil, object.NewRuntimeError(n.Paren, "Expected %d arguments but got %d.", fn.Arity(), len(args))
	}

	result, err := fn.Call(e, args)
	// natives raise errors on a synthetic token; point them at the call
	var rtErr *object.RuntimeError
	if errors.As(err, &rtErr) && rtErr.Token.Position < 0 {
		rtErr.Token = n.Paren
	}
	return result, err
}

// evalSuperExpression finds `super` at the resolved depth and `this` one
// environment nearer, then binds the superclass method to it.
func (e *Evaluator) evalSuperExpression(n *ast.SuperExpression, env *object.Environment) (object.Object, error) {
	addr, ok := e.locals[n.ID()]
	if !ok {
		return nil, object.NewRuntimeError(n.Keyword, "Can't use 'super' outside of a class.")
	}
	superclass, ok := env.GetAt(addr.Depth, 0).(*object.Class)
	if !ok {
		return nil, object.NewRuntimeError(n.Keyword, "Superclass must be a class.")
	}
	receiver := env.GetAt(addr.Depth-1, 0)

	method, ok := superclass.FindMethod(n.Method.Lexeme)
	if !ok {
		return nil, object.NewRuntimeError(n.Method, "Undefined property '%s'.", n.Method.Lexeme)
	}
	return e.invokeGetter(method.Bind(receiver))
}

// invokeGetter runs a bound getter immediately; any other value is
// returned unchanged.
func (e *Evaluator) invokeGetter(val object.Object) (object.Object, error) {
	fn, ok := val.(*object.Function)
	if !ok || !fn.IsGetter {
		return val, nil
	}
	return fn.Call(e, nil)
}
