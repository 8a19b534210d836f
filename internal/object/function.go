package object

import (
	"fmt"
	"log/slog"

	"lox/internal/ast"
	"lox/internal/token"
)

// Function is a user-defined function or method closed over the
// environment active where it was declared.
type Function struct {
	Declaration   *ast.FunctionStatement
	Closure       *Environment
	IsInitializer bool
	IsGetter      bool
}

func NewFunction(decl *ast.FunctionStatement, closure *Environment, isInitializer bool) *Function {
	return &Function{
		Declaration:   decl,
		Closure:       closure,
		IsInitializer: isInitializer,
		IsGetter:      decl.IsGetter,
	}
}

func (f *Function) Type() ObjectType { return FUNCTION_OBJ }

// Inspect keeps function values opaque.
func (f *Function) Inspect() string { return "<native fn>" }

func (f *Function) Name() string { return f.Declaration.Name.Lexeme }

func (f *Function) Arity() int { return len(f.Declaration.Params) }

// Bind returns a copy whose closure is a one-slot environment holding
// `this`, chained in front of the original closure.
func (f *Function) Bind(receiver Object) *Function {
	env := NewEnclosedEnvironment(f.Closure)
	env.Define("this", receiver)
	return &Function{
		Declaration:   f.Declaration,
		Closure:       env,
		IsInitializer: f.IsInitializer,
		IsGetter:      f.IsGetter,
	}
}

func (f *Function) Call(ex Executor, args []Object) (Object, error) {
	env := NewEnclosedEnvironment(f.Closure)
	for i, param := range f.Declaration.Params {
		env.Define(param.Lexeme, args[i])
	}

	slog.Debug("call activation",
		slog.String("function", f.Name()),
		slog.Int("args", len(args)),
		slog.Uint64("env", env.ID))

	result, err := ex.ExecuteBody(f.Declaration.Body, env)
	if err != nil {
		if rtErr, ok := err.(*RuntimeError); ok {
			rtErr.StackTrace = append(rtErr.StackTrace, &StackFrame{
				Function: f.Name(),
				Line:     f.Declaration.Name.Line,
			})
		}
		return nil, err
	}

	if f.IsInitializer {
		return f.Closure.GetAt(0, 0), nil
	}
	if result == nil {
		return NIL, nil
	}
	return result, nil
}

// Class holds instance methods (inherited through Superclass) and
// class-side methods (looked up on the class object only). A class is
// itself an instance of its metaclass and so has its own fields.
type Class struct {
	Name         string
	Superclass   *Class
	Methods      map[string]*Function
	ClassMethods map[string]*Function
	Fields       map[string]Object
}

func NewClass(name string, superclass *Class, methods, classMethods map[string]*Function) *Class {
	return &Class{
		Name:         name,
		Superclass:   superclass,
		Methods:      methods,
		ClassMethods: classMethods,
		Fields:       map[string]Object{},
	}
}

func (c *Class) Type() ObjectType { return CLASS_OBJ }
func (c *Class) Inspect() string  { return c.Name }

// FindMethod looks up an instance method on c and then its ancestors.
func (c *Class) FindMethod(name string) (*Function, bool) {
	for klass := c; klass != nil; klass = klass.Superclass {
		if method, ok := klass.Methods[name]; ok {
			return method, true
		}
	}
	return nil, false
}

func (c *Class) Arity() int {
	if initializer, ok := c.FindMethod(InitializerName); ok {
		return initializer.Arity()
	}
	return 0
}

// Call instantiates the class and runs its initializer, if any. The
// initializer's own result is discarded.
func (c *Class) Call(ex Executor, args []Object) (Object, error) {
	instance := NewInstance(c)
	if initializer, ok := c.FindMethod(InitializerName); ok {
		if _, err := initializer.Bind(instance).Call(ex, args); err != nil {
			return nil, err
		}
	}
	return instance, nil
}

// Get checks the class object's own fields, then its class-side methods
// bound to the class.
func (c *Class) Get(name token.Token) (Object, error) {
	if val, ok := c.Fields[name.Lexeme]; ok {
		return val, nil
	}
	if method, ok := c.ClassMethods[name.Lexeme]; ok {
		return method.Bind(c), nil
	}
	return nil, NewRuntimeError(name, "Undefined property '%s'.", name.Lexeme)
}

func (c *Class) Set(name token.Token, val Object) {
	c.Fields[name.Lexeme] = val
}

type Instance struct {
	Class  *Class
	Fields map[string]Object
}

func NewInstance(class *Class) *Instance {
	return &Instance{Class: class, Fields: map[string]Object{}}
}

func (i *Instance) Type() ObjectType { return INSTANCE_OBJ }
func (i *Instance) Inspect() string  { return fmt.Sprintf("%s instance", i.Class.Name) }

// Get checks fields first, then methods found on the class chain, bound to
// this instance.
func (i *Instance) Get(name token.Token) (Object, error) {
	if val, ok := i.Fields[name.Lexeme]; ok {
		return val, nil
	}
	if i.Class != nil {
		if method, ok := i.Class.FindMethod(name.Lexeme); ok {
			return method.Bind(i), nil
		}
	}
	return nil, NewRuntimeError(name, "Undefined property '%s'.", name.Lexeme)
}

func (i *Instance) Set(name token.Token, val Object) {
	i.Fields[name.Lexeme] = val
}
