package object

import (
	"fmt"
	"math"
	"strconv"

	"lox/internal/ast"
	"lox/internal/token"
)

const (
	NIL_OBJ      = "NIL"
	BOOLEAN_OBJ  = "BOOLEAN"
	NUMBER_OBJ   = "NUMBER"
	STRING_OBJ   = "STRING"
	NATIVE_OBJ   = "NATIVE_FUNCTION"
	FUNCTION_OBJ = "FUNCTION"
	CLASS_OBJ    = "CLASS"
	INSTANCE_OBJ = "INSTANCE"
)

const InitializerName = "init"

var (
	NIL   = &Nil{}
	TRUE  = &Boolean{Value: true}
	FALSE = &Boolean{Value: false}
)

type ObjectType string

type Object interface {
	Type() ObjectType
	Inspect() string
}

// Executor runs a function body on behalf of a Callable. The evaluator is
// the only implementation; the interface keeps this package free of it.
type Executor interface {
	ExecuteBody(body []ast.Statement, env *Environment) (Object, error)
}

// Callable is implemented by native functions, user functions and classes.
type Callable interface {
	Object
	Arity() int
	Call(ex Executor, args []Object) (Object, error)
}

// PropertyHolder is anything with field storage: instances, and classes as
// instances of their metaclass.
type PropertyHolder interface {
	Object
	Get(name token.Token) (Object, error)
	Set(name token.Token, val Object)
}

type Nil struct{}

func (n *Nil) Type() ObjectType { return NIL_OBJ }
func (n *Nil) Inspect() string  { return "nil" }

type Boolean struct {
	Value bool
}

func (b *Boolean) Type() ObjectType { return BOOLEAN_OBJ }
func (b *Boolean) Inspect() string  { return strconv.FormatBool(b.Value) }

type Number struct {
	Value float64
}

func (n *Number) Type() ObjectType { return NUMBER_OBJ }
func (n *Number) Inspect() string  { return FormatNumber(n.Value) }

type String struct {
	Value string
}

func (s *String) Type() ObjectType { return STRING_OBJ }
func (s *String) Inspect() string  { return s.Value }

// NativeFunction is a host-provided callable.
type NativeFunction struct {
	Name  string
	NArgs int
	Fn    func(ex Executor, args []Object) (Object, error)
}

func (nf *NativeFunction) Type() ObjectType { return NATIVE_OBJ }
func (nf *NativeFunction) Inspect() string  { return "<native fn>" }
func (nf *NativeFunction) Arity() int       { return nf.NArgs }
func (nf *NativeFunction) Call(ex Executor, args []Object) (Object, error) {
	return nf.Fn(ex, args)
}

func NativeBoolToBooleanObject(input bool) *Boolean {
	if input {
		return TRUE
	}
	return FALSE
}

// FormatNumber renders integral values without a fractional part.
func FormatNumber(v float64) string {
	switch {
	case math.IsNaN(v):
		return "NaN"
	case math.IsInf(v, 1):
		return "Infinity"
	case math.IsInf(v, -1):
		return "-Infinity"
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Stringify is the rendering used by print and by string concatenation.
// A nil Object renders like the nil value.
func Stringify(obj Object) string {
	if obj == nil {
		return "nil"
	}
	return obj.Inspect()
}

// IsTruthy treats nil and false as falsy, everything else as truthy.
func IsTruthy(obj Object) bool {
	switch obj := obj.(type) {
	case nil, *Nil:
		return false
	case *Boolean:
		return obj.Value
	default:
		return true
	}
}

// IsEqual compares primitives by value and everything else by identity.
func IsEqual(a, b Object) bool {
	_, aNil := a.(*Nil)
	_, bNil := b.(*Nil)
	if a == nil {
		aNil = true
	}
	if b == nil {
		bNil = true
	}
	if aNil || bNil {
		return aNil && bNil
	}

	switch a := a.(type) {
	case *Number:
		if b, ok := b.(*Number); ok {
			return a.Value == b.Value
		}
		return false
	case *String:
		if b, ok := b.(*String); ok {
			return a.Value == b.Value
		}
		return false
	case *Boolean:
		if b, ok := b.(*Boolean); ok {
			return a.Value == b.Value
		}
		return false
	}
	return a == b
}

// TypeName is the user-facing name of a value's type.
func TypeName(obj Object) string {
	switch obj.(type) {
	case nil, *Nil:
		return "nil"
	case *Boolean:
		return "boolean"
	case *Number:
		return "number"
	case *String:
		return "string"
	case *NativeFunction, *Function:
		return "function"
	case *Class:
		return "class"
	case *Instance:
		return "instance"
	}
	return fmt.Sprintf("%T", obj)
}
