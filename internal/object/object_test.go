package object

import (
	"errors"
	"math"
	"strings"
	"testing"

	"lox/internal/ast"
	"lox/internal/token"
)

func name(lexeme string) token.Token {
	return token.Token{Type: token.IDENT, Lexeme: lexeme, Line: 1}
}

func TestEnvironmentSlots(t *testing.T) {
	global := NewEnvironment()
	global.Define("a", &Number{Value: 1})
	global.Define("b", &Number{Value: 2})
	global.Define("a", &Number{Value: 3})

	if global.Len() != 3 {
		t.Fatalf("expected 3 slots, got %d", global.Len())
	}
	if names := strings.Join(global.Names(), ","); names != "a,b,a" {
		t.Errorf("expected slot order a,b,a, got %s", names)
	}

	val, err := global.Get(name("a"))
	if err != nil || val.(*Number).Value != 3 {
		t.Errorf("name lookup should find the latest binding, got %v (%v)", val, err)
	}
	if v := global.GetAt(0, 0).(*Number).Value; v != 1 {
		t.Errorf("slot 0 should keep the shadowed binding, got %v", v)
	}

	inner := NewEnclosedEnvironment(NewEnclosedEnvironment(global))
	inner.Define("c", TRUE)

	if inner.Depth() != 2 || global.Depth() != 0 {
		t.Errorf("unexpected depths %d, %d", inner.Depth(), global.Depth())
	}
	if inner.Ancestor(2) != global {
		t.Errorf("ancestor 2 should be the global environment")
	}
	if v := inner.GetAt(2, 1).(*Number).Value; v != 2 {
		t.Errorf("GetAt(2, 1) expected 2, got %v", v)
	}
	if v, ok := inner.GetAtName(2, "b"); !ok || v.(*Number).Value != 2 {
		t.Errorf("GetAtName(2, b) expected 2, got %v", v)
	}
	if _, ok := inner.GetAtName(0, "b"); ok {
		t.Errorf("GetAtName(0, b) should not search outer scopes")
	}

	inner.AssignAt(2, 1, &String{Value: "two"})
	if v := global.GetAt(0, 1); Stringify(v) != "two" {
		t.Errorf("AssignAt did not update the binding, got %s", Stringify(v))
	}

	if err := inner.Assign(name("a"), NIL); err != nil {
		t.Fatalf("assign: %v", err)
	}
	if global.GetAt(0, 2) != NIL || global.GetAt(0, 0).(*Number).Value != 1 {
		t.Errorf("Assign should update only the latest binding of a")
	}
}

func TestEnvironmentUndefined(t *testing.T) {
	env := NewEnclosedEnvironment(NewEnvironment())

	_, err := env.Get(name("missing"))
	var rtErr *RuntimeError
	if !errors.As(err, &rtErr) || rtErr.Message != "Undefined variable 'missing'." {
		t.Errorf("unexpected Get error %v", err)
	}

	err = env.Assign(name("missing"), TRUE)
	if !errors.As(err, &rtErr) || rtErr.Message != "Undefined variable 'missing'." {
		t.Errorf("unexpected Assign error %v", err)
	}
	if env.Len() != 0 || env.Outer.Len() != 0 {
		t.Errorf("Assign must never create a binding")
	}
}

func TestAncestorPanicsPastRoot(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Errorf("expected a panic")
		}
	}()
	NewEnvironment().Ancestor(1)
}

// bodyRunner returns the environment it was handed so tests can inspect the
// activation a call built.
type bodyRunner struct {
	env    *Environment
	result Object
	err    error
}

func (b *bodyRunner) ExecuteBody(body []ast.Statement, env *Environment) (Object, error) {
	b.env = env
	return b.result, b.err
}

func method(lexeme string, params ...string) *ast.FunctionStatement {
	decl := &ast.FunctionStatement{Name: name(lexeme)}
	for _, p := range params {
		decl.Params = append(decl.Params, name(p))
	}
	return decl
}

func TestFunctionCall(t *testing.T) {
	closure := NewEnvironment()
	fn := NewFunction(method("add", "a", "b"), closure, false)

	if fn.Arity() != 2 || fn.Name() != "add" || fn.Inspect() != "<native fn>" {
		t.Errorf("unexpected function metadata")
	}

	ex := &bodyRunner{}
	result, err := fn.Call(ex, []Object{&Number{Value: 1}, &Number{Value: 2}})
	if err != nil {
		t.Fatalf("call: %v", err)
	}
	if result != NIL {
		t.Errorf("falling off the end should return nil, got %v", result)
	}
	if ex.env.Outer != closure {
		t.Errorf("activation should enclose the closure")
	}
	if names := strings.Join(ex.env.Names(), ","); names != "a,b" {
		t.Errorf("parameters should fill slots in order, got %s", names)
	}

	ex = &bodyRunner{err: NewRuntimeError(name("x"), "boom")}
	_, err = fn.Call(ex, []Object{NIL, NIL})
	var rtErr *RuntimeError
	if !errors.As(err, &rtErr) || len(rtErr.StackTrace) != 1 || rtErr.StackTrace[0].Function != "add" {
		t.Errorf("expected a stack frame for add, got %v", err)
	}
	if trace := RenderStacktrace(rtErr); !strings.Contains(trace, "in add() declared at [line 1]") {
		t.Errorf("unexpected trace %q", trace)
	}
}

func TestBindAndInitializer(t *testing.T) {
	closure := NewEnvironment()
	class := NewClass("Point", nil, map[string]*Function{}, map[string]*Function{})
	initializer := NewFunction(method(InitializerName, "x"), closure, true)
	class.Methods[InitializerName] = initializer

	instance := NewInstance(class)
	bound := initializer.Bind(instance)
	if closure.Len() != 0 {
		t.Fatalf("Bind must not touch the original closure")
	}
	if bound.Closure.Outer != closure || bound.Closure.GetAt(0, 0) != instance {
		t.Errorf("bound closure should hold this at slot 0")
	}

	result, err := bound.Call(&bodyRunner{result: &Number{Value: 9}}, []Object{NIL})
	if err != nil || result != instance {
		t.Errorf("initializer should return the receiver, got %v (%v)", result, err)
	}

	if class.Arity() != 1 {
		t.Errorf("class arity should follow init, got %d", class.Arity())
	}
	obj, err := class.Call(&bodyRunner{}, []Object{NIL})
	if err != nil {
		t.Fatalf("instantiate: %v", err)
	}
	if obj.Inspect() != "Point instance" || TypeName(obj) != "instance" {
		t.Errorf("unexpected instance %s", obj.Inspect())
	}
}

func TestPropertyLookup(t *testing.T) {
	closure := NewEnvironment()
	base := NewClass("Base", nil, map[string]*Function{
		"greet": NewFunction(method("greet"), closure, false),
	}, map[string]*Function{})
	derived := NewClass("Derived", base, map[string]*Function{}, map[string]*Function{
		"make": NewFunction(method("make"), closure, false),
	})

	instance := NewInstance(derived)
	got, err := instance.Get(name("greet"))
	if err != nil {
		t.Fatalf("inherited method: %v", err)
	}
	if fn, ok := got.(*Function); !ok || fn.Closure.GetAt(0, 0) != instance {
		t.Errorf("method should be bound to the instance")
	}

	instance.Set(name("greet"), &String{Value: "field"})
	if got, _ := instance.Get(name("greet")); Stringify(got) != "field" {
		t.Errorf("fields should shadow methods, got %s", Stringify(got))
	}

	if _, err := instance.Get(name("nope")); err == nil || err.Error() != "Undefined property 'nope'." {
		t.Errorf("unexpected error %v", err)
	}

	got, err = derived.Get(name("make"))
	if err != nil {
		t.Fatalf("class method: %v", err)
	}
	if fn := got.(*Function); fn.Closure.GetAt(0, 0) != derived {
		t.Errorf("class method should be bound to the class")
	}
	if _, err := derived.Get(name("greet")); err == nil {
		t.Errorf("instance methods are not visible on the class")
	}

	derived.Set(name("count"), &Number{Value: 1})
	if got, _ := derived.Get(name("count")); Stringify(got) != "1" {
		t.Errorf("class fields should be readable, got %s", Stringify(got))
	}
}

func TestStringify(t *testing.T) {
	tests := []struct {
		obj      Object
		expected string
	}{
		{nil, "nil"},
		{NIL, "nil"},
		{TRUE, "true"},
		{FALSE, "false"},
		{&Number{Value: 3}, "3"},
		{&Number{Value: -0.5}, "-0.5"},
		{&Number{Value: 2.5e10}, "25000000000"},
		{&Number{Value: 1e21}, "1000000000000000000000"},
		{&Number{Value: math.Inf(1)}, "Infinity"},
		{&Number{Value: math.NaN()}, "NaN"},
		{&String{Value: "hi"}, "hi"},
		{&NativeFunction{Name: "clock"}, "<native fn>"},
		{NewClass("A", nil, nil, nil), "A"},
	}

	for _, tt := range tests {
		if actual := Stringify(tt.obj); actual != tt.expected {
			t.Errorf("expected %q, got %q", tt.expected, actual)
		}
	}
}

func TestTruthinessAndEquality(t *testing.T) {
	truthy := []Object{TRUE, &Number{Value: 0}, &String{Value: ""}, NewInstance(NewClass("A", nil, nil, nil))}
	for _, obj := range truthy {
		if !IsTruthy(obj) {
			t.Errorf("%s should be truthy", Stringify(obj))
		}
	}
	for _, obj := range []Object{nil, NIL, FALSE} {
		if IsTruthy(obj) {
			t.Errorf("%s should be falsy", Stringify(obj))
		}
	}

	a := NewInstance(NewClass("A", nil, nil, nil))
	tests := []struct {
		a, b     Object
		expected bool
	}{
		{NIL, nil, true},
		{NIL, FALSE, false},
		{&Number{Value: 1}, &Number{Value: 1}, true},
		{&Number{Value: 1}, &String{Value: "1"}, false},
		{&String{Value: "x"}, &String{Value: "x"}, true},
		{&Boolean{Value: true}, TRUE, true},
		{a, a, true},
		{a, NewInstance(a.Class), false},
		{&Number{Value: math.NaN()}, &Number{Value: math.NaN()}, false},
	}

	for _, tt := range tests {
		if actual := IsEqual(tt.a, tt.b); actual != tt.expected {
			t.Errorf("IsEqual(%s, %s) expected %v", Stringify(tt.a), Stringify(tt.b), tt.expected)
		}
	}
}

func TestTypeName(t *testing.T) {
	tests := []struct {
		obj      Object
		expected string
	}{
		{NIL, "nil"},
		{TRUE, "boolean"},
		{&Number{}, "number"},
		{&String{}, "string"},
		{&NativeFunction{}, "function"},
		{NewFunction(method("f"), nil, false), "function"},
		{NewClass("A", nil, nil, nil), "class"},
	}

	for _, tt := range tests {
		if actual := TypeName(tt.obj); actual != tt.expected {
			t.Errorf("expected %s, got %s", tt.expected, actual)
		}
	}
}
