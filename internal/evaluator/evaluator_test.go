package evaluator

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"lox/internal/ast"
	"lox/internal/diag"
	"lox/internal/lexer"
	"lox/internal/object"
	"lox/internal/parser"
	"lox/internal/resolver"
)

// run parses, resolves and interprets input, returning what the program
// printed and every diagnostic raised on the way.
func run(t *testing.T, input string) (string, *diag.Collector) {
	t.Helper()

	sink := &diag.Collector{}
	program := parser.New(lexer.New(input), sink).ParseProgram()
	if sink.HasErrors() {
		return "", sink
	}

	var out bytes.Buffer
	e := New(&out, sink)
	r := resolver.New(e, sink)
	r.DeclareGlobals(e.Globals().Names()...)
	r.Resolve(program.Statements)
	if sink.HasErrors() {
		return "", sink
	}

	e.Interpret(program.Statements)
	return out.String(), sink
}

func testOutput(t *testing.T, input string, expected string) {
	t.Helper()

	out, sink := run(t, input)
	if sink.HasErrors() {
		t.Fatalf("unexpected diagnostics for %q:\n%s", input, diag.Summary(sink.Diagnostics))
	}
	if out != expected {
		t.Errorf("output wrong for %q.\nexpected=%q\ngot=%q", input, expected, out)
	}
}

func testRuntimeError(t *testing.T, input string, expectedMessage string, expectedLine int) {
	t.Helper()

	_, sink := run(t, input)
	if !sink.HasRuntimeError() {
		t.Fatalf("expected runtime error for %q, got %v", input, sink.Messages())
	}
	d := sink.Diagnostics[len(sink.Diagnostics)-1]
	if d.Message != expectedMessage {
		t.Errorf("wrong message for %q. expected=%q, got=%q", input, expectedMessage, d.Message)
	}
	if d.Token.Line != expectedLine {
		t.Errorf("wrong line for %q. expected=%d, got=%d", input, expectedLine, d.Token.Line)
	}
}

func TestArithmeticAndComparison(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"print 1 + 2 * 3;", "7\n"},
		{"print (1 + 2) * 3;", "9\n"},
		{"print 10 / 4;", "2.5\n"},
		{"print -3 - -3;", "0\n"},
		{"print 1 < 2;", "true\n"},
		{"print 2 <= 1;", "false\n"},
		{"print 3 > 2 == true;", "true\n"},
		{"print 1 == 1;", "true\n"},
		{"print nil == nil;", "true\n"},
		{"print nil == false;", "false\n"},
		{`print "a" == "a";`, "true\n"},
		{`print "a" != "b";`, "true\n"},
		{"print !nil;", "true\n"},
		{"print !0;", "false\n"},
		{`print "con" + "cat";`, "concat\n"},
		{`print "a" + 1;`, "a1\n"},
		{`print "n" + nil;`, "nnil\n"},
		{`print "b" + true;`, "btrue\n"},
		{"print 0.1 + 0.2 > 0.3;", "true\n"},
	}

	for _, tt := range tests {
		testOutput(t, tt.input, tt.expected)
	}
}

func TestLogicalCommaAndTernary(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{`print nil or "yes";`, "yes\n"},
		{`print 1 or "no";`, "1\n"},
		{`print nil and "no";`, "nil\n"},
		{`print true and "yes";`, "yes\n"},
		{"print (1, 2, 3);", "3\n"},
		{"print true ? 1 : 2;", "1\n"},
		{"print false ? 1 : nil ? 2 : 3;", "3\n"},
		{"var a = 0; var b = (a = 1, a + 1); print a; print b;", "1\n2\n"},
		{"fun f(x) { return x ? \"t\" : \"f\"; } print f(1); print f(nil);", "t\nf\n"},
	}

	for _, tt := range tests {
		testOutput(t, tt.input, tt.expected)
	}
}

func TestVariablesAndScopes(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"var a; print a;", "nil\n"},
		{"var a = 1; a = 2; print a;", "2\n"},
		{"var a = 1; { var a = a + 1; print a; } print a;", "2\n1\n"},
		{"{ var a = 1; { var a = a * 10; print a; } print a; }", "10\n1\n"},
		{"var a = 1; var a = 2; print a;", "2\n"},
		{"var a = \"global\"; { fun show() { print a; } show(); var a = \"block\"; show(); }", "global\nglobal\n"},
		{"{ var a = 1; { a = 5; } print a; }", "5\n"},
	}

	for _, tt := range tests {
		testOutput(t, tt.input, tt.expected)
	}
}

func TestControlFlow(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"if (1 > 2) print 1; else print 2;", "2\n"},
		{"if (nil) print 1;", ""},
		{"var i = 0; while (i < 3) { print i; i = i + 1; }", "0\n1\n2\n"},
		{"for (var i = 0; i < 3; i = i + 1) print i;", "0\n1\n2\n"},
		{"for (var i = 0; ; i = i + 1) { if (i == 2) break; print i; }", "0\n1\n"},
		{"var i = 0; for (; i < 2;) i = i + 1; print i;", "2\n"},
		{"while (true) { while (true) break; print \"outer\"; break; }", "outer\n"},
		{"fun f() { while (true) { return \"out\"; } } print f();", "out\n"},
	}

	for _, tt := range tests {
		testOutput(t, tt.input, tt.expected)
	}
}

func TestFunctionsAndClosures(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"fun add(a, b) { return a + b; } print add(1, 2);", "3\n"},
		{"fun noop() {} print noop();", "nil\n"},
		{"fun early() { return; print 1; } print early();", "nil\n"},
		{"fun fib(n) { if (n < 2) return n; return fib(n - 1) + fib(n - 2); } print fib(10);", "55\n"},
		{
			"fun counter() { var i = 0; fun inc() { i = i + 1; return i; } return inc; } var c = counter(); print c(); print c();",
			"1\n2\n",
		},
		{
			"fun make() { var n = 0; fun a() { n = n + 1; } fun b() { return n; } a(); a(); return b; } print make()();",
			"2\n",
		},
		{"fun f() {} print f;", "<native fn>\n"},
		{"print clock;", "<native fn>\n"},
	}

	for _, tt := range tests {
		testOutput(t, tt.input, tt.expected)
	}
}

func TestLoopClosuresCaptureIterationScope(t *testing.T) {
	input := `
var first;
var second;
for (var i = 0; i < 2; i = i + 1) {
  var j = i;
  fun get() { return j; }
  if (i == 0) first = get; else second = get;
}
print first();
print second();
`
	testOutput(t, input, "0\n1\n")

	// closures of one iteration share its j; another iteration's j is separate
	input = `
var inc0;
var get0;
var get1;
for (var i = 0; i < 2; i = i + 1) {
  var j = i;
  fun inc() { j = j + 10; }
  fun get() { return j; }
  if (i == 0) { inc0 = inc; get0 = get; } else get1 = get;
}
inc0();
inc0();
print get0();
print get1();
`
	testOutput(t, input, "20\n1\n")
}

func TestClasses(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{
			`class Cake { init(flavor) { this.flavor = flavor; } taste() { print "This " + this.flavor + " cake is delicious!"; } } Cake("chocolate").taste();`,
			"This chocolate cake is delicious!\n",
		},
		{"class Bagel {} print Bagel; print Bagel();", "Bagel\nBagel instance\n"},
		{"class P { init() { this.x = 1; return; } } var p = P(); print p.x; print p.init() == p;", "1\ntrue\n"},
		{"class A { m() { return this; } } var a = A(); var m = a.m; print m() == a;", "true\n"},
		{"class Box {} var b = Box(); b.v = 3; b.v = b.v + 1; print b.v;", "4\n"},
		{
			"class Circle { init(r) { this.r = r; } area { return 3 * this.r * this.r; } } print Circle(2).area;",
			"12\n",
		},
		{
			"class Math { class square(n) { return n * n; } } print Math.square(3);",
			"9\n",
		},
		{"class K {} K.count = 2; print K.count;", "2\n"},
		{"class F { init() { this.f = F.make; } class make() { return \"made\"; } } print F().f();", "made\n"},
	}

	for _, tt := range tests {
		testOutput(t, tt.input, tt.expected)
	}
}

func TestInheritance(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{
			`class A { speak() { return "A"; } } class B < A { speak() { return "B"; } } print B().speak();`,
			"B\n",
		},
		{
			`class A { speak() { return "A" + this.tag; } }
class B < A { init() { this.tag = "!"; } speak() { return "B/" + super.speak(); } }
print B().speak();`,
			"B/A!\n",
		},
		{
			`class A { hi() { print "hi"; } } class B < A {} B().hi();`,
			"hi\n",
		},
		{
			`class A { init(x) { this.x = x; } } class B < A { init() { super.init(7); } } print B().x;`,
			"7\n",
		},
		{
			`class A { name { return "a"; } } class B < A { name { return "b" + super.name; } } print B().name;`,
			"ba\n",
		},
		{
			`class A { m() { return "A"; } } class B < A { m() { return "B"; } }
class C < B { m() { return "C" + super.m(); } } print C().m();`,
			"CB\n",
		},
	}

	for _, tt := range tests {
		testOutput(t, tt.input, tt.expected)
	}
}

func TestBoundMethodKeepsReceiver(t *testing.T) {
	input := `
class Counter {
  init() { this.n = 0; }
  inc() { this.n = this.n + 1; return this.n; }
}
var c = Counter();
var inc = c.inc;
inc();
inc();
print c.n;
var other = Counter();
other.inc = inc;
other.inc();
print c.n;
print other.n;
`
	testOutput(t, input, "2\n3\n0\n")
}

func TestBuiltins(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{`print len("héllo");`, "5\n"},
		{`print str(12) + "!";`, "12!\n"},
		{`print typeof(1);`, "number\n"},
		{`print typeof("s");`, "string\n"},
		{`print typeof(nil);`, "nil\n"},
		{`print typeof(clock);`, "function\n"},
		{`class A {} print typeof(A); print typeof(A());`, "class\ninstance\n"},
		{`print clock() > 0;`, "true\n"},
	}

	for _, tt := range tests {
		testOutput(t, tt.input, tt.expected)
	}
}

func TestRuntimeErrors(t *testing.T) {
	tests := []struct {
		input   string
		message string
		line    int
	}{
		{"print 10 / 0;", "Divide by zero.", 1},
		{`print 1 + "a";`, "Operands must be two numbers or two strings.", 1},
		{`print "a" - 1;`, "Operands must be numbers.", 1},
		{`print -"a";`, "Operand must be a number.", 1},
		{`print 1 < "a";`, "Operands must be numbers.", 1},
		{"print missing;", "Undefined variable 'missing'.", 1},
		{"missing = 1;", "Undefined variable 'missing'.", 1},
		{`"str"();`, "Can only call functions and classes.", 1},
		{"fun f(a) {}\nf(1, 2);", "Expected 1 arguments but got 2.", 2},
		{"class A { init(x) {} }\nA();", "Expected 1 arguments but got 0.", 2},
		{"var x = 1;\nprint x.y;", "Only instances have properties.", 2},
		{"var x = 1;\nx.y = 2;", "Only instances have fields.", 2},
		{"class A {}\nprint A().nope;", "Undefined property 'nope'.", 2},
		{"var NotAClass = 1;\nclass B < NotAClass {}", "Superclass must be a class.", 2},
		{"class A {} class B < A { m() { return super.nope(); } }\nB().m();", "Undefined property 'nope'.", 1},
		{`print len(1);`, "argument to `len` must be a string, got number", 1},
	}

	for _, tt := range tests {
		testRuntimeError(t, tt.input, tt.message, tt.line)
	}
}

func TestRuntimeErrorStopsExecution(t *testing.T) {
	out, sink := run(t, "print 1;\nprint nil + 1;\nprint 3;")
	if out != "1\n" {
		t.Errorf("expected only the first print to run, got %q", out)
	}
	if len(sink.Diagnostics) != 1 {
		t.Fatalf("expected exactly one diagnostic, got %d", len(sink.Diagnostics))
	}
	if !strings.Contains(sink.Diagnostics[0].String(), "[line 2]") {
		t.Errorf("expected line 2 in %q", sink.Diagnostics[0].String())
	}
}

func TestRuntimeErrorCarriesStackTrace(t *testing.T) {
	input := "fun inner() { return 1 / 0; }\nfun outer() { return inner(); }\nouter();"
	program := parser.New(lexer.New(input), nil).ParseProgram()

	e := New(nil, nil)
	resolver.New(e, nil).Resolve(program.Statements)
	err := e.Interpret(program.Statements)

	rtErr, ok := err.(*object.RuntimeError)
	if !ok {
		t.Fatalf("expected *object.RuntimeError, got %T (%v)", err, err)
	}
	if len(rtErr.StackTrace) != 2 {
		t.Fatalf("expected 2 frames, got %d", len(rtErr.StackTrace))
	}
	if rtErr.StackTrace[0].Function != "inner" || rtErr.StackTrace[1].Function != "outer" {
		t.Errorf("unexpected frames: %s, %s", rtErr.StackTrace[0].Function, rtErr.StackTrace[1].Function)
	}
	if !strings.Contains(object.RenderStacktrace(rtErr), "in outer() declared at [line 2]") {
		t.Errorf("stack trace missing outer frame:\n%s", object.RenderStacktrace(rtErr))
	}
}

func TestStatePersistsAcrossInterpretCalls(t *testing.T) {
	var out bytes.Buffer
	sink := &diag.Collector{}
	e := New(&out, sink)

	lines := []string{
		"var total = 0;",
		"fun add(n) { total = total + n; return total; }",
		"{ var step = 5; add(step); }",
		"print add(1);",
	}
	for _, line := range lines {
		program := parser.New(lexer.New(line), sink).ParseProgram()
		r := resolver.New(e, sink)
		r.DeclareGlobals(e.Globals().Names()...)
		r.Resolve(program.Statements)
		if err := e.Interpret(program.Statements); err != nil {
			t.Fatalf("line %q: %v", line, err)
		}
	}

	if sink.HasErrors() {
		t.Fatalf("unexpected diagnostics: %v", sink.Messages())
	}
	if out.String() != "6\n" {
		t.Errorf("expected 6, got %q", out.String())
	}
}

func TestEvaluateExpression(t *testing.T) {
	e := New(nil, nil)
	program := parser.New(lexer.New("var x = 4;"), nil).ParseProgram()
	e.Interpret(program.Statements)

	p := parser.New(lexer.New("x * 2"), nil)
	p.AllowBareExpression = true
	program = p.ParseProgram()
	if len(p.Errors()) != 0 {
		t.Fatalf("parse errors: %v", p.Errors())
	}

	stmt := program.Statements[0].(*ast.ExpressionStatement)
	val, err := e.EvaluateExpression(stmt.Expression)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if object.Stringify(val) != "8" {
		t.Errorf("expected 8, got %s", object.Stringify(val))
	}
}

func TestDefineNative(t *testing.T) {
	var out bytes.Buffer
	e := New(&out, nil)
	e.DefineNative("twice", 1, func(_ object.Executor, args []object.Object) (object.Object, error) {
		n := args[0].(*object.Number)
		return &object.Number{Value: n.Value * 2}, nil
	})

	program := parser.New(lexer.New("print twice(21);"), nil).ParseProgram()
	if err := e.Interpret(program.Statements); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.String() != "42\n" {
		t.Errorf("expected 42, got %q", out.String())
	}
}

func TestEscapedBreakIsAFault(t *testing.T) {
	// without a resolver pass nothing stops a break inside a function body
	program := parser.New(lexer.New("fun f() { break; }\nf();"), nil).ParseProgram()

	sink := &diag.Collector{}
	e := New(nil, sink)
	err := e.Interpret(program.Statements)

	if !errors.Is(err, errBreakEscaped) {
		t.Fatalf("expected errBreakEscaped, got %v", err)
	}
	var rtErr *object.RuntimeError
	if errors.As(err, &rtErr) {
		t.Errorf("an escaped break must not surface as a runtime error")
	}
	if len(sink.Diagnostics) != 0 {
		t.Errorf("expected no diagnostics, got %v", sink.Messages())
	}
}
