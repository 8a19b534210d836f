package runner

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"lox/internal/journal"
	"lox/internal/util"
)

func newRunner(t *testing.T, config util.Configuration, store *journal.Store) (*Runner, *bytes.Buffer, *bytes.Buffer) {
	t.Helper()
	if store == nil {
		var err error
		store, err = journal.Open(context.Background(), "", "")
		if err != nil {
			t.Fatalf("open disabled journal: %v", err)
		}
	}
	var out, errOut bytes.Buffer
	return New(config, &out, &errOut, store), &out, &errOut
}

func TestRunOutcomes(t *testing.T) {
	tests := []struct {
		input   string
		outcome journal.Outcome
		output  string
		message string
	}{
		{"print 1 + 2;", journal.OutcomeOK, "3\n", ""},
		{"print ;", journal.OutcomeStatic, "", "[line 1] Error at ';': Expect expression."},
		{"print 1; return 2;", journal.OutcomeStatic, "", "[line 1] Error at 'return': Can't return from top-level code."},
		{"print 1;\nprint -\"a\";\nprint 2;", journal.OutcomeRuntime, "1\n", "Operand must be a number.\n[line 2]"},
	}

	for _, tt := range tests {
		r, out, errOut := newRunner(t, util.DefaultConfiguration(), nil)
		result := r.Run(context.Background(), "test", tt.input, false)

		if result.Outcome != tt.outcome {
			t.Errorf("%q: expected outcome %s, got %s", tt.input, tt.outcome, result.Outcome)
		}
		if out.String() != tt.output {
			t.Errorf("%q: expected output %q, got %q", tt.input, tt.output, out.String())
		}
		if result.Message != tt.message {
			t.Errorf("%q: expected message %q, got %q", tt.input, tt.message, result.Message)
		}
		if tt.message != "" && !strings.Contains(errOut.String(), tt.message) {
			t.Errorf("%q: diagnostics not printed, got %q", tt.input, errOut.String())
		}
	}
}

func TestEchoExpressions(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"1 + 2", "3\n"},
		{"1 + 2;", "3\n"},
		{`"a" + "b"`, "ab\n"},
		{"nil", "nil\n"},
		{"print 4;", "4\n"},
		{"var x = 1;", ""},
	}

	for _, tt := range tests {
		r, out, _ := newRunner(t, util.DefaultConfiguration(), nil)
		result := r.Run(context.Background(), "repl", tt.input, true)
		if result.Outcome != journal.OutcomeOK {
			t.Fatalf("%q: expected ok, got %s: %s", tt.input, result.Outcome, result.Message)
		}
		if out.String() != tt.expected {
			t.Errorf("%q: expected %q, got %q", tt.input, tt.expected, out.String())
		}
	}
}

func TestStatePersistsAcrossRuns(t *testing.T) {
	r, out, _ := newRunner(t, util.DefaultConfiguration(), nil)
	ctx := context.Background()

	lines := []string{
		"var count = 0;",
		"fun makeCounter() { var n = 0; fun inc() { n = n + 1; count = count + 1; return n; } return inc; }",
		"var c = makeCounter();",
		"c();",
		"print ;",
		"c();",
		"count",
	}
	for _, line := range lines {
		r.Run(ctx, "repl", line, true)
	}

	expected := "1\n2\n2\n"
	if out.String() != expected {
		t.Errorf("expected %q, got %q", expected, out.String())
	}
}

func TestRunRecordsJournal(t *testing.T) {
	ctx := context.Background()
	store, err := journal.Open(ctx, "sqlite3", "file:"+t.Name()+"?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("open journal: %v", err)
	}
	defer store.Close()

	r, _, _ := newRunner(t, util.DefaultConfiguration(), store)
	r.Run(ctx, "a.lox", "print 1;", false)
	r.Run(ctx, "repl", "1 +", true)
	r.Run(ctx, "repl", "nil.x", true)

	entries, err := store.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}

	tests := []struct {
		origin  string
		source  string
		outcome journal.Outcome
	}{
		{"repl", "nil.x", journal.OutcomeRuntime},
		{"repl", "1 +", journal.OutcomeStatic},
		{"a.lox", "print 1;", journal.OutcomeOK},
	}
	for i, tt := range tests {
		e := entries[i]
		if e.Origin != tt.origin || e.Source != tt.source || e.Outcome != tt.outcome {
			t.Errorf("entries[%d] = %+v, expected %s %q %s", i, e, tt.origin, tt.source, tt.outcome)
		}
	}
	if entries[0].Message != "Only instances have properties.\n[line 1]" {
		t.Errorf("unexpected runtime message %q", entries[0].Message)
	}
}

func TestConfigurationSwitches(t *testing.T) {
	ctx := context.Background()

	config := util.DefaultConfiguration()
	config.WarnUnused = true
	r, out, errOut := newRunner(t, config, nil)
	result := r.Run(ctx, "test", "{ var unused = 1; print 2; }", false)
	if result.Outcome != journal.OutcomeOK || out.String() != "2\n" {
		t.Fatalf("warnings must not block execution: %s %q", result.Outcome, out.String())
	}
	if !strings.Contains(errOut.String(), "Warning at 'unused': Local variable 'unused' is never used.") {
		t.Errorf("expected unused warning, got %q", errOut.String())
	}

	config = util.DefaultConfiguration()
	config.ShowContext = true
	r, _, errOut = newRunner(t, config, nil)
	r.Run(ctx, "test", "var a = 1;\nprint a +;", false)
	if !strings.Contains(errOut.String(), "print a +;") || !strings.Contains(errOut.String(), "^") {
		t.Errorf("expected source context, got %q", errOut.String())
	}

	config = util.DefaultConfiguration()
	config.DebugAST = true
	r, _, errOut = newRunner(t, config, nil)
	r.Run(ctx, "test", "print 1;", false)
	if !strings.Contains(errOut.String(), `"type": "PrintStatement"`) {
		t.Errorf("expected AST dump, got %q", errOut.String())
	}
}
