package diag

import (
	"fmt"
	"io"
	"strings"

	"lox/internal/token"
	"lox/internal/util"
)

type Severity int

const (
	Error Severity = iota
	Warning
)

func (s Severity) String() string {
	if s == Warning {
		return "Warning"
	}
	return "Error"
}

// Phase names the stage that produced a diagnostic.
type Phase string

const (
	PhaseScan    Phase = "scan"
	PhaseParse   Phase = "parse"
	PhaseResolve Phase = "resolve"
	PhaseRuntime Phase = "runtime"
)

type Diagnostic struct {
	Token    token.Token
	Message  string
	Severity Severity
	Phase    Phase
}

// String renders static diagnostics as `[line N] Error at 'x': msg` and
// runtime ones as the message followed by `[line N]`.
func (d Diagnostic) String() string {
	if d.Phase == PhaseRuntime {
		return fmt.Sprintf("%s\n[line %d]", d.Message, d.Token.Line)
	}
	var where string
	switch d.Token.Type {
	case token.EOF:
		where = " at end"
	case token.ILLEGAL:
		where = ""
	default:
		where = fmt.Sprintf(" at '%s'", d.Token.Lexeme)
	}
	return fmt.Sprintf("[line %d] %s%s: %s", d.Token.Line, d.Severity, where, d.Message)
}

// Sink receives diagnostics from the parser, resolver and evaluator.
type Sink interface {
	Report(d Diagnostic)
}

// Collector accumulates diagnostics in report order.
type Collector struct {
	Diagnostics []Diagnostic
}

func (c *Collector) Report(d Diagnostic) {
	c.Diagnostics = append(c.Diagnostics, d)
}

func (c *Collector) HasErrors() bool {
	for _, d := range c.Diagnostics {
		if d.Severity == Error {
			return true
		}
	}
	return false
}

func (c *Collector) HasRuntimeError() bool {
	for _, d := range c.Diagnostics {
		if d.Phase == PhaseRuntime {
			return true
		}
	}
	return false
}

func (c *Collector) Reset() {
	c.Diagnostics = nil
}

// Messages returns just the message text of every diagnostic.
func (c *Collector) Messages() []string {
	out := make([]string, 0, len(c.Diagnostics))
	for _, d := range c.Diagnostics {
		out = append(out, d.Message)
	}
	return out
}

// Printer writes each diagnostic as it arrives. With Source set it appends
// the offending source lines.
type Printer struct {
	Out    io.Writer
	Source string
}

func (p *Printer) Report(d Diagnostic) {
	fmt.Fprintln(p.Out, d.String())
	if p.Source == "" || d.Token.Position < 0 {
		return
	}
	line, col := util.GetLineAndColumn(p.Source, d.Token.Position)
	if context := util.GetContextLines(p.Source, line, col); context != "" {
		fmt.Fprintln(p.Out, context)
	}
}

// Tee fans a diagnostic out to several sinks.
type Tee []Sink

func (t Tee) Report(d Diagnostic) {
	for _, s := range t {
		s.Report(d)
	}
}

// Summary joins the rendered diagnostics, one per line.
func Summary(ds []Diagnostic) string {
	parts := make([]string, 0, len(ds))
	for _, d := range ds {
		parts = append(parts, d.String())
	}
	return strings.Join(parts, "\n")
}
