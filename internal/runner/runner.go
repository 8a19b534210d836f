package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"lox/internal/ast"
	"lox/internal/diag"
	"lox/internal/evaluator"
	"lox/internal/journal"
	"lox/internal/lexer"
	"lox/internal/object"
	"lox/internal/parser"
	"lox/internal/resolver"
	"lox/internal/util"
)

// Result describes how one run ended. Message holds the rendered
// diagnostics for a failed run.
type Result struct {
	Outcome journal.Outcome
	Message string
}

// Runner drives source text through parse, resolve and interpret against a
// single evaluator, so globals and resolutions persist between runs.
type Runner struct {
	Config    util.Configuration
	Evaluator *evaluator.Evaluator
	Journal   *journal.Store
	Out       io.Writer // program output
	ErrOut    io.Writer // diagnostics
}

func New(config util.Configuration, out, errOut io.Writer, store *journal.Store) *Runner {
	r := &Runner{
		Config:  config,
		Journal: store,
		Out:     out,
		ErrOut:  errOut,
	}
	r.Evaluator = evaluator.New(out, nil)
	return r
}

// Run executes source. With echo set a lone expression statement may omit
// its semicolon and its value is printed, as the REPL does.
func (r *Runner) Run(ctx context.Context, origin, source string, echo bool) Result {
	collector := &diag.Collector{}
	printer := &diag.Printer{Out: r.ErrOut}
	if r.Config.ShowContext {
		printer.Source = source
	}
	sink := diag.Tee{collector, printer}

	result := r.run(origin, source, echo, collector, sink)
	r.record(ctx, origin, source, result)
	return result
}

func (r *Runner) run(origin, source string, echo bool, collector *diag.Collector, sink diag.Sink) Result {
	p := parser.New(lexer.New(source), sink)
	p.AllowBareExpression = echo
	program := p.ParseProgram()

	if r.Config.DebugAST {
		if out, err := parser.RenderASTAsJSON(program); err != nil {
			slog.Warn("failed to render AST", slog.Any("error", err))
		} else {
			fmt.Fprint(r.ErrOut, out)
		}
	}

	if collector.HasErrors() {
		return Result{Outcome: journal.OutcomeStatic, Message: diag.Summary(collector.Diagnostics)}
	}

	res := resolver.New(r.Evaluator, sink)
	res.WarnUnused = r.Config.WarnUnused
	res.DeclareGlobals(r.Evaluator.Globals().Names()...)
	res.Resolve(program.Statements)

	if collector.HasErrors() {
		return Result{Outcome: journal.OutcomeStatic, Message: diag.Summary(collector.Diagnostics)}
	}

	slog.Debug("running program",
		slog.String("origin", origin),
		slog.Int("statements", len(program.Statements)))

	err := r.execute(program, echo, sink)
	if err == nil {
		return Result{Outcome: journal.OutcomeOK}
	}

	var rtErr *object.RuntimeError
	if errors.As(err, &rtErr) {
		slog.Debug("runtime error", slog.String("trace", object.RenderStacktrace(rtErr)))
	}
	return Result{Outcome: journal.OutcomeRuntime, Message: diag.Summary(collector.Diagnostics)}
}

func (r *Runner) execute(program *ast.Program, echo bool, sink diag.Sink) error {
	e := r.Evaluator
	e.SetSink(sink)
	defer e.SetSink(nil)

	if echo && len(program.Statements) == 1 {
		if stmt, ok := program.Statements[0].(*ast.ExpressionStatement); ok {
			val, err := e.EvaluateExpression(stmt.Expression)
			if err != nil {
				return err
			}
			fmt.Fprintln(r.Out, object.Stringify(val))
			return nil
		}
	}
	return e.Interpret(program.Statements)
}

// record writes the run to the journal. A journal failure is logged and
// never changes the result.
func (r *Runner) record(ctx context.Context, origin, source string, result Result) {
	if !r.Journal.Enabled() {
		return
	}
	_, err := r.Journal.Record(ctx, journal.Entry{
		Origin:  origin,
		Source:  source,
		Outcome: result.Outcome,
		Message: result.Message,
	})
	if err != nil {
		slog.Warn("failed to record run", slog.String("origin", origin), slog.Any("error", err))
	}
}
