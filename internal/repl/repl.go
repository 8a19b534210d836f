package repl

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strconv"
	"strings"

	"github.com/chzyer/readline"

	"lox/internal/object"
	"lox/internal/runner"
)

const (
	QuitCommand    = ":quit"
	HistoryCommand = ":history"
	EnvCommand     = ":env"

	defaultHistory = 10
	historySeed    = 100

	// Origin is the journal origin of lines typed at the prompt.
	Origin = "repl"
)

// historyWriter is the part of *readline.Instance that takes history lines.
type historyWriter interface {
	SaveHistory(content string) error
}

// Repl reads one line at a time and runs it on a shared runner, so
// declarations from earlier lines stay visible.
type Repl struct {
	Runner *runner.Runner
	Out    io.Writer
}

func New(r *runner.Runner, out io.Writer) *Repl {
	return &Repl{Runner: r, Out: out}
}

// Start runs the read-eval-print loop until :quit or end of input. Ctrl-C
// abandons the current line.
func (r *Repl) Start(ctx context.Context, in io.ReadCloser) error {
	cfg := r.Runner.Config
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          cfg.Prompt,
		HistoryFile:     cfg.HistoryFile,
		InterruptPrompt: "^C",
		EOFPrompt:       QuitCommand,
		Stdin:           in,
		Stdout:          r.Out,
	})
	if err != nil {
		return fmt.Errorf("repl: %w", err)
	}
	defer rl.Close()

	r.seedHistory(ctx, rl)
	slog.Debug("repl started", slog.String("history", cfg.HistoryFile))

	for {
		line, err := rl.Readline()
		switch {
		case errors.Is(err, readline.ErrInterrupt):
			continue
		case errors.Is(err, io.EOF):
			return nil
		case err != nil:
			return fmt.Errorf("repl: %w", err)
		}

		if r.Execute(ctx, line) {
			return nil
		}
	}
}

// Execute handles one input line and reports whether the session should
// end.
func (r *Repl) Execute(ctx context.Context, line string) bool {
	line = strings.TrimSpace(line)
	if line == "" {
		return false
	}
	if strings.HasPrefix(line, ":") {
		return r.command(ctx, line)
	}
	r.Runner.Run(ctx, Origin, line, true)
	return false
}

// seedHistory loads the most recent journaled REPL lines into the line
// editor, oldest first. A history file already persists lines itself, so
// the journal is only used when none is configured.
func (r *Repl) seedHistory(ctx context.Context, h historyWriter) {
	store := r.Runner.Journal
	if !store.Enabled() || r.Runner.Config.HistoryFile != "" {
		return
	}
	entries, err := store.Recent(ctx, historySeed)
	if err != nil {
		slog.Warn("failed to seed history from journal", slog.Any("error", err))
		return
	}
	for i := len(entries) - 1; i >= 0; i-- {
		if entries[i].Origin != Origin {
			continue
		}
		if err := h.SaveHistory(entries[i].Source); err != nil {
			slog.Warn("failed to seed history", slog.Any("error", err))
			return
		}
	}
}

func (r *Repl) command(ctx context.Context, line string) bool {
	fields := strings.Fields(line)
	switch fields[0] {
	case QuitCommand:
		return true

	case HistoryCommand:
		n := defaultHistory
		if len(fields) > 1 {
			parsed, err := strconv.Atoi(fields[1])
			if err != nil || parsed <= 0 {
				fmt.Fprintf(r.Out, "usage: %s [n]\n", HistoryCommand)
				return false
			}
			n = parsed
		}
		r.printHistory(ctx, n)

	case EnvCommand:
		r.printGlobals()

	default:
		fmt.Fprintf(r.Out, "unknown command %s (try %s, %s [n], %s)\n", fields[0], QuitCommand, HistoryCommand, EnvCommand)
	}
	return false
}

func (r *Repl) printHistory(ctx context.Context, n int) {
	store := r.Runner.Journal
	if !store.Enabled() {
		fmt.Fprintln(r.Out, "journal is disabled")
		return
	}
	entries, err := store.Recent(ctx, n)
	if err != nil {
		fmt.Fprintf(r.Out, "history unavailable: %v\n", err)
		return
	}
	// oldest first, like a shell history
	for i := len(entries) - 1; i >= 0; i-- {
		e := entries[i]
		fmt.Fprintf(r.Out, "%4d  %-7s %s\n", e.ID, e.Outcome, e.Source)
	}
}

// printGlobals lists user-visible global bindings, the latest binding of
// each name, sorted by name.
func (r *Repl) printGlobals() {
	globals := r.Runner.Evaluator.Globals()
	latest := map[string]object.Object{}
	for _, b := range globals.Bindings {
		latest[b.Name] = b.Value
	}

	names := make([]string, 0, len(latest))
	for name := range latest {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		val := latest[name]
		fmt.Fprintf(r.Out, "%s: %s = %s\n", name, object.TypeName(val), object.Stringify(val))
	}
}
