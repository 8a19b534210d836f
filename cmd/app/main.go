package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"lox/internal/journal"
	"lox/internal/repl"
	"lox/internal/runner"
	"lox/internal/util"
)

// exit codes follow sysexits.h
const (
	ExitUsage   = 64
	ExitStatic  = 65
	ExitRuntime = 70
	ExitIOErr   = 74
)

var (
	// Version is the current version of the lox binary, set at link time.
	Version   = "dev"
	BuildDate = "unknown"
	Commit    = "unknown"
	help      bool
	version   bool
	// logging
	logLevel string
	logFile  string
	// config vars
	configPath    string
	debugAST      bool
	warnUnused    bool
	showContext   bool
	journalDriver string
	journalDSN    string
)

func init() {
	flag.BoolVar(&help, "help", false, "Display help information and exit")
	flag.BoolVar(&help, "h", false, "Display help information and exit")
	flag.BoolVar(&version, "version", false, "Display version information and exit")
	flag.BoolVar(&version, "v", false, "Display version information and exit")
	flag.StringVar(&configPath, "config", "", "YAML configuration file (default $HOME/"+util.DefaultConfigName+" when present)")
	// parser and resolver config
	flag.BoolVar(&debugAST, "debug-ast", false, "Render the AST as JSON on stderr")
	flag.BoolVar(&warnUnused, "warn-unused", false, "Warn about local variables that are never read")
	flag.BoolVar(&showContext, "show-context", false, "Print the offending source lines under each diagnostic")
	// journal config
	flag.StringVar(&journalDriver, "journal-driver", "", "Record runs with this database driver: sqlite3, mysql, postgres")
	flag.StringVar(&journalDSN, "journal-dsn", "", "Data source name for the journal database")
	// log config
	flag.StringVar(&logLevel, "log-level", "error", "Log level: debug, info, warn, error")
	flag.StringVar(&logFile, "log-file", "", "Log file path (if not set, logs to stderr)")
}

func main() {
	os.Exit(run())
}

func run() int {
	flag.Parse()

	if version {
		printVersion()
		return 0
	}

	if help {
		printHelp()
		return 0
	}

	config, err := loadConfiguration()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return ExitUsage
	}

	// Creates a new Logger that uses a JSONHandler to write to the log writer
	loggerOptions := &slog.HandlerOptions{
		AddSource: false,
		Level:     logLevelFromString(config.LogLevel),
	}
	logWriter := configureLogWriter(config.LogFile)
	if logWriter != os.Stderr {
		defer logWriter.Close()
	}
	defaultLogger := slog.New(slog.NewJSONHandler(logWriter, loggerOptions))
	slog.SetDefault(defaultLogger)

	if flag.NArg() > 1 {
		fmt.Fprintln(os.Stderr, "Usage: lox [options] [script]")
		return ExitUsage
	}

	ctx := context.Background()

	store, err := journal.Open(ctx, config.Journal.Driver, config.Journal.DSN)
	if err != nil {
		slog.Warn("journal disabled", slog.Any("error", err))
		store, _ = journal.Open(ctx, "", "")
	}
	defer store.Close()

	r := runner.New(config, os.Stdout, os.Stderr, store)

	if flag.NArg() == 0 {
		if err := repl.New(r, os.Stdout).Start(ctx, os.Stdin); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return ExitIOErr
		}
		return 0
	}

	return runFile(ctx, r, flag.Arg(0))
}

func runFile(ctx context.Context, r *runner.Runner, path string) int {
	source, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "could not read '%s': %v\n", path, err)
		return ExitIOErr
	}

	slog.Info("running script", slog.String("path", path))
	result := r.Run(ctx, path, string(source), false)
	slog.Info("script finished", slog.String("path", path), slog.String("outcome", string(result.Outcome)))

	switch result.Outcome {
	case journal.OutcomeStatic:
		return ExitStatic
	case journal.OutcomeRuntime:
		return ExitRuntime
	}
	return 0
}

// loadConfiguration reads the YAML file and then applies every flag that was
// set explicitly on the command line.
func loadConfiguration() (util.Configuration, error) {
	path, optional := configPath, false
	if path == "" {
		path, optional = util.DefaultConfigPath(), true
	}

	config, err := util.LoadConfiguration(path, util.DefaultConfiguration(), optional)
	if err != nil {
		return config, err
	}

	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "debug-ast":
			config.DebugAST = debugAST
		case "warn-unused":
			config.WarnUnused = warnUnused
		case "show-context":
			config.ShowContext = showContext
		case "journal-driver":
			config.Journal.Driver = journalDriver
		case "journal-dsn":
			config.Journal.DSN = journalDSN
		case "log-level":
			config.LogLevel = logLevel
		case "log-file":
			config.LogFile = logFile
		}
	})

	config.Version = Version
	config.BuildDate = BuildDate
	config.Commit = Commit
	return config, nil
}

func configureLogWriter(logFile string) io.WriteCloser {
	if logFile == "" {
		return os.Stderr
	}
	// Create parent directories if they don't exist
	if err := os.MkdirAll(filepath.Dir(logFile), 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "failed to create log directory for '%s': %v; falling back to stderr\n", logFile, err)
		return os.Stderr
	}
	logWriter, err := os.OpenFile(logFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open log file '%s': %v; falling back to stderr\n", logFile, err)
		return os.Stderr
	}
	return logWriter
}

func printVersion() {
	fmt.Printf("lox version 'v%s' %s %s\n", Version, BuildDate, Commit)
}

func printHelp() {
	fmt.Printf(`Usage: lox [options] [script]

Options:
  -config <path>          Read settings from a YAML file. Default is $HOME/%s when present.
  -debug-ast              Render the AST as JSON on stderr.
  -warn-unused            Warn about local variables that are never read.
  -show-context           Print the offending source lines under each diagnostic.
  -journal-driver <name>  Record every run with sqlite3, mysql or postgres.
  -journal-dsn <dsn>      Data source name for the journal database.
  -help                   Display this help information and exit.
  -version                Display version information and exit.
  -log-level <level>      Set the log level: debug, info, warn, error. Default is 'error'.
  -log-file <path>        Specify a log file to write logs. Default is stderr.

Details:
Without a script lox starts an interactive session. Inside it, :history [n]
lists journaled runs, :env lists global bindings and :quit leaves.

Exit codes:
  64  usage error
  65  syntax or resolution error
  70  runtime error
  74  the script could not be read

Examples:
  lox                                   Start the REPL
  lox -log-level=debug script.lox       Run a script with debug logging
  lox -journal-driver sqlite3 -journal-dsn runs.db script.lox

Version Information:
  Version:    %s
  Build Date: %s
  Commit:     %s
`, util.DefaultConfigName, Version, BuildDate, Commit)
}

func logLevelFromString(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelError
	}
}
