package util

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

const (
	DefaultPrompt     = "> "
	DefaultConfigName = ".loxrc.yaml"
)

type Configuration struct {
	Version   string `yaml:"-"`
	BuildDate string `yaml:"-"`
	Commit    string `yaml:"-"`

	Prompt      string `yaml:"prompt"`
	HistoryFile string `yaml:"history_file"`
	WarnUnused  bool   `yaml:"warn_unused"`
	ShowContext bool   `yaml:"show_context"`
	DebugAST    bool   `yaml:"debug_ast"`
	LogLevel    string `yaml:"log_level"`
	LogFile     string `yaml:"log_file"`

	Journal JournalConfig `yaml:"journal"`
}

// JournalConfig selects the database/sql driver used to record runs. An
// empty Driver disables the journal.
type JournalConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

func DefaultConfiguration() Configuration {
	return Configuration{
		Prompt:   DefaultPrompt,
		LogLevel: "error",
	}
}

// DefaultConfigPath returns $HOME/.loxrc.yaml, or "" when the home directory
// is unknown.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, DefaultConfigName)
}

// LoadConfiguration decodes the YAML file at path over base. A missing file is
// not an error when optional is set.
func LoadConfiguration(path string, base Configuration, optional bool) (Configuration, error) {
	if path == "" {
		return base, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if optional && errors.Is(err, fs.ErrNotExist) {
			return base, nil
		}
		return base, fmt.Errorf("read config %s: %w", path, err)
	}
	return ParseConfiguration(data, base)
}

// ParseConfiguration overlays YAML data on base; keys absent from the
// document keep the value they had in base.
func ParseConfiguration(data []byte, base Configuration) (Configuration, error) {
	cfg := base
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return base, fmt.Errorf("parse config: %w", err)
	}
	if cfg.Prompt == "" {
		cfg.Prompt = DefaultPrompt
	}
	switch cfg.Journal.Driver {
	case "", "sqlite3", "mysql", "postgres":
	default:
		return base, fmt.Errorf("parse config: unsupported journal driver %q", cfg.Journal.Driver)
	}
	return cfg, nil
}
