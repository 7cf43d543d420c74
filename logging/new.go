package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

// EnvVar names the environment variable holding a log spec.
const EnvVar = "FLOWREPROG_LOG"

// Format selects the record encoding.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
)

// ParseFormat parses "text" (the default) or "json".
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "text":
		return FormatText, nil
	case "json":
		return FormatJSON, nil
	}
	return FormatText, fmt.Errorf("unknown log format: %q", s)
}

// FileOptions enables a size-rotated log file.
type FileOptions struct {
	Path       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// Options configures New. The first non-empty of CLISpec, EnvSpec and
// ConfigSpec is used.
type Options struct {
	CLISpec    string
	EnvSpec    string
	ConfigSpec string
	Format     Format

	// Output defaults to os.Stderr. When File is set records go to
	// both.
	Output io.Writer
	File   *FileOptions
}

// New builds a component-filtering logger. The returned closer
// releases the log file, if any, and is never nil.
func New(opts Options) (*slog.Logger, io.Closer, error) {
	var specStr string
	for _, s := range []string{opts.CLISpec, opts.EnvSpec, opts.ConfigSpec} {
		if s != "" {
			specStr = s
			break
		}
	}
	spec, err := ParseSpec(specStr)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid log spec: %w", err)
	}

	var out io.Writer = os.Stderr
	if opts.Output != nil {
		out = opts.Output
	}
	var closer io.Closer = nopCloser{}
	if opts.File != nil && opts.File.Path != "" {
		rotated := &lumberjack.Logger{
			Filename:   opts.File.Path,
			MaxSize:    opts.File.MaxSizeMB,
			MaxBackups: opts.File.MaxBackups,
			MaxAge:     opts.File.MaxAgeDays,
			Compress:   opts.File.Compress,
		}
		out = io.MultiWriter(out, rotated)
		closer = rotated
	}

	// The filtering handler decides; the inner handler accepts all.
	hopts := &slog.HandlerOptions{Level: LevelTrace.ToSlog(), ReplaceAttr: replaceLevel}
	var inner slog.Handler
	if opts.Format == FormatJSON {
		inner = slog.NewJSONHandler(out, hopts)
	} else {
		inner = slog.NewTextHandler(out, hopts)
	}
	return slog.New(NewFilteringHandler(inner, &spec)), closer, nil
}

// FromEnv builds a text logger on stderr from FLOWREPROG_LOG.
func FromEnv() (*slog.Logger, error) {
	logger, _, err := New(Options{EnvSpec: os.Getenv(EnvVar)})
	return logger, err
}

// Discard returns a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// replaceLevel renders the trace level by name instead of "DEBUG-4".
func replaceLevel(groups []string, a slog.Attr) slog.Attr {
	if a.Key != slog.LevelKey || len(groups) > 0 {
		return a
	}
	if lvl, ok := a.Value.Any().(slog.Level); ok && lvl == LevelTrace.ToSlog() {
		a.Value = slog.StringValue("TRACE")
	}
	return a
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
