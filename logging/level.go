// Package logging builds the slog loggers used across flowreprog:
// per-component level filtering, text or JSON output, optional rotated
// log files and request op ids carried in the context.
package logging

import (
	"fmt"
	"log/slog"
	"strings"
)

// Level extends slog's levels with a trace level below debug. The
// debug through error values are identical to slog's.
type Level int

const (
	// LevelTrace is used for per-statement and per-event chatter.
	LevelTrace Level = -8
	LevelDebug Level = Level(slog.LevelDebug)
	LevelInfo  Level = Level(slog.LevelInfo)
	LevelWarn  Level = Level(slog.LevelWarn)
	LevelError Level = Level(slog.LevelError)
)

var levelNames = []struct {
	level Level
	names []string
}{
	{LevelTrace, []string{"trace"}},
	{LevelDebug, []string{"debug"}},
	{LevelInfo, []string{"info"}},
	{LevelWarn, []string{"warn", "warning"}},
	{LevelError, []string{"error", "err"}},
}

// ParseLevel parses a case-insensitive level name.
func ParseLevel(s string) (Level, error) {
	want := strings.ToLower(strings.TrimSpace(s))
	for _, l := range levelNames {
		for _, n := range l.names {
			if n == want {
				return l.level, nil
			}
		}
	}
	return LevelInfo, fmt.Errorf("unknown log level: %q", s)
}

// ToSlog converts Level to slog.Level.
func (l Level) ToSlog() slog.Level {
	return slog.Level(l)
}

func (l Level) String() string {
	for _, n := range levelNames {
		if n.level == l {
			return n.names[0]
		}
	}
	return fmt.Sprintf("Level(%d)", int(l))
}
