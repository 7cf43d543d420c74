// Package config handles flowreprog configuration.
//
// Configuration is loaded with overlay semantics: the embedded
// default.toml is decoded first, then the config file (if any) is
// decoded on top of it, so the file only needs the keys it changes.
// CLI flags and environment variables override at runtime and are
// handled by the CLI layer.
//
// A config file that exists but does not parse, or that contains keys
// this version does not know, is an error.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"maps"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/frobware/go-flowreprog/compute"
	"github.com/frobware/go-flowreprog/logging"
)

//go:embed default.toml
var defaultConfigTOML string

// DefaultConfigPath is where the daemon looks for its config file.
const DefaultConfigPath = "/etc/flowreprog/flowreprog.toml"

// Config is the top-level configuration.
type Config struct {
	Reprogrammer ReprogrammerConfig `toml:"reprogrammer"`
	FlowTable    FlowTableConfig    `toml:"flowtable"`
	Server       ServerConfig       `toml:"server"`
	Logging      LoggingConfig      `toml:"logging"`
}

// ReprogrammerConfig controls the reprogramming state machine.
type ReprogrammerConfig struct {
	Timeout        time.Duration `toml:"timeout"`
	OverflowPolicy string        `toml:"overflow_policy"`
}

// Overflow parses OverflowPolicy.
func (c ReprogrammerConfig) Overflow() (compute.OverflowPolicy, error) {
	return compute.ParseOverflowPolicy(c.OverflowPolicy)
}

// FlowTableConfig controls the reference flow table.
type FlowTableConfig struct {
	Capacity int           `toml:"capacity"`
	Latency  time.Duration `toml:"latency"`
}

// ServerConfig holds the daemon's listen addresses. An empty address
// disables that listener.
type ServerConfig struct {
	TCPAddress     string `toml:"tcp_address"`
	MetricsAddress string `toml:"metrics_address"`
}

// LoggingConfig controls logging.
type LoggingConfig struct {
	// Level is a log spec such as "info" or "info,reprogrammer=debug".
	Level  string `toml:"level"`
	Format string `toml:"format"`
	// Components adds per-component levels to Level.
	Components map[string]string `toml:"components"`
	File       LogFileConfig     `toml:"file"`
}

// LogFileConfig enables a rotated log file when Path is set.
type LogFileConfig struct {
	Path       string `toml:"path"`
	MaxSizeMB  int    `toml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days"`
	Compress   bool   `toml:"compress"`
}

// ToSpec renders Level and Components as one log spec. Components are
// appended in name order and override Level for those components.
func (c *LoggingConfig) ToSpec() string {
	if len(c.Components) == 0 {
		return c.Level
	}
	base := c.Level
	if base == "" {
		base = "info"
	}
	parts := []string{base}
	for _, name := range slices.Sorted(maps.Keys(c.Components)) {
		parts = append(parts, name+"="+c.Components[name])
	}
	return strings.Join(parts, ",")
}

// FileOptions returns the logging.FileOptions for the configured
// file, or nil when file logging is off.
func (c *LoggingConfig) FileOptions() *logging.FileOptions {
	if c.File.Path == "" {
		return nil
	}
	return &logging.FileOptions{
		Path:       c.File.Path,
		MaxSizeMB:  c.File.MaxSizeMB,
		MaxBackups: c.File.MaxBackups,
		MaxAgeDays: c.File.MaxAgeDays,
		Compress:   c.File.Compress,
	}
}

// DefaultConfig returns the embedded defaults.
func DefaultConfig() Config {
	var cfg Config
	if _, err := toml.Decode(defaultConfigTOML, &cfg); err != nil {
		panic(fmt.Sprintf("embedded default.toml: %v", err))
	}
	return cfg
}

// Load overlays the file at path onto the defaults. A missing file is
// not an error. An empty path means DefaultConfigPath.
func Load(path string) (Config, error) {
	if path == "" {
		path = DefaultConfigPath
	}
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("read config file: %w", err)
	}

	md, err := toml.Decode(string(data), &cfg)
	if err != nil {
		return cfg, fmt.Errorf("parse config file %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}
		return cfg, fmt.Errorf("config file %s: unknown keys: %s", path, strings.Join(keys, ", "))
	}
	return cfg, cfg.Validate()
}

// Validate checks values that the TOML types cannot.
func (c *Config) Validate() error {
	var errs []error
	if c.Reprogrammer.Timeout < 0 {
		errs = append(errs, fmt.Errorf("reprogrammer.timeout must not be negative"))
	}
	if _, err := c.Reprogrammer.Overflow(); err != nil {
		errs = append(errs, fmt.Errorf("reprogrammer.overflow_policy: %w", err))
	}
	if c.FlowTable.Capacity < 0 {
		errs = append(errs, fmt.Errorf("flowtable.capacity must not be negative"))
	}
	if c.FlowTable.Latency < 0 {
		errs = append(errs, fmt.Errorf("flowtable.latency must not be negative"))
	}
	if _, err := logging.ParseSpec(c.Logging.ToSpec()); err != nil {
		errs = append(errs, fmt.Errorf("logging: %w", err))
	}
	if _, err := logging.ParseFormat(c.Logging.Format); err != nil {
		errs = append(errs, fmt.Errorf("logging.format: %w", err))
	}
	return errors.Join(errs...)
}
