package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"reflect"

	"github.com/alecthomas/kong"

	"github.com/frobware/go-flowreprog/client"
	"github.com/frobware/go-flowreprog/config"
	"github.com/frobware/go-flowreprog/logging"
)

// CLI is the root command structure for flowreprog.
type CLI struct {
	RuntimeDir string `name:"runtime-dir" help:"Runtime directory holding the database, lock and socket." default:"${default_runtime_dir}"`
	Config     string `name:"config" help:"Config file path." default:"${default_config_path}"`
	Log        string `name:"log" help:"Log spec (e.g., 'info,reprogrammer=debug')." env:"FLOWREPROG_LOG"`
	Remote     string `name:"remote" short:"r" help:"Remote endpoint (unix:///path or host:port). Connects via gRPC instead of running in-process."`

	// Out receives command output. Nil means os.Stdout.
	Out io.Writer `kong:"-"`

	Serve    ServeCmd    `cmd:"" help:"Start the gRPC daemon."`
	Update   UpdateCmd   `cmd:"" help:"Install or reprogram a flow entry."`
	Get      GetCmd      `cmd:"" help:"Show a configured flow entry."`
	List     ListCmd     `cmd:"" help:"List configured flow entries."`
	Pending  PendingCmd  `cmd:"" help:"List flows being reprogrammed."`
	Classify ClassifyCmd `cmd:"" help:"Report which entry forwards a frame."`
}

// KongOptions returns the Kong configuration options for the CLI.
func KongOptions() []kong.Option {
	return []kong.Option{
		kong.Name("flowreprog"),
		kong.Description("Hitless DirectFlow flow entry reprogrammer."),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
		kong.TypeMapper(reflect.TypeOf(Priority{}), priorityMapper()),
		kong.TypeMapper(reflect.TypeOf(EtherType{}), etherTypeMapper()),
		kong.TypeMapper(reflect.TypeOf(VlanID{}), vlanIDMapper()),
		kong.TypeMapper(reflect.TypeOf(Frame{}), frameMapper()),
		kong.Vars{
			"default_runtime_dir": config.DefaultRuntimeDirs().Base(),
			"default_config_path": config.DefaultConfigPath,
		},
	}
}

// LoadConfig loads the configuration from the config file path.
func (c *CLI) LoadConfig() (config.Config, error) {
	return config.Load(c.Config)
}

// RuntimeDirs returns the runtime directories rooted at --runtime-dir.
func (c *CLI) RuntimeDirs() (config.RuntimeDirs, error) {
	return config.NewRuntimeDirs(c.RuntimeDir)
}

// Logger creates a logger for CLI commands.
// CLI commands default to WARN level for quieter output.
// Use LoggerFromConfig for long-running services like serve.
func (c *CLI) Logger() (*slog.Logger, io.Closer, error) {
	cfg, err := c.LoadConfig()
	if err != nil {
		return nil, nil, err
	}

	format, err := logging.ParseFormat(cfg.Logging.Format)
	if err != nil {
		return nil, nil, err
	}

	// CLI commands default to warn unless --log is specified
	spec := c.Log
	if spec == "" {
		spec = "warn"
	}

	return logging.New(logging.Options{
		CLISpec:    spec,
		ConfigSpec: cfg.Logging.ToSpec(),
		Format:     format,
		Output:     os.Stderr,
	})
}

// LoggerFromConfig creates a logger using config file settings.
// Used by long-running services (serve) where INFO level is appropriate.
// Output goes to stdout for daemon/container log collection, and to
// the rotated log file when one is configured.
func (c *CLI) LoggerFromConfig(cfg config.Config) (*slog.Logger, io.Closer, error) {
	format, err := logging.ParseFormat(cfg.Logging.Format)
	if err != nil {
		return nil, nil, err
	}

	return logging.New(logging.Options{
		CLISpec:    c.Log,
		ConfigSpec: cfg.Logging.ToSpec(),
		Format:     format,
		Output:     os.Stdout,
		File:       cfg.Logging.FileOptions(),
	})
}

// Client returns a client appropriate for the configured transport.
// If --remote is set, the client talks to a daemon over gRPC.
// Otherwise the reprogrammer runs in-process over --runtime-dir.
// The returned client must be closed when no longer needed.
func (c *CLI) Client(ctx context.Context) (client.Client, error) {
	logger, closer, err := c.Logger()
	if err != nil {
		return nil, err
	}
	// Stderr logging holds no resources.
	_ = closer

	if c.Remote != "" {
		return client.Dial(c.Remote, client.WithLogger(logger))
	}

	cfg, err := c.LoadConfig()
	if err != nil {
		return nil, err
	}
	return client.Open(ctx,
		client.WithRuntimeDir(c.RuntimeDir),
		client.WithConfig(cfg),
		client.WithLogger(logger),
	)
}

func (c *CLI) out() io.Writer {
	if c.Out == nil {
		return os.Stdout
	}
	return c.Out
}

// WriteOut writes b to the command output, reporting short writes.
func (c *CLI) WriteOut(b []byte) error {
	n, err := c.out().Write(b)
	if err != nil {
		return err
	}
	if n != len(b) {
		return io.ErrShortWrite
	}
	return nil
}

// PrintOut writes s to the command output.
func (c *CLI) PrintOut(s string) error {
	return c.WriteOut([]byte(s))
}

// PrintOutf formats according to a format specifier and writes to the
// command output.
func (c *CLI) PrintOutf(format string, args ...any) error {
	return c.PrintOut(fmt.Sprintf(format, args...))
}
