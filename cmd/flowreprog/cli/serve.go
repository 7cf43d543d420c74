package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/frobware/go-flowreprog/server"
)

// ServeCmd starts the gRPC daemon.
type ServeCmd struct {
	TCPAddress     string `name:"tcp-address" help:"TCP address for the gRPC server; overrides the config file. Use 'none' to disable."`
	MetricsAddress string `name:"metrics-address" help:"Address for the Prometheus /metrics endpoint; overrides the config file. Use 'none' to disable."`
}

// Run executes the serve command.
func (c *ServeCmd) Run(cli *CLI) error {
	appConfig, err := cli.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if c.TCPAddress != "" {
		appConfig.Server.TCPAddress = disabled(c.TCPAddress)
	}
	if c.MetricsAddress != "" {
		appConfig.Server.MetricsAddress = disabled(c.MetricsAddress)
	}

	logger, closer, err := cli.LoggerFromConfig(appConfig)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer closer.Close()

	dirs, err := cli.RuntimeDirs()
	if err != nil {
		return err
	}

	cfg := server.RunConfig{
		Dirs:   dirs,
		Config: appConfig,
		Logger: logger,
	}

	// Create context that cancels on SIGINT/SIGTERM
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	return server.Run(ctx, cfg)
}

func disabled(addr string) string {
	if addr == "none" {
		return ""
	}
	return addr
}
