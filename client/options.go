package client

import (
	"context"
	"log/slog"

	"github.com/frobware/go-flowreprog/config"
	"github.com/frobware/go-flowreprog/logging"
)

// DefaultSocketPath returns the socket of a daemon using the default
// runtime directory.
func DefaultSocketPath() string {
	return config.DefaultRuntimeDirs().SocketPath()
}

// Option configures client behaviour.
type Option interface {
	applyDial(*dialOptions)
	applyOpen(*openOptions)
}

type dialOptions struct {
	logger *slog.Logger
}

type openOptions struct {
	logger *slog.Logger
	path   string
	config config.Config
}

type funcOption struct {
	dial func(*dialOptions)
	open func(*openOptions)
}

func (f *funcOption) applyDial(o *dialOptions) {
	if f.dial != nil {
		f.dial(o)
	}
}

func (f *funcOption) applyOpen(o *openOptions) {
	if f.open != nil {
		f.open(o)
	}
}

// WithLogger sets the logger for client operations. The default
// discards everything.
func WithLogger(l *slog.Logger) Option {
	return &funcOption{
		dial: func(o *dialOptions) { o.logger = l },
		open: func(o *openOptions) { o.logger = l },
	}
}

// WithRuntimeDir sets the runtime directory for Open. It has no effect
// on Dial.
func WithRuntimeDir(path string) Option {
	return &funcOption{
		open: func(o *openOptions) { o.path = path },
	}
}

// WithConfig sets the configuration for Open. The default is the
// embedded configuration. It has no effect on Dial.
func WithConfig(cfg config.Config) Option {
	return &funcOption{
		open: func(o *openOptions) { o.config = cfg },
	}
}

// Dial connects to a flowreprog daemon. The address can be:
//   - "host:port" for TCP
//   - "unix:///path/to/socket" or "/path/to/socket" for a Unix socket
//
// The returned client must be closed when no longer needed.
func Dial(address string, opts ...Option) (Client, error) {
	o := &dialOptions{logger: logging.Discard()}
	for _, opt := range opts {
		opt.applyDial(o)
	}
	c, err := newRemote(address, o.logger)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// Open creates a client that runs the flow table and reprogrammer
// in-process over the runtime directory's database. It holds the
// directory's writer lock until Close, so it fails if a daemon owns
// the directory.
//
// The returned client must be closed when no longer needed.
func Open(ctx context.Context, opts ...Option) (Client, error) {
	o := &openOptions{
		logger: logging.Discard(),
		config: config.DefaultConfig(),
	}
	for _, opt := range opts {
		opt.applyOpen(o)
	}

	dirs := config.DefaultRuntimeDirs()
	if o.path != "" {
		var err error
		if dirs, err = config.NewRuntimeDirs(o.path); err != nil {
			return nil, err
		}
	}
	c, err := newEphemeral(ctx, dirs, o.config, o.logger)
	if err != nil {
		return nil, err
	}
	return c, nil
}
