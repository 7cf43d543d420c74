// Package server implements the flowreprog gRPC server.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"github.com/frobware/go-flowreprog/config"
	"github.com/frobware/go-flowreprog/eventloop"
	"github.com/frobware/go-flowreprog/flowtable"
	"github.com/frobware/go-flowreprog/interpreter"
	"github.com/frobware/go-flowreprog/interpreter/store/sqlite"
	"github.com/frobware/go-flowreprog/lock"
	"github.com/frobware/go-flowreprog/metrics"
	"github.com/frobware/go-flowreprog/reprogrammer"
	"github.com/frobware/go-flowreprog/server/rpc"
)

// RunConfig configures the server daemon.
type RunConfig struct {
	Dirs   config.RuntimeDirs
	Config config.Config
	Logger *slog.Logger
	// Registry receives the daemon's collectors. When nil a fresh
	// registry with the Go and process collectors is used.
	Registry *prometheus.Registry
}

// Run starts the flowreprog daemon and blocks until ctx is cancelled
// or a listener fails. It holds the writer lock for the runtime
// directory throughout.
func Run(ctx context.Context, cfg RunConfig) error {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	dirs := cfg.Dirs

	if err := dirs.EnsureDirectories(); err != nil {
		return fmt.Errorf("runtime directory setup failed: %w", err)
	}

	return lock.TryRun(ctx, dirs.Lock(), func(ctx context.Context, scope lock.WriterScope) error {
		logger.Debug("holding writer lock", "path", scope.Path(), "fd", scope.FD())

		st, err := sqlite.New(ctx, dirs.DBPath(), logger)
		if err != nil {
			return fmt.Errorf("failed to open store at %s: %w", dirs.DBPath(), err)
		}
		defer st.Close()

		reg := cfg.Registry
		if reg == nil {
			reg = prometheus.NewRegistry()
			reg.MustRegister(
				collectors.NewGoCollector(),
				collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
			)
		}
		// Only read at scrape time, by which point env is set.
		var env *Env
		m, err := metrics.New(reg, func() int { return env.Reprogrammer.PendingCount() })
		if err != nil {
			return fmt.Errorf("register metrics: %w", err)
		}

		loop := eventloop.New(eventloop.WithLogger(logger))
		env, err = NewEnv(ctx, loop, st, cfg.Config, logger, reprogrammer.WithRecorder(m))
		if err != nil {
			return err
		}

		srv := New(loop, env.Flows, env.Reprogrammer, logger)
		return srv.serve(ctx, loop, dirs.SocketPath(), cfg.Config.Server, reg)
	})
}

// Env is a flow table and the reprogrammer watching it, sharing one
// scheduler.
type Env struct {
	Flows        *flowtable.Table
	Reprogrammer *reprogrammer.Reprogrammer
}

// NewEnv builds the flow table over st and a reprogrammer for it, both
// configured from cfg and driven by sched. Extra options are applied
// to the reprogrammer after the configured ones.
func NewEnv(ctx context.Context, sched interpreter.Scheduler, st interpreter.Store, cfg config.Config, logger *slog.Logger, opts ...reprogrammer.Option) (*Env, error) {
	policy, err := cfg.Reprogrammer.Overflow()
	if err != nil {
		return nil, err
	}
	flows, err := flowtable.Open(ctx, sched, st,
		flowtable.WithCapacity(cfg.FlowTable.Capacity),
		flowtable.WithLatency(cfg.FlowTable.Latency),
		flowtable.WithLogger(logger),
	)
	if err != nil {
		return nil, fmt.Errorf("open flow table: %w", err)
	}
	rpOpts := append([]reprogrammer.Option{
		reprogrammer.WithLogger(logger),
		reprogrammer.WithTimeout(cfg.Reprogrammer.Timeout),
		reprogrammer.WithOverflowPolicy(policy),
	}, opts...)
	return &Env{
		Flows:        flows,
		Reprogrammer: reprogrammer.New(flows, sched, rpOpts...),
	}, nil
}

// serve runs the event loop, the gRPC listeners and the metrics
// endpoint until ctx is cancelled or one of them fails.
func (s *Server) serve(ctx context.Context, loop *eventloop.Loop, socketPath string, cfg config.ServerConfig, reg *prometheus.Registry) error {
	if err := os.MkdirAll(filepath.Dir(socketPath), 0755); err != nil {
		return fmt.Errorf("failed to create socket directory: %w", err)
	}
	if err := os.RemoveAll(socketPath); err != nil {
		return fmt.Errorf("failed to remove existing socket: %w", err)
	}
	unixListener, err := net.Listen("unix", socketPath)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", socketPath, err)
	}
	if err := os.Chmod(socketPath, 0660); err != nil {
		unixListener.Close()
		return fmt.Errorf("failed to set socket permissions: %w", err)
	}

	var tcpListener net.Listener
	if cfg.TCPAddress != "" {
		if tcpListener, err = net.Listen("tcp", cfg.TCPAddress); err != nil {
			unixListener.Close()
			return fmt.Errorf("failed to listen on TCP %s: %w", cfg.TCPAddress, err)
		}
	}

	var metricsListener net.Listener
	if cfg.MetricsAddress != "" {
		if metricsListener, err = net.Listen("tcp", cfg.MetricsAddress); err != nil {
			unixListener.Close()
			if tcpListener != nil {
				tcpListener.Close()
			}
			return fmt.Errorf("failed to listen on metrics address %s: %w", cfg.MetricsAddress, err)
		}
	}

	grpcServer := s.GRPCServer()
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	httpServer := &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return loop.Run(gctx)
	})
	g.Go(func() error {
		s.logger.InfoContext(gctx, "gRPC server listening", "socket", socketPath)
		if err := grpcServer.Serve(unixListener); err != nil {
			return fmt.Errorf("unix socket server: %w", err)
		}
		return nil
	})
	if tcpListener != nil {
		g.Go(func() error {
			s.logger.InfoContext(gctx, "gRPC server listening", "tcp", tcpListener.Addr().String())
			if err := grpcServer.Serve(tcpListener); err != nil {
				return fmt.Errorf("tcp server: %w", err)
			}
			return nil
		})
	}
	if metricsListener != nil {
		g.Go(func() error {
			s.logger.InfoContext(gctx, "metrics endpoint listening", "address", metricsListener.Addr().String())
			if err := httpServer.Serve(metricsListener); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
	} else {
		s.logger.Info("metrics endpoint disabled")
	}
	g.Go(func() error {
		<-gctx.Done()
		s.logger.Info("shutting down")
		// In-flight calls blocked on the stopped loop return
		// ErrStopped, so GracefulStop does not hang.
		grpcServer.GracefulStop()
		return httpServer.Close()
	})
	return g.Wait()
}

// GRPCServer returns a grpc.Server with the Reprogrammer service
// registered and the logging interceptor installed.
func (s *Server) GRPCServer(opts ...grpc.ServerOption) *grpc.Server {
	opts = append([]grpc.ServerOption{grpc.UnaryInterceptor(s.loggingInterceptor())}, opts...)
	gs := grpc.NewServer(opts...)
	rpc.RegisterReprogrammerServer(gs, s)
	return gs
}

// loggingInterceptor logs every call at debug and failures at warn.
func (s *Server) loggingInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		if err != nil {
			s.logger.WarnContext(ctx, "grpc error", "method", info.FullMethod, "error", err, "took", time.Since(start))
		} else {
			s.logger.DebugContext(ctx, "grpc request", "method", info.FullMethod, "took", time.Since(start))
		}
		return resp, err
	}
}
