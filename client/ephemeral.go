package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"sync"
	"time"

	"google.golang.org/grpc"

	"github.com/frobware/go-flowreprog"
	"github.com/frobware/go-flowreprog/compute"
	"github.com/frobware/go-flowreprog/config"
	"github.com/frobware/go-flowreprog/eventloop"
	"github.com/frobware/go-flowreprog/interpreter"
	"github.com/frobware/go-flowreprog/interpreter/store/sqlite"
	"github.com/frobware/go-flowreprog/lock"
	"github.com/frobware/go-flowreprog/server"
)

// ephemeralClient serves an in-process gRPC server on a temporary
// Unix socket and talks to it with a remoteClient, so local commands
// take the same path as remote ones.
//
// The flow table and reprogrammer run on an eventloop.Manual: each
// call drains the scheduler before returning, so hardware latency and
// timeouts elapse in virtual time and every call leaves the table
// quiescent.
type ephemeralClient struct {
	remote     *remoteClient
	store      interpreter.Store
	grpcServer *grpc.Server
	socketDir  string
	wg         sync.WaitGroup
	release    func()
	logger     *slog.Logger
}

var _ Client = (*ephemeralClient)(nil)

func newEphemeral(ctx context.Context, dirs config.RuntimeDirs, cfg config.Config, logger *slog.Logger) (_ *ephemeralClient, err error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := dirs.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("setup runtime: %w", err)
	}

	e := &ephemeralClient{logger: logger}
	defer func() {
		if err != nil {
			e.Close()
		}
	}()

	if e.release, err = holdLock(ctx, dirs.Lock()); err != nil {
		return nil, err
	}

	if e.store, err = sqlite.New(ctx, dirs.DBPath(), logger); err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	sched := eventloop.NewManual(time.Now())
	env, err := server.NewEnv(ctx, sched, e.store, cfg, logger)
	if err != nil {
		return nil, err
	}
	e.grpcServer = server.New(sched, env.Flows, env.Reprogrammer, logger).GRPCServer()

	if e.socketDir, err = os.MkdirTemp("", "flowreprog-ephemeral-"); err != nil {
		return nil, fmt.Errorf("create socket directory: %w", err)
	}
	socketPath := filepath.Join(e.socketDir, "flowreprog.sock")
	listener, err := net.Listen("unix", socketPath)
	if err != nil {
		return nil, fmt.Errorf("listen on socket %s: %w", socketPath, err)
	}

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		if err := e.grpcServer.Serve(listener); err != nil {
			logger.Error("ephemeral server failed", "error", err)
		}
	}()

	if e.remote, err = newRemote(socketPath, logger); err != nil {
		return nil, fmt.Errorf("connect to ephemeral server: %w", err)
	}
	return e, nil
}

// holdLock takes the writer lock on a goroutine that keeps it until
// the returned release function is called.
func holdLock(ctx context.Context, path string) (func(), error) {
	acquired := make(chan struct{})
	released := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- lock.TryRun(ctx, path, func(context.Context, lock.WriterScope) error {
			close(acquired)
			<-released
			return nil
		})
	}()
	select {
	case <-acquired:
		var once sync.Once
		return func() {
			once.Do(func() {
				close(released)
				<-done
			})
		}, nil
	case err := <-done:
		return nil, err
	}
}

// Close shuts down the ephemeral server and releases the lock.
func (e *ephemeralClient) Close() error {
	var errs []error
	if e.remote != nil {
		errs = append(errs, e.remote.Close())
	}
	if e.grpcServer != nil {
		e.grpcServer.GracefulStop()
		e.wg.Wait()
	}
	if e.store != nil {
		errs = append(errs, e.store.Close())
	}
	if e.socketDir != "" {
		if err := os.RemoveAll(e.socketDir); err != nil {
			e.logger.Warn("failed to remove socket directory", "path", e.socketDir, "error", err)
		}
	}
	if e.release != nil {
		e.release()
	}
	return errors.Join(errs...)
}

func (e *ephemeralClient) UpdateFlow(ctx context.Context, entry flowreprog.Entry) (UpdateResult, error) {
	return e.remote.UpdateFlow(ctx, entry)
}

func (e *ephemeralClient) GetFlow(ctx context.Context, name string) (FlowInfo, error) {
	return e.remote.GetFlow(ctx, name)
}

func (e *ephemeralClient) ListFlows(ctx context.Context) ([]FlowInfo, error) {
	return e.remote.ListFlows(ctx)
}

func (e *ephemeralClient) ListPending(ctx context.Context) ([]compute.Request, error) {
	return e.remote.ListPending(ctx)
}

func (e *ephemeralClient) Classify(ctx context.Context, intf string, frame []byte) (ClassifyResult, error) {
	return e.remote.Classify(ctx, intf, frame)
}
