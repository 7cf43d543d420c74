// Package lock provides a cross-process writer lock using flock(2) to
// protect mutations of the flow-entry database under the runtime
// directory.
//
// The daemon holds the lock for its whole lifetime. The CLI in local
// mode holds it for the duration of one command, so a local command
// against a directory owned by a running daemon fails fast (or waits,
// if its context allows) rather than racing the daemon's writes.
//
// Proof of the lock is a WriterScope, which is only obtained by
// running code under Run or TryRun.
package lock

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"golang.org/x/sys/unix"
)

// ErrHeld is returned by TryRun when another process holds the lock.
var ErrHeld = errors.New("writer lock is held by another process")

// WriterScope represents the region in which the writer lock is held.
// It cannot be implemented outside this package.
type WriterScope interface {
	// Path returns the lock file path.
	Path() string

	// FD returns the raw lock file descriptor, for diagnostics.
	FD() int

	writerScopeMarker()
}

type writerScope struct {
	f *os.File
}

func (*writerScope) writerScopeMarker() {}

func (s *writerScope) Path() string { return s.f.Name() }

func (s *writerScope) FD() int { return int(s.f.Fd()) }

// Run acquires the writer lock, executes fn, then releases it. It
// polls with LOCK_EX|LOCK_NB and exponential backoff until the lock
// is free or ctx is done.
func Run(ctx context.Context, lockPath string, fn func(context.Context, WriterScope) error) error {
	f, err := acquire(ctx, lockPath, true)
	if err != nil {
		return err
	}
	defer f.Close()

	return fn(ctx, &writerScope{f: f})
}

// TryRun is Run without waiting: it returns ErrHeld at once if the
// lock is taken.
func TryRun(ctx context.Context, lockPath string, fn func(context.Context, WriterScope) error) error {
	f, err := acquire(ctx, lockPath, false)
	if err != nil {
		return err
	}
	defer f.Close()

	return fn(ctx, &writerScope{f: f})
}

func acquire(ctx context.Context, path string, wait bool) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|unix.O_CLOEXEC, 0600)
	if err != nil {
		return nil, fmt.Errorf("open lock file: %w", err)
	}

	backoff := 25 * time.Millisecond
	const maxBackoff = 500 * time.Millisecond

	for {
		err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB)
		if err == nil {
			return f, nil
		}
		if !errors.Is(err, unix.EWOULDBLOCK) {
			f.Close()
			return nil, fmt.Errorf("flock %s: %w", path, err)
		}
		if !wait {
			f.Close()
			return nil, fmt.Errorf("%s: %w", path, ErrHeld)
		}

		select {
		case <-ctx.Done():
			f.Close()
			return nil, ctx.Err()
		case <-time.After(backoff):
		}

		if backoff < maxBackoff {
			backoff *= 2
		}
	}
}
