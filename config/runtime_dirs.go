package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// RuntimeDirs holds the runtime paths used by flowreprog:
//
//	{base}/          - runtime root
//	{base}/db/       - flow-entry database
//	{base}/.lock     - writer lock file
//	{base}-sock/     - gRPC socket directory
//
// RuntimeDirs is immutable after construction. Use NewRuntimeDirs to
// create one.
type RuntimeDirs struct {
	base string
	db   string
	sock string
	lock string
}

// DefaultRuntimeDirs returns RuntimeDirs rooted at /run/flowreprog.
func DefaultRuntimeDirs() RuntimeDirs {
	dirs, err := NewRuntimeDirs("/run/flowreprog")
	if err != nil {
		panic(fmt.Sprintf("DefaultRuntimeDirs: %v", err))
	}
	return dirs
}

// NewRuntimeDirs derives every path from base, which must be
// absolute.
func NewRuntimeDirs(base string) (RuntimeDirs, error) {
	if base == "" {
		return RuntimeDirs{}, fmt.Errorf("base path cannot be empty")
	}
	if !filepath.IsAbs(base) {
		return RuntimeDirs{}, fmt.Errorf("base path must be absolute, got %q", base)
	}
	base = filepath.Clean(base)
	return RuntimeDirs{
		base: base,
		db:   filepath.Join(base, "db"),
		sock: base + "-sock",
		lock: filepath.Join(base, ".lock"),
	}, nil
}

// Base returns the runtime root.
func (d RuntimeDirs) Base() string { return d.base }

// DB returns the database directory.
func (d RuntimeDirs) DB() string { return d.db }

// Sock returns the socket directory.
func (d RuntimeDirs) Sock() string { return d.sock }

// Lock returns the writer lock file path.
func (d RuntimeDirs) Lock() string { return d.lock }

// DBPath returns the SQLite database file.
func (d RuntimeDirs) DBPath() string {
	return filepath.Join(d.db, "flows.db")
}

// SocketPath returns the gRPC unix socket.
func (d RuntimeDirs) SocketPath() string {
	return filepath.Join(d.sock, "flowreprog.sock")
}

// EnsureDirectories creates the root, database and socket
// directories.
func (d RuntimeDirs) EnsureDirectories() error {
	for _, dir := range []string{d.base, d.db, d.sock} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}
