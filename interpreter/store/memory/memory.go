// Package memory provides an in-memory implementation of the flow-entry
// store. Useful for testing and for ephemeral flow tables.
package memory

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/frobware/go-flowreprog"
	"github.com/frobware/go-flowreprog/interpreter"
	"github.com/frobware/go-flowreprog/interpreter/store"
)

// Store implements interpreter.Store in memory.
type Store struct {
	mu      sync.RWMutex
	entries map[string]flowreprog.Entry
}

var _ interpreter.Store = (*Store)(nil)

// New creates a new in-memory store.
func New() *Store {
	return &Store{
		entries: make(map[string]flowreprog.Entry),
	}
}

// Get retrieves an entry by name.
// Returns store.ErrNotFound if the entry does not exist.
func (s *Store) Get(_ context.Context, name string) (flowreprog.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if e, ok := s.entries[name]; ok {
		return e.Clone(), nil
	}
	return flowreprog.Entry{}, fmt.Errorf("entry %q: %w", name, store.ErrNotFound)
}

// Save stores an entry.
func (s *Store) Save(_ context.Context, e flowreprog.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[e.Name] = e.Clone()
	return nil
}

// Delete removes an entry.
func (s *Store) Delete(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.entries, name)
	return nil
}

// List returns all entries ordered by name.
func (s *Store) List(_ context.Context) ([]flowreprog.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]flowreprog.Entry, 0, len(s.entries))
	for _, e := range s.entries {
		result = append(result, e.Clone())
	}
	slices.SortFunc(result, func(a, b flowreprog.Entry) int {
		return strings.Compare(a.Name, b.Name)
	})
	return result, nil
}

// Close is a no-op.
func (s *Store) Close() error {
	return nil
}
