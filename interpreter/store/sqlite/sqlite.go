// Package sqlite provides a SQLite implementation of the flow-entry
// store.
//
// # What Is Stored
//
// The store holds the configured flow-entry set of the reference flow
// table: one row per entry name, with the match and action encoded as
// JSON. It does not hold the reprogrammer's pending requests; those
// live only in process memory and are deliberately lost on restart.
//
// # Calling Conventions
//
// Every method is a single SQL statement executed in autocommit mode,
// so each call is atomic by itself. The flow table calls the store
// from its event loop only, so there is never more than one writer.
//
// The database is opened in WAL mode so that read-only tools (the CLI
// in local mode against a live daemon's database, for example) do not
// block the writer.
//
// # Prepared Statements
//
// All queries are prepared once at open time and reused.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/frobware/go-flowreprog"
	"github.com/frobware/go-flowreprog/interpreter"
	"github.com/frobware/go-flowreprog/interpreter/store"
	"github.com/frobware/go-flowreprog/logging"
)

//go:embed schema.sql
var schemaSQL string

// pragma is a SQLite PRAGMA applied through the DSN.
type pragma struct {
	name  string
	value string
}

func withQuery(path string, q []string) string {
	if len(q) == 0 {
		return path
	}
	return path + "?" + strings.Join(q, "&")
}

// sqliteStore implements interpreter.Store using SQLite.
type sqliteStore struct {
	db     *sql.DB
	logger *slog.Logger

	stmtGetEntry    *sql.Stmt
	stmtSaveEntry   *sql.Stmt
	stmtDeleteEntry *sql.Stmt
	stmtListEntries *sql.Stmt
}

var _ interpreter.Store = (*sqliteStore)(nil)

// New creates a new SQLite store at the given path.
func New(ctx context.Context, dbPath string, logger *slog.Logger) (interpreter.Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "store", "db", dbPath)

	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open(driverName, dsn(dbPath, pragma{"journal_mode", "WAL"}, pragma{"busy_timeout", "5000"}))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s, err := open(ctx, db, logger)
	if err != nil {
		return nil, err
	}
	logger.Info("opened database")
	return s, nil
}

// NewInMemory creates an in-memory SQLite store for testing.
func NewInMemory(ctx context.Context, logger *slog.Logger) (interpreter.Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "store", "db", ":memory:")

	db, err := sql.Open(driverName, dsn(":memory:"))
	if err != nil {
		return nil, fmt.Errorf("failed to open in-memory database: %w", err)
	}
	// Each connection to :memory: is a separate database.
	db.SetMaxOpenConns(1)

	s, err := open(ctx, db, logger)
	if err != nil {
		return nil, err
	}
	logger.Debug("opened in-memory database")
	return s, nil
}

func open(ctx context.Context, db *sql.DB, logger *slog.Logger) (*sqliteStore, error) {
	s := &sqliteStore{db: db, logger: logger}
	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	if err := s.prepareStatements(ctx); err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to prepare statements: %w", err)
	}
	return s, nil
}

func (s *sqliteStore) prepareStatements(ctx context.Context) error {
	var err error

	const sqlGetEntry = `
		SELECT name, priority, match_json, action_json
		FROM flow_entries
		WHERE name = ?`
	if s.stmtGetEntry, err = s.db.PrepareContext(ctx, sqlGetEntry); err != nil {
		return fmt.Errorf("prepare GetEntry: %w", err)
	}

	const sqlSaveEntry = `
		INSERT INTO flow_entries (name, priority, match_json, action_json, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
		  priority = excluded.priority,
		  match_json = excluded.match_json,
		  action_json = excluded.action_json,
		  updated_at = excluded.updated_at`
	if s.stmtSaveEntry, err = s.db.PrepareContext(ctx, sqlSaveEntry); err != nil {
		return fmt.Errorf("prepare SaveEntry: %w", err)
	}

	const sqlDeleteEntry = "DELETE FROM flow_entries WHERE name = ?"
	if s.stmtDeleteEntry, err = s.db.PrepareContext(ctx, sqlDeleteEntry); err != nil {
		return fmt.Errorf("prepare DeleteEntry: %w", err)
	}

	const sqlListEntries = `
		SELECT name, priority, match_json, action_json
		FROM flow_entries
		ORDER BY name`
	if s.stmtListEntries, err = s.db.PrepareContext(ctx, sqlListEntries); err != nil {
		return fmt.Errorf("prepare ListEntries: %w", err)
	}

	return nil
}

// Close closes all prepared statements and the database connection.
func (s *sqliteStore) Close() error {
	for _, stmt := range []*sql.Stmt{s.stmtGetEntry, s.stmtSaveEntry, s.stmtDeleteEntry, s.stmtListEntries} {
		if stmt != nil {
			stmt.Close()
		}
	}
	return s.db.Close()
}

// Get retrieves an entry by name.
// Returns store.ErrNotFound if the entry does not exist.
func (s *sqliteStore) Get(ctx context.Context, name string) (flowreprog.Entry, error) {
	start := time.Now()
	e, err := scanEntry(s.stmtGetEntry.QueryRowContext(ctx, name))
	if errors.Is(err, sql.ErrNoRows) {
		return flowreprog.Entry{}, fmt.Errorf("entry %q: %w", name, store.ErrNotFound)
	}
	if err != nil {
		return flowreprog.Entry{}, fmt.Errorf("get entry %q: %w", name, err)
	}
	s.logger.Log(ctx, logging.LevelTrace.ToSlog(), "sql", "op", "get", "name", name, "took", time.Since(start))
	return e, nil
}

// Save inserts or replaces an entry.
func (s *sqliteStore) Save(ctx context.Context, e flowreprog.Entry) error {
	matchJSON, err := json.Marshal(e.Match)
	if err != nil {
		return fmt.Errorf("marshal match for %q: %w", e.Name, err)
	}
	actionJSON, err := json.Marshal(e.Action)
	if err != nil {
		return fmt.Errorf("marshal action for %q: %w", e.Name, err)
	}
	start := time.Now()
	_, err = s.stmtSaveEntry.ExecContext(ctx, e.Name, int64(e.Priority), string(matchJSON), string(actionJSON),
		time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("save entry %q: %w", e.Name, err)
	}
	s.logger.Log(ctx, logging.LevelTrace.ToSlog(), "sql", "op", "save", "name", e.Name, "took", time.Since(start))
	return nil
}

// Delete removes an entry. Deleting a missing entry is not an error.
func (s *sqliteStore) Delete(ctx context.Context, name string) error {
	if _, err := s.stmtDeleteEntry.ExecContext(ctx, name); err != nil {
		return fmt.Errorf("delete entry %q: %w", name, err)
	}
	s.logger.Log(ctx, logging.LevelTrace.ToSlog(), "sql", "op", "delete", "name", name)
	return nil
}

// List returns all entries ordered by name.
func (s *sqliteStore) List(ctx context.Context) ([]flowreprog.Entry, error) {
	rows, err := s.stmtListEntries.QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	defer rows.Close()

	var entries []flowreprog.Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("list entries: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(row scanner) (flowreprog.Entry, error) {
	var (
		e          flowreprog.Entry
		priority   int64
		matchJSON  string
		actionJSON string
	)
	if err := row.Scan(&e.Name, &priority, &matchJSON, &actionJSON); err != nil {
		return flowreprog.Entry{}, err
	}
	e.Priority = flowreprog.Priority(priority)
	if err := json.Unmarshal([]byte(matchJSON), &e.Match); err != nil {
		return flowreprog.Entry{}, fmt.Errorf("decode match for %q: %w", e.Name, err)
	}
	if err := json.Unmarshal([]byte(actionJSON), &e.Action); err != nil {
		return flowreprog.Entry{}, fmt.Errorf("decode action for %q: %w", e.Name, err)
	}
	return e, nil
}
