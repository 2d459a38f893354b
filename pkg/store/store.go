// Package store persists entry hierarchies and their workflow logs to SQLite.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // pure go sqlite driver

	"atlasroi/pkg/hierarchy"
)

// DefaultPath is used when no database path is configured
const DefaultPath = "atlasroi.db"

var schema = []string{
	`CREATE TABLE IF NOT EXISTS hierarchies (
		entry TEXT PRIMARY KEY,
		payload BLOB NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS workflow_steps (
		id TEXT PRIMARY KEY,
		entry TEXT NOT NULL,
		seq INTEGER NOT NULL,
		name TEXT NOT NULL,
		command TEXT NOT NULL,
		params BLOB NOT NULL,
		created TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS workflow_steps_entry ON workflow_steps(entry, seq)`,
}

// Store keeps one JSON snapshot of the object hierarchy per image entry
type Store struct {
	db     *sql.DB
	mu     sync.Mutex
	path   string
	logger *slog.Logger
}

// NewStore opens or creates the database at path
func NewStore(path string, logger *slog.Logger) (*Store, error) {
	if path == "" {
		path = DefaultPath
	}
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("create dirs: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("create tables: %w", err)
		}
	}
	return &Store{db: db, path: path, logger: logger}, nil
}

// Load returns the stored hierarchy of an entry. An unknown entry yields an
// empty hierarchy.
func (s *Store) Load(ctx context.Context, entry string) (*hierarchy.Hierarchy, error) {
	h := hierarchy.New()

	var payload []byte
	err := s.db.QueryRowContext(ctx, `SELECT payload FROM hierarchies WHERE entry = ?`, entry).Scan(&payload)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		s.logger.Debug("No stored hierarchy", slog.String("entry", entry))
	case err != nil:
		return nil, fmt.Errorf("select hierarchy %s: %w", entry, err)
	default:
		var records []record
		if err := json.Unmarshal(payload, &records); err != nil {
			return nil, fmt.Errorf("decode hierarchy %s: %w", entry, err)
		}
		tops, err := rebuild(records)
		if err != nil {
			return nil, fmt.Errorf("decode hierarchy %s: %w", entry, err)
		}
		h.AddObjects(tops...)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, command, params, created FROM workflow_steps WHERE entry = ? ORDER BY seq`, entry)
	if err != nil {
		return nil, fmt.Errorf("select workflow %s: %w", entry, err)
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var (
			id, created string
			params      []byte
			step        hierarchy.WorkflowStep
		)
		if err := rows.Scan(&id, &step.Name, &step.Command, &params, &created); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		if step.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("workflow step id %q: %w", id, err)
		}
		if err := json.Unmarshal(params, &step.Params); err != nil {
			return nil, fmt.Errorf("decode workflow step %s: %w", id, err)
		}
		if step.Created, err = time.Parse(time.RFC3339Nano, created); err != nil {
			return nil, fmt.Errorf("workflow step %s time: %w", id, err)
		}
		h.Workflow().AddStep(step)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return h, nil
}

// Save replaces the stored hierarchy and workflow log of an entry in a
// single transaction
func (s *Store) Save(ctx context.Context, entry string, h *hierarchy.Hierarchy) (retErr error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.Marshal(flatten(h.TopLevel()))
	if err != nil {
		return fmt.Errorf("encode hierarchy %s: %w", entry, err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if retErr != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO hierarchies(entry,payload) VALUES(?,?) ON CONFLICT(entry) DO UPDATE SET payload=excluded.payload`,
		entry, data); err != nil {
		return fmt.Errorf("upsert hierarchy %s: %w", entry, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM workflow_steps WHERE entry = ?`, entry); err != nil {
		return fmt.Errorf("clear workflow %s: %w", entry, err)
	}
	for i, step := range h.Workflow().Steps() {
		params, err := json.Marshal(step.Params)
		if err != nil {
			return fmt.Errorf("encode workflow step %s: %w", step.ID, err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO workflow_steps(id,entry,seq,name,command,params,created) VALUES(?,?,?,?,?,?,?)`,
			step.ID.String(), entry, i, step.Name, step.Command, params,
			step.Created.UTC().Format(time.RFC3339Nano)); err != nil {
			return fmt.Errorf("insert workflow step %s: %w", step.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	s.logger.Debug("Saved hierarchy", slog.String("entry", entry), slog.Int("objects", h.Count()))
	return nil
}

// Entries lists the ids of every stored entry
func (s *Store) Entries(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT entry FROM hierarchies ORDER BY entry`)
	if err != nil {
		return nil, fmt.Errorf("select entries: %w", err)
	}
	defer func() { _ = rows.Close() }()
	var out []string
	for rows.Next() {
		var e string
		if err := rows.Scan(&e); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Close releases the database
func (s *Store) Close() error { return s.db.Close() }

// Path returns the database path
func (s *Store) Path() string { return s.path }
