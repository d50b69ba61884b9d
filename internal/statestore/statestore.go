// Package statestore persists script state snapshots per connector so a
// restarted process resumes with the state the script left behind.
// Uses SQLite with WAL mode.
package statestore

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/quellstream/quell/internal/value"
)

//go:embed schema.sql
var schemaSQL string

// Store holds one SQLite handle.
type Store struct {
	db *sql.DB
}

// Open creates or opens the state database at path. Applies pragmas and
// the schema; idempotent.
//
// The database is configured with:
//   - WAL mode for concurrent reads during writes
//   - NORMAL synchronous mode
//   - 5-second busy timeout for lock contention
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open state database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect to state database: %w", err)
	}

	// SQLite supports one writer at a time; a single connection avoids
	// SQLITE_BUSY errors.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, err
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database handle.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("execute %q: %w", pragma, err)
		}
	}
	return nil
}

// Save upserts the state snapshot for a connector.
func (s *Store) Save(ctx context.Context, connector string, state value.Value, nowNs uint64) error {
	data, err := value.MarshalJSON(state)
	if err != nil {
		return fmt.Errorf("marshal state for %s: %w", connector, err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO script_state (connector, state, updated_ns)
		VALUES (?, ?, ?)
		ON CONFLICT(connector) DO UPDATE SET
			state = excluded.state,
			updated_ns = excluded.updated_ns`,
		connector, string(data), int64(nowNs))
	if err != nil {
		return fmt.Errorf("save state for %s: %w", connector, err)
	}
	return nil
}

// Load reads the state snapshot for a connector. The second return is
// false when no snapshot exists.
func (s *Store) Load(ctx context.Context, connector string) (value.Value, bool, error) {
	var data string
	err := s.db.QueryRowContext(ctx,
		`SELECT state FROM script_state WHERE connector = ?`, connector).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("load state for %s: %w", connector, err)
	}
	v, err := value.FromJSON([]byte(data))
	if err != nil {
		return nil, false, fmt.Errorf("decode state for %s: %w", connector, err)
	}
	return v, true, nil
}

// Delete removes a connector's snapshot. Deleting a missing snapshot is
// not an error.
func (s *Store) Delete(ctx context.Context, connector string) error {
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM script_state WHERE connector = ?`, connector); err != nil {
		return fmt.Errorf("delete state for %s: %w", connector, err)
	}
	return nil
}
