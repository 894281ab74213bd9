// Package sqlite provides a durable transcript.Backend on SQLite using the
// pure-Go modernc.org/sqlite driver. Only sealed bytes and obscured user
// references are written to disk.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/hupe1980/sessionmesh/transcript"

	_ "modernc.org/sqlite"
)

// Backend implements transcript.Backend.
type Backend struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path and applies the
// schema. The parent directory is created when missing.
func Open(path string) (*Backend, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("create database dir: %w", err)
		}
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// SQLite serializes writers; a single connection keeps per-session
	// insertion order trivially linear.
	db.SetMaxOpenConns(1)

	b := &Backend{db: db}
	if err := b.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return b, nil
}

func (b *Backend) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS sessions (
		id         TEXT PRIMARY KEY,
		user_ref   TEXT NOT NULL,
		created_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS interactions (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL REFERENCES sessions(id),
		user_ref   TEXT NOT NULL,
		input      BLOB NOT NULL,
		response   BLOB NOT NULL,
		created_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS summaries (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL,
		user_ref   TEXT NOT NULL,
		content    BLOB NOT NULL,
		created_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_interactions_session ON interactions(user_ref, session_id);
	CREATE INDEX IF NOT EXISTS idx_summaries_user ON summaries(user_ref);
	`
	_, err := b.db.Exec(schema)
	return err
}

// AppendInteraction implements transcript.Backend.
func (b *Backend) AppendInteraction(ctx context.Context, userRef, sessionID string, rec transcript.SealedInteraction) error {
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	now := time.Now().UTC()
	if _, err := tx.ExecContext(ctx,
		"INSERT OR IGNORE INTO sessions (id, user_ref, created_at) VALUES (?, ?, ?)",
		sessionID, userRef, now,
	); err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO interactions (session_id, user_ref, input, response, created_at) VALUES (?, ?, ?, ?, ?)",
		sessionID, userRef, rec.Input, rec.Response, now,
	); err != nil {
		return fmt.Errorf("insert interaction: %w", err)
	}
	return tx.Commit()
}

// Interactions implements transcript.Backend.
func (b *Backend) Interactions(ctx context.Context, userRef, sessionID string) ([]transcript.SealedInteraction, error) {
	rows, err := b.db.QueryContext(ctx,
		"SELECT input, response FROM interactions WHERE user_ref = ? AND session_id = ? ORDER BY id ASC",
		userRef, sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("query interactions: %w", err)
	}
	defer rows.Close()

	var out []transcript.SealedInteraction
	for rows.Next() {
		var rec transcript.SealedInteraction
		if err := rows.Scan(&rec.Input, &rec.Response); err != nil {
			return nil, fmt.Errorf("scan interaction: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// PutSummary implements transcript.Backend.
func (b *Backend) PutSummary(ctx context.Context, userRef, sessionID string, content []byte) error {
	_, err := b.db.ExecContext(ctx,
		"INSERT INTO summaries (session_id, user_ref, content, created_at) VALUES (?, ?, ?, ?)",
		sessionID, userRef, content, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert summary: %w", err)
	}
	return nil
}

// LatestSummary implements transcript.Backend.
func (b *Backend) LatestSummary(ctx context.Context, userRef string) (transcript.SealedSummary, bool, error) {
	var s transcript.SealedSummary
	err := b.db.QueryRowContext(ctx,
		"SELECT session_id, content FROM summaries WHERE user_ref = ? ORDER BY id DESC LIMIT 1",
		userRef,
	).Scan(&s.SessionID, &s.Content)
	if errors.Is(err, sql.ErrNoRows) {
		return transcript.SealedSummary{}, false, nil
	}
	if err != nil {
		return transcript.SealedSummary{}, false, fmt.Errorf("query summary: %w", err)
	}
	return s, true, nil
}

// Sessions returns the IDs of every session stored for userRef, oldest first.
func (b *Backend) Sessions(ctx context.Context, userRef string) ([]string, error) {
	rows, err := b.db.QueryContext(ctx,
		"SELECT id FROM sessions WHERE user_ref = ? ORDER BY created_at ASC, rowid ASC",
		userRef,
	)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Close implements transcript.Backend.
func (b *Backend) Close() error {
	return b.db.Close()
}
