// Package tokens keeps the ownership tokens a guest received for their
// uploads, as an ordered set in a local SQLite file.
package tokens

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS ownership_tokens (
  seq          INTEGER PRIMARY KEY AUTOINCREMENT,
  token        TEXT    NOT NULL UNIQUE,
  photo_id     INTEGER NOT NULL,
  added_at     TIMESTAMP NOT NULL,
  submitted_at TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_ownership_tokens_photo ON ownership_tokens (photo_id);`

// Files written before submitted_at existed get the column added on open.
const addSubmittedAt = `ALTER TABLE ownership_tokens ADD COLUMN submitted_at TIMESTAMP`

// Entry is one remembered token.
type Entry struct {
	PhotoID int64
	Token   string
	// SubmittedAt is the photo's server timestamp, which starts the edit
	// window. Zero for entries written by older versions.
	SubmittedAt time.Time
	AddedAt     time.Time
}

const entryColumns = `photo_id, token, submitted_at, added_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (Entry, error) {
	var e Entry
	var submitted sql.NullTime
	if err := row.Scan(&e.PhotoID, &e.Token, &submitted, &e.AddedAt); err != nil {
		return Entry{}, err
	}
	if submitted.Valid {
		e.SubmittedAt = submitted.Time
	}
	return e, nil
}

// Store is an append-only ordered set of tokens. Separate processes may share
// the same file; SQLite serialises their writes.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the token file at path. ":memory:" gives a private
// in-process store.
func Open(ctx context.Context, path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("token store path is required")
	}
	dsn := path
	if path != ":memory:" {
		dsn = "file:" + path + "?_busy_timeout=5000&_journal_mode=WAL"
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open token store: %w", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate token store: %w", err)
	}
	if _, err := db.ExecContext(ctx, addSubmittedAt); err != nil && !strings.Contains(err.Error(), "duplicate column") {
		_ = db.Close()
		return nil, fmt.Errorf("migrate token store: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Add remembers token for photoID together with the photo's server
// timestamp. Adding a known token is a no-op.
func (s *Store) Add(ctx context.Context, photoID int64, token string, submittedAt time.Time) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return errors.New("token is required")
	}
	if submittedAt.IsZero() {
		return errors.New("photo timestamp is required")
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO ownership_tokens (token, photo_id, submitted_at, added_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(token) DO NOTHING`,
		token, photoID, submittedAt.UTC(), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("add token: %w", err)
	}
	return nil
}

// Has reports whether token is in the set.
func (s *Store) Has(ctx context.Context, token string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM ownership_tokens WHERE token = ?`, token).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("lookup token: %w", err)
	}
	return true, nil
}

// TokenFor returns the entry remembered for photoID.
func (s *Store) TokenFor(ctx context.Context, photoID int64) (Entry, bool, error) {
	e, err := scanEntry(s.db.QueryRowContext(ctx,
		`SELECT `+entryColumns+` FROM ownership_tokens WHERE photo_id = ? ORDER BY seq DESC LIMIT 1`,
		photoID))
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, fmt.Errorf("lookup photo token: %w", err)
	}
	return e, true, nil
}

// List returns every entry in insertion order.
func (s *Store) List(ctx context.Context) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+entryColumns+` FROM ownership_tokens ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("list tokens: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan token row: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate token rows: %w", err)
	}
	return out, nil
}
