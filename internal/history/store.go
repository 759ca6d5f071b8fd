// Package history records every fetch attempt in SQLite so past downloads
// can be listed. Links are stored redacted; keys never reach the database.
package history

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
)

const (
	StatusResolving   = "resolving"
	StatusDownloading = "downloading"
	StatusCompleted   = "completed"
	StatusFailed      = "failed"
)

type Entry struct {
	ID          int64
	RunID       string
	Link        string
	FileID      string
	Filename    sql.NullString
	SizeBytes   sql.NullInt64
	Status      string
	ErrorCode   sql.NullString
	Error       sql.NullString
	Location    sql.NullString
	CreatedAt   string
	UpdatedAt   string
	CompletedAt sql.NullString
}

// Store wraps DB access for fetch entries.
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

const selectColumns = `
SELECT id, run_id, link, file_id, filename, size_bytes, status, error_code, error, location,
       created_at, updated_at, completed_at
FROM fetches`

func now() string {
	return time.Now().UTC().Format(time.RFC3339)
}

func (s *Store) Begin(ctx context.Context, link, fileID string) (int64, error) {
	ts := now()
	res, err := s.db.ExecContext(ctx, `
INSERT INTO fetches (run_id, link, file_id, status, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?)
`, uuid.NewString(), link, fileID, StatusResolving, ts, ts)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (s *Store) Resolved(ctx context.Context, id int64, filename string, size int64) error {
	_, err := s.db.ExecContext(ctx, `
UPDATE fetches SET filename = ?, size_bytes = ?, status = ?, updated_at = ? WHERE id = ?
`, filename, size, StatusDownloading, now(), id)
	return err
}

func (s *Store) Complete(ctx context.Context, id int64, location string) error {
	ts := now()
	_, err := s.db.ExecContext(ctx, `
UPDATE fetches
SET status = ?, location = ?, error_code = NULL, error = NULL, updated_at = ?, completed_at = ?
WHERE id = ?
`, StatusCompleted, location, ts, ts, id)
	return err
}

func (s *Store) Fail(ctx context.Context, id int64, code, msg string) error {
	_, err := s.db.ExecContext(ctx, `
UPDATE fetches SET status = ?, error_code = ?, error = ?, updated_at = ? WHERE id = ?
`, StatusFailed, code, msg, now(), id)
	return err
}

func (s *Store) Get(ctx context.Context, id int64) (*Entry, error) {
	row := s.db.QueryRowContext(ctx, selectColumns+` WHERE id = ?`, id)
	var e Entry
	if err := scanEntry(row, &e); err != nil {
		return nil, err
	}
	return &e, nil
}

// List returns the newest entries first. limit <= 0 means all.
func (s *Store) List(ctx context.Context, limit int) ([]Entry, error) {
	query := selectColumns + ` ORDER BY id DESC`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Entry
	for rows.Next() {
		var e Entry
		if err := scanEntry(rows, &e); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *Store) Clear(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx, `DELETE FROM fetches`); err != nil {
		return err
	}
	var seqName string
	if err := tx.QueryRowContext(ctx, `SELECT name FROM sqlite_master WHERE type='table' AND name='sqlite_sequence'`).Scan(&seqName); err == nil {
		if _, err := tx.ExecContext(ctx, `DELETE FROM sqlite_sequence WHERE name = 'fetches'`); err != nil {
			return err
		}
	}
	return tx.Commit()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(sc scanner, e *Entry) error {
	return sc.Scan(
		&e.ID, &e.RunID, &e.Link, &e.FileID, &e.Filename, &e.SizeBytes, &e.Status,
		&e.ErrorCode, &e.Error, &e.Location, &e.CreatedAt, &e.UpdatedAt, &e.CompletedAt,
	)
}
