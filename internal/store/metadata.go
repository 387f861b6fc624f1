package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Get returns the metadata record for identity, or nil when none exists.
func (s *Store) Get(ctx context.Context, identity string) (*Record, error) {
	ctx = ensureContext(ctx)
	row := s.db.QueryRowContext(ctx, `SELECT `+recordColumns+` FROM metadata WHERE identity = ?`, identity)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get metadata: %w", err)
	}
	return rec, nil
}

// All returns every metadata record keyed by identity.
func (s *Store) All(ctx context.Context) (map[string]Record, error) {
	records, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string]Record, len(records))
	for _, rec := range records {
		out[rec.Identity] = rec
	}
	return out, nil
}

// List returns metadata records, most recently updated first. When statuses
// are given only records in those statuses are returned.
func (s *Store) List(ctx context.Context, statuses ...Status) ([]Record, error) {
	ctx = ensureContext(ctx)
	query := `SELECT ` + recordColumns + ` FROM metadata`
	args := make([]any, 0, len(statuses))
	if len(statuses) > 0 {
		placeholders := make([]string, len(statuses))
		for i, status := range statuses {
			placeholders[i] = "?"
			args = append(args, string(status))
		}
		query += ` WHERE status IN (` + strings.Join(placeholders, ",") + `)`
	}
	query += ` ORDER BY updated_at DESC, identity`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list metadata: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan metadata: %w", err)
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

// Set upserts rec. The last write for an identity wins.
func (s *Store) Set(ctx context.Context, rec Record) error {
	if strings.TrimSpace(rec.Identity) == "" {
		return errors.New("set metadata: identity is required")
	}
	if rec.Status == "" {
		rec.Status = StatusNone
	}
	updated := rec.UpdatedAt
	if updated.IsZero() {
		updated = time.Now()
	}
	_, err := s.execWithRetry(ctx,
		`INSERT INTO metadata (identity, source_url, title, status, filename, last_capture_at, error_detail, updated_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?)
         ON CONFLICT(identity) DO UPDATE SET
            source_url = excluded.source_url,
            title = excluded.title,
            status = excluded.status,
            filename = excluded.filename,
            last_capture_at = excluded.last_capture_at,
            error_detail = excluded.error_detail,
            updated_at = excluded.updated_at`,
		rec.Identity,
		rec.SourceURL,
		nullableString(rec.Title),
		string(rec.Status),
		nullableString(rec.Filename),
		nullableTime(rec.LastCaptureAt),
		nullableString(rec.ErrorDetail),
		formatTime(updated),
	)
	if err != nil {
		return fmt.Errorf("set metadata: %w", err)
	}
	return nil
}

// Remove deletes the metadata record for identity. Missing records are not an error.
func (s *Store) Remove(ctx context.Context, identity string) error {
	if _, err := s.execWithRetry(ctx, `DELETE FROM metadata WHERE identity = ?`, identity); err != nil {
		return fmt.Errorf("remove metadata: %w", err)
	}
	return nil
}

// FindByFilename returns the record that owns an external file name, or nil.
func (s *Store) FindByFilename(ctx context.Context, filename string) (*Record, error) {
	ctx = ensureContext(ctx)
	row := s.db.QueryRowContext(ctx,
		`SELECT `+recordColumns+` FROM metadata WHERE filename = ? ORDER BY updated_at DESC LIMIT 1`, filename)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find by filename: %w", err)
	}
	return rec, nil
}

// Stats counts records per status.
func (s *Store) Stats(ctx context.Context) (StatusCounts, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM metadata GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("metadata stats: %w", err)
	}
	defer rows.Close()

	counts := make(StatusCounts, len(allStatuses))
	for rows.Next() {
		var (
			status string
			count  int
		)
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("scan stats: %w", err)
		}
		counts[Status(status)] = count
	}
	return counts, rows.Err()
}
