package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// SetDirectory stores path as the single external directory, replacing any previous one.
func (s *Store) SetDirectory(ctx context.Context, path string) (*DirectoryHandle, error) {
	now := time.Now().UTC()
	_, err := s.execWithRetry(ctx,
		`INSERT INTO directory_handle (slot, path, acquired_at, last_used_at) VALUES (1, ?, ?, ?)
         ON CONFLICT(slot) DO UPDATE SET
            path = excluded.path,
            acquired_at = excluded.acquired_at,
            last_used_at = excluded.last_used_at`,
		path, formatTime(now), formatTime(now),
	)
	if err != nil {
		return nil, fmt.Errorf("set directory: %w", err)
	}
	return &DirectoryHandle{Path: path, AcquiredAt: now, LastUsedAt: now}, nil
}

// Directory returns the active external directory, or nil when none is set.
func (s *Store) Directory(ctx context.Context) (*DirectoryHandle, error) {
	ctx = ensureContext(ctx)
	var path, acquiredRaw, usedRaw string
	err := s.db.QueryRowContext(ctx,
		`SELECT path, acquired_at, last_used_at FROM directory_handle WHERE slot = 1`,
	).Scan(&path, &acquiredRaw, &usedRaw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get directory: %w", err)
	}
	handle := &DirectoryHandle{Path: path}
	if ts, err := parseTimeString(acquiredRaw); err == nil {
		handle.AcquiredAt = ts
	}
	if ts, err := parseTimeString(usedRaw); err == nil {
		handle.LastUsedAt = ts
	}
	return handle, nil
}

// TouchDirectory records that the external directory was just written to.
func (s *Store) TouchDirectory(ctx context.Context) error {
	if _, err := s.execWithRetry(ctx,
		`UPDATE directory_handle SET last_used_at = ? WHERE slot = 1`, formatTime(time.Now()),
	); err != nil {
		return fmt.Errorf("touch directory: %w", err)
	}
	return nil
}

// ClearDirectory releases the external directory slot.
func (s *Store) ClearDirectory(ctx context.Context) error {
	if _, err := s.execWithRetry(ctx, `DELETE FROM directory_handle`); err != nil {
		return fmt.Errorf("clear directory: %w", err)
	}
	return nil
}
