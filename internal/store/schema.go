package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
)

//go:embed schema.sql
var baseSchema string

// migrations[v] moves a database from version v-1 to v. Entry 1 creates the
// base tables, including schema_version itself.
var migrations = []string{
	1: baseSchema,
	2: `CREATE INDEX IF NOT EXISTS idx_metadata_updated ON metadata(updated_at DESC, identity)`,
}

func schemaVersion() int { return len(migrations) - 1 }

// ErrSchemaMismatch means the database was written by a newer tabshot.
var ErrSchemaMismatch = errors.New("schema version mismatch")

// migrate brings the database up to schemaVersion one step at a time. Each
// step commits with its version so an interrupted upgrade resumes cleanly.
func (s *Store) migrate(ctx context.Context) error {
	current, err := s.currentVersion(ctx)
	if err != nil {
		return err
	}
	if current > schemaVersion() {
		return fmt.Errorf("%w: database has version %d, this build supports %d (upgrade tabshot or restore a backup into a new database)",
			ErrSchemaMismatch, current, schemaVersion())
	}
	for v := current + 1; v <= schemaVersion(); v++ {
		if err := s.applyMigration(ctx, v); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) currentVersion(ctx context.Context) (int, error) {
	var tables int
	if err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tables); err != nil {
		return 0, fmt.Errorf("check schema_version table: %w", err)
	}
	if tables == 0 {
		return 0, nil
	}
	var version int
	err := s.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("%w: schema_version table is empty", ErrSchemaMismatch)
	}
	if err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	return version, nil
}

func (s *Store) applyMigration(ctx context.Context, version int) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin migration %d: %w", version, err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, migrations[version]); err != nil {
		return fmt.Errorf("apply migration %d: %w", version, err)
	}
	record := "UPDATE schema_version SET version = ?"
	if version == 1 {
		record = "INSERT INTO schema_version (version) VALUES (?)"
	}
	if _, err := tx.ExecContext(ctx, record, version); err != nil {
		return fmt.Errorf("record schema version %d: %w", version, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migration %d: %w", version, err)
	}
	return nil
}
