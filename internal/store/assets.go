package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// AssetTable stores thumbnail assets keyed by identity in one table.
type AssetTable struct {
	store *Store
	table string
}

// Thumbnails returns the embedded asset table.
func (s *Store) Thumbnails() *AssetTable {
	return &AssetTable{store: s, table: "thumbnails"}
}

// Legacy returns the table holding assets written by earlier releases.
func (s *Store) Legacy() *AssetTable {
	return &AssetTable{store: s, table: "legacy_thumbnails"}
}

// Put writes asset, overwriting any previous asset with the same identity.
func (t *AssetTable) Put(ctx context.Context, asset Asset) error {
	if asset.Identity == "" {
		return errors.New("put asset: identity is required")
	}
	if asset.ByteSize == 0 {
		asset.ByteSize = int64(len(asset.Data))
	}
	updated := asset.UpdatedAt
	if updated.IsZero() {
		updated = time.Now()
	}
	_, err := t.store.execWithRetry(ctx,
		`INSERT INTO `+t.table+` (`+assetColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)
         ON CONFLICT(identity) DO UPDATE SET
            mime_type = excluded.mime_type,
            data = excluded.data,
            width = excluded.width,
            height = excluded.height,
            byte_size = excluded.byte_size,
            updated_at = excluded.updated_at`,
		asset.Identity,
		asset.MimeType,
		asset.Data,
		asset.Width,
		asset.Height,
		asset.ByteSize,
		formatTime(updated),
	)
	if err != nil {
		return fmt.Errorf("put %s: %w", t.table, err)
	}
	return nil
}

// Get returns the asset for identity, or nil when absent.
func (t *AssetTable) Get(ctx context.Context, identity string) (*Asset, error) {
	ctx = ensureContext(ctx)
	row := t.store.db.QueryRowContext(ctx, `SELECT `+assetColumns+` FROM `+t.table+` WHERE identity = ?`, identity)
	asset, err := scanAsset(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", t.table, err)
	}
	return asset, nil
}

// Has reports whether an asset exists for identity without loading its data.
func (t *AssetTable) Has(ctx context.Context, identity string) (bool, error) {
	ctx = ensureContext(ctx)
	var n int
	err := t.store.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM `+t.table+` WHERE identity = ?`, identity).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check %s: %w", t.table, err)
	}
	return n > 0, nil
}

// Delete removes the asset for identity. Missing assets are not an error.
func (t *AssetTable) Delete(ctx context.Context, identity string) error {
	if _, err := t.store.execWithRetry(ctx, `DELETE FROM `+t.table+` WHERE identity = ?`, identity); err != nil {
		return fmt.Errorf("delete %s: %w", t.table, err)
	}
	return nil
}

// Usage returns the number of assets and their combined size in bytes.
func (t *AssetTable) Usage(ctx context.Context) (count int, bytes int64, err error) {
	ctx = ensureContext(ctx)
	row := t.store.db.QueryRowContext(ctx, `SELECT COUNT(1), COALESCE(SUM(byte_size), 0) FROM `+t.table)
	if err := row.Scan(&count, &bytes); err != nil {
		return 0, 0, fmt.Errorf("usage %s: %w", t.table, err)
	}
	return count, bytes, nil
}
