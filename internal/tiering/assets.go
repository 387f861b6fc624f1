package tiering

import (
	"context"
	"errors"
	"fmt"

	"tabshot/internal/store"
)

// AssetStore persists processed thumbnails keyed by identity. Get returns
// nil, nil when the identity has no asset.
type AssetStore interface {
	Put(ctx context.Context, asset store.Asset) error
	Get(ctx context.Context, identity string) (*store.Asset, error)
	Delete(ctx context.Context, identity string) error
}

// MigratingStore reads through to Legacy when Primary misses and writes the
// legacy asset forward into Primary. Migration is lazy: nothing is moved until
// it is read.
type MigratingStore struct {
	Primary AssetStore
	Legacy  AssetStore
}

// Put writes to the primary store only.
func (m *MigratingStore) Put(ctx context.Context, asset store.Asset) error {
	return m.Primary.Put(ctx, asset)
}

// Get returns the primary asset, migrating it from the legacy store on a miss.
func (m *MigratingStore) Get(ctx context.Context, identity string) (*store.Asset, error) {
	asset, err := m.Primary.Get(ctx, identity)
	if err != nil || asset != nil || m.Legacy == nil {
		return asset, err
	}
	legacy, err := m.Legacy.Get(ctx, identity)
	if err != nil {
		return nil, fmt.Errorf("legacy lookup: %w", err)
	}
	if legacy == nil {
		return nil, nil
	}
	if err := m.Primary.Put(ctx, *legacy); err != nil {
		return nil, fmt.Errorf("migrate %s: %w", identity, err)
	}
	migrations.Inc()
	return legacy, nil
}

// Delete removes the asset from both stores.
func (m *MigratingStore) Delete(ctx context.Context, identity string) error {
	var errs []error
	if err := m.Primary.Delete(ctx, identity); err != nil {
		errs = append(errs, err)
	}
	if m.Legacy != nil {
		if err := m.Legacy.Delete(ctx, identity); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
