package tiering

import (
	"bytes"
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"tabshot/internal/store"
)

// cachedStore keeps recently read assets in an expirable LRU in front of next.
// Cached data is never shared with callers: it is copied in and out.
type cachedStore struct {
	next  AssetStore
	cache *expirable.LRU[string, store.Asset]
}

func newCachedStore(next AssetStore, entries int, ttl time.Duration) AssetStore {
	if entries <= 0 {
		return next
	}
	return &cachedStore{
		next:  next,
		cache: expirable.NewLRU[string, store.Asset](entries, nil, ttl),
	}
}

func (c *cachedStore) Put(ctx context.Context, asset store.Asset) error {
	c.cache.Remove(asset.Identity)
	if err := c.next.Put(ctx, asset); err != nil {
		return err
	}
	c.cache.Add(asset.Identity, cloneAsset(asset))
	return nil
}

func (c *cachedStore) Get(ctx context.Context, identity string) (*store.Asset, error) {
	if asset, ok := c.cache.Get(identity); ok {
		cacheHits.Inc()
		out := cloneAsset(asset)
		return &out, nil
	}
	cacheMisses.Inc()
	asset, err := c.next.Get(ctx, identity)
	if err != nil || asset == nil {
		return asset, err
	}
	c.cache.Add(identity, cloneAsset(*asset))
	return asset, nil
}

func (c *cachedStore) Delete(ctx context.Context, identity string) error {
	c.cache.Remove(identity)
	return c.next.Delete(ctx, identity)
}

func cloneAsset(asset store.Asset) store.Asset {
	asset.Data = bytes.Clone(asset.Data)
	return asset
}
