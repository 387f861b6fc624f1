package api

import (
	"context"

	"tabshot/internal/store"
)

// ThumbnailReader abstracts the metadata queries needed for API views.
type ThumbnailReader interface {
	List(ctx context.Context, statuses ...store.Status) ([]store.Record, error)
	Stats(ctx context.Context) (store.StatusCounts, error)
	Get(ctx context.Context, identity string) (*store.Record, error)
}

// ThumbnailService exposes read-only metadata operations returning API DTOs.
type ThumbnailService struct {
	store ThumbnailReader
}

// NewThumbnailService constructs a ThumbnailService around the provided reader.
func NewThumbnailService(store ThumbnailReader) *ThumbnailService {
	if store == nil {
		return nil
	}
	return &ThumbnailService{store: store}
}

// List returns thumbnails filtered by status.
func (s *ThumbnailService) List(ctx context.Context, statuses ...store.Status) ([]Thumbnail, error) {
	if s == nil || s.store == nil {
		return nil, nil
	}
	records, err := s.store.List(ctx, statuses...)
	if err != nil {
		return nil, err
	}
	return FromRecords(records), nil
}

// Stats returns per-status counts keyed by status string.
func (s *ThumbnailService) Stats(ctx context.Context) (map[string]int, error) {
	if s == nil || s.store == nil {
		return nil, nil
	}
	counts, err := s.store.Stats(ctx)
	if err != nil {
		return nil, err
	}
	return MergeStatusCounts(counts), nil
}

// Describe fetches a single thumbnail by identity.
func (s *ThumbnailService) Describe(ctx context.Context, identity string) (*Thumbnail, error) {
	if s == nil || s.store == nil {
		return nil, nil
	}
	rec, err := s.store.Get(ctx, identity)
	if err != nil || rec == nil {
		return nil, err
	}
	dto := FromRecord(rec)
	return &dto, nil
}
