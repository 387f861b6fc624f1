package tiering

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gofrs/flock"

	"tabshot/internal/config"
	"tabshot/internal/fileutil"
	"tabshot/internal/imaging"
	"tabshot/internal/logging"
	"tabshot/internal/services"
	"tabshot/internal/store"
	"tabshot/internal/textutil"
)

const (
	lockFileName = ".tabshot.lock"
	fileMode     = 0o644

	lowThreshold      = 0.80
	criticalThreshold = 0.95
)

// Placement reports where Persist wrote an asset.
type Placement struct {
	Status    store.Status `json:"status"`
	Filename  string       `json:"filename,omitempty"`
	Directory string       `json:"directory,omitempty"`
}

// Usage summarises embedded storage consumption against the configured quota.
type Usage struct {
	Count      int     `json:"count"`
	Bytes      int64   `json:"bytes"`
	QuotaBytes int64   `json:"quota_bytes"`
	Percent    float64 `json:"percent"`
	Low        bool    `json:"low"`
	Critical   bool    `json:"critical"`
}

// Service decides, per write, between the external directory tier and the
// embedded SQLite tier, and serves reads from both.
type Service struct {
	store  *store.Store
	assets AssetStore
	quota  int64
	logger *slog.Logger
	now    func() time.Time
}

// New wires the embedded tier as cache -> lazy legacy migration -> SQLite.
func New(st *store.Store, cfg *config.Config, logger *slog.Logger) *Service {
	migrating := &MigratingStore{Primary: st.Thumbnails(), Legacy: st.Legacy()}
	var (
		entries int
		ttl     time.Duration
		quota   int64
	)
	if cfg != nil {
		entries = cfg.Storage.CacheEntries
		ttl = cfg.CacheTTL()
		quota = cfg.QuotaBytes()
	}
	return &Service{
		store:  st,
		assets: newCachedStore(migrating, entries, ttl),
		quota:  quota,
		logger: logging.NewComponentLogger(logger, "tiering"),
		now:    time.Now,
	}
}

// FileName builds the external file name for a capture of title taken at.
func FileName(title string, at time.Time) string {
	return textutil.SanitizeTitle(title, textutil.DefaultTitleLimit) + "_" + strconv.FormatInt(at.UnixMilli(), 10) + ".jpg"
}

// Persist stores asset in the external directory when one is held and still
// accessible, otherwise in the embedded store. Permission is re-checked on
// every call; a revoked directory falls back to the embedded tier.
func (s *Service) Persist(ctx context.Context, asset store.Asset, title string) (Placement, error) {
	if asset.Identity == "" {
		return Placement{}, services.Wrap(services.ErrValidation, "tiering", "persist", "identity is required", nil)
	}
	if len(asset.Data) == 0 {
		return Placement{}, services.Wrap(services.ErrValidation, "tiering", "persist", "asset has no data", nil)
	}
	logger := logging.WithContext(ctx, s.logger)

	handle, err := s.store.Directory(ctx)
	if err != nil {
		return Placement{}, services.Wrap(services.ErrStorageWrite, "tiering", "persist", "read directory slot", err)
	}
	if handle != nil {
		if err := checkPermission(handle.Path); err != nil {
			placements.WithLabelValues("external", "permission_denied").Inc()
			logging.WarnWithContext(logger, "external directory unavailable; saving embedded", "permission_denied",
				logging.String("directory", handle.Path),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "re-acquire the directory with 'tabshot dir set'"),
				logging.String(logging.FieldImpact, "thumbnail stored in the database instead"),
			)
		} else {
			filename := FileName(title, s.now())
			if err := writeExternal(handle.Path, filename, asset.Data); err != nil {
				placements.WithLabelValues("external", "error").Inc()
				return Placement{}, services.Wrap(services.ErrStorageWrite, "tiering", "persist",
					"write "+filename, err)
			}
			placements.WithLabelValues("external", "ok").Inc()
			if err := s.store.TouchDirectory(ctx); err != nil {
				logger.Debug("touch directory failed", logging.Error(err))
			}
			// The file is now authoritative; drop any stale embedded copy.
			if err := s.assets.Delete(ctx, asset.Identity); err != nil {
				logger.Debug("drop embedded copy failed", logging.Error(err))
			}
			logger.Debug("thumbnail written to external directory",
				logging.String("directory", handle.Path),
				logging.String("filename", filename),
				logging.Int64("bytes", int64(len(asset.Data))),
			)
			return Placement{Status: store.StatusSavedExternal, Filename: filename, Directory: handle.Path}, nil
		}
	}

	if err := s.assets.Put(ctx, asset); err != nil {
		placements.WithLabelValues("embedded", "error").Inc()
		return Placement{}, services.Wrap(services.ErrStorageWrite, "tiering", "persist", "write embedded asset", err)
	}
	placements.WithLabelValues("embedded", "ok").Inc()
	return Placement{Status: store.StatusSavedEmbedded}, nil
}

// Get returns the asset for identity from the embedded tier, falling back to
// the external directory for records saved there. Returns nil, nil when the
// identity has no readable asset.
func (s *Service) Get(ctx context.Context, identity string) (*store.Asset, error) {
	asset, err := s.assets.Get(ctx, identity)
	if err != nil || asset != nil {
		return asset, err
	}
	rec, err := s.store.Get(ctx, identity)
	if err != nil || rec == nil {
		return nil, err
	}
	if rec.Status != store.StatusSavedExternal || rec.Filename == "" {
		return nil, nil
	}
	handle, err := s.store.Directory(ctx)
	if err != nil || handle == nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(handle.Path, rec.Filename))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		if errors.Is(err, os.ErrPermission) {
			return nil, services.Wrap(services.ErrPermissionDenied, "tiering", "get", rec.Filename, err)
		}
		return nil, fmt.Errorf("read external asset: %w", err)
	}
	return assetFromFile(identity, data)
}

// AcquireDirectory makes path the single external directory, replacing any
// previously held one.
func (s *Service) AcquireDirectory(ctx context.Context, path string) (*store.DirectoryHandle, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, services.Wrap(services.ErrValidation, "tiering", "acquire", "directory path is required", nil)
	}
	expanded, err := config.ExpandPath(path)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "tiering", "acquire", "expand path", err)
	}
	if err := checkPermission(expanded); err != nil {
		return nil, err
	}
	handle, err := s.store.SetDirectory(ctx, expanded)
	if err != nil {
		return nil, err
	}
	s.logger.Info("external directory acquired", logging.String("directory", expanded))
	return handle, nil
}

// ReleaseDirectory clears the directory slot. Files already written stay.
func (s *Service) ReleaseDirectory(ctx context.Context) error {
	if err := s.store.ClearDirectory(ctx); err != nil {
		return err
	}
	s.logger.Info("external directory released")
	return nil
}

// Directory returns the held directory, or nil.
func (s *Service) Directory(ctx context.Context) (*store.DirectoryHandle, error) {
	return s.store.Directory(ctx)
}

// ReconcileDirectory scans path once and relinks every record that has a
// recorded file name but no asset in any tier: the file is copied into the
// embedded store and the record becomes saved_embedded. A saved_external
// record whose file is readable in the held directory already has an asset
// and is left alone. Returns the relink count.
func (s *Service) ReconcileDirectory(ctx context.Context, path string) (int, error) {
	handle, err := s.store.Directory(ctx)
	if err != nil {
		return 0, err
	}
	var held string
	if handle != nil {
		held = handle.Path
	}
	if path == "" {
		if held == "" {
			return 0, services.Wrap(services.ErrValidation, "tiering", "reconcile", "no directory given or held", nil)
		}
		path = held
	}
	if err := checkPermission(path); err != nil {
		return 0, err
	}

	records, err := s.store.All(ctx)
	if err != nil {
		return 0, err
	}
	byFilename := make(map[string]store.Record)
	for _, rec := range records {
		if rec.Filename == "" {
			continue
		}
		has, err := s.hasAnyTier(ctx, rec, held)
		if err != nil {
			return 0, err
		}
		if !has {
			byFilename[rec.Filename] = rec
		}
	}
	if len(byFilename) == 0 {
		return 0, nil
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return 0, fmt.Errorf("scan %s: %w", path, err)
	}
	logger := logging.WithContext(ctx, s.logger)
	relinked := 0
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return relinked, err
		}
		if !entry.Type().IsRegular() {
			continue
		}
		rec, ok := byFilename[entry.Name()]
		if !ok {
			continue
		}
		data, err := os.ReadFile(filepath.Join(path, entry.Name()))
		if err != nil {
			logger.Warn("reconcile read failed",
				logging.String("filename", entry.Name()),
				logging.Error(err),
				logging.String(logging.FieldEventType, "reconcile_read_failed"),
				logging.String(logging.FieldErrorHint, "check file permissions in the directory"),
			)
			continue
		}
		asset, err := assetFromFile(rec.Identity, data)
		if err != nil {
			logger.Warn("reconcile skipped unreadable image",
				logging.String("filename", entry.Name()),
				logging.Error(err),
				logging.String(logging.FieldEventType, "reconcile_decode_failed"),
				logging.String(logging.FieldErrorHint, "the file is not a valid image"),
			)
			continue
		}
		if err := s.assets.Put(ctx, *asset); err != nil {
			return relinked, services.Wrap(services.ErrStorageWrite, "tiering", "reconcile", "write embedded asset", err)
		}
		rec.Status = store.StatusSavedEmbedded
		rec.ErrorDetail = ""
		rec.UpdatedAt = s.now()
		if err := s.store.Set(ctx, rec); err != nil {
			return relinked, err
		}
		delete(byFilename, entry.Name())
		relinked++
	}
	s.logger.Info("directory reconciled",
		logging.String("directory", path),
		logging.Int("relinked", relinked),
		logging.Int("unmatched", len(byFilename)),
	)
	return relinked, nil
}

// Delete removes the embedded and legacy copies and the metadata record.
// Files in the external directory belong to the user and are left alone.
func (s *Service) Delete(ctx context.Context, identity string) error {
	if err := s.assets.Delete(ctx, identity); err != nil {
		return err
	}
	return s.store.Remove(ctx, identity)
}

// HasAsset reports whether identity owns an asset in the embedded or legacy store.
func (s *Service) HasAsset(ctx context.Context, identity string) (bool, error) {
	return s.hasEmbedded(ctx, identity)
}

// PutEmbedded writes asset straight to the embedded tier.
func (s *Service) PutEmbedded(ctx context.Context, asset store.Asset) error {
	if err := s.assets.Put(ctx, asset); err != nil {
		return services.Wrap(services.ErrStorageWrite, "tiering", "put", "write embedded asset", err)
	}
	return nil
}

// Usage reports embedded consumption. Low and Critical trip above 80% and 95%
// of the quota; a zero quota disables both.
func (s *Service) Usage(ctx context.Context) (Usage, error) {
	count, bytes, err := s.store.Thumbnails().Usage(ctx)
	if err != nil {
		return Usage{}, err
	}
	legacyCount, legacyBytes, err := s.store.Legacy().Usage(ctx)
	if err != nil {
		return Usage{}, err
	}
	u := Usage{Count: count + legacyCount, Bytes: bytes + legacyBytes, QuotaBytes: s.quota}
	embeddedBytes.Set(float64(u.Bytes))
	if s.quota > 0 {
		u.Percent = float64(u.Bytes) / float64(s.quota) * 100
		u.Low = float64(u.Bytes) > float64(s.quota)*lowThreshold
		u.Critical = float64(u.Bytes) > float64(s.quota)*criticalThreshold
	}
	return u, nil
}

func (s *Service) hasEmbedded(ctx context.Context, identity string) (bool, error) {
	has, err := s.store.Thumbnails().Has(ctx, identity)
	if err != nil || has {
		return has, err
	}
	return s.store.Legacy().Has(ctx, identity)
}

// hasAnyTier reports whether rec owns an asset in the embedded or legacy
// store, or as a file in the held external directory.
func (s *Service) hasAnyTier(ctx context.Context, rec store.Record, held string) (bool, error) {
	has, err := s.hasEmbedded(ctx, rec.Identity)
	if err != nil || has {
		return has, err
	}
	if rec.Status != store.StatusSavedExternal || held == "" {
		return false, nil
	}
	info, err := os.Stat(filepath.Join(held, rec.Filename))
	if err != nil {
		return false, nil
	}
	return info.Mode().IsRegular(), nil
}

func checkPermission(path string) error {
	if err := fileutil.CheckDirectoryAccess(path); err != nil {
		return services.Wrap(services.ErrPermissionDenied, "tiering", "permission", path, err)
	}
	return nil
}

func writeExternal(dir, filename string, data []byte) error {
	lock := flock.New(filepath.Join(dir, lockFileName))
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("lock directory: %w", err)
	}
	defer func() { _ = lock.Unlock() }()
	return fileutil.WriteFileAtomic(filepath.Join(dir, filename), data, fileMode)
}

func assetFromFile(identity string, data []byte) (*store.Asset, error) {
	width, height, mime, err := imaging.Inspect(data)
	if err != nil {
		return nil, err
	}
	return &store.Asset{
		Identity: identity,
		MimeType: mime,
		Data:     data,
		Width:    width,
		Height:   height,
		ByteSize: int64(len(data)),
	}, nil
}
