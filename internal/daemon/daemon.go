package daemon

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"tabshot/internal/api"
	"tabshot/internal/backup"
	"tabshot/internal/browser"
	"tabshot/internal/capture"
	"tabshot/internal/config"
	"tabshot/internal/events"
	"tabshot/internal/imaging"
	"tabshot/internal/logging"
	"tabshot/internal/notifications"
	"tabshot/internal/preflight"
	"tabshot/internal/services"
	"tabshot/internal/store"
	"tabshot/internal/tiering"
)

// maxEventWait bounds a single long-poll so it finishes inside the HTTP write timeout.
const maxEventWait = 25 * time.Second

// Deps are the collaborators a Daemon owns.
type Deps struct {
	Browser  browser.Browser
	Store    *store.Store
	Hub      *events.Hub
	Notifier notifications.Service
	Logger   *slog.Logger
}

// Daemon coordinates the capture pipeline, the storage tiers and the API
// surfaces, and enforces single-instance execution.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    *store.Store
	tiers    *tiering.Service
	capture  *capture.Orchestrator
	backups  *backup.Manager
	hub      *events.Hub
	notifier notifications.Service
	api      *apiServer

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc

	checksMu sync.Mutex
	checks   []preflight.Result
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, deps Deps) (*Daemon, error) {
	if cfg == nil || deps.Store == nil || deps.Browser == nil {
		return nil, errors.New("daemon requires config, store, and browser")
	}
	logger := deps.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	hub := deps.Hub
	if hub == nil {
		hub = events.NewHub(0)
	}
	notifier := deps.Notifier
	if notifier == nil {
		notifier = notifications.NewService(cfg)
	}

	tiers := tiering.New(deps.Store, cfg, logger)
	d := &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		store:    deps.Store,
		tiers:    tiers,
		backups:  backup.NewManager(deps.Store, tiers, logger),
		hub:      hub,
		notifier: notifier,
		lockPath: cfg.LockPath(),
		lock:     flock.New(cfg.LockPath()),
	}
	d.capture = capture.New(cfg, capture.Deps{
		Browser:  deps.Browser,
		Store:    deps.Store,
		Tiers:    tiers,
		Hub:      hub,
		Notifier: notifier,
		Logger:   logger,
	})

	apiSrv, err := newAPIServer(cfg, d, logger)
	if err != nil {
		return nil, err
	}
	d.api = apiSrv
	return d, nil
}

// Start acquires the daemon lock, runs preflight checks, re-acquires the
// configured external directory and starts the HTTP API.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another tabshot daemon instance is already running")
	}

	d.ctx, d.cancel = context.WithCancel(ctx)
	d.runPreflight(d.ctx)
	d.acquireConfiguredDirectory(d.ctx)

	if err := d.api.start(d.ctx); err != nil {
		_ = d.lock.Unlock()
		d.cancel()
		d.ctx = nil
		d.cancel = nil
		return err
	}

	d.running.Store(true)
	d.logger.Info("tabshot daemon started", logging.String("lock", d.lockPath))
	return nil
}

// Stop cancels any running batch, stops the API and releases the lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := d.capture.Shutdown(shutdownCtx); err != nil {
		d.logger.Warn("capture batch did not stop in time",
			logging.Error(err),
			logging.String(logging.FieldEventType, "daemon_shutdown_timeout"),
			logging.String(logging.FieldErrorHint, "the capture tab may be left open in the browser"),
		)
	}
	d.api.stop()
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock",
			logging.Error(err),
			logging.String(logging.FieldEventType, "daemon_lock_release_failed"),
			logging.String(logging.FieldErrorHint, "remove the lock file if the next start fails"),
		)
	}
	d.ctx = nil
	d.running.Store(false)
	d.logger.Info("tabshot daemon stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// Running reports whether Start succeeded and Stop has not run.
func (d *Daemon) Running() bool {
	return d.running.Load()
}

// APIAddress reports the bound HTTP address, or "" when the API is disabled.
func (d *Daemon) APIAddress() string {
	return d.api.address()
}

// Hub exposes the event hub.
func (d *Daemon) Hub() *events.Hub {
	return d.hub
}

// LogPath returns the daemon log file tailed by 'tabshot logs'.
func (d *Daemon) LogPath() string {
	return d.cfg.LogPath()
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) (api.DaemonStatus, error) {
	counts, err := d.store.Stats(ctx)
	if err != nil {
		return api.DaemonStatus{}, err
	}
	usage, err := d.tiers.Usage(ctx)
	if err != nil {
		return api.DaemonStatus{}, err
	}
	dir, err := d.tiers.Directory(ctx)
	if err != nil {
		return api.DaemonStatus{}, err
	}

	d.checksMu.Lock()
	checks := append([]preflight.Result(nil), d.checks...)
	d.checksMu.Unlock()

	return api.DaemonStatus{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		DatabasePath: d.store.Path(),
		LockFilePath: d.lockPath,
		Capture:      api.FromCaptureStatus(d.capture.Status()),
		Counts:       api.MergeStatusCounts(counts),
		Storage:      api.FromUsage(usage, dir),
		Checks:       checks,
	}, nil
}

// SubmitBatch starts a capture batch and returns its id.
func (d *Daemon) SubmitBatch(ctx context.Context, urls []string, opts capture.Options) (string, error) {
	return d.capture.SubmitBatch(ctx, urls, opts)
}

// CaptureOne captures a single URL and returns its final record.
func (d *Daemon) CaptureOne(ctx context.Context, url string, opts capture.Options) (*store.Record, error) {
	return d.capture.CaptureOne(ctx, url, opts)
}

// CancelBatch requests cancellation of the running batch.
func (d *Daemon) CancelBatch() bool {
	cancelled := d.capture.Cancel()
	if cancelled {
		d.logger.Info("capture batch cancel requested", logging.String(logging.FieldEventType, "batch_cancel"))
	}
	return cancelled
}

// ListThumbnails returns records, optionally filtered by status.
func (d *Daemon) ListThumbnails(ctx context.Context, statuses []store.Status) ([]store.Record, error) {
	return d.store.List(ctx, statuses...)
}

// Describe resolves ref (an identity or a URL) to its record.
func (d *Daemon) Describe(ctx context.Context, ref string) (*store.Record, error) {
	return d.resolve(ctx, ref)
}

// Image returns the stored asset for ref. Records in the error state get a
// rendered placeholder card instead.
func (d *Daemon) Image(ctx context.Context, ref string) ([]byte, string, error) {
	rec, err := d.resolve(ctx, ref)
	if err != nil {
		return nil, "", err
	}
	asset, err := d.tiers.Get(ctx, rec.Identity)
	if err != nil {
		return nil, "", err
	}
	if asset != nil {
		return asset.Data, asset.MimeType, nil
	}
	if rec.Status == store.StatusError {
		width := d.cfg.Capture.TargetWidth
		height := imaging.TargetHeight(d.cfg.Browser.WindowWidth, d.cfg.Browser.WindowHeight, width)
		data, err := imaging.Placeholder(rec.ErrorDetail, rec.SourceURL, width, height)
		if err != nil {
			return nil, "", err
		}
		return data, imaging.MimeJPEG, nil
	}
	return nil, "", services.Wrap(services.ErrNotFound, "daemon", "image", "no stored image for "+rec.SourceURL, nil)
}

// Delete removes the record and every stored asset for ref.
func (d *Daemon) Delete(ctx context.Context, ref string) error {
	rec, err := d.resolve(ctx, ref)
	if err != nil {
		return err
	}
	if err := d.tiers.Delete(ctx, rec.Identity); err != nil {
		return err
	}
	d.logger.Info("thumbnail deleted",
		logging.Identity(rec.Identity),
		logging.URL(rec.SourceURL),
	)
	return nil
}

// SetDirectory acquires path as the external directory.
func (d *Daemon) SetDirectory(ctx context.Context, path string) (*store.DirectoryHandle, error) {
	return d.tiers.AcquireDirectory(ctx, path)
}

// ClearDirectory releases the external directory slot.
func (d *Daemon) ClearDirectory(ctx context.Context) error {
	return d.tiers.ReleaseDirectory(ctx)
}

// Reconcile relinks records whose files exist in path (or the held directory).
func (d *Daemon) Reconcile(ctx context.Context, path string) (int, error) {
	return d.tiers.ReconcileDirectory(ctx, path)
}

// Export builds a backup document.
func (d *Daemon) Export(ctx context.Context, includeImages bool) (*backup.Document, error) {
	return d.backups.Create(ctx, backup.Options{IncludeImages: includeImages})
}

// Import restores a backup document additively.
func (d *Daemon) Import(ctx context.Context, r io.Reader) (backup.Result, error) {
	return d.backups.Import(ctx, r)
}

// SetSetting stores a free-form setting exported by backups.
func (d *Daemon) SetSetting(ctx context.Context, key, value string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return services.Wrap(services.ErrValidation, "daemon", "set setting", "setting key is required", nil)
	}
	return d.store.PutSetting(ctx, key, value)
}

// Settings returns every stored setting.
func (d *Daemon) Settings(ctx context.Context) (map[string]string, error) {
	return d.store.Settings(ctx)
}

// Events returns events newer than since. A positive wait long-polls until an
// event arrives or the wait elapses; an elapsed wait is not an error.
func (d *Daemon) Events(ctx context.Context, since uint64, limit int, wait time.Duration) ([]events.Event, uint64, error) {
	if wait <= 0 {
		evts, next, _ := d.hub.Fetch(ctx, since, limit, false)
		return evts, next, nil
	}
	wait = min(wait, maxEventWait)
	waitCtx, cancel := context.WithTimeout(ctx, wait)
	defer cancel()
	evts, next, err := d.hub.Fetch(waitCtx, since, limit, true)
	if err != nil && ctx.Err() == nil && errors.Is(err, context.DeadlineExceeded) {
		err = nil
	}
	return evts, next, err
}

// TestNotification sends a test notification using the current configuration.
func (d *Daemon) TestNotification(ctx context.Context) (bool, string, error) {
	if strings.TrimSpace(d.cfg.Notifications.NtfyTopic) == "" {
		return false, "ntfy topic not configured", nil
	}
	if err := d.notifier.TestNotification(ctx); err != nil {
		return false, "failed to send notification", err
	}
	return true, "test notification sent", nil
}

func (d *Daemon) resolve(ctx context.Context, ref string) (*store.Record, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, services.Wrap(services.ErrValidation, "daemon", "resolve", "identity or url is required", nil)
	}
	identity := ref
	if _, err := uuid.Parse(ref); err != nil {
		derived, err := store.IdentityFor(ref)
		if err != nil {
			return nil, services.Wrap(services.ErrValidation, "daemon", "resolve", "invalid identity or url", err)
		}
		identity = derived
	}
	rec, err := d.store.Get(ctx, identity)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, services.Wrap(services.ErrNotFound, "daemon", "resolve", "no thumbnail for "+ref, nil)
	}
	return rec, nil
}

func (d *Daemon) runPreflight(ctx context.Context) {
	results := preflight.RunAll(ctx, d.cfg)
	for _, failed := range preflight.Failed(results) {
		logging.WarnWithContext(d.logger, "preflight check failed", "preflight_failed",
			logging.String("check", failed.Name),
			logging.String("detail", failed.Detail),
			logging.String(logging.FieldErrorHint, "fix the path or browser setting in config.toml"),
			logging.String(logging.FieldImpact, "captures or external storage may fail"),
		)
	}
	d.checksMu.Lock()
	d.checks = results
	d.checksMu.Unlock()
}

func (d *Daemon) acquireConfiguredDirectory(ctx context.Context) {
	path := strings.TrimSpace(d.cfg.Storage.ExternalDir)
	if path == "" {
		return
	}
	if _, err := d.tiers.AcquireDirectory(ctx, path); err != nil {
		logging.WarnWithContext(d.logger, "configured external directory unavailable", "external_dir_unavailable",
			logging.String("path", path),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check storage.external_dir permissions or run 'tabshot dir set'"),
			logging.String(logging.FieldImpact, "thumbnails are stored embedded until a directory is acquired"),
		)
	}
}
