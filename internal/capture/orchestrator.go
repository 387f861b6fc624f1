package capture

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"tabshot/internal/browser"
	"tabshot/internal/config"
	"tabshot/internal/events"
	"tabshot/internal/imaging"
	"tabshot/internal/logging"
	"tabshot/internal/notifications"
	"tabshot/internal/services"
	"tabshot/internal/store"
	"tabshot/internal/tiering"
)

// ErrBatchInFlight rejects a submission while another batch is running.
var ErrBatchInFlight = errors.New("a capture batch is already running")

const cancelledMessage = "capture cancelled"

// Options controls one batch.
type Options struct {
	ForceActive bool
	// SettleDelay overrides the configured post-load wait when positive.
	SettleDelay time.Duration
}

// Deps are the collaborators an Orchestrator drives.
type Deps struct {
	Browser  browser.Browser
	Store    *store.Store
	Tiers    *tiering.Service
	Hub      *events.Hub
	Notifier notifications.Service
	Logger   *slog.Logger
}

// Orchestrator runs capture batches one at a time on a single reused tab.
type Orchestrator struct {
	cfg      *config.Config
	timings  config.CaptureTimings
	browser  browser.Browser
	capturer *browser.Capturer
	store    *store.Store
	tiers    *tiering.Service
	hub      *events.Hub
	notifier notifications.Service
	logger   *slog.Logger

	mu     sync.Mutex
	state  state
	done   chan struct{}
	cancel context.CancelFunc
	last   Status
}

// New constructs an idle orchestrator.
func New(cfg *config.Config, deps Deps) *Orchestrator {
	notifier := deps.Notifier
	if notifier == nil {
		notifier = notifications.NewService(nil)
	}
	logger := logging.NewComponentLogger(deps.Logger, "capture")
	return &Orchestrator{
		cfg:      cfg,
		timings:  cfg.Timings(),
		browser:  deps.Browser,
		capturer: browser.NewCapturer(deps.Browser, deps.Logger),
		store:    deps.Store,
		tiers:    deps.Tiers,
		hub:      deps.Hub,
		notifier: notifier,
		logger:   logger,
	}
}

// SubmitBatch validates urls, opens the capture tab and starts the batch on
// its own goroutine. It returns the batch id once the loop is running.
func (o *Orchestrator) SubmitBatch(ctx context.Context, urls []string, opts Options) (string, error) {
	cleaned := make([]string, 0, len(urls))
	for _, u := range urls {
		if u = strings.TrimSpace(u); u != "" {
			cleaned = append(cleaned, u)
		}
	}
	if len(cleaned) == 0 {
		return "", services.Wrap(services.ErrValidation, "capture", "submit", "no urls given", nil)
	}

	o.mu.Lock()
	if o.state.running {
		current := o.state.batchID
		o.mu.Unlock()
		logging.WarnWithContext(o.logger, "batch rejected; another batch is running", "batch_in_flight",
			logging.String("running_batch", current),
			logging.Int("urls", len(cleaned)),
			logging.String(logging.FieldErrorHint, "wait for the current batch or cancel it"),
			logging.String(logging.FieldImpact, "submission ignored"),
		)
		return "", ErrBatchInFlight
	}
	batchID := uuid.NewString()
	o.state = state{running: true, batchID: batchID, total: len(cleaned), startedAt: time.Now()}
	o.done = make(chan struct{})
	o.mu.Unlock()

	runCtx, cancel := context.WithCancel(services.WithBatchID(context.WithoutCancel(ctx), batchID))
	logger := logging.WithContext(runCtx, o.logger)

	tab, err := o.browser.OpenTab(runCtx)
	if err != nil {
		cancel()
		err = services.Wrap(services.ErrCaptureUnavailable, "capture", "open tab", "could not open capture tab", err)
		logging.ErrorWithContext(logger, "batch aborted", "capture_tab_unavailable",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check that the browser is running and reachable"),
		)
		o.finish(err)
		o.notify(runCtx, func(ctx context.Context) error { return o.notifier.NotifyError(ctx, err, "capture batch") })
		return "", err
	}

	o.mu.Lock()
	o.cancel = cancel
	o.mu.Unlock()

	logger.Info("batch started", logging.Int("urls", len(cleaned)), logging.Bool("force_active", opts.ForceActive))
	go o.run(runCtx, tab, cleaned, opts)
	return batchID, nil
}

// Cancel asks the running batch to stop at its next checkpoint. Returns false
// when idle.
func (o *Orchestrator) Cancel() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.state.running {
		return false
	}
	if !o.state.cancelRequested {
		o.state.cancelRequested = true
		o.logger.Info("batch cancellation requested", logging.BatchID(o.state.batchID))
	}
	return true
}

// Wait blocks until the orchestrator is idle or ctx ends.
func (o *Orchestrator) Wait(ctx context.Context) error {
	o.mu.Lock()
	done := o.done
	running := o.state.running
	o.mu.Unlock()
	if !running || done == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// CaptureOne captures a single URL synchronously and returns its final record.
func (o *Orchestrator) CaptureOne(ctx context.Context, url string, opts Options) (*store.Record, error) {
	identity, err := store.IdentityFor(url)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "capture", "capture one", "invalid url", err)
	}
	if _, err := o.SubmitBatch(ctx, []string{url}, opts); err != nil {
		return nil, err
	}
	if err := o.Wait(ctx); err != nil {
		return nil, err
	}
	return o.store.Get(ctx, identity)
}

// Shutdown stops a running batch immediately and waits for the tab to close.
func (o *Orchestrator) Shutdown(ctx context.Context) error {
	o.mu.Lock()
	cancel := o.cancel
	if o.state.running {
		o.state.cancelRequested = true
	}
	o.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	return o.Wait(ctx)
}

func (o *Orchestrator) run(ctx context.Context, tab browser.TabID, urls []string, opts Options) {
	logger := logging.WithContext(ctx, o.logger)
	start := time.Now()
	o.notify(ctx, func(ctx context.Context) error { return o.notifier.NotifyBatchStarted(ctx, len(urls)) })

	captured, failed := 0, 0
	for _, url := range urls {
		if o.cancelRequested() || ctx.Err() != nil {
			break
		}
		err := o.captureURL(ctx, tab, url, opts)
		if err != nil {
			failed++
		} else {
			captured++
		}
		o.progress(err)
		if errors.Is(err, services.ErrCancelled) {
			break
		}
	}

	closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	if err := o.browser.CloseTab(closeCtx, tab); err != nil {
		logger.Debug("close capture tab failed", logging.Error(err))
	}
	cancel()

	summary := o.snapshot()
	logger.Info("batch finished",
		logging.Int("captured", captured),
		logging.Int("failed", failed),
		logging.Int("skipped", len(urls)-captured-failed),
		logging.Bool("cancelled", summary.CancelRequested),
		logging.Duration("duration", time.Since(start)),
	)
	o.notify(ctx, func(ctx context.Context) error {
		return o.notifier.NotifyBatchCompleted(ctx, captured, failed, time.Since(start))
	})
	o.finish(nil)
}

// captureURL runs one item through navigate, capture, process and persist.
// The address is canonicalized first, so "a.test" is loaded, recorded and
// reported as "https://a.test/". Every outcome ends in a terminal event and
// record.
func (o *Orchestrator) captureURL(ctx context.Context, tab browser.TabID, url string, opts Options) (err error) {
	itemStart := time.Now()
	if canonical, canonErr := store.CanonicalURL(url); canonErr == nil {
		url = canonical
	}
	ctx = services.WithURL(ctx, url)
	o.setCurrent(url)

	identity, idErr := store.IdentityFor(url)
	if idErr != nil {
		o.hub.Publish(events.Event{Type: events.Started, BatchID: batchIDOf(ctx), URL: url})
		err = services.Wrap(services.ErrValidation, "capture", "identity", "invalid url", idErr)
		o.hub.Publish(events.Event{Type: events.Failed, BatchID: batchIDOf(ctx), URL: url, Error: err.Error()})
		o.observe(itemStart, err)
		return err
	}
	ctx = services.WithIdentity(ctx, identity)
	logger := logging.WithContext(ctx, o.logger)

	rec := store.Record{Identity: identity, SourceURL: url}
	if existing, getErr := o.store.Get(ctx, identity); getErr == nil && existing != nil {
		rec = *existing
		rec.SourceURL = url
	}
	rec.Status = store.StatusPending
	rec.ErrorDetail = ""
	rec.UpdatedAt = time.Time{}
	if setErr := o.store.Set(ctx, rec); setErr != nil {
		logger.Warn("pending record write failed", logging.Error(setErr),
			logging.String(logging.FieldEventType, "metadata_write_failed"),
			logging.String(logging.FieldErrorHint, "check database permissions and disk space"),
		)
	}
	o.hub.Publish(events.Event{Type: events.Started, BatchID: batchIDOf(ctx), URL: url, Identity: identity})

	defer func() {
		o.observe(itemStart, err)
		if err != nil {
			o.fail(ctx, rec, err)
		}
	}()

	navCtx, cancelNav := context.WithTimeout(ctx, o.timings.LoadTimeout)
	navErr := o.browser.Navigate(navCtx, tab, url)
	cancelNav()
	switch {
	case navErr == nil:
	case ctx.Err() != nil:
		return services.Wrap(services.ErrCancelled, "capture", "navigate", cancelledMessage, ctx.Err())
	case errors.Is(navErr, context.DeadlineExceeded):
		logging.WarnWithContext(logger, "page did not finish loading; capturing anyway", "navigation_timeout",
			logging.Error(services.Wrap(services.ErrNavigationTimeout, "capture", "navigate",
				fmt.Sprintf("load exceeded %s", o.timings.LoadTimeout), navErr)),
			logging.String(logging.FieldErrorHint, "raise capture.load_timeout_ms for slow sites"),
			logging.String(logging.FieldImpact, "thumbnail may show a partially loaded page"),
		)
	default:
		return services.Wrap(services.ErrCaptureUnavailable, "capture", "navigate", "navigation failed", navErr)
	}

	if o.cancelRequested() {
		return services.Wrap(services.ErrCancelled, "capture", "after load", cancelledMessage, nil)
	}

	settle := o.timings.SettleDelay
	if opts.SettleDelay > 0 {
		settle = opts.SettleDelay
	}
	if settle > 0 {
		select {
		case <-time.After(settle):
		case <-ctx.Done():
			return services.Wrap(services.ErrCancelled, "capture", "settle", cancelledMessage, ctx.Err())
		}
	}

	title, titleErr := o.browser.Title(ctx, tab)
	if titleErr != nil {
		logger.Debug("page title unavailable", logging.Error(titleErr))
	}
	if title = strings.TrimSpace(title); title != "" {
		rec.Title = title
	}

	img, err := o.capturer.Capture(ctx, tab, browser.Options{
		ForceActive:    opts.ForceActive || o.cfg.Capture.ForceActive,
		VisibleTimeout: o.timings.VisibleTimeout,
		InPageTimeout:  o.timings.InPageTimeout,
		ActivateSettle: o.timings.ActivateSettle,
	})
	if err != nil {
		if ctx.Err() != nil {
			return services.Wrap(services.ErrCancelled, "capture", "capture", cancelledMessage, err)
		}
		return err
	}

	result, err := imaging.ResizeAndCompress(img.Data, o.cfg.Capture.TargetWidth, o.cfg.Capture.Quality)
	if err != nil {
		return err
	}

	placement, err := o.tiers.Persist(ctx, store.Asset{
		Identity: identity,
		MimeType: result.MimeType,
		Data:     result.Data,
		Width:    result.Width,
		Height:   result.Height,
		ByteSize: result.ByteSize,
	}, rec.Title)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	rec.Status = placement.Status
	rec.Filename = placement.Filename
	rec.LastCaptureAt = &now
	rec.ErrorDetail = ""
	rec.UpdatedAt = now
	if err := o.store.Set(ctx, rec); err != nil {
		return services.Wrap(services.ErrStorageWrite, "capture", "metadata", "record write failed", err)
	}

	o.hub.Publish(events.Event{Type: events.Updated, BatchID: batchIDOf(ctx), URL: url, Identity: identity})
	logger.Info("thumbnail captured",
		logging.String("strategy", img.Strategy),
		logging.String("status", string(placement.Status)),
		logging.Int("width", result.Width),
		logging.Int("height", result.Height),
		logging.Int64("bytes", result.ByteSize),
	)
	return nil
}

// fail records err against rec and broadcasts Failed.
func (o *Orchestrator) fail(ctx context.Context, rec store.Record, err error) {
	logger := logging.WithContext(ctx, o.logger)
	message := err.Error()
	if errors.Is(err, services.ErrCancelled) {
		message = cancelledMessage
	}
	rec.Status = store.StatusError
	rec.ErrorDetail = message
	rec.UpdatedAt = time.Now().UTC()
	writeCtx := context.WithoutCancel(ctx)
	if setErr := o.store.Set(writeCtx, rec); setErr != nil {
		logger.Warn("error record write failed", logging.Error(setErr),
			logging.String(logging.FieldEventType, "metadata_write_failed"),
			logging.String(logging.FieldErrorHint, "check database permissions and disk space"),
		)
	}
	o.hub.Publish(events.Event{Type: events.Failed, BatchID: batchIDOf(ctx), URL: rec.SourceURL, Identity: rec.Identity, Error: message})
	if errors.Is(err, services.ErrCancelled) {
		logger.Info("capture cancelled")
		return
	}
	logging.WarnWithContext(logger, "capture failed", services.Kind(err),
		logging.Error(err),
		logging.String(logging.FieldErrorHint, hintFor(err)),
		logging.String(logging.FieldImpact, "thumbnail marked as error; resubmit to retry"),
	)
}

func (o *Orchestrator) notify(ctx context.Context, send func(context.Context) error) {
	notifyCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 15*time.Second)
	defer cancel()
	if err := send(notifyCtx); err != nil {
		o.logger.Debug("notification failed", logging.Error(err))
	}
}

func hintFor(err error) string {
	switch {
	case errors.Is(err, services.ErrCaptureUnavailable):
		return "the page could not be captured by any strategy; try --force-active"
	case errors.Is(err, services.ErrImageProcessing):
		return "the captured image could not be decoded"
	case errors.Is(err, services.ErrStorageWrite):
		return "check free space and permissions of the data and external directories"
	default:
		return "check logs for details"
	}
}

func batchIDOf(ctx context.Context) string {
	id, _ := services.BatchIDFromContext(ctx)
	return id
}
