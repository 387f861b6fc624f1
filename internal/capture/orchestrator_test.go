package capture_test

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"tabshot/internal/browser"
	"tabshot/internal/capture"
	"tabshot/internal/config"
	"tabshot/internal/events"
	"tabshot/internal/imaging"
	"tabshot/internal/logging"
	"tabshot/internal/services"
	"tabshot/internal/store"
	"tabshot/internal/testsupport"
	"tabshot/internal/tiering"
)

type eventLog struct {
	mu     sync.Mutex
	events []events.Event
	onAdd  func(events.Event)
}

func (l *eventLog) Append(evt events.Event) {
	l.mu.Lock()
	l.events = append(l.events, evt)
	hook := l.onAdd
	l.mu.Unlock()
	if hook != nil {
		hook(evt)
	}
}

func (l *eventLog) summary() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, 0, len(l.events))
	for _, evt := range l.events {
		out = append(out, string(evt.Type)+" "+evt.URL)
	}
	return out
}

type harness struct {
	cfg   *config.Config
	fake  *browser.Fake
	store *store.Store
	tiers *tiering.Service
	log   *eventLog
	orch  *capture.Orchestrator
}

func newHarness(t *testing.T, pages map[string]browser.FakePage, opts ...testsupport.ConfigOption) *harness {
	t.Helper()
	cfg := testsupport.NewConfig(t, opts...)
	st := testsupport.MustOpenStore(t, cfg)
	tiers := tiering.New(st, cfg, logging.NewNop())
	hub := events.NewHub(64)
	log := &eventLog{}
	hub.AddSink(log)
	fake := browser.NewFake(pages)
	orch := capture.New(cfg, capture.Deps{
		Browser: fake,
		Store:   st,
		Tiers:   tiers,
		Hub:     hub,
		Logger:  logging.NewNop(),
	})
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = orch.Shutdown(ctx)
	})
	return &harness{cfg: cfg, fake: fake, store: st, tiers: tiers, log: log, orch: orch}
}

func (h *harness) submitAndWait(t *testing.T, urls []string, opts capture.Options) {
	t.Helper()
	_, err := h.orch.SubmitBatch(context.Background(), urls, opts)
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, h.orch.Wait(ctx))
}

func (h *harness) record(t *testing.T, url string) *store.Record {
	t.Helper()
	identity, err := store.IdentityFor(url)
	require.NoError(t, err)
	rec, err := h.store.Get(context.Background(), identity)
	require.NoError(t, err)
	return rec
}

func okPage(t *testing.T, title string) browser.FakePage {
	return browser.FakePage{Title: title, Visible: testsupport.PNG(t, 1200, 800)}
}

func TestBatchEmitsOrderedEventsAndSavesRecords(t *testing.T) {
	pages := map[string]browser.FakePage{
		"https://one.test/":   okPage(t, "One"),
		"https://two.test/":   okPage(t, "Two"),
		"https://three.test/": okPage(t, "Three"),
	}
	h := newHarness(t, pages)
	urls := []string{"https://one.test/", "https://two.test/", "https://three.test/"}

	h.submitAndWait(t, urls, capture.Options{})

	require.Equal(t, []string{
		"started https://one.test/", "updated https://one.test/",
		"started https://two.test/", "updated https://two.test/",
		"started https://three.test/", "updated https://three.test/",
	}, h.log.summary())

	for _, url := range urls {
		rec := h.record(t, url)
		require.NotNil(t, rec)
		require.Equal(t, store.StatusSavedEmbedded, rec.Status)
		require.NotNil(t, rec.LastCaptureAt)

		asset, err := h.tiers.Get(context.Background(), rec.Identity)
		require.NoError(t, err)
		require.NotNil(t, asset)
		require.Equal(t, 600, asset.Width)
		require.Equal(t, imaging.TargetHeight(1200, 800, 600), asset.Height)
	}
	require.Equal(t, "One", h.record(t, "https://one.test/").Title)
	require.Zero(t, h.fake.OpenTabs(), "capture tab must be closed")

	status := h.orch.Status()
	require.False(t, status.Running)
	require.Equal(t, 3, status.Processed)
	require.Zero(t, status.Failed)
}

func TestNavigationTimeoutAndCaptureFailureScenario(t *testing.T) {
	pages := map[string]browser.FakePage{
		"https://a.test/": okPage(t, "A"),
		// Never loads within the timeout and offers no capture surface.
		"https://b.test/": {LoadDelay: time.Second},
	}
	h := newHarness(t, pages)

	h.submitAndWait(t, []string{"https://a.test/", "https://b.test/"}, capture.Options{})

	require.Equal(t, []string{
		"started https://a.test/", "updated https://a.test/",
		"started https://b.test/", "failed https://b.test/",
	}, h.log.summary())

	a := h.record(t, "https://a.test/")
	require.True(t, a.Status.IsSaved())
	b := h.record(t, "https://b.test/")
	require.Equal(t, store.StatusError, b.Status)
	require.Contains(t, b.ErrorDetail, services.ErrCaptureUnavailable.Error())

	status := h.orch.Status()
	require.Equal(t, 1, status.Failed)
	require.NotEmpty(t, status.LastError)
}

func TestCancelAfterLoadWaitFailsInFlightItem(t *testing.T) {
	pages := map[string]browser.FakePage{
		"https://one.test/":   {Title: "One", LoadDelay: 50 * time.Millisecond, Visible: testsupport.PNG(t, 40, 30)},
		"https://two.test/":   okPage(t, "Two"),
		"https://three.test/": okPage(t, "Three"),
	}
	h := newHarness(t, pages)
	h.log.onAdd = func(evt events.Event) {
		if evt.Type == events.Started && evt.URL == "https://one.test/" {
			h.orch.Cancel()
		}
	}

	h.submitAndWait(t, []string{"https://one.test/", "https://two.test/", "https://three.test/"}, capture.Options{})

	require.Equal(t, []string{"started https://one.test/", "failed https://one.test/"}, h.log.summary())
	rec := h.record(t, "https://one.test/")
	require.Equal(t, store.StatusError, rec.Status)
	require.Equal(t, "capture cancelled", rec.ErrorDetail)
	require.Nil(t, h.record(t, "https://two.test/"), "no record may be touched after the cancel boundary")
	require.Zero(t, h.fake.OpenTabs())
}

func TestCancelBetweenItemsStopsBeforeNextStarted(t *testing.T) {
	pages := map[string]browser.FakePage{
		"https://one.test/": okPage(t, "One"),
		"https://two.test/": okPage(t, "Two"),
	}
	h := newHarness(t, pages)
	h.log.onAdd = func(evt events.Event) {
		if evt.Type == events.Updated {
			h.orch.Cancel()
		}
	}

	h.submitAndWait(t, []string{"https://one.test/", "https://two.test/"}, capture.Options{})

	require.Equal(t, []string{"started https://one.test/", "updated https://one.test/"}, h.log.summary())
	require.True(t, h.orch.Status().CancelRequested)
}

func TestSecondBatchRejectedWhileRunning(t *testing.T) {
	pages := map[string]browser.FakePage{
		"https://slow.test/": {Title: "Slow", LoadDelay: 150 * time.Millisecond, Visible: testsupport.PNG(t, 40, 30)},
	}
	h := newHarness(t, pages)

	_, err := h.orch.SubmitBatch(context.Background(), []string{"https://slow.test/"}, capture.Options{})
	require.NoError(t, err)
	_, err = h.orch.SubmitBatch(context.Background(), []string{"https://other.test/"}, capture.Options{})
	require.ErrorIs(t, err, capture.ErrBatchInFlight)
	require.True(t, h.orch.Status().Running)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, h.orch.Wait(ctx))
	require.False(t, h.orch.Cancel(), "cancel is a no-op when idle")

	// Idle again: a new batch is accepted.
	h.submitAndWait(t, []string{"https://slow.test/"}, capture.Options{})
}

func TestTabOpenFailureAbortsBeforePending(t *testing.T) {
	h := newHarness(t, nil)
	h.fake.OpenErr = errors.New("browser gone")

	_, err := h.orch.SubmitBatch(context.Background(), []string{"https://a.test/"}, capture.Options{})
	require.ErrorIs(t, err, services.ErrCaptureUnavailable)
	require.Empty(t, h.log.summary())
	require.Nil(t, h.record(t, "https://a.test/"))
	require.False(t, h.orch.Status().Running)
}

func TestSubmitRejectsEmptyBatch(t *testing.T) {
	h := newHarness(t, nil)
	_, err := h.orch.SubmitBatch(context.Background(), []string{"  ", ""}, capture.Options{})
	require.ErrorIs(t, err, services.ErrValidation)
}

func TestResubmissionOverwritesErrorState(t *testing.T) {
	pages := map[string]browser.FakePage{"https://flaky.test/": {Title: "Flaky"}}
	h := newHarness(t, pages)

	h.submitAndWait(t, []string{"https://flaky.test/"}, capture.Options{})
	require.Equal(t, store.StatusError, h.record(t, "https://flaky.test/").Status)

	pages["https://flaky.test/"] = okPage(t, "Flaky")
	h.submitAndWait(t, []string{"https://flaky.test/"}, capture.Options{})
	rec := h.record(t, "https://flaky.test/")
	require.Equal(t, store.StatusSavedEmbedded, rec.Status)
	require.Empty(t, rec.ErrorDetail)
}

func TestCaptureOneUsesExternalDirectory(t *testing.T) {
	pages := map[string]browser.FakePage{"https://ext.test/": okPage(t, "External Page")}
	h := newHarness(t, pages, testsupport.WithExternalDir())
	testsupport.WriteFile(t, filepath.Join(h.cfg.Storage.ExternalDir, ".keep"), nil)
	_, err := h.tiers.AcquireDirectory(context.Background(), h.cfg.Storage.ExternalDir)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	rec, err := h.orch.CaptureOne(ctx, "https://ext.test/", capture.Options{})
	require.NoError(t, err)
	require.NotNil(t, rec)
	require.Equal(t, store.StatusSavedExternal, rec.Status)
	require.Contains(t, rec.Filename, "External_Page_")

	asset, err := h.tiers.Get(ctx, rec.Identity)
	require.NoError(t, err)
	require.NotNil(t, asset)
	require.Equal(t, 600, asset.Width)
}

func TestSchemelessURLIsCanonicalizedBeforeNavigation(t *testing.T) {
	pages := map[string]browser.FakePage{"https://a.test/": okPage(t, "Bare Host")}
	h := newHarness(t, pages)

	h.submitAndWait(t, []string{"a.test"}, capture.Options{})

	require.Contains(t, h.fake.Log(), "navigate https://a.test/")
	require.NotContains(t, h.fake.Log(), "navigate a.test")
	require.Equal(t, []string{"started https://a.test/", "updated https://a.test/"}, h.log.summary())

	rec := h.record(t, "a.test")
	require.NotNil(t, rec)
	require.Equal(t, "https://a.test/", rec.SourceURL)
	require.Equal(t, store.StatusSavedEmbedded, rec.Status)
	require.Equal(t, "Bare Host", rec.Title)
}
