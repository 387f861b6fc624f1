package daemon

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"tabshot/internal/api"
	"tabshot/internal/browser"
	"tabshot/internal/logging"
	"tabshot/internal/store"
	"tabshot/internal/testsupport"
)

func newTestAPI(t *testing.T, token string, pages map[string]browser.FakePage) (*httptest.Server, *Daemon, *store.Store) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	st := testsupport.MustOpenStore(t, cfg)
	d, err := New(cfg, Deps{Browser: browser.NewFake(pages), Store: st, Logger: logging.NewNop()})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if d.api == nil {
		t.Fatal("expected api server for non-empty bind")
	}
	ts := httptest.NewServer(d.api.routes(token))
	t.Cleanup(func() {
		ts.Close()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = d.capture.Shutdown(ctx)
	})
	return ts, d, st
}

func getJSON(t *testing.T, url string, out any) int {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s: %v", url, err)
		}
	}
	return resp.StatusCode
}

func TestAPIServerHandleThumbnails(t *testing.T) {
	ts, _, st := newTestAPI(t, "", nil)
	testsupport.SeedRecord(t, st, "https://example.com/a", store.StatusNone)
	testsupport.SeedRecord(t, st, "https://example.com/b", store.StatusError)

	var resp api.ThumbnailListResponse
	if code := getJSON(t, ts.URL+"/api/thumbnails", &resp); code != http.StatusOK {
		t.Fatalf("expected 200 OK, got %d", code)
	}
	if len(resp.Items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(resp.Items))
	}

	resp = api.ThumbnailListResponse{}
	if code := getJSON(t, ts.URL+"/api/thumbnails?status=error", &resp); code != http.StatusOK {
		t.Fatalf("expected 200 OK, got %d", code)
	}
	if len(resp.Items) != 1 || resp.Items[0].URL != "https://example.com/b" {
		t.Fatalf("unexpected filtered items: %+v", resp.Items)
	}

	var errResp api.ErrorResponse
	if code := getJSON(t, ts.URL+"/api/thumbnails?status=bogus", &errResp); code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown status, got %d", code)
	}
}

func TestAPIServerThumbnailNotFound(t *testing.T) {
	ts, _, _ := newTestAPI(t, "", nil)
	var errResp api.ErrorResponse
	code := getJSON(t, ts.URL+"/api/thumbnails/6ba7b810-9dad-11d1-80b4-00c04fd430c8", &errResp)
	if code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", code)
	}
	if errResp.Kind != "not_found" {
		t.Fatalf("expected not_found kind, got %q", errResp.Kind)
	}
}

func TestAPIServerSubmitBatchAndImage(t *testing.T) {
	const url = "https://example.com/page"
	ts, d, _ := newTestAPI(t, "", map[string]browser.FakePage{
		url: {Title: "Example", Visible: testsupport.PNG(t, 1280, 800)},
	})

	body, _ := json.Marshal(api.SubmitBatchRequest{URLs: []string{url}})
	resp, err := http.Post(ts.URL+"/api/batches", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("POST batches: %v", err)
	}
	var submitted api.SubmitBatchResponse
	if err := json.NewDecoder(resp.Body).Decode(&submitted); err != nil {
		t.Fatalf("decode: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted || submitted.BatchID == "" {
		t.Fatalf("unexpected submit response %d %+v", resp.StatusCode, submitted)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := d.capture.Wait(ctx); err != nil {
		t.Fatalf("Wait: %v", err)
	}

	identity, err := store.IdentityFor(url)
	if err != nil {
		t.Fatalf("IdentityFor: %v", err)
	}
	img, err := http.Get(ts.URL + "/api/thumbnails/" + identity + "/image")
	if err != nil {
		t.Fatalf("GET image: %v", err)
	}
	defer img.Body.Close()
	data, _ := io.ReadAll(img.Body)
	if img.StatusCode != http.StatusOK || len(data) == 0 {
		t.Fatalf("expected image bytes, got %d (%d bytes)", img.StatusCode, len(data))
	}
	if ct := img.Header.Get("Content-Type"); !strings.HasPrefix(ct, "image/") {
		t.Fatalf("unexpected content type %q", ct)
	}

	var evts api.EventsResponse
	if code := getJSON(t, ts.URL+"/api/events?since=0", &evts); code != http.StatusOK {
		t.Fatalf("expected 200 from events, got %d", code)
	}
	if len(evts.Events) == 0 || evts.Next == 0 {
		t.Fatalf("expected batch events, got %+v", evts)
	}
}

func TestAPIServerSubmitBatchRejectsEmptyList(t *testing.T) {
	ts, _, _ := newTestAPI(t, "", nil)
	resp, err := http.Post(ts.URL+"/api/batches", "application/json", strings.NewReader(`{"urls":[]}`))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestAPIServerAuthRequiresToken(t *testing.T) {
	ts, _, _ := newTestAPI(t, "secret", nil)

	resp, err := http.Get(ts.URL + "/api/status")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", resp.StatusCode)
	}

	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/api/status", nil)
	req.Header.Set("Authorization", "Bearer secret")
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET with token: %v", err)
	}
	var status api.DaemonStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		t.Fatalf("decode: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || status.PID == 0 {
		t.Fatalf("unexpected status response %d %+v", resp.StatusCode, status)
	}

	metrics, err := http.Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET metrics: %v", err)
	}
	payload, _ := io.ReadAll(metrics.Body)
	metrics.Body.Close()
	if metrics.StatusCode != http.StatusOK || !strings.Contains(string(payload), "tabshot_http_requests_total") {
		t.Fatalf("expected http metrics to be exported, got %d", metrics.StatusCode)
	}
}

func TestAPIServerCancelWithoutBatch(t *testing.T) {
	ts, _, _ := newTestAPI(t, "", nil)
	resp, err := http.Post(ts.URL+"/api/batches/cancel", "application/json", nil)
	if err != nil {
		t.Fatalf("POST cancel: %v", err)
	}
	defer resp.Body.Close()
	var out api.CancelResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Cancelled {
		t.Fatal("expected no batch to cancel")
	}
}

func TestAPIServerDisabledWithoutBind(t *testing.T) {
	var srv *apiServer
	if err := srv.start(context.Background()); err != nil {
		t.Fatalf("nil server start: %v", err)
	}
	srv.stop()
	if srv.address() != "" {
		t.Fatal("expected empty address for disabled api")
	}
}
