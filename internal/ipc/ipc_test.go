package ipc_test

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"tabshot/internal/browser"
	"tabshot/internal/daemon"
	"tabshot/internal/ipc"
	"tabshot/internal/logging"
	"tabshot/internal/store"
	"tabshot/internal/testsupport"
)

func TestIPCServerClient(t *testing.T) {
	const pageURL = "https://example.com/article"

	cfg := testsupport.NewConfig(t, testsupport.WithExternalDir())
	cfg.Paths.APIBind = ""
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	st := testsupport.MustOpenStore(t, cfg)
	logger := logging.NewNop()
	fake := browser.NewFake(map[string]browser.FakePage{
		pageURL: {Title: "Article", Visible: testsupport.PNG(t, 1280, 800)},
	})
	d, err := daemon.New(cfg, daemon.Deps{Browser: fake, Store: st, Logger: logger})
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(func() {
		d.Stop()
	})

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	socket := filepath.Join(cfg.Paths.DataDir, "tabshot.sock")
	srv, err := ipc.NewServer(ctx, socket, d, logger)
	if err != nil {
		if strings.Contains(err.Error(), "operation not permitted") {
			t.Skipf("skipping IPC server test: %v", err)
		}
		t.Fatalf("ipc.NewServer: %v", err)
	}
	srv.Serve()
	t.Cleanup(func() {
		srv.Close()
	})

	client, err := ipc.Dial(socket)
	if err != nil {
		t.Fatalf("ipc.Dial: %v", err)
	}
	t.Cleanup(func() {
		client.Close()
	})

	ping, err := client.Ping()
	if err != nil {
		t.Fatalf("Ping failed: %v", err)
	}
	if ping.Status != "ok" {
		t.Fatalf("expected ok ping, got %q", ping.Status)
	}

	startResp, err := client.Start()
	if err != nil {
		t.Fatalf("Start RPC failed: %v", err)
	}
	if !startResp.Started {
		t.Fatalf("expected Started=true, message=%s", startResp.Message)
	}

	status, err := client.Status()
	if err != nil {
		t.Fatalf("Status RPC failed: %v", err)
	}
	if !status.Running {
		t.Fatal("expected daemon to be running")
	}
	if status.Storage.Directory != cfg.Storage.ExternalDir {
		t.Fatalf("expected configured directory to be held, got %q", status.Storage.Directory)
	}

	captured, err := client.Capture(ipc.CaptureRequest{URL: pageURL})
	if err != nil {
		t.Fatalf("Capture failed: %v", err)
	}
	if captured.Item.Status != string(store.StatusSavedExternal) {
		t.Fatalf("expected saved_external with a held directory, got %s", captured.Item.Status)
	}
	if captured.Item.Filename == "" {
		t.Fatal("expected external filename")
	}
	if _, err := os.Stat(filepath.Join(cfg.Storage.ExternalDir, captured.Item.Filename)); err != nil {
		t.Fatalf("expected external file: %v", err)
	}

	img, err := client.Image(pageURL)
	if err != nil {
		t.Fatalf("Image failed: %v", err)
	}
	if len(img.Data) == 0 || !strings.HasPrefix(img.MimeType, "image/") {
		t.Fatalf("unexpected image response: %d bytes %q", len(img.Data), img.MimeType)
	}

	list, err := client.List([]string{string(store.StatusSavedExternal)})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(list.Items) != 1 || list.Items[0].URL != pageURL {
		t.Fatalf("unexpected list: %+v", list.Items)
	}
	if _, err := client.List([]string{"bogus"}); err == nil {
		t.Fatal("expected unknown status to fail")
	}

	evts, err := client.Events(ipc.EventsRequest{Since: 0, Limit: 50})
	if err != nil {
		t.Fatalf("Events failed: %v", err)
	}
	if len(evts.Events) == 0 {
		t.Fatal("expected capture events")
	}

	if err := client.SetSetting("theme", "dark"); err != nil {
		t.Fatalf("SetSetting: %v", err)
	}
	exported, err := client.Export(false)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if len(exported.Document.Items) != 1 || exported.Document.Settings["theme"] != "dark" {
		t.Fatalf("unexpected export document: %+v", exported.Document)
	}

	cleared, err := client.ClearDirectory()
	if err != nil || !cleared.Cleared {
		t.Fatalf("ClearDirectory: %v %+v", err, cleared)
	}
	relinked, err := client.Reconcile(cfg.Storage.ExternalDir)
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if relinked.Relinked != 1 {
		t.Fatalf("expected external record to be relinked, got %d", relinked.Relinked)
	}
	described, err := client.Describe(pageURL)
	if err != nil {
		t.Fatalf("Describe: %v", err)
	}
	if described.Item.Status != string(store.StatusSavedEmbedded) {
		t.Fatalf("expected relinked record to be embedded, got %s", described.Item.Status)
	}

	deleted, err := client.Delete(pageURL)
	if err != nil || !deleted.Deleted {
		t.Fatalf("Delete: %v %+v", err, deleted)
	}
	if _, err := client.Describe(pageURL); err == nil {
		t.Fatal("expected describe after delete to fail")
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(exported.Document); err != nil {
		t.Fatalf("encode export: %v", err)
	}
	imported, err := client.Import(buf.Bytes())
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if imported.Imported != 1 {
		t.Fatalf("expected restored record, got %+v", imported)
	}

	notify, err := client.TestNotification()
	if err != nil {
		t.Fatalf("TestNotification: %v", err)
	}
	if notify.Sent {
		t.Fatal("expected no notification without a topic")
	}

	stopResp, err := client.Stop()
	if err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if !stopResp.Stopped {
		t.Fatalf("expected Stop to report stopped, got: %#v", stopResp)
	}
	status, err = client.Status()
	if err != nil {
		t.Fatalf("Status after stop: %v", err)
	}
	if status.Running {
		t.Fatal("expected daemon to report stopped")
	}
}

func TestIPCLogTail(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Paths.APIBind = ""
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	st := testsupport.MustOpenStore(t, cfg)
	d, err := daemon.New(cfg, daemon.Deps{Browser: browser.NewFake(nil), Store: st})
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}

	socket := filepath.Join(cfg.Paths.DataDir, "tabshot.sock")
	srv, err := ipc.NewServer(context.Background(), socket, d, nil)
	if err != nil {
		if strings.Contains(err.Error(), "operation not permitted") {
			t.Skipf("skipping IPC server test: %v", err)
		}
		t.Fatalf("ipc.NewServer: %v", err)
	}
	srv.Serve()
	t.Cleanup(srv.Close)

	client, err := ipc.Dial(socket)
	if err != nil {
		t.Fatalf("ipc.Dial: %v", err)
	}
	t.Cleanup(func() { client.Close() })

	if err := os.WriteFile(cfg.LogPath(), []byte("first\nsecond\nthird\n"), 0o644); err != nil {
		t.Fatalf("write log file: %v", err)
	}
	resp, err := client.LogTail(ipc.LogTailRequest{Offset: -1, Limit: 2})
	if err != nil {
		t.Fatalf("LogTail failed: %v", err)
	}
	if len(resp.Lines) != 2 || resp.Lines[0] != "second" || resp.Lines[1] != "third" {
		t.Fatalf("unexpected log tail response: %#v", resp.Lines)
	}

	done := make(chan struct{})
	go func(offset int64) {
		defer close(done)
		follow, err := client.LogTail(ipc.LogTailRequest{Offset: offset, Follow: true, WaitMillis: 2000})
		if err != nil {
			t.Errorf("LogTail follow error: %v", err)
			return
		}
		if len(follow.Lines) != 1 || follow.Lines[0] != "fourth" {
			t.Errorf("unexpected follow lines: %#v", follow.Lines)
		}
	}(resp.Offset)

	time.Sleep(100 * time.Millisecond)
	f, err := os.OpenFile(cfg.LogPath(), os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatalf("append log: %v", err)
	}
	_, _ = f.WriteString("fourth\n")
	_ = f.Close()

	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("log tail follow timed out")
	}
}

func TestIPCLogTailFiltersByBatchAndLevel(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Paths.APIBind = ""
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	st := testsupport.MustOpenStore(t, cfg)
	d, err := daemon.New(cfg, daemon.Deps{Browser: browser.NewFake(nil), Store: st})
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}

	socket := filepath.Join(cfg.Paths.DataDir, "tabshot.sock")
	srv, err := ipc.NewServer(context.Background(), socket, d, nil)
	if err != nil {
		if strings.Contains(err.Error(), "operation not permitted") {
			t.Skipf("skipping IPC server test: %v", err)
		}
		t.Fatalf("ipc.NewServer: %v", err)
	}
	srv.Serve()
	t.Cleanup(srv.Close)

	client, err := ipc.Dial(socket)
	if err != nil {
		t.Fatalf("ipc.Dial: %v", err)
	}
	t.Cleanup(func() { client.Close() })

	content := `{"level":"info","msg":"one","batch_id":"b1"}
{"level":"warn","msg":"two","batch_id":"b1","identity":"id-x"}
{"level":"warn","msg":"three","batch_id":"b2"}
`
	if err := os.WriteFile(cfg.LogPath(), []byte(content), 0o644); err != nil {
		t.Fatalf("write log file: %v", err)
	}

	resp, err := client.LogTail(ipc.LogTailRequest{Offset: -1, Limit: 10, BatchID: "b1", Level: "warn"})
	if err != nil {
		t.Fatalf("LogTail failed: %v", err)
	}
	if len(resp.Lines) != 1 || !strings.Contains(resp.Lines[0], `"msg":"two"`) {
		t.Fatalf("unexpected filtered lines: %#v", resp.Lines)
	}
	if resp.Offset != int64(len(content)) {
		t.Fatalf("expected offset at end of log, got %d", resp.Offset)
	}

	if _, err := client.LogTail(ipc.LogTailRequest{Offset: -1, Limit: 10, Level: "loud"}); err == nil {
		t.Fatal("expected unknown level to be rejected")
	}
}
