package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"tabshot/internal/api"
	"tabshot/internal/store"
	"tabshot/internal/testsupport"
)

func TestDaemonStartStatus(t *testing.T) {
	env := setupCLITestEnv(t)

	out := env.run(t, "start")
	requireContains(t, out, "Daemon started")

	out = env.run(t, "start")
	requireContains(t, out, "Daemon already running")

	testsupport.SeedRecord(t, env.store, "https://example.com/broken", store.StatusError)

	out = env.run(t, "status")
	requireContains(t, out, "== Daemon ==")
	requireContains(t, out, "== Storage ==")
	requireContains(t, out, "running (pid")
	requireContains(t, out, "idle")
	requireContains(t, out, string(store.StatusError))

	out = env.run(t, "status", "--json")
	var status api.DaemonStatus
	if err := json.Unmarshal([]byte(out), &status); err != nil {
		t.Fatalf("decode status json: %v\n%s", err, out)
	}
	if !status.Running || status.Counts[string(store.StatusError)] != 1 {
		t.Fatalf("unexpected status: %+v", status)
	}

	out = env.run(t, "ping")
	requireContains(t, out, "ok")
}

func TestCaptureListShowImageDelete(t *testing.T) {
	env := setupCLITestEnv(t)
	env.run(t, "start")

	out := env.run(t, "capture", pageA)
	requireContains(t, out, string(store.StatusSavedEmbedded))
	requireContains(t, out, "Page A")

	out = env.run(t, "list")
	requireContains(t, out, pageA)
	requireContains(t, out, string(store.StatusSavedEmbedded))

	out = env.run(t, "list", "--status", string(store.StatusError))
	requireContains(t, out, "No thumbnails recorded")

	out = env.run(t, "list", "--json")
	var items []api.Thumbnail
	if err := json.Unmarshal([]byte(out), &items); err != nil {
		t.Fatalf("decode list json: %v", err)
	}
	if len(items) != 1 || items[0].URL != pageA {
		t.Fatalf("unexpected list: %+v", items)
	}

	out = env.run(t, "show", items[0].Identity)
	requireContains(t, out, "URL:       "+pageA)

	target := filepath.Join(env.baseDir, "thumb.img")
	env.run(t, "image", pageA, "-o", target)
	data, err := os.ReadFile(target)
	if err != nil {
		t.Fatalf("read image: %v", err)
	}
	if len(data) == 0 {
		t.Fatal("expected image bytes")
	}

	out = env.run(t, "delete", pageA)
	requireContains(t, out, "Deleted "+pageA)

	if _, _, err := runCLI(t, []string{"show", pageA}, env.socketPath, env.configPath); err == nil {
		t.Fatal("expected show after delete to fail")
	}
}

func TestSubmitWaitReportsBatch(t *testing.T) {
	env := setupCLITestEnv(t)
	env.run(t, "start")

	listPath := filepath.Join(env.baseDir, "urls.txt")
	if err := os.WriteFile(listPath, []byte("# reading list\n"+pageB+"\n\n"), 0o644); err != nil {
		t.Fatalf("write url list: %v", err)
	}

	out := env.run(t, "submit", pageA, "--file", listPath, "--wait")
	requireContains(t, out, "accepted (2 URLs)")
	requireContains(t, out, "Batch finished: 2 processed, 0 failed")

	out = env.run(t, "watch")
	requireContains(t, out, "UPDATED")
	requireContains(t, out, pageB)

	out = env.run(t, "cancel")
	requireContains(t, out, "No batch running")
}

func TestSubmitRequiresURLs(t *testing.T) {
	env := setupCLITestEnv(t)
	_, _, err := runCLI(t, []string{"submit"}, env.socketPath, env.configPath)
	if err == nil || !strings.Contains(err.Error(), "no URLs") {
		t.Fatalf("expected missing URL error, got %v", err)
	}
}

func TestDirectorySetClearReconcile(t *testing.T) {
	env := setupCLITestEnv(t)
	env.run(t, "start")

	external := filepath.Join(env.baseDir, "shots")
	if err := os.MkdirAll(external, 0o755); err != nil {
		t.Fatalf("mkdir external: %v", err)
	}
	out := env.run(t, "dir", "set", external)
	requireContains(t, out, "External directory set to "+external)

	out = env.run(t, "capture", pageA)
	requireContains(t, out, string(store.StatusSavedExternal))

	out = env.run(t, "dir", "clear")
	requireContains(t, out, "External directory cleared")

	out = env.run(t, "dir", "reconcile", external)
	requireContains(t, out, "Relinked 1 thumbnails")

	out = env.run(t, "show", pageA)
	requireContains(t, out, string(store.StatusSavedEmbedded))
}

func TestBackupExportImport(t *testing.T) {
	env := setupCLITestEnv(t)
	env.run(t, "start")
	env.run(t, "capture", pageA)
	env.run(t, "settings", "set", "theme", "dark")

	backupPath := filepath.Join(env.baseDir, "backup.json")
	_, stderr, err := runCLI(t, []string{"backup", "export", "--images", "-o", backupPath}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	requireContains(t, stderr, "Exported 1 thumbnails")

	env.run(t, "delete", pageA)

	out := env.run(t, "backup", "import", backupPath)
	requireContains(t, out, "Imported 1 thumbnails (0 skipped)")

	out = env.run(t, "show", pageA)
	requireContains(t, out, string(store.StatusSavedEmbedded))

	out = env.run(t, "settings", "list")
	requireContains(t, out, "theme")
	requireContains(t, out, "dark")
}

func TestLogsFollow(t *testing.T) {
	env := setupCLITestEnv(t)
	logPath := env.cfg.LogPath()
	if err := appendLine(logPath, "first"); err != nil {
		t.Fatalf("append first: %v", err)
	}

	out := env.run(t, "logs", "--lines", "5")
	requireContains(t, out, "first")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cmd := newRootCommand()
	cmd.SetArgs([]string{"--socket", env.socketPath, "--config", env.configPath, "logs", "--follow"})
	cmd.SetContext(ctx)
	stdout := &syncBuffer{}
	cmd.SetOut(stdout)
	cmd.SetErr(&bytes.Buffer{})

	done := make(chan error, 1)
	go func() {
		done <- cmd.Execute()
	}()

	waitFor(t, 2*time.Second, func() bool { return stdout.Len() > 0 })
	if err := appendLine(logPath, "second"); err != nil {
		t.Fatalf("append second: %v", err)
	}
	waitFor(t, 3*time.Second, func() bool { return strings.Contains(stdout.String(), "second") })
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("execute: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("logs --follow did not exit")
	}
}

func TestTestNotifyWithoutTopic(t *testing.T) {
	env := setupCLITestEnv(t)
	out := env.run(t, "test-notify")
	requireContains(t, out, "ntfy topic not configured")
}

func TestCommandsWithoutDaemon(t *testing.T) {
	env := setupCLITestEnv(t)
	missing := filepath.Join(env.baseDir, "missing.sock")

	_, _, err := runCLI(t, []string{"list"}, missing, env.configPath)
	if err == nil || !strings.Contains(err.Error(), "tabshot start") {
		t.Fatalf("expected start hint, got %v", err)
	}

	out, _, err := runCLI(t, []string{"stop"}, missing, env.configPath)
	if err != nil {
		t.Fatalf("stop: %v", err)
	}
	requireContains(t, out, "Daemon is not running")

	out, _, err = runCLI(t, []string{"status"}, missing, env.configPath)
	if err != nil {
		t.Fatalf("offline status: %v", err)
	}
	requireContains(t, out, "not running")
	requireContains(t, out, "== Checks ==")
}

func TestConfigInitAndValidate(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	target := filepath.Join(dir, "tabshot.toml")

	out, _, err := runCLI(t, []string{"config", "init", "--path", target}, "", "")
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration")

	if _, _, err := runCLI(t, []string{"config", "init", "--path", target}, "", ""); err == nil {
		t.Fatal("expected init to refuse overwriting")
	}

	out, _, err = runCLI(t, []string{"config", "validate"}, "", target)
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	requireContains(t, out, "Configuration valid")
}

func TestWatchJSONPrintsOneEventPerLine(t *testing.T) {
	env := setupCLITestEnv(t)
	env.run(t, "start")
	env.run(t, "capture", pageA)

	out := env.run(t, "watch", "--json")
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) < 2 {
		t.Fatalf("expected started and updated events, got %q", out)
	}
	for _, line := range lines {
		var evt api.Event
		if err := json.Unmarshal([]byte(line), &evt); err != nil {
			t.Fatalf("line %q is not a JSON event: %v", line, err)
		}
		if evt.URL != pageA {
			t.Fatalf("unexpected event url %q", evt.URL)
		}
	}
}
