package logging_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"tabshot/internal/config"
	"tabshot/internal/logging"
	"tabshot/internal/services"
)

func TestNewFromConfigWritesJSONFile(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.LogDir = t.TempDir()

	logger, err := logging.NewFromConfig(&cfg)
	if err != nil {
		t.Fatalf("NewFromConfig returned error: %v", err)
	}
	logger.Info("daemon started", logging.String("api_bind", "127.0.0.1:0"))

	content, err := os.ReadFile(filepath.Join(cfg.Paths.LogDir, "tabshot.log"))
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	var line map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(string(content))), &line); err != nil {
		t.Fatalf("expected JSON log line, got %q: %v", content, err)
	}
	if line["msg"] != "daemon started" || line["level"] != "info" {
		t.Fatalf("unexpected log line: %v", line)
	}
	if _, ok := line["ts"]; !ok {
		t.Fatalf("expected ts key: %v", line)
	}
}

func TestConsoleLoggerFormatsComponent(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "console.log")
	logger, err := logging.New(logging.Options{Format: "console", Level: "info", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	logging.NewComponentLogger(logger, "capture").Info("batch finished", logging.Int("processed", 3), logging.String("note", "two words"))

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	text := string(content)
	if !strings.Contains(text, "INFO capture: batch finished") {
		t.Fatalf("expected component prefix, got %q", text)
	}
	if !strings.Contains(text, "processed=3") || !strings.Contains(text, `note="two words"`) {
		t.Fatalf("expected key=value fields, got %q", text)
	}
	if strings.Contains(text, ".go:") {
		t.Fatalf("expected no caller information in info logs, got %q", text)
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := logging.New(logging.Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestWithContextAddsFields(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "ctx.log")
	logger, err := logging.New(logging.Options{Format: "json", Level: "debug", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	ctx := services.WithBatchID(context.Background(), "batch-1")
	ctx = services.WithURL(ctx, "https://a.test/")
	ctx = services.WithIdentity(ctx, "id-1")
	logging.WithContext(ctx, logger).Info("capturing")

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	for _, want := range []string{`"batch_id":"batch-1"`, `"url":"https://a.test/"`, `"identity":"id-1"`} {
		if !strings.Contains(string(content), want) {
			t.Fatalf("expected %s in %s", want, content)
		}
	}
}

func TestWarnWithContextInjectsDefaults(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "warn.log")
	logger, err := logging.New(logging.Options{Format: "json", Level: "info", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logging.WarnWithContext(logger, "navigation timed out", "navigation_timeout",
		logging.String(logging.FieldErrorHint, "page may be slow"))

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	text := string(content)
	for _, want := range []string{`"event_type":"navigation_timeout"`, `"error_hint":"page may be slow"`, `"impact"`} {
		if !strings.Contains(text, want) {
			t.Fatalf("expected %s in %s", want, text)
		}
	}
}

func TestErrorWithContextOmitsImpactAndTagsCapture(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "error.log")
	logger, err := logging.New(logging.Options{Format: "json", Level: "info", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logging.ErrorWithContext(logger, "persist failed", "persist_failed",
		logging.BatchID("b7"), logging.Identity("id-7"), logging.URL("https://a.test/"))

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	text := string(content)
	for _, want := range []string{`"event_type":"persist_failed"`, `"error_hint":"check logs for details"`, `"batch_id":"b7"`, `"identity":"id-7"`, `"url":"https://a.test/"`} {
		if !strings.Contains(text, want) {
			t.Fatalf("expected %s in %s", want, text)
		}
	}
	if strings.Contains(text, `"impact"`) {
		t.Fatalf("error lines carry no default impact: %s", text)
	}
	if strings.Count(text, `"event_type"`) != 1 {
		t.Fatalf("event_type must not be duplicated: %s", text)
	}
}
