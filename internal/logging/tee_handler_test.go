package logging

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"
)

type failingHandler struct{ err error }

func (failingHandler) Enabled(context.Context, slog.Level) bool { return true }

func (f failingHandler) Handle(context.Context, slog.Record) error { return f.err }

func (f failingHandler) WithAttrs([]slog.Attr) slog.Handler { return f }

func (f failingHandler) WithGroup(string) slog.Handler { return f }

func TestTeeHandlerCollapses(t *testing.T) {
	if _, ok := TeeHandler(nil, nil).(NoopHandler); !ok {
		t.Fatal("expected NoopHandler when every sink is nil")
	}
	var buf bytes.Buffer
	inner := slog.NewJSONHandler(&buf, nil)
	if h := TeeHandler(nil, inner, nil); h != inner {
		t.Fatal("expected a single sink to be returned unwrapped")
	}
}

func TestTeeHandlerConsoleAndFileLevels(t *testing.T) {
	var console, file bytes.Buffer
	h := TeeHandler(
		slog.NewTextHandler(&console, &slog.HandlerOptions{Level: slog.LevelWarn}),
		slog.NewJSONHandler(&file, &slog.HandlerOptions{Level: slog.LevelDebug}),
	)
	logger := slog.New(h)
	logger.Debug("navigating", slog.String(FieldURL, "https://a.test/"))
	logger.Warn("capture strategy failed")

	if strings.Contains(console.String(), "navigating") {
		t.Fatalf("console must not receive debug lines: %s", console.String())
	}
	if !strings.Contains(console.String(), "capture strategy failed") {
		t.Fatalf("console missing warning: %s", console.String())
	}
	if strings.Count(file.String(), "\n") != 2 {
		t.Fatalf("file should hold both lines: %s", file.String())
	}
}

func TestTeeHandlerCarriesCaptureFields(t *testing.T) {
	var buf1, buf2 bytes.Buffer
	h := TeeHandler(slog.NewJSONHandler(&buf1, nil), slog.NewJSONHandler(&buf2, nil))

	logger := slog.New(h.WithAttrs([]slog.Attr{BatchID("b1")}).WithGroup("capture"))
	logger.Info("captured", slog.String("strategy", "visible"))

	for i, buf := range []*bytes.Buffer{&buf1, &buf2} {
		for _, want := range []string{`"batch_id":"b1"`, `"capture":{`, `"strategy":"visible"`} {
			if !strings.Contains(buf.String(), want) {
				t.Fatalf("sink %d missing %s: %s", i, want, buf.String())
			}
		}
	}
}

func TestTeeHandlerJoinsSinkErrors(t *testing.T) {
	first := errors.New("disk full")
	second := errors.New("pipe closed")
	var buf bytes.Buffer
	h := TeeHandler(failingHandler{err: first}, slog.NewJSONHandler(&buf, nil), failingHandler{err: second})

	err := h.Handle(context.Background(), slog.NewRecord(time.Time{}, slog.LevelInfo, "msg", 0))
	if !errors.Is(err, first) || !errors.Is(err, second) {
		t.Fatalf("expected both sink errors, got %v", err)
	}
	if buf.Len() == 0 {
		t.Fatal("healthy sink must still receive the record")
	}
}
