package logging

import (
	"context"
	"log/slog"
	"time"
)

type Attr = slog.Attr

func Bool(key string, value bool) Attr { return slog.Bool(key, value) }

func Duration(key string, value time.Duration) Attr { return slog.Duration(key, value) }

func Int(key string, value int) Attr { return slog.Int(key, value) }

func Int64(key string, value int64) Attr { return slog.Int64(key, value) }

func String(key string, value string) Attr { return slog.String(key, value) }

// Error records err under "error"; a nil error is written as "<nil>".
func Error(err error) Attr {
	if err == nil {
		return slog.String("error", "<nil>")
	}
	return slog.Any("error", err)
}

// BatchID, Identity and URL tag a line with the capture it belongs to, so
// `tabshot logs --batch` and `--url` can find it.
func BatchID(id string) Attr { return slog.String(FieldBatchID, id) }

func Identity(id string) Attr { return slog.String(FieldIdentity, id) }

func URL(url string) Attr { return slog.String(FieldURL, url) }

func NewNop() *slog.Logger {
	return slog.New(NoopHandler{})
}

// NewComponentLogger creates a logger with a standardized component attribute.
// If logger is nil, a no-op logger is used as the base.
func NewComponentLogger(logger *slog.Logger, component string) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	return logger.With(String(FieldComponent, component))
}

// diagnostic fills in any of the operator-facing fields the caller left out.
type diagnostic struct {
	eventType string
	hint      string
	impact    string
}

func (d diagnostic) args(attrs []Attr) []any {
	seen := make(map[string]bool, 3)
	args := make([]any, 0, len(attrs)+3)
	for _, a := range attrs {
		seen[a.Key] = true
		args = append(args, a)
	}
	if !seen[FieldEventType] {
		args = append(args, String(FieldEventType, d.eventType))
	}
	if !seen[FieldErrorHint] {
		args = append(args, String(FieldErrorHint, d.hint))
	}
	if d.impact != "" && !seen[FieldImpact] {
		args = append(args, String(FieldImpact, d.impact))
	}
	return args
}

// WarnWithContext logs a warning that always carries event_type, error_hint
// and impact. Missing fields get generic defaults.
func WarnWithContext(logger *slog.Logger, msg, eventType string, attrs ...Attr) {
	if logger == nil {
		return
	}
	d := diagnostic{eventType: eventType, hint: "check logs for details", impact: "operation completed with warnings"}
	logger.Warn(msg, d.args(attrs)...)
}

// ErrorWithContext logs an error that always carries event_type and error_hint.
func ErrorWithContext(logger *slog.Logger, msg, eventType string, attrs ...Attr) {
	if logger == nil {
		return
	}
	d := diagnostic{eventType: eventType, hint: "check logs for details"}
	logger.Error(msg, d.args(attrs)...)
}

// NoopHandler discards all log output.
type NoopHandler struct{}

func (NoopHandler) Enabled(context.Context, slog.Level) bool { return false }

func (NoopHandler) Handle(context.Context, slog.Record) error { return nil }

func (NoopHandler) WithAttrs([]slog.Attr) slog.Handler { return NoopHandler{} }

func (NoopHandler) WithGroup(string) slog.Handler { return NoopHandler{} }
