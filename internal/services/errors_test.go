package services_test

import (
	"errors"
	"strings"
	"testing"

	"tabshot/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrStorageWrite, "tiering", "persist", "write external file", base)
	if !errors.Is(err, services.ErrStorageWrite) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"tiering", "persist", "write external file", "boom"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestWrapDefaultsToTransient(t *testing.T) {
	err := services.Wrap(nil, "", "", "", nil)
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient marker, got %v", err)
	}
	if !strings.Contains(err.Error(), "service failure") {
		t.Fatalf("expected default detail, got %q", err.Error())
	}
}

func TestKind(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, "ok"},
		{services.Wrap(services.ErrCaptureUnavailable, "browser", "capture", "all strategies failed",
			services.Wrap(services.ErrCaptureTimeout, "browser", "visible", "", nil)), "capture_unavailable"},
		{services.Wrap(services.ErrCaptureTimeout, "browser", "in_page", "", nil), "capture_timeout"},
		{services.Wrap(services.ErrImageProcessing, "imaging", "decode", "", nil), "image_processing"},
		{services.Wrap(services.ErrPermissionDenied, "tiering", "check", "", nil), "permission_denied"},
		{services.ErrCancelled, "cancelled"},
		{errors.New("other"), "unknown"},
	}
	for _, tt := range tests {
		if got := services.Kind(tt.err); got != tt.want {
			t.Fatalf("Kind(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}
