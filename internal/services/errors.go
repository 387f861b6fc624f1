package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrValidation    = errors.New("validation error")
	ErrConfiguration = errors.New("configuration error")
	ErrNotFound      = errors.New("not found")
	ErrTransient     = errors.New("transient failure")

	// ErrNavigationTimeout marks a page that did not finish loading in time.
	// It is logged and never fails a capture on its own.
	ErrNavigationTimeout = errors.New("navigation timeout")
	// ErrCaptureTimeout marks a single capture strategy that exceeded its deadline.
	ErrCaptureTimeout = errors.New("capture timeout")
	// ErrCaptureUnavailable is returned once every capture strategy has failed.
	ErrCaptureUnavailable = errors.New("capture unavailable")
	ErrImageProcessing    = errors.New("image processing failed")
	ErrStorageWrite       = errors.New("storage write failed")
	// ErrPermissionDenied marks an external directory that is no longer writable.
	ErrPermissionDenied = errors.New("permission denied")
	ErrCancelled        = errors.New("capture cancelled")
)

// Wrap builds an error message that includes component context while tagging it
// with the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Kind reports a short, stable classification for err suitable for metric
// labels and log event types.
func Kind(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrCancelled):
		return "cancelled"
	case errors.Is(err, ErrCaptureUnavailable):
		return "capture_unavailable"
	case errors.Is(err, ErrCaptureTimeout):
		return "capture_timeout"
	case errors.Is(err, ErrNavigationTimeout):
		return "navigation_timeout"
	case errors.Is(err, ErrImageProcessing):
		return "image_processing"
	case errors.Is(err, ErrPermissionDenied):
		return "permission_denied"
	case errors.Is(err, ErrStorageWrite):
		return "storage_write"
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrConfiguration):
		return "configuration"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	default:
		return "unknown"
	}
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
