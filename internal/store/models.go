package store

import (
	"strings"
	"time"
)

// Status represents where a thumbnail currently lives, or why it does not.
type Status string

const (
	StatusNone          Status = "none"
	StatusPending       Status = "pending"
	StatusSavedEmbedded Status = "saved_embedded"
	StatusSavedExternal Status = "saved_external"
	StatusError         Status = "error"
)

var allStatuses = []Status{
	StatusNone,
	StatusPending,
	StatusSavedEmbedded,
	StatusSavedExternal,
	StatusError,
}

// AllStatuses returns every known status in display order.
func AllStatuses() []Status {
	return append([]Status(nil), allStatuses...)
}

// ParseStatus converts a string into a Status, reporting false when unknown.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	for _, s := range allStatuses {
		if s == normalized {
			return s, true
		}
	}
	return "", false
}

// IsSaved reports whether the status means an asset was persisted.
func (s Status) IsSaved() bool {
	return s == StatusSavedEmbedded || s == StatusSavedExternal
}

// IsTerminal reports whether a capture attempt has finished.
func (s Status) IsTerminal() bool {
	return s.IsSaved() || s == StatusError
}

// Record is the metadata row for one thumbnail identity.
type Record struct {
	Identity      string     `json:"identity"`
	SourceURL     string     `json:"url"`
	Title         string     `json:"title,omitempty"`
	Status        Status     `json:"status"`
	Filename      string     `json:"filename,omitempty"`
	LastCaptureAt *time.Time `json:"last_capture_at,omitempty"`
	ErrorDetail   string     `json:"error_detail,omitempty"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// Asset is one processed thumbnail image.
type Asset struct {
	Identity  string    `json:"identity"`
	MimeType  string    `json:"mime_type"`
	Data      []byte    `json:"-"`
	Width     int       `json:"width"`
	Height    int       `json:"height"`
	ByteSize  int64     `json:"byte_size"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DirectoryHandle is the single active external storage directory.
type DirectoryHandle struct {
	Path       string    `json:"path"`
	AcquiredAt time.Time `json:"acquired_at"`
	LastUsedAt time.Time `json:"last_used_at"`
}

// StatusCounts maps each status to the number of records holding it.
type StatusCounts map[Status]int

// Total sums all counts.
func (c StatusCounts) Total() int {
	total := 0
	for _, n := range c {
		total += n
	}
	return total
}
