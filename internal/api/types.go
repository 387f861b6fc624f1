package api

import (
	"tabshot/internal/events"
	"tabshot/internal/preflight"
)

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// Thumbnail describes a metadata record in a transport-friendly format.
type Thumbnail struct {
	Identity      string `json:"identity"`
	URL           string `json:"url"`
	Title         string `json:"title,omitempty"`
	Status        string `json:"status"`
	Filename      string `json:"filename,omitempty"`
	ErrorMessage  string `json:"errorMessage,omitempty"`
	LastCaptureAt string `json:"lastCaptureAt,omitempty"`
	UpdatedAt     string `json:"updatedAt,omitempty"`
}

// CaptureStatus summarizes the running or last finished batch.
type CaptureStatus struct {
	Running         bool   `json:"running"`
	CancelRequested bool   `json:"cancelRequested"`
	BatchID         string `json:"batchId,omitempty"`
	Current         string `json:"current,omitempty"`
	Processed       int    `json:"processed"`
	Failed          int    `json:"failed"`
	Total           int    `json:"total"`
	LastError       string `json:"lastError,omitempty"`
	StartedAt       string `json:"startedAt,omitempty"`
}

// StorageStatus reports embedded usage and the external directory slot.
type StorageStatus struct {
	EmbeddedCount int     `json:"embeddedCount"`
	EmbeddedBytes int64   `json:"embeddedBytes"`
	QuotaBytes    int64   `json:"quotaBytes"`
	Percent       float64 `json:"percent"`
	Low           bool    `json:"low"`
	Critical      bool    `json:"critical"`
	Directory     string  `json:"directory,omitempty"`
	DirectoryUsed string  `json:"directoryLastUsedAt,omitempty"`
}

// Check mirrors a preflight result.
type Check = preflight.Result

// DaemonStatus aggregates daemon runtime information for API consumers.
type DaemonStatus struct {
	Running      bool           `json:"running"`
	PID          int            `json:"pid"`
	DatabasePath string         `json:"databasePath"`
	LockFilePath string         `json:"lockFilePath"`
	Capture      CaptureStatus  `json:"capture"`
	Counts       map[string]int `json:"counts"`
	Storage      StorageStatus  `json:"storage"`
	Checks       []Check        `json:"checks"`
}

// ThumbnailListResponse wraps a collection of thumbnails.
type ThumbnailListResponse struct {
	Items []Thumbnail `json:"items"`
}

// ThumbnailResponse wraps a single thumbnail.
type ThumbnailResponse struct {
	Item Thumbnail `json:"item"`
}

// SubmitBatchRequest starts a capture batch.
type SubmitBatchRequest struct {
	URLs          []string `json:"urls"`
	ForceActive   bool     `json:"forceActive"`
	SettleDelayMS int      `json:"settleDelayMs"`
}

// SubmitBatchResponse reports the accepted batch.
type SubmitBatchResponse struct {
	BatchID string `json:"batchId"`
	Total   int    `json:"total"`
}

// CancelResponse reports whether a running batch was asked to stop.
type CancelResponse struct {
	Cancelled bool `json:"cancelled"`
}

// Event is a capture lifecycle event.
type Event = events.Event

// EventsResponse carries events newer than the requested cursor.
type EventsResponse struct {
	Events []Event `json:"events"`
	Next   uint64  `json:"next"`
}

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}
