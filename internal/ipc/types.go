package ipc

import (
	"tabshot/internal/api"
	"tabshot/internal/backup"
)

// StartRequest triggers daemon startup.
type StartRequest struct{}

// StartResponse indicates whether the daemon was started.
type StartResponse struct {
	Started bool   `json:"started"`
	Message string `json:"message"`
}

// StopRequest stops the daemon.
type StopRequest struct{}

// StopResponse indicates stop result.
type StopResponse struct {
	Stopped bool `json:"stopped"`
}

// PingRequest checks liveness.
type PingRequest struct{}

// PingResponse always carries "ok" from a live daemon.
type PingResponse struct {
	Status string `json:"status"`
}

// StatusRequest fetches daemon status.
type StatusRequest struct{}

// StatusResponse mirrors the HTTP status payload.
type StatusResponse = api.DaemonStatus

// Thumbnail mirrors the HTTP API thumbnail DTO for IPC callers.
type Thumbnail = api.Thumbnail

// SubmitBatchRequest starts a capture batch.
type SubmitBatchRequest = api.SubmitBatchRequest

// SubmitBatchResponse reports the accepted batch.
type SubmitBatchResponse = api.SubmitBatchResponse

// CaptureRequest captures one URL synchronously.
type CaptureRequest struct {
	URL           string `json:"url"`
	ForceActive   bool   `json:"force_active"`
	SettleDelayMS int    `json:"settle_delay_ms"`
}

// CaptureResponse carries the final record of a single capture.
type CaptureResponse struct {
	Item Thumbnail `json:"item"`
}

// CancelRequest cancels the running batch.
type CancelRequest struct{}

// CancelResponse reports whether a batch was running.
type CancelResponse = api.CancelResponse

// ListRequest filters thumbnails by status.
type ListRequest struct {
	Statuses []string `json:"statuses"`
}

// ListResponse contains thumbnail records.
type ListResponse struct {
	Items []Thumbnail `json:"items"`
}

// DescribeRequest resolves a record by identity or URL.
type DescribeRequest struct {
	Ref string `json:"ref"`
}

// DescribeResponse contains a single record.
type DescribeResponse struct {
	Item Thumbnail `json:"item"`
}

// ImageRequest fetches the stored image for a record.
type ImageRequest struct {
	Ref string `json:"ref"`
}

// ImageResponse carries raw image bytes.
type ImageResponse struct {
	Data     []byte `json:"data"`
	MimeType string `json:"mime_type"`
}

// DeleteRequest removes a record and its assets.
type DeleteRequest struct {
	Ref string `json:"ref"`
}

// DeleteResponse reports the deletion.
type DeleteResponse struct {
	Deleted bool `json:"deleted"`
}

// DirectorySetRequest acquires an external directory.
type DirectorySetRequest struct {
	Path string `json:"path"`
}

// DirectoryResponse describes the held directory slot.
type DirectoryResponse struct {
	Path       string `json:"path"`
	AcquiredAt string `json:"acquired_at"`
}

// DirectoryClearRequest releases the directory slot.
type DirectoryClearRequest struct{}

// DirectoryClearResponse reports the release.
type DirectoryClearResponse struct {
	Cleared bool `json:"cleared"`
}

// ReconcileRequest relinks records against files in a directory. An empty
// path uses the held directory.
type ReconcileRequest struct {
	Path string `json:"path"`
}

// ReconcileResponse reports how many records were relinked.
type ReconcileResponse struct {
	Relinked int `json:"relinked"`
}

// ExportRequest builds a backup document.
type ExportRequest struct {
	IncludeImages bool `json:"include_images"`
}

// ExportResponse carries the backup document.
type ExportResponse struct {
	Document backup.Document `json:"document"`
}

// ImportRequest restores a serialized backup document.
type ImportRequest struct {
	Data []byte `json:"data"`
}

// ImportResponse reports import counts.
type ImportResponse struct {
	Imported int `json:"imported"`
	Skipped  int `json:"skipped"`
}

// EventsRequest fetches events after Since, optionally long-polling.
type EventsRequest struct {
	Since      uint64 `json:"since"`
	Limit      int    `json:"limit"`
	WaitMillis int    `json:"wait_millis"`
}

// EventsResponse returns events and the cursor for the next request.
type EventsResponse = api.EventsResponse

// SettingRequest stores a single setting.
type SettingRequest struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// SettingResponse acknowledges a stored setting.
type SettingResponse struct{}

// SettingsRequest lists stored settings.
type SettingsRequest struct{}

// SettingsResponse contains every stored setting.
type SettingsResponse struct {
	Settings map[string]string `json:"settings"`
}

// LogTailRequest fetches log lines based on offset and follow semantics.
// BatchID, Identity and Level narrow the result to matching JSON lines.
type LogTailRequest struct {
	Offset     int64  `json:"offset"`
	Limit      int    `json:"limit"`
	Follow     bool   `json:"follow"`
	WaitMillis int    `json:"wait_millis"`
	BatchID    string `json:"batch_id,omitempty"`
	Identity   string `json:"identity,omitempty"`
	Level      string `json:"level,omitempty"`
}

// LogTailResponse returns log lines and the next offset.
type LogTailResponse struct {
	Lines  []string `json:"lines"`
	Offset int64    `json:"offset"`
}

// TestNotificationRequest triggers a notification test.
type TestNotificationRequest struct{}

// TestNotificationResponse reports notification test outcome.
type TestNotificationResponse struct {
	Sent    bool   `json:"sent"`
	Message string `json:"message"`
}
