package api

import (
	"time"

	"tabshot/internal/capture"
	"tabshot/internal/store"
	"tabshot/internal/tiering"
)

// FromRecord converts a metadata record to its API representation.
func FromRecord(rec *store.Record) Thumbnail {
	if rec == nil {
		return Thumbnail{}
	}
	dto := Thumbnail{
		Identity:     rec.Identity,
		URL:          rec.SourceURL,
		Title:        rec.Title,
		Status:       string(rec.Status),
		Filename:     rec.Filename,
		ErrorMessage: rec.ErrorDetail,
		UpdatedAt:    formatTime(rec.UpdatedAt),
	}
	if rec.LastCaptureAt != nil {
		dto.LastCaptureAt = formatTime(*rec.LastCaptureAt)
	}
	return dto
}

// FromRecords converts a slice of records.
func FromRecords(records []store.Record) []Thumbnail {
	out := make([]Thumbnail, 0, len(records))
	for i := range records {
		out = append(out, FromRecord(&records[i]))
	}
	return out
}

// FromCaptureStatus converts an orchestrator snapshot.
func FromCaptureStatus(s capture.Status) CaptureStatus {
	return CaptureStatus{
		Running:         s.Running,
		CancelRequested: s.CancelRequested,
		BatchID:         s.BatchID,
		Current:         s.Current,
		Processed:       s.Processed,
		Failed:          s.Failed,
		Total:           s.Total,
		LastError:       s.LastError,
		StartedAt:       formatTime(s.StartedAt),
	}
}

// FromUsage converts tier usage plus the optional directory slot.
func FromUsage(u tiering.Usage, dir *store.DirectoryHandle) StorageStatus {
	out := StorageStatus{
		EmbeddedCount: u.Count,
		EmbeddedBytes: u.Bytes,
		QuotaBytes:    u.QuotaBytes,
		Percent:       u.Percent,
		Low:           u.Low,
		Critical:      u.Critical,
	}
	if dir != nil {
		out.Directory = dir.Path
		out.DirectoryUsed = formatTime(dir.LastUsedAt)
	}
	return out
}

// MergeStatusCounts returns counts for every known status, zero-filled.
func MergeStatusCounts(counts store.StatusCounts) map[string]int {
	out := make(map[string]int, len(store.AllStatuses()))
	for _, status := range store.AllStatuses() {
		out[string(status)] = counts[status]
	}
	return out
}

// ParseTime parses an API timestamp, returning the zero time when blank or malformed.
func ParseTime(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	ts, err := time.Parse(dateTimeFormat, value)
	if err != nil {
		return time.Time{}
	}
	return ts
}

func formatTime(ts time.Time) string {
	if ts.IsZero() {
		return ""
	}
	return ts.UTC().Format(dateTimeFormat)
}
