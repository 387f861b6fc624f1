package store

import (
	"database/sql"
	"errors"
	"time"
)

const recordColumns = "identity, source_url, title, status, filename, last_capture_at, error_detail, updated_at"

const assetColumns = "identity, mime_type, data, width, height, byte_size, updated_at"

type scanner interface{ Scan(dest ...any) error }

func scanRecord(row scanner) (*Record, error) {
	var (
		identity      string
		sourceURL     string
		title         sql.NullString
		statusStr     string
		filename      sql.NullString
		lastCaptureAt sql.NullString
		errorDetail   sql.NullString
		updatedRaw    sql.NullString
	)
	if err := row.Scan(&identity, &sourceURL, &title, &statusStr, &filename, &lastCaptureAt, &errorDetail, &updatedRaw); err != nil {
		return nil, err
	}

	rec := &Record{
		Identity:    identity,
		SourceURL:   sourceURL,
		Title:       title.String,
		Status:      Status(statusStr),
		Filename:    filename.String,
		ErrorDetail: errorDetail.String,
	}
	if lastCaptureAt.Valid {
		if ts, err := parseTimeString(lastCaptureAt.String); err == nil {
			rec.LastCaptureAt = &ts
		}
	}
	if ts, err := parseTimeString(updatedRaw.String); err == nil {
		rec.UpdatedAt = ts
	}
	return rec, nil
}

func scanAsset(row scanner) (*Asset, error) {
	var (
		asset      Asset
		updatedRaw sql.NullString
	)
	if err := row.Scan(&asset.Identity, &asset.MimeType, &asset.Data, &asset.Width, &asset.Height, &asset.ByteSize, &updatedRaw); err != nil {
		return nil, err
	}
	if ts, err := parseTimeString(updatedRaw.String); err == nil {
		asset.UpdatedAt = ts
	}
	return &asset, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableTime(value *time.Time) any {
	if value == nil {
		return nil
	}
	return formatTime(*value)
}

func formatTime(value time.Time) string {
	return value.UTC().Format(time.RFC3339Nano)
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}
