// Package api defines wire-format types and converters for the IPC and HTTP
// API layer. It translates store records, orchestrator snapshots and tier
// usage into transport-friendly DTOs the CLI and other consumers can render
// without coupling to internal types.
//
// DTOs use camelCase JSON tags. Statuses are exposed as lowercase strings and
// timestamps use RFC3339 with milliseconds.
package api
