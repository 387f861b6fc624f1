// Package logging assembles structured slog loggers and formatting helpers used
// across tabshot.
//
// It owns the console/JSON handlers, centralizes level and output plumbing,
// and exposes context-aware helpers so capture code can tag log lines with
// batch IDs, URLs, thumbnail identities and correlation IDs. The package also
// provides a no-op logger for tests and wiring code that cannot fail.
package logging
