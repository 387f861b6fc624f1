// Package logs provides file tailing helpers and the HTTP event feed client
// shared by the CLI and daemon diagnostics.
//
// Tail reads the daemon's JSON log from an offset or as "last N lines", can
// keep only lines for one batch, one thumbnail identity or a minimum level,
// and powers `tabshot logs --follow`. EventClient long-polls /api/events for
// `tabshot watch`. Callers supply context deadlines so background polling
// shuts down cleanly when the CLI exits.
package logs
