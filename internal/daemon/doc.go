// Package daemon coordinates the long-running tabshot process.
//
// It wires configuration, the metadata store, the storage tiers, the capture
// orchestrator and the event hub into a single lifecycle with flock-based
// locking to prevent multiple instances. On start it runs preflight checks
// and re-acquires the configured external directory.
//
// The daemon also owns the HTTP API (chi router, optional bearer token,
// Prometheus /metrics). IPC lives in package ipc and calls the same methods.
// Capture logic belongs in package capture; the daemon only does startup,
// shutdown and request routing.
package daemon
