// Package preflight provides readiness checks for the browser and the
// filesystem paths tabshot depends on.
//
// The daemon runs RunAll at startup and logs every failed check; the status
// surfaces (IPC, HTTP, "tabshot status") report the same results. External
// directory checks only run when storage.external_dir is configured.
package preflight
