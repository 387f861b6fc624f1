// Package capture runs capture batches: one URL at a time through a single
// reused browser tab, then image processing, storage tiering and the metadata
// index, broadcasting Started and Updated/Failed events along the way.
//
// Only one batch runs per process. Cancellation is cooperative and checked
// before each URL and again once the page load wait ends.
package capture
