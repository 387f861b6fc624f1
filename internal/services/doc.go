// Package services defines shared utilities consumed by the capture pipeline,
// the storage tiers and the daemon surfaces.
//
// Key responsibilities:
//   - Context helpers that stamp batch IDs, page URLs, thumbnail identities and
//     correlation identifiers for logging.
//   - Structured error markers plus the Wrap helper so failures from any tier
//     can be classified with errors.Is and reported with a stable Kind.
package services
