// Package tiering places processed thumbnails in one of two tiers: a
// user-granted external directory, written as plain JPEG files, or the
// embedded SQLite store. The directory's permission is re-checked on every
// write and a revoked grant falls back to the embedded tier.
//
// Reads from the embedded tier go through an expirable LRU and a lazy
// migration decorator that copies assets forward from the legacy table on
// first access. ReconcileDirectory relinks records whose files survived a
// reinstall or a lost database.
package tiering
