// Package store persists thumbnail metadata and embedded assets in SQLite.
//
// The Store manages database connections and schema initialization and
// exposes the metadata index (Get, All, Set, Remove), the embedded and legacy
// asset tables, the single external directory slot and user settings.
// Metadata writes are last-writer-wins upserts; callers order the asset write
// before the metadata write that marks it saved.
//
// Identities are name-based UUIDs of the canonical page URL. Schema changes
// bump the version in schema.go.
package store
