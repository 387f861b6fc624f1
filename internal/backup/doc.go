// Package backup exports and imports the thumbnail index as a JSON document.
//
// A metadata-only backup carries settings and one item per record; a full
// export also embeds every readable image as base64. Import is additive: it
// never replaces an identity that already owns an asset.
package backup
