// Package imaging turns raw page captures into compact thumbnails.
//
// ResizeAndCompress decodes PNG, JPEG and WebP input, scales it to a target
// width with a Catmull-Rom filter while preserving the aspect ratio, and
// re-encodes it as JPEG. Rendering happens on an in-memory RGBA surface, so
// the result is identical whether it runs in the daemon or the CLI.
// Placeholder draws the error card served for failed captures.
package imaging
