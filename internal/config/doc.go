// Package config loads, normalizes, and validates tabshot configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// TABSHOT_API_TOKEN and TABSHOT_CHROME_PATH. The Config type centralizes the
// capture timings, browser launch options and storage tier settings the daemon
// and CLI need.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
