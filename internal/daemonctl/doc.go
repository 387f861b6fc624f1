// Package daemonctl launches, stops and inspects the background daemon on
// behalf of the CLI.
package daemonctl
