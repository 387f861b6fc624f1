// Package logstream drives the CLI's follow loops: capture events through the
// HTTP API or IPC, and daemon log lines through IPC.
package logstream
