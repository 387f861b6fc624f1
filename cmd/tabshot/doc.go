// Command tabshot is the command-line front end for the thumbnail capture
// daemon.
//
// Most subcommands talk to a running daemon over its Unix socket. The hidden
// "daemon" subcommand runs the daemon itself; start, stop and restart manage
// that process in the background. Output is human readable by default and
// several listing commands accept --json for scripting.
package main
