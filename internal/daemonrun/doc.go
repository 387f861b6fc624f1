// Package daemonrun wires the production daemon process: logger, pid file,
// metadata store, Chrome, notifier, daemon and IPC socket.
package daemonrun
