// Package ipc exposes the daemon over JSON-RPC Unix sockets and ships the
// matching client used by the CLI.
//
// It owns socket lifecycle management and the request/response DTOs. Most
// payloads alias the HTTP API types so both surfaces stay in step. Errors
// cross the socket as plain strings; callers that need a classification
// should use the HTTP API, which reports an error kind.
package ipc
