// Package registry defines the transport contract between envkit and a
// server that advertises globals, plus the built-in transport backends.
//
// # Overview
//
// A registry server announces a dynamic set of named "globals": single
// capabilities (a compositor facility, a format table) and multi-instance
// resources (outputs, seats). The Transport interface carries those
// announcements to a Sink, converts advertisements into bound Proxy
// handles on request, and provides the blocking Sync round-trip the
// environment layer builds its initialization protocol on.
//
// Events are delivered only from inside Sync, on the calling goroutine.
// Backends may run internal goroutines to receive from the wire, but
// they queue events and replay them during Sync; nothing reaches the
// Sink concurrently with application code.
//
// # Available Backends
//
//   - Memory: scripted in-process server for testing and examples
//   - NATS: JetStream KV backed registry for distributed deployments
//   - WebSocket: JSON frame protocol over a WebSocket connection
package registry
