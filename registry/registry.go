package registry

import (
	"context"
	"errors"
)

// Common errors.
var (
	ErrClosed        = errors.New("transport closed")
	ErrNoSink        = errors.New("no sink attached")
	ErrUnknownGlobal = errors.New("global is not live")
	ErrVersion       = errors.New("requested version exceeds advertised version")
	ErrSyncFailed    = errors.New("synchronization failed")
)

// Global is a server advertisement: a named capability or resource that
// currently exists, identified by a numeric id unique among live
// globals. The server is the sole authority on id issuance; an id may
// be reused after the global it named is removed.
type Global struct {
	// ID identifies this global among those currently alive.
	ID uint32 `json:"id"`

	// Interface is the protocol interface name (e.g. "wl_output").
	Interface string `json:"interface"`

	// Version is the highest protocol version the server supports for
	// this global. Binds at a higher version fail.
	Version uint32 `json:"version"`
}

// EventType distinguishes registry notifications.
type EventType int

const (
	// EventAdded announces a new global.
	EventAdded EventType = iota
	// EventRemoved retracts a previously announced global.
	EventRemoved
)

// String returns the event type name.
func (t EventType) String() string {
	switch t {
	case EventAdded:
		return "added"
	case EventRemoved:
		return "removed"
	default:
		return "unknown"
	}
}

// Event is a single registry notification. For EventRemoved the
// Interface field is filled when the backend can resolve it; backends
// that only learn the bare id on removal leave it empty, and the
// consumer must keep its own id-to-interface bookkeeping.
type Event struct {
	Type   EventType
	Global Global
}

// Proxy is a bound instance of a global: an opaque local handle usable
// by application code. Concrete types are backend-specific; application
// code that needs the underlying handle type-asserts to it.
type Proxy interface {
	// Interface returns the protocol interface name this proxy speaks.
	Interface() string

	// ID returns the global id this proxy was bound from.
	ID() uint32

	// Version returns the protocol version the bind was performed at.
	Version() uint32
}

// Sink consumes registry notifications. Exactly one sink is attached to
// a transport; envkit's dispatcher implements it.
type Sink interface {
	// GlobalAdded is invoked for each advertisement, in delivery order.
	GlobalAdded(g Global)

	// GlobalRemoved is invoked for each retraction. iface may be empty
	// if the backend cannot resolve the interface name on removal.
	GlobalRemoved(id uint32, iface string)
}

// Transport connects envkit to a registry server.
//
// All event delivery happens from inside Sync on the calling goroutine;
// Bind and Sync must not be called from inside a Sink callback's
// synchronization (they may be called from handler callbacks, which run
// after the sink delivery for their event completes).
type Transport interface {
	// Attach registers the sink that receives registry events. Must be
	// called before the first Sync. Later calls replace the sink.
	Attach(sink Sink)

	// Bind converts a live advertisement into a Proxy at the requested
	// version. Fails with ErrUnknownGlobal if id is not live, ErrVersion
	// if version exceeds the advertised one.
	Bind(iface string, id, version uint32) (Proxy, error)

	// Sync performs one blocking synchronization round: every
	// notification the server issued before the round is delivered to
	// the sink, in order, before Sync returns.
	Sync(ctx context.Context) error

	// Close releases the connection. Subsequent operations fail with
	// ErrClosed.
	Close() error
}

// Config holds common transport configuration.
type Config struct {
	// BufferSize for the internal event queue.
	// Default: 256
	BufferSize int
}

// DefaultConfig returns configuration with sensible defaults.
func DefaultConfig() Config {
	return Config{
		BufferSize: 256,
	}
}
