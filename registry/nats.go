package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// NATS implements Transport over NATS JetStream. The live global set is
// mirrored in a KV bucket maintained by the server: a put announces a
// global, a delete retracts it. A watcher goroutine queues KV changes;
// Sync performs a request/reply round-trip to the server and then
// replays the queue to the sink on the calling goroutine.
//
// KV delete tombstones carry only the key (the global id), so removal
// events from this backend have an empty interface name; the environment
// dispatcher resolves them from its own bookkeeping.
//
// Server contract: the sync responder must reply only after every KV
// write it issued before receiving the request has been acknowledged by
// JetStream. KV updates are delivered to watchers in stream order, so
// everything written before the ack reaches the queue before Sync
// drains it.
type NATS struct {
	conn    *nats.Conn
	kv      jetstream.KeyValue
	config  NATSConfig
	ownConn bool
	cancel  context.CancelFunc

	mu      sync.Mutex
	sink    Sink
	pending []Event
	closed  bool
}

// NATSConfig configures the NATS transport.
type NATSConfig struct {
	Config // Embed base config

	// Conn is an existing connection to use. If nil, URL is dialed and
	// the connection is owned (and closed) by the transport.
	Conn *nats.Conn

	// URL is the NATS server URL (e.g. "nats://localhost:4222").
	URL string

	// Name is the client name for identification.
	Name string

	// Bucket is the KV bucket mirroring the live global set.
	// Default: "globals"
	Bucket string

	// SubjectPrefix for the sync and bind request subjects.
	// Default: "registry"
	SubjectPrefix string

	// RequestTimeout bounds sync and bind round-trips.
	// Default: 5s
	RequestTimeout time.Duration

	// ReconnectWait is the time to wait between reconnection attempts.
	ReconnectWait time.Duration

	// MaxReconnects is the maximum number of reconnection attempts.
	// -1 = unlimited
	MaxReconnects int
}

// DefaultNATSConfig returns configuration with sensible defaults.
func DefaultNATSConfig() NATSConfig {
	return NATSConfig{
		Config:         DefaultConfig(),
		URL:            nats.DefaultURL,
		Bucket:         "globals",
		SubjectPrefix:  "registry",
		RequestTimeout: 5 * time.Second,
		ReconnectWait:  2 * time.Second,
		MaxReconnects:  -1,
	}
}

// natsProxy is the bound-instance handle produced by NATS.Bind. The
// object subject is where requests for this instance are addressed.
type natsProxy struct {
	iface   string
	id      uint32
	version uint32
	subject string
}

func (p *natsProxy) Interface() string { return p.iface }
func (p *natsProxy) ID() uint32        { return p.id }
func (p *natsProxy) Version() uint32   { return p.version }

// Subject returns the NATS subject addressing the bound instance.
func (p *natsProxy) Subject() string { return p.subject }

// syncRequest is the payload of a synchronization round-trip.
type syncRequest struct {
	Token string `json:"token"`
}

// bindRequest asks the server to bind a global at a version.
type bindRequest struct {
	Interface string `json:"interface"`
	ID        uint32 `json:"id"`
	Version   uint32 `json:"version"`
}

// bindResponse is the server's answer to a bindRequest.
type bindResponse struct {
	OK      bool   `json:"ok"`
	Error   string `json:"error,omitempty"`
	Subject string `json:"subject,omitempty"`
}

// NewNATS creates a NATS transport. If cfg.Conn is nil, cfg.URL is
// dialed.
func NewNATS(cfg NATSConfig) (*NATS, error) {
	def := DefaultNATSConfig()
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = def.BufferSize
	}
	if cfg.Bucket == "" {
		cfg.Bucket = def.Bucket
	}
	if cfg.SubjectPrefix == "" {
		cfg.SubjectPrefix = def.SubjectPrefix
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = def.RequestTimeout
	}

	conn := cfg.Conn
	ownConn := false
	if conn == nil {
		if cfg.URL == "" {
			cfg.URL = def.URL
		}
		opts := []nats.Option{
			nats.ReconnectWait(cfg.ReconnectWait),
			nats.MaxReconnects(cfg.MaxReconnects),
		}
		if cfg.Name != "" {
			opts = append(opts, nats.Name(cfg.Name))
		}
		var err error
		conn, err = nats.Connect(cfg.URL, opts...)
		if err != nil {
			return nil, fmt.Errorf("nats connect: %w", err)
		}
		ownConn = true
	}

	js, err := jetstream.New(conn)
	if err != nil {
		if ownConn {
			conn.Close()
		}
		return nil, fmt.Errorf("create jetstream context: %w", err)
	}

	kv, err := js.KeyValue(context.Background(), cfg.Bucket)
	if err != nil {
		if ownConn {
			conn.Close()
		}
		return nil, fmt.Errorf("open kv bucket %q: %w", cfg.Bucket, err)
	}

	watchCtx, cancel := context.WithCancel(context.Background())

	t := &NATS{
		conn:    conn,
		kv:      kv,
		config:  cfg,
		ownConn: ownConn,
		cancel:  cancel,
	}

	go t.watchKV(watchCtx)

	return t, nil
}

// Attach registers the sink receiving registry events.
func (t *NATS) Attach(sink Sink) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sink = sink
}

// Bind asks the server to bind a global at the given version.
func (t *NATS) Bind(iface string, id, version uint32) (Proxy, error) {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil, ErrClosed
	}
	t.mu.Unlock()

	data, err := json.Marshal(bindRequest{Interface: iface, ID: id, Version: version})
	if err != nil {
		return nil, fmt.Errorf("marshal bind request: %w", err)
	}

	msg, err := t.conn.Request(t.config.SubjectPrefix+".bind", data, t.config.RequestTimeout)
	if err != nil {
		return nil, fmt.Errorf("bind request: %w", err)
	}

	var resp bindResponse
	if err := json.Unmarshal(msg.Data, &resp); err != nil {
		return nil, fmt.Errorf("unmarshal bind response: %w", err)
	}
	if !resp.OK {
		return nil, bindRefusal(iface, id, resp.Error)
	}

	subject := resp.Subject
	if subject == "" {
		subject = fmt.Sprintf("%s.obj.%d", t.config.SubjectPrefix, id)
	}

	return &natsProxy{iface: iface, id: id, version: version, subject: subject}, nil
}

// bindRefusal maps a server-side refusal onto the package sentinels so
// callers can branch on ErrVersion / ErrUnknownGlobal.
func bindRefusal(iface string, id uint32, reason string) error {
	switch reason {
	case "version":
		return fmt.Errorf("bind %s (id %d): %w", iface, id, ErrVersion)
	case "unknown":
		return fmt.Errorf("bind %s (id %d): %w", iface, id, ErrUnknownGlobal)
	default:
		return fmt.Errorf("bind %s (id %d) refused: %s", iface, id, reason)
	}
}

// Sync performs one synchronization round-trip and replays queued
// registry events to the sink.
func (t *NATS) Sync(ctx context.Context) error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return ErrClosed
	}
	sink := t.sink
	t.mu.Unlock()

	if sink == nil {
		return ErrNoSink
	}

	data, err := json.Marshal(syncRequest{Token: uuid.NewString()})
	if err != nil {
		return fmt.Errorf("marshal sync request: %w", err)
	}

	reqCtx := ctx
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		reqCtx, cancel = context.WithTimeout(ctx, t.config.RequestTimeout)
		defer cancel()
	}

	if _, err := t.conn.RequestWithContext(reqCtx, t.config.SubjectPrefix+".sync", data); err != nil {
		return fmt.Errorf("%w: %v", ErrSyncFailed, err)
	}

	// The ack guarantees all prior KV writes are in the stream; flush so
	// the watcher has seen them before the queue is drained.
	if err := t.conn.FlushTimeout(t.config.RequestTimeout); err != nil {
		return fmt.Errorf("%w: flush: %v", ErrSyncFailed, err)
	}

	t.drain(sink)
	return nil
}

// drain replays queued events to the sink in order. Events queued while
// draining (server activity triggered by handler callbacks) are
// included.
func (t *NATS) drain(sink Sink) {
	for {
		t.mu.Lock()
		if len(t.pending) == 0 {
			t.mu.Unlock()
			return
		}
		ev := t.pending[0]
		t.pending = t.pending[1:]
		t.mu.Unlock()

		switch ev.Type {
		case EventAdded:
			sink.GlobalAdded(ev.Global)
		case EventRemoved:
			sink.GlobalRemoved(ev.Global.ID, ev.Global.Interface)
		}
	}
}

// Close shuts down the transport.
func (t *NATS) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	t.pending = nil
	t.mu.Unlock()

	t.cancel()
	if t.ownConn {
		t.conn.Close()
	}
	return nil
}

// watchKV mirrors KV changes into the event queue.
func (t *NATS) watchKV(ctx context.Context) {
	watcher, err := t.kv.WatchAll(ctx)
	if err != nil {
		return
	}
	defer watcher.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case entry := <-watcher.Updates():
			if entry == nil {
				// nil marks the end of the initial replay
				continue
			}
			ev, ok := entryEvent(entry)
			if !ok {
				continue
			}

			t.mu.Lock()
			if !t.closed {
				t.pending = append(t.pending, ev)
			}
			t.mu.Unlock()
		}
	}
}

// entryEvent converts a KV entry into a registry event. Keys are the
// decimal global id; values are the JSON advertisement.
func entryEvent(entry jetstream.KeyValueEntry) (Event, bool) {
	id, err := strconv.ParseUint(entry.Key(), 10, 32)
	if err != nil {
		return Event{}, false
	}

	switch entry.Operation() {
	case jetstream.KeyValuePut:
		var g Global
		if err := json.Unmarshal(entry.Value(), &g); err != nil {
			return Event{}, false
		}
		g.ID = uint32(id)
		return Event{Type: EventAdded, Global: g}, true
	case jetstream.KeyValueDelete, jetstream.KeyValuePurge:
		// Tombstones carry no value: the interface name is unknown here.
		return Event{Type: EventRemoved, Global: Global{ID: uint32(id)}}, true
	default:
		return Event{}, false
	}
}
