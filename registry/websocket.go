package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// WebSocket implements Transport over a WebSocket connection speaking
// tagged JSON frames:
//
//	{"type":"added","global":{"id":5,"interface":"wl_output","version":2}}
//	{"type":"removed","id":5,"interface":"wl_output"}
//	{"type":"sync","token":T}    -> {"type":"sync_ack","token":T}
//	{"type":"bind","token":T,...} -> {"type":"bind_ack","token":T,"ok":true}
//
// A reader goroutine queues added/removed frames and routes ack frames
// to their waiting request; Sync replays the queue to the sink on the
// calling goroutine after its ack arrives.
type WebSocket struct {
	conn   *websocket.Conn
	config WebSocketConfig

	writeMu sync.Mutex

	mu      sync.Mutex
	sink    Sink
	pending []Event
	waiting map[string]chan wsFrame
	closed  bool
	done    chan struct{}
}

// WebSocketConfig holds WebSocket transport configuration.
type WebSocketConfig struct {
	Config // Embed base config

	// WriteTimeout for write operations.
	WriteTimeout time.Duration

	// RequestTimeout bounds sync and bind round-trips when the caller's
	// context has no deadline.
	RequestTimeout time.Duration

	// MaxMessageSize limits incoming message size.
	MaxMessageSize int64
}

// DefaultWebSocketConfig returns configuration with sensible defaults.
func DefaultWebSocketConfig() WebSocketConfig {
	return WebSocketConfig{
		Config:         DefaultConfig(),
		WriteTimeout:   10 * time.Second,
		RequestTimeout: 5 * time.Second,
		MaxMessageSize: 1024 * 1024, // 1MB
	}
}

// wsFrame is the wire representation of every registry protocol message.
type wsFrame struct {
	Type      string  `json:"type"`
	Token     string  `json:"token,omitempty"`
	Global    *Global `json:"global,omitempty"`
	ID        uint32  `json:"id,omitempty"`
	Interface string  `json:"interface,omitempty"`
	Version   uint32  `json:"version,omitempty"`
	OK        bool    `json:"ok,omitempty"`
	Error     string  `json:"error,omitempty"`
}

// wsProxy is the bound-instance handle produced by WebSocket.Bind.
type wsProxy struct {
	iface   string
	id      uint32
	version uint32
}

func (p *wsProxy) Interface() string { return p.iface }
func (p *wsProxy) ID() uint32        { return p.id }
func (p *wsProxy) Version() uint32   { return p.version }

// NewWebSocket creates a transport from an existing connection and
// starts its reader.
func NewWebSocket(conn *websocket.Conn, cfg WebSocketConfig) *WebSocket {
	def := DefaultWebSocketConfig()
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = def.BufferSize
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = def.WriteTimeout
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = def.RequestTimeout
	}
	if cfg.MaxMessageSize <= 0 {
		cfg.MaxMessageSize = def.MaxMessageSize
	}

	conn.SetReadLimit(cfg.MaxMessageSize)

	t := &WebSocket{
		conn:    conn,
		config:  cfg,
		waiting: make(map[string]chan wsFrame),
		done:    make(chan struct{}),
	}

	go t.readLoop()

	return t
}

// DialWebSocket connects to a registry server and returns a transport.
func DialWebSocket(ctx context.Context, url string, cfg WebSocketConfig) (*WebSocket, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("websocket dial %s: %w", url, err)
	}
	return NewWebSocket(conn, cfg), nil
}

// Attach registers the sink receiving registry events.
func (t *WebSocket) Attach(sink Sink) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sink = sink
}

// Bind asks the server to bind a global at the given version.
func (t *WebSocket) Bind(iface string, id, version uint32) (Proxy, error) {
	ctx, cancel := context.WithTimeout(context.Background(), t.config.RequestTimeout)
	defer cancel()

	ack, err := t.roundTrip(ctx, wsFrame{
		Type:      "bind",
		Interface: iface,
		ID:        id,
		Version:   version,
	})
	if err != nil {
		return nil, fmt.Errorf("bind %s (id %d): %w", iface, id, err)
	}
	if !ack.OK {
		return nil, bindRefusal(iface, id, ack.Error)
	}

	return &wsProxy{iface: iface, id: id, version: version}, nil
}

// Sync performs one synchronization round-trip and replays queued
// registry events to the sink. The server echoes the sync token only
// after writing every frame issued before the request, and frames
// arrive in order, so the queue holds everything the round must
// deliver.
func (t *WebSocket) Sync(ctx context.Context) error {
	t.mu.Lock()
	sink := t.sink
	t.mu.Unlock()

	if sink == nil {
		return ErrNoSink
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.config.RequestTimeout)
		defer cancel()
	}

	if _, err := t.roundTrip(ctx, wsFrame{Type: "sync"}); err != nil {
		return fmt.Errorf("%w: %v", ErrSyncFailed, err)
	}

	t.drain(sink)
	return nil
}

// drain replays queued events to the sink in order.
func (t *WebSocket) drain(sink Sink) {
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

// Close initiates shutdown.
func (t *WebSocket) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	close(t.done)
	for token, ch := range t.waiting {
		close(ch)
		delete(t.waiting, token)
	}
	t.mu.Unlock()

	t.writeMu.Lock()
	t.conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second),
	)
	t.writeMu.Unlock()

	return t.conn.Close()
}

// roundTrip sends a request frame with a fresh token and waits for the
// matching ack.
func (t *WebSocket) roundTrip(ctx context.Context, frame wsFrame) (wsFrame, error) {
	frame.Token = uuid.NewString()
	ch := make(chan wsFrame, 1)

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return wsFrame{}, ErrClosed
	}
	t.waiting[frame.Token] = ch
	t.mu.Unlock()

	if err := t.writeFrame(frame); err != nil {
		t.forgetToken(frame.Token)
		return wsFrame{}, err
	}

	select {
	case ack, ok := <-ch:
		if !ok {
			return wsFrame{}, ErrClosed
		}
		return ack, nil
	case <-ctx.Done():
		t.forgetToken(frame.Token)
		return wsFrame{}, ctx.Err()
	case <-t.done:
		return wsFrame{}, ErrClosed
	}
}

// forgetToken abandons a pending round-trip.
func (t *WebSocket) forgetToken(token string) {
	t.mu.Lock()
	delete(t.waiting, token)
	t.mu.Unlock()
}

// writeFrame serializes and writes a single frame.
func (t *WebSocket) writeFrame(frame wsFrame) error {
	data, err := json.Marshal(frame)
	if err != nil {
		return fmt.Errorf("marshal frame: %w", err)
	}

	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	if t.config.WriteTimeout > 0 {
		t.conn.SetWriteDeadline(time.Now().Add(t.config.WriteTimeout))
	}
	if err := t.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}

// readLoop reads frames, queueing events and routing acks.
func (t *WebSocket) readLoop() {
	for {
		_, data, err := t.conn.ReadMessage()
		if err != nil {
			t.failWaiters()
			return
		}

		var frame wsFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			continue
		}

		switch frame.Type {
		case "added":
			if frame.Global == nil {
				continue
			}
			t.queue(Event{Type: EventAdded, Global: *frame.Global})
		case "removed":
			t.queue(Event{Type: EventRemoved, Global: Global{ID: frame.ID, Interface: frame.Interface}})
		case "sync_ack", "bind_ack":
			t.deliverAck(frame)
		}
	}
}

// queue appends an event for the next Sync to replay.
func (t *WebSocket) queue(ev Event) {
	t.mu.Lock()
	if !t.closed {
		t.pending = append(t.pending, ev)
	}
	t.mu.Unlock()
}

// deliverAck hands an ack frame to its waiting round-trip.
func (t *WebSocket) deliverAck(frame wsFrame) {
	t.mu.Lock()
	ch, ok := t.waiting[frame.Token]
	if ok {
		delete(t.waiting, frame.Token)
	}
	t.mu.Unlock()

	if ok {
		ch <- frame
		close(ch)
	}
}

// failWaiters aborts outstanding round-trips after a read failure.
func (t *WebSocket) failWaiters() {
	t.mu.Lock()
	for token, ch := range t.waiting {
		close(ch)
		delete(t.waiting, token)
	}
	t.mu.Unlock()
}
