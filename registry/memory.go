package registry

import (
	"context"
	"fmt"
	"sync"
)

// Memory implements Transport against a scripted in-process server.
// Useful for testing and single-process scenarios: the test (or
// example) plays the server by calling Advertise and Withdraw, then
// lets the client observe the result through Sync.
type Memory struct {
	config Config

	mu      sync.Mutex
	sink    Sink
	pending []Event
	live    map[uint32]Global
	nextErr error
	closed  bool
}

// memoryProxy is the bound-instance handle produced by Memory.Bind.
type memoryProxy struct {
	iface   string
	id      uint32
	version uint32
}

func (p *memoryProxy) Interface() string { return p.iface }
func (p *memoryProxy) ID() uint32        { return p.id }
func (p *memoryProxy) Version() uint32   { return p.version }

// NewMemory creates a new in-memory transport.
func NewMemory(cfg Config) *Memory {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = DefaultConfig().BufferSize
	}

	return &Memory{
		config: cfg,
		live:   make(map[uint32]Global),
	}
}

// Attach registers the sink receiving registry events.
func (m *Memory) Attach(sink Sink) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sink = sink
}

// Advertise announces a global. Advertising an id that is already live
// replaces its entry, mirroring a server re-announcement.
func (m *Memory) Advertise(g Global) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}

	m.live[g.ID] = g
	m.pending = append(m.pending, Event{Type: EventAdded, Global: g})
}

// Withdraw retracts a live global. Withdrawing an unknown id is a no-op:
// a real server never retracts what it has not announced.
func (m *Memory) Withdraw(id uint32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}

	g, ok := m.live[id]
	if !ok {
		return
	}
	delete(m.live, id)
	m.pending = append(m.pending, Event{Type: EventRemoved, Global: Global{ID: id, Interface: g.Interface}})
}

// FailNextSync makes the next Sync call fail with err, simulating a
// transport failure during a synchronization round.
func (m *Memory) FailNextSync(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextErr = err
}

// Bind converts a live advertisement into a proxy.
func (m *Memory) Bind(iface string, id, version uint32) (Proxy, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, ErrClosed
	}

	g, ok := m.live[id]
	if !ok || g.Interface != iface {
		return nil, fmt.Errorf("bind %s (id %d): %w", iface, id, ErrUnknownGlobal)
	}
	if version > g.Version {
		return nil, fmt.Errorf("bind %s (id %d) at version %d, advertised %d: %w",
			iface, id, version, g.Version, ErrVersion)
	}

	return &memoryProxy{iface: iface, id: id, version: version}, nil
}

// Sync delivers every queued notification to the sink, in order.
// Notifications queued while the round runs (for example by a handler
// re-entering the scripted server) are delivered too, so a single round
// leaves no backlog.
func (m *Memory) Sync(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	if err := m.nextErr; err != nil {
		m.nextErr = nil
		m.mu.Unlock()
		return err
	}
	sink := m.sink
	m.mu.Unlock()

	if sink == nil {
		return ErrNoSink
	}

	for {
		m.mu.Lock()
		if len(m.pending) == 0 {
			m.mu.Unlock()
			return nil
		}
		ev := m.pending[0]
		m.pending = m.pending[1:]
		m.mu.Unlock()

		// The sink runs without the transport lock held: handlers it
		// invokes may call back into Bind, Advertise or Withdraw.
		switch ev.Type {
		case EventAdded:
			sink.GlobalAdded(ev.Global)
		case EventRemoved:
			sink.GlobalRemoved(ev.Global.ID, ev.Global.Interface)
		}
	}
}

// Close shuts down the transport.
func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil
	}
	m.closed = true
	m.pending = nil
	m.live = nil
	return nil
}

// Live returns the number of globals the scripted server considers
// alive. Intended for test assertions.
func (m *Memory) Live() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.live)
}
