package env

import (
	"github.com/vinayprograms/envkit/registry"
)

// Registrar is the binding surface handlers see: the slice of the
// transport they need to turn an advertisement into a proxy.
// registry.Transport satisfies it.
type Registrar interface {
	Bind(iface string, id, version uint32) (registry.Proxy, error)
}

// GlobalHandler manages a "single" global: a capability announced at
// most meaningfully once per session.
type GlobalHandler interface {
	// Created is invoked when the global is announced with the given id
	// and version. A second invocation replaces the previous binding.
	Created(reg Registrar, id, version uint32)

	// Get returns the current binding, or nil if the global has never
	// been announced.
	Get() registry.Proxy
}

// MultiGlobalHandler manages a "multi" global: a resource with several
// simultaneous live instances.
type MultiGlobalHandler interface {
	// Created is invoked for each new instance. Re-announcement of a
	// live id replaces that entry rather than duplicating it.
	Created(reg Registrar, id, version uint32)

	// Removed is invoked when the instance with the given id goes away.
	// Unknown ids are ignored.
	Removed(id uint32)

	// GetAll returns the live instances in creation order.
	GetAll() []registry.Proxy
}

// SimpleGlobal is a minimalist handler for "single" globals: it binds
// the global as soon as it is announced and does nothing more. It is
// appropriate for globals that never generate events of their own.
type SimpleGlobal struct {
	iface      string
	maxVersion uint32
	proxy      registry.Proxy
	err        error
}

// NewSimpleGlobal creates a handler binding iface at the advertised
// version.
func NewSimpleGlobal(iface string) *SimpleGlobal {
	return &SimpleGlobal{iface: iface}
}

// NewSimpleGlobalAt creates a handler that clamps the bind version to
// min(advertised, max).
func NewSimpleGlobalAt(iface string, max uint32) *SimpleGlobal {
	return &SimpleGlobal{iface: iface, maxVersion: max}
}

// Created binds the announced global, replacing any prior binding.
func (g *SimpleGlobal) Created(reg Registrar, id, version uint32) {
	v := version
	if g.maxVersion > 0 && v > g.maxVersion {
		v = g.maxVersion
	}

	proxy, err := reg.Bind(g.iface, id, v)
	if err != nil {
		// Keep the previous binding; the failure is inspectable.
		g.err = err
		return
	}
	g.proxy = proxy
	g.err = nil
}

// Get returns the most recent binding, or nil.
func (g *SimpleGlobal) Get() registry.Proxy {
	return g.proxy
}

// Err returns the last bind failure, or nil.
func (g *SimpleGlobal) Err() error {
	return g.err
}

// SimpleMulti is a minimalist handler for "multi" globals: it binds
// each announced instance and tracks the live set in creation order.
type SimpleMulti struct {
	iface      string
	maxVersion uint32
	order      []uint32
	live       map[uint32]registry.Proxy
}

// NewSimpleMulti creates a handler binding instances of iface at the
// advertised version.
func NewSimpleMulti(iface string) *SimpleMulti {
	return &SimpleMulti{iface: iface, live: make(map[uint32]registry.Proxy)}
}

// NewSimpleMultiAt creates a handler that clamps bind versions to
// min(advertised, max).
func NewSimpleMultiAt(iface string, max uint32) *SimpleMulti {
	return &SimpleMulti{iface: iface, maxVersion: max, live: make(map[uint32]registry.Proxy)}
}

// Created binds the announced instance. A duplicate announcement for a
// live id replaces the entry in place, keeping its creation position.
func (m *SimpleMulti) Created(reg Registrar, id, version uint32) {
	v := version
	if m.maxVersion > 0 && v > m.maxVersion {
		v = m.maxVersion
	}

	proxy, err := reg.Bind(m.iface, id, v)
	if err != nil {
		return
	}

	if _, exists := m.live[id]; !exists {
		m.order = append(m.order, id)
	}
	m.live[id] = proxy
}

// Removed drops the instance with the given id; unknown ids are a
// no-op.
func (m *SimpleMulti) Removed(id uint32) {
	if _, exists := m.live[id]; !exists {
		return
	}
	delete(m.live, id)
	for i, oid := range m.order {
		if oid == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
}

// GetAll returns the live instances, first created first.
func (m *SimpleMulti) GetAll() []registry.Proxy {
	out := make([]registry.Proxy, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.live[id])
	}
	return out
}
