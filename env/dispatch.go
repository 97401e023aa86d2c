package env

import (
	"go.uber.org/zap"

	"github.com/vinayprograms/envkit/registry"
)

// dispatcher routes registry notifications to the matching slot's
// handler. It implements registry.Sink and is the only writer of the
// environment's id bookkeeping.
type dispatcher struct {
	state *envState
	reg   Registrar
}

var _ registry.Sink = (*dispatcher)(nil)

// GlobalAdded routes an advertisement to its slot, if declared.
//
// The exclusive window covers only the table lookup and bookkeeping and
// is released before the handler runs: handlers may call back into
// environment accessors or WithExtras. That ordering is load-bearing.
func (d *dispatcher) GlobalAdded(g registry.Global) {
	s := d.state

	s.enter("dispatch")
	sl, declared := s.table[g.Interface]
	// Track every live id, declared or not, so removals that arrive
	// without an interface name can still be resolved.
	s.byID[g.ID] = g.Interface
	observers := s.observers
	s.exit()

	if !declared {
		s.log.Debug("discarding undeclared global",
			zap.String("interface", g.Interface),
			zap.Uint32("id", g.ID))
	} else {
		s.log.Debug("global announced",
			zap.String("interface", g.Interface),
			zap.Uint32("id", g.ID),
			zap.Uint32("version", g.Version))

		switch sl.kind {
		case kindSingle:
			sl.single.Created(d.reg, g.ID, g.Version)
		case kindMulti:
			sl.multi.Created(d.reg, g.ID, g.Version)
		}
	}

	for _, o := range observers {
		o.GlobalAdded(g)
	}
}

// GlobalRemoved routes a retraction. Removal of a single global is
// ignored by design: single globals are assumed not to be retracted
// during a session, and a stale binding persists if the server violates
// that assumption.
func (d *dispatcher) GlobalRemoved(id uint32, iface string) {
	s := d.state

	s.enter("dispatch")
	if iface == "" {
		// Backend delivered a bare id; resolve it from our own books.
		iface = s.byID[id]
	}
	delete(s.byID, id)
	sl, declared := s.table[iface]
	observers := s.observers
	s.exit()

	if declared && sl.kind == kindMulti {
		s.log.Debug("global removed",
			zap.String("interface", iface),
			zap.Uint32("id", id))
		sl.multi.Removed(id)
	}

	if iface == "" {
		// Never announced; nothing to tell anyone.
		return
	}
	for _, o := range observers {
		o.GlobalRemoved(id, iface)
	}
}
