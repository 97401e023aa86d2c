package env

import (
	"context"
	"sync"

	"github.com/vinayprograms/envkit/errors"
	"github.com/vinayprograms/envkit/logging"
	"github.com/vinayprograms/envkit/registry"
)

// envState is the shared state behind every Environment handle: the
// frozen slot table, the extras, and the id bookkeeping. Access goes
// through a runtime-checked exclusive window so that a reentrant
// borrow fails loudly instead of corrupting state or deadlocking.
type envState struct {
	mu       sync.Mutex
	borrowed bool

	table     map[string]slot
	byID      map[uint32]string
	extras    Extras
	observers []registry.Sink
	log       *logging.Logger
}

// enter takes the exclusive window. Taking it while held is an
// access-discipline violation and panics with a structured error.
func (s *envState) enter(op string) {
	s.mu.Lock()
	if s.borrowed {
		s.mu.Unlock()
		panic(errors.ReentrantAccess(op))
	}
	s.borrowed = true
	s.mu.Unlock()
}

// exit releases the exclusive window.
func (s *envState) exit() {
	s.mu.Lock()
	s.borrowed = false
	s.mu.Unlock()
}

// Environment is the central access point to bound globals. It is a
// cheap handle: copies observe the same underlying state, and the state
// lives as long as any handle does.
type Environment struct {
	s *envState
}

// Option configures Environment construction.
type Option func(*envState)

// WithLogger sets the logger used by the dispatcher.
func WithLogger(l *logging.Logger) Option {
	return func(s *envState) {
		if l != nil {
			s.log = l
		}
	}
}

// WithObserver registers a sink notified after dispatch for every
// advertisement and retraction, declared or not. Observers see
// advertisement metadata only, never bindings.
func WithObserver(o registry.Sink) Option {
	return func(s *envState) {
		if o != nil {
			s.observers = append(s.observers, o)
		}
	}
}

// New builds an Environment over the transport.
//
// Construction runs two synchronization rounds. The first delivers
// every global currently known to the server through the dispatcher.
// The second guarantees that requests handlers issued while binding
// during the first round have been serviced. Either round failing is
// fatal: no Environment is returned.
func New(ctx context.Context, tr registry.Transport, decl Declaration, opts ...Option) (Environment, error) {
	table, err := buildSlotTable(decl)
	if err != nil {
		return Environment{}, err
	}

	extras := decl.Extras
	if extras == nil {
		extras = make(Extras)
	}

	s := &envState{
		table:  table,
		byID:   make(map[uint32]string),
		extras: extras,
		log:    logging.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	tr.Attach(&dispatcher{state: s, reg: tr})

	s.log.Debug("environment initialization: round 1")
	if err := tr.Sync(ctx); err != nil {
		return Environment{}, errors.SyncFailed(1, err)
	}
	s.log.Debug("environment initialization: round 2")
	if err := tr.Sync(ctx); err != nil {
		return Environment{}, errors.SyncFailed(2, err)
	}

	return Environment{s: s}, nil
}

// Clone returns a handle observing the same underlying state. O(1); no
// copy of the state is made.
func (e Environment) Clone() Environment {
	return e
}

// Global returns the binding of a declared "single" global, or false if
// the server has not (yet) announced it. Undeclared interfaces are
// never present.
func (e Environment) Global(iface string) (registry.Proxy, bool) {
	e.s.enter("Global")
	defer e.s.exit()

	sl, ok := e.s.table[iface]
	if !ok || sl.kind != kindSingle {
		return nil, false
	}
	proxy := sl.single.Get()
	if proxy == nil {
		return nil, false
	}
	return proxy, true
}

// RequireGlobal returns the binding of a declared "single" global the
// application cannot function without. If the server never announced
// it, RequireGlobal panics with a *errors.Error naming the missing
// interface: continuing without a mandatory capability is defined as
// unsafe.
func (e Environment) RequireGlobal(iface string) registry.Proxy {
	proxy, ok := e.Global(iface)
	if !ok {
		panic(errors.MissingGlobal(iface))
	}
	return proxy
}

// AllGlobals returns the live instances of a declared "multi" global in
// creation order. Undeclared interfaces yield an empty slice.
func (e Environment) AllGlobals(iface string) []registry.Proxy {
	e.s.enter("AllGlobals")
	defer e.s.exit()

	sl, ok := e.s.table[iface]
	if !ok || sl.kind != kindMulti {
		return nil
	}
	return sl.multi.GetAll()
}

// Ensure verifies that every named single global has been announced,
// returning the first CodeMissingGlobal error otherwise. The
// non-panicking companion to RequireGlobal for required-global lists.
func (e Environment) Ensure(ifaces ...string) error {
	for _, iface := range ifaces {
		if _, ok := e.Global(iface); !ok {
			return errors.MissingGlobal(iface)
		}
	}
	return nil
}

// WithExtras grants exclusive, scoped access to the auxiliary fields
// declared alongside the slots. The window is released when f returns,
// on every path. Calling any accessor of the same state from inside f
// panics with CodeReentrantAccess.
func (e Environment) WithExtras(f func(extras Extras)) {
	e.s.enter("WithExtras")
	defer e.s.exit()

	f(e.s.extras)
}

// GlobalAs returns the binding of a declared single global asserted to
// the concrete proxy type T.
func GlobalAs[T any](e Environment, iface string) (T, bool) {
	var zero T
	proxy, ok := e.Global(iface)
	if !ok {
		return zero, false
	}
	typed, ok := proxy.(T)
	if !ok {
		return zero, false
	}
	return typed, true
}

// AllGlobalsAs returns the live instances of a declared multi global
// asserted to the concrete proxy type T, skipping instances of other
// types.
func AllGlobalsAs[T any](e Environment, iface string) []T {
	proxies := e.AllGlobals(iface)
	out := make([]T, 0, len(proxies))
	for _, p := range proxies {
		if typed, ok := p.(T); ok {
			out = append(out, typed)
		}
	}
	return out
}
