// Package env binds the globals a client cares about and exposes them
// through a typed environment facade.
//
// # Global handlers
//
// Registry globals split into two kinds:
//
//   - "single" globals represent a capability of the server. They are
//     generally announced at connection start and never removed, and
//     are announced once. A compositor facility or a shared-memory
//     factory are typical examples.
//   - "multi" globals represent resources the server gives access to.
//     They can appear and disappear over the life of the connection and
//     may exist as several simultaneous instances, each standing for a
//     distinct physical resource, like outputs or seats.
//
// An object managing a global implements GlobalHandler or
// MultiGlobalHandler accordingly. Handlers are responsible for binding
// the advertisement into a usable proxy; SimpleGlobal and SimpleMulti
// cover globals that need nothing beyond the bind itself.
//
// # Declaring and building an environment
//
// The set of globals an application wants is a Declaration: one slot
// per interface name, fixed before construction. New attaches a
// dispatcher to the transport and runs two blocking synchronization
// rounds — the first delivers every global the server currently knows,
// the second guarantees that follow-on requests issued by handlers
// while binding are serviced — and only then returns the Environment.
// A failed round fails construction; no partially-initialized
// environment is ever observable.
//
//	decl := env.Declaration{
//	    Singles: []env.SingleSlot{
//	        {Interface: "wl_compositor", Handler: env.NewSimpleGlobal("wl_compositor")},
//	    },
//	    Multis: []env.MultiSlot{
//	        {Interface: "wl_output", Handler: env.NewSimpleMulti("wl_output")},
//	    },
//	}
//	environ, err := env.New(ctx, tr, decl)
//
// Advertisements whose interface is not declared are discarded; that is
// the normal case, not an error.
//
// # Access discipline
//
// The environment state sits behind a runtime-checked exclusive window:
// at most one of WithExtras or an accessor holds it at a time. The
// dispatcher releases its window before invoking a handler, so handler
// callbacks may freely use accessors; re-entering an accessor from
// inside WithExtras is a programmer error and panics.
package env
