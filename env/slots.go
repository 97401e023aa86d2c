package env

import (
	"github.com/vinayprograms/envkit/errors"
)

// SingleSlot declares interest in a "single" global.
type SingleSlot struct {
	// Interface is the protocol interface name the slot responds to.
	Interface string

	// Handler receives the advertisement and owns the binding.
	Handler GlobalHandler
}

// MultiSlot declares interest in a "multi" global.
type MultiSlot struct {
	// Interface is the protocol interface name the slot responds to.
	Interface string

	// Handler receives creations and removals and owns the live set.
	Handler MultiGlobalHandler
}

// Extras holds the auxiliary application fields stored alongside the
// slots, reachable only through Environment.WithExtras.
type Extras map[string]interface{}

// Declaration is the application's static slot set: which globals it
// wants, which handlers manage them, and any extra fields. It is
// consumed once at construction; the resulting slot table never
// changes.
type Declaration struct {
	Singles []SingleSlot
	Multis  []MultiSlot
	Extras  Extras
}

// slotKind distinguishes the two handler contracts inside the table.
type slotKind int

const (
	kindSingle slotKind = iota
	kindMulti
)

// slot is one entry of the immutable interface-name table.
type slot struct {
	kind   slotKind
	single GlobalHandler
	multi  MultiGlobalHandler
}

// buildSlotTable validates a declaration and freezes it into the
// lookup table. An interface name maps to at most one slot.
func buildSlotTable(decl Declaration) (map[string]slot, error) {
	table := make(map[string]slot, len(decl.Singles)+len(decl.Multis))

	for _, s := range decl.Singles {
		if s.Interface == "" {
			return nil, errors.InvalidDeclaration("single slot with empty interface name")
		}
		if s.Handler == nil {
			return nil, errors.Newf(errors.CodeInvalidDeclaration, "single slot %s has no handler", s.Interface)
		}
		if _, dup := table[s.Interface]; dup {
			return nil, errors.Newf(errors.CodeInvalidDeclaration, "interface %s declared twice", s.Interface)
		}
		table[s.Interface] = slot{kind: kindSingle, single: s.Handler}
	}

	for _, m := range decl.Multis {
		if m.Interface == "" {
			return nil, errors.InvalidDeclaration("multi slot with empty interface name")
		}
		if m.Handler == nil {
			return nil, errors.Newf(errors.CodeInvalidDeclaration, "multi slot %s has no handler", m.Interface)
		}
		if _, dup := table[m.Interface]; dup {
			return nil, errors.Newf(errors.CodeInvalidDeclaration, "interface %s declared twice", m.Interface)
		}
		table[m.Interface] = slot{kind: kindMulti, multi: m.Handler}
	}

	return table, nil
}
