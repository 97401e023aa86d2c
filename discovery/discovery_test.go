package discovery

import (
	"context"
	"testing"

	"github.com/vinayprograms/envkit/env"
	"github.com/vinayprograms/envkit/registry"
)

func TestIndex_AddRemove(t *testing.T) {
	x, err := NewIndex()
	if err != nil {
		t.Fatalf("NewIndex: %v", err)
	}
	defer x.Close()

	x.GlobalAdded(registry.Global{ID: 1, Interface: "wl_compositor", Version: 4})
	x.GlobalAdded(registry.Global{ID: 5, Interface: "wl_output", Version: 3})
	x.GlobalAdded(registry.Global{ID: 6, Interface: "wl_output", Version: 3})

	if x.Len() != 3 {
		t.Fatalf("Len = %d, want 3", x.Len())
	}

	outs := x.Lookup("wl_output")
	if len(outs) != 2 || outs[0].ID != 5 || outs[1].ID != 6 {
		t.Errorf("Lookup(wl_output) = %v, want ids 5,6", outs)
	}

	x.GlobalRemoved(5, "wl_output")
	if outs := x.Lookup("wl_output"); len(outs) != 1 || outs[0].ID != 6 {
		t.Errorf("after removal Lookup = %v, want only id 6", outs)
	}

	// Removing an unknown id is a no-op.
	x.GlobalRemoved(42, "")
	if x.Len() != 2 {
		t.Errorf("Len = %d after no-op removal, want 2", x.Len())
	}
}

func TestIndex_ReannouncementReplaces(t *testing.T) {
	x, err := NewIndex()
	if err != nil {
		t.Fatalf("NewIndex: %v", err)
	}
	defer x.Close()

	x.GlobalAdded(registry.Global{ID: 1, Interface: "wl_seat", Version: 1})
	x.GlobalAdded(registry.Global{ID: 1, Interface: "wl_seat", Version: 5})

	if x.Len() != 1 {
		t.Fatalf("Len = %d, want 1", x.Len())
	}
	if got := x.Lookup("wl_seat"); len(got) != 1 || got[0].Version != 5 {
		t.Errorf("Lookup = %v, want version 5", got)
	}
}

func TestIndex_Search(t *testing.T) {
	x, err := NewIndex()
	if err != nil {
		t.Fatalf("NewIndex: %v", err)
	}
	defer x.Close()

	x.GlobalAdded(registry.Global{ID: 1, Interface: "wl_compositor", Version: 4})
	x.GlobalAdded(registry.Global{ID: 2, Interface: "wl_shm", Version: 1})
	x.GlobalAdded(registry.Global{ID: 5, Interface: "wl_output", Version: 3})

	hits, err := x.Search("output", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 1 || hits[0].Interface != "wl_output" {
		t.Errorf("Search(output) = %v, want the wl_output advertisement", hits)
	}

	hits, err = x.Search("no_such_interface", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 0 {
		t.Errorf("Search on absent term = %v, want none", hits)
	}
}

func TestIndex_AsEnvironmentObserver(t *testing.T) {
	x, err := NewIndex()
	if err != nil {
		t.Fatalf("NewIndex: %v", err)
	}
	defer x.Close()

	srv := registry.NewMemory(registry.Config{})
	srv.Advertise(registry.Global{ID: 1, Interface: "wl_compositor", Version: 4})
	srv.Advertise(registry.Global{ID: 7, Interface: "zxdg_decoration_manager_v1", Version: 1})

	_, err = env.New(context.Background(), srv, env.Declaration{
		Singles: []env.SingleSlot{{Interface: "wl_compositor", Handler: env.NewSimpleGlobal("wl_compositor")}},
	}, env.WithObserver(x))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	// The index sees undeclared interfaces too.
	if x.Len() != 2 {
		t.Fatalf("Len = %d, want 2", x.Len())
	}
	hits, err := x.Search("decoration", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 1 || hits[0].ID != 7 {
		t.Errorf("Search(decoration) = %v, want the undeclared manager", hits)
	}

	srv.Withdraw(7)
	if err := srv.Sync(context.Background()); err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if x.Len() != 1 {
		t.Errorf("Len = %d after withdrawal, want 1", x.Len())
	}
}
