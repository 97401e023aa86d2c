package registry

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/nats-io/nats.go/jetstream"
)

// fakeKVEntry implements jetstream.KeyValueEntry for watcher parsing
// tests without a live server.
type fakeKVEntry struct {
	key   string
	value []byte
	op    jetstream.KeyValueOp
	rev   uint64
}

func (e *fakeKVEntry) Bucket() string                  { return "globals" }
func (e *fakeKVEntry) Key() string                     { return e.key }
func (e *fakeKVEntry) Value() []byte                   { return e.value }
func (e *fakeKVEntry) Revision() uint64                { return e.rev }
func (e *fakeKVEntry) Created() time.Time              { return time.Time{} }
func (e *fakeKVEntry) Delta() uint64                   { return 0 }
func (e *fakeKVEntry) Operation() jetstream.KeyValueOp { return e.op }

func TestEntryEvent_Put(t *testing.T) {
	value, _ := json.Marshal(Global{Interface: "wl_output", Version: 2})
	entry := &fakeKVEntry{key: "5", value: value, op: jetstream.KeyValuePut, rev: 1}

	ev, ok := entryEvent(entry)
	if !ok {
		t.Fatal("entryEvent should accept a put")
	}
	if ev.Type != EventAdded {
		t.Errorf("Type = %v, want EventAdded", ev.Type)
	}
	if ev.Global.ID != 5 {
		t.Errorf("ID = %d, want 5 (from key)", ev.Global.ID)
	}
	if ev.Global.Interface != "wl_output" || ev.Global.Version != 2 {
		t.Errorf("Global = %+v", ev.Global)
	}
}

func TestEntryEvent_DeleteHasNoInterface(t *testing.T) {
	entry := &fakeKVEntry{key: "5", op: jetstream.KeyValueDelete, rev: 2}

	ev, ok := entryEvent(entry)
	if !ok {
		t.Fatal("entryEvent should accept a delete")
	}
	if ev.Type != EventRemoved {
		t.Errorf("Type = %v, want EventRemoved", ev.Type)
	}
	if ev.Global.Interface != "" {
		t.Errorf("Interface = %q, want empty (tombstones carry no value)", ev.Global.Interface)
	}
}

func TestEntryEvent_RejectsGarbage(t *testing.T) {
	if _, ok := entryEvent(&fakeKVEntry{key: "not-a-number", op: jetstream.KeyValuePut}); ok {
		t.Error("non-numeric key should be rejected")
	}
	if _, ok := entryEvent(&fakeKVEntry{key: "5", value: []byte("{"), op: jetstream.KeyValuePut}); ok {
		t.Error("malformed value should be rejected")
	}
}

func TestNATSConfig_Defaults(t *testing.T) {
	cfg := DefaultNATSConfig()
	if cfg.Bucket != "globals" {
		t.Errorf("Bucket = %q, want globals", cfg.Bucket)
	}
	if cfg.SubjectPrefix != "registry" {
		t.Errorf("SubjectPrefix = %q, want registry", cfg.SubjectPrefix)
	}
	if cfg.RequestTimeout != 5*time.Second {
		t.Errorf("RequestTimeout = %v, want 5s", cfg.RequestTimeout)
	}
}

func TestBindRequestRoundtrip(t *testing.T) {
	req := bindRequest{Interface: "wl_seat", ID: 9, Version: 3}
	data, err := json.Marshal(req)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var decoded bindRequest
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded != req {
		t.Errorf("roundtrip = %+v, want %+v", decoded, req)
	}
}
