package registry

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// --- Unit Tests ---

func TestWebSocketConfig_Defaults(t *testing.T) {
	cfg := DefaultWebSocketConfig()
	if cfg.MaxMessageSize != 1024*1024 {
		t.Errorf("MaxMessageSize = %d, want 1MB", cfg.MaxMessageSize)
	}
	if cfg.WriteTimeout != 10*time.Second {
		t.Errorf("WriteTimeout = %v, want 10s", cfg.WriteTimeout)
	}
}

func TestBindRefusal(t *testing.T) {
	if err := bindRefusal("wl_output", 5, "version"); !errors.Is(err, ErrVersion) {
		t.Errorf("version refusal: err = %v, want ErrVersion", err)
	}
	if err := bindRefusal("wl_output", 5, "unknown"); !errors.Is(err, ErrUnknownGlobal) {
		t.Errorf("unknown refusal: err = %v, want ErrUnknownGlobal", err)
	}
	if err := bindRefusal("wl_output", 5, "busy"); err == nil {
		t.Error("other refusals should still fail")
	}
}

// --- Integration Tests ---

// wsTestServer plays a registry server: it announces the given globals
// ahead of each sync ack and answers bind requests.
type wsTestServer struct {
	t       *testing.T
	globals []Global
}

func (s *wsTestServer) handler() http.HandlerFunc {
	upgrader := &websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool { return true },
	}

	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			s.t.Errorf("upgrade error: %v", err)
			return
		}
		defer conn.Close()

		announced := false
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}

			var frame wsFrame
			if err := json.Unmarshal(data, &frame); err != nil {
				continue
			}

			switch frame.Type {
			case "sync":
				if !announced {
					announced = true
					for i := range s.globals {
						g := s.globals[i]
						s.write(conn, wsFrame{Type: "added", Global: &g})
					}
				}
				s.write(conn, wsFrame{Type: "sync_ack", Token: frame.Token})
			case "bind":
				ack := wsFrame{Type: "bind_ack", Token: frame.Token, OK: true}
				if !s.isLive(frame.Interface, frame.ID, frame.Version) {
					ack.OK = false
					ack.Error = "version"
				}
				s.write(conn, ack)
			}
		}
	}
}

func (s *wsTestServer) write(conn *websocket.Conn, frame wsFrame) {
	data, _ := json.Marshal(frame)
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		s.t.Errorf("server write error: %v", err)
	}
}

func (s *wsTestServer) isLive(iface string, id, version uint32) bool {
	for _, g := range s.globals {
		if g.ID == id && g.Interface == iface && version <= g.Version {
			return true
		}
	}
	return false
}

func dialTestServer(t *testing.T, srv *wsTestServer) (*WebSocket, func()) {
	t.Helper()

	server := httptest.NewServer(srv.handler())
	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	tr, err := DialWebSocket(ctx, wsURL, DefaultWebSocketConfig())
	if err != nil {
		server.Close()
		t.Fatalf("dial error: %v", err)
	}

	return tr, func() {
		tr.Close()
		server.Close()
	}
}

func TestWebSocket_SyncDeliversAnnouncements(t *testing.T) {
	srv := &wsTestServer{t: t, globals: []Global{
		{ID: 1, Interface: "wl_compositor", Version: 4},
		{ID: 5, Interface: "wl_output", Version: 2},
	}}
	tr, done := dialTestServer(t, srv)
	defer done()

	sink := &recordSink{}
	tr.Attach(sink)

	if err := tr.Sync(context.Background()); err != nil {
		t.Fatalf("Sync error: %v", err)
	}

	if len(sink.added) != 2 {
		t.Fatalf("added = %d events, want 2", len(sink.added))
	}
	if sink.added[0].Interface != "wl_compositor" || sink.added[1].Interface != "wl_output" {
		t.Errorf("unexpected delivery order: %+v", sink.added)
	}
}

func TestWebSocket_Bind(t *testing.T) {
	srv := &wsTestServer{t: t, globals: []Global{
		{ID: 5, Interface: "wl_output", Version: 2},
	}}
	tr, done := dialTestServer(t, srv)
	defer done()
	tr.Attach(&recordSink{})

	p, err := tr.Bind("wl_output", 5, 2)
	if err != nil {
		t.Fatalf("Bind error: %v", err)
	}
	if p.Interface() != "wl_output" || p.ID() != 5 || p.Version() != 2 {
		t.Errorf("proxy = %s@%d v%d, want wl_output@5 v2", p.Interface(), p.ID(), p.Version())
	}

	if _, err := tr.Bind("wl_output", 5, 3); !errors.Is(err, ErrVersion) {
		t.Errorf("bind above advertised: err = %v, want ErrVersion", err)
	}
}

func TestWebSocket_SyncAfterClose(t *testing.T) {
	srv := &wsTestServer{t: t}
	tr, done := dialTestServer(t, srv)
	defer done()
	tr.Attach(&recordSink{})
	tr.Close()

	if err := tr.Sync(context.Background()); err == nil {
		t.Error("Sync after Close should fail")
	}
}
