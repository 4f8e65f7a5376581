package main

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"ringpong/internal/config"
	"ringpong/internal/game"
	"ringpong/internal/logging"
	"ringpong/internal/transport"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	logs, err := logging.NewLogBackend(io.Discard, "off")
	if err != nil {
		t.Fatal(err)
	}
	return SetupServer(config.DefaultConfig(), logs)
}

func TestSetupServer(t *testing.T) {
	srv := newTestServer(t)

	if srv.Handler() == nil {
		t.Fatal("SetupServer returned nil handler")
	}

	testCases := []struct {
		method       string
		path         string
		expectedCode int
	}{
		{"GET", "/health/live", http.StatusOK},
		{"GET", "/health/ready", http.StatusOK},
		{"GET", "/api/rooms/ABCDEF", http.StatusNotFound},
		{"GET", "/api/rooms/bad", http.StatusBadRequest},
		{"GET", "/join/ABCDEF", http.StatusNotFound},
		{"GET", "/", http.StatusNotFound},
		{"POST", "/api/rooms/ABCDEF", http.StatusMethodNotAllowed},
	}

	for _, tc := range testCases {
		t.Run(tc.method+" "+tc.path, func(t *testing.T) {
			req := httptest.NewRequest(tc.method, tc.path, nil)
			w := httptest.NewRecorder()

			srv.Handler().ServeHTTP(w, req)

			if w.Code != tc.expectedCode {
				t.Errorf("expected status %d, got %d", tc.expectedCode, w.Code)
			}
		})
	}
}

func TestHubOptions(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Server.SendBuffer = 7
	cfg.Server.MaxConnections = 12

	opts := hubOptions(cfg)
	if opts.SendBuffer != 7 || opts.MaxConnections != 12 {
		t.Errorf("unexpected hub options %+v", opts)
	}
	if opts.WriteWait != cfg.Server.WriteTimeout {
		t.Errorf("expected write wait %v, got %v", cfg.Server.WriteTimeout, opts.WriteWait)
	}
}

func TestServe_RelayAndShutdown(t *testing.T) {
	srv := newTestServer(t)
	srv.cfg.Server.ShutdownTimeout = 2 * time.Second

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	base := "http://" + ln.Addr().String()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln) }()

	resp, err := http.Get(base + "/health/live")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 from /health/live, got %d", resp.StatusCode)
	}

	dialCtx, dialCancel := context.WithTimeout(ctx, 5*time.Second)
	defer dialCancel()
	host, err := transport.Dial(dialCtx, base)
	if err != nil {
		t.Fatalf("dial relay: %v", err)
	}
	defer host.Close()

	// the host's room is resolvable as soon as it is connected
	room, err := srv.store.GetRoom(game.RoomCode(host.ID()))
	if err != nil {
		t.Fatalf("room not registered: %v", err)
	}
	if room.PeerID != host.ID() {
		t.Errorf("expected room peer %s, got %s", host.ID(), room.PeerID)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("expected clean shutdown, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}

	// the relay connection is closed by the shutdown
	select {
	case ev := <-host.Events():
		if ev.Kind != transport.EventError || !errors.Is(ev.Err, transport.ErrClosed) {
			t.Errorf("expected a closed error event, got %v %v", ev.Kind, ev.Err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("relay connection was not closed")
	}
}

func TestRun_BadAddress(t *testing.T) {
	srv := newTestServer(t)
	srv.cfg.Server.Host = "127.0.0.1"
	srv.cfg.Server.Port = "99999"

	if err := srv.Run(context.Background()); err == nil {
		t.Error("expected listen error")
	}
}
