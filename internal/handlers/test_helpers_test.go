package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"ringpong/internal/config"
	"ringpong/internal/relay"
	"ringpong/internal/store"
)

// newTestHandler creates a handler with default test configuration
func newTestHandler() *Handler {
	cfg := config.DefaultConfig()
	s := store.NewMemoryStore()
	hub := relay.NewHub(s, nil, relay.Options{MaxConnections: 4})
	return New(s, hub, cfg, nil)
}

// setupTestRouter creates a router for tests without logging or rate limiting
func setupTestRouter(h *Handler) *chi.Mux {
	return SetupRouter(h, h.cfg, &RouterOptions{
		DisableRateLimiting:  true,
		DisableRequestLogger: true,
	})
}

// newTestServer serves the test router over a real listener, for websocket tests
func newTestServer(t *testing.T, h *Handler) string {
	t.Helper()
	srv := httptest.NewServer(setupTestRouter(h))
	t.Cleanup(func() {
		h.hub.Close()
		srv.Close()
	})
	return srv.URL
}

func wsURL(httpURL string) string {
	return "ws" + strings.TrimPrefix(httpURL, "http") + "/ws"
}

// registerRoom registers a host directly in the store
func registerRoom(t *testing.T, h *Handler, peerID string) *store.Room {
	t.Helper()
	room, err := h.store.Register(peerID)
	if err != nil {
		t.Fatalf("failed to register room: %v", err)
	}
	return room
}

func get(router http.Handler, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", path, nil))
	return w
}
