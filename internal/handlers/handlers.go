package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/decred/slog"
	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"ringpong/internal/config"
	"ringpong/internal/relay"
	"ringpong/internal/store"
)

// Handler holds dependencies for HTTP handlers
type Handler struct {
	store    *store.MemoryStore
	hub      *relay.Hub
	cfg      *config.ServerConfig
	log      slog.Logger
	upgrader websocket.Upgrader
}

// New creates a new handler
func New(s *store.MemoryStore, hub *relay.Hub, cfg *config.ServerConfig, log slog.Logger) *Handler {
	if log == nil {
		log = slog.Disabled
	}
	return &Handler{
		store: s,
		hub:   hub,
		cfg:   cfg,
		log:   log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Peers are headless clients, not browsers on our origin.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Store returns the handler's store (for testing)
func (h *Handler) Store() *store.MemoryStore {
	return h.store
}

// ServeWS upgrades the request and runs it as a relay client.
func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request) {
	if h.hub.Full() {
		http.Error(w, "Relay is full", http.StatusServiceUnavailable)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Debugf("upgrade failed for %s: %v", r.RemoteAddr, err)
		return
	}
	h.hub.ServeConn(r.Context(), conn)
}

type roomResponse struct {
	Code   string `json:"code"`
	PeerID string `json:"peerId"`
	Relay  string `json:"relay,omitempty"`
}

// ResolveRoom answers with the host peer id behind a room code.
func (h *Handler) ResolveRoom(w http.ResponseWriter, r *http.Request) {
	room, ok := h.lookup(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, roomResponse{Code: room.Code, PeerID: room.PeerID})
}

// JoinRoom is the target of the QR join link: the room plus where to connect.
func (h *Handler) JoinRoom(w http.ResponseWriter, r *http.Request) {
	room, ok := h.lookup(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, roomResponse{
		Code:   room.Code,
		PeerID: room.PeerID,
		Relay:  relayURL(h.baseURL(r)),
	})
}

func (h *Handler) lookup(w http.ResponseWriter, r *http.Request) (*store.Room, bool) {
	room, err := h.store.GetRoom(chi.URLParam(r, "code"))
	if err != nil {
		if errors.Is(err, store.ErrRoomNotFound) {
			http.Error(w, "Room not found", http.StatusNotFound)
		} else {
			http.Error(w, "Lookup failed", http.StatusInternalServerError)
		}
		return nil, false
	}
	return room, true
}

// baseURL is the externally visible origin, from config or the request.
func (h *Handler) baseURL(r *http.Request) string {
	if h.cfg != nil && h.cfg.Server.PublicURL != "" {
		return strings.TrimSuffix(h.cfg.Server.PublicURL, "/")
	}
	scheme := "http"
	if r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https" {
		scheme = "https"
	}
	return scheme + "://" + r.Host
}

func relayURL(base string) string {
	switch {
	case strings.HasPrefix(base, "https://"):
		return "wss://" + strings.TrimPrefix(base, "https://") + "/ws"
	case strings.HasPrefix(base, "http://"):
		return "ws://" + strings.TrimPrefix(base, "http://") + "/ws"
	}
	return base + "/ws"
}

// Live reports the process is up.
func (h *Handler) Live(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

// Ready reports whether the relay can take another peer.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	if h.store == nil || h.hub == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("Relay not ready"))
		return
	}
	if h.hub.Full() {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("Relay at capacity"))
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
