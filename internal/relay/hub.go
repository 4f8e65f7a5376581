// Package relay routes peer-addressed frames between websocket clients. It only
// forwards bytes; game state lives entirely on the peers.
package relay

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/decred/slog"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"ringpong/internal/game"
	"ringpong/internal/store"
	"ringpong/internal/transport"
)

// ErrHubFull is returned when the hub is at its connection limit.
var ErrHubFull = errors.New("relay at connection limit")

// Options tunes a Hub.
type Options struct {
	SendBuffer     int
	FrameRate      float64
	FrameBurst     int
	MaxFrameSize   int64
	MaxConnections int
	PingInterval   time.Duration
	PongWait       time.Duration
	WriteWait      time.Duration
}

// DefaultFrameRate lets a full room's host run at the default tick rate with
// headroom for connects and jitter.
var DefaultFrameRate = 2 * game.PeakFrameRate(game.DefaultTickHz)

// DefaultOptions are used for zero fields.
func DefaultOptions() Options {
	return Options{
		SendBuffer:     256,
		FrameRate:      DefaultFrameRate,
		FrameBurst:     int(DefaultFrameRate),
		MaxFrameSize:   65536,
		MaxConnections: 1000,
		PingInterval:   25 * time.Second,
		PongWait:       60 * time.Second,
		WriteWait:      10 * time.Second,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.SendBuffer <= 0 {
		o.SendBuffer = d.SendBuffer
	}
	if o.FrameRate <= 0 {
		o.FrameRate = d.FrameRate
	}
	if o.FrameBurst <= 0 {
		o.FrameBurst = d.FrameBurst
	}
	if o.MaxFrameSize <= 0 {
		o.MaxFrameSize = d.MaxFrameSize
	}
	if o.MaxConnections <= 0 {
		o.MaxConnections = d.MaxConnections
	}
	if o.PingInterval <= 0 {
		o.PingInterval = d.PingInterval
	}
	if o.PongWait <= o.PingInterval {
		o.PongWait = o.PingInterval * 2
	}
	if o.WriteWait <= 0 {
		o.WriteWait = d.WriteWait
	}
	return o
}

// peer is one relay client.
type peer struct {
	id      string
	conn    *websocket.Conn
	send    chan transport.Frame
	limiter *rate.Limiter
	links   map[string]bool // guarded by Hub.mu

	ctx    context.Context
	cancel context.CancelFunc
}

// Hub holds every connected peer and the links between them.
type Hub struct {
	opts  Options
	rooms *store.MemoryStore
	log   slog.Logger

	mu    sync.Mutex
	peers map[string]*peer

	newID func() string
}

// NewHub creates a hub that registers each peer's room code in rooms.
func NewHub(rooms *store.MemoryStore, log slog.Logger, opts Options) *Hub {
	if log == nil {
		log = slog.Disabled
	}
	return &Hub{
		opts:  opts.withDefaults(),
		rooms: rooms,
		log:   log,
		peers: make(map[string]*peer),
		newID: uuid.NewString,
	}
}

// Full reports whether another connection would exceed the limit.
func (h *Hub) Full() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.peers) >= h.opts.MaxConnections
}

// PeerCount returns the number of connected peers.
func (h *Hub) PeerCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.peers)
}

// register assigns a fresh id whose room code is not in use.
func (h *Hub) register(ctx context.Context, conn *websocket.Conn) (*peer, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.peers) >= h.opts.MaxConnections {
		return nil, ErrHubFull
	}

	var id string
	for attempt := 0; ; attempt++ {
		id = h.newID()
		_, err := h.rooms.Register(id)
		if err == nil {
			break
		}
		if !errors.Is(err, store.ErrCodeTaken) || attempt >= 10 {
			return nil, err
		}
		h.log.Debugf("room code collision for %s, re-rolling", id)
	}

	pctx, cancel := context.WithCancel(ctx)
	p := &peer{
		id:      id,
		conn:    conn,
		send:    make(chan transport.Frame, h.opts.SendBuffer),
		limiter: rate.NewLimiter(rate.Limit(h.opts.FrameRate), h.opts.FrameBurst),
		links:   make(map[string]bool),
		ctx:     pctx,
		cancel:  cancel,
	}
	h.peers[id] = p
	return p, nil
}

// unregister removes p and tells every linked peer the link is gone.
func (h *Hub) unregister(p *peer) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.peers[p.id] != p {
		return
	}
	delete(h.peers, p.id)
	for other := range p.links {
		if q, ok := h.peers[other]; ok {
			delete(q.links, p.id)
			h.deliverLocked(q, transport.Frame{Op: transport.OpClose, Peer: p.id})
		}
	}
	p.links = nil
	h.rooms.Remove(p.id)
	p.cancel()
}

// deliverLocked queues f for p. A peer that cannot keep up is disconnected
// rather than silently losing frames.
func (h *Hub) deliverLocked(p *peer, f transport.Frame) {
	select {
	case p.send <- f:
	default:
		h.log.Warnf("peer %s send buffer full, disconnecting", p.id)
		p.cancel()
	}
}

// ServeConn runs one relay client until its connection ends. It blocks.
func (h *Hub) ServeConn(ctx context.Context, conn *websocket.Conn) {
	p, err := h.register(ctx, conn)
	if err != nil {
		h.log.Warnf("rejecting relay client: %v", err)
		msg := websocket.FormatCloseMessage(websocket.CloseTryAgainLater, err.Error())
		conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(h.opts.WriteWait))
		conn.Close()
		return
	}
	h.log.Debugf("peer %s connected (room %s)", p.id, game.RoomCode(p.id))

	p.send <- transport.Frame{Op: transport.OpID, Peer: p.id}

	done := make(chan struct{})
	go func() {
		h.writePump(p)
		close(done)
	}()

	h.readPump(p)
	h.unregister(p)
	<-done
	h.log.Debugf("peer %s disconnected", p.id)
}

func (h *Hub) readPump(p *peer) {
	conn := p.conn
	conn.SetReadLimit(h.opts.MaxFrameSize)
	_ = conn.SetReadDeadline(time.Now().Add(h.opts.PongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(h.opts.PongWait))
	})

	for {
		var f transport.Frame
		if err := conn.ReadJSON(&f); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.log.Debugf("read from %s: %v", p.id, err)
			}
			p.cancel()
			return
		}
		if err := p.limiter.Wait(p.ctx); err != nil {
			return
		}
		h.route(p, f)
	}
}

func (h *Hub) route(from *peer, f transport.Frame) {
	h.mu.Lock()
	defer h.mu.Unlock()

	reply := func(code string) {
		h.deliverLocked(from, transport.Frame{Op: transport.OpError, Peer: f.Peer, Error: code})
	}

	switch f.Op {
	case transport.OpConnect:
		target, ok := h.peers[f.Peer]
		if !ok || target == from {
			reply(transport.CodePeerUnavailable)
			return
		}
		if from.links[target.id] {
			return
		}
		from.links[target.id] = true
		target.links[from.id] = true
		h.deliverLocked(target, transport.Frame{Op: transport.OpOpen, Peer: from.id})
		h.deliverLocked(from, transport.Frame{Op: transport.OpOpen, Peer: target.id})

	case transport.OpData:
		if !from.links[f.Peer] {
			reply(transport.CodeNotConnected)
			return
		}
		h.deliverLocked(h.peers[f.Peer], transport.Frame{Op: transport.OpData, Peer: from.id, Data: f.Data})

	case transport.OpClose:
		if !from.links[f.Peer] {
			return
		}
		delete(from.links, f.Peer)
		target := h.peers[f.Peer]
		delete(target.links, from.id)
		h.deliverLocked(target, transport.Frame{Op: transport.OpClose, Peer: from.id})
		h.deliverLocked(from, transport.Frame{Op: transport.OpClose, Peer: target.id})

	default:
		reply(transport.CodeBadFrame)
	}
}

func (h *Hub) writePump(p *peer) {
	ticker := time.NewTicker(h.opts.PingInterval)
	defer func() {
		ticker.Stop()
		p.conn.Close()
	}()

	for {
		select {
		case f := <-p.send:
			_ = p.conn.SetWriteDeadline(time.Now().Add(h.opts.WriteWait))
			if err := p.conn.WriteJSON(f); err != nil {
				p.cancel()
				return
			}
		case <-ticker.C:
			_ = p.conn.SetWriteDeadline(time.Now().Add(h.opts.WriteWait))
			if err := p.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				p.cancel()
				return
			}
		case <-p.ctx.Done():
			msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
			_ = p.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(h.opts.WriteWait))
			return
		}
	}
}

// Close disconnects every peer.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, p := range h.peers {
		p.cancel()
	}
}
