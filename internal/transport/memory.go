package transport

import (
	"context"
	"fmt"
	"sync"

	"ringpong/internal/game"
)

// Network is an in-process transport. Every endpoint created on it can reach
// every other one; delivery is reliable and ordered per sender.
type Network struct {
	mu        sync.Mutex
	endpoints map[string]*MemoryEndpoint
}

// NewNetwork creates an empty in-process network
func NewNetwork() *Network {
	return &Network{
		endpoints: make(map[string]*MemoryEndpoint),
	}
}

// Endpoint attaches a new endpoint with the given id.
func (n *Network) Endpoint(id string) (*MemoryEndpoint, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if _, exists := n.endpoints[id]; exists {
		return nil, fmt.Errorf("endpoint %s already attached", id)
	}
	e := &MemoryEndpoint{
		net:   n,
		id:    id,
		box:   newMailbox(),
		links: make(map[string]bool),
	}
	n.endpoints[id] = e
	return e, nil
}

// MemoryEndpoint is an Endpoint on a Network.
type MemoryEndpoint struct {
	net    *Network
	id     string
	box    *mailbox
	links  map[string]bool // guarded by net.mu
	closed bool            // guarded by net.mu
}

var _ Endpoint = (*MemoryEndpoint)(nil)

func (e *MemoryEndpoint) ID() string { return e.id }

func (e *MemoryEndpoint) Events() <-chan Event { return e.box.out }

func (e *MemoryEndpoint) Connect(_ context.Context, peerID string) error {
	e.net.mu.Lock()
	defer e.net.mu.Unlock()

	if e.closed {
		return ErrClosed
	}
	target, ok := e.net.endpoints[peerID]
	if !ok || target.closed || target == e {
		return fmt.Errorf("connect %s: %w", peerID, ErrPeerUnavailable)
	}
	if e.links[peerID] {
		return nil
	}
	e.links[peerID] = true
	target.links[e.id] = true
	target.box.push(Event{Kind: EventOpen, Peer: e.id})
	e.box.push(Event{Kind: EventOpen, Peer: peerID})
	return nil
}

func (e *MemoryEndpoint) Send(peerID string, data []byte) error {
	e.net.mu.Lock()
	defer e.net.mu.Unlock()

	if e.closed {
		return ErrClosed
	}
	if !e.links[peerID] {
		return fmt.Errorf("send to %s: %w", peerID, ErrNotConnected)
	}
	target := e.net.endpoints[peerID]
	payload := make([]byte, len(data))
	copy(payload, data)
	target.box.push(Event{Kind: EventData, Peer: e.id, Data: payload})
	return nil
}

func (e *MemoryEndpoint) Disconnect(peerID string) error {
	e.net.mu.Lock()
	defer e.net.mu.Unlock()
	e.unlinkLocked(peerID)
	return nil
}

func (e *MemoryEndpoint) unlinkLocked(peerID string) {
	if !e.links[peerID] {
		return
	}
	delete(e.links, peerID)
	e.box.push(Event{Kind: EventClose, Peer: peerID})
	if target, ok := e.net.endpoints[peerID]; ok {
		delete(target.links, e.id)
		target.box.push(Event{Kind: EventClose, Peer: e.id})
	}
}

// Resolve finds the attached endpoint whose id yields code.
func (e *MemoryEndpoint) Resolve(_ context.Context, code string) (string, error) {
	e.net.mu.Lock()
	defer e.net.mu.Unlock()

	code = game.NormalizeCode(code)
	for id, ep := range e.net.endpoints {
		if !ep.closed && (game.RoomCode(id) == code || id == code) {
			return id, nil
		}
	}
	return "", fmt.Errorf("resolve %s: %w", code, ErrInvalidJoinCode)
}

// Close drops every connection of this endpoint and detaches it.
func (e *MemoryEndpoint) Close() error {
	e.net.mu.Lock()
	if e.closed {
		e.net.mu.Unlock()
		return nil
	}
	for peerID := range e.links {
		if target, ok := e.net.endpoints[peerID]; ok {
			delete(target.links, e.id)
			target.box.push(Event{Kind: EventClose, Peer: e.id})
		}
	}
	e.links = make(map[string]bool)
	e.closed = true
	delete(e.net.endpoints, e.id)
	e.net.mu.Unlock()

	e.box.close()
	return nil
}
