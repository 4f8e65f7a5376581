// Package transport is the peer-to-peer channel the game runs over: a reliable,
// message-oriented, peer-addressed link with open/data/close/error events. The
// only ordering guarantee is per sender.
package transport

import (
	"context"
	"errors"
	"sync"
)

var (
	ErrInvalidJoinCode = errors.New("invalid join code")
	ErrPeerUnavailable = errors.New("peer unavailable")
	ErrNotConnected    = errors.New("not connected to peer")
	ErrClosed          = errors.New("transport closed")
)

// EventKind says what happened on a connection.
type EventKind int

const (
	EventOpen EventKind = iota
	EventData
	EventClose
	EventError
)

func (k EventKind) String() string {
	switch k {
	case EventOpen:
		return "open"
	case EventData:
		return "data"
	case EventClose:
		return "close"
	case EventError:
		return "error"
	}
	return "unknown"
}

// Event is delivered for every connection change and every received message.
type Event struct {
	Kind EventKind
	Peer string
	Data []byte
	Err  error
}

// Endpoint is one process's attachment to the transport.
type Endpoint interface {
	// ID is the transport-assigned identifier of this endpoint.
	ID() string
	// Connect opens a connection to peerID. Both sides see EventOpen once it is
	// established; failures arrive as EventError when they are not immediate.
	Connect(ctx context.Context, peerID string) error
	Send(peerID string, data []byte) error
	// Disconnect closes the connection to peerID; both sides see EventClose.
	Disconnect(peerID string) error
	// Resolve maps a room code to the peer id of the room's host.
	Resolve(ctx context.Context, code string) (string, error)
	Events() <-chan Event
	Close() error
}

// mailbox is an unbounded, order-preserving event queue drained into a channel.
type mailbox struct {
	mu     sync.Mutex
	queue  []Event
	notify chan struct{}
	out    chan Event
	done   chan struct{}
	once   sync.Once
}

func newMailbox() *mailbox {
	m := &mailbox{
		notify: make(chan struct{}, 1),
		out:    make(chan Event),
		done:   make(chan struct{}),
	}
	go m.run()
	return m
}

func (m *mailbox) push(ev Event) {
	m.mu.Lock()
	m.queue = append(m.queue, ev)
	m.mu.Unlock()
	select {
	case m.notify <- struct{}{}:
	default:
	}
}

func (m *mailbox) run() {
	defer close(m.out)
	for {
		m.mu.Lock()
		if len(m.queue) == 0 {
			m.mu.Unlock()
			select {
			case <-m.notify:
				continue
			case <-m.done:
				return
			}
		}
		ev := m.queue[0]
		m.queue = m.queue[1:]
		m.mu.Unlock()

		select {
		case m.out <- ev:
		case <-m.done:
			return
		}
	}
}

func (m *mailbox) close() {
	m.once.Do(func() { close(m.done) })
}
