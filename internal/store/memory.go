package store

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"ringpong/internal/game"
)

var (
	ErrCodeTaken    = errors.New("room code already registered")
	ErrRoomNotFound = errors.New("room not found")
)

// Room is a registered room code and the peer hosting it.
type Room struct {
	Code      string    `json:"code"`
	PeerID    string    `json:"peerId"`
	CreatedAt time.Time `json:"-"`
}

// MemoryStore maps room codes to host peer ids in memory
type MemoryStore struct {
	mu    sync.RWMutex
	rooms map[string]*Room
	peers map[string]string // peer id -> code
}

// NewMemoryStore creates a new in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		rooms: make(map[string]*Room),
		peers: make(map[string]string),
	}
}

// Register records the room code derived from peerID. Registering the same
// peer twice is a no-op; a different peer whose id yields the same code gets
// ErrCodeTaken.
func (s *MemoryStore) Register(peerID string) (*Room, error) {
	code := game.RoomCode(peerID)
	if code == "" {
		return nil, fmt.Errorf("register %q: empty peer id", peerID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, exists := s.rooms[code]; exists {
		if existing.PeerID == peerID {
			return existing, nil
		}
		return nil, fmt.Errorf("register %s: %w", code, ErrCodeTaken)
	}

	room := &Room{
		Code:      code,
		PeerID:    peerID,
		CreatedAt: time.Now(),
	}
	s.rooms[code] = room
	s.peers[peerID] = code
	return room, nil
}

// GetRoom retrieves a room by code
func (s *MemoryStore) GetRoom(code string) (*Room, error) {
	code = game.NormalizeCode(code)

	s.mu.RLock()
	defer s.mu.RUnlock()

	room, exists := s.rooms[code]
	if !exists {
		return nil, fmt.Errorf("room %s: %w", code, ErrRoomNotFound)
	}
	return room, nil
}

// Remove drops the room hosted by peerID, if any.
func (s *MemoryStore) Remove(peerID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	code, ok := s.peers[peerID]
	if !ok {
		return false
	}
	delete(s.peers, peerID)
	delete(s.rooms, code)
	return true
}

// Count returns the number of registered rooms.
func (s *MemoryStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rooms)
}
