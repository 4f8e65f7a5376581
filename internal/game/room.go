package game

import (
	"fmt"
	"math"
	"time"
)

// GameState is the coarse phase of a session
type GameState string

const (
	StateLobby     GameState = "lobby"
	StateCountdown GameState = "countdown"
	StatePlaying   GameState = "playing"
	StateEnded     GameState = "ended"
)

// Ball is the single simulated object. Only the host's simulator mutates it.
type Ball struct {
	X         float64 `json:"x" msgpack:"x"`
	Y         float64 `json:"y" msgpack:"y"`
	VX        float64 `json:"vx" msgpack:"vx"`
	VY        float64 `json:"vy" msgpack:"vy"`
	Radius    float64 `json:"radius" msgpack:"radius"`
	LastHitBy string  `json:"lastHitBy,omitempty" msgpack:"lastHitBy,omitempty"`
}

// NewBall returns a resting ball at the arena center.
func NewBall() Ball {
	return Ball{X: CenterX, Y: CenterY, Radius: BallRadius}
}

// Speed returns the magnitude of the ball's velocity.
func (b Ball) Speed() float64 {
	return math.Hypot(b.VX, b.VY)
}

// DistanceFromCenter returns how far the ball is from the arena center.
func (b Ball) DistanceFromCenter() float64 {
	return math.Hypot(b.X-CenterX, b.Y-CenterY)
}

// Angle returns the ball's angular position around the arena center.
func (b Ball) Angle() float64 {
	return math.Atan2(b.Y-CenterY, b.X-CenterX)
}

// Session is the whole game state of one room as seen by one process.
//
// The host is the single writer of Ball, Scores and Winner. Every process is
// the single writer of its own player's PaddlePosition; all other entries are
// mirrors updated from received messages.
type Session struct {
	Players   map[string]*Player `json:"players" msgpack:"players"`
	Ball      Ball               `json:"ball" msgpack:"ball"`
	Started   bool               `json:"gameStarted" msgpack:"gameStarted"`
	Countdown float64            `json:"countdown" msgpack:"countdown"` // seconds remaining, 0 when idle
	Scores    map[string]int     `json:"scores" msgpack:"scores"`
	Winner    string             `json:"winner,omitempty" msgpack:"winner,omitempty"`
	Settings  Settings           `json:"settings" msgpack:"settings"`
	State     GameState          `json:"state" msgpack:"state"`

	// RosterVersion increases on every membership change so stale snapshots can be discarded.
	RosterVersion uint64 `json:"rosterVersion" msgpack:"rosterVersion"`
	// Tick counts host simulation steps and is never reset within a room.
	Tick uint64 `json:"tick" msgpack:"tick"`

	CountdownStartedAt time.Time `json:"-" msgpack:"-"`
}

// NewSession creates an empty session in the lobby
func NewSession(settings Settings) *Session {
	return &Session{
		Players:  make(map[string]*Player),
		Ball:     NewBall(),
		Scores:   make(map[string]int),
		Settings: settings,
		State:    StateLobby,
	}
}

// Reset tears the session down to an empty lobby with default settings.
func (s *Session) Reset() {
	*s = *NewSession(DefaultSettings())
}

// Clone returns a deep copy
func (s *Session) Clone() *Session {
	c := *s
	c.Players = make(map[string]*Player, len(s.Players))
	for id, p := range s.Players {
		c.Players[id] = p.clone()
	}
	c.Scores = make(map[string]int, len(s.Scores))
	for id, v := range s.Scores {
		c.Scores[id] = v
	}
	return &c
}

// SetPaddle moves a player's paddle to pos.
func (s *Session) SetPaddle(id string, pos float64) error {
	p := s.Players[id]
	if p == nil {
		return fmt.Errorf("paddle for %s: %w", id, ErrUnknownPlayer)
	}
	p.PaddlePosition = pos
	return nil
}

// PlayerCount returns the number of players in the roster.
func (s *Session) PlayerCount() int {
	return len(s.Players)
}

// CanStart checks if the game can start
func (s *Session) CanStart() bool {
	return len(s.Players) >= MinPlayersToStart && (s.State == StateLobby || s.State == StateEnded)
}

// Playing reports whether the ball is live.
func (s *Session) Playing() bool {
	return s.Started && s.Winner == ""
}

// BeginCountdown enters the countdown phase. Every peer runs this on its own
// clock when the host announces the start.
func (s *Session) BeginCountdown(now time.Time) {
	s.State = StateCountdown
	s.Started = false
	s.Winner = ""
	s.Countdown = CountdownTime.Seconds()
	s.CountdownStartedAt = now
	for id := range s.Scores {
		s.setScore(id, 0)
	}
}

// AdvanceCountdown recomputes the remaining countdown from the elapsed time and
// reports whether it reached zero during this call, which moves the session
// into play.
func (s *Session) AdvanceCountdown(now time.Time) bool {
	if s.State != StateCountdown {
		return false
	}
	elapsed := now.Sub(s.CountdownStartedAt).Seconds()
	s.Countdown = math.Max(0, CountdownTime.Seconds()-elapsed)
	if s.Countdown > 0 {
		return false
	}
	s.State = StatePlaying
	s.Started = true
	s.Winner = ""
	return true
}

// BackToLobby returns a finished or running game to the lobby.
func (s *Session) BackToLobby() {
	s.State = StateLobby
	s.Started = false
	s.Countdown = 0
}

// ApplyScores overwrites the score table with the host's and mirrors the values
// onto the players. Entries for players this process no longer knows are dropped
// and missing ones read as zero, so the keys always match the roster.
func (s *Session) ApplyScores(scores map[string]int) {
	s.Scores = make(map[string]int, len(s.Players))
	for id, p := range s.Players {
		s.Scores[id] = scores[id]
		p.Score = scores[id]
	}
}

func (s *Session) setScore(id string, v int) {
	s.Scores[id] = v
	if p, ok := s.Players[id]; ok {
		p.Score = v
	}
}

// checkWinner ends the game if any player has reached PointsToWin. Players
// are checked in slot order so ties resolve the same way on every run.
func (s *Session) checkWinner() string {
	for _, p := range s.OrderedPlayers() {
		if s.Scores[p.ID] >= s.Settings.PointsToWin {
			s.Winner = p.ID
			s.Started = false
			s.State = StateEnded
			return p.ID
		}
	}
	return ""
}
