package game

import (
	"math"
	"sort"
)

// AddPlayer assigns the lowest free slot to id and repartitions the arena.
// Adding a player that is already present returns its existing slot.
func (s *Session) AddPlayer(id string) (int, error) {
	if p, ok := s.Players[id]; ok {
		return p.Number, nil
	}
	used := make(map[int]bool, len(s.Players))
	for _, p := range s.Players {
		used[p.Number] = true
	}
	for n := 1; n <= MaxPlayers; n++ {
		if !used[n] {
			s.insertPlayer(NewPlayer(id, n))
			return n, nil
		}
	}
	return 0, ErrRoomFull
}

// AddPlayerWithNumber places id in a slot chosen elsewhere, as an observer does
// with the slot from its welcome message.
func (s *Session) AddPlayerWithNumber(id string, number int) *Player {
	if p, ok := s.Players[id]; ok {
		return p
	}
	p := NewPlayer(id, number)
	s.insertPlayer(p)
	return p
}

func (s *Session) insertPlayer(p *Player) {
	s.Players[p.ID] = p
	s.setScore(p.ID, 0)
	s.RecomputePartition()
	s.RosterVersion++
}

// RemovePlayer deletes the player and its score and repartitions the arena.
func (s *Session) RemovePlayer(id string) bool {
	if _, ok := s.Players[id]; !ok {
		return false
	}
	delete(s.Players, id)
	delete(s.Scores, id)
	if s.Ball.LastHitBy == id {
		s.Ball.LastHitBy = ""
	}
	s.RecomputePartition()
	s.RosterVersion++
	return true
}

// OrderedPlayers returns the roster sorted by slot number, the order every peer
// uses to lay out sections.
func (s *Session) OrderedPlayers() []*Player {
	players := make([]*Player, 0, len(s.Players))
	for _, p := range s.Players {
		players = append(players, p)
	}
	sort.Slice(players, func(i, j int) bool {
		return players[i].Number < players[j].Number
	})
	return players
}

// RecomputePartition divides the circle into equal contiguous arcs, one per
// player in slot order, starting at the top of the arena.
func (s *Session) RecomputePartition() {
	players := s.OrderedPlayers()
	if len(players) == 0 {
		return
	}
	section := 2 * math.Pi / float64(len(players))
	for i, p := range players {
		p.SectionStart = float64(i)*section - math.Pi/2
		p.SectionEnd = float64(i+1)*section - math.Pi/2
	}
}

// PaddleAngle maps the player's normalized paddle position to an absolute angle,
// inset by half a gap from both section boundaries.
func PaddleAngle(p *Player) float64 {
	usable := p.SectionWidth() - GapAngle
	return p.SectionStart + GapAngle/2 + usable*p.PaddlePosition
}

// SectionAt returns the player whose section contains angle, or nil for an
// empty roster.
func (s *Session) SectionAt(angle float64) *Player {
	players := s.OrderedPlayers()
	if len(players) == 1 {
		return players[0]
	}
	a := NormalizeAngle(angle)
	for _, p := range players {
		if NormalizeAngle(a-p.SectionStart) < p.SectionWidth() {
			return p
		}
	}
	if len(players) == 0 {
		return nil
	}
	// Rounding at the wrap-around boundary.
	return players[len(players)-1]
}

// NormalizeAngle maps an angle into [0, 2π).
func NormalizeAngle(a float64) float64 {
	a = math.Mod(a, 2*math.Pi)
	if a < 0 {
		a += 2 * math.Pi
	}
	if a >= 2*math.Pi {
		return 0
	}
	return a
}

// AngleDiff returns the signed shortest rotation from b to a, in (-π, π].
func AngleDiff(a, b float64) float64 {
	d := NormalizeAngle(a - b)
	if d > math.Pi {
		d -= 2 * math.Pi
	}
	return d
}
