package game

import "math"

// Control derives a target paddle position for the local player each tick.
// ok is false when the control has no opinion this tick.
type Control interface {
	Target(s *Session, p *Player) (position float64, ok bool)
}

// Keyboard steps the paddle by PaddleSpeed while a direction is held.
type Keyboard struct {
	Left  bool
	Right bool
}

func (k *Keyboard) Target(_ *Session, p *Player) (float64, bool) {
	pos := p.PaddlePosition
	moved := false
	if k.Left {
		pos = math.Max(0, pos-PaddleSpeed)
		moved = true
	}
	if k.Right {
		pos = math.Min(1, pos+PaddleSpeed)
		moved = true
	}
	return pos, moved
}

// Pointer follows a pointer given in canvas coordinates, so the paddle center
// sits under it. Positions outside the player's own section are ignored, and
// positions inside a boundary gap pin the paddle to that end.
type Pointer struct {
	X, Y   float64
	Active bool
}

func (m *Pointer) Target(_ *Session, p *Player) (float64, bool) {
	if !m.Active {
		return 0, false
	}
	angle := math.Atan2(m.Y-CenterY, m.X-CenterX)
	return positionForAngle(p, angle)
}

func positionForAngle(p *Player, angle float64) (float64, bool) {
	width := p.SectionWidth()
	into := NormalizeAngle(angle - p.SectionStart)
	if width < 2*math.Pi && into > width {
		return 0, false
	}
	usable := width - GapAngle
	if usable <= 0 {
		return 0, false
	}
	pos := (into - GapAngle/2) / usable
	return math.Max(0, math.Min(1, pos)), true
}

// Autopilot keeps the paddle under the ball's angular position, clamped into
// the section. It is what headless peers play with.
type Autopilot struct {
	// MaxStep limits how far the paddle moves per tick; 0 means PaddleSpeed.
	MaxStep float64
}

func (a *Autopilot) Target(s *Session, p *Player) (float64, bool) {
	if s == nil || !s.Started {
		return 0, false
	}
	usable := p.SectionWidth() - GapAngle
	if usable <= 0 {
		return 0, false
	}
	into := AngleDiff(s.Ball.Angle(), p.SectionStart+GapAngle/2)
	want := math.Min(1, math.Max(0, into/usable))

	step := a.MaxStep
	if step <= 0 {
		step = PaddleSpeed
	}
	delta := math.Max(-step, math.Min(step, want-p.PaddlePosition))
	return p.PaddlePosition + delta, delta != 0
}

// Script replays a fixed sequence of positions, one per tick, then stops.
type Script struct {
	Positions []float64
	next      int
}

func (sc *Script) Target(_ *Session, _ *Player) (float64, bool) {
	if sc.next >= len(sc.Positions) {
		return 0, false
	}
	pos := sc.Positions[sc.next]
	sc.next++
	return pos, true
}
