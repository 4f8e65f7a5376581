package game

import (
	"math"
	"math/rand"
	"time"
)

// Rand is the random source used for launch directions.
type Rand interface {
	Float64() float64
}

type globalRand struct{}

func (globalRand) Float64() float64 { return rand.Float64() }

// Simulator advances the authoritative ball. Only the host runs it; launch
// directions and trig results are host-local, so its output is the single
// source of truth for ball and scores.
type Simulator struct {
	rng Rand
}

// NewSimulator creates a simulator. A nil rng uses the process-wide source.
func NewSimulator(rng Rand) *Simulator {
	if rng == nil {
		rng = globalRand{}
	}
	return &Simulator{rng: rng}
}

// TickResult describes what happened during one simulation step.
type TickResult struct {
	Launched bool   // countdown finished and the ball was put in play
	Hit      string // player whose paddle bounced the ball
	Exited   bool   // ball left the arena and was reset
	Conceded string // owner of the section the ball left through
	Scorer   string // player awarded a point, if any
	Winner   string // set on the tick the game was won
}

// StartCountdown moves a lobby with enough players into the countdown.
func (sim *Simulator) StartCountdown(s *Session, now time.Time) error {
	if len(s.Players) < MinPlayersToStart {
		return ErrNotEnoughPlayers
	}
	if !s.CanStart() {
		return ErrGameAlreadyStarted
	}
	s.BeginCountdown(now)
	s.Ball = NewBall()
	return nil
}

// LaunchBall places the ball at the center moving in a random direction at the
// configured base speed.
func (sim *Simulator) LaunchBall(s *Session) {
	theta := sim.rng.Float64() * 2 * math.Pi
	s.Ball = Ball{
		X:      CenterX,
		Y:      CenterY,
		VX:     math.Cos(theta) * s.Settings.BallSpeed,
		VY:     math.Sin(theta) * s.Settings.BallSpeed,
		Radius: BallRadius,
	}
}

// Tick runs one host simulation step: countdown, ball integration, collisions,
// scoring and the win check.
func (sim *Simulator) Tick(s *Session, now time.Time) TickResult {
	var res TickResult
	if s.AdvanceCountdown(now) {
		sim.LaunchBall(s)
		res.Launched = true
	}
	if !s.Playing() {
		return res
	}

	s.Tick++
	sim.step(s, &res)
	res.Winner = s.checkWinner()
	return res
}

func (sim *Simulator) step(s *Session, res *TickResult) {
	b := &s.Ball
	b.X += b.VX
	b.Y += b.VY

	dist := b.DistanceFromCenter()
	if dist >= ArenaRadius-PaddleHeight-b.Radius && dist <= ArenaRadius+b.Radius {
		if p, offset := paddleHit(s, b.Angle()); p != nil {
			sim.bounce(s, p, offset)
			res.Hit = p.ID
			return
		}
	}
	// A fast ball can step from inside the band to beyond it, so exits are
	// checked against the boundary alone.
	if dist > ArenaRadius {
		sim.exit(s, res)
	}
}

// paddleHit returns the player whose paddle covers angle, with the signed
// offset from the paddle's center. Gaps are never covered, even when a paddle
// at the end of its travel visually reaches into one.
func paddleHit(s *Session, angle float64) (*Player, float64) {
	p := s.SectionAt(angle)
	if p == nil {
		return nil, 0
	}
	intoSection := NormalizeAngle(angle - p.SectionStart)
	if intoSection < GapAngle/2 || intoSection > p.SectionWidth()-GapAngle/2 {
		return nil, 0
	}
	offset := AngleDiff(angle, PaddleAngle(p))
	if math.Abs(offset) >= s.Settings.PaddleArc()/2 {
		return nil, 0
	}
	return p, offset
}

func (sim *Simulator) bounce(s *Session, p *Player, offset float64) {
	b := &s.Ball
	normal := b.Angle()
	incoming := math.Atan2(b.VY, b.VX)
	spin := offset / (s.Settings.PaddleArc() / 2) * SpinFactor
	angle := 2*normal - incoming + math.Pi + spin

	speed := b.Speed() * s.Settings.BounceMultiplier
	if s.Settings.MaxBallSpeed > 0 && speed > s.Settings.MaxBallSpeed {
		speed = s.Settings.MaxBallSpeed
	}
	b.VX = math.Cos(angle) * speed
	b.VY = math.Sin(angle) * speed

	d := ArenaRadius - PaddleHeight - b.Radius - HitClearance
	b.X = CenterX + math.Cos(normal)*d
	b.Y = CenterY + math.Sin(normal)*d
	b.LastHitBy = p.ID
}

func (sim *Simulator) exit(s *Session, res *TickResult) {
	res.Exited = true
	if conceded := s.SectionAt(s.Ball.Angle()); conceded != nil {
		res.Conceded = conceded.ID
		scorer := s.Ball.LastHitBy
		if _, ok := s.Players[scorer]; ok && scorer != conceded.ID {
			s.setScore(scorer, s.Scores[scorer]+1)
			res.Scorer = scorer
		}
	}
	sim.LaunchBall(s)
}
