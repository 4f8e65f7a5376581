package game

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedRand float64

func (f fixedRand) Float64() float64 { return float64(f) }

var t0 = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

// playingSession returns a two player session already in play with the ball
// at rest in the center.
func playingSession(t *testing.T) (*Session, *Simulator) {
	t.Helper()
	s := rosterOf(t, 2)
	sim := NewSimulator(fixedRand(0))
	require.NoError(t, sim.StartCountdown(s, t0))
	sim.Tick(s, t0.Add(CountdownTime))
	require.True(t, s.Playing())
	return s, sim
}

func placeBall(s *Session, angle, dist, vx, vy float64) {
	s.Ball.X = CenterX + math.Cos(angle)*dist
	s.Ball.Y = CenterY + math.Sin(angle)*dist
	s.Ball.VX = vx
	s.Ball.VY = vy
}

func TestStartCountdown(t *testing.T) {
	sim := NewSimulator(fixedRand(0))

	s := rosterOf(t, 1)
	assert.ErrorIs(t, sim.StartCountdown(s, t0), ErrNotEnoughPlayers)
	assert.Equal(t, StateLobby, s.State)

	_, err := s.AddPlayer("p2")
	require.NoError(t, err)
	s.Scores["p1"] = 4
	require.NoError(t, sim.StartCountdown(s, t0))
	assert.Equal(t, StateCountdown, s.State)
	assert.Equal(t, CountdownTime.Seconds(), s.Countdown)
	assert.Equal(t, 0, s.Scores["p1"], "scores reset on every start")

	assert.ErrorIs(t, sim.StartCountdown(s, t0), ErrGameAlreadyStarted)
}

func TestCountdownLaunchesBall(t *testing.T) {
	s := rosterOf(t, 2)
	sim := NewSimulator(fixedRand(0.25))
	require.NoError(t, sim.StartCountdown(s, t0))

	res := sim.Tick(s, t0.Add(time.Second))
	assert.False(t, res.Launched)
	assert.False(t, s.Started)
	assert.InDelta(t, 2.0, s.Countdown, 1e-9)
	assert.Zero(t, s.Ball.Speed())

	res = sim.Tick(s, t0.Add(CountdownTime+time.Millisecond))
	assert.True(t, res.Launched)
	assert.True(t, s.Started)
	assert.Equal(t, StatePlaying, s.State)
	assert.Zero(t, s.Countdown)
	assert.InDelta(t, s.Settings.BallSpeed, s.Ball.Speed(), 1e-9)
	// θ = 0.25·2π points straight down the canvas.
	assert.InDelta(t, 0, s.Ball.VX, 1e-9)
	assert.InDelta(t, s.Settings.BallSpeed, s.Ball.VY, 1e-9)
	assert.Empty(t, s.Ball.LastHitBy)
}

func TestPaddleBounce(t *testing.T) {
	s, sim := playingSession(t)
	// p1 owns the right half; its centered paddle sits at angle 0.
	placeBall(s, 0, 260, 5, 0)
	before := s.Ball.Speed()

	res := sim.Tick(s, t0.Add(5*time.Second))

	assert.Equal(t, "p1", res.Hit)
	assert.False(t, res.Exited)
	assert.Equal(t, "p1", s.Ball.LastHitBy)
	assert.InDelta(t, before*s.Settings.BounceMultiplier, s.Ball.Speed(), 1e-9)
	assert.Less(t, s.Ball.VX, 0.0, "ball heads back toward the center")
	assert.InDelta(t, 0, s.Ball.VY, 1e-9, "a centered hit adds no spin")
	assert.InDelta(t, ArenaRadius-PaddleHeight-BallRadius-HitClearance, s.Ball.DistanceFromCenter(), 1e-9)
}

func TestPaddleBounce_SpinFromOffCenterHit(t *testing.T) {
	s, sim := playingSession(t)
	halfArc := s.Settings.PaddleArc() / 2
	angle := halfArc / 2
	// Radial approach so the reflection alone would send it straight back.
	placeBall(s, angle, 260, 5*math.Cos(angle), 5*math.Sin(angle))

	res := sim.Tick(s, t0.Add(5*time.Second))
	require.Equal(t, "p1", res.Hit)

	outgoing := math.Atan2(s.Ball.VY, s.Ball.VX)
	expected := angle + math.Pi + 0.5*SpinFactor
	assert.InDelta(t, 0, AngleDiff(outgoing, expected), 1e-9)
}

func TestPaddleBounce_SpeedCap(t *testing.T) {
	s, sim := playingSession(t)
	s.Settings.MaxBallSpeed = 5.1
	placeBall(s, 0, 260, 5, 0)

	sim.Tick(s, t0.Add(5*time.Second))
	assert.InDelta(t, 5.1, s.Ball.Speed(), 1e-9)

	s.Settings.MaxBallSpeed = 0
	placeBall(s, 0, 260, 20, 0)
	sim.Tick(s, t0.Add(5*time.Second))
	assert.InDelta(t, 21, s.Ball.Speed(), 1e-9, "zero disables the cap")
}

func TestScoring(t *testing.T) {
	tests := []struct {
		name      string
		lastHitBy string
		wantP1    int
		wantP2    int
	}{
		{name: "opponent last hit scores", lastHitBy: "p2", wantP2: 1},
		{name: "own goal scores nothing", lastHitBy: "p1"},
		{name: "untouched ball scores nothing", lastHitBy: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, sim := playingSession(t)
			s.Players["p1"].PaddlePosition = 0 // out of the way of angle 0
			placeBall(s, 0, 279, 12, 0)
			s.Ball.LastHitBy = tt.lastHitBy

			res := sim.Tick(s, t0.Add(5*time.Second))

			assert.True(t, res.Exited)
			assert.Equal(t, "p1", res.Conceded)
			assert.Equal(t, tt.lastHitBy != "" && tt.lastHitBy != "p1", res.Scorer != "")
			assert.Equal(t, tt.wantP1, s.Scores["p1"])
			assert.Equal(t, tt.wantP2, s.Scores["p2"])
			assert.Equal(t, s.Scores["p2"], s.Players["p2"].Score)

			assert.Equal(t, CenterX, s.Ball.X)
			assert.Equal(t, CenterY, s.Ball.Y)
			assert.InDelta(t, s.Settings.BallSpeed, s.Ball.Speed(), 1e-9, "reset uses the base speed")
			assert.Empty(t, s.Ball.LastHitBy)
		})
	}
}

func TestGapIsNeverCovered(t *testing.T) {
	s, sim := playingSession(t)
	p1 := s.Players["p1"]
	p1.PaddlePosition = 0 // paddle arc reaches back over the gap
	angle := p1.SectionStart + GapAngle/4
	require.Less(t, math.Abs(AngleDiff(angle, PaddleAngle(p1))), s.Settings.PaddleArc()/2)

	placeBall(s, angle, 280, math.Cos(angle)*4, math.Sin(angle)*4)
	s.Ball.LastHitBy = "p2"

	res := sim.Tick(s, t0.Add(5*time.Second))
	assert.Empty(t, res.Hit)
	assert.True(t, res.Exited)
	assert.Equal(t, "p1", res.Conceded)
	assert.Equal(t, 1, s.Scores["p2"])
}

func TestFastBallBeyondBandStillExits(t *testing.T) {
	s, sim := playingSession(t)
	s.Players["p1"].PaddlePosition = 0
	placeBall(s, 0, 270, 25, 0) // lands at 295, past the collision band

	res := sim.Tick(s, t0.Add(5*time.Second))
	assert.True(t, res.Exited)
}

func TestWinCondition(t *testing.T) {
	s, sim := playingSession(t)
	s.Settings.PointsToWin = 2
	s.Players["p1"].PaddlePosition = 0
	s.Scores["p2"] = 1

	placeBall(s, 0, 279, 12, 0)
	s.Ball.LastHitBy = "p2"
	res := sim.Tick(s, t0.Add(5*time.Second))

	assert.Equal(t, "p2", res.Winner)
	assert.Equal(t, "p2", s.Winner)
	assert.False(t, s.Started)
	assert.Equal(t, StateEnded, s.State)

	ball := s.Ball
	tick := s.Tick
	res = sim.Tick(s, t0.Add(6*time.Second))
	assert.Equal(t, TickResult{}, res)
	assert.Equal(t, ball, s.Ball, "a finished game no longer moves the ball")
	assert.Equal(t, tick, s.Tick)
}

func TestNoWinnerBelowTarget(t *testing.T) {
	s, sim := playingSession(t)
	s.Settings.PointsToWin = 3
	s.Scores["p2"] = 2
	s.Players["p2"].Score = 2

	sim.Tick(s, t0.Add(5*time.Second))
	assert.Empty(t, s.Winner)
	assert.True(t, s.Started)
}

// Host plus two joiners, a full countdown, then an unguarded ball runs out.
func TestThreePlayerScenario(t *testing.T) {
	s := NewSession(DefaultSettings())
	for _, id := range []string{"H", "B", "C"} {
		_, err := s.AddPlayer(id)
		require.NoError(t, err)
	}
	assert.Equal(t, 1, s.Players["H"].Number)
	assert.Equal(t, 2, s.Players["B"].Number)
	assert.Equal(t, 3, s.Players["C"].Number)
	for _, p := range s.Players {
		assert.InDelta(t, 2*math.Pi/3, p.SectionWidth(), angleTolerance)
	}

	// 0.1 turns = 36°, inside B's section but well clear of B's centered paddle.
	sim := NewSimulator(fixedRand(0.1))
	require.NoError(t, sim.StartCountdown(s, t0))
	sim.Tick(s, t0.Add(2*time.Second))
	require.False(t, s.Started)
	sim.Tick(s, t0.Add(3*time.Second))
	require.True(t, s.Started)
	assert.InDelta(t, s.Settings.BallSpeed, s.Ball.Speed(), 1e-9)

	s.Ball.LastHitBy = "H"
	now := t0.Add(3 * time.Second)
	var exit TickResult
	for i := 0; i < 1000; i++ {
		now = now.Add(time.Second / 60)
		res := sim.Tick(s, now)
		require.Empty(t, res.Hit)
		if res.Exited {
			exit = res
			break
		}
	}

	require.True(t, exit.Exited, "ball should leave the arena")
	assert.Equal(t, "B", exit.Conceded)
	assert.Equal(t, "H", exit.Scorer)
	assert.Equal(t, map[string]int{"H": 1, "B": 0, "C": 0}, s.Scores)
	assert.Equal(t, CenterX, s.Ball.X)
	assert.InDelta(t, s.Settings.BallSpeed, s.Ball.Speed(), 1e-9)
}
