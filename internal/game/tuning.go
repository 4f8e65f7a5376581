package game

import "time"

// Arena geometry, in canvas pixels.
const (
	CanvasSize   = 600.0
	CenterX      = CanvasSize / 2
	CenterY      = CanvasSize / 2
	ArenaRadius  = 280.0
	PaddleHeight = 15.0
	BallRadius   = 8.0
	GapSize      = 20.0 // arc length at each section boundary that no paddle covers
	HitClearance = 2.0  // how far inside the collision band a bounced ball is placed
)

const (
	MaxPlayers        = 6
	MinPlayersToStart = 2
	CountdownTime     = 3 * time.Second
	PaddleSpeed       = 0.05 // normalized paddle step per tick for keyboard control
	SpinFactor        = 0.5
	RoomCodeLength    = 6
	DefaultTickHz     = 60
)

// PeakFramesPerTick is the most frames a single peer sends in one tick. The
// host of a room with n players sends a ball update and its own paddle move to
// each of the n-1 observers, and forwards each observer's move to the other
// n-2.
func PeakFramesPerTick(players int) int {
	if players < 2 {
		return 0
	}
	return players * (players - 1)
}

// PeakFrameRate is the frame rate a full room's host reaches at tickHz.
func PeakFrameRate(tickHz int) float64 {
	return float64(PeakFramesPerTick(MaxPlayers) * tickHz)
}

// Default host-configurable settings.
const (
	DefaultPointsToWin      = 10
	DefaultBallSpeed        = 5.0
	DefaultPaddleWidth      = 80.0
	DefaultBounceMultiplier = 1.05
	DefaultMaxBallSpeed     = 30.0
)

// GapAngle is the angular width of the scoring gap centered on each boundary.
const GapAngle = GapSize / ArenaRadius

// PlayerColors are assigned by slot number.
var PlayerColors = [MaxPlayers]string{"#FF6B6B", "#4ECDC4", "#45B7D1", "#FFA07A", "#98D8C8", "#F7DC6F"}
