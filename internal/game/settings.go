package game

import (
	"fmt"
	"math"
)

// Settings are the host-configurable game parameters.
type Settings struct {
	PointsToWin      int     `json:"pointsToWin" yaml:"pointsToWin" mapstructure:"pointstowin" msgpack:"pointsToWin"`
	BallSpeed        float64 `json:"ballSpeed" yaml:"ballSpeed" mapstructure:"ballspeed" msgpack:"ballSpeed"`
	PaddleWidth      float64 `json:"paddleWidth" yaml:"paddleWidth" mapstructure:"paddlewidth" msgpack:"paddleWidth"`
	BounceMultiplier float64 `json:"bounceMultiplier" yaml:"bounceMultiplier" mapstructure:"bouncemultiplier" msgpack:"bounceMultiplier"`
	MaxBallSpeed     float64 `json:"maxBallSpeed" yaml:"maxBallSpeed" mapstructure:"maxballspeed" msgpack:"maxBallSpeed"` // 0 disables the cap
}

// DefaultSettings returns the settings a fresh room starts with
func DefaultSettings() Settings {
	return Settings{
		PointsToWin:      DefaultPointsToWin,
		BallSpeed:        DefaultBallSpeed,
		PaddleWidth:      DefaultPaddleWidth,
		BounceMultiplier: DefaultBounceMultiplier,
		MaxBallSpeed:     DefaultMaxBallSpeed,
	}
}

// collisionBand is the radial depth in which a paddle can be hit. A ball moving
// faster than this per tick could pass through a paddle untouched.
const collisionBand = PaddleHeight + 2*BallRadius

// maxPaddleWidth keeps a paddle inside the smallest possible section.
const maxPaddleWidth = (2*math.Pi/MaxPlayers)*ArenaRadius - GapSize

// Validate checks the settings are playable
func (s Settings) Validate() error {
	if s.PointsToWin < 1 {
		return fmt.Errorf("%w: pointsToWin must be at least 1", ErrInvalidSettings)
	}
	if s.BallSpeed <= 0 {
		return fmt.Errorf("%w: ballSpeed must be positive", ErrInvalidSettings)
	}
	if s.BallSpeed >= collisionBand {
		return fmt.Errorf("%w: ballSpeed %.1f would skip the collision band", ErrInvalidSettings, s.BallSpeed)
	}
	if s.PaddleWidth <= 0 || s.PaddleWidth > maxPaddleWidth {
		return fmt.Errorf("%w: paddleWidth must be in (0, %.0f]", ErrInvalidSettings, maxPaddleWidth)
	}
	if s.BounceMultiplier < 1 {
		return fmt.Errorf("%w: bounceMultiplier must be at least 1", ErrInvalidSettings)
	}
	if s.MaxBallSpeed < 0 {
		return fmt.Errorf("%w: maxBallSpeed cannot be negative", ErrInvalidSettings)
	}
	if s.MaxBallSpeed > 0 && s.MaxBallSpeed < s.BallSpeed {
		return fmt.Errorf("%w: maxBallSpeed cannot be below ballSpeed", ErrInvalidSettings)
	}
	if s.MaxBallSpeed >= collisionBand {
		return fmt.Errorf("%w: maxBallSpeed %.1f would skip the collision band", ErrInvalidSettings, s.MaxBallSpeed)
	}
	return nil
}

// PaddleArc returns the paddle's angular width.
func (s Settings) PaddleArc() float64 {
	return s.PaddleWidth / ArenaRadius
}
