package game

import (
	"time"
)

// Player is one participant's slot in the arena.
// SectionStart and SectionEnd are derived by the roster and never set by the player.
type Player struct {
	ID             string    `json:"id" msgpack:"id"`
	Number         int       `json:"number" msgpack:"number"`
	SectionStart   float64   `json:"startAngle" msgpack:"startAngle"`
	SectionEnd     float64   `json:"endAngle" msgpack:"endAngle"`
	PaddlePosition float64   `json:"paddlePosition" msgpack:"paddlePosition"` // 0..1 within the section
	Score          int       `json:"score" msgpack:"score"`
	Color          string    `json:"color" msgpack:"color"`
	JoinedAt       time.Time `json:"-" msgpack:"-"`
}

// NewPlayer creates a player in the given slot with the paddle centered
func NewPlayer(id string, number int) *Player {
	return &Player{
		ID:             id,
		Number:         number,
		PaddlePosition: 0.5,
		Color:          ColorFor(number),
		JoinedAt:       time.Now(),
	}
}

// ColorFor returns the cosmetic color for a slot number.
func ColorFor(number int) string {
	if number < 1 || number > MaxPlayers {
		return "#FFFFFF"
	}
	return PlayerColors[number-1]
}

// SectionWidth returns the angular width of the player's arc.
func (p *Player) SectionWidth() float64 {
	return p.SectionEnd - p.SectionStart
}

func (p *Player) clone() *Player {
	c := *p
	return &c
}
