package game

import (
	"math"
	"testing"
	"time"
)

func TestNewPlayer(t *testing.T) {
	tests := []struct {
		name   string
		id     string
		number int
		color  string
	}{
		{
			name:   "first slot",
			id:     "peer-123",
			number: 1,
			color:  "#FF6B6B",
		},
		{
			name:   "last slot",
			id:     "peer-456",
			number: MaxPlayers,
			color:  "#F7DC6F",
		},
		{
			name:   "out of range slot gets the fallback color",
			id:     "peer-789",
			number: MaxPlayers + 1,
			color:  "#FFFFFF",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			beforeCreation := time.Now()
			player := NewPlayer(tt.id, tt.number)
			afterCreation := time.Now()

			if player.ID != tt.id {
				t.Errorf("ID = %v, want %v", player.ID, tt.id)
			}
			if player.Number != tt.number {
				t.Errorf("Number = %v, want %v", player.Number, tt.number)
			}
			if player.Color != tt.color {
				t.Errorf("Color = %v, want %v", player.Color, tt.color)
			}

			// Verify default values
			if player.PaddlePosition != 0.5 {
				t.Errorf("PaddlePosition = %v, want 0.5", player.PaddlePosition)
			}
			if player.Score != 0 {
				t.Errorf("Score = %v, want 0", player.Score)
			}

			// Verify JoinedAt is set to current time
			if player.JoinedAt.Before(beforeCreation) || player.JoinedAt.After(afterCreation) {
				t.Errorf("JoinedAt = %v, want between %v and %v", player.JoinedAt, beforeCreation, afterCreation)
			}
		})
	}
}

func TestColorFor_Distinct(t *testing.T) {
	seen := make(map[string]bool)
	for n := 1; n <= MaxPlayers; n++ {
		c := ColorFor(n)
		if seen[c] {
			t.Errorf("Duplicate color %v for slot %d", c, n)
		}
		seen[c] = true
	}
	if ColorFor(0) != "#FFFFFF" {
		t.Errorf("ColorFor(0) = %v, want fallback", ColorFor(0))
	}
}

func TestPlayer_SectionWidth(t *testing.T) {
	p := NewPlayer("a", 1)
	p.SectionStart = -math.Pi / 2
	p.SectionEnd = math.Pi / 2

	if got := p.SectionWidth(); math.Abs(got-math.Pi) > 1e-12 {
		t.Errorf("SectionWidth = %v, want %v", got, math.Pi)
	}
}

func TestPlayer_CloneIsIndependent(t *testing.T) {
	p := NewPlayer("a", 2)
	c := p.clone()
	c.PaddlePosition = 0.9
	c.Score = 3

	if p.PaddlePosition != 0.5 || p.Score != 0 {
		t.Errorf("clone shares state with original: %+v", p)
	}
}

// Benchmark for performance testing
func BenchmarkNewPlayer(b *testing.B) {
	for i := 0; i < b.N; i++ {
		_ = NewPlayer("player-bench", 1)
	}
}
