package protocol

import (
	"errors"

	"ringpong/internal/game"
)

// Wire discriminators.
const (
	TypeWelcome        = "welcome"
	TypeGameState      = "gameState"
	TypeSettingsUpdate = "settingsUpdate"
	TypePaddleMove     = "paddleMove"
	TypeStartCountdown = "startCountdown"
	TypeBallUpdate     = "ballUpdate"
	TypeRoomFull       = "roomFull"
)

var ErrUnknownMessage = errors.New("unknown message type")

// Message is one of the seven peer messages. The set is closed: only the types
// in this package implement it.
type Message interface {
	Type() string
	message()
}

// Welcome bootstraps a new observer with its slot and the whole session.
type Welcome struct {
	PlayerNumber int           `json:"playerNumber" msgpack:"playerNumber"`
	Session      *game.Session `json:"fullSession" msgpack:"fullSession"`
	Settings     game.Settings `json:"settings" msgpack:"settings"`
	IsHost       bool          `json:"isHost" msgpack:"isHost"`
}

// GameState carries the full session after a roster change.
type GameState struct {
	Session *game.Session `json:"fullSession" msgpack:"fullSession"`
}

// SettingsUpdate carries new host settings.
type SettingsUpdate struct {
	Settings game.Settings `json:"settings" msgpack:"settings"`
}

// PaddleMove is the sender's own new paddle position. Player is set only when
// the host forwards another peer's move.
type PaddleMove struct {
	Position float64 `json:"position" msgpack:"position"`
	Player   string  `json:"player,omitempty" msgpack:"player,omitempty"`
}

// StartCountdown tells every peer to begin the countdown on its own clock.
type StartCountdown struct{}

// BallUpdate is the host's per-tick ball, scores and winner.
type BallUpdate struct {
	Ball   game.Ball      `json:"ball" msgpack:"ball"`
	Scores map[string]int `json:"scores" msgpack:"scores"`
	Winner string         `json:"winner,omitempty" msgpack:"winner,omitempty"`
	Tick   uint64         `json:"tick" msgpack:"tick"`
}

// RoomFull rejects a joiner; the host closes the connection afterwards.
type RoomFull struct{}

func (*Welcome) Type() string        { return TypeWelcome }
func (*GameState) Type() string      { return TypeGameState }
func (*SettingsUpdate) Type() string { return TypeSettingsUpdate }
func (*PaddleMove) Type() string     { return TypePaddleMove }
func (*StartCountdown) Type() string { return TypeStartCountdown }
func (*BallUpdate) Type() string     { return TypeBallUpdate }
func (*RoomFull) Type() string       { return TypeRoomFull }

func (*Welcome) message()        {}
func (*GameState) message()      {}
func (*SettingsUpdate) message() {}
func (*PaddleMove) message()     {}
func (*StartCountdown) message() {}
func (*BallUpdate) message()     {}
func (*RoomFull) message()       {}

// New returns an empty message for a wire type.
func New(typ string) (Message, error) {
	switch typ {
	case TypeWelcome:
		return &Welcome{}, nil
	case TypeGameState:
		return &GameState{}, nil
	case TypeSettingsUpdate:
		return &SettingsUpdate{}, nil
	case TypePaddleMove:
		return &PaddleMove{}, nil
	case TypeStartCountdown:
		return &StartCountdown{}, nil
	case TypeBallUpdate:
		return &BallUpdate{}, nil
	case TypeRoomFull:
		return &RoomFull{}, nil
	}
	return nil, ErrUnknownMessage
}
