package game

import "errors"

var (
	ErrRoomFull           = errors.New("room is full")
	ErrGameAlreadyStarted = errors.New("game has already started")
	ErrNotEnoughPlayers   = errors.New("not enough players to start")
	ErrInvalidSettings    = errors.New("invalid game settings")
	ErrUnknownPlayer      = errors.New("no such player in the session")
)
