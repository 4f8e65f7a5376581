package syncer

import "errors"

var (
	ErrNotHost        = errors.New("only the host can do that")
	ErrConnectionLost = errors.New("connection lost")
	ErrHostLost       = errors.New("host left the room")
	ErrLeft           = errors.New("left the room")
)

// Status lines shown to the local player.
const (
	StatusRoomCreated    = "Room created! Share the code with friends."
	StatusConnecting     = "Connecting to room..."
	StatusConnected      = "Connected to room! Waiting for host..."
	StatusJoined         = "Joined room successfully!"
	StatusConnectFailed  = "Failed to connect - check the code and try again"
	StatusNeedPlayers    = "Need at least 2 players to start"
	StatusRoomFull       = "Room is full"
	StatusHostLost       = "Host left the room - the game cannot continue"
	StatusLeft           = "Left room"
	StatusConnectionLost = "Connection lost"
)
