package game

import "strings"

// RoomCode derives the short shareable code for a host from its transport id:
// the last RoomCodeLength characters, uppercased.
func RoomCode(peerID string) string {
	if len(peerID) > RoomCodeLength {
		peerID = peerID[len(peerID)-RoomCodeLength:]
	}
	return strings.ToUpper(peerID)
}

// NormalizeCode cleans up a code typed by a user.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
