package domain

import (
	"strings"
	"time"
)

type RoomID string

// Room is a catalog entry. Membership and history live in core.
type Room struct {
	ID        RoomID    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// ParseRoomID trims raw and reports false when the result is empty or too long.
func ParseRoomID(raw string) (RoomID, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" || len(raw) > MaxRoomIDLen {
		return "", false
	}
	return RoomID(raw), true
}
