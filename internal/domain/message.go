package domain

import "time"

// Message is immutable once appended. Seq defines the order inside a room,
// Timestamp is informational.
type Message struct {
	Room      RoomID
	Seq       uint64
	Username  string
	Content   string
	Timestamp time.Time
}
