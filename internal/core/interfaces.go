package core

import "github.com/dkeye/RoomChat/internal/domain"

// Frame is an encoded outbound payload.
type Frame []byte

// SignalConnection is the outbound side of one client transport. The
// adapter owns it and must Close it.
type SignalConnection interface {
	TrySend(Frame) error
	Close()
}

// RoomInfo is a read-only view of a live room for APIs.
type RoomInfo struct {
	ID          domain.RoomID `json:"id"`
	MemberCount int           `json:"members"`
}
