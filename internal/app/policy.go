package app

import (
	"fmt"
	"strings"

	"github.com/dkeye/RoomChat/internal/domain"
)

type BackpressureAction int

const (
	NoAction BackpressureAction = iota
	KickMember
	DropFrame
)

// RoomAction decides what happens to a room's history once its last member leaves.
type RoomAction int

const (
	RetainHistory RoomAction = iota
	PurgeHistory
)

const (
	EmptyRoomRetain = "retain"
	EmptyRoomPurge  = "purge"
)

type Policy interface {
	OnBackPressure(room domain.RoomID, conn domain.ConnID) BackpressureAction
	OnRoomEmpty(room domain.RoomID) RoomAction
}

type SimplePolicy struct {
	PurgeEmptyRooms bool
}

// NewSimplePolicy builds the policy from the empty_room_policy setting.
func NewSimplePolicy(emptyRoom string) (SimplePolicy, error) {
	switch strings.ToLower(strings.TrimSpace(emptyRoom)) {
	case "", EmptyRoomRetain:
		return SimplePolicy{}, nil
	case EmptyRoomPurge:
		return SimplePolicy{PurgeEmptyRooms: true}, nil
	}
	return SimplePolicy{}, fmt.Errorf("unknown empty room policy %q", emptyRoom)
}

func (SimplePolicy) OnBackPressure(domain.RoomID, domain.ConnID) BackpressureAction {
	return KickMember
}

func (p SimplePolicy) OnRoomEmpty(domain.RoomID) RoomAction {
	if p.PurgeEmptyRooms {
		return PurgeHistory
	}
	return RetainHistory
}
