package core

import "github.com/dkeye/RoomChat/internal/domain"

type PresenceKind int

const (
	PresenceJoined PresenceKind = iota
	PresenceLeft
)

func (k PresenceKind) String() string {
	if k == PresenceJoined {
		return "joined"
	}
	return "left"
}

// PresenceEvent is derived from a registry transition. Events for a single
// transition must be dispatched in slice order.
type PresenceEvent struct {
	Kind     PresenceKind
	Room     domain.RoomID
	Conn     domain.ConnID
	Username string
}

// Outbound converts the event into its wire form.
func (e PresenceEvent) Outbound() domain.Presence {
	t := domain.TypeUserJoined
	if e.Kind == PresenceLeft {
		t = domain.TypeUserLeft
	}
	return domain.Presence{Type: t, Room: e.Room, Username: e.Username}
}

// PresenceOnJoin returns left(previous) followed by joined(room). A rejoin
// of the same room under the same name yields nothing; under a new name the
// room sees left(old name) then joined(new name).
//
// prevUsername is the name the connection carried before the join.
func PresenceOnJoin(conn domain.ConnID, room domain.RoomID, username, prevUsername string, res JoinResult) []PresenceEvent {
	if res.Rejoined {
		if username == prevUsername {
			return nil
		}
		return []PresenceEvent{
			{Kind: PresenceLeft, Room: room, Conn: conn, Username: prevUsername},
			{Kind: PresenceJoined, Room: room, Conn: conn, Username: username},
		}
	}
	out := make([]PresenceEvent, 0, 2)
	if res.Previous != "" {
		out = append(out, PresenceEvent{Kind: PresenceLeft, Room: res.Previous, Conn: conn, Username: prevUsername})
	}
	return append(out, PresenceEvent{Kind: PresenceJoined, Room: room, Conn: conn, Username: username})
}

// PresenceOnLeave returns the single left event of a leave or disconnect.
func PresenceOnLeave(room domain.RoomID, m domain.Member) []PresenceEvent {
	return []PresenceEvent{{Kind: PresenceLeft, Room: room, Conn: m.Conn, Username: m.Username}}
}
