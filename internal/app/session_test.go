package app

import (
	"strings"
	"testing"

	"github.com/dkeye/RoomChat/internal/core"
	"github.com/dkeye/RoomChat/internal/domain"
	"github.com/stretchr/testify/require"
)

type delivery struct {
	To    domain.ConnID
	Event domain.Outbound
}

// recordingOutbox expands broadcasts against the registry at call time,
// the same way the dispatcher does.
type recordingOutbox struct {
	reg  *core.Registry
	sent []delivery
}

func (o *recordingOutbox) SendTo(conn domain.ConnID, ev domain.Outbound) {
	o.sent = append(o.sent, delivery{To: conn, Event: ev})
}

func (o *recordingOutbox) Broadcast(room domain.RoomID, ev domain.Outbound) {
	for _, conn := range o.reg.MembersOf(room) {
		o.SendTo(conn, ev)
	}
}

func (o *recordingOutbox) to(conn domain.ConnID) []domain.Outbound {
	var out []domain.Outbound
	for _, d := range o.sent {
		if d.To == conn {
			out = append(out, d.Event)
		}
	}
	return out
}

func (o *recordingOutbox) reset() { o.sent = nil }

func newTestServices(policy Policy) (*Services, *recordingOutbox) {
	reg := core.NewRegistry()
	out := &recordingOutbox{reg: reg}
	return &Services{
		Registry:         reg,
		Store:            core.NewMessageStore(100),
		Catalog:          NewRoomCatalog(),
		Policy:           policy,
		Out:              out,
		ReplayLimit:      100,
		MaxContentLength: 64,
	}, out
}

func joined(room domain.RoomID, name string) domain.Presence {
	return domain.Presence{Type: domain.TypeUserJoined, Room: room, Username: name}
}

func left(room domain.RoomID, name string) domain.Presence {
	return domain.Presence{Type: domain.TypeUserLeft, Room: room, Username: name}
}

func TestSession_OnJoin_SendsHistoryThenJoined(t *testing.T) {
	req := require.New(t)
	svc, out := newTestServices(SimplePolicy{})
	alice := NewSession("a", svc)

	alice.OnJoin("  lobby ", "Alice")

	req.Equal(StateInRoom, alice.State())
	req.Equal(domain.RoomID("lobby"), alice.Room())
	req.Equal([]domain.Outbound{
		domain.RoomHistory{Type: domain.TypeRoomHistory, Room: "lobby", Messages: []domain.HistoryEntry{}},
		joined("lobby", "Alice"),
	}, out.to("a"))

	_, ok := svc.Catalog.Get("lobby")
	req.True(ok)
}

func TestSession_OnJoin_EmptyRoomIsDropped(t *testing.T) {
	req := require.New(t)
	svc, out := newTestServices(SimplePolicy{})
	s := NewSession("a", svc)

	s.OnJoin("   ", "Alice")

	req.Equal(StateConnected, s.State())
	req.Empty(out.sent)
	req.Empty(svc.Registry.Rooms())
}

func TestSession_OnJoin_BlankUsernameIsAnonymous(t *testing.T) {
	svc, out := newTestServices(SimplePolicy{})
	NewSession("a", svc).OnJoin("lobby", "  ")

	require.Contains(t, out.to("a"), domain.Outbound(joined("lobby", domain.DefaultUsername)))
}

func TestSession_OnJoin_MoveEmitsLeftBeforeJoined(t *testing.T) {
	req := require.New(t)
	svc, out := newTestServices(SimplePolicy{})
	alice := NewSession("a", svc)
	bob := NewSession("b", svc)
	carol := NewSession("c", svc)
	alice.OnJoin("a-room", "Alice")
	bob.OnJoin("a-room", "Bob")
	carol.OnJoin("b-room", "Carol")
	out.reset()

	bob.OnJoin("b-room", "Bob")

	req.NotContains(svc.Registry.MembersOf("a-room"), domain.ConnID("b"))

	// Find the global order of the two presence events.
	leftAt, joinedAt := -1, -1
	for i, d := range out.sent {
		switch d.Event {
		case domain.Outbound(left("a-room", "Bob")):
			if leftAt < 0 {
				leftAt = i
			}
		case domain.Outbound(joined("b-room", "Bob")):
			if joinedAt < 0 {
				joinedAt = i
			}
		}
	}
	req.GreaterOrEqual(leftAt, 0)
	req.Greater(joinedAt, leftAt)

	req.Equal([]domain.Outbound{left("a-room", "Bob")}, out.to("a"))
	req.Equal([]domain.Outbound{joined("b-room", "Bob")}, out.to("c"))
	bobGot := out.to("b")
	req.Len(bobGot, 2)
	req.Equal(domain.TypeRoomHistory, bobGot[0].EventType())
	req.Equal(joined("b-room", "Bob"), bobGot[1])
}

func TestSession_OnJoin_RejoinReplaysHistoryOnly(t *testing.T) {
	req := require.New(t)
	svc, out := newTestServices(SimplePolicy{})
	alice := NewSession("a", svc)
	alice.OnJoin("lobby", "Alice")
	alice.OnSendMessage("lobby", "Alice", "hello")
	out.reset()

	alice.OnJoin("lobby", "Alice")

	got := out.to("a")
	req.Len(got, 1)
	hist, ok := got[0].(domain.RoomHistory)
	req.True(ok)
	req.Len(hist.Messages, 1)
	req.Equal("hello", hist.Messages[0].Content)
	req.Equal(1, svc.Registry.MemberCount("lobby"))
}

func TestSession_OnJoin_RejoinUnderNewNameIsAnnounced(t *testing.T) {
	req := require.New(t)
	svc, out := newTestServices(SimplePolicy{})
	alice := NewSession("a", svc)
	bob := NewSession("b", svc)
	alice.OnJoin("lobby", "Alice")
	bob.OnJoin("lobby", "Bob")
	out.reset()

	alice.OnJoin("lobby", "Mallory")

	req.Equal([]domain.Outbound{left("lobby", "Alice"), joined("lobby", "Mallory")}, out.to("b"))
	aliceGot := out.to("a")
	req.Len(aliceGot, 3)
	req.Equal(domain.TypeRoomHistory, aliceGot[0].EventType())
	req.Equal([]domain.Outbound{left("lobby", "Alice"), joined("lobby", "Mallory")}, aliceGot[1:])
	req.Equal(2, svc.Registry.MemberCount("lobby"))

	out.reset()
	alice.OnSendMessage("lobby", "", "hi")
	msg, ok := out.to("b")[0].(domain.NewMessage)
	req.True(ok)
	req.Equal("Mallory", msg.Username)
}

func TestSession_OnSendMessage_BroadcastsToMembers(t *testing.T) {
	req := require.New(t)
	svc, out := newTestServices(SimplePolicy{})
	alice := NewSession("a", svc)
	bob := NewSession("b", svc)
	alice.OnJoin("lobby", "Alice")
	bob.OnJoin("lobby", "Bob")
	out.reset()

	alice.OnSendMessage("lobby", "Alice", "hi")

	for _, conn := range []domain.ConnID{"a", "b"} {
		got := out.to(conn)
		req.Len(got, 1)
		msg, ok := got[0].(domain.NewMessage)
		req.True(ok)
		req.Equal(uint64(1), msg.Seq)
		req.Equal("Alice", msg.Username)
		req.Equal("hi", msg.Content)
		req.Equal(domain.RoomID("lobby"), msg.Room)
	}
}

func TestSession_OnSendMessage_AuthorIsRegisteredName(t *testing.T) {
	svc, out := newTestServices(SimplePolicy{})
	alice := NewSession("a", svc)
	alice.OnJoin("lobby", "Alice")
	out.reset()

	alice.OnSendMessage("lobby", "Mallory", "hi")

	require.Equal(t, "Alice", out.sent[0].Event.(domain.NewMessage).Username)
}

func TestSession_OnSendMessage_Drops(t *testing.T) {
	tests := []struct {
		name    string
		join    string
		room    string
		content string
	}{
		{name: "foreign room", join: "a", room: "b", content: "hi"},
		{name: "empty content", join: "a", room: "a", content: "   "},
		{name: "too long", join: "a", room: "a", content: strings.Repeat("x", 65)},
		{name: "not joined", join: "", room: "a", content: "hi"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := require.New(t)
			svc, out := newTestServices(SimplePolicy{})
			s := NewSession("c", svc)
			if tt.join != "" {
				s.OnJoin(tt.join, "Alice")
			}
			out.reset()

			s.OnSendMessage(tt.room, "Alice", tt.content)

			req.Empty(out.sent)
			req.Zero(svc.Store.Len("a"))
			req.Zero(svc.Store.Len("b"))
		})
	}
}

func TestSession_OnDisconnect_IsIdempotent(t *testing.T) {
	req := require.New(t)
	svc, out := newTestServices(SimplePolicy{})
	alice := NewSession("a", svc)
	bob := NewSession("b", svc)
	alice.OnJoin("lobby", "Alice")
	bob.OnJoin("lobby", "Bob")
	out.reset()

	bob.OnDisconnect()
	bob.OnDisconnect()

	req.Equal(StateDisconnected, bob.State())
	req.Equal([]domain.Outbound{left("lobby", "Bob")}, out.to("a"))
	req.Len(out.sent, 1)
	req.Equal([]domain.ConnID{"a"}, svc.Registry.MembersOf("lobby"))

	bob.OnJoin("lobby", "Bob")
	req.Len(out.sent, 1)
}

func TestSession_OnLeave_ReturnsToConnected(t *testing.T) {
	req := require.New(t)
	svc, out := newTestServices(SimplePolicy{})
	alice := NewSession("a", svc)
	bob := NewSession("b", svc)
	alice.OnJoin("lobby", "Alice")
	bob.OnJoin("lobby", "Bob")
	out.reset()

	bob.OnLeave()

	req.Equal(StateConnected, bob.State())
	req.Empty(bob.Room())
	req.Equal([]domain.Outbound{left("lobby", "Bob")}, out.to("a"))

	bob.OnSendMessage("lobby", "Bob", "still here?")
	req.Len(out.sent, 1)
}

func TestSession_EmptyRoomPolicy(t *testing.T) {
	t.Run("retain", func(t *testing.T) {
		svc, _ := newTestServices(SimplePolicy{})
		s := NewSession("a", svc)
		s.OnJoin("lobby", "Alice")
		s.OnSendMessage("lobby", "", "kept")
		s.OnDisconnect()

		require.Equal(t, 1, svc.Store.Len("lobby"))
	})

	t.Run("purge", func(t *testing.T) {
		svc, _ := newTestServices(SimplePolicy{PurgeEmptyRooms: true})
		s := NewSession("a", svc)
		s.OnJoin("lobby", "Alice")
		s.OnSendMessage("lobby", "", "gone")
		s.OnJoin("elsewhere", "Alice")

		require.Zero(t, svc.Store.Len("lobby"))
	})
}
