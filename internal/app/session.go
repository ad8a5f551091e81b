package app

import (
	"strings"
	"time"

	"github.com/dkeye/RoomChat/internal/core"
	"github.com/dkeye/RoomChat/internal/domain"
	"github.com/rs/zerolog/log"
)

const DefaultReplayLimit = 100

// Outbox pushes outbound events to connections. Broadcast must resolve the
// room's members at call time.
type Outbox interface {
	SendTo(conn domain.ConnID, ev domain.Outbound)
	Broadcast(room domain.RoomID, ev domain.Outbound)
}

// Services is what every session shares.
type Services struct {
	Registry *core.Registry
	Store    *core.MessageStore
	Catalog  *RoomCatalog
	Policy   Policy
	Out      Outbox

	ReplayLimit      int
	MaxContentLength int
}

type State int

const (
	StateDisconnected State = iota
	StateConnected
	StateInRoom
)

func (s State) String() string {
	switch s {
	case StateConnected:
		return "connected"
	case StateInRoom:
		return "in_room"
	}
	return "disconnected"
}

// Session is the protocol state machine of one connection. It is not safe
// for concurrent use; the dispatcher drives it from a single goroutine.
type Session struct {
	id    domain.ConnID
	state State
	room  domain.RoomID
	svc   *Services
}

func NewSession(id domain.ConnID, svc *Services) *Session {
	return &Session{id: id, state: StateConnected, svc: svc}
}

func (s *Session) ID() domain.ConnID   { return s.id }
func (s *Session) State() State        { return s.state }
func (s *Session) Room() domain.RoomID { return s.room }

func (s *Session) drop(reason string) {
	log.Debug().Str("module", "app.session").Str("conn", string(s.id)).Str("state", s.state.String()).Str("reason", reason).Msg("event dropped")
}

// OnJoin moves the session into room, replays its history privately and
// announces the transition.
func (s *Session) OnJoin(rawRoom, username string) {
	if s.state == StateDisconnected {
		s.drop("join after disconnect")
		return
	}
	room, ok := domain.ParseRoomID(rawRoom)
	if !ok {
		s.drop("invalid room")
		return
	}

	reg := s.svc.Registry
	prevName, _ := reg.UsernameOf(s.id)
	name := domain.NormalizeUsername(username)

	res := reg.Join(s.id, room, name)
	s.room = room
	s.state = StateInRoom
	s.svc.Catalog.Ensure(room)

	limit := s.svc.ReplayLimit
	if limit <= 0 {
		limit = DefaultReplayLimit
	}
	s.svc.Out.SendTo(s.id, domain.NewRoomHistory(room, s.svc.Store.History(room, limit)))

	for _, ev := range core.PresenceOnJoin(s.id, room, name, prevName, res) {
		s.svc.Out.Broadcast(ev.Room, ev.Outbound())
	}
	if res.Previous != "" {
		s.retireIfEmpty(res.Previous)
	}

	log.Info().Str("module", "app.session").Str("conn", string(s.id)).Str("room", string(room)).Str("from_room", string(res.Previous)).Str("username", name).Msg("join")
}

// OnSendMessage appends content to the session's current room and
// broadcasts it. The author is the username registered on join; the
// client-supplied one is not trusted.
func (s *Session) OnSendMessage(rawRoom, username, content string) {
	if s.state != StateInRoom {
		s.drop("send outside room")
		return
	}
	room, ok := domain.ParseRoomID(rawRoom)
	if !ok || room != s.room {
		s.drop("send to foreign room")
		return
	}
	if strings.TrimSpace(content) == "" {
		s.drop("empty content")
		return
	}
	if limit := s.svc.MaxContentLength; limit > 0 && len(content) > limit {
		s.drop("content too long")
		return
	}

	author, ok := s.svc.Registry.UsernameOf(s.id)
	if !ok {
		s.drop("not a member")
		return
	}
	if username != "" && domain.NormalizeUsername(username) != author {
		log.Debug().Str("module", "app.session").Str("conn", string(s.id)).Str("claimed", username).Str("author", author).Msg("username mismatch")
	}

	msg := domain.Message{
		Room:      room,
		Username:  author,
		Content:   content,
		Timestamp: time.Now().UTC(),
	}
	msg.Seq = s.svc.Store.Append(room, msg)
	s.svc.Catalog.Ensure(room)
	s.svc.Out.Broadcast(room, domain.NewMessageEvent(msg))
}

// OnLeave leaves the current room but keeps the connection.
func (s *Session) OnLeave() {
	if s.state != StateInRoom {
		s.drop("leave outside room")
		return
	}
	s.leave()
	s.state = StateConnected
}

// OnDisconnect releases membership. Calling it again is a no-op.
func (s *Session) OnDisconnect() {
	if s.state == StateDisconnected {
		return
	}
	s.leave()
	s.state = StateDisconnected
	log.Info().Str("module", "app.session").Str("conn", string(s.id)).Msg("disconnect")
}

func (s *Session) leave() {
	s.room = ""
	room, member, ok := s.svc.Registry.Leave(s.id)
	if !ok {
		return
	}
	for _, ev := range core.PresenceOnLeave(room, member) {
		s.svc.Out.Broadcast(ev.Room, ev.Outbound())
	}
	s.retireIfEmpty(room)
}

func (s *Session) retireIfEmpty(room domain.RoomID) {
	if s.svc.Registry.MemberCount(room) > 0 {
		return
	}
	if s.svc.Policy != nil && s.svc.Policy.OnRoomEmpty(room) == PurgeHistory {
		s.svc.Store.Drop(room)
		log.Info().Str("module", "app.session").Str("room", string(room)).Msg("purged empty room history")
	}
}
