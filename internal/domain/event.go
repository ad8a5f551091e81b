package domain

import "time"

// Outbound event types.
const (
	TypeConnected   = "connected"
	TypeRoomHistory = "room_history"
	TypeNewMessage  = "new_message"
	TypeUserJoined  = "user_joined"
	TypeUserLeft    = "user_left"
	TypeError       = "error"
	TypePong        = "pong"
)

// Inbound event types.
const (
	TypeJoin        = "join"
	TypeSendMessage = "send_message"
	TypeLeave       = "leave"
	TypePing        = "ping"
)

// Outbound is anything the server pushes to a client.
type Outbound interface {
	EventType() string
}

type HistoryEntry struct {
	Seq       uint64    `json:"seq"`
	Username  string    `json:"username"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

type RoomHistory struct {
	Type     string         `json:"type"`
	Room     RoomID         `json:"room"`
	Messages []HistoryEntry `json:"messages"`
}

type NewMessage struct {
	Type      string    `json:"type"`
	Room      RoomID    `json:"room"`
	Seq       uint64    `json:"seq"`
	Username  string    `json:"username"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Presence covers both user_joined and user_left.
type Presence struct {
	Type     string `json:"type"`
	Room     RoomID `json:"room"`
	Username string `json:"username"`
}

// Notice covers connected and error frames.
type Notice struct {
	Type    string `json:"type"`
	Message string `json:"message,omitempty"`
}

func (e RoomHistory) EventType() string { return e.Type }
func (e NewMessage) EventType() string  { return e.Type }
func (e Presence) EventType() string    { return e.Type }
func (e Notice) EventType() string      { return e.Type }

func NewRoomHistory(room RoomID, msgs []Message) RoomHistory {
	entries := make([]HistoryEntry, 0, len(msgs))
	for _, m := range msgs {
		entries = append(entries, HistoryEntry{
			Seq:       m.Seq,
			Username:  m.Username,
			Content:   m.Content,
			Timestamp: m.Timestamp,
		})
	}
	return RoomHistory{Type: TypeRoomHistory, Room: room, Messages: entries}
}

func NewMessageEvent(m Message) NewMessage {
	return NewMessage{
		Type:      TypeNewMessage,
		Room:      m.Room,
		Seq:       m.Seq,
		Username:  m.Username,
		Content:   m.Content,
		Timestamp: m.Timestamp,
	}
}

func ErrorNotice(message string) Notice {
	return Notice{Type: TypeError, Message: message}
}
