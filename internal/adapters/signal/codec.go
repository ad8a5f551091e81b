package signal

import (
	"encoding/json"
	"errors"

	"github.com/dkeye/RoomChat/internal/app/orch"
	"github.com/dkeye/RoomChat/internal/domain"
)

var (
	ErrBadPayload  = errors.New("bad_payload")
	ErrUnknownType = errors.New("unknown_type")
	ErrRateLimited = errors.New("rate_limited")
)

// inboundFrame is the union of every client payload; the type field picks
// which fields matter.
type inboundFrame struct {
	Type     string `json:"type"`
	Room     string `json:"room"`
	Username string `json:"username"`
	Content  string `json:"content"`
}

// decodeEvent turns one client frame into a dispatcher event.
func decodeEvent(cid domain.ConnID, data []byte) (orch.Event, error) {
	var f inboundFrame
	if err := json.Unmarshal(data, &f); err != nil {
		return orch.Event{}, ErrBadPayload
	}

	ev := orch.Event{Conn: cid}
	switch f.Type {
	case domain.TypeJoin:
		ev.Kind = orch.EventJoin
		ev.Room = f.Room
		ev.Username = f.Username
	case domain.TypeSendMessage:
		ev.Kind = orch.EventSendMessage
		ev.Room = f.Room
		ev.Username = f.Username
		ev.Content = f.Content
	case domain.TypeLeave:
		ev.Kind = orch.EventLeave
	case domain.TypePing:
		ev.Kind = orch.EventPing
	default:
		return orch.Event{}, ErrUnknownType
	}
	return ev, nil
}

// rateLimited reports whether the event counts against the per-connection budget.
func rateLimited(kind orch.EventKind) bool {
	return kind == orch.EventJoin || kind == orch.EventSendMessage
}
