package domain

import "time"

// Member represents one connection's participation in a room.
// No transport or lifecycle logic here.
type Member struct {
	Conn     ConnID
	Username string
	JoinedAt time.Time
}

// NewMember avoids raw literals in adapters and keeps construction obvious.
func NewMember(conn ConnID, username string) Member {
	return Member{
		Conn:     conn,
		Username: NormalizeUsername(username),
		JoinedAt: time.Now().UTC(),
	}
}
