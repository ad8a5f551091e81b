package core

import (
	"cmp"
	"slices"
	"sync"

	"github.com/dkeye/RoomChat/internal/domain"
	"github.com/rs/zerolog/log"
)

// JoinResult describes what a Join did to the connection's membership.
type JoinResult struct {
	// Previous is the room the connection was moved out of, empty if none.
	Previous domain.RoomID
	// Rejoined is set when the connection already was in the target room.
	Rejoined bool
}

// Registry tracks which connections are members of which rooms. A
// connection is a member of at most one room at any time.
type Registry struct {
	mu      sync.RWMutex
	members map[domain.RoomID]map[domain.ConnID]domain.Member
	roomOf  map[domain.ConnID]domain.RoomID
}

func NewRegistry() *Registry {
	return &Registry{
		members: make(map[domain.RoomID]map[domain.ConnID]domain.Member),
		roomOf:  make(map[domain.ConnID]domain.RoomID),
	}
}

// Join moves conn into room, leaving whatever room it was in before.
func (r *Registry) Join(conn domain.ConnID, room domain.RoomID, username string) JoinResult {
	r.mu.Lock()
	defer r.mu.Unlock()

	prev, had := r.roomOf[conn]
	if had && prev == room {
		m := r.members[room][conn]
		m.Username = domain.NormalizeUsername(username)
		r.members[room][conn] = m
		return JoinResult{Rejoined: true}
	}

	var res JoinResult
	if had {
		r.removeLocked(conn, prev)
		res.Previous = prev
	}

	set, ok := r.members[room]
	if !ok {
		set = make(map[domain.ConnID]domain.Member)
		r.members[room] = set
	}
	set[conn] = domain.NewMember(conn, username)
	r.roomOf[conn] = room

	log.Debug().Str("module", "core.registry").Str("conn", string(conn)).Str("room", string(room)).Str("from_room", string(prev)).Msg("joined")
	return res
}

// Leave removes conn from its room. It is safe to call repeatedly.
func (r *Registry) Leave(conn domain.ConnID) (domain.RoomID, domain.Member, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	room, ok := r.roomOf[conn]
	if !ok {
		return "", domain.Member{}, false
	}
	m := r.members[room][conn]
	r.removeLocked(conn, room)
	log.Debug().Str("module", "core.registry").Str("conn", string(conn)).Str("room", string(room)).Msg("left")
	return room, m, true
}

func (r *Registry) removeLocked(conn domain.ConnID, room domain.RoomID) {
	delete(r.roomOf, conn)
	if set, ok := r.members[room]; ok {
		delete(set, conn)
		if len(set) == 0 {
			delete(r.members, room)
		}
	}
}

// MembersOf returns a sorted snapshot of the room's connections.
func (r *Registry) MembersOf(room domain.RoomID) []domain.ConnID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	set := r.members[room]
	out := make([]domain.ConnID, 0, len(set))
	for conn := range set {
		out = append(out, conn)
	}
	slices.Sort(out)
	return out
}

func (r *Registry) UsernameOf(conn domain.ConnID) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	room, ok := r.roomOf[conn]
	if !ok {
		return "", false
	}
	return r.members[room][conn].Username, true
}

func (r *Registry) RoomOf(conn domain.ConnID) (domain.RoomID, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	room, ok := r.roomOf[conn]
	return room, ok
}

func (r *Registry) MemberCount(room domain.RoomID) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.members[room])
}

// Rooms lists rooms that currently have members.
func (r *Registry) Rooms() []RoomInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]RoomInfo, 0, len(r.members))
	for id, set := range r.members {
		out = append(out, RoomInfo{ID: id, MemberCount: len(set)})
	}
	slices.SortFunc(out, func(a, b RoomInfo) int { return cmp.Compare(a.ID, b.ID) })
	return out
}
