package app

import (
	"cmp"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/dkeye/RoomChat/internal/domain"
	"github.com/rs/zerolog/log"
)

// RoomCatalog is the listing served by the REST API. It is kept apart from
// the registry: a room may be listed without members and joined without
// ever being created here first (joins register it lazily).
type RoomCatalog struct {
	mu    sync.RWMutex
	rooms map[domain.RoomID]*domain.Room
}

func NewRoomCatalog() *RoomCatalog {
	return &RoomCatalog{rooms: make(map[domain.RoomID]*domain.Room)}
}

// Ensure registers id with its own id as display name unless it is known.
func (c *RoomCatalog) Ensure(id domain.RoomID) domain.Room {
	c.mu.RLock()
	room, ok := c.rooms[id]
	c.mu.RUnlock()
	if ok {
		return *room
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if room, ok = c.rooms[id]; ok {
		return *room
	}
	room = &domain.Room{ID: id, Name: string(id), CreatedAt: time.Now().UTC()}
	c.rooms[id] = room
	log.Info().Str("module", "app.catalog").Str("room", string(id)).Msg("room registered")
	return *room
}

// Upsert creates id or renames it. A blank name keeps the current one.
func (c *RoomCatalog) Upsert(id domain.RoomID, name string) domain.Room {
	name = strings.TrimSpace(name)
	c.mu.Lock()
	defer c.mu.Unlock()
	room, ok := c.rooms[id]
	if !ok {
		room = &domain.Room{ID: id, Name: string(id), CreatedAt: time.Now().UTC()}
		c.rooms[id] = room
	}
	if name != "" {
		room.Name = name
	}
	return *room
}

func (c *RoomCatalog) Get(id domain.RoomID) (domain.Room, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	room, ok := c.rooms[id]
	if !ok {
		return domain.Room{}, false
	}
	return *room, true
}

// List returns rooms ordered by creation time.
func (c *RoomCatalog) List() []domain.Room {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]domain.Room, 0, len(c.rooms))
	for _, r := range c.rooms {
		out = append(out, *r)
	}
	slices.SortFunc(out, func(a, b domain.Room) int {
		if n := a.CreatedAt.Compare(b.CreatedAt); n != 0 {
			return n
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out
}

func (c *RoomCatalog) Remove(id domain.RoomID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.rooms[id]; !ok {
		return false
	}
	delete(c.rooms, id)
	log.Info().Str("module", "app.catalog").Str("room", string(id)).Msg("room removed")
	return true
}
