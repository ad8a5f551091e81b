package core

import (
	"sync"
	"time"

	"github.com/dkeye/RoomChat/internal/domain"
)

const DefaultHistoryCap = 100

// roomLog is the bounded log of a single room. It has its own lock so
// unrelated rooms never contend.
type roomLog struct {
	mu      sync.Mutex
	nextSeq uint64
	msgs    []domain.Message
}

// MessageStore is an append-only, per-room, in-memory message log with a
// retention cap.
type MessageStore struct {
	mu     sync.RWMutex
	logs   map[domain.RoomID]*roomLog
	retain int
}

func NewMessageStore(historyCap int) *MessageStore {
	if historyCap <= 0 {
		historyCap = DefaultHistoryCap
	}
	return &MessageStore{
		logs:   make(map[domain.RoomID]*roomLog),
		retain: historyCap,
	}
}

func (s *MessageStore) Cap() int { return s.retain }

func (s *MessageStore) getOrCreate(room domain.RoomID) *roomLog {
	s.mu.RLock()
	l, ok := s.logs[room]
	s.mu.RUnlock()
	if ok {
		return l
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if l, ok = s.logs[room]; ok {
		return l
	}
	l = &roomLog{nextSeq: 1, msgs: make([]domain.Message, 0, s.retain)}
	s.logs[room] = l
	return l
}

func (s *MessageStore) get(room domain.RoomID) (*roomLog, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	l, ok := s.logs[room]
	return l, ok
}

// Append assigns the next sequence number of the room to msg, stores it and
// evicts the oldest entry once the cap is exceeded.
func (s *MessageStore) Append(room domain.RoomID, msg domain.Message) uint64 {
	l := s.getOrCreate(room)

	l.mu.Lock()
	defer l.mu.Unlock()

	msg.Room = room
	msg.Seq = l.nextSeq
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now().UTC()
	}
	l.nextSeq++

	if len(l.msgs) == s.retain {
		copy(l.msgs, l.msgs[1:])
		l.msgs[len(l.msgs)-1] = msg
	} else {
		l.msgs = append(l.msgs, msg)
	}
	return msg.Seq
}

// History returns up to limit most recent messages in ascending sequence
// order. limit <= 0 returns everything retained. Unknown rooms are empty.
func (s *MessageStore) History(room domain.RoomID, limit int) []domain.Message {
	l, ok := s.get(room)
	if !ok {
		return []domain.Message{}
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if limit <= 0 || limit > len(l.msgs) {
		limit = len(l.msgs)
	}
	out := make([]domain.Message, limit)
	copy(out, l.msgs[len(l.msgs)-limit:])
	return out
}

// Len reports how many messages the room currently retains.
func (s *MessageStore) Len(room domain.RoomID) int {
	l, ok := s.get(room)
	if !ok {
		return 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.msgs)
}

// Drop forgets the room entirely; its sequence restarts at 1 on next append.
func (s *MessageStore) Drop(room domain.RoomID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.logs, room)
}
