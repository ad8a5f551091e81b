package orch

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"

	"github.com/dkeye/RoomChat/internal/app"
	"github.com/dkeye/RoomChat/internal/core"
	"github.com/dkeye/RoomChat/internal/domain"
	"github.com/rs/zerolog/log"
)

var ErrStopped = errors.New("dispatcher stopped")

const defaultQueueSize = 1024

type EventKind int

const (
	EventConnect EventKind = iota
	EventJoin
	EventSendMessage
	EventLeave
	EventPing
	EventDisconnect
	EventFault
)

func (k EventKind) String() string {
	switch k {
	case EventConnect:
		return "connect"
	case EventJoin:
		return domain.TypeJoin
	case EventSendMessage:
		return domain.TypeSendMessage
	case EventLeave:
		return domain.TypeLeave
	case EventPing:
		return domain.TypePing
	case EventDisconnect:
		return "disconnect"
	case EventFault:
		return "fault"
	}
	return "unknown"
}

// Event is one inbound transport event.
type Event struct {
	Kind EventKind
	Conn domain.ConnID
	// Link is set on EventConnect only.
	Link core.SignalConnection

	Room     string
	Username string
	Content  string
	// Err is set on EventFault.
	Err error
}

type Options struct {
	ReplayLimit      int
	MaxContentLength int
	QueueSize        int
}

type connEntry struct {
	session *app.Session
	link    core.SignalConnection
}

// Dispatcher owns every session and runs them on a single event loop.
// Registry and Store are shared with read-only REST handlers.
type Dispatcher struct {
	Registry *core.Registry
	Store    *core.MessageStore
	Catalog  *app.RoomCatalog
	Policy   app.Policy

	svc    *app.Services
	conns  map[domain.ConnID]*connEntry
	kicks  []domain.ConnID
	events chan Event
	done   chan struct{}
	count  atomic.Int64
}

func NewDispatcher(reg *core.Registry, store *core.MessageStore, catalog *app.RoomCatalog, policy app.Policy, opts Options) *Dispatcher {
	if opts.QueueSize <= 0 {
		opts.QueueSize = defaultQueueSize
	}
	d := &Dispatcher{
		Registry: reg,
		Store:    store,
		Catalog:  catalog,
		Policy:   policy,
		conns:    make(map[domain.ConnID]*connEntry),
		events:   make(chan Event, opts.QueueSize),
		done:     make(chan struct{}),
	}
	d.svc = &app.Services{
		Registry:         reg,
		Store:            store,
		Catalog:          catalog,
		Policy:           policy,
		Out:              d,
		ReplayLimit:      opts.ReplayLimit,
		MaxContentLength: opts.MaxContentLength,
	}
	return d
}

// Run consumes events until ctx is done, then closes every connection.
func (d *Dispatcher) Run(ctx context.Context) {
	defer close(d.done)
	log.Info().Str("module", "orch").Msg("dispatcher started")
	for {
		select {
		case <-ctx.Done():
			d.shutdown()
			return
		case ev := <-d.events:
			d.Handle(ev)
		}
	}
}

// Submit enqueues ev for the event loop. It is safe for concurrent use.
func (d *Dispatcher) Submit(ctx context.Context, ev Event) error {
	select {
	case <-d.done:
		return ErrStopped
	default:
	}
	select {
	case d.events <- ev:
		return nil
	case <-d.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Done is closed once Run has returned.
func (d *Dispatcher) Done() <-chan struct{} { return d.done }

// Connections reports the number of live connections.
func (d *Dispatcher) Connections() int { return int(d.count.Load()) }

// Handle processes a single event to completion. Only the event loop (or a
// test standing in for it) may call it.
func (d *Dispatcher) Handle(ev Event) {
	switch ev.Kind {
	case EventConnect:
		d.connect(ev.Conn, ev.Link)
	case EventDisconnect:
		d.disconnect(ev.Conn)
	case EventFault:
		msg := "transport_error"
		if ev.Err != nil {
			msg = ev.Err.Error()
		}
		d.SendTo(ev.Conn, domain.ErrorNotice(msg))
	default:
		e, ok := d.conns[ev.Conn]
		if !ok {
			log.Debug().Str("module", "orch").Str("conn", string(ev.Conn)).Stringer("event", ev.Kind).Msg("event for unknown connection")
			break
		}
		switch ev.Kind {
		case EventJoin:
			e.session.OnJoin(ev.Room, ev.Username)
		case EventSendMessage:
			e.session.OnSendMessage(ev.Room, ev.Username, ev.Content)
		case EventLeave:
			e.session.OnLeave()
		case EventPing:
			d.SendTo(ev.Conn, domain.Notice{Type: domain.TypePong})
		}
	}
	d.drainKicks()
}

func (d *Dispatcher) connect(id domain.ConnID, link core.SignalConnection) {
	if link == nil {
		return
	}
	if _, dup := d.conns[id]; dup {
		log.Warn().Str("module", "orch").Str("conn", string(id)).Msg("duplicate connect ignored")
		return
	}
	d.conns[id] = &connEntry{session: app.NewSession(id, d.svc), link: link}
	d.count.Add(1)
	log.Info().Str("module", "orch").Str("conn", string(id)).Int("connections", len(d.conns)).Msg("connected")
	d.SendTo(id, domain.Notice{Type: domain.TypeConnected, Message: "Connected to chat server."})
}

func (d *Dispatcher) disconnect(id domain.ConnID) {
	e, ok := d.conns[id]
	if !ok {
		return
	}
	delete(d.conns, id)
	d.count.Add(-1)
	e.session.OnDisconnect()
	e.link.Close()
	log.Info().Str("module", "orch").Str("conn", string(id)).Int("connections", len(d.conns)).Msg("disconnected")
}

func (d *Dispatcher) drainKicks() {
	for len(d.kicks) > 0 {
		id := d.kicks[0]
		d.kicks = d.kicks[1:]
		if _, ok := d.conns[id]; ok {
			log.Warn().Str("module", "orch").Str("conn", string(id)).Msg("kicking slow member")
			d.disconnect(id)
		}
	}
	d.kicks = nil
}

func (d *Dispatcher) shutdown() {
	for id, e := range d.conns {
		e.link.Close()
		delete(d.conns, id)
	}
	d.count.Store(0)
	log.Info().Str("module", "orch").Msg("dispatcher stopped")
}

// SendTo implements app.Outbox.
func (d *Dispatcher) SendTo(conn domain.ConnID, ev domain.Outbound) {
	frame, ok := encode(ev)
	if !ok {
		return
	}
	d.deliver(conn, frame)
}

// Broadcast implements app.Outbox. Members are resolved now, so a
// connection that already left never gets the frame.
func (d *Dispatcher) Broadcast(room domain.RoomID, ev domain.Outbound) {
	members := d.Registry.MembersOf(room)
	if len(members) == 0 {
		return
	}
	frame, ok := encode(ev)
	if !ok {
		return
	}
	for _, conn := range members {
		d.deliver(conn, frame)
	}
	log.Debug().Str("module", "orch").Str("room", string(room)).Str("type", ev.EventType()).Int("sent_to", len(members)).Msg("broadcast")
}

func (d *Dispatcher) deliver(conn domain.ConnID, frame core.Frame) {
	e, ok := d.conns[conn]
	if !ok {
		return
	}
	if err := e.link.TrySend(frame); err != nil {
		room, _ := d.Registry.RoomOf(conn)
		action := app.KickMember
		if d.Policy != nil {
			action = d.Policy.OnBackPressure(room, conn)
		}
		log.Warn().Err(err).Str("module", "orch").Str("conn", string(conn)).Msg("send failed")
		switch action {
		case app.KickMember:
			d.kicks = append(d.kicks, conn)
		case app.DropFrame, app.NoAction:
		}
	}
}

func encode(ev domain.Outbound) (core.Frame, bool) {
	b, err := json.Marshal(ev)
	if err != nil {
		log.Error().Err(err).Str("module", "orch").Str("type", ev.EventType()).Msg("encode outbound")
		return nil, false
	}
	return b, true
}
