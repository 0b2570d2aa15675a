package websocket

import (
	"context"
	"encoding/json"
	gosync "sync"
	"sync/atomic"

	"github.com/rejdeboer/collab-server/internal/abuse"
	"github.com/rejdeboer/collab-server/internal/audit"
	"github.com/rejdeboer/collab-server/internal/sync"
	"github.com/rs/zerolog"
)

type eventKind int

const (
	eventJoin eventKind = iota
	eventLeave
	eventMessage
	eventReject
	eventInspect
)

type roomEvent struct {
	kind      eventKind
	client    *Client
	msg       sync.Message
	violation *abuse.Violation
	inspect   chan<- RoomSnapshot
}

type RoomSnapshot struct {
	Content  string
	Peers    []string
	Locks    []sync.LockInfo
	Sessions int
}

// DeliveryResult reports what happened to one outbound event for one
// recipient. Broadcasts record it and move on; a recipient that can not
// keep up never holds back the room.
type DeliveryResult int

const (
	Delivered DeliveryResult = iota
	// Dropped means the recipient's send buffer was full.
	Dropped
	// Gone means the recipient already left the room.
	Gone
)

func (d DeliveryResult) String() string {
	switch d {
	case Delivered:
		return "delivered"
	case Dropped:
		return "dropped"
	case Gone:
		return "gone"
	}
	return "unknown"
}

// Room owns a sync.Doc and serializes every mutation of it in Run. Events
// are consumed from a single queue, so state changes follow arrival order.
type Room struct {
	ID             string
	passwordDigest string

	doc     *sync.Doc
	clients map[string]*Client
	hub     *Hub
	log     zerolog.Logger

	events chan roomEvent
	quit   chan struct{}
	done   chan struct{}

	// sendMu orders sends against stop: once stopped is set nothing more is
	// queued, so drain sees every event that was accepted.
	sendMu  gosync.RWMutex
	stopped bool

	// refs counts joined and joining sessions, idleSince is the unix nano
	// time refs last dropped to zero.
	refs      atomic.Int64
	idleSince atomic.Int64
}

func newRoom(id string, passwordDigest string, hub *Hub) *Room {
	r := &Room{
		ID:             id,
		passwordDigest: passwordDigest,
		doc:            sync.NewDoc(),
		clients:        make(map[string]*Client),
		hub:            hub,
		log:            hub.log.With().Str("room", id).Logger(),
		events:         make(chan roomEvent, hub.settings.Limits.SendBuffer),
		quit:           make(chan struct{}),
		done:           make(chan struct{}),
	}
	r.idleSince.Store(hub.clock.Now().UnixNano())
	return r
}

func (r *Room) Run() {
	defer close(r.done)

	for {
		select {
		case ev := <-r.events:
			r.handle(ev)
		case <-r.quit:
			r.drain()
			return
		}
	}
}

// drain closes every session, including joins still waiting in the queue.
func (r *Room) drain() {
	for _, client := range r.clients {
		r.remove(client)
	}
	for {
		select {
		case ev := <-r.events:
			if ev.kind == eventJoin {
				close(ev.client.Send)
				ev.client.setState(StateClosed)
			}
		default:
			return
		}
	}
}

func (r *Room) handle(ev roomEvent) {
	switch ev.kind {
	case eventJoin:
		r.join(ev.client)
	case eventLeave:
		if _, ok := r.clients[ev.client.SessionID]; ok {
			r.apply(ev.client, r.remove(ev.client))
		}
	case eventMessage:
		if _, ok := r.clients[ev.client.SessionID]; !ok {
			return
		}
		r.hub.metrics.MessagesTotal.WithLabelValues(ev.msg.Type).Inc()
		r.apply(ev.client, r.doc.Apply(ev.client.SessionID, ev.msg))
	case eventReject:
		r.reject(ev.client, ev.violation)
	case eventInspect:
		ev.inspect <- RoomSnapshot{
			Content:  r.doc.Content,
			Peers:    r.doc.Peers(),
			Locks:    r.doc.Locks(),
			Sessions: r.doc.Sessions(),
		}
	}
}

func (r *Room) join(client *Client) {
	r.clients[client.SessionID] = client
	client.setState(StateActive)
	r.hub.metrics.ActiveSessions.Inc()

	effects := r.doc.Join(sync.Peer{
		ID:   client.SessionID,
		Name: client.Name,
		Addr: client.Addr,
	})
	client.Log.Info().Int("sessions", len(r.clients)).Msg("session joined room")
	r.apply(client, effects)
}

// remove takes client out of the room, closes its send queue and returns
// the effects of releasing its presence and locks. It must run exactly once
// per joined client.
func (r *Room) remove(client *Client) []sync.Effect {
	delete(r.clients, client.SessionID)
	client.setState(StateClosed)
	close(client.Send)
	r.hub.metrics.ActiveSessions.Dec()

	effects := r.doc.Leave(client.SessionID)

	r.idleSince.Store(r.hub.clock.Now().UnixNano())
	r.refs.Add(-1)

	client.Log.Info().Int("sessions", len(r.clients)).Msg("session left room")
	return effects
}

func (r *Room) reject(client *Client, violation *abuse.Violation) {
	if _, ok := r.clients[client.SessionID]; !ok {
		return
	}

	r.hub.metrics.Violations.WithLabelValues(violation.Code).Inc()
	r.hub.audit.Publish(context.Background(), audit.Event{
		Kind:      audit.KindViolation,
		Room:      r.ID,
		SessionID: client.SessionID,
		Name:      client.Name,
		Addr:      client.Addr,
		Code:      violation.Code,
		Time:      r.hub.clock.Now(),
	})
	client.Log.Warn().Str("code", violation.Code).Bool("fatal", violation.Fatal).Msg("abuse limit exceeded")

	r.apply(client, []sync.Effect{{
		Audience: sync.ToSender,
		Event:    sync.NewError(violation.Code, violation.Message),
	}})

	// The error is queued ahead of the close, so the client sees it first.
	if violation.Fatal {
		r.apply(client, r.remove(client))
	}
}

// apply serializes each effect once and hands it to its recipients.
func (r *Room) apply(sender *Client, effects []sync.Effect) {
	for _, effect := range effects {
		data, err := json.Marshal(effect.Event)
		if err != nil {
			r.log.Error().Err(err).Str("event", effect.Event.EventType()).Msg("error marshalling event")
			continue
		}

		switch effect.Audience {
		case sync.ToSender:
			r.record(r.deliver(sender, data), effect.Event)
		case sync.ToRoom:
			for _, client := range r.clients {
				r.record(r.deliver(client, data), effect.Event)
			}
		}
	}
}

// deliver queues data for client without blocking.
func (r *Room) deliver(client *Client, data []byte) DeliveryResult {
	if _, ok := r.clients[client.SessionID]; !ok {
		return Gone
	}
	select {
	case client.Send <- data:
		return Delivered
	default:
		return Dropped
	}
}

func (r *Room) record(result DeliveryResult, event sync.Event) {
	if result == Delivered {
		return
	}
	r.hub.metrics.DeliveriesFailed.WithLabelValues(result.String()).Inc()
	r.log.Debug().Str("result", result.String()).Str("event", event.EventType()).Msg("event not delivered")
}

func (r *Room) send(ev roomEvent) bool {
	r.sendMu.RLock()
	defer r.sendMu.RUnlock()

	if r.stopped {
		return false
	}
	r.events <- ev
	return true
}

func (r *Room) stop() {
	r.sendMu.Lock()
	defer r.sendMu.Unlock()

	if r.stopped {
		return
	}
	r.stopped = true
	close(r.quit)
}

func (r *Room) dispatch(client *Client, msg sync.Message) {
	r.send(roomEvent{kind: eventMessage, client: client, msg: msg})
}

func (r *Room) leave(client *Client) {
	r.send(roomEvent{kind: eventLeave, client: client})
}

func (r *Room) rejectMessage(client *Client, violation *abuse.Violation) {
	r.send(roomEvent{kind: eventReject, client: client, violation: violation})
}

// Snapshot returns the current content, presence and locks. It is served by
// the room goroutine, so it observes a consistent state.
func (r *Room) Snapshot() (RoomSnapshot, bool) {
	reply := make(chan RoomSnapshot, 1)
	if !r.send(roomEvent{kind: eventInspect, inspect: reply}) {
		return RoomSnapshot{}, false
	}
	select {
	case snapshot := <-reply:
		return snapshot, true
	case <-r.done:
		return RoomSnapshot{}, false
	}
}
