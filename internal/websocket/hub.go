package websocket

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/rejdeboer/collab-server/internal/audit"
	"github.com/rejdeboer/collab-server/internal/auth"
	"github.com/rejdeboer/collab-server/internal/configuration"
	"github.com/rejdeboer/collab-server/internal/metrics"
	"github.com/rs/zerolog"
)

var ErrHubClosed = errors.New("hub is shut down")

// Hub is the room registry. Rooms are created by the first successful join
// and evicted once they have been empty for the configured idle TTL.
type Hub struct {
	settings configuration.Settings
	guard    auth.Guard
	clock    clock.Clock
	metrics  *metrics.Metrics
	audit    audit.Sink
	log      zerolog.Logger

	mu     sync.Mutex
	rooms  map[string]*Room
	closed bool
}

func NewHub(
	settings configuration.Settings,
	clk clock.Clock,
	m *metrics.Metrics,
	sink audit.Sink,
	log zerolog.Logger,
) *Hub {
	return &Hub{
		settings: settings,
		guard:    auth.NewGuard(settings.Application.PasswordSalt),
		clock:    clk,
		metrics:  m,
		audit:    sink,
		log:      log.With().Str("component", "hub").Logger(),
		rooms:    make(map[string]*Room),
	}
}

// Join authenticates client against the room and registers it. The first
// join of an unknown room creates it with the supplied password. A password
// mismatch returns auth.ErrPasswordMismatch and leaves the room untouched.
func (h *Hub) Join(client *Client, password string) (*Room, error) {
	digest := h.guard.Digest(password)
	roomID := client.RoomID

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil, ErrHubClosed
	}

	room, ok := h.rooms[roomID]
	if !ok {
		room = newRoom(roomID, digest, h)
		h.rooms[roomID] = room
		go room.Run()

		h.metrics.RoomsCreated.Inc()
		h.metrics.ActiveRooms.Inc()
		h.audit.Publish(context.Background(), audit.Event{
			Kind:      audit.KindRoomCreated,
			Room:      roomID,
			SessionID: client.SessionID,
			Name:      client.Name,
			Addr:      client.Addr,
			Time:      h.clock.Now(),
		})
		h.log.Info().Str("room", roomID).Msg("created room")
	} else if err := h.guard.Verify(room.passwordDigest, digest); err != nil {
		h.mu.Unlock()
		return nil, err
	}

	// Holding a reference keeps the room from being evicted until the
	// session has left again.
	room.refs.Add(1)
	h.mu.Unlock()

	client.Room = room
	client.setState(StateAuthenticated)
	if !room.send(roomEvent{kind: eventJoin, client: client}) {
		return nil, ErrHubClosed
	}

	return room, nil
}

// Run evicts idle rooms until ctx is cancelled, then shuts the hub down.
func (h *Hub) Run(ctx context.Context) error {
	ticker := h.clock.Ticker(h.settings.Rooms.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			h.Shutdown()
			return nil
		case <-ticker.C:
			if evicted := h.Sweep(); evicted > 0 {
				h.log.Info().Int("evicted", evicted).Int("rooms", h.RoomCount()).Msg("evicted idle rooms")
			}
		}
	}
}

// Sweep removes every room that has had no sessions for at least the idle
// TTL. A non-positive TTL disables eviction.
func (h *Hub) Sweep() int {
	ttl := h.settings.Rooms.IdleTTL
	if ttl <= 0 {
		return 0
	}
	now := h.clock.Now()

	h.mu.Lock()
	defer h.mu.Unlock()

	evicted := 0
	for id, room := range h.rooms {
		// refs only grows under h.mu, so a zero seen here stays zero.
		if room.refs.Load() != 0 {
			continue
		}
		if now.Sub(time.Unix(0, room.idleSince.Load())) < ttl {
			continue
		}

		delete(h.rooms, id)
		room.stop()
		evicted++

		h.metrics.RoomsEvicted.Inc()
		h.metrics.ActiveRooms.Dec()
		h.audit.Publish(context.Background(), audit.Event{
			Kind: audit.KindRoomEvicted,
			Room: id,
			Time: now,
		})
	}

	return evicted
}

// Shutdown stops every room and closes all sessions. Later joins fail with
// ErrHubClosed.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	h.closed = true

	for id, room := range h.rooms {
		room.stop()
		<-room.done
		delete(h.rooms, id)
		h.metrics.ActiveRooms.Dec()
	}
	h.log.Info().Msg("hub shut down")
}

func (h *Hub) RoomCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.rooms)
}

func (h *Hub) GetRoom(id string) (*Room, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	room, ok := h.rooms[id]
	return room, ok
}
