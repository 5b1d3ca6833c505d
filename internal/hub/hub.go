package hub

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	apperrors "github.com/chatstealth/server-go/internal/errors"
	"github.com/chatstealth/server-go/internal/model"
	redisclient "github.com/chatstealth/server-go/internal/redis"
)

// SessionSource supplies session records for lazy room creation.
type SessionSource interface {
	FindByID(ctx context.Context, id string) (*model.Session, error)
}

// Hub is the authority for which connections belong to which session. Rooms
// are created on first registration, mirror the session's tier and capacity,
// and are dropped when their last connection leaves. All broadcasts flow
// through the bus channel for the session, which also serializes tier and
// destruction transitions relative to ordinary events.
type Hub struct {
	bus      Bus
	sessions SessionSource

	ctx    context.Context
	cancel context.CancelFunc

	mu    sync.RWMutex
	rooms map[string]*room
}

// room holds the live-connection set and the runtime mirror of one session.
// Admission decisions are serialized under mu; that is the only mutual
// exclusion capacity enforcement needs.
type room struct {
	sessionID string
	sub       Subscription

	mu              sync.Mutex
	tier            model.Tier
	maxParticipants int
	clients         map[*Client]bool
	closed          bool
}

func New(bus Bus, sessions SessionSource) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		bus:      bus,
		sessions: sessions,
		ctx:      ctx,
		cancel:   cancel,
		rooms:    make(map[string]*room),
	}
}

// Register admits a connection into a session, or rejects it with
// SESSION_NOT_FOUND or SESSION_FULL. On admission every member, the new one
// included, receives a participant_update with the fresh count.
func (h *Hub) Register(ctx context.Context, sessionID string) (*Client, error) {
	for {
		r, err := h.roomFor(ctx, sessionID)
		if err != nil {
			return nil, err
		}

		r.mu.Lock()
		if r.closed {
			// Room torn down between lookup and lock; take it from the top.
			r.mu.Unlock()
			continue
		}
		if len(r.clients) >= r.maxParticipants {
			count, limit := len(r.clients), r.maxParticipants
			r.mu.Unlock()
			log.Info().
				Str("sessionId", sessionID).
				Int("participants", count).
				Int("maxParticipants", limit).
				Msg("connection rejected: session full")
			return nil, apperrors.SessionFull(count, limit)
		}
		client := newClient(sessionID)
		r.clients[client] = true
		count := len(r.clients)
		r.mu.Unlock()

		log.Info().
			Str("sessionId", sessionID).
			Str("connectionId", client.ID()).
			Int("participants", count).
			Msg("connection registered")

		if err := h.Publish(ctx, sessionID, ParticipantUpdateEvent(count), ""); err != nil {
			log.Warn().Err(err).Str("sessionId", sessionID).Msg("failed to publish participant update")
		}
		return client, nil
	}
}

// Unregister is idempotent. The last connection out drops the room; rooms are
// re-created lazily from the store on the next registration.
func (h *Hub) Unregister(ctx context.Context, client *Client) {
	sessionID := client.SessionID()

	h.mu.RLock()
	r := h.rooms[sessionID]
	h.mu.RUnlock()

	if r == nil {
		client.close()
		return
	}

	r.mu.Lock()
	if !r.clients[client] {
		r.mu.Unlock()
		client.close()
		return
	}
	delete(r.clients, client)
	count := len(r.clients)
	if count == 0 {
		r.closed = true
	}
	r.mu.Unlock()
	client.close()

	log.Info().
		Str("sessionId", sessionID).
		Str("connectionId", client.ID()).
		Int("participants", count).
		Msg("connection unregistered")

	if count == 0 {
		h.dropRoom(r)
		return
	}

	var event Event
	if client.Joined() {
		event = UserLeftEvent(client.Nickname(), count)
	} else {
		event = ParticipantUpdateEvent(count)
	}
	if err := h.Publish(ctx, sessionID, event, ""); err != nil {
		log.Warn().Err(err).Str("sessionId", sessionID).Msg("failed to publish presence update")
	}
}

// Join processes a join event on an already-registered connection. A repeat
// join is a nickname update: no admission re-check, no presence double count.
func (h *Hub) Join(ctx context.Context, client *Client, senderID, nickname string) error {
	rejoin := client.Identify(senderID, nickname)
	count := h.ParticipantCount(client.SessionID())

	if rejoin {
		return h.Publish(ctx, client.SessionID(), ParticipantUpdateEvent(count), "")
	}
	return h.Publish(ctx, client.SessionID(), UserJoinedEvent(nickname, senderID, count), "")
}

// Publish broadcasts an event to every live connection in the session except
// those identified by excludeSender. Delivery to each connection is
// best-effort; a connection that cannot keep up is dropped, never the
// broadcast.
func (h *Hub) Publish(ctx context.Context, sessionID string, event Event, excludeSender string) error {
	payload, err := json.Marshal(envelope{Event: event, ExcludeSender: excludeSender})
	if err != nil {
		return err
	}
	return h.bus.Publish(ctx, redisclient.SessionChannel(sessionID), payload)
}

// Upgrade transitions the mirrored tier to Pro and tells every member. The
// mirror itself is updated when the event comes back through the session
// channel, so tier reads during admission are never torn.
func (h *Hub) Upgrade(ctx context.Context, sessionID string) error {
	return h.Publish(ctx, sessionID, SessionUpgradedEvent(), "")
}

// Destroy broadcasts the terminal event; room teardown happens when the
// event is observed on the session channel, on this instance and any other.
func (h *Hub) Destroy(ctx context.Context, sessionID string) error {
	return h.Publish(ctx, sessionID, SessionDestroyedEvent("Session destroyed"), "")
}

// NotifyExpired tells live members that the sweeper removed messages.
func (h *Hub) NotifyExpired(ctx context.Context, sessionID string, messageIDs []string) error {
	return h.Publish(ctx, sessionID, MessagesExpiredEvent(messageIDs), "")
}

// HasSession reports whether the hub currently holds a live room.
func (h *Hub) HasSession(sessionID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.rooms[sessionID] != nil
}

func (h *Hub) ParticipantCount(sessionID string) int {
	h.mu.RLock()
	r := h.rooms[sessionID]
	h.mu.RUnlock()
	if r == nil {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.clients)
}

func (h *Hub) Close() {
	h.cancel()

	h.mu.Lock()
	rooms := h.rooms
	h.rooms = make(map[string]*room)
	h.mu.Unlock()

	for _, r := range rooms {
		r.mu.Lock()
		r.closed = true
		clients := make([]*Client, 0, len(r.clients))
		for c := range r.clients {
			clients = append(clients, c)
		}
		r.clients = make(map[*Client]bool)
		r.mu.Unlock()

		for _, c := range clients {
			c.close()
		}
		r.sub.Close()
	}
}

// roomFor returns the live room for a session, creating it from the store
// when absent. Destroyed or expired sessions surface as SESSION_NOT_FOUND.
func (h *Hub) roomFor(ctx context.Context, sessionID string) (*room, error) {
	h.mu.RLock()
	r := h.rooms[sessionID]
	h.mu.RUnlock()
	if r != nil {
		return r, nil
	}

	// Store read happens outside any hub lock; other sessions keep moving.
	session, err := h.sessions.FindByID(ctx, sessionID)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if session == nil || session.Expired(time.Now()) {
		return nil, apperrors.SessionNotFound()
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if r := h.rooms[sessionID]; r != nil {
		return r, nil
	}

	r = &room{
		sessionID:       sessionID,
		tier:            session.Tier,
		maxParticipants: session.MaxParticipants,
		clients:         make(map[*Client]bool),
	}
	r.sub = h.bus.Subscribe(h.ctx, redisclient.SessionChannel(sessionID))
	h.rooms[sessionID] = r
	go h.deliverLoop(r)

	log.Debug().
		Str("sessionId", sessionID).
		Str("tier", string(r.tier)).
		Msg("room created")

	return r, nil
}

func (h *Hub) deliverLoop(r *room) {
	for payload := range r.sub.Messages() {
		var env envelope
		if err := json.Unmarshal(payload, &env); err != nil {
			log.Error().Err(err).Str("sessionId", r.sessionID).Msg("failed to unmarshal hub event")
			continue
		}
		h.deliver(r, env)
	}
}

// deliver applies state transitions carried on the session channel and fans
// the event out to local connections.
func (h *Hub) deliver(r *room, env envelope) {
	switch env.Event.Type {
	case EventSessionUpgraded:
		r.mu.Lock()
		r.tier = model.TierPro
		r.maxParticipants = model.ProMaxParticipants
		r.mu.Unlock()
	case EventSessionDestroyed:
		h.teardown(r, &env.Event)
		return
	}

	r.mu.Lock()
	clients := make([]*Client, 0, len(r.clients))
	for c := range r.clients {
		clients = append(clients, c)
	}
	r.mu.Unlock()

	for _, c := range clients {
		if env.ExcludeSender != "" && c.SenderID() == env.ExcludeSender {
			continue
		}
		select {
		case c.Events <- env.Event:
		default:
			// Overflowing connections are cut loose so one slow reader
			// never backpressures the session.
			log.Warn().
				Str("sessionId", r.sessionID).
				Str("connectionId", c.ID()).
				Msg("connection event buffer full, dropping connection")
			go h.Unregister(context.Background(), c)
		}
	}
}

// teardown delivers the terminal event to every member, then forcibly
// unregisters them and removes the room.
func (h *Hub) teardown(r *room, terminal *Event) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	clients := make([]*Client, 0, len(r.clients))
	for c := range r.clients {
		clients = append(clients, c)
	}
	r.clients = make(map[*Client]bool)
	r.mu.Unlock()

	for _, c := range clients {
		if terminal != nil {
			select {
			case c.Events <- *terminal:
			default:
			}
		}
		c.close()
	}

	h.removeRoom(r)

	log.Info().
		Str("sessionId", r.sessionID).
		Int("connections", len(clients)).
		Msg("room destroyed")
}

func (h *Hub) dropRoom(r *room) {
	h.removeRoom(r)
	log.Debug().Str("sessionId", r.sessionID).Msg("room dropped, no connections left")
}

func (h *Hub) removeRoom(r *room) {
	h.mu.Lock()
	if h.rooms[r.sessionID] == r {
		delete(h.rooms, r.sessionID)
	}
	h.mu.Unlock()
	r.sub.Close()
}
