package ws

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/chatstealth/server-go/internal/hub"
	"github.com/chatstealth/server-go/internal/util"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
)

// inbound is the shape of every client-to-server frame. Unused fields stay
// zero for event kinds that don't carry them.
type inbound struct {
	Type     hub.EventType `json:"type"`
	SenderID string        `json:"sender_id"`
	Nickname string        `json:"nickname"`
	IsTyping bool          `json:"is_typing"`
}

// Connection adapts one websocket to a hub client. The hub never touches
// transport framing; this layer deserializes inbound frames, runs the
// per-connection join state machine, and drains the client's event stream
// back onto the socket.
type Connection struct {
	hub    *hub.Hub
	client *hub.Client
	conn   *websocket.Conn
}

func NewConnection(h *hub.Hub, client *hub.Client, conn *websocket.Conn) *Connection {
	return &Connection{hub: h, client: client, conn: conn}
}

// Run pumps the connection until it closes. Blocks until the read side ends;
// the write pump runs alongside and exits when the hub closes the client.
func (c *Connection) Run(ctx context.Context) {
	go c.writePump()
	c.readPump(ctx)
}

func (c *Connection) readPump(ctx context.Context) {
	defer func() {
		c.hub.Unregister(context.WithoutCancel(ctx), c.client)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				log.Warn().Err(err).
					Str("sessionId", c.client.SessionID()).
					Str("connectionId", c.client.ID()).
					Msg("websocket read error")
			}
			return
		}

		var event inbound
		if err := json.Unmarshal(data, &event); err != nil {
			log.Warn().Err(err).
				Str("connectionId", c.client.ID()).
				Msg("invalid websocket frame")
			continue
		}

		if done := c.handle(ctx, event); done {
			return
		}
	}
}

// handle runs one inbound event through the connection state machine.
// Returns true when the connection should close.
func (c *Connection) handle(ctx context.Context, event inbound) bool {
	switch event.Type {
	case hub.EventJoin:
		senderID := event.SenderID
		if senderID == "" {
			senderID = c.client.ID()
		}
		nickname := util.SanitizeNickname(event.Nickname)
		if err := c.hub.Join(ctx, c.client, senderID, nickname); err != nil {
			log.Warn().Err(err).
				Str("sessionId", c.client.SessionID()).
				Msg("failed to broadcast join")
		}

	case hub.EventLeave:
		return true

	case hub.EventTyping:
		if !c.client.Joined() {
			log.Warn().
				Str("connectionId", c.client.ID()).
				Msg("typing event before join, ignoring")
			return false
		}
		err := c.hub.Publish(ctx, c.client.SessionID(),
			hub.TypingEvent(c.client.SenderID(), c.client.Nickname(), event.IsTyping),
			c.client.SenderID())
		if err != nil {
			log.Warn().Err(err).
				Str("sessionId", c.client.SessionID()).
				Msg("failed to broadcast typing")
		}

	case hub.EventPing:
		// Answered locally; never broadcast.
		select {
		case c.client.Events <- hub.PongEvent():
		default:
		}

	default:
		// Forward compatibility: unknown kinds are ignored, not fatal.
		log.Warn().
			Str("type", string(event.Type)).
			Str("connectionId", c.client.ID()).
			Msg("unrecognized websocket event type")
	}
	return false
}

func (c *Connection) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case event := <-c.client.Events:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(event); err != nil {
				return
			}

		case <-c.client.Done:
			// Flush anything queued ahead of the close, the terminal
			// session_destroyed event in particular.
			for {
				select {
				case event := <-c.client.Events:
					c.conn.SetWriteDeadline(time.Now().Add(writeWait))
					if err := c.conn.WriteJSON(event); err != nil {
						return
					}
					continue
				default:
				}
				break
			}
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// WriteEvent writes a single event to a raw websocket, used to report a
// rejection before any client exists.
func WriteEvent(conn *websocket.Conn, event hub.Event) error {
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(event)
}
