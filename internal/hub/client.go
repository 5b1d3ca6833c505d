package hub

import (
	"sync"

	"github.com/google/uuid"
)

// Events buffered per connection. A connection that cannot drain this many
// events is dropped rather than allowed to stall its session.
const clientBufferSize = 64

// Client is one live connection's view of the hub: a buffered event stream
// plus the identity the connection announced on join. The transport layer
// drains Events and watches Done.
type Client struct {
	id        string
	sessionID string
	Events    chan Event
	Done      chan struct{}

	closeOnce sync.Once

	mu       sync.RWMutex
	senderID string
	nickname string
	joined   bool
}

func newClient(sessionID string) *Client {
	return &Client{
		id:        uuid.NewString(),
		sessionID: sessionID,
		Events:    make(chan Event, clientBufferSize),
		Done:      make(chan struct{}),
	}
}

func (c *Client) ID() string        { return c.id }
func (c *Client) SessionID() string { return c.sessionID }

// Identify records the identity from a join event. Returns true when the
// client had already joined, in which case this is a nickname update and not
// a second admission.
func (c *Client) Identify(senderID, nickname string) (rejoin bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	rejoin = c.joined
	c.senderID = senderID
	c.nickname = nickname
	c.joined = true
	return rejoin
}

func (c *Client) Joined() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.joined
}

func (c *Client) SenderID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.senderID
}

func (c *Client) Nickname() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.nickname
}

func (c *Client) close() {
	c.closeOnce.Do(func() {
		close(c.Done)
	})
}
