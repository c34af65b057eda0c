package registry

import (
	"sync"

	"github.com/lanternops/timecodesvr/internal/protocol"
)

// Client is a connected peer's outbound mailbox. It implements
// session.Member so a *Client can be handed directly to a Session.
//
// mu serializes Send against Close the same way status.Hub serializes
// publish's send against remove's close for its own subscriber channels:
// Send must never race a concurrent Close, since sending on a channel
// after it's been closed panics.
type Client struct {
	id   string
	send chan *protocol.Message

	mu     sync.Mutex
	closed bool
}

// NewClient creates a client with a bounded outbound queue of queueSize.
func NewClient(id string, queueSize int) *Client {
	if queueSize < 1 {
		queueSize = 1
	}
	return &Client{id: id, send: make(chan *protocol.Message, queueSize)}
}

// ID returns the client's opaque, globally unique identifier.
func (c *Client) ID() string { return c.id }

// Send enqueues msg without blocking. It returns false if the queue is
// full or the client has already been closed, signaling the slow-consumer
// policy to the caller.
func (c *Client) Send(msg *protocol.Message) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

// Outbound returns the channel a connection's writer loop drains.
func (c *Client) Outbound() <-chan *protocol.Message {
	return c.send
}

// Close closes the outbound channel exactly once, signaling the writer
// loop to exit. Safe to call concurrently with Send.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}
