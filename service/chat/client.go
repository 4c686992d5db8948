package chat

import (
	"sync"

	"github.com/gorilla/websocket"
)

// Client is one authenticated websocket session. A user may keep several
// devices/tabs connected, each with its own Client.
type Client struct {
	ConnID string
	UserID string
	WS     *websocket.Conn
	Send   chan []byte // outbound queue, consumed by a single writer goroutine

	mu      sync.Mutex
	closed  bool
	dropped int
}

func NewClient(connID, userID string, ws *websocket.Conn, sendQueueSize int) *Client {
	return &Client{
		ConnID: connID,
		UserID: userID,
		WS:     ws,
		Send:   make(chan []byte, sendQueueSize),
	}
}

// TrySend queues a payload without blocking. It reports false when the
// client is already gone or its queue is full; a slow client loses the
// frame and catches up over the long-poll leg instead of stalling anyone.
func (c *Client) TrySend(payload []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.Send <- payload:
		return true
	default:
		c.dropped++
		return false
	}
}

// Close marks the client gone and releases the writer goroutine. Sends
// racing with the disconnect turn into no-ops instead of hitting a closed
// channel. Returns how many frames the queue dropped over its lifetime.
func (c *Client) Close() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return c.dropped
	}
	c.closed = true
	close(c.Send)
	return c.dropped
}
