package ws

import (
	"sync"

	"golang.org/x/net/websocket"
)

const (
	clientBuffer      = 64
	maxClientChannels = 16
)

// Client is one websocket connection. Slow readers are dropped rather than
// allowed to back up the notifier.
type Client struct {
	conn *websocket.Conn
	out  chan []byte

	mu       sync.Mutex
	channels map[string]struct{}
	closed   bool
}

func NewClient(conn *websocket.Conn) *Client {
	return &Client{
		conn:     conn,
		out:      make(chan []byte, clientBuffer),
		channels: map[string]struct{}{},
	}
}

func (c *Client) send(payload []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.out <- payload:
		return true
	default:
		c.closeLocked()
		return false
	}
}

// close stops delivery and ends the writer loop. Safe to call more than once.
func (c *Client) close() {
	c.mu.Lock()
	c.closeLocked()
	c.mu.Unlock()
}

func (c *Client) closeLocked() {
	if c.closed {
		return
	}
	c.closed = true
	close(c.out)
	if c.conn != nil {
		_ = c.conn.Close()
	}
}

func (c *Client) addChannel(channel string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.channels[channel]; ok {
		return true
	}
	if c.closed || len(c.channels) >= maxClientChannels {
		return false
	}
	c.channels[channel] = struct{}{}
	return true
}

func (c *Client) takeChannels() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.channels))
	for ch := range c.channels {
		out = append(out, ch)
	}
	c.channels = map[string]struct{}{}
	return out
}
