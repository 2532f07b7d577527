package ws

import (
	"sync"

	"github.com/gorilla/websocket"
)

// sendBuffer is how many outbound frames a connection may queue before
// further sends are dropped. A full buffer means the client is not keeping
// up; dropping beats blocking a broadcast on one slow reader.
const sendBuffer = 64

// Conn wraps one websocket connection. Outbound frames go through a buffered
// queue drained by writeLoop, so Send never blocks the caller.
type Conn struct {
	id   string
	sock *websocket.Conn

	mu     sync.Mutex
	send   chan []byte
	closed bool
}

func newConn(id string, sock *websocket.Conn) *Conn {
	return &Conn{
		id:   id,
		sock: sock,
		send: make(chan []byte, sendBuffer),
	}
}

// ID returns the connection's process-unique identifier.
func (c *Conn) ID() string { return c.id }

// Send queues a frame for delivery. Returns ErrSendBufferFull when the
// client's queue is saturated; the frame is dropped, the connection stays up.
func (c *Conn) Send(payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return &ErrConnClosed{Conn: c.id}
	}
	select {
	case c.send <- payload:
		return nil
	default:
		return &ErrSendBufferFull{Conn: c.id}
	}
}

// close stops the write loop. Safe to call more than once.
func (c *Conn) close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

// writeLoop drains the send queue onto the socket until the queue closes or
// a write fails.
func (c *Conn) writeLoop() {
	defer c.sock.Close()
	for payload := range c.send {
		if err := c.sock.WriteMessage(websocket.TextMessage, payload); err != nil {
			return
		}
	}
}
