package realtime

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultSendBuffer is the outbound queue size of a connection.
const DefaultSendBuffer = 256

type outbound struct {
	data  []byte
	final bool
}

// Connection is one authenticated, live client connection. The handle is
// unique per connection, so two connections of the same user never compare
// equal.
type Connection struct {
	Handle      uuid.UUID
	Identity    Identity
	ConnectedAt time.Time

	send      chan outbound
	done      chan struct{}
	closeOnce sync.Once
}

// NewConnection builds a connection with an outbound queue of the given size.
func NewConnection(identity Identity, buffer int, connectedAt time.Time) *Connection {
	if buffer <= 0 {
		buffer = DefaultSendBuffer
	}
	return &Connection{
		Handle:      uuid.New(),
		Identity:    identity,
		ConnectedAt: connectedAt,
		send:        make(chan outbound, buffer),
		done:        make(chan struct{}),
	}
}

// Deliver enqueues a frame without blocking. It returns false when the queue
// is full or the connection is closed; the frame is then dropped.
func (c *Connection) Deliver(frame []byte) bool {
	return c.enqueue(outbound{data: frame})
}

// DeliverFinal enqueues the last frame of the connection. The write loop
// flushes it and then closes the transport. When the frame cannot be queued
// the connection is closed right away.
func (c *Connection) DeliverFinal(frame []byte) bool {
	if c.enqueue(outbound{data: frame, final: true}) {
		return true
	}
	c.Close()
	return false
}

func (c *Connection) enqueue(out outbound) bool {
	select {
	case <-c.done:
		return false
	default:
	}

	select {
	case c.send <- out:
		return true
	default:
		return false
	}
}

// Close marks the connection as finished. It is safe to call more than once.
func (c *Connection) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
}

// Done is closed once the connection is finished.
func (c *Connection) Done() <-chan struct{} {
	return c.done
}

// Closed reports whether Close was called.
func (c *Connection) Closed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// Pending returns the number of queued frames.
func (c *Connection) Pending() int {
	return len(c.send)
}
