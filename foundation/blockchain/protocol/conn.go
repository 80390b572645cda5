package protocol

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"sync"
	"time"
)

// DefaultWriteTimeout bounds how long a single frame write may take before
// the peer is considered gone.
const DefaultWriteTimeout = 10 * time.Second

// Conn wraps a network connection with message framing. Writes are
// serialized so multiple goroutines can send on the same connection. Reads
// must be performed from a single goroutine.
type Conn struct {
	conn         net.Conn
	r            *bufio.Reader
	mu           sync.Mutex
	writeTimeout time.Duration
}

// NewConn constructs a framed connection over an established network
// connection. A zero write timeout disables write deadlines.
func NewConn(conn net.Conn, writeTimeout time.Duration) *Conn {
	return &Conn{
		conn:         conn,
		r:            bufio.NewReader(conn),
		writeTimeout: writeTimeout,
	}
}

// Dial makes a single attempt to connect to the specified address.
func Dial(ctx context.Context, addr string, writeTimeout time.Duration) (*Conn, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dialing %s: %w", addr, err)
	}

	return NewConn(conn, writeTimeout), nil
}

// Send writes the message as a single frame.
func (c *Conn) Send(msg Message) error {
	data, err := Encode(msg)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.writeTimeout > 0 {
		if err := c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
			return fmt.Errorf("setting write deadline: %w", err)
		}
	}

	if err := WriteFrame(c.conn, data); err != nil {
		return fmt.Errorf("sending %s: %w", msg.Type(), err)
	}

	return nil
}

// Receive blocks until the next message arrives. Any error means the
// connection can no longer be used.
func (c *Conn) Receive() (Message, error) {
	return ReadMessage(c.r)
}

// Close closes the underlying connection, unblocking any pending Receive.
func (c *Conn) Close() error {
	return c.conn.Close()
}

// RemoteAddr returns the address of the peer.
func (c *Conn) RemoteAddr() string {
	return c.conn.RemoteAddr().String()
}
