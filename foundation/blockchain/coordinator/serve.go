package coordinator

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/ardanlabs/powpool/foundation/blockchain/peer"
	"github.com/ardanlabs/powpool/foundation/blockchain/protocol"
)

// ErrServerClosed is returned by Serve after a call to Shutdown.
var ErrServerClosed = errors.New("coordinator: server closed")

// Serve accepts worker connections on the listener and handles each one on
// its own goroutine. Serve blocks until the listener fails, the context is
// cancelled or Shutdown is called.
func (c *Coordinator) Serve(ctx context.Context, listener net.Listener) error {
	c.connMu.Lock()
	if c.shut {
		c.connMu.Unlock()
		listener.Close()
		return ErrServerClosed
	}
	c.listener = listener
	c.connMu.Unlock()

	c.evHandler("coordinator: Serve: listening on %s", listener.Addr())

	// Close the listener when the context is cancelled so Accept returns.
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			c.Shutdown()
		case <-stop:
		}
	}()

	for {
		nc, err := listener.Accept()
		if err != nil {
			if c.isShutdown() {
				return ErrServerClosed
			}
			return fmt.Errorf("accepting connection: %w", err)
		}

		conn := protocol.NewConn(nc, c.writeTimeout)
		if !c.track(conn) {
			conn.Close()
			return ErrServerClosed
		}

		go func() {
			defer c.wg.Done()
			defer c.untrack(conn)

			c.handleConn(conn)
		}()
	}
}

// Shutdown stops accepting connections, closes every worker connection and
// waits for their goroutines to finish.
func (c *Coordinator) Shutdown() {
	c.connMu.Lock()
	if c.shut {
		c.connMu.Unlock()
		c.wg.Wait()
		return
	}

	c.shut = true

	if c.listener != nil {
		c.listener.Close()
	}

	for conn := range c.conns {
		conn.Close()
	}
	c.connMu.Unlock()

	c.evHandler("coordinator: Shutdown: waiting for connections to close")
	c.wg.Wait()
	c.evHandler("coordinator: Shutdown: complete")
}

// handleConn runs the lifecycle of a single worker connection. The first
// message must be a registration, after that the worker submits blocks until
// the connection is closed or a frame can't be read.
func (c *Coordinator) handleConn(conn *protocol.Conn) {
	addr := conn.RemoteAddr()
	defer conn.Close()

	msg, err := conn.Receive()
	if err != nil {
		c.evHandler("coordinator: handleConn: %s: closed before registering: %s", addr, err)
		return
	}

	reg, ok := msg.(protocol.Register)
	if !ok {
		c.evHandler("coordinator: handleConn: %s: WARNING: first message was %s, expected %s", addr, msg.Type(), protocol.TypeRegister)
		return
	}

	p := peer.New(reg.NodeID, addr, conn)
	defer c.Unregister(p)

	if err := c.Register(p); err != nil {
		c.evHandler("coordinator: handleConn: node[%s]: ERROR: %s", p.NodeID, err)
		return
	}

	for {
		msg, err := conn.Receive()
		if err != nil {
			c.evHandler("coordinator: handleConn: node[%s]: disconnected: %s", p.NodeID, err)
			return
		}

		switch m := msg.(type) {
		case protocol.BlockMined:
			if err := c.SubmitBlock(p.NodeID, m); err != nil {
				c.evHandler("coordinator: handleConn: node[%s]: submission rejected: %s", p.NodeID, err)
			}

		default:
			c.evHandler("coordinator: handleConn: node[%s]: ignoring %s message", p.NodeID, msg.Type())
		}
	}
}

func (c *Coordinator) track(conn *protocol.Conn) bool {
	c.connMu.Lock()
	defer c.connMu.Unlock()

	if c.shut {
		return false
	}

	c.conns[conn] = struct{}{}
	c.wg.Add(1)
	return true
}

func (c *Coordinator) untrack(conn *protocol.Conn) {
	c.connMu.Lock()
	defer c.connMu.Unlock()

	delete(c.conns, conn)
}

func (c *Coordinator) isShutdown() bool {
	c.connMu.Lock()
	defer c.connMu.Unlock()

	return c.shut
}
