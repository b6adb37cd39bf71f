/*
Package redistore implements client connection management for the
RESP server.

This file provides the Connection type and associated methods for
managing individual client connections throughout their lifecycle:
connection creation (StateNew), active command processing (StateActive),
idle waiting between commands (StateIdle), and graceful termination
(StateClosed).

The per-connection read path owns a growable byte buffer fed by
net.Conn.Read and drained by repeated resp.Parse calls, rather than a
blocking bufio.Reader walking the wire format itself — this keeps framing
decisions inside the resp package, testable without a network, and keeps
the connection's only responsibility here to be moving bytes and command
results across that boundary.
*/
package redistore

import (
	"bufio"
	"context"
	"net"
	"sync"
	"sync/atomic"
	"time"
)

// initialReadBufferSize is the starting capacity of a connection's read
// buffer; it grows via append as needed for larger frames.
const initialReadBufferSize = 4096

// Connection represents a client connection to the server.
type Connection struct {
	conn      net.Conn           // Underlying network connection
	buf       []byte             // Growable read buffer owned by this connection
	writer    *bufio.Writer      // Buffered writer for response batching
	server    *Server            // Parent server reference
	state     atomic.Int32       // Current connection state (atomic)
	closeOnce sync.Once          // Ensures single cleanup execution
	ctx       context.Context    // Connection context for cancellation
	cancel    context.CancelFunc // Context cancellation function
	mu        sync.RWMutex       // Protects mutable fields
	lastUsed  time.Time          // Last activity timestamp for idle detection
}

// setState updates the connection state and notifies the server's
// ConnStateHook, if configured.
func (c *Connection) setState(state ConnState) {
	c.state.Store(int32(state))
	if c.server.ConnStateHook != nil {
		c.server.ConnStateHook(c.conn, state)
	}
}

// Close performs thread-safe connection cleanup exactly once: marks the
// connection closed, cancels its context, and closes the underlying
// network connection. Safe to call multiple times and from multiple
// goroutines.
func (c *Connection) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.setState(StateClosed)
		c.cancel()
		err = c.conn.Close()
	})
	return err
}

// GetState returns the current connection state without triggering any
// transitions or side effects.
func (c *Connection) GetState() ConnState {
	return ConnState(c.state.Load())
}

// RemoteAddr returns the client's network address.
func (c *Connection) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}

// LocalAddr returns the server's local network address for this
// connection.
func (c *Connection) LocalAddr() net.Addr {
	return c.conn.LocalAddr()
}

// readMore reads one chunk from the connection's socket and appends it to
// buf, returning the grown buffer. An error (including io.EOF on a clean
// peer close) is returned unwrapped so the caller can distinguish EOF
// from other I/O failures.
func (c *Connection) readMore(buf []byte) ([]byte, error) {
	chunk := make([]byte, initialReadBufferSize)
	n, err := c.conn.Read(chunk)
	if n > 0 {
		buf = append(buf, chunk[:n]...)
	}
	return buf, err
}
