/*
Package redistore implements the core server functionality for the RESP
server.

This file contains the main server implementation: server lifecycle
(Listen, Serve, Shutdown), connection acceptance and tracking, and the
per-connection read-parse-execute-write loop that drives each client.

Architecture:
The server uses a goroutine-per-connection model with shared state
protected by appropriate synchronization primitives. Each client
connection runs in its own goroutine against the server's single shared
Keyspace, enabling high concurrency while maintaining thread safety.
*/
package redistore

import (
	"bufio"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"time"

	"github.com/redistore/redistore/command"
	"github.com/redistore/redistore/keyspace"
	"github.com/redistore/redistore/resp"
)

// NewServer creates a new server instance bound to address, with a fresh
// Keyspace and sensible defaults for production use. keyspaceOpts are
// passed through to keyspace.New, letting callers override the active
// expiration sweep interval and panic handler.
func NewServer(address string, keyspaceOpts ...keyspace.Option) *Server {
	ctx, cancel := context.WithCancel(context.Background())

	server := &Server{
		Address:        address,
		ReadTimeout:    30 * time.Second,
		WriteTimeout:   30 * time.Second,
		IdleTimeout:    120 * time.Second,
		MaxConnections: 1000,
		MaxBulkLen:     resp.DefaultMaxBulkLen,
		ErrorLog:       log.New(log.Writer(), "[redistore] ", log.LstdFlags),
		Keyspace:       keyspace.New(keyspaceOpts...),
		activeConns:    make(map[*Connection]struct{}),
		ctx:            ctx,
		cancel:         cancel,
	}

	server.startIdleChecker()

	return server
}

// Listen starts listening on the configured address, creating either a
// TCP or TLS listener based on server configuration. Idempotent.
func (s *Server) Listen() error {
	if s.listener != nil {
		return nil
	}

	var err error
	if s.TLSConfig != nil {
		s.listener, err = tls.Listen("tcp", s.Address, s.TLSConfig)
	} else {
		s.listener, err = net.Listen("tcp", s.Address)
	}

	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.Address, err)
	}

	s.ErrorLog.Printf("redistore server listening on %s", s.Address)
	return nil
}

// Serve accepts connections until the server shuts down or encounters a
// fatal error. Each accepted connection is handled in its own goroutine.
func (s *Server) Serve() error {
	if s.listener == nil {
		if err := s.Listen(); err != nil {
			return err
		}
	}

	defer s.listener.Close()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if s.inShutdown.Load() {
				return nil
			}
			s.ErrorLog.Printf("Accept error: %v", err)
			continue
		}

		if tcpConn, ok := conn.(*net.TCPConn); ok {
			_ = tcpConn.SetNoDelay(true)
		}

		s.wg.Add(1)
		go func(netConn net.Conn) {
			defer s.wg.Done()

			// Check connection limit after Accept to prevent TOCTOU race.
			if n := s.connCount.Add(1); s.MaxConnections > 0 && n > int64(s.MaxConnections) {
				s.connCount.Add(-1)
				netConn.Close()
				s.ErrorLog.Printf("Connection limit reached, rejecting connection from %s", netConn.RemoteAddr())
				return
			}

			s.handleConnectionInternal(netConn)
			s.connCount.Add(-1)
		}(conn)
	}
}

// ListenAndServe is a convenience wrapper combining Listen and Serve.
func (s *Server) ListenAndServe() error {
	if err := s.Listen(); err != nil {
		return err
	}
	return s.Serve()
}

// Shutdown coordinates a clean server termination: stop accepting new
// connections, close the listener, close every active connection, run
// registered shutdown hooks, then wait for all connection goroutines to
// finish or for ctx to expire.
func (s *Server) Shutdown(ctx context.Context) error {
	s.inShutdown.Store(true)
	s.cancel()

	if s.listener != nil {
		if err := s.listener.Close(); err != nil {
			return err
		}
	}

	s.mu.RLock()
	for conn := range s.activeConns {
		conn.Close()
	}
	s.mu.RUnlock()

	s.mu.Lock()
	for _, fn := range s.onShutdown {
		fn()
	}
	s.mu.Unlock()

	s.Keyspace.Close()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}

// handleConnectionInternal runs the full lifecycle of one client
// connection in its own goroutine: read bytes into a growable buffer,
// repeatedly parse and dispatch complete frames, write and flush each
// response before accepting the next one, and clean up on EOF, I/O
// error, or protocol error.
func (s *Server) handleConnectionInternal(netConn net.Conn) {
	ctx, cancel := context.WithCancel(s.ctx)
	defer cancel()

	conn := &Connection{
		conn:     netConn,
		writer:   bufio.NewWriter(netConn),
		server:   s,
		ctx:      ctx,
		cancel:   cancel,
		lastUsed: time.Now(),
	}
	conn.buf = make([]byte, 0, initialReadBufferSize)
	conn.state.Store(int32(StateNew))

	s.mu.Lock()
	s.activeConns[conn] = struct{}{}
	s.mu.Unlock()

	defer func() {
		conn.Close()
		s.mu.Lock()
		delete(s.activeConns, conn)
		s.mu.Unlock()
	}()

	if s.ConnStateHook != nil {
		s.ConnStateHook(netConn, StateNew)
	}
	conn.setState(StateActive)
	if s.ConnStateHook != nil {
		s.ConnStateHook(netConn, StateActive)
	}

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		value, ok, err := s.nextFrame(conn)
		if err != nil {
			var protoErr *resp.ProtocolError
			if errors.As(err, &protoErr) {
				s.writeResponse(conn, resp.Err(protoErr.Error()))
			}
			return
		}
		if !ok {
			return
		}

		conn.mu.Lock()
		conn.lastUsed = time.Now()
		conn.mu.Unlock()
		s.setConnectionActive(conn)

		response := s.handleFrame(value)

		if err := s.writeResponse(conn, response); err != nil {
			s.ErrorLog.Printf("Error writing response to %s: %v", netConn.RemoteAddr(), err)
			return
		}
	}
}

// nextFrame returns the next complete RESP value on conn, reading more
// bytes from the socket as needed. ok is false when the peer closes the
// connection (EOF), and any partial frame still in the buffer is
// dropped; err is non-nil on an I/O failure or a *resp.ProtocolError from
// a malformed frame.
func (s *Server) nextFrame(conn *Connection) (resp.Value, bool, error) {
	for {
		value, consumed, perr := resp.Parse(conn.buf, s.MaxBulkLen)
		if perr == nil {
			conn.buf = conn.buf[consumed:]
			return value, true, nil
		}
		if perr != resp.ErrNeedMore {
			return resp.Value{}, false, perr
		}

		if s.ReadTimeout > 0 {
			if err := conn.conn.SetReadDeadline(time.Now().Add(s.ReadTimeout)); err != nil {
				return resp.Value{}, false, err
			}
		}

		grown, readErr := conn.readMore(conn.buf)
		conn.buf = grown
		if readErr != nil {
			if readErr == io.EOF {
				return resp.Value{}, false, nil
			}
			return resp.Value{}, false, readErr
		}
	}
}

// handleFrame parses value into a Command and executes it, recovering
// from any panic inside command execution so one bad command never tears
// down the connection's goroutine (let alone the server).
func (s *Server) handleFrame(value resp.Value) (out resp.Value) {
	defer func() {
		if r := recover(); r != nil {
			s.ErrorLog.Printf("PANIC handling command: %v", r)
			out = resp.Err("ERR internal error")
		}
	}()

	cmd, err := command.ParseCommand(value)
	if err != nil {
		return resp.Err(err.Error())
	}
	return command.Execute(cmd, s.Keyspace)
}

// writeResponse serializes and writes value to conn, flushing before
// returning so the next frame's response cannot be interleaved ahead of
// it.
func (s *Server) writeResponse(conn *Connection, value resp.Value) error {
	if s.WriteTimeout > 0 {
		if err := conn.conn.SetWriteDeadline(time.Now().Add(s.WriteTimeout)); err != nil {
			return err
		}
	}
	if _, err := conn.writer.Write(resp.Serialize(value)); err != nil {
		return err
	}
	return conn.writer.Flush()
}

// OnShutdown registers a function to call during graceful shutdown,
// before connection termination completes.
func (s *Server) OnShutdown(f func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onShutdown = append(s.onShutdown, f)
}

// GetActiveConnections returns the number of active connections.
func (s *Server) GetActiveConnections() int64 {
	return s.connCount.Load()
}

// IsShutdown reports whether the server is shutting down.
func (s *Server) IsShutdown() bool {
	return s.inShutdown.Load()
}

// TriggerIdleCheck manually triggers idle connection checking. Exposed
// for tests exercising idle timeout behavior.
func (s *Server) TriggerIdleCheck() {
	s.checkIdleConnections()
}

// startIdleChecker runs a background goroutine that checks for idle
// connections every 30 seconds until server shutdown.
func (s *Server) startIdleChecker() {
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()

		for {
			select {
			case <-s.ctx.Done():
				return
			case <-ticker.C:
				s.checkIdleConnections()
			}
		}
	}()
}

// checkIdleConnections transitions any StateActive connection that has
// not been used within IdleTimeout to StateIdle.
func (s *Server) checkIdleConnections() {
	if s.IdleTimeout <= 0 {
		return
	}

	idleThreshold := time.Now().Add(-s.IdleTimeout)

	s.mu.RLock()
	connsToCheck := make([]*Connection, 0, len(s.activeConns))
	for conn := range s.activeConns {
		connsToCheck = append(connsToCheck, conn)
	}
	s.mu.RUnlock()

	for _, conn := range connsToCheck {
		conn.mu.RLock()
		lastUsed := conn.lastUsed
		conn.mu.RUnlock()

		if conn.GetState() == StateActive && lastUsed.Before(idleThreshold) {
			conn.setState(StateIdle)
			s.ErrorLog.Printf("Connection %s marked as idle", conn.RemoteAddr())
		}
	}
}

// setConnectionActive transitions an idle connection back to active when
// it receives a new command.
func (s *Server) setConnectionActive(conn *Connection) {
	if conn.GetState() == StateIdle {
		conn.setState(StateActive)
		if s.ConnStateHook != nil {
			s.ConnStateHook(conn.conn, StateActive)
		}
	}
}
