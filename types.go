/*
Package redistore implements a Redis-compatible (RESP) in-memory key/value
server.

This file defines the core, protocol-independent types shared by the rest
of the package: connection lifecycle state and the Server configuration
and runtime struct. The wire-level value type lives in the resp
subpackage; the command model lives in the command subpackage.

Connection Management:
The ConnState type tracks client connection lifecycle from initial
connection through active usage to graceful shutdown.

Server Architecture:
The Server struct encapsulates configuration, connection management, and
keyspace access with support for TLS, timeouts, connection limits, and
graceful shutdown.

Usage Example:

	server := redistore.NewServer(":6379")
	server.ConnStateHook = func(conn net.Conn, state redistore.ConnState) {
		log.Printf("Connection %s state changed to %v", conn.RemoteAddr(), state)
	}
	log.Fatal(server.ListenAndServe())
*/
package redistore

import (
	"context"
	"crypto/tls"
	"log"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redistore/redistore/keyspace"
)

/*
Connection State Management

ConnState tracks the lifecycle of client connections to enable proper
resource management and monitoring. State transitions follow this
pattern:

StateNew -> StateActive -> StateIdle -> StateClosed

	↑         ↓
	└─────────┘
  (can cycle between Active/Idle)
*/

// ConnState represents the state of a client connection.
type ConnState int

const (
	StateNew    ConnState = iota // Initial connection established
	StateActive                  // Connection actively processing commands
	StateIdle                    // Connection idle, waiting for commands
	StateClosed                  // Connection terminated and cleaned up
)

// Server represents the Redis-compatible server.
type Server struct {
	// Network Configuration
	Address   string      // Server bind address (e.g., ":6379", "127.0.0.1:6379")
	TLSConfig *tls.Config // Optional TLS configuration for secure connections

	// Timeout Configuration
	ReadTimeout  time.Duration // Maximum time to wait for client requests
	WriteTimeout time.Duration // Maximum time to wait for response writes
	IdleTimeout  time.Duration // Inactivity after which a connection is marked StateIdle (it is not closed)

	// Resource Limits
	MaxConnections int // Maximum number of concurrent client connections
	MaxBulkLen     int // Ceiling on a single BulkString payload (0 disables)

	// Monitoring and Logging
	ErrorLog      *log.Logger               // Error logging destination
	ConnStateHook func(net.Conn, ConnState) // Connection state change callback

	// Keyspace is the shared keyspace every connection on this server
	// dispatches commands against.
	Keyspace *keyspace.Keyspace

	// Server Runtime State (internal)
	listener    net.Listener             // Network listener
	activeConns map[*Connection]struct{} // Active connection tracking
	connCount   atomic.Int64             // Current connection count (atomic)
	inShutdown  atomic.Bool              // Shutdown flag (atomic)
	mu          sync.RWMutex             // Protects shared state
	onShutdown  []func()                 // Shutdown callback functions
	ctx         context.Context          // Server context for cancellation
	cancel      context.CancelFunc       // Context cancellation function
	wg          sync.WaitGroup           // Wait group for goroutine coordination
}
