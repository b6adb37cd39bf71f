// Command redistore-server runs a standalone redistore instance: it loads
// configuration from flags and environment variables, starts the
// listener, and shuts down gracefully on SIGINT/SIGTERM.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redistore/redistore"
	"github.com/redistore/redistore/internal/config"
	"github.com/redistore/redistore/keyspace"
)

func main() {
	cfg := config.LoadServerConfig()

	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	log.Printf("Starting redistore server with config: %+v", cfg)

	sweepInterval := time.Duration(cfg.SweepIntervalMs) * time.Millisecond
	srv := redistore.NewServer(cfg.Addr, keyspace.WithSweepInterval(sweepInterval))
	srv.MaxConnections = cfg.MaxConns
	srv.ReadTimeout = time.Duration(cfg.ReadTimeoutSecs) * time.Second
	srv.WriteTimeout = time.Duration(cfg.WriteTimeoutSecs) * time.Second
	srv.IdleTimeout = time.Duration(cfg.IdleTimeoutSecs) * time.Second
	srv.MaxBulkLen = cfg.MaxBulkLen

	go func() {
		if err := srv.Serve(); err != nil {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	<-sigChan
	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("Error during shutdown: %v", err)
		os.Exit(1)
	}

	log.Println("Server stopped")
}
