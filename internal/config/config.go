// Package config provides configuration management for the redistore
// server.
//
// Configuration is resolved in this order, highest precedence first:
//  1. Environment variables, prefixed REDISTORE_
//  2. Command-line flags
//  3. Defaults
package config

import (
	"flag"
	"fmt"
	"os"
	"strconv"
)

// Default configuration values.
const (
	DefaultAddr = "127.0.0.1:6379"
	// DefaultMaxConns is a large backstop, not an active connection
	// policy: the core protocol has no connection cap.
	DefaultMaxConns = 10000
	// DefaultReadTimeoutSecs of 0 disables read deadlines, matching "no
	// per-request timeouts" — operators who want one set it explicitly.
	DefaultReadTimeoutSecs  = 0
	DefaultWriteTimeoutSecs = 0
	DefaultIdleTimeoutSecs  = 120
	DefaultMaxBulkLen       = 512 * 1024 * 1024
	DefaultSweepIntervalMs  = 100
	DefaultLogLevel         = "info"
)

// ServerConfig holds every configurable knob of a redistore server
// instance.
type ServerConfig struct {
	Addr             string
	MaxConns         int
	ReadTimeoutSecs  int
	WriteTimeoutSecs int
	IdleTimeoutSecs  int
	MaxBulkLen       int
	SweepIntervalMs  int
	LogLevel         string
}

// LoadServerConfig builds a ServerConfig from command-line flags and
// REDISTORE_-prefixed environment variables, layered over defaults.
//
// Flags:
//
//	-addr, -max-conns, -read-timeout, -write-timeout, -idle-timeout,
//	-max-bulk-len, -sweep-interval, -log-level
//
// Environment variables:
//
//	REDISTORE_ADDR, REDISTORE_MAX_CONNS, REDISTORE_READ_TIMEOUT,
//	REDISTORE_SWEEP_INTERVAL_MS, REDISTORE_LOG_LEVEL
func LoadServerConfig() *ServerConfig {
	cfg := &ServerConfig{
		Addr:             DefaultAddr,
		MaxConns:         DefaultMaxConns,
		ReadTimeoutSecs:  DefaultReadTimeoutSecs,
		WriteTimeoutSecs: DefaultWriteTimeoutSecs,
		IdleTimeoutSecs:  DefaultIdleTimeoutSecs,
		MaxBulkLen:       DefaultMaxBulkLen,
		SweepIntervalMs:  DefaultSweepIntervalMs,
		LogLevel:         DefaultLogLevel,
	}

	flag.StringVar(&cfg.Addr, "addr", cfg.Addr, "Server bind address (host:port)")
	flag.IntVar(&cfg.MaxConns, "max-conns", cfg.MaxConns, "Maximum concurrent connections")
	flag.IntVar(&cfg.ReadTimeoutSecs, "read-timeout", cfg.ReadTimeoutSecs, "Read timeout in seconds (0 disables)")
	flag.IntVar(&cfg.WriteTimeoutSecs, "write-timeout", cfg.WriteTimeoutSecs, "Write timeout in seconds (0 disables)")
	flag.IntVar(&cfg.IdleTimeoutSecs, "idle-timeout", cfg.IdleTimeoutSecs, "Idle connection timeout in seconds")
	flag.IntVar(&cfg.MaxBulkLen, "max-bulk-len", cfg.MaxBulkLen, "Maximum bulk string length in bytes")
	flag.IntVar(&cfg.SweepIntervalMs, "sweep-interval", cfg.SweepIntervalMs, "Active expiration sweep interval in milliseconds")
	flag.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level (debug, info, warn, error)")
	flag.Parse()

	if addr := os.Getenv("REDISTORE_ADDR"); addr != "" {
		cfg.Addr = addr
	}
	if maxConns := os.Getenv("REDISTORE_MAX_CONNS"); maxConns != "" {
		if mc, err := strconv.Atoi(maxConns); err == nil {
			cfg.MaxConns = mc
		}
	}
	if readTimeout := os.Getenv("REDISTORE_READ_TIMEOUT"); readTimeout != "" {
		if rt, err := strconv.Atoi(readTimeout); err == nil {
			cfg.ReadTimeoutSecs = rt
		}
	}
	if sweepMs := os.Getenv("REDISTORE_SWEEP_INTERVAL_MS"); sweepMs != "" {
		if sm, err := strconv.Atoi(sweepMs); err == nil {
			cfg.SweepIntervalMs = sm
		}
	}
	if logLevel := os.Getenv("REDISTORE_LOG_LEVEL"); logLevel != "" {
		cfg.LogLevel = logLevel
	}

	return cfg
}

// Validate reports the first invalid field found, or nil if cfg is
// usable.
func (c *ServerConfig) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("addr must not be empty")
	}
	if c.MaxConns < 1 {
		return fmt.Errorf("max connections must be positive: %d", c.MaxConns)
	}
	if c.ReadTimeoutSecs < 0 {
		return fmt.Errorf("read timeout must be non-negative: %d", c.ReadTimeoutSecs)
	}
	if c.WriteTimeoutSecs < 0 {
		return fmt.Errorf("write timeout must be non-negative: %d", c.WriteTimeoutSecs)
	}
	if c.IdleTimeoutSecs < 0 {
		return fmt.Errorf("idle timeout must be non-negative: %d", c.IdleTimeoutSecs)
	}
	if c.MaxBulkLen < 1 {
		return fmt.Errorf("max bulk len must be positive: %d", c.MaxBulkLen)
	}
	if c.SweepIntervalMs < 1 {
		return fmt.Errorf("sweep interval must be positive: %d", c.SweepIntervalMs)
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("invalid log level: %s", c.LogLevel)
	}

	return nil
}
