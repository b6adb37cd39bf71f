package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateAcceptsDefaults(t *testing.T) {
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
	assert.NoError(t, cfg.Validate())
}

func TestValidateRejectsEmptyAddr(t *testing.T) {
	cfg := &ServerConfig{Addr: "", MaxConns: 1, MaxBulkLen: 1, SweepIntervalMs: 1, LogLevel: "info"}
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsBadMaxConns(t *testing.T) {
	cfg := &ServerConfig{Addr: "127.0.0.1:6379", MaxConns: 0, MaxBulkLen: 1, SweepIntervalMs: 1, LogLevel: "info"}
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsBadLogLevel(t *testing.T) {
	cfg := &ServerConfig{Addr: "127.0.0.1:6379", MaxConns: 1, MaxBulkLen: 1, SweepIntervalMs: 1, LogLevel: "verbose"}
	assert.Error(t, cfg.Validate())
}

func TestValidateAllowsZeroTimeouts(t *testing.T) {
	cfg := &ServerConfig{
		Addr:            "127.0.0.1:6379",
		MaxConns:        1,
		MaxBulkLen:      1,
		SweepIntervalMs: 1,
		LogLevel:        "info",
		ReadTimeoutSecs: 0,
		WriteTimeoutSecs: 0,
	}
	assert.NoError(t, cfg.Validate())
}
