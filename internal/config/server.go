// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package config

import (
	"time"
)

// ServerConfig holds HTTP listener tuning. It is env-only.
type ServerConfig struct {
	ListenAddr      string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	MaxHeaderBytes  int
}

// ParseServerConfig reads listener tuning from the environment.
func ParseServerConfig(listenAddr string) ServerConfig {
	return ServerConfig{
		ListenAddr:      listenAddr,
		ReadTimeout:     ParseDuration("WF_SERVER_READ_TIMEOUT", 10*time.Second),
		WriteTimeout:    ParseDuration("WF_SERVER_WRITE_TIMEOUT", 30*time.Second),
		IdleTimeout:     ParseDuration("WF_SERVER_IDLE_TIMEOUT", 120*time.Second),
		ShutdownTimeout: ParseDuration("WF_SERVER_SHUTDOWN_TIMEOUT", 15*time.Second),
		MaxHeaderBytes:  ParseInt("WF_SERVER_MAX_HEADER_BYTES", 1<<20),
	}
}
