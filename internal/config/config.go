// StudySync - Live Course Progress Leaderboards
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/studysync

package config

import (
	"fmt"
	"net"
	"strconv"
	"time"
)

// Config holds the configuration of both binaries. The aggregator server reads
// every section except Client; syncctl reads Client and Logging.
//
// Loading order (Koanf v2):
//  1. Defaults: built-in values from defaultConfig
//  2. Config File: optional YAML (config.yaml, or CONFIG_PATH)
//  3. Environment Variables: the mapped names listed in envTransformFunc
//
// Example:
//
//	cfg, err := config.Load()
//	if err != nil {
//	    logging.Fatal().Err(err).Msg("Failed to load configuration")
//	}
//	srv := &http.Server{Addr: cfg.Server.Addr()}
type Config struct {
	Server     ServerConfig     `koanf:"server"`
	WebSocket  WebSocketConfig  `koanf:"websocket"`
	Security   SecurityConfig   `koanf:"security"`
	Logging    LoggingConfig    `koanf:"logging"`
	Supervisor SupervisorConfig `koanf:"supervisor"`
	Client     ClientConfig     `koanf:"client"`
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Port        int           `koanf:"port"`
	Host        string        `koanf:"host"`
	Timeout     time.Duration `koanf:"timeout"`
	Environment string        `koanf:"environment"` // development, staging or production
}

// Addr returns the listen address in host:port form.
func (s ServerConfig) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// WebSocketConfig tunes the connection hub.
//
// Environment Variables:
//   - WS_BROADCAST_BUFFER: hub delivery queue length (default: 256)
//   - WS_CLIENT_SEND_BUFFER: per-connection outbound frames before the client is dropped (default: 256)
//   - WS_MAX_MESSAGE_SIZE: maximum inbound frame in bytes (default: 65536)
//   - WS_MESSAGE_RATE: sustained inbound frames per second per connection (default: 20)
//   - WS_MESSAGE_BURST: inbound burst allowance (default: 40)
//   - WS_PONG_WAIT: keepalive deadline; pings go out at 9/10 of it (default: 60s)
type WebSocketConfig struct {
	BroadcastBuffer  int           `koanf:"broadcast_buffer"`
	ClientSendBuffer int           `koanf:"client_send_buffer"`
	MaxMessageSize   int64         `koanf:"max_message_size"`
	MessageRate      float64       `koanf:"message_rate"`
	MessageBurst     int           `koanf:"message_burst"`
	PongWait         time.Duration `koanf:"pong_wait"`
}

// SecurityConfig holds CORS and REST rate limiting settings.
type SecurityConfig struct {
	RateLimitReqs     int           `koanf:"rate_limit_reqs"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`

	// CORSOrigins also governs which browser origins may open /ws.
	CORSOrigins    []string `koanf:"cors_origins"`
	TrustedProxies []string `koanf:"trusted_proxies"`
}

// LoggingConfig holds logging configuration.
//
// Environment Variables:
//   - LOG_LEVEL: trace, debug, info, warn, error (default: info)
//   - LOG_FORMAT: json, console (default: json)
//   - LOG_CALLER: true/false - include caller file:line (default: false)
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// SupervisorConfig mirrors supervisor.TreeConfig.
type SupervisorConfig struct {
	FailureThreshold float64       `koanf:"failure_threshold"`
	FailureDecay     float64       `koanf:"failure_decay"`
	FailureBackoff   time.Duration `koanf:"failure_backoff"`
	ShutdownTimeout  time.Duration `koanf:"shutdown_timeout"`
}

// ClientConfig configures the syncctl client and its Sync Channel.
//
// Environment Variables:
//   - STUDYSYNC_SERVER_URL: aggregator base URL (default: ws://localhost:8000)
//   - STUDYSYNC_DATA_DIR: directory of the local Badger store (default: .studysync)
//   - STUDYSYNC_CATALOG_DIR: directory searched for *_course_summary.json (default: .)
//   - STUDYSYNC_COURSE_ID: default course for commands that take none
//   - STUDYSYNC_RECONNECT_DELAY: fixed delay between connection attempts (default: 3s)
//   - STUDYSYNC_POLL_INTERVAL: leaderboard re-request interval while connected (default: 5s)
//   - STUDYSYNC_QUEUE_LIMIT: offline update queue bound (default: 1000)
//   - STUDYSYNC_SEED_ON_CONNECT: re-send local completions after connecting (default: false)
type ClientConfig struct {
	ServerURL      string        `koanf:"server_url"`
	DataDir        string        `koanf:"data_dir"`
	CatalogDir     string        `koanf:"catalog_dir"`
	CourseID       string        `koanf:"course_id"`
	ReconnectDelay time.Duration `koanf:"reconnect_delay"`
	PollInterval   time.Duration `koanf:"poll_interval"`
	QueueLimit     int           `koanf:"queue_limit"`
	SeedOnConnect  bool          `koanf:"seed_on_connect"`
}

// IsProduction reports whether the server runs with ENVIRONMENT=production.
func (c *Config) IsProduction() bool {
	return c.Server.Environment == "production"
}

// String is a one-line summary for startup logs.
func (c *Config) String() string {
	return fmt.Sprintf("addr=%s env=%s ws_rate=%.0f/s cors=%v", c.Server.Addr(), c.Server.Environment, c.WebSocket.MessageRate, c.Security.CORSOrigins)
}

// Load loads configuration using Koanf with layered sources.
func Load() (*Config, error) {
	return LoadWithKoanf()
}
