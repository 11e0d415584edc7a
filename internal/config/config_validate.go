// StudySync - Live Course Progress Leaderboards
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/studysync

package config

import (
	"fmt"
	"net/url"
	"time"
)

// Validate checks that the configuration is within supported ranges
func (c *Config) Validate() error {
	if err := c.validateServer(); err != nil {
		return err
	}

	if err := c.validateWebSocket(); err != nil {
		return err
	}

	if err := c.validateSecurity(); err != nil {
		return err
	}

	if err := c.validateClient(); err != nil {
		return err
	}

	return c.validateLogging()
}

var validEnvironments = map[string]bool{
	"development": true,
	"staging":     true,
	"production":  true,
}

// validateServer validates server configuration
func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("HTTP_PORT must be between 1 and 65535")
	}
	if c.Server.Timeout <= 0 {
		return fmt.Errorf("HTTP_TIMEOUT must be positive")
	}
	if !validEnvironments[c.Server.Environment] {
		return fmt.Errorf("ENVIRONMENT must be one of: development, staging, production")
	}
	return nil
}

const (
	minMaxMessageSize = 1024
	maxMaxMessageSize = 16 << 20
	minPongWait       = time.Second
)

// validateWebSocket validates hub sizing and keepalive settings
func (c *Config) validateWebSocket() error {
	ws := c.WebSocket
	if ws.BroadcastBuffer < 1 {
		return fmt.Errorf("WS_BROADCAST_BUFFER must be at least 1")
	}
	if ws.ClientSendBuffer < 1 {
		return fmt.Errorf("WS_CLIENT_SEND_BUFFER must be at least 1")
	}
	if ws.MaxMessageSize < minMaxMessageSize || ws.MaxMessageSize > maxMaxMessageSize {
		return fmt.Errorf("WS_MAX_MESSAGE_SIZE must be between %d and %d", minMaxMessageSize, maxMaxMessageSize)
	}
	if ws.MessageRate <= 0 {
		return fmt.Errorf("WS_MESSAGE_RATE must be positive")
	}
	if ws.MessageBurst < 1 {
		return fmt.Errorf("WS_MESSAGE_BURST must be at least 1")
	}
	if ws.PongWait < minPongWait {
		return fmt.Errorf("WS_PONG_WAIT must be at least %v", minPongWait)
	}
	return nil
}

// validateSecurity validates security configuration
func (c *Config) validateSecurity() error {
	if err := c.validateCORS(); err != nil {
		return err
	}
	return c.validateRateLimits()
}

// validateCORS rejects the wildcard origin in production, where it would also
// let any site open leaderboard websockets.
func (c *Config) validateCORS() error {
	if c.hasWildcardCORS() && c.IsProduction() {
		return fmt.Errorf("CORS_ORIGINS=* (wildcard) is not allowed in production. " +
			"Set specific origins: CORS_ORIGINS=https://yourdomain.com " +
			"or use ENVIRONMENT=development for testing purposes")
	}
	return nil
}

// hasWildcardCORS checks if CORS is configured with wildcard origins
func (c *Config) hasWildcardCORS() bool {
	for _, origin := range c.Security.CORSOrigins {
		if origin == "*" {
			return true
		}
	}
	return false
}

// ShouldWarnAboutCORS returns true if CORS configuration should be logged at startup
func (c *Config) ShouldWarnAboutCORS() bool {
	return c.hasWildcardCORS()
}

// Rate limit constants
const (
	minRateLimitRequests = 1
	maxRateLimitRequests = 100000
	minRateLimitWindow   = time.Second
	maxRateLimitWindow   = time.Hour
)

// validateRateLimits validates rate limiting configuration bounds.
func (c *Config) validateRateLimits() error {
	if c.Security.RateLimitDisabled {
		return nil
	}

	if c.Security.RateLimitReqs < minRateLimitRequests || c.Security.RateLimitReqs > maxRateLimitRequests {
		return fmt.Errorf("RATE_LIMIT_REQUESTS must be between %d and %d", minRateLimitRequests, maxRateLimitRequests)
	}
	if c.Security.RateLimitWindow < minRateLimitWindow || c.Security.RateLimitWindow > maxRateLimitWindow {
		return fmt.Errorf("RATE_LIMIT_WINDOW must be between %v and %v", minRateLimitWindow, maxRateLimitWindow)
	}
	return nil
}

const maxQueueLimit = 1000000

// validateClient validates the syncctl section
func (c *Config) validateClient() error {
	cl := c.Client
	u, err := url.Parse(cl.ServerURL)
	if err != nil || u.Host == "" {
		return fmt.Errorf("STUDYSYNC_SERVER_URL must be an absolute URL, got %q", cl.ServerURL)
	}
	switch u.Scheme {
	case "ws", "wss", "http", "https":
	default:
		return fmt.Errorf("STUDYSYNC_SERVER_URL scheme must be ws, wss, http or https")
	}
	if cl.ReconnectDelay <= 0 {
		return fmt.Errorf("STUDYSYNC_RECONNECT_DELAY must be positive")
	}
	if cl.PollInterval <= 0 {
		return fmt.Errorf("STUDYSYNC_POLL_INTERVAL must be positive")
	}
	if cl.QueueLimit < 1 || cl.QueueLimit > maxQueueLimit {
		return fmt.Errorf("STUDYSYNC_QUEUE_LIMIT must be between 1 and %d", maxQueueLimit)
	}
	return nil
}

// validLogLevels defines the allowed log levels
var validLogLevels = map[string]bool{
	"trace": true,
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// validLogFormats defines the allowed log formats
var validLogFormats = map[string]bool{
	"json":    true,
	"console": true,
}

// validateLogging validates logging configuration
func (c *Config) validateLogging() error {
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("LOG_LEVEL must be one of: trace, debug, info, warn, error")
	}
	if c.Logging.Format != "" && !validLogFormats[c.Logging.Format] {
		return fmt.Errorf("LOG_FORMAT must be one of: json, console")
	}
	return nil
}
