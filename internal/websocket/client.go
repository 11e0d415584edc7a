// StudySync - Live Course Progress Leaderboards
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/studysync

package websocket

import (
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/tomtom215/studysync/internal/logging"
	"github.com/tomtom215/studysync/internal/metrics"
)

const writeWait = 10 * time.Second

// clientIDCounter gives every client a monotonically increasing id so the hub
// can deliver in a stable order.
var clientIDCounter atomic.Uint64

// Handler processes inbound frames of one client. It runs on the client's read
// goroutine.
type Handler interface {
	HandleFrame(c *Client, data []byte)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(c *Client, data []byte)

// HandleFrame calls f(c, data).
func (f HandlerFunc) HandleFrame(c *Client, data []byte) { f(c, data) }

// Client is a middleman between one websocket connection and the hub.
type Client struct {
	id      uint64
	userID  string
	hub     *Hub
	conn    *websocket.Conn
	handler Handler
	limiter *rate.Limiter
	log     zerolog.Logger

	send chan []byte
	done chan struct{}

	// courses is owned by the hub goroutine.
	courses map[string]struct{}
}

// NewClient creates a client for userID. conn may be nil in tests that never
// start the pumps.
func NewClient(hub *Hub, conn *websocket.Conn, userID string, handler Handler) *Client {
	id := clientIDCounter.Add(1)

	var limiter *rate.Limiter
	if hub.cfg.MessageRate > 0 {
		limiter = rate.NewLimiter(rate.Limit(hub.cfg.MessageRate), hub.cfg.MessageBurst)
	}

	return &Client{
		id:      id,
		userID:  userID,
		hub:     hub,
		conn:    conn,
		handler: handler,
		limiter: limiter,
		log:     logging.ForConnection(userID, id),
		send:    make(chan []byte, hub.cfg.ClientSendBuffer),
		done:    make(chan struct{}),
		courses: make(map[string]struct{}),
	}
}

// ID returns the client's unique identifier.
func (c *Client) ID() uint64 {
	return c.id
}

// UserID returns the user id from the connection path.
func (c *Client) UserID() string {
	return c.userID
}

// Logger returns the connection-scoped logger.
func (c *Client) Logger() *zerolog.Logger {
	return &c.log
}

// wait blocks until another inbound frame fits the rate limit. Reads pause
// meanwhile, so a fast sender is slowed by TCP backpressure and nothing is
// dropped. It returns false if the client is closed first.
func (c *Client) wait() bool {
	if c.limiter == nil {
		return true
	}
	r := c.limiter.Reserve()
	delay := r.Delay()
	if delay == 0 {
		return true
	}
	metrics.WSInboundThrottled.Inc()
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-c.done:
		r.Cancel()
		return false
	}
}

func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.Unregister <- c:
		case <-c.done:
		}
		_ = c.conn.Close()
	}()

	pongWait := c.hub.cfg.PongWait
	c.conn.SetReadLimit(c.hub.cfg.MaxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.log.Error().Err(err).Msg("failed to set read deadline")
		return
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		msgType, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				c.log.Warn().Err(err).Msg("unexpected websocket close error")
				metrics.WSErrors.WithLabelValues("unexpected_close").Inc()
			}
			return
		}
		if msgType != websocket.TextMessage {
			metrics.RecordInbound("binary", metrics.ResultMalformed)
			continue
		}
		if !c.wait() {
			return
		}
		c.handler.HandleFrame(c, data)
	}
}

func (c *Client) writePump() {
	pingPeriod := (c.hub.cfg.PongWait * 9) / 10
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				c.log.Error().Err(err).Msg("failed to set write deadline")
				return
			}

			if !ok {
				// The hub closed the channel.
				_ = c.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				c.log.Debug().Err(err).Msg("failed to write message")
				metrics.WSErrors.WithLabelValues("write").Inc()
				return
			}

		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				c.log.Error().Err(err).Msg("failed to set write deadline for ping")
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Start begins reading and writing for the client.
func (c *Client) Start() {
	go c.writePump()
	go c.readPump()
}
