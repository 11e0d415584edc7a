// StudySync - Live Course Progress Leaderboards
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/studysync

package websocket

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/studysync/internal/logging"
	"github.com/tomtom215/studysync/internal/metrics"
	"github.com/tomtom215/studysync/internal/models"
)

// ShutdownReason identifies why the hub is shutting down.
type ShutdownReason string

const (
	// ShutdownReasonContextCanceled indicates the parent context was canceled.
	ShutdownReasonContextCanceled ShutdownReason = "context_canceled"

	// ShutdownReasonContextDeadline indicates the context deadline was exceeded.
	ShutdownReasonContextDeadline ShutdownReason = "context_deadline"
)

// HubConfig sizes the hub and its clients.
type HubConfig struct {
	BroadcastBuffer  int
	ClientSendBuffer int
	MaxMessageSize   int64
	// MessageRate is the sustained inbound frames per second per connection.
	// Faster senders are paced, not dropped. Zero disables limiting.
	MessageRate  float64
	MessageBurst int
	PongWait     time.Duration
}

// DefaultHubConfig returns production defaults.
func DefaultHubConfig() HubConfig {
	return HubConfig{
		BroadcastBuffer:  256,
		ClientSendBuffer: 256,
		MaxMessageSize:   64 * 1024,
		MessageRate:      20,
		MessageBurst:     40,
		PongWait:         60 * time.Second,
	}
}

// delivery is one encoded frame travelling through the hub. A delivery with a
// target goes to that client only; otherwise it goes to every subscriber of
// courseID.
type delivery struct {
	msgType   string
	courseID  string
	target    *Client
	subscribe bool
	payload   []byte
}

// Hub owns the set of connected clients and their course subscriptions. Only
// the Run goroutine mutates membership or closes a client's send channel.
type Hub struct {
	cfg HubConfig

	clients       map[*Client]bool
	subscriptions map[string]map[*Client]struct{}
	users         map[string]int

	broadcast  chan delivery
	Register   chan *Client
	Unregister chan *Client
	mu         sync.RWMutex

	running atomic.Bool
}

// NewHub creates a hub with default sizing.
func NewHub() *Hub {
	return NewHubWithConfig(DefaultHubConfig())
}

// NewHubWithConfig creates a hub. Zero fields fall back to defaults.
func NewHubWithConfig(cfg HubConfig) *Hub {
	def := DefaultHubConfig()
	if cfg.BroadcastBuffer <= 0 {
		cfg.BroadcastBuffer = def.BroadcastBuffer
	}
	if cfg.ClientSendBuffer <= 0 {
		cfg.ClientSendBuffer = def.ClientSendBuffer
	}
	if cfg.MaxMessageSize <= 0 {
		cfg.MaxMessageSize = def.MaxMessageSize
	}
	if cfg.PongWait <= 0 {
		cfg.PongWait = def.PongWait
	}
	if cfg.MessageBurst <= 0 {
		cfg.MessageBurst = def.MessageBurst
	}

	return &Hub{
		cfg:           cfg,
		clients:       make(map[*Client]bool),
		subscriptions: make(map[string]map[*Client]struct{}),
		users:         make(map[string]int),
		broadcast:     make(chan delivery, cfg.BroadcastBuffer),
		Register:      make(chan *Client),
		Unregister:    make(chan *Client),
	}
}

// RunWithContext runs the hub until ctx is canceled, then closes every client
// and returns ctx.Err(). It is designed to run under a suture supervisor.
//
// Lifecycle events are drained before deliveries so a client registered just
// before a delivery is addressed by it.
func (h *Hub) RunWithContext(ctx context.Context) error {
	h.running.Store(true)
	defer h.running.Store(false)

	for {
		select {
		case <-ctx.Done():
			h.logGracefulShutdown(ctx)
			return ctx.Err()
		default:
		}

		select {
		case client := <-h.Register:
			h.addClient(client)
			continue
		case client := <-h.Unregister:
			h.removeClient(client)
			continue
		default:
		}

		select {
		case <-ctx.Done():
			h.logGracefulShutdown(ctx)
			return ctx.Err()
		case client := <-h.Register:
			h.addClient(client)
		case client := <-h.Unregister:
			h.removeClient(client)
		case d := <-h.broadcast:
			h.deliver(d)
		}
	}
}

func (h *Hub) addClient(c *Client) {
	h.mu.Lock()
	h.clients[c] = true
	h.users[c.userID]++
	total := len(h.clients)
	h.mu.Unlock()

	metrics.WSConnections.Set(float64(total))
	c.log.Info().Int("total_clients", total).Msg("websocket client connected")
}

func (h *Hub) removeClient(c *Client) {
	h.mu.Lock()
	removed := h.dropLocked(c)
	total := len(h.clients)
	h.mu.Unlock()

	if removed {
		metrics.WSConnections.Set(float64(total))
		c.log.Info().Int("total_clients", total).Msg("websocket client disconnected")
	}
}

// dropLocked removes c and its subscriptions and closes its send channel.
// h.mu must be held for writing.
func (h *Hub) dropLocked(c *Client) bool {
	if _, ok := h.clients[c]; !ok {
		return false
	}
	delete(h.clients, c)
	close(c.send)
	close(c.done)

	for courseID := range c.courses {
		if subs, ok := h.subscriptions[courseID]; ok {
			delete(subs, c)
			metrics.WSSubscriptions.Dec()
			if len(subs) == 0 {
				delete(h.subscriptions, courseID)
			}
		}
	}
	c.courses = nil

	if h.users[c.userID] <= 1 {
		delete(h.users, c.userID)
	} else {
		h.users[c.userID]--
	}
	return true
}

func (h *Hub) deliver(d delivery) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if d.target != nil {
		if _, ok := h.clients[d.target]; !ok {
			return
		}
		if d.subscribe {
			h.subscribeLocked(d.target, d.courseID)
		}
		h.sendLocked(d.target, d)
		return
	}

	subs := h.subscriptions[d.courseID]
	if len(subs) == 0 {
		return
	}

	// Client ids are monotonic, so sorting gives a stable delivery order.
	clients := make([]*Client, 0, len(subs))
	for c := range subs {
		clients = append(clients, c)
	}
	sort.Slice(clients, func(i, j int) bool { return clients[i].id < clients[j].id })

	for _, c := range clients {
		h.sendLocked(c, d)
	}
}

func (h *Hub) subscribeLocked(c *Client, courseID string) {
	if _, ok := c.courses[courseID]; ok {
		return
	}
	c.courses[courseID] = struct{}{}
	subs, ok := h.subscriptions[courseID]
	if !ok {
		subs = make(map[*Client]struct{})
		h.subscriptions[courseID] = subs
	}
	subs[c] = struct{}{}
	metrics.WSSubscriptions.Inc()
}

// sendLocked queues d on c, dropping c if its buffer is full.
func (h *Hub) sendLocked(c *Client, d delivery) {
	select {
	case c.send <- d.payload:
		metrics.WSMessagesSent.WithLabelValues(d.msgType).Inc()
	default:
		c.log.Warn().Str("message_type", d.msgType).Msg("client send buffer full, dropping client")
		metrics.LeaderboardBroadcastDrops.WithLabelValues("slow_client").Inc()
		h.dropLocked(c)
		metrics.WSConnections.Set(float64(len(h.clients)))
	}
}

func (h *Hub) enqueue(d delivery) bool {
	select {
	case h.broadcast <- d:
		return true
	default:
		logging.Warn().
			Str("component", "websocket-hub").
			Str("message_type", d.msgType).
			Str("course_id", d.courseID).
			Msg("broadcast channel full, dropping message")
		metrics.LeaderboardBroadcastDrops.WithLabelValues("hub_full").Inc()
		return false
	}
}

// PublishSnapshot broadcasts snap to every subscriber of its course. It never
// blocks, so it is safe to call while holding the aggregator's course lock.
func (h *Hub) PublishSnapshot(snap models.LeaderboardSnapshot) {
	payload, err := json.Marshal(snap.Message())
	if err != nil {
		logging.Error().Err(err).Str("course_id", snap.CourseID).Msg("failed to encode leaderboard snapshot")
		return
	}
	if h.enqueue(delivery{msgType: models.MessageTypeLeaderboardUpdate, courseID: snap.CourseID, payload: payload}) {
		metrics.LeaderboardBroadcasts.WithLabelValues("broadcast").Inc()
	}
}

// SendSnapshot subscribes c to snap's course and queues snap for c alone.
func (h *Hub) SendSnapshot(c *Client, snap models.LeaderboardSnapshot) {
	payload, err := json.Marshal(snap.Message())
	if err != nil {
		logging.Error().Err(err).Str("course_id", snap.CourseID).Msg("failed to encode leaderboard snapshot")
		return
	}
	d := delivery{
		msgType:   models.MessageTypeLeaderboardUpdate,
		courseID:  snap.CourseID,
		target:    c,
		subscribe: true,
		payload:   payload,
	}
	if h.enqueue(d) {
		metrics.LeaderboardBroadcasts.WithLabelValues("directed").Inc()
	}
}

// Send queues an arbitrary message for c alone.
func (h *Hub) Send(c *Client, msgType string, v interface{}) {
	payload, err := json.Marshal(v)
	if err != nil {
		logging.Error().Err(err).Str("message_type", msgType).Msg("failed to encode message")
		return
	}
	h.enqueue(delivery{msgType: msgType, target: c, payload: payload})
}

func (h *Hub) logGracefulShutdown(ctx context.Context) {
	clientCount := h.GetClientCount()
	h.closeAllClients()

	logging.Info().
		Str("component", "websocket-hub").
		Str("reason", string(getShutdownReason(ctx))).
		Int("clients_closed", clientCount).
		Msg("websocket hub stopped")
}

func getShutdownReason(ctx context.Context) ShutdownReason {
	switch ctx.Err() {
	case context.DeadlineExceeded:
		return ShutdownReasonContextDeadline
	default:
		return ShutdownReasonContextCanceled
	}
}

// closeAllClients closes clients in id order.
func (h *Hub) closeAllClients() {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	sort.Slice(clients, func(i, j int) bool {
		return clients[i].id < clients[j].id
	})

	for _, client := range clients {
		h.dropLocked(client)
	}
	metrics.WSConnections.Set(0)
}

// IsRunning reports whether RunWithContext is active.
func (h *Hub) IsRunning() bool {
	return h.running.Load()
}

// RegisterClient hands c to the hub, giving up when ctx ends first.
func (h *Hub) RegisterClient(ctx context.Context, c *Client) error {
	select {
	case h.Register <- c:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// GetClientCount returns the number of connected clients.
func (h *Hub) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ActiveUsers returns the number of distinct user ids with a live connection.
func (h *Hub) ActiveUsers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.users)
}

// SubscriberCount returns how many connections are subscribed to courseID.
func (h *Hub) SubscriberCount(courseID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscriptions[courseID])
}
