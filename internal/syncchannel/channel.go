// StudySync - Live Course Progress Leaderboards
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/studysync

// Package syncchannel is the client side of the leaderboard protocol. A Channel
// keeps at most one websocket connection to the aggregator, reconnects after a
// fixed delay forever, queues progress updates while offline and replays them in
// order once connected.
//
// Every public operation returns promptly; network writes are bounded by
// Config.WriteTimeout. All writes are serialized by the channel's mutex.
package syncchannel

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/tomtom215/studysync/internal/logging"
	"github.com/tomtom215/studysync/internal/metrics"
	"github.com/tomtom215/studysync/internal/models"
)

var (
	// ErrClosed is returned by operations on a closed Channel.
	ErrClosed = errors.New("syncchannel: closed")
	// ErrNoCourse is returned when a course-scoped operation has no current course.
	ErrNoCourse = errors.New("syncchannel: no current course")
	// ErrNotConnected is returned by operations that are not queued offline.
	ErrNotConnected = errors.New("syncchannel: not connected")
	// ErrAlreadyStarted is returned by a second call to Start.
	ErrAlreadyStarted = errors.New("syncchannel: already started")
)

// Identity supplies the local user. identity.Store implements it.
type Identity interface {
	UserID(ctx context.Context) (string, error)
	Username(ctx context.Context) (string, error)
	SetUsername(ctx context.Context, name string) (bool, error)
}

// CompletionSource lists completed fileKeys for seeding. progress.Store
// implements it.
type CompletionSource interface {
	CompletedKeys(ctx context.Context, courseID string) ([]string, error)
}

// TotalFunc returns the number of materials in a course, or 0 if unknown.
type TotalFunc func(courseID string) int

// Config controls a Channel.
type Config struct {
	// ServerURL is the aggregator base URL (ws://, wss://, http:// or https://).
	ServerURL        string
	CourseID         string
	ReconnectDelay   time.Duration
	PollInterval     time.Duration
	QueueLimit       int
	SeedOnConnect    bool
	HandshakeTimeout time.Duration
	WriteTimeout     time.Duration
	ReadTimeout      time.Duration
}

// DefaultConfig returns the protocol defaults: reconnect after 3s, poll every 5s.
func DefaultConfig() Config {
	return Config{
		ServerURL:        "ws://localhost:8000",
		ReconnectDelay:   3 * time.Second,
		PollInterval:     5 * time.Second,
		QueueLimit:       1000,
		HandshakeTimeout: 10 * time.Second,
		WriteTimeout:     10 * time.Second,
		ReadTimeout:      60 * time.Second,
	}
}

func (c *Config) applyDefaults() {
	def := DefaultConfig()
	if c.ReconnectDelay <= 0 {
		c.ReconnectDelay = def.ReconnectDelay
	}
	if c.PollInterval <= 0 {
		c.PollInterval = def.PollInterval
	}
	if c.QueueLimit <= 0 {
		c.QueueLimit = def.QueueLimit
	}
	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = def.HandshakeTimeout
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = def.WriteTimeout
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = def.ReadTimeout
	}
}

// Option configures optional collaborators.
type Option func(*Channel)

// WithTotalFunc sets the source of the total attached to outgoing updates.
func WithTotalFunc(fn TotalFunc) Option {
	return func(ch *Channel) { ch.total = fn }
}

// WithCompletionSource enables seeding from the local progress store.
func WithCompletionSource(src CompletionSource) Option {
	return func(ch *Channel) { ch.completions = src }
}

// Channel manages one logical connection to the aggregator.
type Channel struct {
	cfg         Config
	identity    Identity
	completions CompletionSource
	total       TotalFunc
	dialer      *websocket.Dialer

	// mu guards connection state and serializes writes.
	mu       sync.Mutex
	state    State
	conn     *websocket.Conn
	courseID string
	userID   string
	username string
	queue    *pendingQueue
	closed   bool

	// lbMu guards the last snapshot of the current course; the reader takes
	// only this lock so it never waits on a write.
	lbMu        sync.RWMutex
	lbCourse    string
	leaderboard models.LeaderboardSnapshot
	hasBoard    bool

	listenerMu    sync.RWMutex
	onLeaderboard []func(models.LeaderboardSnapshot)
	onState       []func(State)

	connLost  chan *websocket.Conn
	stop      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
	cancel    context.CancelFunc
	started   bool
}

// New creates a disconnected Channel. Call Start to begin connecting.
func New(cfg Config, identity Identity, opts ...Option) *Channel {
	cfg.applyDefaults()
	ch := &Channel{
		cfg:      cfg,
		identity: identity,
		total:    func(string) int { return 0 },
		dialer: &websocket.Dialer{
			HandshakeTimeout: cfg.HandshakeTimeout,
			Proxy:            websocket.DefaultDialer.Proxy,
		},
		state:    Disconnected,
		courseID: cfg.CourseID,
		lbCourse: cfg.CourseID,
		queue:    newPendingQueue(cfg.QueueLimit),
		connLost: make(chan *websocket.Conn, 4),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(ch)
	}
	return ch
}

// OnLeaderboard registers fn for every received snapshot, for any course.
// Callers filter by CourseID. fn runs on the reader goroutine.
func (ch *Channel) OnLeaderboard(fn func(models.LeaderboardSnapshot)) {
	ch.listenerMu.Lock()
	defer ch.listenerMu.Unlock()
	ch.onLeaderboard = append(ch.onLeaderboard, fn)
}

// OnStateChange registers fn for state transitions.
func (ch *Channel) OnStateChange(fn func(State)) {
	ch.listenerMu.Lock()
	defer ch.listenerMu.Unlock()
	ch.onState = append(ch.onState, fn)
}

// Start loads the identity and starts the connection loop. The loop runs until
// ctx is canceled or Close is called.
func (ch *Channel) Start(ctx context.Context) error {
	userID, err := ch.identity.UserID(ctx)
	if err != nil {
		return fmt.Errorf("load user id: %w", err)
	}
	username, err := ch.identity.Username(ctx)
	if err != nil {
		return fmt.Errorf("load username: %w", err)
	}

	ch.mu.Lock()
	if ch.closed {
		ch.mu.Unlock()
		return ErrClosed
	}
	if ch.started {
		ch.mu.Unlock()
		return ErrAlreadyStarted
	}
	runCtx, cancel := context.WithCancel(ctx)
	ch.started = true
	ch.cancel = cancel
	ch.userID = userID
	ch.username = username
	ch.mu.Unlock()

	go ch.run(runCtx)
	return nil
}

func (ch *Channel) run(ctx context.Context) {
	defer close(ch.done)
	defer ch.cancel()

	log := logging.WithComponent("syncchannel")

	reconnect := time.NewTimer(0)
	defer reconnect.Stop()

	var poll *time.Ticker
	var pollC <-chan time.Time
	stopPoll := func() {
		if poll != nil {
			poll.Stop()
			poll, pollC = nil, nil
		}
	}
	defer stopPoll()

	for {
		select {
		case <-ctx.Done():
			ch.shutdown()
			return

		case <-ch.stop:
			ch.shutdown()
			return

		case <-reconnect.C:
			if err := ch.connect(ctx); err != nil {
				log.Debug().Err(err).Dur("retry_in", ch.cfg.ReconnectDelay).Msg("connect failed")
				reconnect.Reset(ch.cfg.ReconnectDelay)
				continue
			}
			poll = time.NewTicker(ch.cfg.PollInterval)
			pollC = poll.C

		case conn := <-ch.connLost:
			if !ch.release(conn) {
				continue
			}
			stopPoll()
			log.Info().Dur("retry_in", ch.cfg.ReconnectDelay).Msg("connection lost, reconnecting")
			reconnect.Reset(ch.cfg.ReconnectDelay)

		case <-pollC:
			_ = ch.RequestLeaderboardUpdate()
		}
	}
}

func (ch *Channel) endpoint(userID string) (string, error) {
	u, err := url.Parse(ch.cfg.ServerURL)
	if err != nil {
		return "", fmt.Errorf("parse server url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported server url scheme %q", u.Scheme)
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/ws/" + userID
	u.RawPath = ""
	return u.String(), nil
}

// connect dials, flushes the offline queue and requests the current course.
func (ch *Channel) connect(ctx context.Context) error {
	metrics.SyncChannelReconnects.Inc()

	ch.mu.Lock()
	if ch.closed {
		ch.mu.Unlock()
		return ErrClosed
	}
	userID := ch.userID
	changed := ch.setStateLocked(Connecting)
	ch.mu.Unlock()
	if changed {
		ch.notifyState(Connecting)
	}

	wsURL, err := ch.endpoint(userID)
	if err == nil {
		var conn *websocket.Conn
		conn, err = ch.dial(ctx, wsURL)
		if err == nil {
			return ch.establish(ctx, conn)
		}
	}

	ch.mu.Lock()
	changed = ch.setStateLocked(Disconnected)
	ch.mu.Unlock()
	if changed {
		ch.notifyState(Disconnected)
	}
	return err
}

func (ch *Channel) dial(ctx context.Context, wsURL string) (*websocket.Conn, error) {
	conn, resp, err := ch.dialer.DialContext(ctx, wsURL, nil)
	if resp != nil && resp.Body != nil {
		defer resp.Body.Close()
	}
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("websocket dial failed (HTTP %d): %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("websocket dial: %w", err)
	}
	return conn, nil
}

func (ch *Channel) establish(ctx context.Context, conn *websocket.Conn) error {
	readTimeout := ch.cfg.ReadTimeout
	_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
	conn.SetPingHandler(func(appData string) error {
		_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
		err := conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(ch.cfg.WriteTimeout))
		if errors.Is(err, websocket.ErrCloseSent) {
			return nil
		}
		var ne net.Error
		if errors.As(err, &ne) && ne.Timeout() {
			return nil
		}
		return err
	})
	go ch.readLoop(conn)

	ch.mu.Lock()
	if ch.closed {
		ch.mu.Unlock()
		_ = conn.Close()
		return ErrClosed
	}
	ch.conn = conn

	pending := ch.queue.drain()
	flushed := make(map[string]struct{}, len(pending))
	for i, u := range pending {
		msg := models.NewProgressUpdate(u.CourseID, u.FileKey, u.IsComplete, ch.username, ch.total(u.CourseID))
		if err := ch.writeLocked(msg); err != nil {
			ch.queue.requeue(pending[i:])
			ch.abortLocked()
			ch.mu.Unlock()
			ch.notifyState(Disconnected)
			return fmt.Errorf("flush pending updates: %w", err)
		}
		if u.CourseID == ch.courseID {
			flushed[u.FileKey] = struct{}{}
		}
		metrics.SyncChannelFlushedUpdates.Inc()
	}

	if ch.courseID != "" {
		if err := ch.writeLocked(requestLeaderboard(ch.courseID)); err != nil {
			ch.abortLocked()
			ch.mu.Unlock()
			ch.notifyState(Disconnected)
			return fmt.Errorf("request leaderboard: %w", err)
		}
		if ch.cfg.SeedOnConnect && ch.completions != nil {
			if err := ch.seedLocked(ctx, flushed); err != nil {
				ch.abortLocked()
				ch.mu.Unlock()
				ch.notifyState(Disconnected)
				return fmt.Errorf("seed progress: %w", err)
			}
		}
	}

	ch.setStateLocked(Connected)
	ch.mu.Unlock()

	metrics.SetSyncChannelConnected(true)
	logging.Info().
		Str("component", "syncchannel").
		Str("course_id", ch.CourseID()).
		Int("flushed", len(pending)).
		Msg("connected to leaderboard server")
	ch.notifyState(Connected)
	return nil
}

// seedLocked re-sends every locally completed file of the current course that
// the flush did not already cover.
func (ch *Channel) seedLocked(ctx context.Context, skip map[string]struct{}) error {
	keys, err := ch.completions.CompletedKeys(ctx, ch.courseID)
	if err != nil {
		logging.Warn().Err(err).Str("component", "syncchannel").Msg("cannot read local progress for seeding")
		return nil
	}
	total := ch.total(ch.courseID)
	for _, k := range keys {
		if _, ok := skip[k]; ok {
			continue
		}
		if err := ch.writeLocked(models.NewProgressUpdate(ch.courseID, k, true, ch.username, total)); err != nil {
			return err
		}
	}
	return nil
}

// abortLocked tears down a connection that failed during establish. ch.mu must
// be held.
func (ch *Channel) abortLocked() {
	if ch.conn != nil {
		_ = ch.conn.Close()
		ch.conn = nil
	}
	ch.setStateLocked(Disconnected)
	metrics.SetSyncChannelConnected(false)
}

// release clears conn if it is still current. It reports whether it was.
func (ch *Channel) release(conn *websocket.Conn) bool {
	ch.mu.Lock()
	if ch.conn != conn || ch.conn == nil {
		ch.mu.Unlock()
		return false
	}
	_ = ch.conn.Close()
	ch.conn = nil
	changed := ch.setStateLocked(Disconnected)
	ch.mu.Unlock()

	metrics.SetSyncChannelConnected(false)
	if changed {
		ch.notifyState(Disconnected)
	}
	return true
}

func (ch *Channel) shutdown() {
	ch.mu.Lock()
	ch.closed = true
	conn := ch.conn
	ch.conn = nil
	changed := ch.setStateLocked(Disconnected)
	ch.mu.Unlock()

	if conn != nil {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		_ = conn.Close()
	}
	metrics.SetSyncChannelConnected(false)
	if changed {
		ch.notifyState(Disconnected)
	}
}

func (ch *Channel) readLoop(conn *websocket.Conn) {
	defer func() {
		select {
		case ch.connLost <- conn:
		case <-ch.done:
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(ch.cfg.ReadTimeout))
		ch.handleFrame(data)
	}
}

func (ch *Channel) handleFrame(data []byte) {
	var msg models.ServerMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		logging.Debug().Err(err).Str("component", "syncchannel").Msg("dropping malformed server frame")
		return
	}

	switch msg.Type {
	case models.MessageTypeLeaderboardUpdate:
		entries := msg.Leaderboard
		if entries == nil {
			entries = []models.LeaderboardEntry{}
		}
		snap := models.LeaderboardSnapshot{CourseID: msg.CourseID, Entries: entries}

		ch.lbMu.Lock()
		if snap.CourseID == ch.lbCourse {
			ch.leaderboard = snap
			ch.hasBoard = true
		}
		ch.lbMu.Unlock()

		ch.listenerMu.RLock()
		listeners := slices.Clone(ch.onLeaderboard)
		ch.listenerMu.RUnlock()
		for _, fn := range listeners {
			fn(snap)
		}

	case models.MessageTypeConnected, models.MessageTypeProgressAck,
		models.MessageTypeUsernameUpdated, models.MessageTypeStudyItemsSynced:
		logging.Debug().Str("component", "syncchannel").Str("type", msg.Type).Msg("server acknowledgement")

	default:
		logging.Debug().Str("component", "syncchannel").Str("type", msg.Type).Msg("ignoring unknown server frame")
	}
}

func (ch *Channel) setStateLocked(s State) bool {
	if ch.state == s {
		return false
	}
	ch.state = s
	return true
}

func (ch *Channel) notifyState(s State) {
	ch.listenerMu.RLock()
	listeners := slices.Clone(ch.onState)
	ch.listenerMu.RUnlock()
	for _, fn := range listeners {
		fn(s)
	}
}

// writeLocked sends v as one text frame. ch.mu must be held.
func (ch *Channel) writeLocked(v interface{}) error {
	if ch.conn == nil {
		return ErrNotConnected
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode frame: %w", err)
	}
	if err := ch.conn.SetWriteDeadline(time.Now().Add(ch.cfg.WriteTimeout)); err != nil {
		return err
	}
	return ch.conn.WriteMessage(websocket.TextMessage, data)
}

// failLocked marks the live connection broken after a write error. The reader
// notices the closed socket and the run loop schedules the reconnect.
func (ch *Channel) failLocked(err error) bool {
	logging.Warn().Err(err).Str("component", "syncchannel").Msg("write failed, dropping connection")
	if ch.conn != nil {
		_ = ch.conn.Close()
	}
	metrics.SetSyncChannelConnected(false)
	return ch.setStateLocked(Disconnected)
}

func requestLeaderboard(courseID string) models.RequestLeaderboardMessage {
	return models.RequestLeaderboardMessage{Type: models.MessageTypeRequestLeaderboard, CourseID: courseID}
}
