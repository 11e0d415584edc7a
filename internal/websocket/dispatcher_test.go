// StudySync - Live Course Progress Leaderboards
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/studysync

package websocket

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/tomtom215/studysync/internal/leaderboard"
	"github.com/tomtom215/studysync/internal/metrics"
	"github.com/tomtom215/studysync/internal/models"
)

type testServer struct {
	hub    *Hub
	agg    *leaderboard.Aggregator
	server *httptest.Server
}

// setupWebSocketServer serves /ws/{userId} the same way the API router does.
func setupWebSocketServer(t *testing.T, cfg HubConfig) *testServer {
	t.Helper()

	hub := NewHubWithConfig(cfg)
	startHub(t, hub)
	agg := leaderboard.New(hub)
	disp := NewDispatcher(hub, agg)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := strings.TrimPrefix(r.URL.Path, "/ws/")
		upgrader := websocket.Upgrader{}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		client := NewClient(hub, conn, userID, disp)
		hub.Register <- client
		disp.Welcome(client)
		client.Start()
	}))
	t.Cleanup(server.Close)

	return &testServer{hub: hub, agg: agg, server: server}
}

// dialWebSocket connects as userID and consumes the connected frame.
func dialWebSocket(t *testing.T, ts *testServer, userID string) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(ts.server.URL, "http") + "/ws/" + userID
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if resp != nil && resp.Body != nil {
		defer resp.Body.Close()
	}
	if err != nil {
		t.Fatalf("Failed to dial websocket: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })

	hello := readFrame(t, conn)
	if hello.Type != models.MessageTypeConnected || hello.UserID != userID {
		t.Fatalf("handshake = %+v", hello)
	}
	if hello.Message != ConnectedMessageText {
		t.Errorf("handshake message = %q", hello.Message)
	}
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) models.ServerMessage {
	t.Helper()
	if err := conn.SetReadDeadline(time.Now().Add(2 * time.Second)); err != nil {
		t.Fatal(err)
	}
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var msg models.ServerMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("decode %s: %v", data, err)
	}
	return msg
}

func writeFrame(t *testing.T, conn *websocket.Conn, v interface{}) {
	t.Helper()
	if err := conn.WriteJSON(v); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func requestLeaderboard(courseID string) models.RequestLeaderboardMessage {
	return models.RequestLeaderboardMessage{Type: models.MessageTypeRequestLeaderboard, CourseID: courseID}
}

func TestDispatcher_ProgressFlow(t *testing.T) {
	ts := setupWebSocketServer(t, DefaultHubConfig())
	alice := dialWebSocket(t, ts, "alice")
	bob := dialWebSocket(t, ts, "bob")

	writeFrame(t, alice, requestLeaderboard("C1"))
	if msg := readFrame(t, alice); msg.Type != models.MessageTypeLeaderboardUpdate || len(msg.Leaderboard) != 0 {
		t.Fatalf("initial leaderboard = %+v", msg)
	}

	// Bob is not subscribed; he only gets his ack. Alice gets the broadcast.
	writeFrame(t, bob, models.NewProgressUpdate("C1", "1-1", true, "Bob", 10))
	if msg := readFrame(t, bob); msg.Type != models.MessageTypeProgressAck || msg.FileKey != "1-1" || msg.CourseID != "C1" {
		t.Fatalf("bob ack = %+v", msg)
	}
	update := readFrame(t, alice)
	if update.Type != models.MessageTypeLeaderboardUpdate || len(update.Leaderboard) != 1 {
		t.Fatalf("alice broadcast = %+v", update)
	}
	if e := update.Leaderboard[0]; e.UserID != "bob" || e.Username != "Bob" || e.Percentage != 10 {
		t.Errorf("entry = %+v", e)
	}

	// A subscribed sender sees the broadcast before its ack.
	for i := 1; i <= 3; i++ {
		writeFrame(t, alice, models.NewProgressUpdate("C1", "1-"+strconv.Itoa(i), true, "Alice", 10))
		if msg := readFrame(t, alice); msg.Type != models.MessageTypeLeaderboardUpdate {
			t.Fatalf("expected broadcast first, got %+v", msg)
		}
		if msg := readFrame(t, alice); msg.Type != models.MessageTypeProgressAck {
			t.Fatalf("expected ack second, got %+v", msg)
		}
	}

	writeFrame(t, bob, requestLeaderboard("C1"))
	final := readFrame(t, bob)
	if len(final.Leaderboard) != 2 {
		t.Fatalf("final leaderboard = %+v", final)
	}
	if top := final.Leaderboard[0]; top.UserID != "alice" || top.Completed != 3 || top.Percentage != 30 {
		t.Errorf("top entry = %+v", top)
	}
}

func TestDispatcher_SetUsernameAndStudyItems(t *testing.T) {
	ts := setupWebSocketServer(t, DefaultHubConfig())
	conn := dialWebSocket(t, ts, "u1")

	writeFrame(t, conn, models.SetUsernameMessage{Type: models.MessageTypeSetUsername, Username: "  Grace "})
	if msg := readFrame(t, conn); msg.Type != models.MessageTypeUsernameUpdated || msg.Username != "Grace" {
		t.Fatalf("rename ack = %+v", msg)
	}

	writeFrame(t, conn, models.SyncStudyItemsMessage{
		Type: models.MessageTypeSyncStudyItems, CourseID: "C1", FileKeys: []string{"1-1", "1-2"},
	})
	if msg := readFrame(t, conn); msg.Type != models.MessageTypeStudyItemsSynced || msg.Count != 2 || msg.CourseID != "C1" {
		t.Fatalf("study ack = %+v", msg)
	}
	if got := ts.agg.StudyItems("u1", "C1"); len(got) != 2 {
		t.Errorf("StudyItems = %v", got)
	}

	// Name set before any progress is used for the first entry.
	writeFrame(t, conn, models.ProgressUpdateMessage{
		Type: models.MessageTypeProgressUpdate, CourseID: "C1", FileKey: "1-1", IsComplete: boolPtr(true),
	})
	_ = readFrame(t, conn) // ack
	if e := ts.agg.Snapshot("C1").Entries[0]; e.Username != "Grace" {
		t.Errorf("username = %q", e.Username)
	}
}

func boolPtr(b bool) *bool { return &b }

func TestDispatcher_BadFramesKeepConnection(t *testing.T) {
	ts := setupWebSocketServer(t, DefaultHubConfig())
	conn := dialWebSocket(t, ts, "u1")

	malformed := metrics.WSMessagesReceived.WithLabelValues("none", metrics.ResultMalformed)
	unknown := metrics.WSMessagesReceived.WithLabelValues("bogus", metrics.ResultUnknown)
	invalid := metrics.WSMessagesReceived.WithLabelValues(models.MessageTypeProgressUpdate, metrics.ResultInvalid)
	blank := metrics.WSMessagesReceived.WithLabelValues(models.MessageTypeSetUsername, metrics.ResultInvalid)
	m0, u0, i0, b0 := testutil.ToFloat64(malformed), testutil.ToFloat64(unknown), testutil.ToFloat64(invalid), testutil.ToFloat64(blank)

	frames := []string{
		`not json`,
		`{"type":"bogus"}`,
		`{"type":"progress_update","courseId":"C1","fileKey":"1-1"}`,
		`{"type":"set_username","username":"   "}`,
	}
	for _, f := range frames {
		if err := conn.WriteMessage(websocket.TextMessage, []byte(f)); err != nil {
			t.Fatalf("write %s: %v", f, err)
		}
	}

	writeFrame(t, conn, requestLeaderboard("C1"))
	if msg := readFrame(t, conn); msg.Type != models.MessageTypeLeaderboardUpdate {
		t.Fatalf("connection should still answer, got %+v", msg)
	}

	if d := testutil.ToFloat64(malformed) - m0; d != 1 {
		t.Errorf("malformed delta = %v", d)
	}
	if d := testutil.ToFloat64(unknown) - u0; d != 1 {
		t.Errorf("unknown delta = %v", d)
	}
	if d := testutil.ToFloat64(invalid) - i0; d != 1 {
		t.Errorf("invalid delta = %v", d)
	}
	if d := testutil.ToFloat64(blank) - b0; d != 1 {
		t.Errorf("blank username delta = %v", d)
	}
	if s := ts.agg.Stats(); s.Courses != 0 {
		t.Errorf("bad frames mutated state: %+v", s)
	}
}

// Frames past the burst are paced rather than dropped, so a client flushing
// a long offline queue loses nothing.
func TestDispatcher_RateLimitPacesWithoutDropping(t *testing.T) {
	cfg := DefaultHubConfig()
	cfg.MessageRate = 100
	cfg.MessageBurst = 2
	ts := setupWebSocketServer(t, cfg)
	conn := dialWebSocket(t, ts, "u1")

	before := testutil.ToFloat64(metrics.WSInboundThrottled)

	const n = 20
	for i := 0; i < n; i++ {
		writeFrame(t, conn, models.NewProgressUpdate("C1", "1-"+strconv.Itoa(i), true, "Ada", n))
	}
	for i := 0; i < n; i++ {
		msg := readFrame(t, conn)
		if msg.Type != models.MessageTypeProgressAck || msg.FileKey != "1-"+strconv.Itoa(i) {
			t.Fatalf("reply %d = %+v", i, msg)
		}
	}

	e := ts.agg.Snapshot("C1").Entries
	if len(e) != 1 || e[0].Completed != n || e[0].Percentage != 100 {
		t.Errorf("entries = %+v, want all %d updates applied", e, n)
	}
	if testutil.ToFloat64(metrics.WSInboundThrottled)-before == 0 {
		t.Error("expected frames past the burst to be throttled")
	}
}

func TestDispatcher_DisconnectDropsSubscriptionsKeepsState(t *testing.T) {
	ts := setupWebSocketServer(t, DefaultHubConfig())
	conn := dialWebSocket(t, ts, "u1")

	writeFrame(t, conn, requestLeaderboard("C1"))
	_ = readFrame(t, conn)
	writeFrame(t, conn, models.NewProgressUpdate("C1", "1-1", true, "Ada", 2))
	_ = readFrame(t, conn) // broadcast
	_ = readFrame(t, conn) // ack
	waitFor(t, "subscription", func() bool { return ts.hub.SubscriberCount("C1") == 1 })

	_ = conn.Close()
	waitFor(t, "disconnect", func() bool { return ts.hub.GetClientCount() == 0 })
	if ts.hub.SubscriberCount("C1") != 0 {
		t.Error("subscriptions should be cleared on disconnect")
	}
	if e := ts.agg.Snapshot("C1").Entries; len(e) != 1 || e[0].Percentage != 50 {
		t.Errorf("state after disconnect = %+v", e)
	}
}
