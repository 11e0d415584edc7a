// StudySync - Live Course Progress Leaderboards
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/studysync

package api

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/tomtom215/studysync/internal/config"
	"github.com/tomtom215/studysync/internal/leaderboard"
	"github.com/tomtom215/studysync/internal/logging"
	"github.com/tomtom215/studysync/internal/models"
	ws "github.com/tomtom215/studysync/internal/websocket"
)

func init() {
	logging.Init(logging.Config{Level: "info", Format: "console", Output: io.Discard})
}

type testEnv struct {
	hub    *ws.Hub
	agg    *leaderboard.Aggregator
	server *httptest.Server
}

func testConfig() *config.Config {
	return &config.Config{
		Security: config.SecurityConfig{
			RateLimitReqs:   1000,
			RateLimitWindow: time.Minute,
			CORSOrigins:     []string{"https://study.example.com"},
		},
	}
}

// setupRouter starts a hub (unless startHub is false) and serves the full router.
func setupRouter(t *testing.T, cfg *config.Config, startHub bool) *testEnv {
	t.Helper()

	hub := ws.NewHub()
	if startHub {
		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan struct{})
		go func() {
			_ = hub.RunWithContext(ctx)
			close(done)
		}()
		t.Cleanup(func() {
			cancel()
			<-done
		})
		deadline := time.Now().Add(2 * time.Second)
		for !hub.IsRunning() && time.Now().Before(deadline) {
			time.Sleep(time.Millisecond)
		}
	}

	agg := leaderboard.New(hub)
	handler := NewHandler(agg, hub, cfg)
	server := httptest.NewServer(NewRouter(handler, cfg).SetupChi())
	t.Cleanup(server.Close)

	return &testEnv{hub: hub, agg: agg, server: server}
}

func getJSON(t *testing.T, url string, v interface{}) int {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	if v != nil {
		if err := json.Unmarshal(body, v); err != nil {
			t.Fatalf("decode %s: %v", body, err)
		}
	}
	return resp.StatusCode
}

type leaderboardResponse struct {
	Status string                     `json:"status"`
	Data   models.LeaderboardSnapshot `json:"data"`
	Error  *models.APIError           `json:"error"`
}

func TestRouter_Leaderboard(t *testing.T) {
	env := setupRouter(t, testConfig(), true)

	var empty leaderboardResponse
	if code := getJSON(t, env.server.URL+"/leaderboard/C1", &empty); code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if empty.Status != "success" || empty.Data.CourseID != "C1" || empty.Data.Entries == nil || len(empty.Data.Entries) != 0 {
		t.Errorf("empty course = %+v", empty)
	}

	for _, key := range []string{"1-1", "1-2", "1-3"} {
		if _, err := env.agg.ApplyProgress(leaderboard.Update{
			UserID: "u1", CourseID: "C1", FileKey: key, IsComplete: true, Username: "Ann", Total: 10,
		}); err != nil {
			t.Fatal(err)
		}
	}

	var got leaderboardResponse
	getJSON(t, env.server.URL+"/leaderboard/C1", &got)
	if len(got.Data.Entries) != 1 {
		t.Fatalf("entries = %+v", got.Data.Entries)
	}
	if e := got.Data.Entries[0]; e.UserID != "u1" || e.Percentage != 30 || e.Username != "Ann" {
		t.Errorf("entry = %+v", e)
	}
}

func TestRouter_LeaderboardValidation(t *testing.T) {
	env := setupRouter(t, testConfig(), true)

	var resp leaderboardResponse
	code := getJSON(t, env.server.URL+"/leaderboard/bad%20id", &resp)
	if code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", code)
	}
	if resp.Status != "error" || resp.Error == nil || resp.Error.Code != "VALIDATION_ERROR" {
		t.Errorf("response = %+v", resp)
	}
}

func TestRouter_StatusAndCourses(t *testing.T) {
	env := setupRouter(t, testConfig(), true)
	env.agg.RegisterUser("lurker")
	if _, err := env.agg.ApplyProgress(leaderboard.Update{UserID: "u1", CourseID: "C9", FileKey: "1-1", IsComplete: true, Total: 4}); err != nil {
		t.Fatal(err)
	}

	var status models.ServerStatus
	if code := getJSON(t, env.server.URL+"/", &status); code != http.StatusOK {
		t.Fatalf("status code = %d", code)
	}
	if status.Status != "online" || status.TotalUsers != 2 || status.Courses != 1 || status.ActiveUsers != 0 {
		t.Errorf("status = %+v", status)
	}

	var courses struct {
		Data []models.CourseSummary `json:"data"`
	}
	getJSON(t, env.server.URL+"/api/v1/courses", &courses)
	if len(courses.Data) != 1 || courses.Data[0].CourseID != "C9" || courses.Data[0].Participants != 1 {
		t.Errorf("courses = %+v", courses.Data)
	}
}

func TestRouter_Health(t *testing.T) {
	up := setupRouter(t, testConfig(), true)
	if code := getJSON(t, up.server.URL+"/api/v1/health/live", nil); code != http.StatusOK {
		t.Errorf("live = %d", code)
	}
	if code := getJSON(t, up.server.URL+"/api/v1/health/ready", nil); code != http.StatusOK {
		t.Errorf("ready = %d", code)
	}

	down := setupRouter(t, testConfig(), false)
	var resp struct {
		Status string `json:"status"`
	}
	if code := getJSON(t, down.server.URL+"/api/v1/health/ready", &resp); code != http.StatusServiceUnavailable {
		t.Errorf("ready without hub = %d, want 503", code)
	}
	if resp.Status != "not_ready" {
		t.Errorf("status = %q", resp.Status)
	}
}

func TestRouter_NotFoundAndMetrics(t *testing.T) {
	env := setupRouter(t, testConfig(), true)

	var resp leaderboardResponse
	if code := getJSON(t, env.server.URL+"/nope", &resp); code != http.StatusNotFound {
		t.Errorf("status = %d", code)
	}
	if resp.Error == nil || resp.Error.Code != "NOT_FOUND" {
		t.Errorf("error = %+v", resp.Error)
	}

	r, err := http.Get(env.server.URL + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	defer r.Body.Close()
	body, _ := io.ReadAll(r.Body)
	if !strings.Contains(string(body), "websocket_connections") {
		t.Error("metrics output should include websocket_connections")
	}
}

func TestRouter_RateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.Security.RateLimitReqs = 2
	env := setupRouter(t, cfg, true)

	codes := make([]int, 3)
	for i := range codes {
		codes[i] = getJSON(t, env.server.URL+"/leaderboard/C1", nil)
	}
	if codes[0] != http.StatusOK || codes[1] != http.StatusOK || codes[2] != http.StatusTooManyRequests {
		t.Errorf("codes = %v, want [200 200 429]", codes)
	}
}

func wsURL(env *testEnv, userID string) string {
	return "ws" + strings.TrimPrefix(env.server.URL, "http") + "/ws/" + userID
}

func TestRouter_WebSocketHandshake(t *testing.T) {
	env := setupRouter(t, testConfig(), true)

	conn, resp, err := websocket.DefaultDialer.Dial(wsURL(env, "alice"), nil)
	if resp != nil && resp.Body != nil {
		defer resp.Body.Close()
	}
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var hello models.ServerMessage
	if err := conn.ReadJSON(&hello); err != nil {
		t.Fatal(err)
	}
	if hello.Type != models.MessageTypeConnected || hello.UserID != "alice" {
		t.Errorf("hello = %+v", hello)
	}

	if err := conn.WriteJSON(models.RequestLeaderboardMessage{Type: models.MessageTypeRequestLeaderboard, CourseID: "C1"}); err != nil {
		t.Fatal(err)
	}
	var initial models.ServerMessage
	if err := conn.ReadJSON(&initial); err != nil {
		t.Fatal(err)
	}
	if initial.Type != models.MessageTypeLeaderboardUpdate || initial.CourseID != "C1" || len(initial.Leaderboard) != 0 {
		t.Errorf("initial = %+v", initial)
	}

	if err := conn.WriteJSON(models.NewProgressUpdate("C1", "1-1", true, "Alice", 2)); err != nil {
		t.Fatal(err)
	}
	// The ranking is broadcast before the sender's ack.
	var types []string
	for len(types) < 4 {
		var msg models.ServerMessage
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatal(err)
		}
		types = append(types, msg.Type)
		if msg.Type == models.MessageTypeProgressAck {
			break
		}
	}
	if len(types) != 2 || types[0] != models.MessageTypeLeaderboardUpdate || types[1] != models.MessageTypeProgressAck {
		t.Errorf("frames = %v, want [leaderboard_update progress_ack]", types)
	}
	if snap := env.agg.Snapshot("C1"); len(snap.Entries) != 1 || snap.Entries[0].Percentage != 50 {
		t.Errorf("snapshot = %+v", snap)
	}
}

// syncBuffer is a bytes.Buffer safe for the concurrent writes of the logger.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestRouter_WebSocketLogsCarryUserID(t *testing.T) {
	var out syncBuffer
	logging.Init(logging.Config{Level: "debug", Format: "json", Output: &out})
	t.Cleanup(func() {
		logging.Init(logging.Config{Level: "info", Format: "console", Output: io.Discard})
	})

	env := setupRouter(t, testConfig(), true)
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL(env, "carol"), nil)
	if resp != nil && resp.Body != nil {
		defer resp.Body.Close()
	}
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for !strings.Contains(out.String(), "websocket upgraded") && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	for _, line := range strings.Split(out.String(), "\n") {
		if strings.Contains(line, "websocket upgraded") {
			if !strings.Contains(line, `"user_id":"carol"`) {
				t.Errorf("upgrade log missing user_id: %s", line)
			}
			return
		}
	}
	t.Fatalf("no upgrade log line in %q", out.String())
}

func TestRouter_WebSocketOrigin(t *testing.T) {
	env := setupRouter(t, testConfig(), true)

	tests := []struct {
		origin string
		ok     bool
	}{
		{"https://study.example.com", true},
		{"https://evil.example.com", false},
	}
	for _, tt := range tests {
		header := http.Header{}
		header.Set("Origin", tt.origin)
		conn, resp, err := websocket.DefaultDialer.Dial(wsURL(env, "bob"), header)
		if resp != nil && resp.Body != nil {
			resp.Body.Close()
		}
		if tt.ok {
			if err != nil {
				t.Errorf("origin %s rejected: %v", tt.origin, err)
				continue
			}
			conn.Close()
			continue
		}
		if err == nil {
			conn.Close()
			t.Errorf("origin %s should be rejected", tt.origin)
		} else if resp == nil || resp.StatusCode != http.StatusForbidden {
			t.Errorf("origin %s: expected 403, got %v", tt.origin, resp)
		}
	}
}

func TestRouter_WebSocketHubDown(t *testing.T) {
	env := setupRouter(t, testConfig(), false)

	_, resp, err := websocket.DefaultDialer.Dial(wsURL(env, "alice"), nil)
	if err == nil {
		t.Fatal("dial should fail while the hub is down")
	}
	if resp == nil || resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %v", resp)
	}
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
}

func TestCheckWebSocketOrigin(t *testing.T) {
	h := &Handler{config: testConfig()}

	tests := []struct {
		name   string
		origin string
		host   string
		want   bool
	}{
		{"no origin (sync client)", "", "lb.example.com", true},
		{"configured origin", "https://study.example.com", "lb.example.com", true},
		{"same host", "http://lb.example.com", "lb.example.com", true},
		{"foreign origin", "https://evil.example.com", "lb.example.com", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/ws/u1", nil)
			r.Host = tt.host
			if tt.origin != "" {
				r.Header.Set("Origin", tt.origin)
			}
			if got := h.checkWebSocketOrigin(r); got != tt.want {
				t.Errorf("checkWebSocketOrigin = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSanitizeLogValue(t *testing.T) {
	if got := sanitizeLogValue("a\nb\x7f"); got != `a\x0ab\x7f` {
		t.Errorf("sanitizeLogValue = %q", got)
	}
}
