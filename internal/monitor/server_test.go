package monitor

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/kharnhold/tacticsrl/internal/auth"
)

func testServer(stats StatsSource, onStop func()) (*Server, *auth.JWTManager) {
	jwtMgr := auth.NewJWTManager("test-secret")
	return NewServer(jwtMgr, stats, onStop, zerolog.Nop()), jwtMgr
}

func TestHandleHealthzReportsSubscriberCountAndStats(t *testing.T) {
	s, _ := testServer(func() any { return map[string]int{"games": 5} }, nil)
	srv := httptest.NewServer(s.Handler("*"))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("expected status ok, got %v", body["status"])
	}
	if body["subscribers"].(float64) != 0 {
		t.Errorf("expected 0 subscribers, got %v", body["subscribers"])
	}
	if _, ok := body["stats"]; !ok {
		t.Error("expected a stats field when a StatsSource is configured")
	}
}

func TestHandleStopRejectsMissingToken(t *testing.T) {
	s, _ := testServer(nil, nil)
	srv := httptest.NewServer(s.Handler("*"))
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/admin/stop", "application/json", nil)
	if err != nil {
		t.Fatalf("POST /admin/stop: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected 401 without a token, got %d", resp.StatusCode)
	}
}

func TestHandleStopInvokesCallbackWithValidToken(t *testing.T) {
	var called bool
	s, jwtMgr := testServer(nil, func() { called = true })
	srv := httptest.NewServer(s.Handler("*"))
	defer srv.Close()

	token, err := jwtMgr.GenerateAdminToken("op-1")
	if err != nil {
		t.Fatalf("GenerateAdminToken: %v", err)
	}

	req, err := http.NewRequest(http.MethodPost, srv.URL+"/admin/stop", nil)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 with a valid token, got %d", resp.StatusCode)
	}
	if !called {
		t.Error("expected onStop to be invoked")
	}

	var body map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["status"] != "stopping" {
		t.Errorf("expected status stopping, got %v", body["status"])
	}
}

func TestHandleWSUpgradeAndSeedStats(t *testing.T) {
	s, _ := testServer(func() any { return "seed" }, nil)
	srv := httptest.NewServer(s.Handler("*"))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()

	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}

	var event StatsEvent
	if err := json.Unmarshal(msg, &event); err != nil {
		t.Fatalf("unmarshal seeded event: %v", err)
	}
	if event.Type != "stats" || event.Data != "seed" {
		t.Errorf("unexpected seeded event: %+v", event)
	}
}

func TestBroadcastReachesConnectedSubscriber(t *testing.T) {
	s, _ := testServer(nil, nil)
	srv := httptest.NewServer(s.Handler("*"))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()

	s.Broadcast(map[string]int{"turn": 3})

	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}
	var event StatsEvent
	if err := json.Unmarshal(msg, &event); err != nil {
		t.Fatalf("unmarshal broadcast event: %v", err)
	}
	if event.Type != "stats" {
		t.Errorf("expected a stats event, got %+v", event)
	}
}
