package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/pthm-cable/touchfield/config"
	"github.com/pthm-cable/touchfield/device"
	"github.com/pthm-cable/touchfield/haptics"
)

func newTestServer(t *testing.T) (*Server, *haptics.Params, *httptest.Server) {
	t.Helper()
	params, err := haptics.NewParams(config.Defaults().Surface)
	if err != nil {
		t.Fatal(err)
	}
	var box haptics.TelemetryBox
	box.Publish(haptics.Telemetry{State: haptics.Connected, Ticks: 7, Force: device.Vec3f{0, 0, 1}})

	s := New(params, box.Load, time.Hour, slog.New(slog.DiscardHandler))
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return s, params, ts
}

func dial(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg Message
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read: %v", err)
	}
	return msg
}

func TestInitialMessages(t *testing.T) {
	_, _, ts := newTestServer(t)
	conn := dial(t, ts)

	first := readMessage(t, conn)
	if first.Type != TypeParams || first.Params == nil || first.Params.Softness == nil {
		t.Fatalf("expected params first, got %+v", first)
	}
	if *first.Params.Softness != config.Defaults().Surface.Softness {
		t.Errorf("unexpected softness %g", *first.Params.Softness)
	}

	second := readMessage(t, conn)
	if second.Type != TypeTelemetry || second.Telemetry == nil {
		t.Fatalf("expected telemetry second, got %+v", second)
	}
	if second.Telemetry.Ticks != 7 || second.Telemetry.State != haptics.Connected {
		t.Errorf("unexpected telemetry %+v", second.Telemetry)
	}
}

func TestTelemetryStateEncodedByName(t *testing.T) {
	_, _, ts := newTestServer(t)
	conn := dial(t, ts)
	readMessage(t, conn)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"state":"connected"`) {
		t.Errorf("expected state by name, got %s", data)
	}
}

func TestUpdateApplied(t *testing.T) {
	_, params, ts := newTestServer(t)
	conn := dial(t, ts)
	readMessage(t, conn)
	readMessage(t, conn)

	if err := conn.WriteJSON(map[string]any{"softness": 0.07, "force_requested": true}); err != nil {
		t.Fatal(err)
	}
	reply := readMessage(t, conn)
	if reply.Type != TypeParams {
		t.Fatalf("expected params reply, got %+v", reply)
	}
	if got := *reply.Params.Softness; got != 0.07 {
		t.Errorf("expected echoed softness 0.07, got %g", got)
	}
	if params.Softness.Load() != 0.07 || !params.ForceRequested.Load() {
		t.Error("expected update stored in params")
	}
}

func TestInvalidUpdateRejected(t *testing.T) {
	_, params, ts := newTestServer(t)
	conn := dial(t, ts)
	readMessage(t, conn)
	readMessage(t, conn)

	before := params.KineticFriction.Load()
	if err := conn.WriteJSON(map[string]any{"kinetic_friction": 5.0}); err != nil {
		t.Fatal(err)
	}
	reply := readMessage(t, conn)
	if reply.Type != TypeError || reply.Error == "" {
		t.Fatalf("expected error reply, got %+v", reply)
	}
	if params.KineticFriction.Load() != before {
		t.Error("expected rejected update not to be stored")
	}
}

func TestBroadcast(t *testing.T) {
	s, _, ts := newTestServer(t)
	a := dial(t, ts)
	b := dial(t, ts)
	for _, c := range []*websocket.Conn{a, b} {
		readMessage(t, c)
		readMessage(t, c)
	}

	deadline := time.Now().Add(2 * time.Second)
	for s.Clients() != 2 {
		if time.Now().After(deadline) {
			t.Fatalf("expected 2 clients, got %d", s.Clients())
		}
		time.Sleep(time.Millisecond)
	}

	s.Broadcast()
	for _, c := range []*websocket.Conn{a, b} {
		msg := readMessage(t, c)
		if msg.Type != TypeTelemetry {
			t.Errorf("expected telemetry broadcast, got %+v", msg)
		}
	}
}

func TestHealthz(t *testing.T) {
	_, _, ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	var body struct {
		Status string `json:"status"`
		State  string `json:"state"`
		Ticks  uint64 `json:"ticks"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body.Status != "ok" || body.State != "connected" || body.Ticks != 7 {
		t.Errorf("unexpected health %+v", body)
	}
}
