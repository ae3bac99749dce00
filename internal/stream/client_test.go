package stream

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/leocder07/tavily-stock-research-sub002/internal/router"
)

var upgrader = websocket.Upgrader{}

func wsURL(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func testConfig(url string) Config {
	cfg := DefaultConfig()
	cfg.URL = url
	cfg.ReconnectBaseDelay = 10 * time.Millisecond
	cfg.ReconnectMaxDelay = 50 * time.Millisecond
	return cfg
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(msg)
}

func TestClient_ReceivesEnvelopes(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer secret" {
			t.Errorf("Authorization = %q, want bearer token", got)
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"market_update","data":{"symbol":"AAPL","price":150}}`))
		conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"news_update","data":{"id":"n1"}}`))

		// Hold the connection open until the client goes away.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer server.Close()

	received := make(chan router.Envelope, 16)
	cfg := testConfig(wsURL(server))
	cfg.Token = "secret"
	c := New(cfg, func(env router.Envelope) { received <- env }, nil)
	c.Start(context.Background())
	defer c.Close()

	first := <-received
	if first.Type != router.TypeMarketUpdate {
		t.Errorf("first envelope type = %q, want market_update", first.Type)
	}
	second := <-received
	if second.Type != router.TypeNewsUpdate {
		t.Errorf("second envelope type = %q, want news_update", second.Type)
	}

	waitFor(t, func() bool { return c.Stats().Messages == 2 }, "Messages counter never reached 2")
	if got := c.State(); got != StateConnected {
		t.Errorf("State = %s, want connected", StateName(got))
	}
}

func TestClient_MalformedFrameDropped(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		conn.WriteMessage(websocket.TextMessage, []byte(`{not json`))
		conn.WriteMessage(websocket.TextMessage, []byte(`{"data":{}}`)) // no type
		conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"ai_signal","data":{"id":"s1"}}`))

		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer server.Close()

	received := make(chan router.Envelope, 16)
	c := New(testConfig(wsURL(server)), func(env router.Envelope) { received <- env }, nil)
	c.Start(context.Background())
	defer c.Close()

	env := <-received
	if env.Type != router.TypeAISignal {
		t.Errorf("delivered type = %q, want ai_signal", env.Type)
	}

	waitFor(t, func() bool { return c.Stats().Malformed == 2 }, "Malformed counter never reached 2")
	if got := c.Stats().Messages; got != 1 {
		t.Errorf("Messages = %d, want 1", got)
	}
}

func TestClient_Reconnects(t *testing.T) {
	var conns int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}

		n := atomic.AddInt32(&conns, 1)
		if n == 1 {
			// First connection dies immediately.
			conn.Close()
			return
		}

		defer conn.Close()
		conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"market_update","data":{"symbol":"AAPL"}}`))
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer server.Close()

	received := make(chan router.Envelope, 16)
	c := New(testConfig(wsURL(server)), func(env router.Envelope) { received <- env }, nil)
	c.Start(context.Background())
	defer c.Close()

	select {
	case env := <-received:
		if env.Type != router.TypeMarketUpdate {
			t.Errorf("type = %q, want market_update", env.Type)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no envelope after reconnect")
	}

	if got := c.Stats().Reconnects; got < 1 {
		t.Errorf("Reconnects = %d, want >= 1", got)
	}
}

func TestClient_RetriesWhenBackendDown(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "not yet", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	c := New(testConfig(wsURL(server)), func(router.Envelope) {}, nil)
	c.Start(context.Background())

	// Client must keep cycling between connecting and disconnected
	// without giving up; Close must still return promptly.
	time.Sleep(100 * time.Millisecond)
	c.Close()

	if got := c.State(); got != StateDisconnected {
		t.Errorf("State after Close = %s, want disconnected", StateName(got))
	}
}

func TestClient_ContextCancelStops(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	c := New(testConfig(wsURL(server)), func(router.Envelope) {}, nil)
	c.Start(ctx)

	waitFor(t, func() bool { return c.State() == StateConnected }, "never connected")

	cancel()
	c.Close()

	if got := c.State(); got != StateDisconnected {
		t.Errorf("State = %s, want disconnected", StateName(got))
	}
}

func TestClient_CloseIdempotent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer server.Close()

	c := New(testConfig(wsURL(server)), func(router.Envelope) {}, nil)
	c.Start(context.Background())

	waitFor(t, func() bool { return c.State() == StateConnected }, "never connected")

	c.Close()
	c.Close()
}

func TestStateName(t *testing.T) {
	tests := []struct {
		state int32
		want  string
	}{
		{StateDisconnected, "disconnected"},
		{StateConnecting, "connecting"},
		{StateConnected, "connected"},
		{99, "disconnected"},
	}
	for _, tt := range tests {
		if got := StateName(tt.state); got != tt.want {
			t.Errorf("StateName(%d) = %q, want %q", tt.state, got, tt.want)
		}
	}
}
