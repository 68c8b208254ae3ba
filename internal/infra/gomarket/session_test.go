package gomarket

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"trade_sim/internal/domain"
	"trade_sim/internal/infra"

	"github.com/gorilla/websocket"
)

// createMockWSServer creates a test WebSocket server; handler gets the
// 1-based connection number.
func createMockWSServer(t *testing.T, handler func(n int, conn *websocket.Conn)) *httptest.Server {
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool { return true },
	}
	var conns atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Logf("upgrade error: %v", err)
			return
		}
		defer conn.Close()
		handler(int(conns.Add(1)), conn)
	}))

	return server
}

// httpToWS converts http:// URL to ws://
func httpToWS(url string) string {
	return strings.Replace(url, "http://", "ws://", 1)
}

func bookJSON(symbol string, bid, ask string, ts int) []byte {
	return []byte(fmt.Sprintf(`{"bids":[["%s","2"]],"asks":[["%s","3"]],"exchange":"OKX","symbol":"%s","timestamp":%d}`, bid, ask, symbol, ts))
}

func newTestSession(t *testing.T, url string, m *infra.Metrics) *Session {
	t.Helper()
	s, err := NewSession(SessionConfig{
		URL:         url,
		Exchange:    "OKX",
		Symbol:      "BTC-USDT-SWAP",
		ReadTimeout: 2 * time.Second,
		Backoff:     infra.Backoff{Base: 10 * time.Millisecond, Max: 50 * time.Millisecond},
	}, m)
	if err != nil {
		t.Fatalf("NewSession failed: %v", err)
	}
	return s
}

func collect(ch <-chan domain.Tick, n int, timeout time.Duration) []domain.Tick {
	var out []domain.Tick
	deadline := time.After(timeout)
	for len(out) < n {
		select {
		case tick := <-ch:
			out = append(out, tick)
		case <-deadline:
			return out
		}
	}
	return out
}

func TestSession_DeliversInOrderAndSkipsBadMessages(t *testing.T) {
	hold := make(chan struct{})
	server := createMockWSServer(t, func(_ int, conn *websocket.Conn) {
		conn.WriteMessage(websocket.TextMessage, bookJSON("BTC-USDT-SWAP", "100", "101", 1))
		conn.WriteMessage(websocket.TextMessage, []byte(`{"asks":[["101","3"]],"exchange":"OKX","symbol":"BTC-USDT-SWAP","timestamp":2}`))
		conn.WriteMessage(websocket.TextMessage, bookJSON("ETH-USDT", "3000", "3001", 3))
		conn.WriteMessage(websocket.TextMessage, []byte(`{"bids":[],"asks":[["101","3"]],"exchange":"OKX","symbol":"BTC-USDT-SWAP","timestamp":4}`))
		conn.WriteMessage(websocket.TextMessage, bookJSON("BTC-USDT-SWAP", "102", "103", 5))
		<-hold
	})
	defer server.Close()
	defer close(hold)

	m := &infra.Metrics{}
	s := newTestSession(t, httpToWS(server.URL), m)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ticks := make(chan domain.Tick, 10)
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx, func(tick domain.Tick) { ticks <- tick }) }()

	got := collect(ticks, 2, 2*time.Second)
	if len(got) != 2 {
		t.Fatalf("received %d ticks, want 2", len(got))
	}
	if got[0].Seq != 1 || got[1].Seq != 2 {
		t.Errorf("sequence = %d,%d want 1,2", got[0].Seq, got[1].Seq)
	}
	if got[0].Timestamp.UnixMilli() != 1 || got[1].Timestamp.UnixMilli() != 5 {
		t.Errorf("timestamps = %d,%d want 1,5", got[0].Timestamp.UnixMilli(), got[1].Timestamp.UnixMilli())
	}
	if !s.IsConnected() {
		t.Error("session should still be connected after bad messages")
	}

	snap := m.Snapshot()
	if snap.DecodeMalformed != 1 || snap.DecodeMismatch != 1 || snap.EmptyBooks != 1 {
		t.Errorf("drop counters malformed=%d mismatch=%d empty=%d, want 1/1/1",
			snap.DecodeMalformed, snap.DecodeMismatch, snap.EmptyBooks)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run returned %v on shutdown, want nil", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	if s.IsConnected() {
		t.Error("session should be disconnected after shutdown")
	}
}

func TestSession_ReconnectResumesWithoutDuplicates(t *testing.T) {
	hold := make(chan struct{})
	server := createMockWSServer(t, func(n int, conn *websocket.Conn) {
		switch n {
		case 1:
			conn.WriteMessage(websocket.TextMessage, bookJSON("BTC-USDT-SWAP", "100", "101", 1))
			conn.WriteMessage(websocket.TextMessage, bookJSON("BTC-USDT-SWAP", "100", "101", 2))
			// Returning drops the connection.
		default:
			conn.WriteMessage(websocket.TextMessage, bookJSON("BTC-USDT-SWAP", "100", "101", 3))
			<-hold
		}
	})
	defer server.Close()
	defer close(hold)

	m := &infra.Metrics{}
	s := newTestSession(t, httpToWS(server.URL), m)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ticks := make(chan domain.Tick, 10)
	go s.Run(ctx, func(tick domain.Tick) { ticks <- tick })

	got := collect(ticks, 3, 3*time.Second)
	if len(got) != 3 {
		t.Fatalf("received %d ticks, want 3", len(got))
	}
	for i, tick := range got {
		if tick.Seq != uint64(i+1) {
			t.Errorf("tick %d seq = %d, want %d", i, tick.Seq, i+1)
		}
		if tick.Timestamp.UnixMilli() != int64(i+1) {
			t.Errorf("tick %d timestamp = %d, want %d", i, tick.Timestamp.UnixMilli(), i+1)
		}
	}

	// No extra deliveries after the resumed tick.
	if extra := collect(ticks, 1, 100*time.Millisecond); len(extra) != 0 {
		t.Errorf("unexpected extra ticks: %v", extra)
	}
	if m.Snapshot().Reconnects == 0 {
		t.Error("expected a reconnect to be recorded")
	}
}

func TestSession_RetriesWhileUnreachable(t *testing.T) {
	m := &infra.Metrics{}
	// Nothing listens on this port.
	s := newTestSession(t, "ws://127.0.0.1:1/ws", m)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	if err := s.Run(ctx, func(domain.Tick) {}); err != nil {
		t.Errorf("Run returned %v, want nil after ctx timeout", err)
	}
	if m.Snapshot().Reconnects < 2 {
		t.Errorf("reconnects = %d, want repeated attempts", m.Snapshot().Reconnects)
	}
}

func TestSession_PermanentRejection(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	defer server.Close()

	s := newTestSession(t, httpToWS(server.URL), &infra.Metrics{})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	err := s.Run(ctx, func(domain.Tick) {})
	if err == nil {
		t.Fatal("expected error for 404 handshake")
	}
	if domain.IsRetriable(err) {
		t.Errorf("404 handshake should not be retriable: %v", err)
	}
}

func TestNewSession_Validation(t *testing.T) {
	tests := []SessionConfig{
		{URL: "http://x", Exchange: "OKX", Symbol: "BTC-USDT-SWAP"},
		{URL: "ws://x", Symbol: "BTC-USDT-SWAP"},
		{URL: "ws://x", Exchange: "OKX"},
	}
	for _, cfg := range tests {
		if _, err := NewSession(cfg, nil); err == nil {
			t.Errorf("NewSession(%+v) should fail", cfg)
		}
	}
}

func TestSession_SendsPings(t *testing.T) {
	pinged := make(chan struct{}, 1)
	server := createMockWSServer(t, func(_ int, conn *websocket.Conn) {
		conn.SetPingHandler(func(data string) error {
			select {
			case pinged <- struct{}{}:
			default:
			}
			return conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(time.Second))
		})
		// Control frames are handled while reading.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})
	defer server.Close()

	s, err := NewSession(SessionConfig{
		URL:          httpToWS(server.URL),
		Exchange:     "OKX",
		Symbol:       "BTC-USDT-SWAP",
		ReadTimeout:  2 * time.Second,
		PingInterval: 20 * time.Millisecond,
		Backoff:      infra.Backoff{Base: 10 * time.Millisecond, Max: 50 * time.Millisecond},
	}, &infra.Metrics{})
	if err != nil {
		t.Fatalf("NewSession failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx, func(domain.Tick) {}) }()

	select {
	case <-pinged:
	case <-time.After(2 * time.Second):
		t.Error("no ping received")
	}
	cancel()

	if err := <-done; err != nil {
		t.Errorf("Run returned %v, want nil", err)
	}
	if s.IsConnected() {
		t.Error("session still connected after shutdown")
	}
}
