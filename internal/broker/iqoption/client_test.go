package iqoption

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// gateway is a scripted stand-in for the trading gateway: it hands out a
// session id over HTTP, optionally kills the first sockets right after the
// ssid handshake and answers get-candles on the surviving ones.
type gateway struct {
	login *httptest.Server
	ws    *httptest.Server
	conns atomic.Int32
	drop  int32
}

func newGateway(t *testing.T, drop int32) *gateway {
	t.Helper()
	g := &gateway{drop: drop}
	g.login = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"ssid":"test-session"}`)
	}))

	upgrader := websocket.Upgrader{}
	g.ws = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		n := g.conns.Add(1)
		if _, _, err := conn.ReadMessage(); err != nil { // ssid handshake
			return
		}
		if n <= g.drop {
			return
		}
		for {
			_, raw, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var in wsMessage
			if err := json.Unmarshal(raw, &in); err != nil || in.RequestID == "" {
				continue
			}
			reply := fmt.Sprintf(
				`{"name":"candles","request_id":%q,"msg":{"candles":[{"from":1756100000,"to":1756100300,"open":1,"close":2,"min":0.5,"max":2.5,"volume":10}]}}`,
				in.RequestID)
			if err := conn.WriteMessage(websocket.TextMessage, []byte(reply)); err != nil {
				return
			}
		}
	}))
	t.Cleanup(g.login.Close)
	t.Cleanup(g.ws.Close)
	return g
}

func (g *gateway) client() *Client {
	return New(Config{
		Email:    "trader@example.com",
		Password: "secret",
		LoginURL: g.login.URL,
		WSURL:    "ws" + strings.TrimPrefix(g.ws.URL, "http"),
	}, zerolog.Nop())
}

func TestGetCandlesOverSocket(t *testing.T) {
	g := newGateway(t, 0)
	c := g.client()
	ctx := context.Background()

	if err := c.Connect(ctx); err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	candles, err := c.GetCandles(ctx, "ETHUSD", 300, time.Now(), 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(candles) != 1 {
		t.Fatalf("got %d candles, want 1", len(candles))
	}
	got := candles[0]
	if got.Close != 2 || got.High != 2.5 || got.Low != 0.5 {
		t.Errorf("candle: %+v", got)
	}
}

func TestReconnectAfterDrop(t *testing.T) {
	g := newGateway(t, 1) // the first socket dies right after the handshake
	c := g.client()

	if err := c.Connect(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	// The session must come back by itself and serve requests again.
	deadline := time.Now().Add(15 * time.Second)
	for {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		candles, err := c.GetCandles(ctx, "ETHUSD", 300, time.Now(), 1)
		cancel()
		if err == nil && len(candles) == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("session not restored, last error: %v", err)
		}
		time.Sleep(100 * time.Millisecond)
	}
	if got := g.conns.Load(); got < 2 {
		t.Errorf("expected a second socket, got %d", got)
	}
}

func TestDuplicateReplyDropped(t *testing.T) {
	c := New(Config{}, zerolog.Nop())
	ch := make(chan json.RawMessage, 1)
	c.pending["7"] = ch

	msg := wsMessage{RequestID: "7", Msg: json.RawMessage(`{}`)}
	done := make(chan struct{})
	go func() {
		c.route(msg)
		c.route(msg) // duplicate lands before the waiter drains the first
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("duplicated reply blocked the router")
	}
	if len(ch) != 1 {
		t.Errorf("pending channel holds %d replies, want 1", len(ch))
	}
}
