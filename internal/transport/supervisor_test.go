package transport

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tw-eew/eewgateway/internal/bulletin"
	"github.com/tw-eew/eewgateway/internal/httppool"
	"github.com/tw-eew/eewgateway/internal/logging"
)

func TestReconnectDelayFormula(t *testing.T) {
	cases := []struct {
		failures int
		want     time.Duration
	}{
		{0, 0},
		{1, 10 * time.Second},
		{5, 50 * time.Second},
		{60, 600 * time.Second},
		{100, 600 * time.Second},
	}
	for _, c := range cases {
		if got := ReconnectDelay(c.failures); got != c.want {
			t.Errorf("ReconnectDelay(%d) = %v, want %v", c.failures, got, c.want)
		}
	}
}

type recordingHandler struct {
	mu        sync.Mutex
	bulletins []bulletin.Bulletin
	snapshots int
}

func (h *recordingHandler) HandleBulletin(ctx context.Context, b bulletin.Bulletin) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.bulletins = append(h.bulletins, b)
}

func (h *recordingHandler) HandleSnapshot(ctx context.Context, bulletins []bulletin.Bulletin) {
	h.mu.Lock()
	h.snapshots++
	h.mu.Unlock()
	for _, b := range bulletins {
		h.HandleBulletin(ctx, b)
	}
}

func (h *recordingHandler) OnBulletin(ctx context.Context, b bulletin.Bulletin) { h.HandleBulletin(ctx, b) }
func (h *recordingHandler) OnNTP(ctx context.Context, serverTime time.Time)    {}

func (h *recordingHandler) snapshotCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.snapshots
}

func TestHTTPOnlyPolling(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"id":"A","serial":1,"author":"cwa","time":1700000000000,"eq":{"lat":24,"lon":122,"depth":40,"mag":6.0,"time":1699999990000}}]`))
	}))
	defer server.Close()

	pool := httppool.New([]string{server.URL})
	handler := &recordingHandler{}
	logger := logging.New(logging.Options{})
	sup := New("", nil, nil, pool, handler, logger)

	ctx, cancel := context.WithTimeout(context.Background(), 1200*time.Millisecond)
	defer cancel()
	sup.Run(ctx)

	if handler.snapshotCount() == 0 {
		t.Fatal("expected at least one poll snapshot")
	}
}

var upgrader = websocket.Upgrader{}

func TestWebSocketAuthFailureDegradesToHTTP(t *testing.T) {
	wsServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		var sub map[string]any
		conn.ReadJSON(&sub)
		conn.WriteJSON(map[string]any{"type": "info", "code": 401})
	}))
	defer wsServer.Close()

	httpServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	}))
	defer httpServer.Close()

	host := strings.TrimPrefix(strings.TrimPrefix(wsServer.URL, "http://"), "https://")
	pool := httppool.New([]string{httpServer.URL})
	handler := &recordingHandler{}
	logger := logging.New(logging.Options{})
	sup := New("bad-key", []string{host}, []string{"trem.eew"}, pool, handler, logger)

	ctx, cancel := context.WithTimeout(context.Background(), 1500*time.Millisecond)
	defer cancel()
	sup.Run(ctx)

	if !sup.wsDropped {
		t.Error("expected supervisor to have permanently dropped to HTTP after AuthFailed")
	}
}
