package notify

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/tw-eew/eewgateway/internal/alert"
	"github.com/tw-eew/eewgateway/internal/config"
	"github.com/tw-eew/eewgateway/internal/logging"
)

func testConfig(t *testing.T, body string) *config.Config {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("config.Load: %v", err)
	}
	return cfg
}

// countingNotifier records every dispatched call, and optionally errors.
type countingNotifier struct {
	mu      sync.Mutex
	sends   int
	updates int
	lifts   int
	fail    bool
}

func (n *countingNotifier) Name() string { return "counting" }

func (n *countingNotifier) SendEEW(ctx context.Context, a alert.Alert) error {
	n.mu.Lock()
	n.sends++
	n.mu.Unlock()
	if n.fail {
		return errors.New("boom")
	}
	return nil
}

func (n *countingNotifier) UpdateEEW(ctx context.Context, a alert.Alert) error {
	n.mu.Lock()
	n.updates++
	n.mu.Unlock()
	return nil
}

func (n *countingNotifier) LiftEEW(ctx context.Context, a alert.Alert) error {
	n.mu.Lock()
	n.lifts++
	n.mu.Unlock()
	return nil
}

type countingFactory struct {
	namespace string
	notifier  *countingNotifier
}

func (f countingFactory) Namespace() string { return f.namespace }
func (f countingFactory) New(section config.Section, logger logging.Logger) (Notifier, error) {
	return f.notifier, nil
}

func waitFor(t *testing.T, check func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if check() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("timed out waiting for condition")
}

func TestBuildSkipsAbsentSection(t *testing.T) {
	cfg := testConfig(t, `debug-mode = false`)
	logger := logging.New(logging.Options{})
	n := &countingNotifier{}
	r := Build([]Factory{countingFactory{namespace: "missing", notifier: n}}, cfg, logger)
	if r.Len() != 0 {
		t.Errorf("expected 0 registered notifiers, got %d", r.Len())
	}
}

func TestBuildRegistersPresentSection(t *testing.T) {
	cfg := testConfig(t, "[present]\nkey = \"value\"\n")
	logger := logging.New(logging.Options{})
	n := &countingNotifier{}
	r := Build([]Factory{countingFactory{namespace: "present", notifier: n}}, cfg, logger)
	if r.Len() != 1 {
		t.Fatalf("expected 1 registered notifier, got %d", r.Len())
	}
}

func TestDispatchFansOutAndIsolatesFailure(t *testing.T) {
	cfg := testConfig(t, "[ok]\nk = 1\n[bad]\nk = 1\n")
	logger := logging.New(logging.Options{})
	ok := &countingNotifier{}
	bad := &countingNotifier{fail: true}
	r := Build([]Factory{
		countingFactory{namespace: "ok", notifier: ok},
		countingFactory{namespace: "bad", notifier: bad},
	}, cfg, logger)

	r.SendEEW(context.Background(), alert.Alert{ID: "A", Serial: 1})

	waitFor(t, func() bool {
		ok.mu.Lock()
		bad.mu.Lock()
		defer ok.mu.Unlock()
		defer bad.mu.Unlock()
		return ok.sends == 1 && bad.sends == 1
	})
}

func TestWebhookNotifierPosts(t *testing.T) {
	received := make(chan string, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		received <- string(body)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	logger := logging.New(logging.Options{})
	factory := NewWebhookNotifierFactory()
	n, err := factory.New(config.Section{"url": server.URL}, logger)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	sender := n.(EEWSender)

	if err := sender.SendEEW(context.Background(), alert.Alert{ID: "A", Serial: 1}); err != nil {
		t.Fatalf("SendEEW: %v", err)
	}

	select {
	case body := <-received:
		if !strings.Contains(body, `"id":"A"`) {
			t.Errorf("expected payload to contain id, got %s", body)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for webhook POST")
	}
}

func TestWebhookFactorySkipsWithoutURL(t *testing.T) {
	f := NewWebhookNotifierFactory()
	logger := logging.New(logging.Options{})
	n, err := f.New(config.Section{}, logger)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if n != nil {
		t.Error("expected nil notifier when url is absent")
	}
}
