package ingest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/tw-eew/eewgateway/internal/alert"
	"github.com/tw-eew/eewgateway/internal/bulletin"
	"github.com/tw-eew/eewgateway/internal/config"
	"github.com/tw-eew/eewgateway/internal/logging"
	"github.com/tw-eew/eewgateway/internal/notify"
	"github.com/tw-eew/eewgateway/internal/wavemodel"
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

func waitForCondition(t *testing.T, check func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if check() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("timed out waiting for condition")
}

func newTestController(t *testing.T, cfgBody string) (*Controller, *alert.Table, *notify.Registry) {
	t.Helper()
	cfg := testConfig(t, cfgBody)
	table := alert.NewTable()
	logger := logging.New(logging.Options{})
	registry := notify.Build(nil, cfg, logger)
	cache := wavemodel.NewCache()
	c := New(table, registry, cfg, cache, nil, logger, 1)
	return c, table, registry
}

func sampleBulletin(id string, serial int, author string) bulletin.Bulletin {
	return bulletin.Bulletin{
		ID: id, Serial: serial, Author: author, TimeMS: 1700000000000,
		EQ: bulletin.Hypocenter{Lat: 24, Lon: 122, DepthKM: 40, Mag: 6.0, TimeMS: 1699999990000},
	}
}

// Scenario 1: new alert, HTTP mode.
func TestHandleBulletinNewAlert(t *testing.T) {
	c, table, _ := newTestController(t, "debug-mode = false")
	c.HandleBulletin(context.Background(), sampleBulletin("A", 1, "cwa"))

	a, ok := table.Get("A")
	if !ok || a.Serial != 1 {
		t.Fatalf("expected alert A serial 1 present, got %+v ok=%v", a, ok)
	}

	waitForCondition(t, func() bool {
		select {
		case <-a.EQ.Done():
			return true
		default:
			return false
		}
	})
}

// Scenario 2: update cancels the prior computation.
func TestHandleBulletinUpdate(t *testing.T) {
	c, table, _ := newTestController(t, "debug-mode = false")
	c.HandleBulletin(context.Background(), sampleBulletin("A", 1, "cwa"))
	c.HandleBulletin(context.Background(), sampleBulletin("A", 2, "cwa"))

	a, ok := table.Get("A")
	if !ok || a.Serial != 2 {
		t.Fatalf("expected serial 2 after update, got %+v ok=%v", a, ok)
	}
}

// Scenario 3: lift on disappearance from an HTTP snapshot.
func TestHandleSnapshotLiftsMissingAlert(t *testing.T) {
	c, table, _ := newTestController(t, "debug-mode = false")
	c.HandleSnapshot(context.Background(), []bulletin.Bulletin{sampleBulletin("A", 1, "cwa")})

	if _, ok := table.Get("A"); !ok {
		t.Fatal("expected A present after first snapshot")
	}

	c.HandleSnapshot(context.Background(), nil)

	if _, ok := table.Get("A"); ok {
		t.Error("expected A lifted after empty snapshot")
	}
}

// Scenario 4: monotonic serial enforced — an out-of-order stale bulletin is
// silently dropped.
func TestHandleBulletinStaleDropped(t *testing.T) {
	c, table, _ := newTestController(t, "debug-mode = false")
	c.HandleBulletin(context.Background(), sampleBulletin("A", 2, "cwa"))
	c.HandleBulletin(context.Background(), sampleBulletin("A", 1, "cwa"))

	a, ok := table.Get("A")
	if !ok || a.Serial != 2 {
		t.Fatalf("expected serial to remain 2, got %+v ok=%v", a, ok)
	}
}

// Scenario 6: provider filter drops unlisted authors before classification.
func TestHandleBulletinProviderFilter(t *testing.T) {
	c, table, _ := newTestController(t, "debug-mode = true\n\n[eew_source]\ncwa = true\ntrem = false\n")
	c.HandleBulletin(context.Background(), sampleBulletin("B", 1, "trem"))

	if _, ok := table.Get("B"); ok {
		t.Error("expected trem bulletin dropped before classification")
	}
}

// A notifier that records every (serial, classification) pair it was asked
// to dispatch, so a race between concurrent HandleBulletin calls for the
// same id can be caught by mismatched pairs rather than just a data race.
type recordingNotifier struct {
	mu      sync.Mutex
	records []string
}

func (r *recordingNotifier) Name() string { return "rec" }

func (r *recordingNotifier) SendEEW(ctx context.Context, a alert.Alert) error {
	r.record("new", a)
	return nil
}

func (r *recordingNotifier) UpdateEEW(ctx context.Context, a alert.Alert) error {
	r.record("update", a)
	return nil
}

func (r *recordingNotifier) LiftEEW(ctx context.Context, a alert.Alert) error { return nil }

func (r *recordingNotifier) record(kind string, a alert.Alert) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, fmt.Sprintf("%s:%d", kind, a.Serial))
}

// recordingNotifierFactory wires a single pre-built recordingNotifier into a
// Registry, bypassing the usual per-call construction so the test can
// inspect it directly after dispatch.
type recordingNotifierFactory struct{ n *recordingNotifier }

func (f recordingNotifierFactory) Namespace() string { return "rec" }

func (f recordingNotifierFactory) New(section config.Section, logger logging.Logger) (notify.Notifier, error) {
	return f.n, nil
}

// Scenario: concurrent bulletins for the same id (WS session racing the
// HTTP poller, spec.md §4.7) must each dispatch the alert they themselves
// committed, not whatever happens to be newest in the table by the time
// they read it back.
func TestHandleBulletinConcurrentUpdatesDispatchOwnCommit(t *testing.T) {
	cfg := testConfig(t, "debug-mode = false\n\n[rec]\n")
	table := alert.NewTable()
	logger := logging.New(logging.Options{})
	rec := &recordingNotifier{}
	registry := notify.Build([]notify.Factory{recordingNotifierFactory{n: rec}}, cfg, logger)
	cache := wavemodel.NewCache()
	c := New(table, registry, cfg, cache, nil, logger, 4)

	const n = 50
	var wg sync.WaitGroup
	for i := 1; i <= n; i++ {
		wg.Add(1)
		go func(serial int) {
			defer wg.Done()
			c.HandleBulletin(context.Background(), sampleBulletin("A", serial, "cwa"))
		}(i)
	}
	wg.Wait()

	// Dispatch itself is fire-and-forget (registry.dispatch, spec.md §4.4),
	// so give the spawned goroutines a moment to finish recording before
	// inspecting the result.
	waitForCondition(t, func() bool {
		a, ok := table.Get("A")
		return ok && a.Serial == n
	})
	time.Sleep(50 * time.Millisecond)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	for _, rentry := range rec.records {
		var kind string
		var serial int
		if _, err := fmt.Sscanf(rentry, "%[a-z]:%d", &kind, &serial); err != nil {
			t.Fatalf("unparsable record %q: %v", rentry, err)
		}
		if kind == "new" && serial != 1 {
			t.Errorf("expected the sole NEW dispatch to carry serial 1, got %d", serial)
		}
	}
	a, ok := table.Get("A")
	if !ok || a.Serial != n {
		t.Fatalf("expected final serial %d, got %+v ok=%v", n, a, ok)
	}
}

func TestHandleBulletinDuplicateDropped(t *testing.T) {
	c, table, _ := newTestController(t, "debug-mode = false")
	c.HandleBulletin(context.Background(), sampleBulletin("A", 1, "cwa"))
	first, _ := table.Get("A")

	c.HandleBulletin(context.Background(), sampleBulletin("A", 1, "cwa"))
	second, _ := table.Get("A")

	if first.EQ != second.EQ {
		t.Error("expected duplicate serial to leave the stored alert untouched")
	}
}
