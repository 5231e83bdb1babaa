package notify

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/tw-eew/eewgateway/internal/alert"
	"github.com/tw-eew/eewgateway/internal/config"
	"github.com/tw-eew/eewgateway/internal/logging"
	"github.com/tw-eew/eewgateway/internal/quake"
)

func TestDashboardNotifierServesHealthAndTracksAlerts(t *testing.T) {
	logger := logging.New(logging.Options{})
	factory := NewDashboardNotifierFactory()
	n, err := factory.New(config.Section{"addr": "127.0.0.1:18099"}, logger)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	starter := n.(Starter)
	if err := starter.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer n.(Closer).Close(context.Background())

	eq := quake.New(quake.EarthquakeLocation{}, 6.2, 15, time.Now(), nil)
	a := alert.Alert{ID: "A", Serial: 1, EQ: eq}

	if err := n.(EEWSender).SendEEW(context.Background(), a); err != nil {
		t.Fatalf("SendEEW: %v", err)
	}

	var body map[string]any
	waitForHTTP(t, "http://127.0.0.1:18099/api/health", &body)
	if body["tracked_alerts"].(float64) != 1 {
		t.Errorf("expected 1 tracked alert, got %v", body["tracked_alerts"])
	}

	if err := n.(EEWLifter).LiftEEW(context.Background(), a); err != nil {
		t.Fatalf("LiftEEW: %v", err)
	}
}

func waitForHTTP(t *testing.T, url string, out any) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	var lastErr error
	for time.Now().Before(deadline) {
		resp, err := http.Get(url)
		if err != nil {
			lastErr = err
			time.Sleep(10 * time.Millisecond)
			continue
		}
		data, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err := json.Unmarshal(data, out); err != nil {
			lastErr = err
			time.Sleep(10 * time.Millisecond)
			continue
		}
		return
	}
	t.Fatalf("timed out waiting for %s: %v", url, lastErr)
}
