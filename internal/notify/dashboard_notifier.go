package notify

import (
	"context"
	"time"

	"github.com/tw-eew/eewgateway/internal/alert"
	"github.com/tw-eew/eewgateway/internal/config"
	"github.com/tw-eew/eewgateway/internal/dashboard"
	"github.com/tw-eew/eewgateway/internal/logging"
)

// liftedRetention bounds how long a lifted id stays in the dashboard Stats'
// lifted set before dashboardNotifier.cleanupLoop drops it.
const liftedRetention = 10 * time.Minute

// dashboardNotifierFactory builds a notifier serving a live dashboard over
// the alert lifecycle: a WebSocket broadcast feed plus a JSON snapshot API,
// adapted from the teacher's internal/api + internal/websocket +
// internal/manager (spec.md §4.4, the "dashboard" namespace).
type dashboardNotifierFactory struct{}

// NewDashboardNotifierFactory returns a Factory under the "dashboard"
// namespace.
func NewDashboardNotifierFactory() Factory { return dashboardNotifierFactory{} }

func (dashboardNotifierFactory) Namespace() string { return "dashboard" }

func (dashboardNotifierFactory) New(section config.Section, logger logging.Logger) (Notifier, error) {
	addr, _ := section["addr"].(string)
	if addr == "" {
		addr = ":8090"
	}

	hub := dashboard.NewHub(logger)
	stats := dashboard.NewStats()
	return &dashboardNotifier{
		addr:   addr,
		hub:    hub,
		stats:  stats,
		server: dashboard.NewServer(addr, hub, stats, logger),
		logger: logger,
		done:   make(chan struct{}),
	}, nil
}

type dashboardNotifier struct {
	addr   string
	hub    *dashboard.Hub
	stats  *dashboard.Stats
	server *dashboard.Server
	logger logging.Logger
	done   chan struct{}
}

func (n *dashboardNotifier) Name() string { return "dashboard" }

// Start launches the hub's event loop and the HTTP server, both running
// until Close (spec.md §4.4: "start ... runs for the notifier's lifetime").
func (n *dashboardNotifier) Start(ctx context.Context) error {
	go n.hub.Run(n.done)
	go func() {
		if err := n.server.ListenAndServe(); err != nil {
			n.logger.Errorf("dashboard: server exited: %v", err)
		}
	}()
	go n.cleanupLoop()
	n.logger.Infof("dashboard: serving on %s", n.addr)
	return nil
}

func (n *dashboardNotifier) cleanupLoop() {
	ticker := time.NewTicker(liftedRetention)
	defer ticker.Stop()
	for {
		select {
		case <-n.done:
			return
		case now := <-ticker.C:
			n.stats.CleanLifted(now.Add(-liftedRetention))
		}
	}
}

func (n *dashboardNotifier) SendEEW(ctx context.Context, a alert.Alert) error {
	n.stats.Upsert(a)
	n.hub.Broadcast(dashboard.Message{Type: "send_eew", Data: dashboard.SnapshotFor(a)})
	return nil
}

func (n *dashboardNotifier) UpdateEEW(ctx context.Context, a alert.Alert) error {
	n.stats.Upsert(a)
	n.hub.Broadcast(dashboard.Message{Type: "update_eew", Data: dashboard.SnapshotFor(a)})
	return nil
}

func (n *dashboardNotifier) LiftEEW(ctx context.Context, a alert.Alert) error {
	n.stats.Remove(a.ID)
	n.hub.Broadcast(dashboard.Message{Type: "lift_eew", Data: map[string]string{"id": a.ID}})
	return nil
}

func (n *dashboardNotifier) Close(ctx context.Context) error {
	close(n.done)
	return n.server.Shutdown(ctx)
}
