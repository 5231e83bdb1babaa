package notify

import (
	"context"

	"github.com/tw-eew/eewgateway/internal/alert"
	"github.com/tw-eew/eewgateway/internal/config"
	"github.com/tw-eew/eewgateway/internal/logging"
)

// logNotifierFactory builds a notifier that logs every dispatched event via
// the structured logger, standing in for a concrete chat/push body
// (spec.md §4.4: Discord/LINE rendering is out of scope; this exercises the
// registry contract end-to-end).
type logNotifierFactory struct{}

// NewLogNotifierFactory returns a Factory under the "notify_log" namespace.
// ("log" itself is the reserved ambient logging config table, spec.md §6.)
func NewLogNotifierFactory() Factory { return logNotifierFactory{} }

func (logNotifierFactory) Namespace() string { return "notify_log" }

func (logNotifierFactory) New(section config.Section, logger logging.Logger) (Notifier, error) {
	return &logNotifier{logger: logger}, nil
}

type logNotifier struct {
	logger logging.Logger
}

func (n *logNotifier) Name() string { return "log" }

func (n *logNotifier) SendEEW(ctx context.Context, a alert.Alert) error {
	n.logger.WithFields(map[string]any{"id": a.ID, "serial": a.Serial}).Info("send_eew")
	return nil
}

func (n *logNotifier) UpdateEEW(ctx context.Context, a alert.Alert) error {
	n.logger.WithFields(map[string]any{"id": a.ID, "serial": a.Serial}).Info("update_eew")
	return nil
}

func (n *logNotifier) LiftEEW(ctx context.Context, a alert.Alert) error {
	n.logger.WithFields(map[string]any{"id": a.ID, "serial": a.Serial}).Info("lift_eew")
	return nil
}
