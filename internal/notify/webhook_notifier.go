package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/tw-eew/eewgateway/internal/alert"
	"github.com/tw-eew/eewgateway/internal/config"
	"github.com/tw-eew/eewgateway/internal/logging"
)

// webhookRequestTimeout bounds each POST, independent of the dispatch
// fire-and-forget semantics (spec.md §4.4 isolation: a slow or hanging
// notifier must never block ingest or other notifiers).
const webhookRequestTimeout = 10 * time.Second

// webhookNotifierFactory builds a notifier that POSTs a JSON payload to a
// configured URL, the second example Factory exercising the registry
// contract end-to-end (spec.md §4.4).
type webhookNotifierFactory struct{}

// NewWebhookNotifierFactory returns a Factory under the "webhook" namespace.
func NewWebhookNotifierFactory() Factory { return webhookNotifierFactory{} }

func (webhookNotifierFactory) Namespace() string { return "webhook" }

func (webhookNotifierFactory) New(section config.Section, logger logging.Logger) (Notifier, error) {
	url, _ := section["url"].(string)
	if url == "" {
		return nil, nil
	}
	return &webhookNotifier{
		url:    url,
		logger: logger,
		client: &http.Client{Timeout: webhookRequestTimeout},
	}, nil
}

type webhookNotifier struct {
	url    string
	logger logging.Logger
	client *http.Client
}

func (n *webhookNotifier) Name() string { return "webhook" }

type webhookPayload struct {
	Event  string `json:"event"`
	ID     string `json:"id"`
	Serial int    `json:"serial"`
}

func (n *webhookNotifier) post(ctx context.Context, event string, a alert.Alert) error {
	body, err := json.Marshal(webhookPayload{Event: event, ID: a.ID, Serial: a.Serial})
	if err != nil {
		return fmt.Errorf("webhook: marshal payload: %w", err)
	}

	reqCtx, cancel := context.WithTimeout(ctx, webhookRequestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("webhook: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook: post: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook: unexpected status %d", resp.StatusCode)
	}
	return nil
}

func (n *webhookNotifier) SendEEW(ctx context.Context, a alert.Alert) error {
	return n.post(ctx, "send", a)
}

func (n *webhookNotifier) UpdateEEW(ctx context.Context, a alert.Alert) error {
	return n.post(ctx, "update", a)
}

func (n *webhookNotifier) LiftEEW(ctx context.Context, a alert.Alert) error {
	return n.post(ctx, "lift", a)
}
