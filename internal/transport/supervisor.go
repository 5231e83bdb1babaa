// Package transport implements the supervisor (C7): mode selection between
// WebSocket and HTTP polling, the WS reconnect loop with linear-capped
// backoff and a best-effort HTTP poller running during outages, and the
// permanent drop to HTTP on AuthFailed.
package transport

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/tw-eew/eewgateway/internal/bulletin"
	"github.com/tw-eew/eewgateway/internal/errs"
	"github.com/tw-eew/eewgateway/internal/httppool"
	"github.com/tw-eew/eewgateway/internal/logging"
	"github.com/tw-eew/eewgateway/internal/wsclient"
)

// Timeouts and cadence from spec.md §4.7, §5.
const (
	reconnectStep = 10 * time.Second
	reconnectCap  = 600 * time.Second
	pollInterval  = 500 * time.Millisecond
)

// Handler receives decoded bulletins from either transport mode and also
// serves as the WebSocket session's frame sink — ingest.Controller
// implements both (spec.md §4.8, §4.6).
type Handler interface {
	wsclient.Sink
	HandleBulletin(ctx context.Context, b bulletin.Bulletin)
	HandleSnapshot(ctx context.Context, bulletins []bulletin.Bulletin)
}

// Supervisor drives either HTTP polling alone or a WebSocket session backed
// by a best-effort HTTP poller, depending on whether an API key is
// configured (spec.md §4.7).
type Supervisor struct {
	apiKey    string
	wsHosts   []string
	apiPool   *httppool.Pool
	services  []string
	handler   Handler
	logger    logging.Logger
	wsDropped bool // AuthFailed observed: permanently degrade to HTTP
}

// New constructs a Supervisor. apiKey selects WS mode when non-empty
// (spec.md §6 Environment: "API_KEY selects WS mode").
func New(apiKey string, wsHosts []string, services []string, apiPool *httppool.Pool, handler Handler, logger logging.Logger) *Supervisor {
	return &Supervisor{
		apiKey:   apiKey,
		wsHosts:  wsHosts,
		apiPool:  apiPool,
		services: services,
		handler:  handler,
		logger:   logger,
	}
}

// Run blocks until ctx is cancelled, driving the selected mode. In WS mode,
// a best-effort HTTP poller additionally runs whenever the socket is down
// (spec.md §4.7: "a best-effort HTTP poller runs so bulletins are not
// lost").
func (s *Supervisor) Run(ctx context.Context) {
	if s.apiKey == "" {
		s.runHTTPOnly(ctx)
		return
	}
	s.runWebSocket(ctx)
}

func (s *Supervisor) runHTTPOnly(ctx context.Context) {
	s.poll(ctx, nil)
}

// poll runs the fixed-period HTTP poller until ctx is cancelled. If skip is
// non-nil, a tick is skipped whenever it reports true (used by WS mode to
// suspend polling while the socket is Subscribed, without tearing down and
// respawning the poller goroutine across reconnects).
func (s *Supervisor) poll(ctx context.Context, skip func() bool) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if skip != nil && skip() {
				continue
			}
			s.pollOnce(ctx)
		}
	}
}

func (s *Supervisor) pollOnce(ctx context.Context) {
	body, err := s.apiPool.RequestRaw(ctx, "/eq/eew", 1)
	if err != nil {
		s.logger.Warnf("transport: HTTP poll failed: %v", err)
		return
	}
	// Per-element decode (spec.md §7): one malformed bulletin in the batch
	// must not drop the rest of the snapshot.
	bulletins, err := bulletin.DecodeArray(body, s.logger)
	if err != nil {
		s.logger.Warnf("transport: HTTP poll body decode failed: %v", err)
		return
	}
	s.handler.HandleSnapshot(ctx, bulletins)
}

// runWebSocket drives the reconnect loop (spec.md §4.7). A best-effort HTTP
// poller runs concurrently while the socket is not yet Subscribed.
func (s *Supervisor) runWebSocket(ctx context.Context) {
	nodeIndex := 0
	consecutiveFailures := 0
	var subscribed atomic.Bool

	pollCtx, pollCancel := context.WithCancel(ctx)
	defer pollCancel()
	go s.poll(pollCtx, subscribed.Load)

	for {
		if ctx.Err() != nil {
			return
		}
		if s.wsDropped {
			s.runHTTPOnly(ctx)
			return
		}

		node := s.wsHosts[nodeIndex%len(s.wsHosts)]
		url := "wss://" + node + "/websocket"

		sess := wsclient.New(s.apiKey, s.services, s.handler, s.logger)
		sess.OnSubscribed(func() {
			subscribed.Store(true)
			consecutiveFailures = 0
		})

		reopen, err := sess.Run(ctx, url)
		subscribed.Store(false)
		if err == nil {
			return // ctx cancelled
		}

		if errs.Is(err, errs.AuthFailed) {
			s.logger.Errorf("transport: WebSocket auth failed, permanently degrading to HTTP: %v", err)
			s.wsDropped = true
			continue
		}

		s.logger.Warnf("transport: WebSocket session ended, reconnecting: %v", err)
		if reopen {
			nodeIndex++
		}
		consecutiveFailures++

		delay := ReconnectDelay(consecutiveFailures)
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return
		}
	}
}

// ReconnectDelay implements the reconnect delay sequence (spec.md §8):
// min(10*k, 600) seconds after k consecutive failures.
func ReconnectDelay(failures int) time.Duration {
	if failures <= 0 {
		return 0
	}
	d := time.Duration(failures) * reconnectStep
	if d > reconnectCap {
		return reconnectCap
	}
	return d
}
