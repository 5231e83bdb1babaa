// Package ingest implements the single logical consumer of raw bulletins
// (C8): provider filtering, classification via the alert table, launching
// the intensity computation, and dispatching the resulting send/update/lift
// events.
package ingest

import (
	"context"
	"runtime"
	"time"

	"github.com/tw-eew/eewgateway/internal/alert"
	"github.com/tw-eew/eewgateway/internal/bulletin"
	"github.com/tw-eew/eewgateway/internal/config"
	"github.com/tw-eew/eewgateway/internal/geo"
	"github.com/tw-eew/eewgateway/internal/intensity"
	"github.com/tw-eew/eewgateway/internal/logging"
	"github.com/tw-eew/eewgateway/internal/notify"
	"github.com/tw-eew/eewgateway/internal/quake"
	"github.com/tw-eew/eewgateway/internal/wavemodel"
)

// Controller is the ingest path described in spec.md §4.8.
type Controller struct {
	table    *alert.Table
	registry *notify.Registry
	cfg      *config.Config
	cache    *wavemodel.Cache
	regions  []geo.Region
	logger   logging.Logger

	// workers bounds concurrent intensity computations to cores (spec.md
	// §4.9: "a worker pool for computations").
	workers chan struct{}
}

// New constructs a Controller. workerCount <= 0 defaults to
// runtime.NumCPU().
func New(table *alert.Table, registry *notify.Registry, cfg *config.Config, cache *wavemodel.Cache, regions []geo.Region, logger logging.Logger, workerCount int) *Controller {
	if workerCount <= 0 {
		workerCount = runtime.NumCPU()
	}
	return &Controller{
		table:    table,
		registry: registry,
		cfg:      cfg,
		cache:    cache,
		regions:  regions,
		logger:   logger,
		workers:  make(chan struct{}, workerCount),
	}
}

// HandleBulletin runs one raw bulletin through the filter, classifier, and
// dispatch pipeline (spec.md §4.8 steps 1-5).
func (c *Controller) HandleBulletin(ctx context.Context, b bulletin.Bulletin) {
	if !c.cfg.AcceptsProvider(b.Author) {
		c.logger.Debugf("ingest: dropping bulletin %s from unlisted provider %q", b.ID, b.Author)
		return
	}

	committed, class := c.table.Upsert(b.ID, b.Serial, func() (alert.Alert, context.CancelFunc) {
		computeCtx, cancel := context.WithCancel(ctx)
		a := alert.Alert{
			ID:          b.ID,
			Serial:      b.Serial,
			Final:       b.IsFinal(),
			Provider:    quake.Provider{Code: b.Author},
			PublishTime: b.PublishTime(),
			EQ:          b.ToEarthquake(),
		}
		c.launchComputation(computeCtx, a.EQ)
		return a, cancel
	})

	// Dispatch on the alert Upsert just committed, not a follow-up Get: a
	// concurrent HandleBulletin for the same id (WS session racing the HTTP
	// poller, spec.md §4.7) can commit a newer serial in between, and an
	// unlocked re-fetch would dispatch that mismatched payload instead.
	switch class {
	case alert.NEW:
		c.registry.SendEEW(ctx, committed)
	case alert.UPDATE:
		c.registry.UpdateEEW(ctx, committed)
	case alert.DUPLICATE:
		c.logger.Debugf("ingest: duplicate serial %d for %s, dropping", b.Serial, b.ID)
	case alert.STALE:
		c.logger.Debugf("ingest: stale serial %d for %s, dropping", b.Serial, b.ID)
	}
}

// launchComputation runs the intensity calculation on a bounded worker,
// writing results (or failure) back onto eq so notifiers observing
// eq.Done() see the enriched payload (spec.md §4.2, §4.9).
func (c *Controller) launchComputation(ctx context.Context, eq *quake.Earthquake) {
	go func() {
		c.workers <- struct{}{}
		defer func() { <-c.workers }()

		expected, cityMax, err := intensity.Calculate(ctx, eq, c.regions, c.cache)
		if err != nil {
			eq.Fail(err)
			return
		}
		eq.SetResults(expected, cityMax)
	}()
}

// OnBulletin implements wsclient.Sink, letting the WebSocket session forward
// routed eew frames directly into the ingest pipeline.
func (c *Controller) OnBulletin(ctx context.Context, b bulletin.Bulletin) {
	c.HandleBulletin(ctx, b)
}

// OnNTP implements wsclient.Sink. Clock-skew observation is out of scope
// (spec.md Non-goals); the frame is acknowledged and discarded.
func (c *Controller) OnNTP(ctx context.Context, serverTime time.Time) {}

// HandleSnapshot processes one HTTP poll cycle's full bulletin list (spec.md
// §4.7: "each cycle, every returned bulletin is forwarded"), then lifts any
// tracked alert missing from the snapshot by set-difference (spec.md §4.8
// step 6).
func (c *Controller) HandleSnapshot(ctx context.Context, bulletins []bulletin.Bulletin) {
	present := make(map[string]bool, len(bulletins))
	for _, b := range bulletins {
		present[b.ID] = true
		c.HandleBulletin(ctx, b)
	}

	for _, a := range c.table.Snapshot() {
		if present[a.ID] {
			continue
		}
		if _, ok := c.table.Remove(a.ID); ok {
			c.registry.LiftEEW(ctx, a)
		}
	}
}

// ExpireLoop runs until ctx is cancelled, periodically evicting alerts past
// their TTL or inactivity-lift deadline and dispatching lift_eew for each
// (spec.md §4.3 expire(), §9 Open Question resolution). Used in both
// transport modes; WS mode has no explicit lift frame so this loop is its
// only source of lifts besides HandleSnapshot in HTTP mode.
func (c *Controller) ExpireLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			for _, a := range c.table.Expire(now) {
				c.registry.LiftEEW(ctx, a)
			}
			for _, a := range c.table.LiftInactive(now) {
				c.registry.LiftEEW(ctx, a)
			}
		}
	}
}
