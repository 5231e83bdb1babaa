// Package runtime wires every core component into one process lifecycle
// (C9): the alert table, notifier registry, transport supervisor, and the
// ingest controller's computation worker pool, following the teacher's
// cmd/server/main.go signal-handling shape (os/signal, syscall.SIGTERM, a
// bounded grace context for Shutdown) generalized from just the HTTP
// listener to the whole runtime (spec.md §4.9).
package runtime

import (
	"context"
	"sync"
	"time"

	"github.com/tw-eew/eewgateway/internal/alert"
	"github.com/tw-eew/eewgateway/internal/ingest"
	"github.com/tw-eew/eewgateway/internal/logging"
	"github.com/tw-eew/eewgateway/internal/notify"
	"github.com/tw-eew/eewgateway/internal/transport"
)

// shutdownGrace bounds how long Shutdown waits for notifier Close hooks and
// in-flight work to wind down (spec.md §4.3: "awaits them with a 5 s grace").
const shutdownGrace = 5 * time.Second

// expireInterval is the cadence of the alert table's TTL/inactivity sweep
// (spec.md §5).
const expireInterval = time.Second

// Runtime owns the full set of long-running goroutines for one process
// lifetime: the transport supervisor, the ingest controller's expiry sweep,
// and notifier startup/shutdown.
type Runtime struct {
	table      *alert.Table
	registry   *notify.Registry
	supervisor *transport.Supervisor
	controller *ingest.Controller
	logger     logging.Logger

	ready    chan struct{}
	readyOne sync.Once

	ctx    context.Context
	cancel context.CancelFunc

	wg sync.WaitGroup
}

// New constructs a Runtime over already-built components. ctx is the
// process-lifetime parent context; cancelling it (or calling Shutdown)
// begins the shutdown sequence.
func New(ctx context.Context, table *alert.Table, registry *notify.Registry, supervisor *transport.Supervisor, controller *ingest.Controller, logger logging.Logger) *Runtime {
	runCtx, cancel := context.WithCancel(ctx)
	return &Runtime{
		table:      table,
		registry:   registry,
		supervisor: supervisor,
		controller: controller,
		logger:     logger,
		ready:      make(chan struct{}),
		ctx:        runCtx,
		cancel:     cancel,
	}
}

// Ready returns a channel that closes once startup (notifier Start hooks)
// has completed.
func (r *Runtime) Ready() <-chan struct{} { return r.ready }

// Run starts every long-running goroutine and blocks until ctx is
// cancelled or Shutdown is called (spec.md §4.3: "run() blocks until
// shutdown is requested").
func (r *Runtime) Run() {
	r.registry.Start(r.ctx)
	r.readyOne.Do(func() { close(r.ready) })

	r.wg.Add(2)
	go func() {
		defer r.wg.Done()
		r.supervisor.Run(r.ctx)
	}()
	go func() {
		defer r.wg.Done()
		r.controller.ExpireLoop(r.ctx, expireInterval)
	}()

	<-r.ctx.Done()
	r.drain()
}

// Shutdown requests a graceful stop by cancelling the runtime context, which
// stops the supervisor, the expiry loop and the computations started under
// it. It returns at once; Run then awaits those goroutines and the notifier
// Close hooks, each within shutdownGrace (spec.md §4.3, §4.9).
func (r *Runtime) Shutdown() {
	r.cancel()
}

// drain waits for the supervisor and expiry loop to return, then closes the
// notifier registry within shutdownGrace.
func (r *Runtime) drain() {
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(shutdownGrace):
		r.logger.Warn("runtime: shutdown grace period elapsed with goroutines still running")
	}

	closeCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	r.registry.Close(closeCtx)
}
