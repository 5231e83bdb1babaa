package notify

import (
	"context"
	"sync"

	"github.com/tw-eew/eewgateway/internal/alert"
	"github.com/tw-eew/eewgateway/internal/config"
	"github.com/tw-eew/eewgateway/internal/logging"
)

// Registry holds every successfully-built notifier and fans out dispatch
// calls to each, concurrently and without waiting (spec.md §4.4: "Dispatch
// to all notifiers is concurrent; the caller does not wait for completion
// before returning from ingest").
type Registry struct {
	logger    logging.Logger
	notifiers []Notifier
}

// Build constructs a Registry from factories, looking up each one's
// configuration namespace in cfg. A factory whose section is absent is
// skipped with a Warn log; one whose New returns (nil, nil) is skipped with
// a Debug log (spec.md §4.4).
func Build(factories []Factory, cfg *config.Config, logger logging.Logger) *Registry {
	r := &Registry{logger: logger}
	for _, f := range factories {
		section, ok := cfg.NotifierSection(f.Namespace())
		if !ok {
			logger.Warnf("notify: no configuration section for %q, skipping", f.Namespace())
			continue
		}
		n, err := f.New(section, logger.WithField("notifier", f.Namespace()))
		if err != nil {
			logger.WithField("notifier", f.Namespace()).Errorf("notify: factory failed: %v", err)
			continue
		}
		if n == nil {
			logger.Debugf("notify: factory %q declined to register", f.Namespace())
			continue
		}
		r.notifiers = append(r.notifiers, n)
	}
	return r
}

// Start runs every Starter's one-shot startup concurrently, waiting for all
// to finish so a notifier requiring a connection is ready before the first
// dispatch. A failing Starter is logged and its notifier is dropped from
// further dispatch — per spec.md §4.4, notifier errors never block ingest
// or other notifiers.
func (r *Registry) Start(ctx context.Context) {
	var wg sync.WaitGroup
	var mu sync.Mutex
	var started []Notifier

	for _, n := range r.notifiers {
		s, ok := n.(Starter)
		if !ok {
			mu.Lock()
			started = append(started, n)
			mu.Unlock()
			continue
		}
		wg.Add(1)
		go func(n Notifier, s Starter) {
			defer wg.Done()
			if err := s.Start(ctx); err != nil {
				r.logger.WithField("notifier", n.Name()).Errorf("notify: start failed: %v", err)
				return
			}
			mu.Lock()
			started = append(started, n)
			mu.Unlock()
		}(n, s)
	}
	wg.Wait()
	r.notifiers = started
}

// SendEEW dispatches a NEW alert to every EEWSender, fire-and-forget
// (spec.md §4.4, §4.8 step 3).
func (r *Registry) SendEEW(ctx context.Context, a alert.Alert) {
	r.dispatch(func(n Notifier) (bool, error) {
		s, ok := n.(EEWSender)
		if !ok {
			return false, nil
		}
		return true, s.SendEEW(ctx, a)
	}, "send_eew")
}

// UpdateEEW dispatches an UPDATE alert to every EEWUpdater (spec.md §4.8
// step 4).
func (r *Registry) UpdateEEW(ctx context.Context, a alert.Alert) {
	r.dispatch(func(n Notifier) (bool, error) {
		u, ok := n.(EEWUpdater)
		if !ok {
			return false, nil
		}
		return true, u.UpdateEEW(ctx, a)
	}, "update_eew")
}

// LiftEEW dispatches a lift to every EEWLifter (spec.md §4.8 step 6).
func (r *Registry) LiftEEW(ctx context.Context, a alert.Alert) {
	r.dispatch(func(n Notifier) (bool, error) {
		l, ok := n.(EEWLifter)
		if !ok {
			return false, nil
		}
		return true, l.LiftEEW(ctx, a)
	}, "lift_eew")
}

// dispatch runs call against every notifier concurrently. Errors are logged
// and swallowed: per spec.md §4.4 a notifier failure never blocks ingest or
// other notifiers, and the caller here does not wait for completion.
func (r *Registry) dispatch(call func(Notifier) (bool, error), op string) {
	for _, n := range r.notifiers {
		n := n
		go func() {
			applicable, err := call(n)
			if !applicable || err == nil {
				return
			}
			r.logger.WithField("notifier", n.Name()).Errorf("notify: %s failed: %v", op, err)
		}()
	}
}

// Close releases every Closer's resources, waiting up to the caller's ctx
// deadline (spec.md §4.9: "awaits notifier close hooks ... with a 5s
// grace").
func (r *Registry) Close(ctx context.Context) {
	var wg sync.WaitGroup
	for _, n := range r.notifiers {
		c, ok := n.(Closer)
		if !ok {
			continue
		}
		wg.Add(1)
		go func(n Notifier, c Closer) {
			defer wg.Done()
			if err := c.Close(ctx); err != nil {
				r.logger.WithField("notifier", n.Name()).Errorf("notify: close failed: %v", err)
			}
		}(n, c)
	}

	done := make(chan struct{})
	go func() { wg.Wait(); close(done) }()
	select {
	case <-done:
	case <-ctx.Done():
		r.logger.Warn("notify: close grace period elapsed with notifiers still closing")
	}
}

// Len returns the number of successfully registered notifiers.
func (r *Registry) Len() int { return len(r.notifiers) }
