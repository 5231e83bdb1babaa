package alert

import (
	"context"
	"sync"
	"time"
)

// Table is the keyed, TTL-bounded registry of active alerts (spec.md §4.3).
// All operations serialize on one mutex: mutation rate is low (one bulletin
// at a time per upstream id), so a single lock is simpler than per-key
// striping and meets the spec's own concurrency note.
type Table struct {
	mu      sync.Mutex
	entries map[string]*entry
}

// NewTable constructs an empty alert table.
func NewTable() *Table {
	return &Table{entries: make(map[string]*entry)}
}

// Classify compares an incoming (id, serial) against the table's current
// entry (spec.md §4.3). It does not mutate the table; call Upsert to commit
// a NEW or UPDATE classification atomically.
func (t *Table) Classify(id string, serial int) Classification {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.classifyLocked(id, serial)
}

func (t *Table) classifyLocked(id string, serial int) Classification {
	e, ok := t.liveLocked(id)
	switch {
	case !ok:
		return NEW
	case serial > e.alert.Serial:
		return UPDATE
	case serial == e.alert.Serial:
		return DUPLICATE
	default:
		return STALE
	}
}

// liveLocked looks up id, treating an entry past its expire_at as absent
// rather than waiting for the next Expire sweep to evict it (spec.md §8:
// "absent from the table on any access"). Callers must hold t.mu.
func (t *Table) liveLocked(id string) (*entry, bool) {
	e, ok := t.entries[id]
	if !ok {
		return nil, false
	}
	if time.Now().After(e.expireAt) {
		if e.cancel != nil {
			e.cancel()
		}
		delete(t.entries, id)
		return nil, false
	}
	return e, true
}

// Upsert atomically re-classifies (id, serial) under the table lock and, if
// it is NEW or UPDATE, commits build()'s result as the new entry — cancelling
// the prior computation first on UPDATE (spec.md §4.3 "insert"/"replace":
// "unconditional write, cancels prior computation"). build is only invoked
// when the classification calls for a commit, so callers can defer
// constructing the Earthquake/cancel func until it's known to be needed.
//
// Combining classify+insert/replace into one locked call (rather than the
// spec's three separate operations) is what makes "exactly-one-dispatch per
// transition" (spec.md §4.8) hold under concurrent bulletins for the same id.
// Upsert also returns the committed Alert directly: a caller that needs to
// dispatch on NEW/UPDATE must use this value rather than a follow-up Get,
// since a concurrent call for the same id (e.g. the HTTP poller racing the
// WS session, spec.md §4.7) can commit a newer serial in between.
func (t *Table) Upsert(id string, serial int, build func() (Alert, context.CancelFunc)) (Alert, Classification) {
	t.mu.Lock()
	defer t.mu.Unlock()

	class := t.classifyLocked(id, serial)
	switch class {
	case NEW:
		a, cancel := build()
		t.entries[id] = newEntry(a, cancel)
		return a, class
	case UPDATE:
		if prior, ok := t.entries[id]; ok && prior.cancel != nil {
			prior.cancel()
		}
		a, cancel := build()
		t.entries[id] = newEntry(a, cancel)
		return a, class
	default:
		e := t.entries[id]
		return e.alert, class
	}
}

func newEntry(a Alert, cancel context.CancelFunc) *entry {
	e := &entry{alert: a, expireAt: a.PublishTime.Add(ttl), cancel: cancel}
	if a.EQ != nil {
		e.inactiveAt = a.EQ.OriginTime.Add(inactivityLift)
	}
	return e
}

// LiftInactive drops and returns entries past their inactivity-lift
// deadline (120s past origin_time with no terminating signal), the same
// way Expire handles the 1h TTL (spec.md §5, §9 Open Question).
func (t *Table) LiftInactive(now time.Time) []Alert {
	t.mu.Lock()
	defer t.mu.Unlock()

	var lifted []Alert
	for id, e := range t.entries {
		if e.inactiveAt.IsZero() || now.Before(e.inactiveAt) {
			continue
		}
		if e.cancel != nil {
			e.cancel()
		}
		lifted = append(lifted, e.alert)
		delete(t.entries, id)
	}
	return lifted
}

// Remove deletes id unconditionally, cancelling its computation if still
// running, and returns the removed Alert.
func (t *Table) Remove(id string) (Alert, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.entries[id]
	if !ok {
		return Alert{}, false
	}
	if e.cancel != nil {
		e.cancel()
	}
	delete(t.entries, id)
	return e.alert, true
}

// Expire drops entries whose expire_at has passed as of now, cancelling
// their computations, and returns them for lift dispatch (spec.md §4.3).
func (t *Table) Expire(now time.Time) []Alert {
	t.mu.Lock()
	defer t.mu.Unlock()

	var lifted []Alert
	for id, e := range t.entries {
		if now.After(e.expireAt) {
			if e.cancel != nil {
				e.cancel()
			}
			lifted = append(lifted, e.alert)
			delete(t.entries, id)
		}
	}
	return lifted
}

// Snapshot returns a point-in-time copy of every non-expired alert, used by
// the HTTP poller to compute the lift set by set-difference against the
// latest upstream response (spec.md §4.8 step 6) without holding the table
// lock during notifier dispatch. Entries past their expire_at are left in
// the table for the next Expire sweep to lift.
func (t *Table) Snapshot() []Alert {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := time.Now()
	out := make([]Alert, 0, len(t.entries))
	for _, e := range t.entries {
		if now.After(e.expireAt) {
			continue
		}
		out = append(out, e.alert)
	}
	return out
}

// Get returns the current alert for id, if present and unexpired.
func (t *Table) Get(id string) (Alert, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.liveLocked(id)
	if !ok {
		return Alert{}, false
	}
	return e.alert, true
}

// Len returns the number of tracked alerts, including any past their
// expire_at but not yet evicted by a call to Expire.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}
