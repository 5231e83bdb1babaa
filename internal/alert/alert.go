// Package alert implements the time-bounded, keyed alert lifecycle tracker
// (C3): new/update/lift classification with exactly-once dispatch per
// transition, and TTL-based eviction.
package alert

import (
	"context"
	"time"

	"github.com/tw-eew/eewgateway/internal/quake"
)

// ttl is the alert table entry lifetime from publish_time (spec.md §3, §5).
const ttl = time.Hour

// Alert is one provider-assigned alert identity at a given serial (spec.md
// §3: "Alert"). Identity is ID; ordering on updates is by strictly
// increasing Serial.
type Alert struct {
	ID          string
	Serial      int
	Final       bool
	Provider    quake.Provider
	PublishTime time.Time
	EQ          *quake.Earthquake
}

// Classification is the result of comparing an incoming bulletin's serial
// against the table's current entry for its id (spec.md §4.3).
type Classification int

const (
	// NEW: id not previously present.
	NEW Classification = iota
	// UPDATE: id present and the incoming serial is strictly higher than
	// the stored one.
	UPDATE
	// DUPLICATE: id present with an equal serial.
	DUPLICATE
	// STALE: id present and the incoming serial is lower than the stored
	// one. Ignored; logged at debug by the caller.
	STALE
)

func (c Classification) String() string {
	switch c {
	case NEW:
		return "NEW"
	case UPDATE:
		return "UPDATE"
	case DUPLICATE:
		return "DUPLICATE"
	case STALE:
		return "STALE"
	default:
		return "UNKNOWN"
	}
}

// inactivityLift is the Discord-style "lift-on-inactivity" deadline: 120s
// past origin_time, dispatch lift if the alert is still present then
// (spec.md §5 Timeouts; §9 Open Question resolution — lift on the earliest
// of an explicit provider signal, this deadline, or the 1h TTL).
const inactivityLift = 120 * time.Second

// entry is Alert plus the bookkeeping needed for TTL eviction, the
// inactivity lift deadline, and computation cancellation (spec.md §3:
// "Alert table entry").
type entry struct {
	alert      Alert
	expireAt   time.Time
	inactiveAt time.Time
	cancel     context.CancelFunc
}
