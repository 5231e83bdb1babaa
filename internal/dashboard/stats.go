package dashboard

import (
	"sort"
	"sync"
	"time"

	"github.com/tw-eew/eewgateway/internal/alert"
)

// Snapshot is one alert as rendered to dashboard clients, adapted from the
// original's Earthquake read model (source/ocean/region) to this domain's
// provider and per-area maximum intensity.
type Snapshot struct {
	ID          string    `json:"id"`
	Serial      int       `json:"serial"`
	Provider    string    `json:"provider"`
	Magnitude   float64   `json:"magnitude"`
	DepthKM     int       `json:"depth_km"`
	Lat         float64   `json:"lat"`
	Lon         float64   `json:"lon"`
	OriginTime  time.Time `json:"origin_time"`
	PublishTime time.Time `json:"publish_time"`
	MaxArea     string    `json:"max_area,omitempty"`
	MaxRounded  int       `json:"max_rounded,omitempty"`
}

// SnapshotFor renders a, including its intensity results if the background
// computation has already finished, for broadcast or API consumption.
func SnapshotFor(a alert.Alert) Snapshot { return snapshotOf(a) }

func snapshotOf(a alert.Alert) Snapshot {
	s := Snapshot{
		ID:          a.ID,
		Serial:      a.Serial,
		Provider:    a.Provider.Code,
		Magnitude:   a.EQ.Magnitude,
		DepthKM:     a.EQ.DepthKM,
		Lat:         a.EQ.Epicenter.Lat,
		Lon:         a.EQ.Epicenter.Lon,
		OriginTime:  a.EQ.OriginTime,
		PublishTime: a.PublishTime,
	}

	select {
	case <-a.EQ.Done():
		best := -1.0
		for city, ri := range a.EQ.CityMax() {
			if ri.Intensity.Value > best {
				best = ri.Intensity.Value
				s.MaxArea = city
				s.MaxRounded = ri.Intensity.Bucket
			}
		}
	default:
	}

	return s
}

// Stats is an in-memory read model over currently-tracked alerts, adapted
// from the original's EarthquakeManager (internal/manager in the teacher)
// generalized from an ocean/region taxonomy to provider and tracking counts.
type Stats struct {
	mu       sync.RWMutex
	byID     map[string]Snapshot
	byLifted map[string]time.Time // lifted ids and when they were lifted
}

// NewStats constructs an empty Stats.
func NewStats() *Stats {
	return &Stats{
		byID:     make(map[string]Snapshot),
		byLifted: make(map[string]time.Time),
	}
}

// Upsert records or replaces the snapshot for a NEW or UPDATE dispatch.
func (s *Stats) Upsert(a alert.Alert) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byID[a.ID] = snapshotOf(a)
	delete(s.byLifted, a.ID)
}

// Remove records a lift: the id leaves the tracked set and is kept in
// byLifted until a CleanLifted call with a later cutoff drops it. No
// endpoint reads byLifted.
func (s *Stats) Remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.byID, id)
	s.byLifted[id] = time.Now()
}

// CleanLifted drops lifted ids recorded before cutoff, bounding byLifted's
// growth (adapted from the original's periodic CleanOld).
func (s *Stats) CleanLifted(cutoff time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, at := range s.byLifted {
		if at.Before(cutoff) {
			delete(s.byLifted, id)
		}
	}
}

// All returns every tracked alert snapshot, most recently originated first.
func (s *Stats) All() []Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Snapshot, 0, len(s.byID))
	for _, snap := range s.byID {
		out = append(out, snap)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OriginTime.After(out[j].OriginTime) })
	return out
}

// Counts summarizes the current tracked set by provider, for the /api/stats
// endpoint (adapted from the original's GetStats by_oceano/by_region/
// by_source breakdown).
func (s *Stats) Counts() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byProvider := make(map[string]int)
	for _, snap := range s.byID {
		byProvider[snap.Provider]++
	}

	return map[string]any{
		"total":       len(s.byID),
		"by_provider": byProvider,
	}
}
