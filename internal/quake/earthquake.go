package quake

import (
	"sync"
	"time"

	"github.com/tw-eew/eewgateway/internal/geo"
)

// EarthquakeLocation is a Location with an optional upstream display name
// (spec.md §3).
type EarthquakeLocation struct {
	geo.Location
	DisplayName string
}

// Earthquake is an immutable snapshot of one bulletin serial's hypocenter
// data, plus the lazily-computed per-region intensity fields.
//
// The derived fields (Expected, CityMax) are written exactly once by the
// background computation (internal/intensity) and read afterwards by
// notifiers; Done is the Go analogue of the original's asyncio.Event-based
// computation_done signal (spec.md §9 REDESIGN FLAGS) — a close-once channel
// instead of a coroutine-scoped event object.
type Earthquake struct {
	Epicenter    EarthquakeLocation
	Magnitude    float64
	DepthKM      int
	OriginTime   time.Time
	MaxIntensity *Intensity // reported bucket, if the provider supplied one

	mu         sync.RWMutex
	expected   map[int]RegionExpectedIntensity
	cityMax    map[string]RegionExpectedIntensity
	computeErr error

	done     chan struct{}
	doneOnce sync.Once
}

// New constructs an Earthquake with its computation_done signal armed.
func New(epicenter EarthquakeLocation, magnitude float64, depthKM int, originTime time.Time, maxIntensity *Intensity) *Earthquake {
	return &Earthquake{
		Epicenter:    epicenter,
		Magnitude:    magnitude,
		DepthKM:      depthKM,
		OriginTime:   originTime,
		MaxIntensity: maxIntensity,
		done:         make(chan struct{}),
	}
}

// Done returns a channel that closes exactly once the computation finishes,
// successfully or not.
func (e *Earthquake) Done() <-chan struct{} {
	return e.done
}

// SetResults records the computed per-region and per-city intensities and
// signals completion. Safe to call at most once; later calls are no-ops.
func (e *Earthquake) SetResults(expected map[int]RegionExpectedIntensity, cityMax map[string]RegionExpectedIntensity) {
	e.mu.Lock()
	e.expected = expected
	e.cityMax = cityMax
	e.mu.Unlock()
	e.doneOnce.Do(func() { close(e.done) })
}

// Fail records a ComputationFailure: notifiers observing Done() afterwards
// see a degraded payload (Expected/CityMax stay nil) rather than blocking
// forever (spec.md §7).
func (e *Earthquake) Fail(err error) {
	e.mu.Lock()
	e.computeErr = err
	e.mu.Unlock()
	e.doneOnce.Do(func() { close(e.done) })
}

// Expected returns the per-region expected intensity map. Only meaningful
// after Done() has closed; returns nil beforehand or on ComputationFailure.
func (e *Earthquake) Expected() map[int]RegionExpectedIntensity {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.expected
}

// CityMax returns the per-city maximum expected intensity map.
func (e *Earthquake) CityMax() map[string]RegionExpectedIntensity {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.cityMax
}

// Err returns the computation error, if SetResults was never reached.
func (e *Earthquake) Err() error {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.computeErr
}
