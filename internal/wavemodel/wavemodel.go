// Package wavemodel implements the depth-keyed P/S travel-time interpolation
// cache (C1): for each integer hypocenter depth, a pair of monotonic tables
// mapping epicentral distance to wave arrival time and back.
package wavemodel

import (
	"math"
	"sort"
)

// sampleCount is "~100 epicentral distances" per spec.md §4.1.
const sampleCount = 100

// maxSampleDegrees is the sampled domain, "[0°, 1°)" per spec.md §4.1.
const maxSampleDegrees = 1.0

// series is a monotonically increasing (x, y) table supporting forward
// lookup (interpolate y for x) and inverse lookup (interpolate x for y).
// Both x and y are strictly increasing by construction of Build.
type series struct {
	x []float64 // distance, radians
	y []float64 // time, seconds
}

func (s series) forward(x float64) (y float64, ok bool) {
	if len(s.x) == 0 || x < s.x[0] || x > s.x[len(s.x)-1] {
		return 0, false
	}
	i := sort.SearchFloat64s(s.x, x)
	if i < len(s.x) && s.x[i] == x {
		return s.y[i], true
	}
	// i is the first index with s.x[i] > x; interpolate between i-1 and i.
	lo, hi := i-1, i
	return lerp(s.x[lo], s.y[lo], s.x[hi], s.y[hi], x), true
}

func (s series) inverse(y float64) (x float64, ok bool) {
	if len(s.y) == 0 || y < s.y[0] {
		return 0, true // clamp negative/zero-time solutions to 0, per spec.md §4.1
	}
	if y > s.y[len(s.y)-1] {
		return 0, false
	}
	i := sort.SearchFloat64s(s.y, y)
	if i < len(s.y) && s.y[i] == y {
		return s.x[i], true
	}
	lo, hi := i-1, i
	return lerp(s.y[lo], s.x[lo], s.y[hi], s.x[hi], y), true
}

func lerp(x0, y0, x1, y1, x float64) float64 {
	if x1 == x0 {
		return y0
	}
	t := (x - x0) / (x1 - x0)
	return y0 + t*(y1-y0)
}

// WaveModel is the cached pair of P/S interpolators for one integer
// hypocenter depth (km).
type WaveModel struct {
	Depth int
	p     series
	s     series
}

// Build samples the analytic travel-time model at sampleCount epicentral
// distances evenly spaced across [0°, maxSampleDegrees°) and fits the two
// monotonic P/S tables. Idempotent: calling Build twice for the same depth
// produces equivalent tables.
func Build(depth int) *WaveModel {
	p := series{x: make([]float64, 0, sampleCount), y: make([]float64, 0, sampleCount)}
	s := series{x: make([]float64, 0, sampleCount), y: make([]float64, 0, sampleCount)}

	for i := 0; i < sampleCount; i++ {
		degrees := maxSampleDegrees * float64(i) / float64(sampleCount)
		rad := degrees * math.Pi / 180

		surfaceKM := rad * EarthRadiusKM
		hypocentralKM := math.Sqrt(surfaceKM*surfaceKM + float64(depth*depth))
		if hypocentralKM <= 0 {
			continue
		}

		pTime, sTime := travelTime(depth, hypocentralKM)
		if math.IsNaN(pTime) || math.IsInf(pTime, 0) || math.IsNaN(sTime) || math.IsInf(sTime, 0) {
			continue
		}

		p.x = append(p.x, rad)
		p.y = append(p.y, pTime)
		s.x = append(s.x, rad)
		s.y = append(s.y, sTime)
	}

	return &WaveModel{Depth: depth, p: p, s: s}
}

// TravelTime returns the P and S wave travel times (seconds) for an
// epicentral distance (radians). ok is false when distanceRad falls outside
// the sampled domain — callers should fall back to extrapolation
// (spec.md §4.2 edge case) rather than dropping the region.
func (w *WaveModel) TravelTime(distanceRad float64) (pSeconds, sSeconds float64, ok bool) {
	pSeconds, okP := w.p.forward(distanceRad)
	sSeconds, okS := w.s.forward(distanceRad)
	return pSeconds, sSeconds, okP && okS
}

// ArrivalDistance returns, for elapsed time t seconds since origin, the
// epicentral distance (degrees) the P and S wavefronts have reached.
// Negative results are clamped to 0 per spec.md §4.1.
func (w *WaveModel) ArrivalDistance(tSeconds float64) (pDeg, sDeg float64, ok bool) {
	pRad, okP := w.p.inverse(tSeconds)
	sRad, okS := w.s.inverse(tSeconds)
	if !okP || !okS {
		return 0, 0, false
	}
	return math.Max(0, pRad*180/math.Pi), math.Max(0, sRad*180/math.Pi), true
}
