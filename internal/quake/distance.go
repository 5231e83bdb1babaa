package quake

import "time"

// Distance bundles the geometric and travel-time facts for one region
// relative to one earthquake's hypocenter.
type Distance struct {
	KM  float64 // hypocentral distance, km
	Deg float64 // epicentral distance, degrees

	PTravelSeconds float64
	STravelSeconds float64

	PArrival time.Time
	SArrival time.Time
}

// RegionExpectedIntensity bundles one region's expected shaking for one
// earthquake.
type RegionExpectedIntensity struct {
	RegionCode int
	Intensity  Intensity
	Distance   Distance
}

// Provider identifies the upstream source of a bulletin (spec.md §6:
// "cwa", "trem", ...).
type Provider struct {
	Code string
}

// providerDisplay mirrors PROVIDER_DISPLAY in
// original_source/src/earthquake/eew.py.
var providerDisplay = map[string]string{
	"cwa": "中央氣象署",
}

// DisplayName returns a human-readable provider name, falling back to the
// raw code for providers without a known display mapping.
func (p Provider) DisplayName() string {
	if name, ok := providerDisplay[p.Code]; ok {
		return name
	}
	return p.Code
}
