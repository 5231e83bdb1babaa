// Package bulletin decodes the raw upstream EEW wire schema (spec.md §6),
// shared by both the HTTP poller (C5) and the WebSocket session (C6).
package bulletin

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/tw-eew/eewgateway/internal/errs"
	"github.com/tw-eew/eewgateway/internal/geo"
	"github.com/tw-eew/eewgateway/internal/logging"
	"github.com/tw-eew/eewgateway/internal/quake"
)

// Hypocenter is the inner "eq" object of a bulletin.
type Hypocenter struct {
	Lat          float64 `json:"lat"`
	Lon          float64 `json:"lon"`
	DepthKM      int     `json:"depth"`
	Mag          float64 `json:"mag"`
	TimeMS       int64   `json:"time"`
	Loc          string  `json:"loc,omitempty"`
	MaxIntensity *int    `json:"max,omitempty"`
}

// Bulletin is one upstream EEW wire message (spec.md §6).
type Bulletin struct {
	ID     string     `json:"id"`
	Serial int        `json:"serial"`
	Final  int        `json:"final"`
	Author string     `json:"author"`
	TimeMS int64      `json:"time"`
	EQ     Hypocenter `json:"eq"`
}

// IsFinal reports whether this is the last bulletin of an alert (spec.md
// §GLOSSARY: "Final").
func (b Bulletin) IsFinal() bool { return b.Final != 0 }

// PublishTime is the bulletin's publish timestamp.
func (b Bulletin) PublishTime() time.Time {
	return time.UnixMilli(b.TimeMS)
}

// OriginTime is the hypocenter's origin timestamp.
func (b Bulletin) OriginTime() time.Time {
	return time.UnixMilli(b.EQ.TimeMS)
}

// DecodeArray decodes a `GET /eq/eew` response body (spec.md §6: "JSON array
// of bulletin objects") element-by-element, so one malformed element does
// not fail the whole batch (spec.md §7: "DecodeError on a bulletin — drop
// the bulletin, log at warn, do not affect other bulletins"). Only a
// malformed top-level array is a hard error; a malformed element is logged
// and skipped.
func DecodeArray(data []byte, logger logging.Logger) ([]Bulletin, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("bulletin: decode array: %w", err)
	}

	out := make([]Bulletin, 0, len(raw))
	for i, elem := range raw {
		var b Bulletin
		if err := json.Unmarshal(elem, &b); err != nil {
			logger.Warnf("bulletin: %v", errs.New(errs.DecodeError, fmt.Sprintf("dropping malformed element %d", i), err))
			continue
		}
		out = append(out, b)
	}
	return out, nil
}

// ToEarthquake builds the immutable Earthquake snapshot this bulletin
// describes (spec.md §3: "Earthquake — immutable snapshot per bulletin
// serial").
func (b Bulletin) ToEarthquake() *quake.Earthquake {
	loc := quake.EarthquakeLocation{
		Location: geo.Location{Lon: b.EQ.Lon, Lat: b.EQ.Lat},
	}
	if b.EQ.Loc != "" {
		loc.DisplayName = b.EQ.Loc
	}

	var maxIntensity *quake.Intensity
	if b.EQ.MaxIntensity != nil {
		i := quake.NewIntensity(float64(*b.EQ.MaxIntensity))
		maxIntensity = &i
	}

	return quake.New(loc, b.EQ.Mag, b.EQ.DepthKM, b.OriginTime(), maxIntensity)
}
