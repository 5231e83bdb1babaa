package quake

import "fmt"

// Intensity is a computed PGA/PGV-derived score bucketed into the JMA-style
// 0..9 scale used for display and region coloring.
type Intensity struct {
	Value  float64 // raw floating-point score, pre-bucket
	Bucket int     // 0..9, see RoundIntensity
}

// jmaDisplay mirrors the conventional JMA shindo display strings, including
// the "-弱"/"-強" split for shindo 5 and 6 (buckets 5-8).
var jmaDisplay = map[int]string{
	0: "0", 1: "1", 2: "2", 3: "3", 4: "4",
	5: "5弱", 6: "5強", 7: "6弱", 8: "6強", 9: "7",
}

// String returns the conventional display label for the bucket.
func (i Intensity) String() string {
	if s, ok := jmaDisplay[i.Bucket]; ok {
		return s
	}
	return fmt.Sprintf("%d", i.Bucket)
}

// RoundIntensity buckets a raw floating-point intensity value per spec.md §3:
// <0→0; <4.5→round; <5→5; <5.5→6; <6→7; <6.5→8; else 9.
func RoundIntensity(value float64) int {
	switch {
	case value < 0:
		return 0
	case value < 4.5:
		return roundHalfAwayFromZero(value)
	case value < 5:
		return 5
	case value < 5.5:
		return 6
	case value < 6:
		return 7
	case value < 6.5:
		return 8
	default:
		return 9
	}
}

// roundHalfAwayFromZero rounds exact .5 boundaries away from zero, unlike
// the Python original's round() (round-half-to-even).
func roundHalfAwayFromZero(v float64) int {
	if v >= 0 {
		return int(v + 0.5)
	}
	return -int(-v + 0.5)
}

// NewIntensity buckets a raw value into an Intensity.
func NewIntensity(value float64) Intensity {
	return Intensity{Value: value, Bucket: RoundIntensity(value)}
}
