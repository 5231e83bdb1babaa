package wavemodel

import "math"

// EarthRadiusKM is the mean Earth radius used for epicentral distance
// conversions throughout the intensity pipeline.
const EarthRadiusKM = 6371.008

// travelTime returns the P and S wave travel times, in seconds, for a quake
// at the given depth (km) and hypocentral distance (km).
//
// Ported from the two-layer gradient speed model in
// original_source/src/earthquake/model/speed.py — a shallow-vs-deep gradient
// pair (G0, G) solved for the ray takeoff angle via the standard refraction
// travel-time integral, with a maximum-apparent-velocity clamp (P ≤ 7 km/s,
// S ≤ 4 km/s) matching the source's clamp at the tail end of the function.
func travelTime(depth int, hypocentralKM float64) (pTime, sTime float64) {
	za := float64(depth)
	var g0, g float64
	if depth <= 40 {
		g0, g = 5.10298, 0.06659
	} else {
		g0, g = 7.804799, 0.004573
	}

	pTime = travelLeg(za, hypocentralKM, g0, g)
	sTime = travelLeg(za, hypocentralKM, g0/1.732, g/1.732)

	if hypocentralKM/pTime > 7 {
		pTime = hypocentralKM / 7
	}
	if hypocentralKM/sTime > 4 {
		sTime = hypocentralKM / 4
	}
	return pTime, sTime
}

// travelLeg solves the single-layer refraction travel time for one wave type
// given its gradient pair (g0, g).
func travelLeg(za, xb, g0, g float64) float64 {
	zc := -1 * (g0 / g)
	xc := (xb*xb - 2*(g0/g)*za - za*za) / (2 * xb)

	thetaA := math.Atan((za - zc) / xc)
	if thetaA < 0 {
		thetaA += math.Pi
	}
	thetaA = math.Pi - thetaA

	thetaB := math.Atan((-1 * zc) / (xb - xc))
	return (1 / g) * math.Log(math.Tan(thetaA/2)/math.Tan(thetaB/2))
}
