// Package intensity implements the per-alert seismic compute pipeline (C2):
// expected MMI-style intensity and P/S arrival time for every region,
// relative to one earthquake's hypocenter.
package intensity

import (
	"context"
	"math"
	"time"

	"github.com/tw-eew/eewgateway/internal/geo"
	"github.com/tw-eew/eewgateway/internal/quake"
	"github.com/tw-eew/eewgateway/internal/wavemodel"
)

// siteEffectDefault mirrors geo.DefaultSiteEffect; kept local to avoid an
// import cycle concern and to document the formula's own default.
const siteEffectDefault = geo.DefaultSiteEffect

type geometry struct {
	region        geo.Region
	surfaceDistKM float64
	hypocentralKM float64
	distanceRad   float64
	distanceDeg   float64
	rawIntensity  float64
}

// Calculate computes the expected intensity and arrival times for every
// region in regions (or every loaded region if regions is nil), relative to
// eq. It is side-effect-free on its inputs and safe to run on a worker
// (spec.md §4.2); ctx cancellation is observed between regions so a
// replaced alert's stale computation can stop promptly (spec.md §5).
func Calculate(ctx context.Context, eq *quake.Earthquake, regions []geo.Region, cache *wavemodel.Cache) (expected map[int]quake.RegionExpectedIntensity, cityMax map[string]quake.RegionExpectedIntensity, err error) {
	geometries := make([]geometry, 0, len(regions))
	for _, r := range regions {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		g := computeGeometry(eq, r)
		geometries = append(geometries, g)
	}

	model := cache.Get(eq.DepthKM)

	type arrival struct {
		pSeconds, sSeconds float64
		inDomain           bool
	}
	arrivals := make([]arrival, len(geometries))
	inDomainDeg := make([]float64, 0, len(geometries))
	inDomainP := make([]float64, 0, len(geometries))
	inDomainS := make([]float64, 0, len(geometries))

	for i, g := range geometries {
		pSeconds, sSeconds, ok := model.TravelTime(g.distanceRad)
		arrivals[i] = arrival{pSeconds: pSeconds, sSeconds: sSeconds, inDomain: ok}
		if ok {
			inDomainDeg = append(inDomainDeg, g.distanceDeg)
			inDomainP = append(inDomainP, pSeconds)
			inDomainS = append(inDomainS, sSeconds)
		}
	}

	pFit := fitLinear(inDomainDeg, inDomainP)
	sFit := fitLinear(inDomainDeg, inDomainS)

	expected = make(map[int]quake.RegionExpectedIntensity, len(geometries))
	cityMax = make(map[string]quake.RegionExpectedIntensity)

	for i, g := range geometries {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}

		a := arrivals[i]
		pSeconds, sSeconds := a.pSeconds, a.sSeconds
		if !a.inDomain {
			// Edge case (spec.md §4.2): no travel-time solution in the
			// cached domain — extrapolate linearly from the regions that
			// did resolve, rather than dropping the region.
			pSeconds = pFit.eval(g.distanceDeg)
			sSeconds = sFit.eval(g.distanceDeg)
		}

		dist := quake.Distance{
			KM:             g.hypocentralKM,
			Deg:            g.distanceDeg,
			PTravelSeconds: pSeconds,
			STravelSeconds: sSeconds,
			PArrival:       eq.OriginTime.Add(time.Duration(pSeconds * float64(time.Second))),
			SArrival:       eq.OriginTime.Add(time.Duration(sSeconds * float64(time.Second))),
		}

		rei := quake.RegionExpectedIntensity{
			RegionCode: g.region.Code,
			Intensity:  quake.NewIntensity(g.rawIntensity),
			Distance:   dist,
		}
		expected[g.region.Code] = rei

		if cur, ok := cityMax[g.region.City]; !ok || rei.Intensity.Value > cur.Intensity.Value {
			cityMax[g.region.City] = rei
		}
	}

	return expected, cityMax, nil
}

func computeGeometry(eq *quake.Earthquake, region geo.Region) geometry {
	surfaceDistKM := haversineKM(eq.Epicenter.Lon, eq.Epicenter.Lat, region.Lon, region.Lat)
	depth := float64(eq.DepthKM)
	hypocentralKM := math.Sqrt(surfaceDistKM*surfaceDistKM + depth*depth)

	distanceRad := surfaceDistKM / wavemodel.EarthRadiusKM
	distanceDeg := distanceRad * 180 / math.Pi

	siteEffect := region.SiteEffect
	if siteEffect == 0 {
		siteEffect = siteEffectDefault
	}
	rawIntensity := calculateRawIntensity(hypocentralKM, eq.Magnitude, eq.DepthKM, siteEffect)

	return geometry{
		region:        region,
		surfaceDistKM: surfaceDistKM,
		hypocentralKM: hypocentralKM,
		distanceRad:   distanceRad,
		distanceDeg:   distanceDeg,
		rawIntensity:  rawIntensity,
	}
}

// haversineKM is the great-circle surface distance between two lon/lat
// points, in kilometers (spec.md §4.2 step 1).
func haversineKM(lon1, lat1, lon2, lat2 float64) float64 {
	rLon1 := lon1 * math.Pi / 180
	rLat1 := lat1 * math.Pi / 180
	rLon2 := lon2 * math.Pi / 180
	rLat2 := lat2 * math.Pi / 180

	dLon := rLon2 - rLon1
	dLat := rLat2 - rLat1

	a := math.Sin(dLat/2)*math.Sin(dLat/2) + math.Cos(rLat1)*math.Cos(rLat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return wavemodel.EarthRadiusKM * c
}

// calculateRawIntensity implements spec.md §4.2 steps 2-4: the PGA-based
// estimate, escalating to the PGV path above intensity 3.
//
// Ported from original_source/src/earthquake/model.py:calculate_rigon_intensity.
func calculateRawIntensity(hypocentralKM, magnitude float64, depthKM int, siteEffect float64) float64 {
	pga := 1.657 * math.Exp(1.533*magnitude) * math.Pow(hypocentralKM, -1.607) * siteEffect
	i := 2*math.Log10(pga) + 0.7

	if i > 3 {
		long := math.Pow(10, 0.5*magnitude-1.85) / 2
		x := math.Max(hypocentralKM-long, 3)
		gpv600 := math.Pow(10, 0.58*magnitude+0.0038*float64(depthKM)-1.29-math.Log10(x+0.0028*math.Pow(10, 0.5*magnitude))-0.002*x)
		pgv := gpv600 * 1.31 * 1.0
		i = 2.68 + 1.72*math.Log10(pgv)
	}

	return i
}

// linearFit is a least-squares line y = a + b*x used to extrapolate travel
// time beyond the cached wave model's sampled domain.
type linearFit struct {
	a, b  float64
	valid bool
}

func fitLinear(xs, ys []float64) linearFit {
	n := len(xs)
	if n == 0 {
		return linearFit{valid: false}
	}
	if n == 1 {
		// Degenerate: extend at the asymptotic apparent-velocity clamp used
		// by the underlying speed model (7 km/s surface-degree proxy is not
		// meaningful here, so just hold the single sample's time constant
		// per additional degree using its own slope through the origin).
		return linearFit{a: 0, b: ys[0] / xs[0], valid: xs[0] != 0}
	}

	var sumX, sumY, sumXY, sumXX float64
	for i := range xs {
		sumX += xs[i]
		sumY += ys[i]
		sumXY += xs[i] * ys[i]
		sumXX += xs[i] * xs[i]
	}
	nf := float64(n)
	denom := nf*sumXX - sumX*sumX
	if denom == 0 {
		return linearFit{a: sumY / nf, b: 0, valid: true}
	}
	b := (nf*sumXY - sumX*sumY) / denom
	a := (sumY - b*sumX) / nf
	return linearFit{a: a, b: b, valid: true}
}

func (f linearFit) eval(x float64) float64 {
	if !f.valid {
		// No in-domain region resolved at all (can only happen for a
		// pathological, near-empty region set): fall back to the
		// asymptotic 7 km/s apparent velocity the underlying speed model
		// itself clamps to at long range.
		return x * math.Pi / 180 * wavemodel.EarthRadiusKM / 7
	}
	return f.a + f.b*x
}
