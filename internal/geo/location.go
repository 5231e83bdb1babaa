// Package geo holds the static geographic data model: locations and the
// administrative region index loaded once at startup.
package geo

// Location is an immutable geographic point.
type Location struct {
	Lon float64
	Lat float64
}

// Equal reports whether two locations share the same coordinates.
func (l Location) Equal(other Location) bool {
	return l.Lon == other.Lon && l.Lat == other.Lat
}

// Region is a Location extended with the administrative metadata needed for
// per-region intensity calculation.
type Region struct {
	Location
	Code       int
	Name       string
	City       string
	Area       string
	SiteEffect float64
}

// DefaultSiteEffect is used when a region asset omits the site field.
const DefaultSiteEffect = 1.751
