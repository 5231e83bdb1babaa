package geo

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// rawRegion mirrors one leaf of region.json: {city: {name: {code, lon, lat, area?, site?}}}.
type rawRegion struct {
	Code int      `json:"code"`
	Lon  float64  `json:"lon"`
	Lat  float64  `json:"lat"`
	Area string   `json:"area"`
	Site *float64 `json:"site"`
}

// RegionIndex is the process-wide, never-mutated region table loaded once at
// startup, plus the secondary city index.
type RegionIndex struct {
	byCode map[int]Region
	byCity map[string][]Region
}

// LoadRegions reads region.json from assetsDir and builds the index.
//
// The asset root is a configuration parameter rather than relying on the
// process's current working directory (spec.md §9 Open Question).
func LoadRegions(assetsDir string) (*RegionIndex, error) {
	path := filepath.Join(assetsDir, "region.json")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("geo: read region asset %s: %w", path, err)
	}

	var raw map[string]map[string]rawRegion
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("geo: decode region asset %s: %w", path, err)
	}

	idx := &RegionIndex{
		byCode: make(map[int]Region, len(raw)),
		byCity: make(map[string][]Region, len(raw)),
	}
	for city, regions := range raw {
		for name, r := range regions {
			siteEffect := DefaultSiteEffect
			if r.Site != nil {
				siteEffect = *r.Site
			}
			region := Region{
				Location:   Location{Lon: r.Lon, Lat: r.Lat},
				Code:       r.Code,
				Name:       name,
				City:       city,
				Area:       r.Area,
				SiteEffect: siteEffect,
			}
			idx.byCode[region.Code] = region
			idx.byCity[city] = append(idx.byCity[city], region)
		}
	}
	return idx, nil
}

// All returns every region, in no particular order.
func (idx *RegionIndex) All() []Region {
	out := make([]Region, 0, len(idx.byCode))
	for _, r := range idx.byCode {
		out = append(out, r)
	}
	return out
}

// Get looks up a region by its code.
func (idx *RegionIndex) Get(code int) (Region, bool) {
	r, ok := idx.byCode[code]
	return r, ok
}

// ByCity returns the regions belonging to a city.
func (idx *RegionIndex) ByCity(city string) []Region {
	return idx.byCity[city]
}

// Len reports the number of loaded regions.
func (idx *RegionIndex) Len() int {
	return len(idx.byCode)
}
