package geo

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTestRegions(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	const payload = `{
		"Taipei": {
			"Daan": {"code": 1, "lon": 121.55, "lat": 25.03, "area": "north"},
			"Xinyi": {"code": 2, "lon": 121.57, "lat": 25.03, "area": "north", "site": 2.0}
		},
		"Hualien": {
			"Hualien City": {"code": 3, "lon": 121.6, "lat": 23.97, "area": "east"}
		}
	}`
	path := filepath.Join(dir, "region.json")
	if err := os.WriteFile(path, []byte(payload), 0o644); err != nil {
		t.Fatalf("write region.json: %v", err)
	}
	return dir
}

func TestLoadRegions(t *testing.T) {
	dir := writeTestRegions(t)

	idx, err := LoadRegions(dir)
	if err != nil {
		t.Fatalf("LoadRegions: %v", err)
	}
	if idx.Len() != 3 {
		t.Fatalf("expected 3 regions, got %d", idx.Len())
	}

	daan, ok := idx.Get(1)
	if !ok {
		t.Fatal("expected region code 1 to exist")
	}
	if daan.SiteEffect != DefaultSiteEffect {
		t.Errorf("expected default site effect %v, got %v", DefaultSiteEffect, daan.SiteEffect)
	}

	xinyi, ok := idx.Get(2)
	if !ok {
		t.Fatal("expected region code 2 to exist")
	}
	if xinyi.SiteEffect != 2.0 {
		t.Errorf("expected explicit site effect 2.0, got %v", xinyi.SiteEffect)
	}

	taipei := idx.ByCity("Taipei")
	if len(taipei) != 2 {
		t.Errorf("expected 2 regions in Taipei, got %d", len(taipei))
	}

	if _, ok := idx.Get(999); ok {
		t.Error("expected missing code to be absent")
	}
}

func TestLoadRegionsMissingFile(t *testing.T) {
	if _, err := LoadRegions(t.TempDir()); err == nil {
		t.Fatal("expected error for missing region.json")
	}
}
