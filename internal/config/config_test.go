package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfig(t, `debug-mode = false`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DebugMode() {
		t.Error("expected debug mode false")
	}
	if cfg.AssetsDir() != "./assets" {
		t.Errorf("expected default assets dir, got %q", cfg.AssetsDir())
	}
	if cfg.APINodeCount() != 2 || cfg.WSNodeCount() != 4 {
		t.Errorf("unexpected default node counts: api=%d ws=%d", cfg.APINodeCount(), cfg.WSNodeCount())
	}
	if !cfg.AcceptsProvider("anything") {
		t.Error("expected every provider accepted with no eew_source table")
	}
}

func TestProviderWhitelist(t *testing.T) {
	path := writeConfig(t, `
debug-mode = true

[eew_source]
cwa = true
trem = false
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !cfg.AcceptsProvider("cwa") {
		t.Error("expected cwa accepted")
	}
	if cfg.AcceptsProvider("trem") {
		t.Error("expected trem rejected")
	}
	if cfg.AcceptsProvider("unknown") {
		t.Error("expected unknown provider rejected when whitelist present")
	}
}

func TestNotifierSections(t *testing.T) {
	path := writeConfig(t, `
[discord]
webhook_url = "https://example.invalid/hook"

[line]
token = "abc"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	section, ok := cfg.NotifierSection("discord")
	if !ok {
		t.Fatal("expected discord section present")
	}
	if section["webhook_url"] != "https://example.invalid/hook" {
		t.Errorf("unexpected webhook_url: %v", section["webhook_url"])
	}
	if _, ok := cfg.NotifierSection("slack"); ok {
		t.Error("expected missing section to report ok=false")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}
