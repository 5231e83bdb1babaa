// Package config loads the TOML configuration file, mirroring the original's
// tomli-backed Config class (original_source/src/config.py) but with typed
// accessors instead of untyped get/__getitem__ lookups.
package config

import (
	"fmt"
	"time"

	"github.com/BurntSushi/toml"
)

// Section is an opaque notifier configuration block — the Go analogue of
// the original's untyped config_section passed into a notifier's register()
// factory (spec.md §4.4).
type Section map[string]any

// raw is the on-disk shape of config.toml.
type raw struct {
	DebugMode bool                      `toml:"debug-mode"`
	Log       logConfig                 `toml:"log"`
	EEWSource map[string]bool           `toml:"eew_source"`
	Transport transportConfig           `toml:"transport"`
	Assets    assetsConfig              `toml:"assets"`
	Notifiers map[string]map[string]any `toml:"-"` // populated by reparsing the top-level table
}

type logConfig struct {
	Retention string `toml:"retention"` // parsed as a Go duration string, e.g. "168h"
	Format    string `toml:"format"`
}

type transportConfig struct {
	Domain       string `toml:"domain"`
	APIVersion   int    `toml:"api_version"`
	APINodeCount int    `toml:"api_node_count"`
	WSNodeCount  int    `toml:"ws_node_count"`
}

type assetsConfig struct {
	Dir string `toml:"dir"`
}

// reservedTopLevelKeys are not notifier namespaces.
var reservedTopLevelKeys = map[string]bool{
	"debug-mode": true,
	"log":        true,
	"eew_source": true,
	"transport":  true,
	"assets":     true,
}

// Config is the decoded configuration file.
type Config struct {
	data raw
}

// Load reads and decodes path. Per spec.md §7, a missing or malformed config
// file is a FatalStartup condition for the caller to surface.
func Load(path string) (*Config, error) {
	var data raw
	if _, err := toml.DecodeFile(path, &data); err != nil {
		return nil, fmt.Errorf("config: decode %s: %w", path, err)
	}

	// Decode again into a generic tree to recover notifier namespaces:
	// any top-level table that isn't one of the reserved keys.
	var tree map[string]any
	if _, err := toml.DecodeFile(path, &tree); err != nil {
		return nil, fmt.Errorf("config: decode %s: %w", path, err)
	}
	data.Notifiers = make(map[string]map[string]any)
	for key, v := range tree {
		if reservedTopLevelKeys[key] {
			continue
		}
		if section, ok := v.(map[string]any); ok {
			data.Notifiers[key] = section
		}
	}

	return &Config{data: data}, nil
}

// DebugMode reports whether verbose logging is enabled.
func (c *Config) DebugMode() bool { return c.data.DebugMode }

// LogFormat returns the configured log line format.
func (c *Config) LogFormat() string { return c.data.Log.Format }

// LogRetention parses the configured retention window. Returns 0 if unset
// or unparseable.
func (c *Config) LogRetention() time.Duration {
	d, _ := time.ParseDuration(c.data.Log.Retention)
	return d
}

// AcceptsProvider implements the eew_source.all / eew_source.<provider>
// whitelist (spec.md §4.8 / §6). With no eew_source table configured, every
// provider is accepted.
func (c *Config) AcceptsProvider(provider string) bool {
	if len(c.data.EEWSource) == 0 {
		return true
	}
	if c.data.EEWSource["all"] {
		return true
	}
	allowed, ok := c.data.EEWSource[provider]
	return ok && allowed
}

// AssetsDir returns the configured asset root, defaulting to "./assets"
// (spec.md §9 Open Question: the asset root must not rely on CWD).
func (c *Config) AssetsDir() string {
	if c.data.Assets.Dir != "" {
		return c.data.Assets.Dir
	}
	return "./assets"
}

// TransportDomain returns the upstream domain, defaulting to the upstream
// provider's public domain (spec.md §6).
func (c *Config) TransportDomain() string {
	if c.data.Transport.Domain != "" {
		return c.data.Transport.Domain
	}
	return "exptech.dev"
}

// APIVersion returns the upstream API version, defaulting to 1.
func (c *Config) APIVersion() int {
	if c.data.Transport.APIVersion > 0 {
		return c.data.Transport.APIVersion
	}
	return 1
}

// APINodeCount returns the configured HTTP node count, defaulting to 2
// (spec.md §4.5: "api-{1..N}").
func (c *Config) APINodeCount() int {
	if c.data.Transport.APINodeCount > 0 {
		return c.data.Transport.APINodeCount
	}
	return 2
}

// WSNodeCount returns the configured WebSocket node count, defaulting to 4
// (spec.md §4.5: "lb-{1..M}").
func (c *Config) WSNodeCount() int {
	if c.data.Transport.WSNodeCount > 0 {
		return c.data.Transport.WSNodeCount
	}
	return 4
}

// NotifierSection returns the opaque configuration block for a notifier
// namespace. ok is false when the section is absent, which per spec.md §4.4
// means the notifier's factory should be skipped with a warning.
func (c *Config) NotifierSection(namespace string) (Section, bool) {
	section, ok := c.data.Notifiers[namespace]
	return Section(section), ok
}
