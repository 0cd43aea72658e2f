// Package config loads the runtime's Config (spec §6.3) from YAML using
// gopkg.in/yaml.v3, already a direct teacher dependency, the same way the
// teacher round-trips structured manifests and fixtures.
package config

import (
	"fmt"
	"os"
	"runtime"
	"time"

	"gopkg.in/yaml.v3"
)

// Loading groups library-loading preferences.
type Loading struct {
	PreferOwnSymbols bool `yaml:"prefer_own_symbols"`
}

// Security groups extension admission policy.
type Security struct {
	WhitelistedExtensions []string `yaml:"whitelisted_extensions"`
	BlacklistedExtensions []string `yaml:"blacklisted_extensions"`
}

// Timeouts groups per-stage soft-timeout thresholds (spec §5: exceeding
// one emits a warning but never interrupts processing).
type Timeouts struct {
	Parsing    time.Duration `yaml:"parsing"`
	Resolution time.Duration `yaml:"resolution"`
	Loading    time.Duration `yaml:"loading"`
	Exporting  time.Duration `yaml:"exporting"`
	Starting   time.Duration `yaml:"starting"`
}

// Config is the single configuration struct spec §6.3 requires.
type Config struct {
	Loading  Loading  `yaml:"loading"`
	Security Security `yaml:"security"`
	Threads  int      `yaml:"threads"`
	Timeouts Timeouts `yaml:"timeouts"`
}

// Default returns a Config with programmatically filled defaults
// (threads=0 meaning "auto" is resolved to runtime.NumCPU() by
// EffectiveThreads, not stored eagerly, so a zero-valued Config still
// round-trips through YAML cleanly).
func Default() Config {
	return Config{
		Timeouts: Timeouts{
			Parsing:    2 * time.Second,
			Resolution: 5 * time.Second,
			Loading:    10 * time.Second,
			Exporting:  2 * time.Second,
			Starting:   2 * time.Second,
		},
	}
}

// EffectiveThreads resolves the worker-pool size, applying the "0 = auto"
// rule from spec §6.3.
func (c Config) EffectiveThreads() int {
	if c.Threads > 0 {
		return c.Threads
	}
	return runtime.NumCPU()
}

// IsWhitelisted reports whether name passes the whitelist, treating an
// empty whitelist as "allow all".
func (c Config) IsWhitelisted(name string) bool {
	if len(c.Security.WhitelistedExtensions) == 0 {
		return true
	}
	for _, n := range c.Security.WhitelistedExtensions {
		if n == name {
			return true
		}
	}
	return false
}

// IsBlacklisted reports whether name is explicitly excluded.
func (c Config) IsBlacklisted(name string) bool {
	for _, n := range c.Security.BlacklistedExtensions {
		if n == name {
			return true
		}
	}
	return false
}

// Load reads and parses a YAML config file, filling unset fields from
// Default().
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}
