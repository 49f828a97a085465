// Package config loads the guard core's own tunables from the environment.
// CLI flags and config-file loading are a host concern;
// this is scoped to the handful of knobs the core itself needs at startup.
package config

import (
	"os"
	"strconv"
	"strings"
)

// Config holds the guard core's startup configuration.
//
//nolint:govet // fieldalignment: struct layout is human-readable
type Config struct {
	// ProtectedLabels is the set of labels whose removal is forbidden
	// regardless of guard privilege.
	ProtectedLabels []string

	// ProtectedPrefixes matches labels by prefix (e.g. "src:" protects
	// every src:* provenance label).
	ProtectedPrefixes []string

	// DefaultRetryMax is the ceiling used when a guard doesn't specify its
	// own `max`.
	DefaultRetryMax int

	// SuppressGuardsByDefault is loaded from the environment but not read by
	// environment.New, which takes no config: root environments always start
	// with guard suppression off.
	SuppressGuardsByDefault bool

	// EventLogLevel controls the default zerolog level used by the
	// built-in event subscriber ("debug", "info", "disabled").
	EventLogLevel string
}

// Load reads configuration from environment variables with sensible
// defaults, mirroring the envStr/envInt/envBool helpers.
func Load() *Config {
	return &Config{
		ProtectedLabels:         envStrList("MLLDGUARD_PROTECTED_LABELS", []string{"untrusted", "influenced", "secret"}),
		ProtectedPrefixes:       envStrList("MLLDGUARD_PROTECTED_PREFIXES", []string{"src:"}),
		DefaultRetryMax:         envInt("MLLDGUARD_DEFAULT_RETRY_MAX", 3),
		SuppressGuardsByDefault: envBool("MLLDGUARD_SUPPRESS_GUARDS_BY_DEFAULT", false),
		EventLogLevel:           envStr("MLLDGUARD_EVENT_LOG_LEVEL", "debug"),
	}
}

// Default returns the configuration Load() would produce with no
// environment variables set — useful for tests and cmd/demo.
func Default() *Config {
	return &Config{
		ProtectedLabels:         []string{"untrusted", "influenced", "secret"},
		ProtectedPrefixes:       []string{"src:"},
		DefaultRetryMax:         3,
		SuppressGuardsByDefault: false,
		EventLogLevel:           "debug",
	}
}

// IsProtected reports whether label is protected under this configuration:
// an exact match in ProtectedLabels, or a prefix match in ProtectedPrefixes.
func (c *Config) IsProtected(label string) bool {
	for _, l := range c.ProtectedLabels {
		if l == label {
			return true
		}
	}
	for _, prefix := range c.ProtectedPrefixes {
		if strings.HasPrefix(label, prefix) {
			return true
		}
	}
	return false
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envStrList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
