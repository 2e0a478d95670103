// Package util holds small environment helpers shared by the command wiring.
package util

import (
	"log/slog"
	"os"
	"strings"
)

// ParseBoolEnv reads key as a boolean toggle. Recognized values are
// true/1/yes/on and false/0/no/off, ignoring case and surrounding spaces.
// An unset key or an unrecognized value falls back to defaultValue.
func ParseBoolEnv(key string, defaultValue bool) bool {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "true", "1", "yes", "on":
		return true
	case "false", "0", "no", "off":
		return false
	}
	slog.Warn("ParseBoolEnv: unrecognized value, falling back to default", "key", key, "value", raw, "default", defaultValue)
	return defaultValue
}
