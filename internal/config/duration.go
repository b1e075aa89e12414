package config

import (
	"fmt"
	"strings"
	"time"
)

// ParseDurationOrDefault parses a Go duration string from config, returning
// def when the field is omitted. A present-but-invalid value is an error so
// typos don't silently fall back.
func ParseDurationOrDefault(name, raw string, def time.Duration) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return def, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", name, raw, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s: duration must not be negative", name)
	}
	return d, nil
}
