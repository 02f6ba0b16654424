package config

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"grimm.is/dynwall/internal/logging"
)

// document is the format-neutral shape every loader decodes into.
// A, AAAA and Delay stay untyped so that missing (nil) and mistyped values
// can be told apart from valid ones.
type document struct {
	A     any
	AAAA  any
	Delay any

	Cloudflare []Target

	Detection     string
	GeoIPDB       string
	MetricsListen string
	LogLevel      string
	LogJSON       bool
}

// normalize applies defaults and returns the resulting Config together with
// any warnings. Only structural problems are errors.
func (d *document) normalize() (*Config, []string, error) {
	cfg := &Config{
		Targets:       d.Cloudflare,
		GeoIPDB:       strings.TrimSpace(d.GeoIPDB),
		MetricsListen: strings.TrimSpace(d.MetricsListen),
		LogJSON:       d.LogJSON,
	}
	var warnings []string

	v4, ok4 := d.A.(bool)
	v6, ok6 := d.AAAA.(bool)
	if ok4 && ok6 {
		cfg.IPv4, cfg.IPv6 = v4, v6
	} else {
		cfg.IPv4, cfg.IPv6 = true, true
		warnings = append(warnings, "a/aaaa not set to booleans; enabling both IPv4 and IPv6. Individually disable IPv4 or IPv6 with the a and aaaa options")
	}
	if !cfg.IPv4 && !cfg.IPv6 {
		warnings = append(warnings, "both a and aaaa are disabled; rules will be set to an empty expression")
	}

	secs, ok := parseDelay(d.Delay)
	switch {
	case !ok:
		cfg.Delay = DefaultDelay
		warnings = append(warnings, fmt.Sprintf("no valid delay configured; defaulting to %d seconds", int(DefaultDelay/time.Second)))
	case time.Duration(secs)*time.Second < MinDelay:
		cfg.Delay = MinDelay
		warnings = append(warnings, fmt.Sprintf("delay %d is too low; using %d seconds", secs, int(MinDelay/time.Second)))
	default:
		cfg.Delay = time.Duration(secs) * time.Second
	}

	switch det := strings.ToLower(strings.TrimSpace(d.Detection)); det {
	case "", DetectionTrace:
		cfg.Detection = DetectionTrace
	case DetectionDNS:
		cfg.Detection = DetectionDNS
	default:
		return nil, nil, fmt.Errorf("unknown detection %q (want %q or %q)", d.Detection, DetectionTrace, DetectionDNS)
	}

	if _, known := logging.ParseLevel(d.LogLevel); known {
		cfg.LogLevel = strings.ToLower(strings.TrimSpace(d.LogLevel))
	} else {
		cfg.LogLevel = "info"
		warnings = append(warnings, fmt.Sprintf("unknown log_level %q; using info", d.LogLevel))
	}

	if err := Validate(cfg); err != nil {
		return nil, nil, err
	}
	return cfg, warnings, nil
}

// maxDelaySeconds is the largest delay that still fits a time.Duration.
const maxDelaySeconds = int64(math.MaxInt64 / int64(time.Second))

// parseDelay accepts whole seconds as a number or a numeric string.
// Fractional numbers are truncated. Values too large for a time.Duration
// are rejected.
func parseDelay(v any) (int, bool) {
	n, ok := delaySeconds(v)
	if !ok || n > maxDelaySeconds {
		return 0, false
	}
	return int(n), true
}

func delaySeconds(v any) (int64, bool) {
	switch d := v.(type) {
	case int:
		return int64(d), true
	case int64:
		return d, true
	case uint64:
		if d > uint64(maxDelaySeconds) {
			return 0, false
		}
		return int64(d), true
	case float64:
		if math.IsNaN(d) || math.IsInf(d, 0) || math.Abs(d) > float64(maxDelaySeconds) {
			return 0, false
		}
		return int64(d), true
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(d), 10, 64)
		if err != nil {
			return 0, false
		}
		return n, true
	}
	return 0, false
}
