package config

import (
	"fmt"
	"strings"
	"time"

	"netoptimizer/internal/assess"
)

const (
	DefaultHTTPAddr         = "127.0.0.1:8000"
	DefaultReadTimeout      = 10 * time.Second
	DefaultOperationTimeout = 2 * time.Minute
	DefaultMonitorMaxAge    = 10 * time.Minute

	MaxSampleCount = 20
)

// Resolved is Config with durations parsed and defaults applied.
type Resolved struct {
	HTTPAddr      string
	ReadTimeout   time.Duration
	WriteTimeout  time.Duration
	RatePerSec    float64
	Burst         int
	MaxConcurrent int

	Assessment assess.Options

	MonitorMaxAge   time.Duration
	MonitorLocation *time.Location
}

// Resolve validates cfg and applies defaults. It is also used as the
// reload validator, so any error here rejects a new config file.
func Resolve(cfg *Config) (Resolved, error) {
	if cfg == nil {
		cfg = &Config{}
	}
	var r Resolved
	var err error

	r.HTTPAddr = strings.TrimSpace(cfg.HTTP.Addr)
	if r.HTTPAddr == "" {
		r.HTTPAddr = DefaultHTTPAddr
	}
	if r.ReadTimeout, err = ParseDurationOrDefault("http.read_timeout", cfg.HTTP.ReadTimeout, DefaultReadTimeout); err != nil {
		return Resolved{}, err
	}
	if r.WriteTimeout, err = ParseDurationField("http.write_timeout", cfg.HTTP.WriteTimeout); err != nil {
		return Resolved{}, err
	}
	if cfg.HTTP.RatePerSec < 0 {
		return Resolved{}, fmt.Errorf("http.rate_per_sec must be >= 0")
	}
	r.RatePerSec = cfg.HTTP.RatePerSec
	if r.RatePerSec == 0 {
		r.RatePerSec = 1
	}
	r.Burst = cfg.HTTP.Burst
	if r.Burst <= 0 {
		r.Burst = 3
	}
	r.MaxConcurrent = cfg.HTTP.MaxConcurrent
	if r.MaxConcurrent <= 0 {
		r.MaxConcurrent = 1
	}

	a := assess.DefaultOptions()
	if n := cfg.Assessment.SampleCount; n != 0 {
		if n < 1 || n > MaxSampleCount {
			return Resolved{}, fmt.Errorf("assessment.sample_count must be between 1 and %d", MaxSampleCount)
		}
		a.SampleCount = n
	}
	if strings.TrimSpace(cfg.Assessment.Delay) != "" {
		// "0s" is a valid explicit value here (no pacing).
		if a.Delay, err = ParseDurationField("assessment.delay", cfg.Assessment.Delay); err != nil {
			return Resolved{}, err
		}
	}
	if a.Timeout, err = ParseDurationOrDefault("assessment.operation_timeout", cfg.Assessment.OperationTimeout, DefaultOperationTimeout); err != nil {
		return Resolved{}, err
	}
	a.Verbose = cfg.Assessment.Verbose
	r.Assessment = a

	if r.MonitorMaxAge, err = ParseDurationOrDefault("monitor.max_age", cfg.Monitor.MaxAge, DefaultMonitorMaxAge); err != nil {
		return Resolved{}, err
	}
	r.MonitorLocation = time.Local
	if tz := strings.TrimSpace(cfg.Monitor.Timezone); tz != "" {
		if r.MonitorLocation, err = time.LoadLocation(tz); err != nil {
			return Resolved{}, fmt.Errorf("monitor.timezone: %w", err)
		}
	}
	if cfg.Monitor.Enabled && strings.TrimSpace(cfg.Monitor.Schedule) == "" {
		return Resolved{}, fmt.Errorf("monitor.schedule is required when monitor.enabled")
	}
	return r, nil
}

// ParseDurationField parses a non-negative Go duration; empty means 0.
// path names the config key in error messages.
func ParseDurationField(path, raw string) (time.Duration, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", path, raw, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s: duration must be >= 0", path)
	}
	return d, nil
}

// ParseDurationOrDefault is ParseDurationField with def for empty or zero values.
func ParseDurationOrDefault(path, raw string, def time.Duration) (time.Duration, error) {
	d, err := ParseDurationField(path, raw)
	if err != nil || d > 0 {
		return d, err
	}
	return def, nil
}
