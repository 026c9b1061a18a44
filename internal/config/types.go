package config

// Config is the on-disk configuration (.json, .yaml or .yml).
//
// All durations are Go duration strings (e.g. "500ms", "10s", "1m").
type Config struct {
	Logging    LoggingConfig    `json:"logging"`
	HTTP       HTTPConfig       `json:"http"`
	Assessment AssessmentConfig `json:"assessment"`
	Speedtest  SpeedtestConfig  `json:"speedtest"`
	Monitor    MonitorConfig    `json:"monitor,omitempty"`
	Pprof      PprofConfig      `json:"pprof,omitempty"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled    bool   `json:"enabled"`
	Path       string `json:"path"`
	MaxSizeMB  int    `json:"max_size_mb,omitempty"`
	MaxBackups int    `json:"max_backups,omitempty"`
	MaxAgeDays int    `json:"max_age_days,omitempty"`
	Compress   bool   `json:"compress,omitempty"`
}

// HTTPConfig controls the API listener.
//
// Defaults (when fields are omitted/zero):
//   - addr: "127.0.0.1:8000"
//   - read_timeout: "10s"
//   - write_timeout: "0s" (disabled; assessments can take minutes)
//   - rate_per_sec: 1, burst: 3 (per client IP, assessment route only)
//   - max_concurrent: 1
type HTTPConfig struct {
	Addr         string  `json:"addr"`
	ReadTimeout  string  `json:"read_timeout,omitempty"`
	WriteTimeout string  `json:"write_timeout,omitempty"`
	RatePerSec   float64 `json:"rate_per_sec,omitempty"`
	Burst        int     `json:"burst,omitempty"`

	// MaxConcurrent caps simultaneous assessments and snapshots. Extra
	// requests are rejected instead of queued.
	MaxConcurrent int `json:"max_concurrent,omitempty"`
}

// AssessmentConfig holds the per-request defaults. Requests may override
// sample count and verbosity.
type AssessmentConfig struct {
	SampleCount      int    `json:"sample_count"`
	Delay            string `json:"delay"`
	OperationTimeout string `json:"operation_timeout,omitempty"`
	Verbose          bool   `json:"verbose"`
}

type SpeedtestConfig struct {
	ServerCount       int  `json:"server_count"`
	MaxConnections    int  `json:"max_connections"`
	SavingMode        bool `json:"saving_mode"`
	PingConcurrency   int  `json:"ping_concurrency"`
	DisableHTTP2      bool `json:"disable_http2"`
	DisableKeepAlives bool `json:"disable_keepalives"`
}

// MonitorConfig drives the background snapshot refresher.
//
// Schedule accepts cron ("*/5 * * * *", "@every 5m"), HH:MM ("00:30")
// or a Go duration ("5m").
type MonitorConfig struct {
	Enabled  bool   `json:"enabled"`
	Schedule string `json:"schedule,omitempty"`
	Timezone string `json:"timezone,omitempty"`
	// MaxAge is how long a cached snapshot may be served (default: 2x interval or 10m).
	MaxAge string `json:"max_age,omitempty"`
}

// PprofConfig controls the optional pprof HTTP server.
// Prefer binding to localhost.
type PprofConfig struct {
	Enabled bool   `json:"enabled"`
	Addr    string `json:"addr,omitempty"` // default: "127.0.0.1:6060"
	// Token is required for non-loopback addresses.
	Token string `json:"token,omitempty"`
}
