package config

import (
	"reflect"

	logx "netoptimizer/pkg/logx"
)

// SummarizeChange returns the changed top-level sections and safe
// structured attrs for the reload log line.
func SummarizeChange(oldCfg, newCfg *Config) ([]string, []logx.Field) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}

	changed := make([]string, 0, 6)
	attrs := make([]logx.Field, 0, 12)

	if !reflect.DeepEqual(oldCfg.Logging, newCfg.Logging) {
		changed = append(changed, "logging")
		attrs = append(attrs,
			logx.String("logging.level", newCfg.Logging.Level),
			logx.Bool("logging.file_enabled", newCfg.Logging.File.Enabled),
		)
	}
	if oldCfg.HTTP != newCfg.HTTP {
		changed = append(changed, "http")
		attrs = append(attrs,
			logx.String("http.addr", newCfg.HTTP.Addr),
			logx.Int("http.max_concurrent", newCfg.HTTP.MaxConcurrent),
		)
	}
	if oldCfg.Assessment != newCfg.Assessment {
		changed = append(changed, "assessment")
		attrs = append(attrs,
			logx.Int("assessment.sample_count", newCfg.Assessment.SampleCount),
			logx.String("assessment.delay", newCfg.Assessment.Delay),
			logx.Bool("assessment.verbose", newCfg.Assessment.Verbose),
		)
	}
	if oldCfg.Speedtest != newCfg.Speedtest {
		changed = append(changed, "speedtest")
		attrs = append(attrs, logx.Int("speedtest.server_count", newCfg.Speedtest.ServerCount))
	}
	if oldCfg.Monitor != newCfg.Monitor {
		changed = append(changed, "monitor")
		attrs = append(attrs,
			logx.Bool("monitor.enabled", newCfg.Monitor.Enabled),
			logx.String("monitor.schedule", newCfg.Monitor.Schedule),
		)
	}
	if oldCfg.Pprof != newCfg.Pprof {
		changed = append(changed, "pprof")
		attrs = append(attrs, logx.Bool("pprof.enabled", newCfg.Pprof.Enabled))
	}
	return changed, attrs
}

// LogConfig maps the logging section onto logx.
func (c LoggingConfig) LogConfig() logx.Config {
	return logx.Config{
		Level:   c.Level,
		Console: c.Console,
		File: logx.FileConfig{
			Enabled:    c.File.Enabled,
			Path:       c.File.Path,
			MaxSizeMB:  c.File.MaxSizeMB,
			MaxBackups: c.File.MaxBackups,
			MaxAgeDays: c.File.MaxAgeDays,
			Compress:   c.File.Compress,
		},
	}
}
