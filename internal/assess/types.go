package assess

import "time"

// Stats is the aggregated statistics record of one assessment.
//
// JSON tags follow the network_stats object served to dashboards.
type Stats struct {
	AvgPing      float64 `json:"avg_ping"`
	Jitter       float64 `json:"jitter"`
	DownloadMbps float64 `json:"download_speed"`
	UploadMbps   float64 `json:"upload_speed"`
}

type Stability string

const (
	StabilityExcellent Stability = "Excellent"
	StabilityModerate  Stability = "Moderate"
	StabilityUnstable  Stability = "Unstable"
)

type Signal string

const (
	SignalStrong Signal = "Strong"
	SignalGood   Signal = "Good"
	SignalWeak   Signal = "Weak"
)

// Verdict is the three-part quality classification of a Stats record.
type Verdict struct {
	Efficiency int       `json:"efficiency"`
	Stability  Stability `json:"stability"`
	Signal     Signal    `json:"signal"`
}

// Report is the terminal value of a successful assessment.
type Report struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`

	Verdict
	Stats       Stats    `json:"network_stats"`
	Suggestions []string `json:"suggestions"`
	PhaseLog    []string `json:"optimization_log,omitempty"`

	// Samples keeps the raw latency readings for logging; never serialized.
	Samples  []float64     `json:"-"`
	Duration time.Duration `json:"-"`
}

// SnapshotResult is a single-shot live measurement without aggregation.
type SnapshotResult struct {
	DownloadMbps float64   `json:"download_speed"`
	UploadMbps   float64   `json:"upload_speed"`
	PingMs       float64   `json:"ping"`
	Timestamp    time.Time `json:"timestamp"`
}
