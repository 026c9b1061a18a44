// Package metrics exposes assessment outcomes and HTTP traffic to Prometheus.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"netoptimizer/internal/assess"
)

const namespace = "netoptimizer"

// Recorder owns a private registry so tests and multiple servers never
// collide on the global one.
type Recorder struct {
	reg *prometheus.Registry

	assessments *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	snapshots   *prometheus.CounterVec
	efficiency  prometheus.Gauge
	last        *prometheus.GaugeVec
	suggestions *prometheus.CounterVec

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
}

func New() *Recorder {
	r := &Recorder{reg: prometheus.NewRegistry()}

	r.assessments = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "assessments_total",
		Help:      "Assessments by outcome (ok, endpoint_unavailable, measurement_error, unknown).",
	}, []string{"outcome"})
	r.duration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "assessment_duration_seconds",
		Help:      "Wall time of assessment and snapshot runs.",
		Buckets:   []float64{1, 2, 5, 10, 20, 30, 60, 120},
	}, []string{"op"})
	r.snapshots = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "snapshots_total",
		Help:      "Realtime snapshots by outcome.",
	}, []string{"outcome"})
	r.efficiency = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "last_efficiency",
		Help:      "Efficiency score of the last successful assessment.",
	})
	r.last = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "last_measurement",
		Help:      "Last measured value (avg_ping_ms, jitter_ms, download_mbps, upload_mbps).",
	}, []string{"metric"})
	r.suggestions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "suggestions_total",
		Help:      "Suggestions emitted, by message.",
	}, []string{"suggestion"})
	r.httpRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "HTTP requests by route, method and status.",
	}, []string{"route", "method", "status"})
	r.httpDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency.",
		Buckets:   prometheus.ExponentialBuckets(0.005, 4, 8),
	}, []string{"route", "method"})

	r.reg.MustRegister(
		r.assessments, r.duration, r.snapshots, r.efficiency, r.last, r.suggestions,
		r.httpRequests, r.httpDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

func (r *Recorder) Registry() *prometheus.Registry { return r.reg }

func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{Registry: r.reg})
}

func outcome(err error) string {
	if err == nil {
		return "ok"
	}
	return assess.KindOf(err).String()
}

// ObserveAssessment records one assessment; rep is nil on failure.
func (r *Recorder) ObserveAssessment(rep *assess.Report, err error, took time.Duration) {
	if r == nil {
		return
	}
	r.assessments.WithLabelValues(outcome(err)).Inc()
	r.duration.WithLabelValues(string(assess.OpAssessment)).Observe(took.Seconds())
	if err != nil || rep == nil {
		return
	}
	r.efficiency.Set(float64(rep.Efficiency))
	r.last.WithLabelValues("avg_ping_ms").Set(rep.Stats.AvgPing)
	r.last.WithLabelValues("jitter_ms").Set(rep.Stats.Jitter)
	r.last.WithLabelValues("download_mbps").Set(rep.Stats.DownloadMbps)
	r.last.WithLabelValues("upload_mbps").Set(rep.Stats.UploadMbps)
	for _, s := range rep.Suggestions {
		r.suggestions.WithLabelValues(s).Inc()
	}
}

func (r *Recorder) ObserveSnapshot(snap *assess.SnapshotResult, err error, took time.Duration) {
	if r == nil {
		return
	}
	r.snapshots.WithLabelValues(outcome(err)).Inc()
	r.duration.WithLabelValues(string(assess.OpSnapshot)).Observe(took.Seconds())
	if err != nil || snap == nil {
		return
	}
	r.last.WithLabelValues("ping_ms").Set(snap.PingMs)
	r.last.WithLabelValues("download_mbps").Set(snap.DownloadMbps)
	r.last.WithLabelValues("upload_mbps").Set(snap.UploadMbps)
}

func (r *Recorder) ObserveHTTP(route, method string, status int, took time.Duration) {
	if r == nil {
		return
	}
	r.httpRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	r.httpDuration.WithLabelValues(route, method).Observe(took.Seconds())
}
