package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"netoptimizer/internal/assess"
	"netoptimizer/internal/config"
	"netoptimizer/internal/eventbus"
	"netoptimizer/internal/metrics"
	"netoptimizer/internal/monitor"
)

type fakeProvider struct {
	pings     []float64
	down, up  float64
	failTrial int
	trials    int
	closed    bool
}

func (p *fakeProvider) SelectBestEndpoint(context.Context) error {
	p.trials++
	if p.failTrial == p.trials {
		return errors.New("no servers reachable")
	}
	return nil
}

func (p *fakeProvider) CurrentLatencyMs() float64 {
	return p.pings[(p.trials-1)%len(p.pings)]
}

func (p *fakeProvider) MeasureDownloadBps(context.Context) (float64, error) { return p.down, nil }
func (p *fakeProvider) MeasureUploadBps(context.Context) (float64, error)   { return p.up, nil }
func (p *fakeProvider) Close() error                                        { p.closed = true; return nil }

func healthyFactory(made *[]*fakeProvider) assess.ProviderFactory {
	return func() (assess.Provider, error) {
		p := &fakeProvider{pings: []float64{10, 12, 11}, down: 60_000_000, up: 5_000_000}
		if made != nil {
			*made = append(*made, p)
		}
		return p, nil
	}
}

func testSettings(t *testing.T, mutate func(*config.Config)) config.Resolved {
	t.Helper()
	cfg := &config.Config{Assessment: config.AssessmentConfig{Delay: "0s"}}
	if mutate != nil {
		mutate(cfg)
	}
	r, err := config.Resolve(cfg)
	require.NoError(t, err)
	return r
}

func newTestServer(t *testing.T, deps Deps, mutate func(*config.Config)) *Server {
	t.Helper()
	return New(deps, testSettings(t, mutate))
}

func do(s *Server, method, target string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, target, nil)
	req.RemoteAddr = "10.0.0.7:5555"
	s.Handler().ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func TestOptimizeHealthyNetwork(t *testing.T) {
	var made []*fakeProvider
	bus := eventbus.New()
	done, unsub := bus.Subscribe(1, eventbus.TopicAssessmentDone)
	defer unsub()
	s := newTestServer(t, Deps{Providers: healthyFactory(&made), Metrics: metrics.New(), Bus: bus}, nil)

	w := do(s, http.MethodPost, RouteOptimize)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	body := decode(t, w)
	assert.EqualValues(t, 95, body["efficiency"])
	assert.Equal(t, "Excellent", body["stability"])
	assert.Equal(t, "Strong", body["signal"])
	stats := body["network_stats"].(map[string]any)
	assert.EqualValues(t, 11.0, stats["avg_ping"])
	assert.EqualValues(t, 1.0, stats["jitter"])
	assert.EqualValues(t, 60.0, stats["download_speed"])
	assert.EqualValues(t, 5.0, stats["upload_speed"])
	assert.Equal(t, []any{assess.SuggestionHealthy}, body["suggestions"])
	assert.NotContains(t, body, "optimization_log")

	require.Len(t, made, 1)
	assert.True(t, made[0].closed)

	ev := <-done
	assert.Equal(t, body["id"], ev.Subject)
}

func TestOptimizeVerboseAndSamplesOverride(t *testing.T) {
	s := newTestServer(t, Deps{Providers: healthyFactory(nil)}, nil)

	w := do(s, http.MethodPost, RouteOptimize+"?verbose=true&samples=2")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decode(t, w)
	log, ok := body["optimization_log"].([]any)
	require.True(t, ok)
	assert.NotEmpty(t, log)

	// pings 10 and 12
	stats := body["network_stats"].(map[string]any)
	assert.EqualValues(t, 11.0, stats["avg_ping"])
}

func TestOptimizeRejectsBadQuery(t *testing.T) {
	s := newTestServer(t, Deps{Providers: healthyFactory(nil)}, func(c *config.Config) {
		c.HTTP.RatePerSec = 100
		c.HTTP.Burst = 10
	})

	for _, q := range []string{"?samples=0", "?samples=21", "?samples=x", "?verbose=maybe"} {
		w := do(s, http.MethodPost, RouteOptimize+q)
		assert.Equal(t, http.StatusBadRequest, w.Code, q)
	}
}

func TestOptimizeMethodNotAllowed(t *testing.T) {
	s := newTestServer(t, Deps{Providers: healthyFactory(nil)}, nil)

	for _, m := range []string{http.MethodGet, http.MethodPut, http.MethodDelete} {
		w := do(s, m, RouteOptimize)
		assert.Equal(t, http.StatusMethodNotAllowed, w.Code, m)
		assert.Equal(t, "Only POST requests are allowed.", decode(t, w)["error"])
	}
}

func TestOptimizeProviderFailure(t *testing.T) {
	factory := func() (assess.Provider, error) {
		return &fakeProvider{pings: []float64{10}, failTrial: 2}, nil
	}
	s := newTestServer(t, Deps{Providers: factory}, nil)

	w := do(s, http.MethodPost, RouteOptimize)
	require.Equal(t, http.StatusInternalServerError, w.Code)
	msg, _ := decode(t, w)["error"].(string)
	assert.Contains(t, msg, "no servers reachable")
}

func TestOptimizeBusy(t *testing.T) {
	s := newTestServer(t, Deps{Providers: healthyFactory(nil)}, nil)
	require.True(t, s.gate.tryAcquire())
	defer s.gate.release()

	w := do(s, http.MethodPost, RouteOptimize)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestOptimizeRateLimited(t *testing.T) {
	s := newTestServer(t, Deps{Providers: healthyFactory(nil)}, func(c *config.Config) {
		c.HTTP.RatePerSec = 0.001
		c.HTTP.Burst = 1
	})

	assert.Equal(t, http.StatusOK, do(s, http.MethodPost, RouteOptimize).Code)
	w := do(s, http.MethodPost, RouteOptimize)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "1", w.Header().Get("Retry-After"))
}

func TestApplyRaisesConcurrency(t *testing.T) {
	s := newTestServer(t, Deps{Providers: healthyFactory(nil)}, nil)
	require.True(t, s.gate.tryAcquire())
	defer s.gate.release()

	s.Apply(testSettings(t, func(c *config.Config) { c.HTTP.MaxConcurrent = 2 }))
	assert.Equal(t, http.StatusOK, do(s, http.MethodPost, RouteOptimize).Code)
}

func TestNetworkStatsLive(t *testing.T) {
	s := newTestServer(t, Deps{Providers: healthyFactory(nil)}, nil)

	w := do(s, http.MethodGet, RouteStats)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "live", w.Header().Get("X-Snapshot-Source"))
	body := decode(t, w)
	assert.EqualValues(t, 60.0, body["download_speed"])
	assert.EqualValues(t, 5.0, body["upload_speed"])
	assert.EqualValues(t, 10.0, body["ping"])
	assert.Contains(t, body, "timestamp")
}

func TestNetworkStatsFromMonitor(t *testing.T) {
	calls := 0
	factory := func() (assess.Provider, error) {
		calls++
		return &fakeProvider{pings: []float64{10}, down: 60_000_000, up: 5_000_000}, nil
	}
	mon := monitor.New(func(context.Context) (*assess.SnapshotResult, error) {
		return &assess.SnapshotResult{DownloadMbps: 42, UploadMbps: 7, PingMs: 15, Timestamp: time.Now()}, nil
	})
	require.NoError(t, mon.Refresh(context.Background()))
	s := newTestServer(t, Deps{Providers: factory, Monitor: mon}, nil)

	w := do(s, http.MethodGet, RouteStats)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "cache", w.Header().Get("X-Snapshot-Source"))
	assert.EqualValues(t, 42.0, decode(t, w)["download_speed"])
	assert.Zero(t, calls)

	w = do(s, http.MethodGet, RouteStats+"?live=1")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "live", w.Header().Get("X-Snapshot-Source"))
	assert.Equal(t, 1, calls)
}

func TestNetworkStatsBusy(t *testing.T) {
	s := newTestServer(t, Deps{Providers: healthyFactory(nil)}, nil)
	require.True(t, s.gate.tryAcquire())
	defer s.gate.release()

	w := do(s, http.MethodGet, RouteStats)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestSnapshotSharesGateWithOptimize(t *testing.T) {
	var made []*fakeProvider
	s := newTestServer(t, Deps{Providers: healthyFactory(&made)}, nil)
	require.True(t, s.gate.tryAcquire())

	snap, err := s.Snapshot(context.Background())
	assert.Nil(t, snap)
	assert.ErrorIs(t, err, errBusy)
	assert.Empty(t, made)

	s.gate.release()
	snap, err = s.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 60.0, snap.DownloadMbps)
	assert.Len(t, made, 1)
	// The gate is free again once the snapshot returns.
	assert.True(t, s.gate.tryAcquire())
	s.gate.release()
}

func TestRecoveryReturnsJSON(t *testing.T) {
	s := newTestServer(t, Deps{Providers: healthyFactory(nil)}, nil)
	s.engine.GET("/boom", func(*gin.Context) { panic("handler blew up") })

	w := do(s, http.MethodGet, "/boom")
	require.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "Internal server error.", decode(t, w)["error"])
}

func TestHealthAndMetrics(t *testing.T) {
	s := newTestServer(t, Deps{Providers: healthyFactory(nil), Metrics: metrics.New()}, nil)

	w := do(s, http.MethodGet, RouteHealth)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", decode(t, w)["status"])

	require.Equal(t, http.StatusOK, do(s, http.MethodPost, RouteOptimize).Code)
	w = do(s, http.MethodGet, RouteMetrics)
	require.Equal(t, http.StatusOK, w.Code)
	out := w.Body.String()
	assert.True(t, strings.Contains(out, `assessments_total{outcome="ok"} 1`), out)
	assert.Contains(t, out, `route="/api/optimize-network/"`)
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusConflict, statusFor(errBusy))
	assert.Equal(t, http.StatusGatewayTimeout, statusFor(&assess.Error{Op: assess.OpAssessment, Kind: assess.KindMeasurement, Err: context.DeadlineExceeded}))
	assert.Equal(t, http.StatusInternalServerError, statusFor(errors.New("boom")))
}
