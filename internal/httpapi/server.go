// Package httpapi exposes assessments and live snapshots over HTTP.
package httpapi

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"

	"netoptimizer/internal/assess"
	"netoptimizer/internal/config"
	"netoptimizer/internal/eventbus"
	"netoptimizer/internal/metrics"
	"netoptimizer/internal/monitor"
	logx "netoptimizer/pkg/logx"
)

const (
	RouteOptimize = "/api/optimize-network/"
	RouteStats    = "/api/network-stats/"
	RouteHealth   = "/healthz"
	RouteMetrics  = "/metrics"
)

// Deps are the collaborators a Server needs. Metrics, Monitor and Bus are
// optional.
type Deps struct {
	Orchestrator *assess.Orchestrator
	Providers    assess.ProviderFactory
	Metrics      *metrics.Recorder
	Monitor      *monitor.Service
	Bus          eventbus.Bus
	Logger       logx.Logger
}

type Server struct {
	deps     Deps
	log      logx.Logger
	settings atomic.Pointer[config.Resolved]
	gate     *gate
	limiter  *clientLimiter
	engine   *gin.Engine
	started  time.Time
}

func New(deps Deps, settings config.Resolved) *Server {
	gin.SetMode(gin.ReleaseMode)
	if deps.Orchestrator == nil {
		deps.Orchestrator = assess.New()
	}
	log := deps.Logger
	if log.IsZero() {
		log = logx.Nop()
	}
	s := &Server{
		deps:    deps,
		log:     log.With(logx.String("comp", "httpapi")),
		gate:    newGate(settings.MaxConcurrent),
		limiter: newClientLimiter(settings.RatePerSec, settings.Burst),
		started: time.Now(),
	}
	s.settings.Store(&settings)
	s.engine = s.routes()
	return s
}

// Apply swaps in reloaded settings. The listen address and server timeouts
// only take effect on the next Serve.
func (s *Server) Apply(settings config.Resolved) {
	s.settings.Store(&settings)
	s.gate.setMax(settings.MaxConcurrent)
	s.limiter.setLimit(settings.RatePerSec, settings.Burst)
}

func (s *Server) current() config.Resolved { return *s.settings.Load() }

func (s *Server) Handler() http.Handler { return s.engine }

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.Use(s.recovery(), s.accessLog())

	r.POST(RouteOptimize, s.limiter.middleware(), s.handleOptimize)
	r.GET(RouteStats, s.handleStats)
	r.GET(RouteHealth, s.handleHealth)
	if s.deps.Metrics != nil {
		r.GET(RouteMetrics, gin.WrapH(s.deps.Metrics.Handler()))
	}

	r.NoMethod(func(c *gin.Context) {
		if c.Request.URL.Path == RouteOptimize {
			c.JSON(http.StatusMethodNotAllowed, gin.H{"error": "Only POST requests are allowed."})
			return
		}
		c.JSON(http.StatusMethodNotAllowed, gin.H{"error": "Method not allowed."})
	})
	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found."})
	})
	return r
}

// Serve listens on the configured address until ctx is done, then shuts
// down gracefully within grace.
func (s *Server) Serve(ctx context.Context, grace time.Duration) error {
	st := s.current()
	ln, err := net.Listen("tcp", st.HTTPAddr)
	if err != nil {
		return err
	}
	srv := &http.Server{
		Handler:           s.engine,
		ReadHeaderTimeout: st.ReadTimeout,
		ReadTimeout:       st.ReadTimeout,
		WriteTimeout:      st.WriteTimeout,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()
	s.log.Info("http listening", logx.String("addr", ln.Addr().String()))

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shCtx, cancel := context.WithTimeout(context.Background(), grace)
	defer cancel()
	if err := srv.Shutdown(shCtx); err != nil {
		s.log.Warn("http shutdown incomplete", logx.Err(err))
		_ = srv.Close()
	}
	s.log.Info("http stopped")
	return nil
}
