package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"netoptimizer/internal/assess"
	"netoptimizer/internal/config"
	"netoptimizer/internal/eventbus"
	logx "netoptimizer/pkg/logx"
)

var errBusy = errors.New("another measurement is already running")

type closer interface{ Close() error }

func (s *Server) handleOptimize(c *gin.Context) {
	opts, err := requestOptions(c, s.current().Assessment)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !s.gate.tryAcquire() {
		s.fail(c, errBusy)
		return
	}
	defer s.gate.release()

	p, err := s.newProvider()
	if err != nil {
		s.fail(c, err)
		return
	}
	if cl, ok := p.(closer); ok {
		defer cl.Close()
	}

	start := time.Now()
	rep, err := s.deps.Orchestrator.Run(c.Request.Context(), p, opts)
	if s.deps.Metrics != nil {
		s.deps.Metrics.ObserveAssessment(rep, err, time.Since(start))
	}
	if err != nil {
		s.publish(eventbus.Event{Topic: eventbus.TopicAssessmentError, Data: err.Error()})
		s.fail(c, err)
		return
	}
	s.publish(eventbus.Event{Topic: eventbus.TopicAssessmentDone, Subject: rep.ID, Data: rep.Verdict})
	c.JSON(http.StatusOK, rep)
}

func (s *Server) publish(e eventbus.Event) {
	if s.deps.Bus != nil {
		s.deps.Bus.Publish(e)
	}
}

// handleStats serves the monitor's cached snapshot when fresh, otherwise
// measures live.
func (s *Server) handleStats(c *gin.Context) {
	if s.deps.Monitor != nil && c.Query("live") != "1" {
		if snap, ok := s.deps.Monitor.Latest(); ok {
			c.Header("X-Snapshot-Source", "cache")
			c.JSON(http.StatusOK, snap)
			return
		}
	}
	snap, err := s.Snapshot(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.Header("X-Snapshot-Source", "live")
	c.JSON(http.StatusOK, snap)
}

// Snapshot takes one live measurement with a fresh provider. The monitor
// uses it as its refresh func, so it shares the gate with /optimize and
// returns errBusy instead of measuring concurrently.
func (s *Server) Snapshot(ctx context.Context) (*assess.SnapshotResult, error) {
	if !s.gate.tryAcquire() {
		return nil, errBusy
	}
	defer s.gate.release()

	p, err := s.newProvider()
	if err != nil {
		return nil, err
	}
	if cl, ok := p.(closer); ok {
		defer cl.Close()
	}
	if t := s.current().Assessment.Timeout; t > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t)
		defer cancel()
	}
	start := time.Now()
	snap, err := s.deps.Orchestrator.Snapshot(ctx, p)
	if s.deps.Metrics != nil {
		s.deps.Metrics.ObserveSnapshot(snap, err, time.Since(start))
	}
	return snap, err
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"uptime": time.Since(s.started).Round(time.Second).String(),
	})
}

func (s *Server) newProvider() (assess.Provider, error) {
	if s.deps.Providers == nil {
		return nil, errors.New("no measurement provider configured")
	}
	return s.deps.Providers()
}

func (s *Server) fail(c *gin.Context, err error) {
	status := statusFor(err)
	msg := err.Error()
	var ae *assess.Error
	if errors.As(err, &ae) {
		msg = ae.Message()
	}
	if status >= http.StatusInternalServerError {
		_ = c.Error(err)
	}
	s.log.Debug("request failed", logx.Int("status", status), logx.String("kind", assess.KindOf(err).String()))
	c.JSON(status, gin.H{"error": msg})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, errBusy):
		return http.StatusConflict
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// requestOptions applies the samples and verbose query overrides to the
// configured defaults.
func requestOptions(c *gin.Context, def assess.Options) (assess.Options, error) {
	opts := def
	if raw, ok := c.GetQuery("samples"); ok {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > config.MaxSampleCount {
			return opts, errors.New("samples must be an integer between 1 and " + strconv.Itoa(config.MaxSampleCount))
		}
		opts.SampleCount = n
	}
	if raw, ok := c.GetQuery("verbose"); ok {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return opts, errors.New("verbose must be a boolean")
		}
		opts.Verbose = v
	}
	return opts, nil
}
