// Package monitor keeps a recent realtime snapshot warm for dashboards by
// refreshing it on a cron schedule.
package monitor

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"netoptimizer/internal/assess"
	"netoptimizer/internal/eventbus"
	logx "netoptimizer/pkg/logx"
)

// Config controls the refresher.
type Config struct {
	Enabled  bool
	Schedule string
	Location *time.Location
	// MaxAge bounds how old a served snapshot may be.
	MaxAge time.Duration
}

// SnapshotFunc takes one live measurement.
type SnapshotFunc func(ctx context.Context) (*assess.SnapshotResult, error)

type Service struct {
	run SnapshotFunc
	log logx.Logger
	bus eventbus.Bus
	now func() time.Time

	mu   sync.Mutex
	cfg  Config
	cron *cron.Cron

	latest atomic.Pointer[assess.SnapshotResult]
}

type Option func(*Service)

func WithLogger(l logx.Logger) Option { return func(s *Service) { s.log = l } }

func WithBus(b eventbus.Bus) Option { return func(s *Service) { s.bus = b } }

func WithNow(fn func() time.Time) Option { return func(s *Service) { s.now = fn } }

func New(run SnapshotFunc, opts ...Option) *Service {
	s := &Service{run: run, now: time.Now}
	for _, o := range opts {
		o(s)
	}
	if s.log.IsZero() {
		s.log = logx.Nop()
	}
	s.log = s.log.With(logx.String("comp", "monitor"))
	return s
}

// Reconfigure starts, stops or reschedules the refresher. ctx scopes the
// refresh runs and should outlive this call.
func (s *Service) Reconfigure(ctx context.Context, cfg Config) error {
	var sched Schedule
	if cfg.Enabled {
		var err error
		if sched, err = ParseSchedule(cfg.Schedule); err != nil {
			return err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cron != nil && cfg.Enabled && sameSchedule(s.cfg, cfg) {
		s.cfg = cfg
		s.maxAgeLocked(sched)
		return nil
	}
	s.stopLocked()
	s.cfg = cfg
	if !cfg.Enabled {
		return nil
	}

	loc := cfg.Location
	if loc == nil {
		loc = time.Local
	}
	c := cron.New(
		cron.WithLocation(loc),
		cron.WithChain(cron.Recover(cronLogger{s.log}), cron.SkipIfStillRunning(cronLogger{s.log})),
	)
	if _, err := c.AddFunc(sched.Cron, func() { _ = s.Refresh(ctx) }); err != nil {
		return err
	}
	s.cron = c
	c.Start()
	s.log.Info("monitor started", logx.String("schedule", sched.Cron), logx.Duration("max_age", s.maxAgeLocked(sched)))
	return nil
}

func sameSchedule(a, b Config) bool {
	return strings.TrimSpace(a.Schedule) == strings.TrimSpace(b.Schedule) && a.Location.String() == b.Location.String()
}

// Stop halts the schedule and waits for an in-flight refresh.
func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	c := s.cron
	s.cron = nil
	s.mu.Unlock()
	if c == nil {
		return
	}
	select {
	case <-c.Stop().Done():
	case <-ctx.Done():
	}
	s.log.Info("monitor stopped")
}

func (s *Service) stopLocked() {
	if s.cron != nil {
		s.cron.Stop()
		s.cron = nil
	}
}

// Refresh takes a snapshot now and caches it on success.
func (s *Service) Refresh(ctx context.Context) error {
	if s.run == nil {
		return errors.New("monitor: no snapshot func")
	}
	start := s.now()
	snap, err := s.run(ctx)
	if err != nil {
		s.log.Warn("snapshot refresh failed", logx.Err(err), logx.Duration("took", s.now().Sub(start)))
		s.publish(eventbus.Event{Topic: eventbus.TopicSnapshotError, Data: err.Error()})
		return err
	}
	s.latest.Store(snap)
	s.publish(eventbus.Event{Topic: eventbus.TopicSnapshot, Data: *snap})
	return nil
}

func (s *Service) publish(e eventbus.Event) {
	if s.bus != nil {
		s.bus.Publish(e)
	}
}

// Latest returns the cached snapshot if it is younger than MaxAge.
func (s *Service) Latest() (*assess.SnapshotResult, bool) {
	snap := s.latest.Load()
	if snap == nil {
		return nil, false
	}
	s.mu.Lock()
	maxAge := s.cfg.MaxAge
	s.mu.Unlock()
	if maxAge > 0 && s.now().Sub(snap.Timestamp) > maxAge {
		return nil, false
	}
	cp := *snap
	return &cp, true
}

// DefaultMaxAge applies to cron schedules without an explicit MaxAge.
const DefaultMaxAge = 10 * time.Minute

func (s *Service) maxAgeLocked(sched Schedule) time.Duration {
	if s.cfg.MaxAge <= 0 {
		if sched.Every > 0 {
			s.cfg.MaxAge = 2 * sched.Every
		} else {
			s.cfg.MaxAge = DefaultMaxAge
		}
	}
	return s.cfg.MaxAge
}

// cronLogger routes robfig/cron diagnostics into logx.
type cronLogger struct{ log logx.Logger }

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug("cron: "+msg, logx.Any("kv", keysAndValues))
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Warn("cron: "+msg, logx.Err(err), logx.Any("kv", keysAndValues))
}
