// Package speedtest measures latency and throughput against speedtest.net
// servers through showwin/speedtest-go.
package speedtest

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	st "github.com/showwin/speedtest-go/speedtest"
	"golang.org/x/sync/errgroup"

	logx "netoptimizer/pkg/logx"
)

var (
	ErrNoServers          = errors.New("no speedtest servers available")
	ErrAllPingsFailed     = errors.New("all latency tests failed")
	ErrNoEndpointSelected = errors.New("no endpoint selected")
)

// Config controls how the provider talks to speedtest.net.
type Config struct {
	// Candidate servers (closest by distance) pinged on every reselection.
	ServerCount int

	// Passed to speedtest-go UserConfig.
	SavingMode     bool
	MaxConnections int

	// PingConcurrency caps how many candidate pings run at once.
	PingConcurrency int

	// OperationTimeout feeds the dial timeout heuristic. It does NOT wrap
	// the contexts given to the provider.
	OperationTimeout time.Duration

	DisableHTTP2      bool
	DisableKeepAlives bool
}

func (c Config) withDefaults() Config {
	if c.ServerCount <= 0 {
		c.ServerCount = 5
	}
	if c.MaxConnections <= 0 {
		c.MaxConnections = 4
	}
	if c.PingConcurrency <= 0 {
		c.PingConcurrency = 4
	}
	return c
}

// Provider is a stateful measurement client for a single assessment.
// It is not safe for concurrent use.
type Provider struct {
	cfg Config
	log logx.Logger

	initOnce sync.Once
	stc      *st.Speedtest
	hc       *http.Client
	tr       *http.Transport

	candidates st.Servers
	best       *st.Server
}

type Option func(*Provider)

func WithLogger(l logx.Logger) Option { return func(p *Provider) { p.log = l } }

func NewProvider(cfg Config, opts ...Option) *Provider {
	p := &Provider{cfg: cfg.withDefaults()}
	for _, o := range opts {
		o(p)
	}
	if p.log.IsZero() {
		p.log = logx.Nop()
	}
	return p
}

func (p *Provider) init() {
	p.initOnce.Do(func() {
		hc, tr := newHTTPClient(p.cfg)
		// Avoid package-level speedtest helpers; speedtest-go keeps package-level state.
		p.stc = newSpeedtest(&st.UserConfig{
			SavingMode:     p.cfg.SavingMode,
			MaxConnections: p.cfg.MaxConnections,
		}, hc)
		p.stc.SetNThread(p.cfg.MaxConnections)
		p.hc, p.tr = hc, tr
	})
}

// SelectBestEndpoint pings the candidate servers and keeps the one with the
// lowest latency. The server list is fetched once per Provider.
func (p *Provider) SelectBestEndpoint(ctx context.Context) error {
	p.init()

	if len(p.candidates) == 0 {
		servers, err := p.stc.FetchServerListContext(ctx)
		if err != nil {
			return fmt.Errorf("fetch server list: %w", err)
		}
		if a := servers.Available(); a != nil {
			servers = *a
		}
		p.candidates = nearest(servers, p.cfg.ServerCount)
		if len(p.candidates) == 0 {
			return ErrNoServers
		}
	}

	pinged := p.pingCandidates(ctx, p.candidates)
	if err := ctx.Err(); err != nil {
		return err
	}
	best := pickBest(pinged)
	if best == nil {
		return ErrAllPingsFailed
	}
	p.best = best
	p.log.Debug("speedtest endpoint selected",
		logx.String("server", best.Sponsor),
		logx.String("country", best.Country),
		logx.Duration("latency", best.Latency),
		logx.Int("candidates", len(p.candidates)),
	)
	return nil
}

// CurrentLatencyMs is the latency of the last selected endpoint, 0 if none.
func (p *Provider) CurrentLatencyMs() float64 {
	if p.best == nil {
		return 0
	}
	return durationMs(p.best.Latency)
}

func (p *Provider) MeasureDownloadBps(ctx context.Context) (float64, error) {
	if p.best == nil {
		return 0, ErrNoEndpointSelected
	}
	if err := p.best.DownloadTestContext(ctx); err != nil {
		return 0, fmt.Errorf("download test: %w", err)
	}
	bps := bitsPerSecond(p.best.DLSpeed)
	p.dropSnapshots()
	return bps, nil
}

func (p *Provider) MeasureUploadBps(ctx context.Context) (float64, error) {
	if p.best == nil {
		return 0, ErrNoEndpointSelected
	}
	if err := p.best.UploadTestContext(ctx); err != nil {
		return 0, fmt.Errorf("upload test: %w", err)
	}
	bps := bitsPerSecond(p.best.ULSpeed)
	p.dropSnapshots()
	return bps, nil
}

// Close releases library state and idle connections.
func (p *Provider) Close() error {
	if p.stc != nil {
		p.dropSnapshots()
	}
	if p.tr != nil {
		p.tr.CloseIdleConnections()
	}
	return nil
}

// Drop per-test snapshots/chunks early to keep peak memory low.
func (p *Provider) dropSnapshots() {
	if p.stc == nil {
		return
	}
	p.stc.Snapshots().Clean()
	p.stc.Reset()
}

func (p *Provider) pingCandidates(ctx context.Context, servers st.Servers) []*st.Server {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.PingConcurrency)

	var (
		mu     sync.Mutex
		pinged = make([]*st.Server, 0, len(servers))
	)
	for _, s := range servers {
		s := s
		g.Go(func() error {
			// Individual ping failures only drop the candidate.
			if err := s.PingTestContext(gctx, nil); err != nil {
				p.log.Debug("speedtest ping failed", logx.String("server", s.Sponsor), logx.Err(err))
				return nil
			}
			mu.Lock()
			pinged = append(pinged, s)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return pinged
}

// nearest returns at most n servers sorted by distance.
func nearest(servers st.Servers, n int) st.Servers {
	out := append(st.Servers(nil), servers...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Distance < out[j].Distance })
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

// pickBest prefers the lowest positive latency.
func pickBest(servers []*st.Server) *st.Server {
	var best *st.Server
	for _, s := range servers {
		if s == nil || s.Latency <= 0 {
			continue
		}
		if best == nil || s.Latency < best.Latency {
			best = s
		}
	}
	return best
}

// speedtest-go reports byte rates; assessments consume bits per second.
func bitsPerSecond(r st.ByteRate) float64 { return float64(r) * 8 }

func durationMs(d time.Duration) float64 { return float64(d) / float64(time.Millisecond) }
