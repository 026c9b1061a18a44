package assess

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"

	logx "netoptimizer/pkg/logx"
)

// Options controls one assessment run.
type Options struct {
	SampleCount int
	Delay       time.Duration
	Verbose     bool

	// Timeout bounds the whole run; 0 disables it. Expiry fails the run,
	// it never shortens the sample set.
	Timeout time.Duration
}

func DefaultOptions() Options {
	return Options{SampleCount: DefaultSampleCount, Delay: DefaultSampleDelay}
}

func (o Options) normalized() Options {
	if o.SampleCount <= 0 {
		o.SampleCount = DefaultSampleCount
	}
	if o.Delay < 0 {
		o.Delay = 0
	}
	if o.Timeout < 0 {
		o.Timeout = 0
	}
	return o
}

// Orchestrator sequences Sampler, Aggregate, Classify, Advise and the
// ReportBuilder. It holds no per-run state and is safe for concurrent use
// as long as each call receives its own Provider.
type Orchestrator struct {
	clock    clock.Clock
	log      logx.Logger
	observer PhaseObserver
	newID    func() string
}

type Option func(*Orchestrator)

func WithClock(c clock.Clock) Option { return func(o *Orchestrator) { o.clock = c } }

func WithLogger(l logx.Logger) Option { return func(o *Orchestrator) { o.log = l } }

// WithPhaseObserver streams phase events, verbose or not.
func WithPhaseObserver(fn PhaseObserver) Option { return func(o *Orchestrator) { o.observer = fn } }

func WithIDGenerator(fn func() string) Option { return func(o *Orchestrator) { o.newID = fn } }

func New(opts ...Option) *Orchestrator {
	o := &Orchestrator{}
	for _, opt := range opts {
		opt(o)
	}
	if o.clock == nil {
		o.clock = clock.New()
	}
	if o.log.IsZero() {
		o.log = logx.Nop()
	}
	if o.newID == nil {
		o.newID = uuid.NewString
	}
	return o
}

// Run performs one assessment against p. On failure it returns a nil Report
// and an *Error carrying the provider's message.
func (o *Orchestrator) Run(ctx context.Context, p Provider, opts Options) (*Report, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if p == nil {
		return nil, &Error{Op: OpAssessment, Kind: KindUnknown, Err: errors.New("nil provider")}
	}
	opts = opts.normalized()
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	id := o.newID()
	start := o.clock.Now()
	log := o.log.With(logx.String("assessment_id", id))
	rb := NewReportBuilder(opts.Verbose)
	emit := func(ev PhaseEvent) {
		rb.Record(ev)
		if o.observer != nil {
			o.observer(id, ev)
		}
	}

	log.Info("assessment started",
		logx.Int("samples", opts.SampleCount),
		logx.Duration("delay", opts.Delay),
		logx.Bool("verbose", opts.Verbose),
	)
	emit(PhaseEvent{Phase: PhaseStarting})
	emit(PhaseEvent{Phase: PhaseSpeedTest})

	sampler := Sampler{
		Count: opts.SampleCount,
		Delay: opts.Delay,
		Clock: o.clock,
		OnTrial: func(i, total int) {
			emit(PhaseEvent{Phase: PhaseSample, Trial: i, Total: total})
		},
	}
	samples, err := sampler.Collect(ctx, p)
	if err != nil {
		return nil, o.failed(log, OpAssessment, err, start)
	}

	down, err := p.MeasureDownloadBps(ctx)
	if err != nil {
		return nil, o.failed(log, OpAssessment, measurementFailure("download", err), start)
	}
	up, err := p.MeasureUploadBps(ctx)
	if err != nil {
		return nil, o.failed(log, OpAssessment, measurementFailure("upload", err), start)
	}

	emit(PhaseEvent{Phase: PhaseDNSFlush})
	emit(PhaseEvent{Phase: PhaseRouterRefresh})
	emit(PhaseEvent{Phase: PhaseRouteReselect})
	emit(PhaseEvent{Phase: PhaseAnalyzing})

	stats := Aggregate(samples, down, up)
	verdict := Classify(stats)
	suggestions := Advise(stats)

	emit(PhaseEvent{Phase: PhaseComplete})

	rep := rb.Build(id, o.clock.Now(), stats, verdict, suggestions)
	rep.Samples = samples
	rep.Duration = o.clock.Since(start)

	log.Info("assessment finished",
		logx.Int("efficiency", verdict.Efficiency),
		logx.String("stability", string(verdict.Stability)),
		logx.String("signal", string(verdict.Signal)),
		logx.Float64("avg_ping_ms", stats.AvgPing),
		logx.Float64("jitter_ms", stats.Jitter),
		logx.Float64("download_mbps", stats.DownloadMbps),
		logx.Float64("upload_mbps", stats.UploadMbps),
		logx.Int("suggestions", len(suggestions)),
		logx.Duration("took", rep.Duration),
	)
	return rep, nil
}

// Snapshot takes a single live measurement with no aggregation,
// classification or advice.
func (o *Orchestrator) Snapshot(ctx context.Context, p Provider) (*SnapshotResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if p == nil {
		return nil, &Error{Op: OpSnapshot, Kind: KindUnknown, Err: errors.New("nil provider")}
	}
	start := o.clock.Now()

	if err := p.SelectBestEndpoint(ctx); err != nil {
		wrap := endpointFailure
		if ctx.Err() != nil {
			wrap = measurementFailure
		}
		return nil, o.failed(o.log, OpSnapshot, wrap("select best endpoint", err), start)
	}
	ping := p.CurrentLatencyMs()
	if !validLatency(ping) {
		return nil, o.failed(o.log, OpSnapshot, measurementFailure("latency", fmt.Errorf("invalid latency reading %v", ping)), start)
	}
	down, err := p.MeasureDownloadBps(ctx)
	if err != nil {
		return nil, o.failed(o.log, OpSnapshot, measurementFailure("download", err), start)
	}
	up, err := p.MeasureUploadBps(ctx)
	if err != nil {
		return nil, o.failed(o.log, OpSnapshot, measurementFailure("upload", err), start)
	}

	res := &SnapshotResult{
		DownloadMbps: toMbps(down),
		UploadMbps:   toMbps(up),
		PingMs:       round2(ping),
		Timestamp:    o.clock.Now(),
	}
	o.log.Debug("snapshot taken",
		logx.Float64("ping_ms", res.PingMs),
		logx.Float64("download_mbps", res.DownloadMbps),
		logx.Float64("upload_mbps", res.UploadMbps),
		logx.Duration("took", o.clock.Since(start)),
	)
	return res, nil
}

func (o *Orchestrator) failed(log logx.Logger, op Op, err error, start time.Time) *Error {
	ae := fail(op, err)
	log.Warn(string(op)+" failed",
		logx.String("kind", ae.Kind.String()),
		logx.Err(err),
		logx.Duration("took", o.clock.Since(start)),
	)
	return ae
}
