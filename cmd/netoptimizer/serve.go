package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"netoptimizer/internal/assess"
	"netoptimizer/internal/config"
	"netoptimizer/internal/eventbus"
	"netoptimizer/internal/httpapi"
	"netoptimizer/internal/metrics"
	"netoptimizer/internal/monitor"
	"netoptimizer/internal/observability/pprof"
	logx "netoptimizer/pkg/logx"
)

const shutdownGrace = 10 * time.Second

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, opts)
		},
	}
}

type daemonParts struct {
	log  logx.Logger
	logs *logx.Service
	opts *rootOptions
	prov *providers
	srv  *httpapi.Server
	mon  *monitor.Service
	prof *pprof.Service
	orch *assess.Orchestrator
}

func runServe(ctx context.Context, opts *rootOptions) error {
	mgr, cfg, err := opts.load()
	if err != nil {
		return err
	}
	res, err := config.Resolve(cfg)
	if err != nil {
		return err
	}

	logs, log := logx.New(opts.logConfig(cfg))
	defer logs.Close()

	bus := eventbus.New()
	rec := metrics.New()
	d := &daemonParts{log: log, logs: logs, opts: opts}
	d.prov = newProviders(cfg, res, log.With(logx.String("comp", "speedtest")))
	d.orch = assess.New(
		assess.WithLogger(log.With(logx.String("comp", "assess"))),
		assess.WithPhaseObserver(func(id string, ev assess.PhaseEvent) {
			bus.Publish(eventbus.Event{Topic: eventbus.TopicPhase, Subject: id, Data: ev})
		}),
	)
	d.mon = monitor.New(func(ctx context.Context) (*assess.SnapshotResult, error) {
		return d.srv.Snapshot(ctx)
	}, monitor.WithLogger(log), monitor.WithBus(bus))
	d.srv = httpapi.New(httpapi.Deps{
		Orchestrator: d.orch,
		Providers:    d.prov.factory(),
		Metrics:      rec,
		Monitor:      d.mon,
		Bus:          bus,
		Logger:       log,
	}, res)
	d.prof = pprof.New(log)

	g, gctx := errgroup.WithContext(ctx)

	if err := d.mon.Reconfigure(gctx, monitorConfig(cfg, res)); err != nil {
		return err
	}
	if err := d.prof.Reconfigure(gctx, pprofConfig(cfg)); err != nil {
		log.Warn("pprof not started", logx.Err(err))
	}

	g.Go(func() error { return d.srv.Serve(gctx, shutdownGrace) })
	g.Go(func() error { d.logEvents(gctx, bus); return nil })

	if mgr != nil {
		mgr.SetLogger(log.With(logx.String("comp", "config")))
		mgr.SetValidator(func(_ context.Context, c *config.Config) error {
			_, err := config.Resolve(c)
			return err
		})
		sub := mgr.Subscribe(8)
		g.Go(func() error { d.applyReloads(gctx, mgr, sub); return nil })
		g.Go(func() error { return mgr.Watch(gctx) })
	}

	log.Info("netoptimizer started",
		logx.String("addr", res.HTTPAddr),
		logx.Int("samples", res.Assessment.SampleCount),
		logx.Bool("monitor", cfg.Monitor.Enabled),
	)
	notify(log, daemon.SdNotifyReady)

	err = g.Wait()

	notify(log, daemon.SdNotifyStopping)
	stopCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	d.mon.Stop(stopCtx)
	d.prof.Stop(stopCtx)
	log.Info("netoptimizer stopped", logx.Uint64("events_dropped", eventbus.Dropped(bus)))
	return err
}

// applyReloads fans a new config out to every live component.
func (d *daemonParts) applyReloads(ctx context.Context, mgr *config.Manager, sub chan *config.Config) {
	defer mgr.Unsubscribe(sub)
	last := mgr.Get()
	for {
		select {
		case <-ctx.Done():
			return
		case next, ok := <-sub:
			if !ok {
				return
			}
			res, err := config.Resolve(next)
			if err != nil {
				d.log.Warn("config reload ignored", logx.Err(err))
				continue
			}
			sections, attrs := config.SummarizeChange(last, next)
			last = next

			d.logs.Apply(d.opts.logConfig(next))
			d.prov.apply(next, res)
			d.srv.Apply(res)
			if err := d.mon.Reconfigure(ctx, monitorConfig(next, res)); err != nil {
				d.log.Warn("monitor reconfigure failed", logx.Err(err))
			}
			if err := d.prof.Reconfigure(ctx, pprofConfig(next)); err != nil {
				d.log.Warn("pprof reconfigure failed", logx.Err(err))
			}

			if len(sections) == 0 {
				d.log.Info("config reloaded (no changes)")
				continue
			}
			for _, s := range sections {
				if s == "http" {
					d.log.Warn("http.addr and server timeouts apply after restart")
					break
				}
			}
			fields := append([]logx.Field{logx.String("changed", strings.Join(sections, ","))}, attrs...)
			d.log.Info("config applied", fields...)
		}
	}
}

// logEvents mirrors bus traffic into the debug log.
func (d *daemonParts) logEvents(ctx context.Context, bus eventbus.Bus) {
	events, unsub := bus.Subscribe(128)
	defer unsub()
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			fields := []logx.Field{logx.String("topic", e.Topic), logx.Time("time", e.Time)}
			if e.Subject != "" {
				fields = append(fields, logx.String("subject", e.Subject))
			}
			if ev, ok := e.Data.(assess.PhaseEvent); ok {
				fields = append(fields, logx.String("phase", ev.Message()))
			}
			d.log.Debug("event", fields...)
		}
	}
}

func monitorConfig(cfg *config.Config, res config.Resolved) monitor.Config {
	mc := monitor.Config{
		Enabled:  cfg.Monitor.Enabled,
		Schedule: cfg.Monitor.Schedule,
		Location: res.MonitorLocation,
	}
	// unset lets the monitor derive it from the interval
	if strings.TrimSpace(cfg.Monitor.MaxAge) != "" {
		mc.MaxAge = res.MonitorMaxAge
	}
	return mc
}

func pprofConfig(cfg *config.Config) pprof.Config {
	return pprof.Config{Enabled: cfg.Pprof.Enabled, Addr: cfg.Pprof.Addr, Token: cfg.Pprof.Token}
}

func notify(log logx.Logger, state string) {
	sent, err := daemon.SdNotify(false, state)
	if err != nil {
		log.Warn("sd_notify failed", logx.String("state", state), logx.Err(err))
		return
	}
	if sent {
		log.Debug("sd_notify sent", logx.String("state", state))
	}
}
