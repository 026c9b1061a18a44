package main

import (
	"errors"
	"io/fs"
	"strings"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"

	"netoptimizer/internal/assess"
	"netoptimizer/internal/config"
	logx "netoptimizer/pkg/logx"
	"netoptimizer/pkg/speedtest"
)

const defaultConfigPath = "./config.yaml"

type rootOptions struct {
	configPath string
	logLevel   string
	explicit   bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:   "netoptimizer",
		Short: "Assess network quality and suggest improvements",
		Long: `netoptimizer samples latency and throughput against the nearest
speedtest.net servers, classifies the connection and lists what to fix.

Run "serve" for the HTTP API, or "assess" / "snapshot" for a one-off
measurement in the terminal.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			opts.explicit = cmd.Flags().Changed("config")
		},
	}
	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", defaultConfigPath, "config file (.json, .yaml, .yml)")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "override logging.level (trace|debug|info|warn|error)")

	cmd.AddCommand(newServeCmd(opts), newAssessCmd(opts), newSnapshotCmd(opts))
	return cmd
}

// load reads the config file. A missing default file yields built-in
// defaults and a nil Manager; a missing explicit file is an error.
func (o *rootOptions) load() (*config.Manager, *config.Config, error) {
	m := config.NewManager(o.configPath)
	cfg, err := m.Load()
	if err == nil {
		return m, cfg, nil
	}
	if errors.Is(err, fs.ErrNotExist) && !o.explicit {
		return nil, &config.Config{}, nil
	}
	return nil, nil, err
}

func (o *rootOptions) logConfig(cfg *config.Config) logx.Config {
	lc := cfg.Logging.LogConfig()
	if lvl := strings.TrimSpace(o.logLevel); lvl != "" {
		lc.Level = lvl
	}
	return lc
}

// providers builds one speedtest provider per measurement from the
// current settings.
type providers struct {
	cfg atomic.Pointer[speedtest.Config]
	log logx.Logger
}

func newProviders(cfg *config.Config, res config.Resolved, log logx.Logger) *providers {
	p := &providers{log: log}
	p.apply(cfg, res)
	return p
}

func (p *providers) apply(cfg *config.Config, res config.Resolved) {
	c := speedtestConfig(cfg.Speedtest, res.Assessment.Timeout)
	p.cfg.Store(&c)
}

func (p *providers) factory() assess.ProviderFactory {
	return func() (assess.Provider, error) {
		return speedtest.NewProvider(*p.cfg.Load(), speedtest.WithLogger(p.log)), nil
	}
}

func speedtestConfig(st config.SpeedtestConfig, timeout time.Duration) speedtest.Config {
	return speedtest.Config{
		ServerCount:       st.ServerCount,
		SavingMode:        st.SavingMode,
		MaxConnections:    st.MaxConnections,
		PingConcurrency:   st.PingConcurrency,
		OperationTimeout:  timeout,
		DisableHTTP2:      st.DisableHTTP2,
		DisableKeepAlives: st.DisableKeepAlives,
	}
}
