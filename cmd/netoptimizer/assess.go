package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"netoptimizer/internal/assess"
	"netoptimizer/internal/config"
	logx "netoptimizer/pkg/logx"
)

type measureFlags struct {
	samples int
	verbose bool
	asJSON  bool
}

func newAssessCmd(opts *rootOptions) *cobra.Command {
	var f measureFlags
	cmd := &cobra.Command{
		Use:   "assess",
		Short: "Run one assessment and print the verdict",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runAssess(ctx, cmd, opts, f)
		},
	}
	cmd.Flags().IntVarP(&f.samples, "samples", "n", 0, "latency samples (default from config)")
	cmd.Flags().BoolVarP(&f.verbose, "verbose", "v", false, "include the optimization log")
	cmd.Flags().BoolVar(&f.asJSON, "json", false, "print the report as JSON")
	return cmd
}

// cliSetup loads config and builds the pieces shared by the one-shot
// commands. Logs go to stderr so stdout stays clean for the report.
func cliSetup(opts *rootOptions) (config.Resolved, *providers, logx.Logger, error) {
	_, cfg, err := opts.load()
	if err != nil {
		return config.Resolved{}, nil, logx.Logger{}, err
	}
	res, err := config.Resolve(cfg)
	if err != nil {
		return config.Resolved{}, nil, logx.Logger{}, err
	}
	level := opts.logLevel
	if level == "" {
		level = "warn"
	}
	log := logx.NewConsole(level)
	return res, newProviders(cfg, res, log), log, nil
}

func runAssess(ctx context.Context, cmd *cobra.Command, opts *rootOptions, f measureFlags) error {
	res, prov, log, err := cliSetup(opts)
	if err != nil {
		return err
	}
	o := res.Assessment
	if cmd.Flags().Changed("samples") {
		if f.samples < 1 || f.samples > config.MaxSampleCount {
			return fmt.Errorf("--samples must be between 1 and %d", config.MaxSampleCount)
		}
		o.SampleCount = f.samples
	}
	if cmd.Flags().Changed("verbose") {
		o.Verbose = f.verbose
	}

	var spinner *pterm.SpinnerPrinter
	if !f.asJSON {
		spinner, _ = pterm.DefaultSpinner.WithWriter(cmd.ErrOrStderr()).Start("Assessing network...")
	}
	orch := assess.New(
		assess.WithLogger(log),
		assess.WithPhaseObserver(func(_ string, ev assess.PhaseEvent) {
			if spinner != nil {
				spinner.UpdateText(ev.Message())
			}
		}),
	)

	p, err := openProvider(prov.factory(), spinner, "Assessment failed")
	if err != nil {
		return err
	}
	defer closeProvider(p)
	rep, err := orch.Run(ctx, p, o)
	if spinner != nil {
		if err != nil {
			spinner.Fail("Assessment failed")
		} else {
			spinner.Success("Assessment complete")
		}
	}
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if f.asJSON {
		return writeJSON(out, rep)
	}
	return renderReport(out, rep)
}

// openProvider builds a provider, failing the spinner when it cannot.
func openProvider(factory assess.ProviderFactory, spinner *pterm.SpinnerPrinter, failMsg string) (assess.Provider, error) {
	p, err := factory()
	if err != nil {
		if spinner != nil {
			spinner.Fail(failMsg)
		}
		return nil, fmt.Errorf("create provider: %w", err)
	}
	return p, nil
}

func closeProvider(p assess.Provider) {
	if c, ok := p.(interface{ Close() error }); ok {
		_ = c.Close()
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
