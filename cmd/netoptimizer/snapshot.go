package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"netoptimizer/internal/assess"
)

func newSnapshotCmd(opts *rootOptions) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Take one live ping/download/upload reading",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runSnapshot(ctx, cmd, opts, asJSON)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the snapshot as JSON")
	return cmd
}

func runSnapshot(ctx context.Context, cmd *cobra.Command, opts *rootOptions, asJSON bool) error {
	res, prov, log, err := cliSetup(opts)
	if err != nil {
		return err
	}
	if t := res.Assessment.Timeout; t > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t)
		defer cancel()
	}

	var spinner *pterm.SpinnerPrinter
	if !asJSON {
		spinner, _ = pterm.DefaultSpinner.WithWriter(cmd.ErrOrStderr()).Start("Measuring...")
	}
	p, err := openProvider(prov.factory(), spinner, "Measurement failed")
	if err != nil {
		return err
	}
	defer closeProvider(p)
	snap, err := assess.New(assess.WithLogger(log)).Snapshot(ctx, p)
	if spinner != nil {
		if err != nil {
			spinner.Fail("Measurement failed")
		} else {
			_ = spinner.Stop()
		}
	}
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if asJSON {
		return writeJSON(out, snap)
	}
	return renderSnapshot(out, snap)
}
