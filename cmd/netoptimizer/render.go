package main

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/pterm/pterm"

	"netoptimizer/internal/assess"
)

func statusColor(label string) func(a ...any) string {
	switch label {
	case "Good":
		return pterm.Green
	case "Moderate":
		return pterm.Yellow
	default:
		return pterm.Red
	}
}

func reportRows(rep *assess.Report) [][]string {
	return [][]string{
		{"Metric", "Value"},
		{"Average ping", formatFloat(rep.Stats.AvgPing) + " ms"},
		{"Jitter", formatFloat(rep.Stats.Jitter) + " ms"},
		{"Download", formatFloat(rep.Stats.DownloadMbps) + " Mbps"},
		{"Upload", formatFloat(rep.Stats.UploadMbps) + " Mbps"},
		{"Stability", string(rep.Stability)},
		{"Signal", string(rep.Signal)},
	}
}

func renderReport(w io.Writer, rep *assess.Report) error {
	label := assess.StatusLabel(rep.Efficiency)
	fmt.Fprint(w, pterm.DefaultSection.Sprint("Network assessment"))
	fmt.Fprintf(w, "Efficiency: %s (%s)\n\n",
		statusColor(label)(strconv.Itoa(rep.Efficiency)+"%"), label)

	table, err := pterm.DefaultTable.WithHasHeader().WithData(reportRows(rep)).Srender()
	if err != nil {
		return err
	}
	fmt.Fprintln(w, table)

	fmt.Fprint(w, pterm.DefaultSection.WithLevel(2).Sprint("Suggestions"))
	if err := renderList(w, rep.Suggestions); err != nil {
		return err
	}
	if len(rep.PhaseLog) > 0 {
		fmt.Fprint(w, pterm.DefaultSection.WithLevel(2).Sprint("Optimization log"))
		if err := renderList(w, rep.PhaseLog); err != nil {
			return err
		}
	}
	fmt.Fprintf(w, "\n%s  %s  took %s\n", pterm.Gray(rep.ID), pterm.Gray(rep.Timestamp.Format(time.RFC3339)), rep.Duration.Round(time.Millisecond))
	return nil
}

func renderSnapshot(w io.Writer, snap *assess.SnapshotResult) error {
	table, err := pterm.DefaultTable.WithHasHeader().WithData([][]string{
		{"Ping", "Download", "Upload", "Taken"},
		{
			formatFloat(snap.PingMs) + " ms",
			formatFloat(snap.DownloadMbps) + " Mbps",
			formatFloat(snap.UploadMbps) + " Mbps",
			snap.Timestamp.Format(time.RFC3339),
		},
	}).Srender()
	if err != nil {
		return err
	}
	fmt.Fprintln(w, table)
	return nil
}

func renderList(w io.Writer, lines []string) error {
	items := make([]pterm.BulletListItem, 0, len(lines))
	for _, l := range lines {
		items = append(items, pterm.BulletListItem{Level: 0, Text: l})
	}
	out, err := pterm.DefaultBulletList.WithItems(items).Srender()
	if err != nil {
		return err
	}
	fmt.Fprint(w, out)
	return nil
}

func formatFloat(v float64) string { return strconv.FormatFloat(v, 'f', 2, 64) }
