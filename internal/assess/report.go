package assess

import "time"

// ReportBuilder assembles the terminal Report. When verbose, it keeps the
// rendered phase log; otherwise recorded phases are discarded.
type ReportBuilder struct {
	verbose bool
	log     []string
}

func NewReportBuilder(verbose bool) *ReportBuilder {
	return &ReportBuilder{verbose: verbose}
}

// Record appends a phase to the log (verbose only).
func (b *ReportBuilder) Record(ev PhaseEvent) {
	if b == nil || !b.verbose {
		return
	}
	b.log = append(b.log, ev.Message())
}

func (b *ReportBuilder) Build(id string, ts time.Time, stats Stats, verdict Verdict, suggestions []string) *Report {
	r := &Report{
		ID:          id,
		Timestamp:   ts,
		Verdict:     verdict,
		Stats:       stats,
		Suggestions: append([]string(nil), suggestions...),
	}
	if b != nil && b.verbose {
		r.PhaseLog = append([]string(nil), b.log...)
	}
	return r
}
