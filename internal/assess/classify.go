package assess

type tier struct {
	match   func(Stats) bool
	verdict Verdict
}

// Tiers are checked in order; the first match wins and the last always matches.
var tiers = []tier{
	{
		match: func(s Stats) bool {
			return s.DownloadMbps >= 50 && s.AvgPing < 50 && s.Jitter < 10
		},
		verdict: Verdict{Efficiency: 95, Stability: StabilityExcellent, Signal: SignalStrong},
	},
	{
		match: func(s Stats) bool {
			return s.DownloadMbps >= 20 && s.AvgPing < 100
		},
		verdict: Verdict{Efficiency: 85, Stability: StabilityModerate, Signal: SignalGood},
	},
	{
		match:   func(Stats) bool { return true },
		verdict: Verdict{Efficiency: 60, Stability: StabilityUnstable, Signal: SignalWeak},
	},
}

// Classify maps a Stats record to its Verdict.
func Classify(s Stats) Verdict {
	for _, t := range tiers {
		if t.match(s) {
			return t.verdict
		}
	}
	return tiers[len(tiers)-1].verdict
}

// StatusLabel is the coarse dashboard label for an efficiency score.
func StatusLabel(efficiency int) string {
	switch {
	case efficiency < 40:
		return "Poor"
	case efficiency < 75:
		return "Moderate"
	default:
		return "Good"
	}
}
