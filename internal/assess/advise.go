package assess

const (
	SuggestionReduceDownloads = "Reduce background downloads and streaming."
	SuggestionCloseUploaders  = "Close apps using heavy upload bandwidth."
	SuggestionMoveCloser      = "Move closer to your router or switch to Ethernet."
	SuggestionInterference    = "Minimize interference and reduce active devices."

	// SuggestionHealthy is returned alone when no rule fires.
	SuggestionHealthy = "✅ Your network is healthy and performing well."
)

type rule struct {
	fires   func(Stats) bool
	message string
}

// Output order follows this slice.
var rules = []rule{
	{fires: func(s Stats) bool { return s.DownloadMbps < 10 }, message: SuggestionReduceDownloads},
	{fires: func(s Stats) bool { return s.UploadMbps < 2 }, message: SuggestionCloseUploaders},
	{fires: func(s Stats) bool { return s.AvgPing > 100 }, message: SuggestionMoveCloser},
	{fires: func(s Stats) bool { return s.Jitter > 20 }, message: SuggestionInterference},
}

// Advise evaluates every remediation rule independently. The result is never empty.
func Advise(s Stats) []string {
	out := make([]string, 0, len(rules))
	for _, r := range rules {
		if r.fires(s) {
			out = append(out, r.message)
		}
	}
	if len(out) == 0 {
		out = append(out, SuggestionHealthy)
	}
	return out
}
