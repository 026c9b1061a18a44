package assess

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAdviseAllRulesFireInOrder(t *testing.T) {
	got := Advise(Stats{DownloadMbps: 5, UploadMbps: 1, AvgPing: 150, Jitter: 25})
	assert.Equal(t, []string{
		SuggestionReduceDownloads,
		SuggestionCloseUploaders,
		SuggestionMoveCloser,
		SuggestionInterference,
	}, got)
}

func TestAdviseHealthyFallback(t *testing.T) {
	got := Advise(Stats{DownloadMbps: 100, UploadMbps: 20, AvgPing: 10, Jitter: 1})
	assert.Equal(t, []string{SuggestionHealthy}, got)
}

func TestAdviseBoundariesAreStrict(t *testing.T) {
	got := Advise(Stats{DownloadMbps: 10, UploadMbps: 2, AvgPing: 100, Jitter: 20})
	assert.Equal(t, []string{SuggestionHealthy}, got)
}

func TestAdviseSubset(t *testing.T) {
	got := Advise(Stats{DownloadMbps: 80, UploadMbps: 1.5, AvgPing: 20, Jitter: 22})
	assert.Equal(t, []string{SuggestionCloseUploaders, SuggestionInterference}, got)
}

func TestAdviseNeverEmpty(t *testing.T) {
	for _, s := range []Stats{{}, {DownloadMbps: 1000, UploadMbps: 1000}, {AvgPing: 1e6}} {
		assert.NotEmpty(t, Advise(s))
	}
}
