package assess

import "math"

// Aggregate reduces latency samples plus one download and one upload reading
// (bits per second) into a Stats record. Every field is rounded to 2 decimals.
//
// Jitter is the Bessel-corrected sample standard deviation of samples, and
// exactly 0 when fewer than two samples exist.
func Aggregate(samples []float64, downloadBps, uploadBps float64) Stats {
	return Stats{
		AvgPing:      round2(mean(samples)),
		Jitter:       round2(stdev(samples)),
		DownloadMbps: toMbps(downloadBps),
		UploadMbps:   toMbps(uploadBps),
	}
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

func stdev(xs []float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	m := mean(xs)
	var ss float64
	for _, x := range xs {
		d := x - m
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(xs)-1))
}

func toMbps(bps float64) float64 { return round2(bps / 1_000_000) }

func round2(v float64) float64 { return math.Round(v*100) / 100 }
