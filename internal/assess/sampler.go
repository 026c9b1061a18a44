package assess

import (
	"context"
	"fmt"
	"time"

	"github.com/benbjohnson/clock"
)

// DefaultSampleCount is the number of latency trials per assessment.
const DefaultSampleCount = 3

// DefaultSampleDelay paces consecutive trials against the provider.
const DefaultSampleDelay = time.Second

// Sampler collects latency readings, one per trial, strictly in sequence.
//
// Each trial asks the provider to reselect its best endpoint and then reads
// that endpoint's latency. The first failing trial aborts the run; a
// partial sample set is never returned.
type Sampler struct {
	Count int
	Delay time.Duration
	Clock clock.Clock

	// OnTrial, when set, is called before trial i (1-based) starts.
	OnTrial func(i, total int)
}

// Collect runs Count trials against p.
func (s Sampler) Collect(ctx context.Context, p Provider) ([]float64, error) {
	n := s.Count
	if n <= 0 {
		n = DefaultSampleCount
	}
	clk := s.Clock
	if clk == nil {
		clk = clock.New()
	}

	samples := make([]float64, 0, n)
	for i := 1; i <= n; i++ {
		if i > 1 {
			if err := wait(ctx, clk, s.Delay); err != nil {
				return nil, measurementFailure(fmt.Sprintf("trial %d", i), err)
			}
		}
		if s.OnTrial != nil {
			s.OnTrial(i, n)
		}

		if err := ctx.Err(); err != nil {
			return nil, measurementFailure(fmt.Sprintf("trial %d", i), err)
		}
		if err := p.SelectBestEndpoint(ctx); err != nil {
			step := fmt.Sprintf("select best endpoint (trial %d)", i)
			if ctx.Err() != nil {
				return nil, measurementFailure(step, err)
			}
			return nil, endpointFailure(step, err)
		}
		ms := p.CurrentLatencyMs()
		if !validLatency(ms) {
			return nil, measurementFailure(fmt.Sprintf("trial %d", i), fmt.Errorf("invalid latency reading %v", ms))
		}
		samples = append(samples, ms)
	}
	return samples, nil
}

func wait(ctx context.Context, clk clock.Clock, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-clk.After(d):
		return nil
	}
}
