package assess

import (
	"context"
	"sync"
)

// scriptedProvider replays latency readings trial by trial.
type scriptedProvider struct {
	mu sync.Mutex

	pings    []float64
	down, up float64

	failOnTrial int // 1-based; 0 never fails
	selectErr   error
	downErr     error
	upErr       error

	trials  int
	current float64
	calls   []string
}

func (p *scriptedProvider) SelectBestEndpoint(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.trials++
	p.calls = append(p.calls, "select")
	if p.failOnTrial > 0 && p.trials == p.failOnTrial {
		return p.selectErr
	}
	if len(p.pings) > 0 {
		p.current = p.pings[(p.trials-1)%len(p.pings)]
	}
	return nil
}

func (p *scriptedProvider) CurrentLatencyMs() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current
}

func (p *scriptedProvider) MeasureDownloadBps(ctx context.Context) (float64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, "download")
	if p.downErr != nil {
		return 0, p.downErr
	}
	return p.down, nil
}

func (p *scriptedProvider) MeasureUploadBps(ctx context.Context) (float64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, "upload")
	if p.upErr != nil {
		return 0, p.upErr
	}
	return p.up, nil
}

func (p *scriptedProvider) callLog() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.calls...)
}

func (p *scriptedProvider) trialCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.trials
}

// stalledProvider never finds an endpoint before ctx ends.
type stalledProvider struct {
	scriptedProvider
}

func (p *stalledProvider) SelectBestEndpoint(ctx context.Context) error {
	<-ctx.Done()
	return ctx.Err()
}
