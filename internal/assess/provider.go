package assess

import "context"

// Provider is the external measurement capability.
//
// Implementations are stateful: CurrentLatencyMs reports the latency of the
// endpoint chosen by the most recent SelectBestEndpoint call, and throughput
// is measured against that endpoint. A Provider must not be shared between
// concurrent assessments.
type Provider interface {
	SelectBestEndpoint(ctx context.Context) error
	CurrentLatencyMs() float64
	MeasureDownloadBps(ctx context.Context) (float64, error)
	MeasureUploadBps(ctx context.Context) (float64, error)
}

// ProviderFactory builds a fresh Provider for one assessment.
type ProviderFactory func() (Provider, error)
