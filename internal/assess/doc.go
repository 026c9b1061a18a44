// Package assess turns repeated latency samples and one-shot throughput
// readings into a connection quality report.
//
// The pipeline is strictly sequential:
//
//	Sampler -> Aggregator -> Classifier -> Advisor -> ReportBuilder
//
// Orchestrator drives it against a Provider supplied per call and is the
// only place where provider failures are translated into an *Error.
package assess
