package assess

import "fmt"

// Phase is a narrative checkpoint of an assessment run. Phases carry no
// semantic weight; they drive progress logs only.
type Phase int

const (
	PhaseStarting Phase = iota
	PhaseSpeedTest
	PhaseSample
	PhaseDNSFlush
	PhaseRouterRefresh
	PhaseRouteReselect
	PhaseAnalyzing
	PhaseComplete
)

var phaseNames = [...]string{
	PhaseStarting:      "starting",
	PhaseSpeedTest:     "speedtest",
	PhaseSample:        "sample",
	PhaseDNSFlush:      "dns_flush",
	PhaseRouterRefresh: "router_refresh",
	PhaseRouteReselect: "route_reselect",
	PhaseAnalyzing:     "analyzing",
	PhaseComplete:      "complete",
}

func (p Phase) String() string {
	if p < 0 || int(p) >= len(phaseNames) {
		return fmt.Sprintf("phase(%d)", int(p))
	}
	return phaseNames[p]
}

// PhaseEvent is emitted by the Orchestrator at each checkpoint.
// Trial and Total are set for PhaseSample only.
type PhaseEvent struct {
	Phase Phase
	Trial int
	Total int
}

// Message renders the event as a human-readable log line.
func (e PhaseEvent) Message() string {
	switch e.Phase {
	case PhaseStarting:
		return "⏳ Starting network optimization process..."
	case PhaseSpeedTest:
		return "🚀 Running speed test..."
	case PhaseSample:
		return fmt.Sprintf("📡 Collecting ping sample %d...", e.Trial)
	case PhaseDNSFlush:
		return "🔧 Applying virtual DNS flush..."
	case PhaseRouterRefresh:
		return "🔌 Simulating router refresh..."
	case PhaseRouteReselect:
		return "🌐 Reconnecting to optimal network route..."
	case PhaseAnalyzing:
		return "📊 Analyzing connection performance..."
	case PhaseComplete:
		return "✅ Optimization complete."
	default:
		return e.Phase.String()
	}
}

// PhaseObserver receives phase events tagged with the assessment ID.
type PhaseObserver func(assessmentID string, ev PhaseEvent)
