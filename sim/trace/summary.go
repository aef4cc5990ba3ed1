package trace

// TraceSummary aggregates statistics from a SimulationTrace.
type TraceSummary struct {
	TotalDecisions   int
	DecisionCounts   map[Decision]int
	FallbackRatio    float64 // fallback / (forward + fallback)
	Delivered        int
	MeanLatency      float64 // ms
	MaxLatency       int64
	Lost             int
	LossReasons      map[string]int
	SinkDistribution map[string]int // sink label → deliveries
	BendEdits        int
}

// Summarize computes aggregate statistics from a SimulationTrace.
// Safe for nil or empty traces (returns zero-value fields).
func Summarize(st *SimulationTrace) *TraceSummary {
	summary := &TraceSummary{
		DecisionCounts:   make(map[Decision]int),
		LossReasons:      make(map[string]int),
		SinkDistribution: make(map[string]int),
	}
	if st == nil {
		return summary
	}

	summary.TotalDecisions = len(st.Routings)
	for _, r := range st.Routings {
		summary.DecisionCounts[r.Decision]++
	}
	placed := summary.DecisionCounts[DecisionForward] + summary.DecisionCounts[DecisionFallback]
	if placed > 0 {
		summary.FallbackRatio = float64(summary.DecisionCounts[DecisionFallback]) / float64(placed)
	}

	if len(st.Deliveries) > 0 {
		var total int64
		for _, d := range st.Deliveries {
			summary.SinkDistribution[d.Sink]++
			total += d.Latency
			if d.Latency > summary.MaxLatency {
				summary.MaxLatency = d.Latency
			}
		}
		summary.Delivered = len(st.Deliveries)
		summary.MeanLatency = float64(total) / float64(len(st.Deliveries))
	}

	summary.Lost = len(st.Losses)
	for _, l := range st.Losses {
		summary.LossReasons[l.Reason]++
	}
	summary.BendEdits = len(st.Bends)

	return summary
}
