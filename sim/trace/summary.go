package trace

// TraceSummary aggregates statistics from a SimulationTrace.
type TraceSummary struct {
	TotalEvaluations int            `json:"total_evaluations"`
	Switches         int            `json:"switches"`
	AgentsSwitched   int            `json:"agents_switched"`
	SelectedCounts   map[string]int `json:"selected_counts"` // delegate → evaluations selecting it
	RuleCounts       map[string]int `json:"rule_counts"`     // rule → evaluations it decided
}

// Summarize computes aggregate statistics from a SimulationTrace.
// Safe for nil or empty traces (returns zero-value fields).
func Summarize(st *SimulationTrace) *TraceSummary {
	summary := &TraceSummary{
		SelectedCounts: make(map[string]int),
		RuleCounts:     make(map[string]int),
	}
	if st == nil {
		return summary
	}

	agents := make(map[int]bool)
	summary.TotalEvaluations = len(st.Evaluations)
	for _, e := range st.Evaluations {
		summary.SelectedCounts[e.To]++
		summary.RuleCounts[e.Rule]++
		if e.Switched {
			summary.Switches++
			agents[e.AgentID] = true
		}
	}
	summary.AgentsSwitched = len(agents)

	return summary
}
