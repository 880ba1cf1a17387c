package trace

// TraceSummary aggregates statistics from a RunTrace.
type TraceSummary struct {
	Dispatched    int
	Resolved      int
	Outcomes      map[Outcome]int
	Unresolved    int // dispatched but not resolved by the end of the run
	BestID        int // candidate with the best objective; 0 when none
	BestObjective float64
}

// Summarize computes aggregate statistics from a RunTrace. minimize selects the
// direction used for BestObjective. Safe for nil or empty traces.
func Summarize(rt *RunTrace, minimize bool) *TraceSummary {
	summary := &TraceSummary{Outcomes: make(map[Outcome]int)}
	if rt == nil {
		return summary
	}

	summary.Dispatched = len(rt.Dispatches)
	summary.Resolved = len(rt.Resolutions)

	haveBest := false
	for _, r := range rt.Resolutions {
		summary.Outcomes[r.Outcome]++
		if r.Outcome != OutcomeObserved || r.Objective == nil {
			continue
		}
		v := *r.Objective
		better := v < summary.BestObjective
		if !minimize {
			better = v > summary.BestObjective
		}
		if !haveBest || better {
			haveBest = true
			summary.BestID = r.CandidateID
			summary.BestObjective = v
		}
	}
	// Ids are reused once freed, so count rather than match by id.
	summary.Unresolved = summary.Dispatched - summary.Resolved
	return summary
}
