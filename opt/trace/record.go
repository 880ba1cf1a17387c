// Package trace provides decision-trace recording for coordinator runs.
// This package has no dependencies on opt/; it stores pure data types.
package trace

// Outcome describes how a pending candidate left the pending set.
type Outcome string

const (
	// OutcomeObserved means the candidate's observation was appended to the store.
	OutcomeObserved Outcome = "observed"
	// OutcomeContention means the trainer reported a contention failure.
	OutcomeContention Outcome = "contention"
	// OutcomeRemoved means the remote side sent a Remove command.
	OutcomeRemoved Outcome = "removed"
)

// DispatchRecord captures one candidate sent to the trainers.
type DispatchRecord struct {
	CandidateID int
	Batch       int // 1-based index of the received batch that triggered it
	Params      map[string]float64
	Pending     int // pending set size after the dispatch
}

// ResolutionRecord captures one candidate leaving the pending set.
type ResolutionRecord struct {
	CandidateID int
	Batch       int
	Outcome     Outcome
	Objective   *float64 // extracted objective value, nil when unavailable
}
