package trace

import (
	"testing"
)

func ptr(v float64) *float64 { return &v }

func TestSummarize_CountsOutcomesAndBest(t *testing.T) {
	// GIVEN a trace with three dispatches, one still unresolved
	rt := New(TraceLevelDecisions)
	for id := 1; id <= 4; id++ {
		rt.RecordDispatch(DispatchRecord{CandidateID: id, Batch: 1})
	}
	rt.RecordResolution(ResolutionRecord{CandidateID: 1, Batch: 2, Outcome: OutcomeObserved, Objective: ptr(0.5)})
	rt.RecordResolution(ResolutionRecord{CandidateID: 2, Batch: 2, Outcome: OutcomeObserved, Objective: ptr(0.2)})
	rt.RecordResolution(ResolutionRecord{CandidateID: 3, Batch: 2, Outcome: OutcomeContention})

	// WHEN summarizing for minimization
	s := Summarize(rt, true)

	// THEN counts and the best candidate are reported
	if s.Dispatched != 4 || s.Resolved != 3 || s.Unresolved != 1 {
		t.Errorf("counts = %d/%d/%d, want 4/3/1", s.Dispatched, s.Resolved, s.Unresolved)
	}
	if s.Outcomes[OutcomeObserved] != 2 || s.Outcomes[OutcomeContention] != 1 || s.Outcomes[OutcomeRemoved] != 0 {
		t.Errorf("outcomes = %v", s.Outcomes)
	}
	if s.BestID != 2 || s.BestObjective != 0.2 {
		t.Errorf("best = %d (%v), want 2 (0.2)", s.BestID, s.BestObjective)
	}
}

func TestSummarize_Maximize(t *testing.T) {
	rt := New(TraceLevelDecisions)
	rt.RecordResolution(ResolutionRecord{CandidateID: 1, Outcome: OutcomeObserved, Objective: ptr(-3)})
	rt.RecordResolution(ResolutionRecord{CandidateID: 2, Outcome: OutcomeObserved, Objective: ptr(-1)})
	rt.RecordResolution(ResolutionRecord{CandidateID: 3, Outcome: OutcomeObserved})

	s := Summarize(rt, false)
	if s.BestID != 2 || s.BestObjective != -1 {
		t.Errorf("best = %d (%v), want 2 (-1)", s.BestID, s.BestObjective)
	}
}

func TestSummarize_ReusedIDsCountedSeparately(t *testing.T) {
	// GIVEN id 1 dispatched, removed, and dispatched again
	rt := New(TraceLevelDecisions)
	rt.RecordDispatch(DispatchRecord{CandidateID: 1})
	rt.RecordResolution(ResolutionRecord{CandidateID: 1, Outcome: OutcomeRemoved})
	rt.RecordDispatch(DispatchRecord{CandidateID: 1})

	s := Summarize(rt, true)
	if s.Unresolved != 1 {
		t.Errorf("unresolved = %d, want 1", s.Unresolved)
	}
	if s.BestID != 0 {
		t.Errorf("best id = %d, want 0 when nothing was observed", s.BestID)
	}
}
