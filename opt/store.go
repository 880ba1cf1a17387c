package opt

import (
	"context"
	"encoding/json"
	"fmt"
	"iter"
)

// ObservationStore is the in-memory history of completed evaluations, kept
// 1:1 with a durable LedgerLog. It never mutates or deletes an entry.
type ObservationStore struct {
	log          LedgerLog
	observations []Observation
}

// LoadObservationStore rebuilds the store by replaying every ledger line in order.
// Any line that does not decode as an Observation fails the whole load with
// ErrCorruptLedger; no partial store is returned.
func LoadObservationStore(ctx context.Context, log LedgerLog) (*ObservationStore, error) {
	s := &ObservationStore{log: log}
	lineNo := 0
	err := log.Replay(ctx, func(line []byte) error {
		lineNo++
		obs, err := decodeObservation(line)
		if err != nil {
			return &LedgerError{Line: lineNo, Err: fmt.Errorf("%w: %v", ErrCorruptLedger, err)}
		}
		s.observations = append(s.observations, obs)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Append adds obs to memory, then durably appends it as one ledger line.
// Recovery always re-derives memory from the ledger, so the durable write is
// the source of truth if the process dies between the two steps.
func (s *ObservationStore) Append(ctx context.Context, obs Observation) error {
	line, err := json.Marshal(obs)
	if err != nil {
		return fmt.Errorf("encoding observation for candidate %d: %w", obs.Candidate.ID(), err)
	}
	s.observations = append(s.observations, obs)
	if err := s.log.Append(ctx, line); err != nil {
		return fmt.Errorf("persisting observation for candidate %d: %w", obs.Candidate.ID(), err)
	}
	return nil
}

// Len returns the number of stored observations.
func (s *ObservationStore) Len() int {
	return len(s.observations)
}

// Observations returns a copy of the history in arrival order.
func (s *ObservationStore) Observations() []Observation {
	out := make([]Observation, len(s.observations))
	copy(out, s.observations)
	return out
}

// CandidateIDs yields the candidate id of every stored observation.
func (s *ObservationStore) CandidateIDs() iter.Seq[int] {
	return func(yield func(int) bool) {
		for _, obs := range s.observations {
			if !yield(obs.Candidate.ID()) {
				return
			}
		}
	}
}
