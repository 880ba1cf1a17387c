package opt

import "time"

// DefaultMaxObservations is the default observation budget of a run.
const DefaultMaxObservations = 500

// StoppingPredicate decides whether the coordinator keeps running.
// It is evaluated before every receive.
type StoppingPredicate interface {
	Running(store *ObservationStore) bool
}

// StoppingFunc adapts a function to StoppingPredicate.
type StoppingFunc func(store *ObservationStore) bool

// Running implements StoppingPredicate.
func (f StoppingFunc) Running(store *ObservationStore) bool {
	return f(store)
}

// MaxObservations keeps the loop running while the store holds at most that
// many observations; it stops once the count exceeds the budget.
type MaxObservations int

// Running implements StoppingPredicate.
func (m MaxObservations) Running(store *ObservationStore) bool {
	return store.Len() <= int(m)
}

// Deadline stops the loop once the wall clock passes At.
type Deadline struct {
	At  time.Time
	Now func() time.Time // nil means time.Now
}

// Running implements StoppingPredicate.
func (d Deadline) Running(_ *ObservationStore) bool {
	now := time.Now
	if d.Now != nil {
		now = d.Now
	}
	return now().Before(d.At)
}

// AllOf runs while every predicate runs.
func AllOf(preds ...StoppingPredicate) StoppingPredicate {
	return StoppingFunc(func(store *ObservationStore) bool {
		for _, p := range preds {
			if !p.Running(store) {
				return false
			}
		}
		return true
	})
}
