package opt

import (
	"fmt"
	"iter"
)

// PendingSet holds candidates dispatched to trainers and not yet resolved.
// Entries are kept in dispatch order and indexed by id.
type PendingSet struct {
	order []Candidate
	byID  map[int]int // candidate id → position in order
}

// NewPendingSet returns an empty PendingSet.
func NewPendingSet() *PendingSet {
	return &PendingSet{byID: make(map[int]int)}
}

// Add inserts c. The caller guarantees c's id is unused across pending and observed candidates.
func (p *PendingSet) Add(c Candidate) {
	p.byID[c.ID()] = len(p.order)
	p.order = append(p.order, c)
}

// Remove deletes the entry equal to c (same id and same parameters).
// Sharing an id is not enough: a stale message naming a different candidate with
// the same id fails with ErrCandidateNotPending.
func (p *PendingSet) Remove(c Candidate) error {
	pos, ok := p.byID[c.ID()]
	if !ok || !p.order[pos].Equal(c) {
		return fmt.Errorf("%w: %s", ErrCandidateNotPending, c)
	}
	p.order = append(p.order[:pos], p.order[pos+1:]...)
	delete(p.byID, c.ID())
	for i := pos; i < len(p.order); i++ {
		p.byID[p.order[i].ID()] = i
	}
	return nil
}

// Contains reports whether a candidate equal to c is pending.
func (p *PendingSet) Contains(c Candidate) bool {
	pos, ok := p.byID[c.ID()]
	return ok && p.order[pos].Equal(c)
}

// Len returns the number of pending candidates.
func (p *PendingSet) Len() int {
	return len(p.order)
}

// Candidates returns the pending candidates in dispatch order.
func (p *PendingSet) Candidates() []Candidate {
	out := make([]Candidate, len(p.order))
	copy(out, p.order)
	return out
}

// IDs yields the id of every pending candidate in dispatch order.
func (p *PendingSet) IDs() iter.Seq[int] {
	return func(yield func(int) bool) {
		for _, c := range p.order {
			if !yield(c.ID()) {
				return
			}
		}
	}
}
