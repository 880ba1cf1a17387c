package opt

import "iter"

// NextID returns the smallest positive integer not used by any observed or
// pending candidate. It does not modify either collection; the coordinator adds
// the new candidate to the PendingSet on the same turn.
func NextID(store *ObservationStore, pending *PendingSet) int {
	return smallestFreeID(store.CandidateIDs(), pending.IDs())
}

func smallestFreeID(seqs ...iter.Seq[int]) int {
	used := make(map[int]struct{})
	for _, seq := range seqs {
		for id := range seq {
			if id > 0 {
				used[id] = struct{}{}
			}
		}
	}
	// At most len(used) ids can be taken, so a free one exists in [1, len(used)+1].
	for id := 1; ; id++ {
		if _, taken := used[id]; !taken {
			return id
		}
	}
}
