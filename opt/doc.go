// Package opt provides the coordinator engine for distributed hyperparameter search.
//
// # Reading Guide
//
// Start with these files to understand the coordinator:
//   - candidate.go: Candidate and Observation, the two records exchanged with trainers
//   - codec.go: classification of incoming message lines and reply encoding
//   - coordinator.go: the receive, apply, propose, reply loop
//
// # Bookkeeping
//
// The coordinator owns three pieces of state and never shares them:
//   - ObservationStore: append-only history, replayed from a LedgerLog at startup
//   - PendingSet: candidates dispatched to trainers and not yet resolved
//   - NextID: the smallest positive id not used by any observed or pending candidate
//
// A candidate enters the PendingSet once and leaves it exactly once: when its
// observation arrives, when the remote side sends a Remove command, or when its
// evaluation reports a contention failure.
//
// # Extension Points
//
//   - CandidateGenerator: proposes the next parameter set (see opt/strategy)
//   - StoppingPredicate: decides when the loop terminates
//   - Channel: the duplex transport (see opt/transport for streams and TCP)
//   - LedgerLog: durable line log (FileLog here, RedisLog in opt/storage)
//
// Sub-packages register their implementations via init() functions that set
// package-level factory variables (NewGeneratorFunc).
package opt
