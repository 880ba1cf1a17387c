package opt

import (
	"fmt"
	"hash/fnv"
	"math/rand"
)

// RunKey identifies a reproducible search run. Two runs with the same RunKey,
// configuration and trainer responses propose identical candidates.
type RunKey int64

// NewRunKey creates a RunKey from a seed value.
func NewRunKey(seed int64) RunKey {
	return RunKey(seed)
}

const (
	// SubsystemGenerator is the RNG subsystem for candidate generation.
	// It uses the master seed directly.
	SubsystemGenerator = "generator"

	// SubsystemContention draws simulated contention failures.
	SubsystemContention = "contention"

	// SubsystemDropout draws simulated trainer drop-outs (Remove commands).
	SubsystemDropout = "dropout"

	// SubsystemObjective draws evaluation noise in the simulator.
	SubsystemObjective = "objective"
)

// SubsystemTrainer returns the subsystem name for simulated trainer N.
func SubsystemTrainer(id int) string {
	return fmt.Sprintf("trainer_%d", id)
}

// PartitionedRNG hands every subsystem its own deterministically seeded RNG
// derived from one master seed:
//   - SubsystemGenerator: masterSeed
//   - any other subsystem: masterSeed XOR fnv1a64(name)
//
// Drawing from one subsystem never shifts another's sequence.
// Not safe for concurrent use; each consumer should take its *rand.Rand once.
type PartitionedRNG struct {
	key        RunKey
	subsystems map[string]*rand.Rand
}

// NewPartitionedRNG creates a PartitionedRNG from a RunKey.
func NewPartitionedRNG(key RunKey) *PartitionedRNG {
	return &PartitionedRNG{
		key:        key,
		subsystems: make(map[string]*rand.Rand),
	}
}

// ForSubsystem returns the RNG for the named subsystem, creating it on first use.
// The same name always returns the same instance. Never returns nil.
func (p *PartitionedRNG) ForSubsystem(name string) *rand.Rand {
	if rng, ok := p.subsystems[name]; ok {
		return rng
	}

	derivedSeed := int64(p.key)
	if name != SubsystemGenerator {
		derivedSeed ^= fnv1a64(name)
	}

	rng := rand.New(rand.NewSource(derivedSeed))
	p.subsystems[name] = rng
	return rng
}

// Key returns the RunKey this PartitionedRNG was created from.
func (p *PartitionedRNG) Key() RunKey {
	return p.key
}

func fnv1a64(s string) int64 {
	h := fnv.New64a()
	h.Write([]byte(s))
	return int64(h.Sum64())
}
