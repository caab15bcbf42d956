package input

import (
	"hash/fnv"
	"math/rand"
)

// Subsystem names for generator randomness.
const (
	// SubsystemKinematics draws event variables. Uses the master seed directly.
	SubsystemKinematics = "kinematics"
	// SubsystemModes draws interaction modes.
	SubsystemModes = "modes"
	// SubsystemWeights draws input weight jitter.
	SubsystemWeights = "weights"
)

// PartitionedRNG provides deterministic, isolated RNG instances per subsystem, so adding
// draws to one subsystem never shifts the sequence of another.
//
// Derivation formula:
//   - For SubsystemKinematics: uses seed directly
//   - For all other subsystems: seed XOR fnv1a64(subsystemName)
//
// Thread-safety: NOT thread-safe. Must be called from single goroutine.
type PartitionedRNG struct {
	seed       int64
	subsystems map[string]*rand.Rand
}

// NewPartitionedRNG creates a PartitionedRNG from a seed.
func NewPartitionedRNG(seed int64) *PartitionedRNG {
	return &PartitionedRNG{seed: seed, subsystems: make(map[string]*rand.Rand)}
}

// ForSubsystem returns a deterministically-seeded RNG for the named subsystem.
// The same subsystem name always returns the same *rand.Rand instance (cached).
func (p *PartitionedRNG) ForSubsystem(name string) *rand.Rand {
	if rng, ok := p.subsystems[name]; ok {
		return rng
	}
	derived := p.seed
	if name != SubsystemKinematics {
		derived ^= fnv1a64(name)
	}
	rng := rand.New(rand.NewSource(derived))
	p.subsystems[name] = rng
	return rng
}

// Seed returns the master seed.
func (p *PartitionedRNG) Seed() int64 { return p.seed }

func fnv1a64(s string) int64 {
	h := fnv.New64a()
	h.Write([]byte(s))
	return int64(h.Sum64())
}
