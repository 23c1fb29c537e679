package consensus

import "time"

// Params are the tunable constants from spec §6, overridable by a node's
// YAML config (cmd/concordnode); no CLI flag sets them.
type Params struct {
	// UnstakeDelay is the number of heights between scheduling an unbond
	// and its release.
	UnstakeDelay uint64

	// Delta is the base per-phase step delay; round r's timer lasts
	// (r+1)*Delta (linear backoff).
	Delta time.Duration

	// CommitTime is the grace period Finalize waits to gather laggard
	// commit votes before installing the decided block.
	CommitTime time.Duration

	// MaxValidators is carried through configuration only: proposer
	// selection and vote tallying do not read it and consider every
	// bonded validator.
	MaxValidators int
}

// DefaultParams matches the defaults named in spec §6.
func DefaultParams() Params {
	return Params{
		UnstakeDelay:  35,
		Delta:         300 * time.Millisecond,
		CommitTime:    300 * time.Millisecond,
		MaxValidators: 100,
	}
}
