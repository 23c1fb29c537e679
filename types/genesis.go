package types

import "errors"

// ErrGenesisConfig is returned when a GenesisConfig is malformed.
var ErrGenesisConfig = errors.New("genesis: exactly one of StartingStake or StartingStakeMap must be set")

// GenesisConfig is the genesis configuration contract from spec §6.
// Exactly one of StartingStake (by Address) or StartingStakeMap (by
// opaque client handle) must be present. Nothing in this module resolves
// StartingStakeMap handles to addresses: a config that carries only
// StartingStakeMap passes Validate but seeds no validators.
type GenesisConfig struct {
	ChainID          string
	StartingStake    map[Address]uint64
	StartingStakeMap map[string]uint64
}

// Validate enforces the "exactly one" rule from spec §6.
func (g *GenesisConfig) Validate() error {
	hasAddr := len(g.StartingStake) > 0
	hasHandle := len(g.StartingStakeMap) > 0
	if hasAddr == hasHandle {
		return ErrGenesisConfig
	}
	return nil
}

// ResolvedStakes returns the StartingStake map directly; callers that
// start from StartingStakeMap must resolve client handles to addresses
// first (via the key store) and populate StartingStake before genesis
// block construction — see ledger.NewGenesisBlock.
func (g *GenesisConfig) ResolvedStakes() map[Address]uint64 {
	return g.StartingStake
}
