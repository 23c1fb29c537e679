package consensus

import (
	"github.com/concordbft/concord/ledger"
	"github.com/concordbft/concord/types"
)

// SelectProposer implements spec §4.2: the address with strictly greatest
// accumPower wins; ties are broken by lexicographic address order (open
// question 1 — unspecified in the source, resolved here for determinism).
// The winner's accumPower is then advanced in place via
// ledger.UpdateAccumPower.
func SelectProposer(stake *types.StakeLedger) (types.Address, bool) {
	var winner types.Address
	var winnerPower int64
	found := false

	for addr, power := range stake.AccumPower {
		if !found || power > winnerPower || (power == winnerPower && addr.Less(winner)) {
			winner, winnerPower, found = addr, power, true
		}
	}
	if !found {
		return types.Address{}, false
	}

	ledger.UpdateAccumPower(stake, winner)
	return winner, true
}
