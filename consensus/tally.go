package consensus

import (
	"github.com/concordbft/concord/ledger"
	"github.com/concordbft/concord/types"
)

// TallyResult is the outcome of CountVotes.
type TallyResult struct {
	// BlockID is the winning identity (possibly types.NilID for a NIL
	// decision). Only meaningful when Decided is true.
	BlockID types.Hash
	// Power is the stake total that ratified BlockID.
	Power uint64
	// Decided reports whether some blockID strictly exceeded the 2/3
	// threshold.
	Decided bool
}

// CountVotes implements spec §4.7: skip stale votes, accumulate stake per
// blockID, and report the first blockID (including NilID) whose total
// strictly exceeds floor(2*totalStake/3). At most one blockID can exceed
// the threshold (pigeonhole), so the result is independent of iteration
// order over the box's votes.
func CountVotes(box *VoteBox, stake *types.StakeLedger, height uint64, round uint32) TallyResult {
	totalStake := ledger.TotalBondedStake(stake)
	threshold := (2 * totalStake) / 3

	totals := make(map[types.Hash]uint64)
	for _, vote := range box.Votes() {
		if vote.IsStale(height, round) {
			continue
		}
		totals[vote.BlockID] += stake.StakeBalances[vote.From]
	}

	for blockID, total := range totals {
		if total > threshold {
			return TallyResult{BlockID: blockID, Power: total, Decided: true}
		}
	}
	return TallyResult{}
}
