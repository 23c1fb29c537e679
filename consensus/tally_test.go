package consensus

import (
	"testing"

	"github.com/concordbft/concord/types"
)

func TestCountVotesDecidesOnStrictSupermajority(t *testing.T) {
	v1, v2, v3, v4 := addr(1), addr(2), addr(3), addr(4)
	stake := newLedger(map[types.Address]uint64{v1: 100, v2: 100, v3: 100, v4: 100})
	blockID := types.Hash{9}

	box := NewVoteBox(types.PhasePrevote)
	box.Record(vote(v1, 5, 0, types.PhasePrevote, blockID))
	box.Record(vote(v2, 5, 0, types.PhasePrevote, blockID))
	box.Record(vote(v3, 5, 0, types.PhasePrevote, blockID))

	result := CountVotes(box, stake, 5, 0)
	if !result.Decided || result.BlockID != blockID {
		t.Fatalf("expected decided on blockID, got %+v", result)
	}
	if result.Power != 300 {
		t.Fatalf("expected 300 stake backing the decision, got %d", result.Power)
	}
}

func TestCountVotesNoDecisionBelowThreshold(t *testing.T) {
	v1, v2, v3, v4 := addr(1), addr(2), addr(3), addr(4)
	stake := newLedger(map[types.Address]uint64{v1: 100, v2: 100, v3: 100, v4: 100})
	blockID := types.Hash{9}

	box := NewVoteBox(types.PhasePrevote)
	box.Record(vote(v1, 5, 0, types.PhasePrevote, blockID))
	box.Record(vote(v2, 5, 0, types.PhasePrevote, blockID))

	result := CountVotes(box, stake, 5, 0)
	if result.Decided {
		t.Fatalf("expected no decision with only 200/400 stake, got %+v", result)
	}
}

func TestCountVotesDecidesNil(t *testing.T) {
	v1, v2, v3, v4 := addr(1), addr(2), addr(3), addr(4)
	stake := newLedger(map[types.Address]uint64{v1: 100, v2: 100, v3: 100, v4: 100})

	box := NewVoteBox(types.PhasePrevote)
	box.Record(vote(v1, 5, 0, types.PhasePrevote, types.NilID))
	box.Record(vote(v2, 5, 0, types.PhasePrevote, types.NilID))
	box.Record(vote(v3, 5, 0, types.PhasePrevote, types.NilID))

	result := CountVotes(box, stake, 5, 0)
	if !result.Decided || !result.BlockID.IsZero() {
		t.Fatalf("expected a NIL decision, got %+v", result)
	}
}

func TestCountVotesIgnoresStaleVotes(t *testing.T) {
	v1, v2, v3, v4 := addr(1), addr(2), addr(3), addr(4)
	stake := newLedger(map[types.Address]uint64{v1: 100, v2: 100, v3: 100, v4: 100})
	blockID := types.Hash{9}

	box := NewVoteBox(types.PhasePrevote)
	box.Record(vote(v1, 5, 0, types.PhasePrevote, blockID))
	box.Record(vote(v2, 5, 0, types.PhasePrevote, blockID))
	// v3's vote is for a height behind the engine's current height, and
	// would push the total over threshold (300/400) if wrongly counted.
	box.Record(vote(v3, 4, 9, types.PhasePrevote, blockID))

	result := CountVotes(box, stake, 5, 0)
	if result.Decided {
		t.Fatalf("expected stale vote excluded, leaving only 200/400, got %+v", result)
	}
	if stake.StakeBalances[v4] != 100 {
		t.Fatalf("unexpected fixture setup")
	}
}
