package consensus

import (
	"testing"

	"github.com/concordbft/concord/types"
)

func addr(b byte) types.Address {
	var a types.Address
	a[len(a)-1] = b
	return a
}

func newLedger(stakes map[types.Address]uint64) *types.StakeLedger {
	l := types.NewEmptyStakeLedger()
	for a, v := range stakes {
		l.StakeBalances[a] = v
		l.AccumPower[a] = int64(v)
	}
	return l
}

// S1 — four validators with equal stake rotate round-robin, each
// proposing exactly once every four selections (spec §8 property 1).
func TestSelectProposerEqualStakeRoundRobin(t *testing.T) {
	v1, v2, v3, v4 := addr(1), addr(2), addr(3), addr(4)
	l := newLedger(map[types.Address]uint64{v1: 100, v2: 100, v3: 100, v4: 100})

	counts := make(map[types.Address]int)
	for i := 0; i < 40; i++ {
		winner, ok := SelectProposer(l)
		if !ok {
			t.Fatalf("expected a winner at iteration %d", i)
		}
		counts[winner]++
	}

	for _, v := range []types.Address{v1, v2, v3, v4} {
		if counts[v] != 10 {
			t.Fatalf("expected %s proposed 10 times, got %d", v, counts[v])
		}
	}
}

// S2 — skewed stake {400,100,100,100}: selection repeats with period 7,
// so over 700 selections the heavy validator proposes exactly 4/7 of the
// time and each of the others exactly 1/7.
func TestSelectProposerSkewedStakeFrequency(t *testing.T) {
	v1, v2, v3, v4 := addr(1), addr(2), addr(3), addr(4)
	l := newLedger(map[types.Address]uint64{v1: 400, v2: 100, v3: 100, v4: 100})

	counts := make(map[types.Address]int)
	const rounds = 700
	for i := 0; i < rounds; i++ {
		winner, ok := SelectProposer(l)
		if !ok {
			t.Fatalf("expected a winner at iteration %d", i)
		}
		counts[winner]++
	}

	if counts[v1] != rounds/7*4 {
		t.Fatalf("expected v1 to win exactly 4/7 of rounds, got %d of %d", counts[v1], rounds)
	}
	for _, v := range []types.Address{v2, v3, v4} {
		if counts[v] != rounds/7 {
			t.Fatalf("expected %s to win 1/7 of rounds, got %d", v, counts[v])
		}
	}
}

func TestSelectProposerEmptyLedger(t *testing.T) {
	l := newLedger(nil)
	if _, ok := SelectProposer(l); ok {
		t.Fatalf("expected no winner for an empty ledger")
	}
}

// Ties in accumPower break lexicographically toward the smaller address
// (open question 1).
func TestSelectProposerTieBreaksOnAddress(t *testing.T) {
	small, big := addr(1), addr(2)
	l := &types.StakeLedger{
		StakeBalances: map[types.Address]uint64{small: 100, big: 100},
		AccumPower:    map[types.Address]int64{small: 50, big: 50},
	}

	winner, ok := SelectProposer(l)
	if !ok || winner != small {
		t.Fatalf("expected smaller address to win tie, got %x ok=%v", winner, ok)
	}
}
