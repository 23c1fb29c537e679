// Package ledger implements the operations over types.StakeLedger and
// types.Block described in spec §4.1: clone-on-construct, delayed
// unbonding, slashing with proportional redistribution, and the
// accumulated-power update that drives proposer rotation.
package ledger

import (
	"github.com/concordbft/concord/types"
)

// Clone deep-copies a parent ledger's three maps so the child block owns
// its own copy-on-write snapshot (spec §4.1 "Clone semantics").
func Clone(parent *types.StakeLedger) *types.StakeLedger {
	child := types.NewEmptyStakeLedger()
	for a, v := range parent.StakeBalances {
		child.StakeBalances[a] = v
	}
	for a, v := range parent.AccumPower {
		child.AccumPower[a] = v
	}
	for h, events := range parent.UnstakingEvents {
		cp := make([]types.UnstakeEvent, len(events))
		copy(cp, events)
		child.UnstakingEvents[h] = cp
	}
	for k, v := range parent.SlashedEvidence {
		child.SlashedEvidence[k] = v
	}
	return child
}

// Advance drains unstakingEvents[newHeight], releasing each scheduled
// amount back out of StakeBalances. An unstake whose address is no
// longer bonded (slashed between scheduling and release) is silently
// skipped — spec §7 UnstakeOfUnknownAddr.
func Advance(l *types.StakeLedger, newHeight uint64) {
	events, ok := l.UnstakingEvents[newHeight]
	if !ok {
		return
	}
	for _, ev := range events {
		if _, bonded := l.StakeBalances[ev.Addr]; !bonded {
			continue
		}
		l.StakeBalances[ev.Addr] -= ev.Amount
	}
	delete(l.UnstakingEvents, newHeight)
}

// Stake increments addr's bonded balance by amount, which must be
// positive.
func Stake(l *types.StakeLedger, addr types.Address, amount uint64) error {
	if amount == 0 {
		return ErrInvalidAmount
	}
	l.StakeBalances[addr] += amount
	return nil
}

// Unstake schedules release of amount at atHeight+unstakeDelay. The
// funds remain bonded (they still count for voting and slashing) until
// release.
func Unstake(l *types.StakeLedger, atHeight uint64, unstakeDelay uint64, addr types.Address, amount uint64) error {
	if amount == 0 {
		return ErrInvalidAmount
	}
	bonded, ok := l.StakeBalances[addr]
	if !ok {
		return ErrUnknownValidator
	}
	if amount > bonded {
		return ErrInsufficientStake
	}
	releaseHeight := atHeight + unstakeDelay
	l.UnstakingEvents[releaseHeight] = append(l.UnstakingEvents[releaseHeight], types.UnstakeEvent{
		Addr:   addr,
		Amount: amount,
	})
	return nil
}

// Slash ejects cheater from StakeBalances and AccumPower, strips its
// entries from any future UnstakingEvents, subtracts the seized amount
// from its liquid balance, and redistributes the seized stake to the
// remaining bonded validators proportional to their current stake.
// Truncation residue is burned (spec §4.1).
func Slash(l *types.StakeLedger, balances map[types.Address]uint64, cheater types.Address) (uint64, error) {
	slashed, ok := l.StakeBalances[cheater]
	if !ok {
		return 0, ErrUnknownValidator
	}

	delete(l.StakeBalances, cheater)
	delete(l.AccumPower, cheater)
	for h, events := range l.UnstakingEvents {
		filtered := events[:0:0]
		for _, ev := range events {
			if ev.Addr != cheater {
				filtered = append(filtered, ev)
			}
		}
		if len(filtered) == 0 {
			delete(l.UnstakingEvents, h)
		} else {
			l.UnstakingEvents[h] = filtered
		}
	}

	if balances[cheater] >= slashed {
		balances[cheater] -= slashed
	} else {
		balances[cheater] = 0
	}

	totalBonded := TotalBondedStake(l)
	if totalBonded > 0 {
		for addr, stake := range l.StakeBalances {
			share := (slashed * stake) / totalBonded
			if share > 0 {
				l.StakeBalances[addr] += share
			}
		}
	}

	return slashed, nil
}

// UpdateAccumPower applies the weighted round-robin update: every bonded
// validator's priority grows by its stake, then the winning proposer's
// priority is reduced by the total bonded stake. The net change across
// all validators is zero (spec §4.1, §8 property 2).
func UpdateAccumPower(l *types.StakeLedger, proposer types.Address) {
	total := TotalBondedStake(l)
	for addr, stake := range l.StakeBalances {
		l.AccumPower[addr] += int64(stake)
	}
	l.AccumPower[proposer] -= int64(total)
}

// TotalBondedStake sums StakeBalances across all bonded validators.
func TotalBondedStake(l *types.StakeLedger) uint64 {
	var total uint64
	for _, v := range l.StakeBalances {
		total += v
	}
	return total
}
