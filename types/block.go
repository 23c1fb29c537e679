package types

import (
	"encoding/binary"
	"sort"
)

// BlockHeader carries the consensus-relevant metadata of a block.
type BlockHeader struct {
	Height    uint64
	PrevHash  Hash
	Timestamp int64
	Proposer  Address
}

// UnstakeEvent is a pending stake release scheduled for a future height.
type UnstakeEvent struct {
	Addr   Address
	Amount uint64
}

// StakeLedger is the staking ledger embedded in every block: bonded
// balances, the delayed-unbonding queue, and accumulated proposer
// priority. It is copy-on-write from the parent block (see package
// ledger for the Clone/advance/Stake/Unstake/Slash operations).
type StakeLedger struct {
	StakeBalances   map[Address]uint64
	UnstakingEvents map[uint64][]UnstakeEvent
	AccumPower      map[Address]int64

	// SlashedEvidence records the unordered {msg1.id, msg2.id} pairs
	// already slashed, so resubmitted evidence for the same equivocation
	// (e.g. from multiple detecting validators) does not slash twice —
	// design note §9, open question 3.
	SlashedEvidence map[Hash]bool
}

// NewEmptyStakeLedger returns a StakeLedger with initialized, empty maps.
func NewEmptyStakeLedger() *StakeLedger {
	return &StakeLedger{
		StakeBalances:   make(map[Address]uint64),
		UnstakingEvents: make(map[uint64][]UnstakeEvent),
		AccumPower:      make(map[Address]int64),
		SlashedEvidence: make(map[Hash]bool),
	}
}

// EvidenceKey returns the deterministic, order-independent key for a pair
// of equivocating message identities.
func EvidenceKey(id1, id2 Hash) Hash {
	if string(id2[:]) < string(id1[:]) {
		id1, id2 = id2, id1
	}
	return HashBytes(id1[:], id2[:])
}

// Block is the consensus-relevant portion of a committed or proposed
// block: height, parent linkage, the ordered transaction log, liquid
// balances ("gold"), and the embedded staking ledger.
type Block struct {
	Header       BlockHeader
	Transactions []Transaction
	Balances     map[Address]uint64
	Stake        *StakeLedger
}

// ID computes the block's content hash. Map-valued fields are folded in
// sorted-key order so the digest is deterministic regardless of Go's
// randomized map iteration.
func (b *Block) ID() Hash {
	var heightBuf [8]byte
	binary.BigEndian.PutUint64(heightBuf[:], b.Header.Height)

	parts := [][]byte{heightBuf[:], b.Header.PrevHash[:], b.Header.Proposer[:]}

	for _, tx := range b.Transactions {
		h := tx.Hash()
		parts = append(parts, h[:])
	}

	parts = append(parts, encodeBalances(b.Balances))
	if b.Stake != nil {
		parts = append(parts, encodeStakeLedger(b.Stake))
	}

	return HashBytes(parts...)
}

func encodeBalances(balances map[Address]uint64) []byte {
	addrs := make([]Address, 0, len(balances))
	for a := range balances {
		addrs = append(addrs, a)
	}
	sort.Slice(addrs, func(i, j int) bool { return addrs[i].Less(addrs[j]) })

	out := make([]byte, 0, len(addrs)*28)
	var amtBuf [8]byte
	for _, a := range addrs {
		out = append(out, a[:]...)
		binary.BigEndian.PutUint64(amtBuf[:], balances[a])
		out = append(out, amtBuf[:]...)
	}
	return out
}

func encodeStakeLedger(s *StakeLedger) []byte {
	addrs := make([]Address, 0, len(s.StakeBalances))
	for a := range s.StakeBalances {
		addrs = append(addrs, a)
	}
	sort.Slice(addrs, func(i, j int) bool { return addrs[i].Less(addrs[j]) })

	out := make([]byte, 0)
	var buf8 [8]byte
	for _, a := range addrs {
		out = append(out, a[:]...)
		binary.BigEndian.PutUint64(buf8[:], s.StakeBalances[a])
		out = append(out, buf8[:]...)
	}

	powerAddrs := make([]Address, 0, len(s.AccumPower))
	for a := range s.AccumPower {
		powerAddrs = append(powerAddrs, a)
	}
	sort.Slice(powerAddrs, func(i, j int) bool { return powerAddrs[i].Less(powerAddrs[j]) })
	for _, a := range powerAddrs {
		out = append(out, a[:]...)
		binary.BigEndian.PutUint64(buf8[:], uint64(s.AccumPower[a]))
		out = append(out, buf8[:]...)
	}

	heights := make([]uint64, 0, len(s.UnstakingEvents))
	for h := range s.UnstakingEvents {
		heights = append(heights, h)
	}
	sort.Slice(heights, func(i, j int) bool { return heights[i] < heights[j] })
	for _, h := range heights {
		binary.BigEndian.PutUint64(buf8[:], h)
		out = append(out, buf8[:]...)
		for _, ev := range s.UnstakingEvents[h] {
			out = append(out, ev.Addr[:]...)
			binary.BigEndian.PutUint64(buf8[:], ev.Amount)
			out = append(out, buf8[:]...)
		}
	}

	return out
}
