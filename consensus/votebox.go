package consensus

import "github.com/concordbft/concord/types"

// VoteBox holds at most one current vote per validator for a single phase
// (spec §4.4). Recording a fresher vote replaces the stored one; recording
// a conflicting vote for the same (height, round) surfaces an
// EquivocationConflict instead of being stored.
type VoteBox struct {
	phase types.Phase
	votes map[types.Address]*types.Vote
}

// NewVoteBox returns an empty box for phase.
func NewVoteBox(phase types.Phase) *VoteBox {
	return &VoteBox{phase: phase, votes: make(map[types.Address]*types.Vote)}
}

// EquivocationConflict names the two conflicting signed messages surfaced
// by Record when a validator double-votes at the same (height, round).
type EquivocationConflict struct {
	Existing *types.Vote
	Incoming *types.Vote
}

// Record implements the §4.4 algorithm:
//  1. No existing entry → store, accepted.
//  2. Existing is stale relative to the incoming vote → replace, accepted.
//  3. Incoming is stale relative to existing → drop, not accepted.
//  4. Same (height, round): identical identity → duplicate, drop;
//     different identity → equivocation, surfaced to the caller.
func (b *VoteBox) Record(vote *types.Vote) (accepted bool, conflict *EquivocationConflict) {
	existing, ok := b.votes[vote.From]
	if !ok {
		b.votes[vote.From] = vote
		return true, nil
	}
	if vote.FresherThan(existing) {
		b.votes[vote.From] = vote
		return true, nil
	}
	if existing.FresherThan(vote) {
		return false, nil
	}
	if existing.Identity() == vote.Identity() {
		return false, nil
	}
	return false, &EquivocationConflict{Existing: existing, Incoming: vote}
}

// Seed inserts vote directly, bypassing conflict detection — used for
// commit carry-over (spec §4.5), where a single already-deduplicated
// commit vote is reinterpreted as a prevote/precommit for a new round.
func (b *VoteBox) Seed(vote *types.Vote) {
	b.votes[vote.From] = vote
}

// Get returns the currently stored vote for addr, if any.
func (b *VoteBox) Get(addr types.Address) (*types.Vote, bool) {
	v, ok := b.votes[addr]
	return v, ok
}

// Votes returns every currently stored vote. Order is unspecified.
func (b *VoteBox) Votes() []*types.Vote {
	out := make([]*types.Vote, 0, len(b.votes))
	for _, v := range b.votes {
		out = append(out, v)
	}
	return out
}

// Len reports how many validators currently have a recorded vote.
func (b *VoteBox) Len() int {
	return len(b.votes)
}
