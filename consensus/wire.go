package consensus

import "github.com/concordbft/concord/types"

// ProposalMessage is the wire envelope broadcast on ChannelBlockProposal.
// ProofOfLock carries the prevotes that justified a re-proposed locked
// block (spec §4.5 Propose) and is empty for a freshly built proposal.
type ProposalMessage struct {
	Proposal    *types.Proposal
	ProofOfLock []*types.Vote
}
