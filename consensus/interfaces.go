package consensus

import "github.com/concordbft/concord/types"

// Network channel identifiers — must be bit-stable across peers (spec §6).
// NEW_ROUND never crosses the network; it is purely a local event and has
// no corresponding constant here.
const (
	ChannelPostTransaction = "POST_TRANSACTION"
	ChannelBlockProposal   = "BLOCK_PROPOSAL"
	ChannelPrevote         = "PREVOTE"
	ChannelPrecommit       = "PRECOMMIT"
	ChannelCommit          = "COMMIT"
)

// HostChain is the external block/chain collaborator (spec §6): hashing,
// transaction application and parent linkage are all delegated here so the
// engine never constructs or mutates a Block's content directly.
type HostChain interface {
	// Head returns the most recently committed block.
	Head() *types.Block

	// Build constructs and applies a child block of Head for a new
	// proposal (spec §6: Block.applyTransaction).
	Build(proposer types.Address, timestamp int64, txs []types.Transaction) (*types.Block, error)

	// Rerun independently re-derives block against parent and reports
	// whether it reproduces the same content hash (spec §6:
	// Block.rerun(parent) → bool).
	Rerun(block *types.Block, parent *types.Block) bool

	// Commit installs block as the new head.
	Commit(block *types.Block) error
}

// Broadcaster is the external peer network collaborator (spec §6):
// best-effort, at-most-once, unordered delivery.
type Broadcaster interface {
	Broadcast(channel string, payload []byte) error
}

// TxPool is the external mempool collaborator (spec §6).
type TxPool interface {
	Pending() []types.Transaction
}
