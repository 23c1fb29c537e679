package consensus

import (
	"errors"

	"github.com/concordbft/concord/ledger"
	"github.com/concordbft/concord/types"
)

// ErrOutOfOrderCommit is returned by LedgerChain.Commit when the supplied
// block does not immediately follow the current head.
var ErrOutOfOrderCommit = errors.New("consensus: commit out of order")

// LedgerChain is the reference HostChain implementation, built directly on
// package ledger — the demo chain shipped alongside the engine so it runs
// end-to-end without a separate host platform (SPEC_FULL §1), the way the
// teacher ships its own storage-backed chain beneath its consensus engine.
type LedgerChain struct {
	head         *types.Block
	unstakeDelay uint64
	verify       types.VerifyFunc
	addressOf    types.AddressFunc
}

// NewLedgerChain seeds a LedgerChain at genesis.
func NewLedgerChain(genesis *types.Block, unstakeDelay uint64, verify types.VerifyFunc, addressOf types.AddressFunc) *LedgerChain {
	return &LedgerChain{
		head:         genesis,
		unstakeDelay: unstakeDelay,
		verify:       verify,
		addressOf:    addressOf,
	}
}

func (c *LedgerChain) Head() *types.Block { return c.head }

func (c *LedgerChain) Build(proposer types.Address, timestamp int64, txs []types.Transaction) (*types.Block, error) {
	block := ledger.NewChildBlock(c.head, proposer, timestamp, txs)
	for _, tx := range txs {
		if err := ledger.ApplyTransaction(block, tx, c.unstakeDelay, c.verify, c.addressOf); err != nil {
			return nil, err
		}
	}
	return block, nil
}

func (c *LedgerChain) Rerun(block *types.Block, parent *types.Block) bool {
	candidate := ledger.NewChildBlock(parent, block.Header.Proposer, block.Header.Timestamp, block.Transactions)
	if err := ledger.ApplyBlock(candidate, parent, c.unstakeDelay, c.verify, c.addressOf); err != nil {
		return false
	}
	// The proposer applies updateAccumPower to its own block's ledger
	// snapshot before hashing it (engine.propose), so the verifier must
	// do the same before comparing ids or every honest non-proposer
	// validator would prevote NIL for a correctly-built block.
	ledger.UpdateAccumPower(candidate.Stake, block.Header.Proposer)
	return candidate.ID() == block.ID()
}

func (c *LedgerChain) Commit(block *types.Block) error {
	if block.Header.Height != c.head.Header.Height+1 {
		return ErrOutOfOrderCommit
	}
	c.head = block
	return nil
}
