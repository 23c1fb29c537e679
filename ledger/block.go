package ledger

import (
	"github.com/concordbft/concord/types"
)

// NewGenesisBlock builds height-0 from a validated GenesisConfig: every
// listed validator receives both StakeBalances[a] and AccumPower[a] set
// to its starting amount (spec §6).
func NewGenesisBlock(cfg *types.GenesisConfig) (*types.Block, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	stake := types.NewEmptyStakeLedger()
	for addr, amount := range cfg.ResolvedStakes() {
		stake.StakeBalances[addr] = amount
		stake.AccumPower[addr] = int64(amount)
	}

	return &types.Block{
		Header: types.BlockHeader{
			Height:   0,
			PrevHash: types.NilID,
		},
		Transactions: nil,
		Balances:     make(map[types.Address]uint64),
		Stake:        stake,
	}, nil
}

// NewChildBlock constructs a block at parent.Height+1: its StakeLedger is
// cloned from the parent, advanced to the new height (draining any
// unstaking events maturing at this height), and its liquid balances are
// copied verbatim before transactions are applied (spec §3 "Lifecycle").
func NewChildBlock(parent *types.Block, proposer types.Address, timestamp int64, txs []types.Transaction) *types.Block {
	height := parent.Header.Height + 1

	stake := Clone(parent.Stake)
	Advance(stake, height)

	balances := make(map[types.Address]uint64, len(parent.Balances))
	for a, v := range parent.Balances {
		balances[a] = v
	}

	return &types.Block{
		Header: types.BlockHeader{
			Height:    height,
			PrevHash:  parent.ID(),
			Timestamp: timestamp,
			Proposer:  proposer,
		},
		Transactions: txs,
		Balances:     balances,
		Stake:        stake,
	}
}

// ApplyTransaction mutates block's ledger/balances according to the
// transaction's payload (spec §6 transaction payload forms). verify and
// addressOf are the host's signature-verification collaborators, used
// only to validate the two embedded messages of an EvidenceTx.
func ApplyTransaction(block *types.Block, tx types.Transaction, unstakeDelay uint64, verify types.VerifyFunc, addressOf types.AddressFunc) error {
	switch payload := tx.Payload.(type) {
	case types.StakeTx:
		return Stake(block.Stake, tx.From, payload.AmountStaked)
	case types.UnstakeTx:
		return Unstake(block.Stake, block.Header.Height, unstakeDelay, tx.From, payload.AmountToUnstake)
	case types.EvidenceTx:
		return applyEvidence(block, payload, verify, addressOf)
	default:
		return ErrUnknownTxType
	}
}

// applyEvidence verifies both embedded messages are independently valid,
// share an author and (height, round), and differ in identity, then
// slashes the cheater — spec §4.6. Evidence already slashed under the
// same unordered message-pair key is accepted but ignored (open
// question 3: dedup by {msg1.id, msg2.id}).
func applyEvidence(block *types.Block, ev types.EvidenceTx, verify types.VerifyFunc, addressOf types.AddressFunc) error {
	id1 := ev.Msg1.Identity()
	id2 := ev.Msg2.Identity()
	if id1 == id2 {
		return ErrEquivocationSameMessage
	}

	key := types.EvidenceKey(id1, id2)
	if block.Stake.SlashedEvidence[key] {
		return nil
	}

	if ev.Msg1.Author() != ev.Msg2.Author() || ev.Msg1.Author() != ev.ByzantinePlayer {
		return ErrEquivocationAuthorMismatch
	}
	h1, r1 := ev.Msg1.HeightRound()
	h2, r2 := ev.Msg2.HeightRound()
	if h1 != h2 || r1 != r2 {
		return ErrEquivocationRoundMismatch
	}
	if !ev.Msg1.IsValidSig(verify, addressOf) || !ev.Msg2.IsValidSig(verify, addressOf) {
		return ErrEquivocationInvalidSignature
	}

	if _, err := Slash(block.Stake, block.Balances, ev.ByzantinePlayer); err != nil {
		return err
	}
	block.Stake.SlashedEvidence[key] = true
	return nil
}

// ApplyBlock validates block immediately follows parent and applies
// every transaction in order. The caller is expected to have already
// constructed block via NewChildBlock (so ledger/balance cloning has
// already happened) — ApplyBlock is what a receiving validator runs
// against a proposal before voting for it.
func ApplyBlock(block *types.Block, parent *types.Block, unstakeDelay uint64, verify types.VerifyFunc, addressOf types.AddressFunc) error {
	if block.Header.Height != parent.Header.Height+1 {
		return ErrHeightMismatch
	}
	for _, tx := range block.Transactions {
		if err := ApplyTransaction(block, tx, unstakeDelay, verify, addressOf); err != nil {
			return err
		}
	}
	return nil
}
