package storage

import (
	"testing"

	"go.uber.org/zap"

	"github.com/concordbft/concord/types"
)

func addr(b byte) types.Address {
	var a types.Address
	a[len(a)-1] = b
	return a
}

func testBlock(height uint64, proposer types.Address) *types.Block {
	stake := types.NewEmptyStakeLedger()
	stake.StakeBalances[proposer] = 100
	stake.AccumPower[proposer] = 5
	return &types.Block{
		Header: types.BlockHeader{Height: height, Proposer: proposer, Timestamp: 1000},
		Transactions: []types.Transaction{
			{From: proposer, Nonce: 0, Payload: types.StakeTx{AmountStaked: 10}},
		},
		Balances: map[types.Address]uint64{proposer: 900},
		Stake:    stake,
	}
}

func openTestStore(t *testing.T) *BlockStore {
	t.Helper()
	store, err := Open(t.TempDir(), 16, zap.NewNop())
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSaveAndGetBlockByHeight(t *testing.T) {
	store := openTestStore(t)
	block := testBlock(1, addr(1))

	if err := store.SaveBlock(block); err != nil {
		t.Fatalf("unexpected error saving block: %v", err)
	}

	got, err := store.GetBlock(1)
	if err != nil {
		t.Fatalf("unexpected error getting block: %v", err)
	}
	if got.ID() != block.ID() {
		t.Fatalf("round-tripped block has a different ID")
	}
	if len(got.Transactions) != 1 || got.Transactions[0].Payload.Type() != types.TxStake {
		t.Fatalf("expected the stake transaction to round-trip, got %+v", got.Transactions)
	}
}

func TestGetBlockByHash(t *testing.T) {
	store := openTestStore(t)
	block := testBlock(1, addr(2))
	if err := store.SaveBlock(block); err != nil {
		t.Fatalf("unexpected error saving block: %v", err)
	}

	got, err := store.GetBlockByHash(block.ID())
	if err != nil {
		t.Fatalf("unexpected error getting block by hash: %v", err)
	}
	if got.Header.Height != 1 {
		t.Fatalf("expected height 1, got %d", got.Header.Height)
	}
}

func TestGetBlockMissingReturnsErrNotFound(t *testing.T) {
	store := openTestStore(t)
	if _, err := store.GetBlock(42); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestGetLatestBlockTracksHighestSavedHeight(t *testing.T) {
	store := openTestStore(t)
	for h := uint64(1); h <= 3; h++ {
		if err := store.SaveBlock(testBlock(h, addr(byte(h)))); err != nil {
			t.Fatalf("unexpected error saving block %d: %v", h, err)
		}
	}

	latest, err := store.GetLatestBlock()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if latest.Header.Height != 3 {
		t.Fatalf("expected latest height 3, got %d", latest.Header.Height)
	}
}

func TestGetTransactionByHash(t *testing.T) {
	store := openTestStore(t)
	block := testBlock(1, addr(3))
	if err := store.SaveBlock(block); err != nil {
		t.Fatalf("unexpected error saving block: %v", err)
	}

	txHash := block.Transactions[0].Hash()
	got, err := store.GetTransaction(txHash)
	if err != nil {
		t.Fatalf("unexpected error getting transaction: %v", err)
	}
	if got.Payload.Type() != types.TxStake {
		t.Fatalf("expected a stake transaction, got %v", got.Payload.Type())
	}
}

// A block retrieved a second time should come back identical whether
// served from the LRU cache or re-read from BadgerDB.
func TestGetBlockCacheConsistentWithDisk(t *testing.T) {
	store := openTestStore(t)
	block := testBlock(7, addr(4))
	if err := store.SaveBlock(block); err != nil {
		t.Fatalf("unexpected error saving block: %v", err)
	}

	fromCache, err := store.GetBlock(7)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	store.cache.Remove(7)
	fromDisk, err := store.GetBlock(7)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fromCache.ID() != fromDisk.ID() {
		t.Fatalf("expected cache and disk reads to agree")
	}
}
