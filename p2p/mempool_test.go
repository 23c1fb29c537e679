package p2p

import (
	"testing"

	"github.com/concordbft/concord/types"
)

func addr(b byte) types.Address {
	var a types.Address
	a[len(a)-1] = b
	return a
}

func TestMempoolAddAndPending(t *testing.T) {
	pool := NewMempool()
	tx := types.Transaction{From: addr(1), Nonce: 0, Payload: types.StakeTx{AmountStaked: 10}}
	pool.Add(tx)

	pending := pool.Pending()
	if len(pending) != 1 {
		t.Fatalf("expected one pending transaction, got %d", len(pending))
	}
}

func TestMempoolAddIsIdempotentByHash(t *testing.T) {
	pool := NewMempool()
	tx := types.Transaction{From: addr(1), Nonce: 0, Payload: types.StakeTx{AmountStaked: 10}}
	pool.Add(tx)
	pool.Add(tx)

	if pool.Len() != 1 {
		t.Fatalf("expected resubmission to be a no-op, got %d entries", pool.Len())
	}
}

func TestMempoolRemoveDropsCommittedTransactions(t *testing.T) {
	pool := NewMempool()
	tx1 := types.Transaction{From: addr(1), Nonce: 0, Payload: types.StakeTx{AmountStaked: 10}}
	tx2 := types.Transaction{From: addr(2), Nonce: 0, Payload: types.UnstakeTx{AmountToUnstake: 5}}
	pool.Add(tx1)
	pool.Add(tx2)

	pool.Remove([]types.Transaction{tx1})

	pending := pool.Pending()
	if len(pending) != 1 {
		t.Fatalf("expected one transaction left, got %d", len(pending))
	}
	if pending[0].Payload.Type() != types.TxUnstake {
		t.Fatalf("expected the unstake transaction to remain")
	}
}
