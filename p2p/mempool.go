package p2p

import (
	"sync"

	"github.com/concordbft/concord/types"
)

// Mempool is a minimal in-memory, unordered transaction pool implementing
// consensus.TxPool. Transactions are added as they arrive on
// POST_TRANSACTION and removed once a block containing them commits;
// nothing here orders, prioritizes, or expires them — this is the demo
// pool referenced by SPEC_FULL §2, not a production mempool.
type Mempool struct {
	mu      sync.Mutex
	pending map[types.Hash]types.Transaction
}

// NewMempool returns an empty Mempool.
func NewMempool() *Mempool {
	return &Mempool{pending: make(map[types.Hash]types.Transaction)}
}

// Add inserts tx, keyed by its content hash so resubmission is a no-op.
func (m *Mempool) Add(tx types.Transaction) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pending[tx.Hash()] = tx
}

// Pending implements consensus.TxPool.
func (m *Mempool) Pending() []types.Transaction {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]types.Transaction, 0, len(m.pending))
	for _, tx := range m.pending {
		out = append(out, tx)
	}
	return out
}

// Remove drops every transaction in txs from the pool — called once
// their containing block commits.
func (m *Mempool) Remove(txs []types.Transaction) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, tx := range txs {
		delete(m.pending, tx.Hash())
	}
}

// Len reports the number of transactions currently pending.
func (m *Mempool) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pending)
}
