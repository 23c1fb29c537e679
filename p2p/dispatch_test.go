package p2p

import (
	"encoding/json"
	"testing"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"github.com/concordbft/concord/consensus"
	"github.com/concordbft/concord/crypto"
	"github.com/concordbft/concord/types"
)

func newTestEngine(t *testing.T) (*consensus.Engine, *consensus.LedgerChain) {
	t.Helper()
	kp, err := crypto.GenerateKeyPair()
	if err != nil {
		t.Fatalf("failed to generate keypair: %v", err)
	}
	self := kp.Address()

	stake := types.NewEmptyStakeLedger()
	stake.StakeBalances[self] = 100
	stake.AccumPower[self] = 100
	genesis := &types.Block{
		Header:   types.BlockHeader{Height: 0, PrevHash: types.NilID},
		Balances: make(map[types.Address]uint64),
		Stake:    stake,
	}
	chain := consensus.NewLedgerChain(genesis, 35, crypto.Verify, crypto.AddressOf)
	engine := consensus.NewEngine(chain, &noopBroadcaster{}, &noopPool{}, kp.PrivateKey, self, crypto.Verify, crypto.AddressOf, consensus.DefaultParams(), clock.NewMock(), zap.NewNop(), nil)
	return engine, chain
}

type noopBroadcaster struct{}

func (noopBroadcaster) Broadcast(string, []byte) error { return nil }

type noopPool struct{}

func (noopPool) Pending() []types.Transaction { return nil }

func newTestNetwork(t *testing.T) *Network {
	t.Helper()
	net, err := New(0, nil, zap.NewNop())
	if err != nil {
		t.Fatalf("failed to create network: %v", err)
	}
	t.Cleanup(func() { net.Close() })
	return net
}

// A well-formed transaction on POST_TRANSACTION must land in the pool.
func TestWireEngineDispatchesTransaction(t *testing.T) {
	engine, _ := newTestEngine(t)
	pool := NewMempool()
	net := newTestNetwork(t)
	WireEngine(net, engine, pool, zap.NewNop())

	tx := types.Transaction{From: addr(1), Nonce: 0, Payload: types.StakeTx{AmountStaked: 10}}
	raw, err := json.Marshal(&tx)
	if err != nil {
		t.Fatalf("unexpected error marshaling transaction: %v", err)
	}

	net.handlers[consensus.ChannelPostTransaction](raw)
	if pool.Len() != 1 {
		t.Fatalf("expected one transaction in the pool, got %d", pool.Len())
	}
}

// Malformed payloads must be dropped, not panic the dispatch loop.
func TestWireEngineDropsMalformedTransaction(t *testing.T) {
	engine, _ := newTestEngine(t)
	pool := NewMempool()
	net := newTestNetwork(t)
	WireEngine(net, engine, pool, zap.NewNop())

	net.handlers[consensus.ChannelPostTransaction]([]byte("not json"))
	if pool.Len() != 0 {
		t.Fatalf("expected malformed transaction dropped, got %d pending", pool.Len())
	}
}

// A well-formed vote on PREVOTE is decoded and handed to
// engine.HandleVote without panicking. The engine's event loop is not
// running here, so the vote is only enqueued; the vote box is not
// inspected.
func TestWireEngineDispatchesVote(t *testing.T) {
	engine, _ := newTestEngine(t)
	pool := NewMempool()
	net := newTestNetwork(t)
	WireEngine(net, engine, pool, zap.NewNop())

	other, err := crypto.GenerateKeyPair()
	if err != nil {
		t.Fatalf("failed to generate keypair: %v", err)
	}
	vote := &types.Vote{From: other.Address(), Height: engine.Height(), Round: engine.Round(), Phase: types.PhasePrevote, BlockID: types.Hash{1}, PubKey: other.PublicKey}
	vote.Sig = crypto.Sign(other.PrivateKey, vote.SigningPayload())
	raw, err := json.Marshal(vote)
	if err != nil {
		t.Fatalf("unexpected error marshaling vote: %v", err)
	}

	net.handlers[consensus.ChannelPrevote](raw)
}
