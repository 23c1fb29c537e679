package ledger

import (
	"testing"

	"github.com/concordbft/concord/types"
)

func alwaysValid(types.PublicKey, []byte, types.Signature) bool { return true }
func addressIdentity(pub types.PublicKey) types.Address {
	var a types.Address
	copy(a[:], pub[len(pub)-len(a):])
	return a
}

func TestNewGenesisBlockRequiresExactlyOneStartingField(t *testing.T) {
	cfg := &types.GenesisConfig{}
	if _, err := NewGenesisBlock(cfg); err != types.ErrGenesisConfig {
		t.Fatalf("expected ErrGenesisConfig for empty config, got %v", err)
	}

	cfg = &types.GenesisConfig{
		StartingStake:    map[types.Address]uint64{addr(1): 1},
		StartingStakeMap: map[string]uint64{"client-1": 1},
	}
	if _, err := NewGenesisBlock(cfg); err != types.ErrGenesisConfig {
		t.Fatalf("expected ErrGenesisConfig when both set, got %v", err)
	}
}

func TestNewGenesisBlockSeedsStakeAndPower(t *testing.T) {
	v1 := addr(1)
	cfg := &types.GenesisConfig{
		StartingStake: map[types.Address]uint64{v1: 100},
	}
	block, err := NewGenesisBlock(cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if block.Stake.StakeBalances[v1] != 100 || block.Stake.AccumPower[v1] != 100 {
		t.Fatalf("expected genesis validator seeded in both maps, got %+v", block.Stake)
	}
	if block.Header.Height != 0 || !block.Header.PrevHash.IsZero() {
		t.Fatalf("expected height 0 with nil prev hash")
	}
}

func TestNewChildBlockClonesAndAdvances(t *testing.T) {
	v1 := addr(1)
	genesis, _ := NewGenesisBlock(&types.GenesisConfig{StartingStake: map[types.Address]uint64{v1: 100}})

	if err := Unstake(genesis.Stake, 0, 5, v1, 10); err != nil {
		t.Fatalf("unstake: %v", err)
	}

	var child *types.Block
	parent := genesis
	for h := 1; h <= 5; h++ {
		child = NewChildBlock(parent, v1, int64(h), nil)
		parent = child
	}

	if child.Stake.StakeBalances[v1] != 90 {
		t.Fatalf("expected release applied by height 5, got %d", child.Stake.StakeBalances[v1])
	}
	if genesis.Stake.StakeBalances[v1] != 100 {
		t.Fatalf("expected genesis block's own ledger untouched, got %d", genesis.Stake.StakeBalances[v1])
	}
}

func TestApplyEvidenceSlashesOnce(t *testing.T) {
	v1, v2 := addr(1), addr(2)
	block := &types.Block{
		Stake: newLedger(map[types.Address]uint64{v1: 100, v2: 100}),
		Balances: map[types.Address]uint64{v1: 50},
	}

	var pub types.PublicKey
	copy(pub[len(pub)-len(v1):], v1[:])

	vote1 := &types.Vote{From: v1, Height: 1, Round: 0, Phase: types.PhasePrevote, BlockID: types.HashBytes([]byte("A")), PubKey: pub}
	vote2 := &types.Vote{From: v1, Height: 1, Round: 0, Phase: types.PhasePrevote, BlockID: types.HashBytes([]byte("B")), PubKey: pub}

	ev := types.EvidenceTx{
		ByzantinePlayer: v1,
		Msg1:            types.SignedMessage{Kind: types.MessageVote, Vote: vote1},
		Msg2:            types.SignedMessage{Kind: types.MessageVote, Vote: vote2},
	}
	tx := types.Transaction{Payload: ev}

	if err := ApplyTransaction(block, tx, 35, alwaysValid, addressIdentity); err != nil {
		t.Fatalf("unexpected error applying evidence: %v", err)
	}
	if _, ok := block.Stake.StakeBalances[v1]; ok {
		t.Fatalf("expected v1 slashed")
	}
	if block.Balances[v1] != 0 {
		t.Fatalf("expected liquid balance zeroed, got %d", block.Balances[v1])
	}

	// The pair's dedup key is recorded, so applyEvidence returns early if
	// the same evidence is applied again (without the key, a second Slash
	// of the now-absent v1 would fail with ErrUnknownValidator).
	key := types.EvidenceKey(vote1.Identity(), vote2.Identity())
	if !block.Stake.SlashedEvidence[key] {
		t.Fatalf("expected evidence key recorded")
	}
}
