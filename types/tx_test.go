package types

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
)

func txAddr(b byte) Address {
	var a Address
	a[len(a)-1] = b
	return a
}

func TestTransactionJSONRoundTripsStakeTx(t *testing.T) {
	tx := Transaction{From: txAddr(1), Nonce: 3, Payload: StakeTx{AmountStaked: 42}}
	data, err := json.Marshal(&tx)
	if err != nil {
		t.Fatalf("unexpected marshal error: %v", err)
	}

	var got Transaction
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("unexpected unmarshal error: %v", err)
	}
	if got.Payload.Type() != TxStake {
		t.Fatalf("expected a stake payload, got %v", got.Payload.Type())
	}
	if got.Hash() != tx.Hash() {
		t.Fatalf("expected round-tripped transaction to hash identically")
	}
}

func TestTransactionJSONRoundTripsEvidenceTx(t *testing.T) {
	ev := EvidenceTx{
		ID:              uuid.New(),
		ByzantinePlayer: txAddr(2),
		Msg1:            SignedMessage{Kind: MessageVote, Vote: &Vote{From: txAddr(2), Height: 1, Phase: PhasePrevote, BlockID: Hash{1}}},
		Msg2:            SignedMessage{Kind: MessageVote, Vote: &Vote{From: txAddr(2), Height: 1, Phase: PhasePrevote, BlockID: Hash{2}}},
	}
	tx := Transaction{From: txAddr(2), Nonce: 0, Payload: ev}
	data, err := json.Marshal(&tx)
	if err != nil {
		t.Fatalf("unexpected marshal error: %v", err)
	}

	var got Transaction
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("unexpected unmarshal error: %v", err)
	}
	gotEv, ok := got.Payload.(EvidenceTx)
	if !ok {
		t.Fatalf("expected an EvidenceTx payload, got %T", got.Payload)
	}
	if gotEv.ByzantinePlayer != ev.ByzantinePlayer {
		t.Fatalf("expected ByzantinePlayer to round-trip")
	}
	if gotEv.Msg1.Identity() != ev.Msg1.Identity() {
		t.Fatalf("expected Msg1 to round-trip")
	}
}

func TestTransactionJSONRejectsUnknownPayloadType(t *testing.T) {
	tx := Transaction{From: txAddr(1), Nonce: 1, Payload: StakeTx{AmountStaked: 1}}
	data, err := json.Marshal(&tx)
	if err != nil {
		t.Fatalf("unexpected marshal error: %v", err)
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("unexpected unmarshal error: %v", err)
	}
	raw["Type"] = json.RawMessage("99")
	tampered, err := json.Marshal(raw)
	if err != nil {
		t.Fatalf("unexpected marshal error: %v", err)
	}

	var got Transaction
	if err := json.Unmarshal(tampered, &got); err == nil {
		t.Fatalf("expected an error for an unknown payload type")
	}
}
