package types

import (
	"encoding/binary"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// TxType is the tagged-union discriminator for transaction payloads,
// replacing the source's dynamically-typed `tx.data.type` string (design
// note §9 — "Dynamic transaction typing").
type TxType uint8

const (
	TxStake TxType = iota
	TxUnstake
	TxEvidence
)

// TxPayload is implemented by StakeTx, UnstakeTx and EvidenceTx. An
// exhaustive switch on Type() replaces the source's string discriminator.
type TxPayload interface {
	Type() TxType
	payloadBytes() []byte
}

// StakeTx bonds AmountStaked from the sender (spec §6: Stake transaction).
type StakeTx struct {
	AmountStaked uint64
}

func (StakeTx) Type() TxType { return TxStake }
func (t StakeTx) payloadBytes() []byte {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], t.AmountStaked)
	return buf[:]
}

// UnstakeTx schedules a release of AmountToUnstake at h+UNSTAKE_DELAY
// (spec §6: Unstake transaction).
type UnstakeTx struct {
	AmountToUnstake uint64
}

func (UnstakeTx) Type() TxType { return TxUnstake }
func (t UnstakeTx) payloadBytes() []byte {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], t.AmountToUnstake)
	return buf[:]
}

// EvidenceTx carries two independently-valid, conflicting signed
// messages from the same author at the same (height, round) — proof of
// equivocation (spec §6, §4.6). ID is a random handle assigned when the
// evidence is built; it is not part of the transaction hash and nothing
// in this module reads it. De-duplication is by the ledger-side key, the
// unordered pair of message identities (see EvidenceKey).
type EvidenceTx struct {
	ID              uuid.UUID
	ByzantinePlayer Address
	Msg1            SignedMessage
	Msg2            SignedMessage
}

func (EvidenceTx) Type() TxType { return TxEvidence }
func (t EvidenceTx) payloadBytes() []byte {
	id1 := t.Msg1.Identity()
	id2 := t.Msg2.Identity()
	out := make([]byte, 0, 20+32+32)
	out = append(out, t.ByzantinePlayer[:]...)
	out = append(out, id1[:]...)
	out = append(out, id2[:]...)
	return out
}

// Transaction is a signed envelope around a TxPayload.
type Transaction struct {
	From    Address
	Nonce   uint64
	Payload TxPayload
	PubKey  PublicKey
	Sig     Signature
}

// Hash returns the transaction's content hash (signature excluded).
func (tx *Transaction) Hash() Hash {
	var nonceBuf [8]byte
	binary.BigEndian.PutUint64(nonceBuf[:], tx.Nonce)
	return HashBytes(tx.From[:], nonceBuf[:], []byte{byte(tx.Payload.Type())}, tx.Payload.payloadBytes())
}

func (tx *Transaction) SigningPayload() []byte {
	id := tx.Hash()
	return id[:]
}

// txWire is Transaction's on-the-wire shape: Payload is split into its
// Type tag plus the raw concrete struct so decoding can reconstruct the
// right TxPayload implementation (encoding/json can't unmarshal into an
// interface field on its own).
type txWire struct {
	From    Address
	Nonce   uint64
	Type    TxType
	Payload json.RawMessage
	PubKey  PublicKey
	Sig     Signature
}

func (tx *Transaction) MarshalJSON() ([]byte, error) {
	payload, err := json.Marshal(tx.Payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(txWire{
		From:    tx.From,
		Nonce:   tx.Nonce,
		Type:    tx.Payload.Type(),
		Payload: payload,
		PubKey:  tx.PubKey,
		Sig:     tx.Sig,
	})
}

func (tx *Transaction) UnmarshalJSON(data []byte) error {
	var w txWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	var payload TxPayload
	switch w.Type {
	case TxStake:
		var p StakeTx
		if err := json.Unmarshal(w.Payload, &p); err != nil {
			return err
		}
		payload = p
	case TxUnstake:
		var p UnstakeTx
		if err := json.Unmarshal(w.Payload, &p); err != nil {
			return err
		}
		payload = p
	case TxEvidence:
		var p EvidenceTx
		if err := json.Unmarshal(w.Payload, &p); err != nil {
			return err
		}
		payload = p
	default:
		return fmt.Errorf("types: unknown transaction payload type %d", w.Type)
	}

	tx.From = w.From
	tx.Nonce = w.Nonce
	tx.Payload = payload
	tx.PubKey = w.PubKey
	tx.Sig = w.Sig
	return nil
}
