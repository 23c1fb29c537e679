// Package types holds the wire-level data model shared by every consensus
// package: addresses, hashes, votes, proposals, blocks and the staking
// ledger embedded in each block. Nothing here depends on crypto, storage,
// or the network — verification and address derivation are injected as
// plain function values so this package stays a leaf.
package types

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Hash is a 32-byte cryptographic digest, used both as a BlockID and as
// the identity of a Vote or Proposal.
type Hash [32]byte

func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}

// IsZero reports whether h is the NilID sentinel.
func (h Hash) IsZero() bool {
	return h == Hash{}
}

// MarshalText and UnmarshalText let Hash serve as a JSON object key —
// StakeLedger.SlashedEvidence is keyed by Hash.
func (h Hash) MarshalText() ([]byte, error) {
	return []byte(hex.EncodeToString(h[:])), nil
}

func (h *Hash) UnmarshalText(text []byte) error {
	decoded, err := hex.DecodeString(string(text))
	if err != nil {
		return err
	}
	if len(decoded) != len(h) {
		return fmt.Errorf("types: invalid hash length %d", len(decoded))
	}
	copy(h[:], decoded)
	return nil
}

// NilID denotes "no block" in a nil vote. It is never produced by
// HashBytes for real block content.
var NilID = Hash{}

// HashBytes computes the digest used throughout the package for
// identities (vote/proposal ids, block ids).
func HashBytes(parts ...[]byte) Hash {
	h := sha256.New()
	for _, p := range parts {
		h.Write(p)
	}
	var out Hash
	copy(out[:], h.Sum(nil))
	return out
}

// Address is an opaque validator/account handle derived from a public key.
type Address [20]byte

func (a Address) String() string {
	return hex.EncodeToString(a[:])
}

// MarshalText and UnmarshalText let Address serve as a JSON object key
// (encoding/json map-key support requires TextMarshaler/TextUnmarshaler
// for non-string, non-integer key types) — needed because StakeLedger and
// Block key their balance/power maps by Address.
func (a Address) MarshalText() ([]byte, error) {
	return []byte(hex.EncodeToString(a[:])), nil
}

func (a *Address) UnmarshalText(text []byte) error {
	decoded, err := hex.DecodeString(string(text))
	if err != nil {
		return err
	}
	if len(decoded) != len(a) {
		return fmt.Errorf("types: invalid address length %d", len(decoded))
	}
	copy(a[:], decoded)
	return nil
}

// Less gives the deterministic lexicographic ordering used to break
// accumulated-power ties in proposer selection.
func (a Address) Less(other Address) bool {
	for i := range a {
		if a[i] != other[i] {
			return a[i] < other[i]
		}
	}
	return false
}

// PublicKey is an Ed25519 public key.
type PublicKey [32]byte

func (pk PublicKey) String() string {
	return hex.EncodeToString(pk[:])
}

// Signature is an Ed25519 signature.
type Signature [64]byte

// VerifyFunc checks a signature against a public key and message. It is
// the host platform's `verify` collaborator (spec §6), injected rather
// than imported so this package never depends on a crypto backend.
type VerifyFunc func(pub PublicKey, msg []byte, sig Signature) bool

// AddressFunc derives an Address from a PublicKey — the host platform's
// `addressOf` collaborator.
type AddressFunc func(pub PublicKey) Address

// Phase identifies which step of a round a Vote was cast in.
type Phase uint8

const (
	PhasePrevote Phase = iota
	PhasePrecommit
	PhaseCommit
)

func (p Phase) String() string {
	switch p {
	case PhasePrevote:
		return "prevote"
	case PhasePrecommit:
		return "precommit"
	case PhaseCommit:
		return "commit"
	default:
		return "unknown"
	}
}
