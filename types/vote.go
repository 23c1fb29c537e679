package types

import "encoding/binary"

// Vote is a signed ballot for a specific (height, round, phase, blockID).
// Identity is the hash of every field except Sig.
type Vote struct {
	From    Address
	Height  uint64
	Round   uint32
	Phase   Phase
	BlockID Hash
	PubKey  PublicKey
	Sig     Signature
}

// Identity returns the vote's content hash, excluding the signature.
func (v *Vote) Identity() Hash {
	var heightBuf, roundBuf [8]byte
	binary.BigEndian.PutUint64(heightBuf[:], v.Height)
	binary.BigEndian.PutUint64(roundBuf[:], uint64(v.Round))
	return HashBytes(
		v.From[:],
		heightBuf[:],
		roundBuf[:4],
		[]byte{byte(v.Phase)},
		v.BlockID[:],
		v.PubKey[:],
	)
}

// SigningPayload is what gets signed/verified — identical to the fields
// folded into Identity.
func (v *Vote) SigningPayload() []byte {
	id := v.Identity()
	return id[:]
}

// FresherThan reports whether v is strictly more recent than other, by
// lexicographic (height, round) order.
func (v *Vote) FresherThan(other *Vote) bool {
	if v.Height != other.Height {
		return v.Height > other.Height
	}
	return v.Round > other.Round
}

// IsStale reports whether the vote is below the engine's current
// (height, round): strictly stale if its height is behind, or its round
// is behind at the same height — unless the vote is a Commit, which
// remains valid across subsequent rounds of the same height.
func (v *Vote) IsStale(curHeight uint64, curRound uint32) bool {
	if v.Height < curHeight {
		return true
	}
	if v.Height == curHeight && v.Round < curRound && v.Phase != PhaseCommit {
		return true
	}
	return false
}

// HasValidSignature verifies the vote's signature and that From matches
// the address derived from PubKey.
func (v *Vote) HasValidSignature(verify VerifyFunc, addressOf AddressFunc) bool {
	if addressOf(v.PubKey) != v.From {
		return false
	}
	return verify(v.PubKey, v.SigningPayload(), v.Sig)
}

// IsValid implements spec §4.3: not stale relative to the engine's
// current (height, round), and a valid signature.
func (v *Vote) IsValid(curHeight uint64, curRound uint32, verify VerifyFunc, addressOf AddressFunc) bool {
	if v.IsStale(curHeight, curRound) {
		return false
	}
	return v.HasValidSignature(verify, addressOf)
}
