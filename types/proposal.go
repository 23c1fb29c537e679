package types

import "encoding/binary"

// Proposal is a signed block proposal for a (height, round). Identity is
// the hash of every non-signature field.
type Proposal struct {
	From    Address
	BlockID Hash
	Block   *Block
	Height  uint64
	Round   uint32
	PubKey  PublicKey
	Sig     Signature
}

// Identity returns the proposal's content hash, excluding the signature.
func (p *Proposal) Identity() Hash {
	var heightBuf, roundBuf [8]byte
	binary.BigEndian.PutUint64(heightBuf[:], p.Height)
	binary.BigEndian.PutUint64(roundBuf[:], uint64(p.Round))
	return HashBytes(p.From[:], p.BlockID[:], heightBuf[:], roundBuf[:4], p.PubKey[:])
}

func (p *Proposal) SigningPayload() []byte {
	id := p.Identity()
	return id[:]
}

// IsValid implements spec §4.3: signature verifies, From matches the
// derived address, the embedded block's height matches, and BlockID is
// the block's actual content hash.
func (p *Proposal) IsValid(verify VerifyFunc, addressOf AddressFunc) bool {
	if addressOf(p.PubKey) != p.From {
		return false
	}
	if !verify(p.PubKey, p.SigningPayload(), p.Sig) {
		return false
	}
	if p.Block == nil || p.Block.Header.Height != p.Height {
		return false
	}
	return p.Block.ID() == p.BlockID
}

// MessageKind distinguishes the two message types that can equivocate.
type MessageKind uint8

const (
	MessageVote MessageKind = iota
	MessageProposal
)

// SignedMessage wraps either a Vote or a Proposal so evidence can carry
// either kind uniformly (spec §4.6 — equivocation applies to both votes
// and proposals).
type SignedMessage struct {
	Kind     MessageKind
	Vote     *Vote
	Proposal *Proposal
}

func (m *SignedMessage) Identity() Hash {
	if m.Kind == MessageVote {
		return m.Vote.Identity()
	}
	return m.Proposal.Identity()
}

func (m *SignedMessage) Author() Address {
	if m.Kind == MessageVote {
		return m.Vote.From
	}
	return m.Proposal.From
}

func (m *SignedMessage) HeightRound() (uint64, uint32) {
	if m.Kind == MessageVote {
		return m.Vote.Height, m.Vote.Round
	}
	return m.Proposal.Height, m.Proposal.Round
}

func (m *SignedMessage) IsValidSig(verify VerifyFunc, addressOf AddressFunc) bool {
	if m.Kind == MessageVote {
		return m.Vote.HasValidSignature(verify, addressOf)
	}
	if addressOf(m.Proposal.PubKey) != m.Proposal.From {
		return false
	}
	return verify(m.Proposal.PubKey, m.Proposal.SigningPayload(), m.Proposal.Sig)
}
