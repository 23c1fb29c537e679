// Package crypto implements the host platform's sign/verify/addressOf
// collaborators (spec §6) using Ed25519, adapted from the teacher's key
// generation and signing — trimmed of the stealth-address and
// ring-signature scheme, which has no counterpart in this spec's plain
// Address model.
package crypto

import (
	"crypto/rand"
	"crypto/sha256"

	"golang.org/x/crypto/ed25519"

	"github.com/concordbft/concord/types"
)

// KeyPair is a validator or client's signing identity.
type KeyPair struct {
	PrivateKey ed25519.PrivateKey
	PublicKey  types.PublicKey
}

// GenerateKeyPair creates a new Ed25519 keypair.
func GenerateKeyPair() (*KeyPair, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, err
	}

	var pubKey types.PublicKey
	copy(pubKey[:], pub)

	return &KeyPair{PrivateKey: priv, PublicKey: pubKey}, nil
}

// Address returns the address derived from this keypair's public key.
func (kp *KeyPair) Address() types.Address {
	return AddressOf(kp.PublicKey)
}

// Sign signs msg with priv, returning a fixed-size Signature.
func Sign(priv ed25519.PrivateKey, msg []byte) types.Signature {
	raw := ed25519.Sign(priv, msg)
	var sig types.Signature
	copy(sig[:], raw)
	return sig
}

// Verify checks sig against pub and msg — the host platform's `verify`
// collaborator (spec §6), matching types.VerifyFunc's signature.
func Verify(pub types.PublicKey, msg []byte, sig types.Signature) bool {
	return ed25519.Verify(ed25519.PublicKey(pub[:]), msg, sig[:])
}

// AddressOf derives an Address from a public key — the host platform's
// `addressOf` collaborator. The address is the low 20 bytes of
// sha256(pubKey), matching the shortened-hash convention used throughout
// the pack for deriving addresses from public keys.
func AddressOf(pub types.PublicKey) types.Address {
	digest := sha256.Sum256(pub[:])
	var addr types.Address
	copy(addr[:], digest[len(digest)-len(addr):])
	return addr
}
