// Package stakingapi exposes the client-facing staking capability: the
// stake/unstake/evidence transaction builders a wallet or validator node
// uses to talk to a ConsensusEngine's TxPool over
// consensus.ChannelPostTransaction.
//
// The source grafts a shared "stake-aware" method set onto both its
// Client and Miner roles via a runtime object merge; this package
// re-architects that as an explicit capability interface implemented
// once and composed into either role (spec §9).
package stakingapi

import (
	"encoding/json"
	"errors"

	"github.com/google/uuid"

	"github.com/concordbft/concord/consensus"
	"github.com/concordbft/concord/crypto"
	"github.com/concordbft/concord/types"
)

// ErrInsufficientFunds is returned synchronously by PostStakingTransaction
// when amount exceeds the caller's available (liquid) gold — spec §7:
// unlike every other error kind, this one never reaches the pool.
var ErrInsufficientFunds = errors.New("stakingapi: stake amount exceeds available gold")

// ErrInvalidAmount mirrors ledger.ErrInvalidAmount for client-side
// pre-validation, avoiding a dependency on package ledger from a
// client-facing API.
var ErrInvalidAmount = errors.New("stakingapi: amount must be positive")

// HeadProvider is the read-only view of chain state a client needs to
// answer AvailableGold/AmountGoldStaked — satisfied directly by
// consensus.HostChain.
type HeadProvider interface {
	Head() *types.Block
}

// StakeholderCapability is the explicit capability trait named in design
// note §9: availableGold, amountGoldStaked, postStakingTransaction,
// postUnstakingTransaction, implemented once here and usable by any role
// (plain client or validator) that holds a Client.
type StakeholderCapability interface {
	AvailableGold() uint64
	AmountGoldStaked() uint64
	PostStakingTransaction(amount uint64) (*types.Transaction, error)
	PostUnstakingTransaction(amount uint64) (*types.Transaction, error)
	PostEvidenceTransaction(byzantinePlayer types.Address, msg1, msg2 types.SignedMessage) (*types.Transaction, error)
}

// Client is a signing identity composed with a chain view and a
// broadcaster, implementing StakeholderCapability.
type Client struct {
	kp          *crypto.KeyPair
	chain       HeadProvider
	broadcaster consensus.Broadcaster
	nonce       uint64
}

// NewClient constructs a Client for kp, reading balances from chain and
// submitting built transactions through broadcaster.
func NewClient(kp *crypto.KeyPair, chain HeadProvider, broadcaster consensus.Broadcaster) *Client {
	return &Client{kp: kp, chain: chain, broadcaster: broadcaster}
}

// Address returns the client's address.
func (c *Client) Address() types.Address {
	return c.kp.Address()
}

// AvailableGold is the client's current liquid balance at the chain head.
func (c *Client) AvailableGold() uint64 {
	return c.chain.Head().Balances[c.kp.Address()]
}

// AmountGoldStaked is the client's current bonded stake at the chain head.
func (c *Client) AmountGoldStaked() uint64 {
	return c.chain.Head().Stake.StakeBalances[c.kp.Address()]
}

// PostStakingTransaction builds, signs and broadcasts a Stake transaction
// for amount, after synchronously rejecting it if it would exceed the
// client's available gold (spec §7 InsufficientFunds).
func (c *Client) PostStakingTransaction(amount uint64) (*types.Transaction, error) {
	if amount == 0 {
		return nil, ErrInvalidAmount
	}
	if amount > c.AvailableGold() {
		return nil, ErrInsufficientFunds
	}
	return c.submit(types.StakeTx{AmountStaked: amount})
}

// PostUnstakingTransaction builds, signs and broadcasts an Unstake
// transaction for amount. Whether amount actually fits the bonded
// balance is validated block-side by ledger.Unstake; this API only
// rejects the trivially-invalid zero amount.
func (c *Client) PostUnstakingTransaction(amount uint64) (*types.Transaction, error) {
	if amount == 0 {
		return nil, ErrInvalidAmount
	}
	return c.submit(types.UnstakeTx{AmountToUnstake: amount})
}

// PostEvidenceTransaction builds, signs and broadcasts an Evidence
// transaction reporting byzantinePlayer's two conflicting signed
// messages. Exposed so an operator or monitoring tool can submit
// evidence independently of a running ConsensusEngine, which otherwise
// emits this automatically on detecting an equivocation (spec §4.6).
func (c *Client) PostEvidenceTransaction(byzantinePlayer types.Address, msg1, msg2 types.SignedMessage) (*types.Transaction, error) {
	return c.submit(types.EvidenceTx{
		ID:              uuid.New(),
		ByzantinePlayer: byzantinePlayer,
		Msg1:            msg1,
		Msg2:            msg2,
	})
}

func (c *Client) submit(payload types.TxPayload) (*types.Transaction, error) {
	tx := &types.Transaction{
		From:    c.kp.Address(),
		Nonce:   c.nonce,
		Payload: payload,
		PubKey:  c.kp.PublicKey,
	}
	tx.Sig = crypto.Sign(c.kp.PrivateKey, tx.SigningPayload())
	c.nonce++

	raw, err := json.Marshal(tx)
	if err != nil {
		return nil, err
	}
	if err := c.broadcaster.Broadcast(consensus.ChannelPostTransaction, raw); err != nil {
		return nil, err
	}
	return tx, nil
}
