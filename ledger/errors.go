package ledger

import "errors"

var (
	// ErrInvalidAmount is returned when a stake/unstake amount is not
	// strictly positive.
	ErrInvalidAmount = errors.New("ledger: amount must be positive")

	// ErrInsufficientStake is returned when an unstake would underflow
	// the bonded balance.
	ErrInsufficientStake = errors.New("ledger: insufficient bonded stake")

	// ErrUnknownValidator is returned when an operation targets an
	// address with no bonded stake.
	ErrUnknownValidator = errors.New("ledger: unknown validator")

	// ErrUnknownTxType is raised when a transaction payload's Type() does
	// not match any case handled by ApplyTransaction — spec §7:
	// UnknownTxType renders the containing block invalid.
	ErrUnknownTxType = errors.New("ledger: unknown transaction type")

	// ErrHeightMismatch is returned by ApplyBlock when the block's
	// height does not immediately follow the parent's.
	ErrHeightMismatch = errors.New("ledger: block height does not follow parent")

	// ErrEquivocationSameMessage is returned when an EvidenceTx's two
	// messages are actually identical (not equivocation at all).
	ErrEquivocationSameMessage = errors.New("ledger: evidence messages are identical")

	// ErrEquivocationAuthorMismatch is returned when an EvidenceTx's two
	// messages do not share an author, or the author does not match the
	// named ByzantinePlayer.
	ErrEquivocationAuthorMismatch = errors.New("ledger: evidence author mismatch")

	// ErrEquivocationRoundMismatch is returned when an EvidenceTx's two
	// messages are not for the same (height, round).
	ErrEquivocationRoundMismatch = errors.New("ledger: evidence height/round mismatch")

	// ErrEquivocationInvalidSignature is returned when either message in
	// an EvidenceTx fails independent signature validation.
	ErrEquivocationInvalidSignature = errors.New("ledger: evidence contains an invalid signature")
)
