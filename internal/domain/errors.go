package domain

import "errors"

// ErrorClass groups operation failures by cause so API clients can branch on
// it without string matching
type ErrorClass string

const (
	ClassAuthorization ErrorClass = "authorization"
	ClassState         ErrorClass = "state"
	ClassPolicy        ErrorClass = "policy"
	ClassEconomic      ErrorClass = "economic"
	ClassTiming        ErrorClass = "timing"
)

// Error is a domain failure with a stable machine-readable code.
// Every operation either fully applies or fails with one of these and no
// state change.
type Error struct {
	Code    string
	Class   ErrorClass
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func newError(class ErrorClass, code, message string) *Error {
	return &Error{Code: code, Class: class, Message: message}
}

// Authorization errors
var (
	ErrMissingCapability = newError(ClassAuthorization, "missing_capability", "caller lacks the required capability")
	ErrBadSignature      = newError(ClassAuthorization, "bad_signature", "recovered signer does not match the claimed signer")
	ErrStaleNonce        = newError(ClassAuthorization, "stale_nonce", "signed nonce does not match the account nonce")
	ErrNotOwner          = newError(ClassAuthorization, "not_owner", "caller does not own the asset")
	ErrNotStaker         = newError(ClassAuthorization, "not_staker", "caller is not the original staker")
	ErrUnknownCapability = newError(ClassAuthorization, "unknown_capability", "capability name is not recognized")
)

// State errors
var (
	ErrAssetNotFound       = newError(ClassState, "asset_not_found", "asset does not exist")
	ErrEventNotFound       = newError(ClassState, "event_not_found", "wager event does not exist")
	ErrDuplicateEvent      = newError(ClassState, "duplicate_event", "wager event id already in use")
	ErrEventNotOpen        = newError(ClassState, "event_not_open", "wager event is not accepting bets")
	ErrEventAlreadySettled = newError(ClassState, "event_already_settled", "wager event result is already posted")
	ErrAssetAlreadyStaked  = newError(ClassState, "asset_already_staked", "asset is already staked")
	ErrWagerNotFound       = newError(ClassState, "wager_not_found", "no open wager for the asset")
	ErrCallNotFound        = newError(ClassState, "call_not_found", "call does not exist")
	ErrCallAlreadyAccepted = newError(ClassState, "call_already_accepted", "call already has an acceptor")
	ErrCallSelfAccept      = newError(ClassState, "call_self_accept", "call cannot be accepted by its creator")
	ErrCallSameChoice      = newError(ClassState, "call_same_choice", "acceptor must bet against the creator's choice")
	ErrCallLocked          = newError(ClassState, "call_locked", "an accepted call leg cannot be withdrawn before settlement")
	ErrEventStillOpen      = newError(ClassState, "event_still_open", "result cannot be posted while betting is open")
	ErrOutcomeInvalid      = newError(ClassState, "outcome_invalid", "outcome is not a valid match result")
	ErrAccountNotFound     = newError(ClassState, "account_not_found", "account has no recorded state")
	ErrNoLivesRemaining    = newError(ClassState, "no_lives_remaining", "asset has no lives remaining")
	ErrLivesAtCap          = newError(ClassState, "lives_at_cap", "asset lives are already at the cap")
)

// Policy errors
var (
	ErrDemoTransferRestricted = newError(ClassPolicy, "demo_transfer_restricted", "demo cards move only to the arena and only after the minimum age")
	ErrDemoBurnTooEarly       = newError(ClassPolicy, "demo_burn_too_early", "demo cards cannot be burned before the minimum age")
	ErrPartnerMismatch        = newError(ClassPolicy, "partner_mismatch", "cards from different partners cannot merge")
	ErrRarityMismatch         = newError(ClassPolicy, "rarity_mismatch", "cards of different rarity cannot merge")
	ErrRarityAtMax            = newError(ClassPolicy, "rarity_at_max", "card is already at the highest tier")
	ErrRarityNotTradeable     = newError(ClassPolicy, "rarity_not_tradeable", "operation requires a tradeable rarity tier")
	ErrWinsBelowThreshold     = newError(ClassPolicy, "wins_below_threshold", "card has not won enough consecutive bets to upgrade")
)

// Economic errors
var (
	ErrInsufficientPayment = newError(ClassEconomic, "insufficient_payment", "attached payment is below the configured price")
	ErrInsufficientBalance = newError(ClassEconomic, "insufficient_balance", "account balance is too low")
)

// Timing errors
var (
	ErrCooloffActive = newError(ClassTiming, "cooloff_active", "asset is still in its cooloff window")
)

// AsDomainError unwraps err into a *Error if it carries one
func AsDomainError(err error) (*Error, bool) {
	var de *Error
	if errors.As(err, &de) {
		return de, true
	}
	return nil, false
}
