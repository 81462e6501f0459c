package domain

import (
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Rarity is the ordinal card tier. Tradeable tiers run Regular..Mythic;
// Demo is a separate promo tier with restricted transfer and burn rules.
type Rarity uint8

const (
	RarityRegular   Rarity = 0
	RarityRare      Rarity = 1
	RarityEpic      Rarity = 2
	RarityLegendary Rarity = 3
	RarityMythic    Rarity = 4
	RarityDemo      Rarity = 5
)

// IsTradeable reports whether the rarity belongs to the ordinary tier ladder
func (r Rarity) IsTradeable() bool {
	return r <= RarityMythic
}

// Next returns the tier minted by merging two cards of this rarity
func (r Rarity) Next() (Rarity, bool) {
	if r >= RarityMythic {
		return r, false
	}
	return r + 1, true
}

func (r Rarity) String() string {
	switch r {
	case RarityRegular:
		return "regular"
	case RarityRare:
		return "rare"
	case RarityEpic:
		return "epic"
	case RarityLegendary:
		return "legendary"
	case RarityMythic:
		return "mythic"
	case RarityDemo:
		return "demo"
	default:
		return "unknown"
	}
}

// Outcome encodes a match result. The numeric values are part of the signed
// payload encoding, so they are fixed by the wire format, not by iota.
type Outcome uint8

const (
	OutcomeUnset     Outcome = 0
	OutcomeFirstWon  Outcome = 2
	OutcomeSecondWon Outcome = 4
)

// Valid reports whether the outcome can be bet on or posted as a result
func (o Outcome) Valid() bool {
	return o == OutcomeFirstWon || o == OutcomeSecondWon
}

// CustodyState tracks which component currently holds a card
type CustodyState string

const (
	CustodyFreeStanding CustodyState = "free_standing"
	CustodyStaked       CustodyState = "staked"
)

// EventState is derived from the clock and the presence of a result;
// it is never stored
type EventState string

const (
	EventOpen           EventState = "open"
	EventAwaitingResult EventState = "awaiting_result"
	EventSettled        EventState = "settled"
)

// DeriveEventState computes the state of a wager event.
// Betting is open strictly before opensForBetsUntil; a posted result is
// terminal regardless of the clock.
func DeriveEventState(now time.Time, opensForBetsUntil time.Time, result Outcome) EventState {
	if result != OutcomeUnset {
		return EventSettled
	}
	if now.Before(opensForBetsUntil) {
		return EventOpen
	}
	return EventAwaitingResult
}

// Capability names a grantable privilege. Every privileged operation checks
// exactly one capability.
type Capability string

const (
	CapabilityMinter         Capability = "minter"
	CapabilityPriceManager   Capability = "price_manager"
	CapabilitySettler        Capability = "settler"
	CapabilityPartnerManager Capability = "partner_manager"
	CapabilityAdministrator  Capability = "administrator"
)

// Valid reports whether the capability is one of the known names
func (c Capability) Valid() bool {
	switch c {
	case CapabilityMinter, CapabilityPriceManager, CapabilitySettler,
		CapabilityPartnerManager, CapabilityAdministrator:
		return true
	}
	return false
}

// TariffKind selects which configurable price a tariff row carries
type TariffKind string

const (
	TariffMint        TariffKind = "mint"
	TariffUpgrade     TariffKind = "upgrade"
	TariffRestoreLife TariffKind = "restore_life"
)

// IsHexAddress reports whether s parses as a 0x-prefixed Ethereum address
func IsHexAddress(s string) bool {
	return common.IsHexAddress(s)
}

// AddressKey normalizes an address into the form stored in the database
func AddressKey(a common.Address) string {
	return strings.ToLower(a.Hex())
}

// ArenaEventType labels messages published after arena state changes
type ArenaEventType string

const (
	ArenaEventCreated      ArenaEventType = "event_created"
	ArenaEventResultPosted ArenaEventType = "result_posted"
	ArenaEventWagerPlaced  ArenaEventType = "wager_placed"
	ArenaEventWagerSettled ArenaEventType = "wager_settled"
)

// ArenaEvent is the normalized message published to NATS JetStream after a
// state-changing arena operation commits
type ArenaEvent struct {
	Type      ArenaEventType `json:"type"`
	EventID   uint64         `json:"event_id"`
	AssetID   uint64         `json:"asset_id,omitempty"`
	Account   string         `json:"account,omitempty"`
	Outcome   Outcome        `json:"outcome,omitempty"`
	Reward    int64          `json:"reward,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}
