package schema

import (
	"time"

	"github.com/maincard-gg/card-arena/internal/domain"
)

// Asset represents the assets table - one row per card, whoever holds it
type Asset struct {
	// ID is the card identifier, assigned at mint and immutable
	ID uint64 `gorm:"column:id;primaryKey;autoIncrement"`
	// Owner is the current custodian address (lowercase hex). While a card
	// is staked this is the arena engine account, not the player.
	Owner string `gorm:"column:owner;not null;type:text;index:idx_assets_owner"`
	// Rarity is the tier, including the non-tradeable demo tier
	Rarity domain.Rarity `gorm:"column:rarity;not null"`
	// LivesRemaining counts how many losses the card can still absorb
	LivesRemaining int `gorm:"column:lives_remaining;not null"`
	// ConsequentWins is the current win streak; resets to zero on a loss
	ConsequentWins int `gorm:"column:consequent_wins;not null;default:0"`
	// TotalWagers counts settled wagers over the card's lifetime
	TotalWagers int `gorm:"column:total_wagers;not null;default:0"`
	// PartnerID tags the card's provenance; merges require matching tags
	// and propagate them
	PartnerID uint32 `gorm:"column:partner_id;not null;default:0"`
	// CustodyState is free_standing or staked
	CustodyState domain.CustodyState `gorm:"column:custody_state;not null;type:text"`
	// LastSettledAt starts the cooloff window; nil until the first settlement
	LastSettledAt *time.Time `gorm:"column:last_settled_at"`
	// MintedAt anchors the demo-tier age checks
	MintedAt time.Time `gorm:"column:minted_at;not null"`
	// CreatedAt is the row creation timestamp
	CreatedAt time.Time `gorm:"column:created_at;not null;default:now()"`
}

// TableName specifies the table name for the Asset model
func (Asset) TableName() string {
	return "assets"
}
