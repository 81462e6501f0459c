package schema

import (
	"time"

	"github.com/maincard-gg/card-arena/internal/domain"
)

// Wager represents the wagers table - one staked card on one event.
// Rows are created on stake and deleted on claim; the unique index on
// asset_id enforces at most one open wager per card.
type Wager struct {
	// ID is the internal database primary key
	ID uint64 `gorm:"column:id;primaryKey;autoIncrement"`
	// EventID references the wager event
	EventID uint64 `gorm:"column:event_id;not null;index:idx_wagers_event"`
	// AssetID is the staked card; unique while the wager is open
	AssetID uint64 `gorm:"column:asset_id;not null;uniqueIndex:idx_wagers_asset"`
	// Staker is the address that placed the bet and the only one allowed
	// to claim, regardless of the registry's current-owner field
	Staker string `gorm:"column:staker;not null;type:text;index:idx_wagers_staker"`
	// Choice is the predicted outcome
	Choice domain.Outcome `gorm:"column:choice;not null"`
	// Odds is the recorded odds multiplier in basis points of the default
	Odds uint32 `gorm:"column:odds;not null"`
	// CallID links the wager to a peer-vs-peer call leg, if any
	CallID *string `gorm:"column:call_id;type:text;index:idx_wagers_call"`
	// PlacedAt is the staking timestamp
	PlacedAt time.Time `gorm:"column:placed_at;not null"`
}

// TableName specifies the table name for the Wager model
func (Wager) TableName() string {
	return "wagers"
}
