package schema

import (
	"time"

	"github.com/maincard-gg/card-arena/internal/domain"
)

// Call represents the calls table - a peer-vs-peer duel layered on one
// wager event. The creator stakes first; exactly one acceptor closes entry.
// Each leg also has a Wager row, so settlement and claiming reuse the
// ordinary wager path.
type Call struct {
	// ID is a ULID assigned at creation
	ID string `gorm:"column:id;primaryKey;type:text"`
	// EventID references the wager event both legs settle against
	EventID uint64 `gorm:"column:event_id;not null;index:idx_calls_event"`
	// CreatorStaker is the address that opened the call
	CreatorStaker string `gorm:"column:creator_staker;not null;type:text;index:idx_calls_creator"`
	// CreatorAssetID is the card staked by the creator
	CreatorAssetID uint64 `gorm:"column:creator_asset_id;not null"`
	// CreatorChoice is the creator's predicted outcome
	CreatorChoice domain.Outcome `gorm:"column:creator_choice;not null"`
	// Odds is the odds multiplier applied to both legs
	Odds uint32 `gorm:"column:odds;not null"`
	// AcceptorStaker is set when the call is accepted; nil while open
	AcceptorStaker *string `gorm:"column:acceptor_staker;type:text;index:idx_calls_acceptor"`
	// AcceptorAssetID is the card staked by the acceptor
	AcceptorAssetID *uint64 `gorm:"column:acceptor_asset_id"`
	// AcceptorChoice is the acceptor's predicted outcome
	AcceptorChoice *domain.Outcome `gorm:"column:acceptor_choice"`
	// CreatedAt is the call creation timestamp
	CreatedAt time.Time `gorm:"column:created_at;not null"`
	// AcceptedAt records when the acceptor closed entry
	AcceptedAt *time.Time `gorm:"column:accepted_at"`
}

// TableName specifies the table name for the Call model
func (Call) TableName() string {
	return "calls"
}

// Accepted reports whether the call already has its single acceptor
func (c *Call) Accepted() bool {
	return c.AcceptorStaker != nil
}
