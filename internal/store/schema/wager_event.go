package schema

import (
	"time"

	"github.com/maincard-gg/card-arena/internal/domain"
)

// WagerEvent represents the wager_events table - an externally resolved
// occurrence bettors predict against. Created once, mutated once (the
// result), never deleted.
type WagerEvent struct {
	// ID is caller-assigned and unique
	ID uint64 `gorm:"column:id;primaryKey"`
	// OpensForBetsUntil is the exclusive staking deadline
	OpensForBetsUntil time.Time `gorm:"column:opens_for_bets_until;not null"`
	// DescriptorHash is an opaque reference to the off-platform event
	// description
	DescriptorHash string `gorm:"column:descriptor_hash;not null;type:text"`
	// Result is OutcomeUnset until the settler posts it, then immutable
	Result domain.Outcome `gorm:"column:result;not null;default:0"`
	// ResultPostedAt records when the result was written
	ResultPostedAt *time.Time `gorm:"column:result_posted_at"`
	// CreatedAt is the row creation timestamp
	CreatedAt time.Time `gorm:"column:created_at;not null;default:now()"`
}

// TableName specifies the table name for the WagerEvent model
func (WagerEvent) TableName() string {
	return "wager_events"
}

// State derives the event state at the given instant
func (e *WagerEvent) State(now time.Time) domain.EventState {
	return domain.DeriveEventState(now, e.OpensForBetsUntil, e.Result)
}
