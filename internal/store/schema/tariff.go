package schema

import (
	"github.com/maincard-gg/card-arena/internal/domain"
)

// Tariff represents the tariffs table - runtime-settable prices keyed by
// operation kind and rarity tier. The price manager writes these; nothing
// is hard-coded.
type Tariff struct {
	// Kind is mint, upgrade or restore_life
	Kind domain.TariffKind `gorm:"column:kind;primaryKey;type:text"`
	// Rarity is the tier the price applies to (restore_life ignores it
	// and uses RarityRegular as its key)
	Rarity domain.Rarity `gorm:"column:rarity;primaryKey"`
	// Amount is the price in whole reward-token units
	Amount int64 `gorm:"column:amount;not null"`
}

// TableName specifies the table name for the Tariff model
func (Tariff) TableName() string {
	return "tariffs"
}
