package schema

// NonceCounter represents the nonce_counters table - the per-account replay
// counter consumed by every delegated operation regardless of which
// component it targets
type NonceCounter struct {
	// Address is the account (lowercase hex)
	Address string `gorm:"column:address;primaryKey;type:text"`
	// Nonce is the next value a delegated payload must be signed over
	Nonce uint64 `gorm:"column:nonce;not null;default:0"`
}

// TableName specifies the table name for the NonceCounter model
func (NonceCounter) TableName() string {
	return "nonce_counters"
}
