package schema

// Balance represents the balances table - the fungible reward ledger
// credited on winning settlements and debited for paid operations
type Balance struct {
	// Address is the account (lowercase hex)
	Address string `gorm:"column:address;primaryKey;type:text"`
	// Amount is the balance in whole reward-token units
	Amount int64 `gorm:"column:amount;not null;default:0"`
}

// TableName specifies the table name for the Balance model
func (Balance) TableName() string {
	return "balances"
}
