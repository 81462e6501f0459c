package schema

import (
	"time"

	"github.com/maincard-gg/card-arena/internal/domain"
)

// CapabilityGrant represents the capability_grants table - one row per
// (account, capability) pair. Privileged operations check membership here.
type CapabilityGrant struct {
	// Address is the grantee account (lowercase hex)
	Address string `gorm:"column:address;primaryKey;type:text"`
	// Capability is the granted privilege name
	Capability domain.Capability `gorm:"column:capability;primaryKey;type:text"`
	// GrantedAt is the grant timestamp
	GrantedAt time.Time `gorm:"column:granted_at;not null;default:now()"`
}

// TableName specifies the table name for the CapabilityGrant model
func (CapabilityGrant) TableName() string {
	return "capability_grants"
}
