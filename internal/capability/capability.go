// Package capability holds the single authorization guard used by every
// privileged operation. Role checks are a capability-set lookup, not
// per-role dispatch.
package capability

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/maincard-gg/card-arena/internal/domain"
	"github.com/maincard-gg/card-arena/internal/store"
)

// Require fails with a role-identifying authorization error unless the
// caller holds the capability
func Require(ctx context.Context, s store.Store, caller common.Address, capability domain.Capability) error {
	ok, err := s.HasCapability(ctx, domain.AddressKey(caller), capability)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrMissingCapability, capability)
	}
	return nil
}

// Grant gives the capability to an account; administrator only
func Grant(ctx context.Context, s store.Store, caller, grantee common.Address, capability domain.Capability) error {
	if !capability.Valid() {
		return domain.ErrUnknownCapability
	}
	if err := Require(ctx, s, caller, domain.CapabilityAdministrator); err != nil {
		return err
	}
	return s.GrantCapability(ctx, domain.AddressKey(grantee), capability)
}

// Revoke removes the capability from an account; administrator only
func Revoke(ctx context.Context, s store.Store, caller, grantee common.Address, capability domain.Capability) error {
	if err := Require(ctx, s, caller, domain.CapabilityAdministrator); err != nil {
		return err
	}
	return s.RevokeCapability(ctx, domain.AddressKey(grantee), capability)
}
