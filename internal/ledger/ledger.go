// Package ledger exposes the fungible reward balance the arena credits on
// winning settlements. The ledger is an external collaborator in the
// deployed system; here it is implemented over the same store, behind an
// interface so the arena never assumes that.
package ledger

import (
	"context"

	"github.com/ethereum/go-ethereum/common"

	"github.com/maincard-gg/card-arena/internal/domain"
	"github.com/maincard-gg/card-arena/internal/store"
)

// Ledger is the reward-crediting surface consumed by the wager engine and
// the paid registry operations
type Ledger interface {
	// Credit mints amount to the account. The minter must hold a
	// pre-granted minter capability on the ledger.
	Credit(ctx context.Context, s store.Store, minter, account common.Address, amount int64) error
	// Debit burns amount from the account, failing with an economic error
	// when the balance is too low
	Debit(ctx context.Context, s store.Store, account common.Address, amount int64) error
	// BalanceOf returns the current balance
	BalanceOf(ctx context.Context, s store.Store, account common.Address) (int64, error)
}

type service struct {
	minters map[common.Address]struct{}
}

// NewService creates a ledger with the given accounts allowed to mint.
// In production the arena engine account is the only minter.
func NewService(minters ...common.Address) Ledger {
	set := make(map[common.Address]struct{}, len(minters))
	for _, m := range minters {
		set[m] = struct{}{}
	}
	return &service{minters: set}
}

func (l *service) Credit(ctx context.Context, s store.Store, minter, account common.Address, amount int64) error {
	if _, ok := l.minters[minter]; !ok {
		return domain.ErrMissingCapability
	}
	if amount == 0 {
		return nil
	}
	return s.CreditBalance(ctx, domain.AddressKey(account), amount)
}

func (l *service) Debit(ctx context.Context, s store.Store, account common.Address, amount int64) error {
	if amount == 0 {
		return nil
	}
	return s.DebitBalance(ctx, domain.AddressKey(account), amount)
}

func (l *service) BalanceOf(ctx context.Context, s store.Store, account common.Address) (int64, error) {
	return s.GetBalance(ctx, domain.AddressKey(account))
}
