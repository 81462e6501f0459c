package store

import (
	"context"

	"github.com/maincard-gg/card-arena/internal/domain"
	"github.com/maincard-gg/card-arena/internal/store/schema"
)

// Store defines the interface for database operations.
//
// Get* methods return (nil, nil) when the row does not exist; callers map
// that to the appropriate domain error. *ForUpdate variants take a row lock
// and are only meaningful inside Atomically.
type Store interface {
	// Atomically runs fn inside one transaction; every public operation of
	// the engine is exactly one such transaction
	Atomically(ctx context.Context, fn func(tx Store) error) error

	// Assets
	CreateAsset(ctx context.Context, asset *schema.Asset) error
	GetAsset(ctx context.Context, id uint64) (*schema.Asset, error)
	GetAssetForUpdate(ctx context.Context, id uint64) (*schema.Asset, error)
	SaveAsset(ctx context.Context, asset *schema.Asset) error
	DeleteAsset(ctx context.Context, id uint64) error
	ListAssetsByOwner(ctx context.Context, owner string, limit, offset int) ([]schema.Asset, error)
	CountAssetsByOwner(ctx context.Context, owner string) (int64, error)

	// Wager events
	CreateWagerEvent(ctx context.Context, event *schema.WagerEvent) error
	GetWagerEvent(ctx context.Context, id uint64) (*schema.WagerEvent, error)
	GetWagerEventForUpdate(ctx context.Context, id uint64) (*schema.WagerEvent, error)
	SaveWagerEvent(ctx context.Context, event *schema.WagerEvent) error

	// Wagers
	CreateWager(ctx context.Context, wager *schema.Wager) error
	GetWagerByAssetID(ctx context.Context, assetID uint64) (*schema.Wager, error)
	GetWagerByAssetIDForUpdate(ctx context.Context, assetID uint64) (*schema.Wager, error)
	DeleteWager(ctx context.Context, id uint64) error
	ListWagersByStaker(ctx context.Context, staker string, limit, offset int) ([]schema.Wager, error)
	CountWagersByStaker(ctx context.Context, staker string) (int64, error)
	CountWagersByCallID(ctx context.Context, callID string) (int64, error)

	// Calls
	CreateCall(ctx context.Context, call *schema.Call) error
	GetCall(ctx context.Context, id string) (*schema.Call, error)
	GetCallForUpdate(ctx context.Context, id string) (*schema.Call, error)
	SaveCall(ctx context.Context, call *schema.Call) error
	DeleteCall(ctx context.Context, id string) error
	ListCallsByParticipant(ctx context.Context, address string, limit, offset int) ([]schema.Call, error)
	CountCallsByParticipant(ctx context.Context, address string) (int64, error)

	// Nonce counters
	GetNonce(ctx context.Context, address string) (uint64, error)
	// ConsumeNonce locks the account's counter, increments it by exactly 1
	// and returns the consumed value. A rolled-back transaction also rolls
	// back the increment, so racing relayers serialize on the row and the
	// loser fails closed.
	ConsumeNonce(ctx context.Context, address string) (uint64, error)

	// Balances
	GetBalance(ctx context.Context, address string) (int64, error)
	CreditBalance(ctx context.Context, address string, amount int64) error
	DebitBalance(ctx context.Context, address string, amount int64) error

	// Capabilities
	HasCapability(ctx context.Context, address string, capability domain.Capability) (bool, error)
	GrantCapability(ctx context.Context, address string, capability domain.Capability) error
	RevokeCapability(ctx context.Context, address string, capability domain.Capability) error

	// Tariffs
	GetTariff(ctx context.Context, kind domain.TariffKind, rarity domain.Rarity) (int64, bool, error)
	SetTariff(ctx context.Context, kind domain.TariffKind, rarity domain.Rarity, amount int64) error
}
