// Package registry implements custody, identity and game state for every
// card: minting, merging, burning, transfers and the demo-tier policy.
package registry

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/maincard-gg/card-arena/internal/adapter"
	"github.com/maincard-gg/card-arena/internal/capability"
	"github.com/maincard-gg/card-arena/internal/delegated"
	"github.com/maincard-gg/card-arena/internal/domain"
	"github.com/maincard-gg/card-arena/internal/ledger"
	"github.com/maincard-gg/card-arena/internal/logger"
	"github.com/maincard-gg/card-arena/internal/store"
	"github.com/maincard-gg/card-arena/internal/store/schema"
)

// Config holds the registry game rules. Everything here comes from
// configuration; nothing is embedded in the operations.
type Config struct {
	// StartingLives is the lives a freshly minted card carries
	StartingLives int
	// LivesCap bounds life restoration
	LivesCap int
	// DemoMinTransferAge gates moving a demo card to the arena
	DemoMinTransferAge time.Duration
	// DemoMinBurnAge gates burning a demo card
	DemoMinBurnAge time.Duration
	// WinsToUpgrade is the consecutive-wins threshold per tradeable tier
	// a card must reach before it can merge
	WinsToUpgrade map[domain.Rarity]int
	// ArenaAccount is the engine address demo cards are allowed to move to
	ArenaAccount common.Address
}

// Service is the asset registry
type Service struct {
	store  store.Store
	ledger ledger.Ledger
	clock  adapter.Clock
	cfg    Config
}

// NewService creates the registry service
func NewService(s store.Store, l ledger.Ledger, clock adapter.Clock, cfg Config) *Service {
	return &Service{store: s, ledger: l, clock: clock, cfg: cfg}
}

// Mint issues a card unconditionally; minter capability required
func (s *Service) Mint(ctx context.Context, caller, to common.Address, rarity domain.Rarity, partnerID uint32) (uint64, error) {
	var minted uint64
	err := s.store.Atomically(ctx, func(tx store.Store) error {
		if err := capability.Require(ctx, tx, caller, domain.CapabilityMinter); err != nil {
			return err
		}

		asset, err := s.mint(ctx, tx, to, rarity, partnerID)
		if err != nil {
			return err
		}
		minted = asset.ID
		return nil
	})
	if err != nil {
		return 0, err
	}

	logger.InfoCtx(ctx, "Minted card",
		zap.Uint64("asset_id", minted),
		zap.String("to", domain.AddressKey(to)),
		zap.String("rarity", rarity.String()),
	)
	return minted, nil
}

// MintPaid issues a card against payment; public. The payment must cover
// the configured mint price for the rarity and is debited from the buyer's
// ledger balance.
func (s *Service) MintPaid(ctx context.Context, buyer common.Address, rarity domain.Rarity, payment int64) (uint64, error) {
	var minted uint64
	err := s.store.Atomically(ctx, func(tx store.Store) error {
		if !rarity.IsTradeable() {
			return domain.ErrRarityNotTradeable
		}

		price, ok, err := tx.GetTariff(ctx, domain.TariffMint, rarity)
		if err != nil {
			return err
		}
		if !ok || payment < price {
			return domain.ErrInsufficientPayment
		}
		if err := s.ledger.Debit(ctx, tx, buyer, payment); err != nil {
			return err
		}

		asset, err := s.mint(ctx, tx, buyer, rarity, 0)
		if err != nil {
			return err
		}
		minted = asset.ID
		return nil
	})
	if err != nil {
		return 0, err
	}
	return minted, nil
}

// Merge burns two cards of identical rarity and provenance and mints one
// card of the next tier inheriting the partner tag
func (s *Service) Merge(ctx context.Context, caller common.Address, assetA, assetB uint64, payment int64) (uint64, error) {
	var minted uint64
	err := s.store.Atomically(ctx, func(tx store.Store) error {
		a, err := s.ownedFreeStanding(ctx, tx, caller, assetA)
		if err != nil {
			return err
		}
		b, err := s.ownedFreeStanding(ctx, tx, caller, assetB)
		if err != nil {
			return err
		}

		if !a.Rarity.IsTradeable() || !b.Rarity.IsTradeable() {
			return domain.ErrRarityNotTradeable
		}
		if a.Rarity != b.Rarity {
			return domain.ErrRarityMismatch
		}
		// Partner provenance must match even when rarities do
		if a.PartnerID != b.PartnerID {
			return domain.ErrPartnerMismatch
		}

		next, ok := a.Rarity.Next()
		if !ok {
			return domain.ErrRarityAtMax
		}

		if threshold := s.cfg.WinsToUpgrade[a.Rarity]; threshold > 0 {
			if a.ConsequentWins < threshold || b.ConsequentWins < threshold {
				return domain.ErrWinsBelowThreshold
			}
		}

		price, _, err := tx.GetTariff(ctx, domain.TariffUpgrade, a.Rarity)
		if err != nil {
			return err
		}
		if payment < price {
			return domain.ErrInsufficientPayment
		}
		if err := s.ledger.Debit(ctx, tx, caller, payment); err != nil {
			return err
		}

		if err := tx.DeleteAsset(ctx, a.ID); err != nil {
			return err
		}
		if err := tx.DeleteAsset(ctx, b.ID); err != nil {
			return err
		}

		merged, err := s.mint(ctx, tx, caller, next, a.PartnerID)
		if err != nil {
			return err
		}
		minted = merged.ID
		return nil
	})
	if err != nil {
		return 0, err
	}

	logger.InfoCtx(ctx, "Merged cards",
		zap.Uint64("asset_a", assetA),
		zap.Uint64("asset_b", assetB),
		zap.Uint64("minted", minted),
	)
	return minted, nil
}

// Burn destroys a card the caller owns. Demo cards cannot be burned before
// the configured minimum age.
func (s *Service) Burn(ctx context.Context, caller common.Address, assetID uint64) error {
	return s.store.Atomically(ctx, func(tx store.Store) error {
		asset, err := s.ownedFreeStanding(ctx, tx, caller, assetID)
		if err != nil {
			return err
		}

		if asset.Rarity == domain.RarityDemo {
			if s.clock.Now().Sub(asset.MintedAt) < s.cfg.DemoMinBurnAge {
				return domain.ErrDemoBurnTooEarly
			}
		}

		return tx.DeleteAsset(ctx, asset.ID)
	})
}

// Transfer changes ownership. Demo cards may move only to the arena engine
// account and only once they reach the configured minimum age; one named
// policy error covers both violations.
func (s *Service) Transfer(ctx context.Context, from, to common.Address, assetID uint64) error {
	return s.store.Atomically(ctx, func(tx store.Store) error {
		return s.transfer(ctx, tx, from, to, assetID)
	})
}

// TransferDelegated executes a transfer authorized by the owner's signature
// instead of a direct call
func (s *Service) TransferDelegated(ctx context.Context, from, to common.Address, assetID, nonce uint64, sig []byte) error {
	return s.store.Atomically(ctx, func(tx store.Store) error {
		if err := consumeSignedNonce(ctx, tx, from, nonce); err != nil {
			return err
		}
		if err := delegated.Verify(from, delegated.TransferDigest(from, to, assetID, nonce), sig); err != nil {
			return err
		}
		return s.transfer(ctx, tx, from, to, assetID)
	})
}

// RestoreLife increments a card's lives up to the cap against payment
func (s *Service) RestoreLife(ctx context.Context, caller common.Address, assetID uint64, payment int64) error {
	return s.store.Atomically(ctx, func(tx store.Store) error {
		return s.restoreLife(ctx, tx, caller, assetID, payment)
	})
}

// RestoreLifeDelegated is the signature-authorized variant of RestoreLife
func (s *Service) RestoreLifeDelegated(ctx context.Context, signer common.Address, assetID uint64, payment int64, nonce uint64, sig []byte) error {
	return s.store.Atomically(ctx, func(tx store.Store) error {
		if err := consumeSignedNonce(ctx, tx, signer, nonce); err != nil {
			return err
		}
		if err := delegated.Verify(signer, delegated.RestoreLifeDigest(assetID, payment, nonce), sig); err != nil {
			return err
		}
		return s.restoreLife(ctx, tx, signer, assetID, payment)
	})
}

// SetTariff updates a configured price; price-manager capability required
func (s *Service) SetTariff(ctx context.Context, caller common.Address, kind domain.TariffKind, rarity domain.Rarity, amount int64) error {
	return s.store.Atomically(ctx, func(tx store.Store) error {
		if err := capability.Require(ctx, tx, caller, domain.CapabilityPriceManager); err != nil {
			return err
		}
		return tx.SetTariff(ctx, kind, rarity, amount)
	})
}

// GetAsset returns a card by id
func (s *Service) GetAsset(ctx context.Context, assetID uint64) (*schema.Asset, error) {
	asset, err := s.store.GetAsset(ctx, assetID)
	if err != nil {
		return nil, err
	}
	if asset == nil {
		return nil, domain.ErrAssetNotFound
	}
	return asset, nil
}

// ListAssetsByOwner returns the owner's cards with the total count
func (s *Service) ListAssetsByOwner(ctx context.Context, owner common.Address, limit, offset int) ([]schema.Asset, int64, error) {
	key := domain.AddressKey(owner)
	assets, err := s.store.ListAssetsByOwner(ctx, key, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.store.CountAssetsByOwner(ctx, key)
	if err != nil {
		return nil, 0, err
	}
	return assets, total, nil
}

// mint creates the asset row with fresh game state
func (s *Service) mint(ctx context.Context, tx store.Store, to common.Address, rarity domain.Rarity, partnerID uint32) (*schema.Asset, error) {
	asset := &schema.Asset{
		Owner:          domain.AddressKey(to),
		Rarity:         rarity,
		LivesRemaining: s.cfg.StartingLives,
		PartnerID:      partnerID,
		CustodyState:   domain.CustodyFreeStanding,
		MintedAt:       s.clock.Now(),
	}
	if err := tx.CreateAsset(ctx, asset); err != nil {
		return nil, err
	}
	return asset, nil
}

// ownedFreeStanding locks the asset and checks the caller owns it and it is
// not staked
func (s *Service) ownedFreeStanding(ctx context.Context, tx store.Store, caller common.Address, assetID uint64) (*schema.Asset, error) {
	asset, err := tx.GetAssetForUpdate(ctx, assetID)
	if err != nil {
		return nil, err
	}
	if asset == nil {
		return nil, domain.ErrAssetNotFound
	}
	if asset.Owner != domain.AddressKey(caller) {
		return nil, domain.ErrNotOwner
	}
	if asset.CustodyState != domain.CustodyFreeStanding {
		return nil, domain.ErrAssetAlreadyStaked
	}
	return asset, nil
}

func (s *Service) transfer(ctx context.Context, tx store.Store, from, to common.Address, assetID uint64) error {
	asset, err := s.ownedFreeStanding(ctx, tx, from, assetID)
	if err != nil {
		return err
	}

	if asset.Rarity == domain.RarityDemo {
		if to != s.cfg.ArenaAccount {
			return domain.ErrDemoTransferRestricted
		}
		if s.clock.Now().Sub(asset.MintedAt) < s.cfg.DemoMinTransferAge {
			return domain.ErrDemoTransferRestricted
		}
	}

	asset.Owner = domain.AddressKey(to)
	return tx.SaveAsset(ctx, asset)
}

func (s *Service) restoreLife(ctx context.Context, tx store.Store, caller common.Address, assetID uint64, payment int64) error {
	asset, err := tx.GetAssetForUpdate(ctx, assetID)
	if err != nil {
		return err
	}
	if asset == nil {
		return domain.ErrAssetNotFound
	}
	if asset.Owner != domain.AddressKey(caller) {
		return domain.ErrNotOwner
	}
	if asset.LivesRemaining >= s.cfg.LivesCap {
		return domain.ErrLivesAtCap
	}

	fee, _, err := tx.GetTariff(ctx, domain.TariffRestoreLife, domain.RarityRegular)
	if err != nil {
		return err
	}
	if payment < fee {
		return domain.ErrInsufficientPayment
	}
	if err := s.ledger.Debit(ctx, tx, caller, payment); err != nil {
		return err
	}

	asset.LivesRemaining++
	return tx.SaveAsset(ctx, asset)
}

// consumeSignedNonce advances the account nonce and checks the payload was
// signed over the value just consumed. The increment rolls back with the
// transaction, so a losing relayer leaves no trace.
func consumeSignedNonce(ctx context.Context, tx store.Store, signer common.Address, claimed uint64) error {
	consumed, err := tx.ConsumeNonce(ctx, domain.AddressKey(signer))
	if err != nil {
		return err
	}
	if consumed != claimed {
		return domain.ErrStaleNonce
	}
	return nil
}
