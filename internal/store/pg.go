package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/maincard-gg/card-arena/internal/domain"
	"github.com/maincard-gg/card-arena/internal/store/schema"
)

type pgStore struct {
	db *gorm.DB
}

// NewPGStore creates a new PostgreSQL store instance
func NewPGStore(db *gorm.DB) Store {
	return &pgStore{db: db}
}

// Migrate creates or updates the database schema
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&schema.Asset{},
		&schema.WagerEvent{},
		&schema.Wager{},
		&schema.Call{},
		&schema.NonceCounter{},
		&schema.Balance{},
		&schema.CapabilityGrant{},
		&schema.Tariff{},
	)
}

// ConfigureConnectionPool configures the connection pool settings for a GORM
// database connection. Zero values fall back to safe defaults.
func ConfigureConnectionPool(db *gorm.DB, maxOpenConns, maxIdleConns int, connMaxLifetime, connMaxIdleTime time.Duration) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	if maxOpenConns == 0 {
		maxOpenConns = 20
	}
	if maxIdleConns == 0 {
		maxIdleConns = 5
	}
	if connMaxLifetime == 0 {
		connMaxLifetime = 5 * time.Minute
	}
	if connMaxIdleTime == 0 {
		connMaxIdleTime = 10 * time.Minute
	}
	if maxIdleConns > maxOpenConns {
		maxIdleConns = maxOpenConns
	}

	sqlDB.SetMaxOpenConns(maxOpenConns)
	sqlDB.SetMaxIdleConns(maxIdleConns)
	sqlDB.SetConnMaxLifetime(connMaxLifetime)
	sqlDB.SetConnMaxIdleTime(connMaxIdleTime)

	return nil
}

// Atomically runs fn inside one transaction
func (s *pgStore) Atomically(ctx context.Context, fn func(tx Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&pgStore{db: tx})
	})
}

// --- Assets ---

func (s *pgStore) CreateAsset(ctx context.Context, asset *schema.Asset) error {
	if err := s.db.WithContext(ctx).Create(asset).Error; err != nil {
		return fmt.Errorf("failed to create asset: %w", err)
	}
	return nil
}

func (s *pgStore) GetAsset(ctx context.Context, id uint64) (*schema.Asset, error) {
	return s.getAsset(ctx, id, false)
}

func (s *pgStore) GetAssetForUpdate(ctx context.Context, id uint64) (*schema.Asset, error) {
	return s.getAsset(ctx, id, true)
}

func (s *pgStore) getAsset(ctx context.Context, id uint64, forUpdate bool) (*schema.Asset, error) {
	query := s.db.WithContext(ctx)
	if forUpdate {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	var asset schema.Asset
	err := query.Where("id = ?", id).First(&asset).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get asset: %w", err)
	}
	return &asset, nil
}

func (s *pgStore) SaveAsset(ctx context.Context, asset *schema.Asset) error {
	if err := s.db.WithContext(ctx).Save(asset).Error; err != nil {
		return fmt.Errorf("failed to save asset: %w", err)
	}
	return nil
}

func (s *pgStore) DeleteAsset(ctx context.Context, id uint64) error {
	if err := s.db.WithContext(ctx).Delete(&schema.Asset{}, "id = ?", id).Error; err != nil {
		return fmt.Errorf("failed to delete asset: %w", err)
	}
	return nil
}

func (s *pgStore) ListAssetsByOwner(ctx context.Context, owner string, limit, offset int) ([]schema.Asset, error) {
	var assets []schema.Asset
	err := s.db.WithContext(ctx).
		Where("owner = ?", owner).
		Order("id ASC").
		Limit(limit).
		Offset(offset).
		Find(&assets).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list assets: %w", err)
	}
	return assets, nil
}

func (s *pgStore) CountAssetsByOwner(ctx context.Context, owner string) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&schema.Asset{}).
		Where("owner = ?", owner).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count assets: %w", err)
	}
	return count, nil
}

// --- Wager events ---

func (s *pgStore) CreateWagerEvent(ctx context.Context, event *schema.WagerEvent) error {
	if err := s.db.WithContext(ctx).Create(event).Error; err != nil {
		return fmt.Errorf("failed to create wager event: %w", err)
	}
	return nil
}

func (s *pgStore) GetWagerEvent(ctx context.Context, id uint64) (*schema.WagerEvent, error) {
	return s.getWagerEvent(ctx, id, false)
}

func (s *pgStore) GetWagerEventForUpdate(ctx context.Context, id uint64) (*schema.WagerEvent, error) {
	return s.getWagerEvent(ctx, id, true)
}

func (s *pgStore) getWagerEvent(ctx context.Context, id uint64, forUpdate bool) (*schema.WagerEvent, error) {
	query := s.db.WithContext(ctx)
	if forUpdate {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	var event schema.WagerEvent
	err := query.Where("id = ?", id).First(&event).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get wager event: %w", err)
	}
	return &event, nil
}

func (s *pgStore) SaveWagerEvent(ctx context.Context, event *schema.WagerEvent) error {
	if err := s.db.WithContext(ctx).Save(event).Error; err != nil {
		return fmt.Errorf("failed to save wager event: %w", err)
	}
	return nil
}

// --- Wagers ---

func (s *pgStore) CreateWager(ctx context.Context, wager *schema.Wager) error {
	if err := s.db.WithContext(ctx).Create(wager).Error; err != nil {
		return fmt.Errorf("failed to create wager: %w", err)
	}
	return nil
}

func (s *pgStore) GetWagerByAssetID(ctx context.Context, assetID uint64) (*schema.Wager, error) {
	return s.getWagerByAssetID(ctx, assetID, false)
}

func (s *pgStore) GetWagerByAssetIDForUpdate(ctx context.Context, assetID uint64) (*schema.Wager, error) {
	return s.getWagerByAssetID(ctx, assetID, true)
}

func (s *pgStore) getWagerByAssetID(ctx context.Context, assetID uint64, forUpdate bool) (*schema.Wager, error) {
	query := s.db.WithContext(ctx)
	if forUpdate {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	var wager schema.Wager
	err := query.Where("asset_id = ?", assetID).First(&wager).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get wager: %w", err)
	}
	return &wager, nil
}

func (s *pgStore) DeleteWager(ctx context.Context, id uint64) error {
	if err := s.db.WithContext(ctx).Delete(&schema.Wager{}, "id = ?", id).Error; err != nil {
		return fmt.Errorf("failed to delete wager: %w", err)
	}
	return nil
}

func (s *pgStore) ListWagersByStaker(ctx context.Context, staker string, limit, offset int) ([]schema.Wager, error) {
	var wagers []schema.Wager
	err := s.db.WithContext(ctx).
		Where("staker = ?", staker).
		Order("id ASC").
		Limit(limit).
		Offset(offset).
		Find(&wagers).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list wagers: %w", err)
	}
	return wagers, nil
}

func (s *pgStore) CountWagersByStaker(ctx context.Context, staker string) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&schema.Wager{}).
		Where("staker = ?", staker).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count wagers: %w", err)
	}
	return count, nil
}

func (s *pgStore) CountWagersByCallID(ctx context.Context, callID string) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&schema.Wager{}).
		Where("call_id = ?", callID).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count call wagers: %w", err)
	}
	return count, nil
}

// --- Calls ---

func (s *pgStore) CreateCall(ctx context.Context, call *schema.Call) error {
	if err := s.db.WithContext(ctx).Create(call).Error; err != nil {
		return fmt.Errorf("failed to create call: %w", err)
	}
	return nil
}

func (s *pgStore) GetCall(ctx context.Context, id string) (*schema.Call, error) {
	return s.getCall(ctx, id, false)
}

func (s *pgStore) GetCallForUpdate(ctx context.Context, id string) (*schema.Call, error) {
	return s.getCall(ctx, id, true)
}

func (s *pgStore) getCall(ctx context.Context, id string, forUpdate bool) (*schema.Call, error) {
	query := s.db.WithContext(ctx)
	if forUpdate {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	var call schema.Call
	err := query.Where("id = ?", id).First(&call).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get call: %w", err)
	}
	return &call, nil
}

func (s *pgStore) SaveCall(ctx context.Context, call *schema.Call) error {
	if err := s.db.WithContext(ctx).Save(call).Error; err != nil {
		return fmt.Errorf("failed to save call: %w", err)
	}
	return nil
}

func (s *pgStore) DeleteCall(ctx context.Context, id string) error {
	if err := s.db.WithContext(ctx).Delete(&schema.Call{}, "id = ?", id).Error; err != nil {
		return fmt.Errorf("failed to delete call: %w", err)
	}
	return nil
}

func (s *pgStore) ListCallsByParticipant(ctx context.Context, address string, limit, offset int) ([]schema.Call, error) {
	var calls []schema.Call
	err := s.db.WithContext(ctx).
		Where("creator_staker = ? OR acceptor_staker = ?", address, address).
		Order("created_at ASC").
		Limit(limit).
		Offset(offset).
		Find(&calls).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list calls: %w", err)
	}
	return calls, nil
}

func (s *pgStore) CountCallsByParticipant(ctx context.Context, address string) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&schema.Call{}).
		Where("creator_staker = ? OR acceptor_staker = ?", address, address).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count calls: %w", err)
	}
	return count, nil
}

// --- Nonce counters ---

func (s *pgStore) GetNonce(ctx context.Context, address string) (uint64, error) {
	var counter schema.NonceCounter
	err := s.db.WithContext(ctx).Where("address = ?", address).First(&counter).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get nonce: %w", err)
	}
	return counter.Nonce, nil
}

func (s *pgStore) ConsumeNonce(ctx context.Context, address string) (uint64, error) {
	// Ensure the row exists so the lock below has something to grab
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&schema.NonceCounter{Address: address, Nonce: 0}).Error
	if err != nil {
		return 0, fmt.Errorf("failed to init nonce: %w", err)
	}

	var counter schema.NonceCounter
	err = s.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("address = ?", address).
		First(&counter).Error
	if err != nil {
		return 0, fmt.Errorf("failed to lock nonce: %w", err)
	}

	consumed := counter.Nonce
	counter.Nonce++
	if err := s.db.WithContext(ctx).Save(&counter).Error; err != nil {
		return 0, fmt.Errorf("failed to advance nonce: %w", err)
	}
	return consumed, nil
}

// --- Balances ---

func (s *pgStore) GetBalance(ctx context.Context, address string) (int64, error) {
	var balance schema.Balance
	err := s.db.WithContext(ctx).Where("address = ?", address).First(&balance).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get balance: %w", err)
	}
	return balance.Amount, nil
}

func (s *pgStore) CreditBalance(ctx context.Context, address string, amount int64) error {
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "address"}},
			DoUpdates: clause.Assignments(map[string]interface{}{"amount": gorm.Expr("balances.amount + ?", amount)}),
		}).
		Create(&schema.Balance{Address: address, Amount: amount}).Error
	if err != nil {
		return fmt.Errorf("failed to credit balance: %w", err)
	}
	return nil
}

func (s *pgStore) DebitBalance(ctx context.Context, address string, amount int64) error {
	var balance schema.Balance
	err := s.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("address = ?", address).
		First(&balance).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.ErrInsufficientBalance
	}
	if err != nil {
		return fmt.Errorf("failed to lock balance: %w", err)
	}

	if balance.Amount < amount {
		return domain.ErrInsufficientBalance
	}

	balance.Amount -= amount
	if err := s.db.WithContext(ctx).Save(&balance).Error; err != nil {
		return fmt.Errorf("failed to debit balance: %w", err)
	}
	return nil
}

// --- Capabilities ---

func (s *pgStore) HasCapability(ctx context.Context, address string, capability domain.Capability) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&schema.CapabilityGrant{}).
		Where("address = ? AND capability = ?", address, capability).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check capability: %w", err)
	}
	return count > 0, nil
}

func (s *pgStore) GrantCapability(ctx context.Context, address string, capability domain.Capability) error {
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&schema.CapabilityGrant{Address: address, Capability: capability}).Error
	if err != nil {
		return fmt.Errorf("failed to grant capability: %w", err)
	}
	return nil
}

func (s *pgStore) RevokeCapability(ctx context.Context, address string, capability domain.Capability) error {
	err := s.db.WithContext(ctx).
		Delete(&schema.CapabilityGrant{}, "address = ? AND capability = ?", address, capability).Error
	if err != nil {
		return fmt.Errorf("failed to revoke capability: %w", err)
	}
	return nil
}

// --- Tariffs ---

func (s *pgStore) GetTariff(ctx context.Context, kind domain.TariffKind, rarity domain.Rarity) (int64, bool, error) {
	var tariff schema.Tariff
	err := s.db.WithContext(ctx).Where("kind = ? AND rarity = ?", kind, rarity).First(&tariff).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to get tariff: %w", err)
	}
	return tariff.Amount, true, nil
}

func (s *pgStore) SetTariff(ctx context.Context, kind domain.TariffKind, rarity domain.Rarity, amount int64) error {
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "kind"}, {Name: "rarity"}},
			DoUpdates: clause.Assignments(map[string]interface{}{"amount": amount}),
		}).
		Create(&schema.Tariff{Kind: kind, Rarity: rarity, Amount: amount}).Error
	if err != nil {
		return fmt.Errorf("failed to set tariff: %w", err)
	}
	return nil
}
