package registry

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	pgdriver "gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/maincard-gg/card-arena/internal/delegated"
	"github.com/maincard-gg/card-arena/internal/domain"
	"github.com/maincard-gg/card-arena/internal/ledger"
	"github.com/maincard-gg/card-arena/internal/mocks"
	"github.com/maincard-gg/card-arena/internal/store"
	"github.com/maincard-gg/card-arena/internal/store/schema"
)

var (
	testDB      *gorm.DB
	pgContainer *postgres.PostgresContainer
)

func TestMain(m *testing.M) {
	ctx := context.Background()

	dbHost := os.Getenv("TEST_DB_HOST")

	var dsn string
	var err error

	if dbHost != "" {
		dsn = externalDSN(dbHost)
	} else {
		pgContainer, err = postgres.Run(ctx,
			"postgres:18-alpine",
			postgres.WithDatabase("test_db"),
			postgres.WithUsername("postgres"),
			postgres.WithPassword("postgres"),
			testcontainers.WithWaitStrategy(
				wait.ForLog("database system is ready to accept connections").
					WithOccurrence(2).
					WithStartupTimeout(30*time.Second)),
		)
		if err != nil {
			fmt.Printf("Failed to start PostgreSQL container: %v\n", err)
			os.Exit(1)
		}

		dsn, err = pgContainer.ConnectionString(ctx, "sslmode=disable")
		if err != nil {
			fmt.Printf("Failed to get connection string: %v\n", err)
			terminateContainer(ctx)
			os.Exit(1)
		}
	}

	testDB, err = gorm.Open(pgdriver.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		fmt.Printf("Failed to connect to database: %v\n", err)
		terminateContainer(ctx)
		os.Exit(1)
	}

	if err := store.Migrate(testDB); err != nil {
		fmt.Printf("Failed to migrate database: %v\n", err)
		terminateContainer(ctx)
		os.Exit(1)
	}

	code := m.Run()
	terminateContainer(ctx)
	os.Exit(code)
}

func externalDSN(host string) string {
	port := os.Getenv("TEST_DB_PORT")
	if port == "" {
		port = "5432"
	}
	user := os.Getenv("TEST_DB_USER")
	if user == "" {
		user = "postgres"
	}
	password := os.Getenv("TEST_DB_PASSWORD")
	if password == "" {
		password = "postgres"
	}
	name := os.Getenv("TEST_DB_NAME")
	if name == "" {
		name = "test_db"
	}
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		host, port, user, password, name)
}

func terminateContainer(ctx context.Context) {
	if pgContainer != nil {
		if err := pgContainer.Terminate(ctx); err != nil {
			fmt.Printf("Failed to terminate PostgreSQL container: %v\n", err)
		}
	}
}

var (
	engineAddr = common.HexToAddress("0x00000000000000000000000000000000000a11a0")
	minterAddr = common.HexToAddress("0x1111111111111111111111111111111111111111")
	aliceAddr  = common.HexToAddress("0x2222222222222222222222222222222222222222")
	bobAddr    = common.HexToAddress("0x3333333333333333333333333333333333333333")
)

// testEnv bundles the registry service with the pieces the tests poke at
type testEnv struct {
	store  store.Store
	ledger ledger.Ledger
	svc    *Service
	now    *time.Time
}

// newTestEnv builds a registry service over a transaction rolled back on
// cleanup, with a controllable clock
func newTestEnv(t *testing.T) *testEnv {
	tx := testDB.Begin()
	require.NoError(t, tx.Error)
	t.Cleanup(func() { tx.Rollback() })

	ctrl := gomock.NewController(t)
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	env := &testEnv{now: &now}

	clock := mocks.NewMockClock(ctrl)
	clock.EXPECT().Now().AnyTimes().DoAndReturn(func() time.Time { return *env.now })
	clock.EXPECT().Since(gomock.Any()).AnyTimes().DoAndReturn(func(t time.Time) time.Duration { return env.now.Sub(t) })

	env.store = store.NewPGStore(tx)
	env.ledger = ledger.NewService(engineAddr)
	env.svc = NewService(env.store, env.ledger, clock, Config{
		StartingLives:      2,
		LivesCap:           2,
		DemoMinTransferAge: 5 * 24 * time.Hour,
		DemoMinBurnAge:     15 * 24 * time.Hour,
		WinsToUpgrade: map[domain.Rarity]int{
			domain.RarityRegular: 3,
			domain.RarityRare:    6,
		},
		ArenaAccount: engineAddr,
	})
	return env
}

func (e *testEnv) advance(d time.Duration) {
	*e.now = e.now.Add(d)
}

func (e *testEnv) grant(t *testing.T, addr common.Address, c domain.Capability) {
	require.NoError(t, e.store.GrantCapability(context.Background(), domain.AddressKey(addr), c))
}

func (e *testEnv) fund(t *testing.T, addr common.Address, amount int64) {
	require.NoError(t, e.store.CreditBalance(context.Background(), domain.AddressKey(addr), amount))
}

func (e *testEnv) mustMint(t *testing.T, to common.Address, rarity domain.Rarity, partnerID uint32) uint64 {
	e.grant(t, minterAddr, domain.CapabilityMinter)
	id, err := e.svc.Mint(context.Background(), minterAddr, to, rarity, partnerID)
	require.NoError(t, err)
	return id
}

func (e *testEnv) asset(t *testing.T, id uint64) *schema.Asset {
	asset, err := e.store.GetAsset(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, asset)
	return asset
}

func TestMintRequiresCapability(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.svc.Mint(ctx, aliceAddr, aliceAddr, domain.RarityRegular, 0)
	assert.ErrorIs(t, err, domain.ErrMissingCapability)

	env.grant(t, minterAddr, domain.CapabilityMinter)
	id, err := env.svc.Mint(ctx, minterAddr, aliceAddr, domain.RarityRare, 9)
	require.NoError(t, err)

	asset := env.asset(t, id)
	assert.Equal(t, domain.AddressKey(aliceAddr), asset.Owner)
	assert.Equal(t, domain.RarityRare, asset.Rarity)
	assert.Equal(t, 2, asset.LivesRemaining)
	assert.Equal(t, uint32(9), asset.PartnerID)
	assert.Equal(t, domain.CustodyFreeStanding, asset.CustodyState)
}

func TestMintPaid(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	// No configured price means the rarity is not for sale
	_, err := env.svc.MintPaid(ctx, aliceAddr, domain.RarityRegular, 100)
	assert.ErrorIs(t, err, domain.ErrInsufficientPayment)

	require.NoError(t, env.store.SetTariff(ctx, domain.TariffMint, domain.RarityRegular, 50))

	_, err = env.svc.MintPaid(ctx, aliceAddr, domain.RarityRegular, 40)
	assert.ErrorIs(t, err, domain.ErrInsufficientPayment)

	// Covers the price but the buyer has no balance
	_, err = env.svc.MintPaid(ctx, aliceAddr, domain.RarityRegular, 50)
	assert.ErrorIs(t, err, domain.ErrInsufficientBalance)

	env.fund(t, aliceAddr, 100)
	id, err := env.svc.MintPaid(ctx, aliceAddr, domain.RarityRegular, 50)
	require.NoError(t, err)
	assert.Equal(t, domain.AddressKey(aliceAddr), env.asset(t, id).Owner)

	balance, err := env.ledger.BalanceOf(ctx, env.store, aliceAddr)
	require.NoError(t, err)
	assert.Equal(t, int64(50), balance)

	_, err = env.svc.MintPaid(ctx, aliceAddr, domain.RarityDemo, 50)
	assert.ErrorIs(t, err, domain.ErrRarityNotTradeable)
}

func TestMerge(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	a := env.mustMint(t, aliceAddr, domain.RarityRegular, 7)
	b := env.mustMint(t, aliceAddr, domain.RarityRegular, 7)
	require.NoError(t, env.store.SetTariff(ctx, domain.TariffUpgrade, domain.RarityRegular, 20))
	env.fund(t, aliceAddr, 100)

	// Neither card has the required win streak yet
	_, err := env.svc.Merge(ctx, aliceAddr, a, b, 20)
	assert.ErrorIs(t, err, domain.ErrWinsBelowThreshold)

	for _, id := range []uint64{a, b} {
		asset := env.asset(t, id)
		asset.ConsequentWins = 3
		require.NoError(t, env.store.SaveAsset(ctx, asset))
	}

	_, err = env.svc.Merge(ctx, aliceAddr, a, b, 10)
	assert.ErrorIs(t, err, domain.ErrInsufficientPayment)

	merged, err := env.svc.Merge(ctx, aliceAddr, a, b, 20)
	require.NoError(t, err)

	result := env.asset(t, merged)
	assert.Equal(t, domain.RarityRare, result.Rarity)
	assert.Equal(t, uint32(7), result.PartnerID)
	assert.Equal(t, 2, result.LivesRemaining)
	assert.Equal(t, 0, result.ConsequentWins)

	// Both source cards are gone
	for _, id := range []uint64{a, b} {
		gone, err := env.store.GetAsset(ctx, id)
		require.NoError(t, err)
		assert.Nil(t, gone)
	}

	balance, err := env.ledger.BalanceOf(ctx, env.store, aliceAddr)
	require.NoError(t, err)
	assert.Equal(t, int64(80), balance)
}

func TestMergeRejectsMismatches(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	regular := env.mustMint(t, aliceAddr, domain.RarityRegular, 1)
	rare := env.mustMint(t, aliceAddr, domain.RarityRare, 1)
	otherPartner := env.mustMint(t, aliceAddr, domain.RarityRegular, 2)
	bobs := env.mustMint(t, bobAddr, domain.RarityRegular, 1)

	_, err := env.svc.Merge(ctx, aliceAddr, regular, rare, 0)
	assert.ErrorIs(t, err, domain.ErrRarityMismatch)

	_, err = env.svc.Merge(ctx, aliceAddr, regular, otherPartner, 0)
	assert.ErrorIs(t, err, domain.ErrPartnerMismatch)

	_, err = env.svc.Merge(ctx, aliceAddr, regular, bobs, 0)
	assert.ErrorIs(t, err, domain.ErrNotOwner)

	mythicA := env.mustMint(t, aliceAddr, domain.RarityMythic, 1)
	mythicB := env.mustMint(t, aliceAddr, domain.RarityMythic, 1)
	_, err = env.svc.Merge(ctx, aliceAddr, mythicA, mythicB, 0)
	assert.ErrorIs(t, err, domain.ErrRarityAtMax)
}

func TestBurn(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	regular := env.mustMint(t, aliceAddr, domain.RarityRegular, 0)
	require.NoError(t, env.svc.Burn(ctx, aliceAddr, regular))

	demo := env.mustMint(t, aliceAddr, domain.RarityDemo, 0)
	err := env.svc.Burn(ctx, aliceAddr, demo)
	assert.ErrorIs(t, err, domain.ErrDemoBurnTooEarly)

	env.advance(16 * 24 * time.Hour)
	require.NoError(t, env.svc.Burn(ctx, aliceAddr, demo))

	err = env.svc.Burn(ctx, aliceAddr, demo)
	assert.ErrorIs(t, err, domain.ErrAssetNotFound)
}

func TestTransferDemoPolicy(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	demo := env.mustMint(t, aliceAddr, domain.RarityDemo, 0)

	// Demo cards never move to another player
	err := env.svc.Transfer(ctx, aliceAddr, bobAddr, demo)
	assert.ErrorIs(t, err, domain.ErrDemoTransferRestricted)

	// Even the arena is off limits before the minimum age
	err = env.svc.Transfer(ctx, aliceAddr, engineAddr, demo)
	assert.ErrorIs(t, err, domain.ErrDemoTransferRestricted)

	env.advance(6 * 24 * time.Hour)
	require.NoError(t, env.svc.Transfer(ctx, aliceAddr, engineAddr, demo))
	assert.Equal(t, domain.AddressKey(engineAddr), env.asset(t, demo).Owner)

	regular := env.mustMint(t, aliceAddr, domain.RarityRegular, 0)
	require.NoError(t, env.svc.Transfer(ctx, aliceAddr, bobAddr, regular))
	assert.Equal(t, domain.AddressKey(bobAddr), env.asset(t, regular).Owner)
}

func TestTransferDelegated(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	signer := crypto.PubkeyToAddress(key.PublicKey)
	assetID := env.mustMint(t, signer, domain.RarityRegular, 0)

	sig, err := delegated.Sign(delegated.TransferDigest(signer, bobAddr, assetID, 0), key)
	require.NoError(t, err)

	// Wrong nonce fails closed without consuming the counter
	err = env.svc.TransferDelegated(ctx, signer, bobAddr, assetID, 3, sig)
	assert.ErrorIs(t, err, domain.ErrStaleNonce)

	nonce, err := env.store.GetNonce(ctx, domain.AddressKey(signer))
	require.NoError(t, err)
	assert.Equal(t, uint64(0), nonce)

	require.NoError(t, env.svc.TransferDelegated(ctx, signer, bobAddr, assetID, 0, sig))
	assert.Equal(t, domain.AddressKey(bobAddr), env.asset(t, assetID).Owner)

	nonce, err = env.store.GetNonce(ctx, domain.AddressKey(signer))
	require.NoError(t, err)
	assert.Equal(t, uint64(1), nonce)

	// Replaying the spent signature fails on the advanced nonce
	err = env.svc.TransferDelegated(ctx, signer, bobAddr, assetID, 0, sig)
	assert.ErrorIs(t, err, domain.ErrStaleNonce)
}

func TestRestoreLife(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	assetID := env.mustMint(t, aliceAddr, domain.RarityRegular, 0)

	err := env.svc.RestoreLife(ctx, aliceAddr, assetID, 10)
	assert.ErrorIs(t, err, domain.ErrLivesAtCap)

	asset := env.asset(t, assetID)
	asset.LivesRemaining = 1
	require.NoError(t, env.store.SaveAsset(ctx, asset))
	require.NoError(t, env.store.SetTariff(ctx, domain.TariffRestoreLife, domain.RarityRegular, 10))
	env.fund(t, aliceAddr, 50)

	err = env.svc.RestoreLife(ctx, aliceAddr, assetID, 5)
	assert.ErrorIs(t, err, domain.ErrInsufficientPayment)

	require.NoError(t, env.svc.RestoreLife(ctx, aliceAddr, assetID, 10))
	assert.Equal(t, 2, env.asset(t, assetID).LivesRemaining)

	balance, err := env.ledger.BalanceOf(ctx, env.store, aliceAddr)
	require.NoError(t, err)
	assert.Equal(t, int64(40), balance)
}

func TestRestoreLifeDelegatedTamperFailsClosed(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	signer := crypto.PubkeyToAddress(key.PublicKey)

	assetID := env.mustMint(t, signer, domain.RarityRegular, 0)
	asset := env.asset(t, assetID)
	asset.LivesRemaining = 1
	require.NoError(t, env.store.SaveAsset(ctx, asset))
	require.NoError(t, env.store.SetTariff(ctx, domain.TariffRestoreLife, domain.RarityRegular, 10))
	env.fund(t, signer, 50)

	sig, err := delegated.Sign(delegated.RestoreLifeDigest(assetID, 10, 0), key)
	require.NoError(t, err)

	// A relayer bumping the payment invalidates the signature and the
	// failed attempt must not burn the nonce
	err = env.svc.RestoreLifeDelegated(ctx, signer, assetID, 20, 0, sig)
	assert.ErrorIs(t, err, domain.ErrBadSignature)

	nonce, err := env.store.GetNonce(ctx, domain.AddressKey(signer))
	require.NoError(t, err)
	assert.Equal(t, uint64(0), nonce)

	require.NoError(t, env.svc.RestoreLifeDelegated(ctx, signer, assetID, 10, 0, sig))
	assert.Equal(t, 2, env.asset(t, assetID).LivesRemaining)
}

func TestSetTariffRequiresPriceManager(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	err := env.svc.SetTariff(ctx, aliceAddr, domain.TariffMint, domain.RarityRegular, 50)
	assert.ErrorIs(t, err, domain.ErrMissingCapability)

	env.grant(t, aliceAddr, domain.CapabilityPriceManager)
	require.NoError(t, env.svc.SetTariff(ctx, aliceAddr, domain.TariffMint, domain.RarityRegular, 50))

	amount, found, err := env.store.GetTariff(ctx, domain.TariffMint, domain.RarityRegular)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, int64(50), amount)
}
