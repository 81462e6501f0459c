package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/maincard-gg/card-arena/internal/adapter"
	"github.com/maincard-gg/card-arena/internal/api/middleware"
	"github.com/maincard-gg/card-arena/internal/api/rest"
	"github.com/maincard-gg/card-arena/internal/api/server"
	"github.com/maincard-gg/card-arena/internal/arena"
	"github.com/maincard-gg/card-arena/internal/config"
	"github.com/maincard-gg/card-arena/internal/domain"
	"github.com/maincard-gg/card-arena/internal/ledger"
	"github.com/maincard-gg/card-arena/internal/logger"
	"github.com/maincard-gg/card-arena/internal/messaging"
	"github.com/maincard-gg/card-arena/internal/providers/jetstream"
	"github.com/maincard-gg/card-arena/internal/registry"
	"github.com/maincard-gg/card-arena/internal/store"
)

var (
	configFile = flag.String("config", "", "Path to configuration file")
	envPath    = flag.String("env", "config/", "Path to environment files")
)

func main() {
	flag.Parse()

	// Load configuration
	config.ChdirRepoRoot()
	cfg, err := config.LoadAPIConfig(*configFile, *envPath)
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize logger with sentry integration
	err = logger.Initialize(logger.Config{
		Debug:           cfg.Debug,
		SentryDSN:       cfg.SentryDSN,
		BreadcrumbLevel: zapcore.InfoLevel,
		Tags: map[string]string{
			"service": "card-arena-api",
		},
	})
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer logger.Flush(2 * time.Second)
	logger.InfoCtx(ctx, "Starting Card Arena API")

	// Connect to database
	db, err := gorm.Open(postgres.Open(cfg.Database.DSN()), &gorm.Config{})
	if err != nil {
		logger.FatalCtx(ctx, "Failed to connect to database", zap.Error(err))
	}

	// Configure connection pool
	if err := store.ConfigureConnectionPool(db, cfg.Database.MaxOpenConns, cfg.Database.MaxIdleConns, cfg.Database.ConnMaxLifetime, cfg.Database.ConnMaxIdleTime); err != nil {
		logger.FatalCtx(ctx, "Failed to configure connection pool", zap.Error(err))
	}

	// Run schema migration
	if err := store.Migrate(db); err != nil {
		logger.FatalCtx(ctx, "Failed to migrate database schema", zap.Error(err))
	}
	logger.InfoCtx(ctx, "Connected to database",
		zap.Int("max_open_conns", cfg.Database.MaxOpenConns),
		zap.Int("max_idle_conns", cfg.Database.MaxIdleConns),
	)

	// Initialize store
	dataStore := store.NewPGStore(db)

	// Bootstrap the administrator grant so a fresh deployment can manage
	// the remaining capabilities through the API
	if cfg.Game.Administrator != "" {
		admin := common.HexToAddress(cfg.Game.Administrator)
		if err := dataStore.GrantCapability(ctx, domain.AddressKey(admin), domain.CapabilityAdministrator); err != nil {
			logger.FatalCtx(ctx, "Failed to bootstrap administrator", zap.Error(err))
		}
	}

	// Connect to NATS JetStream
	var publisher messaging.Publisher = messaging.NopPublisher{}
	if cfg.NATS.URL != "" {
		publisher, err = jetstream.NewPublisher(ctx, jetstream.Config{
			URL:            cfg.NATS.URL,
			StreamName:     cfg.NATS.StreamName,
			MaxReconnects:  cfg.NATS.MaxReconnects,
			ReconnectWait:  cfg.NATS.ReconnectWait,
			ConnectionName: cfg.NATS.ConnectionName,
			PublishRetries: cfg.NATS.PublishRetries,
		})
		if err != nil {
			logger.FatalCtx(ctx, "Failed to connect to NATS", zap.Error(err))
		}
		defer func() { _ = publisher.Close() }()
		logger.InfoCtx(ctx, "Connected to NATS", zap.String("url", cfg.NATS.URL))
	} else {
		logger.WarnCtx(ctx, "NATS URL not configured, arena events will not be published")
	}

	// Wire the services
	engineAccount := common.HexToAddress(cfg.Game.EngineAccount)
	clock := adapter.NewClock()
	rewardLedger := ledger.NewService(engineAccount)

	registryService := registry.NewService(dataStore, rewardLedger, clock, registry.Config{
		StartingLives:      cfg.Game.StartingLives,
		LivesCap:           cfg.Game.LivesCap,
		DemoMinTransferAge: cfg.Game.DemoMinTransferAge,
		DemoMinBurnAge:     cfg.Game.DemoMinBurnAge,
		WinsToUpgrade:      winsToUpgrade(cfg.Game.WinsToUpgrade),
		ArenaAccount:       engineAccount,
	})

	arenaService := arena.NewService(dataStore, rewardLedger, publisher, clock, arena.Config{
		EngineAccount:   engineAccount,
		Cooloff:         cfg.Game.Cooloff,
		DefaultOdds:     cfg.Game.DefaultOdds,
		RewardByLives:   rewardByLives(cfg.Game.RewardByLives),
		DemoMinStakeAge: cfg.Game.DemoMinTransferAge,
	})

	// Create server config
	serverConfig := server.Config{
		Debug:        cfg.Debug,
		Host:         cfg.Server.Host,
		Port:         cfg.Server.Port,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
		Auth: middleware.AuthConfig{
			JWTPublicKey: cfg.Auth.JWTPublicKey,
			APIKeys:      cfg.Auth.APIKeys,
		},
	}

	// Create and start server
	handler := rest.NewHandler(registryService, arenaService, rewardLedger, dataStore)
	srv := server.New(serverConfig, handler)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil {
			errCh <- err
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		logger.InfoCtx(ctx, "Received shutdown signal", zap.String("signal", sig.String()))
		cancel()
	case err := <-errCh:
		logger.ErrorCtx(ctx, err, zap.String("component", "server"))
		cancel()
	}

	// Create shutdown context with timeout (don't use canceled ctx)
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.FatalCtx(shutdownCtx, "Server forced to shutdown", zap.Error(err))
	}

	// Use non-context logger for final message since original ctx is canceled
	logger.Info("API server stopped")
}

// winsToUpgrade converts the config rarity-name map to domain rarities
func winsToUpgrade(raw map[string]int) map[domain.Rarity]int {
	byName := map[string]domain.Rarity{
		"regular":   domain.RarityRegular,
		"rare":      domain.RarityRare,
		"epic":      domain.RarityEpic,
		"legendary": domain.RarityLegendary,
	}
	out := make(map[domain.Rarity]int, len(raw))
	for name, wins := range raw {
		if rarity, ok := byName[name]; ok {
			out[rarity] = wins
		}
	}
	return out
}

// rewardByLives converts the config stringified lives keys to ints
func rewardByLives(raw map[string]int64) map[int]int64 {
	out := make(map[int]int64, len(raw))
	for key, amount := range raw {
		lives, err := strconv.Atoi(key)
		if err != nil {
			continue
		}
		out[lives] = amount
	}
	return out
}
