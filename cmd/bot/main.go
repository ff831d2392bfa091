package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"go.uber.org/zap"

	"github.com/ideahatch/booking-bot/internal/ai"
	"github.com/ideahatch/booking-bot/internal/config"
	"github.com/ideahatch/booking-bot/internal/events"
	"github.com/ideahatch/booking-bot/internal/gateway"
	"github.com/ideahatch/booking-bot/internal/observability"
	"github.com/ideahatch/booking-bot/internal/persistence"
	"github.com/ideahatch/booking-bot/internal/policy"
	"github.com/ideahatch/booking-bot/internal/service"
	"github.com/ideahatch/booking-bot/internal/store"
	"github.com/ideahatch/booking-bot/internal/web"
)

// relayMapSize bounds the in-process relay map when Redis is not configured.
const relayMapSize = 2048

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Storage, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	records, guilds, err := buildStores(ctx, cfg.Storage, pg)
	if err != nil {
		logger.Fatal("failed to init stores", zap.Error(err))
	}

	dispatcher := events.NewInMemoryDispatcher()
	service.NewNotificationService(dispatcher, logger).RegisterHandlers()

	metrics := observability.NewMetrics()
	accessPolicy := policy.New(cfg.Discord.Admins)
	coordinator := service.NewTicketCoordinator(service.CoordinatorDependencies{
		Records:         records,
		Guilds:          guilds,
		Policy:          accessPolicy,
		Dispatcher:      dispatcher,
		Metrics:         metrics,
		Logger:          logger,
		ApproveFollowup: cfg.Discord.ApproveFollowup,
	})

	assistant := ai.New(cfg.AI, logger)

	relay, err := buildRelay(cfg, redis)
	if err != nil {
		logger.Fatal("failed to init relay map", zap.Error(err))
	}

	bot, err := gateway.New(cfg.Discord, gateway.Dependencies{
		Coordinator: coordinator,
		Policy:      accessPolicy,
		Assistant:   assistant,
		Relay:       relay,
		Logger:      logger,
	})
	if err != nil {
		logger.Fatal("failed to build discord gateway", zap.Error(err))
	}
	if err := bot.Open(ctx); err != nil {
		logger.Fatal("failed to connect discord gateway", zap.Error(err))
	}
	defer bot.Close() //nolint:errcheck

	bridge := web.NewServer(cfg.Bridge, cfg.App, web.Dependencies{
		Coordinator: coordinator,
		Policy:      accessPolicy,
		Executor:    bot,
		Metrics:     metrics,
		Postgres:    pg,
		Redis:       redis,
		Logger:      logger,
	})
	go func() {
		logger.Info("bridge listening", zap.String("addr", cfg.Bridge.Addr()))
		if err := bridge.Listen(); err != nil {
			logger.Fatal("bridge listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	_ = bridge.Shutdown()
}

// buildStores picks the Postgres-backed stores when a DSN is configured and
// the file-backed ones otherwise.
func buildStores(ctx context.Context, cfg config.StorageConfig, pg *persistence.Postgres) (store.RecordStore, store.GuildConfigStore, error) {
	if pg.Enabled() {
		if err := store.EnsureSchema(ctx, pg.Pool); err != nil {
			return nil, nil, err
		}
		return store.NewPostgresRecordStore(pg.Pool), store.NewPostgresGuildConfigStore(pg.Pool), nil
	}

	records, err := store.NewFileRecordStore(cfg.DataDir)
	if err != nil {
		return nil, nil, err
	}
	guilds, err := store.NewFileGuildConfigStore(filepath.Join(cfg.DataDir, "config.json"))
	if err != nil {
		return nil, nil, err
	}
	return records, guilds, nil
}

func buildRelay(cfg *config.Config, redis *persistence.Redis) (gateway.RelayStore, error) {
	if redis.Enabled() {
		return gateway.NewRedisRelay(redis.Client, cfg.Redis.RelayTTL), nil
	}
	return gateway.NewLRURelay(relayMapSize)
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
