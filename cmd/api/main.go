package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"shareit/internal/api"
	"shareit/internal/config"
	"shareit/internal/database"
	"shareit/internal/domain"
	"shareit/internal/events"
	"shareit/internal/logging"
	"shareit/internal/metrics"
	"shareit/internal/repository"
	"shareit/internal/service"
	"shareit/internal/worker"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	cfg, logger, closer, err := loadConfigAndLogger()
	if err != nil {
		return err
	}
	if closer != nil {
		defer (func() { _ = closer.Close() })()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := initDatabase(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	redisClient := initRedis(ctx, cfg, logger)
	if redisClient != nil {
		defer redisClient.Close()
	}

	catalog := repository.NewCachedCatalog(db, initItemCache(cfg, redisClient, logger), logging.Component(logger, "catalog"))

	var background sync.WaitGroup
	bus := events.NewEventBus()
	startRelay(ctx, cfg, redisClient, bus, &background, logger)
	startBackups(ctx, cfg, db, &background, logger)
	startMetrics(ctx, cfg, logger)

	svcLogger := logging.Component(logger, "booking")
	bookings := service.NewBookingService(db, catalog, db, bus, svcLogger)
	history := service.NewHistoryService(db, db, svcLogger)
	queries := service.NewQueryService(history, db, catalog, db, domain.SystemClock, cfg.Exports, svcLogger)

	err = startServers(ctx, cfg, bookings, queries, readiness(db), logger)

	stop()
	background.Wait()
	logger.Info().Msg("shareit stopped")
	return err
}

func loadConfigAndLogger() (*config.Config, *zerolog.Logger, io.Closer, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load config: %w", err)
	}

	baseLogger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("init logger: %w", err)
	}

	return cfg, logging.Component(baseLogger, "main"), closer, nil
}

func initDatabase(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (*database.DB, error) {
	db, err := database.Open(cfg.Database, logger)
	if err != nil {
		logger.Error().Err(err).Str("driver", cfg.Database.Driver).Msg("init database")
		return nil, err
	}

	if len(cfg.Seed.Users) > 0 || len(cfg.Seed.Items) > 0 {
		if err := db.Seed(ctx, cfg.Seed); err != nil {
			db.Close()
			return nil, fmt.Errorf("seed database: %w", err)
		}
	}
	return db, nil
}

func initRedis(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) *redis.Client {
	if cfg.Redis.Address == "" {
		return nil
	}

	client := repository.NewRedisClient(cfg.Redis)
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := repository.Ping(pingCtx, client); err != nil {
		// клиент оставляем: failover-кэш сам вернётся к Redis, когда тот поднимется
		logger.Warn().Err(err).Msg("redis connection failed, item cache starts on memory fallback")
	} else {
		logger.Info().Str("addr", cfg.Redis.Address).Msg("redis connected")
	}
	return client
}

func initItemCache(cfg *config.Config, client *redis.Client, logger *zerolog.Logger) domain.ItemCache {
	ttl := time.Duration(cfg.Cache.ItemTTL) * time.Second
	memory := repository.NewMemoryItemCache(ttl)
	if client == nil {
		return memory
	}
	return repository.NewFailoverItemCache(
		repository.NewRedisItemCache(client, ttl),
		memory,
		logging.Component(logger, "item_cache"),
	)
}

func startRelay(
	ctx context.Context,
	cfg *config.Config,
	client *redis.Client,
	bus *events.EventBus,
	wg *sync.WaitGroup,
	logger *zerolog.Logger,
) {
	if !cfg.Events.RelayEnabled || client == nil {
		return
	}

	relay := worker.NewEventRelay(client, cfg.Events.Channel, cfg.Events.QueueSize, worker.PolicyFromConfig(cfg.Events.Retry), logger)
	relay.Attach(bus)

	wg.Add(1)
	go func() {
		defer wg.Done()
		relay.Start(ctx)
	}()
}

func startBackups(ctx context.Context, cfg *config.Config, db *database.DB, wg *sync.WaitGroup, logger *zerolog.Logger) {
	if !cfg.Backup.Enabled {
		return
	}
	backups := database.NewBackupService(db, cfg.Backup, logger)

	wg.Add(1)
	go func() {
		defer wg.Done()
		backups.Start(ctx)
	}()
}

// readiness проверяет только базу: без Redis кэш работает из памяти
func readiness(db *database.DB) api.ReadinessCheck {
	return func(ctx context.Context) error {
		if err := db.PingContext(ctx); err != nil {
			return fmt.Errorf("database: %w", err)
		}
		return nil
	}
}

func startMetrics(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) {
	if !cfg.Monitoring.PrometheusEnabled {
		return
	}

	metrics.Register()
	go startMetricsServer(ctx, cfg.Monitoring.PrometheusPort, logger)
}

func startServers(
	ctx context.Context,
	cfg *config.Config,
	bookings domain.BookingService,
	queries api.Queries,
	ready api.ReadinessCheck,
	logger *zerolog.Logger,
) error {
	var grpcServer *api.GRPCServer
	if cfg.API.GRPC.Enabled {
		var err error
		grpcServer, err = api.NewGRPCServer(&cfg.API, bookings, queries, logger)
		if err != nil {
			logger.Error().Err(err).Msg("create grpc server")
			return err
		}
		go func() {
			if err := grpcServer.Serve(); err != nil {
				logger.Error().Err(err).Msg("grpc server stopped")
			}
		}()
	}

	var httpServer *api.HTTPServer
	if cfg.API.HTTP.Enabled {
		httpServer = api.NewHTTPServer(&cfg.API, bookings, queries, ready, logger)
		go func() {
			if err := httpServer.Start(); err != nil {
				logger.Error().Err(err).Msg("http server stopped")
			}
		}()
	}

	if grpcServer == nil && httpServer == nil {
		return errors.New("both http and grpc APIs are disabled")
	}

	logger.Info().
		Bool("grpc", grpcServer != nil).
		Int("grpc_port", cfg.API.GRPC.Port).
		Bool("http", httpServer != nil).
		Int("http_port", cfg.API.HTTP.Port).
		Msg("API server started")

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if grpcServer != nil {
		grpcServer.Shutdown(shutdownCtx)
	}
	if httpServer != nil {
		_ = httpServer.Shutdown(shutdownCtx)
	}

	logger.Info().Msg("API server stopped")
	return nil
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	logger.Info().Int("port", port).Msg("metrics server listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error().Err(err).Msg("metrics server error")
	}
}
