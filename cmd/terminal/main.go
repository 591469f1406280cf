package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"shiftclock/internal/api"
	"shiftclock/internal/clock"
	"shiftclock/internal/config"
	"shiftclock/internal/connectivity"
	"shiftclock/internal/database"
	"shiftclock/internal/events"
	"shiftclock/internal/logging"
	"shiftclock/internal/metrics"
	"shiftclock/internal/models"
	"shiftclock/internal/remote"
	"shiftclock/internal/repository"
	"shiftclock/internal/worker"

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
		defer (func(c io.Closer) { _ = c.Close() })(closer)
	}

	metrics.Register()

	db, err := database.NewDB(cfg.Database.Path, logger)
	if err != nil {
		logger.Error().Err(err).Msg("database initialization failed")
		return err
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	remoteClient := remote.NewClient(
		cfg.Remote.BaseURL,
		cfg.Remote.APIKey,
		time.Duration(cfg.Remote.TimeoutSeconds)*time.Second,
		logger,
	)

	redisClient, actionCache := initActionCache(ctx, cfg, logger)
	defer repository.Close(redisClient)

	monitor := connectivity.NewMonitor(
		remoteClient,
		time.Duration(cfg.Sync.ProbeIntervalSeconds)*time.Second,
		logger,
	)
	go monitor.Start(ctx)

	statusBus := events.NewStatusBus(logger)
	unsubscribe := statusBus.Subscribe(func(ev models.SyncStatusEvent) {
		logger.Debug().
			Str("status", string(ev.Status)).
			Int("queue_count", ev.QueueCount).
			Str("message", ev.Message).
			Msg("sync status")
	})
	defer unsubscribe()

	syncManager := worker.NewSyncManager(
		db, remoteClient, actionCache, statusBus, monitor,
		worker.NewRealClock(),
		worker.Options{
			MaxAttempts:  cfg.Sync.MaxAttempts,
			EntryDelay:   time.Duration(cfg.Sync.EntryDelayMs) * time.Millisecond,
			PollInterval: time.Duration(cfg.Sync.PollIntervalSeconds) * time.Second,
			Backoff:      backoffDurations(cfg.Sync.BackoffSeconds),
		},
		logger,
	)
	go syncManager.Start(ctx)

	clockService := clock.NewService(
		remoteClient, db, actionCache, syncManager, monitor,
		cfg.Terminal.DebounceSeconds,
		time.Duration(cfg.Remote.TimeoutSeconds)*time.Second,
		logger,
	)

	if cfg.Monitoring.PrometheusEnabled {
		go startMetricsServer(cfg.Monitoring.PrometheusPort, logger)
	}

	if !cfg.API.Enabled {
		logger.Info().Msg("API disabled, running sync only")
		<-ctx.Done()
		return nil
	}

	apiServer := api.NewHTTPServer(cfg.API, clockService, syncManager, db, cfg.Sync.MaxAttempts, logger)
	go func() {
		if err := apiServer.Start(); err != nil {
			logger.Error().Err(err).Msg("API server error")
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("API shutdown error")
	}

	logger.Info().Msg("shutdown complete")
	return nil
}

func loadConfigAndLogger() (*config.Config, *zerolog.Logger, io.Closer, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, nil, err
	}

	baseLogger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return nil, nil, nil, err
	}
	logger := baseLogger.With().Str("component", "terminal").Logger()

	return cfg, &logger, closer, nil
}

func initActionCache(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (*redis.Client, *repository.FailoverActionCache) {
	ttl := time.Duration(models.DefaultCacheTTL) * time.Second

	var redisClient *redis.Client
	if cfg.Redis.Address != "" {
		redisClient = repository.NewRedisClient(cfg.Redis)
		if errPing := repository.Ping(ctx, redisClient); errPing != nil {
			logger.Warn().Err(errPing).Msg("Redis unavailable, last-action cache degrades to memory")
		}
	}

	primary := repository.NewRedisActionCache(redisClient, ttl)
	fallback := repository.NewMemoryActionCache(ttl)
	return redisClient, repository.NewFailoverActionCache(primary, fallback, logger)
}

func backoffDurations(seconds []int) []time.Duration {
	out := make([]time.Duration, 0, len(seconds))
	for _, s := range seconds {
		out = append(out, time.Duration(s)*time.Second)
	}
	return out
}

func startMetricsServer(port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	addr := fmt.Sprintf(":%d", port)
	logger.Info().Str("addr", addr).Msg("metrics endpoint listening")
	server := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("metrics server error")
	}
}
