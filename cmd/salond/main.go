package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"salonbook/internal/api"
	"salonbook/internal/audit"
	"salonbook/internal/availability"
	"salonbook/internal/booking"
	"salonbook/internal/config"
	"salonbook/internal/db"
	"salonbook/internal/events"
	"salonbook/internal/metrics"
	"salonbook/internal/reservation"
)

func main() {
	_ = godotenv.Load()

	// Initialize logger
	output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	logger := zerolog.New(output).With().Timestamp().Logger()
	if lvl, err := zerolog.ParseLevel(os.Getenv("LOG_LEVEL")); err == nil && lvl != zerolog.NoLevel {
		logger = logger.Level(lvl)
	}

	cfg, err := config.Load(os.Getenv("SALON_CONFIG_PATH"))
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	loc, err := cfg.Location()
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid timezone")
	}
	fallback, err := cfg.FallbackPolicy()
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid fallback hours")
	}

	database, err := db.Open(cfg.Database.Path)
	if err != nil {
		logger.Fatal().Err(err).Msg("open db error")
	}
	defer database.Close()

	var rdb *redis.Client
	if cfg.Redis.Address != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.Redis.Address, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		defer rdb.Close()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initial load + hot reload of the salon catalog
	if err := config.WatchCatalog(ctx, cfg.CatalogPath, 30*time.Second, logger, func(updated *config.SalonConfig) {
		if err := database.SyncCatalog(ctx, updated, loc); err != nil {
			logger.Error().Err(err).Msg("failed to apply salon catalog")
			return
		}
		logger.Info().Time("reloaded_at", time.Now()).Msg("salon catalog applied")
	}); err != nil {
		logger.Error().Err(err).Msg("catalog watch failed")
	}

	ledger := reservation.NewLedger(
		holdStore(cfg, rdb),
		holdLocker(cfg, rdb, logger),
		database,
		logger,
		reservation.WithTTL(cfg.HoldTTL()),
	)
	if every := cfg.ReaperInterval(); every > 0 {
		go ledger.RunReaper(ctx, every)
	}

	bus := events.NewEventBus()
	subscribeEventLog(bus, logger)
	if cfg.Audit.Enabled {
		audit.NewRecorder(database, logger).Subscribe(bus)
		auditSvc := audit.NewService(audit.Config{
			ExportDir:     cfg.Audit.ExportDir,
			RetentionDays: cfg.Audit.RetentionDays,
			Location:      loc,
		}, database, database, audit.NewExcelizeWriter, logger)
		go auditSvc.Run(ctx)
	}

	svc := booking.NewService(booking.Deps{
		Catalog:      database,
		Appointments: database,
		Discounts:    database,
		Resolver:     availability.NewResolver(database, fallback, logger),
		Ledger:       ledger,
		Publisher:    bus,
	}, cfg.Granularity(), logger)

	if cfg.Monitoring.HealthCheckPort == 0 {
		cfg.Monitoring.HealthCheckPort = 8090
	}
	go startHealthServer(ctx, cfg.Monitoring.HealthCheckPort, database, rdb, &logger)

	if cfg.Monitoring.PrometheusEnabled {
		if cfg.Monitoring.PrometheusPort == 0 {
			cfg.Monitoring.PrometheusPort = 9090
		}
		metrics.Register()
		go startMetricsServer(ctx, cfg.Monitoring.PrometheusPort, &logger)
	}

	if cfg.Backup.Enabled {
		go startBackupLoop(ctx, database, cfg, &logger)
	}

	server := api.NewHTTPServer(cfg.HTTP.Port, svc, loc,
		api.RateLimit{RPS: cfg.HTTP.RateLimitRPS, Burst: cfg.HTTP.RateLimitBurst}, logger)

	logger.Info().
		Str("hold_backend", cfg.Booking.HoldBackend).
		Str("lock_backend", cfg.Booking.LockBackend).
		Dur("hold_ttl", cfg.HoldTTL()).
		Msg("salon booking engine started")
	if err := server.Start(ctx); err != nil {
		logger.Error().Err(err).Msg("api server error")
	}
}

func holdStore(cfg *config.Config, rdb *redis.Client) reservation.HoldStore {
	if cfg.Booking.HoldBackend == config.BackendRedis {
		return reservation.NewRedisStore(rdb, "")
	}
	return reservation.NewMemoryStore()
}

func holdLocker(cfg *config.Config, rdb *redis.Client, logger zerolog.Logger) reservation.Locker {
	if cfg.Booking.LockBackend == config.BackendRedis {
		return reservation.NewRedisLocker(rdb, 5*time.Second, 2*time.Second, logger)
	}
	return reservation.NewKeyedMutex()
}

func subscribeEventLog(bus *events.EventBus, logger zerolog.Logger) {
	log := logger.With().Str("component", "events").Logger()
	for _, t := range []string{events.HoldCreated, events.HoldReleased, events.BookingConfirmed} {
		bus.Subscribe(t, func(e events.Event) error {
			log.Info().Str("event", e.Type).Str("event_id", e.ID).RawJSON("payload", e.Payload).Msg("domain event")
			return nil
		})
	}
}

func startBackupLoop(ctx context.Context, database *db.DB, cfg *config.Config, logger *zerolog.Logger) {
	if cfg.Backup.Path == "" {
		cfg.Backup.Path = "backups"
	}
	if cfg.Backup.IntervalHours <= 0 {
		cfg.Backup.IntervalHours = 24
	}
	if cfg.Backup.RetentionDays <= 0 {
		cfg.Backup.RetentionDays = 14
	}

	interval := time.Duration(cfg.Backup.IntervalHours) * time.Hour

	// Run first backup after a short delay
	select {
	case <-time.After(1 * time.Minute):
		runBackupTask(ctx, database, cfg, logger)
	case <-ctx.Done():
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			runBackupTask(ctx, database, cfg, logger)
		case <-ctx.Done():
			return
		}
	}
}

func runBackupTask(ctx context.Context, database *db.DB, cfg *config.Config, logger *zerolog.Logger) {
	logger.Info().Str("dir", cfg.Backup.Path).Msg("starting database backup")
	if path, err := database.Backup(ctx, cfg.Backup.Path); err != nil {
		logger.Error().Err(err).Msg("backup failed")
	} else {
		logger.Info().Str("path", path).Msg("backup completed successfully")
	}

	deleted, err := db.CleanupBackups(cfg.Backup.Path, cfg.Backup.RetentionDays)
	if err != nil {
		logger.Error().Err(err).Msg("backup cleanup failed")
	} else if deleted > 0 {
		logger.Info().Int("deleted", deleted).Msg("cleaned up old backups")
	}
}

func startHealthServer(ctx context.Context, port int, database *db.DB, rdb *redis.Client, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		ctxPing, cancel := context.WithTimeout(ctx, time.Second)
		defer cancel()
		if err := database.PingContext(ctxPing); err != nil {
			http.Error(w, "db not ready", http.StatusServiceUnavailable)
			return
		}
		if rdb != nil {
			if err := rdb.Ping(ctxPing).Err(); err != nil {
				http.Error(w, "redis not ready", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("health server error")
	}
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
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("metrics server error")
	}
}
