package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"hoopstats/ingestion/internal/analytics"
	"hoopstats/ingestion/internal/api"
	"hoopstats/ingestion/internal/cache"
	"hoopstats/ingestion/internal/client"
	"hoopstats/ingestion/internal/config"
	"hoopstats/ingestion/internal/metrics"
	"hoopstats/ingestion/internal/models"
	"hoopstats/ingestion/internal/repository"
	"hoopstats/ingestion/internal/scheduler"
	"hoopstats/ingestion/internal/syncer"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	// Setup logger
	setupLogger()

	log.Info().Msg("Starting hoopstats ingestion worker")

	// Load configuration
	cfg := config.MustLoad()
	log.Info().
		Str("env", cfg.AppEnv).
		Str("log_level", cfg.LogLevel).
		Msg("Configuration loaded")

	// Create context that listens for cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Setup graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		log.Info().Msg("Received shutdown signal, gracefully shutting down...")
		cancel()
	}()

	dbConfig := repository.Config{
		Host:     cfg.DatabaseHost,
		Port:     strconv.Itoa(cfg.DatabasePort),
		User:     cfg.DatabaseUser,
		Password: cfg.DatabasePassword,
		Database: cfg.DatabaseName,
		SSLMode:  cfg.DatabaseSSLMode,
	}

	// Apply schema migrations before opening the pool
	if cfg.MigrateOnStart {
		if err := runMigrations(dbConfig); err != nil {
			log.Fatal().Err(err).Msg("Failed to apply migrations")
		}
	}

	// Initialize database connection
	db, err := repository.NewDatabase(ctx, dbConfig)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer db.Close()
	log.Info().Msg("Database connection established")

	// Initialize BallDontLie client
	bdl := client.NewClient(client.Options{
		BaseURL:            cfg.BallDontLieBaseURL,
		APIKey:             cfg.BallDontLieAPIKey,
		Timeout:            cfg.ProviderTimeout,
		MinRequestInterval: cfg.ProviderMinRequestInterval,
		MaxAttempts:        cfg.ProviderMaxAttempts,
		BackoffBase:        cfg.ProviderBackoffBase,
		BackoffMax:         cfg.ProviderBackoffMax,
		PageSize:           cfg.ProviderPageSize,
		BreakerFailures:    cfg.ProviderBreakerFailures,
		BreakerTimeout:     cfg.ProviderBreakerTimeout,
	})
	log.Info().Str("base_url", cfg.BallDontLieBaseURL).Msg("BallDontLie client initialized")

	engineOpts := syncer.Options{
		Location:     cfg.Location(),
		LookbackDays: cfg.SyncDefaultLookbackDays,
	}

	// Initialize Redis lease
	if cfg.RedisEnabled {
		redisCache, err := cache.NewRedisCache(cache.Config{
			Host:     cfg.RedisHost,
			Port:     strconv.Itoa(cfg.RedisPort),
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			log.Warn().Err(err).Msg("Failed to connect to Redis - continuing with in-process lock only")
		} else {
			defer redisCache.Close()
			engineOpts.Lock = redisCache.NewLease(cache.SyncLockKey, cfg.SyncLockTTL)
			log.Info().Str("key", cache.SyncLockKey).Dur("ttl", cfg.SyncLockTTL).Msg("Redis sync lease enabled")
		}
	}

	engine := syncer.NewEngine(bdl, syncer.StoresFromDatabase(db), engineOpts)
	analyzer := analytics.NewAnalyzer(db.Players, db.GameStats)

	// Start HTTP server (API, health, metrics)
	server := &http.Server{
		Addr: fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler: api.NewRouter(api.Deps{
			Sync:     engine,
			SyncLog:  db.SyncLog,
			Analyzer: analyzer,
			Health:   db,

			RunContext:       ctx,
			CORSAllowOrigins: cfg.CORSAllowOrigins,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Info().Int("port", cfg.HTTPPort).Msg("Starting HTTP server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("HTTP server failed")
			cancel()
		}
	}()

	// Update system uptime and pool metrics
	startTime := time.Now()
	go func() {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				metrics.SystemUptime.Set(time.Since(startTime).Seconds())
				db.RecordPoolStats()
			case <-ctx.Done():
				return
			}
		}
	}()

	// Run initial sync if enabled
	var initialSync sync.WaitGroup
	if cfg.InitialSyncEnabled {
		initialSync.Add(1)
		go func() {
			defer initialSync.Done()
			runInitialSync(ctx, engine, cfg)
		}()
	}

	// Create and start scheduler
	sched := scheduler.NewScheduler(engine, cfg.SyncCron, cfg.Location())

	if cfg.EnableScheduler {
		log.Info().Msg("Starting scheduler...")
		if err := sched.Start(ctx); err != nil {
			log.Fatal().Err(err).Msg("Failed to start scheduler")
		}
	}

	// Keep running until context is cancelled
	<-ctx.Done()

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	log.Info().Msg("Shutting down scheduler...")
	if err := sched.Stop(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("Scheduler did not stop cleanly")
	}

	log.Info().Msg("Shutting down HTTP server...")
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("HTTP server did not stop cleanly")
	}

	// Runs see the cancelled ctx and stop at the next game boundary;
	// the pool must stay open until they have written their sync log.
	log.Info().Msg("Waiting for in-flight sync runs...")
	initialSync.Wait()
	if err := engine.Wait(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("Sync run still active at shutdown")
	}

	log.Info().Msg("Worker shutdown complete")
}

// setupLogger configures the zerolog logger
func setupLogger() {
	// Pretty console logging in development
	if os.Getenv("APP_ENV") == "development" {
		log.Logger = log.Output(zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		})
	}

	// Set log level
	level := zerolog.InfoLevel
	if lvl := os.Getenv("LOG_LEVEL"); lvl != "" {
		parsedLevel, err := zerolog.ParseLevel(lvl)
		if err == nil {
			level = parsedLevel
		}
	}
	zerolog.SetGlobalLevel(level)

	log.Info().
		Str("level", level.String()).
		Msg("Logger initialized")
}

// runMigrations applies all pending migrations
func runMigrations(cfg repository.Config) error {
	mm, err := repository.NewMigrationManager(cfg)
	if err != nil {
		return err
	}
	defer mm.Close()

	if err := mm.Up(); err != nil {
		return err
	}

	version, dirty, err := mm.Version()
	if err != nil {
		return err
	}
	log.Info().Uint("version", version).Bool("dirty", dirty).Msg("Database schema up to date")
	return nil
}

// runInitialSync backfills from INITIAL_SYNC_START_DATE through today
func runInitialSync(ctx context.Context, engine *syncer.Engine, cfg *config.Config) {
	start, err := time.Parse(models.DateLayout, cfg.InitialSyncStartDate)
	if err != nil {
		log.Error().Err(err).Msg("Invalid initial sync start date")
		return
	}

	log.Info().
		Str("start_date", cfg.InitialSyncStartDate).
		Int("season", cfg.InitialSyncSeason).
		Msg("Running initial data sync...")

	entry, err := engine.RunInitial(ctx, start, nil, cfg.InitialSyncSeasonPtr())
	if err != nil {
		log.Error().Err(err).Msg("Initial sync failed, continuing anyway...")
		return
	}

	log.Info().
		Str("run_id", entry.RunID.String()).
		Str("status", string(entry.Status)).
		Int("games_upserted", entry.GamesUpserted).
		Msg("Initial sync completed")
}
