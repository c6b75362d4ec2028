package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/robfig/cron/v3"
)

// Config holds all application configuration
type Config struct {
	// BallDontLie API
	BallDontLieAPIKey  string        `envconfig:"BALLDONTLIE_API_KEY" required:"true"`
	BallDontLieBaseURL string        `envconfig:"BALLDONTLIE_BASE_URL" default:"https://api.balldontlie.io/v1"`
	ProviderTimeout    time.Duration `envconfig:"PROVIDER_TIMEOUT" default:"30s"`

	// Provider rate limiting and retries
	ProviderMinRequestInterval time.Duration `envconfig:"PROVIDER_MIN_REQUEST_INTERVAL" default:"1s"`
	ProviderMaxAttempts        int           `envconfig:"PROVIDER_MAX_ATTEMPTS" default:"4"`
	ProviderBackoffBase        time.Duration `envconfig:"PROVIDER_BACKOFF_BASE" default:"1s"`
	ProviderBackoffMax         time.Duration `envconfig:"PROVIDER_BACKOFF_MAX" default:"30s"`
	ProviderPageSize           int           `envconfig:"PROVIDER_PAGE_SIZE" default:"100"`
	ProviderBreakerFailures    int           `envconfig:"PROVIDER_BREAKER_FAILURES" default:"5"`
	ProviderBreakerTimeout     time.Duration `envconfig:"PROVIDER_BREAKER_TIMEOUT" default:"60s"`

	// Database
	DatabaseHost     string `envconfig:"DATABASE_HOST" default:"localhost"`
	DatabasePort     int    `envconfig:"DATABASE_PORT" default:"5432"`
	DatabaseName     string `envconfig:"DATABASE_NAME" default:"hoopstats"`
	DatabaseUser     string `envconfig:"DATABASE_USER" default:"hoopstats"`
	DatabasePassword string `envconfig:"DATABASE_PASSWORD" required:"true"`
	DatabaseSSLMode  string `envconfig:"DATABASE_SSL_MODE" default:"disable"`
	MigrateOnStart   bool   `envconfig:"MIGRATE_ON_START" default:"true"`

	// Redis holds the cross-process sync lease
	RedisEnabled  bool   `envconfig:"REDIS_ENABLED" default:"false"`
	RedisHost     string `envconfig:"REDIS_HOST" default:"localhost"`
	RedisPort     int    `envconfig:"REDIS_PORT" default:"6379"`
	RedisPassword string `envconfig:"REDIS_PASSWORD" default:""`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`

	// Application
	AppEnv   string `envconfig:"APP_ENV" default:"development"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	// HTTP server (API, health and metrics)
	HTTPPort         int      `envconfig:"HTTP_PORT" default:"8080"`
	CORSAllowOrigins []string `envconfig:"CORS_ALLOW_ORIGINS" default:"*"`

	// Sync
	SyncCron                string        `envconfig:"SYNC_CRON" default:"0 6 * * *"`
	SyncTimezone            string        `envconfig:"SYNC_TIMEZONE" default:"America/New_York"`
	SyncDefaultLookbackDays int           `envconfig:"SYNC_DEFAULT_LOOKBACK_DAYS" default:"2"`
	SyncLockTTL             time.Duration `envconfig:"SYNC_LOCK_TTL" default:"2h"`

	// Scheduler
	EnableScheduler      bool   `envconfig:"ENABLE_SCHEDULER" default:"true"`
	InitialSyncEnabled   bool   `envconfig:"INITIAL_SYNC_ENABLED" default:"false"`
	InitialSyncStartDate string `envconfig:"INITIAL_SYNC_START_DATE" default:""`
	InitialSyncSeason    int    `envconfig:"INITIAL_SYNC_SEASON" default:"0"`
}

// Load loads configuration from environment variables
// It first attempts to load from .env file if in development mode
func Load() (*Config, error) {
	// Try to load .env file (ignore error if doesn't exist)
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment config: %w", err)
	}

	// Validate
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.BallDontLieAPIKey == "" {
		return fmt.Errorf("BALLDONTLIE_API_KEY is required")
	}

	if c.DatabasePassword == "" {
		return fmt.Errorf("DATABASE_PASSWORD is required")
	}

	if c.ProviderMaxAttempts < 1 {
		return fmt.Errorf("PROVIDER_MAX_ATTEMPTS must be at least 1")
	}

	if c.ProviderPageSize < 1 || c.ProviderPageSize > 100 {
		return fmt.Errorf("PROVIDER_PAGE_SIZE must be between 1 and 100")
	}

	if c.SyncDefaultLookbackDays < 0 {
		return fmt.Errorf("SYNC_DEFAULT_LOOKBACK_DAYS must not be negative")
	}

	if _, err := time.LoadLocation(c.SyncTimezone); err != nil {
		return fmt.Errorf("SYNC_TIMEZONE %q is invalid: %w", c.SyncTimezone, err)
	}

	if _, err := cron.ParseStandard(c.SyncCron); err != nil {
		return fmt.Errorf("SYNC_CRON %q is invalid: %w", c.SyncCron, err)
	}

	if c.InitialSyncEnabled {
		if _, err := time.Parse("2006-01-02", c.InitialSyncStartDate); err != nil {
			return fmt.Errorf("INITIAL_SYNC_START_DATE must be YYYY-MM-DD when INITIAL_SYNC_ENABLED is set")
		}
	}

	return nil
}

// Location returns the timezone used to decide what "today" is for sync
// windows. Validate has already checked it loads.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.SyncTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// InitialSyncSeasonPtr returns the configured initial season, or nil
func (c *Config) InitialSyncSeasonPtr() *int {
	if c.InitialSyncSeason == 0 {
		return nil
	}
	season := c.InitialSyncSeason
	return &season
}

// RedisAddr returns the Redis address
func (c *Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.RedisHost, c.RedisPort)
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// MustLoad loads configuration or panics on error
// Use this in main() where we want to fail fast
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	return cfg
}
