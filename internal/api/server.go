package api

import (
	"context"
	"time"

	"hoopstats/ingestion/internal/analytics"
	"hoopstats/ingestion/internal/models"
	"hoopstats/ingestion/internal/syncer"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	corslib "github.com/rs/cors"
)

// SyncRunner is the sync engine as seen by the API
type SyncRunner interface {
	DailyRequest(ctx context.Context) (syncer.Request, error)
	InitialRequest(start time.Time, end *time.Time, season *int) syncer.Request
	Run(ctx context.Context, req syncer.Request) (*models.SyncLogEntry, error)
	Start(ctx context.Context, req syncer.Request) error
	State() syncer.State
}

type SyncLogReader interface {
	ListRecent(ctx context.Context, limit int) ([]*models.SyncLogEntry, error)
}

type Analyzer interface {
	SearchPlayers(ctx context.Context, fragment string, limit int) ([]analytics.PlayerRef, error)
	MetricRate(ctx context.Context, playerQuery, metric string, threshold float64, filters analytics.Filters) (*analytics.RateResult, error)
	CompareSeasons(ctx context.Context, playerQuery, metric string, seasonA, seasonB int) (*analytics.ComparisonResult, error)
	PlayerStats(ctx context.Context, playerQuery string, filters analytics.Filters) (*analytics.PlayerStatsResult, error)
}

type HealthChecker interface {
	Health(ctx context.Context) error
}

// Deps are the services the handlers call
type Deps struct {
	Sync     SyncRunner
	SyncLog  SyncLogReader
	Analyzer Analyzer
	Health   HealthChecker

	// CORSAllowOrigins lists the browser origins allowed to call the API
	CORSAllowOrigins []string

	// RunContext parents every sync run started over HTTP, so runs outlive
	// the request but stop when the process shuts down. Defaults to
	// context.Background().
	RunContext context.Context
}

// NewRouter creates the chi router with all middleware and routes
func NewRouter(deps Deps) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))

	c := corslib.New(corslib.Options{
		AllowedOrigins: deps.CORSAllowOrigins,
		AllowedMethods: []string{"GET", "POST", "HEAD", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
		ExposedHeaders: []string{"X-Request-Id"},
	})
	r.Use(c.Handler)

	if deps.RunContext == nil {
		deps.RunContext = context.Background()
	}

	h := &Handler{deps: deps}

	r.Get("/health", h.HealthCheck)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/sync", func(r chi.Router) {
		r.Post("/daily", h.SyncDaily)
		r.Post("/initial", h.SyncInitial)
		r.Get("/status", h.SyncStatus)
	})

	r.Get("/players/search", h.SearchPlayers)

	r.Route("/analytics", func(r chi.Router) {
		r.Get("/metric-rate", h.MetricRate)
		r.Get("/season-comparison", h.SeasonComparison)
		r.Get("/player-stats", h.PlayerStats)
	})

	return r
}
