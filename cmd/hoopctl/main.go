// Command hoopctl is the operator CLI for the hoopstats ingestion service.
//
// Usage:
//
//	hoopctl migrate up
//	hoopctl sync daily
//	hoopctl sync initial --start 2023-10-24 --season 2023
//	hoopctl players search "james"
//	hoopctl rate --player "LeBron James" --metric pts --threshold 25 --season 2023
//	hoopctl compare --player 237 --metric reb --season-a 2022 --season-b 2023
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"hoopstats/ingestion/internal/analytics"
	"hoopstats/ingestion/internal/cache"
	"hoopstats/ingestion/internal/client"
	"hoopstats/ingestion/internal/config"
	"hoopstats/ingestion/internal/models"
	"hoopstats/ingestion/internal/repository"
	"hoopstats/ingestion/internal/syncer"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	root := &cobra.Command{
		Use:           "hoopctl",
		Short:         "hoopstats ingestion and analytics CLI",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := zerolog.InfoLevel
			if lvl := os.Getenv("LOG_LEVEL"); lvl != "" {
				if parsed, err := zerolog.ParseLevel(lvl); err == nil {
					level = parsed
				}
			}
			zerolog.SetGlobalLevel(level)
		},
	}

	root.AddCommand(migrateCmd())
	root.AddCommand(syncCmd())
	root.AddCommand(playersCmd())
	root.AddCommand(rateCmd())
	root.AddCommand(compareCmd())
	root.AddCommand(statsCmd())

	if err := root.Execute(); err != nil {
		log.Error().Err(err).Msg("Command failed")
		os.Exit(1)
	}
}

// --------------------------------------------------------------------------
// wiring
// --------------------------------------------------------------------------

func dbConfig(cfg *config.Config) repository.Config {
	return repository.Config{
		Host:     cfg.DatabaseHost,
		Port:     strconv.Itoa(cfg.DatabasePort),
		User:     cfg.DatabaseUser,
		Password: cfg.DatabasePassword,
		Database: cfg.DatabaseName,
		SSLMode:  cfg.DatabaseSSLMode,
	}
}

// runWithDB loads config, opens the database and runs fn with a context
// cancelled on SIGINT/SIGTERM
func runWithDB(fn func(ctx context.Context, cfg *config.Config, db *repository.Database) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := repository.NewDatabase(ctx, dbConfig(cfg))
	if err != nil {
		return err
	}
	defer db.Close()

	return fn(ctx, cfg, db)
}

func newEngine(cfg *config.Config, db *repository.Database) (*syncer.Engine, func()) {
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

	opts := syncer.Options{
		Location:     cfg.Location(),
		LookbackDays: cfg.SyncDefaultLookbackDays,
	}

	cleanup := func() {}
	if cfg.RedisEnabled {
		rc, err := cache.NewRedisCache(cache.Config{
			Host:     cfg.RedisHost,
			Port:     strconv.Itoa(cfg.RedisPort),
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			log.Warn().Err(err).Msg("Redis unavailable - using in-process lock only")
		} else {
			opts.Lock = rc.NewLease(cache.SyncLockKey, cfg.SyncLockTTL)
			cleanup = func() { _ = rc.Close() }
		}
	}

	return syncer.NewEngine(bdl, syncer.StoresFromDatabase(db), opts), cleanup
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func parseDate(flag, value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	d, err := time.Parse(models.DateLayout, value)
	if err != nil {
		return nil, fmt.Errorf("--%s must be YYYY-MM-DD: %w", flag, err)
	}
	return &d, nil
}

// --------------------------------------------------------------------------
// migrate command
// --------------------------------------------------------------------------

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage database schema migrations",
	}

	withManager := func(fn func(mm *repository.MigrationManager) error) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		mm, err := repository.NewMigrationManager(dbConfig(cfg))
		if err != nil {
			return err
		}
		defer mm.Close()
		return fn(mm)
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withManager(func(mm *repository.MigrationManager) error {
				if err := mm.Up(); err != nil {
					return err
				}
				log.Info().Msg("Migrations applied")
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Roll back the last migration",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withManager(func(mm *repository.MigrationManager) error {
				if err := mm.Down(); err != nil {
					return err
				}
				log.Info().Msg("Rolled back one migration")
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the current schema version",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withManager(func(mm *repository.MigrationManager) error {
				version, dirty, err := mm.Version()
				if err != nil {
					return err
				}
				return printJSON(map[string]interface{}{"version": version, "dirty": dirty})
			})
		},
	})

	return cmd
}

// --------------------------------------------------------------------------
// sync command
// --------------------------------------------------------------------------

func syncCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Sync games and box scores from BallDontLie",
	}
	cmd.AddCommand(syncDailyCmd())
	cmd.AddCommand(syncInitialCmd())
	return cmd
}

func syncDailyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "daily",
		Short: "Sync from the last complete date through today",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithDB(func(ctx context.Context, cfg *config.Config, db *repository.Database) error {
				engine, cleanup := newEngine(cfg, db)
				defer cleanup()

				entry, err := engine.RunDaily(ctx)
				if entry != nil {
					if perr := printJSON(entry); perr != nil {
						return perr
					}
				}
				return err
			})
		},
	}
}

func syncInitialCmd() *cobra.Command {
	var start, end string
	var season int
	cmd := &cobra.Command{
		Use:   "initial",
		Short: "Backfill an explicit date range",
		RunE: func(cmd *cobra.Command, args []string) error {
			startDate, err := parseDate("start", start)
			if err != nil {
				return err
			}
			if startDate == nil {
				return fmt.Errorf("--start is required")
			}
			endDate, err := parseDate("end", end)
			if err != nil {
				return err
			}
			var seasonPtr *int
			if cmd.Flags().Changed("season") {
				seasonPtr = &season
			}

			return runWithDB(func(ctx context.Context, cfg *config.Config, db *repository.Database) error {
				engine, cleanup := newEngine(cfg, db)
				defer cleanup()

				entry, err := engine.RunInitial(ctx, *startDate, endDate, seasonPtr)
				if entry != nil {
					if perr := printJSON(entry); perr != nil {
						return perr
					}
				}
				return err
			})
		},
	}
	cmd.Flags().StringVar(&start, "start", "", "First date to sync (YYYY-MM-DD)")
	cmd.Flags().StringVar(&end, "end", "", "Last date to sync (YYYY-MM-DD, default today)")
	cmd.Flags().IntVar(&season, "season", 0, "Restrict to one season")
	return cmd
}

// --------------------------------------------------------------------------
// analytics commands
// --------------------------------------------------------------------------

func playersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "players",
		Short: "Look up players",
	}
	var limit int
	search := &cobra.Command{
		Use:   "search <name>",
		Short: "Find players by name fragment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithDB(func(ctx context.Context, cfg *config.Config, db *repository.Database) error {
				players, err := analytics.NewAnalyzer(db.Players, db.GameStats).SearchPlayers(ctx, args[0], limit)
				if err != nil {
					return err
				}
				return printJSON(players)
			})
		},
	}
	search.Flags().IntVar(&limit, "limit", 20, "Maximum results")
	cmd.AddCommand(search)
	return cmd
}

func rateCmd() *cobra.Command {
	var (
		player, metric, location, opponent, from, to string
		threshold                                    float64
		season, window                               int
	)
	cmd := &cobra.Command{
		Use:   "rate",
		Short: "How often a player reached a threshold",
		RunE: func(cmd *cobra.Command, args []string) error {
			loc, err := models.ParseLocation(location)
			if err != nil {
				return err
			}
			filters := analytics.Filters{Location: loc, Opponent: opponent, WindowSize: window}
			if cmd.Flags().Changed("season") {
				filters.Season = &season
			}
			if filters.From, err = parseDate("from", from); err != nil {
				return err
			}
			if filters.To, err = parseDate("to", to); err != nil {
				return err
			}

			return runWithDB(func(ctx context.Context, cfg *config.Config, db *repository.Database) error {
				result, err := analytics.NewAnalyzer(db.Players, db.GameStats).MetricRate(ctx, player, metric, threshold, filters)
				if err != nil {
					return err
				}
				return printJSON(result)
			})
		},
	}
	cmd.Flags().StringVar(&player, "player", "", "Player id or name")
	cmd.Flags().StringVar(&metric, "metric", "pts", "Metric name")
	cmd.Flags().Float64Var(&threshold, "threshold", 0, "Inclusive threshold")
	cmd.Flags().IntVar(&season, "season", 0, "Season year")
	cmd.Flags().StringVar(&location, "location", "", "home or away")
	cmd.Flags().StringVar(&opponent, "opponent", "", "Opponent abbreviation or team id")
	cmd.Flags().StringVar(&from, "from", "", "First game date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&to, "to", "", "Last game date (YYYY-MM-DD)")
	cmd.Flags().IntVar(&window, "window", 0, "Rolling window size in games")
	_ = cmd.MarkFlagRequired("player")
	_ = cmd.MarkFlagRequired("threshold")
	return cmd
}

func compareCmd() *cobra.Command {
	var (
		player, metric   string
		seasonA, seasonB int
	)
	cmd := &cobra.Command{
		Use:   "compare",
		Short: "Compare a player's metric across two seasons",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithDB(func(ctx context.Context, cfg *config.Config, db *repository.Database) error {
				result, err := analytics.NewAnalyzer(db.Players, db.GameStats).CompareSeasons(ctx, player, metric, seasonA, seasonB)
				if err != nil {
					return err
				}
				return printJSON(result)
			})
		},
	}
	cmd.Flags().StringVar(&player, "player", "", "Player id or name")
	cmd.Flags().StringVar(&metric, "metric", "pts", "Metric name")
	cmd.Flags().IntVar(&seasonA, "season-a", 0, "Baseline season")
	cmd.Flags().IntVar(&seasonB, "season-b", 0, "Comparison season")
	_ = cmd.MarkFlagRequired("player")
	_ = cmd.MarkFlagRequired("season-a")
	_ = cmd.MarkFlagRequired("season-b")
	return cmd
}

func statsCmd() *cobra.Command {
	var (
		player, location, opponent string
		season                     int
	)
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Per-game averages and shooting percentages for a player",
		RunE: func(cmd *cobra.Command, args []string) error {
			loc, err := models.ParseLocation(location)
			if err != nil {
				return err
			}
			filters := analytics.Filters{Location: loc, Opponent: opponent}
			if cmd.Flags().Changed("season") {
				filters.Season = &season
			}

			return runWithDB(func(ctx context.Context, cfg *config.Config, db *repository.Database) error {
				result, err := analytics.NewAnalyzer(db.Players, db.GameStats).PlayerStats(ctx, player, filters)
				if err != nil {
					return err
				}
				return printJSON(result)
			})
		},
	}
	cmd.Flags().StringVar(&player, "player", "", "Player id or name")
	cmd.Flags().IntVar(&season, "season", 0, "Season year")
	cmd.Flags().StringVar(&location, "location", "", "home or away")
	cmd.Flags().StringVar(&opponent, "opponent", "", "Opponent abbreviation or team id")
	_ = cmd.MarkFlagRequired("player")
	return cmd
}
