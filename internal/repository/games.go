package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"hoopstats/ingestion/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"
)

// GameRepository handles game database operations
type GameRepository struct {
	db *Database
}

const gameColumns = `id, game_date, season, status, postseason, home_team_id, visitor_team_id,
	home_team_score, visitor_team_score, created_at, updated_at`

// UpsertWithStats writes a game and its complete set of stat lines in one
// transaction. Lines for players missing from stats are removed, so the
// stored set always equals the last set written. On any error nothing from
// this call is visible.
func (r *GameRepository) UpsertWithStats(ctx context.Context, game *models.Game, stats []models.GameStat) (err error) {
	start := time.Now()
	defer func() { observe("upsert_with_stats", "games", start, err) }()

	playerIDs := make([]int64, 0, len(stats))
	for i := range stats {
		if stats[i].GameID != game.ID {
			return fmt.Errorf("stat line for player %d belongs to game %d, not %d",
				stats[i].PlayerID, stats[i].GameID, game.ID)
		}
		playerIDs = append(playerIDs, stats[i].PlayerID)
	}

	err = r.db.WithTx(ctx, func(tx pgx.Tx) error {
		if err := upsertGame(ctx, tx, game); err != nil {
			return err
		}

		_, err := tx.Exec(ctx,
			`DELETE FROM game_stats WHERE game_id = $1 AND NOT (player_id = ANY($2))`,
			game.ID, playerIDs,
		)
		if err != nil {
			return fmt.Errorf("failed to prune stat lines: %w", classify(err))
		}

		if len(stats) == 0 {
			return nil
		}

		batch := &pgx.Batch{}
		for i := range stats {
			queueStatUpsert(batch, &stats[i])
		}

		results := tx.SendBatch(ctx, batch)
		for i := range stats {
			if _, err := results.Exec(); err != nil {
				results.Close()
				return fmt.Errorf("failed to upsert stat line for player %d: %w", stats[i].PlayerID, classify(err))
			}
		}
		if err := results.Close(); err != nil {
			return fmt.Errorf("failed to upsert stat lines: %w", classify(err))
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to upsert game %d with stats: %w", game.ID, err)
	}

	log.Debug().
		Int64("game_id", game.ID).
		Int("stat_lines", len(stats)).
		Str("status", game.Status).
		Msg("Game upserted with stats")

	return nil
}

func upsertGame(ctx context.Context, tx pgx.Tx, game *models.Game) error {
	query := `
		INSERT INTO games (
			id, game_date, season, status, postseason,
			home_team_id, visitor_team_id, home_team_score, visitor_team_score
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			game_date = EXCLUDED.game_date,
			season = EXCLUDED.season,
			status = EXCLUDED.status,
			postseason = EXCLUDED.postseason,
			home_team_id = EXCLUDED.home_team_id,
			visitor_team_id = EXCLUDED.visitor_team_id,
			home_team_score = EXCLUDED.home_team_score,
			visitor_team_score = EXCLUDED.visitor_team_score,
			updated_at = NOW()
		RETURNING created_at, updated_at
	`

	err := tx.QueryRow(
		ctx, query,
		game.ID, game.GameDate, game.Season, game.Status, game.Postseason,
		game.HomeTeamID, game.VisitorTeamID, game.HomeTeamScore, game.VisitorTeamScore,
	).Scan(&game.CreatedAt, &game.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert game: %w", classify(err))
	}
	return nil
}

func queueStatUpsert(batch *pgx.Batch, s *models.GameStat) {
	batch.Queue(`
		INSERT INTO game_stats (
			game_id, player_id, team_id, is_home, minutes,
			fgm, fga, fg_pct, fg3m, fg3a, fg3_pct, ftm, fta, ft_pct,
			oreb, dreb, reb, ast, stl, blk, turnover, pf, pts, plus_minus
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8, $9, $10, $11, $12, $13, $14,
			$15, $16, $17, $18, $19, $20, $21, $22, $23, $24
		)
		ON CONFLICT (game_id, player_id) DO UPDATE SET
			team_id = EXCLUDED.team_id,
			is_home = EXCLUDED.is_home,
			minutes = EXCLUDED.minutes,
			fgm = EXCLUDED.fgm,
			fga = EXCLUDED.fga,
			fg_pct = EXCLUDED.fg_pct,
			fg3m = EXCLUDED.fg3m,
			fg3a = EXCLUDED.fg3a,
			fg3_pct = EXCLUDED.fg3_pct,
			ftm = EXCLUDED.ftm,
			fta = EXCLUDED.fta,
			ft_pct = EXCLUDED.ft_pct,
			oreb = EXCLUDED.oreb,
			dreb = EXCLUDED.dreb,
			reb = EXCLUDED.reb,
			ast = EXCLUDED.ast,
			stl = EXCLUDED.stl,
			blk = EXCLUDED.blk,
			turnover = EXCLUDED.turnover,
			pf = EXCLUDED.pf,
			pts = EXCLUDED.pts,
			plus_minus = EXCLUDED.plus_minus,
			updated_at = NOW()
	`,
		s.GameID, s.PlayerID, s.TeamID, s.IsHome, s.Minutes,
		s.FGM, s.FGA, s.FGPct, s.FG3M, s.FG3A, s.FG3Pct, s.FTM, s.FTA, s.FTPct,
		s.OReb, s.DReb, s.Reb, s.Ast, s.Stl, s.Blk, s.Turnover, s.PF, s.Pts, s.PlusMinus,
	)
}

// GetByID retrieves a game by provider id
func (r *GameRepository) GetByID(ctx context.Context, id int64) (*models.Game, error) {
	query := `SELECT ` + gameColumns + ` FROM games WHERE id = $1`

	var game models.Game
	err := r.db.Pool.QueryRow(ctx, query, id).Scan(
		&game.ID, &game.GameDate, &game.Season, &game.Status, &game.Postseason,
		&game.HomeTeamID, &game.VisitorTeamID, &game.HomeTeamScore, &game.VisitorTeamScore,
		&game.CreatedAt, &game.UpdatedAt,
	)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: game id=%d", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get game: %w", classify(err))
	}

	return &game, nil
}

// Count returns the total number of games
func (r *GameRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.db.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM games`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count games: %w", classify(err))
	}
	return count, nil
}
