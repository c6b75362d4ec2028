package repository

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"hoopstats/ingestion/internal/models"

	"github.com/jackc/pgx/v5"
)

// GameStatRepository handles per-player box score reads
type GameStatRepository struct {
	db *Database
}

const gameStatSelect = `
	SELECT g.id, g.game_date, g.season, g.status, g.postseason,
	       g.home_team_id, g.visitor_team_id, g.home_team_score, g.visitor_team_score,
	       g.created_at, g.updated_at,
	       s.game_id, s.player_id, s.team_id, s.is_home, s.minutes,
	       s.fgm, s.fga, s.fg_pct, s.fg3m, s.fg3a, s.fg3_pct, s.ftm, s.fta, s.ft_pct,
	       s.oreb, s.dreb, s.reb, s.ast, s.stl, s.blk, s.turnover, s.pf, s.pts, s.plus_minus,
	       s.updated_at,
	       opp.id, opp.abbreviation
	FROM game_stats s
	JOIN games g ON g.id = s.game_id
	JOIN teams opp ON opp.id = CASE WHEN s.team_id = g.home_team_id THEN g.visitor_team_id ELSE g.home_team_id END`

// buildGameStatQuery renders the filtered stat query for a player.
// Opponent is resolved against the team the player represented in that
// game, not the player's current team.
func buildGameStatQuery(playerID int64, filter models.GameStatFilter) (string, []any) {
	var sb strings.Builder
	sb.WriteString(gameStatSelect)

	args := []any{playerID}
	sb.WriteString("\n\tWHERE s.player_id = $1")

	next := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}

	if len(filter.Seasons) > 0 {
		sb.WriteString("\n\t  AND g.season = ANY(" + next(filter.Seasons) + ")")
	}
	if filter.From != nil {
		sb.WriteString("\n\t  AND g.game_date >= " + next(models.TruncateDate(*filter.From)))
	}
	if filter.To != nil {
		sb.WriteString("\n\t  AND g.game_date <= " + next(models.TruncateDate(*filter.To)))
	}
	switch filter.Location {
	case models.LocationHome:
		sb.WriteString("\n\t  AND s.is_home")
	case models.LocationAway:
		sb.WriteString("\n\t  AND NOT s.is_home")
	}
	if opp := strings.TrimSpace(filter.Opponent); opp != "" {
		if id, err := strconv.ParseInt(opp, 10, 64); err == nil {
			sb.WriteString("\n\t  AND opp.id = " + next(id))
		} else {
			sb.WriteString("\n\t  AND upper(opp.abbreviation) = upper(" + next(opp) + ")")
		}
	}

	sb.WriteString("\n\tORDER BY g.game_date ASC, g.id ASC")
	return sb.String(), args
}

// Query returns the player's stat lines joined with their games, filtered
// and ordered chronologically.
func (r *GameStatRepository) Query(ctx context.Context, playerID int64, filter models.GameStatFilter) (_ []models.PlayerGameStat, err error) {
	start := time.Now()
	defer func() { observe("query", "game_stats", start, err) }()

	query, args := buildGameStatQuery(playerID, filter)

	rows, err := r.db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query game stats: %w", classify(err))
	}
	defer rows.Close()

	var out []models.PlayerGameStat
	for rows.Next() {
		row, err := scanPlayerGameStat(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan game stat: %w", err)
		}
		out = append(out, row)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating game stats: %w", classify(err))
	}

	return out, nil
}

// ListByGame returns every stat line recorded for a game
func (r *GameStatRepository) ListByGame(ctx context.Context, gameID int64) ([]models.GameStat, error) {
	query := `
		SELECT game_id, player_id, team_id, is_home, minutes,
		       fgm, fga, fg_pct, fg3m, fg3a, fg3_pct, ftm, fta, ft_pct,
		       oreb, dreb, reb, ast, stl, blk, turnover, pf, pts, plus_minus, updated_at
		FROM game_stats
		WHERE game_id = $1
		ORDER BY player_id
	`

	rows, err := r.db.Pool.Query(ctx, query, gameID)
	if err != nil {
		return nil, fmt.Errorf("failed to list game stats: %w", classify(err))
	}
	defer rows.Close()

	var stats []models.GameStat
	for rows.Next() {
		var s models.GameStat
		if err := rows.Scan(
			&s.GameID, &s.PlayerID, &s.TeamID, &s.IsHome, &s.Minutes,
			&s.FGM, &s.FGA, &s.FGPct, &s.FG3M, &s.FG3A, &s.FG3Pct, &s.FTM, &s.FTA, &s.FTPct,
			&s.OReb, &s.DReb, &s.Reb, &s.Ast, &s.Stl, &s.Blk, &s.Turnover, &s.PF, &s.Pts, &s.PlusMinus,
			&s.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan game stat: %w", err)
		}
		stats = append(stats, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating game stats: %w", classify(err))
	}

	return stats, nil
}

// Count returns the total number of stat lines
func (r *GameStatRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.db.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM game_stats`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count game stats: %w", classify(err))
	}
	return count, nil
}

func scanPlayerGameStat(row pgx.Row) (models.PlayerGameStat, error) {
	var out models.PlayerGameStat
	g, s := &out.Game, &out.Stat
	err := row.Scan(
		&g.ID, &g.GameDate, &g.Season, &g.Status, &g.Postseason,
		&g.HomeTeamID, &g.VisitorTeamID, &g.HomeTeamScore, &g.VisitorTeamScore,
		&g.CreatedAt, &g.UpdatedAt,
		&s.GameID, &s.PlayerID, &s.TeamID, &s.IsHome, &s.Minutes,
		&s.FGM, &s.FGA, &s.FGPct, &s.FG3M, &s.FG3A, &s.FG3Pct, &s.FTM, &s.FTA, &s.FTPct,
		&s.OReb, &s.DReb, &s.Reb, &s.Ast, &s.Stl, &s.Blk, &s.Turnover, &s.PF, &s.Pts, &s.PlusMinus,
		&s.UpdatedAt,
		&out.OpponentID, &out.OpponentAbbreviation,
	)
	return out, err
}
