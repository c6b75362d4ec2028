package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"hoopstats/ingestion/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"
)

// PlayerRepository handles player database operations
type PlayerRepository struct {
	db *Database
}

const playerColumns = `id, first_name, last_name, full_name, position, team_id, created_at, updated_at`

// Upsert inserts or updates a player keyed by provider id.
// Only the name, position and current team change on update.
func (r *PlayerRepository) Upsert(ctx context.Context, player *models.Player) (err error) {
	start := time.Now()
	defer func() { observe("upsert", "players", start, err) }()

	query := `
		INSERT INTO players (id, first_name, last_name, full_name, position, team_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			first_name = EXCLUDED.first_name,
			last_name = EXCLUDED.last_name,
			full_name = EXCLUDED.full_name,
			position = COALESCE(EXCLUDED.position, players.position),
			team_id = COALESCE(EXCLUDED.team_id, players.team_id),
			updated_at = NOW()
		RETURNING created_at, updated_at
	`

	err = r.db.Pool.QueryRow(
		ctx, query,
		player.ID, player.FirstName, player.LastName, player.FullName,
		player.Position, player.TeamID,
	).Scan(&player.CreatedAt, &player.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to upsert player: %w", classify(err))
	}

	log.Debug().
		Int64("id", player.ID).
		Str("name", player.FullName).
		Msg("Player upserted")

	return nil
}

// GetByID retrieves a player by provider id
func (r *PlayerRepository) GetByID(ctx context.Context, id int64) (*models.Player, error) {
	query := `SELECT ` + playerColumns + ` FROM players WHERE id = $1`

	player, err := scanPlayer(r.db.Pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: player id=%d", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get player: %w", classify(err))
	}

	return player, nil
}

// FindByNameFragment returns players whose full name contains fragment,
// case-insensitively. Exact full-name matches come first, the rest are
// ordered alphabetically.
func (r *PlayerRepository) FindByNameFragment(ctx context.Context, fragment string, limit int) (_ []*models.Player, err error) {
	start := time.Now()
	defer func() { observe("search", "players", start, err) }()

	fragment = strings.Join(strings.Fields(fragment), " ")
	if fragment == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = 20
	}

	query := `
		SELECT ` + playerColumns + `
		FROM players
		WHERE full_name ILIKE '%' || $1 || '%' ESCAPE '\'
		ORDER BY (lower(full_name) = lower($2)) DESC, full_name ASC, id ASC
		LIMIT $3
	`

	rows, err := r.db.Pool.Query(ctx, query, escapeLike(fragment), fragment, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search players: %w", classify(err))
	}
	defer rows.Close()

	var players []*models.Player
	for rows.Next() {
		player, err := scanPlayer(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan player: %w", err)
		}
		players = append(players, player)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating players: %w", classify(err))
	}

	return players, nil
}

// Count returns the total number of players
func (r *PlayerRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.db.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM players`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count players: %w", classify(err))
	}
	return count, nil
}

func scanPlayer(row pgx.Row) (*models.Player, error) {
	var player models.Player
	err := row.Scan(
		&player.ID, &player.FirstName, &player.LastName, &player.FullName,
		&player.Position, &player.TeamID,
		&player.CreatedAt, &player.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &player, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// escapeLike escapes LIKE wildcards so user input matches literally
func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
