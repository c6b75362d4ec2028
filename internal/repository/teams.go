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

// TeamRepository handles team database operations
type TeamRepository struct {
	db *Database
}

const teamColumns = `id, abbreviation, city, conference, division, full_name, name, created_at, updated_at`

// Upsert inserts or updates a team keyed by its provider id
func (r *TeamRepository) Upsert(ctx context.Context, team *models.Team) (err error) {
	start := time.Now()
	defer func() { observe("upsert", "teams", start, err) }()

	query := `
		INSERT INTO teams (id, abbreviation, city, conference, division, full_name, name)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			abbreviation = EXCLUDED.abbreviation,
			city = EXCLUDED.city,
			conference = EXCLUDED.conference,
			division = EXCLUDED.division,
			full_name = EXCLUDED.full_name,
			name = EXCLUDED.name,
			updated_at = NOW()
		RETURNING created_at, updated_at
	`

	err = r.db.Pool.QueryRow(
		ctx, query,
		team.ID, team.Abbreviation, team.City, team.Conference,
		team.Division, team.FullName, team.Name,
	).Scan(&team.CreatedAt, &team.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to upsert team: %w", classify(err))
	}

	log.Debug().
		Int64("id", team.ID).
		Str("abbreviation", team.Abbreviation).
		Msg("Team upserted")

	return nil
}

// GetByID retrieves a team by its provider id
func (r *TeamRepository) GetByID(ctx context.Context, id int64) (*models.Team, error) {
	query := `SELECT ` + teamColumns + ` FROM teams WHERE id = $1`

	team, err := scanTeam(r.db.Pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: team id=%d", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get team: %w", classify(err))
	}

	return team, nil
}

// GetByAbbreviation retrieves a team by its abbreviation, case-insensitively
func (r *TeamRepository) GetByAbbreviation(ctx context.Context, abbreviation string) (*models.Team, error) {
	query := `SELECT ` + teamColumns + ` FROM teams WHERE upper(abbreviation) = upper($1)`

	team, err := scanTeam(r.db.Pool.QueryRow(ctx, query, abbreviation))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: team abbreviation=%s", ErrNotFound, abbreviation)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get team: %w", classify(err))
	}

	return team, nil
}

// List retrieves all teams
func (r *TeamRepository) List(ctx context.Context) ([]*models.Team, error) {
	query := `SELECT ` + teamColumns + ` FROM teams ORDER BY full_name`

	rows, err := r.db.Pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list teams: %w", classify(err))
	}
	defer rows.Close()

	var teams []*models.Team
	for rows.Next() {
		team, err := scanTeam(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan team: %w", err)
		}
		teams = append(teams, team)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating teams: %w", classify(err))
	}

	return teams, nil
}

// Count returns the total number of teams
func (r *TeamRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.db.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM teams`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count teams: %w", classify(err))
	}
	return count, nil
}

func scanTeam(row pgx.Row) (*models.Team, error) {
	var team models.Team
	err := row.Scan(
		&team.ID, &team.Abbreviation, &team.City, &team.Conference,
		&team.Division, &team.FullName, &team.Name,
		&team.CreatedAt, &team.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &team, nil
}
