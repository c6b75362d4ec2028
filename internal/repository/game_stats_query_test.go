package repository

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"hoopstats/ingestion/internal/models"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestBuildGameStatQuery_NoFilters(t *testing.T) {
	query, args := buildGameStatQuery(237, models.GameStatFilter{})

	assert.Contains(t, query, "WHERE s.player_id = $1")
	assert.NotContains(t, query, "$2")
	assert.Equal(t, []any{int64(237)}, args)
	assert.Contains(t, query, "ORDER BY g.game_date ASC, g.id ASC")
}

func TestBuildGameStatQuery_AllFilters(t *testing.T) {
	from := time.Date(2024, 1, 1, 18, 30, 0, 0, time.UTC)
	to := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)

	query, args := buildGameStatQuery(237, models.GameStatFilter{
		Seasons:  []int{2023, 2024},
		From:     &from,
		To:       &to,
		Location: models.LocationHome,
		Opponent: "BOS",
	})

	assert.Contains(t, query, "g.season = ANY($2)")
	assert.Contains(t, query, "g.game_date >= $3")
	assert.Contains(t, query, "g.game_date <= $4")
	assert.Contains(t, query, "AND s.is_home")
	assert.Contains(t, query, "upper(opp.abbreviation) = upper($5)")
	assert.Len(t, args, 5)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), args[2], "From should be truncated to a date")
}

func TestBuildGameStatQuery_OpponentID(t *testing.T) {
	query, args := buildGameStatQuery(1, models.GameStatFilter{Opponent: "14", Location: models.LocationAway})

	assert.Contains(t, query, "opp.id = $2")
	assert.Contains(t, query, "AND NOT s.is_home")
	assert.Equal(t, int64(14), args[1])
}

func TestEscapeLike(t *testing.T) {
	assert.Equal(t, `100\%`, escapeLike("100%"))
	assert.Equal(t, `a\_b`, escapeLike("a_b"))
	assert.Equal(t, `c\\d`, escapeLike(`c\d`))
	assert.Equal(t, "LeBron", escapeLike("LeBron"))
}

func TestClassify(t *testing.T) {
	assert.Nil(t, classify(nil))

	lost := &pgconn.PgError{Code: "08006"}
	assert.ErrorIs(t, classify(lost), ErrStorageUnavailable)

	serialization := &pgconn.PgError{Code: "40001"}
	assert.ErrorIs(t, classify(serialization), ErrConflict)

	unique := &pgconn.PgError{Code: "23505"}
	assert.False(t, errors.Is(classify(unique), ErrStorageUnavailable))

	deadline := fmt.Errorf("query: %w", context.DeadlineExceeded)
	assert.ErrorIs(t, classify(deadline), ErrStorageUnavailable)

	assert.ErrorIs(t, commitError(errors.New("boom")), ErrConflict)
}
