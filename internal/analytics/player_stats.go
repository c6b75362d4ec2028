package analytics

import (
	"context"
	"fmt"
	"math"
	"time"

	"hoopstats/ingestion/internal/models"
)

// MetricAverage is a per-game mean over the games that reported the metric
type MetricAverage struct {
	Games int      `json:"games"`
	Mean  *float64 `json:"mean"`
}

// Shooting is made over attempted, summed across games. Pct is a
// percentage rounded to one decimal and nil when nothing was attempted.
type Shooting struct {
	Made      int      `json:"made"`
	Attempted int      `json:"attempted"`
	Pct       *float64 `json:"pct"`
}

// PlayerStatsResult summarizes a player's box scores over filtered games
type PlayerStatsResult struct {
	Player           PlayerRef                       `json:"player"`
	GamesPlayed      int                             `json:"games_played"`
	InsufficientData bool                            `json:"insufficient_data"`
	Averages         map[models.Metric]MetricAverage `json:"averages"`
	FieldGoals       Shooting                        `json:"field_goals"`
	Threes           Shooting                        `json:"threes"`
	FreeThrows       Shooting                        `json:"free_throws"`
}

// PlayerStats averages every supported metric over the games matching
// filters and totals the shooting lines. WindowSize is ignored.
func (a *Analyzer) PlayerStats(ctx context.Context, playerQuery string, filters Filters) (_ *PlayerStatsResult, err error) {
	start := time.Now()
	defer func() { observe("player_stats", start, err) }()

	if err := filters.validate(); err != nil {
		return nil, err
	}

	player, err := a.ResolvePlayer(ctx, playerQuery)
	if err != nil {
		return nil, err
	}

	rows, err := a.stats.Query(ctx, player.ID, filters.gameStatFilter())
	if err != nil {
		return nil, fmt.Errorf("failed to load games for player %d: %w", player.ID, err)
	}

	result := &PlayerStatsResult{
		Player:           refOf(player),
		GamesPlayed:      len(rows),
		InsufficientData: len(rows) == 0,
		Averages:         averages(rows),
		FieldGoals:       shooting(rows, models.MetricFieldGoalsMade, models.MetricFieldGoalsAttempted),
		Threes:           shooting(rows, models.MetricThreesMade, models.MetricThreesAttempted),
		FreeThrows:       shooting(rows, models.MetricFreeThrowsMade, models.MetricFreeThrowsAttempted),
	}

	return result, nil
}

func averages(rows []models.PlayerGameStat) map[models.Metric]MetricAverage {
	out := make(map[models.Metric]MetricAverage, len(models.Metrics()))
	for _, metric := range models.Metrics() {
		var avg MetricAverage
		var total float64
		for i := range rows {
			if v, ok := metric.Value(&rows[i].Stat); ok {
				avg.Games++
				total += v
			}
		}
		if avg.Games > 0 {
			mean := total / float64(avg.Games)
			avg.Mean = &mean
		}
		out[metric] = avg
	}
	return out
}

// shooting only counts games that reported both made and attempted
func shooting(rows []models.PlayerGameStat, made, attempted models.Metric) Shooting {
	var s Shooting
	for i := range rows {
		m, okMade := made.Value(&rows[i].Stat)
		att, okAtt := attempted.Value(&rows[i].Stat)
		if !okMade || !okAtt {
			continue
		}
		s.Made += int(m)
		s.Attempted += int(att)
	}

	if s.Attempted > 0 {
		pct := math.Round(float64(s.Made)/float64(s.Attempted)*1000) / 10
		s.Pct = &pct
	}
	return s
}
