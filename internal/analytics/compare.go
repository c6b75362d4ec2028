package analytics

import (
	"context"
	"fmt"
	"time"

	"hoopstats/ingestion/internal/models"
)

// Trend describes the direction of a season-over-season change
type Trend string

const (
	TrendIncreased Trend = "increased"
	TrendDecreased Trend = "decreased"
	TrendUnchanged Trend = "unchanged"
)

// SeasonAggregate summarizes a metric over one season
type SeasonAggregate struct {
	Season           int      `json:"season"`
	Games            int      `json:"games"`
	Total            float64  `json:"total"`
	Mean             *float64 `json:"mean"`
	InsufficientData bool     `json:"insufficient_data"`
}

// SeasonDelta is season B minus season A
type SeasonDelta struct {
	Mean  float64 `json:"mean"`
	Total float64 `json:"total"`
	Games int     `json:"games"`
}

// ComparisonResult compares a metric across two seasons
type ComparisonResult struct {
	Player        PlayerRef       `json:"player"`
	Metric        models.Metric   `json:"metric"`
	SeasonA       SeasonAggregate `json:"season_a"`
	SeasonB       SeasonAggregate `json:"season_b"`
	Delta         *SeasonDelta    `json:"delta"`
	PercentChange *float64        `json:"percent_change"`
	Trend         Trend           `json:"trend,omitempty"`
}

// CompareSeasons aggregates metric for seasonA and seasonB and reports the
// change from A to B. Delta is nil unless both seasons have data.
func (a *Analyzer) CompareSeasons(ctx context.Context, playerQuery, metricName string, seasonA, seasonB int) (_ *ComparisonResult, err error) {
	start := time.Now()
	defer func() { observe("season_comparison", start, err) }()

	metric, err := models.ParseMetric(metricName)
	if err != nil {
		return nil, err
	}
	if seasonA <= 0 || seasonB <= 0 {
		return nil, fmt.Errorf("%w: seasons must be positive years", ErrInvalidQuery)
	}

	player, err := a.ResolvePlayer(ctx, playerQuery)
	if err != nil {
		return nil, err
	}

	rows, err := a.stats.Query(ctx, player.ID, models.GameStatFilter{Seasons: []int{seasonA, seasonB}})
	if err != nil {
		return nil, fmt.Errorf("failed to load seasons for player %d: %w", player.ID, err)
	}

	result := &ComparisonResult{
		Player:  refOf(player),
		Metric:  metric,
		SeasonA: aggregate(rows, metric, seasonA),
		SeasonB: aggregate(rows, metric, seasonB),
	}

	if result.SeasonA.InsufficientData || result.SeasonB.InsufficientData {
		return result, nil
	}

	meanA, meanB := *result.SeasonA.Mean, *result.SeasonB.Mean
	result.Delta = &SeasonDelta{
		Mean:  meanB - meanA,
		Total: result.SeasonB.Total - result.SeasonA.Total,
		Games: result.SeasonB.Games - result.SeasonA.Games,
	}

	if meanA != 0 {
		pct := (meanB - meanA) / meanA * 100
		result.PercentChange = &pct
	}

	switch {
	case result.Delta.Mean > 0:
		result.Trend = TrendIncreased
	case result.Delta.Mean < 0:
		result.Trend = TrendDecreased
	default:
		result.Trend = TrendUnchanged
	}

	return result, nil
}

func aggregate(rows []models.PlayerGameStat, metric models.Metric, season int) SeasonAggregate {
	agg := SeasonAggregate{Season: season}
	for i := range rows {
		if rows[i].Game.Season != season {
			continue
		}
		if v, ok := metric.Value(&rows[i].Stat); ok {
			agg.Games++
			agg.Total += v
		}
	}

	if agg.Games == 0 {
		agg.InsufficientData = true
		return agg
	}

	mean := agg.Total / float64(agg.Games)
	agg.Mean = &mean
	return agg
}
