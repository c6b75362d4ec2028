package analytics

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"hoopstats/ingestion/internal/models"
)

// GameValue is one game's metric value and whether it met the threshold.
// Value is nil when the provider reported nothing for the metric.
type GameValue struct {
	GameID     int64    `json:"game_id"`
	Date       string   `json:"date"`
	Season     int      `json:"season"`
	OpponentID int64    `json:"opponent_id"`
	Opponent   string   `json:"opponent"`
	Home       bool     `json:"home"`
	Value      *float64 `json:"value"`
	Met        bool     `json:"met"`
}

// RateSummary is the threshold hit rate over a set of games
type RateSummary struct {
	Total            int      `json:"total_games"`
	Met              int      `json:"games_met"`
	Rate             *float64 `json:"rate"`
	InsufficientData bool     `json:"insufficient_data"`
}

// OpponentSplit is the rate against one opponent
type OpponentSplit struct {
	OpponentID int64  `json:"opponent_id"`
	Opponent   string `json:"opponent"`
	RateSummary
}

// Splits breaks the rate down by venue and opponent
type Splits struct {
	Home      RateSummary     `json:"home"`
	Away      RateSummary     `json:"away"`
	Opponents []OpponentSplit `json:"opponents"`
}

// Window is the rate over a run of consecutive games
type Window struct {
	Index     int    `json:"index"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
	RateSummary
}

// RateResult answers "how often did the player reach threshold"
type RateResult struct {
	Player    PlayerRef     `json:"player"`
	Metric    models.Metric `json:"metric"`
	Threshold float64       `json:"threshold"`
	RateSummary
	Games   []GameValue `json:"games"`
	Splits  Splits      `json:"splits"`
	Windows []Window    `json:"windows,omitempty"`
}

// MetricRate computes how often the player's metric was at or above
// threshold over the games matching filters. Games without a value are
// listed but excluded from the denominator.
func (a *Analyzer) MetricRate(ctx context.Context, playerQuery, metricName string, threshold float64, filters Filters) (_ *RateResult, err error) {
	start := time.Now()
	defer func() { observe("metric_rate", start, err) }()

	metric, err := models.ParseMetric(metricName)
	if err != nil {
		return nil, err
	}
	if math.IsNaN(threshold) || math.IsInf(threshold, 0) {
		return nil, fmt.Errorf("%w: threshold must be a finite number", ErrInvalidQuery)
	}
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

	games := evaluate(rows, metric, threshold)

	result := &RateResult{
		Player:      refOf(player),
		Metric:      metric,
		Threshold:   threshold,
		RateSummary: summarize(games),
		Games:       games,
		Splits:      split(games),
		Windows:     windows(games, filters.WindowSize),
	}

	return result, nil
}

func evaluate(rows []models.PlayerGameStat, metric models.Metric, threshold float64) []GameValue {
	games := make([]GameValue, 0, len(rows))
	for i := range rows {
		row := &rows[i]
		gv := GameValue{
			GameID:     row.Game.ID,
			Date:       row.Game.GameDate.Format(models.DateLayout),
			Season:     row.Game.Season,
			OpponentID: row.OpponentID,
			Opponent:   row.OpponentAbbreviation,
			Home:       row.Stat.IsHome,
		}
		if v, ok := metric.Value(&row.Stat); ok {
			gv.Value = &v
			gv.Met = v >= threshold
		}
		games = append(games, gv)
	}
	return games
}

func summarize(games []GameValue) RateSummary {
	var s RateSummary
	for _, g := range games {
		if g.Value == nil {
			continue
		}
		s.Total++
		if g.Met {
			s.Met++
		}
	}

	if s.Total == 0 {
		s.InsufficientData = true
		return s
	}

	rate := float64(s.Met) / float64(s.Total)
	s.Rate = &rate
	return s
}

func split(games []GameValue) Splits {
	var home, away []GameValue
	byOpponent := make(map[int64][]GameValue)
	for _, g := range games {
		if g.Home {
			home = append(home, g)
		} else {
			away = append(away, g)
		}
		byOpponent[g.OpponentID] = append(byOpponent[g.OpponentID], g)
	}

	splits := Splits{
		Home:      summarize(home),
		Away:      summarize(away),
		Opponents: make([]OpponentSplit, 0, len(byOpponent)),
	}
	for id, gs := range byOpponent {
		splits.Opponents = append(splits.Opponents, OpponentSplit{
			OpponentID:  id,
			Opponent:    gs[0].Opponent,
			RateSummary: summarize(gs),
		})
	}

	// Most-played opponents first
	sort.Slice(splits.Opponents, func(i, j int) bool {
		a, b := splits.Opponents[i], splits.Opponents[j]
		if a.Total != b.Total {
			return a.Total > b.Total
		}
		return a.Opponent < b.Opponent
	})

	return splits
}

// windows chunks the valued games, in date order, into runs of size
func windows(games []GameValue, size int) []Window {
	if size <= 0 {
		return nil
	}

	valued := make([]GameValue, 0, len(games))
	for _, g := range games {
		if g.Value != nil {
			valued = append(valued, g)
		}
	}

	var out []Window
	for start := 0; start < len(valued); start += size {
		end := min(start+size, len(valued))
		chunk := valued[start:end]
		out = append(out, Window{
			Index:       len(out),
			StartDate:   chunk[0].Date,
			EndDate:     chunk[len(chunk)-1].Date,
			RateSummary: summarize(chunk),
		})
	}
	return out
}
