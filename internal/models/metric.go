package models

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrUnknownMetric is returned when a metric name is not in the supported set
var ErrUnknownMetric = errors.New("unknown metric")

// Metric names a per-game statistic that analytics can evaluate
type Metric string

const (
	MetricPoints              Metric = "pts"
	MetricRebounds            Metric = "reb"
	MetricOffensiveRebounds   Metric = "oreb"
	MetricDefensiveRebounds   Metric = "dreb"
	MetricAssists             Metric = "ast"
	MetricSteals              Metric = "stl"
	MetricBlocks              Metric = "blk"
	MetricTurnovers           Metric = "turnover"
	MetricPersonalFouls       Metric = "pf"
	MetricFieldGoalsMade      Metric = "fgm"
	MetricFieldGoalsAttempted Metric = "fga"
	MetricThreesMade          Metric = "fg3m"
	MetricThreesAttempted     Metric = "fg3a"
	MetricFreeThrowsMade      Metric = "ftm"
	MetricFreeThrowsAttempted Metric = "fta"
	MetricMinutes             Metric = "minutes"
	MetricPlusMinus           Metric = "plus_minus"
)

var metricAccessors = map[Metric]func(*GameStat) (float64, bool){
	MetricPoints:              func(s *GameStat) (float64, bool) { return int32Value(s.Pts.Int32, s.Pts.Valid) },
	MetricRebounds:            func(s *GameStat) (float64, bool) { return int32Value(s.Reb.Int32, s.Reb.Valid) },
	MetricOffensiveRebounds:   func(s *GameStat) (float64, bool) { return int32Value(s.OReb.Int32, s.OReb.Valid) },
	MetricDefensiveRebounds:   func(s *GameStat) (float64, bool) { return int32Value(s.DReb.Int32, s.DReb.Valid) },
	MetricAssists:             func(s *GameStat) (float64, bool) { return int32Value(s.Ast.Int32, s.Ast.Valid) },
	MetricSteals:              func(s *GameStat) (float64, bool) { return int32Value(s.Stl.Int32, s.Stl.Valid) },
	MetricBlocks:              func(s *GameStat) (float64, bool) { return int32Value(s.Blk.Int32, s.Blk.Valid) },
	MetricTurnovers:           func(s *GameStat) (float64, bool) { return int32Value(s.Turnover.Int32, s.Turnover.Valid) },
	MetricPersonalFouls:       func(s *GameStat) (float64, bool) { return int32Value(s.PF.Int32, s.PF.Valid) },
	MetricFieldGoalsMade:      func(s *GameStat) (float64, bool) { return int32Value(s.FGM.Int32, s.FGM.Valid) },
	MetricFieldGoalsAttempted: func(s *GameStat) (float64, bool) { return int32Value(s.FGA.Int32, s.FGA.Valid) },
	MetricThreesMade:          func(s *GameStat) (float64, bool) { return int32Value(s.FG3M.Int32, s.FG3M.Valid) },
	MetricThreesAttempted:     func(s *GameStat) (float64, bool) { return int32Value(s.FG3A.Int32, s.FG3A.Valid) },
	MetricFreeThrowsMade:      func(s *GameStat) (float64, bool) { return int32Value(s.FTM.Int32, s.FTM.Valid) },
	MetricFreeThrowsAttempted: func(s *GameStat) (float64, bool) { return int32Value(s.FTA.Int32, s.FTA.Valid) },
	MetricMinutes:             func(s *GameStat) (float64, bool) { return s.Minutes.Float64, s.Minutes.Valid },
	MetricPlusMinus:           func(s *GameStat) (float64, bool) { return int32Value(s.PlusMinus.Int32, s.PlusMinus.Valid) },
}

// metricAliases maps the spelled-out and shorthand names clients send
var metricAliases = map[string]Metric{
	"points":                MetricPoints,
	"rebounds":              MetricRebounds,
	"offensive_rebounds":    MetricOffensiveRebounds,
	"defensive_rebounds":    MetricDefensiveRebounds,
	"assists":               MetricAssists,
	"steals":                MetricSteals,
	"blocks":                MetricBlocks,
	"turnovers":             MetricTurnovers,
	"tov":                   MetricTurnovers,
	"fouls":                 MetricPersonalFouls,
	"personal_fouls":        MetricPersonalFouls,
	"field_goals_made":      MetricFieldGoalsMade,
	"field_goals_attempted": MetricFieldGoalsAttempted,
	"threes":                MetricThreesMade,
	"three_pointers":        MetricThreesMade,
	"threes_made":           MetricThreesMade,
	"3pt":                   MetricThreesMade,
	"3pm":                   MetricThreesMade,
	"threes_attempted":      MetricThreesAttempted,
	"3pa":                   MetricThreesAttempted,
	"free_throws_made":      MetricFreeThrowsMade,
	"free_throws_attempted": MetricFreeThrowsAttempted,
	"min":                   MetricMinutes,
	"mins":                  MetricMinutes,
	"plusminus":             MetricPlusMinus,
}

// ParseMetric resolves a metric name or alias, case-insensitively
func ParseMetric(name string) (Metric, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if _, ok := metricAccessors[Metric(key)]; ok {
		return Metric(key), nil
	}
	if m, ok := metricAliases[key]; ok {
		return m, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownMetric, name)
}

// Value returns the metric's value on a stat line; ok is false when the
// provider reported no value.
func (m Metric) Value(stat *GameStat) (float64, bool) {
	accessor, found := metricAccessors[m]
	if !found {
		return 0, false
	}
	return accessor(stat)
}

// Valid reports whether m is a supported metric
func (m Metric) Valid() bool {
	_, ok := metricAccessors[m]
	return ok
}

// Metrics returns the supported metric names in sorted order
func Metrics() []Metric {
	out := make([]Metric, 0, len(metricAccessors))
	for m := range metricAccessors {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func int32Value(v int32, valid bool) (float64, bool) {
	return float64(v), valid
}
