package models

import (
	"fmt"
	"strings"
	"time"
)

// Location restricts a stat query to home or away games
type Location string

const (
	LocationAny  Location = ""
	LocationHome Location = "home"
	LocationAway Location = "away"
)

// ParseLocation accepts "home", "away" or an empty string
func ParseLocation(s string) (Location, error) {
	switch Location(strings.ToLower(strings.TrimSpace(s))) {
	case LocationAny, "all":
		return LocationAny, nil
	case LocationHome:
		return LocationHome, nil
	case LocationAway, "road":
		return LocationAway, nil
	default:
		return LocationAny, fmt.Errorf("invalid location %q: must be home or away", s)
	}
}

// GameStatFilter narrows the games returned for a player.
// Zero values mean "no restriction".
type GameStatFilter struct {
	Seasons  []int
	From     *time.Time
	To       *time.Time
	Location Location
	// Opponent is a team abbreviation or a numeric team id
	Opponent string
}

// DateRange is an inclusive range of calendar dates
type DateRange struct {
	Start time.Time
	End   time.Time
}

// NewDateRange truncates both ends to calendar dates
func NewDateRange(start, end time.Time) DateRange {
	return DateRange{Start: TruncateDate(start), End: TruncateDate(end)}
}

// Days returns every date in the range in ascending order
func (r DateRange) Days() []time.Time {
	var days []time.Time
	for d := r.Start; !d.After(r.End); d = d.AddDate(0, 0, 1) {
		days = append(days, d)
	}
	return days
}

// Valid reports whether the range is non-empty
func (r DateRange) Valid() bool {
	return !r.Start.IsZero() && !r.End.Before(r.Start)
}

func (r DateRange) String() string {
	return r.Start.Format(DateLayout) + ".." + r.End.Format(DateLayout)
}

// TruncateDate drops the clock, keeping the calendar date as seen in t's
// location, and returns it at UTC midnight.
func TruncateDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
