package models

import (
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// DateLayout is the calendar-date format used by the provider and the API
const DateLayout = "2006-01-02"

// Game represents an NBA game. ID is the BallDontLie game id.
type Game struct {
	ID               int64         `db:"id"`
	GameDate         time.Time     `db:"game_date"`
	Season           int           `db:"season"`
	Status           string        `db:"status"`
	Postseason       bool          `db:"postseason"`
	HomeTeamID       int64         `db:"home_team_id"`
	VisitorTeamID    int64         `db:"visitor_team_id"`
	HomeTeamScore    sql.NullInt32 `db:"home_team_score"`
	VisitorTeamScore sql.NullInt32 `db:"visitor_team_score"`
	CreatedAt        time.Time     `db:"created_at"`
	UpdatedAt        time.Time     `db:"updated_at"`
}

// GameInput is the game shape returned by the provider
type GameInput struct {
	ID               int64     `json:"id"`
	Date             string    `json:"date"`
	Season           int       `json:"season"`
	Status           string    `json:"status"`
	Period           int       `json:"period"`
	Time             string    `json:"time"`
	Postseason       bool      `json:"postseason"`
	HomeTeamScore    *int      `json:"home_team_score"`
	VisitorTeamScore *int      `json:"visitor_team_score"`
	HomeTeam         TeamInput `json:"home_team"`
	VisitorTeam      TeamInput `json:"visitor_team"`
}

// ToGame converts GameInput (from API) to Game model
func (gi *GameInput) ToGame() (*Game, error) {
	gameDate, err := ParseProviderDate(gi.Date)
	if err != nil {
		return nil, fmt.Errorf("game %d: %w", gi.ID, err)
	}

	game := &Game{
		ID:            gi.ID,
		GameDate:      gameDate,
		Season:        gi.Season,
		Status:        gi.Status,
		Postseason:    gi.Postseason,
		HomeTeamID:    gi.HomeTeam.ID,
		VisitorTeamID: gi.VisitorTeam.ID,
	}

	if gi.HomeTeamScore != nil {
		game.HomeTeamScore = sql.NullInt32{Int32: int32(*gi.HomeTeamScore), Valid: true}
	}
	if gi.VisitorTeamScore != nil {
		game.VisitorTeamScore = sql.NullInt32{Int32: int32(*gi.VisitorTeamScore), Valid: true}
	}

	return game, nil
}

// IsFinal returns true if the game is completed
func (g *Game) IsFinal() bool {
	return strings.EqualFold(g.Status, "Final")
}

// IsSettled returns true if the provider will not change the game again:
// it is final, postponed or cancelled.
func (g *Game) IsSettled() bool {
	if g.IsFinal() {
		return true
	}
	switch strings.ToLower(strings.TrimSpace(g.Status)) {
	case "postponed", "cancelled", "canceled":
		return true
	}
	return false
}

// OpponentOf returns the id of the team that teamID played against
func (g *Game) OpponentOf(teamID int64) int64 {
	if teamID == g.HomeTeamID {
		return g.VisitorTeamID
	}
	return g.HomeTeamID
}

// ParseProviderDate accepts both "2024-01-15" and RFC3339 timestamps and
// returns the calendar date at UTC midnight.
func ParseProviderDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if len(s) < len(DateLayout) {
		return time.Time{}, fmt.Errorf("invalid date %q", s)
	}
	d, err := time.Parse(DateLayout, s[:len(DateLayout)])
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return d, nil
}
