package models

import (
	"database/sql"
	"strings"
	"time"
)

// Player represents an NBA player. ID is the BallDontLie player id.
// TeamID is the player's current team and changes on trades; the team a
// player represented in a given game lives on GameStat.
type Player struct {
	ID        int64          `db:"id"`
	FirstName string         `db:"first_name"`
	LastName  string         `db:"last_name"`
	FullName  string         `db:"full_name"`
	Position  sql.NullString `db:"position"`
	TeamID    sql.NullInt64  `db:"team_id"`
	CreatedAt time.Time      `db:"created_at"`
	UpdatedAt time.Time      `db:"updated_at"`
}

// PlayerInput is the player shape embedded in provider stat records
type PlayerInput struct {
	ID        int64  `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Position  string `json:"position"`
	TeamID    *int64 `json:"team_id,omitempty"`
}

// ToPlayer converts PlayerInput (from API) to Player model.
// teamID overrides the embedded team id when non-zero.
func (pi *PlayerInput) ToPlayer(teamID int64) *Player {
	player := &Player{
		ID:        pi.ID,
		FirstName: strings.TrimSpace(pi.FirstName),
		LastName:  strings.TrimSpace(pi.LastName),
	}
	player.FullName = strings.TrimSpace(player.FirstName + " " + player.LastName)

	if pi.Position != "" {
		player.Position = sql.NullString{String: pi.Position, Valid: true}
	}

	switch {
	case teamID != 0:
		player.TeamID = sql.NullInt64{Int64: teamID, Valid: true}
	case pi.TeamID != nil && *pi.TeamID != 0:
		player.TeamID = sql.NullInt64{Int64: *pi.TeamID, Valid: true}
	}

	return player
}
