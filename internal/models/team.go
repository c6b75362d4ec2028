package models

import (
	"database/sql"
	"time"
)

// Team represents an NBA franchise. ID is the BallDontLie team id.
type Team struct {
	ID           int64          `db:"id"`
	Abbreviation string         `db:"abbreviation"`
	City         sql.NullString `db:"city"`
	Conference   sql.NullString `db:"conference"`
	Division     sql.NullString `db:"division"`
	FullName     string         `db:"full_name"`
	Name         string         `db:"name"`
	CreatedAt    time.Time      `db:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at"`
}

// TeamInput is the team shape returned by the provider
type TeamInput struct {
	ID           int64  `json:"id"`
	Abbreviation string `json:"abbreviation"`
	City         string `json:"city"`
	Conference   string `json:"conference"`
	Division     string `json:"division"`
	FullName     string `json:"full_name"`
	Name         string `json:"name"`
}

// ToTeam converts TeamInput (from API) to Team model
func (ti *TeamInput) ToTeam() *Team {
	team := &Team{
		ID:           ti.ID,
		Abbreviation: ti.Abbreviation,
		FullName:     ti.FullName,
		Name:         ti.Name,
	}

	if ti.City != "" {
		team.City = sql.NullString{String: ti.City, Valid: true}
	}
	if ti.Conference != "" {
		team.Conference = sql.NullString{String: ti.Conference, Valid: true}
	}
	if ti.Division != "" {
		team.Division = sql.NullString{String: ti.Division, Valid: true}
	}
	if team.FullName == "" {
		team.FullName = ti.Abbreviation
	}

	return team
}
