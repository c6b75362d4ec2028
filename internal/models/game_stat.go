package models

import (
	"database/sql"
	"strconv"
	"strings"
	"time"
)

// GameStat is one player's box-score line for one game.
// Identity is (GameID, PlayerID).
type GameStat struct {
	GameID   int64 `db:"game_id"`
	PlayerID int64 `db:"player_id"`
	TeamID   int64 `db:"team_id"`
	IsHome   bool  `db:"is_home"`

	Minutes sql.NullFloat64 `db:"minutes"`

	// Shooting
	FGM    sql.NullInt32   `db:"fgm"`
	FGA    sql.NullInt32   `db:"fga"`
	FGPct  sql.NullFloat64 `db:"fg_pct"`
	FG3M   sql.NullInt32   `db:"fg3m"`
	FG3A   sql.NullInt32   `db:"fg3a"`
	FG3Pct sql.NullFloat64 `db:"fg3_pct"`
	FTM    sql.NullInt32   `db:"ftm"`
	FTA    sql.NullInt32   `db:"fta"`
	FTPct  sql.NullFloat64 `db:"ft_pct"`

	// Counting stats
	OReb      sql.NullInt32 `db:"oreb"`
	DReb      sql.NullInt32 `db:"dreb"`
	Reb       sql.NullInt32 `db:"reb"`
	Ast       sql.NullInt32 `db:"ast"`
	Stl       sql.NullInt32 `db:"stl"`
	Blk       sql.NullInt32 `db:"blk"`
	Turnover  sql.NullInt32 `db:"turnover"`
	PF        sql.NullInt32 `db:"pf"`
	Pts       sql.NullInt32 `db:"pts"`
	PlusMinus sql.NullInt32 `db:"plus_minus"`

	UpdatedAt time.Time `db:"updated_at"`
}

// StatInput is the box-score shape returned by the provider's stats endpoint
type StatInput struct {
	ID        int64       `json:"id"`
	Min       *string     `json:"min"`
	FGM       *int        `json:"fgm"`
	FGA       *int        `json:"fga"`
	FGPct     *float64    `json:"fg_pct"`
	FG3M      *int        `json:"fg3m"`
	FG3A      *int        `json:"fg3a"`
	FG3Pct    *float64    `json:"fg3_pct"`
	FTM       *int        `json:"ftm"`
	FTA       *int        `json:"fta"`
	FTPct     *float64    `json:"ft_pct"`
	OReb      *int        `json:"oreb"`
	DReb      *int        `json:"dreb"`
	Reb       *int        `json:"reb"`
	Ast       *int        `json:"ast"`
	Stl       *int        `json:"stl"`
	Blk       *int        `json:"blk"`
	Turnover  *int        `json:"turnover"`
	PF        *int        `json:"pf"`
	Pts       *int        `json:"pts"`
	PlusMinus *int        `json:"plus_minus"`
	Player    PlayerInput `json:"player"`
	Team      TeamInput   `json:"team"`
	Game      struct {
		ID            int64 `json:"id"`
		HomeTeamID    int64 `json:"home_team_id"`
		VisitorTeamID int64 `json:"visitor_team_id"`
	} `json:"game"`
}

// TeamIDFor returns the team the player represented in this stat line,
// falling back to the player's listed team.
func (si *StatInput) TeamIDFor() int64 {
	if si.Team.ID != 0 {
		return si.Team.ID
	}
	if si.Player.TeamID != nil {
		return *si.Player.TeamID
	}
	return 0
}

// ToGameStat converts StatInput (from API) to a GameStat for game
func (si *StatInput) ToGameStat(game *Game) GameStat {
	teamID := si.TeamIDFor()
	stat := GameStat{
		GameID:   game.ID,
		PlayerID: si.Player.ID,
		TeamID:   teamID,
		IsHome:   teamID == game.HomeTeamID,

		FGM:       nullInt(si.FGM),
		FGA:       nullInt(si.FGA),
		FGPct:     nullFloat(si.FGPct),
		FG3M:      nullInt(si.FG3M),
		FG3A:      nullInt(si.FG3A),
		FG3Pct:    nullFloat(si.FG3Pct),
		FTM:       nullInt(si.FTM),
		FTA:       nullInt(si.FTA),
		FTPct:     nullFloat(si.FTPct),
		OReb:      nullInt(si.OReb),
		DReb:      nullInt(si.DReb),
		Reb:       nullInt(si.Reb),
		Ast:       nullInt(si.Ast),
		Stl:       nullInt(si.Stl),
		Blk:       nullInt(si.Blk),
		Turnover:  nullInt(si.Turnover),
		PF:        nullInt(si.PF),
		Pts:       nullInt(si.Pts),
		PlusMinus: nullInt(si.PlusMinus),
	}

	if si.Min != nil {
		if minutes, ok := ParseMinutes(*si.Min); ok {
			stat.Minutes = sql.NullFloat64{Float64: minutes, Valid: true}
		}
	}

	return stat
}

// ParseMinutes parses the provider's minutes field, which is either whole
// minutes ("34") or minutes and seconds ("34:12").
func ParseMinutes(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}

	mins, secs, hasSecs := strings.Cut(s, ":")
	m, err := strconv.ParseFloat(mins, 64)
	if err != nil {
		return 0, false
	}
	if !hasSecs {
		return m, true
	}

	sec, err := strconv.ParseFloat(secs, 64)
	if err != nil {
		return 0, false
	}
	return m + sec/60, true
}

func nullInt(v *int) sql.NullInt32 {
	if v == nil {
		return sql.NullInt32{}
	}
	return sql.NullInt32{Int32: int32(*v), Valid: true}
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

// PlayerGameStat pairs a stat line with the game it belongs to and the
// opponent faced, as returned by filtered stat queries.
type PlayerGameStat struct {
	Game                 Game
	Stat                 GameStat
	OpponentID           int64
	OpponentAbbreviation string
}
