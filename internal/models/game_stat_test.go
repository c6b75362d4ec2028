package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(v int) *int { return &v }

func TestParseMinutes(t *testing.T) {
	tests := []struct {
		in   string
		want float64
		ok   bool
	}{
		{"34", 34, true},
		{"34:30", 34.5, true},
		{"0", 0, true},
		{"", 0, false},
		{"DNP", 0, false},
	}

	for _, tt := range tests {
		got, ok := ParseMinutes(tt.in)
		assert.Equal(t, tt.ok, ok, "input %q", tt.in)
		assert.InDelta(t, tt.want, got, 0.001, "input %q", tt.in)
	}
}

func TestStatInput_ToGameStat(t *testing.T) {
	game := &Game{ID: 100, HomeTeamID: 14, VisitorTeamID: 2}
	minutes := "36:00"

	away := StatInput{
		Min:    &minutes,
		Pts:    intPtr(28),
		FG3M:   intPtr(4),
		Player: PlayerInput{ID: 237, FirstName: "LeBron", LastName: "James"},
		Team:   TeamInput{ID: 2, Abbreviation: "BOS"},
	}
	stat := away.ToGameStat(game)
	assert.Equal(t, int64(100), stat.GameID)
	assert.Equal(t, int64(237), stat.PlayerID)
	assert.Equal(t, int64(2), stat.TeamID)
	assert.False(t, stat.IsHome)
	assert.Equal(t, int32(28), stat.Pts.Int32)
	assert.True(t, stat.Minutes.Valid)
	assert.Equal(t, 36.0, stat.Minutes.Float64)
	assert.False(t, stat.Ast.Valid, "Missing assists should stay null")

	home := StatInput{Player: PlayerInput{ID: 1}, Team: TeamInput{ID: 14}}
	assert.True(t, home.ToGameStat(game).IsHome)
}

func TestGameInput_ToGame(t *testing.T) {
	input := GameInput{
		ID:            1037593,
		Date:          "2024-01-15T00:00:00.000Z",
		Season:        2023,
		Status:        "Final",
		HomeTeamScore: intPtr(120),
		HomeTeam:      TeamInput{ID: 14},
		VisitorTeam:   TeamInput{ID: 2},
	}

	game, err := input.ToGame()
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC), game.GameDate)
	assert.True(t, game.IsFinal())
	assert.True(t, game.HomeTeamScore.Valid)
	assert.False(t, game.VisitorTeamScore.Valid)
	assert.Equal(t, int64(2), game.OpponentOf(14))
	assert.Equal(t, int64(14), game.OpponentOf(2))

	_, err = (&GameInput{ID: 1, Date: "soon"}).ToGame()
	assert.Error(t, err)
}

func TestDateRange_Days(t *testing.T) {
	r := NewDateRange(time.Date(2024, 2, 28, 15, 0, 0, 0, time.UTC), time.Date(2024, 3, 1, 1, 0, 0, 0, time.UTC))
	days := r.Days()
	require.Len(t, days, 3)
	assert.Equal(t, "2024-02-29", days[1].Format(DateLayout))
	assert.True(t, r.Valid())
	assert.False(t, DateRange{Start: days[2], End: days[0]}.Valid())
}

func TestPlayerInput_ToPlayer(t *testing.T) {
	listed := int64(7)
	p := (&PlayerInput{ID: 3, FirstName: " Jayson", LastName: "Tatum ", TeamID: &listed}).ToPlayer(0)
	assert.Equal(t, "Jayson Tatum", p.FullName)
	assert.Equal(t, int64(7), p.TeamID.Int64)

	p = (&PlayerInput{ID: 3, FirstName: "Jayson", LastName: "Tatum", TeamID: &listed}).ToPlayer(2)
	assert.Equal(t, int64(2), p.TeamID.Int64, "Team from the stat line wins")
}
