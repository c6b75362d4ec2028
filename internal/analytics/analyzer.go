package analytics

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"hoopstats/ingestion/internal/metrics"
	"hoopstats/ingestion/internal/models"
	"hoopstats/ingestion/internal/repository"

	"github.com/rs/zerolog/log"
)

// searchLimit caps name-fragment matches for search and resolution
const searchLimit = 20

type PlayerReader interface {
	GetByID(ctx context.Context, id int64) (*models.Player, error)
	FindByNameFragment(ctx context.Context, fragment string, limit int) ([]*models.Player, error)
}

type GameStatReader interface {
	Query(ctx context.Context, playerID int64, filter models.GameStatFilter) ([]models.PlayerGameStat, error)
}

// Analyzer answers threshold and season questions over stored stat lines.
// It only reads.
type Analyzer struct {
	players PlayerReader
	stats   GameStatReader
}

// NewAnalyzer creates an analyzer over the storage layer's read side
func NewAnalyzer(players PlayerReader, stats GameStatReader) *Analyzer {
	return &Analyzer{players: players, stats: stats}
}

// PlayerRef identifies the player a result is about
type PlayerRef struct {
	ID       int64  `json:"id"`
	FullName string `json:"full_name"`
	Position string `json:"position,omitempty"`
	TeamID   *int64 `json:"team_id,omitempty"`
}

func refOf(p *models.Player) PlayerRef {
	ref := PlayerRef{ID: p.ID, FullName: p.FullName, Position: p.Position.String}
	if p.TeamID.Valid {
		teamID := p.TeamID.Int64
		ref.TeamID = &teamID
	}
	return ref
}

// Filters narrows the games considered by MetricRate
type Filters struct {
	Season   *int
	From     *time.Time
	To       *time.Time
	Location models.Location
	// Opponent is a team abbreviation or numeric team id
	Opponent string
	// WindowSize > 0 adds consecutive rolling windows to the result
	WindowSize int
}

func (f Filters) gameStatFilter() models.GameStatFilter {
	filter := models.GameStatFilter{
		From:     f.From,
		To:       f.To,
		Location: f.Location,
		Opponent: strings.TrimSpace(f.Opponent),
	}
	if f.Season != nil {
		filter.Seasons = []int{*f.Season}
	}
	return filter
}

func (f Filters) validate() error {
	if f.From != nil && f.To != nil && f.To.Before(*f.From) {
		return fmt.Errorf("%w: date range end is before start", ErrInvalidQuery)
	}
	if f.WindowSize < 0 {
		return fmt.Errorf("%w: window size must not be negative", ErrInvalidQuery)
	}
	return nil
}

// ResolvePlayer turns an id or name fragment into exactly one player.
// A fragment matching more than one player is ambiguous, even when one of
// them matches exactly; callers disambiguate with the numeric id.
func (a *Analyzer) ResolvePlayer(ctx context.Context, query string) (*models.Player, error) {
	query = strings.Join(strings.Fields(query), " ")
	if query == "" {
		return nil, fmt.Errorf("%w: player is required", ErrInvalidQuery)
	}

	if id, err := strconv.ParseInt(query, 10, 64); err == nil {
		player, err := a.players.GetByID(ctx, id)
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: id %d", ErrPlayerNotFound, id)
		}
		if err != nil {
			return nil, err
		}
		return player, nil
	}

	matches, err := a.players.FindByNameFragment(ctx, query, searchLimit)
	if err != nil {
		return nil, err
	}

	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("%w: %q", ErrPlayerNotFound, query)
	case 1:
		return matches[0], nil
	}

	candidates := make([]PlayerRef, 0, len(matches))
	for _, p := range matches {
		candidates = append(candidates, refOf(p))
	}
	return nil, &AmbiguousPlayerError{Query: query, Candidates: candidates}
}

// SearchPlayers returns players whose name contains fragment
func (a *Analyzer) SearchPlayers(ctx context.Context, fragment string, limit int) (_ []PlayerRef, err error) {
	start := time.Now()
	defer func() { observe("search", start, err) }()

	if strings.TrimSpace(fragment) == "" {
		return nil, fmt.Errorf("%w: search query is required", ErrInvalidQuery)
	}
	if limit <= 0 || limit > searchLimit {
		limit = searchLimit
	}

	players, err := a.players.FindByNameFragment(ctx, fragment, limit)
	if err != nil {
		return nil, err
	}

	out := make([]PlayerRef, 0, len(players))
	for _, p := range players {
		out = append(out, refOf(p))
	}
	return out, nil
}

func observe(kind string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
		log.Debug().Err(err).Str("kind", kind).Msg("Analytics query failed")
	}
	metrics.RecordAnalyticsQuery(kind, status, time.Since(start).Seconds())
}
