package syncer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"hoopstats/ingestion/internal/metrics"
	"hoopstats/ingestion/internal/models"
	"hoopstats/ingestion/internal/repository"

	"github.com/rs/zerolog/log"
)

var (
	// ErrSyncInProgress is returned when a run is requested while another is active
	ErrSyncInProgress = errors.New("sync already in progress")

	// ErrSyncFailed wraps the cause of a run that ended with status failed
	ErrSyncFailed = errors.New("sync failed")

	// ErrInvalidRange is returned for an empty or inverted date range
	ErrInvalidRange = errors.New("invalid sync date range")
)

// Provider is the upstream stats source
type Provider interface {
	FetchGames(ctx context.Context, dateRange models.DateRange, season *int, fn func(models.GameInput) error) error
	FetchStatsForGame(ctx context.Context, gameID int64) ([]models.StatInput, error)
	FetchTeams(ctx context.Context) ([]models.TeamInput, error)
}

type TeamStore interface {
	Upsert(ctx context.Context, team *models.Team) error
}

type PlayerStore interface {
	Upsert(ctx context.Context, player *models.Player) error
}

type GameStore interface {
	UpsertWithStats(ctx context.Context, game *models.Game, stats []models.GameStat) error
}

type SyncLogStore interface {
	Append(ctx context.Context, entry *models.SyncLogEntry) error
	LatestSuccessfulSyncDate(ctx context.Context) (time.Time, bool, error)
}

// Stores groups the write side of the storage layer used by the engine
type Stores struct {
	Teams   TeamStore
	Players PlayerStore
	Games   GameStore
	SyncLog SyncLogStore
}

// StoresFromDatabase wires the engine to the Postgres repositories
func StoresFromDatabase(db *repository.Database) Stores {
	return Stores{
		Teams:   db.Teams,
		Players: db.Players,
		Games:   db.Games,
		SyncLog: db.SyncLog,
	}
}

// RunLock admits one run across processes. TryLock never waits.
type RunLock interface {
	TryLock(ctx context.Context) (unlock func(context.Context) error, ok bool, err error)
}

// State is the engine's position in a run
type State int32

const (
	StateIdle State = iota
	StateFetching
	StateUpserting
	StateCompleted
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateFetching:
		return "fetching"
	case StateUpserting:
		return "upserting"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Request describes one sync run
type Request struct {
	Mode   models.SyncMode
	Range  models.DateRange
	Season *int
	// SyncTeams refreshes the team table before the game loop
	SyncTeams bool
}

// Options configures the engine
type Options struct {
	// Location decides which calendar date is "today"
	Location *time.Location
	// LookbackDays is the daily window size when no run has succeeded yet.
	// It is also how far back an unsettled game keeps its date incomplete.
	LookbackDays int
	// Lock extends admission across processes. Optional.
	Lock RunLock
	// Now overrides the clock in tests
	Now func() time.Time
}

// Engine runs sync jobs against the provider and the storage layer
type Engine struct {
	provider Provider
	stores   Stores
	opts     Options

	// mu admits one run per process
	mu    sync.Mutex
	state atomic.Int32

	// active is closed when the admitted run releases its locks
	activeMu sync.Mutex
	active   chan struct{}
}

// admission is an admitted run's hold on the run locks
type admission struct {
	unlock func(context.Context) error
	done   chan struct{}
}

// NewEngine creates a sync engine
func NewEngine(provider Provider, stores Stores, opts Options) *Engine {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.LookbackDays < 0 {
		opts.LookbackDays = 0
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Engine{
		provider: provider,
		stores:   stores,
		opts:     opts,
	}
}

// State returns the engine's current state
func (e *Engine) State() State {
	return State(e.state.Load())
}

// Today returns the current calendar date in the engine's timezone
func (e *Engine) Today() time.Time {
	return models.TruncateDate(e.opts.Now().In(e.opts.Location))
}

// RunDaily syncs from the day after the last complete date through today
func (e *Engine) RunDaily(ctx context.Context) (*models.SyncLogEntry, error) {
	req, err := e.DailyRequest(ctx)
	if err != nil {
		return nil, err
	}
	return e.Run(ctx, req)
}

// DailyRequest builds the request a daily run would execute
func (e *Engine) DailyRequest(ctx context.Context) (Request, error) {
	window, err := e.DailyWindow(ctx)
	if err != nil {
		return Request{}, err
	}
	return Request{Mode: models.SyncModeDaily, Range: window}, nil
}

// DailyWindow computes the range a daily run would cover
func (e *Engine) DailyWindow(ctx context.Context) (models.DateRange, error) {
	today := e.Today()

	latest, ok, err := e.stores.SyncLog.LatestSuccessfulSyncDate(ctx)
	if err != nil {
		return models.DateRange{}, fmt.Errorf("failed to determine daily window: %w", err)
	}

	start := today.AddDate(0, 0, -e.opts.LookbackDays)
	if ok {
		start = latest.AddDate(0, 0, 1)
	}
	if start.After(today) {
		start = today
	}

	return models.DateRange{Start: start, End: today}, nil
}

// RunInitial syncs an explicit range. A nil end means today.
func (e *Engine) RunInitial(ctx context.Context, start time.Time, end *time.Time, season *int) (*models.SyncLogEntry, error) {
	return e.Run(ctx, e.InitialRequest(start, end, season))
}

// InitialRequest builds a backfill request. Teams are refreshed first.
func (e *Engine) InitialRequest(start time.Time, end *time.Time, season *int) Request {
	last := e.Today()
	if end != nil {
		last = models.TruncateDate(*end)
	}

	return Request{
		Mode:      models.SyncModeInitial,
		Range:     models.DateRange{Start: models.TruncateDate(start), End: last},
		Season:    season,
		SyncTeams: true,
	}
}

// Run executes one sync run. Every admitted run writes exactly one log
// entry. Success and partial runs return a nil error; failed runs return
// the entry and an error wrapping ErrSyncFailed.
func (e *Engine) Run(ctx context.Context, req Request) (*models.SyncLogEntry, error) {
	a, err := e.admit(ctx, req)
	if err != nil {
		return nil, err
	}
	defer e.release(ctx, a)

	return e.run(ctx, req)
}

// Start admits a run and executes it in the background. Rejections such as
// ErrSyncInProgress are returned before anything starts; the outcome of the
// run itself is in its log entry. Cancelling ctx stops the run at the next
// game boundary.
func (e *Engine) Start(ctx context.Context, req Request) error {
	a, err := e.admit(ctx, req)
	if err != nil {
		return err
	}

	go func() {
		defer e.release(ctx, a)
		if _, err := e.run(ctx, req); err != nil {
			log.Error().Err(err).Str("mode", string(req.Mode)).Msg("Background sync failed")
		}
	}()

	return nil
}

// Wait blocks until the active run, if any, has written its log entry and
// released its locks.
func (e *Engine) Wait(ctx context.Context) error {
	e.activeMu.Lock()
	done := e.active
	e.activeMu.Unlock()

	if done == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for sync run: %w", ctx.Err())
	}
}

// admit takes the in-process lock and, when configured, the cross-process
// lock. It never waits for a running sync.
func (e *Engine) admit(ctx context.Context, req Request) (*admission, error) {
	if !req.Range.Valid() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidRange, req.Range)
	}

	if !e.mu.TryLock() {
		metrics.RecordSyncRejected()
		return nil, ErrSyncInProgress
	}

	a := &admission{done: make(chan struct{})}
	if e.opts.Lock != nil {
		unlock, ok, err := e.opts.Lock.TryLock(ctx)
		if err != nil {
			e.mu.Unlock()
			return nil, fmt.Errorf("failed to acquire run lock: %w", err)
		}
		if !ok {
			e.mu.Unlock()
			metrics.RecordSyncRejected()
			return nil, ErrSyncInProgress
		}
		a.unlock = unlock
	}

	e.activeMu.Lock()
	e.active = a.done
	e.activeMu.Unlock()

	metrics.SetSyncInProgress(true)
	return a, nil
}

// release returns the engine to idle and frees both locks
func (e *Engine) release(ctx context.Context, a *admission) {
	if a.unlock != nil {
		if err := a.unlock(context.WithoutCancel(ctx)); err != nil {
			log.Warn().Err(err).Msg("Failed to release run lock")
		}
	}
	metrics.SetSyncInProgress(false)
	e.setState(StateIdle)

	e.activeMu.Lock()
	e.active = nil
	e.activeMu.Unlock()

	e.mu.Unlock()
	close(a.done)
}

func (e *Engine) run(ctx context.Context, req Request) (*models.SyncLogEntry, error) {
	result := newResult(req, e.opts.Now())

	log.Info().
		Str("run_id", result.RunID.String()).
		Str("mode", string(req.Mode)).
		Str("range", req.Range.String()).
		Msg("Sync run started")

	e.execute(ctx, req, result)

	return e.finish(ctx, result)
}

func (e *Engine) execute(ctx context.Context, req Request, result *Result) {
	seenTeams := make(map[int64]bool)

	if req.SyncTeams {
		e.setState(StateFetching)
		if err := e.syncTeams(ctx, seenTeams, result); err != nil {
			result.abort(req.Range.Start, err)
			return
		}
	}

	for _, day := range req.Range.Days() {
		if err := ctx.Err(); err != nil {
			result.abort(day, fmt.Errorf("sync cancelled: %w", err))
			return
		}
		if err := e.syncDate(ctx, day, req.Season, seenTeams, result); err != nil {
			result.abort(day, err)
			return
		}
	}
}

// syncTeams refreshes the team table. Only a storage outage is returned.
func (e *Engine) syncTeams(ctx context.Context, seen map[int64]bool, result *Result) error {
	teams, err := e.provider.FetchTeams(ctx)
	if err != nil {
		result.recordError(fmt.Errorf("fetch teams: %w", err))
		return nil
	}

	e.setState(StateUpserting)
	for i := range teams {
		if err := e.upsertTeam(ctx, teams[i], seen, result); err != nil {
			if fatal(err) {
				return err
			}
			result.recordError(fmt.Errorf("team %d: %w", teams[i].ID, err))
		}
	}

	log.Info().Int("count", result.TeamsUpserted).Msg("Teams synced")
	return nil
}

// syncDate fetches and stores every game played on day. Per-game failures
// are recorded; only a fatal storage error is returned.
func (e *Engine) syncDate(ctx context.Context, day time.Time, season *int, seenTeams map[int64]bool, result *Result) error {
	e.setState(StateFetching)

	var games []models.GameInput
	err := e.provider.FetchGames(ctx, models.DateRange{Start: day, End: day}, season, func(g models.GameInput) error {
		games = append(games, g)
		return nil
	})
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("sync cancelled: %w", ctx.Err())
		}
		result.dateFailed(day, err)
		log.Warn().Err(err).Str("date", day.Format(models.DateLayout)).Msg("Failed to fetch games for date")
		return nil
	}

	result.DatesFetched++
	result.GamesFetched += len(games)

	for i := range games {
		if err := e.syncGame(ctx, day, &games[i], seenTeams, result); err != nil {
			if fatal(err) || ctx.Err() != nil {
				return err
			}
			result.gameFailed(day, games[i].ID, err)
			log.Warn().Err(err).Int64("game_id", games[i].ID).Msg("Failed to sync game")
		}
	}

	log.Debug().
		Str("date", day.Format(models.DateLayout)).
		Int("games", len(games)).
		Msg("Date synced")

	return nil
}

// syncGame stores one game. Stat lines are fetched before anything for the
// game is written, and the game and its lines are committed together.
func (e *Engine) syncGame(ctx context.Context, day time.Time, input *models.GameInput, seenTeams map[int64]bool, result *Result) error {
	game, err := input.ToGame()
	if err != nil {
		return err
	}

	e.setState(StateFetching)
	stats, err := e.provider.FetchStatsForGame(ctx, game.ID)
	if err != nil {
		return fmt.Errorf("fetch stats: %w", err)
	}

	e.setState(StateUpserting)
	for _, team := range []models.TeamInput{input.HomeTeam, input.VisitorTeam} {
		if err := e.upsertTeam(ctx, team, seenTeams, result); err != nil {
			return fmt.Errorf("upsert team %d: %w", team.ID, err)
		}
	}

	lines := make([]models.GameStat, 0, len(stats))
	seenPlayers := make(map[int64]bool, len(stats))
	for i := range stats {
		si := &stats[i]
		if si.Player.ID == 0 || seenPlayers[si.Player.ID] {
			continue
		}
		seenPlayers[si.Player.ID] = true

		player := si.Player.ToPlayer(si.TeamIDFor())
		if err := e.stores.Players.Upsert(ctx, player); err != nil {
			return fmt.Errorf("upsert player %d: %w", player.ID, err)
		}
		result.PlayersUpserted++

		lines = append(lines, si.ToGameStat(game))
	}

	if err := e.stores.Games.UpsertWithStats(ctx, game, lines); err != nil {
		return fmt.Errorf("upsert game: %w", err)
	}

	result.GamesUpserted++
	result.StatLinesUpserted += len(lines)

	if !game.IsSettled() {
		if day.Before(e.pendingHorizon()) {
			log.Warn().
				Int64("game_id", game.ID).
				Str("status", game.Status).
				Str("date", day.Format(models.DateLayout)).
				Msg("Game still not final past the revisit horizon - treating date as complete")
		} else {
			result.markIncomplete(day)
		}
	}

	return nil
}

// pendingHorizon is the earliest date whose unsettled games hold back
// complete_through. Older unsettled games no longer pin the daily window.
func (e *Engine) pendingHorizon() time.Time {
	days := e.opts.LookbackDays
	if days < 1 {
		days = 1
	}
	return e.Today().AddDate(0, 0, -days)
}

func (e *Engine) upsertTeam(ctx context.Context, input models.TeamInput, seen map[int64]bool, result *Result) error {
	if input.ID == 0 || seen[input.ID] {
		return nil
	}
	if err := e.stores.Teams.Upsert(ctx, input.ToTeam()); err != nil {
		return err
	}
	seen[input.ID] = true
	result.TeamsUpserted++
	return nil
}

// finish writes the log entry and records run metrics. The engine reports
// Completed or Failed until the run releases its locks.
func (e *Engine) finish(ctx context.Context, result *Result) (*models.SyncLogEntry, error) {
	entry := result.Entry(e.opts.Now())

	if entry.Status == models.SyncStatusFailed {
		e.setState(StateFailed)
	} else {
		e.setState(StateCompleted)
	}

	metrics.RecordSync(string(entry.Mode), string(entry.Status), entry.Duration().Seconds(),
		entry.GamesUpserted, entry.StatLinesUpserted, entry.GamesFailed)

	logEvent := log.Info()
	if entry.Status != models.SyncStatusSuccess {
		logEvent = log.Warn()
	}
	logEvent.
		Str("run_id", entry.RunID.String()).
		Str("status", string(entry.Status)).
		Int("games_fetched", entry.GamesFetched).
		Int("games_upserted", entry.GamesUpserted).
		Int("stat_lines", entry.StatLinesUpserted).
		Int("games_failed", entry.GamesFailed).
		Int("errors", entry.ErrorCount).
		Time("complete_through", entry.CompleteThrough.Time).
		Dur("duration", entry.Duration()).
		Msg("Sync run finished")

	var runErr error
	if entry.Status == models.SyncStatusFailed {
		runErr = fmt.Errorf("%w: run %s: %w", ErrSyncFailed, entry.RunID, result.Cause())
	}

	if err := e.stores.SyncLog.Append(context.WithoutCancel(ctx), entry); err != nil {
		log.Error().Err(err).Str("run_id", entry.RunID.String()).Msg("Failed to write sync log entry")
		return entry, errors.Join(runErr, fmt.Errorf("failed to write sync log: %w", err))
	}

	return entry, runErr
}

func (e *Engine) setState(s State) {
	e.state.Store(int32(s))
}

// fatal reports whether err means storage is gone and the run must stop
func fatal(err error) bool {
	return errors.Is(err, repository.ErrStorageUnavailable)
}
