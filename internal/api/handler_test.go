package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"hoopstats/ingestion/internal/analytics"
	"hoopstats/ingestion/internal/client"
	"hoopstats/ingestion/internal/models"
	"hoopstats/ingestion/internal/repository"
	"hoopstats/ingestion/internal/syncer"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSync struct {
	err      error
	startErr error
	state    syncer.State
	runs     []syncer.Request
	started  []syncer.Request
	runCtx   context.Context
}

func (f *fakeSync) DailyRequest(ctx context.Context) (syncer.Request, error) {
	return syncer.Request{
		Mode:  models.SyncModeDaily,
		Range: models.DateRange{Start: time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC), End: time.Date(2024, 1, 16, 0, 0, 0, 0, time.UTC)},
	}, nil
}

func (f *fakeSync) InitialRequest(start time.Time, end *time.Time, season *int) syncer.Request {
	last := time.Date(2024, 1, 16, 0, 0, 0, 0, time.UTC)
	if end != nil {
		last = *end
	}
	return syncer.Request{Mode: models.SyncModeInitial, Range: models.DateRange{Start: start, End: last}, Season: season, SyncTeams: true}
}

func (f *fakeSync) Run(ctx context.Context, req syncer.Request) (*models.SyncLogEntry, error) {
	f.runs = append(f.runs, req)
	f.runCtx = ctx
	if f.err != nil {
		return nil, f.err
	}
	return sampleEntry(), nil
}

func (f *fakeSync) Start(ctx context.Context, req syncer.Request) error {
	if f.startErr != nil {
		return f.startErr
	}
	f.started = append(f.started, req)
	f.runCtx = ctx
	return nil
}

func (f *fakeSync) State() syncer.State { return f.state }

type fakeLog struct{ entries []*models.SyncLogEntry }

func (f *fakeLog) ListRecent(ctx context.Context, limit int) ([]*models.SyncLogEntry, error) {
	return f.entries, nil
}

type fakeAnalyzer struct {
	err          error
	gotFilters   analytics.Filters
	gotSeasonA   int
	gotSeasonB   int
	gotMetric    string
	gotThreshold float64
}

func (f *fakeAnalyzer) SearchPlayers(ctx context.Context, fragment string, limit int) ([]analytics.PlayerRef, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []analytics.PlayerRef{{ID: 1, FullName: "LeBron James"}}, nil
}

func (f *fakeAnalyzer) MetricRate(ctx context.Context, playerQuery, metric string, threshold float64, filters analytics.Filters) (*analytics.RateResult, error) {
	f.gotFilters, f.gotMetric, f.gotThreshold = filters, metric, threshold
	if f.err != nil {
		return nil, f.err
	}
	rate := 0.6
	return &analytics.RateResult{
		Player:      analytics.PlayerRef{ID: 1, FullName: "LeBron James"},
		Metric:      models.MetricPoints,
		Threshold:   threshold,
		RateSummary: analytics.RateSummary{Total: 5, Met: 3, Rate: &rate},
	}, nil
}

func (f *fakeAnalyzer) CompareSeasons(ctx context.Context, playerQuery, metric string, seasonA, seasonB int) (*analytics.ComparisonResult, error) {
	f.gotSeasonA, f.gotSeasonB = seasonA, seasonB
	if f.err != nil {
		return nil, f.err
	}
	return &analytics.ComparisonResult{Delta: &analytics.SeasonDelta{Mean: 1}, Trend: analytics.TrendIncreased}, nil
}

func (f *fakeAnalyzer) PlayerStats(ctx context.Context, playerQuery string, filters analytics.Filters) (*analytics.PlayerStatsResult, error) {
	f.gotFilters = filters
	if f.err != nil {
		return nil, f.err
	}
	pct := 51.4
	return &analytics.PlayerStatsResult{
		Player:      analytics.PlayerRef{ID: 1, FullName: "LeBron James"},
		GamesPlayed: 2,
		Averages:    map[models.Metric]analytics.MetricAverage{},
		FieldGoals:  analytics.Shooting{Made: 18, Attempted: 35, Pct: &pct},
	}, nil
}

type fakeHealth struct{ err error }

func (f fakeHealth) Health(ctx context.Context) error { return f.err }

func sampleEntry() *models.SyncLogEntry {
	start := time.Date(2024, 1, 16, 11, 0, 0, 0, time.UTC)
	return &models.SyncLogEntry{
		RunID:      uuid.New(),
		Mode:       models.SyncModeDaily,
		Status:     models.SyncStatusSuccess,
		StartedAt:  start,
		FinishedAt: start.Add(time.Minute),
		RangeStart: time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
		RangeEnd:   time.Date(2024, 1, 16, 0, 0, 0, 0, time.UTC),
	}
}

type testEnv struct {
	sync     *fakeSync
	log      *fakeLog
	analyzer *fakeAnalyzer
	health   fakeHealth
}

func (e *testEnv) do(t *testing.T, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	router := NewRouter(Deps{Sync: e.sync, SyncLog: e.log, Analyzer: e.analyzer, Health: e.health})

	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func newEnv() *testEnv {
	return &testEnv{sync: &fakeSync{}, log: &fakeLog{}, analyzer: &fakeAnalyzer{}}
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestHealthCheck(t *testing.T) {
	env := newEnv()
	rec := env.do(t, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"healthy"`)

	env.health = fakeHealth{err: errors.New("connection refused")}
	rec = env.do(t, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestCORS(t *testing.T) {
	router := NewRouter(Deps{Sync: &fakeSync{}, SyncLog: &fakeLog{}, Analyzer: &fakeAnalyzer{}, Health: fakeHealth{},
		CORSAllowOrigins: []string{"https://stats.example.com"}})

	req := httptest.NewRequest(http.MethodOptions, "/analytics/metric-rate", nil)
	req.Header.Set("Origin", "https://stats.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, "https://stats.example.com", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestSyncDaily(t *testing.T) {
	env := newEnv()
	rec := env.do(t, http.MethodPost, "/sync/daily", "")

	require.Equal(t, http.StatusOK, rec.Code)
	var run SyncRun
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &run))
	assert.Equal(t, "success", run.Status)
	assert.Equal(t, "2024-01-15", run.RangeStart)
	assert.Equal(t, []int64{}, run.FailedGameIDs)
	assert.InDelta(t, 60.0, run.DurationSeconds, 1e-9)
}

func TestSyncDaily_InProgress(t *testing.T) {
	env := newEnv()
	env.sync.err = syncer.ErrSyncInProgress

	rec := env.do(t, http.MethodPost, "/sync/daily", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "SYNC_IN_PROGRESS", decodeError(t, rec).Error.Code)
}

func TestSyncDaily_AsyncRejectedWhileRunning(t *testing.T) {
	env := newEnv()
	env.sync.startErr = syncer.ErrSyncInProgress

	rec := env.do(t, http.MethodPost, "/sync/daily?async=true", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "SYNC_IN_PROGRESS", decodeError(t, rec).Error.Code)
	assert.Empty(t, env.sync.started)
}

func TestSyncDaily_AsyncAdmitted(t *testing.T) {
	env := newEnv()

	rec := env.do(t, http.MethodPost, "/sync/daily?async=true", "")
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Contains(t, rec.Body.String(), `"range_start":"2024-01-15"`)
	require.Len(t, env.sync.started, 1)
	assert.Empty(t, env.sync.runs, "async requests never run inline")
}

func TestSyncRuns_UseRunContext(t *testing.T) {
	type ctxKey struct{}
	base := context.WithValue(context.Background(), ctxKey{}, "worker")
	fs := &fakeSync{}
	router := NewRouter(Deps{Sync: fs, SyncLog: &fakeLog{}, Analyzer: &fakeAnalyzer{}, Health: fakeHealth{}, RunContext: base})

	for _, target := range []string{"/sync/daily", "/sync/daily?async=true"} {
		fs.runCtx = nil
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, target, nil))
		require.Less(t, rec.Code, 300, target)
		require.NotNil(t, fs.runCtx, target)
		assert.Equal(t, "worker", fs.runCtx.Value(ctxKey{}), target)
	}
}

func TestSyncInitial(t *testing.T) {
	env := newEnv()
	rec := env.do(t, http.MethodPost, "/sync/initial", `{"start_date":"2023-10-24","end_date":"2023-10-31","season":2023}`)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, env.sync.runs, 1)
	req := env.sync.runs[0]
	assert.Equal(t, models.SyncModeInitial, req.Mode)
	assert.Equal(t, time.Date(2023, 10, 24, 0, 0, 0, 0, time.UTC), req.Range.Start)
	assert.Equal(t, time.Date(2023, 10, 31, 0, 0, 0, 0, time.UTC), req.Range.End)
	require.NotNil(t, req.Season)
	assert.Equal(t, 2023, *req.Season)
}

func TestSyncInitial_BadBody(t *testing.T) {
	env := newEnv()

	rec := env.do(t, http.MethodPost, "/sync/initial", `{"start_date":"yesterday"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, "/sync/initial", `not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, env.sync.runs)
}

func TestSyncStatus(t *testing.T) {
	env := newEnv()
	env.log.entries = []*models.SyncLogEntry{sampleEntry(), sampleEntry()}

	rec := env.do(t, http.MethodGet, "/sync/status", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		State      string    `json:"state"`
		RecentRuns []SyncRun `json:"recent_runs"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "idle", body.State)
	assert.Len(t, body.RecentRuns, 2)
}

func TestSearchPlayers(t *testing.T) {
	env := newEnv()
	rec := env.do(t, http.MethodGet, "/players/search?name=lebron", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "LeBron James")
}

func TestMetricRate(t *testing.T) {
	env := newEnv()
	rec := env.do(t, http.MethodGet, "/analytics/metric-rate?player=lebron&metric=pts&threshold=25.5&season=2023&location=away&opponent=BOS&from=2023-11-01&to=2024-01-31&window=5", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.InDelta(t, 25.5, env.analyzer.gotThreshold, 1e-9)
	f := env.analyzer.gotFilters
	require.NotNil(t, f.Season)
	assert.Equal(t, 2023, *f.Season)
	assert.Equal(t, models.LocationAway, f.Location)
	assert.Equal(t, "BOS", f.Opponent)
	require.NotNil(t, f.From)
	require.NotNil(t, f.To)
	assert.Equal(t, 5, f.WindowSize)

	var result analytics.RateResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, 3, result.Met)
}

func TestMetricRate_BadParams(t *testing.T) {
	tests := []string{
		"/analytics/metric-rate?player=x&metric=pts",
		"/analytics/metric-rate?player=x&metric=pts&threshold=abc",
		"/analytics/metric-rate?player=x&metric=pts&threshold=1&location=moon",
		"/analytics/metric-rate?player=x&metric=pts&threshold=1&from=01/02/2024",
		"/analytics/metric-rate?player=x&metric=pts&threshold=1&window=-1",
	}
	for _, target := range tests {
		t.Run(target, func(t *testing.T) {
			rec := newEnv().do(t, http.MethodGet, target, "")
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, "BAD_REQUEST", decodeError(t, rec).Error.Code)
		})
	}
}

func TestSeasonComparison(t *testing.T) {
	env := newEnv()
	rec := env.do(t, http.MethodGet, "/analytics/season-comparison?player=1&metric=pts&season_a=2022&season_b=2023", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2022, env.analyzer.gotSeasonA)
	assert.Equal(t, 2023, env.analyzer.gotSeasonB)
	assert.Contains(t, rec.Body.String(), `"increased"`)

	rec = env.do(t, http.MethodGet, "/analytics/season-comparison?player=1&metric=pts&season_a=last", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPlayerStats(t *testing.T) {
	env := newEnv()
	rec := env.do(t, http.MethodGet, "/analytics/player-stats?player=lebron&season=2023&location=home&opponent=BOS", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"games_played":2`)
	assert.Contains(t, rec.Body.String(), `"pct":51.4`)
	require.NotNil(t, env.analyzer.gotFilters.Season)
	assert.Equal(t, 2023, *env.analyzer.gotFilters.Season)
	assert.Equal(t, models.LocationHome, env.analyzer.gotFilters.Location)
	assert.Equal(t, "BOS", env.analyzer.gotFilters.Opponent)

	rec = env.do(t, http.MethodGet, "/analytics/player-stats?player=lebron&location=neutral", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	env.analyzer.err = analytics.ErrPlayerNotFound
	rec = env.do(t, http.MethodGet, "/analytics/player-stats?player=nobody", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   string
	}{
		{fmt.Errorf("%w: 99", analytics.ErrPlayerNotFound), http.StatusNotFound, "PLAYER_NOT_FOUND"},
		{&analytics.AmbiguousPlayerError{Query: "williams", Candidates: []analytics.PlayerRef{{ID: 2}, {ID: 3}}}, http.StatusConflict, "AMBIGUOUS_PLAYER"},
		{fmt.Errorf("%w: \"dunks\"", analytics.ErrUnknownMetric), http.StatusBadRequest, "UNKNOWN_METRIC"},
		{fmt.Errorf("query: %w", client.ErrProviderUnavailable), http.StatusBadGateway, "PROVIDER_UNAVAILABLE"},
		{fmt.Errorf("query: %w", repository.ErrStorageUnavailable), http.StatusServiceUnavailable, "STORAGE_UNAVAILABLE"},
		{errors.New("boom"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			env := newEnv()
			env.analyzer.err = tt.err

			rec := env.do(t, http.MethodGet, "/analytics/metric-rate?player=x&metric=pts&threshold=1", "")
			assert.Equal(t, tt.status, rec.Code)
			resp := decodeError(t, rec)
			assert.Equal(t, tt.code, resp.Error.Code)
			assert.NotEmpty(t, resp.Error.Message)
		})
	}
}

func TestErrorMapping_AmbiguousListsCandidates(t *testing.T) {
	env := newEnv()
	env.analyzer.err = &analytics.AmbiguousPlayerError{
		Query:      "williams",
		Candidates: []analytics.PlayerRef{{ID: 2, FullName: "Jalen Williams"}, {ID: 3, FullName: "Jaylin Williams"}},
	}

	rec := env.do(t, http.MethodGet, "/analytics/season-comparison?player=williams&metric=pts&season_a=2022&season_b=2023", "")

	assert.Equal(t, http.StatusConflict, rec.Code)
	resp := decodeError(t, rec)
	require.Len(t, resp.Error.Candidates, 2)
	assert.Equal(t, "Jaylin Williams", resp.Error.Candidates[1].FullName)
}

func TestSyncFailure_MapsCause(t *testing.T) {
	env := newEnv()
	env.sync.err = fmt.Errorf("%w: run x: %w", syncer.ErrSyncFailed, client.ErrProviderUnavailable)

	rec := env.do(t, http.MethodPost, "/sync/daily", "")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}
