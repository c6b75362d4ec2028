package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"hoopstats/ingestion/internal/analytics"
	"hoopstats/ingestion/internal/models"
	"hoopstats/ingestion/internal/syncer"
)

// statusLimit is how many recent runs /sync/status returns
const statusLimit = 10

// Handler holds the dependencies for all endpoint handlers
type Handler struct {
	deps Deps
}

// SyncRun is the JSON view of a sync log entry
type SyncRun struct {
	RunID             string  `json:"run_id"`
	Mode              string  `json:"mode"`
	Status            string  `json:"status"`
	StartedAt         string  `json:"started_at"`
	FinishedAt        string  `json:"finished_at"`
	DurationSeconds   float64 `json:"duration_seconds"`
	Season            *int    `json:"season,omitempty"`
	RangeStart        string  `json:"range_start"`
	RangeEnd          string  `json:"range_end"`
	CompleteThrough   *string `json:"complete_through"`
	GamesFetched      int     `json:"games_fetched"`
	GamesUpserted     int     `json:"games_upserted"`
	StatLinesUpserted int     `json:"stat_lines_upserted"`
	GamesFailed       int     `json:"games_failed"`
	ErrorCount        int     `json:"error_count"`
	FailedGameIDs     []int64 `json:"failed_game_ids"`
	ErrorMessage      *string `json:"error_message"`
}

func newSyncRun(e *models.SyncLogEntry) SyncRun {
	run := SyncRun{
		RunID:             e.RunID.String(),
		Mode:              string(e.Mode),
		Status:            string(e.Status),
		StartedAt:         e.StartedAt.UTC().Format(time.RFC3339),
		FinishedAt:        e.FinishedAt.UTC().Format(time.RFC3339),
		DurationSeconds:   e.Duration().Seconds(),
		RangeStart:        e.RangeStart.Format(models.DateLayout),
		RangeEnd:          e.RangeEnd.Format(models.DateLayout),
		GamesFetched:      e.GamesFetched,
		GamesUpserted:     e.GamesUpserted,
		StatLinesUpserted: e.StatLinesUpserted,
		GamesFailed:       e.GamesFailed,
		ErrorCount:        e.ErrorCount,
		FailedGameIDs:     e.FailedGameIDs,
	}
	if run.FailedGameIDs == nil {
		run.FailedGameIDs = []int64{}
	}
	if e.Season.Valid {
		season := int(e.Season.Int32)
		run.Season = &season
	}
	if e.CompleteThrough.Valid {
		d := e.CompleteThrough.Time.Format(models.DateLayout)
		run.CompleteThrough = &d
	}
	if e.ErrorMessage.Valid {
		msg := e.ErrorMessage.String
		run.ErrorMessage = &msg
	}
	return run
}

// HealthCheck reports whether the database is reachable
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	if err := h.deps.Health.Health(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status":   "unhealthy",
			"database": err.Error(),
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":     "healthy",
		"database":   "connected",
		"sync_state": h.deps.Sync.State().String(),
	})
}

// SyncDaily runs the daily sync. With ?async=true the run is admitted
// synchronously, continues in the background and the request returns 202.
func (h *Handler) SyncDaily(w http.ResponseWriter, r *http.Request) {
	req, err := h.deps.Sync.DailyRequest(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	h.runSync(w, r, req)
}

type initialSyncRequest struct {
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
	Season    *int   `json:"season"`
}

// SyncInitial backfills an explicit date range
func (h *Handler) SyncInitial(w http.ResponseWriter, r *http.Request) {
	var body initialSyncRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, fmt.Errorf("%w: invalid JSON body: %v", errBadRequest, err))
		return
	}

	start, err := time.Parse(models.DateLayout, body.StartDate)
	if err != nil {
		writeError(w, fmt.Errorf("%w: start_date must be YYYY-MM-DD", errBadRequest))
		return
	}

	var end *time.Time
	if body.EndDate != "" {
		e, err := time.Parse(models.DateLayout, body.EndDate)
		if err != nil {
			writeError(w, fmt.Errorf("%w: end_date must be YYYY-MM-DD", errBadRequest))
			return
		}
		end = &e
	}

	h.runSync(w, r, h.deps.Sync.InitialRequest(start, end, body.Season))
}

func (h *Handler) runSync(w http.ResponseWriter, r *http.Request, req syncer.Request) {
	ctx := h.deps.RunContext

	if async, _ := strconv.ParseBool(r.URL.Query().Get("async")); async {
		if err := h.deps.Sync.Start(ctx, req); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]string{
			"status":      "started",
			"mode":        string(req.Mode),
			"range_start": req.Range.Start.Format(models.DateLayout),
			"range_end":   req.Range.End.Format(models.DateLayout),
		})
		return
	}

	entry, err := h.deps.Sync.Run(ctx, req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newSyncRun(entry))
}

// SyncStatus returns the engine state and the most recent runs
func (h *Handler) SyncStatus(w http.ResponseWriter, r *http.Request) {
	entries, err := h.deps.SyncLog.ListRecent(r.Context(), statusLimit)
	if err != nil {
		writeError(w, err)
		return
	}

	runs := make([]SyncRun, 0, len(entries))
	for _, e := range entries {
		runs = append(runs, newSyncRun(e))
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"state":       h.deps.Sync.State().String(),
		"recent_runs": runs,
	})
}

// SearchPlayers finds players by name fragment
func (h *Handler) SearchPlayers(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	if name == "" {
		name = r.URL.Query().Get("q")
	}

	players, err := h.deps.Analyzer.SearchPlayers(r.Context(), name, 20)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"query":   name,
		"count":   len(players),
		"players": players,
	})
}

// MetricRate reports how often a player reached a threshold
func (h *Handler) MetricRate(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	threshold, err := strconv.ParseFloat(q.Get("threshold"), 64)
	if err != nil {
		writeError(w, fmt.Errorf("%w: threshold must be a number", errBadRequest))
		return
	}

	filters, err := parseFilters(q.Get)
	if err != nil {
		writeError(w, err)
		return
	}

	result, err := h.deps.Analyzer.MetricRate(r.Context(), q.Get("player"), q.Get("metric"), threshold, filters)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// SeasonComparison compares a metric across two seasons
func (h *Handler) SeasonComparison(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	seasonA, errA := strconv.Atoi(q.Get("season_a"))
	seasonB, errB := strconv.Atoi(q.Get("season_b"))
	if errA != nil || errB != nil {
		writeError(w, fmt.Errorf("%w: season_a and season_b must be years", errBadRequest))
		return
	}

	result, err := h.deps.Analyzer.CompareSeasons(r.Context(), q.Get("player"), q.Get("metric"), seasonA, seasonB)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// PlayerStats returns per-game averages and shooting percentages over the
// filtered games
func (h *Handler) PlayerStats(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	filters, err := parseFilters(q.Get)
	if err != nil {
		writeError(w, err)
		return
	}

	result, err := h.deps.Analyzer.PlayerStats(r.Context(), q.Get("player"), filters)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// parseFilters reads the optional metric-rate filters. get returns "" for
// absent parameters.
func parseFilters(get func(string) string) (analytics.Filters, error) {
	var f analytics.Filters

	if s := strings.TrimSpace(get("season")); s != "" {
		season, err := strconv.Atoi(s)
		if err != nil {
			return f, fmt.Errorf("%w: season must be a year", errBadRequest)
		}
		f.Season = &season
	}

	location, err := models.ParseLocation(get("location"))
	if err != nil {
		return f, fmt.Errorf("%w: %v", errBadRequest, err)
	}
	f.Location = location
	f.Opponent = strings.TrimSpace(get("opponent"))

	for _, p := range []struct {
		name string
		dst  **time.Time
	}{{"from", &f.From}, {"to", &f.To}} {
		s := strings.TrimSpace(get(p.name))
		if s == "" {
			continue
		}
		d, err := time.Parse(models.DateLayout, s)
		if err != nil {
			return f, fmt.Errorf("%w: %s must be YYYY-MM-DD", errBadRequest, p.name)
		}
		*p.dst = &d
	}

	if s := strings.TrimSpace(get("window")); s != "" {
		size, err := strconv.Atoi(s)
		if err != nil || size < 0 {
			return f, fmt.Errorf("%w: window must be a non-negative integer", errBadRequest)
		}
		f.WindowSize = size
	}

	return f, nil
}
