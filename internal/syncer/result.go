package syncer

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"hoopstats/ingestion/internal/models"

	"github.com/google/uuid"
)

// maxErrorMessages bounds the error summary stored on the log entry
const maxErrorMessages = 10

// Result accumulates the outcome of one run. It is owned by that run and
// never shared.
type Result struct {
	RunID     uuid.UUID
	Mode      models.SyncMode
	Range     models.DateRange
	Season    *int
	StartedAt time.Time

	DatesFetched      int
	GamesFetched      int
	GamesUpserted     int
	StatLinesUpserted int
	TeamsUpserted     int
	PlayersUpserted   int
	FailedGameIDs     []int64
	Errors            []string

	// incompleteFrom is the earliest date with missing or non-final data
	incompleteFrom *time.Time
	abortErr       error
	firstErr       error
}

func newResult(req Request, startedAt time.Time) *Result {
	return &Result{
		RunID:     uuid.New(),
		Mode:      req.Mode,
		Range:     req.Range,
		Season:    req.Season,
		StartedAt: startedAt,
	}
}

func (r *Result) recordError(err error) {
	if r.firstErr == nil {
		r.firstErr = err
	}
	r.Errors = append(r.Errors, err.Error())
}

func (r *Result) markIncomplete(day time.Time) {
	if r.incompleteFrom == nil || day.Before(*r.incompleteFrom) {
		d := day
		r.incompleteFrom = &d
	}
}

func (r *Result) dateFailed(day time.Time, err error) {
	r.recordError(fmt.Errorf("fetch games %s: %w", day.Format(models.DateLayout), err))
	r.markIncomplete(day)
}

func (r *Result) gameFailed(day time.Time, gameID int64, err error) {
	r.recordError(fmt.Errorf("game %d: %w", gameID, err))
	r.FailedGameIDs = append(r.FailedGameIDs, gameID)
	r.markIncomplete(day)
}

// abort stops the run. Dates from day onward are not complete.
func (r *Result) abort(day time.Time, err error) {
	r.recordError(err)
	r.abortErr = err
	r.markIncomplete(day)
}

// Aborted reports whether the run stopped early
func (r *Result) Aborted() bool {
	return r.abortErr != nil
}

// progressed reports whether the run fetched any date or wrote any row
func (r *Result) progressed() bool {
	return r.DatesFetched > 0 || r.GamesUpserted > 0 || r.TeamsUpserted > 0 || r.PlayersUpserted > 0
}

// Status derives the run outcome from the accumulated counts
func (r *Result) Status() models.SyncStatus {
	switch {
	case r.abortErr != nil:
		return models.SyncStatusFailed
	case len(r.Errors) == 0:
		return models.SyncStatusSuccess
	case r.progressed():
		return models.SyncStatusPartial
	default:
		return models.SyncStatusFailed
	}
}

// CompleteThrough is the last date before any missing or non-final data.
// It may fall before the range start when the first date is incomplete.
func (r *Result) CompleteThrough() time.Time {
	if r.incompleteFrom == nil {
		return r.Range.End
	}
	return r.incompleteFrom.AddDate(0, 0, -1)
}

// Cause returns the error that decided a failed status
func (r *Result) Cause() error {
	if r.abortErr != nil {
		return r.abortErr
	}
	return r.firstErr
}

// Entry builds the audit record for the run
func (r *Result) Entry(finishedAt time.Time) *models.SyncLogEntry {
	entry := &models.SyncLogEntry{
		RunID:             r.RunID,
		Mode:              r.Mode,
		StartedAt:         r.StartedAt,
		FinishedAt:        finishedAt,
		Status:            r.Status(),
		RangeStart:        r.Range.Start,
		RangeEnd:          r.Range.End,
		CompleteThrough:   sql.NullTime{Time: r.CompleteThrough(), Valid: true},
		GamesFetched:      r.GamesFetched,
		GamesUpserted:     r.GamesUpserted,
		StatLinesUpserted: r.StatLinesUpserted,
		GamesFailed:       len(r.FailedGameIDs),
		ErrorCount:        len(r.Errors),
		FailedGameIDs:     r.FailedGameIDs,
	}

	if r.Season != nil {
		entry.Season = sql.NullInt32{Int32: int32(*r.Season), Valid: true}
	}

	if len(r.Errors) > 0 {
		msgs := r.Errors
		if len(msgs) > maxErrorMessages {
			msgs = append(msgs[:maxErrorMessages:maxErrorMessages], fmt.Sprintf("and %d more", len(r.Errors)-maxErrorMessages))
		}
		entry.ErrorMessage = sql.NullString{String: strings.Join(msgs, "; "), Valid: true}
	}

	return entry
}
