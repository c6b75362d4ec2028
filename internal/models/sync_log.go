package models

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// SyncStatus is the outcome of a sync run
type SyncStatus string

const (
	SyncStatusSuccess SyncStatus = "success"
	SyncStatusPartial SyncStatus = "partial"
	SyncStatusFailed  SyncStatus = "failed"
)

// SyncMode identifies how the sync window was chosen
type SyncMode string

const (
	SyncModeInitial SyncMode = "initial"
	SyncModeDaily   SyncMode = "daily"
)

// SyncLogEntry is the audit record written once at the end of every sync run
type SyncLogEntry struct {
	ID         int64      `db:"id"`
	RunID      uuid.UUID  `db:"run_id"`
	Mode       SyncMode   `db:"mode"`
	StartedAt  time.Time  `db:"started_at"`
	FinishedAt time.Time  `db:"finished_at"`
	Status     SyncStatus `db:"status"`

	Season     sql.NullInt32 `db:"season"`
	RangeStart time.Time     `db:"range_start"`
	RangeEnd   time.Time     `db:"range_end"`
	// CompleteThrough is the last date whose games were all fetched, final
	// and stored. Daily runs resume from the day after it.
	CompleteThrough sql.NullTime `db:"complete_through"`

	GamesFetched      int     `db:"games_fetched"`
	GamesUpserted     int     `db:"games_upserted"`
	StatLinesUpserted int     `db:"stat_lines_upserted"`
	GamesFailed       int     `db:"games_failed"`
	ErrorCount        int     `db:"error_count"`
	FailedGameIDs     []int64 `db:"failed_game_ids"`

	ErrorMessage sql.NullString `db:"error_message"`
}

// Duration returns how long the run took
func (e *SyncLogEntry) Duration() time.Duration {
	return e.FinishedAt.Sub(e.StartedAt)
}
