package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"hoopstats/ingestion/internal/models"
)

// SyncLogRepository reads and appends sync audit records.
// The table is append-only; a trigger rejects updates and deletes.
type SyncLogRepository struct {
	db *Database
}

// Append writes a completed run's log entry
func (r *SyncLogRepository) Append(ctx context.Context, entry *models.SyncLogEntry) (err error) {
	start := time.Now()
	defer func() { observe("insert", "sync_log", start, err) }()

	failed := entry.FailedGameIDs
	if failed == nil {
		failed = []int64{}
	}

	query := `
		INSERT INTO sync_log (
			run_id, mode, started_at, finished_at, status, season,
			range_start, range_end, complete_through,
			games_fetched, games_upserted, stat_lines_upserted, games_failed, error_count,
			failed_game_ids, error_message
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		RETURNING id
	`

	err = r.db.Pool.QueryRow(
		ctx, query,
		entry.RunID, string(entry.Mode), entry.StartedAt, entry.FinishedAt, string(entry.Status), entry.Season,
		entry.RangeStart, entry.RangeEnd, entry.CompleteThrough,
		entry.GamesFetched, entry.GamesUpserted, entry.StatLinesUpserted, entry.GamesFailed, entry.ErrorCount,
		failed, entry.ErrorMessage,
	).Scan(&entry.ID)

	if err != nil {
		return fmt.Errorf("failed to append sync log: %w", classify(err))
	}
	return nil
}

// LatestSuccessfulSyncDate returns the furthest date covered completely by
// a successful run. ok is false when no run has succeeded yet.
func (r *SyncLogRepository) LatestSuccessfulSyncDate(ctx context.Context) (date time.Time, ok bool, err error) {
	query := `SELECT MAX(complete_through) FROM sync_log WHERE status = 'success'`

	var latest sql.NullTime
	if err := r.db.Pool.QueryRow(ctx, query).Scan(&latest); err != nil {
		return time.Time{}, false, fmt.Errorf("failed to get latest successful sync: %w", classify(err))
	}
	if !latest.Valid {
		return time.Time{}, false, nil
	}
	return models.TruncateDate(latest.Time), true, nil
}

// ListRecent returns the most recent entries, newest first
func (r *SyncLogRepository) ListRecent(ctx context.Context, limit int) ([]*models.SyncLogEntry, error) {
	if limit <= 0 {
		limit = 10
	}

	query := `
		SELECT id, run_id, mode, started_at, finished_at, status, season,
		       range_start, range_end, complete_through,
		       games_fetched, games_upserted, stat_lines_upserted, games_failed, error_count,
		       failed_game_ids, error_message
		FROM sync_log
		ORDER BY started_at DESC, id DESC
		LIMIT $1
	`

	rows, err := r.db.Pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list sync log: %w", classify(err))
	}
	defer rows.Close()

	var entries []*models.SyncLogEntry
	for rows.Next() {
		var e models.SyncLogEntry
		var mode, status string
		if err := rows.Scan(
			&e.ID, &e.RunID, &mode, &e.StartedAt, &e.FinishedAt, &status, &e.Season,
			&e.RangeStart, &e.RangeEnd, &e.CompleteThrough,
			&e.GamesFetched, &e.GamesUpserted, &e.StatLinesUpserted, &e.GamesFailed, &e.ErrorCount,
			&e.FailedGameIDs, &e.ErrorMessage,
		); err != nil {
			return nil, fmt.Errorf("failed to scan sync log: %w", err)
		}
		e.Mode = models.SyncMode(mode)
		e.Status = models.SyncStatus(status)
		entries = append(entries, &e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sync log: %w", classify(err))
	}

	return entries, nil
}
