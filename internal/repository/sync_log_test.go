//go:build integration

package repository

import (
	"database/sql"
	"testing"
	"time"

	"hoopstats/ingestion/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSyncLogRepository_LatestSuccessfulSyncDate(t *testing.T) {
	db, ctx := setupTestDB(t)
	defer teardownTestDB(t, db)

	_, ok, err := db.SyncLog.LatestSuccessfulSyncDate(ctx)
	require.NoError(t, err)
	assert.False(t, ok, "No runs yet")

	day := func(d int) time.Time { return time.Date(2024, 1, d, 0, 0, 0, 0, time.UTC) }
	entries := []*models.SyncLogEntry{
		{Status: models.SyncStatusSuccess, CompleteThrough: sql.NullTime{Time: day(10), Valid: true}},
		{Status: models.SyncStatusPartial, CompleteThrough: sql.NullTime{Time: day(20), Valid: true}},
		{Status: models.SyncStatusFailed},
	}
	for i, e := range entries {
		e.RunID = uuid.New()
		e.Mode = models.SyncModeDaily
		e.StartedAt = time.Now().Add(time.Duration(i) * time.Minute)
		e.FinishedAt = e.StartedAt.Add(time.Second)
		e.RangeStart = day(1)
		e.RangeEnd = day(20)
		require.NoError(t, db.SyncLog.Append(ctx, e))
		assert.NotZero(t, e.ID)
	}

	latest, ok, err := db.SyncLog.LatestSuccessfulSyncDate(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, day(10), latest, "Only successful runs count")

	recent, err := db.SyncLog.ListRecent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, recent, 3)
	assert.Equal(t, models.SyncStatusFailed, recent[0].Status, "Newest first")
}

func TestSyncLogRepository_AppendOnly(t *testing.T) {
	db, ctx := setupTestDB(t)
	defer teardownTestDB(t, db)

	e := &models.SyncLogEntry{
		RunID:      uuid.New(),
		Mode:       models.SyncModeInitial,
		Status:     models.SyncStatusSuccess,
		StartedAt:  time.Now(),
		FinishedAt: time.Now(),
		RangeStart: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		RangeEnd:   time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, db.SyncLog.Append(ctx, e))

	_, err := db.Pool.Exec(ctx, `UPDATE sync_log SET status = 'failed' WHERE id = $1`, e.ID)
	assert.Error(t, err, "Updates should be rejected")

	_, err = db.Pool.Exec(ctx, `DELETE FROM sync_log WHERE id = $1`, e.ID)
	assert.Error(t, err, "Deletes should be rejected")
}
