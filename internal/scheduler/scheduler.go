package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"hoopstats/ingestion/internal/models"
	"hoopstats/ingestion/internal/syncer"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

// DailyRunner is the sync entry point the schedule triggers
type DailyRunner interface {
	RunDaily(ctx context.Context) (*models.SyncLogEntry, error)
}

// Scheduler triggers the daily sync on a cron schedule
type Scheduler struct {
	runner   DailyRunner
	schedule string
	cron     *cron.Cron

	mu      sync.Mutex
	entryID cron.EntryID
	ctx     context.Context
	cancel  context.CancelFunc
}

// NewScheduler creates a new scheduler instance. Schedules are evaluated in loc.
func NewScheduler(runner DailyRunner, schedule string, loc *time.Location) *Scheduler {
	if loc == nil {
		loc = time.UTC
	}
	return &Scheduler{
		runner:   runner,
		schedule: schedule,
		cron:     cron.New(cron.WithLocation(loc)),
	}
}

// Start registers the daily sync and starts the cron loop
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		return errors.New("scheduler already started")
	}

	log.Info().Msg("Scheduler starting...")

	runCtx, cancel := context.WithCancel(ctx)
	id, err := s.cron.AddFunc(s.schedule, func() {
		log.Info().Msg("Running scheduled daily sync...")
		if _, err := s.RunNow(runCtx); err != nil {
			log.Error().Err(err).Msg("Scheduled daily sync failed")
		}
	})
	if err != nil {
		cancel()
		return fmt.Errorf("failed to schedule daily sync: %w", err)
	}

	s.entryID = id
	s.ctx = runCtx
	s.cancel = cancel
	s.cron.Start()

	log.Info().
		Str("schedule", s.schedule).
		Time("next_run", s.cron.Entry(id).Next).
		Msg("Daily sync scheduled")

	return nil
}

// RunNow triggers a daily sync immediately. A run already in progress is
// logged and reported as ErrSyncInProgress.
func (s *Scheduler) RunNow(ctx context.Context) (*models.SyncLogEntry, error) {
	entry, err := s.runner.RunDaily(ctx)
	if errors.Is(err, syncer.ErrSyncInProgress) {
		log.Warn().Msg("Daily sync skipped: another run is in progress")
		return nil, err
	}
	if err != nil {
		return entry, err
	}

	log.Info().
		Str("run_id", entry.RunID.String()).
		Str("status", string(entry.Status)).
		Msg("Daily sync finished")
	return entry, nil
}

// Next returns the next scheduled run time, or zero if not started
func (s *Scheduler) Next() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel == nil {
		return time.Time{}
	}
	return s.cron.Entry(s.entryID).Next
}

// Stop stops the scheduler and waits for a running job until ctx is done.
// The running job's context is cancelled only if the wait times out.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	log.Info().Msg("Stopping scheduler...")

	if s.cancel == nil {
		return nil
	}
	defer func() { s.cancel = nil }()

	done := s.cron.Stop()
	select {
	case <-done.Done():
		s.cancel()
		log.Info().Msg("Scheduler stopped")
		return nil
	case <-ctx.Done():
		s.cancel()
		log.Warn().Msg("Scheduler stop timed out, cancelled running sync")
		return ctx.Err()
	}
}
