// Package maintenance runs the engine's scheduled jobs: periodic reindexing
// and stats refreshes.
package maintenance

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/zeroclaw-labs/zeroclaw-sub002/pkg/memory"
)

const jobTimeout = 10 * time.Minute

// Config holds maintenance scheduler configuration
type Config struct {
	ReindexSchedule string // standard 5-field cron expression, empty disables
	StatsSchedule   string
	Logger          zerolog.Logger
}

// Scheduler owns the cron runner driving the engine's maintenance jobs. Jobs
// only use the engine's public operations, so a failed run never leaves
// partial state behind.
type Scheduler struct {
	engine *memory.Engine
	cron   *cron.Cron
	logger zerolog.Logger
}

// New creates a scheduler for engine. Schedules are validated here, so Start
// cannot fail later.
func New(engine *memory.Engine, cfg Config) (*Scheduler, error) {
	s := &Scheduler{
		engine: engine,
		cron:   cron.New(),
		logger: cfg.Logger,
	}

	if cfg.ReindexSchedule != "" {
		if _, err := s.cron.AddFunc(cfg.ReindexSchedule, s.runReindex); err != nil {
			return nil, fmt.Errorf("invalid reindex schedule %q: %w", cfg.ReindexSchedule, err)
		}
	}
	if cfg.StatsSchedule != "" {
		if _, err := s.cron.AddFunc(cfg.StatsSchedule, s.runStats); err != nil {
			return nil, fmt.Errorf("invalid stats schedule %q: %w", cfg.StatsSchedule, err)
		}
	}

	return s, nil
}

// Start begins running scheduled jobs.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info().Msg("Maintenance scheduler started")
}

// Stop stops scheduling new runs and waits for in-flight jobs.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info().Msg("Maintenance scheduler stopped")
}

// Jobs returns the number of scheduled jobs.
func (s *Scheduler) Jobs() int {
	return len(s.cron.Entries())
}

// runReindex rebuilds the keyword index and backfills missing embeddings.
func (s *Scheduler) runReindex() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	start := time.Now()
	reembedded, err := s.engine.Reindex(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("Scheduled reindex failed")
		return
	}

	s.logger.Info().
		Int("reembedded", reembedded).
		Dur("duration", time.Since(start)).
		Msg("Scheduled reindex completed")
}

// runStats refreshes the engine gauges via a status snapshot.
func (s *Scheduler) runStats() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	status, err := s.engine.Status(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("Scheduled stats refresh failed")
		return
	}

	s.logger.Debug().
		Int("entries", status.Entries).
		Int("cache_records", status.CacheRecords).
		Msg("Engine stats refreshed")
}
