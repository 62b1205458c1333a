package lifecycle

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Scheduler runs the transition engine on a cron schedule
type Scheduler struct {
	cron   *cron.Cron
	logger zerolog.Logger
}

// NewScheduler wires the engine to a standard 5-field cron expression
func NewScheduler(engine *Engine, schedule string, logger zerolog.Logger) (*Scheduler, error) {
	c := cron.New()

	_, err := c.AddFunc(schedule, func() {
		report, err := engine.Run(context.Background(), false)
		if err != nil {
			logger.Error().Err(err).Msg("scheduled tier transition failed")
			return
		}
		logger.Info().
			Int("transitions", report.Total()).
			Int64("bytes_freed", report.BytesFreed).
			Msg("scheduled tier transition completed")
	})
	if err != nil {
		return nil, fmt.Errorf("invalid tier schedule %q: %w", schedule, err)
	}

	return &Scheduler{cron: c, logger: logger}, nil
}

// Start begins scheduled execution in the background
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info().Msg("tier transition scheduler started")
}

// Stop halts scheduling and waits for a running job to finish
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info().Msg("tier transition scheduler stopped")
}
