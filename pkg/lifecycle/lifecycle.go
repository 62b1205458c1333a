// Package lifecycle ages stored memory through retention tiers. Items move
// strictly forward (hot, warm, cold, deleted) based on age; each step trades
// retrieval fidelity for storage cost.
package lifecycle

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/fikri/engram/internal/config"
	"github.com/fikri/engram/internal/metrics"
	"github.com/fikri/engram/pkg/store"
)

// Report summarizes one transition run
type Report struct {
	DryRun        bool  `json:"dry_run"`
	HotToWarm     int   `json:"hot_to_warm"`
	WarmToCold    int   `json:"warm_to_cold"`
	ColdToDeleted int   `json:"cold_to_deleted"`
	BytesFreed    int64 `json:"bytes_freed"`
	// MonthlyCostSavings estimates the storage dollars per month the freed
	// bytes stop costing.
	MonthlyCostSavings float64 `json:"monthly_cost_savings"`
}

// Total returns the number of transitions in the report
func (r *Report) Total() int {
	return r.HotToWarm + r.WarmToCold + r.ColdToDeleted
}

// Engine applies age-based tier transitions
type Engine struct {
	store   *store.Store
	cfg     config.TiersConfig
	logger  zerolog.Logger
	metrics *metrics.Metrics
}

// New creates a tier transition engine. Metrics may be nil.
func New(s *store.Store, cfg config.TiersConfig, logger zerolog.Logger, m *metrics.Metrics) *Engine {
	return &Engine{
		store:   s,
		cfg:     cfg,
		logger:  logger,
		metrics: m,
	}
}

// Run evaluates every tier's age window and applies the due transitions.
// Eligibility is derived from current tier plus age, so re-running after a
// partial failure resumes where it left off. With dryRun set nothing is
// mutated; the report carries what a real run would have done.
//
// Steps go coldest first so each item moves at most one tier per run: a
// backlogged hot item that a hot-first order would cascade straight to cold
// instead takes one step per pass, and the dry-run report matches what the
// real run applies.
func (e *Engine) Run(ctx context.Context, dryRun bool) (*Report, error) {
	report := &Report{DryRun: dryRun}
	now := time.Now().UTC()

	steps := []struct {
		from    store.Tier
		window  int
		counter *int
	}{
		{store.TierCold, e.cfg.ColdDays, &report.ColdToDeleted},
		{store.TierWarm, e.cfg.WarmDays, &report.WarmToCold},
		{store.TierHot, e.cfg.HotDays, &report.HotToWarm},
	}

	for _, step := range steps {
		cutoff := now.Add(-time.Duration(step.window) * 24 * time.Hour)
		items, err := e.store.ListEligible(ctx, step.from, cutoff)
		if err != nil {
			return report, fmt.Errorf("failed to list %s items: %w", step.from, err)
		}

		for _, item := range items {
			freed, err := e.transition(ctx, item, dryRun)
			if err != nil {
				return report, fmt.Errorf("failed to transition item %s: %w", item.ID, err)
			}
			*step.counter++
			report.BytesFreed += freed
		}
	}

	report.MonthlyCostSavings = float64(report.BytesFreed) / (1 << 30) * e.cfg.CostPerGBMonth

	if !dryRun && e.metrics != nil {
		e.metrics.TierTransitionsTotal.WithLabelValues("hot", "warm").Add(float64(report.HotToWarm))
		e.metrics.TierTransitionsTotal.WithLabelValues("warm", "cold").Add(float64(report.WarmToCold))
		e.metrics.TierTransitionsTotal.WithLabelValues("cold", "deleted").Add(float64(report.ColdToDeleted))
		e.metrics.BytesFreedTotal.Add(float64(report.BytesFreed))
	}

	e.logger.Info().
		Bool("dry_run", dryRun).
		Int("transitions", report.Total()).
		Int64("bytes_freed", report.BytesFreed).
		Msg("tier transition run completed")

	return report, nil
}

// transition applies one item's next tier step and returns the bytes freed
func (e *Engine) transition(ctx context.Context, item store.MemoryItem, dryRun bool) (int64, error) {
	next := item.Tier.Next()
	if next == "" {
		return 0, nil
	}

	var freed int64
	switch next {
	case store.TierWarm:
		// Warm keeps everything; only the label changes

	case store.TierCold:
		// Cold drops chunk text and chunk vectors, keeping item metadata
		// and the memory-level embedding
		if dryRun {
			bytes, err := e.store.ChunkBytes(ctx, item.ID)
			if err != nil {
				return 0, err
			}
			freed = bytes
		} else {
			bytes, err := e.store.DeleteChunksForItem(ctx, item.ID)
			if err != nil {
				return 0, err
			}
			freed = bytes
			if err := e.store.SetChunksComputed(ctx, item.ID, false); err != nil {
				return freed, err
			}
		}

	case store.TierDeleted:
		// Soft delete: the embedding goes, identifiers and timestamps stay
		if !dryRun {
			if err := e.store.ClearItemEmbedding(ctx, item.ID); err != nil {
				return 0, err
			}
		}
	}

	if !dryRun {
		if err := e.store.UpdateTier(ctx, item.ID, next); err != nil {
			return freed, err
		}
	}
	return freed, nil
}
