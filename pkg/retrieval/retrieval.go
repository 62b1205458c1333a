// Package retrieval runs the memory search pipeline: overquery the vector
// index, score, filter, deduplicate, select per relevance band, and format.
package retrieval

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/fikri/engram/internal/config"
	"github.com/fikri/engram/internal/metrics"
	"github.com/fikri/engram/pkg/embedding"
	"github.com/fikri/engram/pkg/scoring"
	"github.com/fikri/engram/pkg/store"
)

// Mode selects the output rendering
type Mode string

const (
	ModeFull Mode = "full"
	ModeLLM  Mode = "llm"
)

// Request is one retrieval query
type Request struct {
	Query  string
	Filter store.Filter
	// Limit overrides the configured result limit when positive
	Limit int
	Mode  Mode
}

// Stats summarizes what the pipeline did with the candidate set
type Stats struct {
	// Total is the number of candidates the overquery produced
	Total int `json:"total"`
	// Filtered counts candidates dropped below the score floor
	Filtered int `json:"filtered"`
	// Deduped counts near-duplicates collapsed into group survivors
	Deduped int `json:"deduped"`
	// Returned is the final result count
	Returned      int     `json:"returned"`
	AvgSimilarity float64 `json:"avg_similarity"`
	AvgRecency    float64 `json:"avg_recency"`
}

// Response carries the selected results, their rendering, and pipeline stats
type Response struct {
	Results   []scoring.ScoredItem `json:"results"`
	Formatted string               `json:"formatted"`
	Stats     Stats                `json:"stats"`
}

// Orchestrator coordinates one retrieval pipeline over the shared store
type Orchestrator struct {
	store    *store.Store
	provider embedding.Provider
	scorer   *scoring.Scorer
	cfg      config.RetrievalConfig
	logger   zerolog.Logger
	metrics  *metrics.Metrics
}

// New creates a retrieval orchestrator. Metrics may be nil.
func New(s *store.Store, provider embedding.Provider, scorer *scoring.Scorer, cfg config.RetrievalConfig, logger zerolog.Logger, m *metrics.Metrics) *Orchestrator {
	return &Orchestrator{
		store:    s,
		provider: provider,
		scorer:   scorer,
		cfg:      cfg,
		logger:   logger,
		metrics:  m,
	}
}

// Search runs the full pipeline for one query. An empty candidate set is not
// an error: the response comes back well-formed with zeroed stats.
func (o *Orchestrator) Search(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()
	mode := req.Mode
	if mode == "" {
		mode = ModeFull
	}
	limit := req.Limit
	if limit <= 0 {
		limit = o.cfg.Limit
	}

	resp, err := o.search(ctx, req, mode, limit)

	if o.metrics != nil {
		status := "ok"
		if err != nil {
			status = "error"
		}
		o.metrics.SearchesTotal.WithLabelValues(string(mode), status).Inc()
		o.metrics.SearchDuration.Observe(time.Since(start).Seconds())
		if resp != nil {
			o.metrics.SearchResultsCount.Observe(float64(resp.Stats.Returned))
		}
	}
	return resp, err
}

func (o *Orchestrator) search(ctx context.Context, req Request, mode Mode, limit int) (*Response, error) {
	vec, err := o.provider.Embed(ctx, req.Query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	vec = embedding.Normalize(vec, o.store.Dim())

	// Overquery so downstream filtering still has enough candidates
	k := limit * o.cfg.OverqueryMultiplier
	if k < limit {
		k = limit
	}

	neighbors, err := o.store.NearestItems(ctx, vec, req.Filter, nil, k, o.cfg.MinSimilarity)
	if err != nil {
		return nil, fmt.Errorf("vector search failed: %w", err)
	}

	now := time.Now()
	scored := o.scorer.ScoreAll(neighbors, now)
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Final > scored[j].Final
	})

	kept := scored[:0:len(scored)]
	for _, item := range scored {
		if item.Final >= o.cfg.ScoreFloor {
			kept = append(kept, item)
		}
	}

	unique := dedup(kept, o.cfg.DedupThreshold)

	selected := scoring.SelectByBand(unique, o.cfg.TierCaps)
	if len(selected) > limit {
		selected = selected[:limit]
	}

	resp := &Response{
		Results: selected,
		Stats: Stats{
			Total:    len(scored),
			Filtered: len(scored) - len(kept),
			Deduped:  len(kept) - len(unique),
			Returned: len(selected),
		},
	}
	for _, item := range selected {
		resp.Stats.AvgSimilarity += item.Similarity
		resp.Stats.AvgRecency += item.Recency
	}
	if n := len(selected); n > 0 {
		resp.Stats.AvgSimilarity /= float64(n)
		resp.Stats.AvgRecency /= float64(n)
	}

	switch mode {
	case ModeLLM:
		resp.Formatted = scoring.FormatLLM(selected, o.cfg.TokenBudget, o.cfg.CharsPerToken)
	default:
		resp.Formatted = scoring.FormatFull(selected)
	}

	o.logger.Debug().
		Str("query", req.Query).
		Int("candidates", resp.Stats.Total).
		Int("returned", resp.Stats.Returned).
		Msg("search completed")

	return resp, nil
}
