package config

import (
	"fmt"
	"math"
	"strings"
)

// weightSumTolerance is the allowed deviation when checking that the
// similarity and recency weights sum to 1.0.
const weightSumTolerance = 0.01

// Violation describes a single configuration problem
type Violation struct {
	Field   string
	Message string
}

func (v Violation) String() string {
	return fmt.Sprintf("%s: %s", v.Field, v.Message)
}

// Report collects configuration violations found during validation.
// Production entrypoints refuse to start when the report is non-empty;
// tests can inspect the violation list directly.
type Report struct {
	Violations []Violation
}

// Valid reports whether the configuration passed validation
func (r *Report) Valid() bool {
	return len(r.Violations) == 0
}

// Err returns an error summarizing all violations, or nil if valid
func (r *Report) Err() error {
	if r.Valid() {
		return nil
	}
	msgs := make([]string, len(r.Violations))
	for i, v := range r.Violations {
		msgs[i] = v.String()
	}
	return fmt.Errorf("invalid configuration: %s", strings.Join(msgs, "; "))
}

func (r *Report) add(field, format string, args ...interface{}) {
	r.Violations = append(r.Violations, Violation{
		Field:   field,
		Message: fmt.Sprintf(format, args...),
	})
}

// Validate checks the configuration and returns a report of all violations
func Validate(cfg *Config) *Report {
	r := &Report{}

	// Scoring weights must sum to 1.0 within tolerance
	sum := cfg.Scoring.SimilarityWeight + cfg.Scoring.RecencyWeight
	if math.Abs(sum-1.0) > weightSumTolerance {
		r.add("scoring", "similarity_weight + recency_weight must sum to 1.0, got %.3f", sum)
	}
	if cfg.Scoring.SimilarityWeight < 0 || cfg.Scoring.SimilarityWeight > 1 {
		r.add("scoring.similarity_weight", "must be in [0,1], got %.3f", cfg.Scoring.SimilarityWeight)
	}
	if cfg.Scoring.RecencyWeight < 0 || cfg.Scoring.RecencyWeight > 1 {
		r.add("scoring.recency_weight", "must be in [0,1], got %.3f", cfg.Scoring.RecencyWeight)
	}
	if cfg.Scoring.DecayHalfLifeDays <= 0 {
		r.add("scoring.decay_half_life_days", "must be positive, got %.1f", cfg.Scoring.DecayHalfLifeDays)
	}

	// Tier thresholds must live in [0,1] and descend
	th := cfg.Scoring.Thresholds
	for _, t := range []struct {
		name  string
		value float64
	}{
		{"high", th.High},
		{"medium", th.Medium},
		{"low", th.Low},
	} {
		if t.value < 0 || t.value > 1 {
			r.add("scoring.thresholds."+t.name, "must be in [0,1], got %.3f", t.value)
		}
	}
	if !(th.High > th.Medium && th.Medium > th.Low) {
		r.add("scoring.thresholds", "must be strictly descending (high > medium > low), got %.2f/%.2f/%.2f",
			th.High, th.Medium, th.Low)
	}

	// Chunking
	if cfg.Chunking.ChunkTokens <= 0 {
		r.add("chunking.chunk_tokens", "must be positive, got %d", cfg.Chunking.ChunkTokens)
	}
	if cfg.Chunking.MinChunkTokens <= 0 {
		r.add("chunking.min_chunk_tokens", "must be positive, got %d", cfg.Chunking.MinChunkTokens)
	}

	// Embedding
	if cfg.Embedding.StorageDim <= 0 {
		r.add("embedding.storage_dim", "must be positive, got %d", cfg.Embedding.StorageDim)
	}
	if cfg.Embedding.BatchSize <= 0 {
		r.add("embedding.batch_size", "must be positive, got %d", cfg.Embedding.BatchSize)
	}

	// Retrieval
	if cfg.Retrieval.OverqueryMultiplier < 1 {
		r.add("retrieval.overquery_multiplier", "must be >= 1, got %d", cfg.Retrieval.OverqueryMultiplier)
	}
	if cfg.Retrieval.DedupThreshold < 0 || cfg.Retrieval.DedupThreshold > 1 {
		r.add("retrieval.dedup_threshold", "must be in [0,1], got %.3f", cfg.Retrieval.DedupThreshold)
	}
	if cfg.Retrieval.ScoreFloor < 0 || cfg.Retrieval.ScoreFloor > 1 {
		r.add("retrieval.score_floor", "must be in [0,1], got %.3f", cfg.Retrieval.ScoreFloor)
	}
	if cfg.Retrieval.CharsPerToken <= 0 {
		r.add("retrieval.chars_per_token", "must be positive, got %.2f", cfg.Retrieval.CharsPerToken)
	}

	// REFRAG
	if cfg.Refrag.CompressionRatio < 0 || cfg.Refrag.CompressionRatio > 1 {
		r.add("refrag.compression_ratio", "must be in [0,1], got %.3f", cfg.Refrag.CompressionRatio)
	}
	if cfg.Refrag.CandidateLimit <= 0 {
		r.add("refrag.candidate_limit", "must be positive, got %d", cfg.Refrag.CandidateLimit)
	}

	// Tier windows must ascend
	if cfg.Tiers.HotDays <= 0 {
		r.add("tiers.hot_days", "must be positive, got %d", cfg.Tiers.HotDays)
	}
	if !(cfg.Tiers.HotDays < cfg.Tiers.WarmDays && cfg.Tiers.WarmDays < cfg.Tiers.ColdDays) {
		r.add("tiers", "windows must be ascending (hot < warm < cold), got %d/%d/%d",
			cfg.Tiers.HotDays, cfg.Tiers.WarmDays, cfg.Tiers.ColdDays)
	}

	// Jobs
	if cfg.Jobs.MaxAttempts <= 0 {
		r.add("jobs.max_attempts", "must be positive, got %d", cfg.Jobs.MaxAttempts)
	}
	if cfg.Jobs.BackoffBaseMs <= 0 {
		r.add("jobs.backoff_base_ms", "must be positive, got %d", cfg.Jobs.BackoffBaseMs)
	}
	// A cap below the base would clamp every retry delay to the cap,
	// including zero, which turns backoff into a hot retry loop
	if cfg.Jobs.BackoffMaxMs < cfg.Jobs.BackoffBaseMs {
		r.add("jobs.backoff_max_ms", "must be >= backoff_base_ms, got %d < %d",
			cfg.Jobs.BackoffMaxMs, cfg.Jobs.BackoffBaseMs)
	}
	if cfg.Jobs.Workers <= 0 {
		r.add("jobs.workers", "must be positive, got %d", cfg.Jobs.Workers)
	}

	return r
}
