package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate_Defaults(t *testing.T) {
	r := Validate(DefaultConfig())
	assert.True(t, r.Valid())
	assert.NoError(t, r.Err())
}

func TestValidate_WeightsMustSumToOne(t *testing.T) {
	tests := []struct {
		name       string
		similarity float64
		recency    float64
		valid      bool
	}{
		{"exact", 0.7, 0.3, true},
		{"within tolerance", 0.7, 0.305, true},
		{"too high", 0.8, 0.3, false},
		{"too low", 0.5, 0.3, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Scoring.SimilarityWeight = tt.similarity
			cfg.Scoring.RecencyWeight = tt.recency

			r := Validate(cfg)
			assert.Equal(t, tt.valid, r.Valid())
		})
	}
}

func TestValidate_ThresholdsOutOfRange(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Scoring.Thresholds.High = 1.2

	r := Validate(cfg)
	require.False(t, r.Valid())

	found := false
	for _, v := range r.Violations {
		if v.Field == "scoring.thresholds.high" {
			found = true
		}
	}
	assert.True(t, found, "expected a violation for scoring.thresholds.high")
}

func TestValidate_ThresholdsMustDescend(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Scoring.Thresholds.Medium = 0.9 // above high

	r := Validate(cfg)
	assert.False(t, r.Valid())
}

func TestValidate_CompressionRatioRange(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Refrag.CompressionRatio = 1.5

	r := Validate(cfg)
	assert.False(t, r.Valid())

	cfg.Refrag.CompressionRatio = 1.0
	assert.True(t, Validate(cfg).Valid())

	cfg.Refrag.CompressionRatio = 0.0
	assert.True(t, Validate(cfg).Valid())
}

func TestValidate_TierWindowsMustAscend(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Tiers.WarmDays = 5 // below hot

	r := Validate(cfg)
	assert.False(t, r.Valid())
}

func TestValidate_BackoffCapMustCoverBase(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Jobs.BackoffMaxMs = 0 // would clamp every retry delay to zero

	r := Validate(cfg)
	require.False(t, r.Valid())

	found := false
	for _, v := range r.Violations {
		if v.Field == "jobs.backoff_max_ms" {
			found = true
		}
	}
	assert.True(t, found, "expected a violation for jobs.backoff_max_ms")

	cfg.Jobs.BackoffMaxMs = cfg.Jobs.BackoffBaseMs
	assert.True(t, Validate(cfg).Valid())
}

func TestValidate_CollectsMultipleViolations(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Scoring.SimilarityWeight = 0.9 // breaks weight sum
	cfg.Chunking.ChunkTokens = 0
	cfg.Jobs.Workers = -1

	r := Validate(cfg)
	require.False(t, r.Valid())
	assert.GreaterOrEqual(t, len(r.Violations), 3)
	assert.Error(t, r.Err())
}
