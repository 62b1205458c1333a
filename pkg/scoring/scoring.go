// Package scoring ranks retrieved memory by combining vector similarity with
// recency decay, assigns relevance bands, and renders results for human or
// LLM consumption.
package scoring

import (
	"fmt"
	"math"
	"time"

	"github.com/fikri/engram/internal/config"
	"github.com/fikri/engram/pkg/store"
)

// Band is a relevance class assigned from the final score. It is unrelated to
// the retention tier an item is stored in.
type Band string

const (
	BandHigh   Band = "high"
	BandMedium Band = "medium"
	BandLow    Band = "low"
	// BandNone marks items scoring below the low threshold; they are
	// excluded from selection and formatting.
	BandNone Band = ""
)

// ScoredItem is a retrieved item with its score breakdown
type ScoredItem struct {
	Item       store.MemoryItem `json:"item"`
	Similarity float64          `json:"similarity"`
	Recency    float64          `json:"recency"`
	Final      float64          `json:"final"`
	Band       Band             `json:"band"`
	AgeDays    float64          `json:"age_days"`
}

// Scorer computes final relevance scores from similarity and age
type Scorer struct {
	simWeight    float64
	recWeight    float64
	halfLifeDays float64
	thresholds   config.TierThresholds
}

// New creates a scorer from scoring configuration. The configuration is
// assumed validated (weights summing to 1, descending thresholds).
func New(cfg config.ScoringConfig) *Scorer {
	return &Scorer{
		simWeight:    cfg.SimilarityWeight,
		recWeight:    cfg.RecencyWeight,
		halfLifeDays: cfg.DecayHalfLifeDays,
		thresholds:   cfg.Thresholds,
	}
}

// RecencyScore decays exponentially with age: 1.0 now, 1/e after one
// half-life window.
func (s *Scorer) RecencyScore(createdAt, now time.Time) float64 {
	ageDays := now.Sub(createdAt).Hours() / 24
	if ageDays < 0 {
		ageDays = 0
	}
	return math.Exp(-ageDays / s.halfLifeDays)
}

// FinalScore combines similarity and recency by the configured weights
func (s *Scorer) FinalScore(similarity, recency float64) float64 {
	return similarity*s.simWeight + recency*s.recWeight
}

// AssignBand maps a final score onto a relevance band using the descending
// thresholds. Scores below the low threshold get BandNone.
func (s *Scorer) AssignBand(score float64) Band {
	switch {
	case score >= s.thresholds.High:
		return BandHigh
	case score >= s.thresholds.Medium:
		return BandMedium
	case score >= s.thresholds.Low:
		return BandLow
	default:
		return BandNone
	}
}

// Score produces the full breakdown for one nearest-neighbor result
func (s *Scorer) Score(n store.Neighbor, now time.Time) ScoredItem {
	ageDays := now.Sub(n.Item.CreatedAt).Hours() / 24
	if ageDays < 0 {
		ageDays = 0
	}
	recency := s.RecencyScore(n.Item.CreatedAt, now)
	final := s.FinalScore(n.Similarity, recency)

	return ScoredItem{
		Item:       n.Item,
		Similarity: n.Similarity,
		Recency:    recency,
		Final:      final,
		Band:       s.AssignBand(final),
		AgeDays:    ageDays,
	}
}

// ScoreAll scores a batch of neighbors against one reference time
func (s *Scorer) ScoreAll(neighbors []store.Neighbor, now time.Time) []ScoredItem {
	out := make([]ScoredItem, 0, len(neighbors))
	for _, n := range neighbors {
		out = append(out, s.Score(n, now))
	}
	return out
}

// SelectByBand walks bands in high, medium, low order, taking up to each
// band's cap, and concatenates the picks without re-sorting across bands.
// Items must already be sorted by final score descending.
func SelectByBand(items []ScoredItem, caps config.TierCaps) []ScoredItem {
	limits := map[Band]int{
		BandHigh:   caps.High,
		BandMedium: caps.Medium,
		BandLow:    caps.Low,
	}

	var selected []ScoredItem
	for _, band := range []Band{BandHigh, BandMedium, BandLow} {
		taken := 0
		for _, item := range items {
			if item.Band != band {
				continue
			}
			if taken >= limits[band] {
				break
			}
			selected = append(selected, item)
			taken++
		}
	}
	return selected
}

// AgeLabel renders an item age as a short human label
func AgeLabel(age time.Duration) string {
	days := int(age.Hours() / 24)
	switch {
	case days <= 0:
		return "today"
	case days == 1:
		return "yesterday"
	case days < 7:
		return fmt.Sprintf("%dd ago", days)
	case days < 30:
		return fmt.Sprintf("%dw ago", days/7)
	default:
		return fmt.Sprintf("%dmo ago", days/30)
	}
}
