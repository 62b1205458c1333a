// Package refrag implements chunk-level retrieval with selective expansion:
// the most relevant chunks are returned verbatim while the long tail is
// compressed to vectors and scores, trading recall breadth for token cost.
package refrag

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/fikri/engram/internal/config"
	"github.com/fikri/engram/internal/metrics"
	"github.com/fikri/engram/pkg/embedding"
	"github.com/fikri/engram/pkg/store"
)

// ErrDisabled is returned when retrieval is attempted while the feature is
// switched off. There is no silent fallback to plain retrieval.
var ErrDisabled = errors.New("refrag retrieval is disabled")

// Request is one chunk-level retrieval query
type Request struct {
	Query  string
	Filter store.Filter
}

// ExpandedChunk is a chunk returned with its full text
type ExpandedChunk struct {
	Chunk      store.Chunk `json:"chunk"`
	Similarity float64     `json:"similarity"`
	CreatedAt  time.Time   `json:"created_at"`
}

// CompressedChunk carries only the vector, score, and provenance of a chunk;
// the text is withheld.
type CompressedChunk struct {
	ChunkID    string    `json:"chunk_id"`
	ParentID   string    `json:"parent_id"`
	Embedding  []float32 `json:"embedding"`
	Similarity float64   `json:"similarity"`
	TokenCount int       `json:"token_count"`
}

// Result is the partitioned retrieval outcome with its savings accounting
type Result struct {
	Expanded   []ExpandedChunk   `json:"expanded"`
	Compressed []CompressedChunk `json:"compressed"`
	// TokensTotal is the token sum over every candidate chunk
	TokensTotal int `json:"tokens_total"`
	// TokensSaved is the token sum over the compressed suffix
	TokensSaved  int     `json:"tokens_saved"`
	SavedPercent float64 `json:"saved_percent"`
	Formatted    string  `json:"formatted"`
}

// Engine runs chunk-level retrieval against the shared store
type Engine struct {
	store    *store.Store
	provider embedding.Provider
	cfg      config.RefragConfig
	logger   zerolog.Logger
	metrics  *metrics.Metrics
}

// New creates a refrag engine. Metrics may be nil.
func New(s *store.Store, provider embedding.Provider, cfg config.RefragConfig, logger zerolog.Logger, m *metrics.Metrics) *Engine {
	return &Engine{
		store:    s,
		provider: provider,
		cfg:      cfg,
		logger:   logger,
		metrics:  m,
	}
}

// Retrieve searches the chunk index in hot and warm tiers, partitions the
// ranked candidates at ceil(n*(1-compressionRatio)), and renders the expanded
// prefix for prompt injection.
func (e *Engine) Retrieve(ctx context.Context, req Request) (*Result, error) {
	if !e.cfg.Enabled {
		if e.metrics != nil {
			e.metrics.RefragCallsTotal.WithLabelValues("disabled").Inc()
		}
		return nil, ErrDisabled
	}

	result, err := e.retrieve(ctx, req)

	if e.metrics != nil {
		status := "ok"
		if err != nil {
			status = "error"
		}
		e.metrics.RefragCallsTotal.WithLabelValues(status).Inc()
		if result != nil {
			e.metrics.RefragTokensSaved.Add(float64(result.TokensSaved))
		}
	}
	return result, err
}

func (e *Engine) retrieve(ctx context.Context, req Request) (*Result, error) {
	vec, err := e.provider.Embed(ctx, req.Query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	vec = embedding.Normalize(vec, e.store.Dim())

	// Cold items have no chunks left, so only hot and warm are searchable
	neighbors, err := e.store.NearestChunks(ctx, vec, req.Filter,
		[]store.Tier{store.TierHot, store.TierWarm},
		e.cfg.CandidateLimit, e.cfg.MinSimilarity)
	if err != nil {
		return nil, fmt.Errorf("chunk search failed: %w", err)
	}

	sort.SliceStable(neighbors, func(i, j int) bool {
		return neighbors[i].Similarity > neighbors[j].Similarity
	})

	n := len(neighbors)
	expandCount := int(math.Ceil(float64(n) * (1 - e.cfg.CompressionRatio)))

	result := &Result{}
	for i, nb := range neighbors {
		result.TokensTotal += nb.Chunk.TokenCount
		if i < expandCount {
			result.Expanded = append(result.Expanded, ExpandedChunk{
				Chunk:      nb.Chunk,
				Similarity: nb.Similarity,
				CreatedAt:  nb.CreatedAt,
			})
		} else {
			result.Compressed = append(result.Compressed, CompressedChunk{
				ChunkID:    nb.Chunk.ID,
				ParentID:   nb.Chunk.MemoryID,
				Embedding:  nb.Chunk.Embedding,
				Similarity: nb.Similarity,
				TokenCount: nb.Chunk.TokenCount,
			})
			result.TokensSaved += nb.Chunk.TokenCount
		}
	}
	if result.TokensTotal > 0 {
		result.SavedPercent = float64(result.TokensSaved) / float64(result.TokensTotal) * 100
	}

	result.Formatted = formatGroups(result.Expanded, e.cfg.TokenBudget)

	e.logger.Debug().
		Int("candidates", n).
		Int("expanded", len(result.Expanded)).
		Int("tokens_saved", result.TokensSaved).
		Msg("refrag retrieval completed")

	return result, nil
}
