package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"

	"github.com/fikri/engram/internal/config"
	"github.com/fikri/engram/internal/metrics"
	"github.com/fikri/engram/pkg/chunker"
	"github.com/fikri/engram/pkg/embedding"
	"github.com/fikri/engram/pkg/store"
)

// KindChunk is the background job that chunks and embeds one memory item
const KindChunk = "chunk"

// ChunkKey derives the stable idempotency key for an item's chunk job
func ChunkKey(memoryID string) string {
	return KindChunk + ":" + memoryID
}

// NewChunkHandler builds the handler that processes one chunk job: split the
// item's content into token windows, embed the windows in batches with a
// fixed delay between batches, replace the item's chunk set wholesale, and
// flip chunks_computed. The payload is the memory item id.
func NewChunkHandler(s *store.Store, provider embedding.Provider, ch *chunker.Chunker, cfg config.EmbeddingConfig, logger zerolog.Logger, m *metrics.Metrics) Handler {
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 16
	}
	batchDelay := time.Duration(cfg.BatchDelayMs) * time.Millisecond

	return func(ctx context.Context, job *Job) error {
		start := time.Now()
		memoryID := job.Payload

		item, err := s.GetItem(ctx, memoryID)
		if errors.Is(err, store.ErrNotFound) {
			// The item vanished between enqueue and execution; nothing to do
			logger.Warn().Str("memory_id", memoryID).Msg("chunk job target no longer exists")
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to load item %s: %w", memoryID, err)
		}

		result := ch.ChunkContent(item.Content)

		chunks := make([]store.Chunk, len(result.Chunks))
		for i, c := range result.Chunks {
			id, err := gonanoid.New()
			if err != nil {
				return fmt.Errorf("failed to generate chunk id: %w", err)
			}
			chunks[i] = store.Chunk{
				ID:         id,
				MemoryID:   memoryID,
				Index:      c.Index,
				Content:    c.Content,
				TokenCount: c.TokenCount,
			}
		}

		for offset := 0; offset < len(chunks); offset += batchSize {
			end := offset + batchSize
			if end > len(chunks) {
				end = len(chunks)
			}

			texts := make([]string, end-offset)
			for i := offset; i < end; i++ {
				texts[i-offset] = chunks[i].Content
			}

			vectors, err := provider.EmbedBatch(ctx, texts)
			if err != nil {
				return fmt.Errorf("failed to embed chunk batch: %w", err)
			}
			for i, vec := range vectors {
				chunks[offset+i].Embedding = embedding.Normalize(vec, s.Dim())
			}

			// Fixed pause between batches keeps provider pressure bounded
			if end < len(chunks) && batchDelay > 0 {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(batchDelay):
				}
			}
		}

		if err := s.ReplaceChunks(ctx, memoryID, chunks); err != nil {
			return fmt.Errorf("failed to persist chunks: %w", err)
		}
		if err := s.SetChunksComputed(ctx, memoryID, true); err != nil {
			return fmt.Errorf("failed to flag chunks computed: %w", err)
		}

		if m != nil {
			m.ChunksCreatedTotal.Add(float64(len(chunks)))
		}
		logger.Debug().
			Str("memory_id", memoryID).
			Int("chunks", len(chunks)).
			Dur("elapsed", time.Since(start)).
			Msg("chunk job completed")
		return nil
	}
}
