package store

import (
	"context"
	"database/sql"
	"fmt"
)

// ReplaceChunks deletes and recreates the full chunk set for a memory item
// in one transaction. Wholesale replacement keeps background rechunking
// idempotent: re-running a job can never leave a partial mix of old and new
// chunks. Chunk embeddings must already be normalized to the storage
// dimension.
func (s *Store) ReplaceChunks(ctx context.Context, memoryID string, chunks []Chunk) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		DELETE FROM chunk_embeddings WHERE chunk_id IN
			(SELECT id FROM chunks WHERE memory_id = ?)`, memoryID); err != nil {
		return fmt.Errorf("failed to delete chunk embeddings: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		"DELETE FROM chunks WHERE memory_id = ?", memoryID); err != nil {
		return fmt.Errorf("failed to delete chunks: %w", err)
	}

	for _, ch := range chunks {
		var encoded interface{}
		if len(ch.Embedding) > 0 {
			if len(ch.Embedding) != s.dim {
				return fmt.Errorf("chunk %s embedding has %d dimensions, storage expects %d",
					ch.ID, len(ch.Embedding), s.dim)
			}
			enc, err := marshalVec(ch.Embedding)
			if err != nil {
				return err
			}
			encoded = enc
		}

		if _, err := tx.ExecContext(ctx,
			"INSERT INTO chunks (id, memory_id, idx, content, token_count, embedding) VALUES (?, ?, ?, ?, ?, ?)",
			ch.ID, memoryID, ch.Index, ch.Content, ch.TokenCount, encoded); err != nil {
			return fmt.Errorf("failed to insert chunk: %w", err)
		}

		if encoded != nil {
			if _, err := tx.ExecContext(ctx,
				"INSERT INTO chunk_embeddings (chunk_id, embedding) VALUES (?, ?)",
				ch.ID, encoded); err != nil {
				return fmt.Errorf("failed to index chunk embedding: %w", err)
			}
		}
	}

	return tx.Commit()
}

// ListChunks returns an item's chunks in index order
func (s *Store) ListChunks(ctx context.Context, memoryID string) ([]Chunk, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, memory_id, idx, content, token_count, embedding FROM chunks WHERE memory_id = ? ORDER BY idx",
		memoryID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanChunks(rows)
}

// ListChunksByOrg returns all chunks belonging to an organization's items
func (s *Store) ListChunksByOrg(ctx context.Context, orgID string) ([]Chunk, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.id, c.memory_id, c.idx, c.content, c.token_count, c.embedding
		FROM chunks c
		JOIN memory_items m ON m.id = c.memory_id
		WHERE m.org_id = ?
		ORDER BY c.memory_id, c.idx`, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanChunks(rows)
}

// ChunkBytes measures the content and embedding bytes an item's chunks
// occupy. The tier engine uses it for dry-run savings estimates.
func (s *Store) ChunkBytes(ctx context.Context, memoryID string) (int64, error) {
	var bytes int64
	err := s.db.QueryRowContext(ctx,
		"SELECT COALESCE(SUM(LENGTH(content) + COALESCE(LENGTH(embedding), 0)), 0) FROM chunks WHERE memory_id = ?",
		memoryID).Scan(&bytes)
	return bytes, err
}

// DeleteChunksForItem removes an item's chunks and chunk vectors, returning
// the content bytes reclaimed. Used by the cold-tier transition and by
// archive moves.
func (s *Store) DeleteChunksForItem(ctx context.Context, memoryID string) (int64, error) {
	bytes, err := s.ChunkBytes(ctx, memoryID)
	if err != nil {
		return 0, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		DELETE FROM chunk_embeddings WHERE chunk_id IN
			(SELECT id FROM chunks WHERE memory_id = ?)`, memoryID); err != nil {
		return 0, err
	}
	if _, err := tx.ExecContext(ctx,
		"DELETE FROM chunks WHERE memory_id = ?", memoryID); err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return bytes, nil
}

func scanChunks(rows *sql.Rows) ([]Chunk, error) {
	var chunks []Chunk
	for rows.Next() {
		var ch Chunk
		var embedding sql.NullString
		if err := rows.Scan(&ch.ID, &ch.MemoryID, &ch.Index, &ch.Content,
			&ch.TokenCount, &embedding); err != nil {
			return nil, err
		}
		vec, err := unmarshalVec(embedding)
		if err != nil {
			return nil, err
		}
		ch.Embedding = vec
		chunks = append(chunks, ch)
	}
	return chunks, rows.Err()
}
