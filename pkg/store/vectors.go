package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// prefixColumns qualifies each column in a comma-separated list with a table
// alias, for use in joined queries.
func prefixColumns(alias, columns string) string {
	parts := strings.Split(columns, ",")
	for i, p := range parts {
		parts[i] = alias + "." + strings.TrimSpace(p)
	}
	return strings.Join(parts, ", ")
}

// NearestItems returns up to limit memory items ranked by cosine similarity
// to vec, above minSimilarity, restricted to the given filter and tiers.
// Similarity is 1 - cosine distance.
func (s *Store) NearestItems(ctx context.Context, vec []float32, filter Filter, tiers []Tier, limit int, minSimilarity float64) ([]Neighbor, error) {
	if len(vec) != s.dim {
		return nil, fmt.Errorf("query vector has %d dimensions, storage expects %d", len(vec), s.dim)
	}
	encoded, err := marshalVec(vec)
	if err != nil {
		return nil, err
	}

	query := `
		SELECT ` + prefixColumns("m", itemColumns) + `,
			vec_distance_cosine(e.embedding, ?) AS distance
		FROM memory_embeddings e
		JOIN memory_items m ON m.id = e.item_id
		WHERE 1=1`
	args := []interface{}{encoded}

	query, args = applyFilter(query, args, filter)
	query, args = applyTiers(query, args, tiers)

	query += " ORDER BY distance ASC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("nearest-neighbor query failed: %w", err)
	}
	defer rows.Close()

	var neighbors []Neighbor
	for rows.Next() {
		var (
			item      MemoryItem
			embedding sql.NullString
			createdAt int64
			updatedAt int64
			distance  float64
		)
		if err := rows.Scan(
			&item.ID, &item.UserID, &item.OrgID, &item.AgentID, &item.ConversationID,
			&item.ParentID, &item.Content, &item.ContentType, &item.Tier,
			&item.ChunksComputed, &item.PIIDetected, &item.PIIRedacted,
			&item.Important, &embedding, &createdAt, &updatedAt, &distance,
		); err != nil {
			return nil, err
		}

		similarity := 1.0 - distance
		if similarity < minSimilarity {
			continue
		}

		item.Embedding, err = unmarshalVec(embedding)
		if err != nil {
			return nil, err
		}
		item.CreatedAt = time.Unix(createdAt, 0).UTC()
		item.UpdatedAt = time.Unix(updatedAt, 0).UTC()

		neighbors = append(neighbors, Neighbor{Item: item, Similarity: similarity})
	}
	return neighbors, rows.Err()
}

// NearestChunks returns up to limit chunks ranked by cosine similarity to
// vec, above minSimilarity, restricted to the given filter and tiers.
func (s *Store) NearestChunks(ctx context.Context, vec []float32, filter Filter, tiers []Tier, limit int, minSimilarity float64) ([]ChunkNeighbor, error) {
	if len(vec) != s.dim {
		return nil, fmt.Errorf("query vector has %d dimensions, storage expects %d", len(vec), s.dim)
	}
	encoded, err := marshalVec(vec)
	if err != nil {
		return nil, err
	}

	query := `
		SELECT c.id, c.memory_id, c.idx, c.content, c.token_count, c.embedding,
			m.tier, m.created_at,
			vec_distance_cosine(e.embedding, ?) AS distance
		FROM chunk_embeddings e
		JOIN chunks c ON c.id = e.chunk_id
		JOIN memory_items m ON m.id = c.memory_id
		WHERE 1=1`
	args := []interface{}{encoded}

	query, args = applyFilter(query, args, filter)
	query, args = applyTiers(query, args, tiers)

	query += " ORDER BY distance ASC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("chunk nearest-neighbor query failed: %w", err)
	}
	defer rows.Close()

	var neighbors []ChunkNeighbor
	for rows.Next() {
		var (
			n         ChunkNeighbor
			embedding sql.NullString
			createdAt int64
			distance  float64
		)
		if err := rows.Scan(&n.Chunk.ID, &n.Chunk.MemoryID, &n.Chunk.Index,
			&n.Chunk.Content, &n.Chunk.TokenCount, &embedding,
			&n.Tier, &createdAt, &distance); err != nil {
			return nil, err
		}

		n.Similarity = 1.0 - distance
		if n.Similarity < minSimilarity {
			continue
		}

		n.Chunk.Embedding, err = unmarshalVec(embedding)
		if err != nil {
			return nil, err
		}
		n.CreatedAt = time.Unix(createdAt, 0).UTC()

		neighbors = append(neighbors, n)
	}
	return neighbors, rows.Err()
}

// applyFilter appends scope predicates for non-empty filter fields
func applyFilter(query string, args []interface{}, filter Filter) (string, []interface{}) {
	if filter.UserID != "" {
		query += " AND m.user_id = ?"
		args = append(args, filter.UserID)
	}
	if filter.OrgID != "" {
		query += " AND m.org_id = ?"
		args = append(args, filter.OrgID)
	}
	if filter.AgentID != "" {
		query += " AND m.agent_id = ?"
		args = append(args, filter.AgentID)
	}
	if filter.ConversationID != "" {
		query += " AND m.conversation_id = ?"
		args = append(args, filter.ConversationID)
	}
	return query, args
}

// applyTiers appends a tier restriction when tiers is non-empty
func applyTiers(query string, args []interface{}, tiers []Tier) (string, []interface{}) {
	if len(tiers) == 0 {
		return query, args
	}
	query += " AND m.tier IN ("
	for i, t := range tiers {
		if i > 0 {
			query += ","
		}
		query += "?"
		args = append(args, t)
	}
	query += ")"
	return query, args
}
