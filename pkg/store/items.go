package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

const itemColumns = `id, user_id, org_id, agent_id, conversation_id, parent_id,
	content, content_type, tier, chunks_computed, pii_detected, pii_redacted,
	important, embedding, created_at, updated_at`

// rowScanner is satisfied by both *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanItem(r rowScanner) (MemoryItem, error) {
	var (
		item      MemoryItem
		embedding sql.NullString
		createdAt int64
		updatedAt int64
	)

	err := r.Scan(
		&item.ID, &item.UserID, &item.OrgID, &item.AgentID, &item.ConversationID,
		&item.ParentID, &item.Content, &item.ContentType, &item.Tier,
		&item.ChunksComputed, &item.PIIDetected, &item.PIIRedacted,
		&item.Important, &embedding, &createdAt, &updatedAt,
	)
	if err != nil {
		return MemoryItem{}, err
	}

	item.Embedding, err = unmarshalVec(embedding)
	if err != nil {
		return MemoryItem{}, err
	}
	item.CreatedAt = time.Unix(createdAt, 0).UTC()
	item.UpdatedAt = time.Unix(updatedAt, 0).UTC()
	return item, nil
}

// InsertItem persists a new memory item. The item's embedding, if present,
// is written through UpsertItemEmbedding to keep the vector index in sync.
func (s *Store) InsertItem(ctx context.Context, item *MemoryItem) error {
	if item.Tier == "" {
		item.Tier = TierHot
	}
	now := time.Now().UTC()
	if item.CreatedAt.IsZero() {
		item.CreatedAt = now
	}
	item.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO memory_items (id, user_id, org_id, agent_id, conversation_id,
			parent_id, content, content_type, tier, chunks_computed, pii_detected,
			pii_redacted, important, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		item.ID, item.UserID, item.OrgID, item.AgentID, item.ConversationID,
		item.ParentID, item.Content, item.ContentType, item.Tier,
		item.ChunksComputed, item.PIIDetected, item.PIIRedacted, item.Important,
		item.CreatedAt.Unix(), item.UpdatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert memory item: %w", err)
	}

	if len(item.Embedding) > 0 {
		if err := s.UpsertItemEmbedding(ctx, item.ID, item.Embedding); err != nil {
			return err
		}
	}

	return nil
}

// InsertItemIfAbsent inserts item unless its id already exists. Returns true
// when a row was inserted. Used by restore to skip duplicates.
func (s *Store) InsertItemIfAbsent(ctx context.Context, item *MemoryItem) (bool, error) {
	var exists int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM memory_items WHERE id = ?", item.ID).Scan(&exists)
	if err != nil {
		return false, err
	}
	if exists > 0 {
		return false, nil
	}
	if err := s.InsertItem(ctx, item); err != nil {
		return false, err
	}
	return true, nil
}

// GetItem fetches a memory item by id
func (s *Store) GetItem(ctx context.Context, id string) (MemoryItem, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+itemColumns+" FROM memory_items WHERE id = ?", id)

	item, err := scanItem(row)
	if err == sql.ErrNoRows {
		return MemoryItem{}, ErrNotFound
	}
	if err != nil {
		return MemoryItem{}, fmt.Errorf("failed to get memory item: %w", err)
	}
	return item, nil
}

// UpsertItemEmbedding writes the memory-level embedding to both the JSON
// column (authoritative, exportable) and the vector index. The vector must
// already be normalized to the storage dimension.
func (s *Store) UpsertItemEmbedding(ctx context.Context, id string, vec []float32) error {
	if len(vec) != s.dim {
		return fmt.Errorf("embedding has %d dimensions, storage expects %d", len(vec), s.dim)
	}

	encoded, err := marshalVec(vec)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		"UPDATE memory_items SET embedding = ?, updated_at = ? WHERE id = ?",
		encoded, time.Now().UTC().Unix(), id); err != nil {
		return fmt.Errorf("failed to store item embedding: %w", err)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM memory_embeddings WHERE item_id = ?", id); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO memory_embeddings (item_id, embedding) VALUES (?, ?)",
		id, encoded); err != nil {
		return fmt.Errorf("failed to index item embedding: %w", err)
	}

	return tx.Commit()
}

// ClearItemEmbedding removes the memory-level embedding from both the JSON
// column and the vector index. Used by the deleted-tier transition.
func (s *Store) ClearItemEmbedding(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		"UPDATE memory_items SET embedding = NULL, updated_at = ? WHERE id = ?",
		time.Now().UTC().Unix(), id); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		"DELETE FROM memory_embeddings WHERE item_id = ?", id); err != nil {
		return err
	}

	return tx.Commit()
}

// SetChunksComputed flips the item's chunk flag
func (s *Store) SetChunksComputed(ctx context.Context, id string, computed bool) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE memory_items SET chunks_computed = ?, updated_at = ? WHERE id = ?",
		computed, time.Now().UTC().Unix(), id)
	return err
}

// UpdateTier moves an item to a new retention tier
func (s *Store) UpdateTier(ctx context.Context, id string, tier Tier) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE memory_items SET tier = ?, updated_at = ? WHERE id = ?",
		tier, time.Now().UTC().Unix(), id)
	return err
}

// SetParentID re-links an item to its parent. Used by restore once the
// parent is known to exist.
func (s *Store) SetParentID(ctx context.Context, id, parentID string) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE memory_items SET parent_id = ?, updated_at = ? WHERE id = ?",
		parentID, time.Now().UTC().Unix(), id)
	return err
}

// ListEligible returns items in tier whose creation time is at or before
// cutoff. Eligibility is evaluated from current tier + age, which makes the
// transition engine idempotent across re-runs.
func (s *Store) ListEligible(ctx context.Context, tier Tier, cutoff time.Time) ([]MemoryItem, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+itemColumns+" FROM memory_items WHERE tier = ? AND created_at <= ? ORDER BY created_at",
		tier, cutoff.Unix())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []MemoryItem
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// ListItemsByOrg returns an organization's items, optionally bounded to
// [from, to]. Zero times mean unbounded.
func (s *Store) ListItemsByOrg(ctx context.Context, orgID string, from, to time.Time) ([]MemoryItem, error) {
	query := "SELECT " + itemColumns + " FROM memory_items WHERE org_id = ?"
	args := []interface{}{orgID}

	if !from.IsZero() {
		query += " AND created_at >= ?"
		args = append(args, from.Unix())
	}
	if !to.IsZero() {
		query += " AND created_at <= ?"
		args = append(args, to.Unix())
	}
	query += " ORDER BY created_at"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []MemoryItem
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// Stats summarizes stored rows per tier
type Stats struct {
	ItemsByTier map[Tier]int `json:"items_by_tier"`
	TotalItems  int          `json:"total_items"`
	TotalChunks int          `json:"total_chunks"`
}

// GetStats counts items per tier and total chunks
func (s *Store) GetStats(ctx context.Context) (Stats, error) {
	stats := Stats{ItemsByTier: make(map[Tier]int)}

	rows, err := s.db.QueryContext(ctx,
		"SELECT tier, COUNT(*) FROM memory_items GROUP BY tier")
	if err != nil {
		return stats, err
	}
	defer rows.Close()

	for rows.Next() {
		var tier Tier
		var count int
		if err := rows.Scan(&tier, &count); err != nil {
			return stats, err
		}
		stats.ItemsByTier[tier] = count
		stats.TotalItems += count
	}
	if err := rows.Err(); err != nil {
		return stats, err
	}

	if err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM chunks").Scan(&stats.TotalChunks); err != nil {
		return stats, err
	}

	return stats, nil
}
