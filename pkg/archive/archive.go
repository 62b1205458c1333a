// Package archive exports an organization's memory into a versioned
// self-contained payload and restores such payloads, including vector
// re-indexing and tier recomputation.
package archive

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/fikri/engram/pkg/embedding"
	"github.com/fikri/engram/pkg/store"
)

// Mode selects what export does to the live data afterwards
type Mode string

const (
	// ModeCopy leaves the live data untouched
	ModeCopy Mode = "copy"
	// ModeMove frees live storage after export: chunks and chunk vectors
	// are deleted, items marked cold, ledger rows hard-deleted.
	ModeMove Mode = "move"
)

// ErrVersionMismatch rejects payloads written by another format version
var ErrVersionMismatch = errors.New("archive payload version mismatch")

// ErrScopeMismatch rejects payloads exported for a different organization
var ErrScopeMismatch = errors.New("archive payload organization mismatch")

// RestoreReport summarizes what a restore changed
type RestoreReport struct {
	ItemsRestored   int `json:"items_restored"`
	ItemsSkipped    int `json:"items_skipped"`
	ChunksRestored  int `json:"chunks_restored"`
	ParentsRelinked int `json:"parents_relinked"`
	RowsRestored    int `json:"rows_restored"`
}

// Archiver performs export and restore against the live store
type Archiver struct {
	store  *store.Store
	logger zerolog.Logger
}

// New creates an archiver
func New(s *store.Store, logger zerolog.Logger) *Archiver {
	return &Archiver{store: s, logger: logger}
}

// Export snapshots an organization's rows in [from, to] (zero times are
// unbounded) into one payload. ModeMove additionally frees live storage.
func (a *Archiver) Export(ctx context.Context, orgID string, from, to time.Time, mode Mode) (*Payload, error) {
	items, err := a.store.ListItemsByOrg(ctx, orgID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to list items: %w", err)
	}

	payload := &Payload{
		Version:    PayloadVersion,
		OrgID:      orgID,
		ExportedAt: time.Now().UTC(),
		From:       from,
		To:         to,
		Items:      items,
	}

	for _, item := range items {
		chunks, err := a.store.ListChunks(ctx, item.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to list chunks for %s: %w", item.ID, err)
		}
		payload.Chunks = append(payload.Chunks, chunks...)
	}

	if payload.Conversations, err = a.store.ListConversationsByOrg(ctx, orgID, from, to); err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	if payload.Decisions, err = a.store.ListDecisionsByOrg(ctx, orgID, from, to); err != nil {
		return nil, fmt.Errorf("failed to list decisions: %w", err)
	}
	if payload.Usage, err = a.store.ListUsageByOrg(ctx, orgID, from, to); err != nil {
		return nil, fmt.Errorf("failed to list usage ledger: %w", err)
	}
	if payload.Purchases, err = a.store.ListPurchasesByOrg(ctx, orgID, from, to); err != nil {
		return nil, fmt.Errorf("failed to list purchase ledger: %w", err)
	}
	if payload.AccessLogs, err = a.store.ListAccessLogsByOrg(ctx, orgID, from, to); err != nil {
		return nil, fmt.Errorf("failed to list access logs: %w", err)
	}

	payload.Counts = Counts{
		Items:         len(payload.Items),
		Chunks:        len(payload.Chunks),
		Conversations: len(payload.Conversations),
		Decisions:     len(payload.Decisions),
		Usage:         len(payload.Usage),
		Purchases:     len(payload.Purchases),
		AccessLogs:    len(payload.AccessLogs),
	}

	if mode == ModeMove {
		if err := a.freeExported(ctx, orgID, payload, from, to); err != nil {
			return nil, err
		}
	}

	a.logger.Info().
		Str("org_id", orgID).
		Str("mode", string(mode)).
		Int("items", payload.Counts.Items).
		Int("chunks", payload.Counts.Chunks).
		Msg("archive export completed")

	return payload, nil
}

// freeExported applies the move-mode cleanup after a successful snapshot
func (a *Archiver) freeExported(ctx context.Context, orgID string, payload *Payload, from, to time.Time) error {
	for _, item := range payload.Items {
		if _, err := a.store.DeleteChunksForItem(ctx, item.ID); err != nil {
			return fmt.Errorf("failed to free chunks for %s: %w", item.ID, err)
		}
		if err := a.store.SetChunksComputed(ctx, item.ID, false); err != nil {
			return err
		}
		if item.Tier == store.TierHot || item.Tier == store.TierWarm {
			if err := a.store.UpdateTier(ctx, item.ID, store.TierCold); err != nil {
				return fmt.Errorf("failed to mark %s cold: %w", item.ID, err)
			}
		}
	}

	deleted, err := a.store.DeleteLedgersInRange(ctx, orgID, from, to)
	if err != nil {
		return fmt.Errorf("failed to delete ledger rows: %w", err)
	}
	a.logger.Info().Int64("ledger_rows", deleted).Msg("move export freed live storage")
	return nil
}

// Restore validates raw payload bytes and re-inserts their rows. Validation
// (schema, version, organization scope) completes before any mutation.
// Duplicate ids are skipped, vectors pass through the live normalization
// path, parent links are re-applied only when the parent was restored, and
// each item's tier is recomputed from what actually came back.
func (a *Archiver) Restore(ctx context.Context, data []byte, orgID string) (*RestoreReport, error) {
	if err := validatePayload(data); err != nil {
		return nil, err
	}

	var payload Payload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("failed to decode archive payload: %w", err)
	}

	if payload.Version != PayloadVersion {
		return nil, fmt.Errorf("%w: payload has v%d, this build reads v%d",
			ErrVersionMismatch, payload.Version, PayloadVersion)
	}
	if payload.OrgID != orgID {
		return nil, fmt.Errorf("%w: payload belongs to %q, restore requested for %q",
			ErrScopeMismatch, payload.OrgID, orgID)
	}

	chunksByItem := make(map[string][]store.Chunk)
	for _, c := range payload.Chunks {
		chunksByItem[c.MemoryID] = append(chunksByItem[c.MemoryID], c)
	}

	report := &RestoreReport{}
	restored := make(map[string]bool, len(payload.Items))
	pendingParents := make(map[string]string)

	for _, item := range payload.Items {
		// Parent links are re-applied afterwards, once it is known which
		// parents actually made it back
		parentID := item.ParentID
		item.ParentID = ""
		item.Tier = recomputeTier(item, chunksByItem[item.ID])
		item.ChunksComputed = len(chunksByItem[item.ID]) > 0
		vec := item.Embedding
		item.Embedding = nil

		inserted, err := a.store.InsertItemIfAbsent(ctx, &item)
		if err != nil {
			return report, fmt.Errorf("failed to restore item %s: %w", item.ID, err)
		}
		if !inserted {
			report.ItemsSkipped++
			continue
		}
		restored[item.ID] = true
		report.ItemsRestored++

		if len(vec) > 0 {
			normalized := embedding.Normalize(vec, a.store.Dim())
			if err := a.store.UpsertItemEmbedding(ctx, item.ID, normalized); err != nil {
				return report, fmt.Errorf("failed to restore embedding for %s: %w", item.ID, err)
			}
		}

		if chunks := chunksByItem[item.ID]; len(chunks) > 0 {
			for i := range chunks {
				if len(chunks[i].Embedding) > 0 {
					chunks[i].Embedding = embedding.Normalize(chunks[i].Embedding, a.store.Dim())
				}
			}
			if err := a.store.ReplaceChunks(ctx, item.ID, chunks); err != nil {
				return report, fmt.Errorf("failed to restore chunks for %s: %w", item.ID, err)
			}
			report.ChunksRestored += len(chunks)
		}

		if parentID != "" {
			pendingParents[item.ID] = parentID
		}
	}

	// Second pass: re-link children whose parent made it back, regardless of
	// payload ordering
	for child, parent := range pendingParents {
		if !restored[parent] {
			continue
		}
		if err := a.store.SetParentID(ctx, child, parent); err != nil {
			return report, err
		}
		report.ParentsRelinked++
	}

	for _, c := range payload.Conversations {
		if err := a.store.InsertConversation(ctx, &c); err != nil {
			return report, err
		}
		report.RowsRestored++
	}
	for _, d := range payload.Decisions {
		if err := a.store.InsertDecision(ctx, &d); err != nil {
			return report, err
		}
		report.RowsRestored++
	}
	for _, u := range payload.Usage {
		if err := a.store.InsertUsageEntry(ctx, &u); err != nil {
			return report, err
		}
		report.RowsRestored++
	}
	for _, p := range payload.Purchases {
		if err := a.store.InsertPurchaseEntry(ctx, &p); err != nil {
			return report, err
		}
		report.RowsRestored++
	}
	for _, l := range payload.AccessLogs {
		if err := a.store.InsertAccessLog(ctx, &l); err != nil {
			return report, err
		}
		report.RowsRestored++
	}

	a.logger.Info().
		Str("org_id", orgID).
		Int("items_restored", report.ItemsRestored).
		Int("items_skipped", report.ItemsSkipped).
		Msg("archive restore completed")

	return report, nil
}

// recomputeTier derives an item's tier from what the payload carries for it:
// full chunks mean hot, a memory-level embedding alone means warm, bare
// metadata means cold.
func recomputeTier(item store.MemoryItem, chunks []store.Chunk) store.Tier {
	if len(chunks) > 0 {
		return store.TierHot
	}
	if len(item.Embedding) > 0 {
		return store.TierWarm
	}
	return store.TierCold
}
