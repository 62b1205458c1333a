package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fikri/engram/pkg/embedding"
)

const testDim = 8

func createTestStore(t *testing.T) *Store {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(Config{
		Path:   dbPath,
		Dim:    testDim,
		Logger: zerolog.New(os.Stdout).Level(zerolog.Disabled),
	})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func testVec(provider *embedding.MockProvider, t *testing.T, text string) []float32 {
	vec, err := provider.Embed(context.Background(), text)
	require.NoError(t, err)
	return embedding.Normalize(vec, testDim)
}

func TestOpen_InvalidConfig(t *testing.T) {
	_, err := Open(Config{Path: "", Dim: 8})
	assert.Error(t, err)

	_, err = Open(Config{Path: filepath.Join(t.TempDir(), "x.db"), Dim: 0})
	assert.Error(t, err)
}

func TestInsertAndGetItem(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	item := &MemoryItem{
		ID:             "item-1",
		UserID:         "user-1",
		OrgID:          "org-1",
		AgentID:        "agent-1",
		ConversationID: "conv-1",
		Content:        "the deployment pipeline uses blue-green rollouts",
		ContentType:    "message",
	}
	require.NoError(t, s.InsertItem(ctx, item))

	got, err := s.GetItem(ctx, "item-1")
	require.NoError(t, err)
	assert.Equal(t, item.Content, got.Content)
	assert.Equal(t, TierHot, got.Tier)
	assert.False(t, got.ChunksComputed)
	assert.False(t, got.CreatedAt.IsZero())

	_, err = s.GetItem(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpsertAndClearItemEmbedding(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	provider := embedding.NewMockProvider(testDim)

	require.NoError(t, s.InsertItem(ctx, &MemoryItem{ID: "item-1", Content: "hello"}))

	vec := testVec(provider, t, "hello")
	require.NoError(t, s.UpsertItemEmbedding(ctx, "item-1", vec))

	got, err := s.GetItem(ctx, "item-1")
	require.NoError(t, err)
	assert.Equal(t, vec, got.Embedding)

	// Wrong dimension is rejected
	assert.Error(t, s.UpsertItemEmbedding(ctx, "item-1", []float32{1, 2}))

	require.NoError(t, s.ClearItemEmbedding(ctx, "item-1"))
	got, err = s.GetItem(ctx, "item-1")
	require.NoError(t, err)
	assert.Nil(t, got.Embedding)
}

func TestReplaceChunks_Idempotent(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	provider := embedding.NewMockProvider(testDim)

	require.NoError(t, s.InsertItem(ctx, &MemoryItem{ID: "item-1", Content: "content"}))

	chunks := []Chunk{
		{ID: "c-0", MemoryID: "item-1", Index: 0, Content: "first", TokenCount: 1, Embedding: testVec(provider, t, "first")},
		{ID: "c-1", MemoryID: "item-1", Index: 1, Content: "second", TokenCount: 1, Embedding: testVec(provider, t, "second")},
	}
	require.NoError(t, s.ReplaceChunks(ctx, "item-1", chunks))
	require.NoError(t, s.ReplaceChunks(ctx, "item-1", chunks))

	got, err := s.ListChunks(ctx, "item-1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 0, got[0].Index)
	assert.Equal(t, "first", got[0].Content)
}

func TestDeleteChunksForItem(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	provider := embedding.NewMockProvider(testDim)

	require.NoError(t, s.InsertItem(ctx, &MemoryItem{ID: "item-1", Content: "content"}))
	require.NoError(t, s.ReplaceChunks(ctx, "item-1", []Chunk{
		{ID: "c-0", MemoryID: "item-1", Index: 0, Content: "some chunk content", TokenCount: 4, Embedding: testVec(provider, t, "some chunk content")},
	}))

	freed, err := s.DeleteChunksForItem(ctx, "item-1")
	require.NoError(t, err)
	assert.Greater(t, freed, int64(0))

	got, err := s.ListChunks(ctx, "item-1")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestNearestItems_FiltersAndTiers(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	provider := embedding.NewMockProvider(testDim)

	insert := func(id, user, content string, tier Tier) {
		item := &MemoryItem{ID: id, UserID: user, Content: content, Tier: tier}
		require.NoError(t, s.InsertItem(ctx, item))
		require.NoError(t, s.UpsertItemEmbedding(ctx, id, testVec(provider, t, content)))
	}

	insert("a", "user-1", "kubernetes cluster scaling", TierHot)
	insert("b", "user-1", "database migration plan", TierWarm)
	insert("c", "user-2", "kubernetes cluster scaling", TierHot)

	query := testVec(provider, t, "kubernetes cluster scaling")

	all, err := s.NearestItems(ctx, query, Filter{}, nil, 10, -1)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	scoped, err := s.NearestItems(ctx, query, Filter{UserID: "user-1"}, nil, 10, -1)
	require.NoError(t, err)
	assert.Len(t, scoped, 2)

	hotOnly, err := s.NearestItems(ctx, query, Filter{UserID: "user-1"}, []Tier{TierHot}, 10, -1)
	require.NoError(t, err)
	require.Len(t, hotOnly, 1)
	assert.Equal(t, "a", hotOnly[0].Item.ID)

	// The identical text ranks first with similarity ~1
	assert.Equal(t, "a", scoped[0].Item.ID)
	assert.InDelta(t, 1.0, scoped[0].Similarity, 0.01)
}

func TestNearestChunks_ExcludesTiers(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	provider := embedding.NewMockProvider(testDim)

	for _, tc := range []struct {
		item string
		tier Tier
	}{
		{"hot-item", TierHot},
		{"cold-item", TierCold},
	} {
		require.NoError(t, s.InsertItem(ctx, &MemoryItem{ID: tc.item, Content: "x", Tier: tc.tier}))
		require.NoError(t, s.ReplaceChunks(ctx, tc.item, []Chunk{{
			ID: tc.item + "-c0", MemoryID: tc.item, Index: 0,
			Content: "shared chunk text", TokenCount: 3,
			Embedding: testVec(provider, t, "shared chunk text"),
		}}))
	}

	query := testVec(provider, t, "shared chunk text")
	got, err := s.NearestChunks(ctx, query, Filter{}, []Tier{TierHot, TierWarm}, 10, -1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "hot-item", got[0].Chunk.MemoryID)
	assert.Equal(t, TierHot, got[0].Tier)
}

func TestListEligible(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	old := &MemoryItem{ID: "old", Content: "x", CreatedAt: time.Now().Add(-10 * 24 * time.Hour)}
	recent := &MemoryItem{ID: "recent", Content: "y"}
	require.NoError(t, s.InsertItem(ctx, old))
	require.NoError(t, s.InsertItem(ctx, recent))

	cutoff := time.Now().Add(-7 * 24 * time.Hour)
	eligible, err := s.ListEligible(ctx, TierHot, cutoff)
	require.NoError(t, err)
	require.Len(t, eligible, 1)
	assert.Equal(t, "old", eligible[0].ID)
}

func TestUpdateTierAndStats(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.InsertItem(ctx, &MemoryItem{ID: "a", Content: "x"}))
	require.NoError(t, s.InsertItem(ctx, &MemoryItem{ID: "b", Content: "y"}))
	require.NoError(t, s.UpdateTier(ctx, "b", TierWarm))

	stats, err := s.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalItems)
	assert.Equal(t, 1, stats.ItemsByTier[TierHot])
	assert.Equal(t, 1, stats.ItemsByTier[TierWarm])
}

func TestLedgerRoundTripAndRangeDelete(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	now := time.Now().UTC()
	old := now.Add(-30 * 24 * time.Hour)

	require.NoError(t, s.InsertUsageEntry(ctx, &UsageEntry{ID: "u1", OrgID: "org-1", Kind: "tokens", Amount: 100, CreatedAt: old}))
	require.NoError(t, s.InsertUsageEntry(ctx, &UsageEntry{ID: "u2", OrgID: "org-1", Kind: "tokens", Amount: 200, CreatedAt: now}))
	require.NoError(t, s.InsertPurchaseEntry(ctx, &PurchaseEntry{ID: "p1", OrgID: "org-1", AmountCents: 999, CreatedAt: old}))

	// Duplicate ids are ignored
	require.NoError(t, s.InsertUsageEntry(ctx, &UsageEntry{ID: "u1", OrgID: "org-1", Kind: "tokens", Amount: 1}))

	usage, err := s.ListUsageByOrg(ctx, "org-1", time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.Len(t, usage, 2)

	deleted, err := s.DeleteLedgersInRange(ctx, "org-1", time.Time{}, now.Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)

	usage, err = s.ListUsageByOrg(ctx, "org-1", time.Time{}, time.Time{})
	require.NoError(t, err)
	require.Len(t, usage, 1)
	assert.Equal(t, "u2", usage[0].ID)
}
