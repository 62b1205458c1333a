package lifecycle

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fikri/engram/internal/config"
	"github.com/fikri/engram/pkg/embedding"
	"github.com/fikri/engram/pkg/store"
)

const testDim = 8

func testLifecycle(t *testing.T) (*Engine, *store.Store) {
	t.Helper()

	s, err := store.Open(store.Config{
		Path:   filepath.Join(t.TempDir(), "test.db"),
		Dim:    testDim,
		Logger: zerolog.New(os.Stdout).Level(zerolog.Disabled),
	})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	e := New(s, config.TiersConfig{
		HotDays:        7,
		WarmDays:       30,
		ColdDays:       90,
		CostPerGBMonth: 0.25,
	}, zerolog.New(os.Stdout).Level(zerolog.Disabled), nil)

	return e, s
}

func agedItem(t *testing.T, s *store.Store, id string, tier store.Tier, ageDays int, withChunksAndVector bool) {
	t.Helper()
	ctx := context.Background()
	provider := embedding.NewMockProvider(testDim)

	item := &store.MemoryItem{
		ID:        id,
		Content:   "retention test content for " + id,
		Tier:      tier,
		CreatedAt: time.Now().UTC().Add(-time.Duration(ageDays) * 24 * time.Hour),
	}
	require.NoError(t, s.InsertItem(ctx, item))

	if withChunksAndVector {
		vec, err := provider.Embed(ctx, item.Content)
		require.NoError(t, err)
		normalized := embedding.Normalize(vec, testDim)
		require.NoError(t, s.UpsertItemEmbedding(ctx, id, normalized))
		require.NoError(t, s.ReplaceChunks(ctx, id, []store.Chunk{{
			ID: id + "-c0", MemoryID: id, Index: 0,
			Content: item.Content, TokenCount: 5, Embedding: normalized,
		}}))
		require.NoError(t, s.SetChunksComputed(ctx, id, true))
	}
}

func TestRun_NoEligibleItems(t *testing.T) {
	e, s := testLifecycle(t)
	agedItem(t, s, "fresh", store.TierHot, 1, false)

	report, err := e.Run(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, 0, report.Total())
	assert.Equal(t, int64(0), report.BytesFreed)
}

func TestRun_HotToWarm_KeepsEverything(t *testing.T) {
	e, s := testLifecycle(t)
	agedItem(t, s, "aging", store.TierHot, 10, true)

	report, err := e.Run(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, 1, report.HotToWarm)
	assert.Equal(t, int64(0), report.BytesFreed)

	item, err := s.GetItem(context.Background(), "aging")
	require.NoError(t, err)
	assert.Equal(t, store.TierWarm, item.Tier)
	assert.NotNil(t, item.Embedding)

	chunks, err := s.ListChunks(context.Background(), "aging")
	require.NoError(t, err)
	assert.Len(t, chunks, 1)
}

func TestRun_WarmToCold_DropsChunks(t *testing.T) {
	e, s := testLifecycle(t)
	agedItem(t, s, "cooling", store.TierWarm, 40, true)

	report, err := e.Run(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, 1, report.WarmToCold)
	assert.Greater(t, report.BytesFreed, int64(0))

	item, err := s.GetItem(context.Background(), "cooling")
	require.NoError(t, err)
	assert.Equal(t, store.TierCold, item.Tier)
	assert.False(t, item.ChunksComputed)
	// The memory-level embedding survives the cold transition
	assert.NotNil(t, item.Embedding)

	chunks, err := s.ListChunks(context.Background(), "cooling")
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestRun_ColdToDeleted_SoftDelete(t *testing.T) {
	e, s := testLifecycle(t)
	agedItem(t, s, "expiring", store.TierCold, 100, true)
	_, err := s.DeleteChunksForItem(context.Background(), "expiring")
	require.NoError(t, err)

	report, err := e.Run(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, 1, report.ColdToDeleted)

	item, err := s.GetItem(context.Background(), "expiring")
	require.NoError(t, err)
	assert.Equal(t, store.TierDeleted, item.Tier)
	assert.Nil(t, item.Embedding)
	// Identifiers and timestamps survive the soft delete
	assert.Equal(t, "expiring", item.ID)
	assert.False(t, item.CreatedAt.IsZero())
}

func TestRun_DryRun_MutatesNothing(t *testing.T) {
	e, s := testLifecycle(t)
	agedItem(t, s, "hot-old", store.TierHot, 10, true)
	agedItem(t, s, "warm-old", store.TierWarm, 40, true)

	report, err := e.Run(context.Background(), true)
	require.NoError(t, err)
	assert.True(t, report.DryRun)
	assert.Equal(t, 1, report.HotToWarm)
	assert.Equal(t, 1, report.WarmToCold)
	assert.Greater(t, report.BytesFreed, int64(0))
	assert.Greater(t, report.MonthlyCostSavings, 0.0)

	for id, tier := range map[string]store.Tier{
		"hot-old":  store.TierHot,
		"warm-old": store.TierWarm,
	} {
		item, err := s.GetItem(context.Background(), id)
		require.NoError(t, err)
		assert.Equal(t, tier, item.Tier)
	}
	chunks, err := s.ListChunks(context.Background(), "warm-old")
	require.NoError(t, err)
	assert.Len(t, chunks, 1)
}

func TestRun_DryRunMatchesRealRun_OnBacklog(t *testing.T) {
	e, s := testLifecycle(t)
	// Old enough to clear both the hot and warm windows; one run must still
	// move it only one tier, and the dry run must predict exactly that
	agedItem(t, s, "backlogged", store.TierHot, 40, true)

	dry, err := e.Run(context.Background(), true)
	require.NoError(t, err)
	applied, err := e.Run(context.Background(), false)
	require.NoError(t, err)

	assert.Equal(t, dry.HotToWarm, applied.HotToWarm)
	assert.Equal(t, dry.WarmToCold, applied.WarmToCold)
	assert.Equal(t, dry.ColdToDeleted, applied.ColdToDeleted)
	assert.Equal(t, dry.BytesFreed, applied.BytesFreed)
	assert.Equal(t, dry.MonthlyCostSavings, applied.MonthlyCostSavings)

	assert.Equal(t, 1, applied.HotToWarm)
	assert.Equal(t, 0, applied.WarmToCold)

	// One step only: the item is warm now and its chunks survived
	item, err := s.GetItem(context.Background(), "backlogged")
	require.NoError(t, err)
	assert.Equal(t, store.TierWarm, item.Tier)
	chunks, err := s.ListChunks(context.Background(), "backlogged")
	require.NoError(t, err)
	assert.Len(t, chunks, 1)

	// The next pass takes the next step, and dry-run still agrees
	dry, err = e.Run(context.Background(), true)
	require.NoError(t, err)
	applied, err = e.Run(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, dry.WarmToCold, applied.WarmToCold)
	assert.Equal(t, 1, applied.WarmToCold)
	assert.Equal(t, dry.BytesFreed, applied.BytesFreed)
	assert.Greater(t, applied.BytesFreed, int64(0))
}

func TestRun_Idempotent(t *testing.T) {
	e, s := testLifecycle(t)
	agedItem(t, s, "aging", store.TierHot, 10, false)

	report, err := e.Run(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, 1, report.HotToWarm)

	// Re-running finds nothing left to do: the item is warm and too young
	// for cold
	report, err = e.Run(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, 0, report.Total())

	item, err := s.GetItem(context.Background(), "aging")
	require.NoError(t, err)
	assert.Equal(t, store.TierWarm, item.Tier)
}

func TestNewScheduler(t *testing.T) {
	e, _ := testLifecycle(t)
	logger := zerolog.New(os.Stdout).Level(zerolog.Disabled)

	sched, err := NewScheduler(e, "0 3 * * *", logger)
	require.NoError(t, err)
	sched.Start()
	sched.Stop()

	_, err = NewScheduler(e, "not a schedule", logger)
	assert.Error(t, err)
}
