package retrieval

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fikri/engram/internal/config"
	"github.com/fikri/engram/pkg/embedding"
	"github.com/fikri/engram/pkg/scoring"
	"github.com/fikri/engram/pkg/store"
)

const testDim = 8

func TestTokenSet(t *testing.T) {
	set := tokenSet("Hello, World! hello-world 42")
	assert.Len(t, set, 3)
	assert.Contains(t, set, "hello")
	assert.Contains(t, set, "world")
	assert.Contains(t, set, "42")
}

func TestJaccard(t *testing.T) {
	a := tokenSet("the quick brown fox")
	b := tokenSet("the quick brown fox")
	c := tokenSet("a completely different sentence")

	assert.InDelta(t, 1.0, jaccard(a, b), 0.001)
	assert.InDelta(t, 0.0, jaccard(a, c), 0.001)
	assert.InDelta(t, 1.0, jaccard(tokenSet(""), tokenSet("")), 0.001)

	// Word order never matters for a token set
	d := tokenSet("fox brown quick the")
	assert.InDelta(t, 1.0, jaccard(a, d), 0.001)
}

func TestDedup(t *testing.T) {
	items := []scoring.ScoredItem{
		{Item: store.MemoryItem{ID: "a", Content: "deploy service to production cluster"}, Final: 0.9},
		{Item: store.MemoryItem{ID: "b", Content: "deploy service to production cluster"}, Final: 0.85},
		{Item: store.MemoryItem{ID: "c", Content: "unrelated database migration notes"}, Final: 0.8},
	}

	survivors := dedup(items, 0.92)
	require.Len(t, survivors, 2)
	// Items arrive score-descending, so the best-scoring duplicate survives
	assert.Equal(t, "a", survivors[0].Item.ID)
	assert.Equal(t, "c", survivors[1].Item.ID)
}

func TestDedup_ThresholdRespected(t *testing.T) {
	items := []scoring.ScoredItem{
		{Item: store.MemoryItem{ID: "a", Content: "deploy the service to production"}, Final: 0.9},
		{Item: store.MemoryItem{ID: "b", Content: "deploy the service to staging"}, Final: 0.85},
	}

	// 4 of 6 unique tokens shared: similar but below a strict threshold
	assert.Len(t, dedup(items, 0.92), 2)
	assert.Len(t, dedup(items, 0.5), 1)
}

func testConfig() config.RetrievalConfig {
	return config.RetrievalConfig{
		Limit:               10,
		OverqueryMultiplier: 3,
		MinSimilarity:       0,
		ScoreFloor:          0,
		DedupThreshold:      0.92,
		TierCaps:            config.TierCaps{High: 5, Medium: 3, Low: 2},
		TokenBudget:         2000,
		CharsPerToken:       4.0,
	}
}

func createTestOrchestrator(t *testing.T) (*Orchestrator, *store.Store, *embedding.MockProvider) {
	t.Helper()

	s, err := store.Open(store.Config{
		Path:   filepath.Join(t.TempDir(), "test.db"),
		Dim:    testDim,
		Logger: zerolog.New(os.Stdout).Level(zerolog.Disabled),
	})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	provider := embedding.NewMockProvider(testDim)
	scorer := scoring.New(config.ScoringConfig{
		SimilarityWeight:  0.7,
		RecencyWeight:     0.3,
		DecayHalfLifeDays: 30,
		Thresholds:        config.TierThresholds{High: 0.8, Medium: 0.65, Low: 0.5},
	})

	o := New(s, provider, scorer, testConfig(), zerolog.New(os.Stdout).Level(zerolog.Disabled), nil)
	return o, s, provider
}

func storeItem(t *testing.T, s *store.Store, provider *embedding.MockProvider, id, user, content string) {
	t.Helper()
	vec, err := provider.Embed(context.Background(), content)
	require.NoError(t, err)
	require.NoError(t, s.InsertItem(context.Background(), &store.MemoryItem{
		ID: id, UserID: user, Content: content,
		Embedding: embedding.Normalize(vec, testDim),
	}))
}

func TestSearch_EmptyStore(t *testing.T) {
	o, _, _ := createTestOrchestrator(t)

	resp, err := o.Search(context.Background(), Request{Query: "anything"})
	require.NoError(t, err)
	assert.Empty(t, resp.Results)
	assert.Equal(t, Stats{}, resp.Stats)
	assert.Equal(t, "No relevant context found.\n", resp.Formatted)
}

func TestSearch_RanksExactMatchFirst(t *testing.T) {
	o, s, provider := createTestOrchestrator(t)

	storeItem(t, s, provider, "a", "u1", "kubernetes cluster autoscaling settings")
	storeItem(t, s, provider, "b", "u1", "weekly grocery shopping list")

	resp, err := o.Search(context.Background(), Request{
		Query:  "kubernetes cluster autoscaling settings",
		Filter: store.Filter{UserID: "u1"},
	})
	require.NoError(t, err)
	require.NotEmpty(t, resp.Results)
	assert.Equal(t, "a", resp.Results[0].Item.ID)
	assert.InDelta(t, 1.0, resp.Results[0].Similarity, 0.01)
	assert.Greater(t, resp.Stats.AvgSimilarity, 0.0)
}

func TestSearch_ScopedByUser(t *testing.T) {
	o, s, provider := createTestOrchestrator(t)

	storeItem(t, s, provider, "mine", "u1", "release checklist for the api gateway")
	storeItem(t, s, provider, "theirs", "u2", "release checklist for the api gateway")

	resp, err := o.Search(context.Background(), Request{
		Query:  "release checklist for the api gateway",
		Filter: store.Filter{UserID: "u1"},
	})
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "mine", resp.Results[0].Item.ID)
}

func TestSearch_CollapsesDuplicates(t *testing.T) {
	o, s, provider := createTestOrchestrator(t)

	storeItem(t, s, provider, "a", "u1", "rotate the signing keys every quarter")
	storeItem(t, s, provider, "b", "u1", "rotate the signing keys every quarter")

	resp, err := o.Search(context.Background(), Request{
		Query:  "rotate the signing keys every quarter",
		Filter: store.Filter{UserID: "u1"},
	})
	require.NoError(t, err)
	assert.Len(t, resp.Results, 1)
	assert.Equal(t, 1, resp.Stats.Deduped)
	assert.Equal(t, 2, resp.Stats.Total)
}

func TestSearch_RespectsLimit(t *testing.T) {
	o, s, provider := createTestOrchestrator(t)

	storeItem(t, s, provider, "a", "u1", "alpha one notes")
	storeItem(t, s, provider, "b", "u1", "bravo two notes")
	storeItem(t, s, provider, "c", "u1", "charlie three notes")

	resp, err := o.Search(context.Background(), Request{
		Query:  "alpha one notes",
		Filter: store.Filter{UserID: "u1"},
		Limit:  1,
	})
	require.NoError(t, err)
	assert.LessOrEqual(t, len(resp.Results), 1)
	assert.Equal(t, len(resp.Results), resp.Stats.Returned)
}

func TestSearch_LLMMode(t *testing.T) {
	o, s, provider := createTestOrchestrator(t)

	storeItem(t, s, provider, "a", "u1", "the database failover runbook lives in the wiki")

	resp, err := o.Search(context.Background(), Request{
		Query:  "the database failover runbook lives in the wiki",
		Filter: store.Filter{UserID: "u1"},
		Mode:   ModeLLM,
	})
	require.NoError(t, err)
	assert.Contains(t, resp.Formatted, "Relevant context from memory:")
	assert.Contains(t, resp.Formatted, "failover runbook")
}

func TestSearch_EmbedFailure(t *testing.T) {
	o, _, provider := createTestOrchestrator(t)
	provider.Fail = assert.AnError

	_, err := o.Search(context.Background(), Request{Query: "anything"})
	assert.Error(t, err)
}
