package refrag

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/fikri/engram/pkg/scoring"
	"github.com/fikri/engram/pkg/tokenizer"
)

// group is the expanded chunks of one parent item, stitched back together
type group struct {
	parentID      string
	chunks        []ExpandedChunk
	meanRelevance float64
	createdAt     time.Time
}

// formatGroups renders expanded chunks for prompt injection. Chunks are
// grouped by parent item, reordered by chunk index so the text reads in
// document order, and annotated with a recency label and the group's mean
// relevance. Groups are appended greedily while the running estimate stays
// under budget; a group that does not fit whole is skipped, never truncated.
func formatGroups(expanded []ExpandedChunk, budget int) string {
	if len(expanded) == 0 {
		return ""
	}

	order := make([]string, 0)
	byParent := make(map[string]*group)
	for _, ch := range expanded {
		g, ok := byParent[ch.Chunk.MemoryID]
		if !ok {
			g = &group{parentID: ch.Chunk.MemoryID, createdAt: ch.CreatedAt}
			byParent[ch.Chunk.MemoryID] = g
			order = append(order, ch.Chunk.MemoryID)
		}
		g.chunks = append(g.chunks, ch)
	}

	var blocks []string
	for _, parentID := range order {
		g := byParent[parentID]
		sort.Slice(g.chunks, func(i, j int) bool {
			return g.chunks[i].Chunk.Index < g.chunks[j].Chunk.Index
		})

		var sum float64
		parts := make([]string, len(g.chunks))
		for i, ch := range g.chunks {
			parts[i] = strings.TrimSpace(ch.Chunk.Content)
			sum += ch.Similarity
		}
		g.meanRelevance = sum / float64(len(g.chunks))

		blocks = append(blocks, fmt.Sprintf("[%s, relevance %.2f]\n%s",
			scoring.AgeLabel(time.Since(g.createdAt)),
			g.meanRelevance,
			strings.Join(parts, "\n")))
	}

	var b strings.Builder
	b.WriteString("Relevant context from memory:")
	used := tokenizer.EstimateTokens(b.String(), tokenizer.DefaultCharsPerToken)
	appended := 0
	for _, block := range blocks {
		cost := tokenizer.EstimateTokens(block, tokenizer.DefaultCharsPerToken)
		if used+cost > budget {
			continue
		}
		b.WriteString("\n\n")
		b.WriteString(block)
		used += cost
		appended++
	}
	if appended == 0 {
		return ""
	}
	return b.String()
}
