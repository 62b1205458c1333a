package scoring

import (
	"fmt"
	"strings"
	"time"

	"github.com/fikri/engram/pkg/tokenizer"
)

const contentPreviewChars = 200

// FormatFull renders the per-item score breakdown, one block per result.
// Meant for debugging and the CLI's default output.
func FormatFull(items []ScoredItem) string {
	if len(items) == 0 {
		return "No relevant context found.\n"
	}

	var b strings.Builder
	for i, item := range items {
		fmt.Fprintf(&b, "%d. [%s] %s\n", i+1, item.Band, preview(item.Item.Content))
		fmt.Fprintf(&b, "   similarity=%.3f recency=%.3f final=%.3f age=%s\n",
			item.Similarity, item.Recency, item.Final,
			AgeLabel(time.Duration(item.AgeDays*24)*time.Hour))
	}
	return b.String()
}

// FormatLLM renders results as prose lines suitable for direct injection into
// an agent prompt. Lines are dropped from the end until the estimated token
// count fits the budget; the estimate uses the chars-per-token heuristic
// rather than the exact tokenizer.
func FormatLLM(items []ScoredItem, budget int, charsPerToken float64) string {
	if len(items) == 0 {
		return ""
	}

	lines := make([]string, 0, len(items)+1)
	lines = append(lines, "Relevant context from memory:")
	for _, item := range items {
		lines = append(lines, fmt.Sprintf("- (%s, %s) %s",
			item.Band,
			AgeLabel(time.Duration(item.AgeDays*24)*time.Hour),
			strings.TrimSpace(item.Item.Content)))
	}

	for len(lines) > 1 {
		text := strings.Join(lines, "\n")
		if tokenizer.EstimateTokens(text, charsPerToken) <= budget {
			return text
		}
		lines = lines[:len(lines)-1]
	}
	return ""
}

func preview(content string) string {
	content = strings.TrimSpace(content)
	content = strings.ReplaceAll(content, "\n", " ")
	// Truncate on a rune boundary so multi-byte content never splits
	if runes := []rune(content); len(runes) > contentPreviewChars {
		return string(runes[:contentPreviewChars]) + "..."
	}
	return content
}
