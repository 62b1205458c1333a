package retrieval

import (
	"strings"
	"unicode"

	"github.com/fikri/engram/pkg/scoring"
)

// tokenSet lowercases content and splits it on non-alphanumeric runes into a
// set of unique tokens.
func tokenSet(text string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, tok := range strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		set[tok] = struct{}{}
	}
	return set
}

// jaccard is |A∩B| / |A∪B|; two empty sets count as identical
func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1.0
	}
	intersection := 0
	for tok := range a {
		if _, ok := b[tok]; ok {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

// dedup collapses near-duplicate items. Each incoming item is compared
// against the representative of every existing group; a Jaccard similarity at
// or above threshold joins that group, otherwise the item founds a new group.
// Items must arrive sorted by final score descending, so every group
// representative is its group's best-scoring member and becomes the survivor.
func dedup(items []scoring.ScoredItem, threshold float64) []scoring.ScoredItem {
	type group struct {
		representative scoring.ScoredItem
		tokens         map[string]struct{}
	}

	var groups []group
outer:
	for _, item := range items {
		tokens := tokenSet(item.Item.Content)
		for i := range groups {
			if jaccard(tokens, groups[i].tokens) >= threshold {
				continue outer
			}
		}
		groups = append(groups, group{representative: item, tokens: tokens})
	}

	survivors := make([]scoring.ScoredItem, len(groups))
	for i, g := range groups {
		survivors[i] = g.representative
	}
	return survivors
}
