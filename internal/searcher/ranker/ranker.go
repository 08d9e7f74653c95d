// Package ranker orders matched documents for presentation.
package ranker

import (
	"cmp"
	"slices"

	"github.com/Adithya-Monish-Kumar-K/Document-Search-Index-Engine/internal/document"
)

// Rank sorts results in place by occurrences descending, breaking ties by
// document id ascending, and trims them to limit when limit is positive.
func Rank(results []document.SearchResult, limit int) []document.SearchResult {
	slices.SortFunc(results, func(a, b document.SearchResult) int {
		if c := cmp.Compare(b.Occurrences, a.Occurrences); c != 0 {
			return c
		}
		return cmp.Compare(a.DocumentID, b.DocumentID)
	})
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results
}
