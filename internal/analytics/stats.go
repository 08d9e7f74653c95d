// Package analytics folds search results into aggregate statistics and keeps
// a rolling log of query activity for the analytics endpoint.
package analytics

import (
	"cmp"
	"maps"

	"github.com/Adithya-Monish-Kumar-K/Document-Search-Index-Engine/internal/document"
)

// AggregateStats summarises one result set. ByFileType counts matched
// documents, not occurrences. PerDocument is keyed by document id, since
// display names need not be unique, and backs the per-document frequency
// chart.
type AggregateStats struct {
	TotalOccurrences int                          `json:"total_occurrences"`
	ByFileType       map[document.FileType]int    `json:"by_file_type"`
	PerDocument      map[string]DocumentFrequency `json:"per_document"`
}

// DocumentFrequency is one bar of the frequency chart.
type DocumentFrequency struct {
	Name        string `json:"name"`
	Occurrences int    `json:"occurrences"`
}

func (s AggregateStats) addDocument(id string, f DocumentFrequency) {
	cur := s.PerDocument[id]
	cur.Name = cmp.Or(cur.Name, f.Name)
	cur.Occurrences += f.Occurrences
	s.PerDocument[id] = cur
}

// Aggregate folds results in a single pass. The outcome does not depend on
// the order of results.
func Aggregate(results []document.SearchResult) AggregateStats {
	stats := AggregateStats{
		ByFileType:  make(map[document.FileType]int),
		PerDocument: make(map[string]DocumentFrequency, len(results)),
	}
	for _, r := range results {
		stats.TotalOccurrences += r.Occurrences
		stats.ByFileType[r.FileType]++
		stats.addDocument(r.DocumentID, DocumentFrequency{Name: r.DocumentName, Occurrences: r.Occurrences})
	}
	return stats
}

// Merge combines two partial folds over disjoint result sets. It is
// commutative and associative, and neither argument is modified.
func Merge(a, b AggregateStats) AggregateStats {
	out := AggregateStats{
		TotalOccurrences: a.TotalOccurrences + b.TotalOccurrences,
		ByFileType:       make(map[document.FileType]int, len(a.ByFileType)+len(b.ByFileType)),
		PerDocument:      make(map[string]DocumentFrequency, len(a.PerDocument)+len(b.PerDocument)),
	}
	maps.Copy(out.ByFileType, a.ByFileType)
	for ft, n := range b.ByFileType {
		out.ByFileType[ft] += n
	}
	maps.Copy(out.PerDocument, a.PerDocument)
	for id, f := range b.PerDocument {
		out.addDocument(id, f)
	}
	return out
}
