package analytics

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/Document-Search-Index-Engine/internal/document"
)

func sampleResults() []document.SearchResult {
	return []document.SearchResult{
		{DocumentID: "doc1", DocumentName: "doc1.pdf", FileType: document.FileTypePDF, Occurrences: 3},
		{DocumentID: "doc2", DocumentName: "doc2.docx", FileType: document.FileTypeWord, Occurrences: 1},
	}
}

func TestAggregate(t *testing.T) {
	stats := Aggregate(sampleResults())
	assert.Equal(t, 4, stats.TotalOccurrences)
	assert.Equal(t, map[document.FileType]int{document.FileTypePDF: 1, document.FileTypeWord: 1}, stats.ByFileType)
	assert.Equal(t, map[string]DocumentFrequency{
		"doc1": {Name: "doc1.pdf", Occurrences: 3},
		"doc2": {Name: "doc2.docx", Occurrences: 1},
	}, stats.PerDocument)
}

func TestAggregateEmpty(t *testing.T) {
	stats := Aggregate(nil)
	assert.Zero(t, stats.TotalOccurrences)
	assert.Empty(t, stats.ByFileType)
	assert.NotNil(t, stats.ByFileType)
}

func TestAggregateIsOrderIndependent(t *testing.T) {
	results := sampleResults()
	reversed := []document.SearchResult{results[1], results[0]}
	assert.Equal(t, Aggregate(results), Aggregate(reversed))
}

func TestMergeMatchesSinglePass(t *testing.T) {
	results := append(sampleResults(), document.SearchResult{
		DocumentID: "doc3", DocumentName: "doc3.pdf", FileType: document.FileTypePDF, Occurrences: 2,
	})
	whole := Aggregate(results)

	a, b, c := Aggregate(results[:1]), Aggregate(results[1:2]), Aggregate(results[2:])
	assert.Equal(t, whole, Merge(Merge(a, b), c))
	assert.Equal(t, whole, Merge(a, Merge(b, c)))
	assert.Equal(t, Merge(a, b), Merge(b, a))
	assert.Equal(t, 1, a.ByFileType[document.FileTypePDF], "inputs are not modified")
}

func TestQueryLogStats(t *testing.T) {
	log := NewQueryLog(3)
	log.Record(SearchEvent{Query: "Growth", Terms: []string{"growth"}, TotalHits: 2, LatencyMs: 5})
	log.Record(SearchEvent{Query: "growth ", Terms: []string{"growth"}, TotalHits: 2, LatencyMs: 1, CacheHit: true})
	log.Record(SearchEvent{Query: "missing", Terms: []string{"missing"}, LatencyMs: 3})
	log.Record(SearchEvent{Query: "   ", LatencyMs: 7})

	stats := log.Stats()
	assert.Equal(t, int64(4), stats.TotalSearches)
	assert.Equal(t, int64(1), stats.CacheHits)
	assert.Equal(t, int64(3), stats.CacheMisses)
	assert.Equal(t, int64(2), stats.ZeroResultCount)
	assert.Equal(t, []QueryCount{{Query: "growth", Count: 2}, {Query: "missing", Count: 1}}, stats.TopQueries)
	assert.Equal(t, []QueryCount{{Query: "missing", Count: 1}}, stats.ZeroResultQueries)

	// Window of three keeps 7, 1 and 3.
	assert.InDelta(t, 11.0/3.0, stats.AvgLatencyMs, 1e-9)
	assert.Equal(t, int64(3), stats.P50LatencyMs)
	assert.Equal(t, int64(7), stats.P99LatencyMs)
}

func TestQueryLogServeHTTP(t *testing.T) {
	log := NewQueryLog(0)
	log.Record(SearchEvent{Query: "growth", Terms: []string{"growth"}, TotalHits: 1})

	rec := httptest.NewRecorder()
	log.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/analytics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var got QueryStats
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
	assert.Equal(t, int64(1), got.TotalSearches)
}

func TestAggregateKeepsSameNamedDocumentsApart(t *testing.T) {
	stats := Aggregate([]document.SearchResult{
		{DocumentID: "a", DocumentName: "report.pdf", FileType: document.FileTypePDF, Occurrences: 2},
		{DocumentID: "b", DocumentName: "report.pdf", FileType: document.FileTypePDF, Occurrences: 5},
	})
	require.Len(t, stats.PerDocument, 2)
	assert.Equal(t, DocumentFrequency{Name: "report.pdf", Occurrences: 2}, stats.PerDocument["a"])
	assert.Equal(t, DocumentFrequency{Name: "report.pdf", Occurrences: 5}, stats.PerDocument["b"])
}
