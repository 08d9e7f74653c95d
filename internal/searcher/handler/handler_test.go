package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/Document-Search-Index-Engine/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/Document-Search-Index-Engine/internal/document"
	"github.com/Adithya-Monish-Kumar-K/Document-Search-Index-Engine/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/Document-Search-Index-Engine/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/Document-Search-Index-Engine/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/Document-Search-Index-Engine/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/Document-Search-Index-Engine/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Document-Search-Index-Engine/pkg/metrics"
)

type fixture struct {
	mux     *http.ServeMux
	engine  *indexer.Engine
	metrics *metrics.Metrics
	queries *analytics.QueryLog
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	cfg := config.Default()
	m := metrics.New(prometheus.NewRegistry())
	engine := indexer.NewEngine(cfg.Index, indexer.WithMetrics(m))
	t.Cleanup(func() { _ = engine.Close() })

	exec := executor.New(engine.Store(), parser.New(engine.Tokenizer(), parser.PolicyAll, parser.CountFirst), executor.OptionsFromConfig(cfg.Search))
	queries := analytics.NewQueryLog(100)
	qc := cache.New(cache.NewMemoryBackend(64, time.Minute), m)
	h := New(exec, engine, cfg.Search, WithCache(qc), WithQueryLog(queries), WithMetrics(m))

	mux := http.NewServeMux()
	h.Register(mux)
	f := &fixture{mux: mux, engine: engine, metrics: m, queries: queries}

	f.put(t, `{"id":"doc1","name":"doc1.pdf","text":"the quarterly report shows growth growth growth"}`, http.StatusOK)
	f.put(t, `{"id":"doc2","name":"doc2.docx","text":"growth is steady"}`, http.StatusOK)
	return f
}

func (f *fixture) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	f.mux.ServeHTTP(rec, req)
	return rec
}

func (f *fixture) put(t *testing.T, body string, want int) *httptest.ResponseRecorder {
	t.Helper()
	rec := f.do(httptest.NewRequest(http.MethodPut, "/api/v1/documents", strings.NewReader(body)))
	require.Equal(t, want, rec.Code, rec.Body.String())
	return rec
}

func (f *fixture) search(t *testing.T, query string) SearchResponse {
	t.Helper()
	rec := f.do(httptest.NewRequest(http.MethodGet, "/api/v1/search?"+query, nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp SearchResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp
}

func TestSearchEndpoint(t *testing.T) {
	f := newFixture(t)

	resp := f.search(t, "q=Growth")
	assert.Equal(t, "Growth", resp.Query)
	assert.Equal(t, 2, resp.TotalHits)
	require.Len(t, resp.Results, 2)
	assert.Equal(t, "doc1", resp.Results[0].DocumentID)
	assert.Equal(t, 3, resp.Results[0].Occurrences)
	assert.Equal(t, document.FileTypeWord, resp.Results[1].FileType)
	assert.Equal(t, 4, resp.Stats.TotalOccurrences)
	assert.Equal(t, map[document.FileType]int{document.FileTypePDF: 1, document.FileTypeWord: 1}, resp.Stats.ByFileType)
	assert.False(t, resp.CacheHit)

	again := f.search(t, "q=growth")
	assert.True(t, again.CacheHit)
	assert.Equal(t, resp.Results, again.Results)

	assert.Equal(t, 2.0, testutil.ToFloat64(f.metrics.SearchQueriesTotal.WithLabelValues("hit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.CacheHitsTotal))
	assert.Equal(t, int64(2), f.queries.Stats().TotalSearches)
}

func TestSearchLimitTrimsResultsNotStats(t *testing.T) {
	f := newFixture(t)
	resp := f.search(t, "q=growth&limit=1")
	assert.Equal(t, 2, resp.TotalHits)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "doc1", resp.Results[0].DocumentID)
	assert.Equal(t, 4, resp.Stats.TotalOccurrences)
}

func TestSearchRejectsBadLimit(t *testing.T) {
	f := newFixture(t)
	for _, limit := range []string{"0", "-1", "ten"} {
		rec := f.do(httptest.NewRequest(http.MethodGet, "/api/v1/search?q=growth&limit="+limit, nil))
		assert.Equal(t, http.StatusBadRequest, rec.Code, limit)
	}
}

func TestSearchBlankAndUnknown(t *testing.T) {
	f := newFixture(t)

	blank := f.search(t, "q=%20%20")
	assert.Equal(t, 0, blank.TotalHits)
	assert.NotNil(t, blank.Results)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.SearchQueriesTotal.WithLabelValues("blank")))

	unknown := f.search(t, "q=nonexistent")
	assert.Empty(t, unknown.Results)
	assert.Equal(t, 0, unknown.Stats.TotalOccurrences)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.SearchQueriesTotal.WithLabelValues("zero_result")))
}

func TestSearchSeesReindexThroughCache(t *testing.T) {
	f := newFixture(t)
	require.Equal(t, 2, f.search(t, "q=growth").TotalHits)

	f.put(t, `{"id":"doc2","name":"doc2.docx","text":"steady as ever"}`, http.StatusOK)
	resp := f.search(t, "q=growth")
	assert.False(t, resp.CacheHit)
	assert.Equal(t, 1, resp.TotalHits)
}

func TestStatsEndpoint(t *testing.T) {
	f := newFixture(t)
	rec := f.do(httptest.NewRequest(http.MethodGet, "/api/v1/stats?q=growth", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var stats analytics.AggregateStats
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&stats))
	assert.Equal(t, 4, stats.TotalOccurrences)
	assert.Equal(t, map[string]analytics.DocumentFrequency{
		"doc1": {Name: "doc1.pdf", Occurrences: 3},
		"doc2": {Name: "doc2.docx", Occurrences: 1},
	}, stats.PerDocument)
}

func TestPutDocumentValidation(t *testing.T) {
	f := newFixture(t)

	rec := f.put(t, `{"id":"doc3","name":"","text":"x"}`, http.StatusBadRequest)
	var body struct {
		Fields map[string]string `json:"fields"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Contains(t, body.Fields, "name")

	f.put(t, `{"id":"doc3","name":"notes.bin","text":"x"}`, http.StatusBadRequest)
	f.put(t, `{not json`, http.StatusBadRequest)
	f.put(t, `{"id":"doc3","name":"notes.bin","file_type":"text","text":"growth"}`, http.StatusOK)

	doc, ok := f.engine.Store().DocumentByID("doc3")
	require.True(t, ok)
	assert.Equal(t, document.FileTypeText, doc.Type)
}

func TestDeleteDocument(t *testing.T) {
	f := newFixture(t)

	rec := f.do(httptest.NewRequest(http.MethodDelete, "/api/v1/documents/doc1", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	rec = f.do(httptest.NewRequest(http.MethodDelete, "/api/v1/documents/doc1", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	resp := f.search(t, "q=growth")
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "doc2", resp.Results[0].DocumentID)
}

func TestWritesAfterCloseAreUnavailable(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.engine.Close())
	f.put(t, `{"id":"doc9","name":"doc9.txt","text":"late"}`, http.StatusServiceUnavailable)
}

func TestCacheEndpoints(t *testing.T) {
	f := newFixture(t)
	f.search(t, "q=growth")

	rec := f.do(httptest.NewRequest(http.MethodGet, "/api/v1/cache/stats", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var stats map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&stats))
	assert.Equal(t, 1.0, stats["misses"])

	rec = f.do(httptest.NewRequest(http.MethodDelete, "/api/v1/cache", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, f.search(t, "q=growth").CacheHit)
}

func TestAnalyticsEndpoint(t *testing.T) {
	f := newFixture(t)
	f.search(t, "q=growth")
	f.search(t, "q=missing")

	rec := f.do(httptest.NewRequest(http.MethodGet, "/api/v1/analytics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var stats analytics.QueryStats
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&stats))
	assert.Equal(t, int64(2), stats.TotalSearches)
	assert.Equal(t, int64(1), stats.ZeroResultCount)
}

func TestSearchWithoutCache(t *testing.T) {
	cfg := config.Default()
	engine := indexer.NewEngine(cfg.Index)
	t.Cleanup(func() { _ = engine.Close() })
	require.NoError(t, engine.AddDocument(context.Background(), document.Document{
		ID: "a", Name: "a.txt", Type: document.FileTypeText, Text: "growth",
	}))
	exec := executor.New(engine.Store(), parser.New(engine.Tokenizer(), parser.PolicyAll, parser.CountFirst), executor.OptionsFromConfig(cfg.Search))
	mux := http.NewServeMux()
	New(exec, engine, cfg.Search).Register(mux)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/search?q=growth", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var resp SearchResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, 1, resp.TotalHits)

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/analytics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSharedBackendKeepsIndexesApart(t *testing.T) {
	cfg := config.Default()
	backend := cache.NewMemoryBackend(64, time.Minute)

	serve := func(doc document.Document) *http.ServeMux {
		engine := indexer.NewEngine(cfg.Index)
		t.Cleanup(func() { _ = engine.Close() })
		require.NoError(t, engine.AddDocument(context.Background(), doc))
		exec := executor.New(engine.Store(), parser.New(engine.Tokenizer(), parser.PolicyAll, parser.CountFirst), executor.OptionsFromConfig(cfg.Search))
		mux := http.NewServeMux()
		New(exec, engine, cfg.Search, WithCache(cache.New(backend, nil))).Register(mux)
		return mux
	}
	search := func(mux *http.ServeMux) SearchResponse {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/search?q=growth", nil))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var resp SearchResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
		return resp
	}

	first := serve(document.Document{ID: "old", Name: "old.txt", Type: document.FileTypeText, Text: "growth"})
	second := serve(document.Document{ID: "new", Name: "new.txt", Type: document.FileTypeText, Text: "growth growth"})

	require.Equal(t, "old", search(first).Results[0].DocumentID)
	assert.True(t, search(first).CacheHit)

	resp := search(second)
	assert.False(t, resp.CacheHit, "another index's entry must not be served")
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "new", resp.Results[0].DocumentID)
	assert.Equal(t, 2, resp.Results[0].Occurrences)
}
