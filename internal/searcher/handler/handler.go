// Package handler exposes the search and indexing operations over HTTP.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Document-Search-Index-Engine/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/Document-Search-Index-Engine/internal/document"
	"github.com/Adithya-Monish-Kumar-K/Document-Search-Index-Engine/internal/ingestion/validator"
	"github.com/Adithya-Monish-Kumar-K/Document-Search-Index-Engine/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/Document-Search-Index-Engine/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/Document-Search-Index-Engine/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/Document-Search-Index-Engine/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Document-Search-Index-Engine/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/Document-Search-Index-Engine/pkg/metrics"
)

// maxBodyBytes leaves headroom over the validator's text limit for the
// JSON envelope and escaping.
const maxBodyBytes = 80 << 20

type Searcher interface {
	Parse(query string) *parser.QueryPlan
	Execute(ctx context.Context, plan *parser.QueryPlan) ([]document.SearchResult, error)
}

type Index interface {
	AddDocument(ctx context.Context, doc document.Document) error
	RemoveDocument(ctx context.Context, id string) (bool, error)
	Version() string
}

// SearchResponse is the body of GET /api/v1/search. Stats cover every
// match; Results is trimmed to the requested limit.
type SearchResponse struct {
	Query     string                   `json:"query"`
	TotalHits int                      `json:"total_hits"`
	Results   []document.SearchResult  `json:"results"`
	Stats     analytics.AggregateStats `json:"stats"`
	CacheHit  bool                     `json:"cache_hit"`
}

type Option func(*Handler)

func WithCache(c *cache.QueryCache) Option {
	return func(h *Handler) { h.cache = c }
}

func WithQueryLog(l *analytics.QueryLog) Option {
	return func(h *Handler) { h.queries = l }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(h *Handler) { h.metrics = m }
}

type Handler struct {
	searcher     Searcher
	index        Index
	cache        *cache.QueryCache
	queries      *analytics.QueryLog
	metrics      *metrics.Metrics
	defaultLimit int
	maxResults   int
	logger       *slog.Logger
}

func New(s Searcher, idx Index, cfg config.SearchConfig, opts ...Option) *Handler {
	h := &Handler{
		searcher:     s,
		index:        idx,
		defaultLimit: cfg.DefaultLimit,
		maxResults:   cfg.MaxResults,
		logger:       slog.Default().With("component", "search-handler"),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register mounts every route on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/search", h.Search)
	mux.HandleFunc("GET /api/v1/stats", h.Stats)
	mux.HandleFunc("PUT /api/v1/documents", h.PutDocument)
	mux.HandleFunc("DELETE /api/v1/documents/{id}", h.DeleteDocument)
	mux.HandleFunc("GET /api/v1/cache/stats", h.CacheStats)
	mux.HandleFunc("DELETE /api/v1/cache", h.CacheInvalidate)
	if h.queries != nil {
		mux.Handle("GET /api/v1/analytics", h.queries)
	}
}

func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	log := logger.FromContext(ctx)
	query := r.URL.Query().Get("q")

	limit, err := h.parseLimit(r.URL.Query().Get("limit"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	plan := h.searcher.Parse(query)
	results, cacheHit, err := h.run(ctx, plan)
	if err != nil {
		h.recordOutcome("error", "", 0, start)
		log.Error("search execution failed", "query", query, "error", err)
		h.writeAppError(w, err)
		return
	}

	resp := SearchResponse{
		Query:     query,
		TotalHits: len(results),
		Results:   results[:min(limit, len(results))],
		Stats:     analytics.Aggregate(results),
		CacheHit:  cacheHit,
	}
	latency := time.Since(start)
	h.recordOutcome(outcomeFor(plan, resp.TotalHits), h.cacheStatus(cacheHit), resp.TotalHits, start)

	log.Info("search completed",
		"query", query,
		"total_hits", resp.TotalHits,
		"returned", len(resp.Results),
		"cache_hit", cacheHit,
		"latency_ms", latency.Milliseconds(),
	)
	if h.queries != nil && !plan.Empty() {
		h.queries.Record(analytics.SearchEvent{
			Query:     query,
			Terms:     plan.Terms,
			TotalHits: resp.TotalHits,
			Returned:  len(resp.Results),
			LatencyMs: latency.Milliseconds(),
			CacheHit:  cacheHit,
			Timestamp: time.Now().UTC(),
			RequestID: logger.RequestID(ctx),
		})
	}

	h.writeJSON(w, http.StatusOK, resp)
}

// Stats serves the aggregate statistics of a query without the result list.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	plan := h.searcher.Parse(r.URL.Query().Get("q"))
	results, _, err := h.run(r.Context(), plan)
	if err != nil {
		logger.FromContext(r.Context()).Error("stats execution failed", "query", plan.RawQuery, "error", err)
		h.writeAppError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, analytics.Aggregate(results))
}

// PutDocument indexes the JSON document in the body, replacing any earlier
// version. A missing file_type is derived from the name's extension.
func (h *Handler) PutDocument(w http.ResponseWriter, r *http.Request) {
	var doc document.Document
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&doc); err != nil {
		h.writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid document body: %v", err))
		return
	}
	if doc.Type == document.FileTypeUnknown {
		doc.Type = document.FileTypeFromName(doc.Name)
	} else {
		doc.Type = document.ParseFileType(string(doc.Type))
	}

	if err := h.index.AddDocument(r.Context(), doc); err != nil {
		h.writeAppError(w, err)
		return
	}
	logger.FromContext(r.Context()).Info("document indexed", "doc_id", doc.ID, "file_type", doc.Type)
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "indexed", "id": doc.ID})
}

func (h *Handler) DeleteDocument(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	removed, err := h.index.RemoveDocument(r.Context(), id)
	if err != nil {
		h.writeAppError(w, err)
		return
	}
	if !removed {
		h.writeError(w, http.StatusNotFound, fmt.Sprintf("document %q not found", id))
		return
	}
	logger.FromContext(r.Context()).Info("document removed", "doc_id", id)
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "removed", "id": id})
}

func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
		return
	}

	hits, misses := h.cache.Stats()
	total := hits + misses
	var hitRate float64
	if total > 0 {
		hitRate = float64(hits) / float64(total) * 100
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"hits":     hits,
		"misses":   misses,
		"total":    total,
		"hit_rate": fmt.Sprintf("%.1f%%", hitRate),
	})
}

func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeError(w, http.StatusServiceUnavailable, "caching is disabled")
		return
	}

	if err := h.cache.Invalidate(r.Context()); err != nil {
		h.logger.Error("cache invalidation failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "cache invalidation failed")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]string{"status": "invalidated"})
}

// run executes plan through the cache when one is configured. Cache keys
// carry the index version read before execution.
func (h *Handler) run(ctx context.Context, plan *parser.QueryPlan) ([]document.SearchResult, bool, error) {
	if plan.Empty() {
		return []document.SearchResult{}, false, nil
	}
	compute := func(ctx context.Context) ([]document.SearchResult, error) {
		return h.searcher.Execute(ctx, plan)
	}
	var (
		results []document.SearchResult
		hit     bool
		err     error
	)
	if h.cache != nil {
		results, hit, err = h.cache.GetOrCompute(ctx, h.index.Version(), plan.Key(), compute)
	} else {
		results, err = compute(ctx)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		err = fmt.Errorf("%w: %w", apperrors.ErrTimeout, err)
	}
	return results, hit, err
}

func (h *Handler) parseLimit(s string) (int, error) {
	if s == "" {
		return h.defaultLimit, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return 0, errors.New("limit must be a positive integer")
	}
	return min(n, h.maxResults), nil
}

func (h *Handler) cacheStatus(hit bool) string {
	switch {
	case h.cache == nil:
		return "disabled"
	case hit:
		return "hit"
	default:
		return "miss"
	}
}

func (h *Handler) recordOutcome(outcome, cacheStatus string, hits int, start time.Time) {
	if h.metrics == nil {
		return
	}
	h.metrics.SearchQueriesTotal.WithLabelValues(outcome).Inc()
	if outcome == "error" || outcome == "blank" {
		return
	}
	h.metrics.SearchLatency.WithLabelValues(cacheStatus).Observe(time.Since(start).Seconds())
	h.metrics.SearchResultsCount.Observe(float64(hits))
}

func outcomeFor(plan *parser.QueryPlan, hits int) string {
	switch {
	case plan.Empty():
		return "blank"
	case hits == 0:
		return "zero_result"
	default:
		return "hit"
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}

// writeAppError maps err through the error taxonomy. Internal failures are
// not echoed to the client.
func (h *Handler) writeAppError(w http.ResponseWriter, err error) {
	status := apperrors.HTTPStatusCode(err)
	if status >= http.StatusInternalServerError && status != http.StatusServiceUnavailable {
		h.writeError(w, status, "internal error")
		return
	}
	var verr *validator.ValidationError
	if errors.As(err, &verr) {
		h.writeJSON(w, status, map[string]any{"error": "invalid document", "fields": verr.Fields})
		return
	}
	h.writeError(w, status, err.Error())
}
