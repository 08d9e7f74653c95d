package analytics

import (
	"cmp"
	"encoding/json"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

const (
	defaultLatencyWindow = 10000
	maxTrackedQueries    = 10000
	topQueryCount        = 10
)

// QueryStats is the snapshot served by the analytics endpoint. Latency
// percentiles cover the most recent searches only.
type QueryStats struct {
	TotalSearches     int64        `json:"total_searches"`
	CacheHits         int64        `json:"cache_hits"`
	CacheMisses       int64        `json:"cache_misses"`
	ZeroResultCount   int64        `json:"zero_result_count"`
	AvgLatencyMs      float64      `json:"avg_latency_ms"`
	P50LatencyMs      int64        `json:"p50_latency_ms"`
	P95LatencyMs      int64        `json:"p95_latency_ms"`
	P99LatencyMs      int64        `json:"p99_latency_ms"`
	TopQueries        []QueryCount `json:"top_queries"`
	ZeroResultQueries []QueryCount `json:"zero_result_queries"`
	QueriesPerMinute  float64      `json:"queries_per_minute"`
}

type QueryCount struct {
	Query string `json:"query"`
	Count int64  `json:"count"`
}

// QueryLog accumulates SearchEvents in memory. It is safe for concurrent use.
type QueryLog struct {
	mu                sync.RWMutex
	totalSearches     atomic.Int64
	cacheHits         atomic.Int64
	cacheMisses       atomic.Int64
	zeroResults       atomic.Int64
	latencies         []int64
	next              int
	window            int
	queryCounts       map[string]int64
	zeroResultQueries map[string]int64
	startTime         time.Time
}

// NewQueryLog keeps the latencies of the last window searches; a
// non-positive window selects the default.
func NewQueryLog(window int) *QueryLog {
	if window <= 0 {
		window = defaultLatencyWindow
	}
	return &QueryLog{
		latencies:         make([]int64, 0, min(window, 1024)),
		window:            window,
		queryCounts:       make(map[string]int64),
		zeroResultQueries: make(map[string]int64),
		startTime:         time.Now(),
	}
}

// Record adds one search. Blank queries are counted but not ranked.
func (l *QueryLog) Record(event SearchEvent) {
	l.totalSearches.Add(1)
	if event.CacheHit {
		l.cacheHits.Add(1)
	} else {
		l.cacheMisses.Add(1)
	}
	if event.TotalHits == 0 {
		l.zeroResults.Add(1)
	}

	key := queryKey(event)
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.latencies) < l.window {
		l.latencies = append(l.latencies, event.LatencyMs)
	} else {
		l.latencies[l.next] = event.LatencyMs
		l.next = (l.next + 1) % l.window
	}
	if key == "" {
		return
	}
	increment(l.queryCounts, key)
	if event.TotalHits == 0 {
		increment(l.zeroResultQueries, key)
	}
}

func (l *QueryLog) Stats() QueryStats {
	l.mu.RLock()
	defer l.mu.RUnlock()

	stats := QueryStats{
		TotalSearches:   l.totalSearches.Load(),
		CacheHits:       l.cacheHits.Load(),
		CacheMisses:     l.cacheMisses.Load(),
		ZeroResultCount: l.zeroResults.Load(),
	}
	if len(l.latencies) > 0 {
		sorted := slices.Clone(l.latencies)
		slices.Sort(sorted)

		var sum int64
		for _, v := range sorted {
			sum += v
		}
		stats.AvgLatencyMs = float64(sum) / float64(len(sorted))
		stats.P50LatencyMs = percentile(sorted, 50)
		stats.P95LatencyMs = percentile(sorted, 95)
		stats.P99LatencyMs = percentile(sorted, 99)
	}
	stats.TopQueries = topN(l.queryCounts, topQueryCount)
	stats.ZeroResultQueries = topN(l.zeroResultQueries, topQueryCount)
	if elapsed := time.Since(l.startTime).Minutes(); elapsed > 0 {
		stats.QueriesPerMinute = float64(stats.TotalSearches) / elapsed
	}
	return stats
}

// queryKey groups queries by their normalised terms so "Growth" and
// "growth " count together.
func queryKey(event SearchEvent) string {
	if len(event.Terms) > 0 {
		return strings.Join(event.Terms, " ")
	}
	return strings.ToLower(strings.TrimSpace(event.Query))
}

func increment(counts map[string]int64, key string) {
	if _, ok := counts[key]; !ok && len(counts) >= maxTrackedQueries {
		return
	}
	counts[key]++
}

func percentile(sorted []int64, pct int) int64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := (pct * len(sorted)) / 100
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

// topN returns the n most frequent queries, ties broken alphabetically.
func topN(counts map[string]int64, n int) []QueryCount {
	result := make([]QueryCount, 0, len(counts))
	for query, count := range counts {
		result = append(result, QueryCount{Query: query, Count: count})
	}
	slices.SortFunc(result, func(a, b QueryCount) int {
		if c := cmp.Compare(b.Count, a.Count); c != 0 {
			return c
		}
		return cmp.Compare(a.Query, b.Query)
	})
	if len(result) > n {
		result = result[:n]
	}
	return result
}

// ServeHTTP writes the current QueryStats as JSON.
func (l *QueryLog) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(l.Stats()); err != nil {
		slog.Default().Error("failed to write analytics response", "component", "query-log", "error", err)
	}
}
