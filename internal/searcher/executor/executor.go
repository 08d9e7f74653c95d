// Package executor answers term queries against the index store. It never
// writes to the store and needs no coordination between concurrent searches.
package executor

import (
	"cmp"
	"context"
	"log/slog"
	"slices"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Document-Search-Index-Engine/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/Document-Search-Index-Engine/internal/document"
	"github.com/Adithya-Monish-Kumar-K/Document-Search-Index-Engine/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/Document-Search-Index-Engine/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/Document-Search-Index-Engine/internal/searcher/ranker"
	"github.com/Adithya-Monish-Kumar-K/Document-Search-Index-Engine/pkg/config"
)

// Index is the read side of the index store.
type Index interface {
	PostingsFor(term string) (index.Posting, bool)
}

// Options controls excerpt extraction.
type Options struct {
	MaxExcerpts   int
	ExcerptWidth  int
	Highlight     bool
	HighlightPre  string
	HighlightPost string
	Ellipsis      string
}

// OptionsFromConfig maps the search section of the configuration.
func OptionsFromConfig(cfg config.SearchConfig) Options {
	return Options{
		MaxExcerpts:   cfg.MaxExcerpts,
		ExcerptWidth:  cfg.ExcerptWidth,
		Highlight:     cfg.Highlight,
		HighlightPre:  cfg.HighlightPre,
		HighlightPost: cfg.HighlightPost,
		Ellipsis:      cfg.Ellipsis,
	}
}

type Executor struct {
	index     Index
	parser    *parser.Parser
	excerpter excerpter
	logger    *slog.Logger
}

func New(idx Index, p *parser.Parser, opts Options) *Executor {
	return &Executor{
		index:  idx,
		parser: p,
		excerpter: excerpter{
			max:       max(opts.MaxExcerpts, 0),
			width:     max(opts.ExcerptWidth, 0),
			highlight: opts.Highlight,
			pre:       opts.HighlightPre,
			post:      opts.HighlightPost,
			ellipsis:  opts.Ellipsis,
		},
		logger: slog.Default().With("component", "query-executor"),
	}
}

// Parse exposes the executor's query normalisation.
func (e *Executor) Parse(term string) *parser.QueryPlan {
	return e.parser.Parse(term)
}

// Search returns every document matching term, ordered by occurrences
// descending then document id. A blank or unknown term yields an empty
// slice and no error.
func (e *Executor) Search(ctx context.Context, term string) ([]document.SearchResult, error) {
	return e.Execute(ctx, e.parser.Parse(term))
}

// Stats aggregates the results Search would return for term.
func (e *Executor) Stats(ctx context.Context, term string) (analytics.AggregateStats, error) {
	results, err := e.Search(ctx, term)
	if err != nil {
		return analytics.AggregateStats{}, err
	}
	return analytics.Aggregate(results), nil
}

// Execute runs an already parsed plan.
func (e *Executor) Execute(ctx context.Context, plan *parser.QueryPlan) ([]document.SearchResult, error) {
	start := time.Now()
	results := make([]document.SearchResult, 0)
	if plan.Empty() {
		return results, nil
	}

	postings := make([]index.Posting, 0, len(plan.Terms))
	for _, term := range plan.Terms {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		p, ok := e.index.PostingsFor(term)
		if !ok {
			if plan.Policy == parser.PolicyAll {
				return results, nil
			}
			continue
		}
		postings = append(postings, p)
	}

	var candidates []string
	switch plan.Policy {
	case parser.PolicyAny:
		candidates = unionPostings(postings)
	default:
		candidates = intersectPostings(postings)
	}

	for i, docID := range candidates {
		if i%256 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		if r, ok := e.buildResult(plan.CountRule, postings, docID); ok {
			results = append(results, r)
		}
	}
	results = ranker.Rank(results, 0)

	e.logger.Debug("query executed",
		"query", plan.RawQuery,
		"terms", plan.Terms,
		"policy", plan.Policy,
		"results", len(results),
		"duration", time.Since(start),
	)
	return results, nil
}

// buildResult counts docID's occurrences over postings, which are in query
// order, and cuts excerpts from the counted spans.
func (e *Executor) buildResult(rule parser.CountRule, postings []index.Posting, docID string) (document.SearchResult, bool) {
	var (
		counted index.Entry
		found   bool
		total   int
		spans   []index.Span
	)
	for _, p := range postings {
		entry, ok := p.Entry(docID)
		if !ok {
			continue
		}
		if !found {
			counted, found = entry, true
			total = entry.Occurrences()
			spans = entry.Spans
			if rule != parser.CountSum {
				break
			}
			continue
		}
		total += entry.Occurrences()
		// Spans from another version of the document would not line up
		// with the counted entry's text.
		if entry.SameVersion(counted) {
			spans = append(spans, entry.Spans...)
		}
	}
	if !found {
		return document.SearchResult{}, false
	}
	if rule == parser.CountSum {
		slices.SortFunc(spans, func(a, b index.Span) int { return cmp.Compare(a.Start, b.Start) })
	}

	doc := counted.Document()
	return document.SearchResult{
		DocumentID:   doc.ID,
		DocumentName: doc.Name,
		FileType:     doc.Type,
		LastModified: doc.LastModified,
		Occurrences:  total,
		Excerpts:     e.excerpter.excerpts(doc.Text, spans),
	}, true
}

// intersectPostings returns the ids present in every posting, ascending. It
// walks the shortest posting and probes the others.
func intersectPostings(postings []index.Posting) []string {
	if len(postings) == 0 {
		return nil
	}
	shortest := slices.MinFunc(postings, func(a, b index.Posting) int { return cmp.Compare(a.Len(), b.Len()) })
	candidates := make([]string, 0, shortest.Len())
	for _, docID := range shortest.DocIDs() {
		inAll := true
		for _, p := range postings {
			if !p.Contains(docID) {
				inAll = false
				break
			}
		}
		if inAll {
			candidates = append(candidates, docID)
		}
	}
	return candidates
}

// unionPostings returns the ids present in any posting, ascending.
func unionPostings(postings []index.Posting) []string {
	seen := make(map[string]struct{})
	for _, p := range postings {
		for _, docID := range p.DocIDs() {
			seen[docID] = struct{}{}
		}
	}
	ids := make([]string, 0, len(seen))
	for docID := range seen {
		ids = append(ids, docID)
	}
	slices.Sort(ids)
	return ids
}
