// Package indexer builds and maintains the inverted index. The Engine is the
// only writer of its index.Store: it validates and tokenises documents,
// accumulates their postings off to the side and swaps them in per document.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/Document-Search-Index-Engine/internal/document"
	"github.com/Adithya-Monish-Kumar-K/Document-Search-Index-Engine/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/Document-Search-Index-Engine/internal/indexer/snapshot"
	"github.com/Adithya-Monish-Kumar-K/Document-Search-Index-Engine/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/Document-Search-Index-Engine/internal/ingestion/validator"
	"github.com/Adithya-Monish-Kumar-K/Document-Search-Index-Engine/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/Document-Search-Index-Engine/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Document-Search-Index-Engine/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/Document-Search-Index-Engine/pkg/resilience"
)

// TextSource fetches a document's extracted text from an external
// collaborator. It returns an error matching ErrDocumentNotFound when the
// id is unknown.
type TextSource interface {
	FetchText(ctx context.Context, documentID string) (string, error)
}

// Option configures an Engine.
type Option func(*Engine)

// WithTextSource sets the collaborator used by IndexFromSource.
func WithTextSource(src TextSource) Option {
	return func(e *Engine) { e.source = src }
}

// WithMetrics records indexing activity on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithStore makes the engine write into an existing store.
func WithStore(s *index.Store) Option {
	return func(e *Engine) { e.store = s }
}

type Engine struct {
	store     *index.Store
	tokenizer *tokenizer.Tokenizer
	source    TextSource
	metrics   *metrics.Metrics
	cfg       config.IndexConfig
	logger    *slog.Logger
}

// BatchReport is the outcome of AddDocuments. Errors is aligned with the
// input slice; a nil entry means that document was indexed.
type BatchReport struct {
	Indexed int
	Errors  []error
}

// Failed returns the number of documents that were not indexed.
func (r BatchReport) Failed() int {
	return len(r.Errors) - r.Indexed
}

// Err joins every per-document error, or returns nil when all succeeded.
func (r BatchReport) Err() error {
	return errors.Join(r.Errors...)
}

// NewEngine returns an Engine over a fresh store unless WithStore is given.
func NewEngine(cfg config.IndexConfig, opts ...Option) *Engine {
	if cfg.BatchConcurrency <= 0 {
		cfg.BatchConcurrency = 1
	}
	e := &Engine{
		tokenizer: tokenizer.New(cfg.ExtraWordChars),
		cfg:       cfg,
		logger:    slog.Default().With("component", "indexer"),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.store == nil {
		e.store = index.NewStore()
	}
	return e
}

// Store exposes the index for readers.
func (e *Engine) Store() *index.Store {
	return e.store
}

// Tokenizer returns the normalisation used for document text. Queries must
// be normalised with the same value.
func (e *Engine) Tokenizer() *tokenizer.Tokenizer {
	return e.tokenizer
}

// AddDocument indexes doc, replacing any earlier version with the same id.
// Postings are built completely before the store is touched, so a failure
// leaves the index as it was. Failures are *IngestionError values.
func (e *Engine) AddDocument(ctx context.Context, doc document.Document) error {
	start := time.Now()
	if err := ctx.Err(); err != nil {
		e.recordFailure("cancelled")
		return apperrors.NewIngestionError(doc.ID, err)
	}
	if err := validator.ValidateDocument(doc); err != nil {
		e.recordFailure("invalid")
		return apperrors.NewIngestionError(doc.ID, err)
	}

	postings, tokens := e.buildPostings(doc.Text)
	if err := ctx.Err(); err != nil {
		e.recordFailure("cancelled")
		return apperrors.NewIngestionError(doc.ID, err)
	}
	if err := e.store.Replace(doc, postings); err != nil {
		e.recordFailure("closed")
		return apperrors.NewIngestionError(doc.ID, err)
	}

	if e.metrics != nil {
		e.metrics.DocsIndexedTotal.Inc()
	}
	e.updateGauges()
	e.logger.Debug("document indexed",
		"doc_id", doc.ID,
		"tokens", tokens,
		"terms", len(postings),
		"duration", time.Since(start),
	)
	return nil
}

// AddDocuments indexes docs concurrently, at most batchConcurrency at once.
// Each document succeeds or fails on its own.
func (e *Engine) AddDocuments(ctx context.Context, docs []document.Document) BatchReport {
	report := BatchReport{Errors: make([]error, len(docs))}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.BatchConcurrency)
	for i, doc := range docs {
		g.Go(func() error {
			report.Errors[i] = e.AddDocument(gctx, doc)
			return nil
		})
	}
	_ = g.Wait()
	for _, err := range report.Errors {
		if err == nil {
			report.Indexed++
		}
	}
	if failed := report.Failed(); failed > 0 {
		e.logger.Warn("batch indexed with failures", "indexed", report.Indexed, "failed", failed)
	} else {
		e.logger.Info("batch indexed", "indexed", report.Indexed)
	}
	return report
}

// IndexFromSource fetches the text for meta from the configured TextSource
// and indexes it. Each fetch attempt is bounded by the fetch timeout and
// retried with backoff; an unknown id or a cancelled context is not retried.
func (e *Engine) IndexFromSource(ctx context.Context, meta document.Metadata) error {
	if e.source == nil {
		e.recordFailure("fetch")
		return apperrors.NewIngestionError(meta.ID, fmt.Errorf("%w: no text source configured", apperrors.ErrInternal))
	}
	var text string
	retryCfg := resilience.RetryConfig{MaxAttempts: e.cfg.FetchAttempts}
	err := resilience.Retry(ctx, "fetch-text", retryCfg, func() error {
		t, err := resilience.WithTimeout(ctx, e.cfg.FetchTimeout, "fetch-text", func(ctx context.Context) (string, error) {
			return e.source.FetchText(ctx, meta.ID)
		})
		if err != nil {
			if errors.Is(err, apperrors.ErrDocumentNotFound) || ctx.Err() != nil {
				return resilience.Permanent(err)
			}
			return err
		}
		text = t
		return nil
	})
	if err != nil {
		reason := "fetch"
		if ctx.Err() != nil {
			reason = "cancelled"
		}
		e.recordFailure(reason)
		e.logger.Warn("fetching document text failed", "doc_id", meta.ID, "error", err)
		return apperrors.NewIngestionError(meta.ID, err)
	}
	return e.AddDocument(ctx, meta.WithText(text))
}

// RemoveDocument purges id from every posting. Removing an unknown id is a
// no-op reporting false.
func (e *Engine) RemoveDocument(ctx context.Context, id string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	removed, err := e.store.Delete(id)
	if err != nil {
		return false, fmt.Errorf("removing document %q: %w", id, err)
	}
	if removed {
		if e.metrics != nil {
			e.metrics.DocsRemovedTotal.Inc()
		}
		e.updateGauges()
		e.logger.Debug("document removed", "doc_id", id)
	}
	return removed, nil
}

// SaveSnapshot writes the current index to path.
func (e *Engine) SaveSnapshot(path string) error {
	state := e.store.Snapshot()
	if err := snapshot.Write(path, state); err != nil {
		return fmt.Errorf("saving snapshot: %w", err)
	}
	e.logger.Info("snapshot saved", "path", path, "documents", len(state.Documents), "terms", len(state.Terms))
	return nil
}

// LoadSnapshot restores an empty index from the snapshot at path.
func (e *Engine) LoadSnapshot(path string) error {
	state, err := snapshot.Read(path)
	if err != nil {
		return fmt.Errorf("loading snapshot: %w", err)
	}
	if err := e.store.Restore(state); err != nil {
		return fmt.Errorf("restoring snapshot %s: %w", path, err)
	}
	e.updateGauges()
	return nil
}

// Close releases the index. Later writes fail with ErrClosed.
func (e *Engine) Close() error {
	return e.store.Close()
}

// buildPostings groups the tokens of text by term. Spans come out ascending
// because tokens are produced in appearance order.
func (e *Engine) buildPostings(text string) (map[string][]index.Span, int) {
	postings := make(map[string][]index.Span)
	n := 0
	for tok := range e.tokenizer.Tokens(text) {
		postings[tok.Term] = append(postings[tok.Term], index.Span{Start: tok.Start, End: tok.End})
		n++
	}
	return postings, n
}

func (e *Engine) recordFailure(reason string) {
	if e.metrics != nil {
		e.metrics.IngestionFailuresTotal.WithLabelValues(reason).Inc()
	}
}

func (e *Engine) updateGauges() {
	if e.metrics == nil {
		return
	}
	e.metrics.IndexedDocuments.Set(float64(e.store.DocCount()))
	e.metrics.IndexedTerms.Set(float64(e.store.TermCount()))
}

// Version reports the store's content version for cache keys.
func (e *Engine) Version() string {
	return e.store.Version()
}
