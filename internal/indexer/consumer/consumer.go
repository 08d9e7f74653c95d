// Package consumer applies document events from the ingestion stream to the
// index builder and publishes the outcome of each one.
package consumer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Document-Search-Index-Engine/internal/document"
	"github.com/Adithya-Monish-Kumar-K/Document-Search-Index-Engine/internal/ingestion"
	apperrors "github.com/Adithya-Monish-Kumar-K/Document-Search-Index-Engine/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Document-Search-Index-Engine/pkg/kafka"
)

const indexEventType = "index-event"

// Indexer is the write side of the index builder.
type Indexer interface {
	AddDocument(ctx context.Context, doc document.Document) error
	IndexFromSource(ctx context.Context, meta document.Metadata) error
	RemoveDocument(ctx context.Context, id string) (bool, error)
}

// Publisher receives one IndexEvent per handled message.
type Publisher interface {
	Publish(ctx context.Context, event kafka.Event) error
}

// StatusRecorder persists per-document outcomes, typically next to the
// extracted text.
type StatusRecorder interface {
	RecordStatus(ctx context.Context, documentID, status string) error
}

type Option func(*IndexConsumer)

func WithPublisher(p Publisher) Option {
	return func(ic *IndexConsumer) { ic.publisher = p }
}

func WithStatusRecorder(r StatusRecorder) Option {
	return func(ic *IndexConsumer) { ic.status = r }
}

type IndexConsumer struct {
	indexer   Indexer
	publisher Publisher
	status    StatusRecorder
	logger    *slog.Logger
}

func New(idx Indexer, opts ...Option) *IndexConsumer {
	ic := &IndexConsumer{
		indexer: idx,
		logger:  slog.Default().With("component", "index-consumer"),
	}
	for _, opt := range opts {
		opt(ic)
	}
	return ic
}

// Handle is a kafka.MessageHandler. Undecodable messages and per-document
// failures are reported and acknowledged; only a closed index or a
// cancelled context is returned, leaving the message uncommitted.
func (ic *IndexConsumer) Handle(ctx context.Context, key, value []byte) error {
	start := time.Now()
	event, err := kafka.DecodeJSON[ingestion.DocumentEvent](value)
	if err != nil {
		ic.logger.Error("failed to decode document event", "error", err, "key", string(key))
		return nil
	}
	docID := event.Document.ID

	outcome := ingestion.IndexEvent{Op: event.Op, DocumentID: docID}
	switch event.Op {
	case ingestion.OpUpsert, "":
		outcome.Op = ingestion.OpUpsert
		if event.FetchText {
			err = ic.indexer.IndexFromSource(ctx, event.Document.Meta())
		} else {
			err = ic.indexer.AddDocument(ctx, event.Document)
		}
		outcome.Status = ingestion.StatusIndexed
	case ingestion.OpDelete:
		var removed bool
		removed, err = ic.indexer.RemoveDocument(ctx, docID)
		outcome.Status = ingestion.StatusRemoved
		if err == nil && !removed {
			outcome.Status = ingestion.StatusSkipped
		}
	default:
		err = fmt.Errorf("%w: unknown op %q", apperrors.ErrInvalidInput, event.Op)
	}

	if err != nil {
		if errors.Is(err, apperrors.ErrClosed) || ctx.Err() != nil {
			return fmt.Errorf("applying %s for %q: %w", outcome.Op, docID, err)
		}
		outcome.Status = ingestion.StatusFailed
		outcome.Error = err.Error()
		ic.logger.Warn("document event failed", "doc_id", docID, "op", outcome.Op, "error", err)
	} else {
		ic.logger.Debug("document event applied", "doc_id", docID, "op", outcome.Op, "status", outcome.Status)
	}

	outcome.LatencyMs = time.Since(start).Milliseconds()
	outcome.Timestamp = time.Now().UTC()
	ic.report(ctx, outcome)
	return nil
}

func (ic *IndexConsumer) report(ctx context.Context, outcome ingestion.IndexEvent) {
	if ic.status != nil && outcome.DocumentID != "" && outcome.Op == ingestion.OpUpsert {
		// Errors are logged by the recorder.
		_ = ic.status.RecordStatus(ctx, outcome.DocumentID, outcome.Status)
	}
	if ic.publisher == nil {
		return
	}
	if err := ic.publisher.Publish(ctx, kafka.Event{Key: outcome.DocumentID, Type: indexEventType, Value: outcome}); err != nil {
		ic.logger.Error("failed to publish index event", "doc_id", outcome.DocumentID, "error", err)
	}
}
