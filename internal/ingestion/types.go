// Package ingestion defines the message schemas exchanged with the document
// decoding collaborator and the validation applied before indexing.
package ingestion

import (
	"time"

	"github.com/Adithya-Monish-Kumar-K/Document-Search-Index-Engine/internal/document"
)

// Op is the action a DocumentEvent asks the indexer to perform.
type Op string

const (
	OpUpsert Op = "upsert"
	OpDelete Op = "delete"
)

// DocumentEvent is the Kafka message payload produced once a document's
// text has been extracted (upsert) or the document has been withdrawn
// (delete, where only Document.ID is read). With FetchText set the text is
// read from the configured text source instead of Document.Text.
type DocumentEvent struct {
	Op        Op                `json:"op"`
	Document  document.Document `json:"document"`
	FetchText bool              `json:"fetch_text,omitempty"`
	EmittedAt time.Time         `json:"emitted_at"`
}

// IndexEvent reports the outcome of applying one DocumentEvent.
type IndexEvent struct {
	Op         Op        `json:"op"`
	DocumentID string    `json:"document_id"`
	Status     string    `json:"status"`
	Error      string    `json:"error,omitempty"`
	LatencyMs  int64     `json:"latency_ms"`
	Timestamp  time.Time `json:"timestamp"`
}

const (
	StatusIndexed = "INDEXED"
	StatusRemoved = "REMOVED"
	StatusSkipped = "SKIPPED"
	StatusFailed  = "FAILED"
)
