package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Adithya-Monish-Kumar-K/Document-Search-Index-Engine/internal/document"
	apperrors "github.com/Adithya-Monish-Kumar-K/Document-Search-Index-Engine/pkg/errors"
)

// TextSource reads extracted text from the document_texts table:
//
//	CREATE TABLE document_texts (
//	    document_id   TEXT PRIMARY KEY,
//	    name          TEXT NOT NULL,
//	    file_type     TEXT NOT NULL,
//	    last_modified TIMESTAMPTZ NOT NULL,
//	    body          TEXT NOT NULL,
//	    status        TEXT NOT NULL DEFAULT 'PENDING',
//	    indexed_at    TIMESTAMPTZ
//	);
type TextSource struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewTextSource(c *Client) *TextSource {
	return &TextSource{
		db:     c.DB,
		logger: slog.Default().With("component", "text-source"),
	}
}

// FetchText returns the body stored for documentID, or an error matching
// ErrDocumentNotFound.
func (s *TextSource) FetchText(ctx context.Context, documentID string) (string, error) {
	var body string
	err := s.db.QueryRowContext(ctx,
		`SELECT body FROM document_texts WHERE document_id = $1`,
		documentID,
	).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("text for %q: %w", documentID, apperrors.ErrDocumentNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("querying text for %q: %w", documentID, err)
	}
	return body, nil
}

// Pending lists up to limit documents not yet indexed, oldest first.
func (s *TextSource) Pending(ctx context.Context, limit int) ([]document.Metadata, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT document_id, name, file_type, last_modified
		   FROM document_texts
		  WHERE status = 'PENDING'
		  ORDER BY last_modified
		  LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("listing pending documents: %w", err)
	}
	defer rows.Close()

	var metas []document.Metadata
	for rows.Next() {
		var (
			m  document.Metadata
			ft string
		)
		if err := rows.Scan(&m.ID, &m.Name, &ft, &m.LastModified); err != nil {
			return nil, fmt.Errorf("scanning pending document: %w", err)
		}
		m.Type = document.ParseFileType(ft)
		metas = append(metas, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating pending documents: %w", err)
	}
	return metas, nil
}

// RecordStatus stores the indexing outcome for documentID. Failures are
// logged and returned; they never undo the indexing itself.
func (s *TextSource) RecordStatus(ctx context.Context, documentID, status string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE document_texts SET status = $1, indexed_at = NOW() WHERE document_id = $2`,
		status, documentID,
	)
	if err != nil {
		s.logger.Error("failed to update document status",
			"doc_id", documentID,
			"status", status,
			"error", err,
		)
		return fmt.Errorf("updating status of %q: %w", documentID, err)
	}
	return nil
}
