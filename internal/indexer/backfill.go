package indexer

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/Document-Search-Index-Engine/internal/document"
	"github.com/Adithya-Monish-Kumar-K/Document-Search-Index-Engine/internal/ingestion"
)

// PendingSource lists documents whose text is stored but not yet indexed,
// and records the outcome so they leave the pending set.
type PendingSource interface {
	Pending(ctx context.Context, limit int) ([]document.Metadata, error)
	RecordStatus(ctx context.Context, documentID, status string) error
}

// BackfillReport counts the documents a Backfill run attempted.
type BackfillReport struct {
	Indexed int
	Failed  int
}

// Backfill indexes every pending document through IndexFromSource, one page
// of pageSize at a time with up to batchConcurrency fetches in flight. Each
// outcome is recorded on src, which moves the row out of the pending set;
// paging stops on a short page or when a page holds nothing that was not
// already attempted in this run.
func (e *Engine) Backfill(ctx context.Context, src PendingSource, pageSize int) (BackfillReport, error) {
	if pageSize <= 0 {
		pageSize = 500
	}
	var indexed, failed atomic.Int64
	attempted := make(map[string]struct{})

	for {
		page, err := src.Pending(ctx, pageSize)
		if err != nil {
			return BackfillReport{Indexed: int(indexed.Load()), Failed: int(failed.Load())}, err
		}
		fresh := page[:0:0]
		for _, meta := range page {
			if _, seen := attempted[meta.ID]; !seen {
				attempted[meta.ID] = struct{}{}
				fresh = append(fresh, meta)
			}
		}
		if len(fresh) == 0 {
			if len(page) > 0 {
				e.logger.Warn("backfill stalled on documents whose status was not recorded", "pending", len(page))
			}
			break
		}

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(e.cfg.BatchConcurrency)
		for _, meta := range fresh {
			g.Go(func() error {
				status := ingestion.StatusIndexed
				if err := e.IndexFromSource(gctx, meta); err != nil {
					if gctx.Err() != nil {
						return gctx.Err()
					}
					status = ingestion.StatusFailed
					failed.Add(1)
				} else {
					indexed.Add(1)
				}
				// The recorder logs its own failures.
				_ = src.RecordStatus(gctx, meta.ID, status)
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return BackfillReport{Indexed: int(indexed.Load()), Failed: int(failed.Load())}, err
		}
		e.logger.Info("backfill page done", "documents", len(fresh), "indexed", indexed.Load(), "failed", failed.Load())

		if len(page) < pageSize {
			break
		}
	}
	return BackfillReport{Indexed: int(indexed.Load()), Failed: int(failed.Load())}, nil
}
