package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/Document-Search-Index-Engine/internal/document"
	"github.com/Adithya-Monish-Kumar-K/Document-Search-Index-Engine/internal/indexer"
)

const indexBatchSize = 256

type indexOptions struct {
	appendTo bool
	strict   bool
}

func newIndexCmd(global *globalOptions) *cobra.Command {
	var opts indexOptions
	cmd := &cobra.Command{
		Use:   "index <corpus.jsonl>...",
		Short: "Index JSON-lines documents into the snapshot",
		Long: `Index reads documents as a stream of JSON objects with the fields id, name,
file_type, last_modified and text, and writes the resulting index to the
snapshot file. A missing file_type is derived from the name's extension.
Use "-" to read from standard input.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIndex(cmd.Context(), cmd, global, opts, args)
		},
	}
	cmd.Flags().BoolVarP(&opts.appendTo, "append", "a", false, "Add to the existing snapshot instead of starting empty")
	cmd.Flags().BoolVar(&opts.strict, "strict", false, "Fail without writing the snapshot if any document is rejected")
	return cmd
}

func runIndex(ctx context.Context, cmd *cobra.Command, global *globalOptions, opts indexOptions, paths []string) error {
	var engine *indexer.Engine
	if opts.appendTo {
		e, err := global.openIndex(true)
		if err != nil {
			return err
		}
		engine = e
	} else {
		engine = indexer.NewEngine(global.cfg.Index)
	}
	defer engine.Close()

	var indexed, failed int
	for _, path := range paths {
		n, f, err := indexFile(ctx, engine, path)
		indexed += n
		failed += f
		if err != nil {
			return err
		}
	}
	if failed > 0 && opts.strict {
		return fmt.Errorf("%d documents rejected, snapshot not written", failed)
	}
	if err := engine.SaveSnapshot(global.snapshotPath); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "indexed %d documents (%d rejected), %d documents and %d terms in %s\n",
		indexed, failed, engine.Store().DocCount(), engine.Store().TermCount(), global.snapshotPath)
	return nil
}

// indexFile streams one corpus file into engine in fixed-size batches.
func indexFile(ctx context.Context, engine *indexer.Engine, path string) (indexed, failed int, err error) {
	var r io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return 0, 0, fmt.Errorf("opening corpus: %w", err)
		}
		defer f.Close()
		r = f
	}

	dec := json.NewDecoder(r)
	batch := make([]document.Document, 0, indexBatchSize)
	flush := func() {
		report := engine.AddDocuments(ctx, batch)
		indexed += report.Indexed
		failed += report.Failed()
		for _, e := range report.Errors {
			if e != nil {
				slog.Warn("document rejected", "file", path, "error", e)
			}
		}
		batch = batch[:0]
	}
	for {
		var doc document.Document
		if err := dec.Decode(&doc); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return indexed, failed, fmt.Errorf("decoding %s: %w", path, err)
		}
		if doc.Type == document.FileTypeUnknown {
			doc.Type = document.FileTypeFromName(doc.Name)
		} else {
			doc.Type = document.ParseFileType(string(doc.Type))
		}
		batch = append(batch, doc)
		if len(batch) == indexBatchSize {
			flush()
		}
	}
	if len(batch) > 0 {
		flush()
	}
	return indexed, failed, nil
}
