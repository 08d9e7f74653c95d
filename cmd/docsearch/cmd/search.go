package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/Document-Search-Index-Engine/internal/document"
)

type searchOptions struct {
	limit  int
	format string
	policy string
	count  string
}

func newSearchCmd(global *globalOptions) *cobra.Command {
	var opts searchOptions
	cmd := &cobra.Command{
		Use:   "search <term>...",
		Short: "Search the snapshot for a term",
		Long: `Search prints matching documents ordered by occurrences, with excerpts
around the first matches. Several arguments are joined into one query.

Examples:
  docsearch search growth
  docsearch search quarterly report --policy any --count sum
  docsearch search growth --format json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(cmd.Context(), cmd, global, opts, strings.Join(args, " "))
		},
	}
	cmd.Flags().IntVarP(&opts.limit, "limit", "n", 10, "Maximum number of results (0 for all)")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "text", "Output format: text, json")
	cmd.Flags().StringVar(&opts.policy, "policy", "", "Multi-word matching: all, any (default from config)")
	cmd.Flags().StringVar(&opts.count, "count", "", "Occurrence counting: first, sum (default from config)")
	return cmd
}

func runSearch(ctx context.Context, cmd *cobra.Command, global *globalOptions, opts searchOptions, query string) error {
	engine, err := global.openIndex(false)
	if err != nil {
		return err
	}
	defer engine.Close()
	exec, err := global.newExecutor(engine, opts.policy, opts.count)
	if err != nil {
		return err
	}

	results, err := exec.Search(ctx, query)
	if err != nil {
		return err
	}
	total := len(results)
	if opts.limit > 0 && len(results) > opts.limit {
		results = results[:opts.limit]
	}

	out := cmd.OutOrStdout()
	switch opts.format {
	case "json":
		return writeJSON(out, map[string]any{"query": query, "total_hits": total, "results": results})
	case "text":
		printResults(out, query, total, results)
		return nil
	default:
		return fmt.Errorf("unknown format %q", opts.format)
	}
}

func printResults(w io.Writer, query string, total int, results []document.SearchResult) {
	if total == 0 {
		fmt.Fprintf(w, "no documents match %q\n", query)
		return
	}
	fmt.Fprintf(w, "%d documents match %q\n", total, query)
	for i, r := range results {
		fmt.Fprintf(w, "\n%d. %s [%s] %d occurrences\n", i+1, r.DocumentName, r.FileType, r.Occurrences)
		for _, e := range r.Excerpts {
			fmt.Fprintf(w, "   %s\n", e)
		}
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
