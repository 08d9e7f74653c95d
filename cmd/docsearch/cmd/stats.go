package cmd

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/spf13/cobra"
)

type statsOptions struct {
	format string
	policy string
	count  string
}

func newStatsCmd(global *globalOptions) *cobra.Command {
	var opts statsOptions
	cmd := &cobra.Command{
		Use:   "stats <term>...",
		Short: "Print aggregate statistics for a term",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStats(cmd.Context(), cmd, global, opts, strings.Join(args, " "))
		},
	}
	cmd.Flags().StringVarP(&opts.format, "format", "f", "text", "Output format: text, json")
	cmd.Flags().StringVar(&opts.policy, "policy", "", "Multi-word matching: all, any (default from config)")
	cmd.Flags().StringVar(&opts.count, "count", "", "Occurrence counting: first, sum (default from config)")
	return cmd
}

func runStats(ctx context.Context, cmd *cobra.Command, global *globalOptions, opts statsOptions, query string) error {
	engine, err := global.openIndex(false)
	if err != nil {
		return err
	}
	defer engine.Close()
	exec, err := global.newExecutor(engine, opts.policy, opts.count)
	if err != nil {
		return err
	}

	stats, err := exec.Stats(ctx, query)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	switch opts.format {
	case "json":
		return writeJSON(out, stats)
	case "text":
		fmt.Fprintf(out, "total occurrences: %d\n", stats.TotalOccurrences)
		for _, ft := range slices.Sorted(maps.Keys(stats.ByFileType)) {
			fmt.Fprintf(out, "  %-6s %d documents\n", ft, stats.ByFileType[ft])
		}
		for _, id := range slices.Sorted(maps.Keys(stats.PerDocument)) {
			f := stats.PerDocument[id]
			fmt.Fprintf(out, "  %s (%s): %d\n", f.Name, id, f.Occurrences)
		}
		return nil
	default:
		return fmt.Errorf("unknown format %q", opts.format)
	}
}
