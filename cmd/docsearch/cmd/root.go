// Package cmd implements the docsearch command line: building a snapshot from
// a corpus of extracted documents and querying it offline.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/Document-Search-Index-Engine/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/Document-Search-Index-Engine/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/Document-Search-Index-Engine/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/Document-Search-Index-Engine/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Document-Search-Index-Engine/pkg/logger"
)

const defaultSnapshot = "docsearch.snap"

// globalOptions are shared by every subcommand.
type globalOptions struct {
	configPath   string
	snapshotPath string
	logLevel     string
	cfg          *config.Config
}

// NewRootCmd creates the root command and its subcommands.
func NewRootCmd() *cobra.Command {
	opts := &globalOptions{}
	cmd := &cobra.Command{
		Use:   "docsearch",
		Short: "Index extracted documents and search them by term",
		Long: `docsearch builds an inverted index over already-extracted document text
and answers term queries with per-document occurrence counts, excerpts and
aggregate statistics.

Examples:
  docsearch index corpus.jsonl
  docsearch search growth --limit 5
  docsearch stats "quarterly report"`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(opts.configPath)
			if err != nil {
				return err
			}
			opts.cfg = cfg
			if opts.snapshotPath == "" {
				opts.snapshotPath = cfg.Index.SnapshotPath
			}
			if opts.snapshotPath == "" {
				opts.snapshotPath = defaultSnapshot
			}
			slog.SetDefault(logger.New(cmd.ErrOrStderr(), opts.logLevel, "text"))
			return nil
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "Path to a YAML config file")
	cmd.PersistentFlags().StringVarP(&opts.snapshotPath, "snapshot", "s", "", "Index snapshot file (default from config, else "+defaultSnapshot+")")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "warn", "Log level: debug, info, warn, error")

	cmd.AddCommand(newIndexCmd(opts))
	cmd.AddCommand(newSearchCmd(opts))
	cmd.AddCommand(newStatsCmd(opts))
	return cmd
}

// Execute runs the root command with a signal-free background context.
func Execute() error {
	return NewRootCmd().ExecuteContext(context.Background())
}

// openIndex loads the snapshot into a fresh engine. A missing snapshot is an
// error unless allowMissing is set.
func (o *globalOptions) openIndex(allowMissing bool) (*indexer.Engine, error) {
	engine := indexer.NewEngine(o.cfg.Index)
	err := engine.LoadSnapshot(o.snapshotPath)
	switch {
	case err == nil:
	case allowMissing && errors.Is(err, os.ErrNotExist):
	default:
		_ = engine.Close()
		return nil, err
	}
	return engine, nil
}

// newExecutor builds the query engine, letting flag values override the
// configured matching policy and counting rule.
func (o *globalOptions) newExecutor(engine *indexer.Engine, policyFlag, ruleFlag string) (*executor.Executor, error) {
	search := o.cfg.Search
	if policyFlag != "" {
		search.MatchPolicy = policyFlag
	}
	if ruleFlag != "" {
		search.CountRule = ruleFlag
	}
	policy, err := parser.ParsePolicy(search.MatchPolicy)
	if err != nil {
		return nil, fmt.Errorf("--policy: %w", err)
	}
	rule, err := parser.ParseCountRule(search.CountRule)
	if err != nil {
		return nil, fmt.Errorf("--count: %w", err)
	}
	return executor.New(engine.Store(), parser.New(engine.Tokenizer(), policy, rule), executor.OptionsFromConfig(search)), nil
}
