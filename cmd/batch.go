package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/akontos/redditcorpus/internal/batch"
	"github.com/akontos/redditcorpus/internal/clock/system"
	"github.com/akontos/redditcorpus/internal/config"
	"github.com/akontos/redditcorpus/internal/hash/md5"
	"github.com/akontos/redditcorpus/internal/logging"
)

// newBatchCmd creates the 'batch' subcommand: one crawl run per listing
// combination, per subreddit, with cross-run ledger seeding.
func newBatchCmd() *cobra.Command {
	var combos []string
	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Run one crawl per listing/timefilter combination",
		Long: `Maximizes post coverage per subreddit by crawling it once per listing
combination (new, hot, rising, best, top and controversial over several time
windows). Each run's visited ledger is seeded with everything the previous
combinations already processed, so no post is crawled twice; afterwards the
per-run comment files are merged into one deduplicated file.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runBatchCommand(cmd, combos)
		},
	}
	cmd.Flags().StringArrayVar(&combos, "combos", nil,
		"combinations as listing[:timefilter], e.g. --combos new --combos top:month (default: full coverage set)")
	return cmd
}

func runBatchCommand(cmd *cobra.Command, comboTokens []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	combos := batch.DefaultCombos()
	if len(comboTokens) > 0 {
		combos, err = batch.ParseCombos(comboTokens)
		if err != nil {
			return err
		}
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	orch := batch.New(cfg, cfgFile, combos, newRunner(logger), md5.New(), system.New(), logger)
	if err := orch.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("batch: %w", err)
	}
	return nil
}
