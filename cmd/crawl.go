package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/akontos/redditcorpus/internal/config"
	"github.com/akontos/redditcorpus/internal/logging"
)

// newCrawlCmd creates the 'crawl' subcommand: one crawl run over the
// configured subreddits.
func newCrawlCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "crawl",
		Short: "Run a single crawl over the configured subreddits",
		Long: `Runs one crawl over the subreddits in the configuration file, using the
configured listing strategy. The run is resumable: interrupt it with Ctrl-C
and re-run over the same directory to pick up where it left off.`,
		RunE: runCrawlCommand,
	}
}

func runCrawlCommand(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	// Graceful stop: the driver observes cancellation once per post and
	// finalizes the run before returning.
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	prep, err := newRunner(logger).Prepare(cfg)
	if err != nil {
		return err
	}
	result, err := prep.Crawl(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("crawl run: %w", err)
	}

	logger.Info("crawl finished",
		zap.String("run_dir", result.Dir),
		zap.String("exit_status", result.ExitStatus),
		zap.Int("posts_processed", result.PostsProcessed),
		zap.Int("comments_collected", result.CommentsCollected),
	)
	return nil
}
