// Package cmd defines and implements the CLI commands for the redditcorpus
// executable.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var cfgFile string

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "redditcorpus",
		Short: "A resumable, deduplicating subreddit comment crawler.",
		Long: `redditcorpus collects comment corpora from subreddits via the official
listing API. Crawls are resumable: every run keeps a visited-post ledger in
its own run directory, and repeated runs over the same subreddit are merged
into a single deduplicated corpus.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "config.yaml", "configuration file path")

	cmd.AddCommand(newCrawlCmd(), newBatchCmd(), newCombineCmd())
	return cmd
}

// Execute is the main entry point.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
