package cmd

import (
	"github.com/spf13/cobra"

	"github.com/akontos/redditcorpus/internal/combine"
	"github.com/akontos/redditcorpus/internal/hash/md5"
	"github.com/akontos/redditcorpus/internal/logging"
)

// newCombineCmd creates the 'combine' subcommand: merge pre-existing run
// directories with ownership-based conflict resolution.
func newCombineCmd() *cobra.Command {
	var root string
	cmd := &cobra.Command{
		Use:   "combine",
		Short: "Merge run directories into one deduplicated corpus",
		Long: `Merges every run_* directory under --root into <root>/combined: a
deduplicated comments file, the union of all visited-post ledgers, and a
summary. When several runs captured the same post, the earliest run owns it
and only that run's comments for it are kept.`,
		RunE: func(_ *cobra.Command, _ []string) error {
			return runCombineCommand(root)
		},
	}
	cmd.Flags().StringVar(&root, "root", "", "root directory containing run_* subdirectories")
	_ = cmd.MarkFlagRequired("root")
	return cmd
}

func runCombineCommand(root string) error {
	logger, err := logging.New(true)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	_, err = combine.New(md5.New(), logger).Combine(root)
	return err
}
