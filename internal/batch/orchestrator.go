// Package batch drives many crawl runs per subreddit, one per listing
// combination, merging their visited ledgers and comment outputs.
package batch

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/akontos/redditcorpus/internal/config"
	"github.com/akontos/redditcorpus/internal/crawler"
)

// tmpConfigDir holds the temporary per-run config files.
const tmpConfigDir = ".batch_tmp_configs"

// Runner prepares a single crawl run from a per-run config. The real
// implementation assembles the driver and its collaborators; tests inject a
// fake.
type Runner interface {
	Prepare(cfg config.Config) (PreparedRun, error)
}

// PreparedRun is a crawl run whose directory exists but has not started,
// so its ledger can still be seeded.
type PreparedRun interface {
	Dir() string
	Seed(ids map[string]struct{}) error
	Crawl(ctx context.Context) (crawler.RunResult, error)
}

// ComboOutcome records one combination's result in the batch metadata.
type ComboOutcome struct {
	Listing      string `json:"listing"`
	TimeFilter   string `json:"timefilter,omitempty"`
	VisitedAdded int    `json:"visited_added"`
	RunDir       string `json:"run_dir"`
	Status       string `json:"status"`
	Error        string `json:"error,omitempty"`
}

// CombinedStats summarizes the merged comment output of one subreddit.
type CombinedStats struct {
	CommentsFile  string `json:"comments_file"`
	TotalRead     int    `json:"total_read"`
	UniqueWritten int    `json:"unique_written"`
}

// Metadata is the batch_metadata.json record written per subreddit.
type Metadata struct {
	Subreddit        string         `json:"subreddit"`
	Combinations     []Combo        `json:"combinations"`
	TotalUniquePosts int            `json:"total_unique_posts"`
	Runs             []ComboOutcome `json:"runs"`
	Combined         CombinedStats  `json:"combined"`
}

// Orchestrator runs every combination against every configured subreddit,
// strictly sequentially: each combination's ledger is seeded with the union
// of everything visited by the combinations before it.
type Orchestrator struct {
	base       config.Config
	configPath string
	combos     []Combo
	runner     Runner
	hasher     crawler.Hasher
	clock      crawler.Clock
	logger     *zap.Logger
}

// New builds an orchestrator. configPath is the base config file, copied
// into each subreddit's batch folder for provenance.
func New(
	base config.Config,
	configPath string,
	combos []Combo,
	runner Runner,
	hasher crawler.Hasher,
	clock crawler.Clock,
	logger *zap.Logger,
) *Orchestrator {
	return &Orchestrator{
		base:       base,
		configPath: configPath,
		combos:     combos,
		runner:     runner,
		hasher:     hasher,
		clock:      clock,
		logger:     logger,
	}
}

// Run processes every subreddit independently; no state is shared across
// subreddits. A failed combination is recorded and the batch moves on; only
// cancellation aborts the batch.
func (o *Orchestrator) Run(ctx context.Context) error {
	subreddits := o.base.CleanSubreddits()
	batchTS := o.clock.Now().Format("20060102_150405")

	o.logger.Info("starting batch",
		zap.Strings("subreddits", subreddits),
		zap.Int("combinations", len(o.combos)),
		zap.String("output_root", o.base.Output.BaseDir),
	)
	for _, c := range o.combos {
		o.logger.Info("planned combination", zap.String("combo", c.String()))
	}

	for _, subreddit := range subreddits {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := o.runSubreddit(ctx, subreddit, batchTS); err != nil {
			return err
		}
	}
	return nil
}

func (o *Orchestrator) runSubreddit(ctx context.Context, subreddit, batchTS string) error {
	root := filepath.Join(o.base.Output.BaseDir, fmt.Sprintf("%s_%s", subreddit, batchTS))
	runsDir := filepath.Join(root, "runs")
	if err := os.MkdirAll(runsDir, 0o750); err != nil {
		return fmt.Errorf("create runs dir %s: %w", runsDir, err)
	}

	if err := copyFile(o.configPath, filepath.Join(root, "config_used.yaml")); err != nil {
		o.logger.Warn("copy base config failed", zap.Error(err))
	}

	// Cumulative visited persists between batch invocations sharing a root.
	cumulativePath := filepath.Join(root, crawler.LedgerFileName)
	cumulative, err := crawler.ReadVisitedSet(cumulativePath)
	if err != nil {
		return err
	}
	o.logger.Info("processing subreddit",
		zap.String("subreddit", subreddit),
		zap.Int("initial_visited", len(cumulative)),
	)

	outcomes := make([]ComboOutcome, 0, len(o.combos))
	for _, combo := range o.combos {
		if err := ctx.Err(); err != nil {
			return err
		}
		outcome := o.runCombo(ctx, subreddit, combo, cumulative, runsDir)
		if err := ctx.Err(); err != nil {
			// The combo was cut short by cancellation; its partial state is
			// already on disk, stop without writing batch metadata.
			return err
		}
		outcomes = append(outcomes, outcome)
	}

	if err := crawler.WriteVisitedSet(cumulativePath, cumulative); err != nil {
		return err
	}

	stats, err := o.mergeComments(runsDir)
	if err != nil {
		return err
	}

	meta := Metadata{
		Subreddit:        subreddit,
		Combinations:     o.combos,
		TotalUniquePosts: len(cumulative),
		Runs:             outcomes,
		Combined:         stats,
	}
	if err := writeJSON(filepath.Join(root, "batch_metadata.json"), meta); err != nil {
		return err
	}

	o.logger.Info("finished subreddit",
		zap.String("subreddit", subreddit),
		zap.Int("total_unique_posts", len(cumulative)),
		zap.Int("combined_unique", stats.UniqueWritten),
	)
	return nil
}

// runCombo executes one combination and folds its visited set into
// cumulative. Failures are captured in the outcome, never propagated: a
// broken combination must not abort the batch.
func (o *Orchestrator) runCombo(
	ctx context.Context,
	subreddit string,
	combo Combo,
	cumulative map[string]struct{},
	runsDir string,
) ComboOutcome {
	o.logger.Info("running combination",
		zap.String("subreddit", subreddit),
		zap.String("combo", combo.String()),
	)
	outcome := ComboOutcome{
		Listing:    combo.Listing,
		TimeFilter: combo.TimeFilter,
		Status:     crawler.StatusCompleted,
	}

	runDir, err := o.executeRun(ctx, subreddit, combo, cumulative)
	if err != nil {
		outcome.Status = crawler.StatusError
		outcome.Error = err.Error()
		o.logger.Warn("combination failed",
			zap.String("combo", combo.String()), zap.Error(err))
	}

	if runDir != "" {
		dest := filepath.Join(runsDir, filepath.Base(runDir))
		if mvErr := os.Rename(runDir, dest); mvErr != nil {
			// Keep the original location when the move fails.
			o.logger.Warn("relocate run dir failed", zap.Error(mvErr))
			dest = runDir
		}
		outcome.RunDir = dest

		runVisited, rdErr := crawler.ReadVisitedSet(filepath.Join(dest, crawler.LedgerFileName))
		if rdErr != nil {
			o.logger.Warn("read run ledger failed", zap.Error(rdErr))
		}
		before := len(cumulative)
		for id := range runVisited {
			cumulative[id] = struct{}{}
		}
		outcome.VisitedAdded = len(cumulative) - before
		o.logger.Info("combination done",
			zap.String("combo", combo.String()),
			zap.Int("visited_added", outcome.VisitedAdded),
			zap.Int("cumulative", len(cumulative)),
		)
	}
	return outcome
}

// executeRun writes the temp per-run config, loads it back through the same
// loader a standalone crawl uses, seeds the prepared run's ledger with the
// cumulative set, and crawls. It returns the run directory even when the
// crawl itself failed, since partial state on disk is still merged.
func (o *Orchestrator) executeRun(
	ctx context.Context,
	subreddit string,
	combo Combo,
	cumulative map[string]struct{},
) (string, error) {
	tmpPath, err := o.writeTempConfig(subreddit, combo)
	if err != nil {
		return "", err
	}
	runCfg, err := config.Load(tmpPath)
	if err != nil {
		return "", fmt.Errorf("load per-run config: %w", err)
	}

	prep, err := o.runner.Prepare(runCfg)
	if err != nil {
		return "", fmt.Errorf("prepare run: %w", err)
	}
	if err := prep.Seed(cumulative); err != nil {
		return prep.Dir(), fmt.Errorf("seed ledger: %w", err)
	}
	o.logger.Info("seeded run ledger",
		zap.String("run_dir", prep.Dir()),
		zap.Int("seeded", len(cumulative)),
	)

	if _, err := prep.Crawl(ctx); err != nil {
		return prep.Dir(), err
	}
	return prep.Dir(), nil
}

// writeTempConfig serializes the per-run variant of the base config: one
// subreddit, the combo's listing, and its time window (the base window is
// kept when the combo has none).
func (o *Orchestrator) writeTempConfig(subreddit string, combo Combo) (string, error) {
	cfg := o.base
	cfg.Subreddits = []string{subreddit}
	cfg.Crawling.Listing = combo.Listing
	if combo.TimeFilter != "" {
		cfg.Crawling.TimeFilter = combo.TimeFilter
	}

	if err := os.MkdirAll(tmpConfigDir, 0o750); err != nil {
		return "", fmt.Errorf("create temp config dir: %w", err)
	}
	tf := combo.TimeFilter
	if tf == "" {
		tf = "none"
	}
	path := filepath.Join(tmpConfigDir, fmt.Sprintf("tmp_%s_%s_%s.yaml", subreddit, combo.Listing, tf))

	payload, err := yaml.Marshal(cfg)
	if err != nil {
		return "", fmt.Errorf("marshal temp config: %w", err)
	}
	if err := os.WriteFile(path, payload, 0o600); err != nil {
		return "", fmt.Errorf("write temp config %s: %w", path, err)
	}
	return path, nil
}

func copyFile(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return fmt.Errorf("read %s: %w", src, err)
	}
	if err := os.WriteFile(dst, data, 0o600); err != nil {
		return fmt.Errorf("write %s: %w", dst, err)
	}
	return nil
}

func writeJSON(path string, v any) error {
	payload, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", path, err)
	}
	if err := os.WriteFile(path, payload, 0o600); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
