package cmd

import (
	"context"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/akontos/redditcorpus/internal/batch"
	"github.com/akontos/redditcorpus/internal/clock/system"
	"github.com/akontos/redditcorpus/internal/config"
	"github.com/akontos/redditcorpus/internal/crawler"
	"github.com/akontos/redditcorpus/internal/id"
	"github.com/akontos/redditcorpus/internal/lang"
	"github.com/akontos/redditcorpus/internal/logging"
	"github.com/akontos/redditcorpus/internal/source/reddit"
)

// LogFileName is the per-run log stream inside a run directory.
const logFileName = "crawler.log"

// runner assembles fully wired crawl runs. The classifier is shared across
// runs because building it loads the language models.
type runner struct {
	classifier *lang.LinguaClassifier
	logger     *zap.Logger
}

func newRunner(logger *zap.Logger) *runner {
	return &runner{
		classifier: lang.NewLinguaClassifier(),
		logger:     logger,
	}
}

// Prepare creates the run directory and wires the driver; the crawl itself
// starts when the returned run's Crawl method is invoked, so callers can
// still seed the ledger in between.
func (r *runner) Prepare(cfg config.Config) (batch.PreparedRun, error) {
	clock := system.New()

	runID, err := id.Generator{}.NewRunID(clock.Now())
	if err != nil {
		return nil, err
	}
	listing, err := crawler.NewListing(cfg.Crawling.Listing, cfg.Crawling.TimeFilter)
	if err != nil {
		return nil, err
	}

	subreddits := cfg.CleanSubreddits()
	run, err := crawler.NewRun(cfg.Output.BaseDir, runID, crawler.NameParts{
		Subreddits: subreddits,
		Listing:    listing,
		PostLimit:  cfg.Crawling.PostLimit,
	}, cfg, clock)
	if err != nil {
		return nil, err
	}

	logPath := filepath.Join(run.Dir, logFileName)
	runLogger, closeLog, err := logging.NewRun(cfg.Logging.Development, logPath)
	if err != nil {
		return nil, err
	}
	run.AddFile(logPath)

	ledger, err := crawler.OpenLedger(run.Dir)
	if err != nil {
		_ = closeLog()
		return nil, err
	}
	if ledger.Len() > 0 {
		runLogger.Info("loaded previously visited posts", zap.Int("count", ledger.Len()))
	}

	clientID, clientSecret, userAgent, err := cfg.Reddit.Credentials()
	if err != nil {
		_ = closeLog()
		return nil, err
	}
	src, err := reddit.New(reddit.Config{
		ClientID:       clientID,
		ClientSecret:   clientSecret,
		UserAgent:      userAgent,
		RequestTimeout: cfg.Reddit.RequestTimeout(),
	})
	if err != nil {
		_ = closeLog()
		return nil, err
	}

	sinks := []crawler.Sink{
		crawler.NewJSONLSink(run.Dir),
		crawler.NewParquetSink(run.Dir),
	}
	buffer := crawler.NewBuffer(cfg.Output.BufferSize, sinks, run.AddFile, runLogger)
	gate := lang.NewGate(r.classifier, cfg.Language.Target, cfg.Language.TitleMinScriptRatio)

	driver := crawler.NewDriver(
		src,
		gate,
		buffer,
		ledger,
		run,
		crawler.NewExpandRetryPolicy(),
		runLogger,
		crawler.DriverConfig{
			Subreddits:        subreddits,
			Listing:           listing,
			PostLimit:         cfg.Crawling.PostLimit,
			PostDelay:         cfg.Crawling.PostDelay(),
			RequireTitleMatch: cfg.Language.RequireTitle,
			RequireOPMatch:    cfg.Language.RequireOP,
			FilterComments:    cfg.Language.FilterComments,
		},
	)

	return &preparedRun{
		driver:   driver,
		run:      run,
		ledger:   ledger,
		closeLog: closeLog,
	}, nil
}

type preparedRun struct {
	driver   *crawler.Driver
	run      *crawler.Run
	ledger   *crawler.Ledger
	closeLog func() error
}

func (p *preparedRun) Dir() string {
	return p.run.Dir
}

func (p *preparedRun) Seed(ids map[string]struct{}) error {
	return p.ledger.Seed(ids)
}

func (p *preparedRun) Crawl(ctx context.Context) (crawler.RunResult, error) {
	defer func() {
		_ = p.closeLog()
	}()
	err := p.driver.Crawl(ctx)
	return p.run.Result(), err
}
