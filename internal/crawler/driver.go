package crawler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
)

// DriverConfig is the per-run crawl policy.
type DriverConfig struct {
	Subreddits        []string
	Listing           Listing
	PostLimit         int
	PostDelay         time.Duration
	RequireTitleMatch bool
	RequireOPMatch    bool
	FilterComments    bool
}

// Driver executes one crawl run: it consumes the post stream lazily, applies
// the language gates, expands comment trees with bounded retry, and feeds
// records into the buffer while recording visited state. Already-visited
// posts are skipped with zero side effect, which makes re-runs over a seeded
// ledger free.
type Driver struct {
	source Source
	gate   LanguageGate
	buffer *Buffer
	ledger *Ledger
	run    *Run
	retry  RetryPolicy
	logger *zap.Logger
	cfg    DriverConfig
}

// NewDriver wires a driver for one run.
func NewDriver(
	source Source,
	gate LanguageGate,
	buffer *Buffer,
	ledger *Ledger,
	run *Run,
	retry RetryPolicy,
	logger *zap.Logger,
	cfg DriverConfig,
) *Driver {
	return &Driver{
		source: source,
		gate:   gate,
		buffer: buffer,
		ledger: ledger,
		run:    run,
		retry:  retry,
		logger: logger,
		cfg:    cfg,
	}
}

// Crawl runs the driver to completion. Cancellation is observed once per
// post: the in-flight post is finished, the buffer and metadata are flushed,
// and the run is finalized with the "interrupted" status. Whatever the exit
// path, metadata is saved before Crawl returns.
func (d *Driver) Crawl(ctx context.Context) error {
	d.logger.Info("starting crawl run",
		zap.String("run_id", d.run.ID),
		zap.String("run_dir", d.run.Dir),
		zap.Strings("subreddits", d.cfg.Subreddits),
		zap.String("listing", d.cfg.Listing.String()),
		zap.Int("post_limit", d.cfg.PostLimit),
		zap.Int("seeded_visited", d.ledger.Len()),
	)

	var runErr error
	for _, subreddit := range d.cfg.Subreddits {
		if ctx.Err() != nil {
			break
		}
		if err := d.crawlSubreddit(ctx, subreddit); err != nil {
			runErr = err
			break
		}
		// Flush after each subreddit so a later failure cannot lose a whole
		// subreddit's worth of records.
		if err := d.flushFinal(ctx); err != nil {
			runErr = err
			break
		}
	}

	if err := d.flushFinal(ctx); err != nil && runErr == nil {
		runErr = err
	}
	if err := d.ledger.Close(); err != nil && runErr == nil {
		runErr = err
	}

	switch {
	case runErr != nil:
		d.run.Finish(StatusError)
	case ctx.Err() != nil:
		d.run.Finish(StatusInterrupted)
		d.logger.Info("crawl interrupted; progress preserved", zap.String("run_id", d.run.ID))
	default:
		d.run.Finish(StatusCompleted)
	}

	if saveErr := d.run.Save(); saveErr != nil {
		d.logger.Error("save run metadata failed", zap.Error(saveErr))
		if runErr == nil {
			runErr = saveErr
		}
	}

	d.logger.Info("crawl run finished",
		zap.String("run_id", d.run.ID),
		zap.String("exit_status", d.run.Meta.ExitStatus),
		zap.Int("posts_processed", d.run.Meta.PostsProcessed),
		zap.Int("comments_collected", d.run.Meta.CommentsCollected),
	)
	return runErr
}

// flushFinal flushes regardless of threshold, even when ctx was canceled.
func (d *Driver) flushFinal(ctx context.Context) error {
	return d.buffer.Flush(context.WithoutCancel(ctx))
}

func (d *Driver) crawlSubreddit(ctx context.Context, subreddit string) error {
	d.logger.Info("crawling subreddit",
		zap.String("subreddit", subreddit),
		zap.String("listing", d.cfg.Listing.String()),
		zap.Int("limit", d.cfg.PostLimit),
	)

	stream, err := d.source.StreamPosts(ctx, subreddit, d.cfg.Listing, d.cfg.PostLimit)
	if err != nil {
		return fmt.Errorf("stream r/%s posts: %w", subreddit, err)
	}

	for {
		if ctx.Err() != nil {
			d.logger.Info("stop requested, finishing after current post",
				zap.String("subreddit", subreddit))
			return nil
		}
		post, ok, err := stream.Next(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return fmt.Errorf("advance r/%s stream: %w", subreddit, err)
		}
		if !ok {
			return nil
		}
		if err := d.processPost(ctx, post); err != nil {
			return err
		}
	}
}

// processPost runs the per-item algorithm. Only state persistence failures
// (ledger, flush) propagate; anything that goes wrong with the post itself
// marks it visited and moves on so a bad item never blocks the stream.
func (d *Driver) processPost(ctx context.Context, post Post) error {
	if d.ledger.Contains(post.ID) {
		return nil
	}

	// A post rejected by a gate is permanently skipped for this run.
	if d.cfg.RequireTitleMatch && !d.gate.Loose(post.Title) {
		return d.ledger.Record(post.ID)
	}
	if d.cfg.RequireOPMatch {
		opText := strings.TrimSpace(post.Title + " " + post.SelfText)
		if !d.gate.Loose(opText) {
			return d.ledger.Record(post.ID)
		}
	}

	comments, err := d.expandWithRetry(ctx, post)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			// Stop requested mid-expansion: leave the post unvisited so the
			// next run picks it up.
			return nil
		}
		d.logger.Warn("comment expansion failed, skipping post",
			zap.String("post_id", post.ID), zap.Error(err))
		return d.ledger.Record(post.ID)
	}

	added := 0
	for _, c := range comments {
		if d.cfg.FilterComments && c.Body != "" && !d.gate.Strict(c.Body) {
			continue
		}
		d.buffer.Append(NewRecord(post, c))
		added++
	}

	d.run.Meta.PostsProcessed++
	d.run.Meta.CommentsCollected += added
	if err := d.ledger.Record(post.ID); err != nil {
		return fmt.Errorf("record visited %s: %w", post.ID, err)
	}
	if added > 0 {
		d.logger.Debug("collected comments",
			zap.String("post_id", post.ID), zap.Int("comments", added))
	}

	d.pause(ctx, d.cfg.PostDelay)

	// A stop signal landing mid-item must not turn a full-buffer flush into
	// a run error; the interrupted status is decided at the top level.
	return d.buffer.FlushIfFull(context.WithoutCancel(ctx))
}

func (d *Driver) expandWithRetry(ctx context.Context, post Post) ([]Comment, error) {
	attempt := 0
	for {
		comments, err := d.source.ExpandComments(ctx, post)
		if err == nil {
			return comments, nil
		}
		if !d.retry.ShouldRetry(err, attempt) {
			return nil, err
		}
		delay := d.retry.Backoff(attempt)
		d.logger.Warn("retrying comment expansion",
			zap.String("post_id", post.ID),
			zap.Int("attempt", attempt+1),
			zap.Duration("backoff", delay),
			zap.Error(err),
		)
		d.pause(ctx, delay)
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		attempt++
	}
}

// pause sleeps for delay or until ctx is done, whichever comes first.
func (d *Driver) pause(ctx context.Context, delay time.Duration) {
	if delay <= 0 {
		return
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
