package crawler

import (
	"context"
	"time"
)

// Source streams posts from a subreddit listing and expands comment trees.
type Source interface {
	// StreamPosts returns a lazy iterator over the listing. limit <= 0 means
	// "as many as the platform returns".
	StreamPosts(ctx context.Context, subreddit string, listing Listing, limit int) (PostIterator, error)
	// ExpandComments fetches and flattens the full comment tree of post,
	// continuation markers resolved. Fallible; the driver retries it.
	ExpandComments(ctx context.Context, post Post) ([]Comment, error)
}

// PostIterator yields posts lazily. Next returns ok=false once the stream is
// exhausted.
type PostIterator interface {
	Next(ctx context.Context) (post Post, ok bool, err error)
}

// LanguageGate filters posts and comments by target language.
type LanguageGate interface {
	// Loose is the permissive title-level check (classifier with heuristic
	// fallback).
	Loose(text string) bool
	// Strict is the comment-level check (classifier only).
	Strict(text string) bool
}

// Sink persists a batch of records and returns the file path it touched.
type Sink interface {
	Write(ctx context.Context, records []Record) (string, error)
}

// RetryPolicy bounds comment-expansion reattempts.
type RetryPolicy interface {
	ShouldRetry(err error, attempt int) bool
	Backoff(attempt int) time.Duration
}

// Hasher computes digests used as fallback dedup keys.
type Hasher interface {
	Hash(data []byte) string
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}
