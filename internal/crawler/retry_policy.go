package crawler

import (
	"context"
	"crypto/rand"
	"errors"
	"math"
	"math/big"
	"time"
)

// ExpandRetryPolicy implements RetryPolicy with jittered exponential backoff
// for comment-tree expansion.
type ExpandRetryPolicy struct {
	maxAttempts int
	baseDelay   time.Duration
	maxDelay    time.Duration
}

// NewExpandRetryPolicy builds a policy with the crawl defaults: five
// attempts, delays growing from 2s toward a 30s ceiling.
func NewExpandRetryPolicy() *ExpandRetryPolicy {
	return &ExpandRetryPolicy{
		maxAttempts: 5,
		baseDelay:   2 * time.Second,
		maxDelay:    30 * time.Second,
	}
}

// ShouldRetry decides whether the error is worth another attempt. attempt is
// zero-based: attempt 0 is the first failure.
func (p *ExpandRetryPolicy) ShouldRetry(err error, attempt int) bool {
	if err == nil {
		return false
	}
	if attempt >= p.maxAttempts-1 {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return true
}

// Backoff returns the wait duration before the next attempt.
func (p *ExpandRetryPolicy) Backoff(attempt int) time.Duration {
	delay := float64(p.baseDelay) * math.Pow(2, float64(attempt))
	if delay > float64(p.maxDelay) {
		delay = float64(p.maxDelay)
	}
	jitter := p.randomJitter(time.Duration(delay) / 2)
	return time.Duration(delay/2) + jitter
}

func (p *ExpandRetryPolicy) randomJitter(limit time.Duration) time.Duration {
	if limit <= 0 {
		return 0
	}
	bound := big.NewInt(int64(limit))
	n, err := rand.Int(rand.Reader, bound)
	if err != nil {
		return limit / 2
	}
	return time.Duration(n.Int64())
}
