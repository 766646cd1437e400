// Package reddit adapts the official Reddit listing API to the crawler's
// Source interface.
package reddit

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/vartanbeno/go-reddit/v2/reddit"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/akontos/redditcorpus/internal/crawler"
)

// pageSize is the largest page the listing API serves per request.
const pageSize = 100

// tokenURL is Reddit's application-only OAuth token endpoint.
const tokenURL = "https://www.reddit.com/api/v1/access_token"

// Config holds API credentials and client behavior.
type Config struct {
	ClientID       string
	ClientSecret   string
	UserAgent      string
	RequestTimeout time.Duration
}

// Source implements crawler.Source over the Reddit API.
type Source struct {
	client *reddit.Client
}

// New builds a read-only API client.
func New(cfg Config) (*Source, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, fmt.Errorf("reddit client id and secret are required")
	}
	client, err := reddit.NewReadonlyClient(
		reddit.WithUserAgent(cfg.UserAgent),
		reddit.WithHTTPClient(appOnlyHTTPClient(cfg)),
	)
	if err != nil {
		return nil, fmt.Errorf("build reddit client: %w", err)
	}
	return &Source{client: client}, nil
}

// appOnlyHTTPClient returns an http.Client that authenticates every request
// with Reddit's application-only (client credentials) OAuth flow, fetching
// and refreshing tokens transparently.
func appOnlyHTTPClient(cfg Config) *http.Client {
	creds := clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     tokenURL,
	}
	base := &http.Client{Timeout: cfg.RequestTimeout}
	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, base)
	client := creds.Client(ctx)
	client.Timeout = cfg.RequestTimeout
	return client
}

// StreamPosts returns a lazy, paginating iterator over the listing.
func (s *Source) StreamPosts(_ context.Context, subreddit string, listing crawler.Listing, limit int) (crawler.PostIterator, error) {
	return &postIterator{
		src:       s,
		subreddit: subreddit,
		listing:   listing,
		limit:     limit,
	}, nil
}

// ExpandComments fetches the post's full comment tree, resolving every
// "load more" continuation, and flattens it depth-first. Continuation
// markers themselves are structural, not content, and are never emitted.
func (s *Source) ExpandComments(ctx context.Context, post crawler.Post) ([]crawler.Comment, error) {
	pc, _, err := s.client.Post.Get(ctx, post.ID)
	if err != nil {
		return nil, fmt.Errorf("get post %s: %w", post.ID, err)
	}
	for pc.HasMore() {
		if _, err := s.client.Post.LoadMoreComments(ctx, pc); err != nil {
			return nil, fmt.Errorf("load more comments for %s: %w", post.ID, err)
		}
	}
	return flatten(pc.Comments, 0), nil
}

type postIterator struct {
	src       *Source
	subreddit string
	listing   crawler.Listing
	limit     int
	buf       []*reddit.Post
	after     string
	fetched   int
	done      bool
}

func (it *postIterator) Next(ctx context.Context) (crawler.Post, bool, error) {
	for len(it.buf) == 0 && !it.done {
		if err := it.fetchPage(ctx); err != nil {
			return crawler.Post{}, false, err
		}
	}
	if len(it.buf) == 0 {
		return crawler.Post{}, false, nil
	}
	p := it.buf[0]
	it.buf = it.buf[1:]
	return toPost(it.subreddit, p), true, nil
}

func (it *postIterator) fetchPage(ctx context.Context) error {
	want := pageSize
	if it.limit > 0 {
		if remaining := it.limit - it.fetched; remaining < want {
			want = remaining
		}
	}
	if want <= 0 {
		it.done = true
		return nil
	}

	posts, resp, err := it.src.listPage(ctx, it.subreddit, it.listing, want, it.after)
	if err != nil {
		return fmt.Errorf("list r/%s %s posts: %w", it.subreddit, it.listing.Name, err)
	}
	if len(posts) == 0 {
		it.done = true
		return nil
	}
	it.buf = posts
	it.fetched += len(posts)
	it.after = resp.After
	if it.after == "" || (it.limit > 0 && it.fetched >= it.limit) {
		it.done = true
	}
	return nil
}

func (s *Source) listPage(ctx context.Context, subreddit string, listing crawler.Listing, limit int, after string) ([]*reddit.Post, *reddit.Response, error) {
	opts := reddit.ListOptions{Limit: limit, After: after}
	switch listing.Name {
	case crawler.ListingNew:
		return s.client.Subreddit.NewPosts(ctx, subreddit, &opts)
	case crawler.ListingHot:
		return s.client.Subreddit.HotPosts(ctx, subreddit, &opts)
	case crawler.ListingRising:
		return s.client.Subreddit.RisingPosts(ctx, subreddit, &opts)
	case crawler.ListingControversial:
		return s.client.Subreddit.ControversialPosts(ctx, subreddit, &reddit.ListPostOptions{
			ListOptions: opts,
			Time:        listing.TimeFilter,
		})
	case crawler.ListingBest:
		// Reddit has no per-subreddit best listing; top(all) stands in.
		return s.client.Subreddit.TopPosts(ctx, subreddit, &reddit.ListPostOptions{
			ListOptions: opts,
			Time:        crawler.DefaultTimeFilter,
		})
	default:
		return s.client.Subreddit.TopPosts(ctx, subreddit, &reddit.ListPostOptions{
			ListOptions: opts,
			Time:        listing.TimeFilter,
		})
	}
}

func toPost(subreddit string, p *reddit.Post) crawler.Post {
	return crawler.Post{
		ID:          p.ID,
		Subreddit:   subreddit,
		Permalink:   "https://www.reddit.com" + p.Permalink,
		Title:       p.Title,
		SelfText:    p.Body,
		Author:      authorOrDeleted(p.Author),
		Score:       p.Score,
		CreatedUTC:  timestampToUTC(p.Created),
		NumComments: p.NumberOfComments,
		Over18:      p.NSFW,
	}
}

// flatten walks the comment tree depth-first, annotating every node with its
// tree depth.
func flatten(comments []*reddit.Comment, depth int) []crawler.Comment {
	out := make([]crawler.Comment, 0, len(comments))
	for _, c := range comments {
		if c == nil {
			continue
		}
		out = append(out, crawler.Comment{
			ID:         c.ID,
			ParentID:   c.ParentID,
			Author:     authorOrDeleted(c.Author),
			Body:       c.Body,
			Score:      c.Score,
			CreatedUTC: timestampToUTC(c.Created),
			Depth:      depth,
		})
		out = append(out, flatten(c.Replies.Comments, depth+1)...)
	}
	return out
}

func authorOrDeleted(author string) string {
	if author == "" {
		return crawler.DeletedAuthor
	}
	return author
}

func timestampToUTC(ts *reddit.Timestamp) float64 {
	if ts == nil {
		return 0
	}
	return float64(ts.UTC().Unix())
}
