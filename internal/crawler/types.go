// Package crawler implements the multi-run crawl engine: the visited-post
// ledger, the buffered record sinks, the run context, and the per-post crawl
// driver. Listing/merge orchestration across runs lives in the batch and
// combine packages.
package crawler

// DeletedAuthor is the sentinel rendered for removed or suspended accounts.
const DeletedAuthor = "[deleted]"

// Post is one source item from a subreddit listing. Immutable once fetched.
type Post struct {
	ID          string
	Subreddit   string
	Permalink   string
	Title       string
	SelfText    string
	Author      string
	Score       int
	CreatedUTC  float64
	NumComments int
	Over18      bool
}

// Comment is one flattened node of a post's comment tree. ParentID is the
// thread-tree edge and references either the post or another comment.
type Comment struct {
	ID         string
	ParentID   string
	Author     string
	Body       string
	Score      int
	CreatedUTC float64
	Depth      int
}

// Record is the flattened post+comment row written to the sinks. Every
// record is self-contained: the owning post's attributes are denormalized
// into it so no join is needed to reconstruct a readable row. The field
// names are the stable wire format shared by every run directory.
type Record struct {
	Subreddit         string  `json:"subreddit"           parquet:"subreddit"`
	PostID            string  `json:"post_id"             parquet:"post_id"`
	Permalink         string  `json:"permalink"           parquet:"permalink"`
	Title             string  `json:"title"               parquet:"title"`
	SelfText          string  `json:"selftext"            parquet:"selftext"`
	PostAuthor        string  `json:"author_post"         parquet:"author_post"`
	PostScore         int     `json:"score_post"          parquet:"score_post"`
	PostCreatedUTC    float64 `json:"created_utc_post"    parquet:"created_utc_post"`
	PostNumComments   int     `json:"num_comments_post"   parquet:"num_comments_post"`
	Over18            bool    `json:"over_18"             parquet:"over_18"`
	CommentID         string  `json:"comment_id"          parquet:"comment_id"`
	ParentID          string  `json:"parent_id"           parquet:"parent_id"`
	CommentAuthor     string  `json:"comment_author"      parquet:"comment_author"`
	CommentBody       string  `json:"comment_body"        parquet:"comment_body"`
	CommentScore      int     `json:"comment_score"       parquet:"comment_score"`
	CommentCreatedUTC float64 `json:"created_utc_comment" parquet:"created_utc_comment"`
	Depth             int     `json:"depth"               parquet:"depth"`
}

// NewRecord joins a post's attributes with one of its comments.
func NewRecord(p Post, c Comment) Record {
	return Record{
		Subreddit:         p.Subreddit,
		PostID:            p.ID,
		Permalink:         p.Permalink,
		Title:             p.Title,
		SelfText:          p.SelfText,
		PostAuthor:        p.Author,
		PostScore:         p.Score,
		PostCreatedUTC:    p.CreatedUTC,
		PostNumComments:   p.NumComments,
		Over18:            p.Over18,
		CommentID:         c.ID,
		ParentID:          c.ParentID,
		CommentAuthor:     c.Author,
		CommentBody:       c.Body,
		CommentScore:      c.Score,
		CommentCreatedUTC: c.CreatedUTC,
		Depth:             c.Depth,
	}
}

// RunResult summarizes a finished crawl run for callers that drive many of
// them (the batch orchestrator).
type RunResult struct {
	RunID             string
	Dir               string
	PostsProcessed    int
	CommentsCollected int
	ExitStatus        string
}
