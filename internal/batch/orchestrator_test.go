package batch

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/akontos/redditcorpus/internal/config"
	"github.com/akontos/redditcorpus/internal/crawler"
	"github.com/akontos/redditcorpus/internal/hash/md5"
)

// chdir switches the working directory for the test and restores it on
// cleanup, matching testing.T.Chdir which needs Go 1.24+.
func chdir(t *testing.T, dir string) {
	t.Helper()
	orig, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(orig) })
}

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	return c.now
}

// scriptedPost is one post a fake run yields, with its comment IDs.
type scriptedPost struct {
	id       string
	comments []string
}

// fakeRunner scripts what each listing combination "crawls". It mimics the
// real runner's contract: Prepare creates the run directory, Seed marks posts
// to skip, Crawl writes the ledger and comment file.
type fakeRunner struct {
	scripts   map[string][]scriptedPost // keyed by Combo.String()
	crawlErrs map[string]error
	prepared  []config.Config
	seq       int
}

func (r *fakeRunner) Prepare(cfg config.Config) (PreparedRun, error) {
	r.prepared = append(r.prepared, cfg)
	key := Combo{Listing: cfg.Crawling.Listing, TimeFilter: windowOf(cfg)}.String()
	r.seq++
	dir := filepath.Join(cfg.Output.BaseDir, fmt.Sprintf("run_%03d_%s", r.seq, cfg.Crawling.Listing))
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, err
	}
	return &fakePrepared{
		dir:      dir,
		posts:    r.scripts[key],
		crawlErr: r.crawlErrs[key],
	}, nil
}

func windowOf(cfg config.Config) string {
	if crawler.RequiresTimeFilter(cfg.Crawling.Listing) {
		return cfg.Crawling.TimeFilter
	}
	return ""
}

type fakePrepared struct {
	dir      string
	posts    []scriptedPost
	seeded   map[string]struct{}
	crawlErr error
}

func (p *fakePrepared) Dir() string {
	return p.dir
}

func (p *fakePrepared) Seed(ids map[string]struct{}) error {
	p.seeded = make(map[string]struct{}, len(ids))
	for id := range ids {
		p.seeded[id] = struct{}{}
	}
	return nil
}

func (p *fakePrepared) Crawl(_ context.Context) (crawler.RunResult, error) {
	visited := make(map[string]struct{}, len(p.seeded)+len(p.posts))
	for id := range p.seeded {
		visited[id] = struct{}{}
	}

	f, err := os.Create(filepath.Join(p.dir, crawler.CommentsJSONLName))
	if err != nil {
		return crawler.RunResult{}, err
	}
	defer f.Close()
	enc := json.NewEncoder(f)

	collected := 0
	for _, post := range p.posts {
		if _, seen := visited[post.id]; seen {
			continue
		}
		visited[post.id] = struct{}{}
		for _, cid := range post.comments {
			rec := crawler.NewRecord(crawler.Post{ID: post.id}, crawler.Comment{ID: cid})
			if err := enc.Encode(rec); err != nil {
				return crawler.RunResult{}, err
			}
			collected++
		}
	}

	ledgerPath := filepath.Join(p.dir, crawler.LedgerFileName)
	if err := crawler.WriteVisitedSet(ledgerPath, visited); err != nil {
		return crawler.RunResult{}, err
	}
	if p.crawlErr != nil {
		return crawler.RunResult{}, p.crawlErr
	}
	return crawler.RunResult{Dir: p.dir, CommentsCollected: collected, ExitStatus: crawler.StatusCompleted}, nil
}

func baseConfig(t *testing.T, baseDir string) config.Config {
	t.Helper()
	return config.Config{
		Subreddits: []string{"greece"},
		Reddit: config.RedditConfig{
			ClientIDEnv:           "REDDIT_CLIENT_ID",
			ClientSecretEnv:       "REDDIT_CLIENT_SECRET",
			UserAgentEnv:          "REDDIT_USER_AGENT",
			DefaultUserAgent:      "corpus:test",
			RequestTimeoutSeconds: 30,
		},
		Crawling: config.CrawlingConfig{Listing: "top", TimeFilter: "all", PostLimit: 100},
		Language: config.LanguageConfig{Target: "el", TitleMinScriptRatio: 0.3},
		Output:   config.OutputConfig{BaseDir: baseDir, BufferSize: 2000},
		Logging:  config.LoggingConfig{Development: true},
	}
}

func newOrchestrator(t *testing.T, runner Runner, combos []Combo, baseDir string) *Orchestrator {
	t.Helper()
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("subreddits:\n  - greece\n"), 0o600))
	clock := &fakeClock{now: time.Date(2024, 7, 1, 9, 0, 0, 0, time.UTC)}
	return New(baseConfig(t, baseDir), cfgPath, combos, runner, md5.New(), clock, zap.NewNop())
}

// Two combinations where the second one's stream overlaps the first:
// seeding must keep the overlap out of the second run, and the batch ends
// with the union of all visited posts.
func TestOrchestratorSeedsAcrossCombos(t *testing.T) {
	chdir(t, t.TempDir())
	baseDir := t.TempDir()
	runner := &fakeRunner{scripts: map[string][]scriptedPost{
		"new": {{id: "p1", comments: []string{"c1"}}, {id: "p2", comments: []string{"c2"}}},
		"hot": {{id: "p2", comments: []string{"c2"}}, {id: "p3", comments: []string{"c3"}}},
	}}
	combos := []Combo{{Listing: "new"}, {Listing: "hot"}}
	orch := newOrchestrator(t, runner, combos, baseDir)

	require.NoError(t, orch.Run(context.Background()))

	root := filepath.Join(baseDir, "greece_20240701_090000")
	require.DirExists(t, root)
	require.FileExists(t, filepath.Join(root, "config_used.yaml"))

	cumulative, err := crawler.ReadVisitedSet(filepath.Join(root, crawler.LedgerFileName))
	require.NoError(t, err)
	require.Len(t, cumulative, 3)
	require.Contains(t, cumulative, "p1")
	require.Contains(t, cumulative, "p2")
	require.Contains(t, cumulative, "p3")

	// The overlap (p2) was seeded into the second run, so its comments were
	// collected exactly once.
	combined := readJSONLines(t, filepath.Join(root, "runs", "combined", crawler.CommentsJSONLName))
	require.Len(t, combined, 3)
	ids := make([]string, 0, len(combined))
	for _, rec := range combined {
		ids = append(ids, rec.CommentID)
	}
	require.ElementsMatch(t, []string{"c1", "c2", "c3"}, ids)

	var meta Metadata
	data, err := os.ReadFile(filepath.Join(root, "batch_metadata.json"))
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &meta))
	require.Equal(t, "greece", meta.Subreddit)
	require.Equal(t, 3, meta.TotalUniquePosts)
	require.Len(t, meta.Runs, 2)
	require.Equal(t, 2, meta.Runs[0].VisitedAdded)
	require.Equal(t, 1, meta.Runs[1].VisitedAdded, "only the new post counts")
	require.Equal(t, 3, meta.Combined.UniqueWritten)
}

func TestOrchestratorPerRunConfigs(t *testing.T) {
	chdir(t, t.TempDir())
	baseDir := t.TempDir()
	runner := &fakeRunner{scripts: map[string][]scriptedPost{}}
	combos := []Combo{{Listing: "new"}, {Listing: "top", TimeFilter: "month"}}
	orch := newOrchestrator(t, runner, combos, baseDir)

	require.NoError(t, orch.Run(context.Background()))
	require.Len(t, runner.prepared, 2)

	first := runner.prepared[0]
	require.Equal(t, []string{"greece"}, first.Subreddits)
	require.Equal(t, "new", first.Crawling.Listing)

	second := runner.prepared[1]
	require.Equal(t, "top", second.Crawling.Listing)
	require.Equal(t, "month", second.Crawling.TimeFilter)
	require.Equal(t, baseDir, second.Output.BaseDir, "per-run config inherits the base output dir")
}

// A failed combination is recorded in the metadata and its partial ledger is
// still folded into the cumulative set; later combinations proceed.
func TestOrchestratorComboFailureContinues(t *testing.T) {
	chdir(t, t.TempDir())
	baseDir := t.TempDir()
	runner := &fakeRunner{
		scripts: map[string][]scriptedPost{
			"new": {{id: "p1", comments: []string{"c1"}}},
			"hot": {{id: "p2", comments: []string{"c2"}}},
		},
		crawlErrs: map[string]error{"new": errors.New("rate limited")},
	}
	combos := []Combo{{Listing: "new"}, {Listing: "hot"}}
	orch := newOrchestrator(t, runner, combos, baseDir)

	require.NoError(t, orch.Run(context.Background()))

	root := filepath.Join(baseDir, "greece_20240701_090000")
	var meta Metadata
	data, err := os.ReadFile(filepath.Join(root, "batch_metadata.json"))
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &meta))

	require.Equal(t, crawler.StatusError, meta.Runs[0].Status)
	require.Contains(t, meta.Runs[0].Error, "rate limited")
	require.Equal(t, crawler.StatusCompleted, meta.Runs[1].Status)
	require.Equal(t, 2, meta.TotalUniquePosts, "partial ledger of the failed run still counts")
	require.Equal(t, 2, meta.Combined.UniqueWritten)
}

func TestOrchestratorCanceledBeforeStart(t *testing.T) {
	chdir(t, t.TempDir())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	runner := &fakeRunner{scripts: map[string][]scriptedPost{}}
	orch := newOrchestrator(t, runner, []Combo{{Listing: "new"}}, t.TempDir())
	require.ErrorIs(t, orch.Run(ctx), context.Canceled)
	require.Empty(t, runner.prepared)
}

func TestMergeCommentsDedupsAndKeepsMalformed(t *testing.T) {
	t.Parallel()
	runsDir := t.TempDir()
	writeRunComments(t, runsDir, "run_a", []string{
		`{"post_id":"p1","comment_id":"c1","comment_body":"a"}`,
		`{"post_id":"p1","comment_id":"c2","comment_body":"b"}`,
		`{broken line`,
	})
	writeRunComments(t, runsDir, "run_b", []string{
		`{"post_id":"p1","comment_id":"c2","comment_body":"b"}`,
		`{broken line`,
		`{"post_id":"p2","comment_id":"c3","comment_body":"c"}`,
		`{"post_id":"p2","comment_body":"no identity"}`,
	})

	orch := newOrchestrator(t, &fakeRunner{}, []Combo{{Listing: "new"}}, t.TempDir())
	stats, err := orch.mergeComments(runsDir)
	require.NoError(t, err)

	require.Equal(t, 7, stats.TotalRead)
	require.Equal(t, 5, stats.UniqueWritten, "c2 and the malformed line collapse")

	lines := readRawLines(t, stats.CommentsFile)
	require.Len(t, lines, 5)
	require.Contains(t, lines, `{broken line`, "malformed lines survive verbatim")
	require.Contains(t, lines, `{"post_id":"p2","comment_body":"no identity"}`)
}

func writeRunComments(t *testing.T, runsDir, name string, lines []string) {
	t.Helper()
	dir := filepath.Join(runsDir, name)
	require.NoError(t, os.MkdirAll(dir, 0o750))
	content := ""
	for _, l := range lines {
		content += l + "\n"
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, crawler.CommentsJSONLName), []byte(content), 0o600))
}

func readRawLines(t *testing.T, path string) []string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if scanner.Text() != "" {
			lines = append(lines, scanner.Text())
		}
	}
	require.NoError(t, scanner.Err())
	return lines
}

func readJSONLines(t *testing.T, path string) []crawler.Record {
	t.Helper()
	var out []crawler.Record
	for _, line := range readRawLines(t, path) {
		var rec crawler.Record
		require.NoError(t, json.Unmarshal([]byte(line), &rec))
		out = append(out, rec)
	}
	return out
}
