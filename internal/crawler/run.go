package crawler

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// MetadataFileName is the per-run metadata record inside a run directory.
const MetadataFileName = "metadata.json"

// RunDirPrefix marks run directories; the combiner discovers them by it.
const RunDirPrefix = "run_"

// Run exit statuses.
const (
	StatusRunning     = "running"
	StatusCompleted   = "completed"
	StatusInterrupted = "interrupted"
	StatusError       = "error"
)

// Metadata is the per-run metadata record persisted as metadata.json.
type Metadata struct {
	RunID             string     `json:"run_id"`
	StartTime         time.Time  `json:"start_time"`
	EndTime           *time.Time `json:"end_time"`
	DurationSeconds   *float64   `json:"duration_seconds"`
	PostsProcessed    int        `json:"posts_processed"`
	CommentsCollected int        `json:"comments_collected"`
	ExitStatus        string     `json:"exit_status"`
	FilesWritten      []string   `json:"files_written"`
	ConfigSnapshot    any        `json:"config_snapshot"`
}

// NameParts carries the run parameters embedded in the run folder name.
type NameParts struct {
	Subreddits []string
	Listing    Listing
	PostLimit  int
}

// Run is one crawl execution: identity, working directory, and lifecycle
// metadata. The directory is created at construction and never deleted by
// the crawler; only the batch orchestrator relocates it afterwards.
type Run struct {
	ID    string
	Dir   string
	Meta  Metadata
	clock Clock
	files map[string]struct{}
}

// NewRun creates the run directory under baseDir and initializes metadata
// with status "running".
func NewRun(baseDir, runID string, parts NameParts, cfgSnapshot any, clock Clock) (*Run, error) {
	dir := filepath.Join(baseDir, FolderName(runID, parts))
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create run dir %s: %w", dir, err)
	}
	return &Run{
		ID:  runID,
		Dir: dir,
		Meta: Metadata{
			RunID:          runID,
			StartTime:      clock.Now(),
			ExitStatus:     StatusRunning,
			ConfigSnapshot: cfgSnapshot,
		},
		clock: clock,
		files: make(map[string]struct{}),
	}, nil
}

// FolderName builds run_<id>_<subs>_<listing>[_<timefilter>][_limitN]. The
// subreddit segment is compressed and clamped so very long lists stay
// filesystem-friendly.
func FolderName(runID string, parts NameParts) string {
	subs := parts.Subreddits
	var subsStr string
	if len(subs) <= 3 {
		subsStr = strings.Join(subs, "+")
	} else {
		subsStr = fmt.Sprintf("%s+%dmore", strings.Join(subs[:2], "+"), len(subs)-2)
	}
	if len(subsStr) > 30 {
		subsStr = subsStr[:27] + "..."
	}

	components := []string{RunDirPrefix + runID, subsStr, parts.Listing.Name}
	if RequiresTimeFilter(parts.Listing.Name) && parts.Listing.TimeFilter != "" {
		components = append(components, parts.Listing.TimeFilter)
	}
	if parts.PostLimit > 0 {
		components = append(components, fmt.Sprintf("limit%d", parts.PostLimit))
	}
	return strings.Join(components, "_")
}

// AddFile records a file touched during this run. Duplicate paths are kept
// once.
func (r *Run) AddFile(path string) {
	if path == "" {
		return
	}
	if _, ok := r.files[path]; ok {
		return
	}
	r.files[path] = struct{}{}
	r.Meta.FilesWritten = append(r.Meta.FilesWritten, path)
}

// Finish stamps the end time and exit status and computes the duration.
// Calling it again overwrites the end time; callers invoke it once per exit
// path.
func (r *Run) Finish(status string) {
	now := r.clock.Now()
	r.Meta.EndTime = &now
	d := now.Sub(r.Meta.StartTime).Seconds()
	r.Meta.DurationSeconds = &d
	r.Meta.ExitStatus = status
}

// Save serializes the metadata record to the run directory. It may be called
// repeatedly to checkpoint progress; the last write wins. Every exit path
// must call it at least once.
func (r *Run) Save() error {
	path := filepath.Join(r.Dir, MetadataFileName)
	r.AddFile(path)
	payload, err := json.MarshalIndent(r.Meta, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal run metadata: %w", err)
	}
	if err := os.WriteFile(path, payload, 0o600); err != nil {
		return fmt.Errorf("write run metadata %s: %w", path, err)
	}
	return nil
}

// Result summarizes the run for the batch orchestrator.
func (r *Run) Result() RunResult {
	return RunResult{
		RunID:             r.ID,
		Dir:               r.Dir,
		PostsProcessed:    r.Meta.PostsProcessed,
		CommentsCollected: r.Meta.CommentsCollected,
		ExitStatus:        r.Meta.ExitStatus,
	}
}
