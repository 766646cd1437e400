// Package combine merges arbitrary pre-existing run directories into one
// deduplicated corpus. Unlike the batch orchestrator's merge, its inputs
// were not necessarily seeded from each other, so the same post may have
// been captured by several runs; first-seen ownership resolves those
// conflicts deterministically.
package combine

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/akontos/redditcorpus/internal/crawler"
)

// CombinedDirName is the output folder created under the input root.
const CombinedDirName = "combined"

const maxLineBytes = 16 * 1024 * 1024

// Outputs lists the files a combine produced.
type Outputs struct {
	CommentsJSONL string `json:"comments_jsonl"`
	VisitedPosts  string `json:"visited_posts"`
}

// Summary is written to combined/summary.json.
type Summary struct {
	Root              string   `json:"root"`
	NumRuns           int      `json:"num_runs"`
	Runs              []string `json:"runs"`
	TotalRead         int      `json:"total_read"`
	UniqueWritten     int      `json:"unique_written"`
	UnionVisitedCount int      `json:"union_visited_count"`
	Outputs           Outputs  `json:"outputs"`
}

// Combiner merges run directories.
type Combiner struct {
	hasher crawler.Hasher
	logger *zap.Logger
}

// New builds a Combiner.
func New(hasher crawler.Hasher, logger *zap.Logger) *Combiner {
	return &Combiner{hasher: hasher, logger: logger}
}

// Combine merges every run_* directory under root into root/combined:
// a deduplicated comments file, the union visited ledger, and a summary.
// Existing runs are never modified. A root without run directories is an
// error.
func (c *Combiner) Combine(root string) (Summary, error) {
	runDirs, err := discoverRunDirs(root)
	if err != nil {
		return Summary{}, err
	}
	if len(runDirs) == 0 {
		return Summary{}, fmt.Errorf("no %s* directories found under %s", crawler.RunDirPrefix, root)
	}
	c.logger.Info("combining runs", zap.String("root", root), zap.Int("runs", len(runDirs)))

	owner, union, err := buildOwnership(runDirs)
	if err != nil {
		return Summary{}, err
	}

	combinedDir := filepath.Join(root, CombinedDirName)
	if err := os.MkdirAll(combinedDir, 0o750); err != nil {
		return Summary{}, fmt.Errorf("create %s: %w", combinedDir, err)
	}
	commentsPath := filepath.Join(combinedDir, crawler.CommentsJSONLName)
	visitedPath := filepath.Join(combinedDir, crawler.LedgerFileName)
	summaryPath := filepath.Join(combinedDir, "summary.json")

	totalRead, uniqueWritten, err := c.combineComments(runDirs, owner, commentsPath)
	if err != nil {
		return Summary{}, err
	}
	if err := crawler.WriteVisitedSet(visitedPath, union); err != nil {
		return Summary{}, err
	}

	names := make([]string, len(runDirs))
	for i, rd := range runDirs {
		names[i] = filepath.Base(rd)
	}
	summary := Summary{
		Root:              root,
		NumRuns:           len(runDirs),
		Runs:              names,
		TotalRead:         totalRead,
		UniqueWritten:     uniqueWritten,
		UnionVisitedCount: len(union),
		Outputs: Outputs{
			CommentsJSONL: commentsPath,
			VisitedPosts:  visitedPath,
		},
	}
	payload, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return Summary{}, fmt.Errorf("marshal summary: %w", err)
	}
	if err := os.WriteFile(summaryPath, payload, 0o600); err != nil {
		return Summary{}, fmt.Errorf("write summary %s: %w", summaryPath, err)
	}

	c.logger.Info("combine finished",
		zap.Int("total_read", totalRead),
		zap.Int("unique_written", uniqueWritten),
		zap.Int("union_visited", len(union)),
	)
	return summary, nil
}

// discoverRunDirs lists run_* subdirectories of root, sorted by name. Names
// embed timestamps, so lexicographic order approximates chronological order.
func discoverRunDirs(root string) ([]string, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("read root %s: %w", root, err)
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() && strings.HasPrefix(e.Name(), crawler.RunDirPrefix) {
			out = append(out, filepath.Join(root, e.Name()))
		}
	}
	return out, nil
}

// buildOwnership assigns every post identity to the first run (in order)
// whose ledger lists it, and collects the union of all identities.
func buildOwnership(runDirs []string) (map[string]int, map[string]struct{}, error) {
	owner := make(map[string]int)
	union := make(map[string]struct{})
	for idx, rd := range runDirs {
		visited, err := crawler.ReadVisitedSet(filepath.Join(rd, crawler.LedgerFileName))
		if err != nil {
			return nil, nil, err
		}
		for id := range visited {
			union[id] = struct{}{}
			if _, claimed := owner[id]; !claimed {
				owner[id] = idx
			}
		}
	}
	return owner, union, nil
}

func (c *Combiner) combineComments(runDirs []string, owner map[string]int, outPath string) (totalRead, uniqueWritten int, err error) {
	out, err := os.Create(outPath)
	if err != nil {
		return 0, 0, fmt.Errorf("create %s: %w", outPath, err)
	}
	defer out.Close()
	w := bufio.NewWriter(out)

	seen := make(map[string]struct{})
	for idx, rd := range runDirs {
		read, written, err := c.combineRunFile(filepath.Join(rd, crawler.CommentsJSONLName), idx, owner, seen, w)
		if err != nil {
			return 0, 0, err
		}
		totalRead += read
		uniqueWritten += written
	}

	if err := w.Flush(); err != nil {
		return 0, 0, fmt.Errorf("flush %s: %w", outPath, err)
	}
	return totalRead, uniqueWritten, nil
}

func (c *Combiner) combineRunFile(path string, runIdx int, owner map[string]int, seen map[string]struct{}, w *bufio.Writer) (read, written int, err error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, 0, nil
		}
		return 0, 0, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		read++

		var rec struct {
			PostID    string `json:"post_id"`
			CommentID string `json:"comment_id"`
		}
		key := ""
		if jsonErr := json.Unmarshal(line, &rec); jsonErr != nil {
			// Malformed line: kept verbatim, deduplicated by content hash.
			key = c.hasher.Hash(line)
		} else {
			// Ownership filter: a comment whose post belongs to an earlier
			// run is that run's to emit. A missing post_id is ambiguous and
			// conservatively kept.
			if rec.PostID != "" {
				if ownerIdx, claimed := owner[rec.PostID]; claimed && ownerIdx != runIdx {
					continue
				}
			}
			key = rec.CommentID
			if key == "" {
				key = c.hasher.Hash(line)
			}
		}

		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}

		if _, err := w.Write(line); err != nil {
			return 0, 0, fmt.Errorf("write combined line: %w", err)
		}
		if err := w.WriteByte('\n'); err != nil {
			return 0, 0, fmt.Errorf("write combined line: %w", err)
		}
		written++
	}
	if err := scanner.Err(); err != nil {
		return 0, 0, fmt.Errorf("scan %s: %w", path, err)
	}
	return read, written, nil
}
