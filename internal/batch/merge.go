package batch

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"go.uber.org/zap"

	"github.com/akontos/redditcorpus/internal/crawler"
)

// maxLineBytes bounds a single comment line during merges; self-posts with
// very long bodies blow past bufio's default.
const maxLineBytes = 16 * 1024 * 1024

// mergeComments folds every combination's comments.jsonl under runsDir into
// runs/combined/comments.jsonl, deduplicated by comment identity (content
// hash when the identity is absent or the line is malformed).
//
// No post-ownership filtering happens here: ledger seeding already guarantees
// that no two combinations processed the same post, so identity dedup is
// sufficient. The standalone combiner, whose inputs are not seeded from each
// other, is the path that enforces ownership.
func (o *Orchestrator) mergeComments(runsDir string) (CombinedStats, error) {
	combinedDir := filepath.Join(runsDir, "combined")
	if err := os.MkdirAll(combinedDir, 0o750); err != nil {
		return CombinedStats{}, fmt.Errorf("create combined dir: %w", err)
	}
	combinedPath := filepath.Join(combinedDir, crawler.CommentsJSONLName)

	inputs, err := filepath.Glob(filepath.Join(runsDir, crawler.RunDirPrefix+"*", crawler.CommentsJSONLName))
	if err != nil {
		return CombinedStats{}, fmt.Errorf("glob run comment files: %w", err)
	}
	sort.Strings(inputs)
	o.logger.Info("combining run comment files", zap.Int("files", len(inputs)))

	out, err := os.Create(combinedPath)
	if err != nil {
		return CombinedStats{}, fmt.Errorf("create %s: %w", combinedPath, err)
	}
	defer out.Close()
	w := bufio.NewWriter(out)

	stats := CombinedStats{CommentsFile: combinedPath}
	seen := make(map[string]struct{})
	for _, path := range inputs {
		if err := o.mergeFile(path, w, seen, &stats); err != nil {
			return CombinedStats{}, err
		}
	}

	if err := w.Flush(); err != nil {
		return CombinedStats{}, fmt.Errorf("flush %s: %w", combinedPath, err)
	}
	return stats, nil
}

func (o *Orchestrator) mergeFile(path string, w *bufio.Writer, seen map[string]struct{}, stats *CombinedStats) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		stats.TotalRead++

		key := o.dedupKey(line)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}

		if _, err := w.Write(line); err != nil {
			return fmt.Errorf("write combined line: %w", err)
		}
		if err := w.WriteByte('\n'); err != nil {
			return fmt.Errorf("write combined line: %w", err)
		}
		stats.UniqueWritten++
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("scan %s: %w", path, err)
	}
	return nil
}

// dedupKey is the comment identity when the line parses and carries one,
// otherwise the content hash of the raw line. Malformed lines are kept
// verbatim, deduplicated by byte equality.
func (o *Orchestrator) dedupKey(line []byte) string {
	var rec struct {
		CommentID string `json:"comment_id"`
	}
	if err := json.Unmarshal(line, &rec); err == nil && rec.CommentID != "" {
		return rec.CommentID
	}
	return o.hasher.Hash(line)
}
