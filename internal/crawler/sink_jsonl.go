package crawler

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// CommentsJSONLName is the line-oriented comments file inside a run directory.
const CommentsJSONLName = "comments.jsonl"

// JSONLSink appends one JSON record per line to the run's comments file.
// Appends never re-read earlier data, so repeated flushes stay cheap.
type JSONLSink struct {
	path string
}

// NewJSONLSink returns a sink writing to dir/comments.jsonl.
func NewJSONLSink(dir string) *JSONLSink {
	return &JSONLSink{path: filepath.Join(dir, CommentsJSONLName)}
}

// Write appends records to the file and returns its path.
func (s *JSONLSink) Write(ctx context.Context, records []Record) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("context canceled: %w", err)
	}
	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", s.path, err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetEscapeHTML(false)
	for _, r := range records {
		if err := enc.Encode(r); err != nil {
			return "", fmt.Errorf("encode record %s: %w", r.CommentID, err)
		}
	}
	if err := f.Sync(); err != nil {
		return "", fmt.Errorf("sync %s: %w", s.path, err)
	}
	return s.path, nil
}
