package crawler

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/parquet-go/parquet-go"
)

// CommentsParquetName is the columnar comments file inside a run directory.
const CommentsParquetName = "comments.parquet"

// ParquetSink maintains the run's columnar comments file. Parquet is not
// appendable, so each flush loads the existing rows, concatenates the new
// batch, and rewrites the file in full.
type ParquetSink struct {
	path string
}

// NewParquetSink returns a sink writing to dir/comments.parquet.
func NewParquetSink(dir string) *ParquetSink {
	return &ParquetSink{path: filepath.Join(dir, CommentsParquetName)}
}

// Write merges records into the file and returns its path.
func (s *ParquetSink) Write(ctx context.Context, records []Record) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("context canceled: %w", err)
	}
	rows := records
	if _, err := os.Stat(s.path); err == nil {
		existing, err := parquet.ReadFile[Record](s.path)
		if err != nil {
			return "", fmt.Errorf("read existing %s: %w", s.path, err)
		}
		rows = append(existing, records...)
	} else if !os.IsNotExist(err) {
		return "", fmt.Errorf("stat %s: %w", s.path, err)
	}

	// Rewrite via a temp file so a failed write never clobbers prior data.
	tmp := s.path + ".tmp"
	if err := parquet.WriteFile(tmp, rows); err != nil {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("replace %s: %w", s.path, err)
	}
	return s.path, nil
}
