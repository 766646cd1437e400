package crawler

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// Buffer accumulates records in memory and flushes them to the sinks in
// batches. On a flush error the buffered records are kept, so nothing is
// silently lost; the caller decides whether to retry or abort.
type Buffer struct {
	sinks     []Sink
	threshold int
	records   []Record
	onFile    func(path string)
	logger    *zap.Logger
}

// NewBuffer builds a buffer flushing to sinks once threshold records are
// buffered. onFile, if non-nil, is invoked with every file path a flush
// touches (the run context records these in its metadata).
func NewBuffer(threshold int, sinks []Sink, onFile func(string), logger *zap.Logger) *Buffer {
	if threshold <= 0 {
		threshold = 2000
	}
	return &Buffer{
		sinks:     sinks,
		threshold: threshold,
		onFile:    onFile,
		logger:    logger,
	}
}

// Append adds one record to the buffer.
func (b *Buffer) Append(r Record) {
	b.records = append(b.records, r)
}

// Len returns the number of buffered records.
func (b *Buffer) Len() int {
	return len(b.records)
}

// FlushIfFull flushes when the buffered count has reached the threshold.
func (b *Buffer) FlushIfFull(ctx context.Context) error {
	if len(b.records) < b.threshold {
		return nil
	}
	return b.Flush(ctx)
}

// Flush writes the whole buffer to every sink and clears it. The buffer is
// cleared only after every sink write succeeded.
func (b *Buffer) Flush(ctx context.Context) error {
	if len(b.records) == 0 {
		return nil
	}
	for _, s := range b.sinks {
		path, err := s.Write(ctx, b.records)
		if err != nil {
			return fmt.Errorf("flush %d records: %w", len(b.records), err)
		}
		if b.onFile != nil {
			b.onFile(path)
		}
	}
	b.logger.Info("flushed comment buffer", zap.Int("records", len(b.records)))
	b.records = b.records[:0]
	return nil
}
