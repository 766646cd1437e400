// Package id generates crawl run identifiers.
package id

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Generator produces run IDs of the form YYYYMMDD_HHMMSS_<uuid8>.
type Generator struct{}

// New creates a new Generator.
func New() *Generator {
	return &Generator{}
}

// NewRunID returns a timestamp-prefixed identifier with a short random
// suffix. The timestamp prefix keeps lexicographic order aligned with start
// time, which the combiner relies on when ordering run directories.
func (Generator) NewRunID(now time.Time) (string, error) {
	u, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("generate uuid: %w", err)
	}
	return fmt.Sprintf("%s_%s", now.Format("20060102_150405"), u.String()[:8]), nil
}
