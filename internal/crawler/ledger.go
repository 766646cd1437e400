package crawler

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// LedgerFileName is the visited-post state file inside every run directory.
const LedgerFileName = "visited_posts.txt"

// Ledger is the per-run append-only set of processed post identities. It is
// the resumability primitive: a post recorded here is never reprocessed by
// this run or by any run seeded from it.
type Ledger struct {
	path string
	seen map[string]struct{}
	file *os.File
}

// OpenLedger loads the ledger file under dir, if any. The file itself is
// only created on the first Record call.
func OpenLedger(dir string) (*Ledger, error) {
	path := filepath.Join(dir, LedgerFileName)
	l := &Ledger{path: path, seen: make(map[string]struct{})}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return l, nil
		}
		return nil, fmt.Errorf("read ledger %s: %w", path, err)
	}
	for _, line := range strings.Split(string(data), "\n") {
		if id := strings.TrimSpace(line); id != "" {
			l.seen[id] = struct{}{}
		}
	}
	return l, nil
}

// Path returns the on-disk location of the ledger file.
func (l *Ledger) Path() string {
	return l.path
}

// Contains reports whether id has already been recorded.
func (l *Ledger) Contains(id string) bool {
	_, ok := l.seen[id]
	return ok
}

// Len returns the number of recorded identities.
func (l *Ledger) Len() int {
	return len(l.seen)
}

// IDs returns a sorted copy of the recorded identities.
func (l *Ledger) IDs() []string {
	out := make([]string, 0, len(l.seen))
	for id := range l.seen {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Set returns a copy of the recorded identities as a set.
func (l *Ledger) Set() map[string]struct{} {
	out := make(map[string]struct{}, len(l.seen))
	for id := range l.seen {
		out[id] = struct{}{}
	}
	return out
}

// Record appends id to the ledger, durably, before the caller moves to the
// next item: the line is synced to disk before Record returns. A crash after
// a record flush but before this call is the accepted at-least-once window;
// the merge stages restore exactly-once in the final output.
func (l *Ledger) Record(id string) error {
	if id == "" {
		return nil
	}
	if _, ok := l.seen[id]; ok {
		return nil
	}
	if l.file == nil {
		f, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			return fmt.Errorf("open ledger %s: %w", l.path, err)
		}
		l.file = f
	}
	if _, err := l.file.WriteString(id + "\n"); err != nil {
		return fmt.Errorf("append to ledger %s: %w", l.path, err)
	}
	if err := l.file.Sync(); err != nil {
		return fmt.Errorf("sync ledger %s: %w", l.path, err)
	}
	l.seen[id] = struct{}{}
	return nil
}

// Seed unions ids into the ledger and rewrites the file sorted. Seeding
// never drops entries the run directory already contains, which protects
// in-flight state when a run directory is reused.
func (l *Ledger) Seed(ids map[string]struct{}) error {
	if len(ids) == 0 {
		return nil
	}
	for id := range ids {
		l.seen[id] = struct{}{}
	}
	if err := l.closeFile(); err != nil {
		return err
	}
	if err := WriteVisitedSet(l.path, l.seen); err != nil {
		return fmt.Errorf("seed ledger: %w", err)
	}
	return nil
}

// Close releases the append handle, if one was opened.
func (l *Ledger) Close() error {
	return l.closeFile()
}

func (l *Ledger) closeFile() error {
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	if err != nil {
		return fmt.Errorf("close ledger %s: %w", l.path, err)
	}
	return nil
}

// ReadVisitedSet loads a visited-posts file into a set. A missing file is an
// empty set, not an error.
func ReadVisitedSet(path string) (map[string]struct{}, error) {
	out := make(map[string]struct{})
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return out, nil
		}
		return nil, fmt.Errorf("read visited set %s: %w", path, err)
	}
	for _, line := range strings.Split(string(data), "\n") {
		if id := strings.TrimSpace(line); id != "" {
			out[id] = struct{}{}
		}
	}
	return out, nil
}

// WriteVisitedSet writes ids to path sorted, one identity per line.
func WriteVisitedSet(path string, ids map[string]struct{}) error {
	sorted := make([]string, 0, len(ids))
	for id := range ids {
		sorted = append(sorted, id)
	}
	sort.Strings(sorted)
	var b strings.Builder
	for _, id := range sorted {
		b.WriteString(id)
		b.WriteByte('\n')
	}
	if err := os.WriteFile(path, []byte(b.String()), 0o600); err != nil {
		return fmt.Errorf("write visited set %s: %w", path, err)
	}
	return nil
}
