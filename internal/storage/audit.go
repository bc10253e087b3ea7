// Package storage persists the audit trail of cross-network command usage
// as a flat text file under the data directory.
package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

const maxEntries = 500

// Trail is an append-only audit log, capped at maxEntries, flushed to disk
// on every record. Safe for concurrent use.
type Trail struct {
	mu      sync.Mutex
	path    string
	entries []string
}

// Open loads the audit trail from dataDir, starting empty when no file
// exists yet.
func Open(dataDir string) (*Trail, error) {
	t := &Trail{path: filepath.Join(dataDir, "audit.txt")}
	data, err := os.ReadFile(t.path)
	if err != nil {
		if os.IsNotExist(err) {
			return t, nil
		}
		return nil, fmt.Errorf("failed to read audit trail: %w", err)
	}
	for _, line := range strings.Split(string(data), "\n") {
		if line != "" {
			t.entries = append(t.entries, line)
		}
	}
	return t, nil
}

// Record appends a timestamped entry and writes the trail back to disk.
// The oldest entries are dropped once the cap is reached.
func (t *Trail) Record(who, what string) error {
	timestamp := time.Now().UTC().Format("Mon Jan 02, 2006 at 15:04:05 GMT")
	entry := fmt.Sprintf("%s: %s -> %s", timestamp, who, what)

	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries = append(t.entries, entry)
	if len(t.entries) > maxEntries {
		t.entries = t.entries[len(t.entries)-maxEntries:]
	}
	return os.WriteFile(t.path, []byte(strings.Join(t.entries, "\n")+"\n"), 0644)
}

// Entries returns a copy of the trail, oldest first.
func (t *Trail) Entries() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.entries...)
}

// Tail returns up to count of the most recent entries, oldest first.
func (t *Trail) Tail(count int) []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	if count >= len(t.entries) {
		return append([]string(nil), t.entries...)
	}
	return append([]string(nil), t.entries[len(t.entries)-count:]...)
}
