package store

import (
	"bufio"
	"bytes"
	"encoding/json"
	"os"
	"sync"
	"time"
)

// lineCountEntry is one precomputed count plus the file state it was
// computed against, so drift can be detected later.
type lineCountEntry struct {
	count   int
	modTime time.Time
	size    int64
}

// LineCountIndex caches per-file record counts: non-blank lines holding a
// well-formed JSON object. Counting validity (without a full decode) keeps
// the unfiltered count consistent with what a scan would return when a file
// carries corrupt lines. Counts are computed lazily on first access and
// treated as valid for the process lifetime, since the backing files are
// read-only by contract. Concurrent first accesses on the same file may both
// count it; the duplicate work is harmless.
type LineCountIndex struct {
	mu      sync.RWMutex
	entries map[string]lineCountEntry
}

// NewLineCountIndex creates an empty line count index.
func NewLineCountIndex() *LineCountIndex {
	return &LineCountIndex{entries: make(map[string]lineCountEntry)}
}

// Count returns the record count of a file, computing and memoizing it on
// first access. A file missing from disk counts as zero.
func (li *LineCountIndex) Count(path string) (int, error) {
	li.mu.RLock()
	entry, ok := li.entries[path]
	li.mu.RUnlock()
	if ok {
		return entry.count, nil
	}

	entry, err := countLines(path)
	if err != nil {
		return 0, err
	}

	li.mu.Lock()
	li.entries[path] = entry
	li.mu.Unlock()
	return entry.count, nil
}

// Total sums the counts of the given files.
func (li *LineCountIndex) Total(paths []string) (int, error) {
	total := 0
	for _, path := range paths {
		n, err := li.Count(path)
		if err != nil {
			return 0, err
		}
		total += n
	}
	return total, nil
}

// Invalidate drops the cached count for a file.
func (li *LineCountIndex) Invalidate(path string) {
	li.mu.Lock()
	defer li.mu.Unlock()
	delete(li.entries, path)
}

// Clear drops all cached counts.
func (li *LineCountIndex) Clear() {
	li.mu.Lock()
	defer li.mu.Unlock()
	li.entries = make(map[string]lineCountEntry)
}

// Len returns the number of files with a cached count.
func (li *LineCountIndex) Len() int {
	li.mu.RLock()
	defer li.mu.RUnlock()
	return len(li.entries)
}

// Drifted returns the cached files whose size or mtime on disk no longer
// matches the state recorded when they were counted.
func (li *LineCountIndex) Drifted() []string {
	li.mu.RLock()
	defer li.mu.RUnlock()

	var drifted []string
	for path, entry := range li.entries {
		info, err := os.Stat(path)
		if err != nil {
			if entry.count != 0 {
				drifted = append(drifted, path)
			}
			continue
		}
		if info.Size() != entry.size || !info.ModTime().Equal(entry.modTime) {
			drifted = append(drifted, path)
		}
	}
	return drifted
}

// countLines counts record lines, recording the file state alongside.
func countLines(path string) (lineCountEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return lineCountEntry{}, nil
		}
		return lineCountEntry{}, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return lineCountEntry{}, err
	}

	entry := lineCountEntry{modTime: info.ModTime(), size: info.Size()}
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) > 0 && line[0] == '{' && json.Valid(line) {
			entry.count++
		}
	}
	if err := scanner.Err(); err != nil {
		return lineCountEntry{}, err
	}
	return entry, nil
}
