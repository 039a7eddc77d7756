package store

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func Test_LineCountIndex_CountsRecords(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "patients.ndjson")
	content := `{"id":"p-1"}

{"id":"p-2"}
{"broken":
{"id":"p-3"}
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}

	li := NewLineCountIndex()
	n, err := li.Count(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 3 {
		t.Errorf("expected 3 records (blank and broken lines excluded), got %d", n)
	}
}

func Test_LineCountIndex_MissingFileIsZero(t *testing.T) {
	li := NewLineCountIndex()
	n, err := li.Count(filepath.Join(t.TempDir(), "nope.ndjson"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 0 {
		t.Errorf("expected 0 for missing file, got %d", n)
	}
}

func Test_LineCountIndex_Memoizes(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "patients.ndjson")
	if err := os.WriteFile(path, []byte(`{"id":"p-1"}`+"\n"), 0644); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}

	li := NewLineCountIndex()
	if _, err := li.Count(path); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// The cached count survives the file being rewritten; only Invalidate
	// or Clear drops it.
	if err := os.WriteFile(path, []byte(`{"id":"p-1"}`+"\n"+`{"id":"p-2"}`+"\n"), 0644); err != nil {
		t.Fatalf("rewriting fixture: %v", err)
	}
	n, err := li.Count(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 1 {
		t.Errorf("expected memoized 1, got %d", n)
	}

	li.Invalidate(path)
	n, err = li.Count(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 2 {
		t.Errorf("expected recount 2 after invalidation, got %d", n)
	}
}

func Test_LineCountIndex_Total(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.ndjson")
	b := filepath.Join(dir, "b.ndjson")
	os.WriteFile(a, []byte(`{"id":"1"}`+"\n"+`{"id":"2"}`+"\n"), 0644)
	os.WriteFile(b, []byte(`{"id":"3"}`+"\n"), 0644)

	li := NewLineCountIndex()
	total, err := li.Total([]string{a, b, filepath.Join(dir, "missing.ndjson")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 3 {
		t.Errorf("expected 3, got %d", total)
	}
}

func Test_LineCountIndex_Drifted(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.ndjson")
	os.WriteFile(path, []byte(`{"id":"1"}`+"\n"), 0644)

	li := NewLineCountIndex()
	if _, err := li.Count(path); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if drifted := li.Drifted(); len(drifted) != 0 {
		t.Errorf("expected no drift, got %v", drifted)
	}

	os.WriteFile(path, []byte(`{"id":"1"}`+"\n"+`{"id":"2"}`+"\n"), 0644)
	// Ensure a distinct mtime even on coarse filesystems.
	future := time.Now().Add(2 * time.Second)
	os.Chtimes(path, future, future)

	drifted := li.Drifted()
	if len(drifted) != 1 || drifted[0] != path {
		t.Errorf("expected %s to be reported as drifted, got %v", path, drifted)
	}
}

func Test_LineCountIndex_Clear(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.ndjson")
	os.WriteFile(path, []byte(`{"id":"1"}`+"\n"), 0644)

	li := NewLineCountIndex()
	li.Count(path)
	if li.Len() != 1 {
		t.Fatalf("expected 1 entry, got %d", li.Len())
	}
	li.Clear()
	if li.Len() != 0 {
		t.Errorf("expected 0 after clear, got %d", li.Len())
	}
}
