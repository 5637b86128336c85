package watcher

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

type recorder struct {
	mu      sync.Mutex
	indexed []string
	removed []string
}

func (r *recorder) onIndex(path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.indexed = append(r.indexed, path)
}

func (r *recorder) onRemove(path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removed = append(r.removed, path)
}

func (r *recorder) snapshot() ([]string, []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.indexed...), append([]string(nil), r.removed...)
}

func hasSuffix(paths []string, suffix string) bool {
	for _, p := range paths {
		if strings.HasSuffix(p, suffix) {
			return true
		}
	}
	return false
}

func startWatcher(t *testing.T, dir string, rec *recorder, excludes ...string) *Watcher {
	t.Helper()
	w := NewWatcher([]string{dir}, nil, excludes, rec.onIndex, rec.onRemove, WithDebounce(50*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(w.Stop)
	return w
}

func TestWatcher_DebounceAndPatterns(t *testing.T) {
	dir := t.TempDir()
	rec := &recorder{}
	startWatcher(t, dir, rec)

	path := filepath.Join(dir, "load.csv")
	for i := 0; i < 3; i++ {
		if err := writeFile(path, "v\n1\n"); err != nil {
			t.Fatal(err)
		}
	}
	if err := writeFile(filepath.Join(dir, "notes.md"), "x"); err != nil {
		t.Fatal(err)
	}
	time.Sleep(400 * time.Millisecond)

	indexed, _ := rec.snapshot()
	if len(indexed) != 1 || !strings.HasSuffix(indexed[0], "load.csv") {
		t.Errorf("expected one debounced index of load.csv, got %v", indexed)
	}

	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}
	time.Sleep(200 * time.Millisecond)
	if _, removed := rec.snapshot(); !hasSuffix(removed, "load.csv") {
		t.Errorf("expected remove callback, got %v", removed)
	}
}

func TestWatcher_NewDirectory(t *testing.T) {
	dir := t.TempDir()
	rec := &recorder{}
	startWatcher(t, dir, rec, "**/ignored/**")

	nested := filepath.Join(dir, "level1", "level2")
	if err := os.MkdirAll(nested, 0755); err != nil {
		t.Fatal(err)
	}
	if err := writeFile(filepath.Join(nested, "deep.xlsx"), "x"); err != nil {
		t.Fatal(err)
	}
	ignored := filepath.Join(dir, "ignored")
	if err := os.MkdirAll(ignored, 0755); err != nil {
		t.Fatal(err)
	}
	if err := writeFile(filepath.Join(ignored, "skip.csv"), "1"); err != nil {
		t.Fatal(err)
	}
	time.Sleep(500 * time.Millisecond)

	indexed, _ := rec.snapshot()
	if !hasSuffix(indexed, "deep.xlsx") {
		t.Errorf("expected deep.xlsx to be indexed, got %v", indexed)
	}
	if hasSuffix(indexed, "skip.csv") {
		t.Errorf("excluded file indexed: %v", indexed)
	}
}

func TestWatcher_SyncExistingFiles(t *testing.T) {
	dir := t.TempDir()
	if err := writeFile(filepath.Join(dir, "a.csv"), "1"); err != nil {
		t.Fatal(err)
	}
	if err := writeFile(filepath.Join(dir, "ignore.xyz"), "x"); err != nil {
		t.Fatal(err)
	}
	rec := &recorder{}
	w := startWatcher(t, dir, rec)
	w.SyncExistingFiles()

	indexed, _ := rec.snapshot()
	if len(indexed) != 1 || !strings.HasSuffix(indexed[0], "a.csv") {
		t.Errorf("expected only a.csv, got %v", indexed)
	}
}

func TestWatcher_StartCreatesMissingRoot(t *testing.T) {
	root := filepath.Join(t.TempDir(), "watch", "me")
	rec := &recorder{}
	w := startWatcher(t, root, rec)
	if _, err := os.Stat(root); err != nil {
		t.Errorf("root should exist after Start: %v", err)
	}
	if dirs := w.Directories(); len(dirs) != 1 || dirs[0] != root {
		t.Errorf("Directories() = %v", dirs)
	}
}

func TestRelUnder(t *testing.T) {
	tests := []struct {
		dir, path string
		want      string
		ok        bool
	}{
		{"/tmp/a", "/tmp/a/b.csv", "b.csv", true},
		{"/tmp/a", "/tmp/a/x/y.csv", "x/y.csv", true},
		{"/tmp/a", "/tmp/a", "", false},
		{"/tmp/a", "/tmp/b/c.csv", "", false},
	}
	for _, tt := range tests {
		got, ok := relUnder(tt.dir, tt.path)
		if got != tt.want || ok != tt.ok {
			t.Errorf("relUnder(%q, %q) = %q, %v", tt.dir, tt.path, got, ok)
		}
	}
}

func writeFile(path, content string) error {
	return os.WriteFile(path, []byte(content), 0600)
}
