package storage

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDiskUsageBytes(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(dir, "tsrag.db")
	if err := os.WriteFile(db, []byte("hello"), 0644); err != nil {
		t.Fatal(err)
	}
	snaps := filepath.Join(dir, "snapshots")
	if err := os.Mkdir(snaps, 0755); err != nil {
		t.Fatal(err)
	}
	for name, body := range map[string]string{"a.snap": "ab", "b.snap": "c"} {
		if err := os.WriteFile(filepath.Join(snaps, name), []byte(body), 0644); err != nil {
			t.Fatal(err)
		}
	}

	tests := []struct {
		name  string
		paths []string
		want  int64
	}{
		{"single file", []string{db}, 5},
		{"directory", []string{snaps}, 3},
		{"file and directory", []string{db, snaps}, 8},
		{"missing path skipped", []string{db, filepath.Join(dir, "nope"), snaps}, 8},
		{"empty path skipped", []string{"", db}, 5},
		{"sqlite sidecars", SidecarPaths(db), 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DiskUsageBytes(tt.paths...)
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("DiskUsageBytes = %d, want %d", got, tt.want)
			}
		})
	}
	if SidecarPaths("") != nil {
		t.Error("SidecarPaths(\"\") should be nil")
	}
}
