package snapshot

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Sink stores named snapshot objects.
type Sink interface {
	Create(ctx context.Context, name string) (io.WriteCloser, error)
	Open(ctx context.Context, name string) (io.ReadCloser, error)
	// Location describes where name is stored, for logs.
	Location(name string) string
}

// FileSink stores snapshots as files under a directory.
type FileSink struct {
	dir string
}

// NewFileSink returns a sink rooted at dir, creating it if needed.
func NewFileSink(dir string) (*FileSink, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create snapshot directory: %w", err)
	}
	return &FileSink{dir: dir}, nil
}

// Create returns a writer that replaces name atomically on Close.
func (s *FileSink) Create(ctx context.Context, name string) (io.WriteCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	tmp, err := os.CreateTemp(s.dir, "."+filepath.Base(name)+".*.tmp")
	if err != nil {
		return nil, fmt.Errorf("failed to create snapshot file: %w", err)
	}
	return &atomicFile{File: tmp, target: s.Location(name)}, nil
}

// Open opens name for reading. A missing snapshot matches os.ErrNotExist.
func (s *FileSink) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(s.Location(name))
	if err != nil {
		return nil, fmt.Errorf("failed to open snapshot: %w", err)
	}
	return f, nil
}

// Location returns the file path of name.
func (s *FileSink) Location(name string) string {
	return filepath.Join(s.dir, filepath.Base(name))
}

type atomicFile struct {
	*os.File
	target string
}

func (f *atomicFile) Close() error {
	if err := f.File.Sync(); err != nil {
		_ = f.File.Close()
		_ = os.Remove(f.Name())
		return fmt.Errorf("failed to sync snapshot: %w", err)
	}
	if err := f.File.Close(); err != nil {
		_ = os.Remove(f.Name())
		return fmt.Errorf("failed to close snapshot: %w", err)
	}
	if err := os.Rename(f.Name(), f.target); err != nil {
		_ = os.Remove(f.Name())
		return fmt.Errorf("failed to move snapshot into place: %w", err)
	}
	return nil
}

// Abort discards the partial snapshot and keeps the previous one.
func (f *atomicFile) Abort() error {
	_ = f.File.Close()
	return os.Remove(f.Name())
}
