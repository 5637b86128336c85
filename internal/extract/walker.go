package extract

import (
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// DefaultPatterns matches every supported file type.
var DefaultPatterns = []string{"**/*.csv", "**/*.tsv", "**/*.xlsx"}

// Walker lists files under a root that match include patterns and no exclude
// pattern. Patterns use doublestar syntax against slash-separated relative paths.
type Walker struct {
	includes []string
	excludes []string
}

// NewWalker returns a Walker. No includes means DefaultPatterns.
func NewWalker(includes, excludes []string) *Walker {
	if len(includes) == 0 {
		includes = DefaultPatterns
	}
	return &Walker{includes: includes, excludes: excludes}
}

// FileInfo describes a matched file.
type FileInfo struct {
	Path    string
	ModTime int64
	Size    int64
}

// Walk returns matching files under root in lexical order. Hidden directories are skipped.
func (w *Walker) Walk(root string) ([]FileInfo, error) {
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	var files []FileInfo
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if d.IsDir() {
			if rel != "." && (strings.HasPrefix(d.Name(), ".") || w.excluded(rel+"/")) {
				return filepath.SkipDir
			}
			return nil
		}
		if !w.Match(rel) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		files = append(files, FileInfo{Path: path, ModTime: info.ModTime().Unix(), Size: info.Size()})
		return nil
	})
	return files, err
}

// Match reports whether the slash-separated relative path is included and not excluded.
func (w *Walker) Match(rel string) bool {
	return matchAny(w.includes, rel) && !w.excluded(rel)
}

func (w *Walker) excluded(rel string) bool {
	return matchAny(w.excludes, rel)
}

func matchAny(patterns []string, path string) bool {
	for _, pattern := range patterns {
		if ok, err := doublestar.Match(pattern, path); err == nil && ok {
			return true
		}
	}
	return false
}
