// Package fileid derives document IDs from file paths.
package fileid

import (
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
	"strings"
)

const (
	prefix = "file:"
	// hashBytes is the number of sha256 bytes kept in an ID.
	hashBytes = 16
)

// FileDocID returns a stable document ID for the given absolute path.
// Paths are cleaned and use forward slashes, so the same file yields the same
// ID on every platform.
func FileDocID(absolutePath string) string {
	normalized := filepath.ToSlash(filepath.Clean(absolutePath))
	hash := sha256.Sum256([]byte(normalized))
	return prefix + hex.EncodeToString(hash[:hashBytes])
}

// IsFileDocID reports whether id has the shape of an ID produced by FileDocID.
func IsFileDocID(id string) bool {
	digest, ok := strings.CutPrefix(id, prefix)
	if !ok || len(digest) != 2*hashBytes {
		return false
	}
	_, err := hex.DecodeString(digest)
	return err == nil
}
