// Package fileid derives stable identifiers for ingested content.
package fileid

import (
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
)

const contentPrefix = "sha256:"

// ContentID returns a digest of content. Identical bytes always yield the same ID,
// whatever file name they arrive under.
func ContentID(content []byte) string {
	sum := sha256.Sum256(content)
	return contentPrefix + hex.EncodeToString(sum[:])
}

// SourceName returns the name a file is recorded under: its cleaned path relative
// to root when it lies inside root, otherwise its base name.
func SourceName(root, path string) string {
	clean := filepath.Clean(path)
	if root != "" {
		if rel, err := filepath.Rel(filepath.Clean(root), clean); err == nil && rel != "." && !filepath.IsAbs(rel) && !startsWithParent(rel) {
			return filepath.ToSlash(rel)
		}
	}
	return filepath.Base(clean)
}

func startsWithParent(rel string) bool {
	return rel == ".." || len(rel) > 2 && rel[:3] == ".."+string(filepath.Separator)
}
