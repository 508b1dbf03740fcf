// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package layout computes the local mirror directory layout. The layout is
// a contract consumed by downstream batch tooling that reads whole
// directories of PDFs, so it must stay deterministic across runs.
package layout

import (
	"os"
	"path/filepath"
)

// otherDir collects PMIDs too short to yield a three-character prefix.
const otherDir = "other"

// Subdir returns the mirror subdirectory for a PMID: its first three
// characters, or "other" for shorter identifiers.
func Subdir(pmid string) string {
	if len(pmid) < 3 {
		return otherDir
	}
	return pmid[:3]
}

// LocalPath returns the destination path for a PMID's PDF under root.
func LocalPath(root, pmid string) string {
	return filepath.Join(root, Subdir(pmid), pmid+".pdf")
}

// Exists reports whether path is a non-empty regular file. An empty file
// is treated as absent so a truncated artifact is never mistaken for a
// cached download.
func Exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular() && info.Size() > 0
}
