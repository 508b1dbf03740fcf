// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package verify scans the local mirror for corrupt downloads. A PDF is
// considered valid when it starts with the "%PDF-" magic header; anything
// else (truncated body, HTML error page saved as .pdf) is flagged for
// re-download.
package verify

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"
)

var pdfMagic = []byte("%PDF-")

// Result summarizes one verification scan.
type Result struct {
	Total        int
	Valid        int
	Invalid      int
	InvalidPaths []string
}

// IsValidPDF reports whether the file at path starts with the PDF magic
// header. Unreadable files are invalid.
func IsValidPDF(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()

	header := make([]byte, len(pdfMagic))
	if _, err := f.Read(header); err != nil {
		return false
	}
	return string(header) == string(pdfMagic)
}

// Scan walks root for .pdf files and validates them with up to workers
// concurrent checks. InvalidPaths is sorted for stable output.
func Scan(ctx context.Context, root string, workers int) (Result, error) {
	if workers <= 0 {
		workers = 4
	}

	var paths []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.EqualFold(filepath.Ext(path), ".pdf") {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return Result{}, fmt.Errorf("walking %s: %w", root, err)
	}

	var (
		mu     sync.Mutex
		result = Result{Total: len(paths)}
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, path := range paths {
		path := path
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			ok := IsValidPDF(path)

			mu.Lock()
			defer mu.Unlock()
			if ok {
				result.Valid++
			} else {
				result.Invalid++
				result.InvalidPaths = append(result.InvalidPaths, path)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Result{}, fmt.Errorf("scanning %s: %w", root, err)
	}

	sort.Strings(result.InvalidPaths)
	return result, nil
}
