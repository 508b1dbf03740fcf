// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package acquire downloads PDFs over HTTP for PMIDs the object store does
// not hold. Each item carries a primary and an optional backup publisher
// URL; the first URL that yields a PDF wins. Files land in the same local
// layout the fetch stage writes, so a later mirror pass sees them as cached.
package acquire

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/pdiddy/pmid-mirror/internal/httputil"
	"github.com/pdiddy/pmid-mirror/internal/inventory"
	"github.com/pdiddy/pmid-mirror/internal/layout"
	"github.com/pdiddy/pmid-mirror/pkg/types"
)

// BatchResult holds the outcome of a batch acquisition run.
type BatchResult struct {
	Downloaded int
	Skipped    int
	Failed     int
}

// Total returns the total number of items processed.
func (r BatchResult) Total() int {
	return r.Downloaded + r.Skipped + r.Failed
}

// HasFailures reports whether any items failed.
func (r BatchResult) HasFailures() bool {
	return r.Failed > 0
}

// AcquirePDF downloads the PDF for one item, trying the primary URL first
// and the backup on any failure. If the destination file already exists it
// skips the download. The skipped return value reports that case.
func AcquirePDF(ctx context.Context, client *http.Client, item inventory.Item, cfg types.AcquireConfig, w io.Writer) (skipped bool, err error) {
	dest := layout.LocalPath(cfg.DestDir, item.PMID)
	if layout.Exists(dest) {
		fmt.Fprintf(w, "skipped: %s (already exists)\n", item.PMID)
		return true, nil
	}

	if item.URL == "" && item.BackupURL == "" {
		return false, fmt.Errorf("no URL for PMID %s", item.PMID)
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return false, fmt.Errorf("creating directory: %w", err)
	}

	var lastErr error
	for _, url := range []string{item.URL, item.BackupURL} {
		if url == "" {
			continue
		}
		if err := downloadFile(ctx, client, url, dest, cfg); err != nil {
			fmt.Fprintf(w, "  warning: %s failed for %s: %v\n", url, item.PMID, err)
			lastErr = err
			continue
		}
		return false, nil
	}
	return false, fmt.Errorf("all URLs failed for PMID %s: %w", item.PMID, lastErr)
}

// AcquireBatch processes the items sequentially, printing per-item status
// and returning a summary. It continues after individual failures and
// applies a delay between consecutive downloads to stay polite to
// publisher servers.
func AcquireBatch(ctx context.Context, client *http.Client, items []inventory.Item, cfg types.AcquireConfig, w io.Writer) BatchResult {
	var result BatchResult
	for i, item := range items {
		if i > 0 && cfg.DownloadDelay > 0 {
			select {
			case <-ctx.Done():
				result.Failed += len(items) - i
				fmt.Fprintf(w, "cancelled with %d items remaining\n", len(items)-i)
				return result
			case <-time.After(cfg.DownloadDelay):
			}
		}

		wasSkipped, err := AcquirePDF(ctx, client, item, cfg, w)
		switch {
		case err != nil:
			fmt.Fprintf(w, "failed:  %s (%v)\n", item.PMID, err)
			result.Failed++
		case wasSkipped:
			result.Skipped++
		default:
			fmt.Fprintf(w, "downloaded: %s\n", item.PMID)
			result.Downloaded++
		}
	}
	fmt.Fprintf(w, "\nAcquire summary: %d downloaded, %d skipped, %d failed (total: %d)\n",
		result.Downloaded, result.Skipped, result.Failed, result.Total())
	return result
}

// downloadFile fetches url to dest using a temporary file renamed into
// place on success. Throttling responses are retried by the HTTP helper.
func downloadFile(ctx context.Context, client *http.Client, url, dest string, cfg types.AcquireConfig) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", cfg.UserAgent)
	req.Header.Set("Accept", "application/pdf")

	resp, err := httputil.DoWithRetry(ctx, client, req, 0)
	if err != nil {
		return fmt.Errorf("HTTP request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("HTTP %d from %s", resp.StatusCode, url)
	}

	tmpFile, err := os.CreateTemp(filepath.Dir(dest), ".acquire-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	_, copyErr := io.Copy(tmpFile, resp.Body)
	closeErr := tmpFile.Close()
	if copyErr != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("writing download: %w", copyErr)
	}
	if closeErr != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing temp file: %w", closeErr)
	}

	if err := os.Rename(tmpPath, dest); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}
