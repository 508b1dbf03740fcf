// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package fetch downloads resolved PDF objects to the local mirror through
// a bounded worker pool. Every input location yields exactly one outcome;
// a single item's failure never aborts the batch.
package fetch

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"gocloud.dev/blob"

	"github.com/pdiddy/pmid-mirror/internal/bucket"
	"github.com/pdiddy/pmid-mirror/internal/layout"
	"github.com/pdiddy/pmid-mirror/internal/progress"
	"github.com/pdiddy/pmid-mirror/pkg/types"
)

const (
	minWorkers = 4
	maxWorkers = 32

	defaultRetryAttempts = 3
	defaultRetryBackoff  = 500 * time.Millisecond
	defaultMaxBackoff    = 10 * time.Second
)

// DefaultWorkers returns the worker bound derived from CPU parallelism:
// twice the logical core count, clamped to [4, 32]. Callers compute this
// once at startup and pass it through Options; nothing reads CPU state
// during execution.
func DefaultWorkers() int {
	return min(max(runtime.NumCPU()*2, minWorkers), maxWorkers)
}

// Outcome is the result of fetching one resolved location. Exactly one
// Outcome is produced per input location, even on error.
type Outcome struct {
	PMID      string
	LocalPath string

	// Cached is set when the file already existed locally and no store
	// read was performed.
	Cached bool

	// Err is nil on success. On failure it preserves the distinguishing
	// reason, wrapped with retry context where retries were attempted.
	Err error
}

// Result summarizes a fetch batch.
type Result struct {
	Downloaded int
	Cached     int
	Failed     int
	Outcomes   []Outcome
}

// Total returns the number of locations processed.
func (r Result) Total() int {
	return r.Downloaded + r.Cached + r.Failed
}

// HasFailures reports whether any location failed.
func (r Result) HasFailures() bool {
	return r.Failed > 0
}

// Options configures a fetch batch.
type Options struct {
	// Workers bounds in-flight store reads. Zero selects DefaultWorkers().
	Workers int

	// Retry controls transient-failure retries. Zero fields select the
	// package defaults (3 attempts, 500ms doubling to a 10s cap).
	Retry types.RetryConfig

	// Progress is an optional progress reporter.
	Progress *progress.Reporter

	Log zerolog.Logger
}

// fetchStarted and fetchFinished bracket each store read, and
// downloadObject performs it. Declared as vars so tests can observe
// in-flight parallelism and inject per-key store failures.
var (
	fetchStarted   = func() {}
	fetchFinished  = func() {}
	downloadObject = download
)

// Fetch downloads every location into the layout under root. It verifies
// store access once up front: an unreachable store or rejected credentials
// abort the whole batch with a single error before any per-item work.
// Otherwise Fetch always returns one outcome per location; the returned
// error is non-nil only for the fatal preflight or a cancelled context.
func Fetch(ctx context.Context, b *blob.Bucket, found []types.Location, root string, opts Options) (Result, error) {
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers()
	}
	if opts.Retry.Attempts <= 0 {
		opts.Retry.Attempts = defaultRetryAttempts
	}
	if opts.Retry.Backoff <= 0 {
		opts.Retry.Backoff = defaultRetryBackoff
	}
	if opts.Retry.MaxBackoff <= 0 {
		opts.Retry.MaxBackoff = defaultMaxBackoff
	}

	if err := bucket.Preflight(ctx, b); err != nil {
		return Result{}, err
	}

	var (
		mu     sync.Mutex
		result Result
	)
	record := func(o Outcome) {
		mu.Lock()
		switch {
		case o.Err != nil:
			result.Failed++
		case o.Cached:
			result.Cached++
		default:
			result.Downloaded++
		}
		result.Outcomes = append(result.Outcomes, o)
		mu.Unlock()

		if opts.Progress != nil {
			switch {
			case o.Err != nil:
				opts.Progress.ItemFailed()
			case o.Cached:
				opts.Progress.ItemCached()
			default:
				opts.Progress.ItemCompleted()
			}
		}
	}

	jobs := make(chan types.Location)
	var wg sync.WaitGroup
	for i := 0; i < opts.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for loc := range jobs {
				record(fetchOne(ctx, b, loc, root, opts))
			}
		}()
	}

feed:
	for _, loc := range found {
		select {
		case jobs <- loc:
		case <-ctx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return result, fmt.Errorf("fetch cancelled: %w", err)
	}

	opts.Log.Info().Int("downloaded", result.Downloaded).Int("cached", result.Cached).
		Int("failed", result.Failed).Msg("fetch complete")
	return result, nil
}

// fetchOne produces the outcome for a single location: cache hit, download,
// or failure after retries.
func fetchOne(ctx context.Context, b *blob.Bucket, loc types.Location, root string, opts Options) Outcome {
	dest := layout.LocalPath(root, loc.PMID)
	if layout.Exists(dest) {
		return Outcome{PMID: loc.PMID, LocalPath: dest, Cached: true}
	}

	// Lazy, idempotent directory creation; concurrent MkdirAll for the
	// same prefix directory is safe.
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return Outcome{PMID: loc.PMID, Err: fmt.Errorf("creating directory: %w", err)}
	}

	backoff := opts.Retry.Backoff
	var lastErr error
	for attempt := 1; attempt <= opts.Retry.Attempts; attempt++ {
		err := downloadObject(ctx, b, loc.Key, dest)
		if err == nil {
			return Outcome{PMID: loc.PMID, LocalPath: dest}
		}
		lastErr = err

		if bucket.IsPermanent(err) || ctx.Err() != nil {
			break
		}
		if attempt == opts.Retry.Attempts {
			break
		}

		opts.Log.Warn().Err(err).Str("pmid", loc.PMID).Int("attempt", attempt).
			Dur("backoff", backoff).Msg("transient fetch failure, retrying")
		select {
		case <-ctx.Done():
			return Outcome{PMID: loc.PMID, Err: ctx.Err()}
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, opts.Retry.MaxBackoff)
	}

	opts.Log.Error().Err(lastErr).Str("pmid", loc.PMID).Str("key", loc.Key).Msg("fetch failed")
	return Outcome{PMID: loc.PMID, Err: fmt.Errorf("fetching %s: %w", loc.Key, lastErr)}
}

// download streams the object body to dest via a temporary file in the
// same directory, renamed into place on success. A crash mid-write never
// leaves a partial file where the cache check would find it.
func download(ctx context.Context, b *blob.Bucket, key, dest string) error {
	fetchStarted()
	defer fetchFinished()

	reader, err := b.NewReader(ctx, key, nil)
	if err != nil {
		return fmt.Errorf("opening object: %w", err)
	}
	defer reader.Close()

	tmpFile, err := os.CreateTemp(filepath.Dir(dest), ".fetch-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	_, copyErr := io.Copy(tmpFile, reader)
	closeErr := tmpFile.Close()
	if copyErr != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("writing object: %w", copyErr)
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
