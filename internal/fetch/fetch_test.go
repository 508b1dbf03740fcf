// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package fetch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocloud.dev/blob"
	_ "gocloud.dev/blob/memblob"

	"github.com/pdiddy/pmid-mirror/internal/layout"
	"github.com/pdiddy/pmid-mirror/pkg/types"
)

const pdfBody = "%PDF-1.4 fake body"

// fastRetry keeps test sleeps negligible.
var fastRetry = types.RetryConfig{Attempts: 3, Backoff: time.Millisecond, MaxBackoff: 5 * time.Millisecond}

func newTestBucket(t *testing.T, keys ...string) *blob.Bucket {
	t.Helper()
	ctx := context.Background()
	b, err := blob.OpenBucket(ctx, "mem://")
	require.NoError(t, err)
	t.Cleanup(func() { b.Close() })

	for _, key := range keys {
		require.NoError(t, b.WriteAll(ctx, key, []byte(pdfBody), nil))
	}
	return b
}

func loc(pmid, key string) types.Location {
	return types.Location{PMID: pmid, Key: key, URI: "s3://test-bucket/" + key}
}

func testOpts() Options {
	return Options{Workers: 4, Retry: fastRetry, Log: zerolog.Nop()}
}

func TestFetchDownloadsToLayout(t *testing.T) {
	// The worked example's fetch half: two resolved objects, one under the
	// legacy key, land at <root>/123/<pmid>.pdf.
	b := newTestBucket(t, "pdfs/123456.pdf", "pdfs//123457.pdf")
	root := t.TempDir()

	found := []types.Location{
		loc("123456", "pdfs/123456.pdf"),
		loc("123457", "pdfs//123457.pdf"),
	}
	result, err := Fetch(context.Background(), b, found, root, testOpts())
	require.NoError(t, err)

	assert.Equal(t, 2, result.Downloaded)
	assert.Zero(t, result.Cached)
	assert.Zero(t, result.Failed)
	assert.False(t, result.HasFailures())
	require.Len(t, result.Outcomes, 2)

	for _, pmid := range []string{"123456", "123457"} {
		path := filepath.Join(root, "123", pmid+".pdf")
		data, err := os.ReadFile(path)
		require.NoError(t, err, "expected %s", path)
		assert.Equal(t, pdfBody, string(data))
	}
}

func TestFetchCachedSkipsStoreReads(t *testing.T) {
	b := newTestBucket(t, "pdfs/123456.pdf", "pdfs/123457.pdf")
	root := t.TempDir()
	found := []types.Location{
		loc("123456", "pdfs/123456.pdf"),
		loc("123457", "pdfs/123457.pdf"),
	}

	var reads atomic.Int32
	origStarted := fetchStarted
	fetchStarted = func() { reads.Add(1) }
	t.Cleanup(func() { fetchStarted = origStarted })

	first, err := Fetch(context.Background(), b, found, root, testOpts())
	require.NoError(t, err)
	assert.Equal(t, 2, first.Downloaded)
	assert.Equal(t, int32(2), reads.Load())

	// Re-run: everything is on disk, so zero store reads and all cached.
	second, err := Fetch(context.Background(), b, found, root, testOpts())
	require.NoError(t, err)
	assert.Equal(t, 2, second.Cached)
	assert.Zero(t, second.Downloaded)
	assert.Zero(t, second.Failed)
	assert.Equal(t, int32(2), reads.Load(), "cached re-run must not touch the store")
}

func TestFetchEmptyLocalFileNotTreatedAsCached(t *testing.T) {
	b := newTestBucket(t, "pdfs/123456.pdf")
	root := t.TempDir()

	dest := layout.LocalPath(root, "123456")
	require.NoError(t, os.MkdirAll(filepath.Dir(dest), 0o755))
	require.NoError(t, os.WriteFile(dest, nil, 0o644))

	result, err := Fetch(context.Background(), b, []types.Location{loc("123456", "pdfs/123456.pdf")}, root, testOpts())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Downloaded, "empty file must be re-downloaded")

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, pdfBody, string(data))
}

func TestFetchTransientFailureRetriesThenSucceeds(t *testing.T) {
	b := newTestBucket(t, "pdfs/123456.pdf")
	root := t.TempDir()

	var calls atomic.Int32
	orig := downloadObject
	downloadObject = func(ctx context.Context, b *blob.Bucket, key, dest string) error {
		if calls.Add(1) <= 2 {
			return errors.New("simulated timeout")
		}
		return orig(ctx, b, key, dest)
	}
	t.Cleanup(func() { downloadObject = orig })

	result, err := Fetch(context.Background(), b, []types.Location{loc("123456", "pdfs/123456.pdf")}, root, testOpts())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Downloaded)
	assert.Equal(t, int32(3), calls.Load())
}

func TestFetchExhaustedRetriesPreserveReason(t *testing.T) {
	b := newTestBucket(t, "pdfs/123456.pdf", "pdfs/123457.pdf")
	root := t.TempDir()

	orig := downloadObject
	downloadObject = func(ctx context.Context, b *blob.Bucket, key, dest string) error {
		if key == "pdfs/123456.pdf" {
			return errors.New("simulated throttling")
		}
		return orig(ctx, b, key, dest)
	}
	t.Cleanup(func() { downloadObject = orig })

	found := []types.Location{
		loc("123456", "pdfs/123456.pdf"),
		loc("123457", "pdfs/123457.pdf"),
	}
	result, err := Fetch(context.Background(), b, found, root, testOpts())
	require.NoError(t, err, "per-item failure must not abort the batch")

	assert.Equal(t, 1, result.Failed)
	assert.Equal(t, 1, result.Downloaded, "sibling items must be unaffected")
	require.Len(t, result.Outcomes, 2)

	var failed *Outcome
	for i := range result.Outcomes {
		if result.Outcomes[i].Err != nil {
			failed = &result.Outcomes[i]
		}
	}
	require.NotNil(t, failed)
	assert.Equal(t, "123456", failed.PMID)
	assert.Contains(t, failed.Err.Error(), "simulated throttling")
}

func TestFetchPermanentFailureNoRetry(t *testing.T) {
	// Object resolved earlier but since deleted: NotFound is permanent, so
	// exactly one attempt is made.
	b := newTestBucket(t)
	root := t.TempDir()

	var calls atomic.Int32
	origStarted := fetchStarted
	fetchStarted = func() { calls.Add(1) }
	t.Cleanup(func() { fetchStarted = origStarted })

	result, err := Fetch(context.Background(), b, []types.Location{loc("123456", "pdfs/123456.pdf")}, root, testOpts())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Failed)
	assert.Equal(t, int32(1), calls.Load(), "permanent errors must not be retried")
}

func TestFetchWorkerBound(t *testing.T) {
	const n, bound = 40, 3

	var keys []string
	var found []types.Location
	for i := 0; i < n; i++ {
		pmid := fmt.Sprintf("%06d", 100000+i)
		key := "pdfs/" + pmid + ".pdf"
		keys = append(keys, key)
		found = append(found, loc(pmid, key))
	}
	b := newTestBucket(t, keys...)
	root := t.TempDir()

	var (
		mu       sync.Mutex
		inFlight int
		peak     int
	)
	origStarted, origFinished := fetchStarted, fetchFinished
	fetchStarted = func() {
		mu.Lock()
		inFlight++
		if inFlight > peak {
			peak = inFlight
		}
		mu.Unlock()
		time.Sleep(2 * time.Millisecond)
	}
	fetchFinished = func() {
		mu.Lock()
		inFlight--
		mu.Unlock()
	}
	t.Cleanup(func() { fetchStarted, fetchFinished = origStarted, origFinished })

	opts := testOpts()
	opts.Workers = bound
	result, err := Fetch(context.Background(), b, found, root, opts)
	require.NoError(t, err)

	assert.Equal(t, n, result.Downloaded)
	assert.LessOrEqual(t, peak, bound, "in-flight fetches exceeded the worker bound")
	assert.Positive(t, peak)
}

func TestFetchOneOutcomePerLocation(t *testing.T) {
	b := newTestBucket(t, "pdfs/111111.pdf", "pdfs/333333.pdf")
	root := t.TempDir()

	found := []types.Location{
		loc("111111", "pdfs/111111.pdf"),
		loc("222222", "pdfs/222222.pdf"), // absent: fails
		loc("333333", "pdfs/333333.pdf"),
	}
	result, err := Fetch(context.Background(), b, found, root, testOpts())
	require.NoError(t, err)

	assert.Equal(t, len(found), result.Total())
	require.Len(t, result.Outcomes, len(found))

	seen := make(map[string]int)
	for _, o := range result.Outcomes {
		seen[o.PMID]++
	}
	for _, l := range found {
		assert.Equal(t, 1, seen[l.PMID], "exactly one outcome for %s", l.PMID)
	}
}

func TestFetchNoPartialFileOnFailure(t *testing.T) {
	b := newTestBucket(t)
	root := t.TempDir()

	result, err := Fetch(context.Background(), b, []types.Location{loc("123456", "pdfs/123456.pdf")}, root, testOpts())
	require.NoError(t, err)
	require.Equal(t, 1, result.Failed)

	// Neither the destination nor any temp file may remain.
	assert.False(t, layout.Exists(layout.LocalPath(root, "123456")))
	matches, err := filepath.Glob(filepath.Join(root, "123", ".fetch-*.tmp"))
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestFetchCancelledContext(t *testing.T) {
	b := newTestBucket(t, "pdfs/123456.pdf")
	root := t.TempDir()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Fetch(ctx, b, []types.Location{loc("123456", "pdfs/123456.pdf")}, root, testOpts())
	require.Error(t, err)
}

func TestDefaultWorkersClamped(t *testing.T) {
	w := DefaultWorkers()
	assert.GreaterOrEqual(t, w, 4)
	assert.LessOrEqual(t, w, 32)
}
