// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package progress prints periodic status lines for long-running batches.
package progress

import (
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"
)

// Reporter accumulates per-item counters and prints a status line at a
// fixed interval. All counter methods are safe for concurrent use.
type Reporter struct {
	total    int
	label    string
	out      io.Writer
	interval time.Duration

	completed atomic.Int64
	cached    atomic.Int64
	failed    atomic.Int64

	start   time.Time
	stopCh  chan struct{}
	mu      sync.Mutex
	stopped bool
}

// NewReporter creates a reporter for total items. A nil out defaults to
// stderr so progress never mixes with artifact output on stdout.
func NewReporter(label string, total int, out io.Writer) *Reporter {
	if out == nil {
		out = os.Stderr
	}
	return &Reporter{
		total:    total,
		label:    label,
		out:      out,
		interval: 2 * time.Second,
		stopCh:   make(chan struct{}),
	}
}

// Start begins printing status lines until Stop is called.
func (r *Reporter) Start() {
	r.start = time.Now()
	go func() {
		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				r.print()
			case <-r.stopCh:
				return
			}
		}
	}()
}

// Stop halts the ticker and prints a final line. Safe to call more than once.
func (r *Reporter) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopped {
		return
	}
	r.stopped = true
	close(r.stopCh)
	r.print()
}

// ItemCompleted records one successfully fetched item.
func (r *Reporter) ItemCompleted() { r.completed.Add(1) }

// ItemCached records one item skipped because it was already on disk.
func (r *Reporter) ItemCached() { r.cached.Add(1) }

// ItemFailed records one failed item.
func (r *Reporter) ItemFailed() { r.failed.Add(1) }

// Done returns the number of items with an outcome so far.
func (r *Reporter) Done() int64 {
	return r.completed.Load() + r.cached.Load() + r.failed.Load()
}

func (r *Reporter) print() {
	done := r.Done()
	elapsed := time.Since(r.start).Round(time.Second)
	fmt.Fprintf(r.out, "[%s] %d/%d done (%d downloaded, %d cached, %d failed) in %s\n",
		r.label, done, r.total, r.completed.Load(), r.cached.Load(), r.failed.Load(), elapsed)
}
