// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package resolve partitions a PMID set into PDFs that exist in the object
// store and PMIDs with no stored PDF. Checks are metadata-only; no object
// bodies are fetched.
package resolve

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"gocloud.dev/blob"
	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/pmid-mirror/pkg/types"
)

const (
	defaultCanonicalPrefix = "pdfs/"
	defaultLegacyPrefix    = "pdfs//"
	defaultWorkers         = 16
)

// Resolver checks PDF existence for PMIDs against one bucket.
type Resolver struct {
	bucket     *blob.Bucket
	bucketName string
	canonical  string
	legacy     string
	workers    int
	log        zerolog.Logger
}

// New builds a Resolver. The worker bound is fixed here, at construction,
// and never read from ambient state during execution. An empty legacy
// prefix defaults to the canonical prefix with its trailing separator
// doubled, matching the historical uploader defect.
func New(b *blob.Bucket, bucketName string, cfg types.ResolveConfig, log zerolog.Logger) *Resolver {
	canonical := cfg.CanonicalPrefix
	if canonical == "" {
		canonical = defaultCanonicalPrefix
	}
	legacy := cfg.LegacyPrefix
	if legacy == "" {
		if canonical == defaultCanonicalPrefix {
			legacy = defaultLegacyPrefix
		} else {
			legacy = canonical + "/"
		}
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = defaultWorkers
	}
	return &Resolver{
		bucket:     b,
		bucketName: bucketName,
		canonical:  canonical,
		legacy:     legacy,
		workers:    workers,
		log:        log,
	}
}

// Resolve checks every PMID and returns the found/missing partition. Each
// PMID is checked under the canonical prefix first; only on a miss is the
// legacy double-separator prefix checked. Both checks are a permanent
// compatibility rule: the store still holds objects uploaded under the
// defective key scheme, so any port of this layer must keep both.
//
// A store error on a single check classifies that PMID as missing, bumps
// CheckFailed, and logs the reason; it never aborts the remaining checks.
// Resolve returns an error only when ctx is cancelled.
func (r *Resolver) Resolve(ctx context.Context, pmids []string) (types.Resolution, error) {
	var (
		mu  sync.Mutex
		res types.Resolution
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)

	for _, pmid := range pmids {
		pmid := pmid
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			loc, failed := r.resolveOne(gctx, pmid)

			mu.Lock()
			defer mu.Unlock()
			if failed {
				res.CheckFailed++
			}
			if loc != nil {
				res.Found = append(res.Found, *loc)
			} else {
				res.Missing = append(res.Missing, pmid)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return types.Resolution{}, fmt.Errorf("resolving PMIDs: %w", err)
	}

	r.log.Info().Int("found", len(res.Found)).Int("missing", len(res.Missing)).
		Int("check_failed", res.CheckFailed).Msg("resolution complete")
	return res, nil
}

// bucketExists is the existence probe. Declared as a var so tests can
// count checks and inject per-key failures.
var bucketExists = func(ctx context.Context, b *blob.Bucket, key string) (bool, error) {
	return b.Exists(ctx, key)
}

// resolveOne checks one PMID under both prefixes. It returns the resolved
// location, or nil with failed=true when a check errored and the PMID is
// being classified missing without a definitive answer.
func (r *Resolver) resolveOne(ctx context.Context, pmid string) (*types.Location, bool) {
	for _, prefix := range []string{r.canonical, r.legacy} {
		key := prefix + pmid + ".pdf"
		exists, err := bucketExists(ctx, r.bucket, key)
		if err != nil {
			r.log.Warn().Err(err).Str("pmid", pmid).Str("key", key).
				Msg("existence check failed, classifying as missing")
			return nil, true
		}
		if exists {
			return &types.Location{
				PMID: pmid,
				Key:  key,
				URI:  fmt.Sprintf("s3://%s/%s", r.bucketName, key),
			}, false
		}
	}
	return nil, false
}
