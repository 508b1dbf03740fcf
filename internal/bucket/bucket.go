// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package bucket opens object-store buckets and classifies store errors.
// Buckets are addressed by gocloud URL, so the same pipeline runs against
// S3, GCS, a local directory (file://), or an in-memory bucket in tests.
package bucket

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"gocloud.dev/blob"
	"gocloud.dev/gcerrors"

	_ "gocloud.dev/blob/fileblob"
	_ "gocloud.dev/blob/gcsblob"
	_ "gocloud.dev/blob/memblob"
	_ "gocloud.dev/blob/s3blob"
)

// Open opens the bucket at bucketURL.
func Open(ctx context.Context, bucketURL string) (*blob.Bucket, error) {
	b, err := blob.OpenBucket(ctx, bucketURL)
	if err != nil {
		return nil, fmt.Errorf("opening bucket %s: %w", bucketURL, err)
	}
	return b, nil
}

// Preflight verifies the bucket is reachable with the current credentials.
// It runs once before any per-item work so an unreachable store or bad
// credentials abort a run with a single error instead of one failure per item.
func Preflight(ctx context.Context, b *blob.Bucket) error {
	ok, err := b.IsAccessible(ctx)
	if err != nil {
		return fmt.Errorf("store preflight: %w", err)
	}
	if !ok {
		return fmt.Errorf("store preflight: bucket is not accessible")
	}
	return nil
}

// Name extracts the bucket name from a gocloud bucket URL, for building
// object URIs. "s3://osm-pdf-uploads?region=us-east-1" yields "osm-pdf-uploads".
func Name(bucketURL string) string {
	u, err := url.Parse(bucketURL)
	if err != nil {
		return strings.TrimSuffix(bucketURL, "/")
	}
	if u.Host != "" {
		return u.Host
	}
	return strings.Trim(u.Path, "/")
}

// ParseURI splits an object URI like "s3://bucket/pdfs/123.pdf" into bucket
// name and key. The key keeps any repeated separators verbatim: legacy
// objects live under a doubled separator and their keys must round-trip.
func ParseURI(uri string) (bucketName, key string, err error) {
	scheme, rest, ok := strings.Cut(uri, "://")
	if !ok || scheme == "" {
		return "", "", fmt.Errorf("malformed object URI %q", uri)
	}
	bucketName, key, ok = strings.Cut(rest, "/")
	if !ok || bucketName == "" || key == "" {
		return "", "", fmt.Errorf("malformed object URI %q", uri)
	}
	return bucketName, key, nil
}

// IsNotFound reports whether err means the object does not exist.
func IsNotFound(err error) bool {
	return gcerrors.Code(err) == gcerrors.NotFound
}

// IsPermanent reports whether err is a non-transient store failure that
// retrying cannot fix: the object vanished after resolution or access
// was denied.
func IsPermanent(err error) bool {
	switch gcerrors.Code(err) {
	case gcerrors.NotFound, gcerrors.PermissionDenied, gcerrors.InvalidArgument:
		return true
	default:
		return false
	}
}
