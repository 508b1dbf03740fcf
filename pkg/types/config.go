// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// HTTPConfig holds shared HTTP settings used by stages that make network requests.
type HTTPConfig struct {
	// Timeout is the HTTP request timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "pmid-mirror/0.1").
	UserAgent string `json:"user_agent" yaml:"user_agent"`
}

// RetryConfig holds bounded-backoff retry settings for object fetches.
type RetryConfig struct {
	// Attempts is the maximum number of tries per object, including the first.
	Attempts int `json:"attempts" yaml:"attempts"`

	// Backoff is the delay before the first retry. It doubles after each
	// subsequent failure.
	Backoff time.Duration `json:"backoff" yaml:"backoff"`

	// MaxBackoff caps the delay between retries.
	MaxBackoff time.Duration `json:"max_backoff" yaml:"max_backoff"`
}

// StoreConfig holds object-store settings shared by the resolve and fetch stages.
type StoreConfig struct {
	// BucketURL is the gocloud bucket URL, e.g. "s3://osm-pdf-uploads?region=us-east-1",
	// "file:///var/pdfs", or "mem://" in tests.
	BucketURL string `json:"bucket_url" yaml:"bucket_url"`

	// CanonicalPrefix is the key prefix PDFs are uploaded under (default "pdfs/").
	CanonicalPrefix string `json:"canonical_prefix" yaml:"canonical_prefix"`

	// LegacyPrefix is the defective double-separator prefix a historical
	// uploader wrote some objects under (default "pdfs//"). Both prefixes
	// are always checked; see internal/resolve.
	LegacyPrefix string `json:"legacy_prefix" yaml:"legacy_prefix"`
}

// ResolveConfig holds settings for the existence-resolution stage.
type ResolveConfig struct {
	StoreConfig `yaml:",inline"`

	// Workers bounds the number of concurrent existence checks (default 16).
	Workers int `json:"workers" yaml:"workers"`

	// FoundPath is where the found list ("pmid,uri" lines) is written.
	FoundPath string `json:"found_path" yaml:"found_path"`

	// MissingPath is where the missing list (one PMID per line) is written.
	MissingPath string `json:"missing_path" yaml:"missing_path"`
}

// FetchConfig holds settings for the download-executor stage.
type FetchConfig struct {
	StoreConfig `yaml:",inline"`

	// Workers bounds the number of concurrent object fetches. Zero selects
	// a CPU-derived default computed once at startup (fetch.DefaultWorkers).
	Workers int `json:"workers" yaml:"workers"`

	// DestDir is the local mirror root. PDFs land at <dest>/<pmid[:3]>/<pmid>.pdf.
	DestDir string `json:"dest_dir" yaml:"dest_dir"`

	Retry RetryConfig `json:"retry" yaml:"retry"`
}

// AcquireConfig holds settings for the HTTP fallback acquisition stage,
// which fetches PDFs for PMIDs the object store does not hold.
type AcquireConfig struct {
	HTTPConfig `yaml:",inline"`

	// DestDir is the local mirror root, shared with the fetch stage.
	DestDir string `json:"dest_dir" yaml:"dest_dir"`

	// DownloadDelay is the delay between consecutive downloads (default 1s).
	DownloadDelay time.Duration `json:"download_delay" yaml:"download_delay"`
}

// PipelineConfig groups all stage configurations.
type PipelineConfig struct {
	Resolve ResolveConfig `json:"resolve" yaml:"resolve"`
	Fetch   FetchConfig   `json:"fetch" yaml:"fetch"`
	Acquire AcquireConfig `json:"acquire" yaml:"acquire"`
}
