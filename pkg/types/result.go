// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines the configuration and result types shared across
// pipeline stages.
package types

import "time"

// Location addresses a resolved PDF object in the store. It is produced
// only by the resolver and never modified afterwards.
type Location struct {
	// PMID is the PubMed identifier the object was resolved for.
	PMID string

	// Key is the object key inside the bucket, including the prefix it
	// was found under (canonical or legacy).
	Key string

	// URI is the full object URI, e.g. "s3://osm-pdf-uploads/pdfs/123456.pdf".
	URI string
}

// Resolution partitions an input PMID set into found and missing. Every
// input PMID appears in exactly one of the two slices.
type Resolution struct {
	Found   []Location
	Missing []string

	// CheckFailed counts PMIDs classified as missing because their
	// existence check errored rather than because the object is absent.
	// The distinction is surfaced here and in the logs, not in the
	// partition itself.
	CheckFailed int
}

// Total returns the number of PMIDs resolved.
func (r Resolution) Total() int {
	return len(r.Found) + len(r.Missing)
}

// Summary aggregates the counts of a full pipeline run. The counts must
// reconcile: Found+Missing = Input-SkippedRows and
// Downloaded+Cached+Failed = Found.
type Summary struct {
	Input       int `yaml:"input"`
	SkippedRows int `yaml:"skipped_rows"`
	Found       int `yaml:"found"`
	Missing     int `yaml:"missing"`
	CheckFailed int `yaml:"check_failed"`
	Downloaded  int `yaml:"downloaded"`
	Cached      int `yaml:"cached"`
	Failed      int `yaml:"failed"`

	StartedAt  time.Time `yaml:"started_at"`
	FinishedAt time.Time `yaml:"finished_at"`
}

// Reconciles reports whether the summary counts are internally consistent.
func (s Summary) Reconciles() bool {
	return s.Found+s.Missing == s.Input-s.SkippedRows &&
		s.Downloaded+s.Cached+s.Failed == s.Found
}
