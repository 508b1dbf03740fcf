// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package report

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/pmid-mirror/pkg/types"
)

// WriteSummary writes the run summary to a YAML file.
func WriteSummary(path string, sum types.Summary) error {
	data, err := yaml.Marshal(sum)
	if err != nil {
		return fmt.Errorf("marshaling summary: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing summary: %w", err)
	}
	return nil
}

// ReadSummary reads a run summary back from a YAML file.
func ReadSummary(path string) (types.Summary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return types.Summary{}, fmt.Errorf("reading summary: %w", err)
	}
	var sum types.Summary
	if err := yaml.Unmarshal(data, &sum); err != nil {
		return types.Summary{}, fmt.Errorf("parsing summary: %w", err)
	}
	return sum, nil
}

// LogSummary emits the run counts as one structured log line.
func LogSummary(log zerolog.Logger, sum types.Summary) {
	evt := log.Info().
		Int("input", sum.Input).
		Int("skipped_rows", sum.SkippedRows).
		Int("found", sum.Found).
		Int("missing", sum.Missing).
		Int("check_failed", sum.CheckFailed).
		Int("downloaded", sum.Downloaded).
		Int("cached", sum.Cached).
		Int("failed", sum.Failed)
	if !sum.Reconciles() {
		evt = evt.Bool("reconciled", false)
	}
	evt.Msg("run summary")
}
