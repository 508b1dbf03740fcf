package main

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/pdiddy/pmid-mirror/internal/acquire"
	"github.com/pdiddy/pmid-mirror/internal/inventory"
	"github.com/pdiddy/pmid-mirror/pkg/types"
)

var acquireCmd = &cobra.Command{
	Use:   "acquire",
	Short: "Download PDFs from publisher URLs into the local mirror",
	Long: `Acquire reads an input CSV with PMID, URL, and optional Backup URL columns
and downloads each PDF over HTTP into the local layout, trying the backup URL
when the primary fails. It is the fallback path for PMIDs the store does not
hold; PMIDs already present locally are skipped.`,
	RunE: runAcquire,
}

func init() {
	rootCmd.AddCommand(acquireCmd)

	acquireCmd.Flags().String("input", "", "input CSV with PMID and URL columns (required)")
	acquireCmd.Flags().String("dest", "", "local mirror root (default mirror)")
	acquireCmd.Flags().Duration("delay", 0, "delay between downloads (default 1s)")
	acquireCmd.Flags().Duration("timeout", 0, "per-request HTTP timeout (default 60s)")
	acquireCmd.MarkFlagRequired("input")
}

func runAcquire(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	input, _ := cmd.Flags().GetString("input")

	cfg := types.AcquireConfig{
		HTTPConfig: types.HTTPConfig{
			Timeout:   durationSetting(cmd, "timeout", "acquire.timeout", 60*time.Second),
			UserAgent: "pmid-mirror/" + version,
		},
		DestDir:       stringSetting(cmd, "dest", "acquire.dest_dir", "mirror"),
		DownloadDelay: durationSetting(cmd, "delay", "acquire.download_delay", time.Second),
	}

	items, skipped, err := inventory.ReadItems(input, logger)
	if err != nil {
		return fmt.Errorf("reading %s: %w", input, err)
	}
	logger.Info().Int("pmids", len(items)).Int("skipped_rows", skipped.Total()).
		Str("dest", cfg.DestDir).Msg("acquiring")

	client := &http.Client{Timeout: cfg.Timeout}
	result := acquire.AcquireBatch(ctx, client, items, cfg, os.Stderr)

	logger.Info().
		Int("downloaded", result.Downloaded).
		Int("skipped", result.Skipped).
		Int("failed", result.Failed).
		Msg("acquire complete")

	if result.HasFailures() {
		return fmt.Errorf("%d of %d PMIDs failed", result.Failed, result.Total())
	}
	return nil
}
