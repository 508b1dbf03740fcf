package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/pdiddy/pmid-mirror/internal/fetch"
	"github.com/pdiddy/pmid-mirror/internal/manifest"
	"github.com/pdiddy/pmid-mirror/internal/progress"
	"github.com/pdiddy/pmid-mirror/pkg/types"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Download found PDFs from the store to the local mirror",
	Long: `Fetch reads a found manifest produced by resolve and downloads each object
into the local layout <dest>/<pmid[:3]>/<pmid>.pdf. PMIDs whose file already
exists locally are skipped without touching the store, so re-runs only pull
what is missing. Individual failures never abort the batch.`,
	RunE: runFetch,
}

func init() {
	rootCmd.AddCommand(fetchCmd)

	fetchCmd.Flags().String("found", "", "found manifest from resolve (default found_pmids.txt)")
	fetchCmd.Flags().String("dest", "", "local mirror root (default mirror)")
	fetchCmd.Flags().String("bucket", "", "object store URL, e.g. s3://osm-pdf-uploads")
	fetchCmd.Flags().Int("workers", 0, "concurrent downloads (default 2x CPUs, clamped to [4,32])")
	fetchCmd.Flags().Int("retry-attempts", 0, "tries per object including the first (default 3)")
	fetchCmd.Flags().Duration("retry-backoff", 0, "initial retry delay, doubles per retry (default 500ms)")
	fetchCmd.Flags().Bool("no-progress", false, "disable the periodic progress line")
}

func runFetch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	foundPath := stringSetting(cmd, "found", "resolve.found_path", "found_pmids.txt")
	dest := stringSetting(cmd, "dest", "fetch.dest_dir", "mirror")

	store, err := storeConfig(cmd)
	if err != nil {
		return err
	}

	found, err := manifest.ReadFound(foundPath, logger)
	if err != nil {
		return fmt.Errorf("reading %s: %w", foundPath, err)
	}
	if len(found) == 0 {
		logger.Info().Str("manifest", foundPath).Msg("nothing to fetch")
		return nil
	}

	b, err := openStore(ctx, store.BucketURL)
	if err != nil {
		return err
	}
	defer b.Close()

	opts := fetch.Options{
		Workers: intSetting(cmd, "workers", "fetch.workers", fetch.DefaultWorkers()),
		Retry: types.RetryConfig{
			Attempts: intSetting(cmd, "retry-attempts", "fetch.retry.attempts", 0),
			Backoff:  durationSetting(cmd, "retry-backoff", "fetch.retry.backoff", 0),
		},
		Log: logger,
	}
	if noProgress, _ := cmd.Flags().GetBool("no-progress"); !noProgress {
		opts.Progress = progress.NewReporter("fetch", len(found), nil)
		opts.Progress.Start()
		defer opts.Progress.Stop()
	}

	logger.Info().Int("pmids", len(found)).Str("dest", dest).
		Int("workers", opts.Workers).Msg("fetching")
	start := time.Now()

	result, err := fetch.Fetch(ctx, b, found, dest, opts)
	if err != nil {
		return err
	}

	logger.Info().
		Int("downloaded", result.Downloaded).
		Int("cached", result.Cached).
		Int("failed", result.Failed).
		Dur("elapsed", time.Since(start)).
		Msg("fetch complete")

	if result.HasFailures() {
		return fmt.Errorf("%d of %d PMIDs failed", result.Failed, result.Total())
	}
	return nil
}
