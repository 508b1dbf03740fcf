package main

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/pdiddy/pmid-mirror/internal/bucket"
	"github.com/pdiddy/pmid-mirror/internal/fetch"
	"github.com/pdiddy/pmid-mirror/internal/inventory"
	"github.com/pdiddy/pmid-mirror/internal/manifest"
	"github.com/pdiddy/pmid-mirror/internal/progress"
	"github.com/pdiddy/pmid-mirror/internal/report"
	"github.com/pdiddy/pmid-mirror/internal/resolve"
	"github.com/pdiddy/pmid-mirror/pkg/types"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Resolve and fetch in one pass, recording a run report",
	Long: `Run chains the resolve and fetch stages: it reads the input CSV, partitions
the PMIDs against the store, writes the found/missing manifests, downloads the
found objects into the local mirror, and records per-PMID outcomes in the run
database under <dest>/index/. A YAML summary lands next to the manifests.`,
	RunE: runPipeline,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().String("input", "", "input CSV with a PMID column (required)")
	runCmd.Flags().String("dest", "", "local mirror root (default mirror)")
	runCmd.Flags().String("found", "", "output manifest of found PMIDs (default found_pmids.txt)")
	runCmd.Flags().String("missing", "", "output list of missing PMIDs (default missing_pmids.txt)")
	runCmd.Flags().String("summary", "", "output YAML summary (default run_summary.yaml)")
	runCmd.Flags().String("bucket", "", "object store URL, e.g. s3://osm-pdf-uploads")
	runCmd.Flags().String("canonical-prefix", "", "canonical key prefix (default pdfs/)")
	runCmd.Flags().String("legacy-prefix", "", "legacy key prefix (default canonical with doubled separator)")
	runCmd.Flags().Int("workers", 0, "concurrent downloads (default 2x CPUs, clamped to [4,32])")
	runCmd.Flags().Bool("no-progress", false, "disable the periodic progress line")
	runCmd.MarkFlagRequired("input")
}

func runPipeline(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	input, _ := cmd.Flags().GetString("input")
	dest := stringSetting(cmd, "dest", "fetch.dest_dir", "mirror")
	foundPath := stringSetting(cmd, "found", "resolve.found_path", "found_pmids.txt")
	missingPath := stringSetting(cmd, "missing", "resolve.missing_path", "missing_pmids.txt")
	summaryPath := stringSetting(cmd, "summary", "report.summary_path", "run_summary.yaml")

	store, err := storeConfig(cmd)
	if err != nil {
		return err
	}

	pmids, skipped, err := inventory.ReadPMIDs(input, logger)
	if err != nil {
		return fmt.Errorf("reading %s: %w", input, err)
	}

	b, err := openStore(ctx, store.BucketURL)
	if err != nil {
		return err
	}
	defer b.Close()

	rep, err := report.NewStore(dest)
	if err != nil {
		return err
	}
	defer rep.Close()

	startedAt := time.Now()
	runID, err := rep.BeginRun(startedAt)
	if err != nil {
		return err
	}
	logger.Info().Int64("run_id", runID).Int("pmids", len(pmids)).
		Str("bucket", store.BucketURL).Str("dest", dest).Msg("run started")

	r := resolve.New(b, bucket.Name(store.BucketURL), types.ResolveConfig{
		StoreConfig: store,
	}, logger)
	res, err := r.Resolve(ctx, pmids)
	if err != nil {
		return err
	}
	for _, loc := range res.Found {
		recordOutcome(rep, runID, loc.PMID, report.StageResolve, report.StatusFound, loc.URI, "")
	}
	for _, pmid := range res.Missing {
		recordOutcome(rep, runID, pmid, report.StageResolve, report.StatusMissing, "", "")
	}

	if err := manifest.WriteFound(foundPath, res.Found); err != nil {
		return err
	}
	if err := manifest.WriteMissing(missingPath, res.Missing); err != nil {
		return err
	}
	logger.Info().Int("found", len(res.Found)).Int("missing", len(res.Missing)).
		Int("check_failed", res.CheckFailed).Msg("resolve complete")

	opts := fetch.Options{
		Workers: intSetting(cmd, "workers", "fetch.workers", fetch.DefaultWorkers()),
		Log:     logger,
	}
	if noProgress, _ := cmd.Flags().GetBool("no-progress"); !noProgress {
		opts.Progress = progress.NewReporter("fetch", len(res.Found), nil)
		opts.Progress.Start()
		defer opts.Progress.Stop()
	}

	result, err := fetch.Fetch(ctx, b, res.Found, dest, opts)
	if err != nil {
		return err
	}
	for _, out := range result.Outcomes {
		status := report.StatusDownloaded
		detail := ""
		switch {
		case out.Err != nil:
			status = report.StatusFailed
			detail = out.Err.Error()
		case out.Cached:
			status = report.StatusCached
		}
		recordOutcome(rep, runID, out.PMID, report.StageFetch, status, detail, out.LocalPath)
	}

	sum := types.Summary{
		Input:       len(pmids) + skipped.Total(),
		SkippedRows: skipped.Total(),
		Found:       len(res.Found),
		Missing:     len(res.Missing),
		CheckFailed: res.CheckFailed,
		Downloaded:  result.Downloaded,
		Cached:      result.Cached,
		Failed:      result.Failed,
		StartedAt:   startedAt,
		FinishedAt:  time.Now(),
	}
	if err := rep.FinishRun(runID, sum); err != nil {
		return err
	}
	if err := report.WriteSummary(summaryPath, sum); err != nil {
		return err
	}
	report.LogSummary(logger, sum)
	logger.Info().Str("summary", summaryPath).
		Str("index", filepath.Join(dest, "index")).Msg("run complete")

	if result.HasFailures() {
		return fmt.Errorf("%d of %d PMIDs failed to fetch", result.Failed, result.Total())
	}
	return nil
}

// recordOutcome stores one outcome row, downgrading a report-store write
// failure to a warning so it never aborts the batch.
func recordOutcome(rep *report.Store, runID int64, pmid, stage, status, detail, localPath string) {
	if err := rep.RecordOutcome(runID, pmid, stage, status, detail, localPath); err != nil {
		logger.Warn().Err(err).Str("pmid", pmid).Str("stage", stage).Msg("recording outcome")
	}
}
