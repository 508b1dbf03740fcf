package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pdiddy/pmid-mirror/internal/bucket"
	"github.com/pdiddy/pmid-mirror/internal/inventory"
	"github.com/pdiddy/pmid-mirror/internal/manifest"
	"github.com/pdiddy/pmid-mirror/internal/resolve"
	"github.com/pdiddy/pmid-mirror/pkg/types"
)

var resolveCmd = &cobra.Command{
	Use:   "resolve",
	Short: "Partition input PMIDs into stored and missing",
	Long: `Resolve reads PMIDs from the input CSV, checks each one for a stored PDF
(canonical key first, then the legacy double-slash key), and writes the
partition to the found and missing manifests. No PDF bodies are fetched.`,
	RunE: runResolve,
}

func init() {
	rootCmd.AddCommand(resolveCmd)

	resolveCmd.Flags().String("input", "", "input CSV with a PMID column (required)")
	resolveCmd.Flags().String("found", "", "output manifest of found PMIDs (default found_pmids.txt)")
	resolveCmd.Flags().String("missing", "", "output list of missing PMIDs (default missing_pmids.txt)")
	resolveCmd.Flags().String("bucket", "", "object store URL, e.g. s3://osm-pdf-uploads")
	resolveCmd.Flags().String("canonical-prefix", "", "canonical key prefix (default pdfs/)")
	resolveCmd.Flags().String("legacy-prefix", "", "legacy key prefix (default canonical with doubled separator)")
	resolveCmd.Flags().Int("workers", 0, "concurrent existence checks (default 16)")
	resolveCmd.MarkFlagRequired("input")
}

func runResolve(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	input, _ := cmd.Flags().GetString("input")
	foundPath := stringSetting(cmd, "found", "resolve.found_path", "found_pmids.txt")
	missingPath := stringSetting(cmd, "missing", "resolve.missing_path", "missing_pmids.txt")

	store, err := storeConfig(cmd)
	if err != nil {
		return err
	}

	pmids, skipped, err := inventory.ReadPMIDs(input, logger)
	if err != nil {
		return fmt.Errorf("reading %s: %w", input, err)
	}
	logger.Info().Int("pmids", len(pmids)).Int("skipped_rows", skipped.Total()).
		Str("bucket", store.BucketURL).Msg("resolving")

	b, err := openStore(ctx, store.BucketURL)
	if err != nil {
		return err
	}
	defer b.Close()

	r := resolve.New(b, bucket.Name(store.BucketURL), types.ResolveConfig{
		StoreConfig: store,
		Workers:     intSetting(cmd, "workers", "resolve.workers", 0),
	}, logger)

	res, err := r.Resolve(ctx, pmids)
	if err != nil {
		return err
	}

	if err := manifest.WriteFound(foundPath, res.Found); err != nil {
		return err
	}
	if err := manifest.WriteMissing(missingPath, res.Missing); err != nil {
		return err
	}

	logger.Info().
		Int("found", len(res.Found)).
		Int("missing", len(res.Missing)).
		Int("check_failed", res.CheckFailed).
		Str("found_manifest", foundPath).
		Str("missing_list", missingPath).
		Msg("resolve complete")
	return nil
}
