package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pdiddy/pmid-mirror/internal/fetch"
	"github.com/pdiddy/pmid-mirror/internal/verify"
)

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Check mirrored PDFs for corruption",
	Long: `Verify walks the local mirror and checks that every .pdf file starts with
the PDF magic bytes. Truncated or non-PDF files (a publisher error page saved
as .pdf, an interrupted download) are listed so they can be deleted and
re-fetched.`,
	RunE: runVerify,
}

func init() {
	rootCmd.AddCommand(verifyCmd)

	verifyCmd.Flags().String("dest", "", "local mirror root (default mirror)")
	verifyCmd.Flags().Int("workers", 0, "concurrent file checks (default 2x CPUs, clamped to [4,32])")
}

func runVerify(cmd *cobra.Command, args []string) error {
	dest := stringSetting(cmd, "dest", "fetch.dest_dir", "mirror")
	workers := intSetting(cmd, "workers", "verify.workers", fetch.DefaultWorkers())

	res, err := verify.Scan(cmd.Context(), dest, workers)
	if err != nil {
		return err
	}

	for _, p := range res.InvalidPaths {
		logger.Warn().Str("path", p).Msg("invalid PDF")
	}
	logger.Info().
		Int("total", res.Total).
		Int("valid", res.Valid).
		Int("invalid", res.Invalid).
		Msg("verify complete")

	if res.Invalid > 0 {
		return fmt.Errorf("%d of %d PDFs are invalid", res.Invalid, res.Total)
	}
	return nil
}
