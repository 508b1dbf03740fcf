// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the pmid-mirror CLI.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gocloud.dev/blob"

	"github.com/pdiddy/pmid-mirror/internal/bucket"
	"github.com/pdiddy/pmid-mirror/internal/secrets"
	"github.com/pdiddy/pmid-mirror/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

// logger is the process-wide structured logger, configured in the
// persistent pre-run before any stage executes.
var logger = zerolog.Nop()

// rootCmd is the base command for the pmid-mirror CLI.
var rootCmd = &cobra.Command{
	Use:   "pmid-mirror",
	Short: "Mirror publication PDFs from an object store to local disk",
	Long: `pmid-mirror resolves PubMed identifiers (PMIDs) against an object store
holding publication PDFs, then downloads the resolved subset in parallel to a
deterministic local layout (<dest>/<pmid[:3]>/<pmid>.pdf) that downstream
text-mining batches read directly.

Each stage is a subcommand: resolve partitions the input into found/missing
lists, fetch mirrors the found objects, acquire falls back to publisher URLs
for missing PMIDs, and verify checks the local tree for corrupt PDFs. The run
subcommand chains resolve and fetch and records a run report.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level := zerolog.InfoLevel
		if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
			level = zerolog.DebugLevel
		}
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly}).
			Level(level).With().Timestamp().Logger()

		s, err := secrets.Load(".secrets/")
		if err != nil {
			return err
		}
		if n := secrets.ExportAWS(s); n > 0 {
			logger.Debug().Int("variables", n).Msg("exported AWS credentials from .secrets/")
		}
		return nil
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./pmid-mirror.yaml or ~/.config/pmid-mirror/config.yaml)")
	rootCmd.PersistentFlags().Bool("verbose", false, "enable debug logging")
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("pmid-mirror")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "pmid-mirror"))
		}
	}

	viper.SetEnvPrefix("PMID_MIRROR")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// stringSetting resolves a setting from its flag, then the viper key
// (config file or PMID_MIRROR_* environment), then the fallback.
func stringSetting(cmd *cobra.Command, flag, key, fallback string) string {
	if v, _ := cmd.Flags().GetString(flag); v != "" {
		return v
	}
	if v := viper.GetString(key); v != "" {
		return v
	}
	return fallback
}

func intSetting(cmd *cobra.Command, flag, key string, fallback int) int {
	if v, _ := cmd.Flags().GetInt(flag); v != 0 {
		return v
	}
	if v := viper.GetInt(key); v != 0 {
		return v
	}
	return fallback
}

func durationSetting(cmd *cobra.Command, flag, key string, fallback time.Duration) time.Duration {
	if v, _ := cmd.Flags().GetDuration(flag); v != 0 {
		return v
	}
	if v := viper.GetDuration(key); v != 0 {
		return v
	}
	return fallback
}

// storeConfig assembles the shared object-store settings for a command.
func storeConfig(cmd *cobra.Command) (types.StoreConfig, error) {
	cfg := types.StoreConfig{
		BucketURL:       stringSetting(cmd, "bucket", "store.bucket_url", ""),
		CanonicalPrefix: stringSetting(cmd, "canonical-prefix", "store.canonical_prefix", "pdfs/"),
		LegacyPrefix:    stringSetting(cmd, "legacy-prefix", "store.legacy_prefix", ""),
	}
	if cfg.BucketURL == "" {
		return cfg, fmt.Errorf("no bucket configured: use --bucket, store.bucket_url, or PMID_MIRROR_STORE_BUCKET_URL")
	}
	return cfg, nil
}

// openStore opens the configured bucket and verifies it is usable. Missing
// credentials or an unreachable store are fatal here, before any per-item
// work starts.
func openStore(ctx context.Context, bucketURL string) (*blob.Bucket, error) {
	if strings.HasPrefix(bucketURL, "s3://") && !secrets.HaveAWSCredentials() {
		return nil, fmt.Errorf("no AWS credentials for %s: set AWS_ACCESS_KEY_ID and AWS_SECRET_ACCESS_KEY or add .secrets/ key files", bucketURL)
	}
	b, err := bucket.Open(ctx, bucketURL)
	if err != nil {
		return nil, err
	}
	if err := bucket.Preflight(ctx, b); err != nil {
		b.Close()
		return nil, err
	}
	return b, nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
