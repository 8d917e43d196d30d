package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"splunk-extractor/internal/config"
	"splunk-extractor/internal/extract"
	"splunk-extractor/internal/logging"
	"splunk-extractor/internal/splunk"
	"splunk-extractor/internal/tenants"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	// Version, Commit, and BuildDate are set at build time via ldflags.
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"

	verbose bool
	cfg     *config.AppConfig

	flags runFlags
)

type runFlags struct {
	days        int
	allRequests bool
	output      string
	mapping     string
	index       string
}

var rootCmd = &cobra.Command{
	Use:   "splunk-extractor",
	Short: "Extracts requests per day per tenant from Splunk",
	Long: `Runs a search job against the Splunk REST API, aggregates request counts by day
and tenant, labels tenants with program names from a local mapping file, and
writes the result as a JSON snapshot.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logging.Init(verbose)

		var err error
		cfg, err = config.Load()
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to load configuration")
		}

		log.Info().
			Str("version", Version).
			Str("commit", Commit).
			Str("buildDate", BuildDate).
			Msg("splunk-extractor starting")
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return run(ctx, cfg, flags)
	},
}

func run(ctx context.Context, cfg *config.AppConfig, f runFlags) error {
	if err := cfg.Splunk.Validate(); err != nil {
		return err
	}

	client, err := splunk.NewClient(cfg.Splunk)
	if err != nil {
		return fmt.Errorf("failed to create Splunk client: %w", err)
	}

	opts := extract.DefaultOptions()
	opts.Days = cfg.Days
	opts.Query.Index = cfg.Index
	opts.Query.Sourcetype = cfg.Sourcetype
	opts.SnapshotPath = cfg.SnapshotPath
	mappingPath := cfg.MappingPath

	if f.days > 0 {
		opts.Days = f.days
	}
	if f.allRequests {
		opts.Query.ContentAIOnly = false
	}
	if f.output != "" {
		opts.SnapshotPath = f.output
	}
	if f.mapping != "" {
		mappingPath = f.mapping
	}
	if f.index != "" {
		opts.Query.Index = f.index
	}

	extractor := extract.New(client, tenants.NewMapper(mappingPath))
	ds, err := extractor.Run(ctx, cfg.Splunk.Credential(), opts)
	if err != nil {
		log.Error().Err(err).Str("reason", extract.ExitReason(err)).Msg("Extraction failed")
		return err
	}

	if extract.IsEmptyResult(ds) {
		log.Warn().Msg("No data found. Check the query, index name, or time range")
	}
	return nil
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")
	rootCmd.Flags().IntVar(&flags.days, "days", 0, "number of whole days to extract (default EXTRACT_DAYS or 30)")
	rootCmd.Flags().BoolVar(&flags.allRequests, "all-requests", false, "count all API router requests instead of successful ContentAI calls")
	rootCmd.Flags().StringVarP(&flags.output, "output", "o", "", "snapshot file (default SNAPSHOT_FILE)")
	rootCmd.Flags().StringVar(&flags.mapping, "mapping", "", "tenant mapping file (default MAPPING_FILE)")
	rootCmd.Flags().StringVar(&flags.index, "index", "", "index to search (default SPLUNK_INDEX)")
}
