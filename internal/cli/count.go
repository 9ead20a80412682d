package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/voyagekit/geotally/internal/geocode"
	"github.com/voyagekit/geotally/internal/model"
	"github.com/voyagekit/geotally/internal/pipeline"
)

var (
	cacheDir    string
	callTimeout time.Duration
	callRate    float64
)

// countCmd represents the count command
var countCmd = &cobra.Command{
	Use:   "count <csv-file>",
	Short: "Resolve and count visited countries from a CSV export",
	Long: `Count reads a location-history CSV export (columns "Titel" and "URL"),
resolves every row to a country via coordinates, hex place id, or place
name (in that order), and writes:

- <csv>_countries.json       aggregated per-country counts and states
- <csv>_failed_lookups.json  rows no strategy could resolve (if any)
- shared_hex_coord_cache.json and <csv>_place_names.json  lookup caches

Interrupting a run with Ctrl-C still saves all progress made so far.

Example:
  geotally count takeout/saved_places.csv
  geotally count takeout/saved_places.csv --verbose --cache-dir ./cache`,
	Args: cobra.ExactArgs(1),
	RunE: runCount,
}

func init() {
	rootCmd.AddCommand(countCmd)

	countCmd.Flags().StringVar(&cacheDir, "cache-dir", "cache", "directory for cache and output files")
	countCmd.Flags().DurationVar(&callTimeout, "timeout", 10*time.Second, "timeout per geocoding call")
	countCmd.Flags().Float64Var(&callRate, "rate", 10, "max geocoding requests per second")
}

func runCount(cmd *cobra.Command, args []string) error {
	csvPath := args[0]
	if _, err := os.Stat(csvPath); err != nil {
		return fmt.Errorf("CSV file %q not found", csvPath)
	}

	apiKey := viper.GetString("google_maps_api_key")
	if apiKey == "" {
		return fmt.Errorf("GOOGLE_MAPS_API_KEY not set")
	}

	cfg := model.DefaultConfig()
	cfg.HTTP.Timeout = callTimeout
	cfg.Rate.RequestsPerSecond = callRate
	cfg.Cache.Dir = cacheDir
	cfg.Output.Verbose = verbose

	logger := newLogger(verbose)
	defer func() { _ = logger.Sync() }()

	// Ctrl-C triggers the finalize path instead of killing the run
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if verbose {
		fmt.Fprintf(os.Stderr, "Reading %s...\n", csvPath)
	}

	geo := geocode.NewClient(apiKey, cfg.HTTP, cfg.Rate, logger)
	paths := pipeline.PathsFor(cfg.Cache.Dir, csvPath)
	p := pipeline.New(geo, paths, logger, verbose)

	result, err := p.Run(ctx, csvPath)
	if err != nil {
		return err
	}

	printResults(result)
	return nil
}

// newLogger builds the run logger: JSON to stderr, debug level when verbose
func newLogger(verbose bool) *zap.Logger {
	cfg := zap.NewProductionConfig()
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	logger, err := cfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

// printResults renders the end-of-run summary to stdout
func printResults(result *pipeline.RunResult) {
	line := strings.Repeat("=", 70)

	fmt.Println()
	fmt.Println(line)
	fmt.Println("RESULTS")
	fmt.Println(line)
	if result.Interrupted {
		fmt.Println("\nRun was interrupted; results reflect progress up to that point.")
	}
	fmt.Printf("\nTotal unique countries: %d\n", len(result.Summaries))
	if result.UniqueStates > 0 {
		fmt.Printf("Total unique states across all countries: %d\n", result.UniqueStates)
	}
	fmt.Println()

	fmt.Println("Countries (with location counts and states):")
	for _, summary := range result.Summaries {
		plural := "s"
		if summary.Count == 1 {
			plural = ""
		}
		fmt.Printf("  • %s: %d location%s\n", summary.Country, summary.Count, plural)
		for _, state := range summary.States {
			fmt.Printf("    - %s\n", state)
		}
	}

	if result.Failed > 0 {
		fmt.Printf("\n⚠️  Failed to lookup %d location(s)\n", result.Failed)
		fmt.Printf("These may need manual review. See %s for details.\n", result.Paths.FailedLookups)
	}

	fmt.Println("\n" + line)
}
