package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/voyagekit/geotally/internal/aggregate"
	"github.com/voyagekit/geotally/internal/cache"
	"github.com/voyagekit/geotally/internal/extract"
	"github.com/voyagekit/geotally/internal/geocode"
	"github.com/voyagekit/geotally/internal/model"
	"github.com/voyagekit/geotally/internal/resolve"
)

// Paths locates every artifact of one run. The shared cache file is reused
// across datasets; the other three are derived from the input file name.
type Paths struct {
	Shared        string
	PerSource     string
	FailedLookups string
	Countries     string
}

// PathsFor derives the artifact paths for a CSV inside the cache directory
func PathsFor(cacheDir, csvPath string) Paths {
	base := strings.TrimSuffix(filepath.Base(csvPath), filepath.Ext(csvPath))
	return Paths{
		Shared:        filepath.Join(cacheDir, "shared_hex_coord_cache.json"),
		PerSource:     filepath.Join(cacheDir, base+"_place_names.json"),
		FailedLookups: filepath.Join(cacheDir, base+"_failed_lookups.json"),
		Countries:     filepath.Join(cacheDir, base+"_countries.json"),
	}
}

// RunResult summarizes one completed (or interrupted) run for the CLI
type RunResult struct {
	Rows        int // rows with a URL, attempted
	Resolved    int
	Failed      int
	Interrupted bool

	Summaries    []model.CountrySummary
	UniqueStates int
	Paths        Paths
}

// Pipeline drives one CSV run end to end: load and migrate the caches,
// resolve rows in file order, fold the aggregate, and finalize on every
// path so an interrupted run never loses resolved entries.
type Pipeline struct {
	geo     geocode.Geocoder
	paths   Paths
	log     *zap.Logger
	verbose bool
}

// New creates a pipeline over the given provider client
func New(geo geocode.Geocoder, paths Paths, log *zap.Logger, verbose bool) *Pipeline {
	if log == nil {
		log = zap.NewNop()
	}
	return &Pipeline{geo: geo, paths: paths, log: log, verbose: verbose}
}

// Run processes one CSV file. Cancellation of ctx abandons at most the
// in-flight row; everything resolved before it is flushed by finalize.
func (p *Pipeline) Run(ctx context.Context, csvPath string) (*RunResult, error) {
	rows, err := readRows(csvPath)
	if err != nil {
		return nil, err
	}

	store, err := cache.Open(p.paths.Shared, p.paths.PerSource, p.log)
	if err != nil {
		return nil, fmt.Errorf("load cache: %w", err)
	}
	if p.verbose {
		fmt.Fprintf(os.Stderr, "Loaded %d shared and %d place name cached locations\n",
			store.Shared.Len(), store.PerSource.Len())
		fmt.Fprintf(os.Stderr, "Found %d locations. Starting geocoding...\n\n", len(rows))
	}

	resolver := resolve.New(p.geo, store, p.log)
	tally := aggregate.New()
	result := &RunResult{Paths: p.paths}

	total := len(rows)
	for i, q := range rows {
		select {
		case <-ctx.Done():
			result.Interrupted = true
		default:
		}
		if result.Interrupted {
			break
		}
		if q.URL == "" {
			continue
		}

		if p.verbose {
			fmt.Fprintf(os.Stderr, "[%d/%d] Processing: %s... ", i+1, total, rowLabel(q))
		}

		loc := resolver.Resolve(ctx, extract.Features(q.Title, q.URL))
		if ctx.Err() != nil {
			// The in-flight row is abandoned, not recorded
			result.Interrupted = true
			if p.verbose {
				fmt.Fprintln(os.Stderr, "interrupted")
			}
			break
		}

		tally.Record(q, loc)
		result.Rows++
		if loc.HasCountry() {
			result.Resolved++
		} else {
			result.Failed++
		}
		if p.verbose {
			printRowOutcome(loc)
		}
	}

	if result.Interrupted {
		p.log.Info("run interrupted, saving progress",
			zap.Int("rows_processed", result.Rows))
	}

	// Finalize runs on every path, interrupted or not
	if err := p.finalize(store, tally, result); err != nil {
		return result, err
	}
	return result, nil
}

// finalize persists the caches and reports. Cache and failed-lookup writes
// are best effort; the aggregated countries output must succeed for the run
// to count as complete.
func (p *Pipeline) finalize(store *cache.Store, tally *aggregate.Tally, result *RunResult) error {
	if err := store.Save(); err != nil {
		p.log.Warn("persist cache", zap.Error(err))
	}

	if failed := tally.Failed(); len(failed) > 0 {
		if err := writeFailedLookups(p.paths.FailedLookups, failed); err != nil {
			p.log.Warn("persist failed-lookup report", zap.Error(err))
		}
	}

	result.Summaries = tally.Summaries()
	result.UniqueStates = tally.UniqueStates()
	if err := writeCountries(p.paths.Countries, result.Summaries); err != nil {
		return fmt.Errorf("write aggregated output: %w", err)
	}
	return nil
}

func rowLabel(q model.LocationQuery) string {
	if q.Title != "" {
		return q.Title
	}
	if runes := []rune(q.URL); len(runes) > 50 {
		return string(runes[:50])
	}
	return q.URL
}

func printRowOutcome(loc model.ResolvedLocation) {
	switch {
	case loc.HasCountry() && loc.HasState():
		fmt.Fprintf(os.Stderr, "✓ %s (%s)\n", *loc.Country, *loc.State)
	case loc.HasCountry():
		fmt.Fprintf(os.Stderr, "✓ %s\n", *loc.Country)
	default:
		fmt.Fprintln(os.Stderr, "✗ Unable to determine country")
	}
}
