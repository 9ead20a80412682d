package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/voyagekit/geotally/internal/model"
)

func strPtr(s string) *string { return &s }

// scriptedGeocoder maps inputs to canned outcomes and counts calls
type scriptedGeocoder struct {
	reverseCalls int
	addressCalls int
	detailCalls  int

	reverse func(calls int) (model.ResolvedLocation, error)
	address func(addr string) (model.ResolvedLocation, error)
	details func(cid string) (model.ResolvedLocation, error)
}

func (g *scriptedGeocoder) ReverseGeocode(ctx context.Context, lat, lon float64) (model.ResolvedLocation, error) {
	g.reverseCalls++
	if g.reverse == nil {
		return model.ResolvedLocation{}, errors.New("unexpected reverse geocode")
	}
	return g.reverse(g.reverseCalls)
}

func (g *scriptedGeocoder) GeocodeAddress(ctx context.Context, address string) (model.ResolvedLocation, error) {
	g.addressCalls++
	if g.address == nil {
		return model.ResolvedLocation{}, errors.New("unexpected address geocode")
	}
	return g.address(address)
}

func (g *scriptedGeocoder) PlaceDetails(ctx context.Context, cid string) (model.ResolvedLocation, error) {
	g.detailCalls++
	if g.details == nil {
		return model.ResolvedLocation{}, errors.New("unexpected place details")
	}
	return g.details(cid)
}

func writeCSV(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "trips.csv")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func readCacheEntries(t *testing.T, path string) map[string]model.ResolvedLocation {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatal(err)
	}
	delete(raw, "schema_version")
	out := make(map[string]model.ResolvedLocation, len(raw))
	for key, value := range raw {
		var loc model.ResolvedLocation
		if err := json.Unmarshal(value, &loc); err != nil {
			t.Fatalf("entry %q: %v", key, err)
		}
		out[key] = loc
	}
	return out
}

const testCSV = `Titel,URL
,"https://www.google.com/maps/search/52.52,13.405"
Skipped row,
Golden Gate Bridge,https://www.google.com/maps/place/Golden+Gate+Bridge/
Mystery,"https://www.google.com/maps/place/Mystery/data=!1s0x1:0x2"
`

func TestRunEndToEnd(t *testing.T) {
	dir := t.TempDir()
	csvPath := writeCSV(t, dir, testCSV)

	geo := &scriptedGeocoder{
		reverse: func(int) (model.ResolvedLocation, error) {
			return model.ResolvedLocation{Country: strPtr("Germany")}, nil
		},
		address: func(string) (model.ResolvedLocation, error) {
			return model.ResolvedLocation{Country: strPtr("United States"), State: strPtr("California")}, nil
		},
		details: func(string) (model.ResolvedLocation, error) {
			return model.ResolvedLocation{}, errors.New("NOT_FOUND")
		},
	}

	paths := PathsFor(filepath.Join(dir, "cache"), csvPath)
	p := New(geo, paths, nil, false)

	result, err := p.Run(context.Background(), csvPath)
	if err != nil {
		t.Fatal(err)
	}

	if result.Rows != 3 {
		t.Errorf("rows = %d, want 3 (empty-URL row skipped)", result.Rows)
	}
	if result.Resolved != 2 || result.Failed != 1 {
		t.Errorf("resolved/failed = %d/%d, want 2/1", result.Resolved, result.Failed)
	}
	if result.Interrupted {
		t.Error("run should not be interrupted")
	}

	// The Mystery row carries a hex id, so its place name is gated
	if geo.addressCalls != 1 {
		t.Errorf("address calls = %d, want 1", geo.addressCalls)
	}

	// Aggregated output, sorted by country
	var summaries []model.CountrySummary
	data, err := os.ReadFile(paths.Countries)
	if err != nil {
		t.Fatal(err)
	}
	if err := json.Unmarshal(data, &summaries); err != nil {
		t.Fatal(err)
	}
	if len(summaries) != 2 || summaries[0].Country != "Germany" || summaries[1].Country != "United States" {
		t.Errorf("summaries = %+v", summaries)
	}
	if summaries[1].States[0] != "California" {
		t.Errorf("states = %v", summaries[1].States)
	}

	// Failed-lookup report exists and names the gated row
	var report struct {
		TotalFailed     int `json:"total_failed"`
		FailedLocations []struct {
			Title string `json:"title"`
		} `json:"failed_locations"`
	}
	data, err = os.ReadFile(paths.FailedLookups)
	if err != nil {
		t.Fatal(err)
	}
	if err := json.Unmarshal(data, &report); err != nil {
		t.Fatal(err)
	}
	if report.TotalFailed != 1 || report.FailedLocations[0].Title != "Mystery" {
		t.Errorf("report = %+v", report)
	}

	// Cache files: coordinate hit and negative hex entry are shared, the
	// place name is per-source.
	shared := readCacheEntries(t, paths.Shared)
	if loc, ok := shared["52.520000,13.405000"]; !ok || *loc.Country != "Germany" {
		t.Errorf("shared coordinate entry = %+v ok=%v", loc, ok)
	}
	if loc, ok := shared["hex:0x1:0x2"]; !ok || loc.Country != nil {
		t.Errorf("negative hex entry = %+v ok=%v", loc, ok)
	}
	perSource := readCacheEntries(t, paths.PerSource)
	if loc, ok := perSource["Golden Gate Bridge"]; !ok || *loc.Country != "United States" {
		t.Errorf("per-source entry = %+v ok=%v", loc, ok)
	}
}

func TestRunWarmCacheMakesNoCalls(t *testing.T) {
	dir := t.TempDir()
	csvPath := writeCSV(t, dir, testCSV)

	paths := PathsFor(filepath.Join(dir, "cache"), csvPath)

	warm := &scriptedGeocoder{
		reverse: func(int) (model.ResolvedLocation, error) {
			return model.ResolvedLocation{Country: strPtr("Germany")}, nil
		},
		address: func(string) (model.ResolvedLocation, error) {
			return model.ResolvedLocation{Country: strPtr("United States"), State: strPtr("California")}, nil
		},
		details: func(string) (model.ResolvedLocation, error) {
			return model.ResolvedLocation{}, errors.New("NOT_FOUND")
		},
	}
	if _, err := New(warm, paths, nil, false).Run(context.Background(), csvPath); err != nil {
		t.Fatal(err)
	}

	cold := &scriptedGeocoder{}
	result, err := New(cold, paths, nil, false).Run(context.Background(), csvPath)
	if err != nil {
		t.Fatal(err)
	}

	if calls := cold.reverseCalls + cold.addressCalls + cold.detailCalls; calls != 0 {
		t.Errorf("second run made %d provider calls, want 0", calls)
	}
	if result.Resolved != 2 || result.Failed != 1 {
		t.Errorf("resolved/failed = %d/%d, want 2/1", result.Resolved, result.Failed)
	}
}

const interruptCSV = `Titel,URL
,"https://www.google.com/maps/search/1.0,1.0"
,"https://www.google.com/maps/search/2.0,2.0"
,"https://www.google.com/maps/search/3.0,3.0"
,"https://www.google.com/maps/search/4.0,4.0"
`

func TestRunFinalizesOnInterrupt(t *testing.T) {
	dir := t.TempDir()
	csvPath := writeCSV(t, dir, interruptCSV)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	geo := &scriptedGeocoder{
		reverse: func(calls int) (model.ResolvedLocation, error) {
			if calls == 3 {
				// Operator interrupt arrives mid-call on the third row
				cancel()
				return model.ResolvedLocation{}, context.Canceled
			}
			return model.ResolvedLocation{Country: strPtr("Germany")}, nil
		},
	}

	paths := PathsFor(filepath.Join(dir, "cache"), csvPath)
	result, err := New(geo, paths, nil, false).Run(ctx, csvPath)
	if err != nil {
		t.Fatal(err)
	}

	if !result.Interrupted {
		t.Error("expected interrupted run")
	}
	if result.Rows != 2 {
		t.Errorf("rows recorded = %d, want 2 (in-flight row abandoned)", result.Rows)
	}

	// Exactly the two completed rows' cache growth is persisted
	shared := readCacheEntries(t, paths.Shared)
	if len(shared) != 2 {
		t.Errorf("shared cache entries = %d, want 2: %+v", len(shared), shared)
	}

	// The aggregate reflects those two rows
	var summaries []model.CountrySummary
	data, err := os.ReadFile(paths.Countries)
	if err != nil {
		t.Fatal(err)
	}
	if err := json.Unmarshal(data, &summaries); err != nil {
		t.Fatal(err)
	}
	if len(summaries) != 1 || summaries[0].Count != 2 {
		t.Errorf("summaries = %+v, want Germany with count 2", summaries)
	}
}

func TestRunContinuesWhenCacheUnwritable(t *testing.T) {
	dir := t.TempDir()
	csvPath := writeCSV(t, dir, interruptCSV)

	// Both cache files live under a path that a plain file will occupy
	// by the time the run finalizes, so saving them must fail.
	blocker := filepath.Join(dir, "cache")
	paths := Paths{
		Shared:        filepath.Join(blocker, "shared_hex_coord_cache.json"),
		PerSource:     filepath.Join(blocker, "trips_place_names.json"),
		FailedLookups: filepath.Join(dir, "trips_failed_lookups.json"),
		Countries:     filepath.Join(dir, "trips_countries.json"),
	}

	geo := &scriptedGeocoder{
		reverse: func(int) (model.ResolvedLocation, error) {
			if err := os.WriteFile(blocker, []byte("in the way"), 0644); err != nil {
				t.Fatal(err)
			}
			return model.ResolvedLocation{Country: strPtr("Germany")}, nil
		},
	}

	result, err := New(geo, paths, nil, false).Run(context.Background(), csvPath)
	if err != nil {
		t.Fatalf("cache persistence failure should not fail the run: %v", err)
	}
	if result.Resolved != 4 {
		t.Errorf("resolved = %d, want 4", result.Resolved)
	}

	// The aggregated output is still written.
	var summaries []model.CountrySummary
	data, err := os.ReadFile(paths.Countries)
	if err != nil {
		t.Fatal(err)
	}
	if err := json.Unmarshal(data, &summaries); err != nil {
		t.Fatal(err)
	}
	if len(summaries) != 1 || summaries[0].Count != 4 {
		t.Errorf("summaries = %+v, want Germany with count 4", summaries)
	}
}

func TestRunFailsWhenCountriesUnwritable(t *testing.T) {
	dir := t.TempDir()
	csvPath := writeCSV(t, dir, interruptCSV)

	blocker := filepath.Join(dir, "out")
	if err := os.WriteFile(blocker, []byte("in the way"), 0644); err != nil {
		t.Fatal(err)
	}

	paths := PathsFor(filepath.Join(dir, "cache"), csvPath)
	paths.Countries = filepath.Join(blocker, "trips_countries.json")

	geo := &scriptedGeocoder{
		reverse: func(int) (model.ResolvedLocation, error) {
			return model.ResolvedLocation{Country: strPtr("Germany")}, nil
		},
	}

	if _, err := New(geo, paths, nil, false).Run(context.Background(), csvPath); err == nil {
		t.Fatal("expected an error when the aggregated output cannot be written")
	}

	// The caches were still persisted before the failing write.
	shared := readCacheEntries(t, paths.Shared)
	if len(shared) != 4 {
		t.Errorf("shared cache entries = %d, want 4: %+v", len(shared), shared)
	}
}

func TestRowLabelTruncatesOnRunes(t *testing.T) {
	url := strings.Repeat("a", 49) + "ü-and-more"
	got := rowLabel(model.LocationQuery{URL: url})
	if want := strings.Repeat("a", 49) + "ü"; got != want {
		t.Errorf("label = %q, want %q", got, want)
	}
	if !utf8.ValidString(got) {
		t.Errorf("label %q is not valid UTF-8", got)
	}
}

func TestReadRowsMissingURLColumn(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.csv")
	if err := os.WriteFile(path, []byte("Name,Link\na,b\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := readRows(path); err == nil {
		t.Fatal("expected an error for a CSV without a URL column")
	}
}

func TestReadRowsBOMHeader(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bom.csv")
	if err := os.WriteFile(path, []byte("\uFEFFTitel,URL\nBerlin,https://example.com\n"), 0644); err != nil {
		t.Fatal(err)
	}
	rows, err := readRows(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 || rows[0].Title != "Berlin" {
		t.Errorf("rows = %+v", rows)
	}
}

func TestPathsFor(t *testing.T) {
	paths := PathsFor("cache", "exports/saved_places.csv")
	if paths.Shared != filepath.Join("cache", "shared_hex_coord_cache.json") {
		t.Errorf("shared = %s", paths.Shared)
	}
	if paths.PerSource != filepath.Join("cache", "saved_places_place_names.json") {
		t.Errorf("per-source = %s", paths.PerSource)
	}
	if paths.FailedLookups != filepath.Join("cache", "saved_places_failed_lookups.json") {
		t.Errorf("failed = %s", paths.FailedLookups)
	}
	if paths.Countries != filepath.Join("cache", "saved_places_countries.json") {
		t.Errorf("countries = %s", paths.Countries)
	}
}
