package pipeline

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/voyagekit/geotally/internal/model"
)

// failedLookupReport is the manual-review artifact for unresolved rows
type failedLookupReport struct {
	SchemaVersion   int              `json:"schema_version"`
	Timestamp       string           `json:"timestamp"`
	TotalFailed     int              `json:"total_failed"`
	FailedLocations []failedLocation `json:"failed_locations"`
}

type failedLocation struct {
	Title  string `json:"title"`
	URL    string `json:"url"`
	Reason string `json:"reason"`
}

const failedLookupReason = "Unable to determine country from coordinates, hex Place ID, or place name"

// writeFailedLookups persists the failed-lookup report. Only called with a
// non-empty list.
func writeFailedLookups(path string, failed []model.LocationQuery) error {
	report := failedLookupReport{
		SchemaVersion:   1,
		Timestamp:       time.Now().Format("2006-01-02 15:04:05"),
		TotalFailed:     len(failed),
		FailedLocations: make([]failedLocation, 0, len(failed)),
	}
	for _, q := range failed {
		report.FailedLocations = append(report.FailedLocations, failedLocation{
			Title:  q.Title,
			URL:    q.URL,
			Reason: failedLookupReason,
		})
	}
	return writeJSON(path, report)
}

// writeCountries persists the aggregated output consumed by the map renderer
func writeCountries(path string, summaries []model.CountrySummary) error {
	if summaries == nil {
		summaries = []model.CountrySummary{}
	}
	return writeJSON(path, summaries)
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", filepath.Base(path), err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	return nil
}
