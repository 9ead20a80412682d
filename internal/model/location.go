package model

// LocationQuery is one input row from a location-history export
type LocationQuery struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// Coordinates is a latitude/longitude pair extracted from a map URL
type Coordinates struct {
	Lat float64
	Lon float64
}

// ExtractedFeatures holds everything the extractor could pull out of a
// single title/URL pair. Any subset of the features may be present.
type ExtractedFeatures struct {
	Coords     *Coordinates // nil when no /search/<lat>,<lon> segment matched
	HexPlaceID string       // provider-opaque "0x...:0x..." token, "" when absent
	PlaceName  string       // trimmed title or decoded /place/ segment, "" when absent

	// HexConflict is true when the URL carries a hex place id at all. A
	// present-but-unresolved hex id makes the free-text name untrustworthy,
	// so the name strategy is skipped rather than risking a wrong answer.
	HexConflict bool
}

// ResolvedLocation is the outcome of resolving one query. Both fields are
// pointers so a confirmed "looked up, found nothing" serializes as explicit
// nulls instead of disappearing. State is never set without Country.
type ResolvedLocation struct {
	Country *string `json:"country"`
	State   *string `json:"state"`
}

// HasCountry reports whether the location resolved to a country
func (l ResolvedLocation) HasCountry() bool {
	return l.Country != nil && *l.Country != ""
}

// HasState reports whether a meaningful administrative area was returned
func (l ResolvedLocation) HasState() bool {
	return l.State != nil && *l.State != ""
}

// CountrySummary is one element of the aggregated output consumed by the
// downstream map renderer
type CountrySummary struct {
	Country string   `json:"country"`
	Count   int      `json:"count"`
	States  []string `json:"states"`
}
