package cache

import (
	"fmt"
	"strings"

	"github.com/voyagekit/geotally/internal/model"
)

// Entry is the persisted resolution for one cache key. A looked-up-but-
// unresolved key keeps an explicit record with both fields null, so a
// confirmed failure stays distinguishable from a key never seen (which is
// simply absent).
type Entry struct {
	Country *string `json:"country"`
	State   *string `json:"state"`
}

// EntryOf converts a resolved location into its persisted form
func EntryOf(loc model.ResolvedLocation) Entry {
	return Entry{Country: loc.Country, State: loc.State}
}

// Location converts a cache entry back into a resolved location
func (e Entry) Location() model.ResolvedLocation {
	return model.ResolvedLocation{Country: e.Country, State: e.State}
}

// CoordKey formats a coordinate pair at six decimal places (~0.11 m).
// Coordinates within that precision are treated as the same lookup.
func CoordKey(lat, lon float64) string {
	return fmt.Sprintf("%.6f,%.6f", lat, lon)
}

const hexKeyPrefix = "hex:"

// HexKey builds the shared-namespace key for a hex place identifier
func HexKey(hexID string) string {
	return hexKeyPrefix + hexID
}

// NameKey builds the per-source-namespace key for a free-text place name
func NameKey(name string) string {
	return strings.TrimSpace(name)
}
