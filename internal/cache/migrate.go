package cache

import (
	"bytes"
	"encoding/json"
	"regexp"
	"strings"
)

// A migration rewrites entry values from the version below To up to To. Each
// step is pure; the driver applies only the steps the stored version has not
// reached yet, which makes migration idempotent by construction.
type migration struct {
	To    int
	Apply func(entries map[string]json.RawMessage) map[string]json.RawMessage
}

var migrations = []migration{
	{To: 2, Apply: purgeAndWrapV1},
	// v3 split the single monolithic file into the shared and per-source
	// namespaces. That is a file-layout change, not a value-shape change;
	// splitLegacy does the routing when an old monolithic file is found.
	{To: 3, Apply: nil},
}

// migrate brings a blob forward to the current schema version. Already
// current blobs pass through untouched.
func migrate(b *blob) {
	for _, m := range migrations {
		if b.version >= m.To {
			continue
		}
		if m.Apply != nil {
			b.entries = m.Apply(b.entries)
		}
		b.version = m.To
	}
}

// purgeAndWrapV1 converts version-1 values (a bare nullable country string)
// into {country, state} records. Entries whose country was the literal
// "United States" are dropped so those rows get re-resolved and gain state
// information instead of staying silently incomplete.
func purgeAndWrapV1(entries map[string]json.RawMessage) map[string]json.RawMessage {
	out := make(map[string]json.RawMessage, len(entries))
	for key, raw := range entries {
		trimmed := bytes.TrimSpace(raw)
		switch {
		case len(trimmed) > 0 && trimmed[0] == '"':
			var country string
			if err := json.Unmarshal(raw, &country); err != nil {
				// Migration never discards data
				out[key] = raw
				continue
			}
			if country == "United States" {
				continue
			}
			wrapped, _ := json.Marshal(Entry{Country: &country})
			out[key] = wrapped
		case bytes.Equal(trimmed, []byte("null")):
			wrapped, _ := json.Marshal(Entry{})
			out[key] = wrapped
		default:
			// Already a {country, state} record
			out[key] = raw
		}
	}
	return out
}

// Signed decimal, comma, signed decimal: the shape CoordKey produces
var coordKeyPattern = regexp.MustCompile(`^-?\d+\.\d+,-?\d+\.\d+$`)

// isSharedKey reports whether a legacy key belongs in the shared namespace.
// Hex place ids and coordinates denote the same place in every dataset;
// everything else is a free-text place name and stays per-source.
func isSharedKey(key string) bool {
	return strings.HasPrefix(key, hexKeyPrefix) || coordKeyPattern.MatchString(key)
}

// splitLegacy routes a migrated monolithic entry set into the shared and
// per-source namespaces.
func splitLegacy(entries map[string]Entry) (shared, perSource map[string]Entry) {
	shared = make(map[string]Entry)
	perSource = make(map[string]Entry)
	for key, e := range entries {
		if isSharedKey(key) {
			shared[key] = e
		} else {
			perSource[key] = e
		}
	}
	return shared, perSource
}
