package extract

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/voyagekit/geotally/internal/model"
)

var (
	// /search/<lat>,<lon> path segment, e.g. /maps/search/24.4840003,54.3536655
	coordPattern = regexp.MustCompile(`/search/([-\d.]+),([-\d.]+)`)

	// Positional "1s<hex>:<hex>" token, e.g. 1s0x3e91f78734757c81:0xac41d82b1c3533f8.
	// Not a formal URL parameter; matched as an opaque substring.
	hexIDPattern = regexp.MustCompile(`1s(0x[0-9a-fA-F]+:0x[0-9a-fA-F]+)`)

	placePattern = regexp.MustCompile(`/place/([^/]+)/`)
)

// Coordinates pulls a latitude/longitude pair out of a map URL. Malformed
// numeric text yields not-found rather than an error.
func Coordinates(rawURL string) (float64, float64, bool) {
	m := coordPattern.FindStringSubmatch(rawURL)
	if m == nil {
		return 0, 0, false
	}
	lat, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, 0, false
	}
	lon, err := strconv.ParseFloat(m[2], 64)
	if err != nil {
		return 0, 0, false
	}
	return lat, lon, true
}

// HexPlaceID pulls the provider-opaque hex place identifier out of a map URL
func HexPlaceID(rawURL string) (string, bool) {
	m := hexIDPattern.FindStringSubmatch(rawURL)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// HasHexPlaceID reports whether the URL carries a hex place identifier at
// all, resolved or not. Used to gate the place-name fallback strategy.
func HasHexPlaceID(rawURL string) bool {
	return hexIDPattern.MatchString(rawURL)
}

// PlaceName returns the trimmed title if non-empty, else a percent-decoded
// /place/<segment>/ path component with '+' read as space, else ""
func PlaceName(title, rawURL string) string {
	if t := strings.TrimSpace(title); t != "" {
		return t
	}
	m := placePattern.FindStringSubmatch(rawURL)
	if m == nil {
		return ""
	}
	segment := strings.ReplaceAll(m[1], "+", " ")
	decoded, err := url.PathUnescape(segment)
	if err != nil {
		return segment
	}
	return decoded
}

// Features runs every extractor against one title/URL pair
func Features(title, rawURL string) model.ExtractedFeatures {
	var f model.ExtractedFeatures
	if lat, lon, ok := Coordinates(rawURL); ok {
		f.Coords = &model.Coordinates{Lat: lat, Lon: lon}
	}
	if id, ok := HexPlaceID(rawURL); ok {
		f.HexPlaceID = id
	}
	f.PlaceName = PlaceName(title, rawURL)
	f.HexConflict = HasHexPlaceID(rawURL)
	return f
}
