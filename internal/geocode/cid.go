package geocode

import (
	"math/big"
	"strings"
)

// CIDFromHex converts the second half of a hex place identifier
// ("0x<hex>:0x<hex>") into the base-10 string form the place-details
// endpoint expects as its cid parameter.
func CIDFromHex(hexID string) (string, bool) {
	_, second, found := strings.Cut(hexID, ":")
	if !found {
		return "", false
	}
	second = strings.TrimPrefix(second, "0x")
	if second == "" {
		return "", false
	}
	n, ok := new(big.Int).SetString(second, 16)
	if !ok {
		return "", false
	}
	return n.String(), true
}
