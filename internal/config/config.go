// Package config parses the engine's asset configuration: an ordered
// list of collateral-asset/price-feed pairs.
package config

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// idRegex matches asset and feed identifiers: lowercase alphanumeric
// with dashes, e.g. "weth" or "eth-usd".
var idRegex = regexp.MustCompile(`^[a-z0-9][a-z0-9-]*$`)

var (
	ErrInvalidAssetSpec = errors.New("config: invalid asset spec")
	ErrDuplicateAsset   = errors.New("config: duplicate asset")
)

// Pair binds one collateral asset to its price feed.
type Pair struct {
	Asset string `json:"asset"`
	Feed  string `json:"feed"`
}

// ParseAssets parses a spec of the form
// "weth=eth-usd,wbtc=btc-usd" into ordered asset/feed pairs.
func ParseAssets(spec string) ([]Pair, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return nil, fmt.Errorf("%w: empty spec", ErrInvalidAssetSpec)
	}

	seen := make(map[string]bool)
	var pairs []Pair

	for _, item := range strings.Split(spec, ",") {
		asset, feed, ok := strings.Cut(strings.TrimSpace(item), "=")
		if !ok {
			return nil, fmt.Errorf("%w: %q (expected asset=feed)", ErrInvalidAssetSpec, item)
		}
		asset, feed = strings.TrimSpace(asset), strings.TrimSpace(feed)
		if !idRegex.MatchString(asset) || !idRegex.MatchString(feed) {
			return nil, fmt.Errorf("%w: %q", ErrInvalidAssetSpec, item)
		}
		if seen[asset] {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateAsset, asset)
		}
		seen[asset] = true
		pairs = append(pairs, Pair{Asset: asset, Feed: feed})
	}
	return pairs, nil
}
