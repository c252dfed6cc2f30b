package domain

import (
	"fmt"
	"strings"
)

// Asset identifies a tradable good. The set of assets is fixed for the
// lifetime of a simulation.
type Asset string

// AssetRegistry holds the fixed, ordered set of assets traded in a market.
// It is immutable after construction and safe for concurrent reads.
type AssetRegistry struct {
	assets []Asset
	index  map[Asset]int
}

// NewAssetRegistry builds a registry from the given assets, preserving
// their order. Names are trimmed; empty and duplicate names are rejected.
func NewAssetRegistry(assets ...Asset) (*AssetRegistry, error) {
	if len(assets) == 0 {
		return nil, &ValidationError{Message: "at least one asset is required"}
	}
	r := &AssetRegistry{
		assets: make([]Asset, 0, len(assets)),
		index:  make(map[Asset]int, len(assets)),
	}
	for _, a := range assets {
		a = Asset(strings.TrimSpace(string(a)))
		if a == "" {
			return nil, &ValidationError{Message: "asset name must not be empty"}
		}
		if _, dup := r.index[a]; dup {
			return nil, &ValidationError{Message: fmt.Sprintf("duplicate asset %q", a)}
		}
		r.index[a] = len(r.assets)
		r.assets = append(r.assets, a)
	}
	return r, nil
}

// Exists returns true if the asset belongs to the registry.
func (r *AssetRegistry) Exists(a Asset) bool {
	_, ok := r.index[a]
	return ok
}

// List returns the assets in registry order. The returned slice is a copy.
func (r *AssetRegistry) List() []Asset {
	out := make([]Asset, len(r.assets))
	copy(out, r.assets)
	return out
}

// Len returns the number of assets.
func (r *AssetRegistry) Len() int {
	return len(r.assets)
}
