// Package coinindex implements the coin-to-bundle conflict index (component
// B): a bag-style map from spent coin id to the set of resident bundle ids
// currently spending it.
package coinindex

import "github.com/xchd-project/xchd/domain/consensus/model/externalapi"

// Index maps each spent coin id to the bundle ids currently referencing it.
// It holds no locks of its own; callers must serialize access the same way
// the mempool store serializes access to its other indices.
type Index struct {
	coinToBundles map[externalapi.DomainHash]map[externalapi.DomainHash]struct{}
}

// New returns an empty Index.
func New() *Index {
	return &Index{
		coinToBundles: make(map[externalapi.DomainHash]map[externalapi.DomainHash]struct{}),
	}
}

// Insert records that bundleID spends every coin id in coinIDs.
func (idx *Index) Insert(bundleID externalapi.DomainHash, coinIDs []externalapi.DomainHash) {
	for _, coinID := range coinIDs {
		bundles, ok := idx.coinToBundles[coinID]
		if !ok {
			bundles = make(map[externalapi.DomainHash]struct{})
			idx.coinToBundles[coinID] = bundles
		}
		bundles[bundleID] = struct{}{}
	}
}

// Remove deletes every entry referencing bundleID for the given coin ids
// (normally the bundle's own spent coin ids, obtained from the bundle table
// before the table entry itself is dropped).
func (idx *Index) Remove(bundleID externalapi.DomainHash, coinIDs []externalapi.DomainHash) {
	for _, coinID := range coinIDs {
		bundles, ok := idx.coinToBundles[coinID]
		if !ok {
			continue
		}
		delete(bundles, bundleID)
		if len(bundles) == 0 {
			delete(idx.coinToBundles, coinID)
		}
	}
}

// BundlesSpending returns the set of resident bundle ids currently spending
// coinID, or nil if none.
func (idx *Index) BundlesSpending(coinID externalapi.DomainHash) []externalapi.DomainHash {
	bundles, ok := idx.coinToBundles[coinID]
	if !ok {
		return nil
	}
	ids := make([]externalapi.DomainHash, 0, len(bundles))
	for id := range bundles {
		ids = append(ids, id)
	}
	return ids
}

// ConflictingBundles returns the union of resident bundle ids spending any
// coin id in coinIDs. The result has no duplicates.
func (idx *Index) ConflictingBundles(coinIDs []externalapi.DomainHash) []externalapi.DomainHash {
	union := make(map[externalapi.DomainHash]struct{})
	for _, coinID := range coinIDs {
		for id := range idx.coinToBundles[coinID] {
			union[id] = struct{}{}
		}
	}
	if len(union) == 0 {
		return nil
	}
	ids := make([]externalapi.DomainHash, 0, len(union))
	for id := range union {
		ids = append(ids, id)
	}
	return ids
}
