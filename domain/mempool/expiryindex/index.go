// Package expiryindex implements the time/height deadline index (component
// C): a view over resident bundles that carry an assert_before_height
// and/or assert_before_seconds bound, supporting fast lookup of bundles
// whose deadline has passed or is approaching.
package expiryindex

import (
	"sort"

	"github.com/google/btree"

	"github.com/xchd-project/xchd/domain/consensus/model/externalapi"
)

const btreeDegree = 32

// heightEntry orders bundles by ascending assert_before_height, tied by
// bundle id for a total order.
type heightEntry struct {
	threshold uint64
	bundleID  externalapi.DomainHash
}

func (e *heightEntry) Less(than btree.Item) bool {
	other := than.(*heightEntry)
	if e.threshold != other.threshold {
		return e.threshold < other.threshold
	}
	return e.bundleID.Less(other.bundleID)
}

// secondsEntry orders bundles by ascending assert_before_seconds, tied by
// bundle id.
type secondsEntry struct {
	threshold uint64
	bundleID  externalapi.DomainHash
}

func (e *secondsEntry) Less(than btree.Item) bool {
	other := than.(*secondsEntry)
	if e.threshold != other.threshold {
		return e.threshold < other.threshold
	}
	return e.bundleID.Less(other.bundleID)
}

// record is the bookkeeping kept per resident bundle that carries at least
// one expiry bound; bundles with neither bound never appear here.
type record struct {
	hasHeight  bool
	height     *heightEntry
	hasSeconds bool
	seconds    *secondsEntry
	feePerCost float64
	cost       uint64
}

// Candidate is one result row from an expiry query.
type Candidate struct {
	BundleID   externalapi.DomainHash
	FeePerCost float64
	Cost       uint64
}

// Index is the expiry view over resident bundles. It holds no locks of its
// own; callers must serialize access the same way the mempool store
// serializes access to its other indices.
type Index struct {
	byHeight  *btree.BTree
	bySeconds *btree.BTree
	records   map[externalapi.DomainHash]*record
}

// New returns an empty Index.
func New() *Index {
	return &Index{
		byHeight:  btree.New(btreeDegree),
		bySeconds: btree.New(btreeDegree),
		records:   make(map[externalapi.DomainHash]*record),
	}
}

// Insert adds bundleID to the index if it carries at least one expiry
// bound. Bundles with neither assertBeforeHeight nor assertBeforeSeconds
// set are not tracked, since they can never expire.
func (idx *Index) Insert(bundleID externalapi.DomainHash, assertBeforeHeight, assertBeforeSeconds *uint64, feePerCost float64, cost uint64) {
	if assertBeforeHeight == nil && assertBeforeSeconds == nil {
		return
	}
	rec := &record{feePerCost: feePerCost, cost: cost}
	if assertBeforeHeight != nil {
		rec.hasHeight = true
		rec.height = &heightEntry{threshold: *assertBeforeHeight, bundleID: bundleID}
		idx.byHeight.ReplaceOrInsert(rec.height)
	}
	if assertBeforeSeconds != nil {
		rec.hasSeconds = true
		rec.seconds = &secondsEntry{threshold: *assertBeforeSeconds, bundleID: bundleID}
		idx.bySeconds.ReplaceOrInsert(rec.seconds)
	}
	idx.records[bundleID] = rec
}

// Remove deletes bundleID from the index, a no-op if it was never tracked.
func (idx *Index) Remove(bundleID externalapi.DomainHash) {
	rec, ok := idx.records[bundleID]
	if !ok {
		return
	}
	if rec.hasHeight {
		idx.byHeight.Delete(rec.height)
	}
	if rec.hasSeconds {
		idx.bySeconds.Delete(rec.seconds)
	}
	delete(idx.records, bundleID)
}

// Contains returns whether bundleID is tracked by the index.
func (idx *Index) Contains(bundleID externalapi.DomainHash) bool {
	_, ok := idx.records[bundleID]
	return ok
}

// DeadlinePassed returns every tracked bundle whose assert_before_height is
// at or below height, or whose assert_before_seconds is at or below
// timestamp, the set a peak transition removes with reason EXPIRED.
func (idx *Index) DeadlinePassed(height, timestamp uint64) []externalapi.DomainHash {
	seen := make(map[externalapi.DomainHash]struct{})
	idx.byHeight.AscendLessThan(&heightEntry{threshold: height + 1}, func(i btree.Item) bool {
		seen[i.(*heightEntry).bundleID] = struct{}{}
		return true
	})
	idx.bySeconds.AscendLessThan(&secondsEntry{threshold: timestamp + 1}, func(i btree.Item) bool {
		seen[i.(*secondsEntry).bundleID] = struct{}{}
		return true
	})
	if len(seen) == 0 {
		return nil
	}
	ids := make([]externalapi.DomainHash, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	return ids
}

// ExpiringBefore returns every tracked bundle whose assert_before_height is
// strictly below heightCutoff, or whose assert_before_seconds is strictly
// below secondsCutoff, ordered by ascending fee-per-cost: the candidate
// walk near-expiry pruning runs on admission. Callers accumulate cost
// themselves while walking the result.
func (idx *Index) ExpiringBefore(heightCutoff, secondsCutoff uint64) []Candidate {
	seen := make(map[externalapi.DomainHash]struct{})
	idx.byHeight.AscendLessThan(&heightEntry{threshold: heightCutoff}, func(i btree.Item) bool {
		seen[i.(*heightEntry).bundleID] = struct{}{}
		return true
	})
	idx.bySeconds.AscendLessThan(&secondsEntry{threshold: secondsCutoff}, func(i btree.Item) bool {
		seen[i.(*secondsEntry).bundleID] = struct{}{}
		return true
	})
	if len(seen) == 0 {
		return nil
	}
	candidates := make([]Candidate, 0, len(seen))
	for id := range seen {
		rec := idx.records[id]
		candidates = append(candidates, Candidate{BundleID: id, FeePerCost: rec.feePerCost, Cost: rec.cost})
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].FeePerCost != candidates[j].FeePerCost {
			return candidates[i].FeePerCost < candidates[j].FeePerCost
		}
		return candidates[i].BundleID.Less(candidates[j].BundleID)
	})
	return candidates
}

// Len returns the number of tracked bundles.
func (idx *Index) Len() int {
	return len(idx.records)
}
