// Package priorityindex implements the fee-per-cost ordered view over
// resident mempool bundles (component A).
package priorityindex

import (
	"github.com/google/btree"

	"github.com/xchd-project/xchd/domain/consensus/model/externalapi"
	"github.com/xchd-project/xchd/domain/mempool/mempoolmodel"
)

// btreeDegree is the branching factor passed to btree.New. 32 matches the
// degree the wider corpus uses for similarly small in-memory ordered sets.
const btreeDegree = 32

// entry is the btree.Item stored for each resident bundle, ordered ascending
// by fee-per-cost with admission sequence as the tie-breaker. Ascending
// order puts the worst bundle first, so eviction candidates fall out of
// Ascend and the best bundle falls out of Descend, matching the priority
// index's dual "highest first" / "lowest first" access patterns.
type entry struct {
	bundleID   externalapi.DomainHash
	feePerCost float64
	sequence   mempoolmodel.Sequence
	cost       uint64
}

var _ btree.Item = (*entry)(nil)

// Less implements btree.Item. Strict fee-per-cost ordering first; bundles
// sharing a fee-per-cost are ordered by descending sequence, so the
// earlier-admitted bundle sorts higher and comes first in
// DescendFromHighest.
func (e *entry) Less(than btree.Item) bool {
	other := than.(*entry)
	if e.feePerCost != other.feePerCost {
		return e.feePerCost < other.feePerCost
	}
	return e.sequence > other.sequence
}

// Index is the fee-ordered view over resident bundles. It holds no locks of
// its own; callers must serialize access to an Index the same way the
// mempool store serializes access to its other indices.
type Index struct {
	tree *btree.BTree
	byID map[externalapi.DomainHash]*entry
}

// New returns an empty Index.
func New() *Index {
	return &Index{
		tree: btree.New(btreeDegree),
		byID: make(map[externalapi.DomainHash]*entry),
	}
}

// Insert adds item to the index. Inserting a bundle id already present
// replaces its prior entry only when fee-per-cost and sequence are
// unchanged; otherwise the prior entry stays in the tree, so callers Remove
// before re-Inserting: replacement is a remove+insert pair, never a field
// mutation.
func (idx *Index) Insert(item *mempoolmodel.Item) {
	e := &entry{
		bundleID:   item.BundleID,
		feePerCost: item.FeePerCost(),
		sequence:   item.Sequence,
		cost:       item.Cost,
	}
	idx.tree.ReplaceOrInsert(e)
	idx.byID[item.BundleID] = e
}

// Remove deletes bundleID from the index, returning whether it was present.
func (idx *Index) Remove(bundleID externalapi.DomainHash) bool {
	e, ok := idx.byID[bundleID]
	if !ok {
		return false
	}
	idx.tree.Delete(e)
	delete(idx.byID, bundleID)
	return true
}

// Contains returns whether bundleID is present in the index.
func (idx *Index) Contains(bundleID externalapi.DomainHash) bool {
	_, ok := idx.byID[bundleID]
	return ok
}

// Len returns the number of resident bundle ids.
func (idx *Index) Len() int {
	return idx.tree.Len()
}

// FeePerCost returns the fee-per-cost recorded for bundleID.
func (idx *Index) FeePerCost(bundleID externalapi.DomainHash) (feePerCost float64, ok bool) {
	e, ok := idx.byID[bundleID]
	if !ok {
		return 0, false
	}
	return e.feePerCost, true
}

// DescendFromHighest walks resident bundles from the best fee-per-cost
// downward, invoking visit with each bundle id, its fee-per-cost and cost.
// Iteration stops early if visit returns false. This is the "iterate from
// highest" access pattern used by block assembly and by
// items_by_priority.
func (idx *Index) DescendFromHighest(visit func(bundleID externalapi.DomainHash, feePerCost float64, cost uint64) bool) {
	idx.tree.Descend(func(i btree.Item) bool {
		e := i.(*entry)
		return visit(e.bundleID, e.feePerCost, e.cost)
	})
}

// AscendFromLowest walks resident bundles from the worst fee-per-cost
// upward, invoking visit with each bundle id, its fee-per-cost and cost.
// Iteration stops early if visit returns false. This backs the
// capacity-eviction candidate walk and min_fee_rate_to_fit.
func (idx *Index) AscendFromLowest(visit func(bundleID externalapi.DomainHash, feePerCost float64, cost uint64) bool) {
	idx.tree.Ascend(func(i btree.Item) bool {
		e := i.(*entry)
		return visit(e.bundleID, e.feePerCost, e.cost)
	})
}
