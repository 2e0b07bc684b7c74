// Package store implements the mempool store (component D): it owns the
// resident bundle table, applies admission, eviction and replacement
// policy, and keeps the priority, coin and expiry indices in sync.
package store

import (
	"crypto/sha256"
	"sync"

	"github.com/pkg/errors"

	"github.com/xchd-project/xchd/domain/consensus/model/externalapi"
	"github.com/xchd-project/xchd/domain/mempool/coinindex"
	"github.com/xchd-project/xchd/domain/mempool/expiryindex"
	"github.com/xchd-project/xchd/domain/mempool/mempoolmodel"
	"github.com/xchd-project/xchd/domain/mempool/priorityindex"
)

// Store owns every resident bundle and the three indices built over them.
// Every mutating method takes mtx for writing and every query takes it for
// reading; callers external to this package never touch the indices
// directly.
type Store struct {
	mtx sync.RWMutex

	info         *mempoolmodel.MempoolInfo
	feeEstimator mempoolmodel.FeeEstimator

	items    map[externalapi.DomainHash]*mempoolmodel.Item
	priority *priorityindex.Index
	coins    *coinindex.Index
	expiry   *expiryindex.Index

	totalCost    uint64
	totalFees    uint64
	nextSequence mempoolmodel.Sequence

	peakHeight    uint64
	peakTimestamp uint64
}

// New builds an empty Store. feeEstimator may be mempoolmodel.NullFeeEstimator{}
// if the caller has no fee-rate estimator of its own.
func New(info *mempoolmodel.MempoolInfo, feeEstimator mempoolmodel.FeeEstimator) *Store {
	return &Store{
		info:         info,
		feeEstimator: feeEstimator,
		items:        make(map[externalapi.DomainHash]*mempoolmodel.Item),
		priority:     priorityindex.New(),
		coins:        coinindex.New(),
		expiry:       expiryindex.New(),
	}
}

// SetPeak records the node's current peak height and timestamp, consulted by
// Add for the pending-height-absolute check and near-expiry pruning window.
func (s *Store) SetPeak(height, timestamp uint64) {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	s.peakHeight = height
	s.peakTimestamp = timestamp
}

// Peak returns the store's current notion of peak height and timestamp.
func (s *Store) Peak() (height, timestamp uint64) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()
	return s.peakHeight, s.peakTimestamp
}

// BundleID computes the identifier for bundle: the hash of its spent coin
// ids, their solutions, and the aggregated signature, in spend order. It is
// exported so callers upstream of the store (the mempool manager) can
// compute a bundle's id before it is known to be admitted, e.g. to check a
// caller-supplied id or to key a pending-bundle cache.
func BundleID(bundle *externalapi.DomainBundle) externalapi.DomainHash {
	return bundleID(bundle)
}

// bundleID is the unexported implementation shared by BundleID and every
// internal caller.
func bundleID(bundle *externalapi.DomainBundle) externalapi.DomainHash {
	h := sha256.New()
	for _, spend := range bundle.CoinSpends {
		h.Write(spend.CoinID[:])
		h.Write(spend.Solution)
	}
	h.Write(bundle.AggregatedSignature)
	var id externalapi.DomainHash
	copy(id[:], h.Sum(nil))
	return id
}

// Info returns the store's configuration, consulted by callers that
// need the configured cost ceilings without duplicating them.
func (s *Store) Info() *mempoolmodel.MempoolInfo {
	return s.info
}

// Size returns the number of resident bundles.
func (s *Store) Size() int {
	s.mtx.RLock()
	defer s.mtx.RUnlock()
	return len(s.items)
}

// TotalCost returns the aggregate cost of resident bundles.
func (s *Store) TotalCost() uint64 {
	s.mtx.RLock()
	defer s.mtx.RUnlock()
	return s.totalCost
}

// TotalFees returns the aggregate fee of resident bundles.
func (s *Store) TotalFees() uint64 {
	s.mtx.RLock()
	defer s.mtx.RUnlock()
	return s.totalFees
}

// LookupByID returns the resident item for bundleID, if any.
func (s *Store) LookupByID(bundleID externalapi.DomainHash) (*mempoolmodel.Item, bool) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()
	item, ok := s.items[bundleID]
	return item, ok
}

// LookupByCoinID returns every resident item spending coinID.
func (s *Store) LookupByCoinID(coinID externalapi.DomainHash) []*mempoolmodel.Item {
	s.mtx.RLock()
	defer s.mtx.RUnlock()
	ids := s.coins.BundlesSpending(coinID)
	if len(ids) == 0 {
		return nil
	}
	items := make([]*mempoolmodel.Item, 0, len(ids))
	for _, id := range ids {
		if item, ok := s.items[id]; ok {
			items = append(items, item)
		}
	}
	return items
}

// BundlesSpendingAny returns the union of resident bundle ids that spend any
// coin id in coinIDs, exposed so the mempool
// manager can find the bundles a newly connected block's spent-coin set
// conflicts with.
func (s *Store) BundlesSpendingAny(coinIDs []externalapi.DomainHash) []externalapi.DomainHash {
	s.mtx.RLock()
	defer s.mtx.RUnlock()
	return s.coins.ConflictingBundles(coinIDs)
}

// ExpiredAt returns every resident bundle id whose assert_before_height is
// at or below height, or whose assert_before_seconds is at or below
// timestamp, the set a peak transition removes with reason EXPIRED.
func (s *Store) ExpiredAt(height, timestamp uint64) []externalapi.DomainHash {
	s.mtx.RLock()
	defer s.mtx.RUnlock()
	return s.expiry.DeadlinePassed(height, timestamp)
}

// ItemsByPriority returns every resident item in descending fee-per-cost
// order, tie-broken by ascending admission sequence. The slice is a
// point-in-time snapshot; block assembly walks it.
func (s *Store) ItemsByPriority() []*mempoolmodel.Item {
	s.mtx.RLock()
	defer s.mtx.RUnlock()
	items := make([]*mempoolmodel.Item, 0, len(s.items))
	s.priority.DescendFromHighest(func(bundleID externalapi.DomainHash, _ float64, _ uint64) bool {
		items = append(items, s.items[bundleID])
		return true
	})
	return items
}

// MinFeeRateToFit returns the minimum fee-per-cost an incoming bundle of the
// given cost must clear to be admitted without eviction, or 0 if the pool
// has spare capacity.
func (s *Store) MinFeeRateToFit(cost uint64) float64 {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	if s.totalCost+cost <= s.info.MaxSizeInCost {
		return 0
	}

	remaining := s.totalCost
	var result float64
	s.priority.AscendFromLowest(func(_ externalapi.DomainHash, feePerCost float64, itemCost uint64) bool {
		remaining -= itemCost
		if remaining+cost <= s.info.MaxSizeInCost {
			result = feePerCost
			return false
		}
		return true
	})
	return result
}

// Remove atomically drops every id in ids from the bundle table and all
// three indices, with reason recorded for the fee estimator notification.
// Unknown ids are ignored.
func (s *Store) Remove(ids []externalapi.DomainHash, reason mempoolmodel.RemoveReason) {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	for _, id := range ids {
		s.removeLocked(id, reason)
	}
}

func (s *Store) removeLocked(bundleID externalapi.DomainHash, reason mempoolmodel.RemoveReason) {
	item, ok := s.items[bundleID]
	if !ok {
		return
	}
	delete(s.items, bundleID)
	s.priority.Remove(bundleID)
	s.coins.Remove(bundleID, item.SpentCoinIDs())
	s.expiry.Remove(bundleID)
	s.totalCost -= item.Cost
	s.totalFees -= item.Fee

	if reason != mempoolmodel.RemoveReasonBlockInclusion {
		s.feeEstimator.RemoveMempoolItem(s.estimatorInfoLocked(), mempoolmodel.ItemInfo{
			Cost:        item.Cost,
			Fee:         item.Fee,
			HeightAdded: item.AdmissionHeight,
		})
	}
	log.Debugf("Removed bundle %s (reason %s, pool size %d)", bundleID, reason, len(s.items))
}

func (s *Store) estimatorInfoLocked() mempoolmodel.EstimatorInfo {
	return mempoolmodel.EstimatorInfo{
		MaxSizeInCost: s.info.MaxSizeInCost,
		TotalCost:     s.totalCost,
		TotalFees:     s.totalFees,
		Now:           s.peakTimestamp,
	}
}

// checkInvariantsLocked enforces the store's post-operation invariants. A
// failure here means an index has desynced from the bundle table; the core
// panics rather than attempt recovery.
func (s *Store) checkInvariantsLocked() {
	if s.totalCost > s.info.MaxSizeInCost {
		panic(&mempoolmodel.ErrInvariantViolation{Reason: "total resident cost exceeds max_size_in_cost"})
	}
	if s.priority.Len() != len(s.items) {
		panic(&mempoolmodel.ErrInvariantViolation{Reason: "priority index size diverged from bundle table"})
	}
	if s.totalFees >= 1<<63 {
		panic(&mempoolmodel.ErrInvariantViolation{Reason: "total resident fee overflowed the 63-bit bound"})
	}
}

var errZeroCost = errors.New("bundle cost must be positive")
