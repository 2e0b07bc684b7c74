package store

import (
	"github.com/xchd-project/xchd/domain/consensus/model/externalapi"
	"github.com/xchd-project/xchd/domain/mempool/expiryindex"
	"github.com/xchd-project/xchd/domain/mempool/mempoolmodel"
)

// AddResult reports the outcome of a successful Add call, including every
// bundle the admission removed as a side effect. Add reports pending and
// failed outcomes as a *mempoolmodel.RuleError instead.
type AddResult struct {
	Item               *mempoolmodel.Item
	Status             mempoolmodel.Status
	RemovedConflicts   []externalapi.DomainHash
	RemovedExpired     []externalapi.DomainHash
	RemovedForCapacity []externalapi.DomainHash
}

// Add admits bundle into the store, or reports why it could not be
// admitted. The caller has already validated signatures and obtained cost,
// fee and conditions from the external evaluator.
func (s *Store) Add(bundle *externalapi.DomainBundle, cost, fee uint64, conditions *externalapi.DomainConditionsSummary, admissionHeight uint64) (*AddResult, error) {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	if cost == 0 {
		return nil, mempoolmodel.NewRuleError(mempoolmodel.ErrInvalidSpendBundle, errZeroCost.Error())
	}
	if fee >= mempoolmodel.MaxItemFee {
		return nil, mempoolmodel.NewRuleError(mempoolmodel.ErrInvalidSpendBundle, "fee exceeds the per-item limit")
	}
	// A bundle whose own cost exceeds the per-block
	// ceiling is rejected here, before any expiry logic runs.
	if cost > s.info.MaxBlockClvmCost {
		return nil, mempoolmodel.NewRuleError(mempoolmodel.ErrBlockCostExceedsMax, "bundle cost exceeds max_block_clvm_cost")
	}

	id := bundleID(bundle)
	if existing, ok := s.items[id]; ok {
		// add(b); add(b) is idempotent: return the prior outcome
		// rather than duplicating indices.
		return &AddResult{Item: existing, Status: mempoolmodel.StatusSuccess}, nil
	}

	if conditions.AssertHeightAbsolute != nil && *conditions.AssertHeightAbsolute > s.peakHeight {
		return nil, mempoolmodel.NewRuleError(mempoolmodel.ErrAssertHeightAbsoluteFailedFuture, "assert_height_absolute not yet reached")
	}

	spentCoinIDs := conditions.SpentCoinIDs()
	incomingRate := float64(fee) / float64(cost)

	var removedConflicts []externalapi.DomainHash
	if conflicting := s.coins.ConflictingBundles(spentCoinIDs); len(conflicting) > 0 {
		if !s.replacementAllowedLocked(conflicting, spentCoinIDs, fee, incomingRate) {
			return nil, mempoolmodel.NewRuleError(mempoolmodel.ErrMempoolConflict, "incoming bundle does not satisfy replacement rules")
		}
		for _, conflictID := range conflicting {
			s.removeLocked(conflictID, mempoolmodel.RemoveReasonConflict)
		}
		removedConflicts = conflicting
	}

	removedExpired, err := s.pruneNearExpiryLocked(cost, incomingRate, conditions)
	if err != nil {
		return nil, err
	}

	removedForCapacity, err := s.evictForCapacityLocked(cost, incomingRate)
	if err != nil {
		return nil, err
	}

	item := &mempoolmodel.Item{
		BundleID:          id,
		Bundle:            bundle,
		ConditionsSummary: conditions,
		Cost:              cost,
		Fee:               fee,
		AdmissionHeight:   admissionHeight,
		Sequence:          s.nextSequence,
	}
	s.nextSequence++

	s.items[id] = item
	s.priority.Insert(item)
	s.coins.Insert(id, spentCoinIDs)
	s.expiry.Insert(id, conditions.AssertBeforeHeight, conditions.AssertBeforeSeconds, item.FeePerCost(), cost)
	s.totalCost += cost
	s.totalFees += fee

	s.feeEstimator.AddMempoolItem(s.estimatorInfoLocked(), mempoolmodel.ItemInfo{
		Cost:        cost,
		Fee:         fee,
		HeightAdded: admissionHeight,
	})

	s.checkInvariantsLocked()

	log.Debugf("Admitted bundle %s (cost %d, fee %d, pool size %d)", id, cost, fee, len(s.items))

	return &AddResult{
		Item:               item,
		Status:             mempoolmodel.StatusSuccess,
		RemovedConflicts:   removedConflicts,
		RemovedExpired:     removedExpired,
		RemovedForCapacity: removedForCapacity,
	}, nil
}

// replacementAllowedLocked implements the three replacement rules: the
// incoming bundle must spend every coin spent by the conflict set, beat its
// total fee by at least min_replace_fee_per_cost_increase, and strictly
// improve on the conflict set's best fee-per-cost.
func (s *Store) replacementAllowedLocked(conflictIDs, incomingCoinIDs []externalapi.DomainHash, incomingFee uint64, incomingRate float64) bool {
	incomingSet := make(map[externalapi.DomainHash]struct{}, len(incomingCoinIDs))
	for _, coinID := range incomingCoinIDs {
		incomingSet[coinID] = struct{}{}
	}

	var sumFee uint64
	var maxRate float64
	for _, conflictID := range conflictIDs {
		item := s.items[conflictID]
		for _, coinID := range item.SpentCoinIDs() {
			if _, ok := incomingSet[coinID]; !ok {
				return false // not a superset
			}
		}
		sumFee += item.Fee
		if rate := item.FeePerCost(); rate > maxRate {
			maxRate = rate
		}
	}

	if incomingFee < sumFee+s.info.MinReplaceFeePerCostIncrease {
		return false
	}
	return incomingRate > maxRate
}

// pruneNearExpiryLocked implements near-expiry pruning, applied
// before capacity eviction. It returns the ids evicted with reason EXPIRED,
// or a RuleError(INVALID_FEE_LOW_FEE) if the incoming bundle cannot be
// admitted without evicting a resident bundle with a higher fee-per-cost.
// Expiring bundles with a fee-per-cost equal to the incoming one may be
// evicted.
func (s *Store) pruneNearExpiryLocked(cost uint64, incomingRate float64, conditions *externalapi.DomainConditionsSummary) ([]externalapi.DomainHash, error) {
	cutoffHeight := s.peakHeight + s.info.NearExpiryBlockWindow
	cutoffSeconds := s.peakTimestamp + s.info.NearExpirySecondsWindow

	nearExpiry := false
	if conditions.AssertBeforeHeight != nil && *conditions.AssertBeforeHeight < cutoffHeight {
		nearExpiry = true
	}
	if conditions.AssertBeforeSeconds != nil && *conditions.AssertBeforeSeconds < cutoffSeconds {
		nearExpiry = true
	}
	if !nearExpiry {
		return nil, nil
	}

	expiring := s.expiry.ExpiringBefore(cutoffHeight, cutoffSeconds)
	var windowCost uint64
	for _, candidate := range expiring {
		windowCost += candidate.Cost
	}
	if windowCost+cost <= s.info.MaxBlockClvmCost {
		return nil, nil
	}

	var evicted []expiryindex.Candidate
	remaining := windowCost
	for _, candidate := range expiring {
		if remaining+cost <= s.info.MaxBlockClvmCost {
			break
		}
		if candidate.FeePerCost > incomingRate {
			return nil, mempoolmodel.NewRuleError(mempoolmodel.ErrInvalidFeeLowFee, "near-expiry window cannot fit the incoming bundle without evicting a better bundle")
		}
		evicted = append(evicted, candidate)
		remaining -= candidate.Cost
	}
	if remaining+cost > s.info.MaxBlockClvmCost {
		return nil, mempoolmodel.NewRuleError(mempoolmodel.ErrInvalidFeeLowFee, "near-expiry window cannot fit the incoming bundle")
	}

	ids := make([]externalapi.DomainHash, len(evicted))
	for i, candidate := range evicted {
		ids[i] = candidate.BundleID
		s.removeLocked(candidate.BundleID, mempoolmodel.RemoveReasonExpired)
	}
	return ids, nil
}

// evictForCapacityLocked implements capacity eviction. A strictly-lower-rate
// set of resident bundles must suffice to fit the incoming bundle;
// equal-rate bundles are never evicted.
func (s *Store) evictForCapacityLocked(cost uint64, incomingRate float64) ([]externalapi.DomainHash, error) {
	if s.totalCost+cost <= s.info.MaxSizeInCost {
		return nil, nil
	}

	var evicted []externalapi.DomainHash
	remaining := s.totalCost
	aborted := false
	s.priority.AscendFromLowest(func(bundleID externalapi.DomainHash, feePerCost float64, itemCost uint64) bool {
		if remaining+cost <= s.info.MaxSizeInCost {
			return false
		}
		if feePerCost >= incomingRate {
			aborted = true
			return false
		}
		evicted = append(evicted, bundleID)
		remaining -= itemCost
		return true
	})
	if aborted || remaining+cost > s.info.MaxSizeInCost {
		return nil, mempoolmodel.NewRuleError(mempoolmodel.ErrInvalidFeeLowFee, "mempool full and incoming fee rate does not beat any evictable bundle")
	}

	for _, bundleID := range evicted {
		s.removeLocked(bundleID, mempoolmodel.RemoveReasonPoolFull)
	}
	return evicted, nil
}
