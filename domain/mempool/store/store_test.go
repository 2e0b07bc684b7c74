package store

import (
	"testing"

	"github.com/davecgh/go-spew/spew"

	"github.com/xchd-project/xchd/domain/consensus/model/externalapi"
	"github.com/xchd-project/xchd/domain/mempool/mempoolmodel"
)

func hashWithByte(b byte) externalapi.DomainHash {
	var h externalapi.DomainHash
	h[0] = b
	return h
}

func u64(v uint64) *uint64 { return &v }

// bundleSpending builds a single-spend bundle with a distinguishing solution
// byte so distinct bundles never collide on bundleID.
func bundleSpending(coinID externalapi.DomainHash, solutionTag byte) *externalapi.DomainBundle {
	return &externalapi.DomainBundle{
		CoinSpends: []*externalapi.DomainCoinSpend{
			{CoinID: coinID, Solution: []byte{solutionTag}},
		},
		AggregatedSignature: []byte{solutionTag},
	}
}

func conditionsFor(bundle *externalapi.DomainBundle) *externalapi.DomainConditionsSummary {
	return &externalapi.DomainConditionsSummary{Spends: bundle.CoinSpends}
}

func newTestStore(t *testing.T, maxSizeInCost, maxBlockClvmCost uint64) *Store {
	t.Helper()
	info, err := mempoolmodel.NewMempoolInfo(maxSizeInCost, maxBlockClvmCost)
	if err != nil {
		t.Fatalf("NewMempoolInfo: %v", err)
	}
	return New(info, mempoolmodel.NullFeeEstimator{})
}

// Scenario 1: fee ordering.
func TestScenarioFeeOrdering(t *testing.T) {
	s := newTestStore(t, 10000, 10000)

	b1 := bundleSpending(hashWithByte(1), 1)
	b2 := bundleSpending(hashWithByte(2), 2)
	b3 := bundleSpending(hashWithByte(3), 3)

	mustAdd(t, s, b1, 1000, 100)
	mustAdd(t, s, b2, 1000, 300)
	mustAdd(t, s, b3, 1000, 200)

	items := s.ItemsByPriority()
	if len(items) != 3 {
		t.Fatalf("expected 3 items, got %d", len(items))
	}
	gotB2 := bundleID(b2)
	gotB3 := bundleID(b3)
	gotB1 := bundleID(b1)
	if items[0].BundleID != gotB2 || items[1].BundleID != gotB3 || items[2].BundleID != gotB1 {
		t.Fatalf("expected order [B2, B3, B1], got %s", spew.Sdump(items))
	}
}

// Scenario 2: capacity eviction.
func TestScenarioCapacityEviction(t *testing.T) {
	s := newTestStore(t, 2500, 2500)

	b1 := bundleSpending(hashWithByte(1), 1)
	b2 := bundleSpending(hashWithByte(2), 2)
	b3 := bundleSpending(hashWithByte(3), 3)

	mustAdd(t, s, b1, 1000, 100)
	mustAdd(t, s, b2, 1000, 300)

	result, err := s.Add(b3, 1000, 200, conditionsFor(b3), 0)
	if err != nil {
		t.Fatalf("Add(b3): %v", err)
	}
	if len(result.RemovedForCapacity) != 1 || result.RemovedForCapacity[0] != bundleID(b1) {
		t.Fatalf("expected b1 evicted for capacity, got %v", result.RemovedForCapacity)
	}
	if s.Size() != 2 {
		t.Fatalf("expected 2 resident bundles, got %d", s.Size())
	}
	if _, ok := s.LookupByID(bundleID(b1)); ok {
		t.Fatalf("expected b1 to be gone")
	}
}

// Scenario 3: replacement accepted.
func TestScenarioReplacementAccepted(t *testing.T) {
	s := newTestStore(t, 100_000_000, 100_000_000)

	c1, c2, c3 := hashWithByte(1), hashWithByte(2), hashWithByte(3)
	b1 := &externalapi.DomainBundle{
		CoinSpends: []*externalapi.DomainCoinSpend{
			{CoinID: c1, Solution: []byte{1}},
			{CoinID: c2, Solution: []byte{1}},
		},
		AggregatedSignature: []byte{1},
	}
	mustAdd(t, s, b1, 1000, 100)

	replacement := &externalapi.DomainBundle{
		CoinSpends: []*externalapi.DomainCoinSpend{
			{CoinID: c1, Solution: []byte{2}},
			{CoinID: c2, Solution: []byte{2}},
			{CoinID: c3, Solution: []byte{2}},
		},
		AggregatedSignature: []byte{2},
	}
	result, err := s.Add(replacement, 1000, 10_000_200, conditionsFor(replacement), 0)
	if err != nil {
		t.Fatalf("Add(replacement): %v", err)
	}
	if len(result.RemovedConflicts) != 1 || result.RemovedConflicts[0] != bundleID(b1) {
		t.Fatalf("expected b1 removed as a conflict, got %v", result.RemovedConflicts)
	}
	if s.Size() != 1 {
		t.Fatalf("expected only the replacement resident, got size %d", s.Size())
	}
}

// Scenario 4: replacement rejected for lack of strict rate improvement.
func TestScenarioReplacementRejectedSameRate(t *testing.T) {
	s := newTestStore(t, 100_000_000, 100_000_000)

	c1 := hashWithByte(1)
	b1 := bundleSpending(c1, 1)
	mustAdd(t, s, b1, 100, 100) // rate 1.0

	replacement := bundleSpending(c1, 2)
	_, err := s.Add(replacement, 10_000_200, 10_000_200, conditionsFor(replacement), 0) // rate 1.0
	if err == nil {
		t.Fatalf("expected replacement to be rejected for lack of rate improvement")
	}
	ruleErr, ok := err.(*mempoolmodel.RuleError)
	if !ok || ruleErr.Kind != mempoolmodel.ErrMempoolConflict {
		t.Fatalf("expected MEMPOOL_CONFLICT, got %v", err)
	}
	if s.Size() != 1 {
		t.Fatalf("expected b1 to remain resident")
	}
}

// Scenario 6: near-expiry eviction on admit.
func TestScenarioNearExpiryEviction(t *testing.T) {
	s := newTestStore(t, 100_000, 1000)
	s.SetPeak(100, 0)

	r1 := bundleSpending(hashWithByte(1), 1)
	r1Conditions := &externalapi.DomainConditionsSummary{
		Spends:             r1.CoinSpends,
		AssertBeforeHeight: u64(120),
	}
	if _, err := s.Add(r1, 1000, 500, r1Conditions, 100); err != nil {
		t.Fatalf("Add(r1): %v", err)
	}

	n := bundleSpending(hashWithByte(2), 2)
	nConditions := &externalapi.DomainConditionsSummary{
		Spends:             n.CoinSpends,
		AssertBeforeHeight: u64(110),
	}
	result, err := s.Add(n, 1, 1, nConditions, 100)
	if err != nil {
		t.Fatalf("Add(n): %v", err)
	}
	if len(result.RemovedExpired) != 1 || result.RemovedExpired[0] != bundleID(r1) {
		t.Fatalf("expected r1 evicted as EXPIRED, got %v", result.RemovedExpired)
	}
	if s.Size() != 1 {
		t.Fatalf("expected only n resident, got size %d", s.Size())
	}
}

// Scenario 7: bulk removal on peak (BLOCK_INCLUSION via Remove).
func TestScenarioBulkRemovalOnPeak(t *testing.T) {
	s := newTestStore(t, 100_000, 100_000)

	c1, c2 := hashWithByte(1), hashWithByte(2)
	b1 := bundleSpending(c1, 1)
	b2 := bundleSpending(c2, 2)
	b3 := &externalapi.DomainBundle{
		CoinSpends: []*externalapi.DomainCoinSpend{
			{CoinID: c1, Solution: []byte{3}},
			{CoinID: c2, Solution: []byte{3}},
		},
		AggregatedSignature: []byte{3},
	}
	mustAdd(t, s, b1, 100, 10)
	mustAdd(t, s, b2, 100, 10)
	mustAdd(t, s, b3, 100, 10)

	toRemove := s.LookupByCoinID(c1)
	ids := make([]externalapi.DomainHash, len(toRemove))
	for i, item := range toRemove {
		ids[i] = item.BundleID
	}
	s.Remove(ids, mempoolmodel.RemoveReasonBlockInclusion)

	if s.Size() != 1 {
		t.Fatalf("expected only b2 resident, got size %d", s.Size())
	}
	if _, ok := s.LookupByID(bundleID(b2)); !ok {
		t.Fatalf("expected b2 to remain")
	}
}

func TestAddIsIdempotentForSameBundle(t *testing.T) {
	s := newTestStore(t, 100_000, 100_000)
	b1 := bundleSpending(hashWithByte(1), 1)

	first, err := s.Add(b1, 100, 10, conditionsFor(b1), 0)
	if err != nil {
		t.Fatalf("first Add: %v", err)
	}
	second, err := s.Add(b1, 100, 10, conditionsFor(b1), 0)
	if err != nil {
		t.Fatalf("second Add: %v", err)
	}
	if first.Item.BundleID != second.Item.BundleID {
		t.Fatalf("expected the same item back")
	}
	if s.Size() != 1 {
		t.Fatalf("expected no duplicate index entries, got size %d", s.Size())
	}
}

func mustAdd(t *testing.T, s *Store, bundle *externalapi.DomainBundle, cost, fee uint64) *mempoolmodel.Item {
	t.Helper()
	result, err := s.Add(bundle, cost, fee, conditionsFor(bundle), 0)
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	return result.Item
}

func TestMinFeeRateToFit(t *testing.T) {
	s := newTestStore(t, 2000, 2000)

	if got := s.MinFeeRateToFit(1000); got != 0 {
		t.Fatalf("expected 0 for a pool with spare capacity, got %v", got)
	}

	b1 := bundleSpending(hashWithByte(1), 1)
	b2 := bundleSpending(hashWithByte(2), 2)
	mustAdd(t, s, b1, 1000, 100) // rate 0.1
	mustAdd(t, s, b2, 1000, 300) // rate 0.3

	// The pool is at capacity; fitting another 1000 cost requires evicting
	// b1, so the incoming bundle must clear b1's rate.
	if got := s.MinFeeRateToFit(1000); got != 0.1 {
		t.Fatalf("expected 0.1, got %v", got)
	}
}
