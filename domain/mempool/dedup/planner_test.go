package dedup

import (
	"testing"

	"github.com/xchd-project/xchd/domain/consensus/model/externalapi"
)

func hashWithByte(b byte) externalapi.DomainHash {
	var h externalapi.DomainHash
	h[0] = b
	return h
}

// Scenario 5: dedup savings across two bundles spending the same coin under
// the same solution.
func TestPlannerDedupSavings(t *testing.T) {
	planner := NewPlanner()
	elig := hashWithByte(1)
	solution := []byte{0xAA}

	b1 := &externalapi.DomainBundle{
		CoinSpends: []*externalapi.DomainCoinSpend{
			{CoinID: elig, Solution: solution, Flags: externalapi.SpendFlagEligibleForDedup, Cost: 500},
			{CoinID: hashWithByte(2), Solution: []byte{1}, Cost: 200},
		},
	}
	b2 := &externalapi.DomainBundle{
		CoinSpends: []*externalapi.DomainCoinSpend{
			{CoinID: elig, Solution: solution, Flags: externalapi.SpendFlagEligibleForDedup, Cost: 500},
			{CoinID: hashWithByte(3), Solution: []byte{1}, Cost: 300},
		},
	}

	plan1, ok := planner.Plan(b1)
	if !ok {
		t.Fatalf("expected b1 to be accepted")
	}
	if plan1.SavedCost != 0 {
		t.Fatalf("expected no savings on first occurrence, got %d", plan1.SavedCost)
	}
	if len(plan1.DedupSpendCoinIDs) != 0 {
		t.Fatalf("expected no dedup spends on first occurrence")
	}

	plan2, ok := planner.Plan(b2)
	if !ok {
		t.Fatalf("expected b2 to be accepted")
	}
	if plan2.SavedCost != 500 {
		t.Fatalf("expected 500 saved, got %d", plan2.SavedCost)
	}
	if len(plan2.DedupSpendCoinIDs) != 1 || plan2.DedupSpendCoinIDs[0] != elig {
		t.Fatalf("expected the eligible coin to be marked deduped, got %v", plan2.DedupSpendCoinIDs)
	}

	b2EffectiveCost := plan2.EffectiveCost(800) // 500 + 300
	if b2EffectiveCost != 300 {
		t.Fatalf("expected effective cost 300, got %d", b2EffectiveCost)
	}
}

func TestPlannerRejectsConflictingSolutions(t *testing.T) {
	planner := NewPlanner()
	elig := hashWithByte(1)

	b1 := &externalapi.DomainBundle{
		CoinSpends: []*externalapi.DomainCoinSpend{
			{CoinID: elig, Solution: []byte{0xAA}, Flags: externalapi.SpendFlagEligibleForDedup, Cost: 500},
		},
	}
	b2 := &externalapi.DomainBundle{
		CoinSpends: []*externalapi.DomainCoinSpend{
			{CoinID: elig, Solution: []byte{0xBB}, Flags: externalapi.SpendFlagEligibleForDedup, Cost: 500},
		},
	}

	if _, ok := planner.Plan(b1); !ok {
		t.Fatalf("expected b1 to be accepted")
	}
	if _, ok := planner.Plan(b2); ok {
		t.Fatalf("expected b2 to be rejected for conflicting solutions")
	}
}

func TestPlannerIgnoresSpendsNotFlaggedEligible(t *testing.T) {
	planner := NewPlanner()
	coin := hashWithByte(1)

	b1 := &externalapi.DomainBundle{
		CoinSpends: []*externalapi.DomainCoinSpend{
			{CoinID: coin, Solution: []byte{1}, Cost: 500},
		},
	}
	b2 := &externalapi.DomainBundle{
		CoinSpends: []*externalapi.DomainCoinSpend{
			{CoinID: coin, Solution: []byte{2}, Cost: 500},
		},
	}

	if _, ok := planner.Plan(b1); !ok {
		t.Fatalf("expected b1 to be accepted")
	}
	// Since neither spend is flagged eligible, differing solutions for the
	// same coin across bundles must never trigger a rejection; such a
	// conflict would already have been caught as a coin conflict upstream.
	if _, ok := planner.Plan(b2); !ok {
		t.Fatalf("expected b2 to be accepted since the spend is not dedup-eligible")
	}
}
