package expiryindex

import (
	"testing"

	"github.com/xchd-project/xchd/domain/consensus/model/externalapi"
)

func hashWithByte(b byte) externalapi.DomainHash {
	var h externalapi.DomainHash
	h[0] = b
	return h
}

func u64(v uint64) *uint64 { return &v }

func TestIndexSkipsBundlesWithoutExpiry(t *testing.T) {
	idx := New()
	idx.Insert(hashWithByte(1), nil, nil, 1.0, 100)
	if idx.Len() != 0 {
		t.Fatalf("expected bundle without expiry bounds to be untracked")
	}
}

func TestIndexDeadlinePassed(t *testing.T) {
	idx := New()
	b1, b2, b3 := hashWithByte(1), hashWithByte(2), hashWithByte(3)

	idx.Insert(b1, u64(100), nil, 0.5, 10)
	idx.Insert(b2, nil, u64(5000), 1.0, 20)
	idx.Insert(b3, u64(200), nil, 1.0, 30)

	passed := idx.DeadlinePassed(150, 1000)
	set := toSet(passed)
	if len(set) != 1 || !set[b1] {
		t.Fatalf("expected only b1 to have passed its deadline, got %v", passed)
	}

	passed = idx.DeadlinePassed(150, 6000)
	set = toSet(passed)
	if len(set) != 2 || !set[b1] || !set[b2] {
		t.Fatalf("expected b1 and b2, got %v", passed)
	}
}

func TestIndexExpiringBeforeOrderedByFeeRate(t *testing.T) {
	idx := New()
	r1 := hashWithByte(1) // assert_before_height=120, rate 0.5
	n := hashWithByte(2)  // assert_before_height=110, rate 1.0

	idx.Insert(r1, u64(120), nil, 0.5, 1000)
	idx.Insert(n, u64(110), nil, 1.0, 1)

	// peak at height 100, window 48 -> cutoff 148.
	candidates := idx.ExpiringBefore(148, 0)
	if len(candidates) != 2 {
		t.Fatalf("expected both bundles in the expiring window, got %v", candidates)
	}
	if candidates[0].BundleID != r1 || candidates[1].BundleID != n {
		t.Fatalf("expected ascending fee-rate order [r1, n], got %v", candidates)
	}
}

func TestIndexRemove(t *testing.T) {
	idx := New()
	b1 := hashWithByte(1)
	idx.Insert(b1, u64(100), u64(500), 1.0, 10)
	idx.Remove(b1)
	if idx.Contains(b1) {
		t.Fatalf("expected b1 to be removed")
	}
	if len(idx.DeadlinePassed(1000, 1000)) != 0 {
		t.Fatalf("expected no residual entries after removal")
	}
}

func toSet(ids []externalapi.DomainHash) map[externalapi.DomainHash]bool {
	set := make(map[externalapi.DomainHash]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}
