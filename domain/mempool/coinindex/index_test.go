package coinindex

import (
	"testing"

	"github.com/xchd-project/xchd/domain/consensus/model/externalapi"
)

func hashWithByte(b byte) externalapi.DomainHash {
	var h externalapi.DomainHash
	h[0] = b
	return h
}

func TestIndexInsertAndConflict(t *testing.T) {
	idx := New()
	c1, c2, c3 := hashWithByte(1), hashWithByte(2), hashWithByte(3)
	b1, b2, b3 := hashWithByte(11), hashWithByte(12), hashWithByte(13)

	idx.Insert(b1, []externalapi.DomainHash{c1})
	idx.Insert(b2, []externalapi.DomainHash{c2})
	idx.Insert(b3, []externalapi.DomainHash{c1, c2})

	if len(idx.ConflictingBundles([]externalapi.DomainHash{c1})) == 0 {
		t.Fatalf("expected conflict on c1")
	}
	if got := idx.ConflictingBundles([]externalapi.DomainHash{c3}); got != nil {
		t.Fatalf("expected no conflict on c3, got %v", got)
	}

	conflicts := idx.ConflictingBundles([]externalapi.DomainHash{c1})
	set := toSet(conflicts)
	if len(set) != 2 || !set[b1] || !set[b3] {
		t.Fatalf("expected {b1, b3}, got %v", conflicts)
	}
}

func TestIndexRemoveClearsEmptyCoinEntries(t *testing.T) {
	idx := New()
	c1 := hashWithByte(1)
	b1 := hashWithByte(11)

	idx.Insert(b1, []externalapi.DomainHash{c1})
	idx.Remove(b1, []externalapi.DomainHash{c1})

	if got := idx.ConflictingBundles([]externalapi.DomainHash{c1}); got != nil {
		t.Fatalf("expected no residual entry for c1 after removal, got %v", got)
	}
	if got := idx.BundlesSpending(c1); got != nil {
		t.Fatalf("expected nil, got %v", got)
	}
}

func TestIndexManyToOneAndOneToMany(t *testing.T) {
	idx := New()
	c1, c2 := hashWithByte(1), hashWithByte(2)
	b1, b2 := hashWithByte(11), hashWithByte(12)

	// one-to-many: b1 spends both c1 and c2.
	idx.Insert(b1, []externalapi.DomainHash{c1, c2})
	// many-to-one: b2 also spends c1.
	idx.Insert(b2, []externalapi.DomainHash{c1})

	union := idx.ConflictingBundles([]externalapi.DomainHash{c1, c2})
	set := toSet(union)
	if len(set) != 2 || !set[b1] || !set[b2] {
		t.Fatalf("expected {b1, b2}, got %v", union)
	}

	idx.Remove(b1, []externalapi.DomainHash{c1, c2})
	remaining := idx.ConflictingBundles([]externalapi.DomainHash{c1, c2})
	set = toSet(remaining)
	if len(set) != 1 || !set[b2] {
		t.Fatalf("expected {b2}, got %v", remaining)
	}
}

func toSet(ids []externalapi.DomainHash) map[externalapi.DomainHash]bool {
	set := make(map[externalapi.DomainHash]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}
