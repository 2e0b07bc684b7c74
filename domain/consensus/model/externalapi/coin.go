package externalapi

import (
	"crypto/sha256"
	"encoding/binary"
)

// DomainCoin is a UTXO identified by hash(parentID || puzzleHash || amount).
type DomainCoin struct {
	ParentID   DomainHash
	PuzzleHash DomainHash
	Amount     uint64
}

// ID computes the coin's id, the hash of its parent id, puzzle hash, and
// amount serialized as a fixed-width big-endian integer.
func (c *DomainCoin) ID() DomainHash {
	var buf [DomainHashSize*2 + 8]byte
	copy(buf[:DomainHashSize], c.ParentID[:])
	copy(buf[DomainHashSize:DomainHashSize*2], c.PuzzleHash[:])
	binary.BigEndian.PutUint64(buf[DomainHashSize*2:], c.Amount)
	return sha256.Sum256(buf[:])
}

// Clone returns a copy of the coin.
func (c *DomainCoin) Clone() *DomainCoin {
	clone := *c
	return &clone
}

// Equal returns whether c equals other.
func (c *DomainCoin) Equal(other *DomainCoin) bool {
	if c == nil || other == nil {
		return c == other
	}
	return c.ParentID.Equal(&other.ParentID) &&
		c.PuzzleHash.Equal(&other.PuzzleHash) &&
		c.Amount == other.Amount
}

// SpendFlags is a bitset of per-spend properties reported by the conditions
// evaluator. The core treats every flag opaquely except
// EligibleForDedup.
type SpendFlags uint32

const (
	// SpendFlagEligibleForDedup marks a spend as safe to coalesce with other
	// bundles spending the same coin under the same solution during block
	// assembly.
	SpendFlagEligibleForDedup SpendFlags = 1 << iota
)

// HasFlag returns whether f is set in flags.
func (flags SpendFlags) HasFlag(f SpendFlags) bool {
	return flags&f != 0
}

// DomainCoinSpend is a single coin spend within a bundle: the coin being
// spent, the puzzle/solution pair used to spend it, and the coins it
// creates.
type DomainCoinSpend struct {
	CoinID       DomainHash
	PuzzleReveal []byte
	Solution     []byte
	CreatedCoins []*DomainCoin
	Flags        SpendFlags

	// AssertMyBirthHeight, if non-nil, requires the spent coin to have been
	// confirmed at exactly this height (ASSERT_MY_BIRTH_HEIGHT).
	AssertMyBirthHeight *uint64
	// AssertMyBirthSeconds, if non-nil, requires the spent coin's
	// confirmation timestamp to equal this value (ASSERT_MY_BIRTH_SECONDS).
	AssertMyBirthSeconds *uint64
	// AssertHeightRelative, if non-nil, is the number of blocks that must
	// have elapsed since the spent coin was confirmed.
	AssertHeightRelative *uint64
	// AssertSecondsRelative, if non-nil, is the number of seconds that must
	// have elapsed since the spent coin was confirmed.
	AssertSecondsRelative *uint64

	// Cost is the execution cost of this single spend, as computed by the
	// conditions evaluator. It is deterministic in the puzzle and solution,
	// so two spends of the same coin under the same solution always carry
	// the same Cost; the dedup planner relies on this to avoid re-running
	// any program.
	Cost uint64
}

// SolutionEqual returns whether two spends of the same coin used a bit-for-bit
// identical solution, the test the dedup planner uses to decide whether two
// bundles' spends of a coin are coalescable.
func (cs *DomainCoinSpend) SolutionEqual(other *DomainCoinSpend) bool {
	if len(cs.Solution) != len(other.Solution) {
		return false
	}
	for i := range cs.Solution {
		if cs.Solution[i] != other.Solution[i] {
			return false
		}
	}
	return true
}

// DomainConditionsSummary is the external evaluator's output for a bundle:
// the per-spend records plus any aggregate height/seconds assertions
// extracted from the bundle's conditions.
type DomainConditionsSummary struct {
	Spends []*DomainCoinSpend

	// AssertHeightAbsolute, if non-nil, is the minimum height at which the
	// bundle may be included (ASSERT_HEIGHT_ABSOLUTE).
	AssertHeightAbsolute *uint64
	// AssertBeforeHeight, if non-nil, is the height after which the bundle
	// is no longer valid.
	AssertBeforeHeight *uint64
	// AssertBeforeSeconds, if non-nil, is the timestamp after which the
	// bundle is no longer valid.
	AssertBeforeSeconds *uint64
	// AssertSecondsAbsolute, if non-nil, is the minimum timestamp at which
	// the bundle may be included.
	AssertSecondsAbsolute *uint64
}

// SpentCoinIDs returns the coin ids spent by the summary, in spend order.
func (s *DomainConditionsSummary) SpentCoinIDs() []DomainHash {
	ids := make([]DomainHash, len(s.Spends))
	for i, spend := range s.Spends {
		ids[i] = spend.CoinID
	}
	return ids
}

// DomainBundle is a signed transaction package: one or more coin spends plus
// an aggregated signature.
type DomainBundle struct {
	CoinSpends          []*DomainCoinSpend
	AggregatedSignature []byte
}
