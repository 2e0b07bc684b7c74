// Package dedup implements the identical-spend deduplication planner
// (component E) used during block assembly: it recognizes spends of the
// same coin under the same solution across multiple selected bundles and
// folds their execution cost and created coins into a single contribution.
package dedup

import "github.com/xchd-project/xchd/domain/consensus/model/externalapi"

// coinState is the planner's running memory for one coin id across the
// candidates visited so far in a single block-assembly pass.
type coinState struct {
	solution        []byte
	cached          bool
	cachedCost      uint64
	cachedAdditions []*externalapi.DomainCoin
}

// Plan is the outcome of running one candidate bundle through the planner:
// which of its dedup-eligible spends were folded into an earlier copy, how
// much cost that saved, and the created coins already contributed by that
// earlier copy (to be excluded from the block's addition list).
type Plan struct {
	DedupSpendCoinIDs []externalapi.DomainHash
	SavedCost         uint64
	Additions         []*externalapi.DomainCoin
}

// EffectiveCost returns bundleCost with the planner's savings applied, the
// value block assembly charges against max_block_clvm_cost.
func (p *Plan) EffectiveCost(bundleCost uint64) uint64 {
	return bundleCost - p.SavedCost
}

// Planner tracks dedup state across the candidates visited during a single
// create_bundle_from_mempool call. It is not safe for concurrent use and
// must be discarded (or Reset) between assembly attempts.
type Planner struct {
	state map[externalapi.DomainHash]*coinState
}

// NewPlanner returns an empty Planner, ready for one block-assembly pass.
func NewPlanner() *Planner {
	return &Planner{state: make(map[externalapi.DomainHash]*coinState)}
}

// Reset clears the planner's state so it can be reused for a fresh
// assembly pass.
func (p *Planner) Reset() {
	p.state = make(map[externalapi.DomainHash]*coinState)
}

// Plan runs bundle's dedup-eligible spends against the planner's running
// state. It returns ok=false if bundle spends a coin the planner has
// already seen under a different solution; the caller must skip the whole
// candidate, not just the conflicting spend.
func (p *Planner) Plan(bundle *externalapi.DomainBundle) (plan *Plan, ok bool) {
	plan = &Plan{}

	type update struct {
		coinID   externalapi.DomainHash
		newState *coinState
	}
	var updates []update

	for _, spend := range bundle.CoinSpends {
		if !spend.Flags.HasFlag(externalapi.SpendFlagEligibleForDedup) {
			continue
		}

		existing, seen := p.state[spend.CoinID]
		if !seen {
			// First occurrence: remember the solution, nothing saved yet.
			updates = append(updates, update{spend.CoinID, &coinState{solution: spend.Solution}})
			continue
		}

		if !bytesEqual(existing.solution, spend.Solution) {
			log.Debugf("rejecting candidate: coin %s spent under conflicting solutions", spend.CoinID)
			return nil, false
		}

		if !existing.cached {
			// Second occurrence: the first copy's spend now pays for
			// itself and every later copy folds in for free.
			newState := &coinState{
				solution:        existing.solution,
				cached:          true,
				cachedCost:      spend.Cost,
				cachedAdditions: spend.CreatedCoins,
			}
			updates = append(updates, update{spend.CoinID, newState})
			plan.SavedCost += spend.Cost
			plan.Additions = append(plan.Additions, spend.CreatedCoins...)
		} else {
			plan.SavedCost += existing.cachedCost
			plan.Additions = append(plan.Additions, existing.cachedAdditions...)
		}
		plan.DedupSpendCoinIDs = append(plan.DedupSpendCoinIDs, spend.CoinID)
	}

	for _, u := range updates {
		p.state[u.coinID] = u.newState
	}
	return plan, true
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
