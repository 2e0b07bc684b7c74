package mempoolmodel

import "github.com/xchd-project/xchd/domain/consensus/model/externalapi"

// Sequence is a monotonically increasing admission counter, used as the
// tie-breaker for bundles that share a fee-per-cost.
type Sequence uint64

// Item is a bundle resident in the mempool, together with the bookkeeping
// the priority/coin/expiry indices and the store need to manage it.
type Item struct {
	// BundleID is the id of Bundle, the key used throughout the indices and
	// store.
	BundleID externalapi.DomainHash

	// Bundle is the signed spend bundle itself.
	Bundle *externalapi.DomainBundle

	// ConditionsSummary is the per-spend and aggregate assertion data
	// produced by the ConditionsEvaluator at admission time.
	ConditionsSummary *externalapi.DomainConditionsSummary

	// Cost is the CLVM execution cost charged against max_size_in_cost and
	// max_block_clvm_cost.
	Cost uint64

	// Fee is the bundle's total fee, in base units.
	Fee uint64

	// AdmissionHeight is the peak height at the time the bundle was added.
	AdmissionHeight uint64

	// Sequence is this bundle's position in admission order, used to break
	// fee-per-cost ties in the priority index.
	Sequence Sequence
}

// FeePerCost is the bundle's fee rate, the primary ranking key of the
// priority index (Sequence breaks ties) and the sort key of the expiry
// index's near-expiry candidate list. Computed rather than stored to keep it
// always consistent with Fee and Cost.
func (item *Item) FeePerCost() float64 {
	if item.Cost == 0 {
		return 0
	}
	return float64(item.Fee) / float64(item.Cost)
}

// SpentCoinIDs returns the coin ids this bundle spends, in spend order.
func (item *Item) SpentCoinIDs() []externalapi.DomainHash {
	return item.ConditionsSummary.SpentCoinIDs()
}
