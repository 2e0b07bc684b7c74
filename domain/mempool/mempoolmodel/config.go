package mempoolmodel

import "github.com/pkg/errors"

// MempoolInfo is the mempool's constant configuration, set at construction
// and never mutated during a run.
type MempoolInfo struct {
	// MaxSizeInCost is the aggregate cost ceiling for all resident bundles.
	MaxSizeInCost uint64

	// MaxBlockClvmCost is the per-block cost ceiling. Must be <= MaxSizeInCost.
	MaxBlockClvmCost uint64

	// MinReplaceFeePerCostIncrease is the absolute fee bump (in base units)
	// required of a replacement bundle on top of the fees of the bundles it
	// conflicts with.
	MinReplaceFeePerCostIncrease uint64

	// NearExpiryBlockWindow is the number of blocks ahead of the peak within
	// which a bundle's assert_before_height is considered "near expiry".
	NearExpiryBlockWindow uint64

	// NearExpirySecondsWindow is the number of seconds ahead of the peak
	// timestamp within which a bundle's assert_before_seconds is considered
	// "near expiry".
	NearExpirySecondsWindow uint64
}

// Defaults for the optional configuration knobs.
const (
	// DefaultMinReplaceFeePerCostIncrease is the default absolute fee bump
	// required to replace conflicting bundles.
	DefaultMinReplaceFeePerCostIncrease uint64 = 10_000_000

	// DefaultNearExpiryBlockWindow is the default near-expiry block window.
	DefaultNearExpiryBlockWindow uint64 = 48

	// DefaultNearExpirySecondsWindow is the default near-expiry seconds window.
	DefaultNearExpirySecondsWindow uint64 = 900

	// MaxItemFee is the exclusive upper bound on a single bundle's fee
	// (MEMPOOL_ITEM_FEE_LIMIT = 2**50), chosen so the sum of fees over any
	// finite resident set stays well under 2**63.
	MaxItemFee uint64 = 1 << 50

	// MaxBlockReward bounds the cumulative fee assembled into a single
	// block.
	MaxBlockReward uint64 = (1 << 64) - 1
)

// NewMempoolInfo builds a MempoolInfo, filling in the documented defaults for
// any zero-valued optional field, and validates the required invariants.
func NewMempoolInfo(maxSizeInCost, maxBlockClvmCost uint64) (*MempoolInfo, error) {
	info := &MempoolInfo{
		MaxSizeInCost:                maxSizeInCost,
		MaxBlockClvmCost:             maxBlockClvmCost,
		MinReplaceFeePerCostIncrease: DefaultMinReplaceFeePerCostIncrease,
		NearExpiryBlockWindow:        DefaultNearExpiryBlockWindow,
		NearExpirySecondsWindow:      DefaultNearExpirySecondsWindow,
	}
	return info, info.Validate()
}

// Validate checks the configuration invariants: both limits must be
// positive, and MaxSizeInCost must be at least MaxBlockClvmCost.
func (info *MempoolInfo) Validate() error {
	if info.MaxSizeInCost == 0 {
		return errors.New("max_size_in_cost must be positive")
	}
	if info.MaxBlockClvmCost == 0 {
		return errors.New("max_block_clvm_cost must be positive")
	}
	if info.MaxSizeInCost < info.MaxBlockClvmCost {
		return errors.New("max_size_in_cost must be >= max_block_clvm_cost")
	}
	return nil
}
