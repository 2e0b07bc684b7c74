package mempoolmodel

import (
	"context"

	"github.com/xchd-project/xchd/domain/consensus/model/externalapi"
)

// CoinRecord describes the current on-chain state of a coin, as reported by
// the coin store.
type CoinRecord struct {
	Coin                *externalapi.DomainCoin
	ConfirmedBlockIndex uint64
	Spent               bool
	IsCoinbase          bool
	Timestamp           uint64
}

// CoinRecordLookup is the external dependency the core uses to resolve spent
// coin ids to their current on-chain record. Implementations are
// expected to consult the chain's UTXO set, never the mempool itself.
type CoinRecordLookup interface {
	// LookupCoin returns the record for coinID, or ok=false if the coin is
	// unknown to the chain (neither created nor spent). This is a
	// suspension point: the manager calls it at most once per unique
	// coin id per admission, before taking the store's write lock.
	LookupCoin(ctx context.Context, coinID externalapi.DomainHash) (record *CoinRecord, ok bool)
}

// ConditionsEvaluator is the external dependency that parses a bundle's
// puzzle reveals and solutions into a DomainConditionsSummary. The core
// never interprets puzzle/solution bytes itself.
type ConditionsEvaluator interface {
	// Evaluate returns the conditions summary for bundle, along with its
	// execution cost. It returns a *RuleError with a permanent ErrorKind
	// (ErrInvalidSpendBundle and friends) if the bundle fails to evaluate.
	// This is a suspension point, called before the store's write
	// lock is taken.
	Evaluate(ctx context.Context, bundle *externalapi.DomainBundle) (summary *externalapi.DomainConditionsSummary, cost uint64, err error)
}

// EstimatorInfo is the snapshot of pool-wide state passed to the fee
// estimator on every add/remove notification.
type EstimatorInfo struct {
	MaxSizeInCost uint64
	TotalCost     uint64
	TotalFees     uint64
	Now           uint64
}

// ItemInfo is the per-bundle detail passed to the fee estimator alongside
// EstimatorInfo.
type ItemInfo struct {
	Cost        uint64
	Fee         uint64
	HeightAdded uint64
}

// FeeEstimator is the external dependency notified on every admission and
// removal so it can track fee-rate history. The core only feeds it; the
// estimation model itself lives outside this module.
type FeeEstimator interface {
	// AddMempoolItem is called once a bundle has been admitted.
	AddMempoolItem(info EstimatorInfo, item ItemInfo)

	// RemoveMempoolItem is called whenever a resident bundle is removed for
	// any reason other than BLOCK_INCLUSION.
	RemoveMempoolItem(info EstimatorInfo, item ItemInfo)
}

// NullFeeEstimator is a FeeEstimator that ignores notifications, suitable
// for tests and for callers with no estimator of their own.
type NullFeeEstimator struct{}

// AddMempoolItem does nothing.
func (NullFeeEstimator) AddMempoolItem(EstimatorInfo, ItemInfo) {
	log.Tracef("null fee estimator ignoring AddMempoolItem notification")
}

// RemoveMempoolItem does nothing.
func (NullFeeEstimator) RemoveMempoolItem(EstimatorInfo, ItemInfo) {
	log.Tracef("null fee estimator ignoring RemoveMempoolItem notification")
}

var _ FeeEstimator = NullFeeEstimator{}
