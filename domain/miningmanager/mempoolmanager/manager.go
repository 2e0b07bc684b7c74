// Package mempoolmanager implements the mempool manager (component F): the
// top-level coordinator that validates incoming bundles against chain
// state, drives admission into the store, handles peak transitions, and
// assembles blocks from the resident set.
package mempoolmanager

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/xchd-project/xchd/domain/consensus/model/externalapi"
	"github.com/xchd-project/xchd/domain/mempool/mempoolmodel"
	"github.com/xchd-project/xchd/domain/mempool/store"
)

// State is the manager's coarse operating state,
// exposed for observability via Manager.State.
type State int32

const (
	// StateIdle: no admission, peak update or assembly currently in flight.
	StateIdle State = iota
	// StateProcessing: one admission or one peak update is in flight.
	StateProcessing
	// StateAssembling: a create_bundle_from_mempool call is in flight.
	StateAssembling
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateProcessing:
		return "PROCESSING"
	case StateAssembling:
		return "ASSEMBLING"
	default:
		return "UNKNOWN"
	}
}

// PeakRecord describes the chain head the manager measures expiry and
// height-lock checks against.
type PeakRecord struct {
	Hash      externalapi.DomainHash
	Height    uint64
	Timestamp uint64
}

// AddSpendBundleResult is the outcome of AddSpendBundle.
type AddSpendBundleResult struct {
	Cost   uint64
	Status mempoolmodel.Status
	Error  error
}

// Manager coordinates admission, peak transitions and block assembly over a
// single store. Mutating operations (AddSpendBundle, NewPeak) are
// serialized by mtx, keeping a single writer at a time. The conditions
// evaluator is called before mtx is taken; the coin lookup runs with mtx
// held but before the store's own write lock is taken, so neither suspension
// point blocks concurrent reads of the store.
type Manager struct {
	mtx   sync.Mutex
	state int32 // atomic, one of the State values

	store      *store.Store
	coinLookup mempoolmodel.CoinRecordLookup
	evaluator  mempoolmodel.ConditionsEvaluator

	peak PeakRecord

	pendingMtx sync.Mutex
	pending    map[externalapi.DomainHash]*pendingBundle

	lastAssembledPeakHash externalapi.DomainHash
	hasAssembled          bool
	lastAssembledResult   *AssembledBlock
}

// pendingBundle is a bundle that previously returned StatusPending, kept
// around so NewPeak can retry it.
type pendingBundle struct {
	bundle     *externalapi.DomainBundle
	conditions *externalapi.DomainConditionsSummary
	cost       uint64
}

// New builds a Manager over a fresh store configured with info and
// feeEstimator, consulting coinLookup and evaluator for the external
// collaborators. feeEstimator may be mempoolmodel.NullFeeEstimator{}.
func New(
	info *mempoolmodel.MempoolInfo,
	feeEstimator mempoolmodel.FeeEstimator,
	coinLookup mempoolmodel.CoinRecordLookup,
	evaluator mempoolmodel.ConditionsEvaluator,
) *Manager {
	return &Manager{
		store:      store.New(info, feeEstimator),
		coinLookup: coinLookup,
		evaluator:  evaluator,
		pending:    make(map[externalapi.DomainHash]*pendingBundle),
	}
}

// State returns the manager's current coarse state.
func (m *Manager) State() State {
	return State(atomic.LoadInt32(&m.state))
}

func (m *Manager) enter(s State) {
	atomic.StoreInt32(&m.state, int32(s))
}

func (m *Manager) leave() {
	atomic.StoreInt32(&m.state, int32(StateIdle))
}

// Store exposes the underlying store for read-only queries (size,
// total cost/fees, lookups) that may proceed concurrently with a
// mutating operation.
func (m *Manager) Store() *store.Store {
	return m.store
}

// Peak returns the manager's current view of the chain head.
func (m *Manager) Peak() PeakRecord {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	return m.peak
}

// AddSpendBundle validates and admits bundle. If conditions is nil,
// the manager invokes the configured ConditionsEvaluator to obtain it along
// with cost; otherwise conditions and cost are used as supplied (the usual
// path when the caller already ran pre-validation itself). The bundle's
// identifier is always derived from its content; id, if non-nil, is checked
// against it so a caller-supplied mismatch cannot desync the store's
// indices, and mismatches are rejected as ErrInvalidSpendBundle.
func (m *Manager) AddSpendBundle(
	ctx context.Context,
	bundle *externalapi.DomainBundle,
	conditions *externalapi.DomainConditionsSummary,
	cost uint64,
	id *externalapi.DomainHash,
) AddSpendBundleResult {
	expectedID := store.BundleID(bundle)
	if id != nil && *id != expectedID {
		return AddSpendBundleResult{
			Status: mempoolmodel.StatusFailed,
			Error:  mempoolmodel.NewRuleError(mempoolmodel.ErrInvalidSpendBundle, "supplied id does not match bundle content"),
		}
	}

	if conditions == nil {
		var err error
		conditions, cost, err = m.evaluator.Evaluate(ctx, bundle)
		if err != nil {
			return AddSpendBundleResult{Status: mempoolmodel.StatusFailed, Error: err}
		}
	}

	m.mtx.Lock()
	defer m.mtx.Unlock()
	m.enter(StateProcessing)
	defer m.leave()

	return m.admitLocked(ctx, bundle, conditions, cost, expectedID)
}

// admitLocked runs the coin-lookup / time-lock checks and delegates to the
// store. It must be called with mtx held; the conflict-check-then-admit
// sub-sequence inside store.Add never suspends.
func (m *Manager) admitLocked(
	ctx context.Context,
	bundle *externalapi.DomainBundle,
	conditions *externalapi.DomainConditionsSummary,
	cost uint64,
	id externalapi.DomainHash,
) AddSpendBundleResult {
	if existing, ok := m.store.LookupByID(id); ok {
		return AddSpendBundleResult{Cost: existing.Cost, Status: mempoolmodel.StatusSuccess}
	}

	// fee is the positive difference between spent and created coin
	// amounts; the evaluator reports created coins per
	// spend but not the spent coins' amounts, so those come from the
	// coin-record lookup, the same pass that checks for unknown/double
	// spends.
	var totalIn, totalOut uint64
	records := make(map[externalapi.DomainHash]*mempoolmodel.CoinRecord, len(conditions.Spends))
	for _, spend := range conditions.Spends {
		record, ok := records[spend.CoinID]
		if !ok {
			record, ok = m.coinLookup.LookupCoin(ctx, spend.CoinID)
			if ok {
				records[spend.CoinID] = record
			}
		}
		if !ok {
			m.rememberPending(id, bundle, conditions, cost)
			return AddSpendBundleResult{
				Status: mempoolmodel.StatusPending,
				Error:  mempoolmodel.NewRuleError(mempoolmodel.ErrUnknownUnspent, spend.CoinID.String()),
			}
		}
		if record.Spent && len(m.store.LookupByCoinID(spend.CoinID)) == 0 {
			return AddSpendBundleResult{
				Status: mempoolmodel.StatusFailed,
				Error:  mempoolmodel.NewRuleError(mempoolmodel.ErrDoubleSpend, spend.CoinID.String()),
			}
		}
		if result, failed := m.checkSpendTimeLocks(spend, record, id, bundle, conditions, cost); failed {
			return result
		}
		totalIn += record.Coin.Amount
		for _, created := range spend.CreatedCoins {
			totalOut += created.Amount
		}
	}
	if totalOut > totalIn {
		return AddSpendBundleResult{
			Status: mempoolmodel.StatusFailed,
			Error:  mempoolmodel.NewRuleError(mempoolmodel.ErrMintingCoin, "created coin amounts exceed spent coin amounts"),
		}
	}
	fee := totalIn - totalOut

	if conditions.AssertSecondsAbsolute != nil && *conditions.AssertSecondsAbsolute > m.peak.Timestamp {
		// Not yet reached, mirroring assert_height_absolute's "future"
		// case: retryable, since wall time only moves forward and a later
		// peak will eventually satisfy it.
		m.rememberPending(id, bundle, conditions, cost)
		return AddSpendBundleResult{
			Status: mempoolmodel.StatusPending,
			Error:  mempoolmodel.NewRuleError(mempoolmodel.ErrAssertSecondsAbsoluteFailedFuture, "assert_seconds_absolute not yet reached"),
		}
	}

	result, err := m.store.Add(bundle, cost, fee, conditions, m.peak.Height)
	if err != nil {
		ruleErr, ok := err.(*mempoolmodel.RuleError)
		if ok && ruleErr.Kind.Retryable() {
			m.rememberPending(id, bundle, conditions, cost)
			return AddSpendBundleResult{Status: mempoolmodel.StatusPending, Error: err}
		}
		return AddSpendBundleResult{Status: mempoolmodel.StatusFailed, Error: err}
	}

	m.forgetPending(id)
	log.Debugf("admitted bundle %s at height %d (cost %d)", id, m.peak.Height, cost)
	return AddSpendBundleResult{Cost: cost, Status: result.Status}
}

// checkSpendTimeLocks validates one spend's birth and relative time-lock
// assertions against the spent coin's on-chain record and the current peak.
// Birth mismatches can never heal and fail permanently; a relative height
// lock that has not elapsed yet will be satisfied by a later peak, so the
// bundle is remembered for retry. A relative seconds lock measures against
// the peak timestamp, which the node only learns on peak transitions, so an
// unsatisfied one is reported as failed rather than pending.
func (m *Manager) checkSpendTimeLocks(
	spend *externalapi.DomainCoinSpend,
	record *mempoolmodel.CoinRecord,
	id externalapi.DomainHash,
	bundle *externalapi.DomainBundle,
	conditions *externalapi.DomainConditionsSummary,
	cost uint64,
) (result AddSpendBundleResult, failed bool) {
	if spend.AssertMyBirthHeight != nil && *spend.AssertMyBirthHeight != record.ConfirmedBlockIndex {
		return AddSpendBundleResult{
			Status: mempoolmodel.StatusFailed,
			Error:  mempoolmodel.NewRuleError(mempoolmodel.ErrAssertMyBirthHeightFailed, spend.CoinID.String()),
		}, true
	}
	if spend.AssertMyBirthSeconds != nil && *spend.AssertMyBirthSeconds != record.Timestamp {
		return AddSpendBundleResult{
			Status: mempoolmodel.StatusFailed,
			Error:  mempoolmodel.NewRuleError(mempoolmodel.ErrAssertMyBirthSecondsFailed, spend.CoinID.String()),
		}, true
	}
	if spend.AssertHeightRelative != nil && record.ConfirmedBlockIndex+*spend.AssertHeightRelative > m.peak.Height {
		m.rememberPending(id, bundle, conditions, cost)
		return AddSpendBundleResult{
			Status: mempoolmodel.StatusPending,
			Error:  mempoolmodel.NewRuleError(mempoolmodel.ErrAssertHeightRelativeFailed, spend.CoinID.String()),
		}, true
	}
	if spend.AssertSecondsRelative != nil && record.Timestamp+*spend.AssertSecondsRelative > m.peak.Timestamp {
		return AddSpendBundleResult{
			Status: mempoolmodel.StatusFailed,
			Error:  mempoolmodel.NewRuleError(mempoolmodel.ErrAssertSecondsRelativeFailed, spend.CoinID.String()),
		}, true
	}
	return AddSpendBundleResult{}, false
}

func (m *Manager) rememberPending(id externalapi.DomainHash, bundle *externalapi.DomainBundle, conditions *externalapi.DomainConditionsSummary, cost uint64) {
	m.pendingMtx.Lock()
	defer m.pendingMtx.Unlock()
	m.pending[id] = &pendingBundle{bundle: bundle, conditions: conditions, cost: cost}
}

func (m *Manager) forgetPending(id externalapi.DomainHash) {
	m.pendingMtx.Lock()
	defer m.pendingMtx.Unlock()
	delete(m.pending, id)
}
