package mempoolmanager

import (
	"context"

	"github.com/xchd-project/xchd/domain/consensus/model/externalapi"
	"github.com/xchd-project/xchd/domain/mempool/mempoolmodel"
	"github.com/xchd-project/xchd/util/panics"
)

// goroutineWrapper guards every goroutine NewPeakAsync spawns with
// util/panics, so a peak-processing failure is logged and cleanly exits the
// process rather than silently killing an unmonitored goroutine.
var goroutineWrapper = panics.GoroutineWrapperFunc(log)

// NewPeak handles a peak transition. It removes every resident
// bundle that references a coin in spentCoinIDs (reason BLOCK_INCLUSION)
// and every bundle expired at the new peak's height/timestamp (reason
// EXPIRED), then re-attempts every bundle in the pending cache. A
// newPeak.Height at or below the current peak is treated as a reorg; the
// minimum required behavior of removing block-included and expired
// bundles is all this does for a reorg; it does not attempt to restore
// bundles a rolled-back block had included, since recovering those would
// need chain-state cooperation this module does not have.
func (m *Manager) NewPeak(ctx context.Context, newPeak PeakRecord, spentCoinIDs []externalapi.DomainHash) {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	m.enter(StateProcessing)
	defer m.leave()

	isReorg := newPeak.Height <= m.peak.Height
	m.peak = newPeak
	m.store.SetPeak(newPeak.Height, newPeak.Timestamp)

	if included := m.store.BundlesSpendingAny(spentCoinIDs); len(included) > 0 {
		m.store.Remove(included, mempoolmodel.RemoveReasonBlockInclusion)
	}
	if expired := m.store.ExpiredAt(newPeak.Height, newPeak.Timestamp); len(expired) > 0 {
		m.store.Remove(expired, mempoolmodel.RemoveReasonExpired)
	}

	if isReorg {
		log.Debugf("new peak %s (height %d) is not a forward extension of the prior peak; flushing conflicting/expired bundles only", newPeak.Hash, newPeak.Height)
	}

	m.retryPendingLocked(ctx)
}

// NewPeakAsync runs NewPeak on a background goroutine for callers that don't
// want to block their own caller on the store's write lock while a peak
// update drains. The goroutine is wrapped with
// util/panics.GoroutineWrapperFunc since nothing joins it.
func (m *Manager) NewPeakAsync(ctx context.Context, newPeak PeakRecord, spentCoinIDs []externalapi.DomainHash) {
	goroutineWrapper(func() {
		m.NewPeak(ctx, newPeak, spentCoinIDs)
	})
}

// retryPendingLocked re-attempts admission of every bundle in the pending
// cache against the now-current peak. It must be called with mtx held.
func (m *Manager) retryPendingLocked(ctx context.Context) {
	m.pendingMtx.Lock()
	retry := make([]struct {
		id externalapi.DomainHash
		pb *pendingBundle
	}, 0, len(m.pending))
	for id, pb := range m.pending {
		retry = append(retry, struct {
			id externalapi.DomainHash
			pb *pendingBundle
		}{id, pb})
	}
	m.pendingMtx.Unlock()

	for _, entry := range retry {
		result := m.admitLocked(ctx, entry.pb.bundle, entry.pb.conditions, entry.pb.cost, entry.id)
		switch result.Status {
		case mempoolmodel.StatusSuccess:
			log.Debugf("retried pending bundle %s admitted at height %d", entry.id, m.peak.Height)
		case mempoolmodel.StatusFailed:
			m.forgetPending(entry.id)
		}
	}
}
