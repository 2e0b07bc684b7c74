package mempoolmanager

import (
	"github.com/xchd-project/xchd/domain/consensus/model/externalapi"
	"github.com/xchd-project/xchd/domain/mempool/dedup"
	"github.com/xchd-project/xchd/domain/mempool/mempoolmodel"
)

// AssembledBlock is the block-assembly consumer's expected output: a
// SpendBundle (coin spends plus aggregated signature) along with the
// coins it creates.
type AssembledBlock struct {
	Bundle    *externalapi.DomainBundle
	Additions []*externalapi.DomainCoin
}

// CreateBundleFromMempool walks the priority index in descending order,
// running each candidate through the dedup planner, and aggregates the
// bundles that fit within max_block_clvm_cost and max_block_reward.
// It returns ok=false if zero bundles were included. If peakHeaderHash
// matches the hash used for the previous call, that call's result (an empty
// one included) is returned without re-walking the index.
func (m *Manager) CreateBundleFromMempool(peakHeaderHash externalapi.DomainHash) (assembled *AssembledBlock, ok bool) {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	m.enter(StateAssembling)
	defer m.leave()

	if m.hasAssembled && m.lastAssembledPeakHash == peakHeaderHash {
		return m.lastAssembledResult, m.lastAssembledResult != nil
	}

	maxBlockCost, maxBlockReward := m.blockLimitsLocked()

	planner := dedup.NewPlanner()
	seenCoins := make(map[externalapi.DomainHash]struct{})

	var coinSpends []*externalapi.DomainCoinSpend
	var signatures [][]byte
	var additions []*externalapi.DomainCoin
	var costAccum, feeAccum uint64

	addCoin := func(coin *externalapi.DomainCoin) {
		id := coin.ID()
		if _, seen := seenCoins[id]; seen {
			return
		}
		seenCoins[id] = struct{}{}
		additions = append(additions, coin)
	}

	items := m.store.ItemsByPriority()
	for _, item := range items {
		plan, accepted := planner.Plan(item.Bundle)
		if !accepted {
			continue
		}

		effectiveCost := plan.EffectiveCost(item.Cost)
		if costAccum+effectiveCost > maxBlockCost || feeAccum+item.Fee > maxBlockReward {
			break
		}

		dedupSet := make(map[externalapi.DomainHash]struct{}, len(plan.DedupSpendCoinIDs))
		for _, coinID := range plan.DedupSpendCoinIDs {
			dedupSet[coinID] = struct{}{}
		}
		for _, spend := range item.Bundle.CoinSpends {
			if _, skip := dedupSet[spend.CoinID]; skip {
				continue
			}
			coinSpends = append(coinSpends, spend)
			for _, created := range spend.CreatedCoins {
				addCoin(created)
			}
		}
		for _, created := range plan.Additions {
			addCoin(created)
		}

		signatures = append(signatures, item.Bundle.AggregatedSignature)
		costAccum += effectiveCost
		feeAccum += item.Fee
	}

	if len(signatures) == 0 {
		m.hasAssembled = true
		m.lastAssembledPeakHash = peakHeaderHash
		m.lastAssembledResult = nil
		return nil, false
	}

	result := &AssembledBlock{
		Bundle: &externalapi.DomainBundle{
			CoinSpends:          coinSpends,
			AggregatedSignature: externalapi.AggregateSignatures(signatures),
		},
		Additions: additions,
	}

	m.hasAssembled = true
	m.lastAssembledPeakHash = peakHeaderHash
	m.lastAssembledResult = result

	log.Debugf("assembled block from mempool: %d bundles, cost %d, fee %d", len(signatures), costAccum, feeAccum)

	return result, true
}

// blockLimitsLocked returns the per-block cost ceiling and the max block
// reward bound used to break out of assembly. It must be called
// with mtx held.
func (m *Manager) blockLimitsLocked() (maxBlockCost, maxBlockReward uint64) {
	return m.store.Info().MaxBlockClvmCost, mempoolmodel.MaxBlockReward
}
