package chain

import (
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/phoreproject/chainstate/primitives"
	"github.com/phoreproject/chainstate/runtime"
)

// splitGas splits total into n parts that differ by at most one. The first
// total % n parts get the extra unit.
func splitGas(total primitives.Gas, n int) []primitives.Gas {
	quotient := total / primitives.Gas(n)
	remainder := total % primitives.Gas(n)
	out := make([]primitives.Gas, n)
	for i := range out {
		out[i] = quotient
		if primitives.Gas(i) < remainder {
			out[i]++
		}
	}
	return out
}

// splitBalance is splitGas for balances.
func splitBalance(total primitives.Balance, n int) []primitives.Balance {
	quotient, remainder := total.DivMod(uint64(n))
	one := primitives.NewBalance(1)
	out := make([]primitives.Balance, n)
	for i := range out {
		out[i] = quotient
		if uint64(i) < remainder {
			out[i] = quotient.Add(one)
		}
	}
	return out
}

func (u *ChainUpdate) processReshardingResults(block *primitives.Block, shardUID primitives.ShardUId, results ReshardingResults) error {
	switch r := results.(type) {
	case ApplyReshardingResults:
		log.WithFields(logrus.Fields{
			"height":   block.Header.Height(),
			"shard":    shardUID,
			"children": len(r),
		}).Debug("applying resharding results")
		return u.applyReshardingResults(block, shardUID, r)

	case StoreReshardingResults:
		log.WithFields(logrus.Fields{
			"height": block.Header.Height(),
			"shard":  shardUID,
		}).Debug("storing resharding results")
		changes := r.Changes
		return u.storeUpdate.AddStateChangesForResharding(block.Hash(), primitives.ShardID(shardUID.ShardID), &changes)

	default:
		return internalDefect("unknown resharding results %T", results)
	}
}

// applyReshardingResults splits the chunk extra of a parent shard between its
// children. Gas and balance are split evenly with the remainder going to the
// first children in shard uid order. The outcome root and the gas limit are
// kept since outcome proofs refer to the parent shard.
func (u *ChainUpdate) applyReshardingResults(block *primitives.Block, shardUID primitives.ShardUId, results []runtime.ReshardingChildResult) error {
	blockHash := block.Hash()
	prevHash := block.Header.PrevHash
	height := block.Header.Height()

	sorted := append([]runtime.ReshardingChildResult(nil), results...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].ShardUID.Less(sorted[j].ShardUID) })

	parentExtra, err := u.storeUpdate.GetChunkExtra(blockHash, shardUID)
	if err != nil {
		return err
	}

	nextEpochID, err := u.epochManager.GetNextEpochIDFromPrevBlock(prevHash)
	if err != nil {
		return err
	}
	nextLayout, err := u.epochManager.GetShardLayout(nextEpochID)
	if err != nil {
		return err
	}

	proposalsByShard := make(map[primitives.ShardUId][]primitives.ValidatorStake)
	for _, p := range parentExtra.ValidatorProposals {
		child := nextLayout.AccountIDToShardUID(p.AccountID)
		proposalsByShard[child] = append(proposalsByShard[child], p)
	}

	children, found := nextLayout.GetChildrenShardsUIDs(primitives.ShardID(shardUID.ShardID))
	if !found || len(children) == 0 {
		return internalDefect("shard layout version %d has no children for shard %s", nextLayout.Version, shardUID)
	}
	sort.Slice(children, func(i, j int) bool { return children[i].Less(children[j]) })
	if len(children) != len(sorted) {
		return internalDefect("got %d resharding results for %d children of shard %s", len(sorted), len(children), shardUID)
	}
	for i := range children {
		if children[i] != sorted[i].ShardUID {
			return internalDefect("missing resharding result for child %s of shard %s", children[i], shardUID)
		}
	}

	protocolVersion, err := u.protocolVersionFromPrevBlock(prevHash)
	if err != nil {
		return err
	}
	if primitives.CongestionControl.Enabled(protocolVersion) {
		return &UnsupportedConfigurationError{
			Feature:         "resharding with congestion control",
			ProtocolVersion: protocolVersion,
		}
	}

	gas := splitGas(parentExtra.GasUsed, len(sorted))
	balance := splitBalance(parentExtra.BalanceBurnt, len(sorted))

	flatStorage := u.runtime.GetFlatStorageManager()
	lastFinal := block.Header.LastFinalBlock()

	var sumGas primitives.Gas
	sumBalance := primitives.NewBalance(0)
	for i, child := range sorted {
		extra := primitives.NewChunkExtra(
			protocolVersion,
			child.NewRoot,
			parentExtra.OutcomeRoot,
			proposalsByShard[child.ShardUID],
			gas[i],
			parentExtra.GasLimit,
			balance[i],
			nil,
		)
		sumGas += gas[i]
		sumBalance = sumBalance.Add(balance[i])

		if err := u.saveFlatStateChanges(blockHash, prevHash, height, child.ShardUID, child.TrieChanges.StateChanges); err != nil {
			return err
		}
		// TODO: cover a child shard whose first blocks after the split have
		// missing chunks before relying on the flat head set here.
		if !lastFinal.IsZero() {
			b, err := flatStorage.UpdateFlatStorageForShard(u.storeUpdate, child.ShardUID, lastFinal)
			if err != nil {
				return err
			}
			u.storeUpdate.Merge(b)
		}

		if err := u.storeUpdate.SaveChunkExtra(blockHash, child.ShardUID, extra); err != nil {
			return err
		}
		if err := u.saveTrieChanges(child.TrieChanges, blockHash, height, child.ShardUID); err != nil {
			return err
		}
		reshardingChildExtras.Inc()
	}

	if sumGas != parentExtra.GasUsed {
		return internalDefect("resharding of shard %s split gas %d, parent used %d", shardUID, sumGas, parentExtra.GasUsed)
	}
	if sumBalance.Cmp(parentExtra.BalanceBurnt) != 0 {
		return internalDefect("resharding of shard %s split balance %s, parent burnt %s", shardUID, sumBalance, parentExtra.BalanceBurnt)
	}
	return nil
}
