package chain

import (
	"github.com/phoreproject/chainstate/config"
	"github.com/phoreproject/chainstate/epoch"
	"github.com/phoreproject/chainstate/primitives"
)

// twoThirds returns floor(2 * total / 3).
func twoThirds(total primitives.Balance) primitives.Balance {
	q, _ := total.Add(total).DivMod(3)
	return q
}

// CanApprovedBlockBeProduced reports whether approvals are enough to produce
// a block. With TwoThirds, approvals from non-slashed producers must hold
// more than two thirds of the stake of both this and the next epoch. An empty
// approval slot is a missing approval.
func CanApprovedBlockBeProduced(mode config.DoomslugThresholdMode, approvals [][]byte, stakes []epoch.ApprovalStake) bool {
	if mode == config.NoApprovals {
		return true
	}

	totalThis := primitives.NewBalance(0)
	totalNext := primitives.NewBalance(0)
	for _, s := range stakes {
		totalThis = totalThis.Add(s.StakeThisEpoch)
		totalNext = totalNext.Add(s.StakeNextEpoch)
	}
	thresholdThis := twoThirds(totalThis)
	thresholdNext := twoThirds(totalNext)

	approvedThis := primitives.NewBalance(0)
	approvedNext := primitives.NewBalance(0)
	for i, approval := range approvals {
		if i >= len(stakes) || len(approval) == 0 || stakes[i].IsSlashed {
			continue
		}
		approvedThis = approvedThis.Add(stakes[i].StakeThisEpoch)
		approvedNext = approvedNext.Add(stakes[i].StakeNextEpoch)
	}

	return (approvedThis.Cmp(thresholdThis) > 0 || thresholdThis.IsZero()) &&
		(approvedNext.Cmp(thresholdNext) > 0 || thresholdNext.IsZero())
}

// VerifyOrphanHeaderApprovals checks the approvals of a header whose parent
// is not known. Headers that do not record the previous height are
// accepted.
func (u *ChainUpdate) VerifyOrphanHeaderApprovals(header *primitives.BlockHeader) error {
	prevHeight, ok := header.PrevHeight()
	if !ok {
		return nil
	}
	mode := u.doomslugThresholdMode
	return u.epochManager.VerifyApprovalsAndThresholdOrphan(
		header.EpochID(),
		func(approvals [][]byte, stakes []epoch.ApprovalStake) bool {
			return CanApprovedBlockBeProduced(mode, approvals, stakes)
		},
		header.PrevHash,
		prevHeight,
		header.Height(),
		header.InnerRest.Approvals,
	)
}
