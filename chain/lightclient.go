package chain

import (
	"github.com/pkg/errors"

	"github.com/phoreproject/chainstate/primitives"
)

// createLightClientBlock builds the light client block of the epoch ending
// with header. The next block hash of header's parent is saved first since it
// may not be set yet.
func (u *ChainUpdate) createLightClientBlock(header *primitives.BlockHeader) (*primitives.LightClientBlockView, error) {
	if err := u.storeUpdate.SaveNextBlockHash(header.PrevHash, header.Hash()); err != nil {
		return nil, err
	}

	final, err := u.storeUpdate.GetBlockHeader(header.LastFinalBlock())
	if err != nil {
		return nil, errors.Wrapf(err, "could not get last final block of %s", header.Hash())
	}

	next, afterNext, err := u.nextTwoHeaders(final)
	if err != nil {
		return nil, err
	}

	// if the blocks after the final block already belong to the next epoch,
	// the final block of the final block is the last one the light client can
	// verify
	if next.EpochID() != final.EpochID() && afterNext.EpochID() != final.EpochID() {
		final, err = u.storeUpdate.GetBlockHeader(final.LastFinalBlock())
		if err != nil {
			return nil, err
		}
		next, afterNext, err = u.nextTwoHeaders(final)
		if err != nil {
			return nil, err
		}
	}

	nextBPs, err := u.epochManager.GetEpochBlockProducersOrdered(final.NextEpochID())
	if err != nil {
		return nil, err
	}

	return &primitives.LightClientBlockView{
		PrevBlockHash:      final.PrevHash,
		NextBlockInnerHash: next.InnerHash(),
		InnerLite:          final.InnerLite,
		InnerRestHash:      final.InnerRest.Hash(),
		NextBPs:            nextBPs,
		ApprovalsAfterNext: afterNext.InnerRest.Approvals,
	}, nil
}

// nextTwoHeaders follows the next block links of the canonical chain, which
// may skip heights.
func (u *ChainUpdate) nextTwoHeaders(header *primitives.BlockHeader) (*primitives.BlockHeader, *primitives.BlockHeader, error) {
	nextHash, err := u.storeUpdate.GetNextBlockHash(header.Hash())
	if err != nil {
		return nil, nil, err
	}
	next, err := u.storeUpdate.GetBlockHeader(nextHash)
	if err != nil {
		return nil, nil, err
	}
	afterNextHash, err := u.storeUpdate.GetNextBlockHash(nextHash)
	if err != nil {
		return nil, nil, err
	}
	afterNext, err := u.storeUpdate.GetBlockHeader(afterNextHash)
	if err != nil {
		return nil, nil, err
	}
	return next, afterNext, nil
}
