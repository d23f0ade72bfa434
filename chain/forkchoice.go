package chain

import (
	"github.com/sirupsen/logrus"

	"github.com/phoreproject/chainstate/chainhash"
	"github.com/phoreproject/chainstate/primitives"
	"github.com/phoreproject/chainstate/store"
)

// UpdateHeaderHeadIfNotChallenged moves the header head to header if header
// is higher. The new header head is returned, or nil if it did not move.
func (u *ChainUpdate) UpdateHeaderHeadIfNotChallenged(header *primitives.BlockHeader) (*primitives.Tip, error) {
	headerHead, err := u.storeUpdate.HeaderHead()
	if err != nil {
		return nil, err
	}
	if header.Height() <= headerHead.Height {
		return nil, nil
	}

	tip := primitives.TipFromHeader(header)
	if err := u.storeUpdate.SaveHeaderHeadIfNotChallenged(tip); err != nil {
		return nil, err
	}
	headerHeadHeight.Set(float64(tip.Height))

	log.WithFields(logrus.Fields{
		"hash":   tip.LastBlockHash,
		"height": tip.Height,
	}).Debug("header head updated")

	return tip, nil
}

// UpdateFinalHeadFromBlock moves the final head to the last final block of
// header if that block is known and higher than the final head.
func (u *ChainUpdate) UpdateFinalHeadFromBlock(header *primitives.BlockHeader) (*primitives.Tip, error) {
	finalHead, err := u.storeUpdate.FinalHead()
	if err != nil {
		return nil, err
	}
	finalHeader, err := u.storeUpdate.GetBlockHeader(header.LastFinalBlock())
	if store.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if finalHeader.Height() <= finalHead.Height {
		return nil, nil
	}

	tip := primitives.TipFromHeader(finalHeader)
	if err := u.storeUpdate.SaveFinalHead(tip); err != nil {
		return nil, err
	}
	finalHeadHeight.Set(float64(tip.Height))
	return tip, nil
}

// UpdateHead moves the final head using header, then moves the body head to
// header if header is higher. The new body head is returned, or nil if it did
// not move.
func (u *ChainUpdate) UpdateHead(header *primitives.BlockHeader) (*primitives.Tip, error) {
	if _, err := u.UpdateFinalHeadFromBlock(header); err != nil {
		return nil, err
	}

	head, err := u.storeUpdate.Head()
	if err != nil {
		return nil, err
	}
	if header.Height() <= head.Height {
		return nil, nil
	}

	tip := primitives.TipFromHeader(header)
	if err := u.storeUpdate.SaveBodyHead(tip); err != nil {
		return nil, err
	}
	blockHeightHead.Set(float64(tip.Height))
	blockOrdinalHead.Set(float64(header.BlockOrdinal()))

	log.WithFields(logrus.Fields{
		"hash":   tip.LastBlockHash,
		"height": tip.Height,
	}).Debug("head updated")

	return tip, nil
}

// MarkBlockAsChallenged marks a block as invalid. If the block is on the
// canonical chain, the head moves back to its parent, or to the challenger if
// the challenger is higher than the parent. The final head follows the last
// final block of the new head. The new head is returned, or nil if the head
// did not move.
//
// Only these two candidates are considered. A better chain elsewhere is
// picked up by the next block built on top of it.
func (u *ChainUpdate) MarkBlockAsChallenged(blockHash chainhash.Hash, challengerHash *chainhash.Hash) (*primitives.Tip, error) {
	if err := u.checkOpen(); err != nil {
		return nil, err
	}

	fields := logrus.Fields{"block": blockHash}
	if challengerHash != nil {
		fields["challenger"] = *challengerHash
	}
	log.WithFields(fields).Info("marking block as challenged")
	challengedBlocks.Inc()

	header, err := u.storeUpdate.GetBlockHeader(blockHash)
	if store.IsNotFound(err) {
		return nil, u.storeUpdate.SaveChallengedBlock(blockHash)
	}
	if err != nil {
		return nil, err
	}

	canonical, err := u.storeUpdate.GetBlockHashByHeight(header.Height())
	onChain := err == nil && canonical == blockHash
	if err != nil && !store.IsNotFound(err) {
		return nil, err
	}

	if err := u.storeUpdate.SaveChallengedBlock(blockHash); err != nil {
		return nil, err
	}
	if !onChain {
		return nil, nil
	}

	newHead, err := u.storeUpdate.GetBlockHeader(header.PrevHash)
	if err != nil {
		return nil, err
	}
	if challengerHash != nil {
		challenger, err := u.storeUpdate.GetBlockHeader(*challengerHash)
		if err != nil {
			return nil, err
		}
		if challenger.Height() > newHead.Height() {
			newHead = challenger
		}
	}

	tip := primitives.TipFromHeader(newHead)
	if err := u.storeUpdate.SaveHead(tip); err != nil {
		return nil, err
	}
	headerHeadHeight.Set(float64(tip.Height))
	blockHeightHead.Set(float64(tip.Height))
	blockOrdinalHead.Set(float64(newHead.BlockOrdinal()))

	if err := u.resetFinalHead(newHead); err != nil {
		return nil, err
	}

	log.WithFields(logrus.Fields{
		"head":   tip.LastBlockHash,
		"height": tip.Height,
	}).Info("head moved back after challenge")

	return tip, nil
}

// resetFinalHead points the final head at the last final block of head. If
// that block is unknown, finality of head is not observed yet and the final
// head is only moved down to genesis when it is above head.
func (u *ChainUpdate) resetFinalHead(head *primitives.BlockHeader) error {
	lastFinal := head.LastFinalBlock()
	if !lastFinal.IsZero() {
		finalHeader, err := u.storeUpdate.GetBlockHeader(lastFinal)
		if err == nil {
			tip := primitives.TipFromHeader(finalHeader)
			finalHeadHeight.Set(float64(tip.Height))
			return u.storeUpdate.SaveFinalHead(tip)
		}
		if !store.IsNotFound(err) {
			return err
		}
	}

	finalHead, err := u.storeUpdate.FinalHead()
	if err != nil {
		return err
	}
	if finalHead.Height <= head.Height() {
		return nil
	}
	genesis, err := u.storeUpdate.GetBlockHeaderByHeight(u.storeUpdate.GenesisHeight())
	if err != nil {
		return err
	}
	tip := primitives.TipFromHeader(genesis)
	finalHeadHeight.Set(float64(tip.Height))
	return u.storeUpdate.SaveFinalHead(tip)
}
