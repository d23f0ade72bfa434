package chain_test

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/phoreproject/chainstate/chain"
	"github.com/phoreproject/chainstate/chainhash"
	"github.com/phoreproject/chainstate/primitives"
	"github.com/phoreproject/chainstate/store"
)

func TestHeaderHeadIgnoresLowerHeader(t *testing.T) {
	tc := newTestChain(t)
	blocks := tc.extend(tc.genesis, "main", 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12)
	require.Equal(t, primitives.BlockHeight(12), tc.headerHead().Height)

	fork := tc.makeBlock(blocks[8], 10, blocks[7].Hash(), "fork")
	u := tc.update()
	require.NoError(t, u.StoreUpdate().SaveBlockHeader(&fork.Header))

	tip, err := u.UpdateHeaderHeadIfNotChallenged(&fork.Header)
	require.NoError(t, err)
	require.Nil(t, tip)
	require.NoError(t, u.Commit())

	require.Equal(t, blocks[11].Hash(), tc.headerHead().LastBlockHash)
	canonical, err := tc.store.GetBlockHashByHeight(10)
	require.NoError(t, err)
	require.Equal(t, blocks[9].Hash(), canonical)
}

func TestHeaderHeadRejectsChallengedBlock(t *testing.T) {
	tc := newTestChain(t)
	blocks := tc.extend(tc.genesis, "main", 1)

	b2 := tc.makeBlock(blocks[0], 2, lastFinalFor(blocks[0]), "b2")
	u := tc.update()
	require.NoError(t, u.StoreUpdate().SaveBlockHeader(&b2.Header))
	require.NoError(t, u.StoreUpdate().SaveChallengedBlock(b2.Hash()))

	_, err := u.UpdateHeaderHeadIfNotChallenged(&b2.Header)
	require.True(t, errors.Is(err, chain.ErrChallengedBlockOnChain))
}

func TestFinalHeadUnknownFinalBlock(t *testing.T) {
	tc := newTestChain(t)
	blocks := tc.extend(tc.genesis, "main", 1, 2, 3)
	finalBefore := tc.finalHead()

	header := tc.makeBlock(blocks[2], 4, chainhash.HashH([]byte("unknown")), "b4").Header
	u := tc.update()
	tip, err := u.UpdateFinalHeadFromBlock(&header)
	require.NoError(t, err)
	require.Nil(t, tip)
	require.Equal(t, 0, u.StoreUpdate().Len())
	require.Equal(t, finalBefore, tc.finalHead())
}

func TestChallengeUnknownBlock(t *testing.T) {
	tc := newTestChain(t)
	blocks := tc.extend(tc.genesis, "main", 1, 2, 3)
	unknown := chainhash.HashH([]byte("unknown"))

	u := tc.update()
	tip, err := u.MarkBlockAsChallenged(unknown, nil)
	require.NoError(t, err)
	require.Nil(t, tip)
	require.NoError(t, u.Commit())

	challenged, err := tc.store.IsBlockChallenged(unknown)
	require.NoError(t, err)
	require.True(t, challenged)

	require.Equal(t, blocks[2].Hash(), tc.head().LastBlockHash)
	require.Equal(t, blocks[2].Hash(), tc.headerHead().LastBlockHash)
	require.Equal(t, blocks[0].Hash(), tc.finalHead().LastBlockHash)
}

func TestChallengeBlockOffCanonicalChain(t *testing.T) {
	tc := newTestChain(t)
	blocks := tc.extend(tc.genesis, "main", 1, 2, 3)
	fork := tc.makeBlock(blocks[0], 2, tc.genesis.Hash(), "fork")
	tc.process(fork, caughtUp(), tc.newChunk(fork, 1, 1))

	u := tc.update()
	tip, err := u.MarkBlockAsChallenged(fork.Hash(), nil)
	require.NoError(t, err)
	require.Nil(t, tip)
	require.NoError(t, u.Commit())

	challenged, err := tc.store.IsBlockChallenged(fork.Hash())
	require.NoError(t, err)
	require.True(t, challenged)
	require.Equal(t, blocks[2].Hash(), tc.head().LastBlockHash)
}

func TestChallengeCanonicalBlock(t *testing.T) {
	cases := []struct {
		name string
		// parent index of the challenger in the main chain, -1 for no challenger
		challengerParent int
		challengerHeight primitives.BlockHeight
		expectChallenger bool
	}{
		{name: "no challenger", challengerParent: -1},
		{name: "higher challenger", challengerParent: 1, challengerHeight: 5, expectChallenger: true},
		{name: "challenger at predecessor height", challengerParent: 0, challengerHeight: 2},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			tc := newTestChain(t)
			blocks := tc.extend(tc.genesis, "main", 1, 2, 3, 4, 5, 6)

			var challengerHash *chainhash.Hash
			var challenger *primitives.Block
			if c.challengerParent >= 0 {
				parent := blocks[c.challengerParent]
				challenger = tc.makeBlock(parent, c.challengerHeight, lastFinalFor(parent), "challenger")
				tc.process(challenger, caughtUp(), tc.newChunk(challenger, 1, 1))
				h := challenger.Hash()
				challengerHash = &h
			}
			require.Equal(t, blocks[5].Hash(), tc.head().LastBlockHash)

			u := tc.update()
			tip, err := u.MarkBlockAsChallenged(blocks[2].Hash(), challengerHash)
			require.NoError(t, err)
			require.NoError(t, u.Commit())

			expected := &blocks[1].Header
			if c.expectChallenger {
				expected = &challenger.Header
			}
			require.Equal(t, primitives.TipFromHeader(expected), tip)
			require.LessOrEqual(t, tc.finalHead().Height, tc.head().Height)
			require.Equal(t, expected.Hash(), tc.head().LastBlockHash)
			require.Equal(t, expected.Hash(), tc.headerHead().LastBlockHash)
			require.Equal(t, expected.LastFinalBlock(), tc.finalHead().LastBlockHash)

			_, err = tc.store.GetBlockHashByHeight(3)
			require.True(t, store.IsNotFound(err), "the challenged height leaves the canonical chain")
			_, err = tc.store.GetBlockHashByHeight(6)
			require.True(t, store.IsNotFound(err))

			challenged, err := tc.store.IsBlockChallenged(blocks[2].Hash())
			require.NoError(t, err)
			require.True(t, challenged)
		})
	}
}

func TestBlockChallengingCanonicalBlockBecomesHead(t *testing.T) {
	tc := newTestChain(t)
	blocks := tc.extend(tc.genesis, "main", 1, 2, 3, 4)

	challenger := tc.makeBlock(blocks[1], 5, blocks[0].Hash(), "challenger")
	info := caughtUp()
	info.ChallengedBlocks = []chainhash.Hash{blocks[2].Hash()}

	u := tc.update()
	tip, err := u.PostprocessBlock(challenger, info, []chain.ShardApplyOutcome{tc.newChunk(challenger, 1, 1)})
	require.NoError(t, err)
	require.NotNil(t, tip)
	require.Equal(t, challenger.Hash(), tip.LastBlockHash)
	require.Equal(t, primitives.BlockHeight(5), tip.Height)
	require.NoError(t, u.Commit())

	require.Equal(t, challenger.Hash(), tc.head().LastBlockHash)
	require.Equal(t, challenger.Hash(), tc.headerHead().LastBlockHash)
	require.Equal(t, blocks[0].Hash(), tc.finalHead().LastBlockHash)

	_, err = tc.store.GetBlockHashByHeight(4)
	require.True(t, store.IsNotFound(err))

	next, err := tc.store.GetNextBlockHash(blocks[1].Hash())
	require.NoError(t, err)
	require.Equal(t, challenger.Hash(), next)
}

func TestChallengeFirstBlockFallsBackToGenesis(t *testing.T) {
	tc := newTestChain(t)
	blocks := tc.extend(tc.genesis, "main", 1, 2, 3)
	require.Equal(t, blocks[0].Hash(), tc.finalHead().LastBlockHash)

	u := tc.update()
	tip, err := u.MarkBlockAsChallenged(blocks[0].Hash(), nil)
	require.NoError(t, err)
	require.NoError(t, u.Commit())

	genesisTip := primitives.TipFromHeader(&tc.genesis.Header)
	require.Equal(t, genesisTip, tip)
	require.Equal(t, genesisTip, tc.head())
	require.Equal(t, genesisTip, tc.headerHead())
	require.Equal(t, genesisTip, tc.finalHead())

	_, err = tc.store.GetBlockHashByHeight(1)
	require.True(t, store.IsNotFound(err))
}

func TestChallengerOpeningEpochSavesLightClientBlock(t *testing.T) {
	tc := newTestChain(t)
	blocks := tc.extend(tc.genesis, "main", 1, 2, 3, 5)
	genesisEpoch := tc.epochs.GenesisEpochID()
	require.Equal(t, genesisEpoch, blocks[3].Header.EpochID())

	fork := tc.makeBlock(blocks[2], 4, lastFinalFor(blocks[2]), "fork")
	require.Nil(t, tc.process(fork, caughtUp(), tc.newChunk(fork, 1, 1)))

	challenger := tc.makeBlock(fork, 6, lastFinalFor(fork), "challenger")
	require.NotEqual(t, genesisEpoch, challenger.Header.EpochID())
	info := caughtUp()
	info.ChallengedBlocks = []chainhash.Hash{blocks[3].Hash()}

	tip := tc.process(challenger, info, tc.newChunk(challenger, 1, 1))
	require.NotNil(t, tip)
	require.Equal(t, challenger.Hash(), tip.LastBlockHash)
	require.Equal(t, challenger.Hash(), tc.head().LastBlockHash)
	require.Equal(t, blocks[2].Hash(), tc.finalHead().LastBlockHash)

	view, err := tc.store.GetEpochLightClientBlock(genesisEpoch)
	require.NoError(t, err)
	require.Equal(t, blocks[1].Header.InnerLite, view.InnerLite)
	require.Equal(t, blocks[2].Header.InnerHash(), view.NextBlockInnerHash)
	require.Equal(t, fork.Header.InnerRest.Approvals, view.ApprovalsAfterNext)
}
