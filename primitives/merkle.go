package primitives

import (
	"github.com/phoreproject/chainstate/chainhash"
)

// Direction is the side a sibling hash is on.
type Direction uint8

const (
	// Left means the sibling is hashed before the running hash.
	Left Direction = iota
	// Right means the sibling is hashed after the running hash.
	Right
)

// MerklePathItem is one sibling on a path to the root.
type MerklePathItem struct {
	Hash      chainhash.Hash
	Direction Direction
}

// MerklePath is the list of siblings from a leaf to the root.
type MerklePath []MerklePathItem

// Merklize computes the root of a binary merkle tree over the leaves and the
// path of each leaf. A node without a sibling is carried up unchanged. The
// root of no leaves is the default hash and the root of one leaf is the leaf.
func Merklize(leaves []chainhash.Hash) (chainhash.Hash, []MerklePath) {
	if len(leaves) == 0 {
		return chainhash.Hash{}, nil
	}

	paths := make([]MerklePath, len(leaves))
	positions := make([]int, len(leaves))
	level := make([]chainhash.Hash, len(leaves))
	copy(level, leaves)
	for i := range positions {
		positions[i] = i
	}

	for len(level) > 1 {
		for leaf, pos := range positions {
			if pos%2 == 0 {
				if pos+1 < len(level) {
					paths[leaf] = append(paths[leaf], MerklePathItem{Hash: level[pos+1], Direction: Right})
				}
			} else {
				paths[leaf] = append(paths[leaf], MerklePathItem{Hash: level[pos-1], Direction: Left})
			}
			positions[leaf] = pos / 2
		}

		next := make([]chainhash.Hash, 0, (len(level)+1)/2)
		for i := 0; i < len(level); i += 2 {
			if i+1 < len(level) {
				next = append(next, chainhash.CombineHashes(level[i], level[i+1]))
			} else {
				next = append(next, level[i])
			}
		}
		level = next
	}

	return level[0], paths
}

// ComputeRootFromPath folds a path over a leaf.
func ComputeRootFromPath(path MerklePath, leaf chainhash.Hash) chainhash.Hash {
	h := leaf
	for _, item := range path {
		if item.Direction == Left {
			h = chainhash.CombineHashes(item.Hash, h)
		} else {
			h = chainhash.CombineHashes(h, item.Hash)
		}
	}
	return h
}

// VerifyPath checks that a leaf is in the tree with the given root.
func VerifyPath(root chainhash.Hash, path MerklePath, leaf chainhash.Hash) bool {
	return ComputeRootFromPath(path, leaf) == root
}
