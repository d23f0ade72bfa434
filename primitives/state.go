package primitives

import (
	"github.com/phoreproject/chainstate/chainhash"
)

// StateChange is a raw change of one trie key. A nil Value deletes the key.
type StateChange struct {
	Key   []byte
	Value []byte
}

// TrieRefcountChange is a trie node whose reference count changes.
type TrieRefcountChange struct {
	NodeHash chainhash.Hash
	Value    []byte
	Refcount uint32
}

// TrieChanges are the changes produced by applying a chunk to a shard's
// trie.
type TrieChanges struct {
	ShardUID     ShardUId
	BlockHash    chainhash.Hash
	BlockHeight  BlockHeight
	OldRoot      chainhash.Hash
	NewRoot      chainhash.Hash
	Insertions   []TrieRefcountChange
	Deletions    []TrieRefcountChange
	StateChanges []StateChange
}

// StateChangesForResharding are the state changes of a parent shard that
// still have to be applied to its children.
type StateChangesForResharding struct {
	Changes                  []StateChange
	ProcessedDelayedReceipts []Receipt
}

// PartialState is the set of trie nodes touched while applying a chunk.
type PartialState struct {
	Nodes [][]byte
}

// StoredChunkStateTransitionData is what a stateless validator needs to
// replay the state transition of a chunk.
type StoredChunkStateTransitionData struct {
	BaseState        PartialState
	ReceiptsHash     chainhash.Hash
	ContractAccesses []chainhash.Hash
}
