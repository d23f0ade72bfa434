package primitives

import (
	"bytes"

	"github.com/phoreproject/chainstate/chainhash"
	"github.com/phoreproject/chainstate/utils"
)

// Receipt is a cross-shard message produced by executing a transaction or
// another receipt.
type Receipt struct {
	PredecessorID AccountID
	ReceiverID    AccountID
	ReceiptID     chainhash.Hash
	Payload       []byte
}

// SignedTransaction is a transaction included in a chunk.
type SignedTransaction struct {
	SignerID   AccountID
	ReceiverID AccountID
	Nonce      uint64
	Actions    []byte
	Signature  []byte
}

// Hash hashes the transaction body.
func (t *SignedTransaction) Hash() chainhash.Hash {
	buf := new(bytes.Buffer)
	w := utils.NewWriter(buf)
	w.WriteString(string(t.SignerID))
	w.WriteString(string(t.ReceiverID))
	w.WriteUint64(t.Nonce)
	w.WriteVarBytes(t.Actions)
	return chainhash.HashH(buf.Bytes())
}

// ShardProof proves the receipts sent from one shard to another.
type ShardProof struct {
	FromShardID ShardID
	ToShardID   ShardID
	Proof       MerklePath
}

// ReceiptProof is a set of receipts with the proof they were sent.
type ReceiptProof struct {
	Receipts []Receipt
	Proof    ShardProof
}

// ReceiptProofResponse holds the incoming receipt proofs of a block.
type ReceiptProofResponse struct {
	BlockHash chainhash.Hash
	Proofs    []ReceiptProof
}

// CollectReceipts flattens the receipts of a set of proofs.
func CollectReceipts(proofs []ReceiptProof) []Receipt {
	var out []Receipt
	for _, p := range proofs {
		out = append(out, p.Receipts...)
	}
	return out
}

// CollectReceiptsFromResponse flattens the receipts of a set of responses.
func CollectReceiptsFromResponse(responses []ReceiptProofResponse) []Receipt {
	var out []Receipt
	for _, r := range responses {
		out = append(out, CollectReceipts(r.Proofs)...)
	}
	return out
}

// ExecutionOutcome is the result of executing a transaction or a receipt.
type ExecutionOutcome struct {
	Logs        []string
	ReceiptIDs  []chainhash.Hash
	GasBurnt    Gas
	TokensBurnt Balance
	ExecutorID  AccountID
	Status      []byte
}

// ExecutionOutcomeWithID is an outcome with the id of what was executed.
type ExecutionOutcomeWithID struct {
	ID      chainhash.Hash
	Outcome ExecutionOutcome
}

// Hash is the leaf committed to in the outcome root.
func (o *ExecutionOutcomeWithID) Hash() chainhash.Hash {
	buf := new(bytes.Buffer)
	w := utils.NewWriter(buf)
	w.WriteHash(o.ID)
	w.WriteUint32(uint32(len(o.Outcome.Logs)))
	for _, l := range o.Outcome.Logs {
		w.WriteString(l)
	}
	w.WriteUint32(uint32(len(o.Outcome.ReceiptIDs)))
	for _, r := range o.Outcome.ReceiptIDs {
		w.WriteHash(r)
	}
	w.WriteUint64(o.Outcome.GasBurnt)
	burnt := o.Outcome.TokensBurnt.Bytes32()
	w.WriteBytes(burnt[:])
	w.WriteString(string(o.Outcome.ExecutorID))
	w.WriteVarBytes(o.Outcome.Status)
	return chainhash.HashH(buf.Bytes())
}

// ExecutionOutcomeWithProof is an outcome with its path to the outcome root.
type ExecutionOutcomeWithProof struct {
	Proof   MerklePath
	Outcome ExecutionOutcome
}

// ComputeOutcomesProof merklizes outcomes into the outcome root of a chunk.
func ComputeOutcomesProof(outcomes []ExecutionOutcomeWithID) (chainhash.Hash, []MerklePath) {
	leaves := make([]chainhash.Hash, len(outcomes))
	for i := range outcomes {
		leaves[i] = outcomes[i].Hash()
	}
	return Merklize(leaves)
}
