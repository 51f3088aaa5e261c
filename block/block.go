// Package block implements the block and header model (C6): structure,
// Merkle root construction/verification, proof-of-work target checking,
// and the emission schedule.
package block

import (
	"github.com/xai-network/xaid/txn"
)

// Block is a full block: header plus its ordered transaction list (spec
// §3, §6: "Block wire format").
type Block struct {
	Header Header
	Txs    []*txn.Transaction
}

// Height returns the block's chain height, satisfying utxo.BlockView.
func (b *Block) Height() uint64 { return b.Header.Index }

// Transactions satisfies utxo.BlockView.
func (b *Block) Transactions() []*txn.Transaction { return b.Txs }

// Hash returns the block's content hash, i.e. its header's hash.
func (b *Block) Hash() string { return b.Header.Hash() }

// ComputeMerkleRoot derives the Merkle root of b's transaction IDs, in the
// order they appear in the block.
func (b *Block) ComputeMerkleRoot() string {
	ids := make([]string, len(b.Txs))
	for i, tx := range b.Txs {
		ids[i] = tx.TxID
	}
	return MerkleRoot(ids)
}

// New assembles a block with its Merkle root computed from transactions;
// callers are responsible for mining (finding a Nonce that meets the
// target difficulty) afterwards.
func New(index uint64, previousHash string, timestamp int64, difficulty int, transactions []*txn.Transaction) *Block {
	b := &Block{
		Header: Header{
			Index:        index,
			PreviousHash: previousHash,
			Timestamp:    timestamp,
			Difficulty:   difficulty,
		},
		Txs: transactions,
	}
	b.Header.MerkleRoot = b.ComputeMerkleRoot()
	return b
}
