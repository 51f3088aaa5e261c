package lightclient

import (
	"github.com/pkg/errors"

	"github.com/xai-network/xaid/block"
	"github.com/xai-network/xaid/txn"
)

// TxProof is the self-contained bundle a light client needs to verify a
// transaction's inclusion: the containing block's header and Merkle
// proof path, plus the transaction itself (spec §4.10).
type TxProof struct {
	BlockIndex  uint64
	BlockHash   string
	MerkleRoot  string
	Header      block.Header
	Transaction *txn.Transaction
	Proof       []block.ProofStep
}

// ErrTxNotFound is returned when no on-chain block contains the requested
// transaction.
var ErrTxNotFound = errors.New("lightclient: transaction not found on chain")

// GetTransactionProof walks the chain from the tip backwards, finds the
// block containing txID, and builds a Merkle proof against that block's
// transaction-ID list in block order (the same order chainstore used to
// compute Header.MerkleRoot; spec §4.10: "get_transaction_proof(txid)").
func (s *Service) GetTransactionProof(txID string) (*TxProof, error) {
	tipHeight, ok := s.store.Height()
	if !ok {
		return nil, ErrTxNotFound
	}

	for height := int64(tipHeight); height >= 0; height-- {
		b, err := s.store.BlockByHeight(uint64(height))
		if err != nil {
			continue
		}

		ids := make([]string, len(b.Txs))
		var target *txn.Transaction
		for i, tx := range b.Txs {
			ids[i] = tx.TxID
			if tx.TxID == txID {
				target = tx
			}
		}
		if target == nil {
			continue
		}

		proof, ok := block.BuildMerkleProof(ids, txID)
		if !ok {
			return nil, errors.Wrapf(ErrTxNotFound, "transaction %s present in block %d but proof construction failed", txID, height)
		}

		return &TxProof{
			BlockIndex:  b.Header.Index,
			BlockHash:   b.Hash(),
			MerkleRoot:  b.Header.MerkleRoot,
			Header:      b.Header,
			Transaction: target,
			Proof:       proof,
		}, nil
	}

	return nil, ErrTxNotFound
}

// VerifyResult reports the outcome of verifying a TxProof.
type VerifyResult struct {
	Valid         bool
	Confirmations int64
	Reason        string
}

// VerifyProof folds proof.Proof into a computed root, compares it against
// the stored Header.MerkleRoot, confirms the block hash at that height on
// the current chain still matches the proof's embedded hash (reorg
// detection), and computes confirmations against minConfirmations (spec
// §4.10: "Proof verification: fold the proof into a computed root;
// compare against the stored merkle_root; then verify that the block
// hash on the chain at that height still matches the one embedded in the
// proof (reorg detection); then compute
// confirmations = tip_height − block_height + 1 and require
// ≥ MIN_CONFIRMATIONS"). If minConfirmations is zero, DefaultMinConfirmations
// is used.
func (s *Service) VerifyProof(proof *TxProof, minConfirmations int64) VerifyResult {
	if proof == nil || proof.Transaction == nil {
		return VerifyResult{Reason: "no proof data provided"}
	}
	if minConfirmations == 0 {
		minConfirmations = DefaultMinConfirmations
	}

	if !block.VerifyMerkleProof(proof.Transaction.TxID, proof.Proof, proof.MerkleRoot) {
		return VerifyResult{Reason: "merkle proof verification failed"}
	}

	onChain, err := s.store.BlockByHeight(proof.BlockIndex)
	if err != nil {
		return VerifyResult{Reason: "block index not found on chain"}
	}
	if onChain.Hash() != proof.BlockHash {
		return VerifyResult{Reason: "block hash mismatch - possible chain reorganization"}
	}

	tipHeight, ok := s.store.Height()
	if !ok {
		return VerifyResult{Reason: "chain has no tip"}
	}
	confirmations := int64(tipHeight) - int64(proof.BlockIndex) + 1

	if confirmations < minConfirmations {
		return VerifyResult{
			Confirmations: confirmations,
			Reason:        "insufficient confirmations",
		}
	}

	return VerifyResult{Valid: true, Confirmations: confirmations, Reason: "verified"}
}
