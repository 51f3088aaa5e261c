package chainstore

import (
	"github.com/xai-network/xaid/block"
	"github.com/xai-network/xaid/txn"
)

// chainWorkUnit is the proof-of-work credit a single block contributes
// toward its chain's total weight: each additional required leading hex
// zero roughly multiplies the search space by 16, mirroring how
// MeetsDifficulty counts leading zero hex digits (spec §3, §4.6).
func chainWorkUnit(difficulty int) float64 {
	work := 1.0
	for i := 0; i < difficulty; i++ {
		work *= 16
	}
	return work
}

// parentLocked resolves the block a given hash's previous_hash points to,
// searching side branches first and then the persisted main chain.
func (s *Store) parentLocked(hash string) (*block.Block, bool) {
	if b, ok := s.branches[hash]; ok {
		return b, true
	}
	if b, err := s.getBlockByHash(hash); err == nil {
		return b, true
	}
	return nil, false
}

// branchFromLocked walks b's ancestry back to (but not including) the
// first block already on the main chain, returning that common-ancestor
// hash and the branch blocks in root-to-tip order. It bounds the walk to
// avoid spinning on a cyclic previous_hash chain.
func (s *Store) branchFromLocked(b *block.Block) (commonAncestor string, branch []*block.Block, ok bool) {
	maxWalk := len(s.headers) + len(s.branches) + 1
	cur := b
	for i := 0; i < maxWalk; i++ {
		branch = append([]*block.Block{cur}, branch...)
		if s.onMainChainLocked(cur.Header.PreviousHash) {
			return cur.Header.PreviousHash, branch, true
		}
		parent, found := s.parentLocked(cur.Header.PreviousHash)
		if !found {
			return "", nil, false
		}
		cur = parent
	}
	return "", nil, false
}

func (s *Store) onMainChainLocked(hash string) bool {
	for _, h := range s.headers {
		if h.Hash() == hash {
			return true
		}
	}
	return false
}

// chainWorkToLocked sums chainWorkUnit across the main chain from genesis
// up to and including the header with the given hash.
func (s *Store) chainWorkToLocked(hash string) float64 {
	var total float64
	for _, h := range s.headers {
		total += chainWorkUnit(h.Difficulty)
		if h.Hash() == hash {
			break
		}
	}
	return total
}

// appendSideBranchLocked handles a block that does not extend the current
// tip: it is recorded as a side branch, and a reorg is triggered if the
// branch it completes has become heavier than the main chain (spec §4.7:
// "when a received block extends a side branch that becomes heavier, walk
// back to the common ancestor, revert blocks, apply the new branch").
func (s *Store) appendSideBranchLocked(b *block.Block) error {
	hash := b.Hash()
	if _, already := s.branches[hash]; already {
		return nil
	}
	if _, onMain := s.undo[hash]; onMain {
		return nil
	}

	parent, found := s.parentLocked(b.Header.PreviousHash)
	if !found {
		return newInvalidBlockError("block %s does not connect to any known block", hash)
	}
	if err := b.Header.ValidateLinkage(&parent.Header, parent.Header.Timestamp, nowUnix()); err != nil {
		return newInvalidBlockError("%s", err)
	}
	if b.Header.MerkleRoot != b.ComputeMerkleRoot() {
		return newInvalidBlockError("merkle_root does not match the block's transactions")
	}

	s.branches[hash] = b

	commonAncestor, branch, ok := s.branchFromLocked(b)
	if !ok {
		return nil // orphaned branch tip; keep it buffered, nothing more to do yet
	}

	mainWork := s.chainWorkToLocked(s.tip.Hash())
	ancestorWork := s.chainWorkToLocked(commonAncestor)
	branchWork := ancestorWork
	for _, bb := range branch {
		branchWork += chainWorkUnit(bb.Header.Difficulty)
	}
	if branchWork <= mainWork {
		s.log.Debugf("buffered side branch tip %s at height %d (work %v <= main %v)", hash, b.Header.Index, branchWork, mainWork)
		return nil
	}

	s.log.Infof("reorg: branch at %s (work %v) exceeds main chain (work %v), common ancestor %s", hash, branchWork, mainWork, commonAncestor)
	return s.reorgToLocked(commonAncestor, branch)
}

// reorgToLocked reverts the main chain down to commonAncestor and applies
// branch in order. On any failure it restores the reverted blocks and
// returns an error, leaving the old branch untouched (spec §4.7: "abort
// and retain old branch untouched if any new-branch block fails
// validation").
func (s *Store) reorgToLocked(commonAncestor string, branch []*block.Block) error {
	var reverted []*block.Block
	for s.tip.Hash() != commonAncestor {
		old := s.tip
		if err := s.revertTipLocked(); err != nil {
			s.restoreRevertedLocked(reverted)
			return &FatalStateError{Reason: "reverting block during reorg", Cause: err}
		}
		reverted = append(reverted, old)
	}

	for i, next := range branch {
		parentHeader := s.tip.Header
		err := s.validateHeaderLocked(&next.Header, &parentHeader, s.recentAncestorsLocked(11))
		if err == nil {
			err = s.applyAtTipLocked(next)
		}
		if err != nil {
			// Undo the branch blocks already applied before replaying the
			// reverted main-chain blocks on top of the common ancestor.
			for j := 0; j < i; j++ {
				_ = s.revertTipLocked()
			}
			s.restoreRevertedLocked(reverted)
			return err
		}
	}

	for _, old := range reverted {
		s.branches[old.Hash()] = old
	}
	for _, tx := range reorgDisplacedTxs(reverted, branch) {
		if s.mempool != nil {
			s.mempool.Admit(tx)
		}
	}
	return nil
}

// restoreRevertedLocked re-applies blocks that were speculatively reverted
// during a failed reorg attempt. reverted is in pop order (most recent
// first), so it is replayed back-to-front to restore the original order.
func (s *Store) restoreRevertedLocked(reverted []*block.Block) {
	for i := len(reverted) - 1; i >= 0; i-- {
		_ = s.applyAtTipLocked(reverted[i])
	}
}

// revertTipLocked undoes the current tip block using its recorded undo
// log and moves the tip back to its parent.
func (s *Store) revertTipLocked() error {
	tip := s.tip
	hash := tip.Hash()
	undo, ok := s.undo[hash]
	if !ok {
		return newInvalidBlockError("no undo log recorded for block %s", hash)
	}

	if err := s.utxoSet.RevertBlock(tip, undo.utxoPrior); err != nil {
		return err
	}
	for addr, confirmed := range undo.noncePrior {
		s.nonces.Revert(addr, confirmed)
	}

	delete(s.undo, hash)
	s.headers = s.headers[:len(s.headers)-1]
	if len(s.headers) == 0 {
		s.tip = nil
		return nil
	}
	parent, err := s.getBlockByHash(tip.Header.PreviousHash)
	if err != nil {
		return err
	}
	s.tip = parent
	return nil
}

// reorgDisplacedTxs returns the non-coinbase transactions that were
// confirmed in reverted blocks and are not also confirmed by the newly
// adopted branch, so they can be offered back to the mempool.
func reorgDisplacedTxs(reverted, adopted []*block.Block) []*txn.Transaction {
	adoptedIDs := make(map[string]bool)
	for _, b := range adopted {
		for _, tx := range b.Txs {
			adoptedIDs[tx.TxID] = true
		}
	}
	var out []*txn.Transaction
	for _, b := range reverted {
		for _, tx := range b.Txs {
			if tx.IsCoinbase() || adoptedIDs[tx.TxID] {
				continue
			}
			out = append(out, tx)
		}
	}
	return out
}
