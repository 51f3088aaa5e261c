// Package utxo implements the UTXO manager (C3): the index of unspent
// transaction outputs, address-balance lookups, and the in-memory locking
// used to reserve outputs for pending mempool transactions.
package utxo

import (
	"sync"

	"github.com/xai-network/xaid/txn"
)

// Outpoint identifies a specific output of a specific transaction.
type Outpoint struct {
	TxID string
	Vout uint32
}

// Entry is an unspent output: its amount, owner, and pending-lock state.
type Entry struct {
	Amount     float64
	Owner      string
	Height     uint64
	LockedBy   string
	IsLocked   bool
	IsCoinbase bool
}

// BlockView is the minimal view of a block that ApplyBlock/RevertBlock
// need; it lets this package stay independent of package block.
type BlockView interface {
	Height() uint64
	Transactions() []*txn.Transaction
}

// Set is the concurrency-safe unspent output index, keyed by outpoint and
// mirrored by an address index for GetUTXOsForAddress (spec §4.3: "Indexed
// by address and by (txid, vout)").
type Set struct {
	mu sync.RWMutex

	byOutpoint map[Outpoint]*Entry
	byAddress  map[string]map[Outpoint]bool
}

// NewSet returns an empty UTXO set.
func NewSet() *Set {
	return &Set{
		byOutpoint: make(map[Outpoint]*Entry),
		byAddress:  make(map[string]map[Outpoint]bool),
	}
}

// GetUnspentOutput returns the entry for an outpoint, or NotFoundError if
// it is unknown or already spent.
func (s *Set) GetUnspentOutput(outpoint Outpoint) (*Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.byOutpoint[outpoint]
	if !ok {
		return nil, &NotFoundError{TxID: outpoint.TxID, Vout: outpoint.Vout}
	}
	clone := *entry
	return &clone, nil
}

// GetUTXOsForAddress returns every unspent output currently owned by addr.
func (s *Set) GetUTXOsForAddress(addr string) map[Outpoint]*Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make(map[Outpoint]*Entry)
	for outpoint := range s.byAddress[addr] {
		if entry, ok := s.byOutpoint[outpoint]; ok {
			clone := *entry
			result[outpoint] = &clone
		}
	}
	return result
}

// Snapshot returns a defensive copy of every unspent output in the set,
// keyed by outpoint. Used by the chunked state-sync sender (C11) to
// serialize the UTXO index into a snapshot payload.
func (s *Set) Snapshot() map[Outpoint]*Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make(map[Outpoint]*Entry, len(s.byOutpoint))
	for outpoint, entry := range s.byOutpoint {
		clone := *entry
		result[outpoint] = &clone
	}
	return result
}

// Balance sums every unspent output owned by addr.
func (s *Set) Balance(addr string) float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var total float64
	for outpoint := range s.byAddress[addr] {
		if entry, ok := s.byOutpoint[outpoint]; ok {
			total += entry.Amount
		}
	}
	return total
}

func (s *Set) addUnlocked(outpoint Outpoint, entry *Entry) {
	s.byOutpoint[outpoint] = entry
	if s.byAddress[entry.Owner] == nil {
		s.byAddress[entry.Owner] = make(map[Outpoint]bool)
	}
	s.byAddress[entry.Owner][outpoint] = true
}

func (s *Set) removeUnlocked(outpoint Outpoint) {
	entry, ok := s.byOutpoint[outpoint]
	if !ok {
		return
	}
	delete(s.byOutpoint, outpoint)
	delete(s.byAddress[entry.Owner], outpoint)
	if len(s.byAddress[entry.Owner]) == 0 {
		delete(s.byAddress, entry.Owner)
	}
}

// ApplyBlock spends every transaction's inputs and creates its outputs, in
// transaction order, so later transactions in the block can spend earlier
// ones' outputs (spec §4.7: "intra-block chaining allowed"). It is atomic:
// any failure rolls back every mutation this call made before returning the
// error (spec §4.3: "Apply is atomic per block; failure reverts partial
// state").
func (s *Set) ApplyBlock(block BlockView) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var undo []func()
	rollback := func() {
		for i := len(undo) - 1; i >= 0; i-- {
			undo[i]()
		}
	}

	for _, tx := range block.Transactions() {
		for _, in := range tx.Inputs {
			outpoint := Outpoint{TxID: in.TxID, Vout: in.Vout}
			entry, ok := s.byOutpoint[outpoint]
			if !ok {
				rollback()
				return &ApplyError{TxID: tx.TxID, Reason: (&NotFoundError{TxID: in.TxID, Vout: in.Vout}).Error()}
			}
			removed := *entry
			s.removeUnlocked(outpoint)
			undo = append(undo, func() { s.addUnlocked(outpoint, &removed) })
		}

		for vout, out := range tx.Outputs {
			outpoint := Outpoint{TxID: tx.TxID, Vout: uint32(vout)}
			entry := &Entry{
				Amount:     out.Amount,
				Owner:      out.Address,
				Height:     block.Height(),
				IsCoinbase: tx.IsCoinbase(),
			}
			s.addUnlocked(outpoint, entry)
			opCopy := outpoint
			undo = append(undo, func() { s.removeUnlocked(opCopy) })
		}
	}

	return nil
}

// RevertBlock is ApplyBlock's inverse: it removes the block's outputs and
// restores the outputs its transactions spent. prior supplies the entries
// to restore, keyed by outpoint, since the set itself no longer has them
// once spent.
func (s *Set) RevertBlock(block BlockView, prior map[Outpoint]*Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	txs := block.Transactions()
	for i := len(txs) - 1; i >= 0; i-- {
		tx := txs[i]
		for vout := range tx.Outputs {
			s.removeUnlocked(Outpoint{TxID: tx.TxID, Vout: uint32(vout)})
		}
		for _, in := range tx.Inputs {
			outpoint := Outpoint{TxID: in.TxID, Vout: in.Vout}
			entry, ok := prior[outpoint]
			if !ok {
				return &ApplyError{TxID: tx.TxID, Reason: "no prior entry supplied to restore spent input"}
			}
			clone := *entry
			s.addUnlocked(outpoint, &clone)
		}
	}
	return nil
}
