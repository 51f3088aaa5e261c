// Package chainstore implements the chain store (C7): block append with
// header/transaction validation, reorg handling, checkpoint
// create/verify, and the derived balance/address indices that back the
// API's read paths.
package chainstore

import (
	"sync"
	"time"

	"github.com/jinzhu/gorm"
	_ "github.com/jinzhu/gorm/dialects/sqlite"
	"github.com/pkg/errors"
	"github.com/syndtr/goleveldb/leveldb"

	"github.com/btcsuite/btclog"

	"github.com/xai-network/xaid/block"
	"github.com/xai-network/xaid/logger"
	"github.com/xai-network/xaid/mempool"
	"github.com/xai-network/xaid/noncetracker"
	"github.com/xai-network/xaid/txn"
	"github.com/xai-network/xaid/utxo"
	"github.com/xai-network/xaid/validator"
)

func nowUnix() int64 { return time.Now().Unix() }

// Store is the chain store: the ordered sequence of appended blocks, the
// UTXO/nonce state they produce, and the derived indices built from them
// (spec §4.7).
type Store struct {
	mu sync.RWMutex

	db      *leveldb.DB
	index   *gorm.DB
	utxoSet *utxo.Set
	nonces  *noncetracker.Tracker
	mempool *mempool.Pool
	v       *validator.Validator
	log     btclog.Logger

	headers []*block.Header // height-ordered, genesis first
	tip     *block.Block

	// branches holds blocks that were submitted but do not currently sit
	// on the main chain: either side-branch blocks awaiting a heavier
	// branch, or main-chain blocks displaced by a reorg. Keyed by block
	// hash (spec §4.7: "Reorg ... retain the old branch untouched").
	branches map[string]*block.Block
	undo     map[string]*blockUndo
}

// blockUndo captures the state a block's Append mutated, so a later reorg
// can revert it without replaying the whole chain from genesis.
type blockUndo struct {
	utxoPrior  map[utxo.Outpoint]*utxo.Entry
	noncePrior map[string]uint64
}

// Open creates or opens a Store backed by a goleveldb instance at dbPath
// and a gorm-managed sqlite database at indexPath for derived indices.
func Open(dbPath, indexPath string, utxoSet *utxo.Set, nonces *noncetracker.Tracker, pool *mempool.Pool, v *validator.Validator, log btclog.Logger) (*Store, error) {
	db, err := leveldb.OpenFile(dbPath, nil)
	if err != nil {
		return nil, &FatalStateError{Reason: "opening block database", Cause: err}
	}

	index, err := gorm.Open("sqlite3", indexPath)
	if err != nil {
		db.Close()
		return nil, &FatalStateError{Reason: "opening derived index database", Cause: err}
	}
	index.AutoMigrate(&BalanceRecord{}, &AddressTxRecord{})

	if log == nil {
		log, _ = logger.Get(logger.SubsystemTags.CHND)
	}

	return &Store{
		db:       db,
		index:    index,
		utxoSet:  utxoSet,
		nonces:   nonces,
		mempool:  pool,
		v:        v,
		log:      log,
		branches: make(map[string]*block.Block),
		undo:     make(map[string]*blockUndo),
	}, nil
}

// Close releases the store's underlying database handles.
func (s *Store) Close() error {
	s.index.Close()
	return s.db.Close()
}

// Tip returns the current chain tip, or nil if the store is empty.
func (s *Store) Tip() *block.Block {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tip
}

// Height returns the current tip height, or 0 with ok=false if the store
// is empty.
func (s *Store) Height() (height uint64, ok bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.tip == nil {
		return 0, false
	}
	return s.tip.Header.Index, true
}

// AppendGenesis installs the genesis block without linkage or PoW checks;
// it must be the first block ever appended.
func (s *Store) AppendGenesis(b *block.Block) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tip != nil {
		return newInvalidBlockError("genesis block can only be appended to an empty chain")
	}
	if b.Header.MerkleRoot != b.ComputeMerkleRoot() {
		return newInvalidBlockError("genesis merkle_root does not match its transactions")
	}

	if err := s.utxoSet.ApplyBlock(b); err != nil {
		return newInvalidBlockError("applying genesis block: %s", err)
	}
	if err := s.persistAndIndex(b); err != nil {
		return err
	}
	s.undo[b.Hash()] = &blockUndo{utxoPrior: map[utxo.Outpoint]*utxo.Entry{}, noncePrior: map[string]uint64{}}
	s.headers = append(s.headers, &b.Header)
	s.tip = b
	return nil
}

// Append validates and appends a new block (spec §4.7):
//  1. header linkage/timestamp/PoW/merkle root
//  2. every transaction under C9, against UTXO state built up within the
//     block (intra-block chaining)
//  3. apply C3/C4 updates, append, remove included transactions from the
//     mempool
//  4. update derived indices
//
// If b does not extend the current tip, it is held as a side-branch block
// and a reorg is attempted if that branch has become heavier than the
// main chain (spec §4.7: "Reorg").
func (s *Store) Append(b *block.Block) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.tip == nil {
		return newInvalidBlockError("cannot append to an empty chain; call AppendGenesis first")
	}

	if b.Header.PreviousHash != s.tip.Hash() {
		return s.appendSideBranchLocked(b)
	}

	if err := s.validateHeaderLocked(&b.Header, &s.tip.Header, s.recentAncestorsLocked(11)); err != nil {
		return err
	}
	if err := s.applyAtTipLocked(b); err != nil {
		return err
	}
	return nil
}

// applyAtTipLocked validates b's transactions and applies it as the new
// tip, capturing the undo information a future reorg would need to revert
// it. The caller must already have validated b's header linkage.
func (s *Store) applyAtTipLocked(b *block.Block) error {
	if b.Header.MerkleRoot != b.ComputeMerkleRoot() {
		return newInvalidBlockError("merkle_root does not match the block's transactions")
	}
	if err := s.validateTransactionsLocked(b); err != nil {
		return err
	}

	undo := &blockUndo{
		utxoPrior:  s.capturePriorLocked(b),
		noncePrior: make(map[string]uint64),
	}
	for _, tx := range b.Txs {
		if !tx.IsCoinbase() {
			if _, seen := undo.noncePrior[tx.Sender]; !seen {
				undo.noncePrior[tx.Sender] = s.nonces.GetNonce(tx.Sender)
			}
		}
	}

	if err := s.utxoSet.ApplyBlock(b); err != nil {
		return newInvalidBlockError("applying block to UTXO set: %s", err)
	}

	for _, tx := range b.Txs {
		if !tx.IsCoinbase() {
			s.nonces.Commit(tx.Sender, tx.Nonce)
		}
		if s.mempool != nil {
			s.mempool.Remove(tx.TxID)
		}
	}

	if err := s.persistAndIndex(b); err != nil {
		return err
	}

	hash := b.Hash()
	s.undo[hash] = undo
	delete(s.branches, hash)
	s.headers = append(s.headers, &b.Header)
	s.tip = b
	s.log.Debugf("appended block %s at height %d (%d txs)", hash, b.Header.Index, len(b.Txs))
	return nil
}

// capturePriorLocked records the UTXO entries each of b's transaction
// inputs currently refers to, so RevertBlock can restore them later.
func (s *Store) capturePriorLocked(b *block.Block) map[utxo.Outpoint]*utxo.Entry {
	prior := make(map[utxo.Outpoint]*utxo.Entry)
	for _, tx := range b.Txs {
		for _, in := range tx.Inputs {
			op := utxo.Outpoint{TxID: in.TxID, Vout: in.Vout}
			if _, ok := prior[op]; ok {
				continue
			}
			if entry, err := s.utxoSet.GetUnspentOutput(op); err == nil {
				prior[op] = entry
			}
		}
	}
	return prior
}

func (s *Store) validateHeaderLocked(h, parent *block.Header, ancestors []*block.Header) error {
	mtp := block.MedianTimePast(ancestors)
	if err := h.ValidateLinkage(parent, mtp, nowUnix()); err != nil {
		return newInvalidBlockError("%s", err)
	}
	return nil
}

func (s *Store) recentAncestorsLocked(count int) []*block.Header {
	n := len(s.headers)
	if n == 0 {
		return nil
	}
	start := n - count
	if start < 0 {
		start = 0
	}
	return s.headers[start:n]
}

// validateTransactionsLocked validates every transaction in b against the
// UTXO state that would result from applying earlier transactions in the
// same block (spec §4.7: "intra-block chaining allowed").
func (s *Store) validateTransactionsLocked(b *block.Block) error {
	pending := make(map[utxo.Outpoint]*utxo.Entry)

	for i, tx := range b.Txs {
		if i == 0 {
			if !tx.IsCoinbase() {
				return newInvalidBlockError("first transaction in a block must be coinbase")
			}
		} else if tx.IsCoinbase() {
			return newInvalidBlockError("only the first transaction in a block may be coinbase")
		}

		if err := s.v.ValidateInBlock(tx, pending); err != nil {
			return newInvalidBlockError("transaction %s: %s", tx.TxID, err)
		}

		for _, in := range tx.Inputs {
			delete(pending, utxo.Outpoint{TxID: in.TxID, Vout: in.Vout})
		}
		for vout, out := range tx.Outputs {
			pending[utxo.Outpoint{TxID: tx.TxID, Vout: uint32(vout)}] = &utxo.Entry{
				Amount: out.Amount,
				Owner:  out.Address,
				Height: b.Header.Index,
			}
		}
	}
	return nil
}

// persistAndIndex writes b to the block database and refreshes the
// derived balance/address indices it touches.
func (s *Store) persistAndIndex(b *block.Block) error {
	batch := new(leveldb.Batch)
	if err := s.putBlock(b, batch); err != nil {
		return &FatalStateError{Reason: "serializing block", Cause: err}
	}
	if err := s.db.Write(batch, nil); err != nil {
		return &FatalStateError{Reason: "writing block batch", Cause: err}
	}

	for _, tx := range b.Txs {
		s.indexTransaction(tx, b.Header.Index)
	}
	return nil
}

func (s *Store) indexTransaction(tx *txn.Transaction, height uint64) {
	addresses := map[string]bool{}
	if tx.Sender != "" {
		addresses[tx.Sender] = true
	}
	for _, out := range tx.Outputs {
		if out.Address != "" {
			addresses[out.Address] = true
		}
	}
	for addr := range addresses {
		s.index.Create(&AddressTxRecord{Address: addr, TxID: tx.TxID, Height: height})
		balance := s.utxoSet.Balance(addr)
		s.index.Save(&BalanceRecord{Address: addr, Balance: balance})
	}
}

// BlockByHeight retrieves a previously appended block.
func (s *Store) BlockByHeight(height uint64) (*block.Block, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, err := s.getBlockByHeight(height)
	if err != nil {
		return nil, errors.Wrapf(err, "block at height %d", height)
	}
	return b, nil
}

// BlockByHash retrieves a previously appended block by its hash.
func (s *Store) BlockByHash(hash string) (*block.Block, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, err := s.getBlockByHash(hash)
	if err != nil {
		return nil, errors.Wrapf(err, "block with hash %s", hash)
	}
	return b, nil
}

// ListAddressHistory returns every address/transaction index row, in
// insertion order. Used by the chunked state-sync sender (C11) to
// serialize the "bulk history" section of a snapshot (spec §4.11: "bulk
// history = LOW" priority).
func (s *Store) ListAddressHistory() ([]AddressTxRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var rows []AddressTxRecord
	if err := s.index.Order("id").Find(&rows).Error; err != nil {
		return nil, errors.Wrap(err, "listing address history")
	}
	return rows, nil
}

// RecentHeaders returns up to count compact headers starting at start
// (spec §4.10: "get_recent_headers(count, start)").
func (s *Store) RecentHeaders(start, count uint64) []*block.Header {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if start >= uint64(len(s.headers)) {
		return nil
	}
	end := start + count
	if end > uint64(len(s.headers)) {
		end = uint64(len(s.headers))
	}
	return s.headers[start:end]
}
