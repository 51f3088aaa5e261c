package mempool

import (
	"sync"
	"time"

	"github.com/xai-network/xaid/noncetracker"
	"github.com/xai-network/xaid/txn"
	"github.com/xai-network/xaid/utxo"
)

// Validator is the subset of the transaction validator (C9) the mempool
// needs. It is an interface, so the mempool does not import package
// validator; *validator.Validator satisfies it.
type Validator interface {
	Validate(tx *txn.Transaction) error
}

// TxDesc describes an admitted transaction plus the bookkeeping metadata
// the ordering and eviction logic needs, mirroring the teacher's
// mining.TxDesc descriptor shape.
type TxDesc struct {
	Tx      *txn.Transaction
	Added   time.Time
	FeeRate float64
}

// Counters are the mempool's exposed, non-consensus statistics (spec
// §4.5).
type Counters struct {
	Expired           uint64
	EvictedLowFee     uint64
	RejectedLowFee    uint64
	RejectedSenderCap uint64
	RejectedInvalid   uint64
	RejectedBanned    uint64
}

type banState struct {
	invalidAt   []time.Time
	bannedUntil time.Time
}

// Pool is the bounded, lock-guarded set of admitted pending transactions
// (spec §4.5).
type Pool struct {
	cfg       Config
	utxoSet   *utxo.Set
	nonces    *noncetracker.Tracker
	validator Validator

	mu        sync.Mutex
	pending   map[string]*TxDesc
	orphans   map[string]*TxDesc
	bySender  map[string]map[string]bool
	bans      map[string]*banState
	seenTxIDs map[string]bool
	counters  Counters

	now func() time.Time
}

// New constructs an empty mempool bound to the given UTXO set, nonce
// tracker, and transaction validator.
func New(cfg Config, utxoSet *utxo.Set, nonces *noncetracker.Tracker, validator Validator) *Pool {
	return &Pool{
		cfg:       cfg,
		utxoSet:   utxoSet,
		nonces:    nonces,
		validator: validator,
		pending:   make(map[string]*TxDesc),
		orphans:   make(map[string]*TxDesc),
		bySender:  make(map[string]map[string]bool),
		bans:      make(map[string]*banState),
		seenTxIDs: make(map[string]bool),
		now:       time.Now,
	}
}

// Counters returns a snapshot of the mempool's exposed statistics.
func (p *Pool) Counters() Counters {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.counters
}

// Size returns the number of admitted pending transactions.
func (p *Pool) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.pending)
}

// Has reports whether txid is currently pending.
func (p *Pool) Has(txid string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.pending[txid]
	return ok
}

// Get returns the descriptor for a pending transaction.
func (p *Pool) Get(txid string) (*TxDesc, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	d, ok := p.pending[txid]
	return d, ok
}

func (p *Pool) outpointsOf(tx *txn.Transaction) []utxo.Outpoint {
	ops := make([]utxo.Outpoint, len(tx.Inputs))
	for i, in := range tx.Inputs {
		ops[i] = utxo.Outpoint{TxID: in.TxID, Vout: in.Vout}
	}
	return ops
}

// Admit runs the full admission pipeline (spec §4.5) and, on success,
// inserts tx into the pending set.
func (p *Pool) Admit(tx *txn.Transaction) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()

	// 1. Duplicate check against the persistent seen set, not just the
	// currently pending map, so a mined-then-resubmitted txid is rejected
	// outright instead of being re-evaluated from scratch.
	if p.seenTxIDs[tx.TxID] {
		return &RejectError{Reason: ReasonDuplicate}
	}

	// RBF takes priority over the plain per-sender path when the incoming
	// tx declares a replacement target — it is the named exception to
	// step 3's per-sender cap.
	var replaced *TxDesc
	if tx.ReplacesTxID != "" {
		r, err := p.checkRBF(tx)
		if err != nil {
			return err
		}
		replaced = r
	}

	// 2. Size cap / fee-rate eviction, skipped for an RBF replacement since
	// it does not grow the pool (one admitted, one removed).
	if replaced == nil && len(p.pending) >= p.cfg.MaxSize {
		if !p.evictLowestFeeRateLocked(tx.FeeRate()) {
			p.counters.RejectedLowFee++
			return &RejectError{Reason: ReasonLowFee, Detail: "pool full and candidate fee-rate does not exceed the lowest admitted fee-rate"}
		}
	}

	// 3. Per-sender cap (bypassed by a valid RBF replacement, which keeps
	// sender count unchanged).
	if replaced == nil {
		if len(p.bySender[tx.Sender]) >= p.cfg.MaxPerSender {
			p.counters.RejectedSenderCap++
			return &RejectError{Reason: ReasonSenderCap}
		}
	}

	// 4. Fee-rate floor.
	if tx.FeeRate() < p.cfg.MinFeeRate {
		p.counters.RejectedLowFee++
		return &RejectError{Reason: ReasonLowFee}
	}

	// 5. Sender-ban check.
	if ban, ok := p.bans[tx.Sender]; ok && now.Before(ban.bannedUntil) {
		p.counters.RejectedBanned++
		return &RejectError{Reason: ReasonBanned}
	}

	// 6. Full validation via C9.
	if err := p.validator.Validate(tx); err != nil {
		p.recordInvalidLocked(tx.Sender, now)
		p.counters.RejectedInvalid++
		return &RejectError{Reason: ReasonInvalid, Detail: err.Error()}
	}

	// A valid RBF replacement is required to share an input with the
	// original, so that outpoint is still locked by the original's txid.
	// Remove the original and migrate its lock/nonce reservation before
	// locking the replacement's inputs, or step 7 below would reject every
	// replacement with a self-inflicted lock conflict.
	if replaced != nil {
		p.removeLocked(replaced.Tx, false)
	}

	// 7. UTXO lock. A replacement may declare inputs beyond the one it
	// shares with the original, so this can still fail after the original
	// has been removed above; restore the original rather than losing a
	// previously-admitted transaction on a doomed replacement.
	ops := p.outpointsOf(tx)
	if len(ops) > 0 {
		if err := p.utxoSet.Lock(ops, tx.TxID); err != nil {
			if replaced != nil {
				p.restoreLocked(replaced)
			}
			return &RejectError{Reason: ReasonLockConflict, Detail: err.Error()}
		}
	}

	// 8. Nonce reservation.
	p.nonces.Reserve(tx.Sender, tx.Nonce, tx.TxID)

	// 9. Insert into pending list and seen_txids.
	desc := &TxDesc{Tx: tx, Added: now, FeeRate: tx.FeeRate()}
	p.pending[tx.TxID] = desc
	p.seenTxIDs[tx.TxID] = true
	if p.bySender[tx.Sender] == nil {
		p.bySender[tx.Sender] = make(map[string]bool)
	}
	p.bySender[tx.Sender][tx.TxID] = true

	return nil
}

// checkRBF validates a replace-by-fee request (spec §4.5) and returns the
// descriptor being replaced on success.
func (p *Pool) checkRBF(tx *txn.Transaction) (*TxDesc, error) {
	original, ok := p.pending[tx.ReplacesTxID]
	if !ok {
		return nil, &RejectError{Reason: ReasonRBFRejected, Detail: "replaced transaction does not exist"}
	}
	if !original.Tx.RBFEnabled {
		return nil, &RejectError{Reason: ReasonRBFRejected, Detail: "replaced transaction does not allow replacement"}
	}
	if original.Tx.Sender != tx.Sender {
		return nil, &RejectError{Reason: ReasonRBFRejected, Detail: "sender mismatch"}
	}
	if !sharesInput(original.Tx, tx) {
		return nil, &RejectError{Reason: ReasonRBFRejected, Detail: "no shared input with the replaced transaction"}
	}
	if tx.FeeRate() <= original.FeeRate {
		return nil, &RejectError{Reason: ReasonRBFRejected, Detail: "replacement fee-rate does not strictly exceed the original"}
	}
	return original, nil
}

func sharesInput(a, b *txn.Transaction) bool {
	seen := make(map[utxo.Outpoint]bool, len(a.Inputs))
	for _, in := range a.Inputs {
		seen[utxo.Outpoint{TxID: in.TxID, Vout: in.Vout}] = true
	}
	for _, in := range b.Inputs {
		if seen[utxo.Outpoint{TxID: in.TxID, Vout: in.Vout}] {
			return true
		}
	}
	return false
}

// evictLowestFeeRateLocked finds the admitted transaction with the lowest
// fee-rate and evicts it if candidateFeeRate strictly exceeds it (spec
// §4.5). Must be called with p.mu held.
func (p *Pool) evictLowestFeeRateLocked(candidateFeeRate float64) bool {
	var lowest *TxDesc
	for _, d := range p.pending {
		if lowest == nil || d.FeeRate < lowest.FeeRate {
			lowest = d
		}
	}
	if lowest == nil || candidateFeeRate <= lowest.FeeRate {
		return false
	}
	p.removeLocked(lowest.Tx, false)
	p.counters.EvictedLowFee++
	return true
}

// removeLocked removes tx from the pending set, releasing its UTXO locks
// and nonce reservation. Must be called with p.mu held.
func (p *Pool) removeLocked(tx *txn.Transaction, countExpired bool) {
	delete(p.pending, tx.TxID)
	if senders := p.bySender[tx.Sender]; senders != nil {
		delete(senders, tx.TxID)
		if len(senders) == 0 {
			delete(p.bySender, tx.Sender)
		}
	}
	ops := p.outpointsOf(tx)
	if len(ops) > 0 {
		p.utxoSet.Unlock(ops, tx.TxID)
	}
	p.nonces.Release(tx.Sender, tx.Nonce, tx.TxID)
	if countExpired {
		p.counters.Expired++
	}
}

// restoreLocked re-admits desc after its removal was speculatively applied
// to make room for an RBF replacement that then failed to lock. The
// outpoints it relocks were only just released by removeLocked and cannot
// have been taken by anything else within this single-lock pipeline. Must
// be called with p.mu held.
func (p *Pool) restoreLocked(desc *TxDesc) {
	ops := p.outpointsOf(desc.Tx)
	if len(ops) > 0 {
		p.utxoSet.Lock(ops, desc.Tx.TxID)
	}
	p.nonces.Reserve(desc.Tx.Sender, desc.Tx.Nonce, desc.Tx.TxID)
	p.pending[desc.Tx.TxID] = desc
	if p.bySender[desc.Tx.Sender] == nil {
		p.bySender[desc.Tx.Sender] = make(map[string]bool)
	}
	p.bySender[desc.Tx.Sender][desc.Tx.TxID] = true
}

// recordInvalidLocked tracks a sender's invalid submissions and bans them
// once INVALID_THRESHOLD is reached within INVALID_WINDOW (spec §4.5).
// Must be called with p.mu held.
func (p *Pool) recordInvalidLocked(sender string, now time.Time) {
	b, ok := p.bans[sender]
	if !ok {
		b = &banState{}
		p.bans[sender] = b
	}

	cutoff := now.Add(-p.cfg.InvalidWindow)
	kept := b.invalidAt[:0]
	for _, t := range b.invalidAt {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	b.invalidAt = append(kept, now)

	if len(b.invalidAt) >= p.cfg.InvalidThreshold {
		b.bannedUntil = now.Add(p.cfg.InvalidBan)
	}
}

// Remove evicts txid from the mempool directly (used when a transaction is
// mined into a block and must be removed without counting as an
// eviction).
func (p *Pool) Remove(txid string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if d, ok := p.pending[txid]; ok {
		p.removeLocked(d.Tx, false)
	}
}

// PruneExpired removes every pending and orphaned transaction older than
// MaxAge, releasing their locks and reservations (spec §4.5).
func (p *Pool) PruneExpired() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	removed := 0
	for _, d := range p.pending {
		if now.Sub(d.Added) > p.cfg.MaxAge {
			p.removeLocked(d.Tx, true)
			removed++
		}
	}
	for txid, d := range p.orphans {
		if now.Sub(d.Added) > p.cfg.MaxAge {
			delete(p.orphans, txid)
			p.counters.Expired++
			removed++
		}
	}
	return removed
}

// AddOrphan stores a transaction whose inputs are not yet resolvable,
// pending later re-evaluation (spec §4.5).
func (p *Pool) AddOrphan(tx *txn.Transaction) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.orphans[tx.TxID] = &TxDesc{Tx: tx, Added: p.now()}
}

// Orphans returns the current orphan pool.
func (p *Pool) Orphans() []*txn.Transaction {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]*txn.Transaction, 0, len(p.orphans))
	for _, d := range p.orphans {
		out = append(out, d.Tx)
	}
	return out
}

// RemoveOrphan deletes txid from the orphan pool, e.g. once it has been
// successfully re-admitted to pending.
func (p *Pool) RemoveOrphan(txid string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.orphans, txid)
}

// Pending returns every admitted transaction, in no particular order; call
// Order (ordering.go) to get the block-assembly sequence.
func (p *Pool) Pending() []*TxDesc {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]*TxDesc, 0, len(p.pending))
	for _, d := range p.pending {
		out = append(out, d)
	}
	return out
}
