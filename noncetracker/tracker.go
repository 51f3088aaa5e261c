// Package noncetracker implements the nonce tracker (C4): per-address
// confirmed/pending nonce bookkeeping used to admit exactly one
// transaction per nonce value and prevent replay.
package noncetracker

import "sync"

type addressState struct {
	confirmed uint64            // next nonce not yet confirmed on-chain
	reserved  map[uint64]string // nonce -> txid of the mempool transaction reserving it
}

// Tracker holds every address's confirmed/pending nonce counters (spec
// §4.4).
type Tracker struct {
	mu    sync.Mutex
	state map[string]*addressState
}

// New returns an empty tracker.
func New() *Tracker {
	return &Tracker{state: make(map[string]*addressState)}
}

func (t *Tracker) get(addr string) *addressState {
	s, ok := t.state[addr]
	if !ok {
		s = &addressState{reserved: make(map[uint64]string)}
		t.state[addr] = s
	}
	return s
}

// GetNonce returns the confirmed nonce for addr: the next nonce value that
// has not yet been included in a block.
func (t *Tracker) GetNonce(addr string) uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.get(addr).confirmed
}

// GetNextNonce returns confirmed + pending reservations: the nonce a new
// mempool submission from addr should use (spec §4.4).
func (t *Tracker) GetNextNonce(addr string) uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	s := t.get(addr)
	return s.confirmed + uint64(len(s.reserved))
}

// ReservedBy reports the txid currently holding a pending reservation on
// addr's nonce, if any (spec §4.9: duplicate pending nonces are rejected
// except as a valid RBF replacement of the reservation holder).
func (t *Tracker) ReservedBy(addr string, nonce uint64) (txid string, ok bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	txid, ok = t.get(addr).reserved[nonce]
	return txid, ok
}

// Reserve records that txid holds addr's nonce, called when a transaction
// is admitted to the mempool.
func (t *Tracker) Reserve(addr string, nonce uint64, txid string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.get(addr).reserved[nonce] = txid
}

// Release drops txid's reservation of addr's nonce, called when a
// reserved-but-unconfirmed transaction is evicted, expired, or replaced.
// It is a no-op if txid no longer holds that nonce (e.g. it was already
// cleared by Commit).
func (t *Tracker) Release(addr string, nonce uint64, txid string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s := t.get(addr)
	if s.reserved[nonce] == txid {
		delete(s.reserved, nonce)
	}
}

// Commit advances addr's confirmed nonce to nonce+1 (never backwards) and
// clears whichever reservation covered that nonce (spec §4.4: "commit(addr,
// nonce) sets confirmed = max(confirmed, nonce+1) and zeroes pending
// reservations covered by committed transactions").
func (t *Tracker) Commit(addr string, nonce uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s := t.get(addr)
	if nonce+1 > s.confirmed {
		s.confirmed = nonce + 1
	}
	delete(s.reserved, nonce)
}

// Revert is the only path by which confirmed may move backwards: it
// restores addr's confirmed nonce to an earlier value during a reorg (spec
// §4.4: "Monotonicity is absolute ... except during a reorg's revert").
func (t *Tracker) Revert(addr string, confirmed uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.get(addr).confirmed = confirmed
}

// Snapshot returns every address's confirmed nonce. Used by the chunked
// state-sync sender (C11) to serialize nonce state into a snapshot
// payload.
func (t *Tracker) Snapshot() map[string]uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	result := make(map[string]uint64, len(t.state))
	for addr, s := range t.state {
		result[addr] = s.confirmed
	}
	return result
}
