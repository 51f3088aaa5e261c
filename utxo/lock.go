package utxo

// Lock places a soft, in-memory reservation on each of the given outpoints
// on behalf of txid (spec §4.3: "lock(keys, by=txid)"). It is all-or-
// nothing: if any outpoint is missing or already locked by a different
// transaction, no lock is applied and the first conflict is returned.
func (s *Set) Lock(outpoints []Outpoint, txid string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, op := range outpoints {
		entry, ok := s.byOutpoint[op]
		if !ok {
			return &NotFoundError{TxID: op.TxID, Vout: op.Vout}
		}
		if entry.IsLocked && entry.LockedBy != txid {
			return &LockConflictError{TxID: op.TxID, Vout: op.Vout, By: entry.LockedBy}
		}
	}

	for _, op := range outpoints {
		entry := s.byOutpoint[op]
		entry.IsLocked = true
		entry.LockedBy = txid
	}
	return nil
}

// Unlock releases any lock held by txid on the given outpoints. Outpoints
// that are missing, already spent, or locked by a different transaction
// are silently skipped (spec §4.3: locks "expire when the locking
// transaction leaves the mempool", a condition this same call implements
// for every caller: eviction, expiry, and RBF replacement all release
// through this path).
func (s *Set) Unlock(outpoints []Outpoint, txid string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, op := range outpoints {
		entry, ok := s.byOutpoint[op]
		if !ok || entry.LockedBy != txid {
			continue
		}
		entry.IsLocked = false
		entry.LockedBy = ""
	}
}

// IsLocked reports whether an outpoint currently carries a pending lock,
// and by whom.
func (s *Set) IsLocked(op Outpoint) (locked bool, by string) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.byOutpoint[op]
	if !ok {
		return false, ""
	}
	return entry.IsLocked, entry.LockedBy
}
