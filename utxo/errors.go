package utxo

import "fmt"

// NotFoundError is returned when an outpoint has no corresponding unspent
// output, either because it was never created or has already been spent.
type NotFoundError struct {
	TxID string
	Vout uint32
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no unspent output at (%s, %d)", e.TxID, e.Vout)
}

// LockConflictError is returned by Lock when one or more of the requested
// outpoints is already locked by a different transaction.
type LockConflictError struct {
	TxID string
	Vout uint32
	By   string
}

func (e *LockConflictError) Error() string {
	return fmt.Sprintf("outpoint (%s, %d) is already locked by %s", e.TxID, e.Vout, e.By)
}

// ApplyError wraps a failure partway through applying a block's
// transactions; ApplyBlock guarantees the UTXO set is left unchanged when
// this is returned.
type ApplyError struct {
	TxID   string
	Reason string
}

func (e *ApplyError) Error() string {
	return fmt.Sprintf("failed to apply transaction %s: %s", e.TxID, e.Reason)
}
