package miner

import "fmt"

// Error reports a miner-level failure (e.g. attempting to mine before
// genesis, or a finalize-coinbase failure).
type Error struct {
	Reason string
}

func (e *Error) Error() string {
	return fmt.Sprintf("miner: %s", e.Reason)
}
