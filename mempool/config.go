// Package mempool implements the mempool admission, eviction, and
// replace-by-fee engine (C5): a bounded pool of admitted, not-yet-confirmed
// transactions plus the sender-ban and orphan-pruning bookkeeping that
// guards it.
package mempool

import "time"

// Config holds the mempool's tunable policy knobs (spec §4.5).
type Config struct {
	MaxSize          int
	MaxPerSender     int
	MaxAge           time.Duration
	MinFeeRate       float64
	InvalidThreshold int
	InvalidWindow    time.Duration
	InvalidBan       time.Duration
	MaxPerBlock      int
}

// DefaultConfig returns the policy defaults exercised by the reference
// client (original_source test fixtures).
func DefaultConfig() Config {
	return Config{
		MaxSize:          1000,
		MaxPerSender:     10,
		MaxAge:           10 * time.Second,
		MinFeeRate:       0.0,
		InvalidThreshold: 2,
		InvalidWindow:    60 * time.Second,
		InvalidBan:       30 * time.Second,
		MaxPerBlock:      2,
	}
}
