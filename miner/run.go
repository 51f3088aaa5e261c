package miner

import (
	"context"

	"github.com/xai-network/xaid/block"
	"github.com/xai-network/xaid/util/locks"
)

// Run drives the continuous mining loop: it repeatedly mines a candidate
// against the current tip, hands it to onMined for append/broadcast, and
// restarts against the new tip. Run blocks until ctx is cancelled (spec
// §5: "multi-threaded with a small number of long-running workers ...
// miner").
//
// gate lets the caller pause mining (e.g. while a chunked sync is
// in-flight) without tearing down the goroutine; it starts open.
func (m *Miner) Run(ctx context.Context, minerAddress string, gate *locks.PauseGate, onMined func(*block.Block)) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		gate.Wait()

		candidate, err := m.MinePending(ctx, minerAddress)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			m.log.Warnf("mining attempt failed: %s", err)
			continue
		}

		onMined(candidate)
	}
}
