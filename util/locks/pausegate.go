// Package locks provides small concurrency primitives shared by xaid's
// long-running workers (miner, state-sync downloader).
package locks

import "sync"

// PauseGate is a condition-variable gate that blocks callers in Wait until
// Resume is called. It starts in the open (not-paused) state. Multiple
// goroutines may Wait concurrently; all are released together on Resume.
//
// This is the primitive the state-sync downloader (C11) uses to park its
// worker goroutines while paused, and the one the miner (C8) uses to block
// between block templates without busy-waiting.
type PauseGate struct {
	mu     sync.Mutex
	cond   *sync.Cond
	paused bool
}

// NewPauseGate returns an open (not-paused) gate.
func NewPauseGate() *PauseGate {
	g := &PauseGate{}
	g.cond = sync.NewCond(&g.mu)
	return g
}

// Pause puts the gate into the paused state. Subsequent Wait calls will
// block until Resume is called.
func (g *PauseGate) Pause() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.paused = true
}

// Resume releases all goroutines currently blocked in Wait and leaves the
// gate open until Pause is called again.
func (g *PauseGate) Resume() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.paused = false
	g.cond.Broadcast()
}

// Wait blocks while the gate is paused. It returns immediately if the gate
// is not paused.
func (g *PauseGate) Wait() {
	g.mu.Lock()
	defer g.mu.Unlock()
	for g.paused {
		g.cond.Wait()
	}
}

// IsPaused reports whether the gate is currently paused.
func (g *PauseGate) IsPaused() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.paused
}
