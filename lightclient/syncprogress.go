package lightclient

import (
	"sync"
	"time"
)

// SyncState enumerates the light-client sync session's coarse state.
type SyncState string

const (
	SyncStateIdle     SyncState = "idle"
	SyncStateSyncing  SyncState = "syncing"
	SyncStateStalled  SyncState = "stalled"
	SyncStateSynced   SyncState = "synced"
)

// stallThreshold is how long a sync session can go without a height
// change before it is reported as stalled (spec §4.10: "A session is
// 'stalled' after 30 s without progress").
const stallThreshold = 30 * time.Second

// maxSyncHistory bounds the samples kept for the headers/sec moving
// average.
const maxSyncHistory = 100

// historySample pairs a wall-clock time with the height observed then.
type historySample struct {
	at     time.Time
	height uint64
}

// SyncProgress is the snapshot returned to callers (spec §4.10):
// "{current_height, target_height, sync_state, headers_per_second,
// eta_seconds}".
type SyncProgress struct {
	CurrentHeight   uint64
	TargetHeight    uint64
	SyncState       SyncState
	HeadersPerSecond float64
	ETASeconds       *int64
	StartedAt        time.Time
}

// SyncTracker tracks a single light-client header-sync session's
// progress, grounded on light_client_service.py's SyncProgress tracking
// (start_sync/update_sync_progress/get_sync_progress).
type SyncTracker struct {
	mu sync.Mutex

	startedAt         time.Time
	startHeight       uint64
	targetHeight      uint64
	lastHeight        uint64
	lastHeightUpdate  time.Time
	history           []historySample
	started           bool
}

// NewSyncTracker returns a tracker in the idle state.
func NewSyncTracker() *SyncTracker {
	return &SyncTracker{}
}

// StartSync (re)initializes progress tracking against targetHeight,
// starting from currentHeight.
func (t *SyncTracker) StartSync(currentHeight, targetHeight uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := timeNow()
	t.startedAt = now
	t.startHeight = currentHeight
	t.targetHeight = targetHeight
	t.lastHeight = currentHeight
	t.lastHeightUpdate = now
	t.history = []historySample{{at: now, height: currentHeight}}
	t.started = true
}

// UpdateProgress records a new observed height, appending to the history
// used for the headers/sec estimate. It is a no-op if height has not
// changed since the last update.
func (t *SyncTracker) UpdateProgress(currentHeight uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.started {
		return
	}
	if currentHeight == t.lastHeight {
		return
	}

	now := timeNow()
	t.lastHeight = currentHeight
	t.lastHeightUpdate = now
	t.history = append(t.history, historySample{at: now, height: currentHeight})
	if len(t.history) > maxSyncHistory {
		t.history = t.history[len(t.history)-maxSyncHistory:]
	}
}

// Progress returns the current SyncProgress snapshot for currentHeight.
// If StartSync has not been called yet, it self-initializes against
// currentHeight (matching the Python service's lazy-start behavior).
func (t *SyncTracker) Progress(currentHeight uint64) SyncProgress {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.started {
		t.startedAt = timeNow()
		t.startHeight = currentHeight
		t.targetHeight = currentHeight
		t.lastHeight = currentHeight
		t.lastHeightUpdate = t.startedAt
		t.history = []historySample{{at: t.startedAt, height: currentHeight}}
		t.started = true
	}

	headersPerSecond := t.headersPerSecondLocked()
	state := t.determineStateLocked(currentHeight, headersPerSecond)

	var eta *int64
	if headersPerSecond > 0 && currentHeight < t.targetHeight {
		remaining := t.targetHeight - currentHeight
		secs := int64(float64(remaining) / headersPerSecond)
		eta = &secs
	}

	return SyncProgress{
		CurrentHeight:    currentHeight,
		TargetHeight:     t.targetHeight,
		SyncState:        state,
		HeadersPerSecond: headersPerSecond,
		ETASeconds:       eta,
		StartedAt:        t.startedAt,
	}
}

func (t *SyncTracker) headersPerSecondLocked() float64 {
	if len(t.history) < 2 {
		return 0
	}
	samples := t.history
	if len(samples) > 10 {
		samples = samples[len(samples)-10:]
	}
	elapsed := samples[len(samples)-1].at.Sub(samples[0].at).Seconds()
	if elapsed <= 0 {
		return 0
	}
	heightDiff := int64(samples[len(samples)-1].height) - int64(samples[0].height)
	if heightDiff < 0 {
		return 0
	}
	return float64(heightDiff) / elapsed
}

func (t *SyncTracker) determineStateLocked(currentHeight uint64, headersPerSecond float64) SyncState {
	if t.targetHeight > 0 && currentHeight >= t.targetHeight {
		return SyncStateSynced
	}

	sinceUpdate := timeNow().Sub(t.lastHeightUpdate)
	if sinceUpdate > stallThreshold && headersPerSecond < 0.01 {
		return SyncStateStalled
	}

	if headersPerSecond > 0 {
		return SyncStateSyncing
	}
	return SyncStateIdle
}

// timeNow returns time.Now(); it is a plain function, not a variable that
// tests can replace.
func timeNow() time.Time {
	return time.Now()
}
