// Package statesync implements chunked state sync (C11): the sender
// chunks a chain-store checkpoint into priority-ordered, checksummed
// frames; the receiver fetches them under a bandwidth throttle with
// resumable, pausable progress tracking (spec §4.11).
package statesync

// Priority orders chunk download: header/UTXO-index data goes first,
// bulk history last (spec §4.11: "assigns priorities (e.g. header/UTXO
// index = HIGH, bulk history = LOW)").
type Priority int

const (
	PriorityHigh Priority = iota
	PriorityMedium
	PriorityLow
)

func (p Priority) String() string {
	switch p {
	case PriorityHigh:
		return "HIGH"
	case PriorityMedium:
		return "MEDIUM"
	case PriorityLow:
		return "LOW"
	default:
		return "UNKNOWN"
	}
}

// ChunkSize bounds each chunk's uncompressed payload size (spec §4.11:
// "chunks the serialized state into CHUNK_SIZE-bounded frames").
const ChunkSize = 64 * 1024

// Manifest describes a snapshot's chunk layout so a receiver can plan its
// fetch order before downloading any chunk data (spec §3: "Snapshot
// manifest ... {snapshot_id, height, total_chunks, total_size, state_hash,
// priority_map}").
type Manifest struct {
	SnapshotID  string
	Height      uint64
	TotalChunks int
	TotalSize   int
	StateHash   string
	PriorityMap map[int]Priority
}

// Chunk is one frame of a snapshot's serialized state (spec §3: "Chunks:
// {chunk_index, total_chunks, data, checksum, compressed?,
// priority∈{HIGH,MEDIUM,LOW}}").
type Chunk struct {
	Index       int
	TotalChunks int
	Data        []byte
	Checksum    string
	Compressed  bool
	Priority    Priority
}

// ProgressRecord tracks a receiver's download state for one snapshot,
// durable enough to resume after an interruption (spec §3: "Progress
// record: {downloaded_chunks, failed_chunks, remaining_chunks,
// started_at, last_chunk_at}").
type ProgressRecord struct {
	SnapshotID       string
	TotalChunks      int
	DownloadedChunks map[int]bool
	FailedChunks     map[int]int // index -> retry count
	StartedAt        int64
	LastChunkAt      int64
}

// RemainingChunks returns the indices not yet successfully downloaded.
func (p *ProgressRecord) RemainingChunks() []int {
	var remaining []int
	for i := 0; i < p.TotalChunks; i++ {
		if !p.DownloadedChunks[i] {
			remaining = append(remaining, i)
		}
	}
	return remaining
}

// Done reports whether every chunk has been downloaded.
func (p *ProgressRecord) Done() bool {
	return len(p.RemainingChunks()) == 0
}
