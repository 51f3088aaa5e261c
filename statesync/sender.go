package statesync

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	"github.com/pkg/errors"

	"github.com/xai-network/xaid/block"
	"github.com/xai-network/xaid/chainstore"
	"github.com/xai-network/xaid/noncetracker"
	"github.com/xai-network/xaid/utxo"
)

// utxoRecord is utxo.Entry paired with its outpoint, flattened for JSON
// serialization (utxo.Outpoint is not a valid JSON object key).
type utxoRecord struct {
	TxID   string     `json:"txid"`
	Vout   uint32     `json:"vout"`
	Entry  utxo.Entry `json:"entry"`
}

type nonceRecord struct {
	Address   string `json:"address"`
	Confirmed uint64 `json:"confirmed"`
}

// statePayload is the full, deterministically ordered snapshot content.
// Field order is fixed so two sends of the same chain state serialize
// identically.
type statePayload struct {
	Checkpoint *chainstore.Checkpoint         `json:"checkpoint"`
	Headers    []*block.Header                `json:"headers"`
	UTXOs      []utxoRecord                   `json:"utxos"`
	Nonces     []nonceRecord                  `json:"nonces"`
	History    []chainstore.AddressTxRecord   `json:"history"`
}

// Sender builds snapshots and serves their chunks.
type Sender struct {
	snapshots map[string]*builtSnapshot
}

type builtSnapshot struct {
	manifest Manifest
	chunks   []Chunk
}

// NewSender returns an empty Sender.
func NewSender() *Sender {
	return &Sender{snapshots: make(map[string]*builtSnapshot)}
}

// BuildSnapshot assembles a snapshot from a checkpoint plus the chain
// store's current headers, UTXO set, nonce state, and address history,
// chunks it deterministically, and registers it under snapshotID for
// later retrieval (spec §4.11: "The sender builds a snapshot from a
// checkpoint, deterministically chunks the serialized state ...,
// computes per-chunk checksums and a whole-snapshot state hash").
func (s *Sender) BuildSnapshot(snapshotID string, cp *chainstore.Checkpoint, headers []*block.Header, utxoSet *utxo.Set, nonces *noncetracker.Tracker, history []chainstore.AddressTxRecord) (Manifest, error) {
	payload := statePayload{
		Checkpoint: cp,
		Headers:    headers,
	}

	snap := utxoSet.Snapshot()
	payload.UTXOs = make([]utxoRecord, 0, len(snap))
	for outpoint, entry := range snap {
		payload.UTXOs = append(payload.UTXOs, utxoRecord{TxID: outpoint.TxID, Vout: outpoint.Vout, Entry: *entry})
	}
	sortUTXORecords(payload.UTXOs)

	nonceSnap := nonces.Snapshot()
	payload.Nonces = make([]nonceRecord, 0, len(nonceSnap))
	for addr, confirmed := range nonceSnap {
		payload.Nonces = append(payload.Nonces, nonceRecord{Address: addr, Confirmed: confirmed})
	}
	sortNonceRecords(payload.Nonces)

	payload.History = history

	headerSection, err := json.Marshal(struct {
		Checkpoint *chainstore.Checkpoint `json:"checkpoint"`
		Headers    []*block.Header        `json:"headers"`
	}{payload.Checkpoint, payload.Headers})
	if err != nil {
		return Manifest{}, errors.Wrap(err, "marshaling header section")
	}
	utxoSection, err := json.Marshal(payload.UTXOs)
	if err != nil {
		return Manifest{}, errors.Wrap(err, "marshaling utxo section")
	}
	nonceSection, err := json.Marshal(payload.Nonces)
	if err != nil {
		return Manifest{}, errors.Wrap(err, "marshaling nonce section")
	}
	historySection, err := json.Marshal(payload.History)
	if err != nil {
		return Manifest{}, errors.Wrap(err, "marshaling history section")
	}

	type section struct {
		data     []byte
		priority Priority
	}
	sections := []section{
		{headerSection, PriorityHigh},
		{utxoSection, PriorityHigh},
		{nonceSection, PriorityMedium},
		{historySection, PriorityLow},
	}

	var chunks []Chunk
	var fullPayload []byte
	priorityMap := make(map[int]Priority)
	for _, sec := range sections {
		fullPayload = append(fullPayload, sec.data...)
		for offset := 0; offset < len(sec.data); offset += ChunkSize {
			end := offset + ChunkSize
			if end > len(sec.data) {
				end = len(sec.data)
			}
			frame := sec.data[offset:end]
			index := len(chunks)
			chunks = append(chunks, Chunk{
				Index:    index,
				Data:     frame,
				Checksum: checksum(frame),
				Priority: sec.priority,
			})
			priorityMap[index] = sec.priority
		}
	}
	if len(chunks) == 0 {
		chunks = append(chunks, Chunk{Index: 0, Checksum: checksum(nil), Priority: PriorityHigh})
		priorityMap[0] = PriorityHigh
	}
	for i := range chunks {
		chunks[i].TotalChunks = len(chunks)
	}

	stateHash := checksum(fullPayload)
	manifest := Manifest{
		SnapshotID:  snapshotID,
		Height:      cp.Height,
		TotalChunks: len(chunks),
		TotalSize:   len(fullPayload),
		StateHash:   stateHash,
		PriorityMap: priorityMap,
	}

	s.snapshots[snapshotID] = &builtSnapshot{manifest: manifest, chunks: chunks}
	return manifest, nil
}

// GetLatestSnapshotID returns the ID of the built snapshot with the
// greatest height, or "" if none exist. Among snapshots of equal height
// the one returned is not defined.
func (s *Sender) GetLatestSnapshotID() string {
	var latest string
	var latestHeight uint64
	first := true
	for id, snap := range s.snapshots {
		if first || snap.manifest.Height >= latestHeight {
			latest = id
			latestHeight = snap.manifest.Height
			first = false
		}
	}
	return latest
}

// GetManifest returns the manifest for a previously built snapshot.
func (s *Sender) GetManifest(snapshotID string) (Manifest, bool) {
	snap, ok := s.snapshots[snapshotID]
	if !ok {
		return Manifest{}, false
	}
	return snap.manifest, true
}

// GetChunk returns chunk index of snapshotID.
func (s *Sender) GetChunk(snapshotID string, index int) (Chunk, bool) {
	snap, ok := s.snapshots[snapshotID]
	if !ok || index < 0 || index >= len(snap.chunks) {
		return Chunk{}, false
	}
	return snap.chunks[index], true
}

func checksum(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func sortUTXORecords(records []utxoRecord) {
	for i := 1; i < len(records); i++ {
		for j := i; j > 0 && utxoLess(records[j], records[j-1]); j-- {
			records[j], records[j-1] = records[j-1], records[j]
		}
	}
}

func utxoLess(a, b utxoRecord) bool {
	if a.TxID != b.TxID {
		return a.TxID < b.TxID
	}
	return a.Vout < b.Vout
}

func sortNonceRecords(records []nonceRecord) {
	for i := 1; i < len(records); i++ {
		for j := i; j > 0 && records[j].Address < records[j-1].Address; j-- {
			records[j], records[j-1] = records[j-1], records[j]
		}
	}
}
