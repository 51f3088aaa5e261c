package statesync

import (
	"encoding/json"
	"fmt"

	"github.com/pkg/errors"
	"github.com/syndtr/goleveldb/leveldb"
)

// ProgressStore persists ProgressRecords so a resumed receiver knows
// which chunks it already has (spec §4.11: "Opens a progress record on
// disk ... resume(snapshot_id) reads the progress record and requests
// only remaining_chunks").
type ProgressStore struct {
	db *leveldb.DB
}

// OpenProgressStore opens (or creates) a goleveldb-backed progress store
// at path, mirroring chainstore.Open's storage choice for on-disk state.
func OpenProgressStore(path string) (*ProgressStore, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, errors.Wrap(err, "opening progress store")
	}
	return &ProgressStore{db: db}, nil
}

// Close releases the underlying database handle.
func (p *ProgressStore) Close() error {
	return p.db.Close()
}

// Save persists record, keyed by its SnapshotID.
func (p *ProgressStore) Save(record *ProgressRecord) error {
	payload, err := json.Marshal(record)
	if err != nil {
		return errors.Wrap(err, "marshaling progress record")
	}
	return p.db.Put([]byte(record.SnapshotID), payload, nil)
}

// Load returns the progress record for snapshotID, or ok=false if none
// exists yet.
func (p *ProgressStore) Load(snapshotID string) (record *ProgressRecord, ok bool, err error) {
	payload, err := p.db.Get([]byte(snapshotID), nil)
	if err == leveldb.ErrNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrap(err, "loading progress record")
	}
	record = &ProgressRecord{}
	if err := json.Unmarshal(payload, record); err != nil {
		return nil, false, errors.Wrap(err, "unmarshaling progress record")
	}
	return record, true, nil
}

// Delete removes a progress record, called on explicit abort (spec
// §4.11: "cancellation invalidates the progress record only on explicit
// abort").
func (p *ProgressStore) Delete(snapshotID string) error {
	return p.db.Delete([]byte(snapshotID), nil)
}

func chunkKey(snapshotID string, index int) []byte {
	return []byte(fmt.Sprintf("%s/chunk/%d", snapshotID, index))
}

// SaveChunk persists a downloaded chunk's bytes alongside the progress
// record, so a receiver resumed in a fresh process after a restart can
// reassemble the snapshot from disk instead of only knowing a chunk's
// index was once downloaded (spec §4.11: "resume(snapshot_id) reads the
// progress record and requests only remaining_chunks" implies the chunks
// it does not re-request must still be available to reassemble from).
func (p *ProgressStore) SaveChunk(snapshotID string, chunk Chunk) error {
	payload, err := json.Marshal(chunk)
	if err != nil {
		return errors.Wrap(err, "marshaling chunk")
	}
	return p.db.Put(chunkKey(snapshotID, chunk.Index), payload, nil)
}

// LoadChunk returns a previously persisted chunk, or ok=false if none was
// saved under that snapshot/index.
func (p *ProgressStore) LoadChunk(snapshotID string, index int) (chunk Chunk, ok bool, err error) {
	payload, err := p.db.Get(chunkKey(snapshotID, index), nil)
	if err == leveldb.ErrNotFound {
		return Chunk{}, false, nil
	}
	if err != nil {
		return Chunk{}, false, errors.Wrap(err, "loading chunk")
	}
	if err := json.Unmarshal(payload, &chunk); err != nil {
		return Chunk{}, false, errors.Wrap(err, "unmarshaling chunk")
	}
	return chunk, true, nil
}

// DeleteChunks removes every persisted chunk payload in indices for
// snapshotID, called once a download completes or is explicitly aborted.
func (p *ProgressStore) DeleteChunks(snapshotID string, indices map[int]bool) error {
	for index := range indices {
		if err := p.db.Delete(chunkKey(snapshotID, index), nil); err != nil {
			return errors.Wrap(err, "deleting chunk")
		}
	}
	return nil
}
