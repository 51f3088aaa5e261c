package chainstore

import (
	"encoding/json"
	"fmt"

	"github.com/pkg/errors"
	"github.com/syndtr/goleveldb/leveldb"

	"github.com/xai-network/xaid/block"
)

var (
	blockKeyPrefix      = []byte("block:")
	heightKeyPrefix     = []byte("height:")
	checkpointKeyPrefix = []byte("checkpoint:")
	tipKey              = []byte("tip")
)

func blockKey(hash string) []byte {
	return append(append([]byte{}, blockKeyPrefix...), []byte(hash)...)
}

func heightKey(height uint64) []byte {
	return append(append([]byte{}, heightKeyPrefix...), []byte(fmt.Sprintf("%020d", height))...)
}

func checkpointKey(height uint64) []byte {
	return append(append([]byte{}, checkpointKeyPrefix...), []byte(fmt.Sprintf("%020d", height))...)
}

// wireBlock is the on-disk encoding of a block (spec §6: "Block wire
// format").
type wireBlock struct {
	Header       block.Header `json:"header"`
	Transactions []byte       `json:"transactions"`
}

func serializeBlock(b *block.Block) ([]byte, error) {
	txsJSON, err := json.Marshal(b.Txs)
	if err != nil {
		return nil, err
	}
	return json.Marshal(wireBlock{Header: b.Header, Transactions: txsJSON})
}

func deserializeBlock(data []byte) (*block.Block, error) {
	var wb wireBlock
	if err := json.Unmarshal(data, &wb); err != nil {
		return nil, errors.Wrap(err, "deserializing block")
	}
	b := &block.Block{Header: wb.Header}
	if err := json.Unmarshal(wb.Transactions, &b.Txs); err != nil {
		return nil, errors.Wrap(err, "deserializing block transactions")
	}
	return b, nil
}

// putBlock persists a block keyed by both its hash and its height, so the
// chain store can look it up either way.
func (s *Store) putBlock(b *block.Block, batch *leveldb.Batch) error {
	data, err := serializeBlock(b)
	if err != nil {
		return err
	}
	hash := b.Hash()
	batch.Put(blockKey(hash), data)
	batch.Put(heightKey(b.Header.Index), []byte(hash))
	return nil
}

func (s *Store) getBlockByHash(hash string) (*block.Block, error) {
	data, err := s.db.Get(blockKey(hash), nil)
	if err != nil {
		return nil, err
	}
	return deserializeBlock(data)
}

func (s *Store) getBlockByHeight(height uint64) (*block.Block, error) {
	hash, err := s.db.Get(heightKey(height), nil)
	if err != nil {
		return nil, err
	}
	return s.getBlockByHash(string(hash))
}
