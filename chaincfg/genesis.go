package chaincfg

import (
	"encoding/json"
	"io/ioutil"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/xai-network/xaid/block"
	"github.com/xai-network/xaid/crypto"
	"github.com/xai-network/xaid/txn"
)

// genesisFile is the on-disk shape of genesis.json: Params plus whatever a
// deployment overrides at boot time, kept separate from the Go-side
// defaults so an operator can hand-edit the allocation list without
// touching code.
type genesisFile struct {
	ChainContext string       `json:"chain_context"`
	GenesisTime  int64        `json:"genesis_time"`
	Allocations  []Allocation `json:"allocations"`
}

// LoadGenesisFile reads genesis.json from path, falling back to base's
// built-in defaults for any field the file doesn't override. A missing
// file is not an error: the caller gets base back unchanged, so a fresh
// node can boot from compiled-in defaults alone.
func LoadGenesisFile(path string, base Params) (Params, error) {
	data, err := ioutil.ReadFile(path)
	if os.IsNotExist(err) {
		return base, nil
	}
	if err != nil {
		return Params{}, errors.Wrap(err, "reading genesis file")
	}

	var gf genesisFile
	if err := json.Unmarshal(data, &gf); err != nil {
		return Params{}, errors.Wrap(err, "parsing genesis file")
	}

	out := base
	if gf.ChainContext != "" {
		out.ChainContext = gf.ChainContext
	}
	if gf.GenesisTime != 0 {
		out.GenesisTime = gf.GenesisTime
	}
	if gf.Allocations != nil {
		out.Allocations = gf.Allocations
	}
	return out, nil
}

// WriteGenesisFile serializes p to path atomically: write to a temp file in
// the same directory, then rename over the destination, so a crash never
// leaves a half-written genesis.json behind.
func WriteGenesisFile(path string, p Params) error {
	gf := genesisFile{
		ChainContext: p.ChainContext,
		GenesisTime:  p.GenesisTime,
		Allocations:  p.Allocations,
	}
	data, err := json.MarshalIndent(gf, "", "  ")
	if err != nil {
		return errors.Wrap(err, "marshaling genesis file")
	}

	dir := filepath.Dir(path)
	tmp, err := ioutil.TempFile(dir, "genesis-*.json.tmp")
	if err != nil {
		return errors.Wrap(err, "creating temp genesis file")
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return errors.Wrap(err, "writing temp genesis file")
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return errors.Wrap(err, "closing temp genesis file")
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return errors.Wrap(err, "renaming temp genesis file into place")
	}
	return nil
}

// GenesisBlock builds the height-0 block for p: a single coinbase
// transaction paying out every allocation, finalized under p's chain
// context so it can never be replayed onto another network.
func (p Params) GenesisBlock() (*block.Block, error) {
	outputs := make([]txn.Output, 0, len(p.Allocations))
	for _, alloc := range p.Allocations {
		outputs = append(outputs, txn.Output{Address: alloc.Address, Amount: alloc.Amount})
	}
	if len(outputs) == 0 {
		// A coinbase transaction must have at least one output even
		// when the network launches with no premine.
		outputs = append(outputs, txn.Output{Address: crypto.CoinbaseAddress, Amount: 0})
	}

	coinbase := txn.NewCoinbase(0, outputs, p.GenesisTime)
	if err := coinbase.FinalizeCoinbase(p.ChainContext); err != nil {
		return nil, errors.Wrap(err, "finalizing genesis coinbase")
	}

	return block.New(0, "", p.GenesisTime, 0, []*txn.Transaction{coinbase}), nil
}
