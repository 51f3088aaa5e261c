// Package chaincfg defines per-network chain parameters: the chain-context
// replay-protection tag, address prefix, and the genesis block's initial
// coinbase distribution (spec.md's "genesis.json — boot parameters and
// initial coinbase distribution").
package chaincfg

import (
	"github.com/xai-network/xaid/crypto"
)

// Allocation is a single address/amount pair paid out by the genesis
// coinbase transaction.
type Allocation struct {
	Address string  `json:"address"`
	Amount  float64 `json:"amount"`
}

// Params is the full set of parameters that distinguish one network from
// another. The chain-context tag is mixed into every transaction hash
// (spec.md §"Crypto": "a chain_context string so a transaction valid on
// one network cannot be replayed on another"), so mainnet and testnet
// transactions and coinbases are never hash-compatible.
type Params struct {
	Name          string
	ChainContext  string
	Network       crypto.Network
	GenesisTime   int64
	Allocations   []Allocation
}

// MainNetParams are the parameters for the production network.
var MainNetParams = Params{
	Name:         "mainnet",
	ChainContext: "mainnet",
	Network:      crypto.Mainnet,
	GenesisTime:  1700000000,
	Allocations:  nil,
}

// TestNetParams are the parameters for the test network. Its chain context
// differs from mainnet's so a signed testnet transaction can never be
// replayed against the production chain.
var TestNetParams = Params{
	Name:         "testnet",
	ChainContext: "testnet",
	Network:      crypto.Testnet,
	GenesisTime:  1700000000,
	Allocations:  nil,
}

// ParamsForNetwork resolves a config.Config's "mainnet"/"testnet" string
// into the matching Params, mirroring dagconfig's per-network parameter
// tables collapsed down to the two networks spec.md names.
func ParamsForNetwork(network string) (Params, bool) {
	switch network {
	case "mainnet", "":
		return MainNetParams, true
	case "testnet":
		return TestNetParams, true
	default:
		return Params{}, false
	}
}
