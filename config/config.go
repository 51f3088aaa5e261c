// Package config implements the daemon's command-line/environment
// configuration surface (spec §6: "Environment & CLI (collaborator
// surface, summarized): miner address, RPC port, P2P port, data
// directory, network (mainnet/testnet). The core consumes a Config
// struct with these fields; it does not parse argv itself.").
package config

import (
	"os"
	"path/filepath"

	"github.com/jessevdk/go-flags"
	"github.com/pkg/errors"
)

const (
	defaultRPCPort  = 8332
	defaultP2PPort  = 8333
	defaultNetwork  = "mainnet"
	appDataDirName  = "xaid"
)

// Network is the chain the daemon participates in.
type Network string

const (
	Mainnet Network = "mainnet"
	Testnet Network = "testnet"
)

// Config is the fully resolved configuration the core and its long-running
// workers are constructed from. It is parsed once at startup; nothing
// downstream parses argv itself (spec §6).
type Config struct {
	MinerAddress string `long:"miner-address" description:"address that receives mined block rewards; mining is disabled if empty"`
	RPCPort      int    `long:"rpc-port" description:"port the HTTP/WebSocket API listens on" default:"8332"`
	P2PPort      int    `long:"p2p-port" description:"port used for peer-to-peer networking (collaborator concern)" default:"8333"`
	DataDir      string `long:"datadir" description:"directory for block/UTXO/index storage"`
	Network      string `long:"network" description:"mainnet or testnet" default:"mainnet" choice:"mainnet" choice:"testnet"`
	Mine         bool   `long:"mine" description:"run the continuous mining loop"`
}

// defaultDataDir returns $HOME/.xaid (or ./.xaid when the home directory
// is unknown) on every OS; it does not follow per-OS app data directory
// conventions.
func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "."+appDataDirName)
	}
	return filepath.Join(home, "."+appDataDirName)
}

// Parse parses os.Args into a Config, applying defaults for any fields
// left unset (spec §6's CLI surface is "summarized" and collaborator
// owned; this is the minimal slice the core actually consumes).
func Parse() (*Config, error) {
	cfg := &Config{
		RPCPort: defaultRPCPort,
		P2PPort: defaultP2PPort,
		Network: defaultNetwork,
		DataDir: defaultDataDir(),
	}

	parser := flags.NewParser(cfg, flags.Default)
	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		return nil, errors.Wrap(err, "parsing command-line arguments")
	}

	if cfg.DataDir == "" {
		cfg.DataDir = defaultDataDir()
	}

	return cfg, nil
}

// BlockDBPath returns the path chainstore.Open should use for its block
// database under this config's data directory.
func (c *Config) BlockDBPath() string {
	return filepath.Join(c.DataDir, "blocks")
}

// IndexDBPath returns the path chainstore.Open should use for its
// gorm-backed derived index under this config's data directory.
func (c *Config) IndexDBPath() string {
	return filepath.Join(c.DataDir, "index.db")
}

// ProgressDBPath returns the path statesync.OpenProgressStore should use.
func (c *Config) ProgressDBPath() string {
	return filepath.Join(c.DataDir, "sync_progress")
}
