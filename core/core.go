// Package core wires the consensus-bearing components (C1-C11) and the
// API boundary (C12) into a single running node, the way
// daglabs-btcd's root-level kaspad struct wires blockdag/mempool/rpc
// together — minus the P2P transport layer, which spec.md's Non-goals
// leave to an external collaborator.
package core

import (
	"context"
	"sync"
	"time"

	"github.com/xai-network/xaid/api"
	"github.com/xai-network/xaid/block"
	"github.com/xai-network/xaid/chaincfg"
	"github.com/xai-network/xaid/chainstore"
	"github.com/xai-network/xaid/config"
	"github.com/xai-network/xaid/lightclient"
	"github.com/xai-network/xaid/logger"
	"github.com/xai-network/xaid/mempool"
	"github.com/xai-network/xaid/miner"
	"github.com/xai-network/xaid/noncetracker"
	"github.com/xai-network/xaid/statesync"
	"github.com/xai-network/xaid/util/locks"
	"github.com/xai-network/xaid/util/panics"
	"github.com/xai-network/xaid/utxo"
	"github.com/xai-network/xaid/validator"

	"github.com/btcsuite/btclog"
	"github.com/pkg/errors"
)

// statsInterval is how often the core publishes a "stats" WebSocket
// event while running (spec §4.12: topic "stats").
const statsInterval = 10 * time.Second

// CoreServices holds every wired subsystem a running xaid node needs.
// cmd/xaid calls its lifecycle methods and takes the HTTP router from the
// API field to serve it.
type CoreServices struct {
	cfg    *config.Config
	params chaincfg.Params

	UTXOSet   *utxo.Set
	Nonces    *noncetracker.Tracker
	Validator *validator.Validator
	Pool      *mempool.Pool
	Store     *chainstore.Store
	Miner     *miner.Miner
	Light     *lightclient.Service
	Sender    *statesync.Sender
	Progress  *statesync.ProgressStore
	API       *api.Server

	miningGate *locks.PauseGate
	log        btclog.Logger
	spawn      func(func())

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

// New constructs every subsystem and loads or creates the genesis block,
// but does not start any background workers (spec §9: "the core wires
// miner.Miner only if Config.MinerAddress is set").
func New(cfg *config.Config) (*CoreServices, error) {
	log, _ := logger.Get(logger.SubsystemTags.CNFG)

	params, ok := chaincfg.ParamsForNetwork(cfg.Network)
	if !ok {
		return nil, errors.Errorf("unknown network %q", cfg.Network)
	}
	params, err := chaincfg.LoadGenesisFile(cfg.DataDir+"/genesis.json", params)
	if err != nil {
		return nil, errors.Wrap(err, "loading genesis file")
	}

	utxoSet := utxo.NewSet()
	nonces := noncetracker.New()
	v := validator.New(validator.DefaultConfig(), utxoSet, nonces, params.ChainContext)
	pool := mempool.New(mempool.DefaultConfig(), utxoSet, nonces, v)

	store, err := chainstore.Open(cfg.BlockDBPath(), cfg.IndexDBPath(), utxoSet, nonces, pool, v, nil)
	if err != nil {
		return nil, errors.Wrap(err, "opening chain store")
	}

	if _, ok := store.Height(); !ok {
		genesis, err := params.GenesisBlock()
		if err != nil {
			return nil, errors.Wrap(err, "building genesis block")
		}
		if err := store.AppendGenesis(genesis); err != nil {
			return nil, errors.Wrap(err, "appending genesis block")
		}
	}

	lc := lightclient.New(store)
	sender := statesync.NewSender()

	progress, err := statesync.OpenProgressStore(cfg.ProgressDBPath())
	if err != nil {
		return nil, errors.Wrap(err, "opening sync progress store")
	}

	apiServer := api.New(store, pool, lc, sender, progress)

	var m *miner.Miner
	if cfg.MinerAddress != "" {
		m = miner.New(store, pool, miner.DefaultConfig(params.ChainContext))
	}

	return &CoreServices{
		cfg:        cfg,
		params:     params,
		UTXOSet:    utxoSet,
		Nonces:     nonces,
		Validator:  v,
		Pool:       pool,
		Store:      store,
		Miner:      m,
		Light:      lc,
		Sender:     sender,
		Progress:   progress,
		API:        apiServer,
		miningGate: locks.NewPauseGate(),
		log:        log,
		spawn:      panics.GoroutineWrapperFunc(log),
	}, nil
}

// Start launches the background workers (mining loop, when a miner is
// wired and Config.Mine is set; periodic stats broadcast) that run for
// the node's lifetime, mirroring kaspad.start's
// role of bringing up every long-running service.
func (c *CoreServices) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	if c.Miner != nil && c.cfg.Mine {
		c.wg.Add(1)
		c.spawn(func() {
			defer c.wg.Done()
			c.Miner.Run(ctx, c.cfg.MinerAddress, c.miningGate, c.onBlockMined)
		})
	}

	c.wg.Add(1)
	c.spawn(func() {
		defer c.wg.Done()
		c.runStatsLoop(ctx)
	})
}

// Stop cancels every background worker and waits for them to exit, then
// closes the on-disk stores.
func (c *CoreServices) Stop() error {
	if c.cancel != nil {
		c.cancel()
	}
	c.wg.Wait()

	if err := c.Progress.Close(); err != nil {
		c.log.Warnf("closing progress store: %s", err)
	}
	return c.Store.Close()
}

// onBlockMined appends a freshly mined block to the chain store and fans
// out a new_block WebSocket event (spec §4.12: topic "new_block").
func (c *CoreServices) onBlockMined(b *block.Block) {
	if err := c.Store.Append(b); err != nil {
		c.log.Warnf("rejecting self-mined block at height %d: %s", b.Header.Index, err)
		return
	}
	c.API.Hub().Publish(api.TopicNewBlock, b.Header)
}

func (c *CoreServices) runStatsLoop(ctx context.Context) {
	ticker := time.NewTicker(statsInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			height, _ := c.Store.Height()
			counters := c.Pool.Counters()
			c.API.Hub().Publish(api.TopicStats, map[string]interface{}{
				"height":       height,
				"mempool_size": c.Pool.Size(),
				"counters":     counters,
			})
			c.API.Hub().Publish(api.TopicSync, c.API.SyncTracker().Progress(height))
		}
	}
}

// BuildSnapshot assembles and registers a fresh chunked-sync snapshot
// from the current chain tip (spec §4.11), so API clients can immediately
// fetch it via GET /sync/snapshot/latest.
func (c *CoreServices) BuildSnapshot(snapshotID string) (statesync.Manifest, error) {
	tip := c.Store.Tip()
	if tip == nil {
		return statesync.Manifest{}, errors.New("cannot build a snapshot before genesis exists")
	}

	balances := make(map[string]float64)
	totalSupply := 0.0
	for _, entry := range c.UTXOSet.Snapshot() {
		balances[entry.Owner] += entry.Amount
		totalSupply += entry.Amount
	}
	cp := chainstore.CreateCheckpoint(tip, balances, totalSupply)

	// Bypass lightclient.GetRecentHeaders's MaxHeaderCount page clamp:
	// a sync snapshot needs every header up to the tip, not a client page.
	headers := c.Store.RecentHeaders(0, tip.Header.Index+1)

	history, err := c.Store.ListAddressHistory()
	if err != nil {
		return statesync.Manifest{}, errors.Wrap(err, "listing address history")
	}

	return c.Sender.BuildSnapshot(snapshotID, cp, headers, c.UTXOSet, c.Nonces, history)
}

// PauseMining stops the mining loop from starting new candidates without
// tearing down its goroutine (spec §5: "pause condition variable"), e.g.
// while this node is itself catching up via chunked sync.
func (c *CoreServices) PauseMining() { c.miningGate.Pause() }

// ResumeMining lets the mining loop proceed again.
func (c *CoreServices) ResumeMining() { c.miningGate.Resume() }
