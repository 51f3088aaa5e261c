// Package miner implements the miner (C8): block template assembly from
// the mempool's prioritized snapshot, proof-of-work nonce search, and
// hand-off to the chain store.
package miner

import (
	"context"
	"time"

	"github.com/xai-network/xaid/block"
	"github.com/xai-network/xaid/chainstore"
	"github.com/xai-network/xaid/logger"
	"github.com/xai-network/xaid/mempool"
	"github.com/xai-network/xaid/txn"

	"github.com/btcsuite/btclog"
)

// nonceCheckInterval is how many nonce guesses the search loop tries
// before checking for cancellation, mirroring the teacher's
// solveBlock's periodic ShouldStop check.
const nonceCheckInterval = 4096

// BonusHook adds extra coinbase outputs for a given height (streak
// rewards, referral bonuses, etc. from the external collaborator). It
// never alters consensus rules: the base reward and fee totals are
// computed independently of any hook (spec §4.8: "Streak/bonus hooks add
// extra coinbase outputs before mining; they do not alter consensus
// rules").
type BonusHook func(height uint64) []txn.Output

// Config holds the miner's block-assembly policy.
type Config struct {
	MaxTxsPerBlock int
	Difficulty     int
	ChainContext   string
}

// DefaultConfig returns a reasonable template-assembly policy.
func DefaultConfig(chainContext string) Config {
	return Config{MaxTxsPerBlock: 2000, Difficulty: 4, ChainContext: chainContext}
}

// Miner assembles and mines candidate blocks against the chain store's
// current tip, using the mempool's prioritized snapshot.
type Miner struct {
	store *chainstore.Store
	pool  *mempool.Pool
	cfg   Config
	log   btclog.Logger

	bonusHooks []BonusHook
}

// New constructs a Miner bound to store and pool.
func New(store *chainstore.Store, pool *mempool.Pool, cfg Config) *Miner {
	log, _ := logger.Get(logger.SubsystemTags.MINR)
	return &Miner{store: store, pool: pool, cfg: cfg, log: log}
}

// AddBonusHook registers a coinbase-output bonus hook, applied to every
// subsequently mined block.
func (m *Miner) AddBonusHook(hook BonusHook) {
	m.bonusHooks = append(m.bonusHooks, hook)
}

// MinePending assembles a candidate block from the mempool's current
// contents, prepends a reward coinbase, and searches for a nonce meeting
// the configured difficulty, returning the mined (but not yet appended)
// block (spec §4.8: "mine_pending(miner_address)"). It does not call
// chainstore.Append; the caller is responsible for that hand-off, so it
// can re-validate and re-broadcast.
func (m *Miner) MinePending(ctx context.Context, minerAddress string) (*block.Block, error) {
	tip := m.store.Tip()
	if tip == nil {
		return nil, &Error{Reason: "cannot mine before a genesis block exists"}
	}
	height := tip.Header.Index + 1

	ordered := mempool.Order(m.pool.Pending(), m.cfg.MaxTxsPerBlock)

	var totalFees float64
	txs := make([]*txn.Transaction, 0, len(ordered)+1)
	for _, desc := range ordered {
		totalFees += desc.Tx.Fee
	}

	now := time.Now().Unix()
	coinbaseOutputs := []txn.Output{{Address: minerAddress, Amount: block.CoinbaseAmount(height, totalFees)}}
	for _, hook := range m.bonusHooks {
		coinbaseOutputs = append(coinbaseOutputs, hook(height)...)
	}

	coinbase := txn.NewCoinbase(height, coinbaseOutputs, now)
	if err := coinbase.FinalizeCoinbase(m.cfg.ChainContext); err != nil {
		return nil, &Error{Reason: "finalizing coinbase: " + err.Error()}
	}
	txs = append(txs, coinbase)
	for _, desc := range ordered {
		txs = append(txs, desc.Tx)
	}

	candidate := block.New(height, tip.Hash(), now, m.cfg.Difficulty, txs)

	if err := m.searchNonce(ctx, candidate); err != nil {
		return nil, err
	}

	m.log.Infof("mined block %s at height %d with %d transactions", candidate.Hash(), height, len(txs))
	return candidate, nil
}

// searchNonce increments candidate's header nonce until its hash meets
// the target difficulty, checking ctx for cancellation periodically
// (spec §4.8: "Mining is interruptible: when a better external block
// arrives on the same height, the miner abandons the candidate").
func (m *Miner) searchNonce(ctx context.Context, candidate *block.Block) error {
	for i := 0; ; i++ {
		if i%nonceCheckInterval == 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
		}
		if block.MeetsDifficulty(candidate.Hash(), candidate.Header.Difficulty) {
			return nil
		}
		candidate.Header.Nonce++
	}
}
