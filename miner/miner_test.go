package miner

import (
	"context"
	"io/ioutil"
	"os"
	"testing"
	"time"

	"github.com/xai-network/xaid/block"
	"github.com/xai-network/xaid/chainstore"
	"github.com/xai-network/xaid/crypto"
	"github.com/xai-network/xaid/mempool"
	"github.com/xai-network/xaid/noncetracker"
	"github.com/xai-network/xaid/txn"
	"github.com/xai-network/xaid/utxo"
	"github.com/xai-network/xaid/validator"
)

func newTestStore(t *testing.T) (*chainstore.Store, *utxo.Set, *noncetracker.Tracker, *mempool.Pool) {
	t.Helper()
	dbDir, err := ioutil.TempDir("", "xaid-miner-db")
	if err != nil {
		t.Fatalf("TempDir: %s", err)
	}
	idxFile, err := ioutil.TempFile("", "xaid-miner-idx")
	if err != nil {
		t.Fatalf("TempFile: %s", err)
	}
	idxFile.Close()

	utxoSet := utxo.NewSet()
	nonces := noncetracker.New()
	v := validator.New(validator.DefaultConfig(), utxoSet, nonces, "mainnet")
	pool := mempool.New(mempool.DefaultConfig(), utxoSet, nonces, v)

	store, err := chainstore.Open(dbDir+"/blocks", idxFile.Name(), utxoSet, nonces, pool, v, nil)
	if err != nil {
		t.Fatalf("Open: %s", err)
	}
	t.Cleanup(func() {
		store.Close()
		os.RemoveAll(dbDir)
		os.Remove(idxFile.Name())
	})
	return store, utxoSet, nonces, pool
}

func TestMinePendingBeforeGenesisFails(t *testing.T) {
	store, _, _, pool := newTestStore(t)
	m := New(store, pool, DefaultConfig("mainnet"))
	m.cfg.Difficulty = 0

	if _, err := m.MinePending(context.Background(), "XAI0000000000000000000000000000000000000000"); err == nil {
		t.Fatal("MinePending before genesis should fail")
	}
}

func TestMinePendingIncludesPendingTransactionAndPaysFees(t *testing.T) {
	store, utxoSet, _, pool := newTestStore(t)

	minerPriv, _ := crypto.GeneratePrivateKey()
	minerAddr := crypto.DeriveAddress(minerPriv.PublicKey(), crypto.Mainnet)

	senderPriv, _ := crypto.GeneratePrivateKey()
	senderAddr := crypto.DeriveAddress(senderPriv.PublicKey(), crypto.Mainnet)
	recipientPriv, _ := crypto.GeneratePrivateKey()
	recipientAddr := crypto.DeriveAddress(recipientPriv.PublicKey(), crypto.Mainnet)

	genesisTime := time.Now().Add(-1 * time.Hour).Unix()
	genesisCoinbase := txn.NewCoinbase(0, []txn.Output{{Address: senderAddr, Amount: 60}}, genesisTime)
	if err := genesisCoinbase.FinalizeCoinbase("mainnet"); err != nil {
		t.Fatalf("FinalizeCoinbase: %s", err)
	}
	genesis := block.New(0, "", genesisTime, 0, []*txn.Transaction{genesisCoinbase})
	if err := store.AppendGenesis(genesis); err != nil {
		t.Fatalf("AppendGenesis: %s", err)
	}

	spend, err := txn.New(senderAddr, recipientAddr, 5, 0.5, 0, txn.KindNormal)
	if err != nil {
		t.Fatalf("txn.New: %s", err)
	}
	spend.Timestamp = time.Now().Unix()
	spend.Inputs = []txn.Input{{TxID: genesisCoinbase.TxID, Vout: 0}}
	spend.Outputs = []txn.Output{
		{Address: recipientAddr, Amount: 5},
		{Address: senderAddr, Amount: 54.5},
	}
	if err := spend.Sign(senderPriv, "mainnet"); err != nil {
		t.Fatalf("Sign: %s", err)
	}
	if err := pool.Admit(spend); err != nil {
		t.Fatalf("Admit: %s", err)
	}

	m := New(store, pool, DefaultConfig("mainnet"))
	m.cfg.Difficulty = 0

	mined, err := m.MinePending(context.Background(), minerAddr)
	if err != nil {
		t.Fatalf("MinePending: %s", err)
	}
	if len(mined.Txs) != 2 {
		t.Fatalf("len(mined.Txs) = %d; want 2 (coinbase + spend)", len(mined.Txs))
	}
	if !mined.Txs[0].IsCoinbase() {
		t.Fatal("first transaction in mined block must be coinbase")
	}

	expectedReward := block.CoinbaseAmount(1, 0.5)
	if got := mined.Txs[0].Outputs[0].Amount; got != expectedReward {
		t.Fatalf("coinbase reward = %f; want %f", got, expectedReward)
	}

	if err := store.Append(mined); err != nil {
		t.Fatalf("Append(mined): %s", err)
	}
	if got := utxoSet.Balance(minerAddr); got != expectedReward {
		t.Fatalf("Balance(miner) = %f; want %f", got, expectedReward)
	}
	if pool.Has(spend.TxID) {
		t.Fatal("mined transaction should be removed from the mempool on append")
	}
}

func TestBonusHookAddsExtraCoinbaseOutput(t *testing.T) {
	store, _, _, pool := newTestStore(t)

	genesisTime := time.Now().Add(-1 * time.Hour).Unix()
	genesisCoinbase := txn.NewCoinbase(0, nil, genesisTime)
	genesisCoinbase.FinalizeCoinbase("mainnet")
	genesis := block.New(0, "", genesisTime, 0, []*txn.Transaction{genesisCoinbase})
	if err := store.AppendGenesis(genesis); err != nil {
		t.Fatalf("AppendGenesis: %s", err)
	}

	m := New(store, pool, DefaultConfig("mainnet"))
	m.cfg.Difficulty = 0
	bonusAddr := "XAI1111111111111111111111111111111111111111"
	m.AddBonusHook(func(height uint64) []txn.Output {
		return []txn.Output{{Address: bonusAddr, Amount: 1}}
	})

	mined, err := m.MinePending(context.Background(), "XAI0000000000000000000000000000000000000000")
	if err != nil {
		t.Fatalf("MinePending: %s", err)
	}
	if len(mined.Txs[0].Outputs) != 2 {
		t.Fatalf("len(coinbase outputs) = %d; want 2 (reward + bonus)", len(mined.Txs[0].Outputs))
	}
	if mined.Txs[0].Outputs[1].Address != bonusAddr {
		t.Fatalf("bonus output address = %s; want %s", mined.Txs[0].Outputs[1].Address, bonusAddr)
	}
}
