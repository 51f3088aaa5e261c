package api

import (
	"bytes"
	"encoding/json"
	"io/ioutil"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/xai-network/xaid/block"
	"github.com/xai-network/xaid/chainstore"
	"github.com/xai-network/xaid/crypto"
	"github.com/xai-network/xaid/lightclient"
	"github.com/xai-network/xaid/mempool"
	"github.com/xai-network/xaid/noncetracker"
	"github.com/xai-network/xaid/statesync"
	"github.com/xai-network/xaid/txn"
	"github.com/xai-network/xaid/utxo"
	"github.com/xai-network/xaid/validator"
)

func newTestServer(t *testing.T) (*Server, *chainstore.Store, *mempool.Pool, string) {
	t.Helper()
	dbDir, err := ioutil.TempDir("", "xaid-api-db")
	if err != nil {
		t.Fatalf("TempDir: %s", err)
	}
	idxFile, err := ioutil.TempFile("", "xaid-api-idx")
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

	senderPriv, _ := crypto.GeneratePrivateKey()
	senderAddr := crypto.DeriveAddress(senderPriv.PublicKey(), crypto.Mainnet)

	genesisTime := time.Now().Add(-1 * time.Hour).Unix()
	coinbase := txn.NewCoinbase(0, []txn.Output{{Address: senderAddr, Amount: 60}}, genesisTime)
	if err := coinbase.FinalizeCoinbase("mainnet"); err != nil {
		t.Fatalf("FinalizeCoinbase: %s", err)
	}
	genesis := block.New(0, "", genesisTime, 0, []*txn.Transaction{coinbase})
	if err := store.AppendGenesis(genesis); err != nil {
		t.Fatalf("AppendGenesis: %s", err)
	}

	lc := lightclient.New(store)
	sender := statesync.NewSender()

	progressDir, err := ioutil.TempDir("", "xaid-api-progress")
	if err != nil {
		t.Fatalf("TempDir: %s", err)
	}
	progress, err := statesync.OpenProgressStore(progressDir + "/progress")
	if err != nil {
		t.Fatalf("OpenProgressStore: %s", err)
	}
	t.Cleanup(func() {
		progress.Close()
		os.RemoveAll(progressDir)
	})

	server := New(store, pool, lc, sender, progress)
	return server, store, pool, senderAddr
}

func TestSubmitTxAdmitsValidTransactionWithOwnedOutput(t *testing.T) {
	dbDir, err := ioutil.TempDir("", "xaid-api-db2")
	if err != nil {
		t.Fatalf("TempDir: %s", err)
	}
	idxFile, err := ioutil.TempFile("", "xaid-api-idx2")
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

	senderPriv, _ := crypto.GeneratePrivateKey()
	senderAddr := crypto.DeriveAddress(senderPriv.PublicKey(), crypto.Mainnet)
	recipientPriv, _ := crypto.GeneratePrivateKey()
	recipientAddr := crypto.DeriveAddress(recipientPriv.PublicKey(), crypto.Mainnet)

	genesisTime := time.Now().Add(-1 * time.Hour).Unix()
	coinbase := txn.NewCoinbase(0, []txn.Output{{Address: senderAddr, Amount: 60}}, genesisTime)
	coinbase.FinalizeCoinbase("mainnet")
	genesis := block.New(0, "", genesisTime, 0, []*txn.Transaction{coinbase})
	if err := store.AppendGenesis(genesis); err != nil {
		t.Fatalf("AppendGenesis: %s", err)
	}

	lc := lightclient.New(store)
	sender := statesync.NewSender()
	progressDir, _ := ioutil.TempDir("", "xaid-api-progress2")
	progress, err := statesync.OpenProgressStore(progressDir + "/progress")
	if err != nil {
		t.Fatalf("OpenProgressStore: %s", err)
	}
	t.Cleanup(func() {
		progress.Close()
		os.RemoveAll(progressDir)
	})

	server := New(store, pool, lc, sender, progress)
	ts := httptest.NewServer(server.Router())
	t.Cleanup(ts.Close)

	spend, err := txn.New(senderAddr, recipientAddr, 5, 0.5, 0, txn.KindNormal)
	if err != nil {
		t.Fatalf("txn.New: %s", err)
	}
	spend.Timestamp = time.Now().Unix()
	spend.Inputs = []txn.Input{{TxID: coinbase.TxID, Vout: 0}}
	spend.Outputs = []txn.Output{
		{Address: recipientAddr, Amount: 5},
		{Address: senderAddr, Amount: 54.5},
	}
	if err := spend.Sign(senderPriv, "mainnet"); err != nil {
		t.Fatalf("Sign: %s", err)
	}

	body, _ := json.Marshal(spend)
	resp, err := http.Post(ts.URL+"/tx", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("POST /tx: %s", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("POST /tx status = %d; want 200", resp.StatusCode)
	}

	if !pool.Has(spend.TxID) {
		t.Fatal("transaction should be admitted to the mempool")
	}
}

func TestGetBlockReturnsGenesis(t *testing.T) {
	server, _, _, _ := newTestServer(t)
	ts := httptest.NewServer(server.Router())
	t.Cleanup(ts.Close)

	resp, err := http.Get(ts.URL + "/blocks/0")
	if err != nil {
		t.Fatalf("GET /blocks/0: %s", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d; want 200", resp.StatusCode)
	}

	var b block.Block
	if err := json.NewDecoder(resp.Body).Decode(&b); err != nil {
		t.Fatalf("decode: %s", err)
	}
	if b.Header.Index != 0 {
		t.Fatalf("Index = %d; want 0", b.Header.Index)
	}
}

func TestGetBlockMissingHeightReturns404(t *testing.T) {
	server, _, _, _ := newTestServer(t)
	ts := httptest.NewServer(server.Router())
	t.Cleanup(ts.Close)

	resp, err := http.Get(ts.URL + "/blocks/99")
	if err != nil {
		t.Fatalf("GET /blocks/99: %s", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d; want 404", resp.StatusCode)
	}
}

func TestGetHeaders(t *testing.T) {
	server, _, _, _ := newTestServer(t)
	ts := httptest.NewServer(server.Router())
	t.Cleanup(ts.Close)

	resp, err := http.Get(ts.URL + "/headers?from=0&count=10")
	if err != nil {
		t.Fatalf("GET /headers: %s", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d; want 200", resp.StatusCode)
	}

	var page lightclient.HeaderPage
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		t.Fatalf("decode: %s", err)
	}
	if len(page.Headers) != 1 {
		t.Fatalf("len(Headers) = %d; want 1", len(page.Headers))
	}
}

func TestGetProofUnknownTxReturns404(t *testing.T) {
	server, _, _, _ := newTestServer(t)
	ts := httptest.NewServer(server.Router())
	t.Cleanup(ts.Close)

	resp, err := http.Get(ts.URL + "/proof/does-not-exist")
	if err != nil {
		t.Fatalf("GET /proof: %s", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d; want 404", resp.StatusCode)
	}

	var env errorEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		t.Fatalf("decode: %s", err)
	}
	if env.Error.Code != CodeNotFound {
		t.Fatalf("Error.Code = %s; want %s", env.Error.Code, CodeNotFound)
	}
}

func TestSyncProgressReportsCurrentHeight(t *testing.T) {
	server, _, _, _ := newTestServer(t)
	ts := httptest.NewServer(server.Router())
	t.Cleanup(ts.Close)

	resp, err := http.Get(ts.URL + "/sync/progress")
	if err != nil {
		t.Fatalf("GET /sync/progress: %s", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d; want 200", resp.StatusCode)
	}

	var progress lightclient.SyncProgress
	if err := json.NewDecoder(resp.Body).Decode(&progress); err != nil {
		t.Fatalf("decode: %s", err)
	}
	if progress.CurrentHeight != 0 {
		t.Fatalf("CurrentHeight = %d; want 0", progress.CurrentHeight)
	}
}
