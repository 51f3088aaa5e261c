package mempool

import (
	"testing"
	"time"

	"github.com/xai-network/xaid/noncetracker"
	"github.com/xai-network/xaid/txn"
	"github.com/xai-network/xaid/utxo"
)

type alwaysValid struct{}

func (alwaysValid) Validate(tx *txn.Transaction) error { return nil }

type alwaysInvalid struct{}

func (alwaysInvalid) Validate(tx *txn.Transaction) error {
	return &txn.ValidationError{Field: "test", Reason: "forced invalid"}
}

// nonceAwareValidator mirrors validator.checkNonce's duplicate-pending-nonce
// rejection (C9) against a real *noncetracker.Tracker, standing in for the
// full validator so Admit's step-8 Reserve/Release wiring can be exercised
// without importing package validator (see the Validator interface doc).
type nonceAwareValidator struct {
	nonces *noncetracker.Tracker
}

func (v nonceAwareValidator) Validate(tx *txn.Transaction) error {
	if holder, ok := v.nonces.ReservedBy(tx.Sender, tx.Nonce); ok && holder != tx.TxID {
		if tx.ReplacesTxID != holder {
			return &txn.ValidationError{Field: "nonce", Reason: "nonce already reserved by a pending transaction"}
		}
	}
	return nil
}

func newTestPool(t *testing.T, cfg Config, v Validator) (*Pool, *utxo.Set, *noncetracker.Tracker) {
	t.Helper()
	set := utxo.NewSet()
	nonces := noncetracker.New()
	return New(cfg, set, nonces, v), set, nonces
}

type fakeBlockView struct {
	height uint64
	txs    []*txn.Transaction
}

func (f *fakeBlockView) Height() uint64                    { return f.height }
func (f *fakeBlockView) Transactions() []*txn.Transaction { return f.txs }

// seedUTXO creates a single spendable output at (txid, 0) owned by owner,
// the way Admit's step-7 UTXO lock expects to find an RBF candidate's
// declared inputs: Admit locks real outpoints, it does not take the
// validator's word for their existence.
func seedUTXO(t *testing.T, set *utxo.Set, txid, owner string, amount float64) {
	t.Helper()
	coinbase := &txn.Transaction{
		TxID:    txid,
		TxType:  txn.KindCoinbase,
		Outputs: []txn.Output{{Address: owner, Amount: amount}},
	}
	if err := set.ApplyBlock(&fakeBlockView{height: 0, txs: []*txn.Transaction{coinbase}}); err != nil {
		t.Fatalf("seedUTXO: %s", err)
	}
}

func simpleTx(txid, sender string, feeRate float64) *txn.Transaction {
	// Fee is set to feeRate, so the transaction's actual FeeRate() is
	// feeRate divided by its canonical size; the tests depend only on the
	// relative order of the values they pass.
	return &txn.Transaction{
		TxID:      txid,
		Sender:    sender,
		Recipient: sender,
		Fee:       feeRate,
		Amount:    1,
		Timestamp: time.Now().Unix(),
		TxType:    txn.KindNormal,
		Inputs:    []txn.Input{},
		Outputs:   []txn.Output{},
		Metadata:  map[string]interface{}{},
	}
}

func TestAdmitAndDuplicateRejected(t *testing.T) {
	cfg := DefaultConfig()
	p, _, _ := newTestPool(t, cfg, alwaysValid{})

	tx := simpleTx("tx1", "XAIsender", 10)
	if err := p.Admit(tx); err != nil {
		t.Fatalf("Admit: %s", err)
	}
	if !p.Has("tx1") {
		t.Fatal("expected tx1 to be pending")
	}

	if err := p.Admit(tx); err == nil {
		t.Fatal("expected duplicate admission to fail")
	}
}

func TestAdmitRejectsInvalid(t *testing.T) {
	cfg := DefaultConfig()
	p, _, _ := newTestPool(t, cfg, alwaysInvalid{})

	tx := simpleTx("tx1", "XAIsender", 10)
	err := p.Admit(tx)
	if err == nil {
		t.Fatal("expected invalid transaction to be rejected")
	}
	if p.Counters().RejectedInvalid != 1 {
		t.Fatalf("expected RejectedInvalid counter to increment, got %+v", p.Counters())
	}
}

func TestAdmitEnforcesSenderCap(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxPerSender = 1
	p, _, _ := newTestPool(t, cfg, alwaysValid{})

	if err := p.Admit(simpleTx("tx1", "XAIsender", 10)); err != nil {
		t.Fatalf("Admit: %s", err)
	}
	if err := p.Admit(simpleTx("tx2", "XAIsender", 10)); err == nil {
		t.Fatal("expected second transaction from same sender to be rejected")
	}
	if p.Counters().RejectedSenderCap != 1 {
		t.Fatalf("expected RejectedSenderCap to increment, got %+v", p.Counters())
	}
}

func TestAdmitEvictsLowestFeeRateWhenFull(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxSize = 1
	cfg.MaxPerSender = 10
	p, _, _ := newTestPool(t, cfg, alwaysValid{})

	if err := p.Admit(simpleTx("tx1", "XAIsenderA", 1)); err != nil {
		t.Fatalf("Admit: %s", err)
	}
	if err := p.Admit(simpleTx("tx2", "XAIsenderB", 1000)); err != nil {
		t.Fatalf("expected higher fee-rate transaction to evict the lower one: %s", err)
	}
	if p.Has("tx1") {
		t.Fatal("expected tx1 to have been evicted")
	}
	if !p.Has("tx2") {
		t.Fatal("expected tx2 to be admitted")
	}
	if p.Counters().EvictedLowFee != 1 {
		t.Fatalf("expected EvictedLowFee to increment, got %+v", p.Counters())
	}
}

func TestAdmitRejectsWhenFullAndFeeRateNotHigher(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxSize = 1
	p, _, _ := newTestPool(t, cfg, alwaysValid{})

	if err := p.Admit(simpleTx("tx1", "XAIsenderA", 1000)); err != nil {
		t.Fatalf("Admit: %s", err)
	}
	if err := p.Admit(simpleTx("tx2", "XAIsenderB", 1)); err == nil {
		t.Fatal("expected low fee-rate transaction to be rejected when pool is full")
	}
}

func TestSenderBanAfterInvalidThreshold(t *testing.T) {
	cfg := DefaultConfig()
	cfg.InvalidThreshold = 2
	cfg.InvalidWindow = time.Minute
	cfg.InvalidBan = time.Minute
	p, _, _ := newTestPool(t, cfg, alwaysInvalid{})

	p.Admit(simpleTx("tx1", "XAIsender", 10))
	p.Admit(simpleTx("tx2", "XAIsender", 10))

	err := p.Admit(simpleTx("tx3", "XAIsender", 10))
	if err == nil {
		t.Fatal("expected sender to be banned after crossing invalid threshold")
	}
	rejectErr, ok := err.(*RejectError)
	if !ok || rejectErr.Reason != ReasonBanned {
		t.Fatalf("expected ReasonBanned, got %v", err)
	}
}

func TestRBFReplacement(t *testing.T) {
	cfg := DefaultConfig()
	p, set, nonces := newTestPool(t, cfg, alwaysValid{})
	seedUTXO(t, set, "prevtx", "XAIsender", 1000)

	original := simpleTx("tx1", "XAIsender", 10)
	original.RBFEnabled = true
	original.Inputs = []txn.Input{{TxID: "prevtx", Vout: 0}}
	if err := p.Admit(original); err != nil {
		t.Fatalf("Admit original: %s", err)
	}

	replacement := simpleTx("tx2", "XAIsender", 10000)
	replacement.ReplacesTxID = "tx1"
	replacement.Inputs = []txn.Input{{TxID: "prevtx", Vout: 0}}
	if err := p.Admit(replacement); err != nil {
		t.Fatalf("Admit replacement: %s", err)
	}

	if p.Has("tx1") {
		t.Fatal("expected original transaction to be removed after RBF")
	}
	if !p.Has("tx2") {
		t.Fatal("expected replacement transaction to be admitted")
	}
	if locked, by := set.IsLocked(utxo.Outpoint{TxID: "prevtx", Vout: 0}); !locked || by != "tx2" {
		t.Fatalf("expected prevtx:0 to be locked by the replacement, got locked=%v by=%q", locked, by)
	}
	if holder, ok := nonces.ReservedBy("XAIsender", 0); !ok || holder != "tx2" {
		t.Fatalf("expected nonce 0 to be reserved by the replacement, got holder=%q ok=%v", holder, ok)
	}
}

func TestRBFRejectsWithoutFeeIncrease(t *testing.T) {
	cfg := DefaultConfig()
	p, set, _ := newTestPool(t, cfg, alwaysValid{})
	seedUTXO(t, set, "prevtx", "XAIsender", 1000)

	original := simpleTx("tx1", "XAIsender", 100)
	original.RBFEnabled = true
	original.Inputs = []txn.Input{{TxID: "prevtx", Vout: 0}}
	if err := p.Admit(original); err != nil {
		t.Fatalf("Admit original: %s", err)
	}

	replacement := simpleTx("tx2", "XAIsender", 10)
	replacement.ReplacesTxID = "tx1"
	replacement.Inputs = []txn.Input{{TxID: "prevtx", Vout: 0}}
	if err := p.Admit(replacement); err == nil {
		t.Fatal("expected RBF with lower fee-rate to be rejected")
	}
	if !p.Has("tx1") {
		t.Fatal("expected original to remain admitted after rejected RBF")
	}
}

func TestAdmitRejectsDuplicatePendingNonce(t *testing.T) {
	cfg := DefaultConfig()
	set := utxo.NewSet()
	nonces := noncetracker.New()
	p := New(cfg, set, nonces, nonceAwareValidator{nonces: nonces})
	seedUTXO(t, set, "prevtxA", "XAIsender", 1000)
	seedUTXO(t, set, "prevtxB", "XAIsender", 1000)

	tx1 := simpleTx("tx1", "XAIsender", 10)
	tx1.Inputs = []txn.Input{{TxID: "prevtxA", Vout: 0}}
	tx1.Nonce = 0
	if err := p.Admit(tx1); err != nil {
		t.Fatalf("Admit tx1: %s", err)
	}

	tx2 := simpleTx("tx2", "XAIsender", 10)
	tx2.Inputs = []txn.Input{{TxID: "prevtxB", Vout: 0}}
	tx2.Nonce = 0
	if err := p.Admit(tx2); err == nil {
		t.Fatal("expected a second distinct-input transaction reusing nonce 0 to be rejected")
	}
	if p.Has("tx2") {
		t.Fatal("expected tx2 not to be admitted")
	}
	if holder, ok := nonces.ReservedBy("XAIsender", 0); !ok || holder != "tx1" {
		t.Fatalf("expected nonce 0 to remain reserved by tx1, got holder=%q ok=%v", holder, ok)
	}
}

func TestPruneExpired(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxAge = 10 * time.Millisecond
	p, _, _ := newTestPool(t, cfg, alwaysValid{})

	if err := p.Admit(simpleTx("tx1", "XAIsender", 10)); err != nil {
		t.Fatalf("Admit: %s", err)
	}
	p.now = func() time.Time { return time.Now().Add(time.Hour) }

	removed := p.PruneExpired()
	if removed != 1 {
		t.Fatalf("expected 1 transaction pruned, got %d", removed)
	}
	if p.Has("tx1") {
		t.Fatal("expected tx1 to be removed after expiry")
	}
}

func TestOrderRespectsFeeRateThenNonceOrder(t *testing.T) {
	mk := func(txid, sender string, feeRate float64, nonce uint64, added time.Time) *TxDesc {
		tx := simpleTx(txid, sender, feeRate)
		tx.Nonce = nonce
		return &TxDesc{Tx: tx, Added: added, FeeRate: feeRate}
	}

	now := time.Now()
	descs := []*TxDesc{
		mk("a-high-nonce1", "XAIa", 5, 1, now),
		mk("a-low-nonce0", "XAIa", 100, 0, now),
		mk("b", "XAIb", 50, 0, now),
	}

	ordered := Order(descs, 0)
	if !IsNonceOrdered(ordered) {
		t.Fatal("expected ordering to respect per-sender nonce order")
	}

	// XAIa's nonce 0 transaction must come before its nonce 1 transaction
	// despite the nonce-1 transaction's lower standalone priority slot.
	var idx0, idx1 int
	for i, d := range ordered {
		if d.Tx.TxID == "a-low-nonce0" {
			idx0 = i
		}
		if d.Tx.TxID == "a-high-nonce1" {
			idx1 = i
		}
	}
	if idx0 >= idx1 {
		t.Fatalf("expected nonce 0 transaction before nonce 1 transaction, got order %v", ordered)
	}
}

func TestOrderTrimsToMaxCount(t *testing.T) {
	descs := []*TxDesc{
		{Tx: simpleTx("tx1", "XAIa", 10), FeeRate: 10, Added: time.Now()},
		{Tx: simpleTx("tx2", "XAIb", 20), FeeRate: 20, Added: time.Now()},
		{Tx: simpleTx("tx3", "XAIc", 30), FeeRate: 30, Added: time.Now()},
	}
	ordered := Order(descs, 2)
	if len(ordered) != 2 {
		t.Fatalf("expected 2 transactions after trimming, got %d", len(ordered))
	}
}
