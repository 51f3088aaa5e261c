package validator

import (
	"testing"
	"time"

	"github.com/xai-network/xaid/crypto"
	"github.com/xai-network/xaid/noncetracker"
	"github.com/xai-network/xaid/txn"
	"github.com/xai-network/xaid/utxo"
)

type harness struct {
	v       *Validator
	utxoSet *utxo.Set
	nonces  *noncetracker.Tracker
	priv    *crypto.PrivateKey
	sender  string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	priv, err := crypto.GeneratePrivateKey()
	if err != nil {
		t.Fatalf("GeneratePrivateKey: %s", err)
	}
	sender := crypto.DeriveAddress(priv.PublicKey(), crypto.Mainnet)

	utxoSet := utxo.NewSet()
	nonces := noncetracker.New()
	v := New(DefaultConfig(), utxoSet, nonces, "mainnet")

	return &harness{v: v, utxoSet: utxoSet, nonces: nonces, priv: priv, sender: sender}
}

func (h *harness) fundSender(t *testing.T, txid string, amount float64) {
	t.Helper()
	block := &fakeBlock{height: 1, txs: []*txn.Transaction{
		{TxID: txid, TxType: txn.KindCoinbase, Outputs: []txn.Output{{Address: h.sender, Amount: amount}}},
	}}
	if err := h.utxoSet.ApplyBlock(block); err != nil {
		t.Fatalf("ApplyBlock: %s", err)
	}
}

type fakeBlock struct {
	height uint64
	txs    []*txn.Transaction
}

func (b *fakeBlock) Height() uint64                  { return b.height }
func (b *fakeBlock) Transactions() []*txn.Transaction { return b.txs }

func (h *harness) signedSpend(t *testing.T, inputTxID string, vout uint32, amount, fee float64, nonce uint64) *txn.Transaction {
	t.Helper()
	tx := &txn.Transaction{
		Sender:    h.sender,
		Recipient: h.sender,
		Amount:    amount,
		Fee:       fee,
		Timestamp: time.Now().Unix(),
		Nonce:     nonce,
		TxType:    txn.KindNormal,
		Inputs:    []txn.Input{{TxID: inputTxID, Vout: vout}},
		Outputs:   []txn.Output{{Address: h.sender, Amount: amount}},
		Metadata:  map[string]interface{}{},
	}
	if err := tx.Sign(h.priv, "mainnet"); err != nil {
		t.Fatalf("Sign: %s", err)
	}
	return tx
}

func TestValidateAcceptsWellFormedSpend(t *testing.T) {
	h := newHarness(t)
	h.fundSender(t, "cb1", 100)

	tx := h.signedSpend(t, "cb1", 0, 90, 1, 0)
	if err := h.v.Validate(tx); err != nil {
		t.Fatalf("expected valid transaction to pass, got %s", err)
	}
}

func TestValidateRejectsDoubleSpend(t *testing.T) {
	h := newHarness(t)
	tx := h.signedSpend(t, "nonexistent", 0, 10, 1, 0)
	err := h.v.Validate(tx)
	if err == nil {
		t.Fatal("expected validation to fail for unresolved input")
	}
	if ve, ok := err.(*Error); !ok || ve.Code != CodeDoubleSpend {
		t.Fatalf("expected CodeDoubleSpend, got %v", err)
	}
}

func TestValidateRejectsInsufficientFunds(t *testing.T) {
	h := newHarness(t)
	h.fundSender(t, "cb1", 10)

	tx := h.signedSpend(t, "cb1", 0, 90, 1, 0)
	err := h.v.Validate(tx)
	if err == nil {
		t.Fatal("expected validation to fail for insufficient funds")
	}
	if ve, ok := err.(*Error); !ok || ve.Code != CodeInsufficientFunds {
		t.Fatalf("expected CodeInsufficientFunds, got %v", err)
	}
}

func TestValidateRejectsTamperedSignature(t *testing.T) {
	h := newHarness(t)
	h.fundSender(t, "cb1", 100)

	tx := h.signedSpend(t, "cb1", 0, 90, 1, 0)
	tx.Amount = 1
	err := h.v.Validate(tx)
	if err == nil {
		t.Fatal("expected tampered transaction to fail validation")
	}
}

func TestValidateRejectsNonceTooFarAhead(t *testing.T) {
	h := newHarness(t)
	h.fundSender(t, "cb1", 100)

	tx := h.signedSpend(t, "cb1", 0, 10, 1, 5)
	err := h.v.Validate(tx)
	if err == nil {
		t.Fatal("expected validation to fail for nonce ahead of next expected")
	}
	if ve, ok := err.(*Error); !ok || ve.Code != CodeBadNonce {
		t.Fatalf("expected CodeBadNonce, got %v", err)
	}
}

func TestValidateInBlockAcceptsIntraBlockChaining(t *testing.T) {
	h := newHarness(t)

	// cb1 is not yet applied to the confirmed UTXO set; it only exists as
	// an earlier transaction in the same candidate block.
	cb := &txn.Transaction{TxID: "cb1", TxType: txn.KindCoinbase, Outputs: []txn.Output{{Address: h.sender, Amount: 50}}}
	pending := map[utxo.Outpoint]*utxo.Entry{
		{TxID: "cb1", Vout: 0}: {Amount: 50, Owner: h.sender},
	}

	spend := h.signedSpend(t, "cb1", 0, 40, 1, 0)
	if err := h.v.ValidateInBlock(spend, pending); err != nil {
		t.Fatalf("expected intra-block chained spend to validate, got %s", err)
	}
	_ = cb
}

func TestValidateRejectsDuplicatePendingNonce(t *testing.T) {
	h := newHarness(t)
	h.fundSender(t, "cb1", 100)
	h.fundSender(t, "cb2", 100)

	first := h.signedSpend(t, "cb1", 0, 10, 1, 0)
	if err := h.v.Validate(first); err != nil {
		t.Fatalf("expected first transaction to validate, got %s", err)
	}
	h.nonces.Reserve(h.sender, 0, first.TxID)

	second := h.signedSpend(t, "cb2", 0, 10, 1, 0)
	err := h.v.Validate(second)
	if err == nil {
		t.Fatal("expected a second distinct-input transaction reusing nonce 0 to be rejected")
	}
	if ve, ok := err.(*Error); !ok || ve.Code != CodeBadNonce {
		t.Fatalf("expected CodeBadNonce, got %v", err)
	}
}

func TestValidateAllowsRBFReplacementToReuseNonce(t *testing.T) {
	h := newHarness(t)
	h.fundSender(t, "cb1", 100)

	original := h.signedSpend(t, "cb1", 0, 10, 1, 0)
	if err := h.v.Validate(original); err != nil {
		t.Fatalf("expected original transaction to validate, got %s", err)
	}
	h.nonces.Reserve(h.sender, 0, original.TxID)

	replacement := h.signedSpend(t, "cb1", 0, 10, 5, 0)
	replacement.ReplacesTxID = original.TxID
	if err := replacement.Sign(h.priv, "mainnet"); err != nil {
		t.Fatalf("Sign: %s", err)
	}
	if err := h.v.Validate(replacement); err != nil {
		t.Fatalf("expected RBF replacement to validate despite reusing nonce 0, got %s", err)
	}
}

func TestValidateCoinbaseSkipsUTXOAndSignature(t *testing.T) {
	h := newHarness(t)
	cb := &txn.Transaction{TxID: "placeholder", TxType: txn.KindCoinbase, Sender: crypto.CoinbaseAddress, Timestamp: time.Now().Unix(), Outputs: []txn.Output{{Address: h.sender, Amount: 60}}}
	if err := h.v.Validate(cb); err != nil {
		t.Fatalf("expected coinbase to validate, got %s", err)
	}
}
