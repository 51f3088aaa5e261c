package utxo

import (
	"testing"

	"github.com/xai-network/xaid/txn"
)

type fakeBlock struct {
	height uint64
	txs    []*txn.Transaction
}

func (b *fakeBlock) Height() uint64                  { return b.height }
func (b *fakeBlock) Transactions() []*txn.Transaction { return b.txs }

func coinbaseTx(txid string, outputs []txn.Output) *txn.Transaction {
	tx := txn.NewCoinbase(1, outputs, 1700000000)
	tx.TxID = txid
	return tx
}

func TestApplyBlockThenGetUnspentOutput(t *testing.T) {
	s := NewSet()
	block := &fakeBlock{
		height: 1,
		txs: []*txn.Transaction{
			coinbaseTx("cb1", []txn.Output{{Address: "XAIaaaa", Amount: 50}}),
		},
	}

	if err := s.ApplyBlock(block); err != nil {
		t.Fatalf("ApplyBlock: %s", err)
	}

	entry, err := s.GetUnspentOutput(Outpoint{TxID: "cb1", Vout: 0})
	if err != nil {
		t.Fatalf("GetUnspentOutput: %s", err)
	}
	if entry.Amount != 50 || entry.Owner != "XAIaaaa" {
		t.Fatalf("unexpected entry: %+v", entry)
	}

	utxos := s.GetUTXOsForAddress("XAIaaaa")
	if len(utxos) != 1 {
		t.Fatalf("expected 1 utxo for address, got %d", len(utxos))
	}

	if s.Balance("XAIaaaa") != 50 {
		t.Fatalf("expected balance 50, got %v", s.Balance("XAIaaaa"))
	}
}

func TestApplyBlockSpendsInputsAndChains(t *testing.T) {
	s := NewSet()

	cb := coinbaseTx("cb1", []txn.Output{{Address: "XAIsender", Amount: 50}})
	spend := &txn.Transaction{
		TxID:    "tx1",
		TxType:  txn.KindNormal,
		Inputs:  []txn.Input{{TxID: "cb1", Vout: 0}},
		Outputs: []txn.Output{{Address: "XAIrecipient", Amount: 50}},
	}
	block := &fakeBlock{height: 2, txs: []*txn.Transaction{cb, spend}}

	if err := s.ApplyBlock(block); err != nil {
		t.Fatalf("ApplyBlock: %s", err)
	}

	if _, err := s.GetUnspentOutput(Outpoint{TxID: "cb1", Vout: 0}); err == nil {
		t.Fatal("expected coinbase output to be spent")
	}
	entry, err := s.GetUnspentOutput(Outpoint{TxID: "tx1", Vout: 0})
	if err != nil {
		t.Fatalf("GetUnspentOutput: %s", err)
	}
	if entry.Owner != "XAIrecipient" {
		t.Fatalf("unexpected owner: %s", entry.Owner)
	}
}

func TestApplyBlockRollsBackOnMissingInput(t *testing.T) {
	s := NewSet()
	cb := coinbaseTx("cb1", []txn.Output{{Address: "XAIsender", Amount: 50}})
	badSpend := &txn.Transaction{
		TxID:    "tx1",
		TxType:  txn.KindNormal,
		Inputs:  []txn.Input{{TxID: "does-not-exist", Vout: 0}},
		Outputs: []txn.Output{{Address: "XAIrecipient", Amount: 50}},
	}
	block := &fakeBlock{height: 1, txs: []*txn.Transaction{cb, badSpend}}

	if err := s.ApplyBlock(block); err == nil {
		t.Fatal("expected ApplyBlock to fail on missing input")
	}

	// The coinbase output from the same (failed) block must have been
	// rolled back too, since ApplyBlock is atomic per block.
	if _, err := s.GetUnspentOutput(Outpoint{TxID: "cb1", Vout: 0}); err == nil {
		t.Fatal("expected rollback to remove the coinbase output created earlier in the same failed block")
	}
}

func TestLockAndUnlock(t *testing.T) {
	s := NewSet()
	block := &fakeBlock{height: 1, txs: []*txn.Transaction{
		coinbaseTx("cb1", []txn.Output{{Address: "XAIaaaa", Amount: 50}}),
	}}
	if err := s.ApplyBlock(block); err != nil {
		t.Fatalf("ApplyBlock: %s", err)
	}

	op := Outpoint{TxID: "cb1", Vout: 0}
	if err := s.Lock([]Outpoint{op}, "tx-pending-1"); err != nil {
		t.Fatalf("Lock: %s", err)
	}

	if err := s.Lock([]Outpoint{op}, "tx-pending-2"); err == nil {
		t.Fatal("expected conflicting lock to fail")
	}

	s.Unlock([]Outpoint{op}, "tx-pending-1")
	locked, _ := s.IsLocked(op)
	if locked {
		t.Fatal("expected outpoint to be unlocked")
	}

	if err := s.Lock([]Outpoint{op}, "tx-pending-2"); err != nil {
		t.Fatalf("Lock after unlock: %s", err)
	}
}

func TestRevertBlock(t *testing.T) {
	s := NewSet()
	cb := coinbaseTx("cb1", []txn.Output{{Address: "XAIsender", Amount: 50}})
	block1 := &fakeBlock{height: 1, txs: []*txn.Transaction{cb}}
	if err := s.ApplyBlock(block1); err != nil {
		t.Fatalf("ApplyBlock: %s", err)
	}

	spend := &txn.Transaction{
		TxID:    "tx1",
		TxType:  txn.KindNormal,
		Inputs:  []txn.Input{{TxID: "cb1", Vout: 0}},
		Outputs: []txn.Output{{Address: "XAIrecipient", Amount: 50}},
	}
	block2 := &fakeBlock{height: 2, txs: []*txn.Transaction{spend}}
	if err := s.ApplyBlock(block2); err != nil {
		t.Fatalf("ApplyBlock: %s", err)
	}

	prior := map[Outpoint]*Entry{
		{TxID: "cb1", Vout: 0}: {Amount: 50, Owner: "XAIsender", Height: 1, IsCoinbase: true},
	}
	if err := s.RevertBlock(block2, prior); err != nil {
		t.Fatalf("RevertBlock: %s", err)
	}

	if _, err := s.GetUnspentOutput(Outpoint{TxID: "tx1", Vout: 0}); err == nil {
		t.Fatal("expected reverted block's output to be removed")
	}
	entry, err := s.GetUnspentOutput(Outpoint{TxID: "cb1", Vout: 0})
	if err != nil {
		t.Fatalf("expected spent input to be restored: %s", err)
	}
	if entry.Owner != "XAIsender" {
		t.Fatalf("unexpected restored owner: %s", entry.Owner)
	}
}
