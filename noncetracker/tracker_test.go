package noncetracker

import "testing"

func TestReserveAdvancesNextNonce(t *testing.T) {
	tr := New()
	addr := "XAIaaaa"

	if got := tr.GetNextNonce(addr); got != 0 {
		t.Fatalf("expected initial next nonce 0, got %d", got)
	}

	tr.Reserve(addr, 0, "tx1")
	if got := tr.GetNextNonce(addr); got != 1 {
		t.Fatalf("expected next nonce 1 after one reservation, got %d", got)
	}

	tr.Reserve(addr, 1, "tx2")
	if got := tr.GetNextNonce(addr); got != 2 {
		t.Fatalf("expected next nonce 2 after two reservations, got %d", got)
	}
}

func TestReservedByReportsHolder(t *testing.T) {
	tr := New()
	addr := "XAIaaaa"

	if _, ok := tr.ReservedBy(addr, 0); ok {
		t.Fatal("expected no holder before any reservation")
	}

	tr.Reserve(addr, 0, "tx1")
	holder, ok := tr.ReservedBy(addr, 0)
	if !ok || holder != "tx1" {
		t.Fatalf("ReservedBy(0) = %q, %v; want tx1, true", holder, ok)
	}
}

func TestReleaseUndoesReservation(t *testing.T) {
	tr := New()
	addr := "XAIaaaa"

	tr.Reserve(addr, 0, "tx1")
	tr.Reserve(addr, 1, "tx2")
	tr.Release(addr, 1, "tx2")
	if got := tr.GetNextNonce(addr); got != 1 {
		t.Fatalf("expected next nonce 1 after release, got %d", got)
	}
	if _, ok := tr.ReservedBy(addr, 1); ok {
		t.Fatal("expected nonce 1 reservation to be cleared")
	}
}

func TestReleaseIsANoOpForTheWrongHolder(t *testing.T) {
	tr := New()
	addr := "XAIaaaa"

	tr.Reserve(addr, 0, "tx1")
	tr.Release(addr, 0, "some-other-txid")
	if holder, ok := tr.ReservedBy(addr, 0); !ok || holder != "tx1" {
		t.Fatalf("expected tx1's reservation to survive a release by a different txid, got %q, %v", holder, ok)
	}
}

func TestReleaseOfUnknownNonceIsANoOp(t *testing.T) {
	tr := New()
	addr := "XAIaaaa"

	tr.Release(addr, 0, "tx1")
	if got := tr.GetNextNonce(addr); got != 0 {
		t.Fatalf("expected next nonce to stay at 0, got %d", got)
	}
}

func TestCommitAdvancesConfirmedAndClearsReservation(t *testing.T) {
	tr := New()
	addr := "XAIaaaa"

	tr.Reserve(addr, 0, "tx1") // nonce 0 reserved
	tr.Commit(addr, 0)

	if got := tr.GetNonce(addr); got != 1 {
		t.Fatalf("expected confirmed nonce 1, got %d", got)
	}
	if got := tr.GetNextNonce(addr); got != 1 {
		t.Fatalf("expected next nonce 1 (reservation cleared), got %d", got)
	}
	if _, ok := tr.ReservedBy(addr, 0); ok {
		t.Fatal("expected nonce 0 reservation to be cleared by Commit")
	}
}

func TestCommitIsMonotonic(t *testing.T) {
	tr := New()
	addr := "XAIaaaa"

	tr.Commit(addr, 5)
	if got := tr.GetNonce(addr); got != 6 {
		t.Fatalf("expected confirmed nonce 6, got %d", got)
	}

	tr.Commit(addr, 2) // stale commit must not move confirmed backwards
	if got := tr.GetNonce(addr); got != 6 {
		t.Fatalf("expected confirmed nonce to remain 6, got %d", got)
	}
}

func TestRevertMovesConfirmedBackwards(t *testing.T) {
	tr := New()
	addr := "XAIaaaa"

	tr.Commit(addr, 5)
	tr.Revert(addr, 2)
	if got := tr.GetNonce(addr); got != 2 {
		t.Fatalf("expected confirmed nonce 2 after revert, got %d", got)
	}
}

func TestIndependentAddresses(t *testing.T) {
	tr := New()
	tr.Reserve("XAIaaaa", 0, "tx1")
	if got := tr.GetNextNonce("XAIbbbb"); got != 0 {
		t.Fatalf("expected unrelated address to be unaffected, got %d", got)
	}
}
