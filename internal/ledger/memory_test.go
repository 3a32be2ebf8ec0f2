package ledger

import (
	"math/big"
	"testing"
)

func TestMemoryLedgerTransfer(t *testing.T) {
	l := NewMemoryLedger()
	l.Mint("token", "alice", big.NewInt(100))

	if err := l.Transfer("token", "alice", "bob", big.NewInt(40)); err != nil {
		t.Fatalf("transfer failed: %v", err)
	}

	aliceBal, _ := l.BalanceOf("token", "alice")
	bobBal, _ := l.BalanceOf("token", "bob")
	if aliceBal.Int64() != 60 || bobBal.Int64() != 40 {
		t.Fatalf("balances alice=%s bob=%s, want 60/40", aliceBal, bobBal)
	}
}

func TestMemoryLedgerInsufficient(t *testing.T) {
	l := NewMemoryLedger()
	l.Mint("token", "alice", big.NewInt(10))

	if err := l.Transfer("token", "alice", "bob", big.NewInt(11)); err == nil {
		t.Fatalf("expected insufficient balance error")
	}

	aliceBal, _ := l.BalanceOf("token", "alice")
	if aliceBal.Int64() != 10 {
		t.Fatalf("failed transfer mutated balance: %s", aliceBal)
	}
}

func TestMemoryLedgerRejectsNonPositive(t *testing.T) {
	l := NewMemoryLedger()
	l.Mint("token", "alice", big.NewInt(10))

	if err := l.Transfer("token", "alice", "bob", big.NewInt(0)); err == nil {
		t.Fatalf("expected error for zero amount")
	}
	if err := l.Transfer("token", "alice", "bob", big.NewInt(-5)); err == nil {
		t.Fatalf("expected error for negative amount")
	}
}

func TestMemoryLedgerUnknownAccount(t *testing.T) {
	l := NewMemoryLedger()
	bal, err := l.BalanceOf("token", "nobody")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if bal.Sign() != 0 {
		t.Fatalf("unknown account balance = %s, want 0", bal)
	}
}
