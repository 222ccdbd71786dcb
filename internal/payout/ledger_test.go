package payout_test

import (
	"math/big"
	"testing"

	"github.com/google/uuid"

	"StreetBook/internal/payout"
)

func TestCreditAccumulatesAndTracksTotal(t *testing.T) {
	l := payout.NewLedger()
	acct := uuid.New()

	l.Credit(acct, big.NewInt(100))
	l.Credit(acct, big.NewInt(50))
	l.CreditCreatorFee(acct, big.NewInt(7))

	if got := l.Balance(acct); got.Cmp(big.NewInt(150)) != 0 {
		t.Fatalf("balance = %s, want 150", got)
	}
	if got := l.CreatorFees(acct); got.Cmp(big.NewInt(7)) != 0 {
		t.Fatalf("creator fees = %s, want 7", got)
	}
	if got := l.OutstandingTotal(); got.Cmp(big.NewInt(150)) != 0 {
		t.Fatalf("outstanding total = %s, want 150", got)
	}
	if got := l.OutstandingCreatorFeeTotal(); got.Cmp(big.NewInt(7)) != 0 {
		t.Fatalf("outstanding fee total = %s, want 7", got)
	}
}

func TestCreditIgnoresNonPositive(t *testing.T) {
	l := payout.NewLedger()
	acct := uuid.New()
	l.Credit(acct, big.NewInt(0))
	l.Credit(acct, big.NewInt(-5))
	l.Credit(acct, nil)
	if got := l.OutstandingTotal(); got.Sign() != 0 {
		t.Fatalf("outstanding total = %s, want 0", got)
	}
}

func TestDrainZeroesAtomically(t *testing.T) {
	l := payout.NewLedger()
	acct := uuid.New()
	l.Credit(acct, big.NewInt(200))
	l.CreditCreatorFee(acct, big.NewInt(30))

	bal, fees := l.Drain(acct)
	if bal.Cmp(big.NewInt(200)) != 0 || fees.Cmp(big.NewInt(30)) != 0 {
		t.Fatalf("drain = (%s, %s), want (200, 30)", bal, fees)
	}
	if l.OutstandingTotal().Sign() != 0 || l.OutstandingCreatorFeeTotal().Sign() != 0 {
		t.Fatal("totals not zeroed after drain")
	}

	// second drain finds nothing
	bal, fees = l.Drain(acct)
	if bal.Sign() != 0 || fees.Sign() != 0 {
		t.Fatalf("second drain = (%s, %s), want zeros", bal, fees)
	}
}

func TestRestoreAfterFailedPayment(t *testing.T) {
	l := payout.NewLedger()
	acct := uuid.New()
	l.Credit(acct, big.NewInt(500))
	l.CreditCreatorFee(acct, big.NewInt(25))

	bal, fees := l.Drain(acct)
	l.Restore(acct, bal, fees)

	if got := l.Balance(acct); got.Cmp(big.NewInt(500)) != 0 {
		t.Fatalf("restored balance = %s, want 500", got)
	}
	if got := l.CreatorFees(acct); got.Cmp(big.NewInt(25)) != 0 {
		t.Fatalf("restored fees = %s, want 25", got)
	}
	if got := l.OutstandingTotal(); got.Cmp(big.NewInt(500)) != 0 {
		t.Fatalf("outstanding total = %s, want 500", got)
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	l := payout.NewLedger()
	a, b := uuid.New(), uuid.New()
	l.Credit(a, big.NewInt(10))
	l.Credit(b, big.NewInt(20))
	l.CreditCreatorFee(b, big.NewInt(3))

	balances, fees := l.Snapshot()

	restored := payout.NewLedger()
	restored.RestoreSnapshot(balances, fees)

	if got := restored.Balance(b); got.Cmp(big.NewInt(20)) != 0 {
		t.Fatalf("restored balance = %s, want 20", got)
	}
	if got := restored.OutstandingTotal(); got.Cmp(big.NewInt(30)) != 0 {
		t.Fatalf("restored outstanding = %s, want 30", got)
	}
	if got := restored.OutstandingCreatorFeeTotal(); got.Cmp(big.NewInt(3)) != 0 {
		t.Fatalf("restored fee total = %s, want 3", got)
	}
}
