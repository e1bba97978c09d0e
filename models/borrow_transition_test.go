package models

import (
	"errors"
	"testing"
)

func TestBorrowTransitionTable(t *testing.T) {
	allowed := []struct{ from, to BorrowStatus }{
		{BorrowStatusPending, BorrowStatusBorrowed},
		{BorrowStatusPending, BorrowStatusRejected},
		{BorrowStatusBorrowed, BorrowStatusOverdue},
		{BorrowStatusBorrowed, BorrowStatusPendingReturnVerification},
		{BorrowStatusBorrowed, BorrowStatusLost},
		{BorrowStatusOverdue, BorrowStatusPendingReturnVerification},
		{BorrowStatusOverdue, BorrowStatusLost},
		{BorrowStatusPendingReturnVerification, BorrowStatusReturned},
		{BorrowStatusPendingReturnVerification, BorrowStatusBorrowed},
		{BorrowStatusPendingReturnVerification, BorrowStatusOverdue},
	}
	allowedSet := map[[2]BorrowStatus]bool{}
	for _, tr := range allowed {
		allowedSet[[2]BorrowStatus{tr.from, tr.to}] = true
		if !CanTransitionBorrow(tr.from, tr.to) {
			t.Errorf("%s -> %s should be allowed", tr.from, tr.to)
		}
	}

	// Everything off the table is structurally impossible.
	all := []BorrowStatus{
		BorrowStatusPending, BorrowStatusBorrowed, BorrowStatusOverdue,
		BorrowStatusPendingReturnVerification, BorrowStatusReturned,
		BorrowStatusRejected, BorrowStatusLost,
	}
	for _, from := range all {
		for _, to := range all {
			if allowedSet[[2]BorrowStatus{from, to}] {
				continue
			}
			if CanTransitionBorrow(from, to) {
				t.Errorf("%s -> %s should be rejected", from, to)
			}
		}
	}
}

func TestTerminalStatesHaveNoExits(t *testing.T) {
	for _, status := range []BorrowStatus{BorrowStatusReturned, BorrowStatusRejected, BorrowStatusLost} {
		txn := BorrowTransaction{ID: 7, Status: status}
		if !txn.IsTerminal() {
			t.Errorf("%s should be terminal", status)
		}
		for _, to := range []BorrowStatus{
			BorrowStatusPending, BorrowStatusBorrowed, BorrowStatusOverdue,
			BorrowStatusPendingReturnVerification, BorrowStatusReturned,
			BorrowStatusRejected, BorrowStatusLost,
		} {
			if CanTransitionBorrow(status, to) {
				t.Errorf("terminal %s allows exit to %s", status, to)
			}
		}
	}
}

func TestEnsureTransitionReportsAttempt(t *testing.T) {
	txn := BorrowTransaction{ID: 42, Status: BorrowStatusReturned}

	err := txn.EnsureTransition(BorrowStatusBorrowed)
	var invalid *InvalidStateTransitionError
	if !errors.As(err, &invalid) {
		t.Fatalf("got %v, want InvalidStateTransitionError", err)
	}
	if invalid.TransactionId != 42 {
		t.Errorf("transaction id = %d, want 42", invalid.TransactionId)
	}
	if invalid.Current != BorrowStatusReturned {
		t.Errorf("current = %q, want %q", invalid.Current, BorrowStatusReturned)
	}
	if invalid.Attempted != string(BorrowStatusBorrowed) {
		t.Errorf("attempted = %q, want %q", invalid.Attempted, BorrowStatusBorrowed)
	}
	// A failed transition must leave the status untouched.
	if txn.Status != BorrowStatusReturned {
		t.Errorf("status mutated on failed transition: %q", txn.Status)
	}
}

func TestEnsureTransitionMovesStatus(t *testing.T) {
	txn := BorrowTransaction{ID: 1, Status: BorrowStatusPending}
	if err := txn.EnsureTransition(BorrowStatusBorrowed); err != nil {
		t.Fatalf("pending -> borrowed: %v", err)
	}
	if txn.Status != BorrowStatusBorrowed {
		t.Fatalf("status = %q, want %q", txn.Status, BorrowStatusBorrowed)
	}

	// Approving twice is an invalid transition, not an idempotent no-op.
	if err := txn.EnsureTransition(BorrowStatusBorrowed); err == nil {
		t.Fatal("borrowed -> borrowed accepted")
	}
}

func TestBorrowStatusValid(t *testing.T) {
	if !BorrowStatusOverdue.Valid() {
		t.Error("overdue should be valid")
	}
	if BorrowStatus("checked_out").Valid() {
		t.Error("unknown status should be invalid")
	}
}
