package models

import (
	"strings"
	"testing"
)

// Error strings are part of the API surface: clients display them verbatim, so
// each must carry the ids and quantities needed to act on it.
func TestErrorMessagesCarryDetail(t *testing.T) {
	cases := []struct {
		err  error
		want []string
	}{
		{
			&InsufficientStockError{StockUnitId: 3, Requested: 7, Available: 6},
			[]string{"unit 3", "only 6", "requested 7"},
		},
		{
			&CapacityViolationError{StockUnitId: 3, NewTotal: 2, Reserved: 4},
			[]string{"unit 3", "new total 2", "4 units"},
		},
		{
			&InvalidStateTransitionError{TransactionId: 9, Current: BorrowStatusReturned, Attempted: "borrowed"},
			[]string{"transaction 9", `"borrowed"`, `"returned"`},
		},
		{
			&DuplicateVerificationError{TransactionId: 9, VerificationId: 4},
			[]string{"transaction 9", "verification 4"},
		},
		{
			&VerificationResolvedError{VerificationId: 4, Status: VerificationStatusVerified},
			[]string{"verification 4", "already resolved", `"verified"`},
		},
		{
			&ArchiveBlockedError{EntityType: "StockUnit", EntityId: 3, OpenLoans: 2},
			[]string{"StockUnit 3", "2 active"},
		},
		{
			&AlreadyInspectedError{ReturnRecordId: 5, Status: InspectionStatusGood},
			[]string{"record 5", "good_condition"},
		},
		{
			&ConsistencyViolationError{StockUnitId: 3, Op: "release", Available: 10, Total: 10, Delta: 1},
			[]string{"unit 3", "release", "available=10", "total=10", "delta=1"},
		},
	}

	for _, tc := range cases {
		msg := tc.err.Error()
		for _, fragment := range tc.want {
			if !strings.Contains(msg, fragment) {
				t.Errorf("%T message %q missing %q", tc.err, msg, fragment)
			}
		}
	}
}
