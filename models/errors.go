package models

import (
	"errors"
	"fmt"
)

// Business-rule failures are typed so the API layer can render a precise
// message (entity id, attempted transition, current state) and pick a status
// code. All of them are expected, recoverable conditions except
// ConsistencyViolationError, which signals a reservation/release mismatch and
// must fail the operation closed.

var (
	ErrAlreadyArchived = errors.New("entity is already archived")
	ErrNotArchived     = errors.New("entity is not archived")
)

type InsufficientStockError struct {
	StockUnitId int
	Requested   int
	Available   int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for unit %d: only %d of requested %d available",
		e.StockUnitId, e.Available, e.Requested)
}

type CapacityViolationError struct {
	StockUnitId int
	NewTotal    int
	Reserved    int
}

func (e *CapacityViolationError) Error() string {
	return fmt.Sprintf("capacity violation for unit %d: new total %d is below the %d units currently reserved",
		e.StockUnitId, e.NewTotal, e.Reserved)
}

type InvalidStateTransitionError struct {
	TransactionId int
	Current       BorrowStatus
	Attempted     string
}

func (e *InvalidStateTransitionError) Error() string {
	return fmt.Sprintf("invalid state transition %q for transaction %d: current status is %q",
		e.Attempted, e.TransactionId, e.Current)
}

type DuplicateVerificationError struct {
	TransactionId  int
	VerificationId int
}

func (e *DuplicateVerificationError) Error() string {
	return fmt.Sprintf("transaction %d already has open return verification %d",
		e.TransactionId, e.VerificationId)
}

type VerificationResolvedError struct {
	VerificationId int
	Status         VerificationStatus
}

func (e *VerificationResolvedError) Error() string {
	return fmt.Sprintf("return verification %d is already resolved (status %q)",
		e.VerificationId, e.Status)
}

type ArchiveBlockedError struct {
	EntityType string
	EntityId   int
	OpenLoans  int64
}

func (e *ArchiveBlockedError) Error() string {
	return fmt.Sprintf("cannot archive %s %d: %d active borrow transaction(s) outstanding",
		e.EntityType, e.EntityId, e.OpenLoans)
}

type AlreadyInspectedError struct {
	ReturnRecordId int
	Status         InspectionStatus
}

func (e *AlreadyInspectedError) Error() string {
	return fmt.Sprintf("return record %d was already inspected (status %q)",
		e.ReturnRecordId, e.Status)
}

// ConsistencyViolationError is a defect signal, not a user error. The
// triggering operation must roll back and the violation must be logged at high
// severity so an operator is alerted.
type ConsistencyViolationError struct {
	StockUnitId int
	Op          string
	Available   int
	Total       int
	Delta       int
}

func (e *ConsistencyViolationError) Error() string {
	return fmt.Sprintf("consistency violation on stock unit %d during %s: available=%d total=%d delta=%d",
		e.StockUnitId, e.Op, e.Available, e.Total, e.Delta)
}
