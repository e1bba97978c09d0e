package models

import "errors"

type StockKind string

const (
	StockKindUsable     StockKind = "usable"
	StockKindConsumable StockKind = "consumable"
)

// Normalize validates a stock kind. The two built-in kinds are first-class;
// any other non-empty label is accepted as an operator-defined kind.
func (k StockKind) Normalize() (StockKind, error) {
	if k == "" {
		return "", errors.New("stock kind is required")
	}
	return k, nil
}

type StockStatus string

const (
	StockStatusAvailable  StockStatus = "available"
	StockStatusLowStock   StockStatus = "low_stock"
	StockStatusOutOfStock StockStatus = "out_of_stock"
)

type BorrowStatus string

const (
	BorrowStatusPending                   BorrowStatus = "pending"
	BorrowStatusBorrowed                  BorrowStatus = "borrowed"
	BorrowStatusOverdue                   BorrowStatus = "overdue"
	BorrowStatusPendingReturnVerification BorrowStatus = "pending_return_verification"
	BorrowStatusReturned                  BorrowStatus = "returned"
	BorrowStatusRejected                  BorrowStatus = "rejected"
	BorrowStatusLost                      BorrowStatus = "lost"
)

func (s BorrowStatus) Valid() bool {
	switch s {
	case BorrowStatusPending, BorrowStatusBorrowed, BorrowStatusOverdue,
		BorrowStatusPendingReturnVerification, BorrowStatusReturned,
		BorrowStatusRejected, BorrowStatusLost:
		return true
	}
	return false
}

type VerificationStatus string

const (
	VerificationStatusPending  VerificationStatus = "pending_verification"
	VerificationStatusVerified VerificationStatus = "verified"
	VerificationStatusRejected VerificationStatus = "rejected"
)

type InspectionStatus string

const (
	InspectionStatusPending     InspectionStatus = "pending_inspection"
	InspectionStatusGood        InspectionStatus = "good_condition"
	InspectionStatusMinorDamage InspectionStatus = "minor_damage"
	InspectionStatusMajorDamage InspectionStatus = "major_damage"
	InspectionStatusLost        InspectionStatus = "lost"
	InspectionStatusUnusable    InspectionStatus = "unusable"
)

// ValidOutcome reports whether s is a terminal inspection outcome an inspector
// may set (pending_inspection is the initial state, never an outcome).
func (s InspectionStatus) ValidOutcome() bool {
	switch s {
	case InspectionStatusGood, InspectionStatusMinorDamage, InspectionStatusMajorDamage,
		InspectionStatusLost, InspectionStatusUnusable:
		return true
	}
	return false
}

type BorrowerType string

const (
	BorrowerTypeStudent  BorrowerType = "student"
	BorrowerTypeEmployee BorrowerType = "employee"
	BorrowerTypeCustom   BorrowerType = "custom"
)

func (t BorrowerType) Valid() bool {
	switch t {
	case BorrowerTypeStudent, BorrowerTypeEmployee, BorrowerTypeCustom:
		return true
	}
	return false
}

type NotificationEventType string

const (
	NotificationEventDueSoon     NotificationEventType = "due_soon"
	NotificationEventDueToday    NotificationEventType = "due_today"
	NotificationEventOverdue     NotificationEventType = "overdue"
	NotificationEventAutoDeleted NotificationEventType = "auto_deleted"
)

// Outbox publish lifecycle.
const (
	OutboxPublishStatusPending    = "PENDING"
	OutboxPublishStatusProcessing = "PROCESSING"
	OutboxPublishStatusPublished  = "PUBLISHED"
	OutboxPublishStatusFailed     = "FAILED"
	OutboxPublishStatusDead       = "DEAD"
)

// History action types.
const (
	HistoryActionCreate     = "CREATE"
	HistoryActionUpdate     = "UPDATE"
	HistoryActionTransition = "TRANSITION"
	HistoryActionArchive    = "ARCHIVE"
	HistoryActionRestore    = "RESTORE"
	HistoryActionPurge      = "PURGE"
	HistoryActionWriteOff   = "WRITEOFF"
)
