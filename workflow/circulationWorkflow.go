package workflow

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/mmdatafocus/lendstock_backend/config"
	"github.com/mmdatafocus/lendstock_backend/models"
	"github.com/mmdatafocus/lendstock_backend/utils"
	"gorm.io/gorm"
)

// Circulation workflow: one function per state-machine entry point. Every
// transition runs in a single DB transaction that locks the borrow row (and
// the stock unit row via the ledger operations) and writes its audit history
// before commit.

type NewBorrowRequest struct {
	Borrower           models.BorrowerRef `json:"borrower" binding:"required"`
	StockUnitId        int                `json:"stock_unit_id" binding:"required"`
	Qty                int                `json:"qty" binding:"required,min=1"`
	Purpose            string             `json:"purpose"`
	BorrowDate         time.Time          `json:"borrow_date"`
	ExpectedReturnDate time.Time          `json:"expected_return_date" binding:"required"`
}

// SubmitBorrowRequest creates a transaction in pending. Stock is NOT reserved
// yet; reservation happens only on approval so unapproved requests never hold
// quantity hostage.
func SubmitBorrowRequest(ctx context.Context, input *NewBorrowRequest) (*models.BorrowTransaction, error) {
	if input.Qty < 1 {
		return nil, errors.New("qty must be at least 1")
	}
	borrowDate := input.BorrowDate
	if borrowDate.IsZero() {
		borrowDate = time.Now().UTC()
	}
	if input.ExpectedReturnDate.Before(borrowDate) {
		return nil, errors.New("expected return date cannot be before the borrow date")
	}

	unit, err := models.GetStockUnit(ctx, input.StockUnitId)
	if err != nil {
		return nil, err
	}
	if unit.IsArchived() {
		return nil, errors.New("stock unit is archived")
	}

	snapshot, err := models.SnapshotBorrower(ctx, input.Borrower)
	if err != nil {
		return nil, err
	}

	txn := models.BorrowTransaction{
		TransactionNumber:  "BRW-" + uuid.NewString(),
		BorrowerSnapshot:   snapshot,
		StockUnitId:        unit.ID,
		Qty:                input.Qty,
		BorrowDate:         borrowDate,
		ExpectedReturnDate: input.ExpectedReturnDate,
		Purpose:            input.Purpose,
		Status:             models.BorrowStatusPending,
	}

	db := config.GetDB()
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&txn).Error; err != nil {
			return err
		}
		return historyTransition(tx, &txn, nil, "borrow request submitted")
	})
	if err != nil {
		return nil, err
	}
	return &txn, nil
}

// ApproveBorrow reserves stock and moves pending -> borrowed. On
// InsufficientStock the whole transaction rolls back: status stays pending and
// the caller gets the exact shortfall to surface as a rejected approval.
func ApproveBorrow(ctx context.Context, id int) (*models.BorrowTransaction, error) {
	db := config.GetDB()
	approverId, _ := utils.GetUserIdFromContext(ctx)

	var txn *models.BorrowTransaction
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		txn, err = models.LockBorrowTransaction(tx, id)
		if err != nil {
			return err
		}
		before := *txn
		if err := txn.EnsureTransition(models.BorrowStatusBorrowed); err != nil {
			return err
		}
		if _, err := models.ReserveStock(tx, txn.StockUnitId, txn.Qty); err != nil {
			return err
		}
		now := time.Now().UTC()
		txn.ApprovedBy = approverId
		txn.ApprovedAt = &now
		if err := tx.Save(txn).Error; err != nil {
			return err
		}
		return historyTransition(tx, txn, &before, "borrow request approved")
	})
	if err != nil {
		return nil, err
	}
	return txn, nil
}

// RejectBorrow moves pending -> rejected. Nothing was reserved, so there is no
// ledger effect.
func RejectBorrow(ctx context.Context, id int, reason string) (*models.BorrowTransaction, error) {
	if reason == "" {
		return nil, errors.New("rejection reason is required")
	}
	db := config.GetDB()
	approverId, _ := utils.GetUserIdFromContext(ctx)

	var txn *models.BorrowTransaction
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		txn, err = models.LockBorrowTransaction(tx, id)
		if err != nil {
			return err
		}
		before := *txn
		if err := txn.EnsureTransition(models.BorrowStatusRejected); err != nil {
			return err
		}
		now := time.Now().UTC()
		txn.RejectedBy = approverId
		txn.RejectedAt = &now
		txn.RejectionReason = reason
		if err := tx.Save(txn).Error; err != nil {
			return err
		}
		return historyTransition(tx, txn, &before, "borrow request rejected: "+reason)
	})
	if err != nil {
		return nil, err
	}
	return txn, nil
}

type ReportReturnInput struct {
	QtyReturned int       `json:"qty_returned"`
	ReturnDate  time.Time `json:"return_date"`
	ReturnedBy  string    `json:"returned_by"`
	Notes       string    `json:"notes"`
}

// ReportReturn stages a borrower's return claim. Stock stays reserved until a
// verifier confirms physical receipt. A second claim while one is open fails
// with DuplicateVerification.
func ReportReturn(ctx context.Context, id int, input *ReportReturnInput) (*models.ReturnVerification, error) {
	db := config.GetDB()

	var verification *models.ReturnVerification
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txn, err := models.LockBorrowTransaction(tx, id)
		if err != nil {
			return err
		}
		before := *txn

		open, err := models.FindOpenVerification(tx, txn.ID)
		if err != nil {
			return err
		}
		if open != nil {
			return &models.DuplicateVerificationError{
				TransactionId:  txn.ID,
				VerificationId: open.ID,
			}
		}

		qtyReturned := input.QtyReturned
		if qtyReturned == 0 {
			qtyReturned = txn.Qty
		}
		if qtyReturned < 1 || qtyReturned > txn.Qty {
			return errors.New("qty returned must be between 1 and the borrowed qty")
		}
		returnDate := input.ReturnDate
		if returnDate.IsZero() {
			returnDate = time.Now().UTC()
		}

		priorStatus := txn.Status
		if err := txn.EnsureTransition(models.BorrowStatusPendingReturnVerification); err != nil {
			return err
		}

		verification = &models.ReturnVerification{
			BorrowerSnapshot:    txn.BorrowerSnapshot,
			BorrowTransactionId: txn.ID,
			StockUnitId:         txn.StockUnitId,
			QtyReturned:         qtyReturned,
			ReturnDate:          returnDate,
			ReturnedBy:          input.ReturnedBy,
			Notes:               input.Notes,
			Status:              models.VerificationStatusPending,
			PriorStatus:         priorStatus,
		}
		if err := tx.Create(verification).Error; err != nil {
			return err
		}
		if err := tx.Save(txn).Error; err != nil {
			return err
		}
		return historyTransition(tx, txn, &before, "return reported, awaiting verification")
	})
	if err != nil {
		return nil, err
	}
	return verification, nil
}

// DeclareLost is the manual endpoint for assets that will not come back. The
// reserved quantity is written off the unit's total permanently: lost stock
// never returns to the pool.
func DeclareLost(ctx context.Context, id int, notes string) (*models.BorrowTransaction, error) {
	db := config.GetDB()

	var txn *models.BorrowTransaction
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		txn, err = models.LockBorrowTransaction(tx, id)
		if err != nil {
			return err
		}
		before := *txn
		if err := txn.EnsureTransition(models.BorrowStatusLost); err != nil {
			return err
		}
		if _, err := models.WriteOffStock(tx, txn.StockUnitId, txn.Qty,
			"lost loan write-off for transaction "+txn.TransactionNumber); err != nil {
			return err
		}
		now := time.Now().UTC()
		txn.LostAt = &now
		txn.LostNotes = notes
		if err := tx.Save(txn).Error; err != nil {
			return err
		}
		return historyTransition(tx, txn, &before, "loan declared lost")
	})
	if err != nil {
		return nil, err
	}
	return txn, nil
}

func historyTransition(tx *gorm.DB, txn *models.BorrowTransaction, before *models.BorrowTransaction, description string) error {
	action := models.HistoryActionTransition
	if before == nil {
		action = models.HistoryActionCreate
	}
	return models.CreateHistoryRecord(tx, action, txn.ID, txn.EntityType(), before, txn, description)
}
