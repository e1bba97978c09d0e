package workflow

import (
	"context"
	"errors"
	"time"

	"github.com/mmdatafocus/lendstock_backend/config"
	"github.com/mmdatafocus/lendstock_backend/models"
	"github.com/mmdatafocus/lendstock_backend/utils"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

type ResolveDecision string

const (
	ResolveDecisionVerify ResolveDecision = "verify"
	ResolveDecisionReject ResolveDecision = "reject"
)

// ResolveReturnVerification settles an open return claim.
//
// verify: credits the returned quantity back to the stock unit, closes the
// borrow transaction as returned and opens a ReturnRecord awaiting inspection.
// All three effects commit together or not at all; a partial application
// (stock released but transaction left open) would be an unrecoverable
// consistency bug. A shortfall against the borrowed quantity is written off
// the unit's total in the same commit, so quantity conservation holds.
//
// reject: records the rejection reason and puts the transaction back where it
// was before the claim (re-checked against the due date), with no ledger
// effect. The borrower may then report the return again.
func ResolveReturnVerification(ctx context.Context, logger *logrus.Logger, id int, decision ResolveDecision, notes string) (*models.ReturnVerification, error) {
	db := config.GetDB()
	verifierId, _ := utils.GetUserIdFromContext(ctx)

	var verification *models.ReturnVerification
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		verification, err = models.LockReturnVerification(tx, id)
		if err != nil {
			return err
		}
		if verification.Status != models.VerificationStatusPending {
			return &models.VerificationResolvedError{
				VerificationId: verification.ID,
				Status:         verification.Status,
			}
		}

		txn, err := models.LockBorrowTransaction(tx, verification.BorrowTransactionId)
		if err != nil {
			return err
		}
		txnBefore := *txn
		now := time.Now().UTC()

		switch decision {
		case ResolveDecisionVerify:
			if err := txn.EnsureTransition(models.BorrowStatusReturned); err != nil {
				return err
			}
			if _, err := models.ReleaseStock(tx, logger, verification.StockUnitId, verification.QtyReturned); err != nil {
				return err
			}
			if shortfall := txn.Qty - verification.QtyReturned; shortfall > 0 {
				if _, err := models.WriteOffStock(tx, verification.StockUnitId, shortfall,
					"unreturned quantity written off at verification of "+txn.TransactionNumber); err != nil {
					return err
				}
			}
			returnDate := verification.ReturnDate
			txn.ActualReturnDate = &returnDate
			if err := tx.Save(txn).Error; err != nil {
				return err
			}

			verification.Status = models.VerificationStatusVerified
			verification.VerifiedBy = verifierId
			verification.VerifiedAt = &now
			verification.ResolutionNotes = notes
			if err := tx.Save(verification).Error; err != nil {
				return err
			}

			record := models.ReturnRecord{
				ReturnVerificationId: verification.ID,
				BorrowTransactionId:  txn.ID,
				StockUnitId:          verification.StockUnitId,
				QtyReturned:          verification.QtyReturned,
				InspectionStatus:     models.InspectionStatusPending,
			}
			if err := tx.Create(&record).Error; err != nil {
				return err
			}

			return models.CreateHistoryRecord(tx, models.HistoryActionTransition,
				txn.ID, txn.EntityType(), &txnBefore, txn, "return verified, stock credited")

		case ResolveDecisionReject:
			if notes == "" {
				return errors.New("a rejection reason is required")
			}
			target := verification.PriorStatus
			if target == models.BorrowStatusBorrowed &&
				utils.StartOfDay(txn.ExpectedReturnDate).Before(utils.StartOfDay(now)) {
				target = models.BorrowStatusOverdue
			}
			if err := txn.EnsureTransition(target); err != nil {
				return err
			}
			if err := tx.Save(txn).Error; err != nil {
				return err
			}

			verification.Status = models.VerificationStatusRejected
			verification.VerifiedBy = verifierId
			verification.VerifiedAt = &now
			verification.ResolutionNotes = notes
			if err := tx.Save(verification).Error; err != nil {
				return err
			}

			return models.CreateHistoryRecord(tx, models.HistoryActionTransition,
				txn.ID, txn.EntityType(), &txnBefore, txn, "return claim rejected: "+notes)

		default:
			return errors.New("decision must be verify or reject")
		}
	})
	if err != nil {
		return nil, err
	}
	return verification, nil
}

type InspectInput struct {
	InspectionStatus models.InspectionStatus `json:"inspection_status" binding:"required"`
	DamageFee        decimal.Decimal         `json:"damage_fee"`
	Notes            string                  `json:"notes"`
}

// InspectReturnRecord assesses condition and fee exactly once. A second call
// fails with AlreadyInspected; the record is immutable afterwards. This is a
// pure audit step: stock was already credited at verification time, and fee
// collection belongs to an external billing collaborator.
func InspectReturnRecord(ctx context.Context, id int, input *InspectInput) (*models.ReturnRecord, error) {
	if !input.InspectionStatus.ValidOutcome() {
		return nil, errors.New("invalid inspection status")
	}
	if input.DamageFee.IsNegative() {
		return nil, errors.New("damage fee cannot be negative")
	}
	db := config.GetDB()
	inspectorId, _ := utils.GetUserIdFromContext(ctx)

	var record *models.ReturnRecord
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		record, err = models.LockReturnRecord(tx, id)
		if err != nil {
			return err
		}
		if record.InspectionStatus != models.InspectionStatusPending {
			return &models.AlreadyInspectedError{
				ReturnRecordId: record.ID,
				Status:         record.InspectionStatus,
			}
		}
		before := *record
		now := time.Now().UTC()
		record.InspectionStatus = input.InspectionStatus
		record.DamageFee = input.DamageFee
		record.InspectedBy = inspectorId
		record.InspectedAt = &now
		record.Notes = input.Notes
		if err := tx.Save(record).Error; err != nil {
			return err
		}
		return models.CreateHistoryRecord(tx, models.HistoryActionUpdate,
			record.ID, record.EntityType(), &before, record, "return inspected")
	})
	if err != nil {
		return nil, err
	}
	return record, nil
}
