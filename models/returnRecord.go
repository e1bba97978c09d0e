package models

import (
	"context"
	"time"

	"github.com/mmdatafocus/lendstock_backend/config"
	"github.com/mmdatafocus/lendstock_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ReturnRecord is the post-verification inspection entry, created
// automatically when a return verification is accepted. It is mutated exactly
// once by an inspection and is immutable thereafter: an append-only audit of
// condition. The damage fee is bookkeeping for an external billing
// collaborator; it has no ledger effect (stock was credited at verification).
type ReturnRecord struct {
	ID                   int              `gorm:"primary_key" json:"id"`
	ReturnVerificationId int              `gorm:"uniqueIndex;not null" json:"return_verification_id"`
	BorrowTransactionId  int              `gorm:"index;not null" json:"borrow_transaction_id"`
	StockUnitId          int              `gorm:"index;not null" json:"stock_unit_id"`
	QtyReturned          int              `gorm:"not null" json:"qty_returned"`
	InspectionStatus     InspectionStatus `gorm:"size:30;not null;default:'pending_inspection';index" json:"inspection_status"`
	DamageFee            decimal.Decimal  `gorm:"type:decimal(20,4);default:0" json:"damage_fee"`
	InspectedBy          int              `json:"inspected_by"`
	InspectedAt          *time.Time       `json:"inspected_at"`
	Notes                string           `gorm:"type:text" json:"notes"`
	CreatedAt            time.Time        `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt            time.Time        `gorm:"autoUpdateTime" json:"updated_at"`
}

func (r *ReturnRecord) EntityType() string { return "ReturnRecord" }

func LockReturnRecord(tx *gorm.DB, id int) (*ReturnRecord, error) {
	var record ReturnRecord
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&record, id).Error; err != nil {
		return nil, utils.ErrorRecordNotFound
	}
	return &record, nil
}

func GetReturnRecord(ctx context.Context, id int) (*ReturnRecord, error) {
	return utils.FetchModel[ReturnRecord](ctx, id)
}

// ListPendingInspections lists returns awaiting condition assessment.
func ListPendingInspections(ctx context.Context) ([]*ReturnRecord, error) {
	db := config.GetDB()
	var records []*ReturnRecord
	err := db.WithContext(ctx).
		Where("inspection_status = ?", InspectionStatusPending).
		Order("created_at").
		Find(&records).Error
	if err != nil {
		return nil, err
	}
	return records, nil
}
