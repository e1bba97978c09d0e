package models

import (
	"context"
	"time"

	"github.com/mmdatafocus/lendstock_backend/config"
	"github.com/mmdatafocus/lendstock_backend/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ReturnVerification is the staging area between "borrower claims return" and
// "stock credited back". The claimed quantity stays reserved until an
// authorized verifier confirms physical receipt, so an unverified claim can
// never surface phantom availability. At most one verification per transaction
// is open at a time.
type ReturnVerification struct {
	ID int `gorm:"primary_key" json:"id"`
	BorrowerSnapshot
	BorrowTransactionId int                `gorm:"index;not null" json:"borrow_transaction_id"`
	StockUnitId         int                `gorm:"index;not null" json:"stock_unit_id"`
	QtyReturned         int                `gorm:"not null" json:"qty_returned"`
	ReturnDate          time.Time          `gorm:"not null" json:"return_date"`
	ReturnedBy          string             `gorm:"size:255" json:"returned_by"`
	Notes               string             `gorm:"type:text" json:"notes"`
	Status              VerificationStatus `gorm:"size:30;not null;default:'pending_verification';index" json:"status"`
	VerifiedBy          int                `json:"verified_by"`
	VerifiedAt          *time.Time         `json:"verified_at"`
	ResolutionNotes     string             `gorm:"type:text" json:"resolution_notes"`

	// Status the transaction held before report_return, so a rejected claim
	// can put it back where it was.
	PriorStatus BorrowStatus `gorm:"size:40;not null" json:"prior_status"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (v *ReturnVerification) EntityType() string { return "ReturnVerification" }

func LockReturnVerification(tx *gorm.DB, id int) (*ReturnVerification, error) {
	var verification ReturnVerification
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&verification, id).Error; err != nil {
		return nil, utils.ErrorRecordNotFound
	}
	return &verification, nil
}

// FindOpenVerification returns the open verification for a transaction, if
// any, locking it against concurrent resolution.
func FindOpenVerification(tx *gorm.DB, borrowTransactionId int) (*ReturnVerification, error) {
	var verification ReturnVerification
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("borrow_transaction_id = ? AND status = ?", borrowTransactionId, VerificationStatusPending).
		First(&verification).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &verification, nil
}

func GetReturnVerification(ctx context.Context, id int) (*ReturnVerification, error) {
	return utils.FetchModel[ReturnVerification](ctx, id)
}

// ListOpenReturnVerifications lists claims awaiting a verifier, oldest first.
func ListOpenReturnVerifications(ctx context.Context) ([]*ReturnVerification, error) {
	db := config.GetDB()
	var verifications []*ReturnVerification
	err := db.WithContext(ctx).
		Where("status = ?", VerificationStatusPending).
		Order("created_at").
		Find(&verifications).Error
	if err != nil {
		return nil, err
	}
	return verifications, nil
}
