package models

import (
	"context"
	"time"

	"github.com/mmdatafocus/lendstock_backend/config"
	"github.com/mmdatafocus/lendstock_backend/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// BorrowTransaction is one circulation record: a quantity of one stock unit
// lent to one borrower. While status is non-terminal and past approval, the
// quantity stays reserved (excluded from the unit's AvailableQty).
type BorrowTransaction struct {
	ID                int    `gorm:"primary_key" json:"id"`
	TransactionNumber string `gorm:"size:64;uniqueIndex;not null" json:"transaction_number"`
	BorrowerSnapshot
	StockUnitId        int          `gorm:"index;not null" json:"stock_unit_id"`
	Qty                int          `gorm:"not null" json:"qty"`
	BorrowDate         time.Time    `gorm:"not null" json:"borrow_date"`
	ExpectedReturnDate time.Time    `gorm:"index;not null" json:"expected_return_date"`
	ActualReturnDate   *time.Time   `json:"actual_return_date"`
	Purpose            string       `gorm:"type:text" json:"purpose"`
	Status             BorrowStatus `gorm:"size:40;not null;default:'pending';index" json:"status"`
	ApprovedBy         int          `json:"approved_by"`
	ApprovedAt         *time.Time   `json:"approved_at"`
	RejectedBy         int          `json:"rejected_by"`
	RejectedAt         *time.Time   `json:"rejected_at"`
	RejectionReason    string       `gorm:"type:text" json:"rejection_reason"`
	LostAt             *time.Time   `json:"lost_at"`
	LostNotes          string       `gorm:"type:text" json:"lost_notes"`

	// Reminder stamps: each milestone notification is sent at most once; the
	// timestamp itself is the de-duplication mechanism.
	DueSoonSentAt  *time.Time `json:"due_soon_sent_at"`
	DueTodaySentAt *time.Time `json:"due_today_sent_at"`
	OverdueSentAt  *time.Time `json:"overdue_sent_at"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (t *BorrowTransaction) EntityType() string { return "BorrowTransaction" }

// borrowTransitions is the exhaustive transition table of the circulation
// state machine. Terminal states (returned, rejected, lost) have no exits;
// anything not listed here is structurally impossible.
var borrowTransitions = map[BorrowStatus][]BorrowStatus{
	BorrowStatusPending:                   {BorrowStatusBorrowed, BorrowStatusRejected},
	BorrowStatusBorrowed:                  {BorrowStatusOverdue, BorrowStatusPendingReturnVerification, BorrowStatusLost},
	BorrowStatusOverdue:                   {BorrowStatusPendingReturnVerification, BorrowStatusLost},
	BorrowStatusPendingReturnVerification: {BorrowStatusReturned, BorrowStatusBorrowed, BorrowStatusOverdue},
	BorrowStatusReturned:                  {},
	BorrowStatusRejected:                  {},
	BorrowStatusLost:                      {},
}

func CanTransitionBorrow(from, to BorrowStatus) bool {
	for _, allowed := range borrowTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// EnsureTransition moves the transaction to the target status or fails with
// InvalidStateTransition naming the attempt and the current state. Illegal
// transitions are reported, never silently ignored, so client-displayed status
// cannot drift from true state.
func (t *BorrowTransaction) EnsureTransition(to BorrowStatus) error {
	if !CanTransitionBorrow(t.Status, to) {
		return &InvalidStateTransitionError{
			TransactionId: t.ID,
			Current:       t.Status,
			Attempted:     string(to),
		}
	}
	t.Status = to
	return nil
}

func (t *BorrowTransaction) IsTerminal() bool {
	return len(borrowTransitions[t.Status]) == 0
}

// nonTerminalBorrowStatuses lists every status that still holds (or may come
// to hold) a reservation or an open workflow.
func nonTerminalBorrowStatuses() []BorrowStatus {
	return []BorrowStatus{
		BorrowStatusPending,
		BorrowStatusBorrowed,
		BorrowStatusOverdue,
		BorrowStatusPendingReturnVerification,
	}
}

// reservedBorrowStatuses lists the statuses during which the transaction's
// quantity is excluded from the stock unit's availability.
func reservedBorrowStatuses() []BorrowStatus {
	return []BorrowStatus{
		BorrowStatusBorrowed,
		BorrowStatusOverdue,
		BorrowStatusPendingReturnVerification,
	}
}

func LockBorrowTransaction(tx *gorm.DB, id int) (*BorrowTransaction, error) {
	var txn BorrowTransaction
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&txn, id).Error; err != nil {
		return nil, utils.ErrorRecordNotFound
	}
	return &txn, nil
}

func GetBorrowTransaction(ctx context.Context, id int) (*BorrowTransaction, error) {
	return utils.FetchModel[BorrowTransaction](ctx, id)
}

type BorrowTransactionFilter struct {
	Status       BorrowStatus
	StockUnitId  int
	BorrowerType BorrowerType
	BorrowerId   int
}

func ListBorrowTransactions(ctx context.Context, filter BorrowTransactionFilter) ([]*BorrowTransaction, error) {
	db := config.GetDB()
	dbCtx := db.WithContext(ctx).Model(&BorrowTransaction{}).Order("created_at DESC")
	if filter.Status != "" {
		dbCtx = dbCtx.Where("status = ?", filter.Status)
	}
	if filter.StockUnitId != 0 {
		dbCtx = dbCtx.Where("stock_unit_id = ?", filter.StockUnitId)
	}
	if filter.BorrowerType != "" {
		dbCtx = dbCtx.Where("borrower_type = ?", filter.BorrowerType)
	}
	if filter.BorrowerId != 0 {
		dbCtx = dbCtx.Where("borrower_id = ?", filter.BorrowerId)
	}
	var txns []*BorrowTransaction
	if err := dbCtx.Find(&txns).Error; err != nil {
		return nil, err
	}
	return txns, nil
}

// ReservedQtyForStockUnit sums the reserved quantity across all transactions
// holding a reservation on one unit. Together with AvailableQty it must equal
// TotalQty (conservation law), net of lost write-offs.
func ReservedQtyForStockUnit(ctx context.Context, unitId int) (int, error) {
	db := config.GetDB()
	var total int64
	err := db.WithContext(ctx).Model(&BorrowTransaction{}).
		Where("stock_unit_id = ? AND status IN ?", unitId, reservedBorrowStatuses()).
		Select("COALESCE(SUM(qty), 0)").Scan(&total).Error
	return int(total), err
}
