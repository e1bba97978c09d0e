package models

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/mmdatafocus/lendstock_backend/config"
	"github.com/mmdatafocus/lendstock_backend/utils"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const DefaultLowStockThreshold = 30

// StockUnit is a catalogued inventory item. AvailableQty is the contended
// resource: every mutation goes through the ledger functions below, under a
// row-level lock, and Status is recomputed on each quantity change (it is a
// projection of qty + threshold, never independently-mutable truth).
type StockUnit struct {
	ID                int         `gorm:"primary_key" json:"id"`
	Name              string      `gorm:"size:255;not null;index" json:"name"`
	Category          string      `gorm:"size:100;index" json:"category"`
	Kind              StockKind   `gorm:"size:50;not null;default:'usable'" json:"kind"`
	TotalQty          int         `gorm:"not null;default:0" json:"total_qty"`
	AvailableQty      int         `gorm:"not null;default:0" json:"available_qty"`
	LowStockThreshold int         `gorm:"not null;default:30" json:"low_stock_threshold"`
	Status            StockStatus `gorm:"size:20;not null;default:'available';index" json:"status"`
	Location          string      `gorm:"size:255" json:"location"`
	Archivable
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (u *StockUnit) ArchiveState() *Archivable { return &u.Archivable }
func (u *StockUnit) EntityId() int             { return u.ID }
func (u *StockUnit) EntityType() string        { return "StockUnit" }

// BeforeSave enforces ledger invariants: quantities stay within
// 0 <= available <= total and the stored status always matches the derived
// projection, no matter which code path wrote the row.
func (u *StockUnit) BeforeSave(tx *gorm.DB) error {
	_ = tx // signature required by gorm; tx may be nil in tests
	if u == nil {
		return nil
	}
	if u.AvailableQty < 0 || u.AvailableQty > u.TotalQty {
		return &ConsistencyViolationError{
			StockUnitId: u.ID,
			Op:          "save",
			Available:   u.AvailableQty,
			Total:       u.TotalQty,
		}
	}
	u.Status = DeriveStockStatus(u.AvailableQty, u.TotalQty, u.LowStockThreshold)
	return nil
}

// DeriveStockStatus is the single source of truth for stock status:
// out_of_stock at zero, low_stock when available/total*100 <= threshold
// (boundary inclusive: "alert when stock <= threshold%"), else available.
// Threshold defaults to 30 when unset.
func DeriveStockStatus(available, total, thresholdPercent int) StockStatus {
	if available <= 0 {
		return StockStatusOutOfStock
	}
	if thresholdPercent <= 0 {
		thresholdPercent = DefaultLowStockThreshold
	}
	if total > 0 && available*100 <= thresholdPercent*total {
		return StockStatusLowStock
	}
	return StockStatusAvailable
}

// ReservedQty is the quantity currently out on loan (or awaiting return
// verification).
func (u *StockUnit) ReservedQty() int {
	return u.TotalQty - u.AvailableQty
}

/* pure ledger arithmetic (exercised under the row lock by the tx functions) */

func (u *StockUnit) applyReserve(qty int) error {
	if qty > u.AvailableQty {
		return &InsufficientStockError{StockUnitId: u.ID, Requested: qty, Available: u.AvailableQty}
	}
	u.AvailableQty -= qty
	return nil
}

// applyRelease credits quantity back. Exceeding TotalQty means a
// reservation/release mismatch upstream: that is a fatal consistency error,
// never a silent clamp.
func (u *StockUnit) applyRelease(qty int) error {
	if u.AvailableQty+qty > u.TotalQty {
		return &ConsistencyViolationError{
			StockUnitId: u.ID,
			Op:          "release",
			Available:   u.AvailableQty,
			Total:       u.TotalQty,
			Delta:       qty,
		}
	}
	u.AvailableQty += qty
	return nil
}

// applyCapacity moves TotalQty to newTotal; AvailableQty shifts by the same
// delta so the reserved quantity is preserved.
func (u *StockUnit) applyCapacity(newTotal int) error {
	if newTotal < 0 {
		return &CapacityViolationError{StockUnitId: u.ID, NewTotal: newTotal, Reserved: u.ReservedQty()}
	}
	delta := newTotal - u.TotalQty
	if u.AvailableQty+delta < 0 {
		return &CapacityViolationError{StockUnitId: u.ID, NewTotal: newTotal, Reserved: u.ReservedQty()}
	}
	u.TotalQty = newTotal
	u.AvailableQty += delta
	return nil
}

// applyWriteOff removes reserved quantity from the pool permanently (lost
// asset). AvailableQty is untouched; only TotalQty shrinks.
func (u *StockUnit) applyWriteOff(qty int) error {
	if qty > u.ReservedQty() {
		return &ConsistencyViolationError{
			StockUnitId: u.ID,
			Op:          "write_off",
			Available:   u.AvailableQty,
			Total:       u.TotalQty,
			Delta:       -qty,
		}
	}
	u.TotalQty -= qty
	return nil
}

/* tx-scoped ledger operations */

func lockStockUnit(tx *gorm.DB, id int) (*StockUnit, error) {
	var unit StockUnit
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&unit, id).Error; err != nil {
		return nil, utils.ErrorRecordNotFound
	}
	return &unit, nil
}

// ReserveStock atomically checks availability and decrements it under the row
// lock. Two concurrent approvals against the same unit serialize here, so the
// check-then-decrement can never double-spend.
func ReserveStock(tx *gorm.DB, unitId int, qty int) (*StockUnit, error) {
	unit, err := lockStockUnit(tx, unitId)
	if err != nil {
		return nil, err
	}
	if err := unit.applyReserve(qty); err != nil {
		return nil, err
	}
	if err := tx.Save(unit).Error; err != nil {
		return nil, err
	}
	evictStockUnitCache(unit.ID)
	return unit, nil
}

// ReleaseStock credits verified returns back into availability. A
// ConsistencyViolation here fails the whole transaction and pages an operator
// via the high-severity log.
func ReleaseStock(tx *gorm.DB, logger *logrus.Logger, unitId int, qty int) (*StockUnit, error) {
	unit, err := lockStockUnit(tx, unitId)
	if err != nil {
		return nil, err
	}
	if err := unit.applyRelease(qty); err != nil {
		var cv *ConsistencyViolationError
		if errors.As(err, &cv) && logger != nil {
			logger.WithFields(logrus.Fields{
				"stock_unit_id": cv.StockUnitId,
				"available":     cv.Available,
				"total":         cv.Total,
				"delta":         cv.Delta,
			}).Error("stock release would exceed total quantity; reservation/release mismatch upstream")
		}
		return nil, err
	}
	if err := tx.Save(unit).Error; err != nil {
		return nil, err
	}
	evictStockUnitCache(unit.ID)
	return unit, nil
}

// WriteOffStock permanently removes lost quantity from TotalQty.
func WriteOffStock(tx *gorm.DB, unitId int, qty int, reason string) (*StockUnit, error) {
	unit, err := lockStockUnit(tx, unitId)
	if err != nil {
		return nil, err
	}
	before := *unit
	if err := unit.applyWriteOff(qty); err != nil {
		return nil, err
	}
	if err := tx.Save(unit).Error; err != nil {
		return nil, err
	}
	if err := createHistory(tx, HistoryActionWriteOff, unit.ID, unit.EntityType(),
		&before, unit, reason); err != nil {
		return nil, err
	}
	evictStockUnitCache(unit.ID)
	return unit, nil
}

/* CRUD */

type NewStockUnit struct {
	Name              string    `json:"name" binding:"required"`
	Category          string    `json:"category"`
	Kind              StockKind `json:"kind" binding:"required"`
	TotalQty          int       `json:"total_qty" binding:"min=0"`
	LowStockThreshold int       `json:"low_stock_threshold" binding:"min=0,max=100"`
	Location          string    `json:"location"`
}

func (input *NewStockUnit) validate() error {
	if _, err := input.Kind.Normalize(); err != nil {
		return err
	}
	if input.TotalQty < 0 {
		return errors.New("total qty cannot be negative")
	}
	if input.LowStockThreshold < 0 || input.LowStockThreshold > 100 {
		return errors.New("low stock threshold must be between 0 and 100")
	}
	return nil
}

// CreateStockUnit performs stock-in: a new unit starts fully available.
func CreateStockUnit(ctx context.Context, input *NewStockUnit) (*StockUnit, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}

	threshold := input.LowStockThreshold
	if threshold == 0 {
		threshold = DefaultLowStockThreshold
	}
	unit := StockUnit{
		Name:              input.Name,
		Category:          input.Category,
		Kind:              input.Kind,
		TotalQty:          input.TotalQty,
		AvailableQty:      input.TotalQty,
		LowStockThreshold: threshold,
		Location:          input.Location,
	}

	db := config.GetDB()
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&unit).Error; err != nil {
			return err
		}
		return createHistory(tx, HistoryActionCreate, unit.ID, unit.EntityType(),
			nil, &unit, "stock unit created")
	})
	if err != nil {
		return nil, err
	}
	return &unit, nil
}

type UpdateStockUnitInput struct {
	Name              *string    `json:"name"`
	Category          *string    `json:"category"`
	Kind              *StockKind `json:"kind"`
	LowStockThreshold *int       `json:"low_stock_threshold"`
	Location          *string    `json:"location"`
}

// UpdateStockUnit edits descriptive fields and the threshold. Quantities only
// move through the ledger operations and AdjustCapacity.
func UpdateStockUnit(ctx context.Context, id int, input *UpdateStockUnitInput) (*StockUnit, error) {
	db := config.GetDB()

	var unit *StockUnit
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		unit, err = lockStockUnit(tx, id)
		if err != nil {
			return err
		}
		before := *unit
		if input.Name != nil {
			unit.Name = *input.Name
		}
		if input.Category != nil {
			unit.Category = *input.Category
		}
		if input.Kind != nil {
			kind, err := input.Kind.Normalize()
			if err != nil {
				return err
			}
			unit.Kind = kind
		}
		if input.LowStockThreshold != nil {
			if *input.LowStockThreshold < 0 || *input.LowStockThreshold > 100 {
				return errors.New("low stock threshold must be between 0 and 100")
			}
			unit.LowStockThreshold = *input.LowStockThreshold
		}
		if input.Location != nil {
			unit.Location = *input.Location
		}
		if err := tx.Save(unit).Error; err != nil {
			return err
		}
		return createHistory(tx, HistoryActionUpdate, unit.ID, unit.EntityType(),
			&before, unit, "stock unit updated")
	})
	if err != nil {
		return nil, err
	}
	evictStockUnitCache(id)
	return unit, nil
}

// AdjustCapacity changes TotalQty (new purchases, shrinkage corrections).
// AvailableQty shifts by the same delta; driving it negative fails with
// CapacityViolation because the removed units are out on loan.
func AdjustCapacity(ctx context.Context, id int, newTotal int, reason string) (*StockUnit, error) {
	db := config.GetDB()

	var unit *StockUnit
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		unit, err = lockStockUnit(tx, id)
		if err != nil {
			return err
		}
		before := *unit
		if err := unit.applyCapacity(newTotal); err != nil {
			return err
		}
		if err := tx.Save(unit).Error; err != nil {
			return err
		}
		return createHistory(tx, HistoryActionUpdate, unit.ID, unit.EntityType(),
			&before, unit, reason)
	})
	if err != nil {
		return nil, err
	}
	evictStockUnitCache(id)
	return unit, nil
}

const stockUnitCacheTTL = 10 * time.Minute

func stockUnitCacheKey(id int) string {
	return "StockUnit:" + strconv.Itoa(id)
}

// evictStockUnitCache drops the cached copy after a write. Best effort: the DB
// row is the truth and a stale entry expires with the TTL anyway.
func evictStockUnitCache(id int) {
	_ = config.DeleteRedisKeys(stockUnitCacheKey(id))
}

// GetStockUnit reads through the redis cache; ledger mutations evict the key.
func GetStockUnit(ctx context.Context, id int) (*StockUnit, error) {
	var cached StockUnit
	if hit, err := config.GetRedisObject(stockUnitCacheKey(id), &cached); err == nil && hit {
		return &cached, nil
	}
	unit, err := utils.FetchModel[StockUnit](ctx, id)
	if err != nil {
		return nil, err
	}
	_ = config.SetRedisObject(stockUnitCacheKey(id), unit, stockUnitCacheTTL)
	return unit, nil
}

type StockUnitFilter struct {
	Status   StockStatus
	Category string
	Search   string
	Archived *bool
}

func ListStockUnits(ctx context.Context, filter StockUnitFilter) ([]*StockUnit, error) {
	db := config.GetDB()
	dbCtx := db.WithContext(ctx).Model(&StockUnit{}).Order("name")
	if utils.DereferencePtr(filter.Archived) {
		dbCtx = dbCtx.Where("archived_at IS NOT NULL")
	} else {
		dbCtx = ActiveScope(dbCtx)
	}
	if filter.Status != "" {
		dbCtx = dbCtx.Where("status = ?", filter.Status)
	}
	if filter.Category != "" {
		dbCtx = dbCtx.Where("category = ?", filter.Category)
	}
	if filter.Search != "" {
		dbCtx = dbCtx.Where("name LIKE ?", "%"+filter.Search+"%").Limit(config.SearchLimit)
	}
	var units []*StockUnit
	if err := dbCtx.Find(&units).Error; err != nil {
		return nil, err
	}
	return units, nil
}

// stockUnitArchiveGuard blocks archiving while loans are in flight, so
// archival never orphans an open BorrowTransaction.
func stockUnitArchiveGuard(tx *gorm.DB, unitId int) error {
	var open int64
	if err := tx.Model(&BorrowTransaction{}).
		Where("stock_unit_id = ? AND status IN ?", unitId, nonTerminalBorrowStatuses()).
		Count(&open).Error; err != nil {
		return err
	}
	if open > 0 {
		return &ArchiveBlockedError{EntityType: "StockUnit", EntityId: unitId, OpenLoans: open}
	}
	return nil
}

func ArchiveStockUnit(ctx context.Context, id int) (*StockUnit, error) {
	unit, err := ArchiveEntity[StockUnit](ctx, id, stockUnitArchiveGuard)
	if err != nil {
		return nil, err
	}
	evictStockUnitCache(id)
	return unit, nil
}

func RestoreStockUnit(ctx context.Context, id int) (*StockUnit, error) {
	unit, err := RestoreEntity[StockUnit](ctx, id)
	if err != nil {
		return nil, err
	}
	evictStockUnitCache(id)
	return unit, nil
}
