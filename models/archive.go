package models

import (
	"context"
	"os"
	"strconv"
	"time"

	"github.com/mmdatafocus/lendstock_backend/config"
	"github.com/mmdatafocus/lendstock_backend/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Archivable is the soft-delete capability shared by stock units and borrower
// records. ArchivedAt and AutoDeleteAt are always set and cleared together;
// an archived row is excluded from active-record queries but kept until the
// retention window elapses (or the row is restored).
type Archivable struct {
	ArchivedAt   *time.Time `gorm:"index" json:"archived_at"`
	AutoDeleteAt *time.Time `gorm:"index" json:"auto_delete_at"`
	ArchivedBy   int        `json:"archived_by"`
}

func (a *Archivable) IsArchived() bool {
	return a.ArchivedAt != nil
}

// DaysUntilAutoDelete returns ceil((auto_delete_at - now) / 1 day); zero when
// the row is due for purge or not archived.
func (a *Archivable) DaysUntilAutoDelete(now time.Time) int {
	if a.AutoDeleteAt == nil {
		return 0
	}
	return utils.CeilDays(now, *a.AutoDeleteAt)
}

func (a *Archivable) markArchived(actorId int, now time.Time) {
	archivedAt := now.UTC()
	autoDeleteAt := ArchiveExpiry(archivedAt)
	a.ArchivedAt = &archivedAt
	a.AutoDeleteAt = &autoDeleteAt
	a.ArchivedBy = actorId
}

func (a *Archivable) clearArchived() {
	a.ArchivedAt = nil
	a.AutoDeleteAt = nil
	a.ArchivedBy = 0
}

// ActiveScope excludes archived rows. Use for every default listing/lookup.
func ActiveScope(db *gorm.DB) *gorm.DB {
	return db.Where("archived_at IS NULL")
}

// ArchiveExpiry returns the auto-delete deadline for a row archived at the
// given instant: one calendar month later by default (Jan 1 -> Feb 1, not
// Jan 31), or archivedAt + ARCHIVE_RETENTION_DAYS days when the override is
// set.
func ArchiveExpiry(archivedAt time.Time) time.Time {
	if v := os.Getenv("ARCHIVE_RETENTION_DAYS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return archivedAt.Add(time.Duration(n) * 24 * time.Hour)
		}
	}
	return archivedAt.AddDate(0, 1, 0)
}

// ArchiveAccessor is implemented by every archivable entity pointer.
type ArchiveAccessor interface {
	ArchiveState() *Archivable
	EntityId() int
	EntityType() string
}

type archivablePtr[T any] interface {
	*T
	ArchiveAccessor
}

// ArchiveGuard may veto an archive inside the same transaction (e.g. a stock
// unit with outstanding loans).
type ArchiveGuard func(tx *gorm.DB, entityId int) error

// ArchiveEntity soft-deletes an entity: stamps archived_at/auto_delete_at
// together, records the acting user and writes a history row, all in one
// transaction. Fails with ErrAlreadyArchived on a second call.
func ArchiveEntity[T any, PT archivablePtr[T]](ctx context.Context, id int, guard ArchiveGuard) (PT, error) {
	db := config.GetDB()
	actorId, _ := utils.GetUserIdFromContext(ctx)

	var entity PT = new(T)
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(entity, id).Error; err != nil {
			return utils.ErrorRecordNotFound
		}
		state := entity.ArchiveState()
		if state.IsArchived() {
			return ErrAlreadyArchived
		}
		if guard != nil {
			if err := guard(tx, id); err != nil {
				return err
			}
		}
		state.markArchived(actorId, time.Now())
		if err := tx.Save(entity).Error; err != nil {
			return err
		}
		return createHistory(tx, HistoryActionArchive, entity.EntityId(), entity.EntityType(),
			nil, entity, entity.EntityType()+" archived")
	})
	if err != nil {
		return nil, err
	}
	return entity, nil
}

// RestoreEntity undoes an archive: clears archived_at/auto_delete_at
// atomically. Fails with ErrNotArchived when the entity is active.
func RestoreEntity[T any, PT archivablePtr[T]](ctx context.Context, id int) (PT, error) {
	db := config.GetDB()

	var entity PT = new(T)
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(entity, id).Error; err != nil {
			return utils.ErrorRecordNotFound
		}
		state := entity.ArchiveState()
		if !state.IsArchived() {
			return ErrNotArchived
		}
		state.clearArchived()
		if err := tx.Save(entity).Error; err != nil {
			return err
		}
		return createHistory(tx, HistoryActionRestore, entity.EntityId(), entity.EntityType(),
			nil, entity, entity.EntityType()+" restored")
	})
	if err != nil {
		return nil, err
	}
	return entity, nil
}

// SweepExpiredEntities physically deletes archived rows whose retention window
// has elapsed and emits an auto_deleted event per purged row. Safe to run
// repeatedly and concurrently: an already-purged id simply matches no rows.
func SweepExpiredEntities[T any, PT archivablePtr[T]](ctx context.Context, now time.Time) (int64, error) {
	db := config.GetDB()

	var purged int64
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var expired []PT
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
			Where("archived_at IS NOT NULL AND auto_delete_at <= ?", now.UTC()).
			Find(&expired).Error; err != nil {
			return err
		}
		for _, entity := range expired {
			if err := EmitNotification(ctx, tx, NotificationEventAutoDeleted,
				entity.EntityType(), entity.EntityId(), Recipient{}, entity); err != nil {
				return err
			}
			if err := createHistory(tx, HistoryActionPurge, entity.EntityId(), entity.EntityType(),
				entity, nil, entity.EntityType()+" purged after retention window"); err != nil {
				return err
			}
			if err := tx.Delete(entity).Error; err != nil {
				return err
			}
			purged++
		}
		return nil
	})
	return purged, err
}
