package workflow

import (
	"context"
	"time"

	"github.com/mmdatafocus/lendstock_backend/config"
	"github.com/mmdatafocus/lendstock_backend/models"
	"github.com/mmdatafocus/lendstock_backend/utils"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// DueMilestone classifies a loan's due date against the current day:
// overdue when the due date has passed, due_today on the day itself,
// due_soon exactly one day before. Empty when no milestone applies.
func DueMilestone(expectedReturnDate, now time.Time) models.NotificationEventType {
	switch {
	case utils.StartOfDay(expectedReturnDate).Before(utils.StartOfDay(now)):
		return models.NotificationEventOverdue
	case utils.SameDay(expectedReturnDate, now):
		return models.NotificationEventDueToday
	case utils.SameDay(expectedReturnDate, now.AddDate(0, 0, 1)):
		return models.NotificationEventDueSoon
	}
	return ""
}

// SweepDueReminders is the time-driven reminder pass: it promotes past-due
// borrowed transactions to overdue, then emits each unsent milestone event and
// stamps its sent-at timestamp in the same transaction. Safe to run
// concurrently with user actions and with itself: rows are locked per
// transaction and a stamped milestone is never re-emitted.
func SweepDueReminders(ctx context.Context, logger *logrus.Logger, now time.Time) (emitted int, err error) {
	if n, err := markOverdueLoans(ctx, logger, now); err != nil {
		return 0, err
	} else if n > 0 {
		logger.WithFields(logrus.Fields{"count": n}).Info("marked loans overdue")
	}

	today := utils.StartOfDay(now)
	tomorrow := today.AddDate(0, 0, 1)
	dayAfter := today.AddDate(0, 0, 2)

	milestones := []struct {
		event     models.NotificationEventType
		stampCol  string
		condition string
		args      []interface{}
	}{
		{
			event:     models.NotificationEventOverdue,
			stampCol:  "overdue_sent_at",
			condition: "status = ? AND overdue_sent_at IS NULL",
			args:      []interface{}{models.BorrowStatusOverdue},
		},
		{
			event:     models.NotificationEventDueToday,
			stampCol:  "due_today_sent_at",
			condition: "status = ? AND due_today_sent_at IS NULL AND expected_return_date >= ? AND expected_return_date < ?",
			args:      []interface{}{models.BorrowStatusBorrowed, today, tomorrow},
		},
		{
			event:     models.NotificationEventDueSoon,
			stampCol:  "due_soon_sent_at",
			condition: "status = ? AND due_soon_sent_at IS NULL AND expected_return_date >= ? AND expected_return_date < ?",
			args:      []interface{}{models.BorrowStatusBorrowed, tomorrow, dayAfter},
		},
	}

	for _, m := range milestones {
		n, err := emitMilestone(ctx, m.event, m.stampCol, m.condition, m.args, now)
		if err != nil {
			return emitted, err
		}
		emitted += n
	}
	return emitted, nil
}

// markOverdueLoans transitions borrowed loans past their due date to overdue.
// Idempotent: an already-overdue loan matches nothing on the next pass.
func markOverdueLoans(ctx context.Context, logger *logrus.Logger, now time.Time) (int, error) {
	db := config.GetDB()
	today := utils.StartOfDay(now)

	var ids []int
	if err := db.WithContext(ctx).Model(&models.BorrowTransaction{}).
		Where("status = ? AND expected_return_date < ?", models.BorrowStatusBorrowed, today).
		Pluck("id", &ids).Error; err != nil {
		return 0, err
	}

	marked := 0
	for _, id := range ids {
		err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			txn, err := models.LockBorrowTransaction(tx, id)
			if err != nil {
				return err
			}
			// Re-check under the lock: a concurrent return claim may have won.
			if txn.Status != models.BorrowStatusBorrowed ||
				!utils.StartOfDay(txn.ExpectedReturnDate).Before(today) {
				return nil
			}
			before := *txn
			if err := txn.EnsureTransition(models.BorrowStatusOverdue); err != nil {
				return err
			}
			if err := tx.Save(txn).Error; err != nil {
				return err
			}
			marked++
			return models.CreateHistoryRecord(tx, models.HistoryActionTransition,
				txn.ID, txn.EntityType(), &before, txn, "loan marked overdue")
		})
		if err != nil {
			config.LogError(logger, "reminderWorkflow", "markOverdueLoans", "transition", id, err)
			return marked, err
		}
	}
	return marked, nil
}

// emitMilestone stamps and emits one milestone for every matching
// transaction. The stamp update and the outbox row share a transaction, and
// the row lock plus the IS NULL re-check make each milestone fire exactly
// once per transaction.
func emitMilestone(ctx context.Context, event models.NotificationEventType,
	stampCol string, condition string, args []interface{}, now time.Time) (int, error) {

	db := config.GetDB()

	var ids []int
	if err := db.WithContext(ctx).Model(&models.BorrowTransaction{}).
		Where(condition, args...).
		Pluck("id", &ids).Error; err != nil {
		return 0, err
	}

	emitted := 0
	for _, id := range ids {
		err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			txn, err := models.LockBorrowTransaction(tx, id)
			if err != nil {
				return err
			}
			if stampedAt(txn, stampCol) != nil {
				return nil
			}
			stamp := now.UTC()
			if err := tx.Model(txn).Update(stampCol, &stamp).Error; err != nil {
				return err
			}
			if err := models.EmitNotification(ctx, tx, event,
				txn.EntityType(), txn.ID, txn.Recipient(), txn); err != nil {
				return err
			}
			emitted++
			return nil
		})
		if err != nil {
			return emitted, err
		}
	}
	return emitted, nil
}

func stampedAt(txn *models.BorrowTransaction, stampCol string) *time.Time {
	switch stampCol {
	case "due_soon_sent_at":
		return txn.DueSoonSentAt
	case "due_today_sent_at":
		return txn.DueTodaySentAt
	case "overdue_sent_at":
		return txn.OverdueSentAt
	}
	return nil
}
