package workflow

import (
	"context"
	"os"
	"strconv"
	"time"

	"github.com/mmdatafocus/lendstock_backend/config"
	"github.com/mmdatafocus/lendstock_backend/models"
	"github.com/mmdatafocus/lendstock_backend/utils"
	"github.com/sirupsen/logrus"
)

// SweepExpiredArchives purges archived rows whose retention window has
// elapsed, across every archivable entity. Each purge emits an auto_deleted
// event. Returns the total number of rows removed.
func SweepExpiredArchives(ctx context.Context, logger *logrus.Logger, now time.Time) (int64, error) {
	var total int64

	sweeps := []struct {
		entity string
		run    func() (int64, error)
	}{
		{"StockUnit", func() (int64, error) {
			return models.SweepExpiredEntities[models.StockUnit](ctx, now)
		}},
		{"Student", func() (int64, error) {
			return models.SweepExpiredEntities[models.Student](ctx, now)
		}},
		{"Employee", func() (int64, error) {
			return models.SweepExpiredEntities[models.Employee](ctx, now)
		}},
	}

	for _, s := range sweeps {
		n, err := s.run()
		if err != nil {
			config.LogError(logger, "archiveWorkflow", "SweepExpiredArchives", "purge", s.entity, err)
			return total, err
		}
		if n > 0 {
			logger.WithFields(logrus.Fields{"entity": s.entity, "count": n}).
				Info("purged expired archives")
		}
		total += n
	}
	return total, nil
}

// RunArchiveSweeper loops SweepExpiredArchives on an interval until ctx is
// cancelled. A redis lock keeps replicas from sweeping simultaneously; the
// sweep itself is idempotent, so a lost lock only costs duplicate work.
func RunArchiveSweeper(ctx context.Context, logger *logrus.Logger) {
	interval := sweepInterval("ARCHIVE_SWEEP_SECONDS", 24*time.Hour)
	runSweepLoop(ctx, logger, "lendstock:sweep:archive", interval, func(ctx context.Context) error {
		_, err := SweepExpiredArchives(ctx, logger, time.Now())
		return err
	})
}

// RunReminderSweeper loops SweepDueReminders on an interval until ctx is
// cancelled.
func RunReminderSweeper(ctx context.Context, logger *logrus.Logger) {
	interval := sweepInterval("REMINDER_SWEEP_SECONDS", time.Hour)
	runSweepLoop(ctx, logger, "lendstock:sweep:reminders", interval, func(ctx context.Context) error {
		_, err := SweepDueReminders(ctx, logger, time.Now())
		return err
	})
}

func runSweepLoop(ctx context.Context, logger *logrus.Logger, lockKey string,
	interval time.Duration, sweep func(ctx context.Context) error) {

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		skipped, err := utils.WithRedisLock(ctx, lockKey, interval/2, sweep)
		if err != nil {
			config.LogError(logger, "archiveWorkflow", "runSweepLoop", "sweep", lockKey, err)
		} else if skipped {
			logger.WithFields(logrus.Fields{"lock": lockKey}).
				Debug("sweep skipped, another instance holds the lock")
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func sweepInterval(envKey string, fallback time.Duration) time.Duration {
	if v := os.Getenv(envKey); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return time.Duration(n) * time.Second
		}
	}
	return fallback
}
