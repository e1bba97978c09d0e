package utils

import (
	"context"
	"time"

	"github.com/bsm/redislock"
	"github.com/mmdatafocus/lendstock_backend/config"
)

/* dates */

// StartOfDay truncates t to midnight UTC.
func StartOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func SameDay(a, b time.Time) bool {
	return StartOfDay(a).Equal(StartOfDay(b))
}

// CeilDays returns the number of whole days (rounded up) between from and until.
// Zero or negative when until is not after from.
func CeilDays(from, until time.Time) int {
	d := until.Sub(from)
	if d <= 0 {
		return 0
	}
	days := int(d / (24 * time.Hour))
	if d%(24*time.Hour) > 0 {
		days++
	}
	return days
}

/* misc */

func DereferencePtr[T any](ptr *T) T {
	var zero T
	if ptr == nil {
		return zero
	}
	return *ptr
}

func NewTrue() *bool {
	b := true
	return &b
}

func NewFalse() *bool {
	b := false
	return &b
}

// WithRedisLock runs fn while holding a best-effort distributed lock.
// When redis is unavailable or the lock is already held, skipped is true and fn
// is not run. Correctness must never depend on this lock; sweeps are idempotent
// and the DB serializes the real mutations.
func WithRedisLock(ctx context.Context, lockKey string, ttl time.Duration, fn func(ctx context.Context) error) (skipped bool, err error) {
	locker := config.GetRedisLock()
	if locker == nil {
		return false, fn(ctx)
	}
	lock, err := locker.Obtain(ctx, lockKey, ttl, nil)
	if err == redislock.ErrNotObtained {
		return true, nil
	}
	if err != nil {
		// Redis trouble: proceed without the lock rather than stalling the sweep.
		return false, fn(ctx)
	}
	defer lock.Release(ctx)
	return false, fn(ctx)
}
