package mysql

import (
	"context"

	"github.com/lupa/roster/internal/database"
	"github.com/pkg/errors"
)

const DefaultLockKey = "roster_migrations"
const DefaultLockSeconds = 3

var ErrLockNotAcquired = errors.New("MySQL lock was not acquired")

type Options struct {
	database.CommonOptions
	LockKey string
	LockFor int
	NoLock  bool
}

type Locker struct {
	lockKey string
	lockFor int
	noLock  bool
}

func NewLocker(lockKey string, lockFor int, noLock bool) *Locker {
	if lockKey == "" {
		lockKey = DefaultLockKey
	}

	if lockFor <= 0 {
		lockFor = DefaultLockSeconds
	}

	return &Locker{lockKey: lockKey, lockFor: lockFor, noLock: noLock}
}

// Lock takes a named lock, GET_LOCK returns 1 on success, 0 on timeout
func (l *Locker) Lock(ctx context.Context, q database.CtxQuerier) error {
	if l.noLock {
		return nil
	}

	var acquired *int
	if err := q.QueryRowContext(ctx, "SELECT GET_LOCK(?, ?)", l.lockKey, l.lockFor).Scan(&acquired); err != nil {
		return errors.Wrapf(err, "could not obtain [%s] exclusive MySQL DB lock for [%d] seconds", l.lockKey, l.lockFor)
	}

	if acquired == nil || *acquired != 1 {
		return errors.Wrapf(ErrLockNotAcquired, "[%s] within [%d] seconds", l.lockKey, l.lockFor)
	}

	return nil
}

func (l *Locker) Unlock(ctx context.Context, q database.CtxQuerier) error {
	if l.noLock {
		return nil
	}

	if _, err := q.ExecContext(ctx, "SELECT RELEASE_LOCK(?)", l.lockKey); err != nil {
		return errors.Wrapf(err, "could not release [%s] exclusive MySQL DB lock", l.lockKey)
	}

	return nil
}
