package postgres

import (
	"context"

	"github.com/lupa/roster/internal/database"
	"github.com/pkg/errors"
)

const DefaultLockKey = 99887766

type Options struct {
	database.CommonOptions
	LockKey int64
	NoLock  bool
}

// Locker takes a session level advisory lock, it blocks until acquired or
// the context is done
type Locker struct {
	lockKey int64
	noLock  bool
}

func NewLocker(lockKey int64, noLock bool) *Locker {
	if lockKey == 0 {
		lockKey = DefaultLockKey
	}

	return &Locker{lockKey: lockKey, noLock: noLock}
}

func (l *Locker) Lock(ctx context.Context, q database.CtxQuerier) error {
	if l.noLock {
		return nil
	}

	if _, err := q.ExecContext(ctx, "SELECT pg_advisory_lock($1)", l.lockKey); err != nil {
		return errors.Wrapf(err, "could not obtain [%d] exclusive Postgres advisory lock", l.lockKey)
	}

	return nil
}

func (l *Locker) Unlock(ctx context.Context, q database.CtxQuerier) error {
	if l.noLock {
		return nil
	}

	if _, err := q.ExecContext(ctx, "SELECT pg_advisory_unlock($1)", l.lockKey); err != nil {
		return errors.Wrapf(err, "could not release [%d] exclusive Postgres advisory lock", l.lockKey)
	}

	return nil
}
