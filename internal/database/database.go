package database

import (
	"context"
	"database/sql"
	"time"

	"github.com/lupa/roster/internal/logger"
	"github.com/lupa/roster/migration"
)

const (
	DefaultMigrationsTable = "migrations"
	DefaultCharset         = "utf8mb4"
)

type Direction string

const (
	DirectionUp   Direction = "up"
	DirectionDown Direction = "down"
)

type CommonOptions struct {
	MigrationsTable string
}

// CtxExecutor is satisfied by *sql.DB, *sql.Conn, *sql.Tx and their sqlx wrappers
type CtxExecutor interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

type CtxQuerier interface {
	CtxExecutor
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// ChangeLog is the durable record of applied versions
type ChangeLog interface {
	CreateMigrationsTable(ctx context.Context) error
	CurrentVersion(ctx context.Context) (migration.Version, bool, error)
	ReadVersions(ctx context.Context) ([]migration.Version, error)
	RecordApplied(ctx context.Context, m *migration.Migration, at time.Time) error
	RecordReverted(ctx context.Context, m *migration.Migration) error
}

// Gateway runs migration actions against a backend and keeps the change log
// in step with them. Apply and Revert write the change log only after the
// action succeeded, a change log failure is reported as *LogWriteError.
type Gateway interface {
	ChangeLog

	SetLogger(logger.Logger)
	Lock(ctx context.Context) error
	Unlock(ctx context.Context) error
	Apply(ctx context.Context, m *migration.Migration, at time.Time) error
	Revert(ctx context.Context, m *migration.Migration) error
	Close() error
}

// LatestVersion picks the highest version by version order
func LatestVersion(versions []migration.Version) (migration.Version, bool) {
	var latest migration.Version
	found := false

	for _, v := range versions {
		if !found || v.Compare(latest) > 0 {
			latest = v
			found = true
		}
	}

	return latest, found
}
