package roster

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lupa/roster/internal/database"
	"github.com/lupa/roster/internal/database/sqlgateway"
	"github.com/lupa/roster/internal/database/sqlgateway/postgres"
	"github.com/pkg/errors"
)

type PostgresOptionFunc func(*postgres.Options, *sqlgateway.ConnectOptions)

// UsePostgres expects db to be opened with the pgx stdlib driver
func UsePostgres(db *sqlx.DB, options ...PostgresOptionFunc) OptionFunc {
	return func(m *Migrator) error {
		pgOpts := &postgres.Options{
			LockKey: postgres.DefaultLockKey,
			CommonOptions: database.CommonOptions{
				MigrationsTable: database.DefaultMigrationsTable,
			},
		}

		connectOpts := sqlgateway.NewDefaultConnectOptions()

		for _, oFunc := range options {
			oFunc(pgOpts, connectOpts)
		}

		conn, err := sqlgateway.MakeRetryingConnector(db, connectOpts).Connect(context.Background())
		if err != nil {
			return errors.Wrap(err, "could not connect to Postgres")
		}

		m.gateway = sqlgateway.NewPostgresGateway(conn, pgOpts)

		return nil
	}
}

func WithPostgresNoLock() PostgresOptionFunc {
	return func(pgOpts *postgres.Options, connectOpts *sqlgateway.ConnectOptions) {
		pgOpts.NoLock = true
	}
}

func WithPostgresLockKey(key int64) PostgresOptionFunc {
	return func(pgOpts *postgres.Options, connectOpts *sqlgateway.ConnectOptions) {
		pgOpts.LockKey = key
	}
}

func WithPostgresMigrationTable(migrationTable string) PostgresOptionFunc {
	return func(pgOpts *postgres.Options, connectOpts *sqlgateway.ConnectOptions) {
		pgOpts.MigrationsTable = migrationTable
	}
}

func WithPostgresConnectionTimeout(timeout time.Duration) PostgresOptionFunc {
	return func(pgOpts *postgres.Options, connectOpts *sqlgateway.ConnectOptions) {
		connectOpts.MaxTimeout = timeout
	}
}
