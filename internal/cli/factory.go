package cli

import (
	"strconv"

	mysqldriver "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/lupa/roster"
	"github.com/lupa/roster/internal/database/sqlgateway/postgres"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
	"github.com/xo/dburl"
)

type (
	// driverFactory opens the database of a parsed url and builds the
	// migrator option for its backend
	driverFactory struct {
		open    func(u *dburl.URL) (*sqlx.DB, error)
		gateway func(db *sqlx.DB, cfg Config) (roster.OptionFunc, error)
	}

	driverFactoryMap map[string]driverFactory
)

var factories = driverFactoryMap{
	"mysql":    {open: openMySQL, gateway: mysqlGateway},
	"postgres": {open: openPostgres, gateway: postgresGateway},
	"sqlite3":  {open: openSqlite, gateway: sqliteGateway},
}

func openDatabase(cfg Config) (*sqlx.DB, driverFactory, error) {
	u, err := dburl.Parse(cfg.DatabaseURL)
	if err != nil {
		return nil, driverFactory{}, errors.Wrap(err, "could not parse database url")
	}

	factory, ok := factories[u.Driver]
	if !ok {
		return nil, driverFactory{}, errors.Errorf("could not find factory for driver [%s]", u.Driver)
	}

	db, err := factory.open(u)
	if err != nil {
		return nil, driverFactory{}, errors.Wrapf(err, "could not open %s database", u.Driver)
	}

	return db, factory, nil
}

// openMySQL forces the DSN flags migration scripts depend on
func openMySQL(u *dburl.URL) (*sqlx.DB, error) {
	mysqlCfg, err := mysqldriver.ParseDSN(u.DSN)
	if err != nil {
		return nil, err
	}

	mysqlCfg.ParseTime = true
	mysqlCfg.MultiStatements = true

	return sqlx.Open("mysql", mysqlCfg.FormatDSN())
}

func openPostgres(u *dburl.URL) (*sqlx.DB, error) {
	return sqlx.Open("pgx", u.DSN)
}

func openSqlite(u *dburl.URL) (*sqlx.DB, error) {
	return sqlx.Open("sqlite3", u.DSN)
}

func mysqlGateway(db *sqlx.DB, cfg Config) (roster.OptionFunc, error) {
	opts := []roster.MySQLOptionFunc{roster.WithMySQLMigrationTable(cfg.MigrationsTable)}
	if cfg.LockKey != "" {
		opts = append(opts, roster.WithMySQLLockKey(cfg.LockKey))
	}
	if cfg.NoLock {
		opts = append(opts, roster.WithMySQLNoLock())
	}

	return roster.UseMySQL(db, opts...), nil
}

func postgresGateway(db *sqlx.DB, cfg Config) (roster.OptionFunc, error) {
	opts := []roster.PostgresOptionFunc{roster.WithPostgresMigrationTable(cfg.MigrationsTable)}
	if cfg.LockKey != "" {
		key, err := strconv.ParseInt(cfg.LockKey, 10, 64)
		if err != nil {
			return nil, errors.Wrapf(err, "postgres lock key must be an integer, default is %d", postgres.DefaultLockKey)
		}
		opts = append(opts, roster.WithPostgresLockKey(key))
	}
	if cfg.NoLock {
		opts = append(opts, roster.WithPostgresNoLock())
	}

	return roster.UsePostgres(db, opts...), nil
}

func sqliteGateway(db *sqlx.DB, cfg Config) (roster.OptionFunc, error) {
	return roster.UseSqlite(db, roster.WithSqliteMigrationTable(cfg.MigrationsTable)), nil
}
