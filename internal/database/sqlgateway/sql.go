package sqlgateway

import (
	"context"
	"sort"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lupa/roster/internal/database"
	"github.com/lupa/roster/internal/database/sqlgateway/mysql"
	"github.com/lupa/roster/internal/database/sqlgateway/postgres"
	"github.com/lupa/roster/internal/database/sqlgateway/sqlite"
	"github.com/lupa/roster/internal/logger"
	"github.com/lupa/roster/migration"
	"github.com/pkg/errors"
)

var ErrVersionNotRecorded = errors.New("version is not recorded in change log")

// Dialect builds the change log queries of a backend
type Dialect interface {
	InitQuery() string
	InsertQuery(m *migration.Migration, at time.Time) (string, []interface{})
	RemoveQuery(m *migration.Migration) (string, []interface{})
	ReadVersionsQuery() string
}

type Locker interface {
	Lock(ctx context.Context, q database.CtxQuerier) error
	Unlock(ctx context.Context, q database.CtxQuerier) error
}

type nullLocker struct{}

func (nullLocker) Lock(context.Context, database.CtxQuerier) error {
	return nil
}

func (nullLocker) Unlock(context.Context, database.CtxQuerier) error {
	return nil
}

var (
	_ Dialect = (*mysql.Dialect)(nil)
	_ Dialect = (*postgres.Dialect)(nil)
	_ Dialect = (*sqlite.Dialect)(nil)

	_ Locker = (*mysql.Locker)(nil)
	_ Locker = (*postgres.Locker)(nil)
)

// SQLGateway keeps the change log in a table of a SQL database and runs
// every migration step on a single dedicated connection
type SQLGateway struct {
	locker  Locker
	lg      logger.Logger
	conn    *sqlx.Conn
	dialect Dialect
}

var _ database.Gateway = (*SQLGateway)(nil)

func NewMySQLGateway(conn *sqlx.Conn, opts *mysql.Options) *SQLGateway {
	return &SQLGateway{
		conn:    conn,
		lg:      logger.NullLogger{},
		locker:  mysql.NewLocker(opts.LockKey, opts.LockFor, opts.NoLock),
		dialect: mysql.NewDialect(migrationsTable(opts.CommonOptions), database.DefaultCharset),
	}
}

func NewPostgresGateway(conn *sqlx.Conn, opts *postgres.Options) *SQLGateway {
	return &SQLGateway{
		conn:    conn,
		lg:      logger.NullLogger{},
		locker:  postgres.NewLocker(opts.LockKey, opts.NoLock),
		dialect: postgres.NewDialect(migrationsTable(opts.CommonOptions)),
	}
}

// NewSqliteGateway takes no lock, sqlite allows a single writer
func NewSqliteGateway(conn *sqlx.Conn, opts *sqlite.Options) *SQLGateway {
	return &SQLGateway{
		conn:    conn,
		lg:      logger.NullLogger{},
		locker:  nullLocker{},
		dialect: sqlite.NewDialect(migrationsTable(opts.CommonOptions)),
	}
}

func migrationsTable(opts database.CommonOptions) string {
	if opts.MigrationsTable == "" {
		return database.DefaultMigrationsTable
	}

	return opts.MigrationsTable
}

func (g *SQLGateway) SetLogger(lg logger.Logger) {
	g.lg = lg
}

func (g *SQLGateway) Lock(ctx context.Context) error {
	if err := g.locker.Lock(ctx, g.conn); err != nil {
		return errors.Wrap(err, "database lock failed")
	}

	return nil
}

func (g *SQLGateway) Unlock(ctx context.Context) error {
	return g.locker.Unlock(ctx, g.conn)
}

func (g *SQLGateway) CreateMigrationsTable(ctx context.Context) error {
	q := g.dialect.InitQuery()
	g.lg.SQL(q)

	if _, err := g.conn.ExecContext(ctx, q); err != nil {
		return errors.Wrap(err, "could not create migrations table")
	}

	return nil
}

func (g *SQLGateway) CurrentVersion(ctx context.Context) (migration.Version, bool, error) {
	versions, err := g.ReadVersions(ctx)
	if err != nil {
		return migration.Zero, false, err
	}

	v, ok := database.LatestVersion(versions)

	return v, ok, nil
}

// ReadVersions returns the change log sorted by version order
func (g *SQLGateway) ReadVersions(ctx context.Context) ([]migration.Version, error) {
	q := g.dialect.ReadVersionsQuery()
	g.lg.SQL(q)

	rows, err := g.conn.QueryxContext(ctx, q)
	if err != nil {
		return nil, errors.Wrap(err, "could not read migration versions")
	}

	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			g.lg.Error(closeErr)
		}
	}()

	var result []migration.Version

	for rows.Next() {
		var value string
		var migratedAt time.Time
		if err := rows.Scan(&value, &migratedAt); err != nil {
			return nil, errors.Wrap(err, "could not scan migration version")
		}

		v, err := migration.ParseVersion(value)
		if err != nil {
			return nil, errors.Wrapf(err, "change log holds a malformed version")
		}

		v.MigratedAt = migratedAt
		result = append(result, v)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "read migration versions iteration failed")
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Compare(result[j]) < 0
	})

	return result, nil
}

func (g *SQLGateway) RecordApplied(ctx context.Context, m *migration.Migration, at time.Time) error {
	return g.recordApplied(ctx, g.conn, m, at)
}

func (g *SQLGateway) RecordReverted(ctx context.Context, m *migration.Migration) error {
	return g.recordReverted(ctx, g.conn, m)
}

// Apply runs the migrate scripts and records the version in one transaction.
// MySQL commits DDL implicitly, so there a failed step may leave its earlier
// statements behind.
func (g *SQLGateway) Apply(ctx context.Context, m *migration.Migration, at time.Time) error {
	tx, err := g.conn.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrapf(err, "could not start transaction to migrate [%s]", m.Key)
	}

	if err := g.execScripts(ctx, tx, m.Migrate); err != nil {
		return g.handleError(errors.Wrapf(err, "could not migrate [%s]", m.Key), tx)
	}

	if err := g.recordApplied(ctx, tx, m, at); err != nil {
		return g.handleError(err, tx)
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrapf(err, "could not commit migration [%s]", m.Key)
	}

	return nil
}

func (g *SQLGateway) Revert(ctx context.Context, m *migration.Migration) error {
	tx, err := g.conn.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrapf(err, "could not start transaction to rollback [%s]", m.Key)
	}

	if err := g.execScripts(ctx, tx, m.Rollback); err != nil {
		return g.handleError(errors.Wrapf(err, "could not rollback [%s]", m.Key), tx)
	}

	if err := g.recordReverted(ctx, tx, m); err != nil {
		return g.handleError(err, tx)
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrapf(err, "could not commit rollback of [%s]", m.Key)
	}

	return nil
}

func (g *SQLGateway) Close() error {
	if err := g.conn.Close(); err != nil {
		return errors.Wrap(err, "could not close migrations connection")
	}

	return nil
}

func (g *SQLGateway) execScripts(ctx context.Context, ex database.CtxExecutor, scripts []string) error {
	for _, script := range scripts {
		g.lg.SQL(script)
		if _, err := ex.ExecContext(ctx, script); err != nil {
			return errors.Wrapf(err, "script [%s] failed", script)
		}
	}

	return nil
}

func (g *SQLGateway) recordApplied(ctx context.Context, ex database.CtxExecutor, m *migration.Migration, at time.Time) error {
	q, args := g.dialect.InsertQuery(m, at)
	g.lg.SQL(q, args...)

	if _, err := ex.ExecContext(ctx, q, args...); err != nil {
		return &database.LogWriteError{Version: m.Version, Op: "record", Err: err}
	}

	return nil
}

func (g *SQLGateway) recordReverted(ctx context.Context, ex database.CtxExecutor, m *migration.Migration) error {
	q, args := g.dialect.RemoveQuery(m)
	g.lg.SQL(q, args...)

	res, err := ex.ExecContext(ctx, q, args...)
	if err != nil {
		return &database.LogWriteError{Version: m.Version, Op: "remove", Err: err}
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return &database.LogWriteError{Version: m.Version, Op: "remove", Err: err}
	}

	if affected != 1 {
		return &database.LogWriteError{Version: m.Version, Op: "remove", Err: ErrVersionNotRecorded}
	}

	return nil
}

func (g *SQLGateway) handleError(err error, tx *sqlx.Tx) error {
	if rbErr := tx.Rollback(); rbErr != nil {
		g.lg.Error(errors.Wrap(rbErr, "rollback failed"))
	}

	return err
}
