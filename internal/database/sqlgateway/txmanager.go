package sqlgateway

import (
	"context"
	"database/sql"
	"strings"

	mysqldriver "github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
)

var ErrTxDeadlock = errors.New("transaction deadlock occurred")

const (
	mysqlDeadlockErrNo  = 1213
	postgresDeadlockSQL = "40P01"
)

type TxConfig struct {
	Iso      sql.IsolationLevel
	ReadOnly bool
}

type TxConfigFunc func(*TxConfig)

type ISO int

const (
	Serializable ISO = iota
	RepeatableRead
	ReadCommitted
)

func Isolation(iso ISO) TxConfigFunc {
	return func(txCfg *TxConfig) {
		switch iso {
		case Serializable:
			txCfg.Iso = sql.LevelSerializable
		case RepeatableRead:
			txCfg.Iso = sql.LevelRepeatableRead
		case ReadCommitted:
			txCfg.Iso = sql.LevelReadCommitted
		}
	}
}

// Tx is satisfied by both *sqlx.Tx and *sqlx.DB
type Tx interface {
	sqlx.ExtContext
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
}

type TxCallback func(context.Context, Tx) error

type TxManager interface {
	ReadOnly(context.Context, TxCallback, ...TxConfigFunc) error
	ReadWrite(context.Context, TxCallback, ...TxConfigFunc) error
	// ReadWithoutIsolation runs cb straight on the pool
	ReadWithoutIsolation(ctx context.Context, cb TxCallback) error
	Ping(ctx context.Context) error
}

type SqlxTxManager struct {
	db *sqlx.DB
}

var _ TxManager = (*SqlxTxManager)(nil)

func NewTxManager(db *sqlx.DB) *SqlxTxManager {
	return &SqlxTxManager{db: db}
}

func (txm *SqlxTxManager) Ping(ctx context.Context) error {
	return Ping(ctx, txm.db)
}

// ReadOnly runs cb in a read-only transaction, isolation is the driver
// default unless configured
func (txm *SqlxTxManager) ReadOnly(ctx context.Context, cb TxCallback, cfn ...TxConfigFunc) error {
	return txm.isolate(ctx, cb, newTxConfig(true, cfn))
}

func (txm *SqlxTxManager) ReadWrite(ctx context.Context, cb TxCallback, cfn ...TxConfigFunc) error {
	return txm.isolate(ctx, cb, newTxConfig(false, cfn))
}

func (txm *SqlxTxManager) ReadWithoutIsolation(ctx context.Context, cb TxCallback) error {
	return cb(ctx, txm.db)
}

func newTxConfig(readOnly bool, cfn []TxConfigFunc) TxConfig {
	txCfg := TxConfig{Iso: sql.LevelDefault, ReadOnly: readOnly}
	for _, fn := range cfn {
		fn(&txCfg)
	}

	return txCfg
}

func (txm *SqlxTxManager) isolate(ctx context.Context, cb TxCallback, txCfg TxConfig) error {
	txx, err := txm.db.BeginTxx(ctx, &sql.TxOptions{ReadOnly: txCfg.ReadOnly, Isolation: txCfg.Iso})
	if err != nil {
		return errors.Wrapf(err, "could not start transaction, read-only: %v, isolation: %s", txCfg.ReadOnly, txCfg.Iso)
	}

	if err := cb(ctx, txx); err != nil {
		if isDeadlock(err) {
			err = errors.Wrapf(ErrTxDeadlock, "%s, on callback: %s", txCfg, err.Error())
		}

		if rbErr := txx.Rollback(); rbErr != nil {
			return errors.Wrapf(err, "rollback failed: %s", rbErr.Error())
		}

		return err
	}

	if err := txx.Commit(); err != nil {
		if isDeadlock(err) {
			return errors.Wrapf(ErrTxDeadlock, "%s, on commit: %s", txCfg, err.Error())
		}

		return errors.Wrapf(err, "could not commit transaction, %s", txCfg)
	}

	return nil
}

func (txCfg TxConfig) String() string {
	if txCfg.ReadOnly {
		return "read-only " + txCfg.Iso.String()
	}

	return "read-write " + txCfg.Iso.String()
}

func isDeadlock(err error) bool {
	var myErr *mysqldriver.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == mysqlDeadlockErrNo
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == postgresDeadlockSQL
	}

	return strings.Contains(strings.ToLower(err.Error()), "deadlock")
}
