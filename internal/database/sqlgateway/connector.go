package sqlgateway

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lupa/roster/internal/retry"
	"github.com/pkg/errors"
)

const (
	DefaultConnectionAttempts    = 100
	DefaultConnectionTimeout     = 60 * time.Second
	DefaultConnectionAttemptStep = 2 * time.Second
	DefaultConnectionMaxDelay    = 10 * time.Second
)

type ConnectOptions struct {
	MaxAttempts int
	MaxTimeout  time.Duration
	RetryStep   time.Duration
	MaxDelay    time.Duration
}

func NewDefaultConnectOptions() *ConnectOptions {
	return &ConnectOptions{
		MaxAttempts: DefaultConnectionAttempts,
		MaxTimeout:  DefaultConnectionTimeout,
		RetryStep:   DefaultConnectionAttemptStep,
		MaxDelay:    DefaultConnectionMaxDelay,
	}
}

// RetryingConnector obtains a dedicated connection from the pool, backing
// off incrementally while the database is unreachable
type RetryingConnector struct {
	options *ConnectOptions
	db      *sqlx.DB
}

func MakeRetryingConnector(db *sqlx.DB, options *ConnectOptions) *RetryingConnector {
	if options == nil {
		options = NewDefaultConnectOptions()
	}

	return &RetryingConnector{db: db, options: options}
}

func (c *RetryingConnector) Connect(ctx context.Context) (*sqlx.Conn, error) {
	ctx, cancel := context.WithTimeout(ctx, c.options.MaxTimeout)
	defer cancel()

	var conn *sqlx.Conn

	backoff := retry.NewIncremental(c.options.RetryStep, c.options.MaxDelay, c.options.MaxAttempts)

	err := retry.Start(ctx, backoff, func(attempt int) error {
		cn, err := c.db.Connx(ctx)
		if err != nil {
			return retry.Error(errors.Wrap(err, "could not establish DB connection"), attempt)
		}

		if err := cn.PingContext(ctx); err != nil {
			_ = cn.Close()
			return retry.Error(errors.Wrap(err, "db ping failed"), attempt)
		}

		conn = cn

		return nil
	})

	if err != nil {
		return nil, err
	}

	return conn, nil
}
