package sqlgateway

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lupa/roster/internal/retry"
	"github.com/pkg/errors"
)

const pingAttempts = 10

// Ping waits for the database to answer a trivial query
func Ping(ctx context.Context, db *sqlx.DB) error {
	err := retry.Incremental(ctx, 100*time.Millisecond, pingAttempts, func(attempt int) error {
		if err := db.PingContext(ctx); err != nil {
			return retry.Error(err, attempt)
		}

		return nil
	})

	if err != nil {
		return errors.Wrap(err, "could not Ping DB")
	}

	var result int
	if err := db.QueryRowxContext(ctx, "select 1").Scan(&result); err != nil {
		return errors.Wrap(err, "could not ping DB")
	}

	return nil
}
