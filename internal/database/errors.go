package database

import (
	"fmt"

	"github.com/lupa/roster/migration"
	"github.com/pkg/errors"
)

var (
	ErrNoChangesRequired = errors.New("no changes to the database required")
	ErrAlreadyAtVersion  = errors.New("migrations already at the requested version")
	ErrNothingToRevert   = errors.New("nothing to revert, no migrations were applied")
	ErrInvalidTarget     = errors.New("invalid migration target")
)

// UnknownVersionError means a version is not among the discovered migrations
type UnknownVersionError struct {
	Version migration.Version
}

func (e *UnknownVersionError) Error() string {
	return fmt.Sprintf("unknown migration version [%s]", e.Version)
}

// LogWriteError is returned when the change log rejects a write
type LogWriteError struct {
	Version migration.Version
	Op      string
	Err     error
}

func (e *LogWriteError) Error() string {
	return fmt.Sprintf("could not %s version [%s] in change log: %v", e.Op, e.Version, e.Err)
}

func (e *LogWriteError) Unwrap() error { return e.Err }

func (e *LogWriteError) Cause() error { return e.Err }

// MigrationFailedError is returned when a step of a run fails, every step
// before it stays committed
type MigrationFailedError struct {
	Version   migration.Version
	Direction Direction
	Err       error
}

func (e *MigrationFailedError) Error() string {
	return fmt.Sprintf("migration [%s] failed while going %s: %v", e.Version, e.Direction, e.Err)
}

func (e *MigrationFailedError) Unwrap() error { return e.Err }

func (e *MigrationFailedError) Cause() error { return e.Err }
