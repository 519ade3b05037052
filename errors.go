package roster

import (
	"github.com/lupa/roster/internal/database"
	"github.com/lupa/roster/migration"
	"github.com/pkg/errors"
)

var (
	ErrNoChangesRequired = database.ErrNoChangesRequired
	ErrAlreadyAtVersion  = database.ErrAlreadyAtVersion
	ErrNothingToRevert   = database.ErrNothingToRevert
	ErrInvalidTarget     = database.ErrInvalidTarget
	ErrInvalidVersion    = migration.ErrInvalidVersion
)

type (
	DuplicateVersionError = migration.DuplicateVersionError
	UnknownVersionError   = database.UnknownVersionError
	LogWriteError         = database.LogWriteError
	MigrationFailedError  = database.MigrationFailedError

	Target    = database.Target
	Direction = database.Direction
)

const (
	DirectionUp   = database.DirectionUp
	DirectionDown = database.DirectionDown
)

// ParseTarget reads "up", "down" or a version token
func ParseTarget(s string) (Target, error) {
	return database.ParseTarget(s)
}

// IsInformational reports errors that describe a run with nothing to do
func IsInformational(err error) bool {
	return errors.Is(err, ErrNoChangesRequired) || errors.Is(err, ErrAlreadyAtVersion)
}
