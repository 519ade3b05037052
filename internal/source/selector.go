package source

import (
	"context"
	"unicode"

	"github.com/lupa/roster/migration"
	"github.com/pkg/errors"
)

var ErrNoMigrations = errors.New("no migrations")
var ErrNotAMigrationFile = errors.New("not a migration file")
var ErrMissingMigrateFile = errors.New("rollback file has no matching migrate file")
var ErrTooManyFilesForKey = errors.New("too many files for single migration key")

type Selector interface {
	Select(ctx context.Context) (migration.Migrations, error)
}

type Source interface {
	Selector

	IsValid() bool
	AlreadyExists(v migration.Version, name string) bool
	Create(v migration.Version, name string, withRollback bool) (*migration.Migration, error)
}

func ucFirst(s string) string {
	r := []rune(s)

	if len(r) == 0 {
		return ""
	}

	f := string(unicode.ToUpper(r[0]))

	return f + string(r[1:])
}
