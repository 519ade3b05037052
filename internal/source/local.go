package source

import (
	"context"
	"path/filepath"
	"regexp"

	"github.com/lupa/roster/internal/logger"
	"github.com/lupa/roster/migration"
	"github.com/pkg/errors"
)

var nameRegexp = regexp.MustCompile(`^[A-Za-z][\w -]*$`)

type LocalFileSource struct {
	folders []string
	lg      logger.Logger
	locator *FileLocator
}

var _ Source = (*LocalFileSource)(nil)

// NewLocalFSSource reads migrations from folders, new migrations are
// created in the first one
func NewLocalFSSource(locator *FileLocator, lg logger.Logger, folders ...string) (*LocalFileSource, error) {
	if len(folders) == 0 {
		return nil, errors.New("at least one migrations folder is required")
	}

	return &LocalFileSource{
		folders: folders,
		lg:      lg,
		locator: locator,
	}, nil
}

func (lfs *LocalFileSource) Select(ctx context.Context) (migration.Migrations, error) {
	migrations, err := Discover(ctx, lfs.locator, lfs.folders...)
	if err != nil {
		lfs.lg.Error(err)
		return nil, err
	}

	lfs.lg.Debugf("discovered %d migrations in %v", len(migrations), lfs.folders)

	return migrations, nil
}

func (lfs *LocalFileSource) IsValid() bool {
	for _, folder := range lfs.folders {
		if !lfs.locator.IsDir(folder) {
			return false
		}
	}

	return true
}

func (lfs *LocalFileSource) AlreadyExists(v migration.Version, name string) bool {
	key := migration.CreateKeyFromVersionAndName(v.String(), name)
	return lfs.locator.Exists(filepath.Join(lfs.folders[0], key+defaultMigrateFileFullExtension))
}

func (lfs *LocalFileSource) Create(v migration.Version, name string, withRollback bool) (*migration.Migration, error) {
	if !nameRegexp.MatchString(name) {
		return nil, errors.Wrapf(migration.ErrInvalidMigrationName, "[%s]", name)
	}

	if v.IsZero() {
		return nil, errors.Wrap(migration.ErrInvalidVersion, "version of a new migration cannot be zero")
	}

	key := migration.CreateKeyFromVersionAndName(v.String(), name)
	migrateFilename := filepath.Join(lfs.folders[0], key+defaultMigrateFileFullExtension)
	if err := lfs.locator.WriteFile(migrateFilename, nil); err != nil {
		return nil, err
	}

	if withRollback {
		rollbackFilename := filepath.Join(lfs.folders[0], key+defaultRollbackFileFullExtension)
		if err := lfs.locator.WriteFile(rollbackFilename, nil); err != nil {
			return nil, err
		}
	}

	return &migration.Migration{
		Key:     key,
		Name:    ucFirst(name),
		Version: v,
	}, nil
}
